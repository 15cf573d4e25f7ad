package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlacedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Total number of orders placed",
	}, []string{"order_type"})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of rejected order placements",
	}, []string{"reason"})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of cancelled orders",
	})

	OrdersCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_completed_total",
		Help: "Total number of orders delivered or picked up",
	}, []string{"status"})

	StatusTransitionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_rejected_total",
		Help: "Total number of refused status transitions",
	}, []string{"reason"})

	AgentAssignmentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "delivery_agent_assignments_total",
		Help: "Total number of delivery agent assignments",
	})

	AgentsAvailable = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "delivery_agents_available",
		Help: "Delivery agents available after the last write",
	})

	StoreLockWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "store_lock_wait_seconds",
		Help:    "Time spent waiting for the data store lock",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	StoreErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_errors_total",
		Help: "Total number of data store failures",
	}, []string{"op"})

	HistoryEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "history_events_total",
		Help: "Total number of lifecycle events written to the history store",
	}, []string{"event_type"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
