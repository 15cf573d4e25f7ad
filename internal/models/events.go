package models

import "time"

// Event types
const (
	EventTypeOrderPlaced         = "ORDER_PLACED"
	EventTypeOrderStatusChanged  = "ORDER_STATUS_CHANGED"
	EventTypeDeliveryTimeUpdated = "DELIVERY_TIME_UPDATED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published when an order is stored
type OrderPlacedEvent struct {
	BaseEvent
	OrderID         string          `json:"order_id"`
	CustomerID      string          `json:"customer_id"`
	RestaurantID    string          `json:"restaurant_id"`
	OrderType       OrderType       `json:"order_type"`
	DeliveryAgentID string          `json:"delivery_agent_id,omitempty"`
	TotalPrice      string          `json:"total_price"`
	Items           []OrderItemData `json:"items"`
}

// OrderStatusChangedEvent published after every applied transition,
// cancellations included
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID         string      `json:"order_id"`
	FromStatus      OrderStatus `json:"from_status"`
	ToStatus        OrderStatus `json:"to_status"`
	ChangedBy       string      `json:"changed_by,omitempty"`
	DeliveryAgentID string      `json:"delivery_agent_id,omitempty"`
}

// DeliveryTimeUpdatedEvent published when an agent moves the delivery estimate
type DeliveryTimeUpdatedEvent struct {
	BaseEvent
	OrderID               string    `json:"order_id"`
	DeliveryAgentID       string    `json:"delivery_agent_id"`
	EstimatedDeliveryTime time.Time `json:"estimated_delivery_time"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ItemID    string `json:"item_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

// StatusHistoryEntry is one row of the order status audit trail
type StatusHistoryEntry struct {
	EventID    string    `db:"event_id" json:"event_id"`
	OrderID    string    `db:"order_id" json:"order_id"`
	FromStatus string    `db:"from_status" json:"from_status"`
	ToStatus   string    `db:"to_status" json:"to_status"`
	ChangedBy  string    `db:"changed_by" json:"changed_by"`
	ChangedAt  time.Time `db:"changed_at" json:"changed_at"`
}
