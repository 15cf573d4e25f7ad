package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var transitions = map[OrderStatus][]OrderStatus{
	StatusPlaced:    {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady, StatusCancelled},
	StatusReady:     {StatusInTransit, StatusPickedUp},
	StatusInTransit: {StatusDelivered},
	StatusDelivered: {},
	StatusPickedUp:  {},
	StatusCancelled: {},
}

var statusAliases = map[string]OrderStatus{
	"placed":     StatusPlaced,
	"preparing":  StatusPreparing,
	"ready":      StatusReady,
	"in_transit": StatusInTransit,
	"delivered":  StatusDelivered,
	"picked_up":  StatusPickedUp,
	"cancelled":  StatusCancelled,
	"canceled":   StatusCancelled,
}

var typeAliases = map[string]OrderType{
	"delivery":      OrderTypeDelivery,
	"home_delivery": OrderTypeDelivery,
	"takeaway":      OrderTypeTakeaway,
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// ParseOrderStatus accepts a stored label ("In Transit") or a short key ("in_transit").
func ParseOrderStatus(s string) (OrderStatus, bool) {
	for st := range transitions {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, true
		}
	}
	st, ok := statusAliases[normalize(s)]
	return st, ok
}

// ParseOrderType accepts a stored label ("Home Delivery") or a short key ("delivery").
func ParseOrderType(s string) (OrderType, bool) {
	for _, t := range []OrderType{OrderTypeDelivery, OrderTypeTakeaway} {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t, true
		}
	}
	t, ok := typeAliases[normalize(s)]
	return t, ok
}

// IsTerminal reports whether no further transition is possible from s.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusPickedUp || s == StatusCancelled
}

// IsCancellable reports whether an order in status s may still be cancelled.
func (s OrderStatus) IsCancellable() bool {
	return s == StatusPlaced || s == StatusPreparing
}

// NewOrder builds an order in status Placed and computes its time estimates.
func NewOrder(id, customerID, restaurantID string, items []OrderItem, orderType OrderType, placed time.Time) *Order {
	prep := 0
	for _, item := range items {
		if item.PrepTime > prep {
			prep = item.PrepTime
		}
	}

	order := &Order{
		OrderID:            id,
		CustomerID:         customerID,
		RestaurantID:       restaurantID,
		Items:              append([]OrderItem(nil), items...),
		OrderType:          orderType,
		Status:             StatusPlaced,
		PlacedTime:         placed,
		EstimatedReadyTime: placed.Add(time.Duration(prep) * time.Minute),
		UpdatedAt:          placed,
	}
	if orderType == OrderTypeDelivery {
		eta := order.EstimatedReadyTime.Add(DeliveryBuffer)
		order.EstimatedDeliveryTime = &eta
	}
	return order
}

// LineTotal is the snapshot price times quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// TotalPrice sums the snapshot line totals.
func (o *Order) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// TimeRemaining returns whole minutes until the order is expected at the
// customer (Home Delivery) or ready (Takeaway). Terminal orders report 0.
func (o *Order) TimeRemaining(now time.Time) int {
	if o.Status.IsTerminal() {
		return 0
	}

	target := o.EstimatedReadyTime
	if o.OrderType == OrderTypeDelivery && o.EstimatedDeliveryTime != nil {
		target = *o.EstimatedDeliveryTime
	}

	remaining := int(target.Sub(now) / time.Minute)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CanTransition reports whether the order may move to status to.
// In Transit and Delivered belong to Home Delivery orders, Picked Up to Takeaway.
func (o *Order) CanTransition(to OrderStatus) bool {
	switch to {
	case StatusInTransit, StatusDelivered:
		if o.OrderType != OrderTypeDelivery {
			return false
		}
	case StatusPickedUp:
		if o.OrderType != OrderTypeTakeaway {
			return false
		}
	}

	for _, next := range transitions[o.Status] {
		if next == to {
			return true
		}
	}
	return false
}

// HasAgent reports whether a delivery agent is attached to the order.
func (o *Order) HasAgent() bool {
	return o.DeliveryAgentID != nil && *o.DeliveryAgentID != ""
}

// AgentID returns the attached agent id or "".
func (o *Order) AgentID() string {
	if o.DeliveryAgentID == nil {
		return ""
	}
	return *o.DeliveryAgentID
}

// Assign attaches the agent to the order and marks the agent busy.
func (a *DeliveryAgent) Assign(orderID string) {
	a.Available = false
	id := orderID
	a.CurrentOrder = &id
}

// Release frees the agent. When completed is set the order id is recorded
// in CompletedDeliveries at most once.
func (a *DeliveryAgent) Release(orderID string, completed bool) {
	a.Available = true
	a.CurrentOrder = nil
	if completed {
		a.RecordCompleted(orderID)
	}
}

// RecordCompleted appends orderID to CompletedDeliveries unless already present.
func (a *DeliveryAgent) RecordCompleted(orderID string) {
	for _, id := range a.CompletedDeliveries {
		if id == orderID {
			return
		}
	}
	a.CompletedDeliveries = append(a.CompletedDeliveries, orderID)
}

// IsBusy reports whether the agent currently handles an order.
func (a *DeliveryAgent) IsBusy() bool {
	return a.CurrentOrder != nil && *a.CurrentOrder != ""
}
