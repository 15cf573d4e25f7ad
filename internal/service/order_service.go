package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"food-delivery/internal/apperr"
	"food-delivery/internal/models"
	"food-delivery/internal/store"
	"food-delivery/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
)

// OrderService handles order business logic
type OrderService struct {
	store          DataStore
	eventPublisher EventPublisher
	logger         *zap.Logger
	now            func() time.Time
}

// NewOrderService creates a new order service
func NewOrderService(store DataStore, eventPublisher EventPublisher) *OrderService {
	if eventPublisher == nil {
		eventPublisher = NoopPublisher{}
	}
	return &OrderService{
		store:          store,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
		now:            time.Now,
	}
}

// PlaceOrderRequest represents a request to place an order
type PlaceOrderRequest struct {
	CustomerID   string             `json:"customer_id" binding:"required"`
	RestaurantID string             `json:"restaurant_id" binding:"required"`
	Items        []OrderItemRequest `json:"items" binding:"required"`
	OrderType    string             `json:"order_type" binding:"required"`
}

// OrderItemRequest represents an item in an order
type OrderItemRequest struct {
	ItemID   string `json:"item_id" binding:"required"`
	Quantity int    `json:"quantity"`
}

// ItemDetails is one line of OrderDetails
type ItemDetails struct {
	ItemID    string          `json:"item_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// OrderDetails is the read projection of an order
type OrderDetails struct {
	OrderID               string             `json:"order_id"`
	Status                models.OrderStatus `json:"status"`
	OrderType             models.OrderType   `json:"order_type"`
	CustomerID            string             `json:"customer_id"`
	CustomerName          string             `json:"customer_name"`
	RestaurantID          string             `json:"restaurant_id"`
	RestaurantName        string             `json:"restaurant_name"`
	Items                 []ItemDetails      `json:"items"`
	TotalPrice            decimal.Decimal    `json:"total_price"`
	TimeRemaining         int                `json:"time_remaining_minutes"`
	PlacedTime            time.Time          `json:"placed_time"`
	EstimatedReadyTime    time.Time          `json:"estimated_ready_time"`
	EstimatedDeliveryTime *time.Time         `json:"estimated_delivery_time,omitempty"`
	DeliveryAgentID       string             `json:"delivery_agent_id,omitempty"`
}

// OrderFilter narrows ListOrders. Zero values match everything.
type OrderFilter struct {
	RestaurantID string
	Status       models.OrderStatus
	ActiveOnly   bool
}

// PlaceOrder validates the request, snapshots the items, assigns a delivery
// agent for Home Delivery orders and saves everything in one store update.
func (s *OrderService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder")
	defer span.End()

	orderType, ok := models.ParseOrderType(req.OrderType)
	if !ok {
		util.OrdersFailedTotal.WithLabelValues("invalid_type").Inc()
		return nil, apperr.InvalidArgument("unknown order type %q", req.OrderType)
	}
	if len(req.Items) == 0 {
		util.OrdersFailedTotal.WithLabelValues("no_items").Inc()
		return nil, apperr.InvalidArgument("order must contain at least one item")
	}
	for _, item := range req.Items {
		if item.Quantity < 1 {
			util.OrdersFailedTotal.WithLabelValues("invalid_quantity").Inc()
			return nil, apperr.InvalidArgument("quantity for item %s must be at least 1", item.ItemID)
		}
	}

	var (
		order     *models.Order
		available int
	)
	err := s.store.Update(ctx, func(state *store.State) error {
		restaurant, ok := state.Restaurants[req.RestaurantID]
		if !ok {
			return apperr.NotFound("restaurant %s not found", req.RestaurantID)
		}
		customer, ok := state.Customers[req.CustomerID]
		if !ok {
			return apperr.NotFound("customer %s not found", req.CustomerID)
		}

		items := make([]models.OrderItem, 0, len(req.Items))
		for _, item := range req.Items {
			menuItem, ok := restaurant.MenuItems[item.ItemID]
			if !ok {
				return apperr.NotFound("item %s not found in restaurant %s", item.ItemID, restaurant.Name)
			}
			items = append(items, models.OrderItem{
				ItemID:   menuItem.ItemID,
				Name:     menuItem.Name,
				Price:    menuItem.Price,
				PrepTime: menuItem.PrepTime,
				Quantity: item.Quantity,
			})
		}

		var agent *models.DeliveryAgent
		if orderType == models.OrderTypeDelivery {
			agent = firstAvailableAgent(state)
			if agent == nil {
				return apperr.Unavailable("no delivery agent available")
			}
		}

		now := s.now()
		order = models.NewOrder(newOrderID(state, now), customer.UserID, restaurant.RestaurantID, items, orderType, now)
		if agent != nil {
			agent.Assign(order.OrderID)
			agentID := agent.UserID
			order.DeliveryAgentID = &agentID
		}

		state.Orders[order.OrderID] = order
		customer.OrderHistory = append(customer.OrderHistory, order.OrderID)
		restaurant.Orders = append(restaurant.Orders, order.OrderID)
		available = countAvailable(state)
		return nil
	})
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	util.OrdersPlacedTotal.WithLabelValues(string(order.OrderType)).Inc()
	util.AgentsAvailable.Set(float64(available))
	if order.HasAgent() {
		util.AgentAssignmentsTotal.Inc()
	}

	s.logger.Info("Order placed",
		zap.String("order_id", order.OrderID),
		zap.String("customer_id", order.CustomerID),
		zap.String("order_type", string(order.OrderType)),
		zap.String("delivery_agent_id", order.AgentID()),
		zap.String("total", order.TotalPrice().StringFixed(2)))

	s.publishOrderPlaced(ctx, order)
	return order, nil
}

// UpdateStatus moves an order along its lifecycle. Refusals come back as an
// Outcome; the error is reserved for storage failures.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, newStatus models.OrderStatus, requesterID string) (Outcome, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus")
	defer span.End()

	var from models.OrderStatus
	var agentID string
	out, err := updateOutcome(ctx, s.store, func(state *store.State) (Outcome, error) {
		order, ok := state.Orders[orderID]
		if !ok {
			return refused(codes.NotFound, "order %s not found", orderID), nil
		}
		if order.Status.IsTerminal() {
			return refused(codes.FailedPrecondition, "order %s is already %s", orderID, order.Status), nil
		}
		if requesterID != "" && order.HasAgent() && requesterID != order.AgentID() {
			return refused(codes.PermissionDenied, "order %s is not assigned to %s", orderID, requesterID), nil
		}

		from = order.Status
		agentID = order.AgentID()
		if newStatus == models.StatusCancelled {
			return s.cancel(state, order), nil
		}
		if !order.CanTransition(newStatus) {
			return refused(codes.FailedPrecondition, "cannot move %s order from %s to %s",
				order.OrderType, order.Status, newStatus), nil
		}

		order.Status = newStatus
		order.UpdatedAt = s.now()

		if newStatus == models.StatusDelivered || newStatus == models.StatusPickedUp {
			if agent, ok := state.Agents[agentID]; ok {
				if agent.CurrentOrder != nil && *agent.CurrentOrder == orderID {
					agent.Release(orderID, true)
				} else {
					agent.RecordCompleted(orderID)
				}
			}
		}
		return applied("order %s is now %s", orderID, newStatus), nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to update order status: %w", err)
	}
	if !out.Applied {
		util.StatusTransitionsRejected.WithLabelValues(strings.ToLower(out.Code.String())).Inc()
		s.logger.Info("Status update refused",
			zap.String("order_id", orderID),
			zap.String("to_status", string(newStatus)),
			zap.String("reason", out.Reason))
		return out, nil
	}

	switch newStatus {
	case models.StatusDelivered, models.StatusPickedUp:
		util.OrdersCompletedTotal.WithLabelValues(string(newStatus)).Inc()
	case models.StatusCancelled:
		util.OrdersCancelledTotal.Inc()
	}

	s.logger.Info("Order status updated",
		zap.String("order_id", orderID),
		zap.String("from_status", string(from)),
		zap.String("to_status", string(newStatus)))

	s.publishStatusChanged(ctx, orderID, from, newStatus, requesterID, agentID)
	return out, nil
}

// CancelOrder cancels an order that has not left the kitchen yet and frees
// its delivery agent.
func (s *OrderService) CancelOrder(ctx context.Context, orderID string) (Outcome, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CancelOrder")
	defer span.End()

	var from models.OrderStatus
	var agentID string
	out, err := updateOutcome(ctx, s.store, func(state *store.State) (Outcome, error) {
		order, ok := state.Orders[orderID]
		if !ok {
			return refused(codes.NotFound, "order %s not found", orderID), nil
		}
		from = order.Status
		agentID = order.AgentID()
		return s.cancel(state, order), nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to cancel order: %w", err)
	}
	if !out.Applied {
		util.StatusTransitionsRejected.WithLabelValues(strings.ToLower(out.Code.String())).Inc()
		return out, nil
	}

	util.OrdersCancelledTotal.Inc()
	s.logger.Info("Order cancelled", zap.String("order_id", orderID), zap.String("from_status", string(from)))

	s.publishStatusChanged(ctx, orderID, from, models.StatusCancelled, "", agentID)
	return out, nil
}

func (s *OrderService) cancel(state *store.State, order *models.Order) Outcome {
	if !order.Status.IsCancellable() {
		return refused(codes.FailedPrecondition, "order %s cannot be cancelled once %s", order.OrderID, order.Status)
	}

	if agent, ok := state.Agents[order.AgentID()]; ok {
		if agent.CurrentOrder != nil && *agent.CurrentOrder == order.OrderID {
			agent.Release(order.OrderID, false)
		}
	}

	order.Status = models.StatusCancelled
	order.UpdatedAt = s.now()
	return applied("order %s cancelled", order.OrderID)
}

// GetOrderDetails returns the read projection of an order. A non-empty
// requesterID must be the customer who placed it.
func (s *OrderService) GetOrderDetails(ctx context.Context, orderID, requesterID string) (*OrderDetails, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrderDetails")
	defer span.End()

	var details OrderDetails
	err := s.store.View(ctx, func(state *store.State) error {
		order, ok := state.Orders[orderID]
		if !ok {
			return apperr.NotFound("order %s not found", orderID)
		}
		if requesterID != "" && requesterID != order.CustomerID {
			return apperr.PermissionDenied("order %s does not belong to %s", orderID, requesterID)
		}
		details = s.details(state, order)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &details, nil
}

// UpdateEstimatedDeliveryTime lets the assigned agent move the delivery
// estimate to a later time of day, given as HH:MM.
func (s *OrderService) UpdateEstimatedDeliveryTime(ctx context.Context, orderID, newTime, agentID string) (Outcome, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateEstimatedDeliveryTime")
	defer span.End()

	clock, err := time.Parse("15:04", strings.TrimSpace(newTime))
	if err != nil {
		return Outcome{}, apperr.InvalidArgument("invalid time %q, expected HH:MM", newTime)
	}

	var eta time.Time
	out, err := updateOutcome(ctx, s.store, func(state *store.State) (Outcome, error) {
		order, ok := state.Orders[orderID]
		if !ok {
			return refused(codes.NotFound, "order %s not found", orderID), nil
		}
		if order.Status.IsTerminal() {
			return refused(codes.FailedPrecondition, "order %s is already %s", orderID, order.Status), nil
		}
		if !order.HasAgent() || order.AgentID() != agentID {
			return refused(codes.PermissionDenied, "order %s is not assigned to %s", orderID, agentID), nil
		}

		now := s.now()
		eta = time.Date(now.Year(), now.Month(), now.Day(), clock.Hour(), clock.Minute(), 0, 0, now.Location())
		if eta.Before(now.Truncate(time.Minute)) {
			return Outcome{}, apperr.Conflict("delivery time %s is already past", newTime)
		}

		order.EstimatedDeliveryTime = ptrTime(eta)
		order.UpdatedAt = now
		return applied("estimated delivery time set to %s", eta.Format("15:04")), nil
	})
	if err != nil {
		return Outcome{}, err
	}
	if !out.Applied {
		return out, nil
	}

	s.logger.Info("Delivery time updated",
		zap.String("order_id", orderID),
		zap.String("delivery_agent_id", agentID),
		zap.Time("estimated_delivery_time", eta))

	event := &models.DeliveryTimeUpdatedEvent{
		BaseEvent:             newBaseEvent(models.EventTypeDeliveryTimeUpdated, s.now()),
		OrderID:               orderID,
		DeliveryAgentID:       agentID,
		EstimatedDeliveryTime: eta,
	}
	if err := s.eventPublisher.PublishDeliveryTimeUpdated(ctx, event); err != nil {
		s.logger.Error("Failed to publish DeliveryTimeUpdated event", zap.Error(err))
	}
	return out, nil
}

// GetCustomerOrders returns the customer's orders in placement order
func (s *OrderService) GetCustomerOrders(ctx context.Context, customerID string) ([]OrderDetails, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetCustomerOrders")
	defer span.End()

	var result []OrderDetails
	err := s.store.View(ctx, func(state *store.State) error {
		customer, ok := state.Customers[customerID]
		if !ok {
			return apperr.NotFound("customer %s not found", customerID)
		}

		result = make([]OrderDetails, 0, len(customer.OrderHistory))
		for _, id := range customer.OrderHistory {
			if order, ok := state.Orders[id]; ok {
				result = append(result, s.details(state, order))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListOrders returns the orders matching filter, oldest first
func (s *OrderService) ListOrders(ctx context.Context, filter OrderFilter) ([]OrderDetails, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	var result []OrderDetails
	err := s.store.View(ctx, func(state *store.State) error {
		if filter.RestaurantID != "" {
			if _, ok := state.Restaurants[filter.RestaurantID]; !ok {
				return apperr.NotFound("restaurant %s not found", filter.RestaurantID)
			}
		}

		matched := make([]*models.Order, 0, len(state.Orders))
		for _, order := range state.Orders {
			if filter.RestaurantID != "" && order.RestaurantID != filter.RestaurantID {
				continue
			}
			if filter.Status != "" && order.Status != filter.Status {
				continue
			}
			if filter.ActiveOnly && order.Status.IsTerminal() {
				continue
			}
			matched = append(matched, order)
		}
		sortedOrders(matched)

		result = make([]OrderDetails, 0, len(matched))
		for _, order := range matched {
			result = append(result, s.details(state, order))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *OrderService) details(state *store.State, order *models.Order) OrderDetails {
	d := OrderDetails{
		OrderID:               order.OrderID,
		Status:                order.Status,
		OrderType:             order.OrderType,
		CustomerID:            order.CustomerID,
		CustomerName:          "Unknown",
		RestaurantID:          order.RestaurantID,
		RestaurantName:        "Unknown",
		Items:                 make([]ItemDetails, 0, len(order.Items)),
		TotalPrice:            order.TotalPrice(),
		TimeRemaining:         order.TimeRemaining(s.now()),
		PlacedTime:            order.PlacedTime,
		EstimatedReadyTime:    order.EstimatedReadyTime,
		EstimatedDeliveryTime: order.EstimatedDeliveryTime,
		DeliveryAgentID:       order.AgentID(),
	}
	if c, ok := state.Customers[order.CustomerID]; ok {
		d.CustomerName = c.Name
	}
	if r, ok := state.Restaurants[order.RestaurantID]; ok {
		d.RestaurantName = r.Name
	}
	for _, item := range order.Items {
		d.Items = append(d.Items, ItemDetails{
			ItemID:    item.ItemID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
			LineTotal: item.LineTotal(),
		})
	}
	return d
}

func (s *OrderService) publishOrderPlaced(ctx context.Context, order *models.Order) {
	items := make([]models.OrderItemData, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, models.OrderItemData{
			ItemID:    item.ItemID,
			Quantity:  item.Quantity,
			UnitPrice: item.Price.StringFixed(2),
		})
	}

	event := &models.OrderPlacedEvent{
		BaseEvent:       newBaseEvent(models.EventTypeOrderPlaced, order.PlacedTime),
		OrderID:         order.OrderID,
		CustomerID:      order.CustomerID,
		RestaurantID:    order.RestaurantID,
		OrderType:       order.OrderType,
		DeliveryAgentID: order.AgentID(),
		TotalPrice:      order.TotalPrice().StringFixed(2),
		Items:           items,
	}

	if err := s.eventPublisher.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event", zap.String("order_id", order.OrderID), zap.Error(err))
	}
}

func (s *OrderService) publishStatusChanged(ctx context.Context, orderID string, from, to models.OrderStatus, changedBy, agentID string) {
	event := &models.OrderStatusChangedEvent{
		BaseEvent:       newBaseEvent(models.EventTypeOrderStatusChanged, s.now()),
		OrderID:         orderID,
		FromStatus:      from,
		ToStatus:        to,
		ChangedBy:       changedBy,
		DeliveryAgentID: agentID,
	}

	if err := s.eventPublisher.PublishOrderStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderStatusChanged event", zap.String("order_id", orderID), zap.Error(err))
	}
}

func newBaseEvent(eventType string, at time.Time) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: at,
	}
}

// newOrderID returns order-<unix seconds>-<8 hex chars>, unused in state
func newOrderID(state *store.State, now time.Time) string {
	for {
		suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
		id := fmt.Sprintf("order-%d-%s", now.Unix(), suffix)
		if _, exists := state.Orders[id]; !exists {
			return id
		}
	}
}

func failureReason(err error) string {
	switch apperr.Code(err) {
	case codes.NotFound:
		return "not_found"
	case codes.Unavailable:
		return "no_agent"
	case codes.Aborted:
		return "storage"
	default:
		return "other"
	}
}
