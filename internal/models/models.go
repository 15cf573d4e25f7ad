package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserRole discriminates the records stored in users.json
type UserRole string

const (
	RoleCustomer      UserRole = "Customer"
	RoleDeliveryAgent UserRole = "Delivery Agent"
)

// MenuItem represents a dish in a restaurant catalog
type MenuItem struct {
	ItemID      string          `json:"item_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	PrepTime    int             `json:"prep_time"`
}

// Restaurant owns a menu and the ids of orders placed against it
type Restaurant struct {
	RestaurantID string               `json:"restaurant_id"`
	Name         string               `json:"name"`
	Address      string               `json:"address"`
	MenuItems    map[string]*MenuItem `json:"menu_items"`
	Orders       []string             `json:"orders"`
}

// Customer places orders
type Customer struct {
	UserID       string   `json:"user_id"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Role         UserRole `json:"role"`
	Address      string   `json:"address"`
	OrderHistory []string `json:"order_history"`
}

// DeliveryAgent carries Home Delivery orders.
//
// Available is false whenever CurrentOrder is set. An agent may also be
// unavailable with no order, when off duty.
type DeliveryAgent struct {
	UserID              string     `json:"user_id"`
	Name                string     `json:"name"`
	Email               string     `json:"email"`
	Role                UserRole   `json:"role"`
	Available           bool       `json:"available"`
	CurrentOrder        *string    `json:"current_order"`
	CompletedDeliveries []string   `json:"completed_deliveries"`
	JoinedAt            time.Time  `json:"joined_at"`
	DutySince           *time.Time `json:"duty_since"`
	TotalDutyHours      float64    `json:"total_duty_hours"`
}

// OrderItem is a snapshot of a menu item at placement time.
// Later catalog edits never reach it.
type OrderItem struct {
	ItemID   string          `json:"item_id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	PrepTime int             `json:"prep_time"`
	Quantity int             `json:"quantity"`
}

// Order represents a customer order
type Order struct {
	OrderID               string      `json:"order_id"`
	CustomerID            string      `json:"customer_id"`
	RestaurantID          string      `json:"restaurant_id"`
	Items                 []OrderItem `json:"items"`
	OrderType             OrderType   `json:"order_type"`
	Status                OrderStatus `json:"status"`
	DeliveryAgentID       *string     `json:"delivery_agent_id"`
	PlacedTime            time.Time   `json:"placed_time"`
	EstimatedReadyTime    time.Time   `json:"estimated_ready_time"`
	EstimatedDeliveryTime *time.Time  `json:"estimated_delivery_time"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

// OrderType is how the order leaves the restaurant
type OrderType string

const (
	OrderTypeDelivery OrderType = "Home Delivery"
	OrderTypeTakeaway OrderType = "Takeaway"
)

// OrderStatus values are stored by their display label
type OrderStatus string

const (
	StatusPlaced    OrderStatus = "Placed"
	StatusPreparing OrderStatus = "Preparing"
	StatusReady     OrderStatus = "Ready for Pickup/Delivery"
	StatusInTransit OrderStatus = "In Transit"
	StatusDelivered OrderStatus = "Delivered"
	StatusPickedUp  OrderStatus = "Picked Up"
	StatusCancelled OrderStatus = "Cancelled"
)

// DeliveryBuffer is added to the ready time of Home Delivery orders
const DeliveryBuffer = 15 * time.Minute
