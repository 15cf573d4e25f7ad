package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"food-delivery/internal/models"
	"food-delivery/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu            sync.Mutex
	placed        []*models.OrderPlacedEvent
	statusChanged []*models.OrderStatusChangedEvent
	timeUpdated   []*models.DeliveryTimeUpdatedEvent
}

func (p *recordingPublisher) PublishOrderPlaced(_ context.Context, e *models.OrderPlacedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.placed = append(p.placed, e)
	return nil
}

func (p *recordingPublisher) PublishOrderStatusChanged(_ context.Context, e *models.OrderStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statusChanged = append(p.statusChanged, e)
	return nil
}

func (p *recordingPublisher) PublishDeliveryTimeUpdated(_ context.Context, e *models.DeliveryTimeUpdatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeUpdated = append(p.timeUpdated, e)
	return nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	store     *store.Store
	clock     *fakeClock
	publisher *recordingPublisher
	orders    *OrderService
	agents    *AgentService
	catalog   *CatalogService
	customers *CustomerService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local)}
	pub := &recordingPublisher{}

	env := &testEnv{
		store:     st,
		clock:     clock,
		publisher: pub,
		orders:    NewOrderService(st, pub),
		agents:    NewAgentService(st),
		catalog:   NewCatalogService(st),
		customers: NewCustomerService(st),
	}
	env.orders.now = clock.Now
	env.agents.now = clock.Now
	return env
}

type fixture struct {
	restaurant *models.Restaurant
	pizza      *models.MenuItem
	burger     *models.MenuItem
	customer   *models.Customer
}

func (e *testEnv) seed(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	r, err := e.catalog.AddRestaurant(ctx, "Foodie Central", "123 Main St")
	require.NoError(t, err)

	pizza, err := e.catalog.AddItem(ctx, r.RestaurantID, NewMenuItem{
		Name:     "Margherita Pizza",
		Price:    decimal.RequireFromString("10.00"),
		PrepTime: 15,
	})
	require.NoError(t, err)

	burger, err := e.catalog.AddItem(ctx, r.RestaurantID, NewMenuItem{
		Name:     "Classic Burger",
		Price:    decimal.RequireFromString("9.99"),
		PrepTime: 10,
	})
	require.NoError(t, err)

	c, err := e.customers.RegisterCustomer(ctx, "John Doe", "john@example.com", "789 Elm St")
	require.NoError(t, err)

	return fixture{restaurant: r, pizza: pizza, burger: burger, customer: c}
}

func (e *testEnv) addAgent(t *testing.T, name, email string) *models.DeliveryAgent {
	t.Helper()
	a, err := e.agents.AddAgent(context.Background(), name, email)
	require.NoError(t, err)
	e.clock.Advance(time.Second)
	return a
}

func (e *testEnv) place(t *testing.T, f fixture, orderType string, items ...OrderItemRequest) *models.Order {
	t.Helper()
	order, err := e.orders.PlaceOrder(context.Background(), &PlaceOrderRequest{
		CustomerID:   f.customer.UserID,
		RestaurantID: f.restaurant.RestaurantID,
		Items:        items,
		OrderType:    orderType,
	})
	require.NoError(t, err)
	return order
}

func (e *testEnv) state(t *testing.T) *store.State {
	t.Helper()
	var snapshot *store.State
	require.NoError(t, e.store.View(context.Background(), func(s *store.State) error {
		snapshot = s
		return nil
	}))
	return snapshot
}
