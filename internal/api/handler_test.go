package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"food-delivery/internal/apperr"
	"food-delivery/internal/models"
	"food-delivery/internal/service"
	"food-delivery/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

type fakeHistory struct {
	entries []models.StatusHistoryEntry
	err     error
}

func (f *fakeHistory) ListByOrder(_ context.Context, orderID string) ([]models.StatusHistoryEntry, error) {
	return f.entries, f.err
}

func setupRouter(t *testing.T, history HistoryReader) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	h := NewHandler(Services{
		Orders:    service.NewOrderService(st, nil),
		Agents:    service.NewAgentService(st),
		Catalog:   service.NewCatalogService(st),
		Customers: service.NewCustomerService(st),
		History:   history,
	})

	router := gin.New()
	h.SetupRoutes(router)
	return router
}

func do(t *testing.T, router *gin.Engine, method, path string, body interface{}, headers ...string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var decoded map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &decoded)
	return w, decoded
}

type seeded struct {
	restaurantID string
	itemID       string
	customerID   string
}

func seed(t *testing.T, router *gin.Engine) seeded {
	t.Helper()

	w, restaurant := do(t, router, http.MethodPost, "/api/v1/restaurants", gin.H{"name": "Foodie Central", "address": "123 Main St"})
	require.Equal(t, http.StatusCreated, w.Code)
	restaurantID := restaurant["restaurant_id"].(string)

	w, item := do(t, router, http.MethodPost, "/api/v1/restaurants/"+restaurantID+"/menu",
		gin.H{"name": "Margherita Pizza", "price": "10.00", "prep_time": 15})
	require.Equal(t, http.StatusCreated, w.Code)

	w, customer := do(t, router, http.MethodPost, "/api/v1/customers",
		gin.H{"name": "John Doe", "email": "john@example.com", "address": "789 Elm St"})
	require.Equal(t, http.StatusCreated, w.Code)

	return seeded{
		restaurantID: restaurantID,
		itemID:       item["item_id"].(string),
		customerID:   customer["user_id"].(string),
	}
}

func placeBody(s seeded, orderType string) gin.H {
	return gin.H{
		"customer_id":   s.customerID,
		"restaurant_id": s.restaurantID,
		"order_type":    orderType,
		"items":         []gin.H{{"item_id": s.itemID, "quantity": 2}},
	}
}

func TestHealth(t *testing.T) {
	router := setupRouter(t, nil)

	w, body := do(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])

	w, body = do(t, router, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", body["status"])
}

func TestDeliveryOrderFlow(t *testing.T) {
	router := setupRouter(t, nil)
	s := seed(t, router)

	w, _ := do(t, router, http.MethodPost, "/api/v1/orders", placeBody(s, "Home Delivery"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w, agent := do(t, router, http.MethodPost, "/api/v1/agents", gin.H{"name": "Mike Smith", "email": "mike@delivery.com"})
	require.Equal(t, http.StatusCreated, w.Code)
	agentID := agent["user_id"].(string)

	w, placed := do(t, router, http.MethodPost, "/api/v1/orders", placeBody(s, "Home Delivery"))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "20", placed["total_price"])
	order := placed["order"].(map[string]interface{})
	orderID := order["order_id"].(string)
	assert.Equal(t, agentID, order["delivery_agent_id"])

	w, out := do(t, router, http.MethodPost, "/api/v1/agents/"+agentID+"/duty", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, false, out["applied"])

	w, _ = do(t, router, http.MethodGet, "/api/v1/orders/"+orderID, nil, RequesterHeader, "intruder")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, details := do(t, router, http.MethodGet, "/api/v1/orders/"+orderID, nil, RequesterHeader, s.customerID)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Foodie Central", details["restaurant_name"])
	assert.Equal(t, "Placed", details["status"])

	w, out = do(t, router, http.MethodPut, "/api/v1/orders/"+orderID+"/status", gin.H{"status": "preparing"},
		RequesterHeader, "other-agent")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, false, out["applied"])

	for _, st := range []string{"preparing", "ready", "in_transit", "delivered"} {
		w, out = do(t, router, http.MethodPut, "/api/v1/orders/"+orderID+"/status", gin.H{"status": st},
			RequesterHeader, agentID)
		require.Equal(t, http.StatusOK, w.Code, st)
		assert.Equal(t, true, out["applied"])
	}

	w, _ = do(t, router, http.MethodPut, "/api/v1/orders/"+orderID+"/status", gin.H{"status": "delivered"},
		RequesterHeader, agentID)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, history := do(t, router, http.MethodGet, "/api/v1/agents/"+agentID+"/deliveries", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{orderID}, history["completed_deliveries"])

	w, _ = do(t, router, http.MethodPost, "/api/v1/orders/"+orderID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDeliveryTimeEndpoint(t *testing.T) {
	router := setupRouter(t, nil)
	s := seed(t, router)

	w, agent := do(t, router, http.MethodPost, "/api/v1/agents", gin.H{"name": "Mike Smith", "email": "mike@delivery.com"})
	require.Equal(t, http.StatusCreated, w.Code)
	agentID := agent["user_id"].(string)

	w, placed := do(t, router, http.MethodPost, "/api/v1/orders", placeBody(s, "delivery"))
	require.Equal(t, http.StatusCreated, w.Code)
	orderID := placed["order"].(map[string]interface{})["order_id"].(string)

	w, _ = do(t, router, http.MethodPut, "/api/v1/orders/"+orderID+"/delivery-time", gin.H{"time": "later"},
		RequesterHeader, agentID)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, router, http.MethodPut, "/api/v1/orders/"+orderID+"/delivery-time", gin.H{"time": "23:59"},
		RequesterHeader, "someone-else")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestBadRequests(t *testing.T) {
	router := setupRouter(t, nil)
	s := seed(t, router)

	w, _ := do(t, router, http.MethodPost, "/api/v1/orders", "{broken")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body := placeBody(s, "Takeaway")
	body["items"] = []gin.H{}
	w, _ = do(t, router, http.MethodPost, "/api/v1/orders", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, router, http.MethodPost, "/api/v1/restaurants/"+s.restaurantID+"/menu",
		gin.H{"name": "Refund", "price": "-2.00"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, router, http.MethodPut, "/api/v1/orders/x/status", gin.H{"status": "teleported"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, router, http.MethodGet, "/api/v1/orders?status=lost", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, router, http.MethodGet, "/api/v1/orders/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, router, http.MethodPost, "/api/v1/customers", gin.H{"name": "Dup", "email": "john@example.com"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRestaurantEndpoints(t *testing.T) {
	router := setupRouter(t, nil)
	s := seed(t, router)

	w, _ := do(t, router, http.MethodPost, "/api/v1/orders", placeBody(s, "Takeaway"))
	require.Equal(t, http.StatusCreated, w.Code)

	w, overview := do(t, router, http.MethodGet, "/api/v1/restaurants/"+s.restaurantID+"/overview", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), overview["total_orders"])
	assert.Equal(t, float64(1), overview["takeaway_orders"])

	w, _ = do(t, router, http.MethodPut, "/api/v1/restaurants/"+s.restaurantID+"/menu/"+s.itemID+"/price", gin.H{"price": "11.50"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, router, http.MethodDelete, "/api/v1/restaurants/"+s.restaurantID+"/menu/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/restaurants/"+s.restaurantID+"/orders?active=true", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var orders []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, "20", orders[0]["total_price"])
}

func TestOrderHistoryEndpoint(t *testing.T) {
	router := setupRouter(t, nil)
	w, _ := do(t, router, http.MethodGet, "/api/v1/orders/o1/history", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	router = setupRouter(t, &fakeHistory{entries: []models.StatusHistoryEntry{
		{EventID: "evt-1", OrderID: "o1", ToStatus: "Placed"},
	}})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/o1/history", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []models.StatusHistoryEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Placed", entries[0].ToStatus)

	router = setupRouter(t, &fakeHistory{err: errors.New("connection refused")})
	w, body := do(t, router, http.MethodGet, "/api/v1/orders/o1/history", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", body["error"])
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := map[codes.Code]int{
		codes.OK:                 http.StatusOK,
		codes.InvalidArgument:    http.StatusBadRequest,
		codes.NotFound:           http.StatusNotFound,
		codes.AlreadyExists:      http.StatusConflict,
		codes.FailedPrecondition: http.StatusConflict,
		codes.PermissionDenied:   http.StatusForbidden,
		codes.Unavailable:        http.StatusServiceUnavailable,
		codes.Aborted:            http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, httpStatus(code), code.String())
	}

	assert.Equal(t, codes.Aborted, apperr.Code(apperr.Storage("write", errors.New("disk full"))))
}

func TestWriteErrorHidesStorageFailures(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(Services{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)

	h.writeError(c, apperr.Storage("rename orders.json", errors.New("read-only file system")))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Internal server error", body.Error)
}
