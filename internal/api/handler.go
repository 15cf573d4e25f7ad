package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"food-delivery/internal/models"
	"food-delivery/internal/service"
	"food-delivery/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RequesterHeader carries the id of the customer or agent making the call
const RequesterHeader = "X-User-ID"

// HistoryReader lists the status history of an order
type HistoryReader interface {
	ListByOrder(ctx context.Context, orderID string) ([]models.StatusHistoryEntry, error)
}

// Services groups what the handler serves. History may be nil.
type Services struct {
	Orders    *service.OrderService
	Agents    *service.AgentService
	Catalog   *service.CatalogService
	Customers *service.CustomerService
	History   HistoryReader
}

// Handler contains HTTP handlers
type Handler struct {
	orders    *service.OrderService
	agents    *service.AgentService
	catalog   *service.CatalogService
	customers *service.CustomerService
	history   HistoryReader
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(s Services) *Handler {
	return &Handler{
		orders:    s.Orders,
		agents:    s.Agents,
		catalog:   s.Catalog,
		customers: s.Customers,
		history:   s.History,
		logger:    util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	if gin.Mode() != gin.TestMode {
		router.Use(gin.Logger())
	}

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/restaurants", h.listRestaurants)
		v1.POST("/restaurants", h.addRestaurant)
		v1.GET("/restaurants/:id/menu", h.getMenu)
		v1.POST("/restaurants/:id/menu", h.addItem)
		v1.DELETE("/restaurants/:id/menu/:itemId", h.removeItem)
		v1.PUT("/restaurants/:id/menu/:itemId/price", h.updateItemPrice)
		v1.GET("/restaurants/:id/overview", h.restaurantOverview)
		v1.GET("/restaurants/:id/orders", h.restaurantOrders)

		v1.POST("/customers", h.registerCustomer)
		v1.GET("/customers/:id", h.getCustomer)
		v1.GET("/customers/:id/orders", h.customerOrders)

		v1.GET("/agents", h.listAgents)
		v1.POST("/agents", h.addAgent)
		v1.GET("/agents/:id", h.getAgent)
		v1.DELETE("/agents/:id", h.removeAgent)
		v1.POST("/agents/:id/duty", h.toggleDuty)
		v1.GET("/agents/:id/deliveries", h.deliveryHistory)

		v1.POST("/orders", h.placeOrder)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.PUT("/orders/:id/status", h.updateStatus)
		v1.POST("/orders/:id/cancel", h.cancelOrder)
		v1.PUT("/orders/:id/delivery-time", h.updateDeliveryTime)
		v1.GET("/orders/:id/history", h.orderHistory)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready once the data files can be read
func (h *Handler) readinessCheck(c *gin.Context) {
	if _, err := h.catalog.ListRestaurants(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}

func orderFilter(c *gin.Context) (service.OrderFilter, bool) {
	filter := service.OrderFilter{RestaurantID: c.Param("id")}

	if s := c.Query("status"); s != "" {
		st, ok := models.ParseOrderStatus(s)
		if !ok {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown status " + strconv.Quote(s)})
			return filter, false
		}
		filter.Status = st
	}
	if active := c.Query("active"); active != "" {
		v, err := strconv.ParseBool(active)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "active must be a boolean"})
			return filter, false
		}
		filter.ActiveOnly = v
	}
	return filter, true
}

type restaurantRequest struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address"`
}

func (h *Handler) listRestaurants(c *gin.Context) {
	restaurants, err := h.catalog.ListRestaurants(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, restaurants)
}

func (h *Handler) addRestaurant(c *gin.Context) {
	var req restaurantRequest
	if !bindJSON(c, &req) {
		return
	}

	restaurant, err := h.catalog.AddRestaurant(c.Request.Context(), req.Name, req.Address)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, restaurant)
}

func (h *Handler) getMenu(c *gin.Context) {
	menu, err := h.catalog.GetMenu(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, menu)
}

func (h *Handler) addItem(c *gin.Context) {
	var req service.NewMenuItem
	if !bindJSON(c, &req) {
		return
	}

	item, err := h.catalog.AddItem(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) removeItem(c *gin.Context) {
	out, err := h.catalog.RemoveItem(c.Request.Context(), c.Param("id"), c.Param("itemId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeOutcome(c, out)
}

type priceRequest struct {
	Price decimal.Decimal `json:"price"`
}

func (h *Handler) updateItemPrice(c *gin.Context) {
	var req priceRequest
	if !bindJSON(c, &req) {
		return
	}

	out, err := h.catalog.UpdateItemPrice(c.Request.Context(), c.Param("id"), c.Param("itemId"), req.Price)
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeOutcome(c, out)
}

func (h *Handler) restaurantOverview(c *gin.Context) {
	overview, err := h.catalog.GetRestaurantOverview(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (h *Handler) restaurantOrders(c *gin.Context) {
	filter, ok := orderFilter(c)
	if !ok {
		return
	}

	orders, err := h.orders.ListOrders(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

type userRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required"`
	Address string `json:"address"`
}

func (h *Handler) registerCustomer(c *gin.Context) {
	var req userRequest
	if !bindJSON(c, &req) {
		return
	}

	customer, err := h.customers.RegisterCustomer(c.Request.Context(), req.Name, req.Email, req.Address)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func (h *Handler) getCustomer(c *gin.Context) {
	customer, err := h.customers.GetCustomer(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *Handler) customerOrders(c *gin.Context) {
	orders, err := h.orders.GetCustomerOrders(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) listAgents(c *gin.Context) {
	profiles, err := h.agents.ListAgentProfiles(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profiles)
}

func (h *Handler) addAgent(c *gin.Context) {
	var req userRequest
	if !bindJSON(c, &req) {
		return
	}

	agent, err := h.agents.AddAgent(c.Request.Context(), req.Name, req.Email)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, agent)
}

func (h *Handler) getAgent(c *gin.Context) {
	profile, err := h.agents.GetAgentProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) removeAgent(c *gin.Context) {
	out, err := h.agents.RemoveAgent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeOutcome(c, out)
}

func (h *Handler) toggleDuty(c *gin.Context) {
	out, err := h.agents.ToggleDuty(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeOutcome(c, out)
}

func (h *Handler) deliveryHistory(c *gin.Context) {
	history, err := h.agents.GetDeliveryHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"completed_deliveries": history})
}

// placeOrder handles order placement
func (h *Handler) placeOrder(c *gin.Context) {
	var req service.PlaceOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orders.PlaceOrder(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"order":       order,
		"total_price": order.TotalPrice(),
	})
}

func (h *Handler) listOrders(c *gin.Context) {
	filter, ok := orderFilter(c)
	if !ok {
		return
	}

	orders, err := h.orders.ListOrders(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	details, err := h.orders.GetOrderDetails(c.Request.Context(), c.Param("id"), c.GetHeader(RequesterHeader))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) updateStatus(c *gin.Context) {
	var req statusRequest
	if !bindJSON(c, &req) {
		return
	}

	st, ok := models.ParseOrderStatus(req.Status)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown status " + strconv.Quote(req.Status)})
		return
	}

	out, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("id"), st, c.GetHeader(RequesterHeader))
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeOutcome(c, out)
}

func (h *Handler) cancelOrder(c *gin.Context) {
	out, err := h.orders.CancelOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeOutcome(c, out)
}

type deliveryTimeRequest struct {
	Time string `json:"time" binding:"required"`
}

func (h *Handler) updateDeliveryTime(c *gin.Context) {
	var req deliveryTimeRequest
	if !bindJSON(c, &req) {
		return
	}

	out, err := h.orders.UpdateEstimatedDeliveryTime(c.Request.Context(), c.Param("id"), req.Time, c.GetHeader(RequesterHeader))
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeOutcome(c, out)
}

func (h *Handler) orderHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "status history is not enabled"})
		return
	}

	entries, err := h.history.ListByOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
