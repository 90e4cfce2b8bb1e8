package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"gallery-service/config"
	"gallery-service/internal/apperr"
	"gallery-service/internal/auth"
	"gallery-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OrderTokenHeader carries the access token returned at checkout
const OrderTokenHeader = "X-Order-Token"

const defaultMaxUploadBytes = 10 << 20

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterOptions configures the cross-cutting middleware
type RouterOptions struct {
	Auth           auth.Provider
	CORSOrigins    []string
	RateLimit      config.RateLimitConfig
	MaxUploadBytes int64
}

// Handler contains HTTP handlers
type Handler struct {
	orders         *service.OrderService
	catalog        *service.CatalogService
	admin          *service.AdminService
	checks         map[string]Pinger
	maxUploadBytes int64
}

// NewHandler creates a new HTTP handler. checks are pinged by /ready.
func NewHandler(orders *service.OrderService, catalog *service.CatalogService, admin *service.AdminService, checks map[string]Pinger) *Handler {
	return &Handler{
		orders:         orders,
		catalog:        catalog,
		admin:          admin,
		checks:         checks,
		maxUploadBytes: defaultMaxUploadBytes,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine, opts RouterOptions) {
	if opts.MaxUploadBytes > 0 {
		h.maxUploadBytes = opts.MaxUploadBytes
	}
	if opts.Auth == nil {
		// no secret: every bearer token is rejected
		opts.Auth = auth.NewJWTProvider("", nil)
	}

	router.Use(recoveryMiddleware())
	router.Use(requestIDMiddleware())
	router.Use(prometheusMiddleware())
	router.Use(loggingMiddleware())
	router.Use(corsMiddleware(opts.CORSOrigins))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limited := rateLimitMiddleware(opts.RateLimit)
	admin := auth.RequireAdmin()

	v1 := router.Group("/api/v1")
	v1.Use(auth.Authenticate(opts.Auth))
	{
		v1.GET("/artworks", h.listArtworks)
		v1.GET("/artworks/:id", h.getArtwork)
		v1.POST("/artworks", admin, h.createArtwork)
		v1.PUT("/artworks/:id", admin, h.updateArtwork)
		v1.DELETE("/artworks/:id", admin, h.deleteArtwork)
		v1.POST("/artworks/reorder", admin, h.reorderArtworks)
		v1.POST("/artworks/:id/images", admin, h.uploadArtworkImage)

		v1.POST("/create-payment-intent", limited, h.createPaymentIntent)
		v1.POST("/orders", limited, h.createOrder)
		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/orders/:id/complete", limited, h.completeOrder)

		v1.POST("/contact", limited, h.submitContactMessage)
		v1.POST("/newsletter/subscribe", limited, h.subscribe)
		v1.POST("/newsletter/unsubscribe", limited, h.unsubscribe)

		v1.GET("/social-media", h.listSocialMedia)
		v1.GET("/social-media/:platform", h.getSocialMedia)
		v1.PUT("/social-media/:platform", admin, h.updateSocialMedia)

		backOffice := v1.Group("/admin", admin)
		backOffice.GET("/orders", h.listOrders)
		backOffice.PATCH("/orders/:id/status", h.updateOrderStatus)
		backOffice.GET("/messages", h.listContactMessages)
		backOffice.PATCH("/messages/:id/read", h.markContactMessageRead)
		backOffice.DELETE("/messages/:id", h.deleteContactMessage)
		backOffice.GET("/subscribers", h.listSubscribers)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := gin.H{}
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	c.JSON(status, gin.H{
		"status": state,
		"checks": results,
		"time":   time.Now().Unix(),
	})
}

// createPaymentIntent opens a card payment intent for the server-priced cart
func (h *Handler) createPaymentIntent(c *gin.Context) {
	var req service.PaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.orders.QuotePaymentIntent(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// createOrder handles checkout
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	resp, err := h.orders.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

// getOrder returns an order to its buyer (by access token) or an admin
func (h *Handler) getOrder(c *gin.Context) {
	id, ok := pathID(c, "order")
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), id, orderToken(c), auth.IsAdmin(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type completeOrderRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
}

// completeOrder confirms a pending order with a succeeded card payment
func (h *Handler) completeOrder(c *gin.Context) {
	id, ok := pathID(c, "order")
	if !ok {
		return
	}
	var req completeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	order, err := h.orders.CompleteOrder(c.Request.Context(), id, req.PaymentIntentID, orderToken(c), auth.IsAdmin(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context(), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	id, ok := pathID(c, "order")
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	order, err := h.orders.UpdateOrderStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// orderToken reads the access token from the header, falling back to the query
func orderToken(c *gin.Context) string {
	if token := c.GetHeader(OrderTokenHeader); token != "" {
		return token
	}
	return c.Query("token")
}

func pathID(c *gin.Context, entity string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, apperr.Validation("invalid "+entity+" id", map[string]string{"id": "must be a positive integer"}))
		return 0, false
	}
	return id, true
}
