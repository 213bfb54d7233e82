package api

import (
	"net/http"
	"strconv"
	"time"

	"medorder-service/internal/catalog"
	"medorder-service/internal/models"
	"medorder-service/internal/service"
	"medorder-service/internal/store"
	"medorder-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	orders    *service.OrderService
	reconcile *service.ReconcileService
	pricing   *service.PricingService
	store     *store.Store
}

// NewHandler creates a new HTTP handler
func NewHandler(orders *service.OrderService, reconcile *service.ReconcileService,
	pricing *service.PricingService, st *store.Store) *Handler {
	return &Handler{
		orders:    orders,
		reconcile: reconcile,
		pricing:   pricing,
		store:     st,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/services", h.listServices)
		v1.GET("/pricing/quote", h.priceQuote)

		v1.POST("/orders", h.createOrder)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/queue", h.listQueue)
		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/orders/:id/intake", h.attachIntake)
		v1.POST("/orders/:id/invoice", h.beginInvoice)
		v1.POST("/orders/:id/clarifications", h.requestClarification)
		v1.POST("/orders/:id/answer", h.adminAnswer)
		v1.POST("/orders/:id/needs-docs", h.flagNeedsDocs)
		v1.POST("/orders/:id/cancel", h.cancelOrder)
		v1.POST("/orders/:id/rating", h.setRating)
		v1.POST("/orders/:id/price", h.changeOrderPrice)
		v1.POST("/orders/:id/tax-reported", h.markTaxReported)
		v1.GET("/orders/:id/payment", h.getOrderPayment)
		v1.GET("/users/:id/orders", h.listUserOrders)
		v1.GET("/users/:id/agreement", h.checkAgreement)

		v1.POST("/payments/precheckout", h.preCheckout)
		v1.POST("/payments/reconcile", h.reconcilePayment)
		v1.GET("/payments/invoice/:token", h.getOrderByInvoice)

		v1.POST("/promocodes", h.createPromoCode)
		v1.GET("/promocodes", h.listPromoCodes)
		v1.POST("/promocodes/:code/deactivate", h.deactivatePromoCode)

		v1.POST("/referrals", h.linkReferral)
		v1.GET("/referrals/:id/stats", h.referrerStats)

		v1.POST("/agreements", h.recordAgreement)
		v1.GET("/stats", h.statistics)
	}
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now().Unix()})
}

func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready", "time": time.Now().Unix()})
}

func (h *Handler) listServices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"services": catalog.All()})
}

// priceQuote previews the price a user would pay, without opening an order
// or spending a promo use.
func (h *Handler) priceQuote(c *gin.Context) {
	serviceType := c.Query("service_type")
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id query parameter is required"})
		return
	}

	quote, err := h.pricing.Resolve(c.Request.Context(), serviceType, userID, c.Query("promo_code"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown service type", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	resp, err := h.orders.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to create order")
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	order, thread, err := h.orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "clarifications": thread})
}

func (h *Handler) attachIntake(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req service.IntakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.orders.AttachIntake(c.Request.Context(), orderID, &req); err != nil {
		respondError(c, err, "Failed to attach intake")
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": orderID})
}

func (h *Handler) beginInvoice(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	token, err := h.orders.BeginInvoice(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err, "Failed to begin invoice")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order_id": orderID, "invoice_token": token})
}

func (h *Handler) requestClarification(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req service.ClarificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	id, err := h.orders.RequestClarification(c.Request.Context(), orderID, &req)
	if err != nil {
		respondError(c, err, "Failed to add clarification")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"clarification_id": id})
}

type adminAnswerRequest struct {
	AdminID int64  `json:"admin_id" binding:"required"`
	Text    string `json:"text" binding:"required"`
}

func (h *Handler) adminAnswer(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req adminAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.orders.AdminAnswer(c.Request.Context(), orderID, req.AdminID, req.Text); err != nil {
		respondError(c, err, "Failed to complete order")
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "status": models.OrderStatusCompleted})
}

type needsDocsRequest struct {
	AdminID int64  `json:"admin_id" binding:"required"`
	Reason  string `json:"reason" binding:"required"`
}

func (h *Handler) flagNeedsDocs(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req needsDocsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.orders.FlagNeedsDocs(c.Request.Context(), orderID, req.AdminID, req.Reason); err != nil {
		respondError(c, err, "Failed to flag order")
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "status": models.OrderStatusNeedsNewDocs})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancelOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req cancelRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.orders.Cancel(c.Request.Context(), orderID, req.Reason); err != nil {
		respondError(c, err, "Failed to cancel order")
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "status": models.OrderStatusCancelled})
}

type ratingRequest struct {
	Rating int `json:"rating" binding:"required"`
}

func (h *Handler) setRating(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req ratingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.orders.SetRating(c.Request.Context(), orderID, req.Rating); err != nil {
		respondError(c, err, "Failed to save rating")
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "rating": req.Rating})
}

func (h *Handler) listOrders(c *gin.Context) {
	limit, offset := pagination(c)
	orders, err := h.store.GetAllOrders(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list orders", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) listQueue(c *gin.Context) {
	limit, _ := pagination(c)
	orders, err := h.store.GetActiveOrders(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list queue", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) listUserOrders(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	limit, offset := pagination(c)

	orders, err := h.store.GetUserOrders(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list orders", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

type changePriceRequest struct {
	Price int64 `json:"price" binding:"required"`
}

// changeOrderPrice sets a custom price before payment.
func (h *Handler) changeOrderPrice(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req changePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Price <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price must be positive"})
		return
	}

	order, err := h.store.GetOrderByID(c.Request.Context(), orderID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	if order.PaymentStatus == models.PaymentStatusSuccess {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Заказ уже оплачен"})
		return
	}

	if err := h.store.ChangeOrderPrice(c.Request.Context(), orderID, req.Price); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to change price", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "price": req.Price})
}

// markTaxReported flags an order's payment as declared for tax accounting.
func (h *Handler) markTaxReported(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.store.MarkTaxReported(c.Request.Context(), orderID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark tax reported", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "tax_reported": true})
}

func (h *Handler) getOrderPayment(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	payment, err := h.store.GetPaymentByOrderID(c.Request.Context(), orderID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (h *Handler) checkAgreement(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	version := c.Query("version")
	if version == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "version query parameter is required"})
		return
	}

	accepted, err := h.store.HasAcceptedAgreement(c.Request.Context(), userID, version)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check agreement", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "version": version, "accepted": accepted})
}

func (h *Handler) getOrderByInvoice(c *gin.Context) {
	order, err := h.store.GetOrderByInvoiceToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up invoice", "details": err.Error()})
		return
	}
	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No order matches the invoice token"})
		return
	}
	c.JSON(http.StatusOK, order)
}

// preCheckout acknowledges a provider pre-authorization callback. The policy
// is always-accept; validation happens at reconciliation.
func (h *Handler) preCheckout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type reconcileRequest struct {
	InvoiceToken string `json:"invoice_token" binding:"required"`
	ProviderRef  string `json:"provider_ref" binding:"required"`
	Amount       int64  `json:"amount" binding:"required"`
}

func (h *Handler) reconcilePayment(c *gin.Context) {
	var req reconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	orderID, err := h.reconcile.Reconcile(c.Request.Context(), req.InvoiceToken, req.ProviderRef, req.Amount)
	if err != nil {
		respondError(c, err, "Failed to reconcile payment")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "order_id": orderID})
}

type createPromoRequest struct {
	Code        string  `json:"code" binding:"required"`
	Kind        string  `json:"kind" binding:"required"`
	Value       float64 `json:"value" binding:"required"`
	UsesLeft    *int    `json:"uses_left"`
	ValidUntil  *string `json:"valid_until"`
	Description string  `json:"description"`
}

func (h *Handler) createPromoCode(c *gin.Context) {
	var req createPromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	kind := models.DiscountKind(req.Kind)
	if kind != models.DiscountPercent && kind != models.DiscountFixed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be percent or fixed"})
		return
	}

	usesLeft := -1
	if req.UsesLeft != nil {
		usesLeft = *req.UsesLeft
	}

	var validUntil *time.Time
	if req.ValidUntil != nil {
		t, err := time.Parse(time.RFC3339, *req.ValidUntil)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "valid_until must be RFC3339"})
			return
		}
		validUntil = &t
	}

	err := h.store.CreatePromoCode(c.Request.Context(), req.Code, kind, req.Value, usesLeft, validUntil, req.Description)
	if err == store.ErrPromoExists {
		c.JSON(http.StatusConflict, gin.H{"error": "Promo code already exists"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create promo code", "details": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"code": req.Code})
}

func (h *Handler) listPromoCodes(c *gin.Context) {
	codes, err := h.store.GetAllPromoCodes(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list promo codes", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"promo_codes": codes})
}

func (h *Handler) deactivatePromoCode(c *gin.Context) {
	code := c.Param("code")
	err := h.store.DeactivatePromoCode(c.Request.Context(), code)
	if err == store.ErrPromoNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Promo code not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate promo code", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code, "active": false})
}

type linkReferralRequest struct {
	ReferrerID int64 `json:"referrer_id" binding:"required"`
	ReferredID int64 `json:"referred_id" binding:"required"`
}

func (h *Handler) linkReferral(c *gin.Context) {
	var req linkReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	created, err := h.store.LinkReferral(c.Request.Context(), req.ReferrerID, req.ReferredID)
	if err == store.ErrSelfReferral {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Self-referral is not allowed"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to link referral", "details": err.Error()})
		return
	}
	if created {
		util.ReferralLinksTotal.Inc()
	}
	c.JSON(http.StatusOK, gin.H{"created": created})
}

func (h *Handler) referrerStats(c *gin.Context) {
	referrerID, ok := pathID(c, "id")
	if !ok {
		return
	}

	stats, err := h.store.GetReferrerStats(c.Request.Context(), referrerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stats", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

type agreementRequest struct {
	UserID  int64  `json:"user_id" binding:"required"`
	Version string `json:"version" binding:"required"`
}

func (h *Handler) recordAgreement(c *gin.Context) {
	var req agreementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.store.RecordAgreement(c.Request.Context(), req.UserID, req.Version); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record agreement", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": req.UserID, "version": req.Version})
}

func (h *Handler) statistics(c *gin.Context) {
	days := 30
	if v := c.Query("days"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			days = parsed
		}
	}

	stats, err := h.store.GetStatistics(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load statistics", "details": err.Error()})
		return
	}

	services, err := h.store.GetServiceStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load service stats", "details": err.Error()})
		return
	}

	ratings, err := h.store.GetRatingDistribution(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load rating stats", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":               stats,
		"service_stats":       services,
		"rating_distribution": ratings,
	})
}

// respondError maps business-rule rejections to 422 with their reason and
// everything else to 500.
func respondError(c *gin.Context, err error, fallback string) {
	if service.IsRejection(err) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": service.RejectionReason(err)})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": fallback, "details": err.Error()})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return id, true
}

func pagination(c *gin.Context) (limit, offset int) {
	limit = 20
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(c.Request.Method, c.FullPath(), status).Observe(duration)
		util.HTTPRequestsTotal.WithLabelValues(c.Request.Method, c.FullPath(), status).Inc()
	}
}
