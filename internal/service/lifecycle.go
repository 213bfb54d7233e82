package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"medorder-service/config"
	"medorder-service/internal/broker"
	"medorder-service/internal/models"
	"medorder-service/internal/redisclient"
	"medorder-service/internal/store"
	"medorder-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// orderLockTTL bounds how long a crashed session can hold an order lock.
const orderLockTTL = 10 * time.Second

// OrderService drives the order lifecycle: creation, intake, review answers,
// clarifications and cancellation. Mutations of one order are serialized via
// a per-order advisory lock.
type OrderService struct {
	store   *store.Store
	redis   *redisclient.Client
	events  *broker.EventPublisher
	pricing *PricingService
	cfg     config.BusinessConfig
	logger  *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(st *store.Store, redis *redisclient.Client,
	events *broker.EventPublisher, pricing *PricingService,
	cfg config.BusinessConfig) *OrderService {
	return &OrderService{
		store:   st,
		redis:   redis,
		events:  events,
		pricing: pricing,
		cfg:     cfg,
		logger:  util.GetLogger(),
	}
}

// CreateOrderRequest carries everything needed to open an order.
type CreateOrderRequest struct {
	UserID      int64  `json:"user_id" binding:"required"`
	Username    string `json:"username"`
	ServiceType string `json:"service_type"`
	PromoCode   string `json:"promo_code,omitempty"`
	Prepaid     bool   `json:"prepaid,omitempty"`
}

// CreateOrderResponse reports the created order and its resolved pricing.
type CreateOrderResponse struct {
	OrderID        int64              `json:"order_id"`
	Status         models.OrderStatus `json:"status"`
	Quote          *PriceQuote        `json:"quote"`
	PromoRejection string             `json:"promo_rejection,omitempty"`
}

// CreateOrder resolves pricing and opens an order. The promo redemption and
// referral settlement run after the row exists so the ledgers can reference
// the order id; a promo that fails between quote and redemption falls back to
// the undiscounted price instead of failing the order.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	quote, err := s.pricing.Resolve(ctx, req.ServiceType, req.UserID, req.PromoCode)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("unknown_service").Inc()
		return nil, err
	}

	order := &models.Order{
		UserID:            req.UserID,
		Username:          req.Username,
		ServiceType:       quote.ServiceType,
		NeedsDemographics: quote.NeedsDemographics,
		Price:             quote.FinalPrice,
		OriginalPrice:     quote.BasePrice,
		DiscountApplied:   quote.Discount,
		DiscountKind:      quote.DiscountKind,
		AgreementAccepted: true,
		AgreementVersion:  s.cfg.AgreementVersion,
	}
	if quote.PromoCode != "" {
		order.PromoCode = sql.NullString{String: quote.PromoCode, Valid: true}
	}
	if quote.ReferrerID != 0 {
		order.ReferrerID = sql.NullInt64{Int64: quote.ReferrerID, Valid: true}
	}

	if req.Prepaid {
		err = s.store.CreatePrepaidOrder(ctx, order)
	} else {
		err = s.store.CreatePendingOrder(ctx, order)
	}
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", order.UserID),
		zap.String("service_type", order.ServiceType),
		zap.Int64("price", order.Price))

	resp := &CreateOrderResponse{
		OrderID:        order.ID,
		Status:         order.Status,
		Quote:          quote,
		PromoRejection: quote.PromoRejection,
	}

	switch quote.DiscountKind {
	case models.DiscountPromo:
		if err := s.redeemQuotedPromo(ctx, order, quote, resp); err != nil {
			return nil, err
		}
	case models.DiscountReferral:
		_, ok, err := s.store.SettleReferralDiscount(ctx, order.UserID, order.ID, quote.Discount)
		if err != nil {
			s.logger.Error("Referral settlement failed",
				zap.Int64("order_id", order.ID), zap.Error(err))
		}
		// The ledger settles the referred-party discount exactly once. If it
		// refuses (already settled on an earlier order, or the write failed),
		// this order pays full price with clean bookkeeping.
		if err != nil || !ok {
			if revertErr := s.store.RevertOrderDiscount(ctx, order.ID, quote.BasePrice); revertErr != nil {
				return nil, fmt.Errorf("failed to revert referral price: %w", revertErr)
			}
			resp.Quote.Discount = 0
			resp.Quote.DiscountKind = models.DiscountNone
			resp.Quote.FinalPrice = quote.BasePrice
		}
	}

	return resp, nil
}

// redeemQuotedPromo performs the atomic redemption the quote promised. If the
// code was exhausted or raced away since resolution, the order survives at
// the base price.
func (s *OrderService) redeemQuotedPromo(ctx context.Context, order *models.Order,
	quote *PriceQuote, resp *CreateOrderResponse) error {
	_, _, err := s.store.RedeemPromoCode(ctx, quote.PromoCode, order.UserID, order.ID, quote.BasePrice)
	if err == nil {
		util.PromoRedemptionsTotal.Inc()
		return nil
	}

	reason := promoRejectionReason(err)
	if !IsPromoRejection(err) {
		return fmt.Errorf("promo redemption failed: %w", err)
	}

	util.PromoRejectionsTotal.WithLabelValues(reason).Inc()
	s.logger.Warn("Promo redemption lost after quote",
		zap.Int64("order_id", order.ID),
		zap.String("code", quote.PromoCode),
		zap.String("reason", reason))

	if err := s.store.RevertOrderDiscount(ctx, order.ID, quote.BasePrice); err != nil {
		return fmt.Errorf("failed to revert promo price: %w", err)
	}
	resp.PromoRejection = reason
	resp.Quote.Discount = 0
	resp.Quote.DiscountKind = models.DiscountNone
	resp.Quote.FinalPrice = quote.BasePrice
	return nil
}

// IsPromoRejection reports whether a redemption error is a ledger rule, not
// a persistence failure.
func IsPromoRejection(err error) bool {
	switch {
	case err == store.ErrPromoNotFound, err == store.ErrPromoExhausted, err == store.ErrPromoAlreadyUsed:
		return true
	}
	return false
}

// IntakeRequest is the payload attached after payment.
type IntakeRequest struct {
	Age           *int     `json:"age,omitempty"`
	Sex           *string  `json:"sex,omitempty"`
	Questions     string   `json:"questions"`
	Documents     []string `json:"documents"`
	DocumentKinds []string `json:"document_kinds"`
}

// AttachIntake stores demographics, questions and documents on a paid order
// and hands it to the review queue.
func (s *OrderService) AttachIntake(ctx context.Context, orderID int64, req *IntakeRequest) error {
	ctx, span := util.StartSpan(ctx, "OrderService.AttachIntake")
	defer span.End()

	if len(req.Documents) != len(req.DocumentKinds) {
		return Reject("Каждому документу нужен тип")
	}

	unlock, err := s.lockOrder(ctx, orderID)
	if err != nil {
		return err
	}
	defer unlock()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return Reject("Заказ не найден")
	}
	if order.Status.IsTerminal() {
		return Reject("Заказ отменен")
	}

	var questions *string
	if req.Questions != "" {
		questions = &req.Questions
	}

	var docs, kinds *string
	if len(req.Documents) > 0 {
		d, err := json.Marshal(req.Documents)
		if err != nil {
			return fmt.Errorf("failed to encode documents: %w", err)
		}
		k, err := json.Marshal(req.DocumentKinds)
		if err != nil {
			return fmt.Errorf("failed to encode document kinds: %w", err)
		}
		ds, ks := string(d), string(k)
		docs, kinds = &ds, &ks
	}

	if err := s.store.UpdateOrderDetails(ctx, orderID, req.Age, req.Sex, questions, docs, kinds); err != nil {
		return fmt.Errorf("failed to store intake: %w", err)
	}

	// A paid order with intake attached enters the review queue.
	if order.Status == models.OrderStatusPaid {
		if _, err := s.store.UpdateOrderStatus(ctx, orderID, models.OrderStatusPaid, models.OrderStatusProcessing); err != nil {
			return fmt.Errorf("failed to queue order for review: %w", err)
		}
	}

	s.logger.Info("Intake attached", zap.Int64("order_id", orderID))
	return nil
}

// BeginInvoice issues a fresh opaque token for a payment attempt and stores
// it on the order. Each attempt gets its own token.
func (s *OrderService) BeginInvoice(ctx context.Context, orderID int64) (string, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return "", Reject("Заказ не найден")
	}
	if order.PaymentStatus == models.PaymentStatusSuccess {
		return "", Reject("Заказ уже оплачен")
	}

	token := uuid.New().String()
	if err := s.store.SetInvoiceToken(ctx, orderID, token); err != nil {
		return "", fmt.Errorf("failed to store invoice token: %w", err)
	}

	s.logger.Info("Invoice issued",
		zap.Int64("order_id", orderID),
		zap.Int64("price", order.Price))
	return token, nil
}

// ClarifyCheck decides whether a user may add a clarification to an order.
// Orders flagged needs_new_docs accept clarifications without a deadline;
// completed orders require a live window. Returns nil when allowed.
func ClarifyCheck(order *models.Order, userID int64, now time.Time) error {
	if order == nil {
		return Reject("Заказ не найден")
	}
	if order.UserID != userID {
		return Reject("Это не ваш заказ")
	}
	if order.Status != models.OrderStatusCompleted && order.Status != models.OrderStatusNeedsNewDocs {
		return Reject("Заказ еще не завершен")
	}
	if order.Status == models.OrderStatusNeedsNewDocs {
		return nil
	}
	if !order.CanClarifyUntil.Valid {
		return Reject("Время для уточнений истекло")
	}
	if now.After(order.CanClarifyUntil.Time) {
		return Reject(fmt.Sprintf("Время для уточнений истекло. Вы могли задавать вопросы до %s",
			order.CanClarifyUntil.Time.Format("02.01.2006 15:04")))
	}
	return nil
}

// ClarificationRequest is a user follow-up message.
type ClarificationRequest struct {
	UserID      int64  `json:"user_id" binding:"required"`
	Text        string `json:"text" binding:"required"`
	MessageType string `json:"message_type,omitempty"`
	FileID      string `json:"file_id,omitempty"`
	RepliedToID int64  `json:"replied_to_id,omitempty"`
}

// RequestClarification appends a user question to a completed order's thread,
// gated by the clarification window.
func (s *OrderService) RequestClarification(ctx context.Context, orderID int64,
	req *ClarificationRequest) (int64, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.RequestClarification")
	defer span.End()

	unlock, err := s.lockOrder(ctx, orderID)
	if err != nil {
		return 0, err
	}
	defer unlock()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		util.ClarificationsRejectedTotal.WithLabelValues("not_found").Inc()
		return 0, Reject("Заказ не найден")
	}

	if err := ClarifyCheck(order, req.UserID, time.Now()); err != nil {
		util.ClarificationsRejectedTotal.WithLabelValues("window").Inc()
		return 0, err
	}

	c := &models.Clarification{
		OrderID:     orderID,
		UserID:      req.UserID,
		MessageText: req.Text,
		MessageType: messageTypeOrText(req.MessageType),
		IsFromUser:  true,
	}
	if req.FileID != "" {
		c.FileID = sql.NullString{String: req.FileID, Valid: true}
	}
	if req.RepliedToID != 0 {
		c.RepliedToID = sql.NullInt64{Int64: req.RepliedToID, Valid: true}
	}

	id, err := s.store.AddClarification(ctx, c)
	if err != nil {
		return 0, fmt.Errorf("failed to add clarification: %w", err)
	}

	util.ClarificationsTotal.WithLabelValues("user").Inc()
	s.logger.Info("Clarification added",
		zap.Int64("order_id", orderID),
		zap.Int64("clarification_id", id))

	s.publishClarification(ctx, orderID, id, req.UserID, true)
	return id, nil
}

// AdminAnswer records a reviewer's answer: the order becomes completed and a
// fresh clarification window opens.
func (s *OrderService) AdminAnswer(ctx context.Context, orderID, adminID int64, text string) error {
	ctx, span := util.StartSpan(ctx, "OrderService.AdminAnswer")
	defer span.End()

	unlock, err := s.lockOrder(ctx, orderID)
	if err != nil {
		return err
	}
	defer unlock()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return Reject("Заказ не найден")
	}
	if !models.CanTransition(order.Status, models.OrderStatusCompleted) {
		util.TransitionsRejectedTotal.WithLabelValues(string(order.Status), string(models.OrderStatusCompleted)).Inc()
		return Reject(fmt.Sprintf("Заказ в статусе %s нельзя завершить", order.Status))
	}

	clarifyUntil := time.Now().Add(time.Duration(s.cfg.ClarificationWindowHours) * time.Hour)
	if err := s.store.MarkOrderCompleted(ctx, orderID, adminID, clarifyUntil); err != nil {
		return fmt.Errorf("failed to complete order: %w", err)
	}

	c := &models.Clarification{
		OrderID:     orderID,
		UserID:      adminID,
		MessageText: text,
		MessageType: "text",
		IsFromUser:  false,
	}
	if id, err := s.store.AddClarification(ctx, c); err != nil {
		// The completion committed; the thread entry is best-effort.
		s.logger.Error("Failed to log answer in thread",
			zap.Int64("order_id", orderID), zap.Error(err))
	} else {
		util.ClarificationsTotal.WithLabelValues("admin").Inc()
		s.publishClarification(ctx, orderID, id, adminID, false)
	}

	util.OrdersCompletedTotal.Inc()
	s.logger.Info("Order completed",
		zap.Int64("order_id", orderID),
		zap.Int64("admin_id", adminID),
		zap.Time("can_clarify_until", clarifyUntil))

	event := &models.OrderCompletedEvent{
		BaseEvent:       newBaseEvent(models.EventTypeOrderCompleted),
		OrderID:         orderID,
		UserID:          order.UserID,
		AdminID:         adminID,
		CanClarifyUntil: clarifyUntil,
	}
	if err := s.events.PublishOrderCompleted(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCompleted event", zap.Error(err))
	}
	return nil
}

// FlagNeedsDocs marks an order for rework. Clarification becomes allowed
// without a deadline until the reviewer answers again.
func (s *OrderService) FlagNeedsDocs(ctx context.Context, orderID, adminID int64, reason string) error {
	ctx, span := util.StartSpan(ctx, "OrderService.FlagNeedsDocs")
	defer span.End()

	unlock, err := s.lockOrder(ctx, orderID)
	if err != nil {
		return err
	}
	defer unlock()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return Reject("Заказ не найден")
	}
	if !models.CanTransition(order.Status, models.OrderStatusNeedsNewDocs) {
		util.TransitionsRejectedTotal.WithLabelValues(string(order.Status), string(models.OrderStatusNeedsNewDocs)).Inc()
		return Reject(fmt.Sprintf("Заказ в статусе %s нельзя вернуть на доработку", order.Status))
	}

	message := fmt.Sprintf("Админ запросил новые документы: %s", reason)
	if err := s.store.MarkOrderNeedsNewDocs(ctx, orderID, adminID, message); err != nil {
		return fmt.Errorf("failed to flag order: %w", err)
	}

	s.logger.Info("Order flagged for new documents",
		zap.Int64("order_id", orderID),
		zap.String("reason", reason))

	event := &models.OrderNeedsNewDocsEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderNeedsNewDocs),
		OrderID:   orderID,
		UserID:    order.UserID,
		Reason:    reason,
	}
	if err := s.events.PublishOrderNeedsNewDocs(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderNeedsNewDocs event", zap.Error(err))
	}
	return nil
}

// Cancel moves an order to the terminal cancelled state.
func (s *OrderService) Cancel(ctx context.Context, orderID int64, reason string) error {
	ctx, span := util.StartSpan(ctx, "OrderService.Cancel")
	defer span.End()

	unlock, err := s.lockOrder(ctx, orderID)
	if err != nil {
		return err
	}
	defer unlock()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return Reject("Заказ не найден")
	}
	if order.Status.IsTerminal() {
		return Reject("Заказ уже отменен")
	}

	ok, err := s.store.UpdateOrderStatus(ctx, orderID, order.Status, models.OrderStatusCancelled)
	if err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}
	if !ok {
		return Reject("Заказ изменился, попробуйте еще раз")
	}

	util.OrdersCancelledTotal.Inc()
	s.logger.Info("Order cancelled", zap.Int64("order_id", orderID), zap.String("reason", reason))

	event := &models.OrderCancelledEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderCancelled),
		OrderID:   orderID,
		UserID:    order.UserID,
		Reason:    reason,
	}
	if err := s.events.PublishOrderCancelled(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
	}
	return nil
}

// SetRating stores a 1..5 rating, once per order.
func (s *OrderService) SetRating(ctx context.Context, orderID int64, rating int) error {
	if rating < 1 || rating > 5 {
		return Reject("Оценка должна быть от 1 до 5")
	}
	if _, err := s.store.GetOrderByID(ctx, orderID); err != nil {
		return Reject("Заказ не найден")
	}
	if err := s.store.SaveRating(ctx, orderID, rating); err != nil {
		return Reject("Заказ уже оценен")
	}
	s.logger.Info("Rating saved", zap.Int64("order_id", orderID), zap.Int("rating", rating))
	return nil
}

// GetOrder retrieves an order and its clarification thread.
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, []models.Clarification, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	thread, err := s.store.GetClarifications(ctx, orderID, 50)
	if err != nil {
		return nil, nil, err
	}
	return order, thread, nil
}

// lockOrder serializes mutations of one order across concurrent sessions.
func (s *OrderService) lockOrder(ctx context.Context, orderID int64) (func(), error) {
	ok, err := s.redis.AcquireOrderLock(ctx, orderID, orderLockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire order lock: %w", err)
	}
	if !ok {
		return nil, Reject("Заказ обрабатывается, попробуйте еще раз")
	}
	return func() {
		if err := s.redis.ReleaseOrderLock(context.Background(), orderID); err != nil {
			s.logger.Warn("Failed to release order lock",
				zap.Int64("order_id", orderID), zap.Error(err))
		}
	}, nil
}

func (s *OrderService) publishClarification(ctx context.Context, orderID, clarificationID,
	userID int64, fromUser bool) {
	event := &models.ClarificationAddedEvent{
		BaseEvent:       newBaseEvent(models.EventTypeClarificationAdded),
		OrderID:         orderID,
		ClarificationID: clarificationID,
		UserID:          userID,
		IsFromUser:      fromUser,
	}
	if err := s.events.PublishClarificationAdded(ctx, event); err != nil {
		s.logger.Error("Failed to publish ClarificationAdded event", zap.Error(err))
	}
}

func messageTypeOrText(t string) string {
	if t == "" {
		return "text"
	}
	return t
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
