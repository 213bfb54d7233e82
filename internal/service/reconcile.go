package service

import (
	"context"
	"errors"
	"time"

	"medorder-service/config"
	"medorder-service/internal/broker"
	"medorder-service/internal/models"
	"medorder-service/internal/redisclient"
	"medorder-service/internal/store"
	"medorder-service/internal/util"

	"go.uber.org/zap"
)

// amountTolerance is the allowed drift between expected and received amounts
// in currency subunits.
const amountTolerance = 1

// invoiceSeenTTL bounds how long a reconciled token stays in the fast-path
// duplicate cache.
const invoiceSeenTTL = 24 * time.Hour

// ReconcileService matches provider payment confirmations to orders.
type ReconcileService struct {
	store  *store.Store
	redis  *redisclient.Client
	events *broker.EventPublisher
	cfg    config.BusinessConfig
	logger *zap.Logger
}

// NewReconcileService creates a new reconciliation service
func NewReconcileService(st *store.Store, redis *redisclient.Client,
	events *broker.EventPublisher, cfg config.BusinessConfig) *ReconcileService {
	return &ReconcileService{
		store:  st,
		redis:  redis,
		events: events,
		cfg:    cfg,
		logger: util.GetLogger(),
	}
}

// Reconcile confirms a payment against the order carrying the invoice token.
// Amount is in currency subunits. The confirmation, payment record and
// referral award commit as one transaction; replaying the same token reports
// success without side effects.
func (s *ReconcileService) Reconcile(ctx context.Context, invoiceToken,
	providerRef string, amount int64) (int64, error) {
	ctx, span := util.StartSpan(ctx, "ReconcileService.Reconcile")
	defer span.End()

	start := time.Now()
	defer func() {
		util.ReconcileLatency.Observe(time.Since(start).Seconds())
	}()

	// Fast path for webhook retries. The cache is advisory only; the
	// transaction below re-checks against the payment log.
	if seen, err := s.redis.WasInvoiceSeen(ctx, invoiceToken); err == nil && seen {
		if payment, err := s.store.GetSuccessfulPaymentByToken(ctx, invoiceToken); err == nil && payment != nil {
			util.PaymentsDuplicateTotal.Inc()
			s.logger.Info("Duplicate reconciliation short-circuited",
				zap.String("invoice_token", invoiceToken),
				zap.Int64("order_id", payment.OrderID))
			return payment.OrderID, nil
		}
	}

	// The bonus only applies when the order carries a referrer; the store
	// ignores it otherwise. Computed from the amount actually charged.
	bonus := models.PercentOf(amount/s.cfg.CurrencySubunitFactor, s.cfg.ReferrerBonusPercent)

	result, err := s.store.ReconcilePayment(ctx, invoiceToken, providerRef, s.cfg.Currency, amount, bonus)
	if errors.Is(err, store.ErrUnknownInvoiceToken) {
		s.logger.Error("Reconciliation for unknown invoice token",
			zap.String("invoice_token", invoiceToken))
		return 0, Reject("Платеж не найден")
	}
	if err != nil {
		return 0, err
	}

	order := result.Order

	if result.Duplicate {
		util.PaymentsDuplicateTotal.Inc()
		s.logger.Info("Duplicate reconciliation ignored",
			zap.String("invoice_token", invoiceToken),
			zap.Int64("order_id", order.ID))
		return order.ID, nil
	}

	// The provider amount is authoritative once charged; a drift beyond
	// tolerance is an operational signal, not a rejection.
	expected := order.Price * s.cfg.CurrencySubunitFactor
	if diff := amount - expected; diff > amountTolerance || diff < -amountTolerance {
		util.PaymentAmountMismatchTotal.Inc()
		s.logger.Warn("Payment amount mismatch",
			zap.Int64("order_id", order.ID),
			zap.Int64("expected", expected),
			zap.Int64("received", amount))
	}

	util.PaymentsReconciledTotal.Inc()
	util.OrdersPaidTotal.Inc()
	s.logger.Info("Payment reconciled",
		zap.Int64("order_id", order.ID),
		zap.Int64("payment_id", result.PaymentID),
		zap.Int64("amount", amount))

	if err := s.redis.MarkInvoiceSeen(ctx, invoiceToken, invoiceSeenTTL); err != nil {
		s.logger.Warn("Failed to cache invoice token", zap.Error(err))
	}

	paidEvent := &models.OrderPaidEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderPaid),
		OrderID:     order.ID,
		UserID:      order.UserID,
		PaymentID:   result.PaymentID,
		Amount:      amount,
		ServiceType: order.ServiceType,
	}
	if err := s.events.PublishOrderPaid(ctx, paidEvent); err != nil {
		s.logger.Error("Failed to publish OrderPaid event", zap.Error(err))
	}

	if result.Referral != nil {
		util.ReferralAwardsTotal.Inc()
		s.logger.Info("Referral bonus awarded",
			zap.Int64("referral_id", result.Referral.ID),
			zap.Int64("referrer_id", result.Referral.ReferrerID),
			zap.Int64("bonus", bonus))

		awardEvent := &models.ReferralAwardedEvent{
			BaseEvent:   newBaseEvent(models.EventTypeReferralAwarded),
			ReferralID:  result.Referral.ID,
			ReferrerID:  result.Referral.ReferrerID,
			ReferredID:  result.Referral.ReferredID,
			OrderID:     order.ID,
			BonusAmount: bonus,
		}
		if err := s.events.PublishReferralAwarded(ctx, awardEvent); err != nil {
			s.logger.Error("Failed to publish ReferralAwarded event", zap.Error(err))
		}
	}

	return order.ID, nil
}
