package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"medorder-service/internal/models"
)

// ErrUnknownInvoiceToken rejects reconciliation for a token no order carries.
var ErrUnknownInvoiceToken = errors.New("no order matches the invoice token")

// ReconcileResult reports the outcome of one reconciliation transaction.
type ReconcileResult struct {
	Order     *models.Order
	PaymentID int64
	Duplicate bool
	Referral  *models.Referral
}

// ReconcilePayment confirms a payment against its order in one transaction:
// the order row is locked, the payment is appended, the order moves to paid,
// and a pending referral (if any) is awarded the given bonus. Either all of
// it commits or none does.
//
// A token whose payment already succeeded returns Duplicate=true with no
// writes, so provider webhook retries are harmless.
func (s *Store) ReconcilePayment(ctx context.Context, invoiceToken, providerPaymentID,
	currency string, amount, referrerBonus int64) (*ReconcileResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var order models.Order
	err = tx.GetContext(ctx, &order, `
		SELECT * FROM orders WHERE invoice_token = $1 FOR UPDATE`,
		invoiceToken)
	if err == sql.ErrNoRows {
		return nil, ErrUnknownInvoiceToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}

	var existing models.Payment
	err = tx.GetContext(ctx, &existing, `
		SELECT * FROM payments
		WHERE invoice_token = $1 AND status = $2
		LIMIT 1`,
		invoiceToken, models.PaymentStatusSuccess)
	if err == nil {
		return &ReconcileResult{Order: &order, PaymentID: existing.ID, Duplicate: true}, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to check existing payment: %w", err)
	}

	// Only orders still waiting on payment move to paid; an order answered
	// before the confirmation arrived keeps its completion and deadline.
	_, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = $1,
			status = CASE WHEN status IN ('pending', 'processing') THEN $2 ELSE status END,
			updated_at = NOW()
		WHERE id = $3`,
		models.PaymentStatusSuccess, models.OrderStatusPaid, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	var paymentID int64
	err = tx.GetContext(ctx, &paymentID, `
		INSERT INTO payments (order_id, amount, currency, status, provider_payment_id, invoice_token)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		order.ID, amount, currency, models.PaymentStatusSuccess, providerPaymentID, invoiceToken)
	if err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	result := &ReconcileResult{Order: &order, PaymentID: paymentID}

	if order.ReferrerID.Valid {
		result.Referral, err = awardReferralBonusTx(ctx, tx, order.UserID, order.ID, referrerBonus)
		if err != nil {
			return nil, fmt.Errorf("failed to award referral bonus: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	order.PaymentStatus = models.PaymentStatusSuccess
	if order.Status == models.OrderStatusPending || order.Status == models.OrderStatusProcessing {
		order.Status = models.OrderStatusPaid
	}
	return result, nil
}
