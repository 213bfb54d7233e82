package store

import (
	"context"
	"database/sql"
	"fmt"

	"medorder-service/internal/models"
)

// GetPaymentByOrderID retrieves the latest payment for an order
func (s *Store) GetPaymentByOrderID(ctx context.Context, orderID int64) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment, `
		SELECT * FROM payments
		WHERE order_id = $1
		ORDER BY payment_date DESC
		LIMIT 1`,
		orderID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("payment not found for order: %d", orderID)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetSuccessfulPaymentByToken finds an already-confirmed payment for an
// invoice token. Returns nil when the token has not been reconciled yet.
func (s *Store) GetSuccessfulPaymentByToken(ctx context.Context, token string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment, `
		SELECT * FROM payments
		WHERE invoice_token = $1 AND status = $2
		LIMIT 1`,
		token, models.PaymentStatusSuccess)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}
