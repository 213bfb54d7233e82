package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"medorder-service/internal/models"
)

// CreatePendingOrder creates an order placeholder before payment. The price
// is locked at creation time from the resolver's output.
func (s *Store) CreatePendingOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (user_id, username, service_type, needs_demographics,
			status, price, original_price, discount_applied, discount_kind,
			promo_code, referrer_id, payment_status, agreement_accepted, agreement_version)
		VALUES ($1, $2, $3, $4, 'pending', $5, $6, $7, $8, $9, $10, 'pending', $11, $12)
		RETURNING id, status, payment_status, created_at, updated_at`

	return s.db.GetContext(ctx, order, query,
		order.UserID, order.Username, order.ServiceType, order.NeedsDemographics,
		order.Price, order.OriginalPrice, order.DiscountApplied, order.DiscountKind,
		order.PromoCode, order.ReferrerID, order.AgreementAccepted, order.AgreementVersion)
}

// CreatePrepaidOrder creates an order after payment has already been taken
// by the provider (pay-first flow).
func (s *Store) CreatePrepaidOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (user_id, username, service_type, needs_demographics,
			status, price, original_price, discount_applied, discount_kind,
			promo_code, referrer_id, payment_status, agreement_accepted, agreement_version)
		VALUES ($1, $2, $3, $4, 'paid', $5, $6, $7, $8, $9, $10, 'success', TRUE, $11)
		RETURNING id, status, payment_status, created_at, updated_at`

	return s.db.GetContext(ctx, order, query,
		order.UserID, order.Username, order.ServiceType, order.NeedsDemographics,
		order.Price, order.OriginalPrice, order.DiscountApplied, order.DiscountKind,
		order.PromoCode, order.ReferrerID, order.AgreementVersion)
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByInvoiceToken retrieves an order by its invoice token.
// Returns nil without error when no order carries the token.
func (s *Store) GetOrderByInvoiceToken(ctx context.Context, token string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE invoice_token = $1", token)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrderDetails stores the intake payload submitted after payment.
// Documents and document type tags travel together.
func (s *Store) UpdateOrderDetails(ctx context.Context, orderID int64, age *int,
	sex *string, questions *string, documents, documentTypes *string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET age = COALESCE($1, age),
			sex = COALESCE($2, sex),
			questions = COALESCE($3, questions),
			documents = COALESCE($4, documents),
			document_types = COALESCE($5, document_types),
			updated_at = NOW()
		WHERE id = $6`,
		age, sex, questions, documents, documentTypes, orderID)
	return err
}

// UpdateOrderStatus moves an order to a new status, guarded by the expected
// current status so concurrent transitions cannot interleave. Returns false
// when the guard did not match.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64,
	from, to models.OrderStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		to, orderID, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkOrderCompleted transitions an order to completed in one statement:
// status, answered_at, reviewing admin and the clarification deadline.
func (s *Store) MarkOrderCompleted(ctx context.Context, orderID, adminID int64,
	clarifyUntil time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, answered_at = NOW(), admin_id = $2,
			can_clarify_until = $3, updated_at = NOW()
		WHERE id = $4`,
		models.OrderStatusCompleted, adminID, clarifyUntil, orderID)
	return err
}

// MarkOrderNeedsNewDocs flags an order for rework and logs the admin request
// as a system clarification entry, atomically.
func (s *Store) MarkOrderNeedsNewDocs(ctx context.Context, orderID, adminID int64, reason string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2`,
		models.OrderStatusNeedsNewDocs, orderID)
	if err != nil {
		return fmt.Errorf("failed to flag order: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO clarifications (order_id, user_id, message_text, is_from_user, is_admin_request)
		VALUES ($1, $2, $3, FALSE, TRUE)`,
		orderID, adminID, reason)
	if err != nil {
		return fmt.Errorf("failed to log admin request: %w", err)
	}

	return tx.Commit()
}

// SetInvoiceToken stores the opaque token of a new payment attempt.
func (s *Store) SetInvoiceToken(ctx context.Context, orderID int64, token string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET invoice_token = $1, updated_at = NOW()
		WHERE id = $2`,
		token, orderID)
	return err
}

// ChangeOrderPrice updates the charged price before payment.
func (s *Store) ChangeOrderPrice(ctx context.Context, orderID, newPrice int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET price = $1, updated_at = NOW()
		WHERE id = $2`,
		newPrice, orderID)
	return err
}

// RevertOrderDiscount returns an order to its undiscounted price and clears
// the discount bookkeeping in the same statement, so price, discount_applied,
// discount_kind and promo_code never disagree. The referrer link survives:
// the bonus on payment is independent of whether this order carried the
// referred-party discount.
func (s *Store) RevertOrderDiscount(ctx context.Context, orderID, basePrice int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET price = $1, discount_applied = 0, discount_kind = 'none',
			promo_code = NULL, updated_at = NOW()
		WHERE id = $2`,
		basePrice, orderID)
	return err
}

// SaveRating stores a 1..5 rating once per order, in the ratings table and
// denormalized onto the order row.
func (s *Store) SaveRating(ctx context.Context, orderID int64, rating int) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO ratings (order_id, rating)
		VALUES ($1, $2)
		ON CONFLICT (order_id) DO NOTHING`,
		orderID, rating)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("order %d is already rated", orderID)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders SET rating = $1 WHERE id = $2`,
		rating, orderID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// MarkTaxReported flags the order and its successful payment as reported.
func (s *Store) MarkTaxReported(ctx context.Context, orderID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE payments SET tax_reported = TRUE
		WHERE order_id = $1 AND status = $2`,
		orderID, models.PaymentStatusSuccess)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders SET tax_reported = TRUE WHERE id = $1`,
		orderID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// GetUserOrders retrieves a user's orders, newest first.
func (s *Store) GetUserOrders(ctx context.Context, userID int64, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders, `
		SELECT * FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	return orders, err
}

// GetAllOrders retrieves all orders, newest first.
func (s *Store) GetAllOrders(ctx context.Context, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders, `
		SELECT * FROM orders
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`,
		limit, offset)
	return orders, err
}

// GetActiveOrders retrieves orders awaiting staff work, oldest first so the
// queue is triaged FIFO.
func (s *Store) GetActiveOrders(ctx context.Context, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders, `
		SELECT * FROM orders
		WHERE status IN ('pending', 'processing', 'awaiting_clarification', 'needs_new_docs')
		ORDER BY created_at ASC
		LIMIT $1`,
		limit)
	return orders, err
}
