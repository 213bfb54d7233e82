package store

import (
	"context"
	"fmt"

	"medorder-service/internal/models"
)

// AddClarification appends a message to an order's thread. A genuine user
// question also bumps the clarification counter and moves the order to
// awaiting_clarification, in the same transaction.
func (s *Store) AddClarification(ctx context.Context, c *models.Clarification) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if c.IsFromUser && !c.IsAdminRequest {
		_, err = tx.ExecContext(ctx, `
			UPDATE orders
			SET clarification_count = clarification_count + 1,
				last_clarification_at = NOW(),
				status = $1,
				updated_at = NOW()
			WHERE id = $2`,
			models.OrderStatusAwaitingClarification, c.OrderID)
		if err != nil {
			return 0, fmt.Errorf("failed to bump clarification counter: %w", err)
		}
	}

	var id int64
	err = tx.GetContext(ctx, &id, `
		INSERT INTO clarifications (order_id, user_id, message_text, message_type,
			file_id, is_from_user, replied_to_clarification_id, is_admin_request)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		c.OrderID, c.UserID, c.MessageText, c.MessageType,
		c.FileID, c.IsFromUser, c.RepliedToID, c.IsAdminRequest)
	if err != nil {
		return 0, fmt.Errorf("failed to insert clarification: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// GetClarifications returns an order's thread in send order.
func (s *Store) GetClarifications(ctx context.Context, orderID int64, limit int) ([]models.Clarification, error) {
	var out []models.Clarification
	err := s.db.SelectContext(ctx, &out, `
		SELECT * FROM clarifications
		WHERE order_id = $1
		ORDER BY sent_at ASC
		LIMIT $2`,
		orderID, limit)
	return out, err
}
