package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"medorder-service/internal/models"
)

// Promo ledger rejections. Callers turn these into user-facing reasons.
var (
	ErrPromoNotFound    = errors.New("promo code not found or inactive")
	ErrPromoExhausted   = errors.New("promo code has no uses left")
	ErrPromoAlreadyUsed = errors.New("promo code already used by this user")
	ErrPromoExists      = errors.New("promo code already exists")
)

const uniqueViolation = "23505"

// CreatePromoCode registers a new code. Codes are stored upper-cased so
// lookups are case-insensitive.
func (s *Store) CreatePromoCode(ctx context.Context, code string, kind models.DiscountKind,
	value float64, usesLeft int, validUntil *time.Time, description string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO promo_codes (code, discount_kind, discount_value, uses_left, valid_until, description)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		strings.ToUpper(code), kind, value, usesLeft, validUntil, description)
	if isUniqueViolation(err) {
		return ErrPromoExists
	}
	return err
}

// GetPromoCode returns a code only if it is active and not expired.
func (s *Store) GetPromoCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var promo models.PromoCode
	err := s.db.GetContext(ctx, &promo, `
		SELECT * FROM promo_codes
		WHERE code = $1 AND is_active = TRUE
		AND (valid_until IS NULL OR valid_until > NOW())`,
		strings.ToUpper(code))
	if err == sql.ErrNoRows {
		return nil, ErrPromoNotFound
	}
	if err != nil {
		return nil, err
	}
	return &promo, nil
}

// HasUsedPromo reports whether a user already redeemed a code.
func (s *Store) HasUsedPromo(ctx context.Context, userID int64, code string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM used_promo_codes
			WHERE user_id = $1 AND promo_code = $2
		)`, userID, strings.ToUpper(code))
	return exists, err
}

// GetAllPromoCodes lists every code, newest first.
func (s *Store) GetAllPromoCodes(ctx context.Context) ([]models.PromoCode, error) {
	var out []models.PromoCode
	err := s.db.SelectContext(ctx, &out, `
		SELECT * FROM promo_codes ORDER BY created_at DESC`)
	return out, err
}

// RedeemPromoCode applies a code to an order. The promo row is locked for the
// duration of the transaction so check-then-decrement cannot oversell, and the
// (user_id, promo_code) unique constraint enforces one redemption per user.
func (s *Store) RedeemPromoCode(ctx context.Context, code string, userID, orderID,
	basePrice int64) (discount, finalPrice int64, err error) {
	code = strings.ToUpper(code)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, basePrice, err
	}
	defer tx.Rollback()

	var promo models.PromoCode
	err = tx.GetContext(ctx, &promo, `
		SELECT * FROM promo_codes
		WHERE code = $1 AND is_active = TRUE
		AND (valid_until IS NULL OR valid_until > NOW())
		FOR UPDATE`,
		code)
	if err == sql.ErrNoRows {
		return 0, basePrice, ErrPromoNotFound
	}
	if err != nil {
		return 0, basePrice, fmt.Errorf("failed to lock promo code: %w", err)
	}

	if promo.UsesLeft == 0 {
		return 0, basePrice, ErrPromoExhausted
	}

	discount = PromoDiscount(promo.DiscountKind, promo.DiscountValue, basePrice)
	finalPrice = models.FinalPrice(basePrice, discount)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO used_promo_codes (user_id, promo_code, order_id, discount_amount)
		VALUES ($1, $2, $3, $4)`,
		userID, code, orderID, discount)
	if isUniqueViolation(err) {
		return 0, basePrice, ErrPromoAlreadyUsed
	}
	if err != nil {
		return 0, basePrice, fmt.Errorf("failed to record redemption: %w", err)
	}

	if promo.UsesLeft > 0 {
		_, err = tx.ExecContext(ctx, `
			UPDATE promo_codes SET uses_left = uses_left - 1
			WHERE id = $1 AND uses_left > 0`,
			promo.ID)
		if err != nil {
			return 0, basePrice, fmt.Errorf("failed to decrement uses: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, basePrice, err
	}
	return discount, finalPrice, nil
}

// DeactivatePromoCode turns a code off without deleting it.
func (s *Store) DeactivatePromoCode(ctx context.Context, code string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE promo_codes SET is_active = FALSE WHERE code = $1`,
		strings.ToUpper(code))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPromoNotFound
	}
	return nil
}

// PromoDiscount computes the discount a promo definition yields for a base
// price: percent values truncate to whole currency units, fixed values are
// capped at the base price.
func PromoDiscount(kind models.DiscountKind, value float64, basePrice int64) int64 {
	switch kind {
	case models.DiscountPercent:
		return models.PercentOf(basePrice, value)
	default:
		fixed := int64(value)
		if fixed > basePrice {
			return basePrice
		}
		return fixed
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}
