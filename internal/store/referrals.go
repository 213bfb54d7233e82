package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"medorder-service/internal/models"
)

// ErrSelfReferral rejects linking a user to themselves.
var ErrSelfReferral = errors.New("user cannot refer themselves")

// LinkReferral records a referrer→referred relationship. Repeat invitations
// are idempotent: the call reports false without error when the pair exists.
func (s *Store) LinkReferral(ctx context.Context, referrerID, referredID int64) (bool, error) {
	if referrerID == referredID {
		return false, ErrSelfReferral
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO referrals (referrer_id, referred_id)
		VALUES ($1, $2)
		ON CONFLICT (referrer_id, referred_id) DO NOTHING`,
		referrerID, referredID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetPendingReferral returns the pending referral naming this user as
// referred, or nil when none exists.
func (s *Store) GetPendingReferral(ctx context.Context, referredID int64) (*models.Referral, error) {
	var ref models.Referral
	err := s.db.GetContext(ctx, &ref, `
		SELECT * FROM referrals
		WHERE referred_id = $1 AND status = 'pending'`,
		referredID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// SettleReferralDiscount freezes the referred-party discount on the pending
// referral at order-creation time. The referred_discount = 0 guard makes the
// settlement exactly-once.
func (s *Store) SettleReferralDiscount(ctx context.Context, referredID, orderID,
	discount int64) (referrerID int64, ok bool, err error) {
	err = s.db.GetContext(ctx, &referrerID, `
		UPDATE referrals
		SET referred_discount = $1, order_id = $2
		WHERE referred_id = $3 AND status = 'pending' AND referred_discount = 0
		RETURNING referrer_id`,
		discount, orderID, referredID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return referrerID, true, nil
}

// awardReferralBonusTx marks the referral completed and freezes the referrer
// bonus, within the caller's transaction. The pending-status guard makes the
// award exactly-once under duplicate webhook delivery.
func awardReferralBonusTx(ctx context.Context, tx *sqlx.Tx, referredID, orderID,
	bonus int64) (*models.Referral, error) {
	var ref models.Referral
	err := tx.GetContext(ctx, &ref, `
		UPDATE referrals
		SET order_id = $1, referrer_bonus = $2, status = 'completed', completed_at = NOW()
		WHERE referred_id = $3 AND status = 'pending'
		RETURNING *`,
		orderID, bonus, referredID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// ReferrerStats is the per-referrer rollup.
type ReferrerStats struct {
	TotalReferred     int   `db:"total_referred" json:"total_referred"`
	CompletedReferred int   `db:"completed_referred" json:"completed_referred"`
	TotalBonus        int64 `db:"total_bonus" json:"total_bonus"`
}

// GetReferrerStats returns a user's referral rollup.
func (s *Store) GetReferrerStats(ctx context.Context, referrerID int64) (*ReferrerStats, error) {
	var stats ReferrerStats
	err := s.db.GetContext(ctx, &stats, `
		SELECT COUNT(*) AS total_referred,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed_referred,
			COALESCE(SUM(referrer_bonus) FILTER (WHERE status = 'completed'), 0) AS total_bonus
		FROM referrals
		WHERE referrer_id = $1`,
		referrerID)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
