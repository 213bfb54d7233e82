package store

import (
	"context"
	"fmt"
)

// Statistics is the read-only operational rollup over the order store.
// Reads run without locks; eventual consistency is acceptable for reporting.
type Statistics struct {
	TotalOrders         int     `db:"total_orders" json:"total_orders"`
	TodayOrders         int     `db:"today_orders" json:"today_orders"`
	PendingOrders       int     `db:"pending_orders" json:"pending_orders"`
	CompletedOrders     int     `db:"completed_orders" json:"completed_orders"`
	ClarificationOrders int     `db:"clarification_orders" json:"clarification_orders"`
	NewDocsOrders       int     `db:"new_docs_orders" json:"new_docs_orders"`
	PaidOrders          int     `db:"paid_orders" json:"paid_orders"`
	AvgPrice            int64   `db:"avg_price" json:"avg_price"`
	TotalRevenue        int64   `db:"total_revenue" json:"total_revenue"`
	TotalDiscounts      int64   `db:"total_discounts" json:"total_discounts"`
	UniqueUsers         int     `db:"unique_users" json:"unique_users"`
	TotalClarifications int     `db:"total_clarifications" json:"total_clarifications"`
	TotalRatings        int     `db:"total_ratings" json:"total_ratings"`
	AvgRating           float64 `db:"avg_rating" json:"avg_rating"`
	UnreportedPayments  int     `db:"unreported_payments" json:"unreported_payments"`
	UnreportedAmount    int64   `db:"unreported_amount" json:"unreported_amount"`
	TotalPromoCodes     int     `db:"total_promo_codes" json:"total_promo_codes"`
	PromoUses           int     `db:"promo_uses" json:"promo_uses"`
	PromoDiscounts      int64   `db:"promo_discounts" json:"promo_discounts"`
	TotalReferrals      int     `db:"total_referrals" json:"total_referrals"`
	CompletedReferrals  int     `db:"completed_referrals" json:"completed_referrals"`
	TotalBonuses        int64   `db:"total_bonuses" json:"total_bonuses"`
}

// ServiceStats is the per-service rollup.
type ServiceStats struct {
	ServiceType string `db:"service_type" json:"service_type"`
	Orders      int    `db:"orders" json:"orders"`
	AvgPrice    int64  `db:"avg_price" json:"avg_price"`
	Revenue     int64  `db:"revenue" json:"revenue"`
}

// RatingBucket is one row of the rating distribution.
type RatingBucket struct {
	Rating int `db:"rating" json:"rating"`
	Count  int `db:"count" json:"count"`
}

// GetStatistics computes the aggregate rollup. UniqueUsers counts distinct
// buyers over the trailing number of days.
func (s *Store) GetStatistics(ctx context.Context, days int) (*Statistics, error) {
	var stats Statistics
	err := s.db.GetContext(ctx, &stats, fmt.Sprintf(`
		SELECT
			(SELECT COUNT(*) FROM orders) AS total_orders,
			(SELECT COUNT(*) FROM orders WHERE created_at::date = NOW()::date) AS today_orders,
			(SELECT COUNT(*) FROM orders WHERE status = 'pending') AS pending_orders,
			(SELECT COUNT(*) FROM orders WHERE status = 'completed') AS completed_orders,
			(SELECT COUNT(*) FROM orders WHERE status = 'awaiting_clarification') AS clarification_orders,
			(SELECT COUNT(*) FROM orders WHERE status = 'needs_new_docs') AS new_docs_orders,
			(SELECT COUNT(*) FROM orders WHERE payment_status = 'success') AS paid_orders,
			(SELECT COALESCE(AVG(price), 0)::bigint FROM orders WHERE payment_status = 'success') AS avg_price,
			(SELECT COALESCE(SUM(price), 0) FROM orders WHERE payment_status = 'success') AS total_revenue,
			(SELECT COALESCE(SUM(discount_applied), 0) FROM orders WHERE payment_status = 'success') AS total_discounts,
			(SELECT COUNT(DISTINCT user_id) FROM orders WHERE created_at >= NOW() - INTERVAL '%d days') AS unique_users,
			(SELECT COUNT(*) FROM clarifications WHERE is_from_user = TRUE) AS total_clarifications,
			(SELECT COUNT(*) FROM ratings) AS total_ratings,
			(SELECT COALESCE(AVG(rating), 0) FROM ratings) AS avg_rating,
			(SELECT COUNT(*) FROM payments WHERE tax_reported = FALSE AND status = 'success') AS unreported_payments,
			(SELECT COALESCE(SUM(amount), 0) FROM payments WHERE tax_reported = FALSE AND status = 'success') AS unreported_amount,
			(SELECT COUNT(*) FROM promo_codes) AS total_promo_codes,
			(SELECT COUNT(*) FROM used_promo_codes) AS promo_uses,
			(SELECT COALESCE(SUM(discount_amount), 0) FROM used_promo_codes) AS promo_discounts,
			(SELECT COUNT(*) FROM referrals) AS total_referrals,
			(SELECT COUNT(*) FROM referrals WHERE status = 'completed') AS completed_referrals,
			(SELECT COALESCE(SUM(referrer_bonus), 0) FROM referrals WHERE status = 'completed') AS total_bonuses`,
		days))
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetServiceStats returns per-service order counts and revenue.
func (s *Store) GetServiceStats(ctx context.Context) ([]ServiceStats, error) {
	var out []ServiceStats
	err := s.db.SelectContext(ctx, &out, `
		SELECT service_type,
			COUNT(*) AS orders,
			COALESCE(AVG(price), 0)::bigint AS avg_price,
			COALESCE(SUM(price) FILTER (WHERE payment_status = 'success'), 0) AS revenue
		FROM orders
		GROUP BY service_type
		ORDER BY COUNT(*) DESC`)
	return out, err
}

// GetRatingDistribution returns rating counts, highest first.
func (s *Store) GetRatingDistribution(ctx context.Context) ([]RatingBucket, error) {
	var out []RatingBucket
	err := s.db.SelectContext(ctx, &out, `
		SELECT rating, COUNT(*) AS count
		FROM ratings
		GROUP BY rating
		ORDER BY rating DESC`)
	return out, err
}
