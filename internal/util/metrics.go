package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersPaidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_paid_total",
		Help: "Total number of orders confirmed by payment reconciliation",
	})

	OrdersCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_completed_total",
		Help: "Total number of orders answered by a reviewer",
	})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of cancelled orders",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of rejected order operations",
	}, []string{"reason"})

	TransitionsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_rejected_total",
		Help: "Total number of rejected status transitions",
	}, []string{"from", "to"})

	PaymentsReconciledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_reconciled_total",
		Help: "Total number of successfully reconciled payments",
	})

	PaymentsDuplicateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_duplicate_total",
		Help: "Total number of duplicate reconciliation calls",
	})

	PaymentAmountMismatchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_amount_mismatch_total",
		Help: "Total number of reconciled payments with amount mismatch",
	})

	ReconcileLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_reconcile_latency_seconds",
		Help:    "Latency of payment reconciliation",
		Buckets: prometheus.DefBuckets,
	})

	PromoRedemptionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promo_redemptions_total",
		Help: "Total number of successful promo code redemptions",
	})

	PromoRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promo_rejections_total",
		Help: "Total number of rejected promo code redemptions",
	}, []string{"reason"})

	ReferralLinksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "referral_links_total",
		Help: "Total number of referral links created",
	})

	ReferralAwardsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "referral_awards_total",
		Help: "Total number of referrer bonuses awarded",
	})

	ClarificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clarifications_total",
		Help: "Total number of clarification thread entries",
	}, []string{"author"})

	ClarificationsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clarifications_rejected_total",
		Help: "Total number of rejected clarification attempts",
	}, []string{"reason"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
