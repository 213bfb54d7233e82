package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		allowed  bool
	}{
		{OrderStatusPaid, OrderStatusProcessing, true},
		{OrderStatusPaid, OrderStatusPending, true},
		{OrderStatusPending, OrderStatusProcessing, true},
		{OrderStatusPending, OrderStatusCompleted, true},
		{OrderStatusProcessing, OrderStatusCompleted, true},
		{OrderStatusProcessing, OrderStatusNeedsNewDocs, true},
		{OrderStatusCompleted, OrderStatusAwaitingClarification, true},
		{OrderStatusCompleted, OrderStatusCompleted, true},
		{OrderStatusAwaitingClarification, OrderStatusCompleted, true},
		{OrderStatusNeedsNewDocs, OrderStatusCompleted, true},

		{OrderStatusPending, OrderStatusPaid, false},
		{OrderStatusCompleted, OrderStatusProcessing, false},
		{OrderStatusProcessing, OrderStatusPaid, false},
		{OrderStatusPaid, OrderStatusCompleted, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, CanTransition(tc.from, tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestCancelAllowedFromAnyNonTerminal(t *testing.T) {
	for from := range transitions {
		if from == OrderStatusCancelled {
			continue
		}
		assert.True(t, CanTransition(from, OrderStatusCancelled), "%s -> cancelled", from)
	}
}

func TestCancelledIsTerminal(t *testing.T) {
	assert.True(t, OrderStatusCancelled.IsTerminal())

	for _, to := range []OrderStatus{
		OrderStatusPending, OrderStatusProcessing, OrderStatusPaid,
		OrderStatusCompleted, OrderStatusCancelled,
		OrderStatusAwaitingClarification, OrderStatusNeedsNewDocs,
	} {
		assert.False(t, CanTransition(OrderStatusCancelled, to), "cancelled -> %s", to)
	}
}

func TestPercentOfTruncates(t *testing.T) {
	// 15% of 290 is 43.5; the policy truncates toward zero.
	assert.Equal(t, int64(43), PercentOf(290, 15))
	// 5% of 490 is 24.5.
	assert.Equal(t, int64(24), PercentOf(490, 5))
	assert.Equal(t, int64(29), PercentOf(290, 10))
	assert.Equal(t, int64(0), PercentOf(0, 10))
	assert.Equal(t, int64(0), PercentOf(100, 0))
}

func TestFinalPrice(t *testing.T) {
	assert.Equal(t, int64(247), FinalPrice(290, 43))
	assert.Equal(t, int64(466), FinalPrice(490, 24))
	assert.Equal(t, int64(0), FinalPrice(100, 100))
	assert.Equal(t, int64(0), FinalPrice(100, 150))
	assert.Equal(t, int64(290), FinalPrice(290, 0))
}
