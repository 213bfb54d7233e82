package service

import (
	"database/sql"
	"testing"
	"time"

	"medorder-service/internal/models"
	"medorder-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedOrder(userID int64, clarifyUntil time.Time) *models.Order {
	return &models.Order{
		ID:              1,
		UserID:          userID,
		Status:          models.OrderStatusCompleted,
		CanClarifyUntil: sql.NullTime{Time: clarifyUntil, Valid: true},
	}
}

func TestClarifyCheckAllowsWithinWindow(t *testing.T) {
	now := time.Now()
	order := completedOrder(42, now.Add(time.Hour))

	assert.NoError(t, ClarifyCheck(order, 42, now))
}

func TestClarifyCheckRejectsForeignOrder(t *testing.T) {
	now := time.Now()
	order := completedOrder(42, now.Add(time.Hour))

	err := ClarifyCheck(order, 999, now)
	require.Error(t, err)
	assert.True(t, IsRejection(err))
	assert.Equal(t, "Это не ваш заказ", RejectionReason(err))
}

func TestClarifyCheckRejectsUnfinishedOrder(t *testing.T) {
	order := &models.Order{ID: 1, UserID: 42, Status: models.OrderStatusProcessing}

	err := ClarifyCheck(order, 42, time.Now())
	require.Error(t, err)
	assert.Equal(t, "Заказ еще не завершен", RejectionReason(err))
}

func TestClarifyCheckRejectsExpiredWindow(t *testing.T) {
	deadline := time.Date(2026, 3, 15, 18, 30, 0, 0, time.UTC)
	order := completedOrder(42, deadline)

	err := ClarifyCheck(order, 42, deadline.Add(time.Minute))
	require.Error(t, err)
	assert.True(t, IsRejection(err))
	// The refusal names the exact expired deadline.
	assert.Contains(t, RejectionReason(err), "15.03.2026 18:30")
}

func TestClarifyCheckRejectsMissingDeadline(t *testing.T) {
	order := &models.Order{ID: 1, UserID: 42, Status: models.OrderStatusCompleted}

	err := ClarifyCheck(order, 42, time.Now())
	require.Error(t, err)
	assert.Equal(t, "Время для уточнений истекло", RejectionReason(err))
}

func TestClarifyCheckNeedsNewDocsBypassesWindow(t *testing.T) {
	// A rework flag reopens the thread regardless of any expired deadline.
	order := &models.Order{
		ID:              1,
		UserID:          42,
		Status:          models.OrderStatusNeedsNewDocs,
		CanClarifyUntil: sql.NullTime{Time: time.Now().Add(-48 * time.Hour), Valid: true},
	}

	assert.NoError(t, ClarifyCheck(order, 42, time.Now()))
}

func TestClarifyCheckNilOrder(t *testing.T) {
	err := ClarifyCheck(nil, 42, time.Now())
	require.Error(t, err)
	assert.Equal(t, "Заказ не найден", RejectionReason(err))
}

func TestIsPromoRejection(t *testing.T) {
	assert.True(t, IsPromoRejection(store.ErrPromoNotFound))
	assert.True(t, IsPromoRejection(store.ErrPromoExhausted))
	assert.True(t, IsPromoRejection(store.ErrPromoAlreadyUsed))
	assert.False(t, IsPromoRejection(sql.ErrConnDone))
	assert.False(t, IsPromoRejection(nil))
}

func TestRejectionHelpers(t *testing.T) {
	err := Reject("Заказ уже оплачен")
	assert.True(t, IsRejection(err))
	assert.Equal(t, "Заказ уже оплачен", RejectionReason(err))
	assert.Equal(t, "Заказ уже оплачен", err.Error())

	assert.False(t, IsRejection(sql.ErrNoRows))
	assert.Empty(t, RejectionReason(sql.ErrNoRows))
}

func TestMessageTypeOrText(t *testing.T) {
	assert.Equal(t, "text", messageTypeOrText(""))
	assert.Equal(t, "photo", messageTypeOrText("photo"))
}
