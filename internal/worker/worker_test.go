package worker

import (
	"context"
	"testing"
	"time"

	"medorder-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	userIDs []int64
	texts   []string
}

func (n *recordingNotifier) Notify(_ context.Context, userID int64, text string) error {
	n.userIDs = append(n.userIDs, userID)
	n.texts = append(n.texts, text)
	return nil
}

func TestOrderCompletedNotificationNamesDeadline(t *testing.T) {
	notifier := &recordingNotifier{}
	w := NewNotificationWorker(nil, notifier)

	deadline := time.Date(2026, 3, 15, 18, 30, 0, 0, time.UTC)
	err := w.handleOrderCompleted(context.Background(), &models.OrderCompletedEvent{
		OrderID:         7,
		UserID:          42,
		CanClarifyUntil: deadline,
	})
	require.NoError(t, err)

	require.Len(t, notifier.texts, 1)
	assert.Equal(t, int64(42), notifier.userIDs[0])
	assert.Contains(t, notifier.texts[0], "15.03.2026 18:30")
}

func TestClarificationFromUserIsNotEchoed(t *testing.T) {
	notifier := &recordingNotifier{}
	w := NewNotificationWorker(nil, notifier)

	err := w.handleClarificationAdded(context.Background(), &models.ClarificationAddedEvent{
		OrderID:    7,
		UserID:     42,
		IsFromUser: true,
	})
	require.NoError(t, err)
	assert.Empty(t, notifier.texts)

	err = w.handleClarificationAdded(context.Background(), &models.ClarificationAddedEvent{
		OrderID:    7,
		UserID:     42,
		IsFromUser: false,
	})
	require.NoError(t, err)
	assert.Len(t, notifier.texts, 1)
}

func TestReferralAwardGoesToReferrer(t *testing.T) {
	notifier := &recordingNotifier{}
	w := NewNotificationWorker(nil, notifier)

	err := w.handleReferralAwarded(context.Background(), &models.ReferralAwardedEvent{
		ReferrerID:  700,
		ReferredID:  701,
		BonusAmount: 27,
	})
	require.NoError(t, err)

	require.Len(t, notifier.userIDs, 1)
	assert.Equal(t, int64(700), notifier.userIDs[0])
	assert.Contains(t, notifier.texts[0], "27")
}
