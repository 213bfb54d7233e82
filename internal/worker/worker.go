package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"medorder-service/internal/broker"
	"medorder-service/internal/models"
)

// Notifier delivers user-facing messages. Delivery is best-effort: a failed
// notification never blocks or rolls back the order it describes.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}

// LogNotifier writes notifications to the process log. It stands in wherever
// no chat transport is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, userID int64, text string) error {
	log.Printf("notify user=%d: %s", userID, text)
	return nil
}

// NotificationWorker consumes order lifecycle events and pushes notifications
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	notifier     Notifier
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, notifier Notifier) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		notifier: notifier,
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderPaid(w.handleOrderPaid)
	eventHandler.OnOrderCompleted(w.handleOrderCompleted)
	eventHandler.OnOrderNeedsNewDocs(w.handleOrderNeedsNewDocs)
	eventHandler.OnOrderCancelled(w.handleOrderCancelled)
	eventHandler.OnClarificationAdded(w.handleClarificationAdded)
	eventHandler.OnReferralAwarded(w.handleReferralAwarded)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	log.Println("Starting notification worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	log.Println("Stopping notification worker...")
	return w.consumer.Close()
}

func (w *NotificationWorker) handleOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error {
	text := fmt.Sprintf("✅ Оплата заказа #%d получена. Мы приступили к работе.", event.OrderID)
	w.push(ctx, event.UserID, text)
	return nil
}

func (w *NotificationWorker) handleOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error {
	text := fmt.Sprintf("📋 Разбор по заказу #%d готов! Вопросы можно задавать до %s.",
		event.OrderID, event.CanClarifyUntil.Format("02.01.2006 15:04"))
	w.push(ctx, event.UserID, text)
	return nil
}

func (w *NotificationWorker) handleOrderNeedsNewDocs(ctx context.Context, event *models.OrderNeedsNewDocsEvent) error {
	text := fmt.Sprintf("📎 По заказу #%d нужны дополнительные документы: %s", event.OrderID, event.Reason)
	w.push(ctx, event.UserID, text)
	return nil
}

func (w *NotificationWorker) handleOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	text := fmt.Sprintf("❌ Заказ #%d отменен.", event.OrderID)
	if event.Reason != "" {
		text = fmt.Sprintf("❌ Заказ #%d отменен: %s", event.OrderID, event.Reason)
	}
	w.push(ctx, event.UserID, text)
	return nil
}

func (w *NotificationWorker) handleClarificationAdded(ctx context.Context, event *models.ClarificationAddedEvent) error {
	// User-authored entries notify reviewers out of band; only answers from
	// the review side go back to the user.
	if event.IsFromUser {
		return nil
	}
	text := fmt.Sprintf("💬 Новый ответ по заказу #%d.", event.OrderID)
	w.push(ctx, event.UserID, text)
	return nil
}

func (w *NotificationWorker) handleReferralAwarded(ctx context.Context, event *models.ReferralAwardedEvent) error {
	text := fmt.Sprintf("🎁 Ваш друг оплатил заказ! Вам начислен бонус %d руб.", event.BonusAmount)
	w.push(ctx, event.ReferrerID, text)
	return nil
}

func (w *NotificationWorker) push(ctx context.Context, userID int64, text string) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := w.notifier.Notify(ctx, userID, text); err != nil {
		log.Printf("Failed to notify user %d: %v", userID, err)
	}
}
