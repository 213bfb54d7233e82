package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"medorder-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderPaid publishes OrderPaid event
func (ep *EventPublisher) PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishOrderCompleted publishes OrderCompleted event
func (ep *EventPublisher) PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishOrderNeedsNewDocs publishes OrderNeedsNewDocs event
func (ep *EventPublisher) PublishOrderNeedsNewDocs(ctx context.Context, event *models.OrderNeedsNewDocsEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishOrderCancelled publishes OrderCancelled event
func (ep *EventPublisher) PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishClarificationAdded publishes ClarificationAdded event
func (ep *EventPublisher) PublishClarificationAdded(ctx context.Context, event *models.ClarificationAddedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishReferralAwarded publishes ReferralAwarded event
func (ep *EventPublisher) PublishReferralAwarded(ctx context.Context, event *models.ReferralAwardedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

func orderKey(orderID int64) string {
	return fmt.Sprintf("order-%d", orderID)
}

// EventHandler routes consumed messages to registered handlers
type EventHandler struct {
	onOrderPaid          func(context.Context, *models.OrderPaidEvent) error
	onOrderCompleted     func(context.Context, *models.OrderCompletedEvent) error
	onOrderNeedsNewDocs  func(context.Context, *models.OrderNeedsNewDocsEvent) error
	onOrderCancelled     func(context.Context, *models.OrderCancelledEvent) error
	onClarificationAdded func(context.Context, *models.ClarificationAddedEvent) error
	onReferralAwarded    func(context.Context, *models.ReferralAwardedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnOrderPaid registers a handler for OrderPaid events
func (eh *EventHandler) OnOrderPaid(handler func(context.Context, *models.OrderPaidEvent) error) {
	eh.onOrderPaid = handler
}

// OnOrderCompleted registers a handler for OrderCompleted events
func (eh *EventHandler) OnOrderCompleted(handler func(context.Context, *models.OrderCompletedEvent) error) {
	eh.onOrderCompleted = handler
}

// OnOrderNeedsNewDocs registers a handler for OrderNeedsNewDocs events
func (eh *EventHandler) OnOrderNeedsNewDocs(handler func(context.Context, *models.OrderNeedsNewDocsEvent) error) {
	eh.onOrderNeedsNewDocs = handler
}

// OnOrderCancelled registers a handler for OrderCancelled events
func (eh *EventHandler) OnOrderCancelled(handler func(context.Context, *models.OrderCancelledEvent) error) {
	eh.onOrderCancelled = handler
}

// OnClarificationAdded registers a handler for ClarificationAdded events
func (eh *EventHandler) OnClarificationAdded(handler func(context.Context, *models.ClarificationAddedEvent) error) {
	eh.onClarificationAdded = handler
}

// OnReferralAwarded registers a handler for ReferralAwarded events
func (eh *EventHandler) OnReferralAwarded(handler func(context.Context, *models.ReferralAwardedEvent) error) {
	eh.onReferralAwarded = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	log.Printf("Handling event: type=%s, id=%s", baseEvent.EventType, baseEvent.EventID)

	switch baseEvent.EventType {
	case models.EventTypeOrderPaid:
		if eh.onOrderPaid != nil {
			var event models.OrderPaidEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderPaid event: %w", err)
			}
			return eh.onOrderPaid(ctx, &event)
		}

	case models.EventTypeOrderCompleted:
		if eh.onOrderCompleted != nil {
			var event models.OrderCompletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderCompleted event: %w", err)
			}
			return eh.onOrderCompleted(ctx, &event)
		}

	case models.EventTypeOrderNeedsNewDocs:
		if eh.onOrderNeedsNewDocs != nil {
			var event models.OrderNeedsNewDocsEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderNeedsNewDocs event: %w", err)
			}
			return eh.onOrderNeedsNewDocs(ctx, &event)
		}

	case models.EventTypeOrderCancelled:
		if eh.onOrderCancelled != nil {
			var event models.OrderCancelledEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderCancelled event: %w", err)
			}
			return eh.onOrderCancelled(ctx, &event)
		}

	case models.EventTypeClarificationAdded:
		if eh.onClarificationAdded != nil {
			var event models.ClarificationAddedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ClarificationAdded event: %w", err)
			}
			return eh.onClarificationAdded(ctx, &event)
		}

	case models.EventTypeReferralAwarded:
		if eh.onReferralAwarded != nil {
			var event models.ReferralAwardedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ReferralAwarded event: %w", err)
			}
			return eh.onReferralAwarded(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
