package models

import "time"

// Event types
const (
	EventTypeOrderPaid          = "ORDER_PAID"
	EventTypeOrderCompleted     = "ORDER_COMPLETED"
	EventTypeOrderNeedsNewDocs  = "ORDER_NEEDS_NEW_DOCS"
	EventTypeOrderCancelled     = "ORDER_CANCELLED"
	EventTypeClarificationAdded = "CLARIFICATION_ADDED"
	EventTypeReferralAwarded    = "REFERRAL_AWARDED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPaidEvent published when payment reconciliation confirms an order
type OrderPaidEvent struct {
	BaseEvent
	OrderID     int64  `json:"order_id"`
	UserID      int64  `json:"user_id"`
	PaymentID   int64  `json:"payment_id"`
	Amount      int64  `json:"amount"`
	ServiceType string `json:"service_type"`
}

// OrderCompletedEvent published when a reviewer submits an answer
type OrderCompletedEvent struct {
	BaseEvent
	OrderID         int64     `json:"order_id"`
	UserID          int64     `json:"user_id"`
	AdminID         int64     `json:"admin_id"`
	CanClarifyUntil time.Time `json:"can_clarify_until"`
}

// OrderNeedsNewDocsEvent published when an admin flags missing documents
type OrderNeedsNewDocsEvent struct {
	BaseEvent
	OrderID int64  `json:"order_id"`
	UserID  int64  `json:"user_id"`
	Reason  string `json:"reason"`
}

// OrderCancelledEvent published when an order reaches the terminal state
type OrderCancelledEvent struct {
	BaseEvent
	OrderID int64  `json:"order_id"`
	UserID  int64  `json:"user_id"`
	Reason  string `json:"reason"`
}

// ClarificationAddedEvent published for every new thread entry
type ClarificationAddedEvent struct {
	BaseEvent
	OrderID         int64 `json:"order_id"`
	ClarificationID int64 `json:"clarification_id"`
	UserID          int64 `json:"user_id"`
	IsFromUser      bool  `json:"is_from_user"`
}

// ReferralAwardedEvent published when a referrer bonus is settled
type ReferralAwardedEvent struct {
	BaseEvent
	ReferralID  int64 `json:"referral_id"`
	ReferrerID  int64 `json:"referrer_id"`
	ReferredID  int64 `json:"referred_id"`
	OrderID     int64 `json:"order_id"`
	BonusAmount int64 `json:"bonus_amount"`
}
