package models

import (
	"database/sql"
	"time"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending               OrderStatus = "pending"
	OrderStatusProcessing            OrderStatus = "processing"
	OrderStatusPaid                  OrderStatus = "paid"
	OrderStatusCompleted             OrderStatus = "completed"
	OrderStatusCancelled             OrderStatus = "cancelled"
	OrderStatusAwaitingClarification OrderStatus = "awaiting_clarification"
	OrderStatusNeedsNewDocs          OrderStatus = "needs_new_docs"
)

// PaymentStatus is the state of the payment attached to an order.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSuccess   PaymentStatus = "success"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// DiscountKind identifies which discount source was applied to an order.
type DiscountKind string

const (
	DiscountNone     DiscountKind = "none"
	DiscountPercent  DiscountKind = "percent"
	DiscountFixed    DiscountKind = "fixed"
	DiscountReferral DiscountKind = "referral"
	DiscountPromo    DiscountKind = "promo"
)

// ReferralStatus is the settlement state of a referral link.
type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusCompleted ReferralStatus = "completed"
)

// IsTerminal reports whether no further transitions are accepted.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCancelled
}

// transitions is the exhaustive table of allowed status moves. Cancellation
// from any non-terminal state is handled separately in CanTransition.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPaid:                  {OrderStatusPending, OrderStatusProcessing},
	OrderStatusPending:               {OrderStatusProcessing, OrderStatusCompleted, OrderStatusNeedsNewDocs},
	OrderStatusProcessing:            {OrderStatusCompleted, OrderStatusNeedsNewDocs},
	OrderStatusCompleted:             {OrderStatusAwaitingClarification, OrderStatusCompleted, OrderStatusNeedsNewDocs},
	OrderStatusAwaitingClarification: {OrderStatusCompleted, OrderStatusNeedsNewDocs},
	OrderStatusNeedsNewDocs:          {OrderStatusCompleted, OrderStatusAwaitingClarification},
	OrderStatusCancelled:             {},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == OrderStatusCancelled {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ActiveWorkStatuses are the statuses staff triage oldest-first.
var ActiveWorkStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusAwaitingClarification,
	OrderStatusNeedsNewDocs,
}

// PercentOf computes pct percent of amount in integer currency units,
// truncated toward zero. This is the single rounding policy shared by promo,
// referral and bonus math.
func PercentOf(amount int64, pct float64) int64 {
	return int64(float64(amount) * pct / 100)
}

// FinalPrice applies a discount to a base price, floored at zero.
func FinalPrice(base, discount int64) int64 {
	if discount >= base {
		return 0
	}
	return base - discount
}

// Order is one user's paid request for a document interpretation.
type Order struct {
	ID                  int64          `db:"id" json:"id"`
	UserID              int64          `db:"user_id" json:"user_id"`
	Username            string         `db:"username" json:"username"`
	Age                 sql.NullInt64  `db:"age" json:"age,omitempty"`
	Sex                 sql.NullString `db:"sex" json:"sex,omitempty"`
	Questions           sql.NullString `db:"questions" json:"questions,omitempty"`
	Documents           sql.NullString `db:"documents" json:"documents,omitempty"`
	DocumentTypes       sql.NullString `db:"document_types" json:"document_types,omitempty"`
	ServiceType         string         `db:"service_type" json:"service_type"`
	NeedsDemographics   bool           `db:"needs_demographics" json:"needs_demographics"`
	Status              OrderStatus    `db:"status" json:"status"`
	Price               int64          `db:"price" json:"price"`
	OriginalPrice       int64          `db:"original_price" json:"original_price"`
	DiscountApplied     int64          `db:"discount_applied" json:"discount_applied"`
	DiscountKind        DiscountKind   `db:"discount_kind" json:"discount_kind"`
	PromoCode           sql.NullString `db:"promo_code" json:"promo_code,omitempty"`
	ReferrerID          sql.NullInt64  `db:"referrer_id" json:"referrer_id,omitempty"`
	PaymentStatus       PaymentStatus  `db:"payment_status" json:"payment_status"`
	InvoiceToken        sql.NullString `db:"invoice_token" json:"invoice_token,omitempty"`
	AgreementAccepted   bool           `db:"agreement_accepted" json:"agreement_accepted"`
	AgreementVersion    string         `db:"agreement_version" json:"agreement_version"`
	TaxReported         bool           `db:"tax_reported" json:"tax_reported"`
	Rating              sql.NullInt64  `db:"rating" json:"rating,omitempty"`
	ClarificationCount  int            `db:"clarification_count" json:"clarification_count"`
	LastClarificationAt sql.NullTime   `db:"last_clarification_at" json:"last_clarification_at,omitempty"`
	CanClarifyUntil     sql.NullTime   `db:"can_clarify_until" json:"can_clarify_until,omitempty"`
	AdminID             sql.NullInt64  `db:"admin_id" json:"admin_id,omitempty"`
	AnsweredAt          sql.NullTime   `db:"answered_at" json:"answered_at,omitempty"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updated_at"`
}

// Clarification is one message in an order's follow-up thread.
type Clarification struct {
	ID             int64          `db:"id" json:"id"`
	OrderID        int64          `db:"order_id" json:"order_id"`
	UserID         int64          `db:"user_id" json:"user_id"`
	MessageText    string         `db:"message_text" json:"message_text"`
	MessageType    string         `db:"message_type" json:"message_type"`
	FileID         sql.NullString `db:"file_id" json:"file_id,omitempty"`
	IsFromUser     bool           `db:"is_from_user" json:"is_from_user"`
	RepliedToID    sql.NullInt64  `db:"replied_to_clarification_id" json:"replied_to_clarification_id,omitempty"`
	IsAdminRequest bool           `db:"is_admin_request" json:"is_admin_request"`
	SentAt         time.Time      `db:"sent_at" json:"sent_at"`
}

// Payment is an append-only record of a confirmed payment attempt.
type Payment struct {
	ID                int64         `db:"id" json:"id"`
	OrderID           int64         `db:"order_id" json:"order_id"`
	Amount            int64         `db:"amount" json:"amount"`
	Currency          string        `db:"currency" json:"currency"`
	Status            PaymentStatus `db:"status" json:"status"`
	ProviderPaymentID string        `db:"provider_payment_id" json:"provider_payment_id"`
	InvoiceToken      string        `db:"invoice_token" json:"invoice_token"`
	TaxReported       bool          `db:"tax_reported" json:"tax_reported"`
	PaymentDate       time.Time     `db:"payment_date" json:"payment_date"`
}

// PromoCode is a shared discount code with finite or unlimited uses.
// UsesLeft of -1 means unlimited.
type PromoCode struct {
	ID            int64        `db:"id" json:"id"`
	Code          string       `db:"code" json:"code"`
	DiscountKind  DiscountKind `db:"discount_kind" json:"discount_kind"`
	DiscountValue float64      `db:"discount_value" json:"discount_value"`
	UsesLeft      int          `db:"uses_left" json:"uses_left"`
	ValidUntil    sql.NullTime `db:"valid_until" json:"valid_until,omitempty"`
	IsActive      bool         `db:"is_active" json:"is_active"`
	Description   string       `db:"description" json:"description"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
}

// UsedPromoCode records a single redemption; (user_id, promo_code) is unique.
type UsedPromoCode struct {
	ID             int64     `db:"id" json:"id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	PromoCode      string    `db:"promo_code" json:"promo_code"`
	OrderID        int64     `db:"order_id" json:"order_id"`
	DiscountAmount int64     `db:"discount_amount" json:"discount_amount"`
	UsedAt         time.Time `db:"used_at" json:"used_at"`
}

// Referral links an inviter to an invitee; (referrer_id, referred_id) is unique.
type Referral struct {
	ID               int64          `db:"id" json:"id"`
	ReferrerID       int64          `db:"referrer_id" json:"referrer_id"`
	ReferredID       int64          `db:"referred_id" json:"referred_id"`
	OrderID          sql.NullInt64  `db:"order_id" json:"order_id,omitempty"`
	ReferrerBonus    int64          `db:"referrer_bonus" json:"referrer_bonus"`
	ReferredDiscount int64          `db:"referred_discount" json:"referred_discount"`
	Status           ReferralStatus `db:"status" json:"status"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	CompletedAt      sql.NullTime   `db:"completed_at" json:"completed_at,omitempty"`
}

// Rating is the one-per-order service rating.
type Rating struct {
	ID      int64     `db:"id" json:"id"`
	OrderID int64     `db:"order_id" json:"order_id"`
	Rating  int       `db:"rating" json:"rating"`
	RatedAt time.Time `db:"rated_at" json:"rated_at"`
}

// UserAgreement records acceptance of a terms version.
type UserAgreement struct {
	ID               int64     `db:"id" json:"id"`
	UserID           int64     `db:"user_id" json:"user_id"`
	AgreementVersion string    `db:"agreement_version" json:"agreement_version"`
	AcceptedAt       time.Time `db:"accepted_at" json:"accepted_at"`
}
