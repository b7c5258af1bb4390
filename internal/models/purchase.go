package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
	PaymentCancelled PaymentStatus = "cancelled"
)

type Purchase struct {
	bun.BaseModel `bun:"table:purchases"`

	ID                  string        `bun:"id,pk" json:"id"`
	BuyerID             string        `bun:"buyer_id,notnull" json:"buyer_id"`
	OrganizationID      string        `bun:"organization_id,notnull" json:"organization_id"`
	EventID             string        `bun:"event_id,nullzero" json:"event_id,omitempty"`
	TotalAmount         float64       `bun:"total_amount,notnull" json:"total_amount"`
	Currency            string        `bun:"currency,notnull" json:"currency"`
	AppliedDiscountID   string        `bun:"applied_discount_id,nullzero" json:"applied_discount_id,omitempty"`
	DiscountAmountSaved float64       `bun:"discount_amount_saved" json:"discount_amount_saved"`
	PaymentStatus       PaymentStatus `bun:"payment_status,notnull" json:"payment_status"`
	PaymentMethod       string        `bun:"payment_method" json:"payment_method"`
	PaymentReference    string        `bun:"payment_reference,nullzero" json:"payment_reference,omitempty"`
	TicketsIssued       bool          `bun:"tickets_issued" json:"tickets_issued"`
	RefundTotal         float64       `bun:"refund_total" json:"refund_total"`
	CreatedAt           time.Time     `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt           time.Time     `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

type TicketLineItem struct {
	bun.BaseModel `bun:"table:purchase_ticket_items"`

	ID           int64   `bun:"id,pk,autoincrement" json:"-"`
	PurchaseID   string  `bun:"purchase_id,notnull" json:"-"`
	TicketTypeID string  `bun:"ticket_type_id,notnull" json:"ticket_type_id"`
	Quantity     int     `bun:"quantity,notnull" json:"quantity"`
	// UnitPrice is the per-unit price after discount.
	UnitPrice      float64 `bun:"unit_price,notnull" json:"unit_price"`
	DiscountAmount float64 `bun:"discount_amount" json:"discount_amount"`
}

type ProductLineItem struct {
	bun.BaseModel `bun:"table:purchase_product_items"`

	ID             int64   `bun:"id,pk,autoincrement" json:"-"`
	PurchaseID     string  `bun:"purchase_id,notnull" json:"-"`
	ProductID      string  `bun:"product_id,notnull" json:"product_id"`
	VariantID      string  `bun:"variant_id,nullzero" json:"variant_id,omitempty"`
	Quantity       int     `bun:"quantity,notnull" json:"quantity"`
	UnitPrice      float64 `bun:"unit_price,notnull" json:"unit_price"`
	DiscountAmount float64 `bun:"discount_amount" json:"discount_amount"`
}

type RefundRecord struct {
	bun.BaseModel `bun:"table:purchase_refunds"`

	ID         int64  `bun:"id,pk,autoincrement" json:"-"`
	PurchaseID string `bun:"purchase_id,notnull" json:"purchase_id"`
	// ProviderRef is quoted back to the payment provider when the refund is
	// settled out of band.
	ProviderRef string    `bun:"provider_ref,notnull" json:"provider_ref"`
	Amount      float64   `bun:"amount,notnull" json:"amount"`
	Reason      string    `bun:"reason" json:"reason"`
	Actor       string    `bun:"actor" json:"actor"`
	RefundedAt  time.Time `bun:"refunded_at,notnull" json:"refunded_at"`
}

// PurchaseWithItems bundles a purchase with its line items and refund log for
// API responses and for the completion/refund side effects.
type PurchaseWithItems struct {
	Purchase
	TicketItems  []TicketLineItem  `json:"ticket_items"`
	ProductItems []ProductLineItem `json:"product_items"`
	Refunds      []RefundRecord    `json:"refunds,omitempty"`
}

// ---------------- REQUEST / RESPONSE ----------------

type TicketItemRequest struct {
	TicketTypeID string `json:"ticket_type_id"`
	Quantity     int    `json:"quantity"`
}

type ProductItemRequest struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity"`
}

type PurchaseRequest struct {
	EventID       string               `json:"event_id,omitempty"`
	TicketItems   []TicketItemRequest  `json:"ticket_items,omitempty"`
	ProductItems  []ProductItemRequest `json:"product_items,omitempty"`
	PaymentMethod string               `json:"payment_method"`
	DiscountCode  string               `json:"discount_code,omitempty"`
}

type PaymentStatusRequest struct {
	Status           PaymentStatus `json:"status"`
	PaymentReference string        `json:"payment_reference,omitempty"`
}

type RefundRequest struct {
	Amount float64 `json:"amount"`
	Reason string  `json:"reason"`
}
