package models

import (
	"time"

	"github.com/uptrace/bun"
)

type DiscountScope string

const (
	ScopeEvent   DiscountScope = "event"
	ScopeProduct DiscountScope = "product"
)

type DiscountType string

const (
	FixedAmount DiscountType = "fixed_amount"
	Percentage  DiscountType = "percentage"
)

// Discount is a reusable code scoped to one organization. The code is unique
// case-insensitively within the organization and the scope is immutable after
// creation. UsageCount is a reconciliation counter: it is incremented exactly
// once per completed purchase that applied the code and never decremented on
// refund.
type Discount struct {
	bun.BaseModel `bun:"table:discounts"`

	ID             string        `bun:"id,pk" json:"id"`
	OrganizationID string        `bun:"organization_id,notnull" json:"organization_id"`
	Code           string        `bun:"code,notnull" json:"code"`
	Scope          DiscountScope `bun:"scope,notnull" json:"scope"`
	Type           DiscountType  `bun:"discount_type,notnull" json:"discount_type"`
	Value          float64       `bun:"value,notnull" json:"value"`
	// MaxDiscount caps the per-unit discount of a percentage code. Zero means no cap.
	MaxDiscount float64 `bun:"max_discount" json:"max_discount,omitempty"`

	// Applicability sets. Empty sets mean the code applies to every item in scope.
	TicketTypeIDs      []string `bun:"ticket_type_ids,array" json:"ticket_type_ids,omitempty"`
	ProductIDs         []string `bun:"product_ids,array" json:"product_ids,omitempty"`
	ProductCategoryIDs []string `bun:"product_category_ids,array" json:"product_category_ids,omitempty"`

	// UsageLimit of zero means unlimited.
	UsageLimit int       `bun:"usage_limit" json:"usage_limit,omitempty"`
	UsageCount int       `bun:"usage_count" json:"usage_count"`
	StartDate  time.Time `bun:"start_date,notnull" json:"start_date"`
	EndDate    time.Time `bun:"end_date,notnull" json:"end_date"`
	IsActive   bool      `bun:"is_active" json:"is_active"`
	CreatedAt  time.Time `bun:"created_at,notnull" json:"created_at"`
}
