package models

import (
	"time"

	"github.com/uptrace/bun"
)

// UnitStatus replaces the isActive/isDeleted boolean pair on catalog units.
// Only active units are sellable; hidden units exist but are not offered;
// archived units are retired and never sold again.
type UnitStatus string

const (
	UnitActive   UnitStatus = "active"
	UnitHidden   UnitStatus = "hidden"
	UnitArchived UnitStatus = "archived"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID             string     `bun:"id,pk" json:"id"`
	OrganizationID string     `bun:"organization_id,notnull" json:"organization_id"`
	Name           string     `bun:"name,notnull" json:"name"`
	StartDate      time.Time  `bun:"start_date,notnull" json:"start_date"`
	EndDate        time.Time  `bun:"end_date,notnull" json:"end_date"`
	Status         UnitStatus `bun:"status,notnull" json:"status"`
	CreatedAt      time.Time  `bun:"created_at,notnull" json:"created_at"`
}

// TicketType is an inventory unit: Quantity is the remaining stock and
// QuantitySold the committed stock. Quantity+QuantitySold is constant across
// reserve/release operations.
type TicketType struct {
	bun.BaseModel `bun:"table:ticket_types"`

	ID             string     `bun:"id,pk" json:"id"`
	EventID        string     `bun:"event_id,notnull" json:"event_id"`
	OrganizationID string     `bun:"organization_id,notnull" json:"organization_id"`
	Name           string     `bun:"name,notnull" json:"name"`
	Price          float64    `bun:"price,notnull" json:"price"`
	Currency       string     `bun:"currency,notnull" json:"currency"`
	Quantity       int        `bun:"quantity,notnull" json:"quantity"`
	QuantitySold   int        `bun:"quantity_sold" json:"quantity_sold"`
	MinPerOrder    int        `bun:"min_per_order" json:"min_per_order"`
	MaxPerOrder    int        `bun:"max_per_order" json:"max_per_order"`
	SalesStart     time.Time  `bun:"sales_start,nullzero" json:"sales_start,omitempty"`
	SalesEnd       time.Time  `bun:"sales_end,nullzero" json:"sales_end,omitempty"`
	Transferable   bool       `bun:"transferable" json:"transferable"`
	Status         UnitStatus `bun:"status,notnull" json:"status"`
}

type Product struct {
	bun.BaseModel `bun:"table:products"`

	ID             string     `bun:"id,pk" json:"id"`
	OrganizationID string     `bun:"organization_id,notnull" json:"organization_id"`
	CategoryID     string     `bun:"category_id,nullzero" json:"category_id,omitempty"`
	Name           string     `bun:"name,notnull" json:"name"`
	Price          float64    `bun:"price,notnull" json:"price"`
	Currency       string     `bun:"currency,notnull" json:"currency"`
	Quantity       int        `bun:"quantity,notnull" json:"quantity"`
	QuantitySold   int        `bun:"quantity_sold" json:"quantity_sold"`
	SalesStart     time.Time  `bun:"sales_start,nullzero" json:"sales_start,omitempty"`
	SalesEnd       time.Time  `bun:"sales_end,nullzero" json:"sales_end,omitempty"`
	Status         UnitStatus `bun:"status,notnull" json:"status"`
}

// ProductVariant carries its own price and stock; a purchase line that names a
// variant reserves against the variant, not the parent product.
type ProductVariant struct {
	bun.BaseModel `bun:"table:product_variants"`

	ID           string     `bun:"id,pk" json:"id"`
	ProductID    string     `bun:"product_id,notnull" json:"product_id"`
	Name         string     `bun:"name,notnull" json:"name"`
	Price        float64    `bun:"price,notnull" json:"price"`
	Quantity     int        `bun:"quantity,notnull" json:"quantity"`
	QuantitySold int        `bun:"quantity_sold" json:"quantity_sold"`
	Status       UnitStatus `bun:"status,notnull" json:"status"`
}
