package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TicketStatus string

const (
	TicketValid       TicketStatus = "valid"
	TicketUsed        TicketStatus = "used"
	TicketCancelled   TicketStatus = "cancelled"
	TicketRefunded    TicketStatus = "refunded"
	TicketExpired     TicketStatus = "expired"
	TicketTransferred TicketStatus = "transferred"
)

// Ticket is one redeemable admission unit, minted only after its purchase
// reaches completed. Status moves forward only: valid tickets can be used,
// transferred or invalidated; used, cancelled and refunded tickets never
// return to valid.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	TicketID        string       `bun:"ticket_id,pk" json:"ticket_id"`
	TicketTypeID    string       `bun:"ticket_type_id,notnull" json:"ticket_type_id"`
	EventID         string       `bun:"event_id,notnull" json:"event_id"`
	OrganizationID  string       `bun:"organization_id,notnull" json:"organization_id"`
	PurchaseID      string       `bun:"purchase_id,notnull" json:"purchase_id"`
	OwnerID         string       `bun:"owner_id,notnull" json:"owner_id"`
	Status          TicketStatus `bun:"status,notnull" json:"status"`
	Code            string       `bun:"code,notnull,unique" json:"code"`
	QRCode          []byte       `bun:"qr_code" json:"qr_code,omitempty"`
	PriceAtPurchase float64      `bun:"price_at_purchase" json:"price_at_purchase"`
	Currency        string       `bun:"currency" json:"currency"`
	Transferable    bool         `bun:"transferable" json:"transferable"`
	IssuedAt        time.Time    `bun:"issued_at,notnull" json:"issued_at"`

	// Scan record, written once on valid -> used.
	ScannedAt    time.Time `bun:"scanned_at,nullzero" json:"scanned_at,omitempty"`
	ScannedBy    string    `bun:"scanned_by,nullzero" json:"scanned_by,omitempty"`
	ScanLocation string    `bun:"scan_location,nullzero" json:"scan_location,omitempty"`
}

type TicketTransfer struct {
	bun.BaseModel `bun:"table:ticket_transfers"`

	ID            int64     `bun:"id,pk,autoincrement" json:"-"`
	TicketID      string    `bun:"ticket_id,notnull" json:"ticket_id"`
	FromOwnerID   string    `bun:"from_owner_id,notnull" json:"from_owner_id"`
	ToOwnerID     string    `bun:"to_owner_id,notnull" json:"to_owner_id"`
	TransferredAt time.Time `bun:"transferred_at,notnull" json:"transferred_at"`
}

type ScanRequest struct {
	TicketCode      string `json:"ticket_code"`
	CheckInLocation string `json:"check_in_location,omitempty"`
}

type TransferRequest struct {
	NewOwnerID string `json:"new_owner_id"`
}
