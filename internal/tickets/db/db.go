package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-commerce/internal/apperr"
	"ms-commerce/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- TICKETS ----------------

func (d *DB) CreateTickets(tickets []models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	_, err := d.Bun.NewInsert().Model(&tickets).Exec(context.Background())
	return err
}

func (d *DB) GetTicketByID(id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("ticket_id = ?", id).
		Limit(1).
		Scan(context.Background())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("ticket", id)
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (d *DB) GetTicketByCode(code string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("code = ?", code).
		Limit(1).
		Scan(context.Background())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("ticket", code)
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (d *DB) GetTicketsByPurchase(purchaseID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("purchase_id = ?", purchaseID).
		Order("issued_at").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (d *DB) GetTicketsByOwner(ownerID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("owner_id = ?", ownerID).
		Order("issued_at DESC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// ---------------- STATUS TRANSITIONS ----------------

// MarkScanned is the valid -> used transition as a conditional update: two
// staff scanning the same code race on the status precondition and only one
// write lands.
func (d *DB) MarkScanned(ticketID, scannerID, location string, at time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketUsed).
		Set("scanned_at = ?", at).
		Set("scanned_by = ?", scannerID).
		Set("scan_location = ?", location).
		Where("ticket_id = ?", ticketID).
		Where("status = ?", models.TicketValid).
		Exec(context.Background())
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// InvalidateValidByPurchase bulk-moves every still-valid ticket of a purchase
// to the given terminal status. Used and already-invalidated tickets are left
// untouched so scan history is never erased.
func (d *DB) InvalidateValidByPurchase(purchaseID string, status models.TicketStatus) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", status).
		Where("purchase_id = ?", purchaseID).
		Where("status = ?", models.TicketValid).
		Exec(context.Background())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// TransferOwner reassigns a valid ticket between owners, conditioned on the
// current owner so a stale transfer cannot overwrite a newer one.
func (d *DB) TransferOwner(ticketID, fromOwnerID, toOwnerID string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("owner_id = ?", toOwnerID).
		Where("ticket_id = ?", ticketID).
		Where("owner_id = ?", fromOwnerID).
		Where("status = ?", models.TicketValid).
		Exec(context.Background())
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (d *DB) AppendTransfer(transfer models.TicketTransfer) error {
	_, err := d.Bun.NewInsert().Model(&transfer).Exec(context.Background())
	return err
}

func (d *DB) GetTransfersByTicket(ticketID string) ([]models.TicketTransfer, error) {
	var transfers []models.TicketTransfer
	err := d.Bun.NewSelect().
		Model(&transfers).
		Where("ticket_id = ?", ticketID).
		Order("transferred_at").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return transfers, nil
}
