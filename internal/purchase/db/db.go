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

// ---------------- PURCHASES ----------------

// CreatePurchase inserts the purchase and its line items. Line items are
// owned rows; they never change after creation.
func (d *DB) CreatePurchase(p models.Purchase, ticketItems []models.TicketLineItem, productItems []models.ProductLineItem) error {
	ctx := context.Background()

	if _, err := d.Bun.NewInsert().Model(&p).Exec(ctx); err != nil {
		return err
	}

	for i := range ticketItems {
		ticketItems[i].PurchaseID = p.ID
	}
	if len(ticketItems) > 0 {
		if _, err := d.Bun.NewInsert().Model(&ticketItems).Exec(ctx); err != nil {
			return err
		}
	}

	for i := range productItems {
		productItems[i].PurchaseID = p.ID
	}
	if len(productItems) > 0 {
		if _, err := d.Bun.NewInsert().Model(&productItems).Exec(ctx); err != nil {
			return err
		}
	}

	return nil
}

func (d *DB) GetPurchaseByID(id string) (*models.Purchase, error) {
	var p models.Purchase
	err := d.Bun.NewSelect().
		Model(&p).
		Where("id = ?", id).
		Limit(1).
		Scan(context.Background())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("purchase", id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPurchaseWithItems retrieves a purchase together with its line items and
// refund log.
func (d *DB) GetPurchaseWithItems(id string) (*models.PurchaseWithItems, error) {
	ctx := context.Background()

	p, err := d.GetPurchaseByID(id)
	if err != nil {
		return nil, err
	}

	var ticketItems []models.TicketLineItem
	err = d.Bun.NewSelect().
		Model(&ticketItems).
		Where("purchase_id = ?", id).
		Order("id").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	var productItems []models.ProductLineItem
	err = d.Bun.NewSelect().
		Model(&productItems).
		Where("purchase_id = ?", id).
		Order("id").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	var refunds []models.RefundRecord
	err = d.Bun.NewSelect().
		Model(&refunds).
		Where("purchase_id = ?", id).
		Order("refunded_at").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	if ticketItems == nil {
		ticketItems = []models.TicketLineItem{}
	}
	if productItems == nil {
		productItems = []models.ProductLineItem{}
	}

	return &models.PurchaseWithItems{
		Purchase:     *p,
		TicketItems:  ticketItems,
		ProductItems: productItems,
		Refunds:      refunds,
	}, nil
}

// UpdatePurchase writes the fields the payment state machine and refund
// operation are allowed to mutate.
func (d *DB) UpdatePurchase(p models.Purchase) error {
	_, err := d.Bun.NewUpdate().
		Model(&p).
		Column("payment_status", "payment_reference", "tickets_issued", "refund_total", "updated_at").
		Where("id = ?", p.ID).
		Exec(context.Background())
	return err
}

// TransitionPaymentStatus moves the purchase between payment statuses as a
// single conditional update. Returns false when the purchase was no longer in
// the expected status, meaning a concurrent signal won the write.
func (d *DB) TransitionPaymentStatus(id string, from, to models.PaymentStatus, reference string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Purchase)(nil)).
		Set("payment_status = ?", to).
		Set("payment_reference = ?", reference).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("payment_status = ?", from).
		Exec(context.Background())
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// ApplyRefund flips a completed purchase to refunded and adds to its refund
// total in one conditional update, so concurrent refunds can neither double
// apply nor push the running total past the purchase total.
func (d *DB) ApplyRefund(id string, amount float64) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Purchase)(nil)).
		Set("payment_status = ?", models.PaymentRefunded).
		Set("refund_total = refund_total + ?", amount).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("payment_status = ?", models.PaymentCompleted).
		Where("refund_total + ? <= total_amount", amount).
		Exec(context.Background())
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (d *DB) AppendRefund(r models.RefundRecord) error {
	_, err := d.Bun.NewInsert().Model(&r).Exec(context.Background())
	return err
}

// ---------------- LISTINGS ----------------

func (d *DB) ListByBuyer(buyerID string) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := d.Bun.NewSelect().
		Model(&purchases).
		Where("buyer_id = ?", buyerID).
		Order("created_at DESC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return purchases, nil
}

func (d *DB) ListByOrganization(organizationID string) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := d.Bun.NewSelect().
		Model(&purchases).
		Where("organization_id = ?", organizationID).
		Order("created_at DESC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return purchases, nil
}

func (d *DB) ListAll() ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := d.Bun.NewSelect().
		Model(&purchases).
		Order("created_at DESC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return purchases, nil
}
