package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-commerce/internal/apperr"
	"ms-commerce/internal/models"
)

// DB looks up catalog units for cart validation. Reads take no lock and may
// observe slightly stale stock; the inventory ledger re-checks at reservation
// time.
type DB struct {
	Bun *bun.DB
}

func (d *DB) GetEvent(id string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Where("id = ?", id).
		Limit(1).
		Scan(context.Background())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("event", id)
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (d *DB) GetTicketType(id string) (*models.TicketType, error) {
	var tt models.TicketType
	err := d.Bun.NewSelect().
		Model(&tt).
		Where("id = ?", id).
		Limit(1).
		Scan(context.Background())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("ticket type", id)
	}
	if err != nil {
		return nil, err
	}
	return &tt, nil
}

func (d *DB) GetProduct(id string) (*models.Product, error) {
	var product models.Product
	err := d.Bun.NewSelect().
		Model(&product).
		Where("id = ?", id).
		Limit(1).
		Scan(context.Background())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("product", id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (d *DB) GetVariant(id string) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := d.Bun.NewSelect().
		Model(&variant).
		Where("id = ?", id).
		Limit(1).
		Scan(context.Background())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("product variant", id)
	}
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

// OnSale reports whether a unit can be sold right now: active status and, when
// a sales window is set, now inside it. Zero window bounds mean open-ended.
func OnSale(status models.UnitStatus, salesStart, salesEnd time.Time, now time.Time) bool {
	if status != models.UnitActive {
		return false
	}
	if !salesStart.IsZero() && now.Before(salesStart) {
		return false
	}
	if !salesEnd.IsZero() && now.After(salesEnd) {
		return false
	}
	return true
}
