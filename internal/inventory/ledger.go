package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-commerce/internal/apperr"
	"ms-commerce/internal/models"
)

type UnitKind string

const (
	KindTicketType     UnitKind = "ticket_type"
	KindProduct        UnitKind = "product"
	KindProductVariant UnitKind = "product_variant"
)

// UnitRef names one inventory unit across the three stock-bearing tables.
type UnitRef struct {
	Kind UnitKind
	ID   string
}

func (r UnitRef) String() string { return fmt.Sprintf("%s/%s", r.Kind, r.ID) }

// Ledger is the only component allowed to mutate stock. Reserve and Release
// are single conditional updates: the precondition is evaluated at apply time
// by the database, so concurrent requests against the same unit cannot
// oversell regardless of what the cart-time check saw. No lock is taken and
// no multi-unit transaction exists; a purchase with several lines performs
// one independent atomic update per line.
type Ledger struct {
	Bun *bun.DB
}

func NewLedger(db *bun.DB) *Ledger {
	return &Ledger{Bun: db}
}

// Reserve converts qty units of available stock into sold stock. The update
// applies only while quantity >= qty and the unit is active; when the
// precondition fails the current state is re-read to tell the caller whether
// the unit is missing, inactive or oversold.
func (l *Ledger) Reserve(ref UnitRef, qty int) error {
	if qty <= 0 {
		return apperr.Validation("reserve quantity must be positive, got %d", qty)
	}

	res, err := l.stockUpdate(ref).
		Set("quantity = quantity - ?", qty).
		Set("quantity_sold = quantity_sold + ?", qty).
		Where("id = ?", ref.ID).
		Where("quantity >= ?", qty).
		Where("status = ?", models.UnitActive).
		Exec(context.Background())
	if err != nil {
		return fmt.Errorf("reserve %s: %w", ref, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve %s: %w", ref, err)
	}
	if rows > 0 {
		return nil
	}

	return l.classifyReserveFailure(ref, qty)
}

// Release is the inverse of Reserve, conditioned on quantity_sold >= qty so a
// double release can never mint stock that was never sold.
func (l *Ledger) Release(ref UnitRef, qty int) error {
	if qty <= 0 {
		return apperr.Validation("release quantity must be positive, got %d", qty)
	}

	res, err := l.stockUpdate(ref).
		Set("quantity = quantity + ?", qty).
		Set("quantity_sold = quantity_sold - ?", qty).
		Where("id = ?", ref.ID).
		Where("quantity_sold >= ?", qty).
		Exec(context.Background())
	if err != nil {
		return fmt.Errorf("release %s: %w", ref, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release %s: %w", ref, err)
	}
	if rows > 0 {
		return nil
	}

	_, _, err = l.readStock(ref)
	if err != nil {
		return err
	}
	return apperr.Conflict("cannot release %d units of %s: fewer units sold", qty, ref)
}

func (l *Ledger) classifyReserveFailure(ref UnitRef, qty int) error {
	quantity, status, err := l.readStock(ref)
	if err != nil {
		return err
	}
	if status != models.UnitActive {
		return apperr.Conflict("unit %s is not on sale", ref)
	}
	return apperr.Conflict("insufficient stock for %s: requested %d, available %d", ref, qty, quantity)
}

func (l *Ledger) stockUpdate(ref UnitRef) *bun.UpdateQuery {
	q := l.Bun.NewUpdate()
	switch ref.Kind {
	case KindTicketType:
		return q.Model((*models.TicketType)(nil))
	case KindProduct:
		return q.Model((*models.Product)(nil))
	default:
		return q.Model((*models.ProductVariant)(nil))
	}
}

func (l *Ledger) readStock(ref UnitRef) (quantity int, status models.UnitStatus, err error) {
	ctx := context.Background()
	switch ref.Kind {
	case KindTicketType:
		var unit models.TicketType
		err = l.Bun.NewSelect().Model(&unit).Where("id = ?", ref.ID).Limit(1).Scan(ctx)
		quantity, status = unit.Quantity, unit.Status
	case KindProduct:
		var unit models.Product
		err = l.Bun.NewSelect().Model(&unit).Where("id = ?", ref.ID).Limit(1).Scan(ctx)
		quantity, status = unit.Quantity, unit.Status
	case KindProductVariant:
		var unit models.ProductVariant
		err = l.Bun.NewSelect().Model(&unit).Where("id = ?", ref.ID).Limit(1).Scan(ctx)
		quantity, status = unit.Quantity, unit.Status
	default:
		return 0, "", apperr.Validation("unknown inventory unit kind %q", ref.Kind)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", apperr.NotFound(string(ref.Kind), ref.ID)
	}
	if err != nil {
		return 0, "", fmt.Errorf("read stock for %s: %w", ref, err)
	}
	return quantity, status, nil
}
