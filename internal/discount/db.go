package discount

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"ms-commerce/internal/apperr"
	"ms-commerce/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// GetByCode fetches a discount by code, case-insensitively, scoped to one
// organization.
func (d *DB) GetByCode(code, organizationID string) (*models.Discount, error) {
	var disc models.Discount
	err := d.Bun.NewSelect().
		Model(&disc).
		Where("lower(code) = lower(?)", code).
		Where("organization_id = ?", organizationID).
		Limit(1).
		Scan(context.Background())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("discount", code)
	}
	if err != nil {
		return nil, err
	}
	return &disc, nil
}

// IncrementUsage is a single conditional update: the counter only moves while
// the usage limit still has headroom. Returns false when the precondition no
// longer held at apply time.
func (d *DB) IncrementUsage(discountID string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Discount)(nil)).
		Set("usage_count = usage_count + 1").
		Where("id = ?", discountID).
		Where("usage_limit = 0 OR usage_count < usage_limit").
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

// CreateDiscount inserts a new code after checking case-insensitive
// uniqueness within the organization.
func (d *DB) CreateDiscount(disc models.Discount) error {
	exists, err := d.Bun.NewSelect().
		Model((*models.Discount)(nil)).
		Where("lower(code) = lower(?)", disc.Code).
		Where("organization_id = ?", disc.OrganizationID).
		Exists(context.Background())
	if err != nil {
		return err
	}
	if exists {
		return apperr.Conflict("discount code %q already exists in this organization", disc.Code)
	}
	_, err = d.Bun.NewInsert().Model(&disc).Exec(context.Background())
	return err
}

// GetByID is used by reconciliation tooling to inspect counters.
func (d *DB) GetByID(id string) (*models.Discount, error) {
	var disc models.Discount
	err := d.Bun.NewSelect().
		Model(&disc).
		Where("id = ?", id).
		Limit(1).
		Scan(context.Background())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("discount", id)
	}
	if err != nil {
		return nil, err
	}
	return &disc, nil
}
