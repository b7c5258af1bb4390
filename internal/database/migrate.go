package database

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"ms-commerce/internal/logger"
	"ms-commerce/internal/models"
)

// Migrate provisions the schema from the bun models. Tables are created only
// if missing; existing data is never dropped.
func Migrate(db *bun.DB, log *logger.Logger) error {
	ctx := context.Background()

	tables := []interface{}{
		(*models.Event)(nil),
		(*models.TicketType)(nil),
		(*models.Product)(nil),
		(*models.ProductVariant)(nil),
		(*models.Discount)(nil),
		(*models.Purchase)(nil),
		(*models.TicketLineItem)(nil),
		(*models.ProductLineItem)(nil),
		(*models.RefundRecord)(nil),
		(*models.Ticket)(nil),
		(*models.TicketTransfer)(nil),
	}

	for _, table := range tables {
		if _, err := db.NewCreateTable().Model(table).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", table, err)
		}
		if log != nil {
			log.LogDatabase("MIGRATE", fmt.Sprintf("%T", table), "ensured")
		}
	}

	return nil
}

// Reset drops and recreates every table. Test-only.
func Reset(db *bun.DB) error {
	return db.ResetModel(context.Background(),
		(*models.Event)(nil),
		(*models.TicketType)(nil),
		(*models.Product)(nil),
		(*models.ProductVariant)(nil),
		(*models.Discount)(nil),
		(*models.Purchase)(nil),
		(*models.TicketLineItem)(nil),
		(*models.ProductLineItem)(nil),
		(*models.RefundRecord)(nil),
		(*models.Ticket)(nil),
		(*models.TicketTransfer)(nil),
	)
}
