package db_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-commerce/internal/apperr"
	"ms-commerce/internal/models"
	"ms-commerce/internal/purchase/db"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	err = bunDB.ResetModel(context.Background(),
		(*models.Purchase)(nil),
		(*models.TicketLineItem)(nil),
		(*models.ProductLineItem)(nil),
		(*models.RefundRecord)(nil),
	)
	if err != nil {
		t.Fatalf("Failed to create tables: %v", err)
	}

	return &db.DB{Bun: bunDB}, bunDB
}

func samplePurchase(id string) models.Purchase {
	return models.Purchase{
		ID:             id,
		BuyerID:        "buyer-1",
		OrganizationID: "org-1",
		EventID:        "event-1",
		TotalAmount:    1600,
		Currency:       "USD",
		PaymentStatus:  models.PaymentPending,
		PaymentMethod:  "card",
		CreatedAt:      time.Now(),
	}
}

func TestCreateAndGetPurchaseWithItems(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	id := uuid.NewString()
	err := store.CreatePurchase(samplePurchase(id),
		[]models.TicketLineItem{
			{TicketTypeID: "tt-1", Quantity: 2, UnitPrice: 800, DiscountAmount: 400},
		},
		[]models.ProductLineItem{
			{ProductID: "prod-1", Quantity: 1, UnitPrice: 300},
		},
	)
	assert.NoError(t, err)

	got, err := store.GetPurchaseWithItems(id)
	assert.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, models.PaymentPending, got.PaymentStatus)
	assert.Len(t, got.TicketItems, 1)
	assert.Equal(t, "tt-1", got.TicketItems[0].TicketTypeID)
	assert.Equal(t, id, got.TicketItems[0].PurchaseID)
	assert.Len(t, got.ProductItems, 1)
	assert.Equal(t, "prod-1", got.ProductItems[0].ProductID)
	assert.Empty(t, got.Refunds)
}

func TestGetPurchaseNotFound(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	_, err := store.GetPurchaseByID("missing")

	var notFound *apperr.NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestUpdatePurchaseTouchesStateFieldsOnly(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	id := uuid.NewString()
	assert.NoError(t, store.CreatePurchase(samplePurchase(id), nil, nil))

	updated := samplePurchase(id)
	updated.PaymentStatus = models.PaymentCompleted
	updated.PaymentReference = "pay_abc"
	updated.TicketsIssued = true
	updated.TotalAmount = 999999 // must not be written
	updated.UpdatedAt = time.Now()

	assert.NoError(t, store.UpdatePurchase(updated))

	got, err := store.GetPurchaseByID(id)
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, got.PaymentStatus)
	assert.Equal(t, "pay_abc", got.PaymentReference)
	assert.True(t, got.TicketsIssued)
	assert.Equal(t, 1600.0, got.TotalAmount)
}

func TestTransitionPaymentStatusAppliesOnce(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	id := uuid.NewString()
	assert.NoError(t, store.CreatePurchase(samplePurchase(id), nil, nil))

	applied, err := store.TransitionPaymentStatus(id, models.PaymentPending, models.PaymentCompleted, "pay_1")
	assert.NoError(t, err)
	assert.True(t, applied)

	// second signal finds the precondition gone and loses the write
	applied, err = store.TransitionPaymentStatus(id, models.PaymentPending, models.PaymentCompleted, "pay_2")
	assert.NoError(t, err)
	assert.False(t, applied)

	got, err := store.GetPurchaseByID(id)
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, got.PaymentStatus)
	assert.Equal(t, "pay_1", got.PaymentReference)
}

func TestTransitionPaymentStatusUnknownPurchase(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	applied, err := store.TransitionPaymentStatus("missing", models.PaymentPending, models.PaymentFailed, "")
	assert.NoError(t, err)
	assert.False(t, applied)
}

func TestApplyRefundConditions(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	id := uuid.NewString()
	p := samplePurchase(id)
	p.PaymentStatus = models.PaymentCompleted
	assert.NoError(t, store.CreatePurchase(p, nil, nil))

	// over the purchase total: rejected, row untouched
	applied, err := store.ApplyRefund(id, 2000)
	assert.NoError(t, err)
	assert.False(t, applied)

	applied, err = store.ApplyRefund(id, 1600)
	assert.NoError(t, err)
	assert.True(t, applied)

	got, err := store.GetPurchaseByID(id)
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, got.PaymentStatus)
	assert.Equal(t, 1600.0, got.RefundTotal)

	// the purchase is no longer completed, a racing refund loses
	applied, err = store.ApplyRefund(id, 100)
	assert.NoError(t, err)
	assert.False(t, applied)

	got, err = store.GetPurchaseByID(id)
	assert.NoError(t, err)
	assert.Equal(t, 1600.0, got.RefundTotal)
}

func TestAppendRefund(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	id := uuid.NewString()
	assert.NoError(t, store.CreatePurchase(samplePurchase(id), nil, nil))

	err := store.AppendRefund(models.RefundRecord{
		PurchaseID: id,
		Amount:     600,
		Reason:     "one ticket unused",
		Actor:      "admin-1",
		RefundedAt: time.Now(),
	})
	assert.NoError(t, err)

	got, err := store.GetPurchaseWithItems(id)
	assert.NoError(t, err)
	assert.Len(t, got.Refunds, 1)
	assert.Equal(t, 600.0, got.Refunds[0].Amount)
}

func TestListings(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	mine := samplePurchase(uuid.NewString())
	theirs := samplePurchase(uuid.NewString())
	theirs.BuyerID = "buyer-2"
	theirs.OrganizationID = "org-2"

	assert.NoError(t, store.CreatePurchase(mine, nil, nil))
	assert.NoError(t, store.CreatePurchase(theirs, nil, nil))

	byBuyer, err := store.ListByBuyer("buyer-1")
	assert.NoError(t, err)
	assert.Len(t, byBuyer, 1)
	assert.Equal(t, mine.ID, byBuyer[0].ID)

	byOrg, err := store.ListByOrganization("org-2")
	assert.NoError(t, err)
	assert.Len(t, byOrg, 1)
	assert.Equal(t, theirs.ID, byOrg[0].ID)

	all, err := store.ListAll()
	assert.NoError(t, err)
	assert.Len(t, all, 2)
}
