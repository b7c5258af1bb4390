package purchase_test

import (
	"errors"
	"fmt"

	"ms-commerce/internal/apperr"
	"ms-commerce/internal/inventory"
	"ms-commerce/internal/logger"
	"ms-commerce/internal/models"
	"ms-commerce/internal/purchase"
)

// Hand-rolled fakes: the purchase service talks to seven collaborators and
// map-backed fakes keep the scenarios readable.

type fakeDB struct {
	purchases map[string]*models.PurchaseWithItems
	failOn    string
	// staleRead is served by the next GetPurchaseWithItems in place of the
	// stored row, simulating a reader that raced a concurrent writer.
	staleRead *models.PurchaseWithItems
}

func newFakeDB() *fakeDB {
	return &fakeDB{purchases: make(map[string]*models.PurchaseWithItems)}
}

func (f *fakeDB) CreatePurchase(p models.Purchase, ticketItems []models.TicketLineItem, productItems []models.ProductLineItem) error {
	if f.failOn == "CreatePurchase" {
		return errors.New("db error")
	}
	f.purchases[p.ID] = &models.PurchaseWithItems{
		Purchase:     p,
		TicketItems:  ticketItems,
		ProductItems: productItems,
	}
	return nil
}

func (f *fakeDB) GetPurchaseByID(id string) (*models.Purchase, error) {
	p, ok := f.purchases[id]
	if !ok {
		return nil, apperr.NotFound("purchase", id)
	}
	cp := p.Purchase
	return &cp, nil
}

func (f *fakeDB) GetPurchaseWithItems(id string) (*models.PurchaseWithItems, error) {
	if f.failOn == "GetPurchaseWithItems" {
		return nil, errors.New("db error")
	}
	if f.staleRead != nil && f.staleRead.ID == id {
		cp := *f.staleRead
		f.staleRead = nil
		return &cp, nil
	}
	p, ok := f.purchases[id]
	if !ok {
		return nil, apperr.NotFound("purchase", id)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeDB) UpdatePurchase(p models.Purchase) error {
	if f.failOn == "UpdatePurchase" {
		return errors.New("db error")
	}
	stored, ok := f.purchases[p.ID]
	if !ok {
		return apperr.NotFound("purchase", p.ID)
	}
	stored.Purchase = p
	return nil
}

func (f *fakeDB) TransitionPaymentStatus(id string, from, to models.PaymentStatus, reference string) (bool, error) {
	if f.failOn == "TransitionPaymentStatus" {
		return false, errors.New("db error")
	}
	stored, ok := f.purchases[id]
	if !ok {
		return false, nil
	}
	if stored.PaymentStatus != from {
		return false, nil
	}
	stored.PaymentStatus = to
	stored.PaymentReference = reference
	return true, nil
}

func (f *fakeDB) ApplyRefund(id string, amount float64) (bool, error) {
	if f.failOn == "ApplyRefund" {
		return false, errors.New("db error")
	}
	stored, ok := f.purchases[id]
	if !ok {
		return false, nil
	}
	if stored.PaymentStatus != models.PaymentCompleted || stored.RefundTotal+amount > stored.TotalAmount {
		return false, nil
	}
	stored.PaymentStatus = models.PaymentRefunded
	stored.RefundTotal += amount
	return true, nil
}

func (f *fakeDB) AppendRefund(r models.RefundRecord) error {
	if f.failOn == "AppendRefund" {
		return errors.New("db error")
	}
	stored, ok := f.purchases[r.PurchaseID]
	if !ok {
		return apperr.NotFound("purchase", r.PurchaseID)
	}
	stored.Refunds = append(stored.Refunds, r)
	return nil
}

func (f *fakeDB) ListByBuyer(buyerID string) ([]models.Purchase, error) {
	var out []models.Purchase
	for _, p := range f.purchases {
		if p.BuyerID == buyerID {
			out = append(out, p.Purchase)
		}
	}
	return out, nil
}

func (f *fakeDB) ListByOrganization(organizationID string) ([]models.Purchase, error) {
	var out []models.Purchase
	for _, p := range f.purchases {
		if p.OrganizationID == organizationID {
			out = append(out, p.Purchase)
		}
	}
	return out, nil
}

func (f *fakeDB) ListAll() ([]models.Purchase, error) {
	var out []models.Purchase
	for _, p := range f.purchases {
		out = append(out, p.Purchase)
	}
	return out, nil
}

type fakeCatalog struct {
	events      map[string]*models.Event
	ticketTypes map[string]*models.TicketType
	products    map[string]*models.Product
	variants    map[string]*models.ProductVariant
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		events:      make(map[string]*models.Event),
		ticketTypes: make(map[string]*models.TicketType),
		products:    make(map[string]*models.Product),
		variants:    make(map[string]*models.ProductVariant),
	}
}

func (f *fakeCatalog) GetEvent(id string) (*models.Event, error) {
	if e, ok := f.events[id]; ok {
		return e, nil
	}
	return nil, apperr.NotFound("event", id)
}

func (f *fakeCatalog) GetTicketType(id string) (*models.TicketType, error) {
	if tt, ok := f.ticketTypes[id]; ok {
		return tt, nil
	}
	return nil, apperr.NotFound("ticket type", id)
}

func (f *fakeCatalog) GetProduct(id string) (*models.Product, error) {
	if p, ok := f.products[id]; ok {
		return p, nil
	}
	return nil, apperr.NotFound("product", id)
}

func (f *fakeCatalog) GetVariant(id string) (*models.ProductVariant, error) {
	if v, ok := f.variants[id]; ok {
		return v, nil
	}
	return nil, apperr.NotFound("product variant", id)
}

type fakeDiscounts struct {
	disc         *models.Discount
	validateErr  error
	incremented  []string
	incrementErr error
}

func (f *fakeDiscounts) ValidateCode(code, organizationID string) (*models.Discount, error) {
	if f.validateErr != nil {
		return nil, f.validateErr
	}
	if f.disc == nil {
		return nil, apperr.Validation("discount code is invalid or no longer available")
	}
	return f.disc, nil
}

func (f *fakeDiscounts) IncrementUsage(discountID string) error {
	f.incremented = append(f.incremented, discountID)
	return f.incrementErr
}

type fakeInventory struct {
	reserved    map[string]int
	released    map[string]int
	failReserve map[string]error
	failRelease map[string]error
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{
		reserved:    make(map[string]int),
		released:    make(map[string]int),
		failReserve: make(map[string]error),
		failRelease: make(map[string]error),
	}
}

func (f *fakeInventory) Reserve(ref inventory.UnitRef, qty int) error {
	if err, ok := f.failReserve[ref.String()]; ok {
		return err
	}
	f.reserved[ref.String()] += qty
	return nil
}

func (f *fakeInventory) Release(ref inventory.UnitRef, qty int) error {
	if err, ok := f.failRelease[ref.String()]; ok {
		return err
	}
	f.released[ref.String()] += qty
	return nil
}

type fakeTickets struct {
	issued        map[string][]models.Ticket
	issueErr      error
	issueCalls    int
	invalidated   map[string]models.TicketStatus
	invalidateErr error
}

func newFakeTickets() *fakeTickets {
	return &fakeTickets{
		issued:      make(map[string][]models.Ticket),
		invalidated: make(map[string]models.TicketStatus),
	}
}

func (f *fakeTickets) IssueForPurchase(p *models.PurchaseWithItems) ([]models.Ticket, error) {
	f.issueCalls++
	if f.issueErr != nil {
		return nil, f.issueErr
	}
	if existing, ok := f.issued[p.ID]; ok {
		return existing, nil
	}
	var tickets []models.Ticket
	for _, line := range p.TicketItems {
		for i := 0; i < line.Quantity; i++ {
			tickets = append(tickets, models.Ticket{
				TicketID:   fmt.Sprintf("%s-%s-%d", p.ID, line.TicketTypeID, i),
				PurchaseID: p.ID,
				OwnerID:    p.BuyerID,
				Status:     models.TicketValid,
			})
		}
	}
	f.issued[p.ID] = tickets
	return tickets, nil
}

func (f *fakeTickets) InvalidateForPurchase(purchaseID string, status models.TicketStatus) (int64, error) {
	if f.invalidateErr != nil {
		return 0, f.invalidateErr
	}
	f.invalidated[purchaseID] = status
	return int64(len(f.issued[purchaseID])), nil
}

type fakeKafka struct {
	events []string
}

func (f *fakeKafka) PublishPurchaseCreated(p models.Purchase) error {
	f.events = append(f.events, "purchase-created")
	return nil
}

func (f *fakeKafka) PublishPurchaseCompleted(p models.Purchase) error {
	f.events = append(f.events, "purchase-completed")
	return nil
}

func (f *fakeKafka) PublishPurchaseRefunded(p models.Purchase) error {
	f.events = append(f.events, "purchase-refunded")
	return nil
}

func (f *fakeKafka) PublishPurchaseCancelled(p models.Purchase) error {
	f.events = append(f.events, "purchase-cancelled")
	return nil
}

func (f *fakeKafka) PublishTicketsIssued(purchaseID string, tickets []models.Ticket) error {
	f.events = append(f.events, "ticket-issued")
	return nil
}

func (f *fakeKafka) Notify(event string, payload any) {
	f.events = append(f.events, "notify:"+event)
}

func (f *fakeKafka) has(event string) bool {
	for _, e := range f.events {
		if e == event {
			return true
		}
	}
	return false
}

// fakeGuard keeps real claim semantics (first acquire wins until released) so
// retry scenarios behave like the redis guard does.
type fakeGuard struct {
	deny     bool
	err      error
	claims   map[string]bool
	acquired []string
	released []string
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{claims: make(map[string]bool)}
}

func (f *fakeGuard) Acquire(purchaseID string, status models.PaymentStatus) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.deny {
		return false, nil
	}
	k := purchaseID + ":" + string(status)
	if f.claims[k] {
		return false, nil
	}
	f.claims[k] = true
	f.acquired = append(f.acquired, k)
	return true, nil
}

func (f *fakeGuard) Release(purchaseID string, status models.PaymentStatus) error {
	k := purchaseID + ":" + string(status)
	delete(f.claims, k)
	f.released = append(f.released, k)
	return nil
}

type testDeps struct {
	db        *fakeDB
	catalog   *fakeCatalog
	discounts *fakeDiscounts
	inv       *fakeInventory
	tickets   *fakeTickets
	kafka     *fakeKafka
	guard     *fakeGuard
}

func newTestService() (*purchase.PurchaseService, *testDeps) {
	deps := &testDeps{
		db:        newFakeDB(),
		catalog:   newFakeCatalog(),
		discounts: &fakeDiscounts{},
		inv:       newFakeInventory(),
		tickets:   newFakeTickets(),
		kafka:     &fakeKafka{},
		guard:     newFakeGuard(),
	}
	svc := purchase.NewPurchaseService(
		deps.db, deps.catalog, deps.discounts, deps.inv, deps.tickets,
		deps.kafka, deps.guard, logger.NewLogger(),
	)
	return svc, deps
}
