package purchase

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-commerce/internal/apperr"
	"ms-commerce/internal/catalog"
	"ms-commerce/internal/discount"
	"ms-commerce/internal/inventory"
	"ms-commerce/internal/logger"
	"ms-commerce/internal/models"
)

type DBLayer interface {
	CreatePurchase(p models.Purchase, ticketItems []models.TicketLineItem, productItems []models.ProductLineItem) error
	GetPurchaseByID(id string) (*models.Purchase, error)
	GetPurchaseWithItems(id string) (*models.PurchaseWithItems, error)
	UpdatePurchase(p models.Purchase) error
	TransitionPaymentStatus(id string, from, to models.PaymentStatus, reference string) (bool, error)
	ApplyRefund(id string, amount float64) (bool, error)
	AppendRefund(r models.RefundRecord) error
	ListByBuyer(buyerID string) ([]models.Purchase, error)
	ListByOrganization(organizationID string) ([]models.Purchase, error)
	ListAll() ([]models.Purchase, error)
}

type CatalogProvider interface {
	GetEvent(id string) (*models.Event, error)
	GetTicketType(id string) (*models.TicketType, error)
	GetProduct(id string) (*models.Product, error)
	GetVariant(id string) (*models.ProductVariant, error)
}

type DiscountEngine interface {
	ValidateCode(code, organizationID string) (*models.Discount, error)
	IncrementUsage(discountID string) error
}

type InventoryLedger interface {
	Reserve(ref inventory.UnitRef, qty int) error
	Release(ref inventory.UnitRef, qty int) error
}

type TicketIssuer interface {
	IssueForPurchase(p *models.PurchaseWithItems) ([]models.Ticket, error)
	InvalidateForPurchase(purchaseID string, status models.TicketStatus) (int64, error)
}

type KafkaPublisher interface {
	PublishPurchaseCreated(purchase models.Purchase) error
	PublishPurchaseCompleted(purchase models.Purchase) error
	PublishPurchaseRefunded(purchase models.Purchase) error
	PublishPurchaseCancelled(purchase models.Purchase) error
	PublishTicketsIssued(purchaseID string, tickets []models.Ticket) error
	Notify(event string, payload any)
}

// CallbackGuard shortcuts duplicate payment callbacks before they hit the
// state machine. The conditional status write is the authoritative dedupe;
// the guard saves the round trip, so acquisition failures are tolerated.
type CallbackGuard interface {
	Acquire(purchaseID string, status models.PaymentStatus) (bool, error)
	Release(purchaseID string, status models.PaymentStatus) error
}

// PurchaseService turns carts into priced pending purchases and drives the
// payment-status state machine over them.
type PurchaseService struct {
	DB        DBLayer
	Catalog   CatalogProvider
	Discounts DiscountEngine
	Inventory InventoryLedger
	Tickets   TicketIssuer
	Kafka     KafkaPublisher
	Guard     CallbackGuard
	Logger    *logger.Logger
}

func NewPurchaseService(
	db DBLayer,
	cat CatalogProvider,
	discounts DiscountEngine,
	inv InventoryLedger,
	tickets TicketIssuer,
	kafka KafkaPublisher,
	guard CallbackGuard,
	log *logger.Logger,
) *PurchaseService {
	return &PurchaseService{
		DB:        db,
		Catalog:   cat,
		Discounts: discounts,
		Inventory: inv,
		Tickets:   tickets,
		Kafka:     kafka,
		Guard:     guard,
		Logger:    log,
	}
}

// pricedLine is one validated cart line with its resolved base price and
// inventory unit.
type pricedLine struct {
	unit      inventory.UnitRef
	basePrice float64
	quantity  int
	ref       discount.LineRef
}

// CreatePurchase validates the cart, prices it (discount included) and
// persists it as pending. Inventory and discount usage are untouched here:
// stock is reserved on payment, not on cart, because the payment signal is
// asynchronous and may never arrive.
func (s *PurchaseService) CreatePurchase(req models.PurchaseRequest, buyerID string) (*models.PurchaseWithItems, error) {
	if len(req.TicketItems) == 0 && len(req.ProductItems) == 0 {
		return nil, apperr.Validation("cart must contain at least one ticket or product line")
	}
	if len(req.TicketItems) > 0 && req.EventID == "" {
		return nil, apperr.Validation("ticket lines require an event_id")
	}
	for _, item := range req.TicketItems {
		if item.Quantity < 1 {
			return nil, apperr.Validation("ticket quantity must be at least 1")
		}
	}
	for _, item := range req.ProductItems {
		if item.Quantity < 1 {
			return nil, apperr.Validation("product quantity must be at least 1")
		}
	}

	organizationID, currency, err := s.resolveOrganization(req)
	if err != nil {
		return nil, err
	}

	var disc *models.Discount
	if req.DiscountCode != "" {
		// any failure aborts the whole purchase; partial application is not
		// permitted
		disc, err = s.Discounts.ValidateCode(req.DiscountCode, organizationID)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now()
	purchaseID := uuid.NewString()

	var (
		ticketItems   []models.TicketLineItem
		productItems  []models.ProductLineItem
		totalAmount   float64
		totalDiscount float64
	)

	for _, item := range req.TicketItems {
		line, err := s.priceTicketLine(req.EventID, organizationID, currency, item, now)
		if err != nil {
			return nil, err
		}
		unitDisc := s.lineDiscount(disc, line)
		finalUnit := line.basePrice - unitDisc
		ticketItems = append(ticketItems, models.TicketLineItem{
			PurchaseID:     purchaseID,
			TicketTypeID:   item.TicketTypeID,
			Quantity:       item.Quantity,
			UnitPrice:      finalUnit,
			DiscountAmount: unitDisc * float64(item.Quantity),
		})
		totalAmount += finalUnit * float64(item.Quantity)
		totalDiscount += unitDisc * float64(item.Quantity)
	}

	for _, item := range req.ProductItems {
		line, err := s.priceProductLine(organizationID, currency, item, now)
		if err != nil {
			return nil, err
		}
		unitDisc := s.lineDiscount(disc, line)
		finalUnit := line.basePrice - unitDisc
		productItems = append(productItems, models.ProductLineItem{
			PurchaseID:     purchaseID,
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			Quantity:       item.Quantity,
			UnitPrice:      finalUnit,
			DiscountAmount: unitDisc * float64(item.Quantity),
		})
		totalAmount += finalUnit * float64(item.Quantity)
		totalDiscount += unitDisc * float64(item.Quantity)
	}

	p := models.Purchase{
		ID:                  purchaseID,
		BuyerID:             buyerID,
		OrganizationID:      organizationID,
		EventID:             req.EventID,
		TotalAmount:         totalAmount,
		Currency:            currency,
		DiscountAmountSaved: totalDiscount,
		PaymentStatus:       models.PaymentPending,
		PaymentMethod:       req.PaymentMethod,
		CreatedAt:           now,
	}
	if disc != nil {
		p.AppliedDiscountID = disc.ID
	}

	if err := s.DB.CreatePurchase(p, ticketItems, productItems); err != nil {
		return nil, fmt.Errorf("failed to persist purchase: %w", err)
	}

	s.Logger.LogPurchase("CREATE", purchaseID,
		fmt.Sprintf("buyer=%s org=%s total=%.2f %s discount=%.2f", buyerID, organizationID, totalAmount, currency, totalDiscount))

	if err := s.Kafka.PublishPurchaseCreated(p); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("purchase created event for %s dropped: %v", purchaseID, err))
	}
	s.Kafka.Notify("purchase.created", p)

	return &models.PurchaseWithItems{
		Purchase:     p,
		TicketItems:  ticketItems,
		ProductItems: productItems,
	}, nil
}

// resolveOrganization derives the tenant and currency from the event when
// ticket lines are present, otherwise from the first product.
func (s *PurchaseService) resolveOrganization(req models.PurchaseRequest) (string, string, error) {
	if req.EventID != "" {
		event, err := s.Catalog.GetEvent(req.EventID)
		if err != nil {
			return "", "", err
		}
		if len(req.TicketItems) > 0 {
			tt, err := s.Catalog.GetTicketType(req.TicketItems[0].TicketTypeID)
			if err != nil {
				return "", "", err
			}
			return event.OrganizationID, tt.Currency, nil
		}
		// event given but product-only cart: currency comes from the product
		product, err := s.Catalog.GetProduct(req.ProductItems[0].ProductID)
		if err != nil {
			return "", "", err
		}
		return event.OrganizationID, product.Currency, nil
	}

	product, err := s.Catalog.GetProduct(req.ProductItems[0].ProductID)
	if err != nil {
		return "", "", err
	}
	return product.OrganizationID, product.Currency, nil
}

func (s *PurchaseService) priceTicketLine(eventID, organizationID, currency string, item models.TicketItemRequest, now time.Time) (pricedLine, error) {
	tt, err := s.Catalog.GetTicketType(item.TicketTypeID)
	if err != nil {
		return pricedLine{}, err
	}

	if tt.EventID != eventID {
		return pricedLine{}, apperr.Validation("ticket type %s does not belong to event %s", item.TicketTypeID, eventID)
	}
	if tt.OrganizationID != organizationID {
		return pricedLine{}, apperr.Validation("ticket type %s does not belong to this organization", item.TicketTypeID)
	}
	if !catalog.OnSale(tt.Status, tt.SalesStart, tt.SalesEnd, now) {
		return pricedLine{}, apperr.Validation("ticket type %s is not on sale", item.TicketTypeID)
	}
	if tt.Currency != currency {
		return pricedLine{}, apperr.Validation("mixed currencies in cart: %s vs %s", tt.Currency, currency)
	}
	if tt.MinPerOrder > 0 && item.Quantity < tt.MinPerOrder {
		return pricedLine{}, apperr.Validation("ticket type %s requires at least %d per order", item.TicketTypeID, tt.MinPerOrder)
	}
	if tt.MaxPerOrder > 0 && item.Quantity > tt.MaxPerOrder {
		return pricedLine{}, apperr.Validation("ticket type %s allows at most %d per order", item.TicketTypeID, tt.MaxPerOrder)
	}
	// advisory early check; the ledger re-checks atomically at payment time
	if tt.Quantity < item.Quantity {
		return pricedLine{}, apperr.Conflict("insufficient stock for ticket type %s: requested %d, available %d", item.TicketTypeID, item.Quantity, tt.Quantity)
	}

	return pricedLine{
		unit:      inventory.UnitRef{Kind: inventory.KindTicketType, ID: tt.ID},
		basePrice: tt.Price,
		quantity:  item.Quantity,
		ref:       discount.LineRef{IsTicket: true, TicketTypeID: tt.ID},
	}, nil
}

func (s *PurchaseService) priceProductLine(organizationID, currency string, item models.ProductItemRequest, now time.Time) (pricedLine, error) {
	product, err := s.Catalog.GetProduct(item.ProductID)
	if err != nil {
		return pricedLine{}, err
	}

	if product.OrganizationID != organizationID {
		return pricedLine{}, apperr.Validation("product %s does not belong to this organization", item.ProductID)
	}
	if !catalog.OnSale(product.Status, product.SalesStart, product.SalesEnd, now) {
		return pricedLine{}, apperr.Validation("product %s is not on sale", item.ProductID)
	}
	if product.Currency != currency {
		return pricedLine{}, apperr.Validation("mixed currencies in cart: %s vs %s", product.Currency, currency)
	}

	basePrice := product.Price
	unit := inventory.UnitRef{Kind: inventory.KindProduct, ID: product.ID}
	available := product.Quantity

	if item.VariantID != "" {
		variant, err := s.Catalog.GetVariant(item.VariantID)
		if err != nil {
			return pricedLine{}, err
		}
		if variant.ProductID != product.ID {
			return pricedLine{}, apperr.Validation("variant %s does not belong to product %s", item.VariantID, item.ProductID)
		}
		if variant.Status != models.UnitActive {
			return pricedLine{}, apperr.Validation("variant %s is not on sale", item.VariantID)
		}
		basePrice = variant.Price
		unit = inventory.UnitRef{Kind: inventory.KindProductVariant, ID: variant.ID}
		available = variant.Quantity
	}

	if available < item.Quantity {
		return pricedLine{}, apperr.Conflict("insufficient stock for %s: requested %d, available %d", unit, item.Quantity, available)
	}

	return pricedLine{
		unit:      unit,
		basePrice: basePrice,
		quantity:  item.Quantity,
		ref:       discount.LineRef{ProductID: product.ID, CategoryID: product.CategoryID},
	}, nil
}

func (s *PurchaseService) lineDiscount(disc *models.Discount, line pricedLine) float64 {
	if disc == nil || !discount.IsApplicable(disc, line.ref) {
		return 0
	}
	return discount.UnitDiscount(disc, line.basePrice)
}

// ---------------- READS ----------------

func (s *PurchaseService) GetPurchase(id string) (*models.PurchaseWithItems, error) {
	return s.DB.GetPurchaseWithItems(id)
}

func (s *PurchaseService) ListByBuyer(buyerID string) ([]models.Purchase, error) {
	return s.DB.ListByBuyer(buyerID)
}

func (s *PurchaseService) ListByOrganization(organizationID string) ([]models.Purchase, error) {
	return s.DB.ListByOrganization(organizationID)
}

func (s *PurchaseService) ListAll() ([]models.Purchase, error) {
	return s.DB.ListAll()
}
