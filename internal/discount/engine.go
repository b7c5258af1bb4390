package discount

import (
	"errors"
	"fmt"
	"time"

	"ms-commerce/internal/apperr"
	"ms-commerce/internal/logger"
	"ms-commerce/internal/models"
)

// Store is the persistence surface the engine needs. IncrementUsage must be a
// single atomic conditional update.
type Store interface {
	GetByCode(code, organizationID string) (*models.Discount, error)
	IncrementUsage(discountID string) (bool, error)
}

// Engine validates discount codes and computes per-line discounts.
type Engine struct {
	Store  Store
	Logger *logger.Logger
}

func NewEngine(store Store, log *logger.Logger) *Engine {
	return &Engine{Store: store, Logger: log}
}

// LineRef identifies one cart line for applicability checks.
type LineRef struct {
	IsTicket     bool
	TicketTypeID string
	ProductID    string
	CategoryID   string
}

// ValidateCode returns the active, unexpired, not-exhausted discount matching
// the code case-insensitively within the organization. Every failure mode maps
// to the same validation error so callers cannot enumerate codes or probe
// their state.
func (e *Engine) ValidateCode(code, organizationID string) (*models.Discount, error) {
	d, err := e.Store.GetByCode(code, organizationID)
	if err != nil {
		var notFound *apperr.NotFoundError
		if errors.As(err, &notFound) {
			return nil, e.rejected(code, "not found")
		}
		return nil, err
	}

	if !d.IsActive {
		return nil, e.rejected(code, "inactive")
	}
	now := time.Now()
	if now.Before(d.StartDate) {
		return nil, e.rejected(code, "not yet active")
	}
	if now.After(d.EndDate) {
		return nil, e.rejected(code, "expired")
	}
	if d.UsageLimit > 0 && d.UsageCount >= d.UsageLimit {
		return nil, e.rejected(code, "usage limit reached")
	}

	return d, nil
}

func (e *Engine) rejected(code, reason string) error {
	if e.Logger != nil {
		e.Logger.Debug("DISCOUNT", fmt.Sprintf("code %q rejected: %s", code, reason))
	}
	return apperr.Validation("discount code is invalid or no longer available")
}

// IsApplicable reports whether the discount covers the given line: the scope
// must match the line's kind and the applicability set must be empty or
// contain the line's unit (ticket type, product or the product's category).
func IsApplicable(d *models.Discount, line LineRef) bool {
	switch d.Scope {
	case models.ScopeEvent:
		if !line.IsTicket {
			return false
		}
		return len(d.TicketTypeIDs) == 0 || contains(d.TicketTypeIDs, line.TicketTypeID)
	case models.ScopeProduct:
		if line.IsTicket {
			return false
		}
		if len(d.ProductIDs) == 0 && len(d.ProductCategoryIDs) == 0 {
			return true
		}
		return contains(d.ProductIDs, line.ProductID) ||
			(line.CategoryID != "" && contains(d.ProductCategoryIDs, line.CategoryID))
	default:
		return false
	}
}

// UnitDiscount computes the per-unit discount against a base price. The
// result never exceeds the base price.
func UnitDiscount(d *models.Discount, basePrice float64) float64 {
	var amount float64
	switch d.Type {
	case models.FixedAmount:
		amount = d.Value
	case models.Percentage:
		amount = basePrice * d.Value / 100
		if d.MaxDiscount > 0 && amount > d.MaxDiscount {
			amount = d.MaxDiscount
		}
	default:
		return 0
	}
	if amount > basePrice {
		amount = basePrice
	}
	if amount < 0 {
		amount = 0
	}
	return amount
}

// IncrementUsage bumps the usage counter once. It is invoked only on the
// pending -> completed transition and only when the purchase applied a code.
// The counter is reconciliation data, not the source of truth for pricing, so
// a miss is reported to the caller for logging but is never rolled back into
// the purchase.
func (e *Engine) IncrementUsage(discountID string) error {
	applied, err := e.Store.IncrementUsage(discountID)
	if err != nil {
		return fmt.Errorf("increment usage for discount %s: %w", discountID, err)
	}
	if !applied {
		return fmt.Errorf("usage increment for discount %s not applied (limit reached or deleted)", discountID)
	}
	return nil
}

func contains(set []string, id string) bool {
	for _, s := range set {
		if s == id {
			return true
		}
	}
	return false
}
