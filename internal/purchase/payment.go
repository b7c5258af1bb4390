package purchase

import (
	"errors"
	"fmt"
	"time"

	"ms-commerce/internal/apperr"
	"ms-commerce/internal/inventory"
	"ms-commerce/internal/models"
	"ms-commerce/internal/utils"
)

// legalTransitions is the payment-status state machine: pending is the only
// non-terminal state, and refunds leave completed only.
var legalTransitions = map[models.PaymentStatus][]models.PaymentStatus{
	models.PaymentPending:   {models.PaymentCompleted, models.PaymentFailed, models.PaymentCancelled},
	models.PaymentCompleted: {models.PaymentRefunded},
}

func transitionAllowed(from, to models.PaymentStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// UpdatePaymentStatus is the payment-signal entry point. A duplicate
// completed callback is a no-op, not an error, so gateways can redeliver
// safely. Refunds carry an amount and a reason and therefore enter through
// Refund, not here.
func (s *PurchaseService) UpdatePaymentStatus(id string, target models.PaymentStatus, reference string) (*models.PurchaseWithItems, error) {
	switch target {
	case models.PaymentCompleted, models.PaymentFailed, models.PaymentCancelled:
	case models.PaymentRefunded:
		return nil, apperr.Validation("refunds must go through the refund operation")
	default:
		return nil, apperr.Validation("unknown payment status %q", target)
	}

	p, err := s.DB.GetPurchaseWithItems(id)
	if err != nil {
		return nil, err
	}

	// duplicate callback tolerance
	if p.PaymentStatus == target {
		s.Logger.LogPurchase("PAYMENT", id, fmt.Sprintf("already %s, ignoring duplicate signal", target))
		return p, nil
	}

	if !transitionAllowed(p.PaymentStatus, target) {
		return nil, apperr.Conflict("illegal payment transition %s -> %s for purchase %s", p.PaymentStatus, target, id)
	}

	claimed := false
	if s.Guard != nil {
		acquired, err := s.Guard.Acquire(id, target)
		switch {
		case err != nil:
			s.Logger.Warn("PAYMENT", fmt.Sprintf("callback guard unavailable for %s: %v", id, err))
		case !acquired:
			s.Logger.LogPurchase("PAYMENT", id, fmt.Sprintf("concurrent %s signal in flight, returning current state", target))
			return p, nil
		default:
			claimed = true
		}
	}

	var out *models.PurchaseWithItems
	var opErr error
	switch target {
	case models.PaymentCompleted:
		out, opErr = s.completePurchase(p, reference)
	default:
		out, opErr = s.closePurchase(p, target, reference)
	}

	// a failed transition must not hold the claim for the full TTL, or a
	// legitimate gateway retry inside that window would be answered with the
	// stale state
	if opErr != nil && claimed {
		if relErr := s.Guard.Release(id, target); relErr != nil {
			s.Logger.Warn("PAYMENT", fmt.Sprintf("failed to release callback claim for %s: %v", id, relErr))
		}
	}
	return out, opErr
}

// completePurchase performs the side effects of entering completed: commit
// stock, record discount usage, mint tickets. The conditional status write
// happens first and elects the one callback that runs the side effects; it
// lands before anything else because the payment is real, so an inventory
// failure afterwards is escalated for operator reconciliation, never used to
// reject the payment.
func (s *PurchaseService) completePurchase(p *models.PurchaseWithItems, reference string) (*models.PurchaseWithItems, error) {
	applied, err := s.DB.TransitionPaymentStatus(p.ID, p.PaymentStatus, models.PaymentCompleted, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to mark purchase %s completed: %w", p.ID, err)
	}
	if !applied {
		s.Logger.LogPurchase("PAYMENT", p.ID, "lost completed write to a concurrent signal, returning current state")
		return s.DB.GetPurchaseWithItems(p.ID)
	}
	p.PaymentStatus = models.PaymentCompleted
	p.PaymentReference = reference
	p.UpdatedAt = time.Now()

	var reserveErrs []error
	for _, unit := range lineUnits(p) {
		if err := s.Inventory.Reserve(unit.ref, unit.qty); err != nil {
			reserveErrs = append(reserveErrs, err)
		}
	}
	if len(reserveErrs) > 0 {
		recErr := &apperr.ReconciliationError{
			PurchaseID: p.ID,
			Msg:        "payment confirmed but inventory reservation failed",
			Err:        errors.Join(reserveErrs...),
		}
		s.Logger.Error("PAYMENT", recErr.Error())
		s.Kafka.Notify("purchase.reconciliation_needed", map[string]any{
			"purchase_id": p.ID,
			"detail":      recErr.Error(),
		})
		return p, recErr
	}

	if p.AppliedDiscountID != "" {
		// reconciliation counter only; never blocks completion
		if err := s.Discounts.IncrementUsage(p.AppliedDiscountID); err != nil {
			s.Logger.Warn("DISCOUNT", err.Error())
		}
	}

	tickets, err := s.Tickets.IssueForPurchase(p)
	if err != nil {
		recErr := &apperr.ReconciliationError{
			PurchaseID: p.ID,
			Msg:        "payment confirmed but ticket issuance failed",
			Err:        err,
		}
		s.Logger.Error("PAYMENT", recErr.Error())
		return p, recErr
	}

	if len(p.TicketItems) > 0 {
		p.TicketsIssued = true
		p.UpdatedAt = time.Now()
		if err := s.DB.UpdatePurchase(p.Purchase); err != nil {
			return nil, fmt.Errorf("failed to flag tickets issued for %s: %w", p.ID, err)
		}
	}

	s.Logger.LogPurchase("PAYMENT", p.ID, fmt.Sprintf("completed, %d tickets issued", len(tickets)))

	if err := s.Kafka.PublishPurchaseCompleted(p.Purchase); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("purchase completed event for %s dropped: %v", p.ID, err))
	}
	if len(tickets) > 0 {
		if err := s.Kafka.PublishTicketsIssued(p.ID, tickets); err != nil {
			s.Logger.Warn("KAFKA", fmt.Sprintf("tickets issued event for %s dropped: %v", p.ID, err))
		}
	}
	s.Kafka.Notify("purchase.completed", p.Purchase)

	return p, nil
}

// closePurchase handles pending -> failed and pending -> cancelled: a status
// write and an event, nothing to compensate because stock was never reserved.
func (s *PurchaseService) closePurchase(p *models.PurchaseWithItems, target models.PaymentStatus, reference string) (*models.PurchaseWithItems, error) {
	applied, err := s.DB.TransitionPaymentStatus(p.ID, p.PaymentStatus, target, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to mark purchase %s %s: %w", p.ID, target, err)
	}
	if !applied {
		s.Logger.LogPurchase("PAYMENT", p.ID, fmt.Sprintf("lost %s write to a concurrent signal, returning current state", target))
		return s.DB.GetPurchaseWithItems(p.ID)
	}
	p.PaymentStatus = target
	p.PaymentReference = reference
	p.UpdatedAt = time.Now()

	s.Logger.LogPurchase("PAYMENT", p.ID, string(target))

	if target == models.PaymentCancelled {
		if err := s.Kafka.PublishPurchaseCancelled(p.Purchase); err != nil {
			s.Logger.Warn("KAFKA", fmt.Sprintf("purchase cancelled event for %s dropped: %v", p.ID, err))
		}
	}
	s.Kafka.Notify("purchase."+string(target), p.Purchase)

	return p, nil
}

// Refund enters refunded from completed: stock goes back, still-valid tickets
// are invalidated (used tickets keep their scan history), and the refund is
// logged. Discount usage is deliberately not decremented, so limited codes
// cannot be recycled through refunds.
func (s *PurchaseService) Refund(id string, amount float64, reason, actor string) (*models.PurchaseWithItems, error) {
	if amount <= 0 {
		return nil, apperr.Validation("refund amount must be positive")
	}

	p, err := s.DB.GetPurchaseWithItems(id)
	if err != nil {
		return nil, err
	}

	if p.PaymentStatus != models.PaymentCompleted {
		return nil, apperr.Conflict("purchase %s is %s, only completed purchases can be refunded", id, p.PaymentStatus)
	}
	if p.RefundTotal+amount > p.TotalAmount {
		return nil, apperr.Conflict("refund of %.2f would exceed purchase total %.2f (already refunded %.2f)", amount, p.TotalAmount, p.RefundTotal)
	}

	// the conditional write re-checks both preconditions, so a refund racing
	// this one cannot double apply or push the total past the purchase amount
	applied, err := s.DB.ApplyRefund(id, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to mark purchase %s refunded: %w", id, err)
	}
	if !applied {
		cur, err := s.DB.GetPurchaseWithItems(id)
		if err != nil {
			return nil, err
		}
		if cur.PaymentStatus != models.PaymentCompleted {
			return nil, apperr.Conflict("purchase %s is %s, only completed purchases can be refunded", id, cur.PaymentStatus)
		}
		return nil, apperr.Conflict("refund of %.2f would exceed purchase total %.2f (already refunded %.2f)", amount, cur.TotalAmount, cur.RefundTotal)
	}
	p.PaymentStatus = models.PaymentRefunded
	p.RefundTotal += amount
	p.UpdatedAt = time.Now()

	var releaseErrs []error
	for _, unit := range lineUnits(p) {
		if err := s.Inventory.Release(unit.ref, unit.qty); err != nil {
			releaseErrs = append(releaseErrs, err)
		}
	}

	if _, err := s.Tickets.InvalidateForPurchase(id, models.TicketRefunded); err != nil {
		releaseErrs = append(releaseErrs, err)
	}

	record := models.RefundRecord{
		PurchaseID:  id,
		ProviderRef: utils.GenerateRefundID(),
		Amount:      amount,
		Reason:      reason,
		Actor:       actor,
		RefundedAt:  time.Now(),
	}
	if err := s.DB.AppendRefund(record); err != nil {
		return nil, fmt.Errorf("failed to append refund record for %s: %w", id, err)
	}
	p.Refunds = append(p.Refunds, record)

	s.Logger.LogPurchase("REFUND", id, fmt.Sprintf("amount=%.2f by %s: %s", amount, actor, reason))

	if err := s.Kafka.PublishPurchaseRefunded(p.Purchase); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("purchase refunded event for %s dropped: %v", id, err))
	}
	s.Kafka.Notify("purchase.refunded", p.Purchase)

	if len(releaseErrs) > 0 {
		recErr := &apperr.ReconciliationError{
			PurchaseID: id,
			Msg:        "refund recorded but stock release or ticket invalidation failed",
			Err:        errors.Join(releaseErrs...),
		}
		s.Logger.Error("PAYMENT", recErr.Error())
		return p, recErr
	}

	return p, nil
}

type lineUnit struct {
	ref inventory.UnitRef
	qty int
}

func lineUnits(p *models.PurchaseWithItems) []lineUnit {
	var units []lineUnit
	for _, line := range p.TicketItems {
		units = append(units, lineUnit{
			ref: inventory.UnitRef{Kind: inventory.KindTicketType, ID: line.TicketTypeID},
			qty: line.Quantity,
		})
	}
	for _, line := range p.ProductItems {
		ref := inventory.UnitRef{Kind: inventory.KindProduct, ID: line.ProductID}
		if line.VariantID != "" {
			ref = inventory.UnitRef{Kind: inventory.KindProductVariant, ID: line.VariantID}
		}
		units = append(units, lineUnit{ref: ref, qty: line.Quantity})
	}
	return units
}
