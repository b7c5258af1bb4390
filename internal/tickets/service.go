package tickets

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-commerce/internal/apperr"
	"ms-commerce/internal/logger"
	"ms-commerce/internal/models"
	"ms-commerce/internal/tickets/qr"
	"ms-commerce/internal/utils"
)

type DBLayer interface {
	CreateTickets(tickets []models.Ticket) error
	GetTicketByID(id string) (*models.Ticket, error)
	GetTicketByCode(code string) (*models.Ticket, error)
	GetTicketsByPurchase(purchaseID string) ([]models.Ticket, error)
	GetTicketsByOwner(ownerID string) ([]models.Ticket, error)
	MarkScanned(ticketID, scannerID, location string, at time.Time) (bool, error)
	InvalidateValidByPurchase(purchaseID string, status models.TicketStatus) (int64, error)
	TransferOwner(ticketID, fromOwnerID, toOwnerID string) (bool, error)
	AppendTransfer(transfer models.TicketTransfer) error
	GetTransfersByTicket(ticketID string) ([]models.TicketTransfer, error)
}

type Catalog interface {
	GetTicketType(id string) (*models.TicketType, error)
}

type QRGenerator interface {
	GenerateEncryptedQR(payload qr.TicketPayload) ([]byte, error)
}

// TicketService mints, invalidates, scans and transfers tickets.
type TicketService struct {
	DB      DBLayer
	Catalog Catalog
	QR      QRGenerator
	Logger  *logger.Logger
}

func NewTicketService(db DBLayer, catalog Catalog, qrGen QRGenerator, log *logger.Logger) *TicketService {
	return &TicketService{DB: db, Catalog: catalog, QR: qrGen, Logger: log}
}

// IssueForPurchase mints one valid ticket per purchased unit across all ticket
// line items. The caller flips TicketsIssued on the purchase afterwards;
// re-invocation for a purchase already flagged returns the existing tickets
// instead of minting duplicates.
func (s *TicketService) IssueForPurchase(p *models.PurchaseWithItems) ([]models.Ticket, error) {
	if p.TicketsIssued {
		s.Logger.Info("TICKET", fmt.Sprintf("tickets already issued for purchase %s, skipping", p.ID))
		return s.DB.GetTicketsByPurchase(p.ID)
	}

	var tickets []models.Ticket
	now := time.Now()
	for _, line := range p.TicketItems {
		tt, err := s.Catalog.GetTicketType(line.TicketTypeID)
		if err != nil {
			return nil, fmt.Errorf("issue tickets for purchase %s: %w", p.ID, err)
		}

		for i := 0; i < line.Quantity; i++ {
			ticket := models.Ticket{
				TicketID:        uuid.NewString(),
				TicketTypeID:    line.TicketTypeID,
				EventID:         p.EventID,
				OrganizationID:  p.OrganizationID,
				PurchaseID:      p.ID,
				OwnerID:         p.BuyerID,
				Status:          models.TicketValid,
				Code:            utils.GenerateRedemptionCode(),
				PriceAtPurchase: line.UnitPrice,
				Currency:        p.Currency,
				Transferable:    tt.Transferable,
				IssuedAt:        now,
			}

			qrBytes, err := s.QR.GenerateEncryptedQR(qr.TicketPayload{
				TicketID:       ticket.TicketID,
				Code:           ticket.Code,
				EventID:        ticket.EventID,
				OrganizationID: ticket.OrganizationID,
				OwnerID:        ticket.OwnerID,
				IssuedAt:       ticket.IssuedAt,
			})
			if err != nil {
				return nil, fmt.Errorf("generate QR for purchase %s: %w", p.ID, err)
			}
			ticket.QRCode = qrBytes

			tickets = append(tickets, ticket)
		}
	}

	if err := s.DB.CreateTickets(tickets); err != nil {
		return nil, fmt.Errorf("persist tickets for purchase %s: %w", p.ID, err)
	}

	s.Logger.Info("TICKET", fmt.Sprintf("issued %d tickets for purchase %s", len(tickets), p.ID))
	return tickets, nil
}

// InvalidateForPurchase bulk-moves all still-valid tickets of the purchase to
// a terminal status. Tickets already used or invalidated keep their state.
func (s *TicketService) InvalidateForPurchase(purchaseID string, status models.TicketStatus) (int64, error) {
	switch status {
	case models.TicketRefunded, models.TicketCancelled, models.TicketExpired:
	default:
		return 0, apperr.Validation("cannot invalidate tickets to status %q", status)
	}

	count, err := s.DB.InvalidateValidByPurchase(purchaseID, status)
	if err != nil {
		return 0, fmt.Errorf("invalidate tickets for purchase %s: %w", purchaseID, err)
	}
	s.Logger.Info("TICKET", fmt.Sprintf("invalidated %d tickets for purchase %s to %s", count, purchaseID, status))
	return count, nil
}

// RecordScan moves a ticket from valid to used, recording scanner identity,
// time and location. The scanner must belong to the ticket's organization.
// Non-valid tickets yield a distinct error per state so front-desk staff see
// an actionable message.
func (s *TicketService) RecordScan(code, scannerID, scannerOrgID, location string) (*models.Ticket, error) {
	ticket, err := s.DB.GetTicketByCode(code)
	if err != nil {
		return nil, err
	}

	if ticket.OrganizationID != scannerOrgID {
		s.Logger.LogSecurity("SCAN", fmt.Sprintf("org %s attempted to scan ticket of org %s", scannerOrgID, ticket.OrganizationID))
		return nil, apperr.Forbidden(scannerID, "ticket "+ticket.TicketID)
	}

	if err := rejectNonValid(ticket.Status); err != nil {
		return nil, err
	}

	applied, err := s.DB.MarkScanned(ticket.TicketID, scannerID, location, time.Now())
	if err != nil {
		return nil, fmt.Errorf("record scan for ticket %s: %w", ticket.TicketID, err)
	}
	if !applied {
		// lost the race against another scanner; re-read for the precise state
		current, err := s.DB.GetTicketByID(ticket.TicketID)
		if err != nil {
			return nil, err
		}
		return nil, rejectNonValid(current.Status)
	}

	s.Logger.Info("TICKET", fmt.Sprintf("ticket %s scanned by %s at %s", ticket.TicketID, scannerID, location))
	return s.DB.GetTicketByID(ticket.TicketID)
}

func rejectNonValid(status models.TicketStatus) error {
	switch status {
	case models.TicketValid:
		return nil
	case models.TicketUsed:
		return apperr.Conflict("ticket has already been used")
	case models.TicketCancelled:
		return apperr.Conflict("ticket has been cancelled")
	case models.TicketRefunded:
		return apperr.Conflict("ticket has been refunded")
	case models.TicketExpired:
		return apperr.Conflict("ticket has expired")
	default:
		return apperr.Conflict("ticket is not valid for entry (status %s)", status)
	}
}

// Transfer moves a valid, transferable ticket to a new owner and appends to
// the transfer history. The ticket stays valid under the new owner.
func (s *TicketService) Transfer(ticketID, fromOwnerID, toOwnerID string) (*models.Ticket, error) {
	ticket, err := s.DB.GetTicketByID(ticketID)
	if err != nil {
		return nil, err
	}

	if ticket.OwnerID != fromOwnerID {
		return nil, apperr.Forbidden(fromOwnerID, "ticket "+ticketID)
	}
	if !ticket.Transferable {
		return nil, apperr.Conflict("ticket %s is not transferable", ticketID)
	}
	if err := rejectNonValid(ticket.Status); err != nil {
		return nil, err
	}
	if toOwnerID == "" || toOwnerID == fromOwnerID {
		return nil, apperr.Validation("transfer requires a different, non-empty new owner")
	}

	applied, err := s.DB.TransferOwner(ticketID, fromOwnerID, toOwnerID)
	if err != nil {
		return nil, fmt.Errorf("transfer ticket %s: %w", ticketID, err)
	}
	if !applied {
		return nil, apperr.Conflict("ticket %s changed concurrently, transfer not applied", ticketID)
	}

	record := models.TicketTransfer{
		TicketID:      ticketID,
		FromOwnerID:   fromOwnerID,
		ToOwnerID:     toOwnerID,
		TransferredAt: time.Now(),
	}
	if err := s.DB.AppendTransfer(record); err != nil {
		s.Logger.Error("TICKET", fmt.Sprintf("transfer of %s applied but history append failed: %v", ticketID, err))
	}

	s.Logger.Info("TICKET", fmt.Sprintf("ticket %s transferred from %s to %s", ticketID, fromOwnerID, toOwnerID))
	return s.DB.GetTicketByID(ticketID)
}

func (s *TicketService) GetTicket(id string) (*models.Ticket, error) {
	return s.DB.GetTicketByID(id)
}

func (s *TicketService) ListByOwner(ownerID string) ([]models.Ticket, error) {
	return s.DB.GetTicketsByOwner(ownerID)
}

func (s *TicketService) TransferHistory(ticketID string) ([]models.TicketTransfer, error) {
	return s.DB.GetTransfersByTicket(ticketID)
}
