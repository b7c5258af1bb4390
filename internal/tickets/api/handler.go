package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-commerce/internal/apperr"
	"ms-commerce/internal/auth"
	"ms-commerce/internal/logger"
	"ms-commerce/internal/models"
	"ms-commerce/internal/tickets"
	"ms-commerce/internal/utils"
)

type Handler struct {
	TicketService *tickets.TicketService
	Logger        *logger.Logger
}

func NewHandler(ticketService *tickets.TicketService, log *logger.Logger) *Handler {
	return &Handler{TicketService: ticketService, Logger: log}
}

// Scan records a front-desk check-in. The scanner must act for an
// organization; the service rejects scans across tenants.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	if identity.OrganizationID == "" {
		utils.WriteError(w, "access denied", apperr.Forbidden(identity.UserID, "ticket scanning"))
		return
	}

	var req models.ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, "invalid request body", apperr.Validation("%v", err))
		return
	}
	if req.TicketCode == "" {
		utils.WriteError(w, "invalid request body", apperr.Validation("ticket_code is required"))
		return
	}

	ticket, err := h.TicketService.RecordScan(req.TicketCode, identity.UserID, identity.OrganizationID, req.CheckInLocation)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Scan: %v", err))
		utils.WriteError(w, "could not record scan", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, "ticket scanned", ticket)
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	ticketID := chi.URLParam(r, "ticketId")

	var req models.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, "invalid request body", apperr.Validation("%v", err))
		return
	}

	ticket, err := h.TicketService.Transfer(ticketID, identity.UserID, req.NewOwnerID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Transfer: %v", err))
		utils.WriteError(w, "could not transfer ticket", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, "ticket transferred", ticket)
}

func (h *Handler) ListMyTickets(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}

	ticketList, err := h.TicketService.ListByOwner(identity.UserID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListMyTickets: %v", err))
		utils.WriteError(w, "could not list tickets", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, "tickets", ticketList)
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	ticketID := chi.URLParam(r, "ticketId")

	ticket, err := h.TicketService.GetTicket(ticketID)
	if err != nil {
		utils.WriteError(w, "could not load ticket", err)
		return
	}

	allowed := identity.IsAdmin() ||
		ticket.OwnerID == identity.UserID ||
		(identity.HasRole(auth.RoleOrganizer) && identity.OrganizationID == ticket.OrganizationID)
	if !allowed {
		h.Logger.LogSecurity("ACCESS", fmt.Sprintf("user %s denied on ticket %s", identity.UserID, ticketID))
		utils.WriteError(w, "access denied", apperr.Forbidden(identity.UserID, "ticket "+ticketID))
		return
	}

	utils.WriteJSON(w, http.StatusOK, "ticket", ticket)
}
