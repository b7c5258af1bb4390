package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-commerce/internal/apperr"
	"ms-commerce/internal/auth"
	"ms-commerce/internal/logger"
	"ms-commerce/internal/models"
	"ms-commerce/internal/purchase"
	"ms-commerce/internal/utils"
)

type Handler struct {
	PurchaseService *purchase.PurchaseService
	Logger          *logger.Logger
}

func NewHandler(purchaseService *purchase.PurchaseService, log *logger.Logger) *Handler {
	return &Handler{PurchaseService: purchaseService, Logger: log}
}

func (h *Handler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}

	var req models.PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreatePurchase: failed to decode request body: %v", err))
		utils.WriteError(w, "invalid request body", apperr.Validation("%v", err))
		return
	}

	p, err := h.PurchaseService.CreatePurchase(req, identity.UserID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreatePurchase: %v", err))
		utils.WriteError(w, "could not create purchase", err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, "purchase created", p)
}

func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}

	var (
		purchases []models.Purchase
		err       error
	)
	switch {
	case identity.IsAdmin():
		purchases, err = h.PurchaseService.ListAll()
	case identity.HasRole(auth.RoleOrganizer) && identity.OrganizationID != "":
		purchases, err = h.PurchaseService.ListByOrganization(identity.OrganizationID)
	default:
		purchases, err = h.PurchaseService.ListByBuyer(identity.UserID)
	}
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListPurchases: %v", err))
		utils.WriteError(w, "could not list purchases", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, "purchases", purchases)
}

func (h *Handler) GetPurchase(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	purchaseID := chi.URLParam(r, "purchaseId")

	p, err := h.PurchaseService.GetPurchase(purchaseID)
	if err != nil {
		utils.WriteError(w, "could not load purchase", err)
		return
	}

	if err := canAccessPurchase(identity, &p.Purchase); err != nil {
		h.Logger.LogSecurity("ACCESS", fmt.Sprintf("user %s denied on purchase %s", identity.UserID, purchaseID))
		utils.WriteError(w, "access denied", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, "purchase", p)
}

// UpdatePaymentStatus is the payment-signal entry point, restricted to the
// gateway webhook proxy and admins. A completed payment is acknowledged with
// 200 even when downstream reservation failed: the customer was already told
// the payment succeeded, so the inconsistency is flagged for reconciliation
// instead of bounced back at the gateway.
func (h *Handler) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	if !identity.IsAdmin() && !identity.HasRole(auth.RoleGateway) {
		utils.WriteError(w, "access denied", apperr.Forbidden(identity.UserID, "payment status"))
		return
	}

	purchaseID := chi.URLParam(r, "purchaseId")

	var req models.PaymentStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, "invalid request body", apperr.Validation("%v", err))
		return
	}

	p, err := h.PurchaseService.UpdatePaymentStatus(purchaseID, req.Status, req.PaymentReference)
	if err != nil {
		var recErr *apperr.ReconciliationError
		if errors.As(err, &recErr) {
			utils.WriteJSON(w, http.StatusOK, "payment recorded, reconciliation flagged", p)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("UpdatePaymentStatus: %v", err))
		utils.WriteError(w, "could not update payment status", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, "payment status updated", p)
}

func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	purchaseID := chi.URLParam(r, "purchaseId")

	existing, err := h.PurchaseService.GetPurchase(purchaseID)
	if err != nil {
		utils.WriteError(w, "could not load purchase", err)
		return
	}
	if err := canRefundPurchase(identity, &existing.Purchase); err != nil {
		h.Logger.LogSecurity("ACCESS", fmt.Sprintf("user %s denied refund on purchase %s", identity.UserID, purchaseID))
		utils.WriteError(w, "access denied", err)
		return
	}

	var req models.RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, "invalid request body", apperr.Validation("%v", err))
		return
	}

	p, err := h.PurchaseService.Refund(purchaseID, req.Amount, req.Reason, identity.UserID)
	if err != nil {
		var recErr *apperr.ReconciliationError
		if errors.As(err, &recErr) {
			utils.WriteJSON(w, http.StatusOK, "refund recorded, reconciliation flagged", p)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("Refund: %v", err))
		utils.WriteError(w, "could not refund purchase", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, "purchase refunded", p)
}
