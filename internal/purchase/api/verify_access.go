package api

import (
	"ms-commerce/internal/apperr"
	"ms-commerce/internal/auth"
	"ms-commerce/internal/models"
)

// canAccessPurchase enforces the read scoping: customers see their own
// purchases, organization staff see their organization's, admins everything.
func canAccessPurchase(identity auth.Identity, p *models.Purchase) error {
	if identity.IsAdmin() {
		return nil
	}
	if identity.HasRole(auth.RoleOrganizer) && identity.OrganizationID == p.OrganizationID {
		return nil
	}
	if p.BuyerID == identity.UserID {
		return nil
	}
	return apperr.Forbidden(identity.UserID, "purchase "+p.ID)
}

// canRefundPurchase restricts refunds to admins and staff of the purchase's
// organization; buyers cannot refund themselves.
func canRefundPurchase(identity auth.Identity, p *models.Purchase) error {
	if identity.IsAdmin() {
		return nil
	}
	if identity.HasRole(auth.RoleOrganizer) && identity.OrganizationID == p.OrganizationID {
		return nil
	}
	return apperr.Forbidden(identity.UserID, "refund of purchase "+p.ID)
}
