package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError covers malformed or inconsistent input: empty carts, mixed
// currencies, bad enums, quantities outside per-line bounds. Surfaced as 400,
// never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Validation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// ConflictError covers insufficient stock, duplicate discount codes, illegal
// state transitions and refunds exceeding the purchase total. Surfaced as 409.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

func Conflict(format string, args ...any) error {
	return &ConflictError{Msg: fmt.Sprintf(format, args...)}
}

// AuthorizationError covers cross-tenant and cross-owner access. Surfaced as
// 403 and logged with actor and resource for audit.
type AuthorizationError struct {
	Actor    string
	Resource string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("actor %s is not allowed to access %s", e.Actor, e.Resource)
}

func Forbidden(actor, resource string) error {
	return &AuthorizationError{Actor: actor, Resource: resource}
}

// ReconciliationError marks the case where a payment was confirmed but an
// inventory reservation failed. It must never be swallowed and never causes
// the payment confirmation itself to be rejected; it is flagged for manual
// operator reconciliation.
type ReconciliationError struct {
	PurchaseID string
	Msg        string
	Err        error
}

func (e *ReconciliationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("purchase %s needs reconciliation: %s: %v", e.PurchaseID, e.Msg, e.Err)
	}
	return fmt.Sprintf("purchase %s needs reconciliation: %s", e.PurchaseID, e.Msg)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

// HTTPStatus maps the taxonomy to response codes. Reconciliation errors map
// to 500: the payment stands, but the caller must learn something went wrong
// downstream.
func HTTPStatus(err error) int {
	var (
		validation *ValidationError
		notFound   *NotFoundError
		conflict   *ConflictError
		forbidden  *AuthorizationError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &forbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
