package services

import (
	"errors"

	"gorm.io/gorm"
)

// ErrorKind classifies service failures so the HTTP layer can pick a status
// code without knowing every sentinel.
type ErrorKind int

const (
	KindInfrastructure ErrorKind = iota
	KindValidation
	KindAuthorization
	KindNotFound
	KindPolicy
	KindConflict
)

// ServiceError is a sentinel failure with a user-facing message.
type ServiceError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}

func newError(kind ErrorKind, code, message string) *ServiceError {
	return &ServiceError{Kind: kind, Code: code, Message: message}
}

var (
	ErrInvalidQuantity = newError(KindValidation, "INVALID_QUANTITY", "quantity must be positive")
	ErrReasonRequired  = newError(KindValidation, "REASON_REQUIRED", "a reason is required to void an item")
	ErrInvalidAmount   = newError(KindValidation, "INVALID_AMOUNT", "amount is invalid")
	ErrInvalidMethod   = newError(KindValidation, "INVALID_METHOD", "payment method is not supported")
	ErrInvalidType     = newError(KindValidation, "INVALID_TYPE", "ledger entry type is not supported")
	ErrKeyRequired     = newError(KindValidation, "IDEMPOTENCY_KEY_REQUIRED", "an idempotency key is required")

	ErrUnauthorized = newError(KindAuthorization, "UNAUTHORIZED", "you are not allowed to act on this resource")

	ErrOrderNotFound       = newError(KindNotFound, "ORDER_NOT_FOUND", "order not found")
	ErrItemNotFound        = newError(KindNotFound, "ITEM_NOT_FOUND", "order item not found")
	ErrProductNotFound     = newError(KindNotFound, "PRODUCT_NOT_FOUND", "product not found")
	ErrTableNotFound       = newError(KindNotFound, "TABLE_NOT_FOUND", "table not found")
	ErrSessionNotFound     = newError(KindNotFound, "SESSION_NOT_FOUND", "table session not found")
	ErrReservationNotFound = newError(KindNotFound, "RESERVATION_NOT_FOUND", "reservation not found")
	ErrCustomerNotFound    = newError(KindNotFound, "CUSTOMER_NOT_FOUND", "customer not found")

	ErrOrderClosed        = newError(KindPolicy, "ORDER_CLOSED", "order is already served or paid")
	ErrItemVoided         = newError(KindPolicy, "ITEM_VOIDED", "item has been voided")
	ErrNotSentToKitchen   = newError(KindPolicy, "NOT_SENT_TO_KITCHEN", "only items already sent to the kitchen can be voided")
	ErrOverServe          = newError(KindPolicy, "OVER_SERVE", "served quantity would exceed ordered quantity")
	ErrOrderAlreadyPaid   = newError(KindPolicy, "ORDER_ALREADY_PAID", "order is already paid")
	ErrAmountMismatch     = newError(KindPolicy, "AMOUNT_MISMATCH", "payment amount does not settle the order total")
	ErrTableTimePending   = newError(KindPolicy, "TABLE_TIME_PENDING", "table time is still running; release the session first")
	ErrTooLateToCancel    = newError(KindPolicy, "TOO_LATE_TO_CANCEL", "reservation is inside the cancellation window")
	ErrNotCancellable     = newError(KindPolicy, "NOT_CANCELLABLE", "reservation can no longer be cancelled")
	ErrSessionNotActive   = newError(KindPolicy, "SESSION_NOT_ACTIVE", "table session is not active")
	ErrInvalidTransition  = newError(KindPolicy, "INVALID_TRANSITION", "table session cannot make this transition")
	ErrProductUnavailable = newError(KindPolicy, "PRODUCT_UNAVAILABLE", "product is not available")

	ErrTableAlreadyOccupied = newError(KindConflict, "TABLE_ALREADY_OCCUPIED", "table already has an active session")
	ErrIdempotencyConflict  = newError(KindConflict, "IDEMPOTENCY_CONFLICT", "idempotency key was already used for a different entry")
)

// KindOf returns the classification of err. Unclassified errors are
// infrastructure failures and are safe to retry.
func KindOf(err error) ErrorKind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInfrastructure
}

// notFound maps gorm's record-not-found onto the given sentinel.
func notFound(err error, sentinel *ServiceError) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
