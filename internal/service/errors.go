package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ── Stock and sale error taxonomy ─────────────────────────────────────────────
// Handlers match these with errors.As to choose a status code.

var (
	ErrInvalidQuantity      = errors.New("quantity must be positive")
	ErrInvalidOperationType = errors.New("invalid stock operation type")
	ErrInvalidCredentials   = errors.New("invalid credentials")

	ErrInvalidReservationType = errors.New("invalid reservation type")
	ErrReservationExpiry      = errors.New("reservation expiry must be in the future")
	ErrPrescriptionRequired   = errors.New("prescription reference required for prescription-only product")
	ErrInvalidDiscount        = errors.New("discount exceeds amount")
	ErrDuplicateBatch         = errors.New("batch number already exists for product")
	ErrInvalidExpiry          = errors.New("expiry date must be after manufacturing date")
)

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

type InactiveEntityError struct {
	Entity string
	ID     string
}

func (e *InactiveEntityError) Error() string {
	return fmt.Sprintf("%s %s is inactive", e.Entity, e.ID)
}

// InsufficientStockError carries the numbers the caller needs to react.
type InsufficientStockError struct {
	ProductID uuid.UUID
	BatchID   *uuid.UUID
	Available int
	Required  int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock: available %d, requested %d", e.Available, e.Required)
}

type ExpiredBatchError struct {
	BatchID     uuid.UUID
	BatchNumber string
	ExpiryDate  time.Time
}

func (e *ExpiredBatchError) Error() string {
	return fmt.Sprintf("batch %s expired on %s", e.BatchNumber, e.ExpiryDate.Format("2006-01-02"))
}

// StockValidationError aggregates every reason a validation failed. The typed
// causes stay reachable through errors.As.
type StockValidationError struct {
	Errors   []string
	Warnings []string
	Causes   []error
}

func (e *StockValidationError) Error() string {
	return "stock validation failed: " + strings.Join(e.Errors, "; ")
}

func (e *StockValidationError) Unwrap() []error { return e.Causes }

type UnsupportedOperationError struct {
	Operation string
	Reason    string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("unsupported %s operation: %s", e.Operation, e.Reason)
}

type InvalidSaleStateError struct {
	SaleID uuid.UUID
	Status string
	Action string
}

func (e *InvalidSaleStateError) Error() string {
	return fmt.Sprintf("cannot %s sale %s in status %s", e.Action, e.SaleID, e.Status)
}

// notFound converts gorm.ErrRecordNotFound into a NotFoundError and wraps
// anything else.
func notFound(err error, entity string, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &NotFoundError{Entity: entity, ID: id.String()}
	}
	return fmt.Errorf("load %s %s: %w", entity, id, err)
}
