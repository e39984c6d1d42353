package model

import (
	"time"

	"github.com/google/uuid"
)

// StockOperationType is the business reason for a stock mutation.
type StockOperationType string

const (
	OperationSale       StockOperationType = "SALE"
	OperationPurchase   StockOperationType = "PURCHASE"
	OperationAdjustment StockOperationType = "ADJUSTMENT"
	OperationTransfer   StockOperationType = "TRANSFER"
)

func (t StockOperationType) IsValid() bool {
	switch t {
	case OperationSale, OperationPurchase, OperationAdjustment, OperationTransfer:
		return true
	}
	return false
}

// Subtracts reports whether the operation removes stock.
func (t StockOperationType) Subtracts() bool {
	return t == OperationSale || t == OperationTransfer
}

// MovementType maps the operation to the movement kind written per batch.
func (t StockOperationType) MovementType() MovementType {
	switch t {
	case OperationSale:
		return MovementOut
	case OperationPurchase:
		return MovementIn
	case OperationTransfer:
		return MovementTransfer
	default:
		return MovementAdjustment
	}
}

// StockOperation is the audit record of one executed mutation.
// PreviousQuantity and NewQuantity are product-level committed stock;
// NewQuantity = PreviousQuantity + QuantityChange always holds.
type StockOperation struct {
	ID               uuid.UUID          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Type             StockOperationType `gorm:"type:varchar(20);not null;index"`
	ProductID        uuid.UUID          `gorm:"type:uuid;not null;index"`
	BatchID          *uuid.UUID         `gorm:"type:uuid"`
	QuantityChange   int                `gorm:"not null"`
	PreviousQuantity int                `gorm:"not null"`
	NewQuantity      int                `gorm:"not null"`
	Reason           string
	UserID           *uuid.UUID `gorm:"type:uuid"`
	ReferenceID      *string    `gorm:"index"`
	CreatedAt        time.Time

	Movements []StockMovement `gorm:"foreignKey:OperationID"`
}
