package model

import (
	"time"

	"github.com/google/uuid"
)

type MovementType string

const (
	MovementIn         MovementType = "IN"
	MovementOut        MovementType = "OUT"
	MovementAdjustment MovementType = "ADJUSTMENT"
	MovementTransfer   MovementType = "TRANSFER"
)

// StockMovement is an append-only ledger line, one per batch touched by an
// operation. Quantity is always positive; Type carries the direction.
type StockMovement struct {
	ID               uuid.UUID    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OperationID      uuid.UUID    `gorm:"type:uuid;not null;index"`
	ProductID        uuid.UUID    `gorm:"type:uuid;not null;index"`
	BatchID          *uuid.UUID   `gorm:"type:uuid;index"`
	Type             MovementType `gorm:"type:varchar(20);not null"`
	Quantity         int          `gorm:"not null"`
	PreviousQuantity int          `gorm:"not null"`
	NewQuantity      int          `gorm:"not null"`
	Reason           string
	UserID           *uuid.UUID `gorm:"type:uuid"`
	ReferenceID      *string
	CreatedAt        time.Time

	Product *Product `gorm:"foreignKey:ProductID"`
}
