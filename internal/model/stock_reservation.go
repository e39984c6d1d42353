package model

import (
	"time"

	"github.com/google/uuid"
)

type ReservationType string

const (
	ReservationSale         ReservationType = "SALE"
	ReservationTransfer     ReservationType = "TRANSFER"
	ReservationPrescription ReservationType = "PRESCRIPTION"
	ReservationManual       ReservationType = "MANUAL"
)

func (t ReservationType) IsValid() bool {
	switch t {
	case ReservationSale, ReservationTransfer, ReservationPrescription, ReservationManual:
		return true
	}
	return false
}

// StockReservation is a time-boxed hold. It lowers available stock while
// ExpiresAt is in the future and never touches batch quantities.
type StockReservation struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	BatchID     *uuid.UUID      `gorm:"type:uuid;index"`
	Quantity    int             `gorm:"not null"`
	Type        ReservationType `gorm:"type:varchar(20);not null"`
	ReferenceID string          `gorm:"not null;index"`
	ExpiresAt   time.Time       `gorm:"not null;index"`
	UserID      uuid.UUID       `gorm:"type:uuid;not null"`
	CreatedAt   time.Time
}
