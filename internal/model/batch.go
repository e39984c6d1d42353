package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Batch is a lot of a product with its own expiry date. CurrentQuantity is the
// committed on-hand count and is guarded by a CHECK (current_quantity >= 0).
// InitialQuantity is informational only.
type Batch struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProductID         uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_batches_product_number"`
	BranchID          *uuid.UUID `gorm:"type:uuid;index"`
	BatchNumber       string     `gorm:"not null;uniqueIndex:idx_batches_product_number"`
	ManufacturingDate *time.Time
	ExpiryDate        time.Time       `gorm:"type:date;not null;index"`
	InitialQuantity   int             `gorm:"not null;default:0"`
	CurrentQuantity   int             `gorm:"not null;default:0"`
	CostPrice         decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	Active            bool            `gorm:"not null;default:true"`
	ReceivedAt        time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time

	Product *Product `gorm:"foreignKey:ProductID"`
}

// IsExpired reports whether the batch expiry date is before the day of now.
func (b *Batch) IsExpired(now time.Time) bool {
	return b.ExpiryDate.Before(startOfDay(now))
}

// ExpiresWithin reports whether the batch expires within the given number of
// days from now without being expired already.
func (b *Batch) ExpiresWithin(now time.Time, days int) bool {
	if b.IsExpired(now) {
		return false
	}
	return !b.ExpiryDate.After(startOfDay(now).AddDate(0, 0, days))
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
