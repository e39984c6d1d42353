package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Stock is never stored here: committed stock is
// the sum of the product's active batches.
type Product struct {
	ID                   uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Code                 string          `gorm:"uniqueIndex;not null"`
	Name                 string          `gorm:"index;not null"`
	GenericName          *string
	Category             string          `gorm:"not null;default:'general'"`
	UnitCost             decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	SellingPrice         decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	MinStockLevel        int             `gorm:"not null;default:0"`
	MaxStockLevel        int             `gorm:"not null;default:0"`
	RequiresPrescription bool            `gorm:"not null;default:false"`
	Active               bool            `gorm:"not null;default:true"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
