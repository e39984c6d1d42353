package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SaleStatus string

const (
	SaleDraft     SaleStatus = "DRAFT"
	SalePending   SaleStatus = "PENDING"
	SaleCompleted SaleStatus = "COMPLETED"
	SaleCancelled SaleStatus = "CANCELLED"
	SaleRefunded  SaleStatus = "REFUNDED"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// Sale is the header of a point-of-sale transaction.
// Total = Subtotal + TaxAmount - DiscountAmount.
type Sale struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SaleNumber     int             `gorm:"uniqueIndex;not null"`
	CashierID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	CustomerName   *string
	PrescriptionID *string
	Status         SaleStatus      `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Total          decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Notes          *string
	CompletedAt    *time.Time
	CancelledAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Items    []SaleItem `gorm:"foreignKey:SaleID"`
	Payments []Payment  `gorm:"foreignKey:SaleID"`
}

// SaleItem prices are copied from the product at creation time.
type SaleItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SaleID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null"`
	BatchID   *uuid.UUID      `gorm:"type:uuid"`
	Quantity  int             `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Discount  decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	Product *Product `gorm:"foreignKey:ProductID"`
}

// Payment method: "cash" | "card" | "transfer" | "insurance"
type Payment struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SaleID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Method    string          `gorm:"type:varchar(20);not null"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Status    PaymentStatus   `gorm:"type:varchar(20);not null;default:'PENDING'"`
	Reference *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type SaleAuditAction string

const (
	AuditSaleCreated   SaleAuditAction = "CREATED"
	AuditSaleCompleted SaleAuditAction = "COMPLETED"
	AuditSaleCancelled SaleAuditAction = "CANCELLED"
)

// SaleAuditLog records every state transition of a sale.
type SaleAuditLog struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SaleID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Action    SaleAuditAction `gorm:"type:varchar(20);not null"`
	FromState SaleStatus      `gorm:"type:varchar(20)"`
	ToState   SaleStatus      `gorm:"type:varchar(20);not null"`
	UserID    uuid.UUID       `gorm:"type:uuid;not null"`
	Reason    string
	CreatedAt time.Time
}
