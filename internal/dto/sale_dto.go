package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type SaleItemRequest struct {
	ProductID string          `json:"product_id" validate:"required,uuid"`
	BatchID   *string         `json:"batch_id"   validate:"omitempty,uuid"`
	Quantity  int             `json:"quantity"   validate:"required,min=1"`
	Discount  decimal.Decimal `json:"discount"   validate:"min=0"`
}

type CreateSaleRequest struct {
	Items          []SaleItemRequest `json:"items"           validate:"required,min=1,dive"`
	PaymentMethod  string            `json:"payment_method"  validate:"required,oneof=cash card transfer insurance"`
	PaymentRef     *string           `json:"payment_ref"     validate:"omitempty,max=64"`
	Discount       decimal.Decimal   `json:"discount"        validate:"min=0"`
	CustomerName   *string           `json:"customer_name"   validate:"omitempty,max=120"`
	PrescriptionID *string           `json:"prescription_id" validate:"omitempty,max=64"`
	Notes          *string           `json:"notes"           validate:"omitempty,max=500"`
}

type CancelSaleRequest struct {
	Reason string `json:"reason" validate:"required,min=5"`
}

// SaleFilter is bound from the query string of GET /v1/sales.
type SaleFilter struct {
	Date   string `form:"date"` // YYYY-MM-DD; empty = all dates
	Status string `form:"status"`
	Page   int    `form:"page,default=1"   validate:"min=1"`
	Limit  int    `form:"limit,default=50" validate:"min=1,max=200"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SaleItemResponse struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	BatchID     *string         `json:"batch_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type PaymentResponse struct {
	Method    string          `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	Reference *string         `json:"reference"`
}

type SaleResponse struct {
	ID             string             `json:"id"`
	SaleNumber     int                `json:"sale_number"`
	CashierID      string             `json:"cashier_id"`
	CustomerName   *string            `json:"customer_name"`
	PrescriptionID *string            `json:"prescription_id"`
	Status         string             `json:"status"`
	Subtotal       decimal.Decimal    `json:"subtotal"`
	TaxAmount      decimal.Decimal    `json:"tax_amount"`
	DiscountAmount decimal.Decimal    `json:"discount_amount"`
	Total          decimal.Decimal    `json:"total"`
	Items          []SaleItemResponse `json:"items"`
	Payments       []PaymentResponse  `json:"payments"`
	CompletedAt    *string            `json:"completed_at"`
	CancelledAt    *string            `json:"cancelled_at"`
	CreatedAt      string             `json:"created_at"`
}

type SaleListResponse struct {
	Data  []SaleResponse `json:"data"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}
