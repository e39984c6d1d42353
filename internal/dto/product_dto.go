package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CreateProductRequest struct {
	Code                 string          `json:"code"                  validate:"required,min=3,max=32"`
	Name                 string          `json:"name"                  validate:"required,min=2,max=120"`
	GenericName          *string         `json:"generic_name"`
	Category             string          `json:"category"              validate:"required"`
	UnitCost             decimal.Decimal `json:"unit_cost"             validate:"min=0"`
	SellingPrice         decimal.Decimal `json:"selling_price"         validate:"required,gt=0"`
	MinStockLevel        int             `json:"min_stock_level"       validate:"min=0"`
	MaxStockLevel        int             `json:"max_stock_level"       validate:"min=0"`
	RequiresPrescription bool            `json:"requires_prescription"`
}

// ─── Filter / Pagination ─────────────────────────────────────────────────────

type ProductFilter struct {
	Code     string `form:"code"`
	Name     string `form:"name"`
	Category string `form:"category"`
	Active   string `form:"active"` // "false" | "all" | default active only
	Page     int    `form:"page,default=1"   validate:"min=1"`
	Limit    int    `form:"limit,default=20" validate:"min=1,max=100"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ProductResponse struct {
	ID                   string          `json:"id"`
	Code                 string          `json:"code"`
	Name                 string          `json:"name"`
	GenericName          *string         `json:"generic_name"`
	Category             string          `json:"category"`
	UnitCost             decimal.Decimal `json:"unit_cost"`
	SellingPrice         decimal.Decimal `json:"selling_price"`
	MinStockLevel        int             `json:"min_stock_level"`
	MaxStockLevel        int             `json:"max_stock_level"`
	RequiresPrescription bool            `json:"requires_prescription"`
	Active               bool            `json:"active"`
	CommittedStock       int             `json:"committed_stock"`
	AvailableStock       int             `json:"available_stock"`
}

type ProductListResponse struct {
	Data       []ProductResponse `json:"data"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"total_pages"`
}
