package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

type StockOperationRequest struct {
	ProductID   string  `json:"product_id"   validate:"required,uuid"`
	BatchID     *string `json:"batch_id"     validate:"omitempty,uuid"`
	Quantity    int     `json:"quantity"     validate:"required,min=1"`
	Type        string  `json:"type"         validate:"required,oneof=SALE PURCHASE ADJUSTMENT TRANSFER"`
	Reason      string  `json:"reason"       validate:"required,min=3,max=255"`
	ReferenceID *string `json:"reference_id" validate:"omitempty,max=64"`
}

type StockValidationRequest struct {
	ProductID string  `json:"product_id" validate:"required,uuid"`
	Quantity  int     `json:"quantity"   validate:"required,min=1"`
	BatchID   *string `json:"batch_id"   validate:"omitempty,uuid"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

// StockValidationResult never signals failure through the error channel:
// business problems are listed in Errors, soft problems in Warnings.
type StockValidationResult struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	// Causes holds the typed errors behind Errors for errors.As matching.
	Causes []error `json:"-"`
}

type AvailableStockResponse struct {
	ProductID string  `json:"product_id"`
	BranchID  *string `json:"branch_id"`
	Available int     `json:"available"`
}

type StockOperationResponse struct {
	OperationID string `json:"operation_id"`
}

type StockMovementResponse struct {
	ID               string  `json:"id"`
	OperationID      string  `json:"operation_id"`
	ProductID        string  `json:"product_id"`
	ProductName      string  `json:"product_name,omitempty"`
	BatchID          *string `json:"batch_id"`
	Type             string  `json:"type"`
	Quantity         int     `json:"quantity"`
	PreviousQuantity int     `json:"previous_quantity"`
	NewQuantity      int     `json:"new_quantity"`
	Reason           string  `json:"reason"`
	UserID           *string `json:"user_id"`
	ReferenceID      *string `json:"reference_id"`
	CreatedAt        string  `json:"created_at"`
}

type StockOperationDetail struct {
	ID               string                  `json:"id"`
	Type             string                  `json:"type"`
	ProductID        string                  `json:"product_id"`
	BatchID          *string                 `json:"batch_id"`
	QuantityChange   int                     `json:"quantity_change"`
	PreviousQuantity int                     `json:"previous_quantity"`
	NewQuantity      int                     `json:"new_quantity"`
	Reason           string                  `json:"reason"`
	UserID           *string                 `json:"user_id"`
	ReferenceID      *string                 `json:"reference_id"`
	CreatedAt        string                  `json:"created_at"`
	Movements        []StockMovementResponse `json:"movements"`
}

// ─── Inventory ──────────────────────────────────────────────────────────────

type MovementFilter struct {
	ProductID string `form:"product_id" validate:"omitempty,uuid"`
	Type      string `form:"type"       validate:"omitempty,oneof=IN OUT ADJUSTMENT TRANSFER"`
	Page      int    `form:"page,default=1"    validate:"min=1"`
	Limit     int    `form:"limit,default=100" validate:"min=1,max=500"`
}

type MovementListResponse struct {
	Data  []StockMovementResponse `json:"data"`
	Total int64                   `json:"total"`
	Page  int                     `json:"page"`
	Limit int                     `json:"limit"`
}

type LowStockAlert struct {
	ProductID      string `json:"product_id"`
	Code           string `json:"code"`
	Name           string `json:"name"`
	CommittedStock int    `json:"committed_stock"`
	MinStockLevel  int    `json:"min_stock_level"`
	Shortfall      int    `json:"shortfall"`
}

type ExpiringBatch struct {
	BatchID         string `json:"batch_id"`
	ProductID       string `json:"product_id"`
	ProductName     string `json:"product_name"`
	BatchNumber     string `json:"batch_number"`
	ExpiryDate      string `json:"expiry_date"`
	CurrentQuantity int    `json:"current_quantity"`
	DaysToExpiry    int    `json:"days_to_expiry"`
	Expired         bool   `json:"expired"`
}
