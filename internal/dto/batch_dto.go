package dto

import "github.com/shopspring/decimal"

type ReceiveBatchRequest struct {
	ProductID         string          `json:"product_id"         validate:"required,uuid"`
	BranchID          *string         `json:"branch_id"          validate:"omitempty,uuid"`
	BatchNumber       string          `json:"batch_number"       validate:"required,min=1,max=64"`
	ManufacturingDate *string         `json:"manufacturing_date" validate:"omitempty,datetime=2006-01-02"`
	ExpiryDate        string          `json:"expiry_date"        validate:"required,datetime=2006-01-02"`
	Quantity          int             `json:"quantity"           validate:"required,min=1"`
	CostPrice         decimal.Decimal `json:"cost_price"         validate:"min=0"`
	Reason            string          `json:"reason"             validate:"max=255"`
}

type BatchResponse struct {
	ID                string          `json:"id"`
	ProductID         string          `json:"product_id"`
	BranchID          *string         `json:"branch_id"`
	BatchNumber       string          `json:"batch_number"`
	ManufacturingDate *string         `json:"manufacturing_date"`
	ExpiryDate        string          `json:"expiry_date"`
	InitialQuantity   int             `json:"initial_quantity"`
	CurrentQuantity   int             `json:"current_quantity"`
	CostPrice         decimal.Decimal `json:"cost_price"`
	Active            bool            `json:"active"`
	ReceivedAt        string          `json:"received_at"`
	OperationID       string          `json:"operation_id,omitempty"`
}
