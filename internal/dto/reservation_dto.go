package dto

type ReserveStockRequest struct {
	ProductID   string  `json:"product_id"   validate:"required,uuid"`
	BatchID     *string `json:"batch_id"     validate:"omitempty,uuid"`
	Quantity    int     `json:"quantity"     validate:"required,min=1"`
	Type        string  `json:"type"         validate:"required,oneof=SALE TRANSFER PRESCRIPTION MANUAL"`
	ReferenceID string  `json:"reference_id" validate:"required,min=1,max=64"`
	// ExpiresAt is RFC 3339; defaults to now + the configured hold TTL.
	ExpiresAt *string `json:"expires_at" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

type ReservationResponse struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"product_id"`
	BatchID     *string `json:"batch_id"`
	Quantity    int     `json:"quantity"`
	Type        string  `json:"type"`
	ReferenceID string  `json:"reference_id"`
	ExpiresAt   string  `json:"expires_at"`
	UserID      string  `json:"user_id"`
	CreatedAt   string  `json:"created_at"`
}

type CleanupResponse struct {
	Removed int64 `json:"removed"`
}
