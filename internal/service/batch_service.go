package service

import (
	"context"
	"fmt"
	"time"

	"pharmacy/internal/dto"
	"pharmacy/internal/model"
	"pharmacy/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type BatchService interface {
	// Receive registers a delivered lot: the batch row is created empty and a
	// PURCHASE operation brings it to the received quantity in the same TX.
	Receive(ctx context.Context, userID uuid.UUID, req dto.ReceiveBatchRequest) (*dto.BatchResponse, error)
	// Deactivate soft-deletes a batch; only empty batches qualify.
	Deactivate(ctx context.Context, id uuid.UUID) error
	ListByProduct(ctx context.Context, productID uuid.UUID, includeInactive bool) ([]dto.BatchResponse, error)
}

type batchService struct {
	batches  repository.BatchRepository
	products repository.ProductRepository
	stock    StockService
	now      func() time.Time
}

func NewBatchService(batches repository.BatchRepository, products repository.ProductRepository, stock StockService) BatchService {
	return &batchService{batches: batches, products: products, stock: stock, now: time.Now}
}

func (s *batchService) Receive(ctx context.Context, userID uuid.UUID, req dto.ReceiveBatchRequest) (*dto.BatchResponse, error) {
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("invalid product_id: %w", err)
	}
	expiry, err := time.Parse(time.DateOnly, req.ExpiryDate)
	if err != nil {
		return nil, fmt.Errorf("invalid expiry_date: %w", err)
	}
	var manufactured *time.Time
	if req.ManufacturingDate != nil {
		m, err := time.Parse(time.DateOnly, *req.ManufacturingDate)
		if err != nil {
			return nil, fmt.Errorf("invalid manufacturing_date: %w", err)
		}
		if !expiry.After(m) {
			return nil, ErrInvalidExpiry
		}
		manufactured = &m
	}
	var branchID *uuid.UUID
	if req.BranchID != nil {
		b, err := uuid.Parse(*req.BranchID)
		if err != nil {
			return nil, fmt.Errorf("invalid branch_id: %w", err)
		}
		branchID = &b
	}

	product, err := s.products.FindByID(ctx, nil, productID)
	if err != nil {
		return nil, notFound(err, "product", productID)
	}
	if !product.Active {
		return nil, &InactiveEntityError{Entity: "product", ID: productID.String()}
	}

	existing, err := s.batches.ListByProduct(ctx, productID, true)
	if err != nil {
		return nil, err
	}
	for _, b := range existing {
		if b.BatchNumber == req.BatchNumber {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateBatch, req.BatchNumber)
		}
	}

	now := s.now()
	batch := &model.Batch{
		ID:                uuid.New(),
		ProductID:         productID,
		BranchID:          branchID,
		BatchNumber:       req.BatchNumber,
		ManufacturingDate: manufactured,
		ExpiryDate:        expiry,
		InitialQuantity:   req.Quantity,
		CurrentQuantity:   0,
		CostPrice:         req.CostPrice,
		Active:            true,
		ReceivedAt:        now,
	}

	reason := req.Reason
	if reason == "" {
		reason = "Batch receipt " + req.BatchNumber
	}

	var ops []model.StockOperation
	txErr := runTx(ctx, s.batches.DB(), func(tx *gorm.DB) error {
		if err := s.batches.Create(ctx, tx, batch); err != nil {
			return fmt.Errorf("create batch: %w", err)
		}
		var err error
		ops, err = s.stock.ExecuteTx(ctx, tx, []StockCommand{{
			ProductID:   productID,
			BatchID:     &batch.ID,
			Quantity:    req.Quantity,
			Type:        model.OperationPurchase,
			Reason:      reason,
			UserID:      &userID,
			ReferenceID: strPtr(req.BatchNumber),
		}})
		return err
	})
	if txErr != nil {
		return nil, txErr
	}
	s.stock.PublishExecuted(ctx, ops)

	batch.CurrentQuantity = req.Quantity
	log.Info().
		Str("batch_id", batch.ID.String()).
		Str("batch_number", batch.BatchNumber).
		Str("product_id", productID.String()).
		Int("quantity", req.Quantity).
		Msg("batch received")

	resp := batchToResponse(batch)
	resp.OperationID = ops[0].ID.String()
	return &resp, nil
}

func (s *batchService) Deactivate(ctx context.Context, id uuid.UUID) error {
	b, err := s.batches.FindByID(ctx, nil, id)
	if err != nil {
		return notFound(err, "batch", id)
	}
	if b.CurrentQuantity > 0 {
		return &UnsupportedOperationError{
			Operation: "DEACTIVATE",
			Reason:    fmt.Sprintf("batch %s still holds %d units", b.BatchNumber, b.CurrentQuantity),
		}
	}
	changed, err := s.batches.Deactivate(ctx, id)
	if err != nil {
		return err
	}
	if !changed {
		// stock arrived between the read and the conditional update
		return &UnsupportedOperationError{
			Operation: "DEACTIVATE",
			Reason:    fmt.Sprintf("batch %s is no longer empty", b.BatchNumber),
		}
	}
	log.Info().Str("batch_id", id.String()).Msg("batch deactivated")
	return nil
}

func (s *batchService) ListByProduct(ctx context.Context, productID uuid.UUID, includeInactive bool) ([]dto.BatchResponse, error) {
	batches, err := s.batches.ListByProduct(ctx, productID, includeInactive)
	if err != nil {
		return nil, err
	}
	out := make([]dto.BatchResponse, 0, len(batches))
	for i := range batches {
		out = append(out, batchToResponse(&batches[i]))
	}
	return out, nil
}

func batchToResponse(b *model.Batch) dto.BatchResponse {
	r := dto.BatchResponse{
		ID:              b.ID.String(),
		ProductID:       b.ProductID.String(),
		BranchID:        uuidStrPtr(b.BranchID),
		BatchNumber:     b.BatchNumber,
		ExpiryDate:      b.ExpiryDate.Format(time.DateOnly),
		InitialQuantity: b.InitialQuantity,
		CurrentQuantity: b.CurrentQuantity,
		CostPrice:       b.CostPrice,
		Active:          b.Active,
		ReceivedAt:      b.ReceivedAt.Format(time.RFC3339),
	}
	if b.ManufacturingDate != nil {
		r.ManufacturingDate = strPtr(b.ManufacturingDate.Format(time.DateOnly))
	}
	return r
}
