package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"pharmacy/internal/dto"
	"pharmacy/internal/repository"

	"github.com/google/uuid"
)

type InventoryService interface {
	LowStockAlerts(ctx context.Context) ([]dto.LowStockAlert, error)
	ExpiringBatches(ctx context.Context, days int) ([]dto.ExpiringBatch, error)
	ListMovements(ctx context.Context, filter dto.MovementFilter) (*dto.MovementListResponse, error)
	// PurgeMovements applies the movement retention policy.
	PurgeMovements(ctx context.Context, before time.Time) (int64, error)
}

type inventoryService struct {
	products  repository.ProductRepository
	batches   repository.BatchRepository
	movements repository.StockMovementRepository
	now       func() time.Time
}

func NewInventoryService(
	products repository.ProductRepository,
	batches repository.BatchRepository,
	movements repository.StockMovementRepository,
) InventoryService {
	return &inventoryService{products: products, batches: batches, movements: movements, now: time.Now}
}

func (s *inventoryService) LowStockAlerts(ctx context.Context) ([]dto.LowStockAlert, error) {
	rows, err := s.products.ListBelowMinStock(ctx)
	if err != nil {
		return nil, err
	}
	alerts := make([]dto.LowStockAlert, 0, len(rows))
	for _, r := range rows {
		alerts = append(alerts, dto.LowStockAlert{
			ProductID:      r.ID.String(),
			Code:           r.Code,
			Name:           r.Name,
			CommittedStock: r.CommittedStock,
			MinStockLevel:  r.MinStockLevel,
			Shortfall:      r.MinStockLevel - r.CommittedStock,
		})
	}
	return alerts, nil
}

func (s *inventoryService) ExpiringBatches(ctx context.Context, days int) ([]dto.ExpiringBatch, error) {
	if days < 0 {
		return nil, fmt.Errorf("days must not be negative")
	}
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	batches, err := s.batches.ListExpiringBefore(ctx, today.AddDate(0, 0, days))
	if err != nil {
		return nil, err
	}
	out := make([]dto.ExpiringBatch, 0, len(batches))
	for _, b := range batches {
		e := dto.ExpiringBatch{
			BatchID:         b.ID.String(),
			ProductID:       b.ProductID.String(),
			BatchNumber:     b.BatchNumber,
			ExpiryDate:      b.ExpiryDate.Format(time.DateOnly),
			CurrentQuantity: b.CurrentQuantity,
			DaysToExpiry:    int(math.Floor(b.ExpiryDate.Sub(today).Hours() / 24)),
			Expired:         b.IsExpired(now),
		}
		if b.Product != nil {
			e.ProductName = b.Product.Name
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *inventoryService) ListMovements(ctx context.Context, filter dto.MovementFilter) (*dto.MovementListResponse, error) {
	f := repository.StockMovementFilter{Type: filter.Type, Page: filter.Page, Limit: filter.Limit}
	if filter.ProductID != "" {
		pid, err := uuid.Parse(filter.ProductID)
		if err != nil {
			return nil, fmt.Errorf("invalid product_id: %w", err)
		}
		f.ProductID = &pid
	}
	movements, total, err := s.movements.List(ctx, f)
	if err != nil {
		return nil, err
	}
	data := make([]dto.StockMovementResponse, 0, len(movements))
	for i := range movements {
		data = append(data, movementToResponse(&movements[i]))
	}
	return &dto.MovementListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func (s *inventoryService) PurgeMovements(ctx context.Context, before time.Time) (int64, error) {
	return s.movements.DeleteOlderThan(ctx, before)
}
