package service

import (
	"context"

	"pharmacy/internal/dto"
	"pharmacy/internal/model"
	"pharmacy/internal/repository"

	"github.com/google/uuid"
)

type ProductService interface {
	Create(ctx context.Context, req dto.CreateProductRequest) (*dto.ProductResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error)
	List(ctx context.Context, filter dto.ProductFilter) (*dto.ProductListResponse, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type productService struct {
	repo    repository.ProductRepository
	batches repository.BatchRepository
	stock   StockService
}

func NewProductService(repo repository.ProductRepository, batches repository.BatchRepository, stock StockService) ProductService {
	return &productService{repo: repo, batches: batches, stock: stock}
}

func (s *productService) Create(ctx context.Context, req dto.CreateProductRequest) (*dto.ProductResponse, error) {
	p := &model.Product{
		Code:                 req.Code,
		Name:                 req.Name,
		GenericName:          req.GenericName,
		Category:             req.Category,
		UnitCost:             req.UnitCost,
		SellingPrice:         req.SellingPrice,
		MinStockLevel:        req.MinStockLevel,
		MaxStockLevel:        req.MaxStockLevel,
		RequiresPrescription: req.RequiresPrescription,
		Active:               true,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	resp := productToResponse(p)
	return &resp, nil
}

// Get includes derived stock figures; they are computed, never stored.
func (s *productService) Get(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error) {
	p, err := s.repo.FindByID(ctx, nil, id)
	if err != nil {
		return nil, notFound(err, "product", id)
	}
	resp := productToResponse(p)
	if resp.CommittedStock, err = s.batches.SumCommitted(ctx, nil, id, nil); err != nil {
		return nil, err
	}
	if resp.AvailableStock, err = s.stock.GetAvailableStock(ctx, id, nil); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *productService) List(ctx context.Context, filter dto.ProductFilter) (*dto.ProductListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}
	products, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	data := make([]dto.ProductResponse, 0, len(products))
	for i := range products {
		data = append(data, productToResponse(&products[i]))
	}
	pages := int((total + int64(filter.Limit) - 1) / int64(filter.Limit))
	return &dto.ProductListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit, TotalPages: pages}, nil
}

func (s *productService) Deactivate(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, nil, id); err != nil {
		return notFound(err, "product", id)
	}
	return s.repo.SoftDelete(ctx, id)
}

func productToResponse(p *model.Product) dto.ProductResponse {
	return dto.ProductResponse{
		ID:                   p.ID.String(),
		Code:                 p.Code,
		Name:                 p.Name,
		GenericName:          p.GenericName,
		Category:             p.Category,
		UnitCost:             p.UnitCost,
		SellingPrice:         p.SellingPrice,
		MinStockLevel:        p.MinStockLevel,
		MaxStockLevel:        p.MaxStockLevel,
		RequiresPrescription: p.RequiresPrescription,
		Active:               p.Active,
	}
}
