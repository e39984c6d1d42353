package repository

import (
	"context"

	"pharmacy/internal/dto"
	"pharmacy/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductStock pairs a product with its committed stock (sum of active batches).
type ProductStock struct {
	model.Product
	CommittedStock int
}

// ProductRepository defines the data access contract for products.
// Services depend on this interface, not on the concrete GORM implementation.
type ProductRepository interface {
	Create(ctx context.Context, p *model.Product) error
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Product, error)
	// LockByID takes a row lock on the product; tx is required.
	LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Product, error)
	List(ctx context.Context, filter dto.ProductFilter) ([]model.Product, int64, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	// ListBelowMinStock returns active products whose committed stock is at or
	// below their minimum level.
	ListBelowMinStock(ctx context.Context) ([]ProductStock, error)
	DB() *gorm.DB
}

type productRepo struct{ db *gorm.DB }

func NewProductRepository(db *gorm.DB) ProductRepository { return &productRepo{db: db} }

func (r *productRepo) DB() *gorm.DB { return r.db }

func (r *productRepo) Create(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *productRepo) FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	err := on(ctx, r.db, tx).First(&p, "id = ?", id).Error
	return &p, err
}

func (r *productRepo) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	err := forUpdate(tx.WithContext(ctx)).First(&p, "id = ?", id).Error
	return &p, err
}

func (r *productRepo) List(ctx context.Context, filter dto.ProductFilter) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Product{})

	switch filter.Active {
	case "false":
		q = q.Where("active = false")
	case "all":
	default:
		q = q.Where("active = true")
	}
	if filter.Code != "" {
		q = q.Where("code = ?", filter.Code)
	}
	if filter.Name != "" {
		q = q.Where("name ILIKE ?", "%"+filter.Name+"%")
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := pageBounds(filter.Page, filter.Limit, 20, 100)
	err := q.Order("name ASC").Limit(limit).Offset(offset).Find(&products).Error
	return products, total, err
}

func (r *productRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", id).Update("active", false).Error
}

func (r *productRepo) ListBelowMinStock(ctx context.Context) ([]ProductStock, error) {
	var rows []ProductStock
	err := r.db.WithContext(ctx).
		Table("products p").
		Select("p.*, COALESCE(SUM(b.current_quantity), 0) AS committed_stock").
		Joins("LEFT JOIN batches b ON b.product_id = p.id AND b.active = true").
		Where("p.active = true").
		Group("p.id").
		Having("COALESCE(SUM(b.current_quantity), 0) <= p.min_stock_level").
		Order("p.name ASC").
		Scan(&rows).Error
	return rows, err
}
