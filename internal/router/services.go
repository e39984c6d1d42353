package router

import (
	"fmt"
	"time"

	"pharmacy/internal/config"
	"pharmacy/internal/infra"
	"pharmacy/internal/repository"
	"pharmacy/internal/service"
	"pharmacy/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// App bundles the wired graph shared by the HTTP layer and the background
// workers. Dependency graph: Handler ← Service ← Repository ← DB/Redis
type App struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Publisher infra.Publisher
	Breaker   *infra.CircuitBreaker

	Products   repository.ProductRepository
	Batches    repository.BatchRepository
	Sales      repository.SaleRepository
	Dispatcher *worker.Dispatcher

	Auth         service.AuthService
	Stock        service.StockService
	Reservations service.ReservationService
	Sale         service.SaleService
	Product      service.ProductService
	Batch        service.BatchService
	Inventory    service.InventoryService
}

// Wire builds repositories and services. breaker may be nil when the
// publisher is not guarded.
func Wire(cfg *config.Config, db *gorm.DB, rdb *redis.Client, pub infra.Publisher, breaker *infra.CircuitBreaker) (*App, error) {
	taxRate, err := decimal.NewFromString(cfg.SaleTaxRate)
	if err != nil {
		return nil, fmt.Errorf("SALE_TAX_RATE: %w", err)
	}
	if taxRate.IsNegative() {
		return nil, fmt.Errorf("SALE_TAX_RATE must not be negative")
	}

	// ── Repositories ─────────────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	movementRepo := repository.NewStockMovementRepository(db)
	operationRepo := repository.NewStockOperationRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	saleRepo := repository.NewSaleRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	stockSvc := service.NewStockService(productRepo, batchRepo, movementRepo, operationRepo, reservationRepo, pub, cfg.ExpiryWarningDays)
	reservationSvc := service.NewReservationService(reservationRepo, productRepo, stockSvc)

	// Worker dispatcher, injected into services that enqueue async jobs
	dispatcher := worker.NewDispatcher(rdb)

	saleSvc := service.NewSaleService(saleRepo, productRepo, batchRepo, stockSvc, reservationSvc, dispatcher, pub, service.SaleOptions{
		TaxRate:         taxRate,
		ReserveOnCreate: cfg.SaleReserveOnCreate,
		ReservationTTL:  time.Duration(cfg.SaleReservationTTLMinutes) * time.Minute,
	})

	return &App{
		DB:           db,
		Redis:        rdb,
		Publisher:    pub,
		Breaker:      breaker,
		Products:     productRepo,
		Batches:      batchRepo,
		Sales:        saleRepo,
		Dispatcher:   dispatcher,
		Auth:         service.NewAuthService(userRepo, cfg),
		Stock:        stockSvc,
		Reservations: reservationSvc,
		Sale:         saleSvc,
		Product:      service.NewProductService(productRepo, batchRepo, stockSvc),
		Batch:        service.NewBatchService(batchRepo, productRepo, stockSvc),
		Inventory:    service.NewInventoryService(productRepo, batchRepo, movementRepo),
	}, nil
}
