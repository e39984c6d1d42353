package infra

import (
	"fmt"

	"pharmacy/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens a GORM connection backed by pgx and brings the schema up
// to date (AutoMigrate followed by idempotent SQL patches).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates / updates every table and applies the schema patches.
// Also used by integration tests against a fresh container.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Product{},
		&model.Batch{},
		&model.StockOperation{},
		&model.StockMovement{},
		&model.StockReservation{},
		&model.Sale{},
		&model.SaleItem{},
		&model.Payment{},
		&model.SaleAuditLog{},
		&model.User{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs DDL that AutoMigrate cannot express. Each statement
// is guarded so re-running on an already-patched DB is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// last line of defence against negative stock
		{"batches non-negative quantity", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_batches_current_quantity') THEN
    ALTER TABLE batches ADD CONSTRAINT chk_batches_current_quantity CHECK (current_quantity >= 0);
  END IF;
END $$`},
		{"reservations positive quantity", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_reservations_quantity') THEN
    ALTER TABLE stock_reservations ADD CONSTRAINT chk_reservations_quantity CHECK (quantity > 0);
  END IF;
END $$`},
		{"sale number sequence",
			`CREATE SEQUENCE IF NOT EXISTS sales_number_seq START 1`},
		// FIFO allocation scans active batches of one product by expiry
		{"partial index active batches", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_batches_fifo') THEN
    CREATE INDEX idx_batches_fifo ON batches (product_id, expiry_date) WHERE active = true;
  END IF;
END $$`},
		{"movements by product and date", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_stock_movements_product_created') THEN
    CREATE INDEX idx_stock_movements_product_created ON stock_movements (product_id, created_at DESC);
  END IF;
END $$`},
	}

	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
