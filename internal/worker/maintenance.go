package worker

// Periodic housekeeping: expired reservation cleanup, expiring batch
// notifications and movement retention. Each loop stops with ctx.

import (
	"context"
	"time"

	"pharmacy/internal/dto"
	"pharmacy/internal/infra"

	"github.com/rs/zerolog/log"
)

const expiryScanInterval = time.Hour

// ReservationCleaner is satisfied by service.ReservationService.
type ReservationCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// InventoryScanner is satisfied by service.InventoryService.
type InventoryScanner interface {
	ExpiringBatches(ctx context.Context, days int) ([]dto.ExpiringBatch, error)
	PurgeMovements(ctx context.Context, before time.Time) (int64, error)
}

type MaintenanceConfig struct {
	Reservations ReservationCleaner
	Inventory    InventoryScanner
	Publisher    infra.Publisher

	CleanupInterval       time.Duration
	ExpiryWarningDays     int
	MovementRetentionDays int // 0 keeps movements forever
}

// StartMaintenance launches the reservation reaper and the expiry scanner.
func StartMaintenance(ctx context.Context, cfg MaintenanceConfig) {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval)
		defer ticker.Stop()
		log.Info().Dur("interval", cfg.CleanupInterval).Msg("reservation_reaper: started")
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("reservation_reaper: shutting down")
				return
			case <-ticker.C:
				reapReservations(ctx, cfg.Reservations)
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(expiryScanInterval)
		defer ticker.Stop()
		scanExpiring(ctx, cfg)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				scanExpiring(ctx, cfg)
				purgeMovements(ctx, cfg)
			}
		}
	}()
}

func reapReservations(ctx context.Context, c ReservationCleaner) int64 {
	n, err := c.CleanupExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("reservation_reaper: cleanup failed")
		return 0
	}
	return n
}

// scanExpiring publishes batch.expiring for every stocked batch inside the
// warning window and returns how many events were emitted.
func scanExpiring(ctx context.Context, cfg MaintenanceConfig) int {
	batches, err := cfg.Inventory.ExpiringBatches(ctx, cfg.ExpiryWarningDays)
	if err != nil {
		log.Error().Err(err).Msg("expiry_scan: query failed")
		return 0
	}
	for _, b := range batches {
		infra.PublishBestEffort(ctx, cfg.Publisher, b.ProductID, infra.NewEvent(infra.EventBatchExpiring, b))
	}
	if len(batches) > 0 {
		log.Info().Int("batches", len(batches)).Int("window_days", cfg.ExpiryWarningDays).Msg("expiry_scan: expiring batches found")
	}
	return len(batches)
}

func purgeMovements(ctx context.Context, cfg MaintenanceConfig) {
	if cfg.MovementRetentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -cfg.MovementRetentionDays)
	n, err := cfg.Inventory.PurgeMovements(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("movement_retention: purge failed")
		return
	}
	if n > 0 {
		log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("movement_retention: old movements purged")
	}
}
