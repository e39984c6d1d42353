package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// txAttempts bounds how often a transaction aborted by the database for
// deadlock or serialization failure is replayed.
const txAttempts = 3

var txRetryDelay = 20 * time.Millisecond

// sqlStateError is satisfied by the postgres driver's error type.
type sqlStateError interface {
	SQLState() string
}

// retryable reports deadlock_detected (40P01) and serialization_failure (40001).
func retryable(err error) bool {
	var se sqlStateError
	if !errors.As(err, &se) {
		return false
	}
	switch se.SQLState() {
	case "40P01", "40001":
		return true
	}
	return false
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode). fn must be safe
// to run again: an aborted transaction is replayed from the start.
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return withTxRetry(ctx, func() error {
		return db.WithContext(ctx).Transaction(fn)
	})
}

func withTxRetry(ctx context.Context, attempt func() error) error {
	var err error
	for i := 1; i <= txAttempts; i++ {
		if err = attempt(); err == nil || !retryable(err) {
			return err
		}
		log.Warn().Err(err).Int("attempt", i).Msg("transaction aborted by database, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i) * txRetryDelay):
		}
	}
	return err
}

func strPtr(s string) *string { return &s }

func uuidStrPtr(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
