package worker

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pharmacy/internal/infra"
	"pharmacy/internal/model"
	"pharmacy/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Stubs embed the repository interface and override only what the workers call.

type stubProducts struct {
	repository.ProductRepository
	p *model.Product
}

func (s stubProducts) FindByID(context.Context, *gorm.DB, uuid.UUID) (*model.Product, error) {
	if s.p == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.p, nil
}

type stubBatches struct {
	repository.BatchRepository
	committed int
}

func (s stubBatches) SumCommitted(context.Context, *gorm.DB, uuid.UUID, *uuid.UUID) (int, error) {
	return s.committed, nil
}

type stubSales struct {
	repository.SaleRepository
	sale *model.Sale
}

func (s stubSales) FindByID(context.Context, uuid.UUID) (*model.Sale, error) {
	if s.sale == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.sale, nil
}

func payload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestStockAlertWorker(t *testing.T) {
	p := &model.Product{ID: uuid.New(), Code: "AMOX500", Name: "Amoxicillin", MinStockLevel: 10}
	job := payload(t, StockAlertJobPayload{ProductID: p.ID.String()})

	t.Run("below minimum publishes", func(t *testing.T) {
		pub := &capturePublisher{}
		w := NewStockAlertWorker(stubProducts{p: p}, stubBatches{committed: 4}, pub)
		require.NoError(t, w.Process(context.Background(), job))
		require.Len(t, pub.events, 1)
		assert.Equal(t, infra.EventStockLow, pub.events[0].EventType)
		body := pub.events[0].Payload.(StockLowPayload)
		assert.Equal(t, 4, body.CommittedStock)
		assert.Equal(t, 10, body.MinStockLevel)
	})

	t.Run("at minimum stays quiet", func(t *testing.T) {
		pub := &capturePublisher{}
		w := NewStockAlertWorker(stubProducts{p: p}, stubBatches{committed: 10}, pub)
		require.NoError(t, w.Process(context.Background(), job))
		assert.Empty(t, pub.events)
	})

	t.Run("malformed payload is dropped", func(t *testing.T) {
		w := NewStockAlertWorker(stubProducts{p: p}, stubBatches{}, &capturePublisher{})
		assert.NoError(t, w.Process(context.Background(), json.RawMessage(`{"product_id":"nope"}`)))
	})

	t.Run("lookup failure retries", func(t *testing.T) {
		w := NewStockAlertWorker(stubProducts{}, stubBatches{}, &capturePublisher{})
		assert.Error(t, w.Process(context.Background(), job))
	})
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, infra.Event) error {
	return errors.New("broker down")
}

func (failingPublisher) Close() error { return nil }

func TestStockAlertWorker_PublishFailureRetries(t *testing.T) {
	p := &model.Product{ID: uuid.New(), MinStockLevel: 10}
	w := NewStockAlertWorker(stubProducts{p: p}, stubBatches{committed: 1}, failingPublisher{})
	assert.Error(t, w.Process(context.Background(), payload(t, StockAlertJobPayload{ProductID: p.ID.String()})))
}

func TestReceiptWorker(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sale := &model.Sale{
		ID: uuid.New(), SaleNumber: 7, Status: model.SaleCompleted,
		Subtotal: decimal.NewFromInt(10), TaxAmount: decimal.RequireFromString("1.20"),
		Total: decimal.RequireFromString("11.20"), CreatedAt: now, CompletedAt: &now,
		Items: []model.SaleItem{{Product: &model.Product{Name: "Paracetamol"}, Quantity: 1,
			UnitPrice: decimal.NewFromInt(10), Subtotal: decimal.NewFromInt(10)}},
	}
	job := payload(t, ReceiptJobPayload{SaleID: sale.ID.String()})

	w := NewReceiptWorker(stubSales{sale: sale}, "Farmacia Central", dir)
	require.NoError(t, w.Process(context.Background(), job))
	_, err := os.Stat(filepath.Join(dir, "receipt_7.pdf"))
	assert.NoError(t, err)

	pending := *sale
	pending.SaleNumber = 8
	pending.Status = model.SalePending
	w = NewReceiptWorker(stubSales{sale: &pending}, "Farmacia Central", dir)
	require.NoError(t, w.Process(context.Background(), job))
	_, err = os.Stat(filepath.Join(dir, "receipt_8.pdf"))
	assert.True(t, os.IsNotExist(err))

	w = NewReceiptWorker(stubSales{}, "Farmacia Central", dir)
	assert.Error(t, w.Process(context.Background(), job))
}
