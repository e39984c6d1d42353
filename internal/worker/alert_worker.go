package worker

import (
	"context"
	"encoding/json"

	"pharmacy/internal/infra"
	"pharmacy/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type StockLowPayload struct {
	ProductID      string `json:"product_id"`
	Code           string `json:"code"`
	Name           string `json:"name"`
	CommittedStock int    `json:"committed_stock"`
	MinStockLevel  int    `json:"min_stock_level"`
}

// StockAlertWorker publishes stock.low when a product drops below its
// minimum level. Publish failures are returned so the pool retries them.
type StockAlertWorker struct {
	products  repository.ProductRepository
	batches   repository.BatchRepository
	publisher infra.Publisher
}

func NewStockAlertWorker(products repository.ProductRepository, batches repository.BatchRepository, publisher infra.Publisher) *StockAlertWorker {
	return &StockAlertWorker{products: products, batches: batches, publisher: publisher}
}

func (w *StockAlertWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload StockAlertJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("alert_worker: invalid payload")
		return nil
	}
	productID, err := uuid.Parse(payload.ProductID)
	if err != nil {
		log.Error().Str("product_id", payload.ProductID).Msg("alert_worker: invalid product id")
		return nil
	}

	product, err := w.products.FindByID(ctx, nil, productID)
	if err != nil {
		return err
	}
	committed, err := w.batches.SumCommitted(ctx, nil, productID, nil)
	if err != nil {
		return err
	}
	if committed >= product.MinStockLevel {
		return nil
	}

	ev := infra.NewEvent(infra.EventStockLow, StockLowPayload{
		ProductID:      productID.String(),
		Code:           product.Code,
		Name:           product.Name,
		CommittedStock: committed,
		MinStockLevel:  product.MinStockLevel,
	})
	if err := w.publisher.Publish(ctx, productID.String(), ev); err != nil {
		return err
	}
	log.Warn().Str("product_id", productID.String()).Int("committed", committed).Int("min", product.MinStockLevel).
		Msg("alert_worker: low stock")
	return nil
}
