package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"pharmacy/internal/infra"
	"pharmacy/internal/model"
	"pharmacy/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ReceiptWorker renders the PDF receipt of a completed sale.
type ReceiptWorker struct {
	sales        repository.SaleRepository
	pharmacyName string
	storagePath  string
}

func NewReceiptWorker(sales repository.SaleRepository, pharmacyName, storagePath string) *ReceiptWorker {
	return &ReceiptWorker{sales: sales, pharmacyName: pharmacyName, storagePath: storagePath}
}

func (w *ReceiptWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload ReceiptJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("receipt_worker: invalid payload")
		return nil
	}
	saleID, err := uuid.Parse(payload.SaleID)
	if err != nil {
		log.Error().Str("sale_id", payload.SaleID).Msg("receipt_worker: invalid sale id")
		return nil
	}

	sale, err := w.sales.FindByID(ctx, saleID)
	if err != nil {
		return fmt.Errorf("load sale %s: %w", saleID, err)
	}
	if sale.Status != model.SaleCompleted {
		log.Warn().Str("sale_id", saleID.String()).Str("status", string(sale.Status)).
			Msg("receipt_worker: sale not completed, skipping")
		return nil
	}

	path, err := infra.GenerateReceiptPDF(sale, w.pharmacyName, w.storagePath)
	if err != nil {
		return err
	}
	log.Info().Str("sale_id", saleID.String()).Int("sale_number", sale.SaleNumber).Str("path", path).
		Msg("receipt_worker: receipt generated")
	return nil
}
