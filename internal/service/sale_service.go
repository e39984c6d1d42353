package service

import (
	"context"
	"fmt"
	"time"

	"pharmacy/internal/dto"
	"pharmacy/internal/infra"
	"pharmacy/internal/model"
	"pharmacy/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// JobDispatcher enqueues post-commit background work.
type JobDispatcher interface {
	EnqueueReceipt(ctx context.Context, saleID uuid.UUID) error
	EnqueueStockAlert(ctx context.Context, productID uuid.UUID) error
}

type SaleOptions struct {
	TaxRate         decimal.Decimal
	ReserveOnCreate bool
	ReservationTTL  time.Duration
}

type SaleService interface {
	Create(ctx context.Context, cashierID uuid.UUID, req dto.CreateSaleRequest) (*dto.SaleResponse, error)
	Complete(ctx context.Context, saleID, userID uuid.UUID) (*dto.SaleResponse, error)
	Cancel(ctx context.Context, saleID, userID uuid.UUID, reason string) (*dto.SaleResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.SaleResponse, error)
	List(ctx context.Context, filter dto.SaleFilter) (*dto.SaleListResponse, error)
}

type saleService struct {
	repo         repository.SaleRepository
	products     repository.ProductRepository
	batches      repository.BatchRepository
	stock        StockService
	reservations ReservationService
	dispatcher   JobDispatcher
	publisher    infra.Publisher
	opts         SaleOptions
	now          func() time.Time
}

func NewSaleService(
	repo repository.SaleRepository,
	products repository.ProductRepository,
	batches repository.BatchRepository,
	stock StockService,
	reservations ReservationService,
	dispatcher JobDispatcher,
	publisher infra.Publisher,
	opts SaleOptions,
) SaleService {
	if publisher == nil {
		publisher = infra.NoopPublisher{}
	}
	if opts.ReservationTTL <= 0 {
		opts.ReservationTTL = 30 * time.Minute
	}
	return &saleService{
		repo:         repo,
		products:     products,
		batches:      batches,
		stock:        stock,
		reservations: reservations,
		dispatcher:   dispatcher,
		publisher:    publisher,
		opts:         opts,
		now:          time.Now,
	}
}

// ── Create ────────────────────────────────────────────────────────────────────
//   1. Resolve products / batches and price every line (outside the TX)
//   2. BEGIN TX: sale number, sale + items + pending payment, CREATED audit row
//   3. Optional holds for every line, referenced by the sale id
//   4. COMMIT

func (s *saleService) Create(ctx context.Context, cashierID uuid.UUID, req dto.CreateSaleRequest) (*dto.SaleResponse, error) {
	type resolvedItem struct {
		product  *model.Product
		batchID  *uuid.UUID
		quantity int
		discount decimal.Decimal
		subtotal decimal.Decimal
	}

	resolved := make([]resolvedItem, 0, len(req.Items))
	subtotal := decimal.Zero
	for _, item := range req.Items {
		pid, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("invalid product_id: %w", err)
		}
		p, err := s.products.FindByID(ctx, nil, pid)
		if err != nil {
			return nil, notFound(err, "product", pid)
		}
		if !p.Active {
			return nil, &InactiveEntityError{Entity: "product", ID: pid.String()}
		}
		if p.RequiresPrescription && (req.PrescriptionID == nil || *req.PrescriptionID == "") {
			return nil, fmt.Errorf("%w: %s", ErrPrescriptionRequired, p.Name)
		}

		var batchID *uuid.UUID
		if item.BatchID != nil {
			bid, err := uuid.Parse(*item.BatchID)
			if err != nil {
				return nil, fmt.Errorf("invalid batch_id: %w", err)
			}
			b, err := s.batches.FindByID(ctx, nil, bid)
			if err != nil {
				return nil, notFound(err, "batch", bid)
			}
			if b.ProductID != pid {
				return nil, &NotFoundError{Entity: "batch", ID: bid.String()}
			}
			if !b.Active {
				return nil, &InactiveEntityError{Entity: "batch", ID: bid.String()}
			}
			batchID = &bid
		}

		gross := p.SellingPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		if item.Discount.GreaterThan(gross) {
			return nil, fmt.Errorf("%w: line %s", ErrInvalidDiscount, p.Name)
		}
		line := gross.Sub(item.Discount)
		subtotal = subtotal.Add(line)
		resolved = append(resolved, resolvedItem{
			product:  p,
			batchID:  batchID,
			quantity: item.Quantity,
			discount: item.Discount,
			subtotal: line,
		})
	}

	tax := subtotal.Mul(s.opts.TaxRate).Round(2)
	if req.Discount.GreaterThan(subtotal.Add(tax)) {
		return nil, fmt.Errorf("%w: sale total", ErrInvalidDiscount)
	}
	total := subtotal.Add(tax).Sub(req.Discount)

	now := s.now()
	sale := model.Sale{
		ID:             uuid.New(),
		CashierID:      cashierID,
		CustomerName:   req.CustomerName,
		PrescriptionID: req.PrescriptionID,
		Status:         model.SalePending,
		Subtotal:       subtotal,
		TaxAmount:      tax,
		DiscountAmount: req.Discount,
		Total:          total,
		Notes:          req.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for _, r := range resolved {
		sale.Items = append(sale.Items, model.SaleItem{
			ProductID: r.product.ID,
			BatchID:   r.batchID,
			Quantity:  r.quantity,
			UnitPrice: r.product.SellingPrice,
			Discount:  r.discount,
			Subtotal:  r.subtotal,
		})
	}
	sale.Payments = []model.Payment{{
		Method:    req.PaymentMethod,
		Amount:    total,
		Status:    model.PaymentPending,
		Reference: req.PaymentRef,
	}}

	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		num, err := s.repo.NextSaleNumber(ctx, tx)
		if err != nil {
			return err
		}
		sale.SaleNumber = num
		if err := s.repo.Create(ctx, tx, &sale); err != nil {
			return err
		}
		if err := s.repo.CreateAuditLog(ctx, tx, &model.SaleAuditLog{
			SaleID:    sale.ID,
			Action:    model.AuditSaleCreated,
			FromState: model.SaleDraft,
			ToState:   model.SalePending,
			UserID:    cashierID,
		}); err != nil {
			return err
		}

		if !s.opts.ReserveOnCreate {
			return nil
		}
		order := lockOrder(len(sale.Items), func(i int) (uuid.UUID, *uuid.UUID) {
			return sale.Items[i].ProductID, sale.Items[i].BatchID
		})
		for _, i := range order {
			item := sale.Items[i]
			if _, err := s.reservations.ReserveTx(ctx, tx, ReserveCommand{
				ProductID:   item.ProductID,
				BatchID:     item.BatchID,
				Quantity:    item.Quantity,
				Type:        model.ReservationSale,
				ReferenceID: sale.ID.String(),
				ExpiresAt:   now.Add(s.opts.ReservationTTL),
				UserID:      cashierID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	for i, r := range resolved {
		sale.Items[i].Product = r.product
	}
	log.Info().
		Str("sale_id", sale.ID.String()).
		Int("sale_number", sale.SaleNumber).
		Str("total", sale.Total.StringFixed(2)).
		Msg("sale created")
	return saleToResponse(&sale), nil
}

// ── Complete ──────────────────────────────────────────────────────────────────
// One transaction: lock the sale, drop its holds, deduct stock for every line,
// mark sale and payments completed, audit. Any failure rolls everything back.

func (s *saleService) Complete(ctx context.Context, saleID, userID uuid.UUID) (*dto.SaleResponse, error) {
	var sale *model.Sale
	var ops []model.StockOperation

	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		sale, err = s.repo.LockByID(ctx, tx, saleID)
		if err != nil {
			return notFound(err, "sale", saleID)
		}
		if sale.Status != model.SalePending {
			return &InvalidSaleStateError{SaleID: saleID, Status: string(sale.Status), Action: "complete"}
		}

		if _, err := s.reservations.ReleaseByReferenceTx(ctx, tx, saleID.String()); err != nil {
			return fmt.Errorf("release sale holds: %w", err)
		}

		cmds := make([]StockCommand, 0, len(sale.Items))
		for _, item := range sale.Items {
			cmds = append(cmds, StockCommand{
				ProductID:   item.ProductID,
				BatchID:     item.BatchID,
				Quantity:    item.Quantity,
				Type:        model.OperationSale,
				Reason:      fmt.Sprintf("Sale #%d", sale.SaleNumber),
				UserID:      &userID,
				ReferenceID: strPtr(saleID.String()),
			})
		}
		ops, err = s.stock.ExecuteTx(ctx, tx, cmds)
		if err != nil {
			return err
		}

		now := s.now()
		if err := s.repo.UpdateStatus(ctx, tx, saleID, model.SaleCompleted, now); err != nil {
			return err
		}
		if err := s.repo.UpdatePaymentStatus(ctx, tx, saleID, model.PaymentCompleted); err != nil {
			return err
		}
		return s.repo.CreateAuditLog(ctx, tx, &model.SaleAuditLog{
			SaleID:    saleID,
			Action:    model.AuditSaleCompleted,
			FromState: model.SalePending,
			ToState:   model.SaleCompleted,
			UserID:    userID,
		})
	})
	if txErr != nil {
		log.Warn().Err(txErr).Str("sale_id", saleID.String()).Msg("sale completion rolled back")
		return nil, txErr
	}

	log.Info().Str("sale_id", saleID.String()).Int("operations", len(ops)).Msg("sale completed")

	// Post-commit side effects are best-effort.
	s.stock.PublishExecuted(ctx, ops)
	infra.PublishBestEffort(ctx, s.publisher, saleID.String(), infra.NewEvent(infra.EventSaleCompleted, map[string]interface{}{
		"sale_id":     saleID.String(),
		"sale_number": sale.SaleNumber,
		"total":       sale.Total,
	}))
	if s.dispatcher != nil {
		if err := s.dispatcher.EnqueueReceipt(ctx, saleID); err != nil {
			log.Warn().Err(err).Str("sale_id", saleID.String()).Msg("receipt job not enqueued")
		}
		seen := make(map[uuid.UUID]bool, len(sale.Items))
		for _, item := range sale.Items {
			if seen[item.ProductID] {
				continue
			}
			seen[item.ProductID] = true
			if err := s.dispatcher.EnqueueStockAlert(ctx, item.ProductID); err != nil {
				log.Warn().Err(err).Str("product_id", item.ProductID.String()).Msg("stock alert job not enqueued")
			}
		}
	}

	return s.Get(ctx, saleID)
}

// ── Cancel ────────────────────────────────────────────────────────────────────
// Cancelling never touches batch quantities: a pending sale has not deducted
// anything yet. Holds taken at creation are dropped.

func (s *saleService) Cancel(ctx context.Context, saleID, userID uuid.UUID, reason string) (*dto.SaleResponse, error) {
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		sale, err := s.repo.LockByID(ctx, tx, saleID)
		if err != nil {
			return notFound(err, "sale", saleID)
		}
		if sale.Status != model.SalePending && sale.Status != model.SaleDraft {
			return &InvalidSaleStateError{SaleID: saleID, Status: string(sale.Status), Action: "cancel"}
		}

		if err := s.repo.UpdateStatus(ctx, tx, saleID, model.SaleCancelled, s.now()); err != nil {
			return err
		}
		if err := s.repo.UpdatePaymentStatus(ctx, tx, saleID, model.PaymentFailed); err != nil {
			return err
		}
		if err := s.repo.CreateAuditLog(ctx, tx, &model.SaleAuditLog{
			SaleID:    saleID,
			Action:    model.AuditSaleCancelled,
			FromState: sale.Status,
			ToState:   model.SaleCancelled,
			UserID:    userID,
			Reason:    reason,
		}); err != nil {
			return err
		}
		_, err = s.reservations.ReleaseByReferenceTx(ctx, tx, saleID.String())
		return err
	})
	if txErr != nil {
		return nil, txErr
	}

	log.Info().Str("sale_id", saleID.String()).Str("reason", reason).Msg("sale cancelled")
	infra.PublishBestEffort(ctx, s.publisher, saleID.String(), infra.NewEvent(infra.EventSaleCancelled, map[string]interface{}{
		"sale_id": saleID.String(),
		"reason":  reason,
	}))
	return s.Get(ctx, saleID)
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *saleService) Get(ctx context.Context, id uuid.UUID) (*dto.SaleResponse, error) {
	sale, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "sale", id)
	}
	return saleToResponse(sale), nil
}

func (s *saleService) List(ctx context.Context, filter dto.SaleFilter) (*dto.SaleListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	sales, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	data := make([]dto.SaleResponse, 0, len(sales))
	for i := range sales {
		data = append(data, *saleToResponse(&sales[i]))
	}
	return &dto.SaleListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func saleToResponse(s *model.Sale) *dto.SaleResponse {
	resp := &dto.SaleResponse{
		ID:             s.ID.String(),
		SaleNumber:     s.SaleNumber,
		CashierID:      s.CashierID.String(),
		CustomerName:   s.CustomerName,
		PrescriptionID: s.PrescriptionID,
		Status:         string(s.Status),
		Subtotal:       s.Subtotal,
		TaxAmount:      s.TaxAmount,
		DiscountAmount: s.DiscountAmount,
		Total:          s.Total,
		Items:          make([]dto.SaleItemResponse, 0, len(s.Items)),
		Payments:       make([]dto.PaymentResponse, 0, len(s.Payments)),
		CreatedAt:      s.CreatedAt.Format(time.RFC3339),
	}
	if s.CompletedAt != nil {
		resp.CompletedAt = strPtr(s.CompletedAt.Format(time.RFC3339))
	}
	if s.CancelledAt != nil {
		resp.CancelledAt = strPtr(s.CancelledAt.Format(time.RFC3339))
	}
	for _, it := range s.Items {
		item := dto.SaleItemResponse{
			ProductID: it.ProductID.String(),
			BatchID:   uuidStrPtr(it.BatchID),
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Discount:  it.Discount,
			Subtotal:  it.Subtotal,
		}
		if it.Product != nil {
			item.ProductName = it.Product.Name
		}
		resp.Items = append(resp.Items, item)
	}
	for _, p := range s.Payments {
		resp.Payments = append(resp.Payments, dto.PaymentResponse{
			Method:    p.Method,
			Amount:    p.Amount,
			Status:    string(p.Status),
			Reference: p.Reference,
		})
	}
	return resp
}
