package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"pharmacy/internal/dto"
	"pharmacy/internal/infra"
	"pharmacy/internal/model"
	"pharmacy/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// StockCommand asks for one stock mutation. Quantity is always positive; the
// operation type decides the direction.
type StockCommand struct {
	ProductID   uuid.UUID
	BatchID     *uuid.UUID
	Quantity    int
	Type        model.StockOperationType
	Reason      string
	UserID      *uuid.UUID
	ReferenceID *string
}

type StockService interface {
	// GetAvailableStock is committed stock minus live holds, never negative.
	GetAvailableStock(ctx context.Context, productID uuid.UUID, branchID *uuid.UUID) (int, error)
	// ValidateStockAvailability reports business problems in the result; the
	// error return is reserved for infrastructure failures.
	ValidateStockAvailability(ctx context.Context, productID uuid.UUID, quantity int, batchID *uuid.UUID) (*dto.StockValidationResult, error)
	ValidateStockAvailabilityTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int, batchID *uuid.UUID) (*dto.StockValidationResult, error)

	// Execute applies one command in its own transaction and returns the
	// operation id.
	Execute(ctx context.Context, cmd StockCommand) (uuid.UUID, error)
	// ExecuteTx applies cmds inside the caller's transaction. Every command is
	// planned (locks taken, sufficiency checked) before anything is written.
	ExecuteTx(ctx context.Context, tx *gorm.DB, cmds []StockCommand) ([]model.StockOperation, error)
	// PublishExecuted emits events for operations whose transaction committed.
	PublishExecuted(ctx context.Context, ops []model.StockOperation)

	GetOperation(ctx context.Context, id uuid.UUID) (*dto.StockOperationDetail, error)
}

type stockService struct {
	products     repository.ProductRepository
	batches      repository.BatchRepository
	movements    repository.StockMovementRepository
	operations   repository.StockOperationRepository
	reservations repository.ReservationRepository
	publisher    infra.Publisher
	warnDays     int
	now          func() time.Time
}

func NewStockService(
	products repository.ProductRepository,
	batches repository.BatchRepository,
	movements repository.StockMovementRepository,
	operations repository.StockOperationRepository,
	reservations repository.ReservationRepository,
	publisher infra.Publisher,
	expiryWarningDays int,
) StockService {
	if publisher == nil {
		publisher = infra.NoopPublisher{}
	}
	return &stockService{
		products:     products,
		batches:      batches,
		movements:    movements,
		operations:   operations,
		reservations: reservations,
		publisher:    publisher,
		warnDays:     expiryWarningDays,
		now:          time.Now,
	}
}

// ── Availability ──────────────────────────────────────────────────────────────

func (s *stockService) GetAvailableStock(ctx context.Context, productID uuid.UUID, branchID *uuid.UUID) (int, error) {
	return s.available(ctx, nil, productID, branchID, s.now())
}

func (s *stockService) available(ctx context.Context, tx *gorm.DB, productID uuid.UUID, branchID *uuid.UUID, now time.Time) (int, error) {
	committed, err := s.batches.SumCommitted(ctx, tx, productID, branchID)
	if err != nil {
		return 0, fmt.Errorf("sum committed stock: %w", err)
	}
	held, err := s.reservations.SumActive(ctx, tx, productID, branchID, now)
	if err != nil {
		return 0, fmt.Errorf("sum reservations: %w", err)
	}
	return max(0, committed-held), nil
}

// ── Validation ────────────────────────────────────────────────────────────────

func (s *stockService) ValidateStockAvailability(ctx context.Context, productID uuid.UUID, quantity int, batchID *uuid.UUID) (*dto.StockValidationResult, error) {
	return s.ValidateStockAvailabilityTx(ctx, nil, productID, quantity, batchID)
}

func (s *stockService) ValidateStockAvailabilityTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int, batchID *uuid.UUID) (*dto.StockValidationResult, error) {
	res := &dto.StockValidationResult{Errors: []string{}, Warnings: []string{}}
	fail := func(err error) {
		res.Errors = append(res.Errors, err.Error())
		res.Causes = append(res.Causes, err)
	}
	defer func() { res.IsValid = len(res.Errors) == 0 }()

	if quantity <= 0 {
		fail(ErrInvalidQuantity)
		return res, nil
	}

	product, err := s.products.FindByID(ctx, tx, productID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		fail(&NotFoundError{Entity: "product", ID: productID.String()})
		return res, nil
	}
	if !product.Active {
		fail(&InactiveEntityError{Entity: "product", ID: productID.String()})
		return res, nil
	}

	now := s.now()
	available, err := s.available(ctx, tx, productID, nil, now)
	if err != nil {
		return nil, err
	}
	if available < quantity {
		fail(&InsufficientStockError{ProductID: productID, Available: available, Required: quantity})
	}

	if batchID == nil {
		// FIFO sales skip expired lots, so a hold on them could never be filled.
		if available >= quantity {
			expired, err := s.batches.SumExpired(ctx, tx, productID, nil, now)
			if err != nil {
				return nil, fmt.Errorf("sum expired stock: %w", err)
			}
			if expired > 0 {
				res.Warnings = append(res.Warnings, fmt.Sprintf("%d units are in expired batches", expired))
				if sellable := max(0, available-expired); sellable < quantity {
					fail(&InsufficientStockError{ProductID: productID, Available: sellable, Required: quantity})
				}
			}
		}
		return res, nil
	}

	batch, err := s.batches.FindByID(ctx, tx, *batchID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		fail(&NotFoundError{Entity: "batch", ID: batchID.String()})
		return res, nil
	case err != nil:
		return nil, err
	case batch.ProductID != productID:
		fail(&NotFoundError{Entity: "batch", ID: batchID.String()})
		return res, nil
	case !batch.Active:
		fail(&InactiveEntityError{Entity: "batch", ID: batchID.String()})
		return res, nil
	}

	if batch.IsExpired(now) {
		fail(&ExpiredBatchError{BatchID: batch.ID, BatchNumber: batch.BatchNumber, ExpiryDate: batch.ExpiryDate})
	} else if batch.ExpiresWithin(now, s.warnDays) {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("batch %s expires on %s", batch.BatchNumber, batch.ExpiryDate.Format("2006-01-02")))
	}

	held, err := s.reservations.SumActiveForBatch(ctx, tx, batch.ID, now)
	if err != nil {
		return nil, err
	}
	if batchAvailable := max(0, batch.CurrentQuantity-held); batchAvailable < quantity {
		fail(&InsufficientStockError{ProductID: productID, BatchID: &batch.ID, Available: batchAvailable, Required: quantity})
	}
	return res, nil
}

// ── Execution ─────────────────────────────────────────────────────────────────

// ledger tracks working quantities inside one transaction so that several
// commands touching the same batch or product see each other's effect before
// anything is written.
type ledger struct {
	batches  map[uuid.UUID]int
	products map[uuid.UUID]int
}

func newLedger() *ledger {
	return &ledger{batches: map[uuid.UUID]int{}, products: map[uuid.UUID]int{}}
}

func (l *ledger) batchQty(b *model.Batch) int {
	if q, ok := l.batches[b.ID]; ok {
		return q
	}
	l.batches[b.ID] = b.CurrentQuantity
	return b.CurrentQuantity
}

type planLeg struct {
	batch  model.Batch
	delta  int
	before int
	after  int
}

type operationPlan struct {
	cmd    StockCommand
	legs   []planLeg
	before int
	after  int
}

func (s *stockService) Execute(ctx context.Context, cmd StockCommand) (uuid.UUID, error) {
	var ops []model.StockOperation
	err := runTx(ctx, s.operations.DB(), func(tx *gorm.DB) error {
		var err error
		ops, err = s.ExecuteTx(ctx, tx, []StockCommand{cmd})
		return err
	})
	if err != nil {
		return uuid.Nil, err
	}
	s.PublishExecuted(ctx, ops)
	return ops[0].ID, nil
}

// ExecuteTx plans and applies cmds inside tx. Rows are locked in product
// then batch order whatever the caller's order; operations come back in the
// caller's order.
func (s *stockService) ExecuteTx(ctx context.Context, tx *gorm.DB, cmds []StockCommand) ([]model.StockOperation, error) {
	order := lockOrder(len(cmds), func(i int) (uuid.UUID, *uuid.UUID) { return cmds[i].ProductID, cmds[i].BatchID })

	l := newLedger()
	plans := make([]*operationPlan, len(cmds))
	for _, i := range order {
		p, err := s.plan(ctx, tx, l, cmds[i])
		if err != nil {
			return nil, err
		}
		plans[i] = p
	}

	ops := make([]model.StockOperation, len(plans))
	for _, i := range order {
		op, err := s.apply(ctx, tx, plans[i])
		if err != nil {
			return nil, err
		}
		ops[i] = *op
	}
	return ops, nil
}

// lockOrder returns the indexes 0..n-1 sorted by product id, then batch id
// with product-wide entries first. Entries with equal keys keep their order.
func lockOrder(n int, key func(i int) (uuid.UUID, *uuid.UUID)) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		pa, ba := key(idx[a])
		pb, bb := key(idx[b])
		if c := bytes.Compare(pa[:], pb[:]); c != 0 {
			return c < 0
		}
		switch {
		case ba == nil || bb == nil:
			return ba == nil && bb != nil
		default:
			return bytes.Compare(ba[:], bb[:]) < 0
		}
	})
	return idx
}

func (s *stockService) plan(ctx context.Context, tx *gorm.DB, l *ledger, cmd StockCommand) (*operationPlan, error) {
	if cmd.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if !cmd.Type.IsValid() {
		return nil, ErrInvalidOperationType
	}

	product, err := s.products.FindByID(ctx, tx, cmd.ProductID)
	if err != nil {
		return nil, notFound(err, "product", cmd.ProductID)
	}
	if !product.Active {
		return nil, &InactiveEntityError{Entity: "product", ID: cmd.ProductID.String()}
	}

	now := s.now()
	p := &operationPlan{cmd: cmd}

	switch {
	case cmd.BatchID != nil:
		leg, err := s.planExplicitBatch(ctx, tx, l, cmd, now)
		if err != nil {
			return nil, err
		}
		p.legs = []planLeg{*leg}

	case cmd.Type.Subtracts():
		batches, err := s.batches.LockActiveByProduct(ctx, tx, cmd.ProductID)
		if err != nil {
			return nil, fmt.Errorf("lock batches: %w", err)
		}
		working := make([]model.Batch, 0, len(batches))
		for _, b := range batches {
			// re-read through the ledger now that the rows are locked
			b.CurrentQuantity = l.batchQty(&b)
			if cmd.Type == model.OperationSale && b.IsExpired(now) {
				continue
			}
			working = append(working, b)
		}
		allocs, err := AllocateFIFO(working, cmd.Quantity)
		if err != nil {
			var ise *InsufficientStockError
			if errors.As(err, &ise) {
				ise.ProductID = cmd.ProductID
			}
			return nil, err
		}
		for _, a := range allocs {
			p.legs = append(p.legs, planLeg{batch: a.Batch, delta: -a.Quantity})
		}

	default:
		batches, err := s.batches.LockActiveByProduct(ctx, tx, cmd.ProductID)
		if err != nil {
			return nil, fmt.Errorf("lock batches: %w", err)
		}
		if len(batches) == 0 {
			return nil, &UnsupportedOperationError{
				Operation: string(cmd.Type),
				Reason:    "product has no active batch; receive a batch first",
			}
		}
		// freshest lot: batches come back ordered by expiry ascending
		p.legs = []planLeg{{batch: batches[len(batches)-1], delta: cmd.Quantity}}
	}

	if _, ok := l.products[cmd.ProductID]; !ok {
		committed, err := s.batches.SumCommitted(ctx, tx, cmd.ProductID, nil)
		if err != nil {
			return nil, fmt.Errorf("sum committed stock: %w", err)
		}
		l.products[cmd.ProductID] = committed
	}
	p.before = l.products[cmd.ProductID]

	change := 0
	for i := range p.legs {
		leg := &p.legs[i]
		leg.before = l.batchQty(&leg.batch)
		leg.after = leg.before + leg.delta
		if leg.after < 0 {
			return nil, &InsufficientStockError{ProductID: cmd.ProductID, BatchID: &leg.batch.ID, Available: leg.before, Required: -leg.delta}
		}
		l.batches[leg.batch.ID] = leg.after
		change += leg.delta
	}
	p.after = p.before + change
	l.products[cmd.ProductID] = p.after
	return p, nil
}

func (s *stockService) planExplicitBatch(ctx context.Context, tx *gorm.DB, l *ledger, cmd StockCommand, now time.Time) (*planLeg, error) {
	batch, err := s.batches.LockByID(ctx, tx, *cmd.BatchID)
	if err != nil {
		return nil, notFound(err, "batch", *cmd.BatchID)
	}
	if batch.ProductID != cmd.ProductID {
		return nil, &NotFoundError{Entity: "batch", ID: cmd.BatchID.String()}
	}
	if !batch.Active {
		return nil, &InactiveEntityError{Entity: "batch", ID: cmd.BatchID.String()}
	}
	if !cmd.Type.Subtracts() {
		return &planLeg{batch: *batch, delta: cmd.Quantity}, nil
	}

	if cmd.Type == model.OperationSale && batch.IsExpired(now) {
		return nil, &ExpiredBatchError{BatchID: batch.ID, BatchNumber: batch.BatchNumber, ExpiryDate: batch.ExpiryDate}
	}
	if current := l.batchQty(batch); current < cmd.Quantity {
		return nil, &InsufficientStockError{ProductID: cmd.ProductID, BatchID: &batch.ID, Available: current, Required: cmd.Quantity}
	}
	return &planLeg{batch: *batch, delta: -cmd.Quantity}, nil
}

func (s *stockService) apply(ctx context.Context, tx *gorm.DB, p *operationPlan) (*model.StockOperation, error) {
	op := &model.StockOperation{
		ID:               uuid.New(),
		Type:             p.cmd.Type,
		ProductID:        p.cmd.ProductID,
		BatchID:          p.cmd.BatchID,
		QuantityChange:   p.after - p.before,
		PreviousQuantity: p.before,
		NewQuantity:      p.after,
		Reason:           p.cmd.Reason,
		UserID:           p.cmd.UserID,
		ReferenceID:      p.cmd.ReferenceID,
		CreatedAt:        s.now(),
	}
	if err := s.operations.Create(ctx, tx, op); err != nil {
		return nil, fmt.Errorf("create stock operation: %w", err)
	}

	for _, leg := range p.legs {
		if err := s.batches.SetQuantity(ctx, tx, leg.batch.ID, leg.after); err != nil {
			return nil, fmt.Errorf("update batch %s: %w", leg.batch.BatchNumber, err)
		}
		batchID := leg.batch.ID
		mov := &model.StockMovement{
			OperationID:      op.ID,
			ProductID:        p.cmd.ProductID,
			BatchID:          &batchID,
			Type:             p.cmd.Type.MovementType(),
			Quantity:         abs(leg.delta),
			PreviousQuantity: leg.before,
			NewQuantity:      leg.after,
			Reason:           p.cmd.Reason,
			UserID:           p.cmd.UserID,
			ReferenceID:      p.cmd.ReferenceID,
			CreatedAt:        op.CreatedAt,
		}
		if err := s.movements.Create(ctx, tx, mov); err != nil {
			return nil, fmt.Errorf("create stock movement: %w", err)
		}
		op.Movements = append(op.Movements, *mov)
	}

	log.Info().
		Str("operation_id", op.ID.String()).
		Str("type", string(op.Type)).
		Str("product_id", op.ProductID.String()).
		Int("change", op.QuantityChange).
		Int("batches", len(p.legs)).
		Msg("stock operation executed")
	return op, nil
}

func (s *stockService) PublishExecuted(ctx context.Context, ops []model.StockOperation) {
	for i := range ops {
		op := &ops[i]
		infra.PublishBestEffort(ctx, s.publisher, op.ProductID.String(),
			infra.NewEvent(infra.EventStockOperationExecuted, operationToDetail(op, op.Movements)))
	}
}

// ── Audit lookup ──────────────────────────────────────────────────────────────

func (s *stockService) GetOperation(ctx context.Context, id uuid.UUID) (*dto.StockOperationDetail, error) {
	op, err := s.operations.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "stock operation", id)
	}
	movements, err := s.movements.ListByOperation(ctx, id)
	if err != nil {
		return nil, err
	}
	return operationToDetail(op, movements), nil
}

func operationToDetail(op *model.StockOperation, movements []model.StockMovement) *dto.StockOperationDetail {
	d := &dto.StockOperationDetail{
		ID:               op.ID.String(),
		Type:             string(op.Type),
		ProductID:        op.ProductID.String(),
		BatchID:          uuidStrPtr(op.BatchID),
		QuantityChange:   op.QuantityChange,
		PreviousQuantity: op.PreviousQuantity,
		NewQuantity:      op.NewQuantity,
		Reason:           op.Reason,
		UserID:           uuidStrPtr(op.UserID),
		ReferenceID:      op.ReferenceID,
		CreatedAt:        op.CreatedAt.Format(time.RFC3339),
		Movements:        make([]dto.StockMovementResponse, 0, len(movements)),
	}
	for i := range movements {
		d.Movements = append(d.Movements, movementToResponse(&movements[i]))
	}
	return d
}

func movementToResponse(m *model.StockMovement) dto.StockMovementResponse {
	r := dto.StockMovementResponse{
		ID:               m.ID.String(),
		OperationID:      m.OperationID.String(),
		ProductID:        m.ProductID.String(),
		BatchID:          uuidStrPtr(m.BatchID),
		Type:             string(m.Type),
		Quantity:         m.Quantity,
		PreviousQuantity: m.PreviousQuantity,
		NewQuantity:      m.NewQuantity,
		Reason:           m.Reason,
		UserID:           uuidStrPtr(m.UserID),
		ReferenceID:      m.ReferenceID,
		CreatedAt:        m.CreatedAt.Format(time.RFC3339),
	}
	if m.Product != nil {
		r.ProductName = m.Product.Name
	}
	return r
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
