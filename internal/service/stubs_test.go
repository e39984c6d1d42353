package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"pharmacy/internal/dto"
	"pharmacy/internal/infra"
	"pharmacy/internal/model"
	"pharmacy/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── In-memory store ───────────────────────────────────────────────────────────
// Every stub repository shares one memStore so services see each other's
// writes. DB() returns nil, which makes runTx call straight through.

type memStore struct {
	mu           sync.Mutex
	products     map[uuid.UUID]*model.Product
	batches      map[uuid.UUID]*model.Batch
	reservations map[uuid.UUID]*model.StockReservation
	operations   map[uuid.UUID]*model.StockOperation
	movements    []model.StockMovement
	sales        map[uuid.UUID]*model.Sale
	audits       []model.SaleAuditLog
	saleSeq      int
}

func newMemStore() *memStore {
	return &memStore{
		products:     map[uuid.UUID]*model.Product{},
		batches:      map[uuid.UUID]*model.Batch{},
		reservations: map[uuid.UUID]*model.StockReservation{},
		operations:   map[uuid.UUID]*model.StockOperation{},
		sales:        map[uuid.UUID]*model.Sale{},
	}
}

// ── Products ──────────────────────────────────────────────────────────────────

type memProducts struct{ *memStore }

func (r memProducts) Create(_ context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	r.products[p.ID] = &cp
	return nil
}

func (r memProducts) FindByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r memProducts) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Product, error) {
	return r.FindByID(ctx, tx, id)
}

func (r memProducts) List(_ context.Context, filter dto.ProductFilter) ([]model.Product, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Product, 0, len(r.products))
	for _, p := range r.products {
		if filter.Active == "" && !p.Active {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, int64(len(out)), nil
}

func (r memProducts) SoftDelete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.products[id]; ok {
		p.Active = false
	}
	return nil
}

func (r memProducts) ListBelowMinStock(_ context.Context) ([]repository.ProductStock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.ProductStock
	for _, p := range r.products {
		if !p.Active {
			continue
		}
		committed := 0
		for _, b := range r.batches {
			if b.ProductID == p.ID && b.Active {
				committed += b.CurrentQuantity
			}
		}
		if committed <= p.MinStockLevel {
			out = append(out, repository.ProductStock{Product: *p, CommittedStock: committed})
		}
	}
	return out, nil
}

func (r memProducts) DB() *gorm.DB { return nil }

// ── Batches ───────────────────────────────────────────────────────────────────

type memBatches struct{ *memStore }

func (r memBatches) Create(_ context.Context, _ *gorm.DB, b *model.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	cp := *b
	r.batches[b.ID] = &cp
	return nil
}

func (r memBatches) FindByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *b
	return &cp, nil
}

func (r memBatches) ListByProduct(_ context.Context, productID uuid.UUID, includeInactive bool) ([]model.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Batch
	for _, b := range r.batches {
		if b.ProductID == productID && (includeInactive || b.Active) {
			out = append(out, *b)
		}
	}
	sortBatches(out)
	return out, nil
}

func (r memBatches) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Batch, error) {
	return r.FindByID(ctx, tx, id)
}

func (r memBatches) LockActiveByProduct(_ context.Context, _ *gorm.DB, productID uuid.UUID) ([]model.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Batch
	for _, b := range r.batches {
		if b.ProductID == productID && b.Active {
			out = append(out, *b)
		}
	}
	sortBatches(out)
	return out, nil
}

func (r memBatches) SetQuantity(_ context.Context, _ *gorm.DB, id uuid.UUID, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	b.CurrentQuantity = quantity
	return nil
}

func (r memBatches) SumCommitted(_ context.Context, _ *gorm.DB, productID uuid.UUID, branchID *uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, b := range r.batches {
		if b.ProductID != productID || !b.Active {
			continue
		}
		if branchID != nil && (b.BranchID == nil || *b.BranchID != *branchID) {
			continue
		}
		total += b.CurrentQuantity
	}
	return total, nil
}

func (r memBatches) ListExpiringBefore(_ context.Context, cutoff time.Time) ([]model.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Batch
	for _, b := range r.batches {
		if b.Active && b.CurrentQuantity > 0 && !b.ExpiryDate.After(cutoff) {
			cp := *b
			if p, ok := r.products[b.ProductID]; ok {
				pc := *p
				cp.Product = &pc
			}
			out = append(out, cp)
		}
	}
	sortBatches(out)
	return out, nil
}

func (r memBatches) SumExpired(_ context.Context, _ *gorm.DB, productID uuid.UUID, branchID *uuid.UUID, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, b := range r.batches {
		if b.ProductID != productID || !b.Active || !b.IsExpired(now) {
			continue
		}
		if branchID != nil && (b.BranchID == nil || *b.BranchID != *branchID) {
			continue
		}
		total += b.CurrentQuantity
	}
	return total, nil
}

func (r memBatches) Deactivate(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.batches[id]; ok && b.CurrentQuantity == 0 {
		b.Active = false
		return true, nil
	}
	return false, nil
}

func (r memBatches) DB() *gorm.DB { return nil }

func sortBatches(bs []model.Batch) {
	sort.SliceStable(bs, func(i, j int) bool {
		if !bs[i].ExpiryDate.Equal(bs[j].ExpiryDate) {
			return bs[i].ExpiryDate.Before(bs[j].ExpiryDate)
		}
		if !bs[i].ReceivedAt.Equal(bs[j].ReceivedAt) {
			return bs[i].ReceivedAt.Before(bs[j].ReceivedAt)
		}
		return bs[i].BatchNumber < bs[j].BatchNumber
	})
}

// ── Operations and movements ──────────────────────────────────────────────────

type memOperations struct{ *memStore }

func (r memOperations) Create(_ context.Context, _ *gorm.DB, op *model.StockOperation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *op
	r.operations[op.ID] = &cp
	return nil
}

func (r memOperations) FindByID(_ context.Context, id uuid.UUID) (*model.StockOperation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.operations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *op
	return &cp, nil
}

func (r memOperations) DB() *gorm.DB { return nil }

type memMovements struct{ *memStore }

func (r memMovements) Create(_ context.Context, _ *gorm.DB, m *model.StockMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	r.movements = append(r.movements, *m)
	return nil
}

func (r memMovements) List(_ context.Context, f repository.StockMovementFilter) ([]model.StockMovement, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.StockMovement
	for _, m := range r.movements {
		if f.ProductID != nil && m.ProductID != *f.ProductID {
			continue
		}
		if f.Type != "" && string(m.Type) != f.Type {
			continue
		}
		out = append(out, m)
	}
	return out, int64(len(out)), nil
}

func (r memMovements) ListByOperation(_ context.Context, operationID uuid.UUID) ([]model.StockMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.StockMovement
	for _, m := range r.movements {
		if m.OperationID == operationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r memMovements) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.movements[:0]
	var n int64
	for _, m := range r.movements {
		if m.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, m)
	}
	r.movements = kept
	return n, nil
}

// ── Reservations ──────────────────────────────────────────────────────────────

type memReservations struct{ *memStore }

func (r memReservations) Create(_ context.Context, _ *gorm.DB, res *model.StockReservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *res
	r.reservations[res.ID] = &cp
	return nil
}

func (r memReservations) Delete(_ context.Context, _ *gorm.DB, id uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reservations[id]; !ok {
		return 0, nil
	}
	delete(r.reservations, id)
	return 1, nil
}

func (r memReservations) DeleteByReference(_ context.Context, _ *gorm.DB, ref string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, res := range r.reservations {
		if res.ReferenceID == ref {
			delete(r.reservations, id)
			n++
		}
	}
	return n, nil
}

func (r memReservations) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, res := range r.reservations {
		if res.ExpiresAt.Before(now) {
			delete(r.reservations, id)
			n++
		}
	}
	return n, nil
}

func (r memReservations) ListActiveByProduct(_ context.Context, productID uuid.UUID, now time.Time) ([]model.StockReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.StockReservation
	for _, res := range r.reservations {
		if res.ProductID == productID && res.ExpiresAt.After(now) {
			out = append(out, *res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

func (r memReservations) SumActive(_ context.Context, _ *gorm.DB, productID uuid.UUID, branchID *uuid.UUID, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, res := range r.reservations {
		if res.ProductID != productID || !res.ExpiresAt.After(now) {
			continue
		}
		if branchID != nil && res.BatchID != nil {
			b, ok := r.batches[*res.BatchID]
			if !ok || b.BranchID == nil || *b.BranchID != *branchID {
				continue
			}
		}
		total += res.Quantity
	}
	return total, nil
}

func (r memReservations) SumActiveForBatch(_ context.Context, _ *gorm.DB, batchID uuid.UUID, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, res := range r.reservations {
		if res.BatchID != nil && *res.BatchID == batchID && res.ExpiresAt.After(now) {
			total += res.Quantity
		}
	}
	return total, nil
}

func (r memReservations) DB() *gorm.DB { return nil }

// ── Sales ─────────────────────────────────────────────────────────────────────

type memSales struct{ *memStore }

func (r memSales) Create(_ context.Context, _ *gorm.DB, s *model.Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	cp.Items = append([]model.SaleItem(nil), s.Items...)
	cp.Payments = append([]model.Payment(nil), s.Payments...)
	for i := range cp.Items {
		cp.Items[i].ID = uuid.New()
		cp.Items[i].SaleID = s.ID
	}
	for i := range cp.Payments {
		cp.Payments[i].ID = uuid.New()
		cp.Payments[i].SaleID = s.ID
	}
	r.sales[s.ID] = &cp
	return nil
}

func (r memSales) FindByID(_ context.Context, id uuid.UUID) (*model.Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sales[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	cp.Items = append([]model.SaleItem(nil), s.Items...)
	cp.Payments = append([]model.Payment(nil), s.Payments...)
	for i := range cp.Items {
		if p, ok := r.products[cp.Items[i].ProductID]; ok {
			pc := *p
			cp.Items[i].Product = &pc
		}
	}
	return &cp, nil
}

func (r memSales) LockByID(ctx context.Context, _ *gorm.DB, id uuid.UUID) (*model.Sale, error) {
	return r.FindByID(ctx, id)
}

func (r memSales) UpdateStatus(_ context.Context, _ *gorm.DB, id uuid.UUID, status model.SaleStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sales[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.Status = status
	switch status {
	case model.SaleCompleted:
		s.CompletedAt = &at
	case model.SaleCancelled:
		s.CancelledAt = &at
	}
	return nil
}

func (r memSales) UpdatePaymentStatus(_ context.Context, _ *gorm.DB, saleID uuid.UUID, status model.PaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sales[saleID]; ok {
		for i := range s.Payments {
			s.Payments[i].Status = status
		}
	}
	return nil
}

func (r memSales) CreateAuditLog(_ context.Context, _ *gorm.DB, e *model.SaleAuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audits = append(r.audits, *e)
	return nil
}

func (r memSales) NextSaleNumber(_ context.Context, _ *gorm.DB) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saleSeq++
	return r.saleSeq, nil
}

func (r memSales) List(_ context.Context, filter dto.SaleFilter) ([]model.Sale, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Sale
	for _, s := range r.sales {
		if filter.Status != "" && string(s.Status) != filter.Status {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SaleNumber > out[j].SaleNumber })
	return out, int64(len(out)), nil
}

func (r memSales) DB() *gorm.DB { return nil }

var (
	_ repository.ProductRepository        = memProducts{}
	_ repository.BatchRepository          = memBatches{}
	_ repository.StockOperationRepository = memOperations{}
	_ repository.StockMovementRepository  = memMovements{}
	_ repository.ReservationRepository    = memReservations{}
	_ repository.SaleRepository           = memSales{}
)

// ── Collaborator stubs ────────────────────────────────────────────────────────

type recordingPublisher struct {
	mu     sync.Mutex
	events []infra.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, ev infra.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.EventType)
	}
	return out
}

type recordingDispatcher struct {
	receipts []uuid.UUID
	alerts   []uuid.UUID
}

func (d *recordingDispatcher) EnqueueReceipt(_ context.Context, saleID uuid.UUID) error {
	d.receipts = append(d.receipts, saleID)
	return nil
}

func (d *recordingDispatcher) EnqueueStockAlert(_ context.Context, productID uuid.UUID) error {
	d.alerts = append(d.alerts, productID)
	return nil
}

// ── Fixture ───────────────────────────────────────────────────────────────────

// testClock is fixed mid-day so date arithmetic on expiry is unambiguous.
var testClock = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testClock }

type fixture struct {
	store        *memStore
	pub          *recordingPublisher
	jobs         *recordingDispatcher
	stock        *stockService
	reservations *reservationService
	sales        *saleService
}

func newFixture(reserveOnCreate bool) *fixture {
	st := newMemStore()
	pub := &recordingPublisher{}
	jobs := &recordingDispatcher{}

	stock := NewStockService(memProducts{st}, memBatches{st}, memMovements{st}, memOperations{st}, memReservations{st}, pub, 30).(*stockService)
	stock.now = fixedNow
	res := NewReservationService(memReservations{st}, memProducts{st}, stock).(*reservationService)
	res.now = fixedNow
	sales := NewSaleService(memSales{st}, memProducts{st}, memBatches{st}, stock, res, jobs, pub, SaleOptions{
		TaxRate:         decimal.RequireFromString("0.12"),
		ReserveOnCreate: reserveOnCreate,
		ReservationTTL:  30 * time.Minute,
	}).(*saleService)
	sales.now = fixedNow

	return &fixture{store: st, pub: pub, jobs: jobs, stock: stock, reservations: res, sales: sales}
}

func (f *fixture) seedProduct(code string, price string) *model.Product {
	p := &model.Product{
		ID:            uuid.New(),
		Code:          code,
		Name:          "Product " + code,
		Category:      "general",
		SellingPrice:  decimal.RequireFromString(price),
		MinStockLevel: 5,
		Active:        true,
	}
	f.store.products[p.ID] = p
	return p
}

// seedBatch adds an active batch expiring daysToExpiry days after testClock.
func (f *fixture) seedBatch(productID uuid.UUID, number string, qty, daysToExpiry int) *model.Batch {
	b := &model.Batch{
		ID:              uuid.New(),
		ProductID:       productID,
		BatchNumber:     number,
		ExpiryDate:      time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC).AddDate(0, 0, daysToExpiry),
		InitialQuantity: qty,
		CurrentQuantity: qty,
		CostPrice:       decimal.NewFromInt(1),
		Active:          true,
		ReceivedAt:      testClock.Add(-time.Hour),
	}
	f.store.batches[b.ID] = b
	return b
}

func (f *fixture) qty(batchID uuid.UUID) int {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return f.store.batches[batchID].CurrentQuantity
}

func (f *fixture) hold(productID uuid.UUID, qty int, ref string, expiresIn time.Duration) {
	id := uuid.New()
	f.store.reservations[id] = &model.StockReservation{
		ID:          id,
		ProductID:   productID,
		Quantity:    qty,
		Type:        model.ReservationManual,
		ReferenceID: ref,
		ExpiresAt:   testClock.Add(expiresIn),
		UserID:      uuid.New(),
		CreatedAt:   testClock,
	}
}
