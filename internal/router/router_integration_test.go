//go:build integration

package router_test

// Integration tests against real Postgres and Redis via testcontainers.
// Run with: go test -tags integration ./internal/router/... -v

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"pharmacy/internal/config"
	"pharmacy/internal/dto"
	"pharmacy/internal/infra"
	"pharmacy/internal/model"
	"pharmacy/internal/router"
	"pharmacy/internal/service"
	"pharmacy/internal/worker"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ── Helpers ──────────────────────────────────────────────────────────────────

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func do(t *testing.T, srv *httptest.Server, method, path string, body *bytes.Buffer, token string) *http.Response {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req, err := http.NewRequest(method, srv.URL+path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

// ── Environment ──────────────────────────────────────────────────────────────

type testEnv struct {
	cfg    *config.Config
	db     *gorm.DB
	rdb    *redis.Client
	app    *router.App
	server *httptest.Server
	token  string // admin access token
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("pharmacy_test"),
		tcpostgres.WithUsername("pharmacy"),
		tcpostgres.WithPassword("pharmacy"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })
	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })
	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		Port:                      8000,
		Env:                       "test",
		JWTSecret:                 "test-secret-key",
		JWTExpirationHours:        8,
		JWTRefreshHours:           24,
		DatabaseURL:               pgURL,
		RedisURL:                  rdURL,
		WorkerPoolSize:            1,
		PharmacyName:              "Integration Pharmacy",
		ReceiptStoragePath:        t.TempDir(),
		SaleTaxRate:               "0.12",
		SaleReserveOnCreate:       true,
		SaleReservationTTLMinutes: 30,
		ExpiryWarningDays:         30,
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	require.NoError(t, err)
	rdb, err := infra.NewRedis(cfg.RedisURL)
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte("admin-pass-2026"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, db.Create(&model.User{
		Username: "admin", Name: "Admin", PasswordHash: string(hash), Role: model.RoleAdmin, Active: true,
	}).Error)

	app, err := router.Wire(cfg, db, rdb, infra.NoopPublisher{}, nil)
	require.NoError(t, err)
	srv := httptest.NewServer(router.New(cfg, app))
	t.Cleanup(srv.Close)

	resp := do(t, srv, http.MethodPost, "/v1/auth/login",
		jsonBody(t, dto.LoginRequest{Username: "admin", Password: "admin-pass-2026"}), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login dto.LoginResponse
	decodeJSON(t, resp, &login)

	return &testEnv{cfg: cfg, db: db, rdb: rdb, app: app, server: srv, token: login.AccessToken}
}

func (e *testEnv) seedProduct(t *testing.T, code, price string) uuid.UUID {
	t.Helper()
	p, err := e.app.Product.Create(context.Background(), dto.CreateProductRequest{
		Code: code, Name: "Product " + code, Category: "analgesic",
		SellingPrice: decimal.RequireFromString(price), MinStockLevel: 5,
	})
	require.NoError(t, err)
	return uuid.MustParse(p.ID)
}

func (e *testEnv) receive(t *testing.T, productID uuid.UUID, number, expiry string, qty int) uuid.UUID {
	t.Helper()
	b, err := e.app.Batch.Receive(context.Background(), uuid.New(), dto.ReceiveBatchRequest{
		ProductID: productID.String(), BatchNumber: number, ExpiryDate: expiry, Quantity: qty,
	})
	require.NoError(t, err)
	return uuid.MustParse(b.ID)
}

func (e *testEnv) batchQty(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var b model.Batch
	require.NoError(t, e.db.First(&b, "id = ?", id).Error)
	return b.CurrentQuantity
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestIntegration_SaleCycleOverHTTP(t *testing.T) {
	env := setupTestEnv(t)

	resp := do(t, env.server, http.MethodPost, "/v1/products", jsonBody(t, map[string]any{
		"code": "AMOX500", "name": "Amoxicillin 500mg", "category": "antibiotic",
		"selling_price": "12.50", "min_stock_level": 5,
	}), env.token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var prod dto.ProductResponse
	decodeJSON(t, resp, &prod)
	pid := uuid.MustParse(prod.ID)

	early := env.receive(t, pid, "L-EARLY", time.Now().AddDate(0, 3, 0).Format(time.DateOnly), 2)
	late := env.receive(t, pid, "L-LATE", time.Now().AddDate(1, 0, 0).Format(time.DateOnly), 10)

	resp = do(t, env.server, http.MethodPost, "/v1/sales", jsonBody(t, map[string]any{
		"items":          []map[string]any{{"product_id": prod.ID, "quantity": 3}},
		"payment_method": "cash",
	}), env.token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var sale dto.SaleResponse
	decodeJSON(t, resp, &sale)
	assert.Equal(t, "PENDING", sale.Status)
	assert.True(t, decimal.RequireFromString("42").Equal(sale.Total))

	resp = do(t, env.server, http.MethodGet, "/v1/stock/available/"+prod.ID, nil, env.token)
	var avail dto.AvailableStockResponse
	decodeJSON(t, resp, &avail)
	assert.Equal(t, 9, avail.Available)

	resp = do(t, env.server, http.MethodPost, "/v1/sales/"+sale.ID+"/complete", nil, env.token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeJSON(t, resp, &sale)
	assert.Equal(t, "COMPLETED", sale.Status)

	assert.Equal(t, 0, env.batchQty(t, early))
	assert.Equal(t, 9, env.batchQty(t, late))

	resp = do(t, env.server, http.MethodPost, "/v1/sales/"+sale.ID+"/complete", nil, env.token)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, 9, env.batchQty(t, late))

	n, err := env.rdb.LLen(context.Background(), worker.QueueReceipts).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestIntegration_InsufficientStockIsConflict(t *testing.T) {
	env := setupTestEnv(t)
	pid := env.seedProduct(t, "IBU400", "4")
	b := env.receive(t, pid, "L1", time.Now().AddDate(1, 0, 0).Format(time.DateOnly), 5)

	resp := do(t, env.server, http.MethodPost, "/v1/stock/operations", jsonBody(t, dto.StockOperationRequest{
		ProductID: pid.String(), Quantity: 6, Type: "SALE", Reason: "walk-in",
	}), env.token)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	var body struct {
		Available int `json:"available"`
		Required  int `json:"required"`
	}
	decodeJSON(t, resp, &body)
	assert.Equal(t, 5, body.Available)
	assert.Equal(t, 6, body.Required)
	assert.Equal(t, 5, env.batchQty(t, b))
}

func TestIntegration_CompletionIsAllOrNothing(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	a := env.seedProduct(t, "AAA", "1")
	bp := env.seedProduct(t, "BBB", "1")
	ba := env.receive(t, a, "A1", time.Now().AddDate(1, 0, 0).Format(time.DateOnly), 10)
	bb := env.receive(t, bp, "B1", time.Now().AddDate(1, 0, 0).Format(time.DateOnly), 3)

	sale, err := env.app.Sale.Create(ctx, uuid.New(), dto.CreateSaleRequest{
		Items: []dto.SaleItemRequest{
			{ProductID: a.String(), Quantity: 5},
			{ProductID: bp.String(), Quantity: 3},
		},
		PaymentMethod: "cash",
	})
	require.NoError(t, err)

	// another till takes one unit of B outside the sale's hold
	require.NoError(t, env.db.Model(&model.Batch{}).Where("id = ?", bb).Update("current_quantity", 2).Error)

	_, err = env.app.Sale.Complete(ctx, uuid.MustParse(sale.ID), uuid.New())
	var ise *service.InsufficientStockError
	require.ErrorAs(t, err, &ise)

	assert.Equal(t, 10, env.batchQty(t, ba))
	assert.Equal(t, 2, env.batchQty(t, bb))
	got, err := env.app.Sale.Get(ctx, uuid.MustParse(sale.ID))
	require.NoError(t, err)
	assert.Equal(t, "PENDING", got.Status)

	var ops int64
	require.NoError(t, env.db.Model(&model.StockOperation{}).Where("type = ?", model.OperationSale).Count(&ops).Error)
	assert.Zero(t, ops)
}

func TestIntegration_ConcurrentSalesNeverOversell(t *testing.T) {
	env := setupTestEnv(t)
	pid := env.seedProduct(t, "PARA500", "2")
	b := env.receive(t, pid, "L1", time.Now().AddDate(1, 0, 0).Format(time.DateOnly), 5)

	const workers = 12
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, short := 0, 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.app.Stock.Execute(context.Background(), service.StockCommand{
				ProductID: pid, Quantity: 1, Type: model.OperationSale, Reason: "concurrent sale",
			})
			mu.Lock()
			defer mu.Unlock()
			var ise *service.InsufficientStockError
			switch {
			case err == nil:
				ok++
			case errors.As(err, &ise):
				short++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	assert.Equal(t, workers-5, short)
	assert.Equal(t, 0, env.batchQty(t, b))

	var movements int64
	require.NoError(t, env.db.Model(&model.StockMovement{}).Where("product_id = ? AND type = ?", pid, model.MovementOut).Count(&movements).Error)
	assert.Equal(t, int64(5), movements)
}

func TestIntegration_OppositeItemOrdersDoNotDeadlock(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	expiry := time.Now().AddDate(1, 0, 0).Format(time.DateOnly)
	a := env.seedProduct(t, "IBU400", "2")
	b := env.seedProduct(t, "DICLO50", "3")
	ba := env.receive(t, a, "A1", expiry, 100)
	bb := env.receive(t, b, "B1", expiry, 100)

	const pairs = 8
	var ids []uuid.UUID
	for i := 0; i < pairs; i++ {
		for _, items := range [][]dto.SaleItemRequest{
			{{ProductID: a.String(), Quantity: 1}, {ProductID: b.String(), Quantity: 1}},
			{{ProductID: b.String(), Quantity: 1}, {ProductID: a.String(), Quantity: 1}},
		} {
			sale, err := env.app.Sale.Create(ctx, uuid.New(), dto.CreateSaleRequest{Items: items, PaymentMethod: "cash"})
			require.NoError(t, err)
			ids = append(ids, uuid.MustParse(sale.ID))
		}
	}

	start := make(chan struct{})
	errs := make(chan error, len(ids))
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			<-start
			_, err := env.app.Sale.Complete(ctx, id, uuid.New())
			errs <- err
		}(id)
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 100-2*pairs, env.batchQty(t, ba))
	assert.Equal(t, 100-2*pairs, env.batchQty(t, bb))
}

func TestIntegration_ConcurrentReservationsRespectAvailability(t *testing.T) {
	env := setupTestEnv(t)
	pid := env.seedProduct(t, "LORA10", "3")
	env.receive(t, pid, "L1", time.Now().AddDate(1, 0, 0).Format(time.DateOnly), 6)

	var wg sync.WaitGroup
	var mu sync.Mutex
	held := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.app.Reservations.Reserve(context.Background(), service.ReserveCommand{
				ProductID: pid, Quantity: 2, Type: model.ReservationManual,
				ReferenceID: uuid.NewString(), ExpiresAt: time.Now().Add(time.Hour), UserID: uuid.New(),
			})
			if err == nil {
				mu.Lock()
				held += 2
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 6, held)
	n, err := env.app.Stock.GetAvailableStock(context.Background(), pid, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIntegration_ExpiredBatchReservationLeavesNoRow(t *testing.T) {
	env := setupTestEnv(t)
	pid := env.seedProduct(t, "CETI10", "2")
	env.receive(t, pid, "FRESH", time.Now().AddDate(1, 0, 0).Format(time.DateOnly), 10)
	old := env.receive(t, pid, "OLD", "2020-01-01", 10)

	_, err := env.app.Reservations.Reserve(context.Background(), service.ReserveCommand{
		ProductID: pid, BatchID: &old, Quantity: 1, Type: model.ReservationManual,
		ReferenceID: "counter", ExpiresAt: time.Now().Add(time.Hour), UserID: uuid.New(),
	})
	var ee *service.ExpiredBatchError
	require.ErrorAs(t, err, &ee)

	var rows int64
	require.NoError(t, env.db.Model(&model.StockReservation{}).Count(&rows).Error)
	assert.Zero(t, rows)
}

func TestIntegration_WorkerPoolRendersReceipts(t *testing.T) {
	env := setupTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	worker.StartWorkerPool(ctx, env.rdb, worker.Handlers{
		worker.QueueReceipts: worker.NewReceiptWorker(env.app.Sales, env.cfg.PharmacyName, env.cfg.ReceiptStoragePath),
	}, 1)

	pid := env.seedProduct(t, "VITC", "5")
	env.receive(t, pid, "L1", time.Now().AddDate(1, 0, 0).Format(time.DateOnly), 10)
	sale, err := env.app.Sale.Create(ctx, uuid.New(), dto.CreateSaleRequest{
		Items: []dto.SaleItemRequest{{ProductID: pid.String(), Quantity: 2}}, PaymentMethod: "card",
	})
	require.NoError(t, err)
	_, err = env.app.Sale.Complete(ctx, uuid.MustParse(sale.ID), uuid.New())
	require.NoError(t, err)

	receipt := filepath.Join(env.cfg.ReceiptStoragePath, "receipt_1.pdf")
	assert.Eventually(t, func() bool {
		_, err := os.Stat(receipt)
		return err == nil
	}, 15*time.Second, 100*time.Millisecond)

	// a malformed envelope is parked in the dead letter queue
	require.NoError(t, env.rdb.LPush(ctx, worker.QueueReceipts, "{not json").Err())
	assert.Eventually(t, func() bool {
		n, _ := worker.DLQLength(ctx, env.rdb, worker.QueueReceipts)
		return n == 1
	}, 15*time.Second, 100*time.Millisecond)

	entries, err := worker.PeekDLQ(ctx, env.rdb, worker.QueueReceipts, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Reason, "malformed envelope")
}

func TestIntegration_Health(t *testing.T) {
	env := setupTestEnv(t)
	resp := do(t, env.server, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	decodeJSON(t, resp, &body)
	assert.Equal(t, "connected", body["db"])
	assert.Equal(t, "connected", body["redis"])
}
