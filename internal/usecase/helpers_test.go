package usecase_test

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"thekua/internal/domain/model"
	"thekua/internal/infra/db"
	"thekua/internal/infra/lock"
	"thekua/internal/infra/phonepe"
	infrarepo "thekua/internal/infra/repository"
	"thekua/internal/usecase"
)

// =====================
// fakes
// =====================

type fakeGateway struct {
	mu sync.Mutex

	createErr   error
	createDelay time.Duration
	created     []phonepe.CreatePaymentRequest

	// merchantOrderId -> 応答。無ければPENDING
	statuses    map[string]phonepe.OrderStatusResponse
	statusErr   error
	statusCalls int

	refundErr    error
	refundState  phonepe.State
	refunds      []phonepe.RefundRequest
	refundStatus phonepe.State

	webhookOK bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		statuses:     map[string]phonepe.OrderStatusResponse{},
		refundState:  phonepe.StatePending,
		refundStatus: phonepe.StateCompleted,
		webhookOK:    true,
	}
}

func (g *fakeGateway) CreatePayment(ctx context.Context, in phonepe.CreatePaymentRequest) (phonepe.CreatePaymentResponse, error) {
	g.mu.Lock()
	delay := g.createDelay
	g.mu.Unlock()
	time.Sleep(delay)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, in)
	if g.createErr != nil {
		return phonepe.CreatePaymentResponse{}, g.createErr
	}
	return phonepe.CreatePaymentResponse{
		OrderID:     "OMO" + in.MerchantOrderID,
		State:       phonepe.StatePending,
		RedirectURL: "https://pay.example/checkout/" + in.MerchantOrderID,
	}, nil
}

func (g *fakeGateway) OrderStatus(ctx context.Context, merchantOrderID string) (phonepe.OrderStatusResponse, json.RawMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls++
	if g.statusErr != nil {
		return phonepe.OrderStatusResponse{}, nil, g.statusErr
	}
	st, ok := g.statuses[merchantOrderID]
	if !ok {
		st = phonepe.OrderStatusResponse{OrderID: "OMO" + merchantOrderID, State: phonepe.StatePending}
	}
	raw, _ := json.Marshal(st)
	return st, raw, nil
}

func (g *fakeGateway) Refund(ctx context.Context, in phonepe.RefundRequest) (phonepe.RefundResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds = append(g.refunds, in)
	if g.refundErr != nil {
		return phonepe.RefundResponse{}, g.refundErr
	}
	return phonepe.RefundResponse{RefundID: "OMR" + in.MerchantRefundID, Amount: in.Amount, State: g.refundState}, nil
}

func (g *fakeGateway) RefundStatus(ctx context.Context, merchantRefundID string) (phonepe.RefundStatusResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return phonepe.RefundStatusResponse{MerchantRefundID: merchantRefundID, State: g.refundStatus}, nil
}

func (g *fakeGateway) VerifyWebhook(authorization string) bool {
	return g.webhookOK && authorization != ""
}

func (g *fakeGateway) complete(merchantOrderID string, txnID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[merchantOrderID] = phonepe.OrderStatusResponse{
		OrderID: "OMO" + merchantOrderID,
		State:   phonepe.StateCompleted,
		PaymentDetails: []phonepe.PaymentDetail{
			{PaymentMode: "UPI_QR", TransactionID: txnID, State: phonepe.StateCompleted},
		},
	}
}

func (g *fakeGateway) fail(merchantOrderID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[merchantOrderID] = phonepe.OrderStatusResponse{OrderID: "OMO" + merchantOrderID, State: phonepe.StateFailed}
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", s.n)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, ev model.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []model.OrderEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.OrderEventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// =====================
// env
// =====================

type testEnv struct {
	db        *gorm.DB
	gw        *fakeGateway
	pub       *recordingPublisher
	orders    *usecase.OrderUsecase
	payments  *usecase.PaymentUsecase
	admin     *usecase.AdminOrderUsecase
	inventory *usecase.InventoryUsecase
	audit     *usecase.AdminAuditUsecase
}

var testNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	// sqliteの書き込みロック回避
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Migrate(gdb))

	gw := newFakeGateway()
	pub := &recordingPublisher{}
	ids := &seqIDs{}
	clock := fixedClock{t: testNow}
	log := zap.NewNop()

	tx := infrarepo.NewTxManagerGorm(gdb)
	events := infrarepo.NewPaymentEventGormRepository(gdb)
	redirect := "https://shop.example/payment/callback"

	return &testEnv{
		db:        gdb,
		gw:        gw,
		pub:       pub,
		orders:    usecase.NewOrderUsecase(tx, events, gw, ids, clock, redirect, log),
		payments:  usecase.NewPaymentUsecase(tx, events, gw, lock.NewMemoryLocker(), pub, ids, clock, redirect, log),
		admin:     usecase.NewAdminOrderUsecase(tx, pub, clock, log),
		inventory: usecase.NewInventoryUsecase(tx, clock),
		audit:     usecase.NewAdminAuditUsecase(tx),
	}
}

func (e *testEnv) seedProduct(t *testing.T, id string, title string, price string, stock int64) {
	t.Helper()
	require.NoError(t, e.db.Create(&model.Product{
		ID:       id,
		Title:    title,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		IsActive: true,
	}).Error)
}

func (e *testEnv) seedCart(t *testing.T, userID string, productIDs ...string) {
	t.Helper()
	cart := model.Cart{ID: "cart-" + userID, UserID: userID}
	require.NoError(t, e.db.Create(&cart).Error)
	for _, pid := range productIDs {
		require.NoError(t, e.db.Create(&model.CartItem{CartID: cart.ID, ProductID: pid, Quantity: 1}).Error)
	}
}

func (e *testEnv) stock(t *testing.T, productID string) int64 {
	t.Helper()
	var p model.Product
	require.NoError(t, e.db.Where("id = ?", productID).First(&p).Error)
	return p.Stock
}

func (e *testEnv) order(t *testing.T, orderID string) model.Order {
	t.Helper()
	var o model.Order
	require.NoError(t, e.db.Where("id = ?", orderID).First(&o).Error)
	return o
}

func (e *testEnv) count(t *testing.T, m interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(m).Count(&n).Error)
	return n
}

func sampleAddress() model.AddressInfo {
	return model.AddressInfo{
		Address: "12 Assi Ghat Road",
		City:    "Varanasi",
		Pincode: "221005",
		Phone:   "9876543210",
	}
}

func orderInput(userID string, items ...usecase.CartItemInput) usecase.CreateOrderInput {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(it.Quantity)))
	}
	return usecase.CreateOrderInput{
		UserID:        userID,
		CartID:        "cart-" + userID,
		CartItems:     items,
		AddressInfo:   sampleAddress(),
		PaymentMethod: model.PaymentMethodPhonePe,
		TotalAmount:   total,
		CustomerName:  "Asha",
		CustomerEmail: "asha@example.com",
	}
}

func item(productID string, price string, qty int64) usecase.CartItemInput {
	return usecase.CartItemInput{
		ProductID: productID,
		Title:     "Thekua " + productID,
		Price:     decimal.RequireFromString(price),
		Quantity:  qty,
	}
}

func requireHTTPStatus(t *testing.T, err error, status int) *usecase.HTTPError {
	t.Helper()
	require.Error(t, err)
	he, ok := usecase.AsHTTPError(err)
	require.True(t, ok, "expected HTTPError, got %v", err)
	require.Equal(t, status, he.Status, he.Message)
	return he
}
