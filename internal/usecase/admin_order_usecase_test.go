package usecase_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"thekua/internal/domain/model"
	repo "thekua/internal/repository"
	"thekua/internal/usecase"
)

// =====================
// TxManager / TxRepos mocks
// =====================

// AdminTxManagerMock は WithinTx の中で渡す repos を固定して unit テストを回す
type AdminTxManagerMock struct {
	mock.Mock
	Repos repo.TxRepos
}

func (m *AdminTxManagerMock) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	// 呼ばれた事実だけ記録（ctxの具体値は問わない）
	m.Called(ctx)
	return fn(m.Repos)
}

type AdminTxReposMock struct {
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	inventory  repo.InventoryRepository
	auditLogs  repo.AuditLogRepository

	// AdminOrderUsecase では使わないが TxRepos interface を満たすために保持
	products repo.ProductRepository
	carts    repo.CartRepository
	refunds  repo.RefundRepository
}

func (r *AdminTxReposMock) Orders() repo.OrderRepository         { return r.orders }
func (r *AdminTxReposMock) OrderItems() repo.OrderItemRepository { return r.orderItems }
func (r *AdminTxReposMock) Inventory() repo.InventoryRepository  { return r.inventory }
func (r *AdminTxReposMock) AuditLogs() repo.AuditLogRepository   { return r.auditLogs }
func (r *AdminTxReposMock) Products() repo.ProductRepository     { return r.products }
func (r *AdminTxReposMock) Carts() repo.CartRepository           { return r.carts }
func (r *AdminTxReposMock) Refunds() repo.RefundRepository       { return r.refunds }

// =====================
// Repository mocks (Admin向け)
// =====================

type AdminOrderRepoMock struct{ mock.Mock }

func (m *AdminOrderRepoMock) Create(ctx context.Context, order model.Order) error {
	panic("not used in AdminOrderUsecase tests")
}

func (m *AdminOrderRepoMock) FindByID(ctx context.Context, orderID string) (model.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *AdminOrderRepoMock) FindByMerchantTransactionID(ctx context.Context, merchantTransactionID string) (model.Order, error) {
	panic("not used in AdminOrderUsecase tests")
}

func (m *AdminOrderRepoMock) ListByUserID(ctx context.Context, userID string, page int, limit int) ([]model.Order, int64, error) {
	panic("not used in AdminOrderUsecase tests")
}

func (m *AdminOrderRepoMock) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	args := m.Called(ctx, f)
	orders, _ := args.Get(0).([]model.Order)
	return orders, args.Get(1).(int64), args.Error(2)
}

func (m *AdminOrderRepoMock) UpdatePaymentLink(ctx context.Context, orderID string, paymentURL string, gatewayOrderID string, gatewayState string) error {
	panic("not used in AdminOrderUsecase tests")
}

func (m *AdminOrderRepoMock) TransitionPayment(ctx context.Context, orderID string, t repo.PaymentTransition) (bool, error) {
	panic("not used in AdminOrderUsecase tests")
}

func (m *AdminOrderRepoMock) UpdateGatewayState(ctx context.Context, orderID string, state string) error {
	panic("not used in AdminOrderUsecase tests")
}

func (m *AdminOrderRepoMock) UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) error {
	args := m.Called(ctx, orderID, status)
	return args.Error(0)
}

func (m *AdminOrderRepoMock) FindByIDForUpdate(ctx context.Context, orderID string) (model.Order, error) {
	panic("not used in AdminOrderUsecase tests")
}

func (m *AdminOrderRepoMock) RotateMerchantTransactionID(ctx context.Context, orderID string, from string, to string) (bool, error) {
	panic("not used in AdminOrderUsecase tests")
}

func (m *AdminOrderRepoMock) Delete(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

type AdminOrderItemRepoMock struct{ mock.Mock }

func (m *AdminOrderItemRepoMock) CreateBulk(ctx context.Context, orderID string, items []model.OrderItem) error {
	panic("not used in AdminOrderUsecase tests")
}

func (m *AdminOrderItemRepoMock) ListByOrderID(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	args := m.Called(ctx, orderID)
	items, _ := args.Get(0).([]model.OrderItem)
	return items, args.Error(1)
}

type AdminInventoryRepoMock struct{ mock.Mock }

func (m *AdminInventoryRepoMock) SetStock(ctx context.Context, productID string, newStock int64) error {
	panic("not used in AdminOrderUsecase tests")
}

func (m *AdminInventoryRepoMock) DecreaseStockIfEnough(ctx context.Context, productID string, qty int64) (bool, error) {
	panic("not used in AdminOrderUsecase tests")
}

func (m *AdminInventoryRepoMock) IncreaseStock(ctx context.Context, productID string, qty int64) error {
	args := m.Called(ctx, productID, qty)
	return args.Error(0)
}

func (m *AdminInventoryRepoMock) CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error {
	args := m.Called(ctx, adjustment)
	return args.Error(0)
}

func (m *AdminInventoryRepoMock) ListAdjustments(ctx context.Context, productID string, limit int) ([]model.InventoryAdjustment, error) {
	panic("not used in AdminOrderUsecase tests")
}

type AdminAuditRepoMock struct{ mock.Mock }

func (m *AdminAuditRepoMock) Create(ctx context.Context, log model.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *AdminAuditRepoMock) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, int64, error) {
	panic("not used in AdminOrderUsecase tests")
}

type adminMocks struct {
	tx        *AdminTxManagerMock
	orders    *AdminOrderRepoMock
	items     *AdminOrderItemRepoMock
	inventory *AdminInventoryRepoMock
	audit     *AdminAuditRepoMock
	pub       *recordingPublisher
	uc        *usecase.AdminOrderUsecase
}

func newAdminMocks() *adminMocks {
	m := &adminMocks{
		orders:    new(AdminOrderRepoMock),
		items:     new(AdminOrderItemRepoMock),
		inventory: new(AdminInventoryRepoMock),
		audit:     new(AdminAuditRepoMock),
		pub:       &recordingPublisher{},
	}
	m.tx = &AdminTxManagerMock{Repos: &AdminTxReposMock{
		orders:     m.orders,
		orderItems: m.items,
		inventory:  m.inventory,
		auditLogs:  m.audit,
	}}
	m.tx.On("WithinTx", mock.Anything).Return()
	m.uc = usecase.NewAdminOrderUsecase(m.tx, m.pub, fixedClock{t: testNow}, zap.NewNop())
	return m
}

func (m *adminMocks) assertAll(t *testing.T) {
	m.orders.AssertExpectations(t)
	m.items.AssertExpectations(t)
	m.inventory.AssertExpectations(t)
	m.audit.AssertExpectations(t)
}

func TestAdminOrderUsecase_UpdateStatus_CancelPaidOrderRestocks(t *testing.T) {
	m := newAdminMocks()
	ctx := context.Background()

	m.orders.On("FindByID", mock.Anything, "o1").Return(model.Order{
		ID:            "o1",
		UserID:        "u1",
		OrderStatus:   model.OrderStatusConfirmed,
		PaymentStatus: model.PaymentStatusPaid,
		TotalAmount:   decimal.NewFromInt(200),
	}, nil)
	m.items.On("ListByOrderID", mock.Anything, "o1").Return([]model.OrderItem{
		{ProductID: "P1", Quantity: 2},
		{ProductID: "P2", Quantity: 1},
	}, nil)
	m.inventory.On("IncreaseStock", mock.Anything, "P1", int64(2)).Return(nil)
	m.inventory.On("IncreaseStock", mock.Anything, "P2", int64(1)).Return(nil)
	m.inventory.On("CreateAdjustment", mock.Anything, mock.MatchedBy(func(a model.InventoryAdjustment) bool {
		return a.OrderID == "o1" && a.AdminUserID == 9 && a.Delta > 0
	})).Return(nil).Twice()
	m.orders.On("UpdateOrderStatus", mock.Anything, "o1", model.OrderStatusCancelled).Return(nil)
	m.audit.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.Action == model.AuditActionUpdateOrderStatus &&
			l.ResourceID == "o1" &&
			strings.Contains(l.BeforeJSON, "confirmed") &&
			strings.Contains(l.AfterJSON, "cancelled")
	})).Return(nil)

	err := m.uc.UpdateStatus(ctx, 9, "o1", usecase.AdminUpdateOrderStatusInput{Status: "cancelled"})
	require.NoError(t, err)

	m.assertAll(t)
	assert.Equal(t, []model.OrderEventType{model.OrderEventCancelled}, m.pub.types())
}

func TestAdminOrderUsecase_UpdateStatus_CancelUnpaidOrderDoesNotRestock(t *testing.T) {
	m := newAdminMocks()

	m.orders.On("FindByID", mock.Anything, "o1").Return(model.Order{
		ID:            "o1",
		OrderStatus:   model.OrderStatusPending,
		PaymentStatus: model.PaymentStatusPending,
	}, nil)
	m.orders.On("UpdateOrderStatus", mock.Anything, "o1", model.OrderStatusCancelled).Return(nil)
	m.audit.On("Create", mock.Anything, mock.Anything).Return(nil)

	err := m.uc.UpdateStatus(context.Background(), 9, "o1", usecase.AdminUpdateOrderStatusInput{Status: "cancelled"})
	require.NoError(t, err)

	m.items.AssertNotCalled(t, "ListByOrderID", mock.Anything, mock.Anything)
	m.inventory.AssertNotCalled(t, "IncreaseStock", mock.Anything, mock.Anything, mock.Anything)
	m.assertAll(t)
}

func TestAdminOrderUsecase_UpdateStatus_Guards(t *testing.T) {
	cases := []struct {
		name    string
		current model.Order
		target  string
		status  int
	}{
		{
			name:    "terminal cancelled",
			current: model.Order{ID: "o1", OrderStatus: model.OrderStatusCancelled, PaymentStatus: model.PaymentStatusPaid},
			target:  "shipped",
			status:  http.StatusBadRequest,
		},
		{
			name:    "terminal delivered",
			current: model.Order{ID: "o1", OrderStatus: model.OrderStatusDelivered, PaymentStatus: model.PaymentStatusPaid},
			target:  "cancelled",
			status:  http.StatusBadRequest,
		},
		{
			name:    "ship unpaid",
			current: model.Order{ID: "o1", OrderStatus: model.OrderStatusPending, PaymentStatus: model.PaymentStatusPending},
			target:  "shipped",
			status:  http.StatusBadRequest,
		},
		{
			name:    "not found",
			current: model.Order{},
			target:  "shipped",
			status:  http.StatusNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newAdminMocks()
			if tc.current.ID == "" {
				m.orders.On("FindByID", mock.Anything, "o1").Return(model.Order{}, repo.ErrNotFound)
			} else {
				m.orders.On("FindByID", mock.Anything, "o1").Return(tc.current, nil)
			}

			err := m.uc.UpdateStatus(context.Background(), 9, "o1", usecase.AdminUpdateOrderStatusInput{Status: tc.target})
			requireHTTPStatus(t, err, tc.status)

			m.orders.AssertNotCalled(t, "UpdateOrderStatus", mock.Anything, mock.Anything, mock.Anything)
			m.audit.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestAdminOrderUsecase_UpdateStatus_SameStatusIsNoop(t *testing.T) {
	m := newAdminMocks()
	m.orders.On("FindByID", mock.Anything, "o1").Return(model.Order{
		ID:            "o1",
		OrderStatus:   model.OrderStatusShipped,
		PaymentStatus: model.PaymentStatusPaid,
	}, nil)

	err := m.uc.UpdateStatus(context.Background(), 9, "o1", usecase.AdminUpdateOrderStatusInput{Status: "shipped"})
	require.NoError(t, err)

	m.orders.AssertNotCalled(t, "UpdateOrderStatus", mock.Anything, mock.Anything, mock.Anything)
	m.audit.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAdminOrderUsecase_UpdateStatus_InvalidInput(t *testing.T) {
	m := newAdminMocks()
	ctx := context.Background()

	err := m.uc.UpdateStatus(ctx, 9, "o1", usecase.AdminUpdateOrderStatusInput{Status: "pending"})
	requireHTTPStatus(t, err, http.StatusBadRequest)

	err = m.uc.UpdateStatus(ctx, 0, "o1", usecase.AdminUpdateOrderStatusInput{Status: "shipped"})
	requireHTTPStatus(t, err, http.StatusUnauthorized)

	m.tx.AssertNotCalled(t, "WithinTx", mock.Anything)
}

func TestAdminOrderUsecase_List(t *testing.T) {
	m := newAdminMocks()
	f := repo.AdminOrderListFilter{Page: 1, Limit: 20, PaymentStatus: "paid"}

	m.orders.On("ListAdmin", mock.Anything, f).Return([]model.Order{{ID: "o1"}, {ID: "o2"}}, int64(2), nil)
	m.items.On("ListByOrderID", mock.Anything, "o1").Return([]model.OrderItem{{ProductID: "P1", Quantity: 1}}, nil)
	m.items.On("ListByOrderID", mock.Anything, "o2").Return([]model.OrderItem{}, nil)

	out, err := m.uc.List(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Total)
	require.Len(t, out.Items, 2)
	assert.Len(t, out.Items[0].Items, 1)
	m.assertAll(t)

	_, err = m.uc.List(context.Background(), repo.AdminOrderListFilter{Page: 1, Limit: 20, OrderStatus: "lost"})
	requireHTTPStatus(t, err, http.StatusBadRequest)
	_, err = m.uc.List(context.Background(), repo.AdminOrderListFilter{Page: 1, Limit: 500})
	requireHTTPStatus(t, err, http.StatusBadRequest)
}

func TestAdminOrderUsecase_Delete(t *testing.T) {
	m := newAdminMocks()
	m.orders.On("FindByID", mock.Anything, "o1").Return(model.Order{
		ID:            "o1",
		OrderStatus:   model.OrderStatusCancelled,
		PaymentStatus: model.PaymentStatusFailed,
	}, nil)
	m.orders.On("Delete", mock.Anything, "o1").Return(nil)
	m.audit.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.Action == model.AuditActionDeleteOrder && l.ResourceID == "o1"
	})).Return(nil)

	require.NoError(t, m.uc.Delete(context.Background(), 9, "o1"))
	m.assertAll(t)
}

func TestAdminOrderUsecase_CancelRestocksAgainstDatabase(t *testing.T) {
	env := newTestEnv(t)
	placed := paidOrder(t, env)
	require.Equal(t, int64(8), env.stock(t, "P1"))

	err := env.admin.UpdateStatus(context.Background(), 9, placed.OrderID, usecase.AdminUpdateOrderStatusInput{Status: "cancelled"})
	require.NoError(t, err)

	assert.Equal(t, int64(10), env.stock(t, "P1"))
	o := env.order(t, placed.OrderID)
	assert.Equal(t, model.OrderStatusCancelled, o.OrderStatus)
	// 支払い状態はそのまま（返金は別操作）
	assert.Equal(t, model.PaymentStatusPaid, o.PaymentStatus)

	err = env.admin.UpdateStatus(context.Background(), 9, placed.OrderID, usecase.AdminUpdateOrderStatusInput{Status: "confirmed"})
	requireHTTPStatus(t, err, http.StatusBadRequest)
}
