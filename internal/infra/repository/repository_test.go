package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"thekua/internal/domain/model"
	"thekua/internal/infra/db"
	infrarepo "thekua/internal/infra/repository"
	repo "thekua/internal/repository"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "repo.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Migrate(gdb))
	return gdb
}

var base = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newOrder(id string, userID string, created time.Time) model.Order {
	return model.Order{
		ID:                    id,
		UserID:                userID,
		AddressInfo:           model.AddressInfo{Address: "a", City: "Varanasi", Pincode: "221005", Phone: "9876543210"},
		OrderStatus:           model.OrderStatusPending,
		PaymentStatus:         model.PaymentStatusPending,
		PaymentMethod:         model.PaymentMethodPhonePe,
		MerchantTransactionID: "TK" + id,
		TotalAmount:           decimal.NewFromInt(200),
		CreatedAt:             created,
		UpdatedAt:             created,
	}
}

func TestOrderRepository_TransitionPaymentOnlyFromPending(t *testing.T) {
	gdb := openDB(t)
	ctx := context.Background()
	orders := infrarepo.NewOrderGormRepository(gdb)
	require.NoError(t, orders.Create(ctx, newOrder("o1", "u1", base)))

	paid := repo.PaymentTransition{
		PaymentStatus:        model.PaymentStatusPaid,
		OrderStatus:          model.OrderStatusConfirmed,
		GatewayState:         "COMPLETED",
		GatewayTransactionID: "T1",
	}
	ok, err := orders.TransitionPayment(ctx, "o1", paid)
	require.NoError(t, err)
	assert.True(t, ok)

	// 2回目は何も変えない
	ok, err = orders.TransitionPayment(ctx, "o1", repo.PaymentTransition{
		PaymentStatus: model.PaymentStatusFailed,
		OrderStatus:   model.OrderStatusPending,
		GatewayState:  "FAILED",
	})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := orders.FindByID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, got.PaymentStatus)
	assert.Equal(t, model.OrderStatusConfirmed, got.OrderStatus)
	assert.Equal(t, "T1", got.GatewayTransactionID)

	byMerchant, err := orders.FindByMerchantTransactionID(ctx, "TKo1")
	require.NoError(t, err)
	assert.Equal(t, "o1", byMerchant.ID)
}

func TestOrderRepository_NotFound(t *testing.T) {
	gdb := openDB(t)
	ctx := context.Background()
	orders := infrarepo.NewOrderGormRepository(gdb)

	_, err := orders.FindByID(ctx, "missing")
	assert.Equal(t, repo.ErrNotFound, err)
	_, err = orders.FindByMerchantTransactionID(ctx, "missing")
	assert.Equal(t, repo.ErrNotFound, err)
	assert.Equal(t, repo.ErrNotFound, orders.UpdateOrderStatus(ctx, "missing", model.OrderStatusShipped))
	assert.Equal(t, repo.ErrNotFound, orders.Delete(ctx, "missing"))
}

func TestOrderRepository_RotateMerchantTransactionIDClearsLink(t *testing.T) {
	gdb := openDB(t)
	ctx := context.Background()
	orders := infrarepo.NewOrderGormRepository(gdb)
	require.NoError(t, orders.Create(ctx, newOrder("o1", "u1", base)))
	require.NoError(t, orders.UpdatePaymentLink(ctx, "o1", "https://pay/1", "OMO1", "PENDING"))

	ok, err := orders.RotateMerchantTransactionID(ctx, "o1", "TKo1", "TKnew")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := orders.FindByID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "TKnew", got.MerchantTransactionID)
	assert.Empty(t, got.PaymentURL)
	assert.Empty(t, got.GatewayOrderID)
}

func TestOrderRepository_RotateMerchantTransactionIDRequiresCurrentID(t *testing.T) {
	gdb := openDB(t)
	ctx := context.Background()
	orders := infrarepo.NewOrderGormRepository(gdb)
	require.NoError(t, orders.Create(ctx, newOrder("o1", "u1", base)))

	ok, err := orders.RotateMerchantTransactionID(ctx, "o1", "TKo1", "TKfirst")
	require.NoError(t, err)
	require.True(t, ok)

	// 古い番号から回そうとしても何も変わらない
	ok, err = orders.RotateMerchantTransactionID(ctx, "o1", "TKo1", "TKsecond")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := orders.FindByIDForUpdate(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "TKfirst", got.MerchantTransactionID)
}

func TestOrderRepository_ListAdminFilters(t *testing.T) {
	gdb := openDB(t)
	ctx := context.Background()
	orders := infrarepo.NewOrderGormRepository(gdb)

	require.NoError(t, orders.Create(ctx, newOrder("o1", "u1", base)))
	require.NoError(t, orders.Create(ctx, newOrder("o2", "u1", base.Add(time.Hour))))
	require.NoError(t, orders.Create(ctx, newOrder("o3", "u2", base.Add(2*time.Hour))))
	_, err := orders.TransitionPayment(ctx, "o2", repo.PaymentTransition{
		PaymentStatus: model.PaymentStatusPaid,
		OrderStatus:   model.OrderStatusConfirmed,
		GatewayState:  "COMPLETED",
	})
	require.NoError(t, err)

	items, total, err := orders.ListAdmin(ctx, repo.AdminOrderListFilter{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, items, 2)
	assert.Equal(t, "o3", items[0].ID)

	items, total, err = orders.ListAdmin(ctx, repo.AdminOrderListFilter{PaymentStatus: "paid"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, "o2", items[0].ID)

	from := base.Add(30 * time.Minute)
	items, total, err = orders.ListAdmin(ctx, repo.AdminOrderListFilter{UserID: "u1", From: &from})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, "o2", items[0].ID)

	mine, total, err := orders.ListByUserID(ctx, "u1", 2, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, mine, 1)
	assert.Equal(t, "o1", mine[0].ID)
}

func TestOrderRepository_DeleteRemovesItems(t *testing.T) {
	gdb := openDB(t)
	ctx := context.Background()
	orders := infrarepo.NewOrderGormRepository(gdb)
	items := infrarepo.NewOrderItemGormRepository(gdb)

	require.NoError(t, orders.Create(ctx, newOrder("o1", "u1", base)))
	require.NoError(t, items.CreateBulk(ctx, "o1", []model.OrderItem{
		{ProductID: "P1", Title: "Classic", Price: decimal.NewFromInt(100), Quantity: 2},
		{ProductID: "P2", Title: "Jaggery", Price: decimal.NewFromInt(120), Quantity: 1},
	}))

	got, err := items.ListByOrderID(ctx, "o1")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	require.NoError(t, orders.Delete(ctx, "o1"))

	got, err = items.ListByOrderID(ctx, "o1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestInventoryRepository_DecreaseStockIfEnough(t *testing.T) {
	gdb := openDB(t)
	ctx := context.Background()
	inv := infrarepo.NewInventoryGormRepository(gdb)
	products := infrarepo.NewProductGormRepository(gdb)
	require.NoError(t, gdb.Create(&model.Product{ID: "P1", Title: "Classic", Price: decimal.NewFromInt(100), Stock: 3, IsActive: true}).Error)

	ok, err := inv.DecreaseStockIfEnough(ctx, "P1", 2)
	require.NoError(t, err)
	assert.True(t, ok)

	// 残り1なので2は引けない
	ok, err = inv.DecreaseStockIfEnough(ctx, "P1", 2)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = inv.DecreaseStockIfEnough(ctx, "missing", 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, inv.IncreaseStock(ctx, "P1", 4))
	p, err := products.FindByID(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.Stock)

	require.NoError(t, inv.CreateAdjustment(ctx, model.InventoryAdjustment{ProductID: "P1", Delta: -2, Reason: "order"}))
	require.NoError(t, inv.CreateAdjustment(ctx, model.InventoryAdjustment{ProductID: "P1", Delta: 4, Reason: "restock"}))
	adjs, err := inv.ListAdjustments(ctx, "P1", 10)
	require.NoError(t, err)
	require.Len(t, adjs, 2)
	assert.Equal(t, "restock", adjs[0].Reason)

	require.NoError(t, inv.SetStock(ctx, "P1", 0))
	assert.Equal(t, repo.ErrNotFound, inv.SetStock(ctx, "missing", 1))
	assert.Equal(t, repo.ErrNotFound, inv.IncreaseStock(ctx, "missing", 1))

	_, err = products.FindByID(ctx, "missing")
	assert.Equal(t, repo.ErrNotFound, err)
}

func TestProductRepository_SoftDeletedIsNotFound(t *testing.T) {
	gdb := openDB(t)
	ctx := context.Background()
	require.NoError(t, gdb.Create(&model.Product{ID: "P1", Title: "Classic", Price: decimal.NewFromInt(100), Stock: 3, IsActive: true}).Error)
	require.NoError(t, gdb.Delete(&model.Product{ID: "P1"}).Error)

	_, err := infrarepo.NewProductGormRepository(gdb).FindByID(ctx, "P1")
	assert.Equal(t, repo.ErrNotFound, err)
}

func TestTxManager_RollsBackOnError(t *testing.T) {
	gdb := openDB(t)
	ctx := context.Background()
	tm := infrarepo.NewTxManagerGorm(gdb)
	require.NoError(t, gdb.Create(&model.Product{ID: "P1", Title: "Classic", Price: decimal.NewFromInt(100), Stock: 3, IsActive: true}).Error)

	boom := errors.New("boom")
	err := tm.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := r.Orders().Create(ctx, newOrder("o1", "u1", base)); err != nil {
			return err
		}
		if _, err := r.Inventory().DecreaseStockIfEnough(ctx, "P1", 3); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var orders int64
	require.NoError(t, gdb.Model(&model.Order{}).Count(&orders).Error)
	assert.Equal(t, int64(0), orders)

	var p model.Product
	require.NoError(t, gdb.Where("id = ?", "P1").First(&p).Error)
	assert.Equal(t, int64(3), p.Stock)
}

func TestCartRepository_DeleteByUserIDIsRepeatable(t *testing.T) {
	gdb := openDB(t)
	ctx := context.Background()
	carts := infrarepo.NewCartGormRepository(gdb)
	require.NoError(t, gdb.Create(&model.Cart{ID: "c1", UserID: "u1"}).Error)
	require.NoError(t, gdb.Create(&model.CartItem{CartID: "c1", ProductID: "P1", Quantity: 2}).Error)
	require.NoError(t, gdb.Create(&model.Cart{ID: "c2", UserID: "u2"}).Error)

	require.NoError(t, carts.DeleteByUserID(ctx, "u1"))
	require.NoError(t, carts.DeleteByUserID(ctx, "u1"))

	var n int64
	require.NoError(t, gdb.Model(&model.CartItem{}).Count(&n).Error)
	assert.Equal(t, int64(0), n)
	require.NoError(t, gdb.Model(&model.Cart{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestRefundRepository_UpdateStateKeepsGatewayID(t *testing.T) {
	gdb := openDB(t)
	ctx := context.Background()
	refunds := infrarepo.NewRefundGormRepository(gdb)

	require.NoError(t, refunds.Create(ctx, model.Refund{
		ID:              "RF1",
		OrderID:         "o1",
		MerchantOrderID: "TKo1",
		Amount:          decimal.NewFromInt(50),
		AmountPaise:     5000,
		State:           model.RefundStatePending,
		CreatedAt:       base,
		UpdatedAt:       base,
	}))

	require.NoError(t, refunds.UpdateState(ctx, "RF1", model.RefundStatePending, "OMR1"))
	require.NoError(t, refunds.UpdateState(ctx, "RF1", model.RefundStateCompleted, ""))

	got, err := refunds.FindByID(ctx, "RF1")
	require.NoError(t, err)
	assert.Equal(t, model.RefundStateCompleted, got.State)
	assert.Equal(t, "OMR1", got.GatewayRefundID)
	assert.True(t, decimal.NewFromInt(50).Equal(got.Amount))

	list, err := refunds.ListByOrderID(ctx, "o1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.Equal(t, repo.ErrNotFound, refunds.UpdateState(ctx, "missing", model.RefundStateFailed, ""))
	_, err = refunds.FindByID(ctx, "missing")
	assert.Equal(t, repo.ErrNotFound, err)
}

func TestAuditAndPaymentEventRepositories(t *testing.T) {
	gdb := openDB(t)
	ctx := context.Background()
	audits := infrarepo.NewAuditLogGormRepository(gdb)
	events := infrarepo.NewPaymentEventGormRepository(gdb)

	require.NoError(t, audits.Create(ctx, model.AuditLog{
		ActorUserID: 7, Action: model.AuditActionUpdateStock, ResourceType: model.AuditResourceProduct,
		ResourceID: "P1", CreatedAt: base,
	}))
	require.NoError(t, audits.Create(ctx, model.AuditLog{
		ActorUserID: 7, Action: model.AuditActionDeleteOrder, ResourceType: model.AuditResourceOrder,
		ResourceID: "o1", CreatedAt: base.Add(time.Minute),
	}))

	logs, total, err := audits.List(ctx, repo.AuditLogFilter{Action: model.AuditActionDeleteOrder})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, logs, 1)
	assert.Equal(t, "o1", logs[0].ResourceID)

	logs, total, err = audits.List(ctx, repo.AuditLogFilter{ActorUserID: 7, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, logs, 1)
	assert.Equal(t, "o1", logs[0].ResourceID, "newest first")

	for _, st := range []string{"PENDING", "COMPLETED"} {
		require.NoError(t, events.Create(ctx, model.PaymentEvent{
			MerchantOrderID: "TK1", Source: model.PaymentEventSourcePoll, State: st, CreatedAt: base,
		}))
	}
	evs, err := events.ListByMerchantOrderID(ctx, "TK1")
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, "PENDING", evs[0].State)
	assert.Equal(t, "COMPLETED", evs[1].State)
}
