package repository

import (
	"context"
	"time"

	"thekua/internal/domain/model"
	repo "thekua/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

// 明細は OrderItemGormRepository.CreateBulk で作る
func (r *OrderGormRepository) Create(ctx context.Context, order model.Order) error {
	return r.db.WithContext(ctx).Omit("Items").Create(&order).Error
}

func (r *OrderGormRepository) FindByID(ctx context.Context, orderID string) (model.Order, error) {
	return findOne[model.Order](ctx, r.db, "id = ?", orderID)
}

func (r *OrderGormRepository) FindByIDForUpdate(ctx context.Context, orderID string) (model.Order, error) {
	return findOne[model.Order](ctx, r.db.Clauses(clause.Locking{Strength: "UPDATE"}), "id = ?", orderID)
}

func (r *OrderGormRepository) FindByMerchantTransactionID(ctx context.Context, merchantTransactionID string) (model.Order, error) {
	return findOne[model.Order](ctx, r.db, "merchant_transaction_id = ?", merchantTransactionID)
}

func (r *OrderGormRepository) ListByUserID(ctx context.Context, userID string, page int, limit int) ([]model.Order, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var items []model.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Offset(pageOffset(page, limit)).
		Find(&items).Error
	if err != nil {
		return []model.Order{}, 0, err
	}

	return items, total, nil
}

func (r *OrderGormRepository) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}

	q := r.db.WithContext(ctx).Model(&model.Order{})

	//status 絞り込み
	if f.OrderStatus != "" {
		q = q.Where("order_status = ?", f.OrderStatus)
	}
	if f.PaymentStatus != "" {
		q = q.Where("payment_status = ?", f.PaymentStatus)
	}

	//user_id 絞り込み
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}

	//期間絞り込み
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}

	//Countの後もWhereを使い回す
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var items []model.Order
	if err := q.Order("created_at desc").Limit(f.Limit).Offset(pageOffset(f.Page, f.Limit)).Find(&items).Error; err != nil {
		return []model.Order{}, 0, err
	}

	return items, total, nil
}

func (r *OrderGormRepository) UpdatePaymentLink(ctx context.Context, orderID string, paymentURL string, gatewayOrderID string, gatewayState string) error {
	return r.updateColumns(ctx, orderID, map[string]interface{}{
		"payment_url":      paymentURL,
		"gateway_order_id": gatewayOrderID,
		"gateway_state":    gatewayState,
	})
}

// pending以外は触らない（paid/failed は終端）
func (r *OrderGormRepository) TransitionPayment(ctx context.Context, orderID string, t repo.PaymentTransition) (bool, error) {
	cols := map[string]interface{}{
		"payment_status": t.PaymentStatus,
		"order_status":   t.OrderStatus,
		"gateway_state":  t.GatewayState,
		"updated_at":     time.Now(),
	}
	if t.GatewayTransactionID != "" {
		cols["gateway_transaction_id"] = t.GatewayTransactionID
	}

	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND payment_status = ?", orderID, model.PaymentStatusPending).
		Updates(cols)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *OrderGormRepository) UpdateGatewayState(ctx context.Context, orderID string, state string) error {
	return r.updateColumns(ctx, orderID, map[string]interface{}{"gateway_state": state})
}

func (r *OrderGormRepository) UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) error {
	return r.updateColumns(ctx, orderID, map[string]interface{}{"order_status": status})
}

func (r *OrderGormRepository) RotateMerchantTransactionID(ctx context.Context, orderID string, from string, to string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND merchant_transaction_id = ? AND payment_status = ?", orderID, from, model.PaymentStatusPending).
		Updates(map[string]interface{}{
			"merchant_transaction_id": to,
			"payment_url":             "",
			"gateway_order_id":        "",
			"gateway_state":           "",
			"updated_at":              time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *OrderGormRepository) Delete(ctx context.Context, orderID string) error {
	//明細→注文の順で消す
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&model.OrderItem{}).Error; err != nil {
		return err
	}
	return mustAffect(r.db.WithContext(ctx).Where("id = ?", orderID).Delete(&model.Order{}))
}

func (r *OrderGormRepository) updateColumns(ctx context.Context, orderID string, cols map[string]interface{}) error {
	if _, ok := cols["updated_at"]; !ok {
		cols["updated_at"] = time.Now()
	}
	return mustAffect(r.db.WithContext(ctx).Model(&model.Order{}).Where("id = ?", orderID).Updates(cols))
}
