package model

import "time"

// 在庫更新、注文ステータス更新など。
type AuditAction string

const (
	//在庫を更新した操作。
	AuditActionUpdateStock AuditAction = "UPDATE_STOCK"
	//注文ステータスを更新した操作。
	AuditActionUpdateOrderStatus AuditAction = "UPDATE_ORDER_STATUS"
	//注文を削除した操作。
	AuditActionDeleteOrder AuditAction = "DELETE_ORDER"
	//返金を依頼した操作。
	AuditActionRequestRefund AuditAction = "REQUEST_REFUND"
)

// 何に対する操作か
type AuditResourceType string

const (
	AuditResourceProduct AuditResourceType = "product"
	AuditResourceOrder   AuditResourceType = "order"
)

// 監査ログ（管理者操作ログ）。
// 「誰が」「何を」「どの対象に」「どう変えたか」を残す。
type AuditLog struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//操作した管理者のID（JWTのsub）
	ActorUserID int64 `gorm:"not null;index" json:"actorUserId"`

	Action       AuditAction       `gorm:"type:varchar(50);not null;index" json:"action"`
	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resourceType"`
	ResourceID   string            `gorm:"type:varchar(64);not null;index" json:"resourceId"`

	//JSON文字列で保存する。
	BeforeJSON string `gorm:"type:text" json:"beforeJson"`
	AfterJSON  string `gorm:"type:text" json:"afterJson"`

	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`
}
