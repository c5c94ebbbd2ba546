package model

import "time"

// 運用側で追いかける出来事
type AuditAction string

const (
	//決済は取れたが在庫が足りず減算できなかった。
	AuditActionStockShortfall AuditAction = "STOCK_SHORTFALL"
	//注文がPAIDになった。
	AuditActionOrderPaid AuditAction = "ORDER_PAID"
)

// 何に対する記録か
type AuditResourceType string

const (
	//注文に対する記録。
	AuditResourceOrder AuditResourceType = "order"
)

// 監査ログ。
// 「何が」「どの対象に」起きたかを残す。webhookから書くので操作者はいない。
type AuditLog struct {
	//IDは監査ログの主キー
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//Actionは出来事の種類（STOCK_SHORTFALL / ORDER_PAID）。
	Action AuditAction `gorm:"type:varchar(50);not null;index" json:"action"`

	//対象の種類。
	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`

	//対象のID。
	ResourceID int64 `gorm:"not null;index" json:"resource_id"`

	//JSON文字列で保存する。
	DetailJSON string `gorm:"type:text" json:"detail_json"`

	//作成時刻
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
