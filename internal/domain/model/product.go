package model

import "time"

type ProductStatus string

const (
	ProductStatusActive  ProductStatus = "ACTIVE"
	ProductStatusDeleted ProductStatus = "DELETED"
)

// 商品はカタログ側の持ち物。ここでは参照と在庫の減算だけ行う。
// DELETEDでも過去の注文明細から参照できるように行は消さない。
type Product struct {
	ID          int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string        `gorm:"type:varchar(255);not null" json:"name"`
	Description string        `gorm:"type:text" json:"description"`
	Price       int64         `gorm:"not null" json:"price"`
	Stock       int64         `gorm:"not null;check:chk_products_stock_non_negative,stock >= 0" json:"stock"`
	Status      ProductStatus `gorm:"type:varchar(20);not null;default:'ACTIVE';index" json:"status"`
	CreatedAt   time.Time     `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (p Product) IsActive() bool {
	return p.Status == ProductStatusActive
}
