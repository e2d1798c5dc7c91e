package infrastructure

import (
	"time"

	"gorm.io/datatypes"
)

// OrderModel 对应数据库中的 orders 表
type OrderModel struct {
	ID             uint64         `gorm:"primaryKey;autoIncrement"`
	Code           string         `gorm:"size:40;not null;uniqueIndex:uk_orders_code"`
	BuyerID        string         `gorm:"size:64;not null;index:idx_orders_buyer_created,priority:1;index:idx_orders_buyer_seller_status,priority:1"`
	SellerID       string         `gorm:"size:64;not null;index:idx_orders_seller_status,priority:1;index:idx_orders_buyer_seller_status,priority:2"`
	Status         string         `gorm:"size:16;not null;index:idx_orders_seller_status,priority:2;index:idx_orders_status_expires,priority:1;index:idx_orders_buyer_seller_status,priority:3"`
	PaymentStatus  string         `gorm:"size:16;not null"`
	DeliveryStatus string         `gorm:"size:16;not null"`
	Subtotal       int64          `gorm:"not null"`
	Discount       int64          `gorm:"not null;default:0"`
	Total          int64          `gorm:"not null"`
	Metadata       datatypes.JSON
	CancelReason   string         `gorm:"size:255"`
	ExpiresAt      time.Time      `gorm:"not null;index:idx_orders_status_expires,priority:2"`
	ConfirmedAt    *time.Time
	CompletedAt    *time.Time
	CancelledAt    *time.Time
	RefundedAt     *time.Time
	CreatedAt      time.Time `gorm:"not null;index:idx_orders_buyer_created,priority:2"`
	UpdatedAt      time.Time

	// 关联关系
	Items []OrderItemModel `gorm:"foreignKey:OrderCode;references:Code"`
}

// TableName 指定 GORM 应该使用的表名
func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel 对应 order_items 表，保存下单时的价格快照
type OrderItemModel struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	OrderCode string `gorm:"size:40;not null;uniqueIndex:uk_order_items_order_product,priority:1"`
	Position  int    `gorm:"not null"`
	ProductID string `gorm:"size:64;not null;uniqueIndex:uk_order_items_order_product,priority:2"`
	Title     string `gorm:"size:255;not null"`
	UnitPrice int64  `gorm:"not null"`
	Quantity  int    `gorm:"not null"`
	LineTotal int64  `gorm:"not null"`
}

func (OrderItemModel) TableName() string {
	return "order_items"
}

// Models 返回需要迁移的全部模型
func Models() []any {
	return []any{&OrderModel{}, &OrderItemModel{}}
}
