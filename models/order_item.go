package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderItem struct {
	ID      uint  `gorm:"primaryKey" json:"id"`
	OrderID uint  `gorm:"not null;index" json:"order_id"`
	Order   Order `gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	// ProductID is nil for table-time lines.
	ProductID      *uint           `gorm:"index" json:"product_id,omitempty"`
	Product        *Product        `gorm:"foreignKey:ProductID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"product,omitempty"`
	Name           string          `gorm:"type:varchar(255);not null" json:"name"`
	Category       string          `gorm:"type:varchar(100);not null;index" json:"category"`
	Quantity       int             `gorm:"not null" json:"quantity"`
	ServedQuantity int             `gorm:"not null;default:0" json:"served_quantity"`
	UnitPrice      int64           `gorm:"not null" json:"unit_price"`
	LineTotal      int64           `gorm:"not null" json:"line_total"`
	TaxRate        decimal.Decimal `gorm:"type:decimal(6,4);not null;default:0" json:"tax_rate"`
	Notes          string          `gorm:"type:text" json:"notes"`
	Voided         bool            `gorm:"not null;default:false" json:"voided"`
	VoidReason     string          `gorm:"type:text" json:"void_reason,omitempty"`
	VoidedQuantity int             `gorm:"not null;default:0" json:"voided_quantity,omitempty"`
	VoidedAt       *time.Time      `json:"voided_at,omitempty"`
	CreatedAt      time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null" json:"updated_at"`
}

// IsTableTime reports whether the line bills table time.
func (i *OrderItem) IsTableTime() bool {
	return i.Category == CategoryTableTime
}

// Unserved is the quantity still owed by the kitchen.
func (i *OrderItem) Unserved() int {
	return i.Quantity - i.ServedQuantity
}

// SetQuantity changes the ordered quantity, clamping served quantity so it
// never exceeds what is ordered, and recomputes the line total.
func (i *OrderItem) SetQuantity(q int) {
	i.Quantity = q
	if i.ServedQuantity > q {
		i.ServedQuantity = q
	}
	i.LineTotal = int64(q) * i.UnitPrice
}
