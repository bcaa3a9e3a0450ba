package models

import "time"

// Payment methods
const (
	PaymentMethodCash     = "CASH"
	PaymentMethodCard     = "CARD"
	PaymentMethodQRIS     = "QRIS"
	PaymentMethodTransfer = "TRANSFER"
	PaymentMethodWallet   = "WALLET"
)

// Payment is one settlement transaction against an order.
type Payment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OrderID     uint      `gorm:"not null;index" json:"order_id"`
	Order       Order     `gorm:"foreignKey:OrderID" json:"-"`
	Amount      int64     `gorm:"not null" json:"amount"`
	Method      string    `gorm:"type:varchar(20);not null" json:"method"`
	ReferenceID *string   `gorm:"type:varchar(100)" json:"reference_id,omitempty"`
	StaffID     *uint     `json:"staff_id,omitempty"`
	PaidAt      time.Time `gorm:"not null" json:"paid_at"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}

// ValidPaymentMethod reports whether method is accepted at the counter.
func ValidPaymentMethod(method string) bool {
	switch method {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodQRIS, PaymentMethodTransfer, PaymentMethodWallet:
		return true
	}
	return false
}
