package models

import (
	"fmt"
	"time"
)

// Order status values, in lifecycle order.
const (
	OrderStatusOpen      = "OPEN"
	OrderStatusSubmitted = "SUBMITTED"
	OrderStatusPreparing = "PREPARING"
	OrderStatusReady     = "READY"
	OrderStatusServed    = "SERVED"
	OrderStatusPaid      = "PAID"
)

// Order types
const (
	OrderTypePOS    = "POS"
	OrderTypeMobile = "MOBILE"
)

var orderStatusRank = map[string]int{
	OrderStatusOpen:      0,
	OrderStatusSubmitted: 1,
	OrderStatusPreparing: 2,
	OrderStatusReady:     3,
	OrderStatusServed:    4,
	OrderStatusPaid:      5,
}

// OrderStatusRank returns the lifecycle position of status, or -1 if unknown.
func OrderStatusRank(status string) int {
	if r, ok := orderStatusRank[status]; ok {
		return r
	}
	return -1
}

type Order struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	TableSessionID *uint         `gorm:"index" json:"table_session_id,omitempty"`
	TableSession   *TableSession `gorm:"foreignKey:TableSessionID" json:"-"`
	OrderType      string        `gorm:"type:varchar(10);not null;default:'POS'" json:"order_type"`
	Status         string        `gorm:"type:varchar(20);not null;default:'OPEN';index" json:"status"`
	CustomerName   string        `gorm:"type:varchar(255)" json:"customer_name"`
	Subtotal       int64         `gorm:"not null;default:0" json:"subtotal"`
	TaxTotal       int64         `gorm:"not null;default:0" json:"tax_total"`
	Total          int64         `gorm:"not null;default:0" json:"total"`
	SentAt         *time.Time    `json:"sent_at,omitempty"`
	CreatedAt      time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"not null" json:"updated_at"`
	Items          []OrderItem   `gorm:"foreignKey:OrderID" json:"items"`
	Payments       []Payment     `gorm:"foreignKey:OrderID" json:"payments,omitempty"`
}

// IsTerminal reports whether items can no longer be added to the order.
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusServed || o.Status == OrderStatusPaid
}

// AdvanceTo moves the order forward to status. Backward moves are ignored and
// reported as false.
func (o *Order) AdvanceTo(status string) bool {
	if OrderStatusRank(status) <= OrderStatusRank(o.Status) {
		return false
	}
	o.Status = status
	return true
}

// Label is a short human readable identifier used in kitchen tickets and exports.
func (o *Order) Label() string {
	if o.TableSession != nil && o.TableSession.Table.Label != "" {
		return fmt.Sprintf("%s #%d", o.TableSession.Table.Label, o.ID)
	}
	return fmt.Sprintf("%s #%d", o.OrderType, o.ID)
}
