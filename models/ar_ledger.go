package models

import "time"

// AR ledger entry types
const (
	LedgerTypeCharge     = "CHARGE"
	LedgerTypePayment    = "PAYMENT"
	LedgerTypeAdjustment = "ADJUSTMENT"
)

// ArLedgerEntry is one movement on a customer's running tab. Charges are
// positive, payments negative; the balance is the signed sum.
type ArLedgerEntry struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	CustomerID     uint      `gorm:"not null;index" json:"customer_id"`
	Customer       User      `gorm:"foreignKey:CustomerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	AmountCents    int64     `gorm:"not null" json:"amount_cents"`
	Type           string    `gorm:"type:varchar(20);not null;index" json:"type"`
	IdempotencyKey string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"idempotency_key"`
	PosSessionID   *uint     `gorm:"index" json:"pos_session_id,omitempty"`
	StaffID        *uint     `json:"staff_id,omitempty"`
	Description    string    `gorm:"type:varchar(255)" json:"description"`
	CreatedAt      time.Time `gorm:"not null;index" json:"created_at"`
}

func (ArLedgerEntry) TableName() string { return "ar_ledger_entries" }

// ValidLedgerType reports whether t is a known entry type.
func ValidLedgerType(t string) bool {
	return t == LedgerTypeCharge || t == LedgerTypePayment || t == LedgerTypeAdjustment
}
