package services

import (
	"github.com/shopspring/decimal"
	"github.com/yeremiapane/billiard-pos/models"
)

// Totals are the monetary fields of an order, in minor units.
type Totals struct {
	Subtotal int64 `json:"subtotal"`
	TaxTotal int64 `json:"tax_total"`
	Total    int64 `json:"total"`
}

// IncludedInTotals reports whether an item counts towards its order's totals.
// Table time is still being metered while the order is OPEN, so it only
// counts once the order has left OPEN. Voided lines never count.
func IncludedInTotals(orderStatus string, item models.OrderItem) bool {
	if item.Voided {
		return false
	}
	if item.IsTableTime() && orderStatus == models.OrderStatusOpen {
		return false
	}
	return true
}

// LineTax rounds line × rate half-up to the minor unit.
func LineTax(lineTotal int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(lineTotal).Mul(rate).Round(0).IntPart()
}

// CalculateTotals sums the included items. Tax is rounded per line and the
// total is the exact sum of the rounded components.
func CalculateTotals(orderStatus string, items []models.OrderItem) Totals {
	var t Totals
	for _, item := range items {
		if !IncludedInTotals(orderStatus, item) {
			continue
		}
		t.Subtotal += item.LineTotal
		t.TaxTotal += LineTax(item.LineTotal, item.TaxRate)
	}
	t.Total = t.Subtotal + t.TaxTotal
	return t
}

// ApplyTotals recomputes and stores the totals on order from its loaded items.
func ApplyTotals(order *models.Order) Totals {
	t := CalculateTotals(order.Status, order.Items)
	order.Subtotal = t.Subtotal
	order.TaxTotal = t.TaxTotal
	order.Total = t.Total
	return t
}
