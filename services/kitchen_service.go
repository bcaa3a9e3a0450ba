package services

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/billiard-pos/models"
	"github.com/yeremiapane/billiard-pos/utils"
	"gorm.io/gorm"
)

// KitchenService serves the kitchen display and records partial fulfillment.
type KitchenService struct {
	db     *gorm.DB
	audit  AuditRecorder
	hub    Broadcaster
	orders *OrderService
}

// KitchenItem is a line the kitchen still owes.
type KitchenItem struct {
	ItemID    uint   `json:"item_id"`
	Name      string `json:"name"`
	Notes     string `json:"notes,omitempty"`
	Quantity  int    `json:"quantity"`
	Served    int    `json:"served_quantity"`
	Remaining int    `json:"remaining"`
}

// KitchenTicket groups what is left to prepare for one order.
type KitchenTicket struct {
	OrderID   uint          `json:"order_id"`
	Label     string        `json:"label"`
	OrderType string        `json:"order_type"`
	Status    string        `json:"status"`
	SentAt    *time.Time    `json:"sent_at,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	Items     []KitchenItem `json:"items"`
}

var kitchenStatuses = []string{
	models.OrderStatusSubmitted,
	models.OrderStatusPreparing,
	models.OrderStatusReady,
	models.OrderStatusPaid,
}

// Display returns every order with unserved lines, oldest ticket first.
func (s *KitchenService) Display(ctx context.Context) ([]KitchenTicket, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("TableSession.Table").
		Where("status IN ?", kitchenStatuses).
		Or("status = ? AND order_type = ?", models.OrderStatusOpen, models.OrderTypeMobile).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return BuildKitchenDisplay(orders), nil
}

// BuildKitchenDisplay projects orders onto kitchen tickets. Table time is
// never cooked, fully served lines and empty tickets are dropped, and
// tickets are ordered by sent_at with unsent ones last.
func BuildKitchenDisplay(orders []models.Order) []KitchenTicket {
	tickets := make([]KitchenTicket, 0, len(orders))
	for i := range orders {
		o := &orders[i]
		var items []KitchenItem
		for _, it := range o.Items {
			if it.IsTableTime() || it.Voided {
				continue
			}
			remaining := it.Unserved()
			if remaining <= 0 {
				continue
			}
			items = append(items, KitchenItem{
				ItemID:    it.ID,
				Name:      it.Name,
				Notes:     it.Notes,
				Quantity:  it.Quantity,
				Served:    it.ServedQuantity,
				Remaining: remaining,
			})
		}
		if len(items) == 0 {
			continue
		}
		tickets = append(tickets, KitchenTicket{
			OrderID:   o.ID,
			Label:     o.Label(),
			OrderType: o.OrderType,
			Status:    o.Status,
			SentAt:    o.SentAt,
			CreatedAt: o.CreatedAt,
			Items:     items,
		})
	}

	sort.SliceStable(tickets, func(i, j int) bool {
		a, b := tickets[i], tickets[j]
		switch {
		case a.SentAt == nil && b.SentAt != nil:
			return false
		case a.SentAt != nil && b.SentAt == nil:
			return true
		case a.SentAt != nil && b.SentAt != nil && !a.SentAt.Equal(*b.SentAt):
			return a.SentAt.Before(*b.SentAt)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return tickets
}

// MarkItemServed records qty more portions of a line as served. Serving more
// than was ordered is rejected by the store, never clamped.
func (s *KitchenService) MarkItemServed(ctx context.Context, itemID uint, qty int) (*models.Order, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	var order *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item *models.OrderItem
		var err error
		order, item, err = lockItemOrder(tx, itemID)
		if err != nil {
			return err
		}
		if item.Voided {
			return ErrItemVoided
		}

		now := s.orders.now()
		res := tx.Model(&models.OrderItem{}).
			Where("id = ? AND voided = ? AND served_quantity + ? <= quantity", itemID, false, qty).
			Updates(map[string]interface{}{
				"served_quantity": gorm.Expr("served_quantity + ?", qty),
				"updated_at":      now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrOverServe
		}
		item.ServedQuantity += qty

		if order.Status == models.OrderStatusSubmitted {
			order.AdvanceTo(models.OrderStatusPreparing)
		}
		return saveOrderState(tx, order, now)
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"item_id":  itemID,
		"qty":      qty,
	}).Info("Item served")
	s.audit.Record(ctx, AuditItemServed, "order_item", idString(itemID), map[string]interface{}{
		"order_id": order.ID,
		"quantity": qty,
	})
	s.orders.published(*order)
	return order, nil
}

// MarkOrderServed serves every line of the order at once.
func (s *KitchenService) MarkOrderServed(ctx context.Context, orderID uint) (*models.Order, error) {
	return s.orders.MarkServed(ctx, orderID)
}

// MarkOrderReady flags the order as waiting for a runner.
func (s *KitchenService) MarkOrderReady(ctx context.Context, orderID uint) (*models.Order, error) {
	return s.orders.MarkReady(ctx, orderID)
}
