package services

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/yeremiapane/billiard-pos/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Broadcaster pushes committed state to connected kitchen and floor screens.
type Broadcaster interface {
	BroadcastOrderUpdate(order models.Order)
	BroadcastKitchenUpdate(data interface{})
	BroadcastSessionUpdate(session models.TableSession)
}

type nopBroadcaster struct{}

func (nopBroadcaster) BroadcastOrderUpdate(models.Order)          {}
func (nopBroadcaster) BroadcastKitchenUpdate(interface{})         {}
func (nopBroadcaster) BroadcastSessionUpdate(models.TableSession) {}

// Options tunes venue policy.
type Options struct {
	TaxRate      decimal.Decimal
	CancelWindow time.Duration
	// UseProcedure routes reservation cancellation through the
	// cancel_reservation_with_refund stored procedure.
	UseProcedure bool
	Now          func() time.Time
}

func (o Options) withDefaults() Options {
	if o.CancelWindow <= 0 {
		o.CancelWindow = 24 * time.Hour
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Services bundles the lifecycle engine components sharing one store.
type Services struct {
	Orders     *OrderService
	Sessions   *TableSessionService
	Kitchen    *KitchenService
	Settlement *SettlementService
	Ledger     *LedgerService
	Exports    *ExportService
}

func New(db *gorm.DB, audit AuditRecorder, hub Broadcaster, opts Options) *Services {
	if audit == nil {
		audit = nopAudit{}
	}
	if hub == nil {
		hub = nopBroadcaster{}
	}
	opts = opts.withDefaults()

	ledger := &LedgerService{db: db, audit: audit, now: opts.Now}
	settlement := &SettlementService{
		db:           db,
		audit:        audit,
		hub:          hub,
		ledger:       ledger,
		now:          opts.Now,
		cancelWindow: opts.CancelWindow,
		useProcedure: opts.UseProcedure,
	}
	orders := &OrderService{db: db, audit: audit, hub: hub, settlement: settlement, now: opts.Now}
	return &Services{
		Orders:     orders,
		Sessions:   &TableSessionService{db: db, audit: audit, hub: hub, orders: orders, taxRate: opts.TaxRate, now: opts.Now},
		Kitchen:    &KitchenService{db: db, audit: audit, hub: hub, orders: orders},
		Settlement: settlement,
		Ledger:     ledger,
		Exports:    &ExportService{db: db},
	}
}

var forUpdate = clause.Locking{Strength: "UPDATE"}

// lockOrder loads an order row for update together with its items.
func lockOrder(tx *gorm.DB, orderID uint) (*models.Order, error) {
	var order models.Order
	if err := tx.Clauses(forUpdate).First(&order, orderID).Error; err != nil {
		return nil, notFound(err, ErrOrderNotFound)
	}
	if err := tx.Where("order_id = ?", orderID).Order("id asc").Find(&order.Items).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// lockItemOrder resolves an item to its order and locks the order.
func lockItemOrder(tx *gorm.DB, itemID uint) (*models.Order, *models.OrderItem, error) {
	var ref models.OrderItem
	if err := tx.Select("id", "order_id").First(&ref, itemID).Error; err != nil {
		return nil, nil, notFound(err, ErrItemNotFound)
	}
	order, err := lockOrder(tx, ref.OrderID)
	if err != nil {
		return nil, nil, err
	}
	for i := range order.Items {
		if order.Items[i].ID == itemID {
			return order, &order.Items[i], nil
		}
	}
	return nil, nil, ErrItemNotFound
}

// saveOrderState recomputes totals from the loaded items and writes the order
// row. Callers run it inside their transaction after mutating items.
func saveOrderState(tx *gorm.DB, order *models.Order, now time.Time) error {
	ApplyTotals(order)
	order.UpdatedAt = now
	return tx.Model(&models.Order{ID: order.ID}).Updates(map[string]interface{}{
		"status":     order.Status,
		"subtotal":   order.Subtotal,
		"tax_total":  order.TaxTotal,
		"total":      order.Total,
		"sent_at":    order.SentAt,
		"updated_at": now,
	}).Error
}

func saveItem(tx *gorm.DB, item *models.OrderItem, now time.Time) error {
	item.UpdatedAt = now
	return tx.Omit(clause.Associations).Save(item).Error
}

// reloadOrder reads a committed order with its items for responses.
func reloadOrder(db *gorm.DB, orderID uint) (*models.Order, error) {
	var order models.Order
	err := db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id asc")
	}).Preload("TableSession.Table").First(&order, orderID).Error
	if err != nil {
		return nil, notFound(err, ErrOrderNotFound)
	}
	return &order, nil
}
