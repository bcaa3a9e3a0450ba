package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/billiard-pos/models"
	"github.com/yeremiapane/billiard-pos/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderService owns an order's lines, quantities and status. Every mutation
// runs in one transaction with the order row locked and rewrites the totals.
type OrderService struct {
	db         *gorm.DB
	audit      AuditRecorder
	hub        Broadcaster
	settlement *SettlementService
	now        func() time.Time
}

// CreateOrderRequest opens a new tab. POS orders may join an active table
// session; mobile orders always stand alone.
type CreateOrderRequest struct {
	TableSessionID *uint
	OrderType      string
	CustomerName   string
}

func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.Order, error) {
	orderType := strings.ToUpper(req.OrderType)
	if orderType == "" {
		orderType = models.OrderTypePOS
	}
	if orderType != models.OrderTypePOS && orderType != models.OrderTypeMobile {
		return nil, newError(KindValidation, "INVALID_ORDER_TYPE", "order type must be POS or MOBILE")
	}
	if orderType == models.OrderTypeMobile && req.TableSessionID != nil {
		return nil, newError(KindValidation, "INVALID_ORDER_TYPE", "mobile orders cannot join a table session")
	}

	now := s.now()
	order := models.Order{
		TableSessionID: req.TableSessionID,
		OrderType:      orderType,
		Status:         models.OrderStatusOpen,
		CustomerName:   req.CustomerName,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.TableSessionID != nil {
			var session models.TableSession
			if err := tx.Clauses(forUpdate).First(&session, *req.TableSessionID).Error; err != nil {
				return notFound(err, ErrSessionNotFound)
			}
			if !session.IsActive() {
				return ErrSessionNotActive
			}
			if order.CustomerName == "" {
				order.CustomerName = session.CustomerName
			}
		}
		return tx.Omit(clause.Associations).Create(&order).Error
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditOrderCreated, "order", idString(order.ID), map[string]interface{}{
		"order_type":       order.OrderType,
		"table_session_id": order.TableSessionID,
	})
	s.hub.BroadcastOrderUpdate(order)
	return &order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID uint) (*models.Order, error) {
	return reloadOrder(s.db.WithContext(ctx), orderID)
}

// ListOrders returns orders filtered by status and/or session, newest first.
func (s *OrderService) ListOrders(ctx context.Context, status string, sessionID *uint, limit int) ([]models.Order, error) {
	q := s.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id asc")
	})
	if status != "" {
		q = q.Where("status = ?", strings.ToUpper(status))
	}
	if sessionID != nil {
		q = q.Where("table_session_id = ?", *sessionID)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var orders []models.Order
	if err := q.Order("created_at desc").Limit(limit).Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// AddItem appends a product line, or increments a matching open line.
func (s *OrderService) AddItem(ctx context.Context, orderID, productID uint, quantity int, notes string) (*models.Order, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	var order *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		if order.IsTerminal() {
			return ErrOrderClosed
		}
		now := s.now()
		if err := addLine(tx, order, OrderLine{ProductID: productID, Quantity: quantity, Notes: notes}, now); err != nil {
			return err
		}
		return saveOrderState(tx, order, now)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditItemAdded, "order", idString(order.ID), map[string]interface{}{
		"product_id": productID,
		"quantity":   quantity,
	})
	s.published(*order)
	return order, nil
}

// OrderLine is one requested product on a new order.
type OrderLine struct {
	ProductID uint
	Quantity  int
	Notes     string
}

// CreateMobileOrder places a self-service order with all its lines in one
// transaction. Any rejected line rejects the whole order.
func (s *OrderService) CreateMobileOrder(ctx context.Context, customerName string, lines []OrderLine) (*models.Order, error) {
	if len(lines) == 0 {
		return nil, newError(KindValidation, "EMPTY_ORDER", "an order needs at least one item")
	}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
	}

	now := s.now()
	order := &models.Order{
		OrderType:    models.OrderTypeMobile,
		Status:       models.OrderStatusOpen,
		CustomerName: strings.TrimSpace(customerName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(order).Error; err != nil {
			return err
		}
		for _, line := range lines {
			if err := addLine(tx, order, line, now); err != nil {
				return err
			}
		}
		return saveOrderState(tx, order, now)
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"lines":    len(lines),
		"total":    utils.FormatCents(order.Total),
	}).Info("Mobile order placed")
	s.audit.Record(ctx, AuditOrderCreated, "order", idString(order.ID), map[string]interface{}{
		"order_type": order.OrderType,
		"lines":      len(lines),
	})
	s.published(*order)
	return order, nil
}

// addLine merges line into order inside tx. The caller saves the order state.
func addLine(tx *gorm.DB, order *models.Order, line OrderLine, now time.Time) error {
	notes := strings.TrimSpace(line.Notes)
	var product models.Product
	if err := tx.Preload("Category").First(&product, line.ProductID).Error; err != nil {
		return notFound(err, ErrProductNotFound)
	}
	if !product.Active || product.Category.Name == models.CategoryTableTime {
		return ErrProductUnavailable
	}

	if existing := matchingLine(order.Items, product, notes); existing != nil {
		existing.SetQuantity(existing.Quantity + line.Quantity)
		return saveItem(tx, existing, now)
	}
	item := models.OrderItem{
		OrderID:   order.ID,
		ProductID: &product.ID,
		Name:      product.Name,
		Category:  product.Category.Name,
		UnitPrice: product.Price,
		TaxRate:   product.TaxRate,
		Notes:     notes,
		CreatedAt: now,
	}
	item.SetQuantity(line.Quantity)
	if err := saveItem(tx, &item, now); err != nil {
		return err
	}
	order.Items = append(order.Items, item)
	return nil
}

// matchingLine finds a live line for the same product at the same price,
// tax rate and notes.
func matchingLine(items []models.OrderItem, product models.Product, notes string) *models.OrderItem {
	for i := range items {
		it := &items[i]
		if it.Voided || it.ProductID == nil || *it.ProductID != product.ID {
			continue
		}
		if it.UnitPrice == product.Price && it.TaxRate.Equal(product.TaxRate) && it.Notes == notes {
			return it
		}
	}
	return nil
}

// UpdateItemQuantity sets a line's ordered quantity. Reducing it below the
// served quantity clamps served quantity down to the new quantity. Served
// orders accept reductions only.
func (s *OrderService) UpdateItemQuantity(ctx context.Context, itemID uint, newQuantity int) (*models.Order, error) {
	if newQuantity < 0 {
		return nil, ErrInvalidQuantity
	}

	var order *models.Order
	var before, servedBefore int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item *models.OrderItem
		var err error
		order, item, err = lockItemOrder(tx, itemID)
		if err != nil {
			return err
		}
		if order.Status == models.OrderStatusPaid {
			return ErrOrderClosed
		}
		if item.Voided {
			return ErrItemVoided
		}
		// A served order has left the kitchen display, so it can only shrink.
		if order.Status == models.OrderStatusServed && newQuantity > item.Quantity {
			return ErrOrderClosed
		}

		before, servedBefore = item.Quantity, item.ServedQuantity
		now := s.now()
		item.SetQuantity(newQuantity)
		if err := saveItem(tx, item, now); err != nil {
			return err
		}
		return saveOrderState(tx, order, now)
	})
	if err != nil {
		return nil, err
	}

	details := map[string]interface{}{
		"item_id": itemID,
		"from":    before,
		"to":      newQuantity,
	}
	if servedBefore > newQuantity {
		details["served_clamped_from"] = servedBefore
		utils.InfoLogger.WithFields(logrus.Fields{
			"order_id": order.ID,
			"item_id":  itemID,
			"served":   servedBefore,
			"quantity": newQuantity,
		}).Info("Served quantity clamped to new quantity")
	}
	s.audit.Record(ctx, AuditItemQuantity, "order_item", idString(itemID), details)
	s.published(*order)
	return order, nil
}

// VoidItem zeroes a line that was already sent to the kitchen. The row is
// kept with its original quantity for the audit trail.
func (s *OrderService) VoidItem(ctx context.Context, itemID uint, reason string) (*models.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	var order *models.Order
	var voidedQty int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item *models.OrderItem
		var err error
		order, item, err = lockItemOrder(tx, itemID)
		if err != nil {
			return err
		}
		if order.SentAt == nil {
			return ErrNotSentToKitchen
		}
		if order.Status == models.OrderStatusPaid {
			return ErrOrderClosed
		}
		if item.Voided {
			return ErrItemVoided
		}

		now := s.now()
		voidedQty = item.Quantity
		item.Voided = true
		item.VoidReason = reason
		item.VoidedQuantity = item.Quantity
		item.VoidedAt = &now
		item.SetQuantity(0)
		if err := saveItem(tx, item, now); err != nil {
			return err
		}
		return saveOrderState(tx, order, now)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditItemVoided, "order_item", idString(itemID), map[string]interface{}{
		"order_id": order.ID,
		"quantity": voidedQty,
		"reason":   reason,
	})
	s.published(*order)
	return order, nil
}

// Submit sends an OPEN order to the kitchen. sent_at is stamped once and
// never moves on resubmission.
func (s *OrderService) Submit(ctx context.Context, orderID uint) (*models.Order, error) {
	var order *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		return submitLocked(tx, order, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditOrderSubmitted, "order", idString(order.ID), map[string]interface{}{
		"sent_at": order.SentAt,
		"total":   order.Total,
	})
	s.published(*order)
	return order, nil
}

func submitLocked(tx *gorm.DB, order *models.Order, now time.Time) error {
	if order.Status == models.OrderStatusPaid {
		return ErrOrderAlreadyPaid
	}
	order.AdvanceTo(models.OrderStatusSubmitted)
	if order.SentAt == nil {
		order.SentAt = &now
	}
	return saveOrderState(tx, order, now)
}

// MarkServed marks every line fully served and advances the order to SERVED
// in a single transaction. Re-running it converges on the same state.
func (s *OrderService) MarkServed(ctx context.Context, orderID uint) (*models.Order, error) {
	var order *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = lockOrder(tx, orderID)
		if err != nil {
			return err
		}

		now := s.now()
		if err := tx.Model(&models.OrderItem{}).
			Where("order_id = ?", order.ID).
			Updates(map[string]interface{}{
				"served_quantity": gorm.Expr("quantity"),
				"updated_at":      now,
			}).Error; err != nil {
			return err
		}
		for i := range order.Items {
			order.Items[i].ServedQuantity = order.Items[i].Quantity
		}

		order.AdvanceTo(models.OrderStatusServed)
		if order.SentAt == nil {
			order.SentAt = &now
		}
		return saveOrderState(tx, order, now)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditOrderServed, "order", idString(order.ID), nil)
	s.published(*order)
	return order, nil
}

// MarkReady flags that the kitchen finished the order and it awaits a runner.
func (s *OrderService) MarkReady(ctx context.Context, orderID uint) (*models.Order, error) {
	var order *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		if order.Status == models.OrderStatusOpen {
			return newError(KindPolicy, "NOT_SUBMITTED", "order has not been sent to the kitchen")
		}
		if !order.AdvanceTo(models.OrderStatusReady) {
			return nil
		}
		return saveOrderState(tx, order, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditOrderReady, "order", idString(order.ID), nil)
	s.published(*order)
	return order, nil
}

// Pay settles the order; see SettlementService.Pay.
func (s *OrderService) Pay(ctx context.Context, req PayRequest) (*models.Order, *models.Payment, error) {
	return s.settlement.Pay(ctx, req)
}

// published pushes the committed order to floor and kitchen screens.
func (s *OrderService) published(order models.Order) {
	s.hub.BroadcastOrderUpdate(order)
	if order.Status != models.OrderStatusOpen || order.OrderType == models.OrderTypeMobile {
		s.hub.BroadcastKitchenUpdate(BuildKitchenDisplay([]models.Order{order}))
	}
}

func idString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
