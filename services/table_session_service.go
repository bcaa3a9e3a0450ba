package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/billiard-pos/models"
	"github.com/yeremiapane/billiard-pos/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TableTimeItemName is the line name used for table-time billing.
const TableTimeItemName = "Table Time"

// TableSessionService drives the OPEN/PAUSED/RELEASED lifecycle of a table
// and bills its table time on release.
type TableSessionService struct {
	db      *gorm.DB
	audit   AuditRecorder
	hub     Broadcaster
	orders  *OrderService
	taxRate decimal.Decimal
	now     func() time.Time
}

// SessionView is a session with its orders and a running table-time estimate.
type SessionView struct {
	models.TableSession
	BillableMinutes   int64 `json:"billable_minutes"`
	TableTimeEstimate int64 `json:"table_time_estimate"`
}

// BillableMinutes rounds d up to whole minutes.
func BillableMinutes(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(math.Ceil(d.Minutes()))
}

// TableTimeCharge is minutes × hourly rate / 60, rounded half-up.
func TableTimeCharge(minutes, hourlyRate int64) int64 {
	return decimal.NewFromInt(minutes).
		Mul(decimal.NewFromInt(hourlyRate)).
		Div(decimal.NewFromInt(60)).
		Round(0).
		IntPart()
}

// Open starts a session on a table. The table must not already carry an
// OPEN or PAUSED session.
func (s *TableSessionService) Open(ctx context.Context, tableID uint, customerName string) (*models.TableSession, error) {
	customerName = strings.TrimSpace(customerName)
	now := s.now()

	var session models.TableSession
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var table models.PoolTable
		if err := tx.Clauses(forUpdate).First(&table, tableID).Error; err != nil {
			return notFound(err, ErrTableNotFound)
		}

		var active int64
		if err := tx.Model(&models.TableSession{}).
			Where("table_id = ? AND status IN ?", table.ID, []string{models.SessionStatusOpen, models.SessionStatusPaused}).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return ErrTableAlreadyOccupied
		}

		session = models.TableSession{
			TableID:       table.ID,
			ActiveTableID: &table.ID,
			CustomerName:  customerName,
			Status:        models.SessionStatusOpen,
			OpenedAt:      now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if actor, ok := ActorFrom(ctx); ok {
			session.OpenedBy = &actor
		}
		if err := tx.Omit(clause.Associations).Create(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrTableAlreadyOccupied
			}
			return err
		}

		order = models.Order{
			TableSessionID: &session.ID,
			OrderType:      models.OrderTypePOS,
			Status:         models.OrderStatusOpen,
			CustomerName:   customerName,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.Omit(clause.Associations).Create(&order).Error; err != nil {
			return err
		}

		if table.BillsTableTime() {
			item := models.OrderItem{
				OrderID:   order.ID,
				Name:      TableTimeItemName,
				Category:  models.CategoryTableTime,
				TaxRate:   s.taxRate,
				CreatedAt: now,
			}
			item.SetQuantity(1)
			if err := saveItem(tx, &item, now); err != nil {
				return err
			}
			order.Items = append(order.Items, item)
		}

		session.Table = table
		session.Table.Status = models.TableStatusOccupied
		return tx.Model(&table).Updates(map[string]interface{}{
			"status":     models.TableStatusOccupied,
			"updated_at": now,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"session_id": session.ID,
		"table_id":   tableID,
	}).Info("Table session opened")
	s.audit.Record(ctx, AuditSessionOpened, "table_session", idString(session.ID), map[string]interface{}{
		"table_id":      tableID,
		"customer_name": customerName,
		"order_id":      order.ID,
	})
	session.Orders = []models.Order{order}
	s.hub.BroadcastSessionUpdate(session)
	return &session, nil
}

// Pause stops the table-time clock on an OPEN session.
func (s *TableSessionService) Pause(ctx context.Context, sessionID uint) (*models.TableSession, error) {
	session, err := s.transition(ctx, sessionID, func(session *models.TableSession, now time.Time) error {
		if session.Status != models.SessionStatusOpen {
			return ErrInvalidTransition
		}
		session.Status = models.SessionStatusPaused
		session.PausedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, AuditSessionPaused, "table_session", idString(session.ID), nil)
	return session, nil
}

// Resume restarts the clock on a PAUSED session and banks the paused time.
func (s *TableSessionService) Resume(ctx context.Context, sessionID uint) (*models.TableSession, error) {
	var pausedFor int64
	session, err := s.transition(ctx, sessionID, func(session *models.TableSession, now time.Time) error {
		if session.Status != models.SessionStatusPaused {
			return ErrInvalidTransition
		}
		pausedFor = bankPause(session, now)
		session.Status = models.SessionStatusOpen
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, AuditSessionResumed, "table_session", idString(session.ID), map[string]interface{}{
		"paused_seconds": pausedFor,
	})
	return session, nil
}

// Rename changes the display name of an active session.
func (s *TableSessionService) Rename(ctx context.Context, sessionID uint, customerName string) (*models.TableSession, error) {
	customerName = strings.TrimSpace(customerName)
	var previous string
	session, err := s.transition(ctx, sessionID, func(session *models.TableSession, now time.Time) error {
		previous = session.CustomerName
		session.CustomerName = customerName
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, AuditSessionRenamed, "table_session", idString(session.ID), map[string]interface{}{
		"from": previous,
		"to":   customerName,
	})
	return session, nil
}

// transition locks an active session, applies fn and writes the lifecycle
// columns back.
func (s *TableSessionService) transition(ctx context.Context, sessionID uint, fn func(*models.TableSession, time.Time) error) (*models.TableSession, error) {
	var session models.TableSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(forUpdate).First(&session, sessionID).Error; err != nil {
			return notFound(err, ErrSessionNotFound)
		}
		if !session.IsActive() {
			return ErrSessionNotActive
		}
		now := s.now()
		if err := fn(&session, now); err != nil {
			return err
		}
		session.UpdatedAt = now
		return writeSession(tx, &session)
	})
	if err != nil {
		return nil, err
	}
	s.hub.BroadcastSessionUpdate(session)
	return &session, nil
}

func writeSession(tx *gorm.DB, session *models.TableSession) error {
	return tx.Model(&models.TableSession{ID: session.ID}).Updates(map[string]interface{}{
		"status":          session.Status,
		"customer_name":   session.CustomerName,
		"paused_at":       session.PausedAt,
		"paused_seconds":  session.PausedSeconds,
		"released_at":     session.ReleasedAt,
		"active_table_id": session.ActiveTableID,
		"updated_at":      session.UpdatedAt,
	}).Error
}

// bankPause folds the running pause into PausedSeconds.
func bankPause(session *models.TableSession, now time.Time) int64 {
	if session.PausedAt == nil {
		return 0
	}
	secs := int64(now.Sub(*session.PausedAt) / time.Second)
	if secs < 0 {
		secs = 0
	}
	session.PausedSeconds += secs
	session.PausedAt = nil
	return secs
}

// Release ends the session, fixes the table-time charge and sends the
// session's open orders on so the charge enters their totals.
func (s *TableSessionService) Release(ctx context.Context, sessionID uint) (*models.TableSession, error) {
	var session models.TableSession
	var minutes, charge int64
	var orders []models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(forUpdate).Preload("Table").First(&session, sessionID).Error; err != nil {
			return notFound(err, ErrSessionNotFound)
		}
		if !session.IsActive() {
			return ErrSessionNotActive
		}

		now := s.now()
		bankPause(&session, now)
		session.Status = models.SessionStatusReleased
		session.ReleasedAt = &now
		session.ActiveTableID = nil
		session.UpdatedAt = now
		if err := writeSession(tx, &session); err != nil {
			return err
		}

		minutes = BillableMinutes(session.BillableDuration(now))
		charge = TableTimeCharge(minutes, session.Table.HourlyRate)

		var ids []uint
		if err := tx.Model(&models.Order{}).
			Where("table_session_id = ?", session.ID).
			Order("id asc").
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		for _, id := range ids {
			order, err := lockOrder(tx, id)
			if err != nil {
				return err
			}
			for i := range order.Items {
				item := &order.Items[i]
				if !item.IsTableTime() || item.Voided {
					continue
				}
				item.UnitPrice = charge
				item.SetQuantity(1)
				if err := saveItem(tx, item, now); err != nil {
					return err
				}
			}
			if order.Status == models.OrderStatusOpen {
				if err := submitLocked(tx, order, now); err != nil {
					return err
				}
			} else if err := saveOrderState(tx, order, now); err != nil {
				return err
			}
			orders = append(orders, *order)
		}

		session.Table.Status = models.TableStatusDirty
		return tx.Model(&models.PoolTable{ID: session.TableID}).Updates(map[string]interface{}{
			"status":     models.TableStatusDirty,
			"updated_at": now,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"session_id": session.ID,
		"minutes":    minutes,
		"charge":     charge,
	}).Info("Table session released")
	s.audit.Record(ctx, AuditSessionReleased, "table_session", idString(session.ID), map[string]interface{}{
		"billable_minutes": minutes,
		"table_time":       charge,
		"paused_seconds":   session.PausedSeconds,
	})
	session.Orders = orders
	s.hub.BroadcastSessionUpdate(session)
	for _, o := range orders {
		s.orders.published(o)
	}
	return &session, nil
}

// Get returns a session with its orders and the table time accrued so far.
func (s *TableSessionService) Get(ctx context.Context, sessionID uint) (*SessionView, error) {
	var session models.TableSession
	err := s.db.WithContext(ctx).
		Preload("Table").
		Preload("Orders", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Orders.Items", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		First(&session, sessionID).Error
	if err != nil {
		return nil, notFound(err, ErrSessionNotFound)
	}
	view := s.view(session)
	return &view, nil
}

// List returns sessions, optionally filtered by status, newest first.
func (s *TableSessionService) List(ctx context.Context, status string) ([]SessionView, error) {
	q := s.db.WithContext(ctx).Preload("Table")
	if status != "" {
		q = q.Where("status = ?", strings.ToUpper(status))
	}
	var sessions []models.TableSession
	if err := q.Order("opened_at desc").Find(&sessions).Error; err != nil {
		return nil, err
	}
	views := make([]SessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, s.view(session))
	}
	return views, nil
}

func (s *TableSessionService) view(session models.TableSession) SessionView {
	minutes := BillableMinutes(session.BillableDuration(s.now()))
	return SessionView{
		TableSession:      session,
		BillableMinutes:   minutes,
		TableTimeEstimate: TableTimeCharge(minutes, session.Table.HourlyRate),
	}
}
