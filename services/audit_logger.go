package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/billiard-pos/models"
	"github.com/yeremiapane/billiard-pos/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Audit action types
const (
	AuditSessionOpened      = "SESSION_OPENED"
	AuditSessionPaused      = "SESSION_PAUSED"
	AuditSessionResumed     = "SESSION_RESUMED"
	AuditSessionReleased    = "SESSION_RELEASED"
	AuditSessionRenamed     = "SESSION_RENAMED"
	AuditOrderCreated       = "ORDER_CREATED"
	AuditItemAdded          = "ITEM_ADDED"
	AuditItemQuantity       = "ITEM_QUANTITY_CHANGED"
	AuditItemVoided         = "ITEM_VOIDED"
	AuditItemServed         = "ITEM_SERVED"
	AuditOrderSubmitted     = "ORDER_SUBMITTED"
	AuditOrderReady         = "ORDER_READY"
	AuditOrderServed        = "ORDER_SERVED"
	AuditOrderPaid          = "ORDER_PAID"
	AuditReservationCancel  = "RESERVATION_CANCELLED"
	AuditLedgerEntryPosted  = "LEDGER_ENTRY_POSTED"
	AuditReservationCreated = "RESERVATION_CREATED"
)

// AuditRecorder records state-changing actions. Implementations must never
// block the caller or report their own failures to it.
type AuditRecorder interface {
	Record(ctx context.Context, actionType, entityType, entityID string, details map[string]interface{})
}

type actorKey struct{}

// WithActor attaches the acting user to ctx for audit records.
func WithActor(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

// ActorFrom returns the acting user stored by WithActor.
func ActorFrom(ctx context.Context) (uint, bool) {
	id, ok := ctx.Value(actorKey{}).(uint)
	return id, ok && id != 0
}

// AuditLogger persists audit records from a single background worker.
// Records are dropped, with a warning, when the buffer is full.
type AuditLogger struct {
	db      *gorm.DB
	now     func() time.Time
	entries chan models.AuditLog
	wg      sync.WaitGroup
	once    sync.Once
	closed  chan struct{}
	mu      sync.RWMutex
}

// NewAuditLogger starts the writer. Records are stamped with now, or the
// wall clock when now is nil, so they line up with the services' clock.
func NewAuditLogger(db *gorm.DB, buffer int, now func() time.Time) *AuditLogger {
	if buffer <= 0 {
		buffer = 256
	}
	if now == nil {
		now = time.Now
	}
	al := &AuditLogger{
		db:      db,
		now:     now,
		entries: make(chan models.AuditLog, buffer),
		closed:  make(chan struct{}),
	}
	al.wg.Add(1)
	go al.run()
	return al
}

func (al *AuditLogger) Record(ctx context.Context, actionType, entityType, entityID string, details map[string]interface{}) {
	entry := models.AuditLog{
		ActionType: actionType,
		CreatedAt:  al.now(),
	}
	if entityType != "" {
		entry.EntityType = &entityType
	}
	if entityID != "" {
		entry.EntityID = &entityID
	}
	if actor, ok := ActorFrom(ctx); ok {
		entry.ActorID = &actor
	}
	if len(details) > 0 {
		raw, err := json.Marshal(details)
		if err != nil {
			utils.ErrorLogger.WithError(err).WithField("action", actionType).Warn("Audit details not serializable")
		} else {
			entry.Details = datatypes.JSON(raw)
		}
	}

	al.mu.RLock()
	defer al.mu.RUnlock()
	select {
	case <-al.closed:
		utils.ErrorLogger.WithField("action", actionType).Warn("Audit logger closed, dropping record")
		return
	default:
	}

	select {
	case al.entries <- entry:
	default:
		utils.ErrorLogger.WithField("action", actionType).Warn("Audit buffer full, dropping record")
	}
}

func (al *AuditLogger) run() {
	defer al.wg.Done()
	for entry := range al.entries {
		al.write(entry)
	}
}

func (al *AuditLogger) write(entry models.AuditLog) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := al.db.WithContext(ctx).Create(&entry).Error; err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"action": entry.ActionType,
			"error":  err,
		}).Error("Failed to write audit record")
	}
}

// Close stops accepting records and waits until buffered ones are written.
func (al *AuditLogger) Close() {
	al.once.Do(func() {
		al.mu.Lock()
		close(al.closed)
		close(al.entries)
		al.mu.Unlock()
		al.wg.Wait()
	})
}

// nopAudit discards every record.
type nopAudit struct{}

func (nopAudit) Record(context.Context, string, string, string, map[string]interface{}) {}
