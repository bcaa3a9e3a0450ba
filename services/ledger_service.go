package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/billiard-pos/models"
	"github.com/yeremiapane/billiard-pos/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerService posts idempotent movements on customer AR accounts.
type LedgerService struct {
	db    *gorm.DB
	audit AuditRecorder
	now   func() time.Time
}

type LedgerEntryRequest struct {
	CustomerID     uint
	Type           string
	AmountCents    int64
	IdempotencyKey string
	PosSessionID   *uint
	Description    string
}

// ReservationRequest books a table for a customer, charging AmountCents to
// their account.
type ReservationRequest struct {
	ProfileID   uint
	PoolTableID uint
	StartTime   time.Time
	AmountCents int64
}

// signedAmount applies the sign convention of the entry type: charges raise
// the balance, payments lower it, adjustments keep the caller's sign.
func signedAmount(entryType string, amount int64) int64 {
	switch entryType {
	case models.LedgerTypeCharge:
		if amount < 0 {
			return -amount
		}
	case models.LedgerTypePayment:
		if amount > 0 {
			return -amount
		}
	}
	return amount
}

// PostEntry inserts a ledger entry once per idempotency key. Replaying a key
// with the same payload returns the stored entry and replayed=true.
func (s *LedgerService) PostEntry(ctx context.Context, req LedgerEntryRequest) (*models.ArLedgerEntry, bool, error) {
	var entry *models.ArLedgerEntry
	var replayed bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, replayed, err = s.postTx(tx, req, s.now())
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if !replayed {
		s.recordPosted(ctx, entry)
	}
	return entry, replayed, nil
}

// postTx is PostEntry inside the caller's transaction.
func (s *LedgerService) postTx(tx *gorm.DB, req LedgerEntryRequest, now time.Time) (*models.ArLedgerEntry, bool, error) {
	entryType := strings.ToUpper(strings.TrimSpace(req.Type))
	if !models.ValidLedgerType(entryType) {
		return nil, false, ErrInvalidType
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		return nil, false, ErrKeyRequired
	}
	if req.AmountCents == 0 {
		return nil, false, ErrInvalidAmount
	}

	var customer models.User
	if err := tx.Select("id").First(&customer, req.CustomerID).Error; err != nil {
		return nil, false, notFound(err, ErrCustomerNotFound)
	}

	entry := models.ArLedgerEntry{
		CustomerID:     req.CustomerID,
		AmountCents:    signedAmount(entryType, req.AmountCents),
		Type:           entryType,
		IdempotencyKey: key,
		PosSessionID:   req.PosSessionID,
		Description:    req.Description,
		CreatedAt:      now,
	}
	if actor, ok := ActorFrom(tx.Statement.Context); ok {
		entry.StaffID = &actor
	}

	res := tx.Omit(clause.Associations).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "idempotency_key"}}, DoNothing: true}).
		Create(&entry)
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to insert ledger entry: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return &entry, false, nil
	}

	var existing models.ArLedgerEntry
	if err := tx.Where("idempotency_key = ?", key).First(&existing).Error; err != nil {
		return nil, false, fmt.Errorf("failed to load ledger entry %q: %w", key, err)
	}
	if existing.CustomerID != entry.CustomerID || existing.Type != entry.Type || existing.AmountCents != entry.AmountCents {
		return nil, false, ErrIdempotencyConflict
	}
	return &existing, true, nil
}

func (s *LedgerService) recordPosted(ctx context.Context, entry *models.ArLedgerEntry) {
	utils.InfoLogger.WithFields(logrus.Fields{
		"customer_id": entry.CustomerID,
		"type":        entry.Type,
		"amount":      utils.FormatCents(entry.AmountCents),
	}).Info("Ledger entry posted")
	s.audit.Record(ctx, AuditLedgerEntryPosted, "ar_ledger_entry", idString(entry.ID), map[string]interface{}{
		"customer_id":     entry.CustomerID,
		"type":            entry.Type,
		"amount_cents":    entry.AmountCents,
		"idempotency_key": entry.IdempotencyKey,
	})
}

// Balance is the signed sum of a customer's entries.
func (s *LedgerService) Balance(ctx context.Context, customerID uint) (int64, error) {
	var customer models.User
	if err := s.db.WithContext(ctx).Select("id").First(&customer, customerID).Error; err != nil {
		return 0, notFound(err, ErrCustomerNotFound)
	}
	var balance int64
	err := s.db.WithContext(ctx).Model(&models.ArLedgerEntry{}).
		Where("customer_id = ?", customerID).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&balance).Error
	return balance, err
}

// Entries lists a customer's entries, newest first.
func (s *LedgerService) Entries(ctx context.Context, customerID uint, limit int) ([]models.ArLedgerEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []models.ArLedgerEntry
	err := s.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// CreateReservation books a table and charges the booking to the customer
// in the same transaction.
func (s *LedgerService) CreateReservation(ctx context.Context, req ReservationRequest) (*models.Reservation, error) {
	if req.AmountCents < 0 {
		return nil, ErrInvalidAmount
	}
	now := s.now()
	if !req.StartTime.After(now) {
		return nil, newError(KindValidation, "INVALID_START_TIME", "reservation must start in the future")
	}

	reservation := models.Reservation{
		ProfileID:   req.ProfileID,
		PoolTableID: req.PoolTableID,
		StartTime:   req.StartTime,
		Status:      models.ReservationStatusPending,
		AmountCents: req.AmountCents,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	var charge *models.ArLedgerEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var customer models.User
		if err := tx.Select("id").First(&customer, req.ProfileID).Error; err != nil {
			return notFound(err, ErrCustomerNotFound)
		}
		var table models.PoolTable
		if err := tx.Select("id").First(&table, req.PoolTableID).Error; err != nil {
			return notFound(err, ErrTableNotFound)
		}
		if req.AmountCents > 0 {
			reservation.Status = models.ReservationStatusConfirmed
		}
		if err := tx.Omit(clause.Associations).Create(&reservation).Error; err != nil {
			return fmt.Errorf("failed to create reservation: %w", err)
		}
		if req.AmountCents == 0 {
			return nil
		}
		var err error
		charge, _, err = s.postTx(tx, LedgerEntryRequest{
			CustomerID:     req.ProfileID,
			Type:           models.LedgerTypeCharge,
			AmountCents:    req.AmountCents,
			IdempotencyKey: fmt.Sprintf("reservation-charge:%d", reservation.ID),
			Description:    fmt.Sprintf("Reservation #%d", reservation.ID),
		}, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditReservationCreated, "reservation", idString(reservation.ID), map[string]interface{}{
		"pool_table_id": reservation.PoolTableID,
		"start_time":    reservation.StartTime,
		"amount_cents":  reservation.AmountCents,
	})
	if charge != nil {
		s.recordPosted(ctx, charge)
	}
	return &reservation, nil
}

// Reservations lists reservations, optionally for one customer.
func (s *LedgerService) Reservations(ctx context.Context, profileID *uint) ([]models.Reservation, error) {
	q := s.db.WithContext(ctx)
	if profileID != nil {
		q = q.Where("profile_id = ?", *profileID)
	}
	var reservations []models.Reservation
	if err := q.Order("start_time asc").Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

