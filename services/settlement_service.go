package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/billiard-pos/models"
	"github.com/yeremiapane/billiard-pos/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Procedure result codes returned by cancel_reservation_with_refund.
const (
	cancelCodeOK               = "OK"
	cancelCodeNotFound         = "RESERVATION_NOT_FOUND"
	cancelCodeUnauthorized     = "UNAUTHORIZED"
	cancelCodeTooLate          = "TOO_LATE_TO_CANCEL"
	cancelCodeAlreadyCancelled = "ALREADY_CANCELLED"
	cancelCodeNotCancellable   = "NOT_CANCELLABLE"
)

// SettlementService takes payments and runs compensating actions.
type SettlementService struct {
	db           *gorm.DB
	audit        AuditRecorder
	hub          Broadcaster
	ledger       *LedgerService
	now          func() time.Time
	cancelWindow time.Duration
	useProcedure bool
}

type PayRequest struct {
	OrderID     uint
	Amount      int64
	Method      string
	ReferenceID string
}

// CancelResult is the outcome of a cancellation. Success is false only when
// the reservation was already cancelled.
type CancelResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RefundKey is the ledger idempotency key for a reservation refund.
func RefundKey(reservationID uint) string {
	return fmt.Sprintf("reservation-refund:%d", reservationID)
}

// Pay records a payment that, together with earlier payments, settles the
// order exactly, and marks the order PAID.
func (s *SettlementService) Pay(ctx context.Context, req PayRequest) (*models.Order, *models.Payment, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if !models.ValidPaymentMethod(method) {
		return nil, nil, ErrInvalidMethod
	}
	if req.Amount < 0 {
		return nil, nil, ErrInvalidAmount
	}

	var order *models.Order
	var payment models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = lockOrder(tx, req.OrderID)
		if err != nil {
			return err
		}
		if order.Status == models.OrderStatusPaid {
			return ErrOrderAlreadyPaid
		}
		pending, err := tableTimePending(tx, order)
		if err != nil {
			return err
		}
		if pending {
			return ErrTableTimePending
		}
		ApplyTotals(order)

		var paid int64
		if err := tx.Model(&models.Payment{}).
			Where("order_id = ?", order.ID).
			Select("COALESCE(SUM(amount), 0)").
			Scan(&paid).Error; err != nil {
			return fmt.Errorf("failed to sum payments: %w", err)
		}
		if paid+req.Amount != order.Total {
			return ErrAmountMismatch
		}

		now := s.now()
		ref := strings.TrimSpace(req.ReferenceID)
		if ref == "" {
			ref = uuid.NewString()
		}
		payment = models.Payment{
			OrderID:     order.ID,
			Amount:      req.Amount,
			Method:      method,
			ReferenceID: &ref,
			PaidAt:      now,
			CreatedAt:   now,
		}
		if actor, ok := ActorFrom(ctx); ok {
			payment.StaffID = &actor
		}
		if err := tx.Omit(clause.Associations).Create(&payment).Error; err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}

		order.Status = models.OrderStatusPaid
		if err := saveOrderState(tx, order, now); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		order.Payments = append(order.Payments, payment)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"amount":   utils.FormatCents(req.Amount),
		"method":   method,
	}).Info("Order paid")
	s.audit.Record(ctx, AuditOrderPaid, "order", idString(order.ID), map[string]interface{}{
		"payment_id": payment.ID,
		"amount":     req.Amount,
		"method":     method,
		"total":      order.Total,
	})
	s.hub.BroadcastOrderUpdate(*order)
	return order, &payment, nil
}

// tableTimePending reports whether the order carries a table-time line whose
// session is still running, so its price is not final yet.
func tableTimePending(tx *gorm.DB, order *models.Order) (bool, error) {
	if order.TableSessionID == nil || !hasTableTime(order.Items) {
		return false, nil
	}
	var session models.TableSession
	if err := tx.Select("id", "status").First(&session, *order.TableSessionID).Error; err != nil {
		return false, fmt.Errorf("failed to load table session: %w", err)
	}
	return session.IsActive(), nil
}

func hasTableTime(items []models.OrderItem) bool {
	for _, it := range items {
		if it.IsTableTime() && !it.Voided {
			return true
		}
	}
	return false
}

// CancelReservationWithRefund cancels a customer's own reservation and posts
// a refund adjustment, atomically. Cancelling twice is a no-op reported with
// Success false.
func (s *SettlementService) CancelReservationWithRefund(ctx context.Context, reservationID, userID uint) (*CancelResult, error) {
	var (
		result *CancelResult
		err    error
	)
	if s.useProcedure {
		result, err = s.cancelViaProcedure(ctx, reservationID, userID)
	} else {
		result, err = s.cancelInTx(ctx, reservationID, userID)
	}
	if err != nil {
		return nil, err
	}

	fields := logrus.Fields{
		"reservation_id": reservationID,
		"user_id":        userID,
		"success":        result.Success,
	}
	if !result.Success {
		utils.InfoLogger.WithFields(fields).Info("Reservation cancel was a no-op")
		return result, nil
	}
	utils.InfoLogger.WithFields(fields).Info("Reservation cancelled")
	s.audit.Record(WithActor(ctx, userID), AuditReservationCancel, "reservation", idString(reservationID), map[string]interface{}{
		"refund_key": RefundKey(reservationID),
	})
	return result, nil
}

type procedureResult struct {
	Success bool
	Message string
	Code    string
}

func (s *SettlementService) cancelViaProcedure(ctx context.Context, reservationID, userID uint) (*CancelResult, error) {
	var row procedureResult
	err := s.db.WithContext(ctx).
		Raw("CALL cancel_reservation_with_refund(?, ?, ?)", reservationID, userID, int64(s.cancelWindow/time.Minute)).
		Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("cancel_reservation_with_refund: %w", err)
	}

	switch row.Code {
	case cancelCodeOK:
		return &CancelResult{Success: true, Message: row.Message}, nil
	case cancelCodeAlreadyCancelled:
		return &CancelResult{Success: false, Message: row.Message}, nil
	case cancelCodeNotFound:
		return nil, ErrReservationNotFound
	case cancelCodeUnauthorized:
		return nil, ErrUnauthorized
	case cancelCodeTooLate:
		return nil, ErrTooLateToCancel
	case cancelCodeNotCancellable:
		return nil, ErrNotCancellable
	}
	return nil, fmt.Errorf("cancel_reservation_with_refund: unexpected result code %q", row.Code)
}

// cancelInTx mirrors the stored procedure for stores without one.
func (s *SettlementService) cancelInTx(ctx context.Context, reservationID, userID uint) (*CancelResult, error) {
	result := &CancelResult{Success: true, Message: "reservation cancelled"}
	var refund *models.ArLedgerEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reservation models.Reservation
		if err := tx.Clauses(forUpdate).First(&reservation, reservationID).Error; err != nil {
			return notFound(err, ErrReservationNotFound)
		}
		if reservation.ProfileID != userID {
			return ErrUnauthorized
		}
		now := s.now()
		if reservation.StartTime.Sub(now) < s.cancelWindow {
			return ErrTooLateToCancel
		}
		switch reservation.Status {
		case models.ReservationStatusCancelled:
			result = &CancelResult{Success: false, Message: "already cancelled"}
			return nil
		case models.ReservationStatusCheckedIn:
			return ErrNotCancellable
		}

		if err := tx.Model(&reservation).Updates(map[string]interface{}{
			"status":       models.ReservationStatusCancelled,
			"cancelled_at": now,
			"updated_at":   now,
		}).Error; err != nil {
			return fmt.Errorf("failed to cancel reservation: %w", err)
		}

		if reservation.AmountCents > 0 {
			entry, _, err := s.ledger.postTx(tx, LedgerEntryRequest{
				CustomerID:     reservation.ProfileID,
				Type:           models.LedgerTypeAdjustment,
				AmountCents:    -reservation.AmountCents,
				IdempotencyKey: RefundKey(reservation.ID),
				Description:    fmt.Sprintf("Refund for cancelled reservation #%d", reservation.ID),
			}, now)
			if err != nil {
				return fmt.Errorf("failed to post refund: %w", err)
			}
			refund = entry
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if refund != nil {
		s.audit.Record(ctx, AuditLedgerEntryPosted, "ar_ledger_entry", idString(refund.ID), map[string]interface{}{
			"customer_id":     refund.CustomerID,
			"type":            refund.Type,
			"amount_cents":    refund.AmountCents,
			"idempotency_key": refund.IdempotencyKey,
		})
	}
	return result, nil
}
