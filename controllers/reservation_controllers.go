package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/yeremiapane/billiard-pos/models"
	"github.com/yeremiapane/billiard-pos/services"
	"github.com/yeremiapane/billiard-pos/utils"
)

type ReservationController struct {
	Settlement *services.SettlementService
	Ledger     *services.LedgerService
}

func NewReservationController(settlement *services.SettlementService, ledger *services.LedgerService) *ReservationController {
	return &ReservationController{Settlement: settlement, Ledger: ledger}
}

// CancelReservation cancels the caller's reservation and refunds it to
// their account. The response is always {success, message}.
func (rc *ReservationController) CancelReservation(c *gin.Context) {
	var req struct {
		ReservationID uint `json:"reservation_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "reservation_id is required"})
		return
	}
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "authentication required"})
		return
	}

	result, err := rc.Settlement.CancelReservationWithRefund(c.Request.Context(), req.ReservationID, userID)
	if err != nil {
		status := StatusFor(err)
		body := gin.H{"success": false, "message": errInternal.Error()}
		var se *services.ServiceError
		if errors.As(err, &se) {
			body["message"] = se.Message
			body["code"] = se.Code
		} else {
			_ = c.Error(err)
		}
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": result.Success, "message": result.Message})
}

// CreateReservation books a table. Customers book for themselves; staff may
// book on behalf of profile_id.
func (rc *ReservationController) CreateReservation(c *gin.Context) {
	var req struct {
		ProfileID   uint            `json:"profile_id"`
		PoolTableID uint            `json:"pool_table_id" binding:"required"`
		StartTime   time.Time       `json:"start_time" binding:"required"`
		Amount      decimal.Decimal `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if c.GetString("role") == models.RoleCustomer || req.ProfileID == 0 {
		req.ProfileID = c.GetUint("user_id")
	}
	amount, err := utils.ParseAmount(req.Amount)
	if err != nil {
		utils.RespondErrorCode(c, http.StatusBadRequest, services.ErrInvalidAmount.Code, err)
		return
	}

	reservation, err := rc.Ledger.CreateReservation(c.Request.Context(), services.ReservationRequest{
		ProfileID:   req.ProfileID,
		PoolTableID: req.PoolTableID,
		StartTime:   req.StartTime,
		AmountCents: amount,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Reservation created", reservation)
}

// ListReservations shows customers their own bookings and staff all of them.
func (rc *ReservationController) ListReservations(c *gin.Context) {
	var profileID *uint
	if c.GetString("role") == models.RoleCustomer {
		id := c.GetUint("user_id")
		profileID = &id
	}
	reservations, err := rc.Ledger.Reservations(c.Request.Context(), profileID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of reservations", reservations)
}
