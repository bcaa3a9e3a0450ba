package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/yeremiapane/billiard-pos/models"
	"github.com/yeremiapane/billiard-pos/services"
	"github.com/yeremiapane/billiard-pos/utils"
	"gorm.io/gorm"
)

type PaymentController struct {
	DB         *gorm.DB
	Settlement *services.SettlementService
}

func NewPaymentController(db *gorm.DB, settlement *services.SettlementService) *PaymentController {
	return &PaymentController{DB: db, Settlement: settlement}
}

// PayOrder settles an order. amount is in major units and, added to earlier
// payments, must equal the order total exactly.
func (pc *PaymentController) PayOrder(c *gin.Context) {
	orderID, ok := uintParam(c, "order_id")
	if !ok {
		return
	}
	var req struct {
		Amount      decimal.Decimal `json:"amount"`
		Method      string          `json:"method" binding:"required"`
		ReferenceID string          `json:"reference_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	amount, err := utils.ParseAmount(req.Amount)
	if err != nil {
		utils.RespondErrorCode(c, http.StatusBadRequest, services.ErrInvalidAmount.Code, err)
		return
	}

	order, payment, err := pc.Settlement.Pay(c.Request.Context(), services.PayRequest{
		OrderID:     orderID,
		Amount:      amount,
		Method:      req.Method,
		ReferenceID: req.ReferenceID,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Payment recorded", gin.H{
		"order":   order,
		"payment": payment,
	})
}

// GetOrderPayments lists the payments taken against an order.
func (pc *PaymentController) GetOrderPayments(c *gin.Context) {
	orderID, ok := uintParam(c, "order_id")
	if !ok {
		return
	}
	db := pc.DB.WithContext(c.Request.Context())
	var order models.Order
	if err := db.Select("id").First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondServiceError(c, services.ErrOrderNotFound)
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	var payments []models.Payment
	if err := db.Where("order_id = ?", orderID).Order("paid_at asc").Find(&payments).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of payments", payments)
}
