package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/yeremiapane/billiard-pos/services"
	"github.com/yeremiapane/billiard-pos/utils"
)

// IdempotencyKeyHeader may carry the ledger key instead of the body.
const IdempotencyKeyHeader = "Idempotency-Key"

// CustomerController exposes customer AR accounts.
type CustomerController struct {
	Ledger *services.LedgerService
}

func NewCustomerController(ledger *services.LedgerService) *CustomerController {
	return &CustomerController{Ledger: ledger}
}

// PostLedgerEntry records a charge, payment or adjustment. Retrying with the
// same key returns the original entry with 200 instead of 201.
func (cc *CustomerController) PostLedgerEntry(c *gin.Context) {
	customerID, ok := uintParam(c, "customer_id")
	if !ok {
		return
	}
	var req struct {
		Type           string          `json:"type" binding:"required"`
		Amount         decimal.Decimal `json:"amount"`
		IdempotencyKey string          `json:"idempotency_key"`
		PosSessionID   *uint           `json:"pos_session_id"`
		Description    string          `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader(IdempotencyKeyHeader)
	}
	amount, err := utils.ParseAmount(req.Amount)
	if err != nil {
		utils.RespondErrorCode(c, http.StatusBadRequest, services.ErrInvalidAmount.Code, err)
		return
	}

	entry, replayed, err := cc.Ledger.PostEntry(c.Request.Context(), services.LedgerEntryRequest{
		CustomerID:     customerID,
		Type:           strings.ToUpper(req.Type),
		AmountCents:    amount,
		IdempotencyKey: req.IdempotencyKey,
		PosSessionID:   req.PosSessionID,
		Description:    req.Description,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if replayed {
		utils.RespondJSON(c, http.StatusOK, "Ledger entry already posted", entry)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Ledger entry posted", entry)
}

// GetBalance returns a customer's balance and recent entries.
func (cc *CustomerController) GetBalance(c *gin.Context) {
	customerID, ok := uintParam(c, "customer_id")
	if !ok {
		return
	}
	cc.respondBalance(c, customerID)
}

// GetMyBalance is GetBalance for the logged-in customer.
func (cc *CustomerController) GetMyBalance(c *gin.Context) {
	cc.respondBalance(c, c.GetUint("user_id"))
}

func (cc *CustomerController) respondBalance(c *gin.Context, customerID uint) {
	ctx := c.Request.Context()
	balance, err := cc.Ledger.Balance(ctx, customerID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := cc.Ledger.Entries(ctx, customerID, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Customer balance", gin.H{
		"customer_id":       customerID,
		"balance_cents":     balance,
		"balance_formatted": utils.FormatCents(balance),
		"entries":           entries,
	})
}
