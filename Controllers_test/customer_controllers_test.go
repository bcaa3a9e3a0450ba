package Controllers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/billiard-pos/controllers"
	"github.com/yeremiapane/billiard-pos/middlewares"
	"github.com/yeremiapane/billiard-pos/models"
)

func TestPostLedgerEntryIdempotency(t *testing.T) {
	db := setupTestDB(t)
	svcs := newServices(db)
	customer := seedUser(t, db, "Sari", models.RoleCustomer)

	router := gin.New()
	ctrl := controllers.NewCustomerController(svcs.Ledger)
	router.POST("/customers/:customer_id/ledger", ctrl.PostLedgerEntry)
	router.GET("/customers/:customer_id/balance", ctrl.GetBalance)
	router.GET("/account/balance", middlewares.AuthMiddleware(), ctrl.GetMyBalance)
	ledgerURL := fmt.Sprintf("/customers/%d/ledger", customer.ID)
	key := http.Header{controllers.IdempotencyKeyHeader: []string{"pos-42"}}

	w := doJSON(t, router, "POST", ledgerURL, gin.H{"type": "charge", "amount": "125.50"}, key)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, router, "POST", ledgerURL, gin.H{"type": "charge", "amount": "125.50"}, key)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, "POST", ledgerURL, gin.H{"type": "charge", "amount": "125.50"}, http.Header{"idempotency-key": []string{"pos-42"}})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, router, "POST", ledgerURL, gin.H{"type": "charge", "amount": "99"}, key)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "IDEMPOTENCY_CONFLICT", decode(t, w)["code"])

	w = doJSON(t, router, "POST", ledgerURL, gin.H{"type": "payment", "amount": "25.50", "idempotency_key": "pay-1"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, "POST", ledgerURL, gin.H{"type": "payment", "amount": "1"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "IDEMPOTENCY_KEY_REQUIRED", decode(t, w)["code"])

	w = doJSON(t, router, "GET", fmt.Sprintf("/customers/%d/balance", customer.ID), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(10000), data["balance_cents"])
	assert.Equal(t, "100.00", data["balance_formatted"])
	assert.Len(t, data["entries"], 2)

	w = doJSON(t, router, "GET", "/account/balance", nil, authHeader(t, customer.ID, models.RoleCustomer))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(10000), decode(t, w)["data"].(map[string]interface{})["balance_cents"])

	w = doJSON(t, router, "GET", "/customers/999/balance", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
