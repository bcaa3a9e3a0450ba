package Controllers_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/billiard-pos/controllers"
	"github.com/yeremiapane/billiard-pos/models"
	"github.com/yeremiapane/billiard-pos/services"
)

func TestPayOrder(t *testing.T) {
	db := setupTestDB(t)
	svcs := newServices(db)
	ctx := context.Background()
	chalk := seedProduct(t, db, "Chalk", 20000, "0.10")

	order, err := svcs.Orders.CreateOrder(ctx, services.CreateOrderRequest{})
	require.NoError(t, err)
	_, err = svcs.Orders.AddItem(ctx, order.ID, chalk.ID, 1, "")
	require.NoError(t, err)
	_, err = svcs.Orders.Submit(ctx, order.ID)
	require.NoError(t, err)

	router := gin.New()
	paymentCtrl := controllers.NewPaymentController(db, svcs.Settlement)
	router.POST("/orders/:order_id/pay", paymentCtrl.PayOrder)
	router.GET("/orders/:order_id/payments", paymentCtrl.GetOrderPayments)
	payURL := fmt.Sprintf("/orders/%d/pay", order.ID)

	w := doJSON(t, router, "POST", payURL, gin.H{"amount": 219.99, "method": "CASH"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "AMOUNT_MISMATCH", decode(t, w)["code"])

	w = doJSON(t, router, "POST", payURL, gin.H{"amount": "220.001", "method": "CASH"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_AMOUNT", decode(t, w)["code"])

	w = doJSON(t, router, "POST", payURL, gin.H{"amount": "220", "method": "CHEQUE"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_METHOD", decode(t, w)["code"])

	w = doJSON(t, router, "POST", payURL, gin.H{"amount": "220.00", "method": "cash", "reference_id": "DRAWER-7"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, models.OrderStatusPaid, data["order"].(map[string]interface{})["status"])
	assert.Equal(t, float64(22000), data["payment"].(map[string]interface{})["amount"])

	w = doJSON(t, router, "POST", payURL, gin.H{"amount": "220.00", "method": "cash"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ORDER_ALREADY_PAID", decode(t, w)["code"])

	w = doJSON(t, router, "GET", fmt.Sprintf("/orders/%d/payments", order.ID), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	payments := decode(t, w)["data"].([]interface{})
	require.Len(t, payments, 1)
	assert.Equal(t, "DRAWER-7", payments[0].(map[string]interface{})["reference_id"])

	w = doJSON(t, router, "GET", "/orders/999/payments", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
