package Controllers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yeremiapane/billiard-pos/controllers"
	"github.com/yeremiapane/billiard-pos/kds"
	"github.com/yeremiapane/billiard-pos/models"
)

func setupOrderRouter(db *gorm.DB) *gin.Engine {
	svcs := newServices(db)
	orderCtrl := controllers.NewOrderController(svcs.Orders)
	kitchenCtrl := controllers.NewKitchenController(svcs.Kitchen, kds.NewHub())

	router := gin.New()
	router.POST("/orders", orderCtrl.CreateMobileOrder)
	router.POST("/admin/orders", orderCtrl.CreateOrder)
	router.GET("/admin/orders", orderCtrl.GetAllOrders)
	router.GET("/admin/orders/:order_id", orderCtrl.GetOrder)
	router.POST("/admin/orders/:order_id/items", orderCtrl.AddItem)
	router.POST("/admin/orders/:order_id/submit", orderCtrl.SubmitOrder)
	router.PATCH("/admin/order-items/:item_id", orderCtrl.UpdateItemQuantity)
	router.POST("/admin/order-items/:item_id/void", orderCtrl.VoidItem)
	router.POST("/admin/order-items/:item_id/serve", kitchenCtrl.MarkItemServed)
	router.POST("/admin/orders/:order_id/serve", kitchenCtrl.MarkOrderServed)
	router.GET("/admin/kitchen/display", kitchenCtrl.GetDisplay)
	return router
}

func TestCreateMobileOrder(t *testing.T) {
	db := setupTestDB(t)
	router := setupOrderRouter(db)
	fries := seedProduct(t, db, "Fries", 2500, "0.10")

	w := doJSON(t, router, "POST", "/orders", gin.H{
		"customer_name": "Dewi",
		"items":         []gin.H{{"product_id": fries.ID, "quantity": 2, "notes": "extra salt"}},
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, models.OrderTypeMobile, data["order_type"])
	assert.Equal(t, float64(5500), data["total"])

	w = doJSON(t, router, "GET", "/admin/kitchen/display", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 1)

	w = doJSON(t, router, "POST", "/orders", gin.H{"customer_name": "Dewi", "items": []gin.H{}}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// A rejected line rejects the whole order, including lines before it.
	w = doJSON(t, router, "POST", "/orders", gin.H{
		"customer_name": "Rina",
		"items":         []gin.H{{"product_id": fries.ID, "quantity": 2}, {"product_id": 999, "quantity": 1}},
	}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "PRODUCT_NOT_FOUND", decode(t, w)["code"])

	var orders, items int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orders).Error)
	require.NoError(t, db.Model(&models.OrderItem{}).Count(&items).Error)
	assert.Equal(t, int64(1), orders)
	assert.Equal(t, int64(1), items)

	w = doJSON(t, router, "GET", "/admin/kitchen/display", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 1)
}

func TestOrderItemLifecycle(t *testing.T) {
	db := setupTestDB(t)
	router := setupOrderRouter(db)
	nachos := seedProduct(t, db, "Nachos", 100, "0.10")

	w := doJSON(t, router, "POST", "/admin/orders", gin.H{"customer_name": "Walk-in"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	orderID := uint(decode(t, w)["data"].(map[string]interface{})["id"].(float64))

	w = doJSON(t, router, "POST", fmt.Sprintf("/admin/orders/%d/items", orderID), gin.H{"product_id": nachos.ID, "quantity": 5}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decode(t, w)["data"].(map[string]interface{})["items"].([]interface{})
	itemID := uint(items[0].(map[string]interface{})["id"].(float64))

	w = doJSON(t, router, "POST", fmt.Sprintf("/admin/order-items/%d/void", itemID), gin.H{"reason": "wrong table"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "NOT_SENT_TO_KITCHEN", decode(t, w)["code"])

	w = doJSON(t, router, "POST", fmt.Sprintf("/admin/orders/%d/submit", orderID), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, "POST", fmt.Sprintf("/admin/order-items/%d/serve", itemID), gin.H{"quantity": 3}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, router, "POST", fmt.Sprintf("/admin/order-items/%d/serve", itemID), gin.H{"quantity": 3}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "OVER_SERVE", decode(t, w)["code"])

	w = doJSON(t, router, "PATCH", fmt.Sprintf("/admin/order-items/%d", itemID), gin.H{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, "PATCH", fmt.Sprintf("/admin/order-items/%d", itemID), gin.H{"quantity": 2}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	order := decode(t, w)["data"].(map[string]interface{})
	item := order["items"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, float64(2), item["quantity"])
	assert.Equal(t, float64(2), item["served_quantity"])
	assert.Equal(t, float64(220), order["total"])

	w = doJSON(t, router, "POST", fmt.Sprintf("/admin/orders/%d/serve", orderID), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.OrderStatusServed, decode(t, w)["data"].(map[string]interface{})["status"])

	w = doJSON(t, router, "GET", "/admin/kitchen/display", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["data"])

	w = doJSON(t, router, "GET", "/admin/orders?status=served", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 1)

	w = doJSON(t, router, "GET", "/admin/orders/0", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doJSON(t, router, "GET", "/admin/orders/999", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
