package Controllers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/billiard-pos/controllers"
	"github.com/yeremiapane/billiard-pos/models"
)

func TestProductEndpoints(t *testing.T) {
	db := setupTestDB(t)
	router := gin.New()
	ctrl := controllers.NewProductController(db, decimal.RequireFromString("0.11"))
	router.POST("/products", ctrl.CreateProduct)
	router.GET("/products", ctrl.GetAllProducts)
	router.PATCH("/products/:product_id", ctrl.UpdateProduct)
	router.GET("/categories", ctrl.GetCategories)

	w := doJSON(t, router, "POST", "/products", gin.H{"name": "Iced Tea", "category": "Drinks", "price": "12.50"}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	tea := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(1250), tea["price"])
	assert.Equal(t, "0.11", tea["tax_rate"])

	w = doJSON(t, router, "POST", "/products", gin.H{"name": "Fries", "category": "Food", "price": "20", "tax_rate": "0", "active": false}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	tests := []struct {
		name string
		body gin.H
	}{
		{"table time category", gin.H{"name": "Hour", "category": models.CategoryTableTime, "price": "10"}},
		{"three decimals", gin.H{"name": "Gum", "category": "Snacks", "price": "1.005"}},
		{"negative price", gin.H{"name": "Gum", "category": "Snacks", "price": "-1"}},
		{"tax above one", gin.H{"name": "Gum", "category": "Snacks", "price": "1", "tax_rate": "1.5"}},
		{"missing category", gin.H{"name": "Gum", "price": "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, "POST", "/products", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	w = doJSON(t, router, "GET", "/products", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode(t, w)["data"].([]interface{})
	require.Len(t, listed, 1)
	assert.Equal(t, "Iced Tea", listed[0].(map[string]interface{})["name"])

	w = doJSON(t, router, "GET", "/products?all=true", nil, nil)
	assert.Len(t, decode(t, w)["data"], 2)

	teaURL := fmt.Sprintf("/products/%d", uint(tea["id"].(float64)))
	w = doJSON(t, router, "PATCH", teaURL, gin.H{"price": "15", "active": false}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(1500), updated["price"])
	assert.Equal(t, false, updated["active"])
	assert.Equal(t, "Drinks", updated["category"].(map[string]interface{})["name"])

	w = doJSON(t, router, "PATCH", "/products/999", gin.H{"price": "1"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, "GET", "/categories", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 2)
}
