package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/billiard-pos/models"
	"github.com/yeremiapane/billiard-pos/utils"
	"gorm.io/gorm"
)

type ProductController struct {
	DB *gorm.DB
	// DefaultTaxRate applies to products created without a tax_rate.
	DefaultTaxRate decimal.Decimal
}

func NewProductController(db *gorm.DB, defaultTaxRate decimal.Decimal) *ProductController {
	return &ProductController{DB: db, DefaultTaxRate: defaultTaxRate}
}

// GetAllProducts lists what can be ordered. Table time is billed by sessions
// and never listed; inactive products are hidden unless ?all=true.
func (pc *ProductController) GetAllProducts(c *gin.Context) {
	q := pc.DB.WithContext(c.Request.Context()).
		Preload("Category").
		Joins("JOIN product_categories ON product_categories.id = products.category_id").
		Where("product_categories.name <> ?", models.CategoryTableTime)
	if c.Query("all") != "true" {
		q = q.Where("products.active = ?", true)
	}
	if category := c.Query("category"); category != "" {
		q = q.Where("product_categories.name = ?", category)
	}

	var products []models.Product
	if err := q.Order("products.name asc").Find(&products).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of products", products)
}

type productRequest struct {
	Name     string           `json:"name" binding:"required"`
	Category string           `json:"category" binding:"required"`
	Price    decimal.Decimal  `json:"price"`
	TaxRate  *decimal.Decimal `json:"tax_rate"`
	Active   *bool            `json:"active"`
}

// CreateProduct adds a product, creating its category on first use. Prices
// are given in major units with at most two decimals.
func (pc *ProductController) CreateProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	category := strings.TrimSpace(req.Category)
	if strings.EqualFold(category, models.CategoryTableTime) {
		utils.RespondError(c, http.StatusBadRequest, errors.New("table time is billed by table sessions"))
		return
	}
	price, err := utils.ParseAmount(req.Price)
	if err != nil || price < 0 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("price must be a non-negative amount with at most 2 decimals"))
		return
	}
	taxRate := pc.DefaultTaxRate
	if req.TaxRate != nil {
		taxRate = *req.TaxRate
	}
	if taxRate.IsNegative() || taxRate.GreaterThan(decimal.NewFromInt(1)) {
		utils.RespondError(c, http.StatusBadRequest, errors.New("tax_rate must be between 0 and 1"))
		return
	}

	now := time.Now()
	product := models.Product{
		Name:      strings.TrimSpace(req.Name),
		Price:     price,
		TaxRate:   taxRate,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = pc.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		cat := models.ProductCategory{Name: category}
		if err := tx.Where(models.ProductCategory{Name: category}).
			Attrs(models.ProductCategory{CreatedAt: now, UpdatedAt: now}).
			FirstOrCreate(&cat).Error; err != nil {
			return err
		}
		product.CategoryID = cat.ID
		product.Category = cat
		if err := tx.Omit("Category").Create(&product).Error; err != nil {
			return err
		}
		// active defaults to true in the schema, so false needs its own write
		if req.Active != nil && !*req.Active {
			product.Active = false
			return tx.Model(&product).Update("active", false).Error
		}
		return nil
	})
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"product_id": product.ID,
		"category":   category,
	}).Info("Product created")
	utils.RespondJSON(c, http.StatusCreated, "Product created", product)
}

// UpdateProduct changes price, tax rate or availability. Existing order lines
// keep the price and rate they were snapshotted with.
func (pc *ProductController) UpdateProduct(c *gin.Context) {
	productID, ok := uintParam(c, "product_id")
	if !ok {
		return
	}
	var req struct {
		Name    *string          `json:"name"`
		Price   *decimal.Decimal `json:"price"`
		TaxRate *decimal.Decimal `json:"tax_rate"`
		Active  *bool            `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	db := pc.DB.WithContext(c.Request.Context())
	var product models.Product
	if err := db.First(&product, productID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	updates := map[string]interface{}{"updated_at": time.Now()}
	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Price != nil {
		price, err := utils.ParseAmount(*req.Price)
		if err != nil || price < 0 {
			utils.RespondError(c, http.StatusBadRequest, errors.New("price must be a non-negative amount with at most 2 decimals"))
			return
		}
		updates["price"] = price
	}
	if req.TaxRate != nil {
		if req.TaxRate.IsNegative() || req.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
			utils.RespondError(c, http.StatusBadRequest, errors.New("tax_rate must be between 0 and 1"))
			return
		}
		updates["tax_rate"] = *req.TaxRate
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	if err := db.Model(&product).Updates(updates).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if err := db.Preload("Category").First(&product, productID).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Product updated", product)
}

// GetCategories lists product categories other than table time.
func (pc *ProductController) GetCategories(c *gin.Context) {
	var categories []models.ProductCategory
	if err := pc.DB.WithContext(c.Request.Context()).
		Where("name <> ?", models.CategoryTableTime).
		Order("name asc").
		Find(&categories).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of categories", categories)
}
