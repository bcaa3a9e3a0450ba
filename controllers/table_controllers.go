package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/billiard-pos/kds"
	"github.com/yeremiapane/billiard-pos/models"
	"github.com/yeremiapane/billiard-pos/utils"
	"gorm.io/gorm"
)

type TableController struct {
	DB  *gorm.DB
	Hub *kds.Hub
}

func NewTableController(db *gorm.DB, hub *kds.Hub) *TableController {
	return &TableController{DB: db, Hub: hub}
}

// CreateTable adds a pool table.
func (tc *TableController) CreateTable(c *gin.Context) {
	var req struct {
		Label      string `json:"label" binding:"required"`
		HourlyRate int64  `json:"hourly_rate" binding:"gte=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	now := time.Now()
	table := models.PoolTable{
		Label:      strings.TrimSpace(req.Label),
		Status:     models.TableStatusAvailable,
		HourlyRate: req.HourlyRate,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := tc.DB.WithContext(c.Request.Context()).Create(&table).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.RespondError(c, http.StatusConflict, fmt.Errorf("table %q already exists", table.Label))
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	tc.Hub.BroadcastTableUpdate(table)
	utils.InfoLogger.WithFields(logrus.Fields{
		"table_id": table.ID,
		"label":    table.Label,
	}).Info("New table created")
	utils.RespondJSON(c, http.StatusCreated, "Table created successfully", table)
}

// GetAllTables lists tables, optionally filtered by ?status=.
func (tc *TableController) GetAllTables(c *gin.Context) {
	q := tc.DB.WithContext(c.Request.Context())
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", strings.ToLower(status))
	}
	var tables []models.PoolTable
	if err := q.Order("label asc").Find(&tables).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of tables", gin.H{
		"tables": tables,
		"stats":  tc.getDashboardStats(),
	})
}

func (tc *TableController) GetTableByID(c *gin.Context) {
	tableID, ok := uintParam(c, "table_id")
	if !ok {
		return
	}
	var table models.PoolTable
	if err := tc.DB.WithContext(c.Request.Context()).First(&table, tableID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table detail", table)
}

// UpdateTable changes a table's label or hourly rate. Occupancy is owned by
// table sessions and cannot be set here.
func (tc *TableController) UpdateTable(c *gin.Context) {
	tableID, ok := uintParam(c, "table_id")
	if !ok {
		return
	}
	var body struct {
		Label      *string `json:"label"`
		HourlyRate *int64  `json:"hourly_rate"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var table models.PoolTable
	db := tc.DB.WithContext(c.Request.Context())
	if err := db.First(&table, tableID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	updates := map[string]interface{}{"updated_at": time.Now()}
	if body.Label != nil && strings.TrimSpace(*body.Label) != "" {
		updates["label"] = strings.TrimSpace(*body.Label)
	}
	if body.HourlyRate != nil {
		if *body.HourlyRate < 0 {
			utils.RespondError(c, http.StatusBadRequest, errors.New("hourly_rate must not be negative"))
			return
		}
		updates["hourly_rate"] = *body.HourlyRate
	}
	if err := db.Model(&table).Updates(updates).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.RespondError(c, http.StatusConflict, errors.New("label already in use"))
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if err := db.First(&table, tableID).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	tc.Hub.BroadcastTableUpdate(table)
	utils.RespondJSON(c, http.StatusOK, "Table updated", table)
}

// DeleteTable removes a table that never hosted a session.
func (tc *TableController) DeleteTable(c *gin.Context) {
	tableID, ok := uintParam(c, "table_id")
	if !ok {
		return
	}
	db := tc.DB.WithContext(c.Request.Context())

	var table models.PoolTable
	if err := db.First(&table, tableID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}
	var sessions int64
	if err := db.Model(&models.TableSession{}).Where("table_id = ?", table.ID).Count(&sessions).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if sessions > 0 {
		utils.RespondError(c, http.StatusConflict, errors.New("table has session history and cannot be deleted"))
		return
	}
	if err := db.Delete(&table).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.WithField("table_id", table.ID).Info("Table deleted")
	utils.RespondJSON(c, http.StatusOK, "Table deleted", gin.H{
		"id": table.ID,
	})
}

// MarkTableClean returns a dirty table to service after a released session.
func (tc *TableController) MarkTableClean(c *gin.Context) {
	tableID, ok := uintParam(c, "table_id")
	if !ok {
		return
	}
	db := tc.DB.WithContext(c.Request.Context())

	res := db.Model(&models.PoolTable{}).
		Where("id = ? AND status = ?", tableID, models.TableStatusDirty).
		Updates(map[string]interface{}{
			"status":     models.TableStatusAvailable,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		utils.RespondError(c, http.StatusInternalServerError, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("table is not dirty"))
		return
	}

	var table models.PoolTable
	if err := db.First(&table, tableID).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	tc.Hub.BroadcastTableUpdate(table)
	utils.RespondJSON(c, http.StatusOK, "Table marked as clean", table)
}

// getDashboardStats counts tables per status.
func (tc *TableController) getDashboardStats() map[string]interface{} {
	var rows []struct {
		Status string
		Count  int64
	}
	tc.DB.Model(&models.PoolTable{}).Select("status, COUNT(*) AS count").Group("status").Scan(&rows)

	stats := map[string]interface{}{
		models.TableStatusAvailable: int64(0),
		models.TableStatusOccupied:  int64(0),
		models.TableStatusDirty:     int64(0),
	}
	var total int64
	for _, r := range rows {
		stats[r.Status] = r.Count
		total += r.Count
	}
	stats["total"] = total
	return stats
}
