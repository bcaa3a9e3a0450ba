package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/billiard-pos/models"
	"github.com/yeremiapane/billiard-pos/services"
	"github.com/yeremiapane/billiard-pos/utils"
	"gorm.io/gorm"
)

type AdminController struct {
	DB      *gorm.DB
	Exports *services.ExportService
}

func NewAdminController(db *gorm.DB, exports *services.ExportService) *AdminController {
	return &AdminController{DB: db, Exports: exports}
}

type dashboardStats struct {
	OrderStats   map[string]int64 `json:"order_stats"`
	TableStats   map[string]int64 `json:"table_stats"`
	ActiveTables int64            `json:"active_sessions"`
	TotalRevenue int64            `json:"total_revenue"`
	TodayRevenue int64            `json:"today_revenue"`
	ARBalance    int64            `json:"ar_outstanding"`
}

// GetDashboardStats summarizes orders, tables, revenue and open AR.
func (ac *AdminController) GetDashboardStats(c *gin.Context) {
	db := ac.DB.WithContext(c.Request.Context())
	startOfDay := time.Now().Truncate(24 * time.Hour)

	stats := dashboardStats{
		OrderStats: map[string]int64{},
		TableStats: map[string]int64{},
	}
	var counts []struct {
		Status string
		Count  int64
	}
	if err := db.Model(&models.Order{}).Select("status, COUNT(*) AS count").Group("status").Scan(&counts).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	for _, r := range counts {
		stats.OrderStats[r.Status] = r.Count
	}

	counts = nil
	if err := db.Model(&models.PoolTable{}).Select("status, COUNT(*) AS count").Group("status").Scan(&counts).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	for _, r := range counts {
		stats.TableStats[r.Status] = r.Count
	}

	db.Model(&models.TableSession{}).
		Where("status IN ?", []string{models.SessionStatusOpen, models.SessionStatusPaused}).
		Count(&stats.ActiveTables)
	db.Model(&models.Payment{}).Select("COALESCE(SUM(amount), 0)").Scan(&stats.TotalRevenue)
	db.Model(&models.Payment{}).Where("paid_at >= ?", startOfDay).Select("COALESCE(SUM(amount), 0)").Scan(&stats.TodayRevenue)
	db.Model(&models.ArLedgerEntry{}).Select("COALESCE(SUM(amount_cents), 0)").Scan(&stats.ARBalance)

	utils.RespondJSON(c, http.StatusOK, "Dashboard stats retrieved successfully", stats)
}

// ExportTransactions streams payments and ledger movements as CSV, filtered
// by ?search= and ?type=.
func (ac *AdminController) ExportTransactions(c *gin.Context) {
	filter := services.TransactionFilter{
		Search: c.Query("search"),
		Type:   c.Query("type"),
	}
	rows, err := ac.Exports.Transactions(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("transactions-%s.csv", time.Now().Format("20060102-150405"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)
	if err := services.WriteTransactionsCSV(c.Writer, rows); err != nil {
		utils.ErrorLogger.WithError(err).Error("Failed to write transactions export")
		return
	}
	utils.InfoLogger.WithFields(logrus.Fields{
		"rows":   len(rows),
		"search": filter.Search,
		"type":   filter.Type,
	}).Info("Transactions exported")
}

// GetAuditLogs lists audit records, newest first, filtered by ?action=,
// ?entity_type= and ?entity_id=.
func (ac *AdminController) GetAuditLogs(c *gin.Context) {
	q := ac.DB.WithContext(c.Request.Context())
	if action := c.Query("action"); action != "" {
		q = q.Where("action_type = ?", action)
	}
	if entityType := c.Query("entity_type"); entityType != "" {
		q = q.Where("entity_type = ?", entityType)
	}
	if entityID := c.Query("entity_id"); entityID != "" {
		q = q.Where("entity_id = ?", entityID)
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var logs []models.AuditLog
	if err := q.Order("created_at desc, id desc").Limit(limit).Find(&logs).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Audit logs", logs)
}
