package main

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/billiard-pos/config"
	"github.com/yeremiapane/billiard-pos/database"
	"github.com/yeremiapane/billiard-pos/kds"
	"github.com/yeremiapane/billiard-pos/models"
	"github.com/yeremiapane/billiard-pos/router"
	"github.com/yeremiapane/billiard-pos/services"
	"github.com/yeremiapane/billiard-pos/utils"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to load config: %v", err)
	}
	utils.SetLevel(cfg.LogLevel)
	utils.SetJWTSecret(cfg.JWTSecret)
	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := config.InitDB(cfg.DB)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	autoMigrate(db, cfg.DB.Driver)

	audit := services.NewAuditLogger(db, cfg.AuditBuffer, nil)
	defer audit.Close()

	hub := kds.NewHub()
	svcs := services.New(db, audit, hub, services.Options{
		TaxRate:      cfg.VenueTaxRate,
		CancelWindow: cfg.CancelWindow,
		UseProcedure: cfg.DB.Driver == "mysql",
	})

	r := router.SetupRouter(db, svcs, hub, cfg)
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		utils.ErrorLogger.WithError(err).Warn("Failed to set trusted proxies")
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"port":   cfg.Port,
		"driver": cfg.DB.Driver,
	}).Info("Listening")
	if err := r.Run(":" + cfg.Port); err != nil {
		utils.ErrorLogger.Fatal(err)
	}
}

func autoMigrate(db *gorm.DB, driver string) {
	if err := db.AutoMigrate(models.All()...); err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}
	utils.InfoLogger.Info("AutoMigrate completed.")

	// SQLite has no stored procedures; cancellation falls back to a Go transaction.
	if driver != "mysql" {
		return
	}
	if err := database.InstallProcedures(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to install stored procedures: %v", err)
	}
}
