package main

import (
	"log/slog"
	"os"
	"strings"

	"billsplit/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var db *gorm.DB

func initDB(dsn string) {
	var err error
	if dsn == "" {
		slog.Error("database DSN is not set; this service requires a Postgres DSN (BS_DB_DSN)")
		os.Exit(1)
	}
	db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		slog.Error("failed to connect postgres database", "error", err)
		os.Exit(1)
	}
	// Control schema migrations with env DB_AUTO_MIGRATE (default true). Any
	// permission errors are logged and ignored.
	shouldMigrate := true
	if v := os.Getenv("DB_AUTO_MIGRATE"); v != "" {
		lv := strings.ToLower(v)
		if lv == "false" || lv == "0" || lv == "no" {
			shouldMigrate = false
		}
	}
	// Roles master table first so the users FK can be applied safely.
	if shouldMigrate {
		if err := db.AutoMigrate(&models.Role{}); err != nil {
			slog.Warn("migration warning (roles)", "error", err)
		}
		// Migrate models individually so a failure on one doesn't block others
		if err := db.AutoMigrate(&models.User{}); err != nil {
			slog.Warn("migration warning (users)", "error", err)
		}
		if err := db.AutoMigrate(&models.RefreshToken{}); err != nil {
			slog.Warn("migration warning (refresh_tokens)", "error", err)
		}
		if err := db.AutoMigrate(&models.Receipt{}); err != nil {
			slog.Warn("migration warning (receipts)", "error", err)
		}
		if err := db.AutoMigrate(&models.LineItem{}); err != nil {
			slog.Warn("migration warning (line_items)", "error", err)
		}
		if err := db.AutoMigrate(&models.Claim{}); err != nil {
			slog.Warn("migration warning (claims)", "error", err)
		}
	}
	seedDB()
}

func seedDB() {
	// Ensure master roles exist
	roles := []models.Role{{Name: "administrator", Description: "full access"}, {Name: "user", Description: "regular user"}}
	for _, r := range roles {
		var cnt int64
		db.Model(&models.Role{}).Where("name = ?", r.Name).Count(&cnt)
		if cnt == 0 {
			db.Create(&r)
		}
	}

	// Seed an admin account once, for bootstrapping
	var count int64
	db.Model(&models.User{}).Where("username = ?", "admin").Count(&count)
	if count == 0 {
		var role models.Role
		if err := db.Where("name = ?", "administrator").First(&role).Error; err != nil {
			slog.Warn("failed to find administrator role", "error", err)
		}
		rid := role.ID
		admin := models.User{
			Username: "admin",
			RoleID:   &rid,
		}
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
		admin.HashedPassword = hashedPassword
		db.Create(&admin)
		slog.Info("seeded admin user", "username", "admin")
	}
}
