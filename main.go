package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"billsplit/pkg/allocation"
	"billsplit/pkg/cache"
)

// Package-level handles, set once in main before any request is served.
var (
	alloc     *allocation.Service
	readCache cache.Cache
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	setupLogger(cfg.LogLevel)

	secret := cfg.JWTSecret
	if secret == "" {
		secret = "dev-insecure-secret-change" // development fallback
	}
	jwtSecret = []byte(secret)
	claimLimiters.SetLimit(cfg.ClaimRPS, cfg.ClaimBurst)

	// Support a lightweight migrate command: `./billsplit migrate`
	// Runs AutoMigrate and seeding then exits. Useful for CI or manual setup.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		initDB(cfg.DBDSN)
		fmt.Println("migration and seeding completed")
		return
	}

	initDB(cfg.DBDSN)

	readCache = cache.NewMemory(time.Duration(cfg.CacheTTLMinutes) * time.Minute)
	alloc = allocation.NewService(db, readCache)
	receiptTTL = time.Duration(cfg.ReceiptTTLHours) * time.Hour

	r := gin.New()
	r.Use(requestLogger(), metricsMiddleware(), gin.Recovery())

	setupRoutes(r)

	slog.Info("listening", "addr", cfg.Addr)
	if err := r.Run(cfg.Addr); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// setupLogger installs slog with a tinted handler on terminals and JSON
// otherwise.
func setupLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	var handler slog.Handler
	if isatty.IsTerminal(os.Stderr.Fd()) {
		handler = tint.NewHandler(os.Stderr, &tint.Options{Level: lvl})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
}
