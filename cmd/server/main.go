package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/makansplit/backend/internal/localstore"
	"github.com/makansplit/backend/internal/middleware"
	"github.com/makansplit/backend/internal/ocr"
	"github.com/makansplit/backend/internal/payment"
	"github.com/makansplit/backend/internal/service"
	"github.com/makansplit/backend/internal/share"
	"github.com/makansplit/backend/internal/split"
	"github.com/makansplit/backend/internal/storage/sqlite"
	"github.com/makansplit/backend/pkg/logging"
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	logging.Setup("makansplit")

	port := getEnv("PORT", "8080")
	dbPath := getEnv("DB_PATH", "./data/splits.db")
	localStatePath := getEnv("LOCAL_STATE_PATH", "./data/local_state.json")
	shareSecret := getEnv("SHARE_SECRET", "")
	geminiKey := getEnv("GEMINI_API_KEY", "")

	if shareSecret == "" {
		slog.Error("SHARE_SECRET must be set")
		os.Exit(1)
	}

	store, err := sqlite.New(dbPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", dbPath)

	local, err := localstore.Open(localStatePath)
	if err != nil {
		slog.Error("Failed to open local state", "error", err)
		os.Exit(1)
	}

	manager := split.NewManager(store, local)
	if err := manager.LoadCurrent(context.Background()); err != nil {
		// Startup continues with an empty session; the user can create a
		// new split or retry once the store is reachable.
		slog.Warn("Failed to restore current split", "error", err)
	}

	var scannerOpts []ocr.Option
	if model := getEnv("GEMINI_MODEL", ""); model != "" {
		scannerOpts = append(scannerOpts, ocr.WithModel(model))
	}
	scanner := ocr.NewGeminiClient(geminiKey, scannerOpts...)
	if geminiKey == "" {
		slog.Warn("GEMINI_API_KEY not set, receipt scanning disabled")
	}

	svc := service.New(
		manager,
		payment.NewTracker(local),
		scanner,
		share.NewTokenManager(shareSecret, 7*24*time.Hour),
		store,
	)

	router := svc.Router()
	handler := middleware.Logging(middleware.CORS(router))

	// h2c allows HTTP/2 without TLS for clients behind a terminating proxy.
	h2cHandler := h2c.NewHandler(handler, &http2.Server{})

	addr := fmt.Sprintf(":%s", port)
	slog.Info("Server starting", "address", addr, "url", fmt.Sprintf("http://localhost%s", addr))
	if err := http.ListenAndServe(addr, h2cHandler); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
