package main

import (
	"net/http"
	"os"
	"strings"
	"time"

	"inkwell/config/database"
	"inkwell/internal/auth"
	"inkwell/pkg/logger"
	"inkwell/router"

	"github.com/joho/godotenv"
)

const tokenTTL = 7 * 24 * time.Hour

func main() {
	logger.Init()
	defer logger.Log.Sync()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		logger.Sugar.Info("No .env file found, using environment variables from OS")
	}

	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		logger.Sugar.Fatal("JWT_SECRET environment variable not set")
	}
	verifier := auth.NewVerifier(secret, tokenTTL)

	db := database.Connect()
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logger.Sugar.Fatalf("Failed to migrate database: %v", err)
	}

	handler := router.Setup(db, verifier)

	addr := strings.TrimSpace(os.Getenv("LISTEN_ADDR"))
	if addr == "" {
		addr = ":8080"
	}

	logger.Sugar.Infof("Backend listening on %s", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Sugar.Fatalf("Server stopped: %v", err)
	}
}
