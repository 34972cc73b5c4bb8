package main

import (
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"golang.org/x/exp/slog"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		AddSource: false,
		Level:     slog.LevelDebug,
	}))

	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file loaded", "error", err)
	}

	if os.Getenv(JWTSecretEnv) == "" {
		slog.Error("JWT signing secret is not configured", "env", JWTSecretEnv)
		os.Exit(1)
	}

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "./uploads"
	}

	if err := os.MkdirAll(uploadDir, 0o770); err != nil {
		slog.Error("Failed to create the upload directory", "dir", uploadDir, "error", err)
		os.Exit(1)
	}

	db, err := NewPostgreSQLDatabase()
	if err != nil {
		slog.Error("Failed to init the database", "error", err)
		os.Exit(1)
	}

	server := NewAPIServer(db, os.Getenv("APP_HOST")+":"+os.Getenv("APP_PORT"), uploadDir)
	if err := server.Run(); err != nil {
		slog.Error("Server run error", "error", err)
		os.Exit(1)
	}
}
