// Package main is the entry point for the involvex server.
//
// Its job is deliberately small: load configuration from the environment,
// build the logger, and hand everything to internal/server. All actual
// logic lives in the internal packages.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/involvex/involvex-server/internal/server"
)

func main() {
	// A .env file is a convenience for local development; in production
	// the environment is set by the deployment, so a missing file is fine.
	_ = godotenv.Load()

	logger := newLogger()

	port := 8080
	if portStr := os.Getenv("PORT"); portStr != "" {
		var err error
		port, err = strconv.Atoi(portStr)
		if err != nil {
			logger.Error("invalid PORT value", slog.String("value", portStr))
			os.Exit(1)
		}
	}

	dbPath := "data/involvex.db"
	if envDB := os.Getenv("DB_PATH"); envDB != "" {
		dbPath = envDB
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", filepath.Dir(dbPath)),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// JWT_SECRET should be a long random string, e.g.:
	//   JWT_SECRET=$(openssl rand -hex 32)
	jwtSecret := os.Getenv("JWT_SECRET")

	discordCallbackURL := os.Getenv("DISCORD_CALLBACK_URL")
	if discordCallbackURL == "" {
		discordCallbackURL = fmt.Sprintf("http://localhost:%d/auth/discord/callback", port)
	}

	cfg := server.Config{
		Port:                 port,
		DBPath:               dbPath,
		JWTSecret:            jwtSecret,
		DiscordClientID:      os.Getenv("DISCORD_CLIENT_ID"),
		DiscordClientSecret:  os.Getenv("DISCORD_CLIENT_SECRET"),
		DiscordCallbackURL:   discordCallbackURL,
		NotificationsEnabled: os.Getenv("NOTIFICATIONS_ENABLED") != "false",
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// newLogger builds the process-wide slog logger. When LOG_FILE is set, logs
// additionally go to a size-rotated file; stdout always gets a copy.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stdout
	if logFile := os.Getenv("LOG_FILE"); logFile != "" {
		w = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
