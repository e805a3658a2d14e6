package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"minidbms/config"
	"minidbms/database"
	"minidbms/logger"
	"minidbms/server"
)

func main() {
	// 1. Load Config
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Initialize DB
	db, err := database.New(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer db.Close()

	// 3. Start TCP Server (blocks until a signal arrives)
	srv := server.New(db.Interpreter())
	if err := srv.ListenAndServe(ctx, ":"+cfg.Port); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("shutting down")
}
