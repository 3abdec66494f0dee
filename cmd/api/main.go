package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gravadigital/polls-api/internal/archive"
	"github.com/gravadigital/polls-api/internal/config"
	"github.com/gravadigital/polls-api/internal/logger"
	"github.com/gravadigital/polls-api/internal/server"
	"github.com/gravadigital/polls-api/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()

	logger.Initialize(cfg.Server.LogLevel)
	log := logger.Get()

	log.Info("Starting Polls API", "environment", cfg.Server.Environment, "driver", cfg.DB.Driver)

	factory, err := storage.FromConfig(cfg)
	if err != nil {
		log.Fatal("Invalid storage configuration", "error", err)
	}

	repos, err := factory.CreateContainer(cfg)
	if err != nil {
		log.Fatal("Failed to initialize storage", "error", err)
	}

	archiver, err := archive.New(context.Background(), cfg)
	if err != nil {
		_ = repos.Close()
		log.Fatal("Failed to initialize results archive", "error", err)
	}

	srv, err := server.New(cfg, repos, archiver)
	if err != nil {
		_ = repos.Close()
		log.Fatal("Failed to create server", "error", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("Received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			log.Error("Server stopped unexpectedly", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Stop(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	if err := repos.Close(); err != nil {
		log.Error("Failed to close storage", "error", err)
	}

	log.Info("Server exited")
}
