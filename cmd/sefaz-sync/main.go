package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/hypernova-labs/fiscal-hub/internal/config"
	"github.com/hypernova-labs/fiscal-hub/internal/database"
	"github.com/hypernova-labs/fiscal-hub/internal/sefaz"
	"github.com/sirupsen/logrus"
)

func main() {
	once := flag.Bool("once", false, "executa um único ciclo de sincronização e sai")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if cfg.Sefaz.CNPJ == "" {
		logger.Fatal("SEFAZ_CNPJ not configured")
	}

	client, err := sefaz.NewClient(cfg, logger)
	if err != nil {
		logger.Fatalf("Error initializing SEFAZ client: %v", err)
	}

	// Redis guarda o cursor quando disponível; sem ele o arquivo de
	// estado local cumpre o mesmo papel
	var checkpoint sefaz.Checkpoint
	if redis, err := database.ConnectRedis(cfg); err == nil {
		defer redis.Close()
		checkpoint = sefaz.NewRedisCheckpoint(redis)
		logger.Info("Using Redis NSU checkpoint")
	} else {
		checkpoint = sefaz.NewFileCheckpoint(cfg.Sefaz.StateFile)
		logger.WithError(err).Warn("Redis unavailable, using file NSU checkpoint")
	}

	syncer := sefaz.NewSyncer(client, checkpoint, cfg.Sefaz.OutputDir, cfg.Sefaz.Interval, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		if err := syncer.SyncOnce(ctx); err != nil {
			logger.Fatalf("Sync failed: %v", err)
		}
		return
	}

	logger.Infof("Starting distribution sync every %s", cfg.Sefaz.Interval)
	if err := syncer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Sync loop stopped: %v", err)
	}
	logger.Info("Sync stopped")
}
