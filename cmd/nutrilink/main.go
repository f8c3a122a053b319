package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/nutrilink/nutrilink/internal/gateway"
	"github.com/nutrilink/nutrilink/internal/media"
	"github.com/nutrilink/nutrilink/internal/models"
	"github.com/nutrilink/nutrilink/internal/storage"
	"github.com/nutrilink/nutrilink/pkg/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds the wired components every command shares.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   storage.Storage
	gateway *gateway.Client
}

func newApp(configPath string) (*app, error) {
	// A .env file is optional; environment wins either way.
	godotenv.Load()

	// Initialize logger
	logger, _ := zap.NewProduction()

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize storage
	var store storage.Storage
	if cfg.Storage.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		store, err = storage.NewBadgerStorage(cfg.Storage.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		gateway: gateway.NewClient(cfg.Backend, logger),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Failed to close storage", zap.Error(err))
	}
	a.logger.Sync()
}

// identity returns the stored session identity, falling back to the demo
// account when nobody has logged in.
func (a *app) identity() *models.Identity {
	identity, err := a.store.GetIdentity()
	if err != nil {
		return &models.Identity{UserID: "demo_user", FullName: "User Account"}
	}
	return identity
}

func (a *app) mediaProvider() media.Provider {
	if a.cfg.Media.Provider == "ffmpeg" {
		return media.NewFFmpegProvider(
			a.cfg.Media.FFmpegPath,
			a.cfg.Media.CameraDevice,
			a.cfg.Media.AudioDevice,
			a.logger,
		)
	}
	return media.NewCannedProvider()
}
