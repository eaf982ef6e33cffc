package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"govor-biljaka/api"
	"govor-biljaka/capture"
	"govor-biljaka/catalog"
	"govor-biljaka/config"
	"govor-biljaka/i18n"
	"govor-biljaka/observation"
	"govor-biljaka/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer logger.Sync()

	images, db, err := openBackend(cfg, logger)
	if err != nil {
		logger.Fatal("failed to open storage backend",
			zap.String("backend", cfg.StorageBackend), zap.Error(err))
	}
	defer db.Close()

	plants, err := catalog.Load()
	if err != nil {
		logger.Fatal("failed to load plant catalog", zap.Error(err))
	}

	builder := capture.NewBuilder(cfg.Image.MaxBytes, cfg.Image.MaxEdge)
	svc := observation.NewService(builder, images, db, logger)

	sweeper, err := observation.StartSweeper(svc, cfg.Sweep.Schedule, cfg.Sweep.Grace, logger)
	if err != nil {
		logger.Fatal("invalid orphan sweep schedule",
			zap.String("schedule", cfg.Sweep.Schedule), zap.Error(err))
	}

	if !cfg.Auth.Enabled() {
		logger.Warn("JWT_SECRET is not set; deletes are open to anyone")
	}

	defaultLang, ok := i18n.Parse(cfg.DefaultLang)
	if !ok {
		defaultLang = i18n.Serbian
	}

	handlers := &api.Handlers{
		Observations: svc,
		Catalog:      plants,
		Auth:         cfg.Auth,
		DefaultLang:  defaultLang,
		Log:          logger,
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handlers.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("starting server",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("backend", cfg.StorageBackend),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	if sweeper != nil {
		<-sweeper.Stop().Done()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// openBackend returns the image store and observation database selected by
// STORAGE_BACKEND. The cosmos and mongo backends keep their images in Azure
// Blob Storage when an account is configured and on local disk otherwise.
func openBackend(cfg *config.Config, logger *zap.Logger) (storage.ImageStorage, storage.ObservationDB, error) {
	switch cfg.StorageBackend {
	case config.BackendLocal:
		images, err := storage.NewLocalImageStorage(filepath.Join(cfg.LocalDir, "images"))
		if err != nil {
			return nil, nil, err
		}
		db, err := storage.OpenBoltObservationDB(filepath.Join(cfg.LocalDir, "observations.db"))
		if err != nil {
			return nil, nil, err
		}
		return images, db, nil

	case config.BackendAzureBlob:
		blobs, err := storage.NewAzureBlobStorage(cfg.Azure.URL(), cfg.Azure.Container, logger)
		if err != nil {
			return nil, nil, err
		}
		return blobs, blobs, nil

	case config.BackendCosmos:
		images, err := imageStore(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		db, err := storage.NewCosmosObservationDB(storage.CosmosOptions{
			Endpoint:         cfg.Cosmos.Endpoint,
			Key:              cfg.Cosmos.Key,
			ConnectionString: cfg.Cosmos.ConnectionString,
			Database:         cfg.Cosmos.Database,
			Container:        cfg.Cosmos.Container,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return images, db, nil

	case config.BackendMongo:
		images, err := imageStore(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		db := storage.NewMongoObservationDB(logger)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Mongo.Timeout)
		defer cancel()
		if err := db.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection); err != nil {
			return nil, nil, err
		}
		return images, db, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

func imageStore(cfg *config.Config, logger *zap.Logger) (storage.ImageStorage, error) {
	if cfg.Azure.Enabled() {
		return storage.NewAzureBlobStorage(cfg.Azure.URL(), cfg.Azure.Container, logger)
	}
	return storage.NewLocalImageStorage(filepath.Join(cfg.LocalDir, "images"))
}
