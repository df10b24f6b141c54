package main

import (
	"context"
	"fmt"

	"github.com/fast-track-solutions1/msi-teamhub/internal/config"
	"github.com/fast-track-solutions1/msi-teamhub/internal/db"
	"github.com/fast-track-solutions1/msi-teamhub/internal/export"
	"github.com/fast-track-solutions1/msi-teamhub/internal/ingestion"
	"github.com/fast-track-solutions1/msi-teamhub/internal/metrics"
	"github.com/fast-track-solutions1/msi-teamhub/internal/registry"
	"github.com/fast-track-solutions1/msi-teamhub/internal/repository"
	"github.com/fast-track-solutions1/msi-teamhub/internal/repository/memory"
	"github.com/fast-track-solutions1/msi-teamhub/internal/repository/sqlite"
	"github.com/fast-track-solutions1/msi-teamhub/migrations"

	"github.com/sirupsen/logrus"
)

// app bundles the wired collaborators shared by every command.
type app struct {
	cfg     config.Config
	logger  *logrus.Logger
	metrics *metrics.Metrics
	service *ingestion.Service
	reports *export.Service
	close   func()
}

func newApp(ctx context.Context, migrate bool) (*app, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, err
	}
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	store, runs, closeStore, err := openStores(ctx, cfg, logger, migrate)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	service := ingestion.NewService(registry.Default(), store, runs, logger, ingestion.Options{
		BatchTransaction: cfg.Import.BatchTransaction,
		MaxErrorDetails:  cfg.Import.MaxErrorDetails,
		HistoryLimit:     cfg.Import.HistoryLimit,
		Observer:         m,
	})

	return &app{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		service: service,
		reports: export.NewService(runs, logger),
		close:   closeStore,
	}, nil
}

func openStores(
	ctx context.Context,
	cfg config.Config,
	logger logrus.FieldLogger,
	migrate bool,
) (repository.RecordStore, repository.ImportRunRepository, func(), error) {
	switch cfg.Store.Driver {
	case "memory":
		logger.Warn("using in-memory store, data is lost on exit")
		return memory.NewRecordStore(), memory.NewImportRunRepository(), func() {}, nil

	case "sqlite":
		conn, err := sqlite.Open(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.WithField("path", cfg.Store.SQLitePath).Info("using sqlite store")
		return sqlite.NewRecordStore(conn), sqlite.NewImportRunRepository(conn), func() { _ = conn.Close() }, nil

	case "postgres":
		if migrate {
			if err := db.RunMigrations(cfg.Database, migrations.FS, logger); err != nil {
				return nil, nil, nil, err
			}
		}
		conn, err := db.NewConnection(ctx, cfg.Database)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.WithField("host", cfg.Database.Host).Info("connected to postgres")
		return repository.NewRecordStore(conn.Pool), repository.NewImportRunRepository(conn.Pool), conn.Close, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
