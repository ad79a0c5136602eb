package main

import (
	"context"
	"fmt"

	"laurels/internal/catalog"
	"laurels/internal/coordinator"
	"laurels/internal/database"
	"laurels/internal/models"
	"laurels/internal/notify"
	"laurels/internal/progress"
	"laurels/internal/rewards"
	"laurels/pkg/config"
	"laurels/pkg/logger"
)

// engine bundles the wired components shared by serve and replay
type engine struct {
	cfg         *config.Config
	catalog     *catalog.Catalog
	dispatcher  *rewards.Dispatcher
	ledger      *rewards.Ledger
	bus         *notify.Bus
	coordinator *coordinator.Coordinator
	db          *database.DB
	log         *logger.Logger
}

// buildEngine wires the catalog, storage, dispatcher and coordinator from
// cfg. With ephemeral set progress is kept in memory only.
func buildEngine(ctx context.Context, cfg *config.Config, ephemeral bool) (*engine, error) {
	e := &engine{
		cfg: cfg,
		bus: notify.NewBus(logger.New("NOTIFY")),
		log: logger.New("ENGINE"),
	}

	e.catalog = catalog.New(logger.New("CATALOG"))
	count, err := e.catalog.Load(cfg.Catalog.Path)
	if err != nil {
		e.log.Warn("Catalog: %v", err)
	}
	for _, r := range e.catalog.Rejected() {
		e.log.Warn("Rejected achievement %s: %s", r.ID, r.Reason)
	}
	e.log.Info("Indexed %d achievements", count)

	var storage progress.Storage
	var sink rewards.HistorySink
	switch {
	case ephemeral:
		storage = progress.NewMemoryStorage()
	case cfg.Persistence.Backend == "sqlite":
		db, err := database.Open(cfg.Persistence.Path, logger.New("DB"))
		if err != nil {
			return nil, fmt.Errorf("failed to open progress database: %w", err)
		}
		e.db = db
		storage = progress.NewSQLiteStorage(db, cfg.Persistence.Profile)
		if cfg.Rewards.PersistHistory {
			sink = rewards.NewSQLiteHistory(db)
		}
	default:
		storage = progress.NewFileStorage(cfg.Persistence.Path)
	}
	e.log.Info("Progress storage: %s", storage)

	e.dispatcher = rewards.NewDispatcher(rewards.Options{
		HistoryLimit: cfg.Rewards.HistoryLimit,
		Sink:         sink,
		Logger:       logger.New("REWARDS"),
	})
	e.ledger = rewards.NewLedger()
	e.ledger.RegisterAll(e.dispatcher)
	e.dispatcher.OnValidationFailed(func(achievementID string, result rewards.ValidationResult) {
		e.log.Warn("Rewards for %s failed validation: %v", achievementID, result.Errors)
	})

	e.coordinator = coordinator.New(
		e.catalog,
		progress.NewStore(storage, logger.New("PROGRESS")),
		e.dispatcher,
		e.bus,
		logger.New("COORDINATOR"),
		coordinator.Options{
			AutoGrant:        cfg.Rewards.AutoGrant,
			BatchPerEvent:    cfg.Rewards.BatchPerEvent,
			SaveOnCompletion: cfg.Persistence.SaveOnCompletion && !ephemeral,
		},
	)
	if err := e.coordinator.Start(ctx); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

// backups returns a backup manager for the sqlite backend, or nil
func (e *engine) backups() (*database.BackupManager, error) {
	if e.db == nil {
		return nil, nil
	}
	cfg := database.DefaultBackupConfig(e.cfg.Persistence.Path)
	if e.cfg.Persistence.BackupDir != "" {
		cfg.BackupDir = e.cfg.Persistence.BackupDir
	}
	cfg.MaxBackups = e.cfg.Persistence.MaxBackups
	cfg.CompressionEnabled = e.cfg.Persistence.CompressBackups
	return database.NewBackupManager(e.db, cfg, logger.New("BACKUP"))
}

// handle runs one event and logs any evaluation errors
func (e *engine) handle(ctx context.Context, event models.GameEventData) coordinator.Outcome {
	out := e.coordinator.HandleEvent(ctx, event)
	for _, err := range out.Errors {
		e.log.Warn("Event %s: %v", event.EventType, err)
	}
	return out
}

// Close releases the database, if one was opened
func (e *engine) Close() {
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			e.log.Error("Error closing database: %v", err)
		}
	}
}
