package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"laurels/handlers"
	"laurels/internal/catalog"
	"laurels/internal/network"
	"laurels/internal/scheduler"
	"laurels/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

var addr string

// serveCmd runs the HTTP API, websocket hub, scheduler and catalog watcher
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the achievement server",
	Long: `Run the HTTP API and websocket notification hub.

Progress is saved on completion, by the autosave job and on shutdown.
With catalog.watch enabled the catalog is reloaded when the file changes.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&addr, "addr", "", "HTTP service address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.New("SERVER")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := buildEngine(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer e.Close()

	var (
		ws  http.Handler
		hub *network.Hub
	)
	if cfg.Notifications.WebSocket {
		hub = network.NewHub(cfg.Notifications.BufferSize, logger.New("HUB"))
		unsubscribe := e.bus.Subscribe(hub)
		defer func() {
			unsubscribe()
			hub.Close()
		}()
		ws = hub
	}

	if cfg.Catalog.Watch {
		watcher, err := catalog.NewWatcher(cfg.Catalog.Path, 0, func(path string) {
			if _, err := e.coordinator.ReloadCatalog(path); err != nil {
				log.Error("Catalog reload failed, keeping current definitions: %v", err)
			}
		}, logger.New("CATALOG"))
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	backups, err := e.backups()
	if err != nil {
		return err
	}
	jobCfg := scheduler.Config{
		AutosaveInterval:   cfg.Scheduler.AutosaveInterval,
		ResetCheckInterval: cfg.Scheduler.ResetCheckInterval,
	}
	if backups != nil {
		jobCfg.BackupInterval = cfg.Scheduler.BackupInterval
		jobCfg.Backup = func(ctx context.Context) error {
			_, err := backups.CreateBackup(ctx, "", "scheduled")
			return err
		}
	}
	jobs, err := scheduler.New(e.coordinator, jobCfg, logger.New("SCHEDULER"))
	if err != nil {
		return err
	}

	serverAddr := cfg.GetAddr()
	if addr != "" {
		serverAddr = addr
	}
	admin := handlers.NewAdminHandler(e.coordinator, handlers.AdminOptions{
		CatalogPath: cfg.Catalog.Path,
		Hub:         hub,
		Backups:     backups,
		Jobs:        jobs.Jobs(),
	}, logger.New("ADMIN"))

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      handlers.NewRouter(e.coordinator, ws, logger.New("API"), admin),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     logger.AsStdLogger(log),
	}

	log.Info("Starting laurels on %s", serverAddr)
	log.Info("Environment: %s", cfg.Server.Environment)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		select {
		case <-admin.ShutdownRequested():
			log.Info("Received admin shutdown request")
			cancel()
		case <-gctx.Done():
		}
		return nil
	})
	g.Go(func() error {
		log.Info("Server listening on %s", serverAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		jobs.Start()
		<-gctx.Done()
		return jobs.Shutdown()
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("Server forced to shutdown: %v", err)
		}
		return nil
	})

	runErr := g.Wait()

	saveCtx, cancelSave := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelSave()
	if err := e.coordinator.Save(saveCtx); err != nil {
		log.Error("Final save failed: %v", err)
	} else {
		log.Info("Progress saved")
	}

	if runErr != nil {
		return runErr
	}
	log.Info("Server gracefully stopped")
	return nil
}
