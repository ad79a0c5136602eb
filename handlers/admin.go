package handlers

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"laurels/internal/coordinator"
	"laurels/internal/database"
	"laurels/internal/network"
	"laurels/pkg/logger"
)

// AdminOptions are the optional components the admin API reports on
type AdminOptions struct {
	CatalogPath string
	Hub         *network.Hub
	Backups     *database.BackupManager
	Jobs        []string
}

// AdminHandler serves operational endpoints: status, catalog reload,
// backups, notification history and shutdown
type AdminHandler struct {
	engine  *coordinator.Coordinator
	opts    AdminOptions
	started time.Time
	logger  *logger.Logger

	shutdownChan chan struct{}
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(engine *coordinator.Coordinator, opts AdminOptions, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		engine:       engine,
		opts:         opts,
		started:      time.Now(),
		logger:       logger.OrDefault(log, "ADMIN"),
		shutdownChan: make(chan struct{}, 1),
	}
}

// RegisterRoutes registers admin routes
func (ah *AdminHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/admin/status", ah.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/admin/catalog/reload", ah.handleReload).Methods(http.MethodPost)
	r.HandleFunc("/api/admin/backups", ah.handleListBackups).Methods(http.MethodGet)
	r.HandleFunc("/api/admin/backups", ah.handleCreateBackup).Methods(http.MethodPost)
	r.HandleFunc("/api/admin/notifications", ah.handleNotifications).Methods(http.MethodGet)
	r.HandleFunc("/api/admin/shutdown", ah.handleShutdown).Methods(http.MethodPost)
}

// ShutdownRequested is signalled once when an admin asks the server to stop
func (ah *AdminHandler) ShutdownRequested() <-chan struct{} {
	return ah.shutdownChan
}

func (ah *AdminHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	all := ah.engine.AllProgress()
	completed := 0
	for _, p := range all {
		if p.EverCompleted() {
			completed++
		}
	}

	response := map[string]interface{}{
		"status":     "running",
		"timestamp":  time.Now().UTC(),
		"uptime":     time.Since(ah.started).Round(time.Second).String(),
		"goroutines": runtime.NumGoroutine(),
		"memory_mb":  float64(mem.Alloc) / 1024 / 1024,
		"catalog": map[string]interface{}{
			"path":         ah.opts.CatalogPath,
			"achievements": ah.engine.Catalog().Count(),
			"rejected":     ah.engine.Catalog().Rejected(),
		},
		"progress": map[string]interface{}{
			"records":   len(all),
			"completed": completed,
		},
		"rewards": ah.engine.Dispatcher().Stats(),
		"jobs":    ah.opts.Jobs,
	}
	if ah.opts.Hub != nil {
		response["notifications"] = ah.opts.Hub.Stats()
	}
	sendJSON(w, ah.logger, http.StatusOK, response)
}

func (ah *AdminHandler) handleReload(w http.ResponseWriter, r *http.Request) {
	if ah.opts.CatalogPath == "" {
		sendError(w, ah.logger, http.StatusServiceUnavailable, "No catalog path configured")
		return
	}
	ah.logger.Info("Admin catalog reload requested")
	count, err := ah.engine.ReloadCatalog(ah.opts.CatalogPath)
	if err != nil {
		sendError(w, ah.logger, http.StatusUnprocessableEntity, err.Error())
		return
	}
	sendJSON(w, ah.logger, http.StatusOK, map[string]interface{}{
		"achievements": count,
		"rejected":     ah.engine.Catalog().Rejected(),
	})
}

func (ah *AdminHandler) handleListBackups(w http.ResponseWriter, r *http.Request) {
	if ah.opts.Backups == nil {
		sendError(w, ah.logger, http.StatusServiceUnavailable, "Backups require the sqlite backend")
		return
	}
	backups, err := ah.opts.Backups.ListBackups()
	if err != nil {
		sendEngineError(w, ah.logger, err)
		return
	}
	if backups == nil {
		backups = []*database.BackupInfo{}
	}
	sendJSON(w, ah.logger, http.StatusOK, map[string]interface{}{"backups": backups})
}

func (ah *AdminHandler) handleCreateBackup(w http.ResponseWriter, r *http.Request) {
	if ah.opts.Backups == nil {
		sendError(w, ah.logger, http.StatusServiceUnavailable, "Backups require the sqlite backend")
		return
	}
	if err := ah.engine.Save(r.Context()); err != nil {
		sendEngineError(w, ah.logger, err)
		return
	}
	info, err := ah.opts.Backups.CreateBackup(r.Context(), r.URL.Query().Get("description"), "manual")
	if err != nil {
		sendEngineError(w, ah.logger, err)
		return
	}
	sendJSON(w, ah.logger, http.StatusCreated, info)
}

func (ah *AdminHandler) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if ah.opts.Hub == nil {
		sendError(w, ah.logger, http.StatusServiceUnavailable, "Notifications are disabled")
		return
	}
	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			sendError(w, ah.logger, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	history := ah.opts.Hub.History(network.FilterFromQuery(r), limit)
	messages := make([]interface{}, 0, len(history))
	for _, n := range history {
		messages = append(messages, n.Message())
	}
	sendJSON(w, ah.logger, http.StatusOK, map[string]interface{}{
		"notifications": messages,
		"count":         len(messages),
	})
}

func (ah *AdminHandler) handleShutdown(w http.ResponseWriter, r *http.Request) {
	ah.logger.Warn("Admin shutdown request received")
	select {
	case ah.shutdownChan <- struct{}{}:
		sendJSON(w, ah.logger, http.StatusAccepted, map[string]interface{}{
			"status":    "shutdown_initiated",
			"timestamp": time.Now().UTC(),
		})
	default:
		sendError(w, ah.logger, http.StatusConflict, "Shutdown already pending")
	}
}
