package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"laurels/internal/coordinator"
	"laurels/internal/models"
	"laurels/pkg/logger"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

// RouteRegistrar adds routes to the API router
type RouteRegistrar interface {
	RegisterRoutes(r *mux.Router)
}

// NewRouter builds the HTTP API. ws is mounted at /ws when non-nil.
func NewRouter(engine *coordinator.Coordinator, ws http.Handler, log *logger.Logger, extra ...RouteRegistrar) *mux.Router {
	log = logger.OrDefault(log, "API")
	r := mux.NewRouter()
	r.Use(corsMiddleware)

	r.HandleFunc("/health", healthHandler(engine)).Methods(http.MethodGet)

	NewAchievementHandler(engine, log).RegisterRoutes(r)
	NewRewardHandler(engine, log).RegisterRoutes(r)
	for _, reg := range extra {
		reg.RegisterRoutes(r)
	}

	if ws != nil {
		r.Handle("/ws", ws).Methods(http.MethodGet)
	}

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		sendError(w, log, http.StatusMethodNotAllowed, "Method not allowed")
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sendError(w, log, http.StatusNotFound, "Not found")
	})
	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}

func healthHandler(engine *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sendJSON(w, nil, http.StatusOK, map[string]interface{}{
			"status":       "ok",
			"achievements": engine.Catalog().Count(),
			"rejected":     len(engine.Catalog().Rejected()),
			"timestamp":    time.Now().UTC(),
		})
	}
}

func sendJSON(w http.ResponseWriter, log *logger.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil && log != nil {
		log.Error("Failed to encode JSON response: %v", err)
	}
}

func sendError(w http.ResponseWriter, log *logger.Logger, status int, message string) {
	sendJSON(w, log, status, map[string]interface{}{
		"error":     message,
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}

// sendEngineError maps engine errors onto HTTP statuses
func sendEngineError(w http.ResponseWriter, log *logger.Logger, err error) {
	var (
		ve *models.ValidationError
		de *models.DispatchError
		pe *models.PersistenceError
	)
	switch {
	case errors.Is(err, models.ErrNotFound):
		sendError(w, log, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrNotCompleted), errors.Is(err, models.ErrAlreadyClaimed):
		sendError(w, log, http.StatusConflict, err.Error())
	case errors.As(err, &ve):
		sendError(w, log, http.StatusBadRequest, err.Error())
	case errors.As(err, &de):
		sendError(w, log, http.StatusBadGateway, err.Error())
	case errors.As(err, &pe):
		log.Error("Persistence failure: %v", err)
		sendError(w, log, http.StatusInternalServerError, err.Error())
	default:
		log.Error("Request failed: %v", err)
		sendError(w, log, http.StatusInternalServerError, err.Error())
	}
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return &models.ValidationError{Subject: "request body", Reason: "malformed JSON", Err: err}
	}
	return nil
}
