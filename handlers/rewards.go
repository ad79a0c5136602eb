package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"laurels/internal/coordinator"
	"laurels/internal/models"
	"laurels/pkg/logger"
)

// RewardHandler serves reward history, statistics and previews
type RewardHandler struct {
	engine *coordinator.Coordinator
	logger *logger.Logger
}

// NewRewardHandler creates a new reward handler
func NewRewardHandler(engine *coordinator.Coordinator, log *logger.Logger) *RewardHandler {
	return &RewardHandler{engine: engine, logger: logger.OrDefault(log, "API")}
}

// RegisterRoutes registers reward routes
func (h *RewardHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/rewards/history/{id}", h.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/rewards/stats", h.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/api/rewards/preview", h.handlePreview).Methods(http.MethodPost)
}

func (h *RewardHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := h.engine.Catalog().GetByID(id); !ok {
		sendError(w, h.logger, http.StatusNotFound, "Achievement not found")
		return
	}
	records, err := h.engine.Dispatcher().PersistedHistory(r.Context(), id)
	if err != nil {
		sendEngineError(w, h.logger, err)
		return
	}
	if records == nil {
		records = []models.RewardRecord{}
	}
	sendJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"achievement_id": id,
		"history":        records,
	})
}

func (h *RewardHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, h.logger, http.StatusOK, h.engine.Dispatcher().Stats())
}

// previewRequest names an achievement or lists rewards directly
type previewRequest struct {
	AchievementID string              `json:"achievement_id,omitempty"`
	Rewards       []models.RewardSpec `json:"rewards,omitempty"`
}

func (h *RewardHandler) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeBody(r, &req); err != nil {
		sendEngineError(w, h.logger, err)
		return
	}

	rewards := req.Rewards
	if req.AchievementID != "" {
		def, ok := h.engine.Catalog().GetByID(req.AchievementID)
		if !ok {
			sendError(w, h.logger, http.StatusNotFound, "Achievement not found")
			return
		}
		rewards = append([]models.RewardSpec(nil), def.Rewards...)
	}
	for i := range rewards {
		t, err := models.ParseRewardType(string(rewards[i].Type))
		if err != nil {
			sendError(w, h.logger, http.StatusBadRequest, err.Error())
			return
		}
		rewards[i].Type = t
	}

	dispatcher := h.engine.Dispatcher()
	response := map[string]interface{}{
		"previews": dispatcher.GetPreviews(rewards),
	}
	if req.AchievementID != "" {
		response["can_grant"] = dispatcher.CanGrant(req.AchievementID, rewards)
	}
	sendJSON(w, h.logger, http.StatusOK, response)
}
