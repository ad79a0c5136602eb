package handlers

import (
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"

	"laurels/internal/coordinator"
	"laurels/internal/models"
	"laurels/pkg/logger"
)

// AchievementHandler serves the catalog, progress and event endpoints
type AchievementHandler struct {
	engine *coordinator.Coordinator
	logger *logger.Logger
}

// NewAchievementHandler creates a new achievement handler
func NewAchievementHandler(engine *coordinator.Coordinator, log *logger.Logger) *AchievementHandler {
	return &AchievementHandler{engine: engine, logger: logger.OrDefault(log, "API")}
}

// RegisterRoutes registers achievement routes
func (h *AchievementHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/achievements", h.handleList).Methods(http.MethodGet)
	r.HandleFunc("/api/achievements/{id}", h.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/api/achievements/{id}/claim", h.handleClaim).Methods(http.MethodPost)
	r.HandleFunc("/api/achievements/{id}/reset", h.handleReset).Methods(http.MethodPost)

	r.HandleFunc("/api/progress", h.handleAllProgress).Methods(http.MethodGet)
	r.HandleFunc("/api/progress/{id}", h.handleProgress).Methods(http.MethodGet)

	r.HandleFunc("/api/events", h.handleEvent).Methods(http.MethodPost)
	r.HandleFunc("/api/save", h.handleSave).Methods(http.MethodPost)
}

// AchievementView is a definition joined with its progress. Hidden
// achievements that are still locked are masked.
type AchievementView struct {
	ID            string                      `json:"id"`
	Name          string                      `json:"name"`
	Description   string                      `json:"description"`
	Type          models.AchievementType      `json:"type,omitempty"`
	Category      models.Category             `json:"category"`
	Rarity        models.Rarity               `json:"rarity"`
	Icon          string                      `json:"icon,omitempty"`
	Points        int                         `json:"points"`
	TargetValue   int64                       `json:"target_value"`
	IsHidden      bool                        `json:"is_hidden"`
	IsRepeatable  bool                        `json:"is_repeatable"`
	Masked        bool                        `json:"masked,omitempty"`
	Prerequisites []string                    `json:"prerequisites,omitempty"`
	Rewards       []models.RewardSpec         `json:"rewards,omitempty"`
	Progress      *models.AchievementProgress `json:"progress,omitempty"`
	Percent       float64                     `json:"percent"`
}

func newView(def *models.AchievementDefinition, p *models.AchievementProgress) AchievementView {
	v := AchievementView{
		ID:       def.ID,
		Category: def.Category,
		Rarity:   def.Rarity,
		IsHidden: def.IsHidden,
		Progress: p,
	}
	if p != nil {
		v.Percent = p.Percent()
	}
	if def.IsHidden && (p == nil || p.Status == models.StatusLocked) {
		v.Name = "???"
		v.Description = "Hidden achievement"
		v.Masked = true
		return v
	}

	v.Name = def.Name
	v.Description = def.Description
	v.Type = def.Type
	v.Icon = def.Icon
	v.Points = def.Points
	v.TargetValue = def.TargetValue
	v.IsRepeatable = def.IsRepeatable
	v.Prerequisites = def.Prerequisites
	v.Rewards = def.Rewards
	return v
}

func (h *AchievementHandler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	defs := h.engine.Catalog().All()

	if s := q.Get("category"); s != "" {
		category, err := models.ParseCategory(s)
		if err != nil {
			sendError(w, h.logger, http.StatusBadRequest, err.Error())
			return
		}
		defs = filter(defs, func(d *models.AchievementDefinition) bool { return d.Category == category })
	}
	if s := q.Get("type"); s != "" {
		t, err := models.ParseAchievementType(s)
		if err != nil {
			sendError(w, h.logger, http.StatusBadRequest, err.Error())
			return
		}
		defs = filter(defs, func(d *models.AchievementDefinition) bool { return d.Type == t })
	}
	if s := q.Get("rarity"); s != "" {
		rarity, err := models.ParseRarity(s)
		if err != nil {
			sendError(w, h.logger, http.StatusBadRequest, err.Error())
			return
		}
		defs = filter(defs, func(d *models.AchievementDefinition) bool { return d.Rarity == rarity })
	}

	views := make([]AchievementView, 0, len(defs))
	for _, def := range defs {
		p, _ := h.engine.Progress(def.ID)
		views = append(views, newView(def, p))
	}
	sendJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"achievements": views,
		"count":        len(views),
	})
}

func filter(defs []*models.AchievementDefinition, keep func(*models.AchievementDefinition) bool) []*models.AchievementDefinition {
	out := defs[:0]
	for _, d := range defs {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}

func (h *AchievementHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	def, ok := h.engine.Catalog().GetByID(id)
	if !ok {
		sendError(w, h.logger, http.StatusNotFound, "Achievement not found")
		return
	}
	p, _ := h.engine.Progress(id)
	view := newView(def, p)

	response := map[string]interface{}{"achievement": view}
	if !view.Masked {
		locked, _ := h.engine.LockedBy(id)
		response["locked_by"] = locked
	}
	sendJSON(w, h.logger, http.StatusOK, response)
}

func (h *AchievementHandler) handleAllProgress(w http.ResponseWriter, r *http.Request) {
	all := h.engine.AllProgress()
	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	records := make([]*models.AchievementProgress, 0, len(ids))
	completed := 0
	for _, id := range ids {
		records = append(records, all[id])
		if all[id].IsCompleted() {
			completed++
		}
	}
	sendJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"progress":  records,
		"total":     len(records),
		"completed": completed,
	})
}

func (h *AchievementHandler) handleProgress(w http.ResponseWriter, r *http.Request) {
	p, ok := h.engine.Progress(mux.Vars(r)["id"])
	if !ok {
		sendError(w, h.logger, http.StatusNotFound, "Progress not found")
		return
	}
	sendJSON(w, h.logger, http.StatusOK, p)
}

func (h *AchievementHandler) handleEvent(w http.ResponseWriter, r *http.Request) {
	var event models.GameEventData
	if err := decodeBody(r, &event); err != nil {
		sendEngineError(w, h.logger, err)
		return
	}
	if err := event.Validate(); err != nil {
		sendEngineError(w, h.logger, err)
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Source == "" {
		event.Source = "http"
	}

	outcome := h.engine.HandleEvent(r.Context(), event)
	sendJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"outcome": outcome,
		"errors":  outcome.ErrorMessages(),
	})
}

func (h *AchievementHandler) handleClaim(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	result, err := h.engine.ClaimReward(r.Context(), id)
	if err != nil {
		sendEngineError(w, h.logger, err)
		return
	}
	p, _ := h.engine.Progress(id)
	sendJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"result":   result,
		"progress": p,
	})
}

func (h *AchievementHandler) handleReset(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.engine.Reset(r.Context(), id); err != nil {
		sendEngineError(w, h.logger, err)
		return
	}
	p, _ := h.engine.Progress(id)
	sendJSON(w, h.logger, http.StatusOK, map[string]interface{}{"progress": p})
}

func (h *AchievementHandler) handleSave(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Save(r.Context()); err != nil {
		sendEngineError(w, h.logger, err)
		return
	}
	sendJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"status":    "saved",
		"timestamp": time.Now().UTC(),
	})
}
