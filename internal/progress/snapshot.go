package progress

import (
	"encoding/json"
	"fmt"
	"time"

	"laurels/internal/models"
)

// SnapshotVersion is the envelope version written by Encode
const SnapshotVersion = "1.0"

// envelope is the persisted progress document. Records stay raw so one bad
// record does not fail the whole load.
type envelope struct {
	Version      string                     `json:"version"`
	Timestamp    time.Time                  `json:"timestamp"`
	Achievements map[string]json.RawMessage `json:"achievements"`
}

type snapshotRecord struct {
	CurrentValue    int64          `json:"current_value"`
	TargetValue     int64          `json:"target_value"`
	IsCompleted     bool           `json:"is_completed"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	IsRewardClaimed bool           `json:"is_reward_claimed"`
	Status          string         `json:"status,omitempty"`
	UnlockedAt      *time.Time     `json:"unlocked_at,omitempty"`
	CompletionCount int            `json:"completion_count"`
	LastResetAt     *time.Time     `json:"last_reset_at,omitempty"`
	ExtraData       map[string]any `json:"extra_data,omitempty"`
}

// Encode writes records as a versioned snapshot document
func Encode(records map[string]*models.AchievementProgress, now time.Time) ([]byte, error) {
	env := envelope{
		Version:      SnapshotVersion,
		Timestamp:    now.UTC(),
		Achievements: make(map[string]json.RawMessage, len(records)),
	}
	for id, p := range records {
		raw, err := json.Marshal(snapshotRecord{
			CurrentValue:    p.CurrentValue,
			TargetValue:     p.TargetValue,
			IsCompleted:     p.Status.IsDone(),
			CompletedAt:     p.CompletedAt,
			IsRewardClaimed: p.IsRewardClaimed,
			Status:          p.Status.String(),
			UnlockedAt:      p.UnlockedAt,
			CompletionCount: p.CompletionCount,
			LastResetAt:     p.LastResetAt,
			ExtraData:       p.ExtraData,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode progress %s: %w", id, err)
		}
		env.Achievements[id] = raw
	}
	return json.MarshalIndent(env, "", "  ")
}

// Decoded is the result of reading a snapshot document
type Decoded struct {
	Version   string
	Timestamp time.Time
	Records   map[string]*models.AchievementProgress

	// Skipped maps ids of undecodable records to the decode error
	Skipped map[string]error

	// UnknownStatus maps ids whose status name was not recognised to that
	// name. Their status was derived from the legacy flags instead.
	UnknownStatus map[string]string
}

// Decode reads a snapshot document. Missing optional keys take defaults and
// unknown keys are ignored.
func Decode(data []byte) (*Decoded, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	out := &Decoded{
		Version:       env.Version,
		Timestamp:     env.Timestamp,
		Records:       make(map[string]*models.AchievementProgress, len(env.Achievements)),
		Skipped:       make(map[string]error),
		UnknownStatus: make(map[string]string),
	}
	for id, raw := range env.Achievements {
		var rec snapshotRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			out.Skipped[id] = err
			continue
		}
		p, known := rec.toProgress(id)
		if !known {
			out.UnknownStatus[id] = rec.Status
		}
		out.Records[id] = p
	}
	return out, nil
}

// toProgress converts a record. known is false when the record names a
// status this build does not recognise.
func (rec *snapshotRecord) toProgress(id string) (p *models.AchievementProgress, known bool) {
	p = &models.AchievementProgress{
		AchievementID:   id,
		CurrentValue:    rec.CurrentValue,
		TargetValue:     rec.TargetValue,
		CompletedAt:     rec.CompletedAt,
		IsRewardClaimed: rec.IsRewardClaimed,
		UnlockedAt:      rec.UnlockedAt,
		CompletionCount: rec.CompletionCount,
		LastResetAt:     rec.LastResetAt,
		ExtraData:       rec.ExtraData,
	}
	if p.ExtraData == nil {
		p.ExtraData = make(map[string]any)
	}
	if p.CurrentValue < 0 {
		p.CurrentValue = 0
	}

	known = true
	status, err := models.ParseStatus(rec.Status)
	if rec.Status != "" && err != nil {
		known = false
	}

	switch {
	case rec.Status != "" && known:
		p.Status = status
	case rec.IsRewardClaimed:
		p.Status = models.StatusRewardClaimed
	case rec.IsCompleted:
		p.Status = models.StatusCompleted
	case rec.CurrentValue > 0:
		p.Status = models.StatusInProgress
	case rec.UnlockedAt != nil:
		p.Status = models.StatusUnlocked
	default:
		p.Status = models.StatusLocked
	}

	if p.Status.IsDone() && p.CurrentValue < p.TargetValue {
		p.CurrentValue = p.TargetValue
	}
	if p.Status.IsDone() && p.CompletionCount == 0 {
		p.CompletionCount = 1
	}
	return p, known
}
