package rewards

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"laurels/internal/models"
)

// HistorySink persists reward records beyond the in-memory history
type HistorySink interface {
	Append(ctx context.Context, record models.RewardRecord) error
	List(ctx context.Context, achievementID string, limit int) ([]models.RewardRecord, error)
}

// TypeStats counts grants for one reward type
type TypeStats struct {
	Granted int   `json:"granted"`
	Failed  int   `json:"failed"`
	Amount  int64 `json:"amount"`
}

// Stats are running dispatch counters
type Stats struct {
	Bundles         int                              `json:"bundles"`
	BundlesRejected int                              `json:"bundles_rejected"`
	BundlesFailed   int                              `json:"bundles_failed"`
	RewardsGranted  int                              `json:"rewards_granted"`
	RewardsFailed   int                              `json:"rewards_failed"`
	ByType          map[models.RewardType]*TypeStats `json:"by_type"`
}

func newStats() Stats {
	return Stats{ByType: make(map[models.RewardType]*TypeStats)}
}

func (s Stats) clone() Stats {
	out := s
	out.ByType = make(map[models.RewardType]*TypeStats, len(s.ByType))
	for t, ts := range s.ByType {
		c := *ts
		out.ByType[t] = &c
	}
	return out
}

func (s *Stats) forType(t models.RewardType) *TypeStats {
	ts, ok := s.ByType[t]
	if !ok {
		ts = &TypeStats{}
		s.ByType[t] = ts
	}
	return ts
}

type rewardOutcome struct {
	reward  models.RewardSpec
	granted bool
	amount  int64
}

// record appends an attempt to the history and updates the counters.
// outcomes is nil for bundles rejected by validation; every reward of such
// a bundle counts as failed under its type.
func (d *Dispatcher) record(ctx context.Context, achievementID string, rewards []models.RewardSpec, result models.RewardResult, batchID string, outcomes []rewardOutcome) {
	rec := models.RewardRecord{
		ID:            uuid.NewString(),
		AchievementID: achievementID,
		Rewards:       append([]models.RewardSpec(nil), rewards...),
		Result:        result,
		Timestamp:     d.now(),
		BatchID:       batchID,
	}

	d.stateMu.Lock()
	d.stats.Bundles++
	switch {
	case outcomes == nil:
		d.stats.BundlesRejected++
		for _, reward := range rewards {
			d.stats.forType(reward.Type).Failed++
			d.stats.RewardsFailed++
		}
	case !result.Success:
		d.stats.BundlesFailed++
	}
	for _, o := range outcomes {
		ts := d.stats.forType(o.reward.Type)
		if o.granted {
			ts.Granted++
			ts.Amount += o.amount
			d.stats.RewardsGranted++
		} else {
			ts.Failed++
			d.stats.RewardsFailed++
		}
	}

	h := append(d.history[achievementID], rec)
	if len(h) > d.historyLimit {
		h = append([]models.RewardRecord(nil), h[len(h)-d.historyLimit:]...)
	}
	d.history[achievementID] = h
	d.stateMu.Unlock()

	if d.sink != nil {
		if err := d.sink.Append(ctx, rec); err != nil {
			d.logger.Warn("Failed to persist reward record for %s: %v", achievementID, err)
		}
	}
}

// History returns the in-memory dispatch records for an achievement, oldest
// first
func (d *Dispatcher) History(achievementID string) []models.RewardRecord {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	return append([]models.RewardRecord(nil), d.history[achievementID]...)
}

// PersistedHistory reads records from the sink when one is configured and
// falls back to the in-memory history otherwise
func (d *Dispatcher) PersistedHistory(ctx context.Context, achievementID string) ([]models.RewardRecord, error) {
	if d.sink == nil {
		return d.History(achievementID), nil
	}
	return d.sink.List(ctx, achievementID, d.historyLimit)
}

// Stats returns a copy of the running counters
func (d *Dispatcher) Stats() Stats {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	return d.stats.clone()
}

// MemorySink is a HistorySink kept in memory
type MemorySink struct {
	mu      sync.Mutex
	records []models.RewardRecord
}

func (s *MemorySink) Append(ctx context.Context, record models.RewardRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *MemorySink) List(ctx context.Context, achievementID string, limit int) ([]models.RewardRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.RewardRecord
	for _, r := range s.records {
		if r.AchievementID == achievementID {
			out = append(out, r)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
