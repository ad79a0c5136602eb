package progress

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"laurels/internal/models"
	"laurels/pkg/logger"
)

// Definitions is the part of the catalog the store needs
type Definitions interface {
	All() []*models.AchievementDefinition
}

// Store owns the mutable progress records
type Store struct {
	mu      sync.Mutex
	records map[string]*models.AchievementProgress
	storage Storage
	logger  *logger.Logger
	now     func() time.Time
}

// NewStore creates a store persisting through storage. A nil storage keeps
// progress in memory only.
func NewStore(storage Storage, log *logger.Logger) *Store {
	return &Store{
		records: make(map[string]*models.AchievementProgress),
		storage: storage,
		logger:  logger.OrDefault(log, "STORE"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Initialize creates a record for every definition that has none. Hidden or
// prerequisite-gated definitions start Locked, the rest Unlocked. It returns
// the number of records created.
func (s *Store) Initialize(defs Definitions) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := 0
	now := s.now()
	for _, def := range defs.All() {
		if _, ok := s.records[def.ID]; ok {
			continue
		}
		status := models.StatusUnlocked
		if def.IsGated() {
			status = models.StatusLocked
		}
		s.records[def.ID] = models.NewProgress(def, status, now)
		created++
	}
	if created > 0 {
		s.logger.Debug("Initialized %d progress records", created)
	}
	return created
}

// GetProgress returns a copy of the record for id
func (s *Store) GetProgress(id string) (*models.AchievementProgress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.records[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// GetAll returns copies of every record
func (s *Store) GetAll() map[string]*models.AchievementProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*models.AchievementProgress, len(s.records))
	for id, p := range s.records {
		out[id] = p.Clone()
	}
	return out
}

// IDs returns the ids of every record, sorted
func (s *Store) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Mutate applies fn to the live record for id under the store lock. If fn
// returns an error or panics, the record is left unchanged.
func (s *Store) Mutate(id string, fn func(p *models.AchievementProgress) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.records[id]
	if !ok {
		return fmt.Errorf("progress %s: %w", id, models.ErrNotFound)
	}

	working := p.Clone()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("progress %s: panic during update: %v", id, r)
		}
	}()
	if err := fn(working); err != nil {
		return err
	}
	s.records[id] = working
	return nil
}

// Reset zeroes the current value and moves the record to status. The
// completion count is preserved.
func (s *Store) Reset(id string, status models.Status) error {
	return s.Mutate(id, func(p *models.AchievementProgress) error {
		now := s.now()
		p.CurrentValue = 0
		p.Status = status
		p.IsRewardClaimed = false
		p.LastResetAt = &now
		delete(p.ExtraData, models.ExtraRewardsGranted)
		if status == models.StatusLocked {
			p.UnlockedAt = nil
		} else {
			p.UnlockedAt = &now
		}
		return nil
	})
}

// Save writes a snapshot of every record
func (s *Store) Save(ctx context.Context) error {
	if s.storage == nil {
		return nil
	}

	s.mu.Lock()
	data, err := Encode(s.records, s.now())
	count := len(s.records)
	s.mu.Unlock()
	if err != nil {
		return &models.PersistenceError{Op: "save", Err: err}
	}

	if err := s.storage.Write(ctx, data); err != nil {
		return &models.PersistenceError{Op: "save", Err: err}
	}
	s.logger.Debug("Saved %d progress records to %s", count, s.storage)
	return nil
}

// Load replaces records with those in the stored snapshot. Records absent
// from the snapshot are kept. A missing snapshot returns an error wrapping
// models.ErrNoSnapshot.
func (s *Store) Load(ctx context.Context) (int, error) {
	if s.storage == nil {
		return 0, &models.PersistenceError{Op: "load", Err: models.ErrNoSnapshot}
	}

	data, err := s.storage.Read(ctx)
	if err != nil {
		return 0, &models.PersistenceError{Op: "load", Err: err}
	}

	decoded, err := Decode(data)
	if err != nil {
		return 0, &models.PersistenceError{Op: "load", Err: err}
	}
	for id, derr := range decoded.Skipped {
		s.logger.Warn("Skipping undecodable progress record %s: %v", id, derr)
	}
	for id, name := range decoded.UnknownStatus {
		s.logger.Warn("Progress record %s has unknown status %q, derived %s", id, name, decoded.Records[id].Status)
	}
	if decoded.Version != SnapshotVersion {
		s.logger.Info("Reading progress snapshot version %q", decoded.Version)
	}

	s.mu.Lock()
	for id, p := range decoded.Records {
		s.records[id] = p
	}
	s.mu.Unlock()

	s.logger.Info("Loaded %d progress records from %s", len(decoded.Records), s.storage)
	return len(decoded.Records), nil
}

// IsNoSnapshot reports whether err means nothing was saved yet
func IsNoSnapshot(err error) bool {
	return errors.Is(err, models.ErrNoSnapshot)
}
