package prereq

import (
	"time"

	"laurels/internal/models"
	"laurels/pkg/logger"
)

// Catalog is the read side of the achievement catalog
type Catalog interface {
	GetByID(id string) (*models.AchievementDefinition, bool)
	All() []*models.AchievementDefinition
}

// ProgressStore is the part of the progress store the resolver mutates
type ProgressStore interface {
	GetProgress(id string) (*models.AchievementProgress, bool)
	Mutate(id string, fn func(p *models.AchievementProgress) error) error
}

// Resolver unlocks definitions once their prerequisites are completed
type Resolver struct {
	catalog Catalog
	store   ProgressStore
	logger  *logger.Logger
	now     func() time.Time
}

// New creates a resolver over catalog and store
func New(catalog Catalog, store ProgressStore, log *logger.Logger) *Resolver {
	return &Resolver{
		catalog: catalog,
		store:   store,
		logger:  logger.OrDefault(log, "PREREQ"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source used for unlockedAt
func (r *Resolver) SetClock(now func() time.Time) {
	r.now = now
}

// CheckPrerequisites reports whether every prerequisite of def has been
// completed at least once
func (r *Resolver) CheckPrerequisites(def *models.AchievementDefinition) bool {
	for _, id := range def.Prerequisites {
		p, ok := r.store.GetProgress(id)
		if !ok || !p.EverCompleted() {
			return false
		}
	}
	return true
}

// ResolveNewUnlocks unlocks every Locked, non-hidden record whose
// prerequisites hold, repeating until nothing changes. Hidden records stay
// Locked until they first make progress.
func (r *Resolver) ResolveNewUnlocks() []string {
	var unlocked []string
	for {
		changed := false
		for _, def := range r.catalog.All() {
			if def.IsHidden {
				continue
			}
			p, ok := r.store.GetProgress(def.ID)
			if !ok || p.Status != models.StatusLocked || !r.CheckPrerequisites(def) {
				continue
			}

			now := r.now()
			err := r.store.Mutate(def.ID, func(p *models.AchievementProgress) error {
				p.Unlock(now)
				return nil
			})
			if err != nil {
				r.logger.Error("Failed to unlock %s: %v", def.ID, err)
				continue
			}
			r.logger.Info("Unlocked %s", def.ID)
			unlocked = append(unlocked, def.ID)
			changed = true
		}
		if !changed {
			return unlocked
		}
	}
}

// LockedBy returns the prerequisites of def that are not yet completed
func (r *Resolver) LockedBy(def *models.AchievementDefinition) []string {
	var missing []string
	for _, id := range def.Prerequisites {
		if p, ok := r.store.GetProgress(id); !ok || !p.EverCompleted() {
			missing = append(missing, id)
		}
	}
	return missing
}
