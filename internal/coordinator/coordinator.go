// Package coordinator drives achievement progress from game events. It owns
// the only evaluation path: events, claims, resets, saves and catalog reloads
// are serialized behind one mutex.
package coordinator

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"laurels/internal/catalog"
	"laurels/internal/models"
	"laurels/internal/notify"
	"laurels/internal/prereq"
	"laurels/internal/progress"
	"laurels/internal/rewards"
	"laurels/pkg/logger"
	"laurels/pkg/protocol"
)

// Options controls reward and persistence behavior
type Options struct {
	// AutoGrant dispatches rewards as soon as an achievement completes.
	// Otherwise rewards wait for ClaimReward.
	AutoGrant bool
	// BatchPerEvent collects the rewards of every completion caused by one
	// event into a single dispatcher batch
	BatchPerEvent bool
	// SaveOnCompletion persists progress after events that completed an
	// achievement and after claims and resets
	SaveOnCompletion bool
	// Clock overrides time.Now
	Clock func() time.Time
}

// DefaultOptions grants rewards immediately and saves on completion
func DefaultOptions() Options {
	return Options{AutoGrant: true, SaveOnCompletion: true}
}

// Coordinator wires the catalog, progress store, resolver and dispatcher
// together. Notifiers are called with the coordinator lock held and must
// not call back into it.
type Coordinator struct {
	mu         sync.Mutex
	catalog    *catalog.Catalog
	store      *progress.Store
	dispatcher *rewards.Dispatcher
	resolver   *prereq.Resolver
	notifier   notify.Notifier
	opts       Options
	logger     *logger.Logger
	now        func() time.Time
}

// New creates a coordinator. A nil notifier discards notifications.
func New(cat *catalog.Catalog, store *progress.Store, dispatcher *rewards.Dispatcher, notifier notify.Notifier, log *logger.Logger, opts Options) *Coordinator {
	if notifier == nil {
		notifier = notify.Nop
	}
	now := opts.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	log = logger.OrDefault(log, "ENGINE")

	store.SetClock(now)
	resolver := prereq.New(cat, store, log)
	resolver.SetClock(now)

	return &Coordinator{
		catalog:    cat,
		store:      store,
		dispatcher: dispatcher,
		resolver:   resolver,
		notifier:   notifier,
		opts:       opts,
		logger:     log,
		now:        now,
	}
}

// Start creates progress records for the catalog, merges the saved snapshot
// and unlocks everything whose prerequisites already hold. Persistence
// failures are logged; the engine then starts from fresh progress.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.Initialize(c.catalog)
	n, err := c.store.Load(ctx)
	switch {
	case progress.IsNoSnapshot(err):
		c.logger.Info("No saved progress found, starting fresh")
	case err != nil:
		c.logger.Error("Failed to load progress, starting fresh: %v", err)
	default:
		c.logger.Info("Restored %d progress records", n)
	}
	if created := c.store.Initialize(c.catalog); created > 0 {
		c.logger.Info("Created %d progress records for new achievements", created)
	}
	c.syncTargets()

	for _, id := range c.resolver.ResolveNewUnlocks() {
		c.emit(protocol.MsgAchievementUnlocked, id, nil)
	}
	return ctx.Err()
}

// syncTargets copies definition targets onto records so a catalog edit
// takes effect on the next event
func (c *Coordinator) syncTargets() {
	for _, def := range c.catalog.All() {
		c.syncTarget(def)
	}
}

// syncTarget copies the definition target onto an active or locked record.
// A finished cycle keeps the target it was completed against; the new
// target applies from its next cycle or reset. An active record already at
// a lowered target completes on its next matching event.
func (c *Coordinator) syncTarget(def *models.AchievementDefinition) {
	p, ok := c.store.GetProgress(def.ID)
	if !ok || p.TargetValue == def.TargetValue || p.Status.IsDone() {
		return
	}
	target := def.TargetValue
	err := c.store.Mutate(def.ID, func(p *models.AchievementProgress) error {
		if !p.Status.IsDone() {
			p.TargetValue = target
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("Failed to update target of %s: %v", def.ID, err)
	}
}

// ReloadCatalog re-reads the catalog source. A malformed or unreadable file
// leaves the current catalog in place. Progress records are kept for
// definitions that disappeared.
func (c *Coordinator) ReloadCatalog(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, &models.LoadError{Path: path, Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := c.catalog.LoadBytes(data)
	if err != nil {
		var le *models.LoadError
		if errors.As(err, &le) {
			le.Path = path
		}
		c.logger.Error("Catalog reload failed, keeping %d definitions: %v", c.catalog.Count(), err)
		return 0, err
	}

	if created := c.store.Initialize(c.catalog); created > 0 {
		c.logger.Info("Created %d progress records after reload", created)
	}
	c.syncTargets()
	for _, id := range c.resolver.ResolveNewUnlocks() {
		c.emit(protocol.MsgAchievementUnlocked, id, nil)
	}
	c.logger.Info("Reloaded catalog from %s: %d achievements", path, n)
	return n, nil
}

// Save persists progress
func (c *Coordinator) Save(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Save(ctx)
}

// save persists when configured and logs failures. Callers hold c.mu.
func (c *Coordinator) save(ctx context.Context) error {
	if !c.opts.SaveOnCompletion {
		return nil
	}
	if err := c.store.Save(ctx); err != nil {
		c.logger.Error("Failed to save progress: %v", err)
		return err
	}
	return nil
}

// Progress returns a copy of one progress record
func (c *Coordinator) Progress(id string) (*models.AchievementProgress, bool) {
	return c.store.GetProgress(id)
}

// AllProgress returns copies of every progress record
func (c *Coordinator) AllProgress() map[string]*models.AchievementProgress {
	return c.store.GetAll()
}

// Catalog returns the catalog
func (c *Coordinator) Catalog() *catalog.Catalog {
	return c.catalog
}

// Dispatcher returns the reward dispatcher
func (c *Coordinator) Dispatcher() *rewards.Dispatcher {
	return c.dispatcher
}

// LockedBy returns the unmet prerequisites of an achievement
func (c *Coordinator) LockedBy(id string) ([]string, error) {
	def, ok := c.catalog.GetByID(id)
	if !ok {
		return nil, models.ErrNotFound
	}
	return c.resolver.LockedBy(def), nil
}

// emit sends a notification built from the current record of id
func (c *Coordinator) emit(t protocol.MessageType, id string, granted []models.RewardSpec) {
	p, ok := c.store.GetProgress(id)
	if !ok {
		return
	}
	def, _ := c.catalog.GetByID(id)
	n := notify.New(t, def, p, c.now())
	if len(granted) > 0 {
		n = n.WithRewards(granted)
	}
	c.notifier.Notify(n)
}
