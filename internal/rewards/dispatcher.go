package rewards

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"laurels/internal/models"
	"laurels/pkg/logger"
)

// Options configures a Dispatcher
type Options struct {
	// HistoryLimit bounds the in-memory history per achievement; 0 means 100
	HistoryLimit int
	// Sink receives every record in addition to the in-memory history
	Sink   HistorySink
	Logger *logger.Logger
}

// Dispatcher validates reward bundles and grants them through a registry of
// handlers keyed by reward type
type Dispatcher struct {
	mu        sync.RWMutex
	handlers  map[models.RewardType]Handler
	listeners []ValidationListener

	stateMu      sync.Mutex
	history      map[string][]models.RewardRecord
	historyLimit int
	stats        Stats

	batchMu sync.Mutex
	batchID string
	pending []pendingBundle

	sink   HistorySink
	logger *logger.Logger
	now    func() time.Time
}

type pendingBundle struct {
	achievementID string
	rewards       []models.RewardSpec
}

// NewDispatcher creates a dispatcher with no handlers registered
func NewDispatcher(opts Options) *Dispatcher {
	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = 100
	}
	return &Dispatcher{
		handlers:     make(map[models.RewardType]Handler),
		history:      make(map[string][]models.RewardRecord),
		historyLimit: limit,
		stats:        newStats(),
		sink:         opts.Sink,
		logger:       logger.OrDefault(opts.Logger, "REWARDS"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// RegisterHandler installs h for reward type t, replacing any previous one
func (d *Dispatcher) RegisterHandler(t models.RewardType, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[t] = h
	d.logger.Debug("Registered handler for %s rewards", t)
}

// UnregisterHandler removes the handler for t
func (d *Dispatcher) UnregisterHandler(t models.RewardType) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.handlers, t)
}

// HasHandler reports whether a handler is registered for t
func (d *Dispatcher) HasHandler(t models.RewardType) bool {
	_, ok := d.handler(t)
	return ok
}

func (d *Dispatcher) handler(t models.RewardType) (Handler, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.handlers[t]
	return h, ok
}

// OnValidationFailed registers a listener for rejected bundles
func (d *Dispatcher) OnValidationFailed(fn ValidationListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

// ValidateRewards checks a whole bundle. Handlers implementing Validator add
// their own rules.
func (d *Dispatcher) ValidateRewards(achievementID string, rewards []models.RewardSpec) ValidationResult {
	rewards = canonical(rewards)
	var errs []string
	if strings.TrimSpace(achievementID) == "" {
		errs = append(errs, "achievement id is required")
	}
	if len(rewards) == 0 {
		errs = append(errs, "reward bundle is empty")
	}

	for i, reward := range rewards {
		if _, err := models.ParseRewardType(string(reward.Type)); err != nil {
			errs = append(errs, fmt.Sprintf("reward %d: %v", i+1, err))
			continue
		}
		if reward.Amount < 0 {
			errs = append(errs, fmt.Sprintf("reward %d: amount cannot be negative", i+1))
		}
		if reward.Type.RequiresItem() && reward.ItemID == "" {
			errs = append(errs, fmt.Sprintf("reward %d: %s reward requires item_id", i+1, reward.Type))
		}
		if h, ok := d.handler(reward.Type); ok {
			if v, ok := h.(Validator); ok {
				if err := v.Validate(reward); err != nil {
					errs = append(errs, fmt.Sprintf("reward %d: %v", i+1, err))
				}
			}
		}
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// CanGrant reports whether the bundle is valid and every type has a handler
func (d *Dispatcher) CanGrant(achievementID string, rewards []models.RewardSpec) bool {
	if !d.ValidateRewards(achievementID, rewards).Valid {
		return false
	}
	for _, reward := range canonical(rewards) {
		if !d.HasHandler(reward.Type) {
			return false
		}
	}
	return true
}

// GrantRewards validates and grants a bundle. An invalid bundle grants
// nothing. Otherwise every reward is attempted on its own and the result is
// successful when at least one reward was granted.
func (d *Dispatcher) GrantRewards(ctx context.Context, achievementID string, rewards []models.RewardSpec) models.RewardResult {
	return d.grant(ctx, achievementID, rewards, "")
}

func (d *Dispatcher) grant(ctx context.Context, achievementID string, rewards []models.RewardSpec, batchID string) models.RewardResult {
	rewards = canonical(rewards)
	validation := d.ValidateRewards(achievementID, rewards)
	if !validation.Valid {
		result := models.RewardResult{
			Message:       "reward bundle failed validation",
			FailedRewards: append([]models.RewardSpec(nil), rewards...),
			Errors:        validation.Errors,
		}
		d.logger.Warn("Rejected rewards for %s: %s", achievementID, strings.Join(validation.Errors, "; "))
		d.notifyValidationFailed(achievementID, validation)
		d.record(ctx, achievementID, rewards, result, batchID, nil)
		return result
	}

	result := models.RewardResult{}
	outcomes := make([]rewardOutcome, 0, len(rewards))
	for _, reward := range rewards {
		res, err := d.grantOne(ctx, achievementID, reward)
		if err != nil {
			d.logger.Error("%v", err)
			result.FailedRewards = append(result.FailedRewards, reward)
			result.Errors = append(result.Errors, err.Error())
			outcomes = append(outcomes, rewardOutcome{reward: reward})
			continue
		}
		amount := res.GrantedAmount
		if amount == 0 {
			amount = reward.Amount
		}
		result.GrantedAmount += amount
		result.GrantedRewards = append(result.GrantedRewards, reward)
		outcomes = append(outcomes, rewardOutcome{reward: reward, granted: true, amount: amount})
	}

	result.Success = len(result.GrantedRewards) > 0
	switch {
	case len(result.FailedRewards) == 0:
		result.Message = fmt.Sprintf("granted %d rewards", len(result.GrantedRewards))
	case result.Success:
		result.Message = fmt.Sprintf("granted %d of %d rewards", len(result.GrantedRewards), len(rewards))
	default:
		result.Message = "all rewards failed"
	}

	d.record(ctx, achievementID, rewards, result, batchID, outcomes)
	return result
}

// canonical returns a copy of rewards with type names spelled the way
// handlers are registered. Unknown types are left for validation to reject.
func canonical(rewards []models.RewardSpec) []models.RewardSpec {
	out := make([]models.RewardSpec, len(rewards))
	for i, reward := range rewards {
		if t, err := models.ParseRewardType(string(reward.Type)); err == nil {
			reward.Type = t
		}
		out[i] = reward
	}
	return out
}

// grantOne calls the handler for a single reward, converting missing
// handlers, errors, reported failures and panics into a *models.DispatchError
func (d *Dispatcher) grantOne(ctx context.Context, achievementID string, reward models.RewardSpec) (res models.RewardResult, err error) {
	fail := func(cause error) error {
		return &models.DispatchError{AchievementID: achievementID, Reward: reward, Err: cause}
	}

	h, ok := d.handler(reward.Type)
	if !ok {
		return res, fail(ErrNoHandler)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fail(fmt.Errorf("handler panic: %v", r))
		}
	}()

	res, err = h.Grant(ctx, achievementID, reward)
	if err != nil {
		return res, fail(err)
	}
	if !res.Success {
		msg := res.Message
		if msg == "" {
			msg = "handler reported failure"
		}
		return res, fail(errors.New(msg))
	}
	return res, nil
}

func (d *Dispatcher) notifyValidationFailed(achievementID string, result ValidationResult) {
	d.mu.RLock()
	listeners := append([]ValidationListener(nil), d.listeners...)
	d.mu.RUnlock()

	for _, fn := range listeners {
		fn(achievementID, result)
	}
}

// GetPreviews describes each reward, using the handler's Previewer when it
// has one
func (d *Dispatcher) GetPreviews(rewards []models.RewardSpec) []Preview {
	previews := make([]Preview, 0, len(rewards))
	for _, reward := range canonical(rewards) {
		h, ok := d.handler(reward.Type)
		if p, isPreviewer := h.(Previewer); ok && isPreviewer {
			preview := p.Preview(reward)
			preview.Available = true
			previews = append(previews, preview)
			continue
		}
		desc := reward.Description
		if desc == "" {
			desc = reward.String()
		}
		previews = append(previews, Preview{
			Type:        reward.Type,
			ItemID:      reward.ItemID,
			Amount:      reward.Amount,
			Description: desc,
			IsRare:      reward.IsRare,
			Available:   ok,
		})
	}
	return previews
}

// BeginBatch opens a batch. Only one batch may be open at a time.
func (d *Dispatcher) BeginBatch() (string, error) {
	d.batchMu.Lock()
	defer d.batchMu.Unlock()
	if d.batchID != "" {
		return "", models.ErrBatchInProgress
	}
	d.batchID = uuid.NewString()
	d.pending = nil
	return d.batchID, nil
}

// AddPending queues a bundle in the open batch
func (d *Dispatcher) AddPending(achievementID string, rewards []models.RewardSpec) error {
	d.batchMu.Lock()
	defer d.batchMu.Unlock()
	if d.batchID == "" {
		return models.ErrNoOpenBatch
	}
	d.pending = append(d.pending, pendingBundle{
		achievementID: achievementID,
		rewards:       append([]models.RewardSpec(nil), rewards...),
	})
	return nil
}

// ProcessPending grants every queued bundle and closes the batch. Results
// are in AddPending order.
func (d *Dispatcher) ProcessPending(ctx context.Context) ([]models.RewardResult, error) {
	d.batchMu.Lock()
	if d.batchID == "" {
		d.batchMu.Unlock()
		return nil, models.ErrNoOpenBatch
	}
	batchID, pending := d.batchID, d.pending
	d.batchID, d.pending = "", nil
	d.batchMu.Unlock()

	results := make([]models.RewardResult, 0, len(pending))
	for _, p := range pending {
		results = append(results, d.grant(ctx, p.achievementID, p.rewards, batchID))
	}
	d.logger.Debug("Processed batch %s with %d bundles", batchID, len(pending))
	return results, nil
}

// AbortBatch discards the open batch without granting anything
func (d *Dispatcher) AbortBatch() {
	d.batchMu.Lock()
	defer d.batchMu.Unlock()
	d.batchID, d.pending = "", nil
}

// BatchOpen reports whether a batch is open
func (d *Dispatcher) BatchOpen() bool {
	d.batchMu.Lock()
	defer d.batchMu.Unlock()
	return d.batchID != ""
}
