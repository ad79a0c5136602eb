package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"laurels/internal/conditions"
	"laurels/internal/models"
	"laurels/pkg/protocol"
)

// Outcome summarizes what one event changed
type Outcome struct {
	Updated   []string                       `json:"updated"`
	Completed []string                       `json:"completed"`
	Unlocked  []string                       `json:"unlocked"`
	Rewards   map[string]models.RewardResult `json:"rewards,omitempty"`
	Errors    []error                        `json:"-"`
}

// ErrorMessages returns Errors as strings
func (o Outcome) ErrorMessages() []string {
	msgs := make([]string, 0, len(o.Errors))
	for _, err := range o.Errors {
		msgs = append(msgs, err.Error())
	}
	return msgs
}

func (o *Outcome) addReward(id string, result models.RewardResult) {
	if o.Rewards == nil {
		o.Rewards = make(map[string]models.RewardResult)
	}
	o.Rewards[id] = result
}

// HandleEvent evaluates one event against every eligible achievement.
// Errors and panics are isolated per achievement and reported in the
// outcome; they never stop evaluation of the others. Eligibility is decided
// before any progress changes, so an achievement unlocked by this event
// starts counting from the next one.
func (c *Coordinator) HandleEvent(ctx context.Context, event models.GameEventData) Outcome {
	var out Outcome
	if err := event.Validate(); err != nil {
		c.logger.Warn("Ignoring event: %v", err)
		out.Errors = append(out.Errors, err)
		return out
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	batching := false
	if c.opts.AutoGrant && c.opts.BatchPerEvent {
		if _, err := c.dispatcher.BeginBatch(); err != nil {
			c.logger.Warn("Granting rewards without a batch: %v", err)
		} else {
			batching = true
		}
	}

	var pending []string
	for _, def := range c.candidates() {
		completed, err := c.evaluate(ctx, event, def, now, &out)
		if err != nil {
			c.logger.Warn("%v", err)
			out.Errors = append(out.Errors, err)
			continue
		}
		if !completed {
			continue
		}
		if batching && len(def.Rewards) > 0 {
			if err := c.dispatcher.AddPending(def.ID, def.Rewards); err == nil {
				pending = append(pending, def.ID)
			} else {
				c.logger.Error("Failed to queue rewards for %s: %v", def.ID, err)
			}
		} else {
			c.grantOnCompletion(ctx, def, &out)
		}
		c.cascade(&out)
	}

	if batching {
		results, err := c.dispatcher.ProcessPending(ctx)
		if err != nil {
			c.logger.Error("Failed to process reward batch: %v", err)
			out.Errors = append(out.Errors, err)
		}
		for i, result := range results {
			if i < len(pending) {
				c.afterGrant(pending[i], result, &out)
			}
		}
	}

	if len(out.Completed) > 0 {
		if err := c.save(ctx); err != nil {
			out.Errors = append(out.Errors, err)
		}
	}
	return out
}

// candidates returns the definitions eligible for an event: unlocked and
// not done (unless repeatable), plus hidden locked ones whose
// prerequisites hold
func (c *Coordinator) candidates() []*models.AchievementDefinition {
	var out []*models.AchievementDefinition
	for _, def := range c.catalog.All() {
		p, ok := c.store.GetProgress(def.ID)
		if !ok {
			continue
		}
		switch {
		case p.Status == models.StatusLocked:
			if def.IsHidden && c.resolver.CheckPrerequisites(def) {
				out = append(out, def)
			}
		case p.Status.IsDone():
			if def.IsRepeatable {
				out = append(out, def)
			}
		default:
			out = append(out, def)
		}
	}
	return out
}

// evaluate applies an event to one achievement and reports whether it was
// completed by it
func (c *Coordinator) evaluate(ctx context.Context, event models.GameEventData, def *models.AchievementDefinition, now time.Time, out *Outcome) (completed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			completed = false
			err = &models.EvaluationError{AchievementID: def.ID, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if !conditions.Matches(event, def) {
		return false, nil
	}
	results, err := conditions.Evaluate(event, def)
	if err != nil {
		return false, err
	}
	if !conditions.Satisfied(event, def, results) {
		return false, nil
	}
	increment := conditions.Increment(event)

	var changed, revealed bool
	err = c.store.Mutate(def.ID, func(p *models.AchievementProgress) error {
		changed, revealed, completed = false, false, false
		if increment <= 0 && (p.Status == models.StatusLocked || p.Status.IsDone()) {
			return nil
		}
		if p.Status == models.StatusLocked {
			revealed = p.Unlock(now)
		}
		if p.Status.IsDone() {
			p.BeginCycle(now)
		}
		p.TargetValue = def.TargetValue
		changed = p.Advance(increment)
		if p.Status.IsActive() && p.CurrentValue >= p.TargetValue {
			p.Complete(now)
			completed = true
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, nil
		}
		return false, &models.EvaluationError{AchievementID: def.ID, Err: err}
	}

	if revealed {
		c.logger.Info("Revealed hidden achievement %s", def.ID)
		out.Unlocked = append(out.Unlocked, def.ID)
		c.emit(protocol.MsgAchievementUnlocked, def.ID, nil)
	}
	if changed {
		out.Updated = append(out.Updated, def.ID)
		c.emit(protocol.MsgProgressUpdated, def.ID, nil)
	}
	if completed {
		c.logger.Info("Achievement completed: %s", def.ID)
		out.Completed = append(out.Completed, def.ID)
		c.emit(protocol.MsgAchievementCompleted, def.ID, nil)
	}
	return completed, nil
}

// grantOnCompletion dispatches the rewards of a just-completed achievement
// when auto-grant is on
func (c *Coordinator) grantOnCompletion(ctx context.Context, def *models.AchievementDefinition, out *Outcome) {
	if !c.opts.AutoGrant || len(def.Rewards) == 0 {
		return
	}
	c.afterGrant(def.ID, c.dispatcher.GrantRewards(ctx, def.ID, def.Rewards), out)
}

// afterGrant records a dispatch result and marks the cycle's rewards as
// granted when at least one reward went through
func (c *Coordinator) afterGrant(id string, result models.RewardResult, out *Outcome) {
	out.addReward(id, result)
	if !result.Success {
		c.logger.Warn("Rewards for %s were not granted: %s", id, result.Message)
		return
	}
	err := c.store.Mutate(id, func(p *models.AchievementProgress) error {
		p.ExtraData[models.ExtraRewardsGranted] = true
		return nil
	})
	if err != nil {
		c.logger.Error("Failed to mark rewards granted for %s: %v", id, err)
	}
	c.emit(protocol.MsgRewardReceived, id, result.GrantedRewards)
}

// cascade unlocks achievements whose prerequisites now hold
func (c *Coordinator) cascade(out *Outcome) {
	for _, id := range c.resolver.ResolveNewUnlocks() {
		out.Unlocked = append(out.Unlocked, id)
		c.emit(protocol.MsgAchievementUnlocked, id, nil)
	}
}
