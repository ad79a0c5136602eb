package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"laurels/internal/models"
	"laurels/pkg/protocol"
)

// ClaimReward moves a Completed achievement to RewardClaimed. Rewards that
// were not granted on completion are granted first; if none of them can be
// granted the claim fails and the record stays Completed.
func (c *Coordinator) ClaimReward(ctx context.Context, id string) (models.RewardResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	def, ok := c.catalog.GetByID(id)
	if !ok {
		return models.RewardResult{}, fmt.Errorf("claim %s: %w", id, models.ErrNotFound)
	}
	p, ok := c.store.GetProgress(id)
	if !ok {
		return models.RewardResult{}, fmt.Errorf("claim %s: %w", id, models.ErrNotFound)
	}
	switch p.Status {
	case models.StatusRewardClaimed:
		return models.RewardResult{}, fmt.Errorf("claim %s: %w", id, models.ErrAlreadyClaimed)
	case models.StatusCompleted:
	default:
		return models.RewardResult{}, fmt.Errorf("claim %s: %w", id, models.ErrNotCompleted)
	}

	result := models.RewardResult{Success: true, Message: "rewards already granted"}
	grantedNow := false
	if !p.RewardsGranted() && len(def.Rewards) > 0 {
		result = c.dispatcher.GrantRewards(ctx, id, def.Rewards)
		if !result.Success {
			return result, &models.DispatchError{AchievementID: id, Err: errors.New(result.Message)}
		}
		grantedNow = true
	}

	err := c.store.Mutate(id, func(p *models.AchievementProgress) error {
		p.Status = models.StatusRewardClaimed
		p.IsRewardClaimed = true
		p.ExtraData[models.ExtraRewardsGranted] = true
		return nil
	})
	if err != nil {
		return result, err
	}

	c.logger.Info("Reward claimed for %s", id)
	if grantedNow {
		c.emit(protocol.MsgRewardReceived, id, result.GrantedRewards)
	}
	c.save(ctx)
	return result, nil
}

// Reset zeroes an achievement's progress. It returns to Unlocked, or to
// Locked when it is hidden or its prerequisites no longer hold. The
// completion count is kept.
func (c *Coordinator) Reset(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	def, ok := c.catalog.GetByID(id)
	if !ok {
		return fmt.Errorf("reset %s: %w", id, models.ErrNotFound)
	}
	if err := c.reset(def); err != nil {
		return fmt.Errorf("reset %s: %w", id, err)
	}
	c.save(ctx)
	return nil
}

func (c *Coordinator) reset(def *models.AchievementDefinition) error {
	status := models.StatusUnlocked
	if def.IsHidden || !c.resolver.CheckPrerequisites(def) {
		status = models.StatusLocked
	}
	if err := c.store.Reset(def.ID, status); err != nil {
		return err
	}
	c.syncTarget(def)
	c.logger.Info("Reset %s to %s", def.ID, status)
	c.emit(protocol.MsgProgressUpdated, def.ID, nil)
	return nil
}

// ApplyResetCycles resets every periodic achievement whose period has
// elapsed since its last reset, or since it was unlocked when it was never
// reset. Locked records are skipped. It returns the ids that were reset.
func (c *Coordinator) ApplyResetCycles(ctx context.Context, now time.Time) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var reset []string
	for _, def := range c.catalog.All() {
		if def.ResetPeriodDays <= 0 {
			continue
		}
		p, ok := c.store.GetProgress(def.ID)
		if !ok || p.Status == models.StatusLocked {
			continue
		}
		anchor := p.LastResetAt
		if anchor == nil {
			anchor = p.UnlockedAt
		}
		if anchor == nil {
			continue
		}
		period := time.Duration(def.ResetPeriodDays) * 24 * time.Hour
		if now.Sub(*anchor) < period {
			continue
		}
		if err := c.reset(def); err != nil {
			c.logger.Error("Periodic reset of %s failed: %v", def.ID, err)
			continue
		}
		reset = append(reset, def.ID)
	}

	if len(reset) > 0 {
		c.logger.Info("Periodic reset applied to %d achievements", len(reset))
		c.save(ctx)
	}
	return reset
}
