package models

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a progress record
type Status int

const (
	StatusLocked Status = iota
	StatusUnlocked
	StatusInProgress
	StatusCompleted
	StatusRewardClaimed
)

var statusNames = []string{"Locked", "Unlocked", "InProgress", "Completed", "RewardClaimed"}

func (s Status) String() string {
	if s < StatusLocked || s > StatusRewardClaimed {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// MarshalText encodes the status by name
func (s Status) MarshalText() ([]byte, error) {
	if s < StatusLocked || s > StatusRewardClaimed {
		return nil, fmt.Errorf("invalid status %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus parses a status name case-insensitively
func ParseStatus(s string) (Status, error) {
	for i, name := range statusNames {
		if strings.EqualFold(s, name) {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", s)
}

// IsActive reports whether the record is unlocked and not yet completed
func (s Status) IsActive() bool {
	return s == StatusUnlocked || s == StatusInProgress
}

// IsDone reports whether the record has reached Completed or beyond
func (s Status) IsDone() bool {
	return s >= StatusCompleted
}

// AchievementProgress is the mutable per-achievement state
type AchievementProgress struct {
	AchievementID   string         `json:"achievement_id"`
	CurrentValue    int64          `json:"current_value"`
	TargetValue     int64          `json:"target_value"`
	Status          Status         `json:"status"`
	CompletionCount int            `json:"completion_count"`
	UnlockedAt      *time.Time     `json:"unlocked_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	LastResetAt     *time.Time     `json:"last_reset_at,omitempty"`
	IsRewardClaimed bool           `json:"is_reward_claimed"`
	ExtraData       map[string]any `json:"extra_data,omitempty"`
}

// NewProgress creates a record for a definition in the given initial status
func NewProgress(def *AchievementDefinition, status Status, now time.Time) *AchievementProgress {
	p := &AchievementProgress{
		AchievementID: def.ID,
		TargetValue:   def.TargetValue,
		Status:        status,
		ExtraData:     make(map[string]any),
	}
	if status != StatusLocked {
		p.UnlockedAt = timePtr(now)
	}
	return p
}

// IsCompleted reports whether the current cycle reached its target
func (p *AchievementProgress) IsCompleted() bool {
	return p.Status.IsDone()
}

// EverCompleted reports whether the achievement was completed at least once
func (p *AchievementProgress) EverCompleted() bool {
	return p.Status.IsDone() || p.CompletionCount > 0
}

// Percent returns progress toward the target in [0, 100]
func (p *AchievementProgress) Percent() float64 {
	if p.TargetValue <= 0 {
		return 0
	}
	pct := float64(p.CurrentValue) / float64(p.TargetValue) * 100
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

// Clone returns a deep copy safe to hand to callers outside the store
func (p *AchievementProgress) Clone() *AchievementProgress {
	if p == nil {
		return nil
	}
	c := *p
	c.UnlockedAt = copyTime(p.UnlockedAt)
	c.CompletedAt = copyTime(p.CompletedAt)
	c.LastResetAt = copyTime(p.LastResetAt)
	c.ExtraData = make(map[string]any, len(p.ExtraData))
	for k, v := range p.ExtraData {
		c.ExtraData[k] = v
	}
	return &c
}

// Unlock moves a Locked record to Unlocked
func (p *AchievementProgress) Unlock(now time.Time) bool {
	if p.Status != StatusLocked {
		return false
	}
	p.Status = StatusUnlocked
	p.UnlockedAt = timePtr(now)
	return true
}

// Advance adds increment to the current value without ever decreasing it.
// It returns true when the value changed.
func (p *AchievementProgress) Advance(increment int64) bool {
	next := p.CurrentValue + increment
	if next <= p.CurrentValue {
		return false
	}
	p.CurrentValue = next
	if p.Status == StatusUnlocked {
		p.Status = StatusInProgress
	}
	return true
}

// Complete marks the current cycle completed
func (p *AchievementProgress) Complete(now time.Time) {
	p.Status = StatusCompleted
	p.CompletionCount++
	p.CompletedAt = timePtr(now)
	p.IsRewardClaimed = false
}

// BeginCycle restarts a repeatable record after a completion
func (p *AchievementProgress) BeginCycle(now time.Time) {
	p.CurrentValue = 0
	p.Status = StatusUnlocked
	p.IsRewardClaimed = false
	p.LastResetAt = timePtr(now)
	delete(p.ExtraData, ExtraRewardsGranted)
}

// ExtraRewardsGranted marks in ExtraData that the current cycle's rewards were granted
const ExtraRewardsGranted = "rewards_granted"

// RewardsGranted reports whether the current cycle's rewards were granted
func (p *AchievementProgress) RewardsGranted() bool {
	granted, _ := p.ExtraData[ExtraRewardsGranted].(bool)
	return granted
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
