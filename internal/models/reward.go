package models

import (
	"fmt"
	"strings"
	"time"
)

// RewardType keys the reward handler registry
type RewardType string

const (
	RewardCurrency   RewardType = "Currency"
	RewardExperience RewardType = "Experience"
	RewardItem       RewardType = "Item"
	RewardCard       RewardType = "Card"
	RewardTitle      RewardType = "Title"
	RewardUnlock     RewardType = "Unlock"
	RewardBadge      RewardType = "Badge"
)

// RewardTypes lists every known reward type
var RewardTypes = []RewardType{
	RewardCurrency, RewardExperience, RewardItem, RewardCard,
	RewardTitle, RewardUnlock, RewardBadge,
}

// ParseRewardType parses a reward type name case-insensitively
func ParseRewardType(s string) (RewardType, error) {
	for _, t := range RewardTypes {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown reward type %q", s)
}

// RequiresItem reports whether rewards of this type must name an item
func (t RewardType) RequiresItem() bool {
	switch t {
	case RewardItem, RewardCard, RewardTitle, RewardUnlock, RewardBadge:
		return true
	default:
		return false
	}
}

// RewardSpec is one entry of a reward bundle
type RewardSpec struct {
	Type        RewardType `json:"type" yaml:"type"`
	ItemID      string     `json:"item_id,omitempty" yaml:"item_id,omitempty"`
	Amount      int64      `json:"amount" yaml:"amount"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	IsRare      bool       `json:"is_rare,omitempty" yaml:"is_rare,omitempty"`
	Weight      float64    `json:"weight,omitempty" yaml:"weight,omitempty"`
}

func (r RewardSpec) String() string {
	if r.ItemID != "" {
		return fmt.Sprintf("%s:%s x%d", r.Type, r.ItemID, r.Amount)
	}
	return fmt.Sprintf("%s x%d", r.Type, r.Amount)
}

// RewardResult is the outcome of one dispatch attempt
type RewardResult struct {
	Success        bool         `json:"success"`
	Message        string       `json:"message,omitempty"`
	GrantedAmount  int64        `json:"granted_amount"`
	GrantedRewards []RewardSpec `json:"granted_rewards,omitempty"`
	FailedRewards  []RewardSpec `json:"failed_rewards,omitempty"`
	Errors         []string     `json:"errors,omitempty"`
}

// Merge folds a per-reward result into a bundle result
func (r *RewardResult) Merge(other RewardResult) {
	r.GrantedAmount += other.GrantedAmount
	r.GrantedRewards = append(r.GrantedRewards, other.GrantedRewards...)
	r.FailedRewards = append(r.FailedRewards, other.FailedRewards...)
	r.Errors = append(r.Errors, other.Errors...)
}

// RewardRecord is the audit trail entry for a dispatch attempt
type RewardRecord struct {
	ID            string       `json:"id"`
	AchievementID string       `json:"achievement_id"`
	Rewards       []RewardSpec `json:"rewards"`
	Result        RewardResult `json:"result"`
	Timestamp     time.Time    `json:"timestamp"`
	BatchID       string       `json:"batch_id,omitempty"`
}
