package models

import (
	"fmt"
	"strings"
)

// AchievementType describes how an achievement measures progress
type AchievementType string

const (
	TypeCounter    AchievementType = "Counter"
	TypeMilestone  AchievementType = "Milestone"
	TypeCollection AchievementType = "Collection"
	TypeSequence   AchievementType = "Sequence"
	TypeCondition  AchievementType = "Condition"
)

// AchievementTypes lists every known type in display order
var AchievementTypes = []AchievementType{TypeCounter, TypeMilestone, TypeCollection, TypeSequence, TypeCondition}

// Category groups related achievements
type Category string

const (
	CategoryCombat      Category = "Combat"
	CategoryCollection  Category = "Collection"
	CategoryProgression Category = "Progression"
	CategoryExploration Category = "Exploration"
	CategorySocial      Category = "Social"
	CategoryChallenge   Category = "Challenge"
	CategoryHidden      Category = "Hidden"
	CategorySpecial     Category = "Special"
)

// Categories lists every known category in display order
var Categories = []Category{
	CategoryCombat, CategoryCollection, CategoryProgression, CategoryExploration,
	CategorySocial, CategoryChallenge, CategoryHidden, CategorySpecial,
}

// Rarity is ordered: Common < Uncommon < Rare < Epic < Legendary
type Rarity int

const (
	RarityCommon Rarity = iota
	RarityUncommon
	RarityRare
	RarityEpic
	RarityLegendary
)

var rarityNames = []string{"Common", "Uncommon", "Rare", "Epic", "Legendary"}

func (r Rarity) String() string {
	if r < RarityCommon || r > RarityLegendary {
		return fmt.Sprintf("Rarity(%d)", int(r))
	}
	return rarityNames[r]
}

// MarshalText encodes the rarity by name
func (r Rarity) MarshalText() ([]byte, error) {
	if r < RarityCommon || r > RarityLegendary {
		return nil, fmt.Errorf("invalid rarity %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText decodes a rarity name
func (r *Rarity) UnmarshalText(text []byte) error {
	parsed, err := ParseRarity(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ConditionLogic is how a definition's conditions combine
type ConditionLogic string

const (
	LogicAnd      ConditionLogic = "And"
	LogicOr       ConditionLogic = "Or"
	LogicSequence ConditionLogic = "Sequence"
)

// ComparisonOp compares an event parameter with a condition's value
type ComparisonOp string

const (
	OpEqual          ComparisonOp = "Equal"
	OpNotEqual       ComparisonOp = "NotEqual"
	OpGreater        ComparisonOp = "Greater"
	OpGreaterOrEqual ComparisonOp = "GreaterOrEqual"
	OpLess           ComparisonOp = "Less"
	OpLessOrEqual    ComparisonOp = "LessOrEqual"
	OpContains       ComparisonOp = "Contains"
	OpExists         ComparisonOp = "Exists"
)

// ResetCycle names how often a repeatable achievement resets
type ResetCycle string

const (
	ResetNever   ResetCycle = "Never"
	ResetDaily   ResetCycle = "Daily"
	ResetWeekly  ResetCycle = "Weekly"
	ResetMonthly ResetCycle = "Monthly"
)

// Days returns the reset period in days for the cycle
func (c ResetCycle) Days() int {
	switch c {
	case ResetDaily:
		return 1
	case ResetWeekly:
		return 7
	case ResetMonthly:
		return 30
	default:
		return 0
	}
}

// Condition is a single testable predicate over an incoming event
type Condition struct {
	ID              string         `json:"id" yaml:"id"`
	EventType       string         `json:"event_type" yaml:"event_type"`
	ParameterName   string         `json:"parameter_name,omitempty" yaml:"parameter_name,omitempty"`
	ComparisonValue interface{}    `json:"comparison_value" yaml:"comparison_value"`
	ComparisonOp    ComparisonOp   `json:"comparison_op,omitempty" yaml:"comparison_op,omitempty"`
	IsOptional      bool           `json:"is_optional,omitempty" yaml:"is_optional,omitempty"`
	Weight          float64        `json:"weight,omitempty" yaml:"weight,omitempty"`
	Filters         map[string]any `json:"filters,omitempty" yaml:"filters,omitempty"`
}

// EffectiveWeight returns the condition weight, treating unset as 1
func (c Condition) EffectiveWeight() float64 {
	if c.Weight <= 0 {
		return 1
	}
	return c.Weight
}

// AchievementDefinition is the immutable rule describing how an achievement
// is detected and rewarded
type AchievementDefinition struct {
	ID              string          `json:"id" yaml:"id"`
	Name            string          `json:"name" yaml:"name"`
	Description     string          `json:"description" yaml:"description"`
	Type            AchievementType `json:"type" yaml:"type"`
	Category        Category        `json:"category" yaml:"category"`
	Rarity          Rarity          `json:"rarity" yaml:"rarity"`
	Icon            string          `json:"icon,omitempty" yaml:"icon,omitempty"`
	Points          int             `json:"points,omitempty" yaml:"points,omitempty"`
	TargetValue     int64           `json:"target_value" yaml:"target_value"`
	ConditionLogic  ConditionLogic  `json:"condition_logic" yaml:"condition_logic"`
	Conditions      []Condition     `json:"conditions" yaml:"conditions"`
	ScoreThreshold  float64         `json:"score_threshold,omitempty" yaml:"score_threshold,omitempty"`
	Prerequisites   []string        `json:"prerequisites,omitempty" yaml:"prerequisites,omitempty"`
	Rewards         []RewardSpec    `json:"rewards,omitempty" yaml:"rewards,omitempty"`
	IsHidden        bool            `json:"is_hidden" yaml:"is_hidden"`
	IsRepeatable    bool            `json:"is_repeatable" yaml:"is_repeatable"`
	ResetPeriodDays int             `json:"reset_period_days" yaml:"reset_period_days"`
	ExtraData       map[string]any  `json:"extra_data,omitempty" yaml:"extra_data,omitempty"`
}

// IsGated reports whether the definition starts Locked
func (d *AchievementDefinition) IsGated() bool {
	return d.IsHidden || len(d.Prerequisites) > 0
}

// ParseAchievementType parses a type name case-insensitively
func ParseAchievementType(s string) (AchievementType, error) {
	for _, t := range AchievementTypes {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown achievement type %q", s)
}

// ParseCategory parses a category name case-insensitively
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// ParseRarity parses a rarity name case-insensitively
func ParseRarity(s string) (Rarity, error) {
	for i, name := range rarityNames {
		if strings.EqualFold(s, name) {
			return Rarity(i), nil
		}
	}
	return 0, fmt.Errorf("unknown rarity %q", s)
}

// ParseConditionLogic parses a logic name case-insensitively
func ParseConditionLogic(s string) (ConditionLogic, error) {
	for _, l := range []ConditionLogic{LogicAnd, LogicOr, LogicSequence} {
		if strings.EqualFold(s, string(l)) {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown condition logic %q", s)
}

// ParseResetCycle parses a reset cycle name case-insensitively
func ParseResetCycle(s string) (ResetCycle, error) {
	for _, c := range []ResetCycle{ResetNever, ResetDaily, ResetWeekly, ResetMonthly} {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown reset cycle %q", s)
}

var comparisonAliases = map[string]ComparisonOp{
	"":               OpEqual,
	"==":             OpEqual,
	"=":              OpEqual,
	"equal":          OpEqual,
	"equals":         OpEqual,
	"!=":             OpNotEqual,
	"notequal":       OpNotEqual,
	">":              OpGreater,
	"greater":        OpGreater,
	"greaterthan":    OpGreater,
	">=":             OpGreaterOrEqual,
	"greaterorequal": OpGreaterOrEqual,
	"<":              OpLess,
	"less":           OpLess,
	"lessthan":       OpLess,
	"<=":             OpLessOrEqual,
	"lessorequal":    OpLessOrEqual,
	"contains":       OpContains,
	"exists":         OpExists,
}

// NormalizeComparisonOp resolves symbolic and named aliases. ok is false for
// operators this build does not know.
func NormalizeComparisonOp(op ComparisonOp) (ComparisonOp, bool) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(string(op)), "_", ""))
	normalized, ok := comparisonAliases[key]
	return normalized, ok
}
