package catalog

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"laurels/internal/models"
)

// record mirrors the catalog source schema. Enums stay strings until
// toDefinition parses them so a bad value rejects only its own record.
type record struct {
	ID              string            `yaml:"id"`
	Name            string            `yaml:"name"`
	Description     string            `yaml:"description"`
	Type            string            `yaml:"type"`
	Category        string            `yaml:"category"`
	Rarity          string            `yaml:"rarity"`
	Icon            string            `yaml:"icon"`
	Points          int               `yaml:"points"`
	TargetValue     int64             `yaml:"target_value"`
	ConditionLogic  string            `yaml:"condition_logic"`
	Conditions      []conditionRecord `yaml:"conditions"`
	ScoreThreshold  float64           `yaml:"score_threshold"`
	Prerequisites   []string          `yaml:"prerequisites"`
	Rewards         []rewardRecord    `yaml:"rewards"`
	IsHidden        bool              `yaml:"is_hidden"`
	IsRepeatable    bool              `yaml:"is_repeatable"`
	ResetCycle      string            `yaml:"reset_cycle"`
	ResetPeriodDays *int              `yaml:"reset_period_days"`
	ExtraData       map[string]any    `yaml:"extra_data"`
}

type conditionRecord struct {
	ID              string         `yaml:"id"`
	EventType       string         `yaml:"event_type"`
	ParameterName   string         `yaml:"parameter_name"`
	ComparisonValue any            `yaml:"comparison_value"`
	ComparisonOp    string         `yaml:"comparison_op"`
	IsOptional      bool           `yaml:"is_optional"`
	Weight          float64        `yaml:"weight"`
	Filters         map[string]any `yaml:"filters"`
}

type rewardRecord struct {
	Type        string  `yaml:"type"`
	ItemID      string  `yaml:"item_id"`
	Amount      int64   `yaml:"amount"`
	Description string  `yaml:"description"`
	IsRare      bool    `yaml:"is_rare"`
	Weight      float64 `yaml:"weight"`
}

// parseDocument accepts a bare list of records or { version, achievements }.
// JSON documents are valid YAML and take the same path.
func parseDocument(data []byte) ([]yaml.Node, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, errors.New("catalog document is empty")
	}

	node := root.Content[0]
	switch node.Kind {
	case yaml.SequenceNode:
		return elements(node), nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value != "achievements" {
				continue
			}
			list := node.Content[i+1]
			if list.Kind != yaml.SequenceNode {
				return nil, errors.New("achievements must be a list")
			}
			return elements(list), nil
		}
		return nil, errors.New("catalog document has no achievements list")
	default:
		return nil, fmt.Errorf("unexpected catalog document at line %d", node.Line)
	}
}

func elements(seq *yaml.Node) []yaml.Node {
	out := make([]yaml.Node, len(seq.Content))
	for i, n := range seq.Content {
		out[i] = *n
	}
	return out
}

// recordID extracts the id of a raw record for rejection reports
func recordID(node *yaml.Node, index int) string {
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == "id" && node.Content[i+1].Value != "" {
				return node.Content[i+1].Value
			}
		}
	}
	return fmt.Sprintf("#%d", index)
}

func decodeRecord(node *yaml.Node) (*models.AchievementDefinition, error) {
	var rec record
	if err := node.Decode(&rec); err != nil {
		return nil, &models.ValidationError{Subject: "record", Reason: fmt.Sprintf("line %d", node.Line), Err: err}
	}
	return rec.toDefinition()
}

func (rec *record) toDefinition() (*models.AchievementDefinition, error) {
	def := &models.AchievementDefinition{
		ID:             strings.TrimSpace(rec.ID),
		Name:           rec.Name,
		Description:    rec.Description,
		Icon:           rec.Icon,
		Points:         rec.Points,
		TargetValue:    rec.TargetValue,
		ScoreThreshold: rec.ScoreThreshold,
		Prerequisites:  rec.Prerequisites,
		IsHidden:       rec.IsHidden,
		IsRepeatable:   rec.IsRepeatable,
		ExtraData:      rec.ExtraData,
	}
	invalid := func(err error) error {
		return &models.ValidationError{Subject: "achievement " + def.ID, Reason: err.Error()}
	}

	var err error
	if rec.Type != "" {
		if def.Type, err = models.ParseAchievementType(rec.Type); err != nil {
			return nil, invalid(err)
		}
	}
	if rec.Category != "" {
		if def.Category, err = models.ParseCategory(rec.Category); err != nil {
			return nil, invalid(err)
		}
	}
	if rec.Rarity != "" {
		if def.Rarity, err = models.ParseRarity(rec.Rarity); err != nil {
			return nil, invalid(err)
		}
	}
	if rec.ConditionLogic != "" {
		if def.ConditionLogic, err = models.ParseConditionLogic(rec.ConditionLogic); err != nil {
			return nil, invalid(err)
		}
	}

	switch {
	case rec.ResetPeriodDays != nil:
		def.ResetPeriodDays = *rec.ResetPeriodDays
	case rec.ResetCycle != "":
		cycle, err := models.ParseResetCycle(rec.ResetCycle)
		if err != nil {
			return nil, invalid(err)
		}
		def.ResetPeriodDays = cycle.Days()
	}

	for _, cr := range rec.Conditions {
		def.Conditions = append(def.Conditions, models.Condition{
			ID:              cr.ID,
			EventType:       cr.EventType,
			ParameterName:   cr.ParameterName,
			ComparisonValue: cr.ComparisonValue,
			ComparisonOp:    models.ComparisonOp(cr.ComparisonOp),
			IsOptional:      cr.IsOptional,
			Weight:          cr.Weight,
			Filters:         cr.Filters,
		})
	}

	for i, rr := range rec.Rewards {
		rt, err := models.ParseRewardType(rr.Type)
		if err != nil {
			return nil, invalid(fmt.Errorf("reward %d: %w", i+1, err))
		}
		def.Rewards = append(def.Rewards, models.RewardSpec{
			Type:        rt,
			ItemID:      rr.ItemID,
			Amount:      rr.Amount,
			Description: rr.Description,
			IsRare:      rr.IsRare,
			Weight:      rr.Weight,
		})
	}

	if err := validateDefinition(def); err != nil {
		return nil, err
	}
	return def, nil
}
