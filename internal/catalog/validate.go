package catalog

import (
	"fmt"
	"strings"

	"laurels/internal/models"
)

// validateDefinition checks one definition in isolation and fills defaults
// for optional enums and condition ids.
func validateDefinition(def *models.AchievementDefinition) error {
	fail := func(format string, args ...interface{}) error {
		return &models.ValidationError{Subject: "achievement " + def.ID, Reason: fmt.Sprintf(format, args...)}
	}

	def.ID = strings.TrimSpace(def.ID)
	if def.ID == "" {
		return fail("id is required")
	}
	if strings.TrimSpace(def.Name) == "" {
		return fail("name is required")
	}
	if def.TargetValue <= 0 {
		return fail("target_value must be positive, got %d", def.TargetValue)
	}

	if def.Type == "" {
		def.Type = models.TypeCounter
	} else if t, err := models.ParseAchievementType(string(def.Type)); err != nil {
		return fail("%v", err)
	} else {
		def.Type = t
	}
	if def.Category == "" {
		def.Category = models.CategorySpecial
	} else if c, err := models.ParseCategory(string(def.Category)); err != nil {
		return fail("%v", err)
	} else {
		def.Category = c
	}
	if def.ConditionLogic == "" {
		def.ConditionLogic = models.LogicAnd
	} else if l, err := models.ParseConditionLogic(string(def.ConditionLogic)); err != nil {
		return fail("%v", err)
	} else {
		def.ConditionLogic = l
	}
	if def.Rarity < models.RarityCommon || def.Rarity > models.RarityLegendary {
		return fail("invalid rarity %d", int(def.Rarity))
	}

	if def.ResetPeriodDays < 0 {
		return fail("reset_period_days cannot be negative")
	}
	if def.ScoreThreshold < 0 || def.ScoreThreshold > 1 {
		return fail("score_threshold must be within [0, 1], got %g", def.ScoreThreshold)
	}

	conditionIDs := make(map[string]bool, len(def.Conditions))
	for i := range def.Conditions {
		cond := &def.Conditions[i]
		if cond.ID == "" {
			cond.ID = fmt.Sprintf("cond_%d", i+1)
		}
		if conditionIDs[cond.ID] {
			return fail("duplicate condition id %q", cond.ID)
		}
		conditionIDs[cond.ID] = true
		if strings.TrimSpace(cond.EventType) == "" {
			return fail("condition %s has no event_type", cond.ID)
		}
		if cond.Weight < 0 {
			return fail("condition %s has negative weight", cond.ID)
		}
	}

	for i, reward := range def.Rewards {
		t, err := models.ParseRewardType(string(reward.Type))
		if err != nil {
			return fail("reward %d: %v", i+1, err)
		}
		def.Rewards[i].Type = t
		if reward.Amount < 0 {
			return fail("reward %d: amount cannot be negative", i+1)
		}
		if t.RequiresItem() && reward.ItemID == "" {
			return fail("reward %d: %s reward requires item_id", i+1, t)
		}
	}

	prereqs := make([]string, 0, len(def.Prerequisites))
	seen := make(map[string]bool, len(def.Prerequisites))
	for _, p := range def.Prerequisites {
		p = strings.TrimSpace(p)
		if p == "" {
			return fail("empty prerequisite id")
		}
		if p == def.ID {
			return fail("achievement cannot be its own prerequisite")
		}
		if !seen[p] {
			seen[p] = true
			prereqs = append(prereqs, p)
		}
	}
	def.Prerequisites = prereqs

	return nil
}

// resolveGraph drops definitions whose prerequisites are unknown, rejected,
// or part of a cycle. Rejection cascades to dependants.
func resolveGraph(defs []*models.AchievementDefinition) ([]*models.AchievementDefinition, []Rejection) {
	byID := make(map[string]*models.AchievementDefinition, len(defs))
	alive := make(map[string]bool, len(defs))
	for _, def := range defs {
		byID[def.ID] = def
		alive[def.ID] = true
	}

	var rejected []Rejection
	prune := func() {
		for changed := true; changed; {
			changed = false
			for _, def := range defs {
				if !alive[def.ID] {
					continue
				}
				for _, p := range def.Prerequisites {
					if alive[p] {
						continue
					}
					reason := fmt.Sprintf("unknown prerequisite %q", p)
					if _, known := byID[p]; known {
						reason = fmt.Sprintf("prerequisite %q was rejected", p)
					}
					alive[def.ID] = false
					rejected = append(rejected, Rejection{ID: def.ID, Reason: reason})
					changed = true
					break
				}
			}
		}
	}

	prune()
	cycles := findCycles(defs, byID, alive)
	for _, def := range defs {
		if cycle, ok := cycles[def.ID]; ok {
			alive[def.ID] = false
			rejected = append(rejected, Rejection{
				ID:     def.ID,
				Reason: "prerequisite cycle: " + strings.Join(cycle, " -> "),
			})
		}
	}
	prune()

	accepted := make([]*models.AchievementDefinition, 0, len(defs))
	for _, def := range defs {
		if alive[def.ID] {
			accepted = append(accepted, def)
		}
	}
	return accepted, rejected
}

// findCycles runs a depth-first search over live prerequisite edges and
// returns, for each id found on a back edge's cycle, that cycle's path.
func findCycles(defs []*models.AchievementDefinition, byID map[string]*models.AchievementDefinition, alive map[string]bool) map[string][]string {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(defs))
	onCycle := make(map[string][]string)
	var stack []string

	var visit func(id string)
	visit = func(id string) {
		color[id] = gray
		stack = append(stack, id)
		for _, p := range byID[id].Prerequisites {
			if !alive[p] {
				continue
			}
			switch color[p] {
			case white:
				visit(p)
			case gray:
				start := len(stack) - 1
				for stack[start] != p {
					start--
				}
				cycle := append(append([]string(nil), stack[start:]...), p)
				for _, member := range stack[start:] {
					if _, ok := onCycle[member]; !ok {
						onCycle[member] = cycle
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
	}

	for _, def := range defs {
		if alive[def.ID] && color[def.ID] == white {
			visit(def.ID)
		}
	}
	return onCycle
}
