// Package conditions evaluates achievement conditions against game events.
//
// Only conditions whose event type matches the incoming event take part in
// a decision. A definition with conditions on several event types is
// therefore satisfied by any event that satisfies its own applicable subset.
package conditions

import (
	"fmt"

	"laurels/internal/models"
)

// Matches reports whether any condition of def listens for the event's type.
// Definitions without conditions never match.
func Matches(event models.GameEventData, def *models.AchievementDefinition) bool {
	for _, cond := range def.Conditions {
		if cond.EventType == event.EventType {
			return true
		}
	}
	return false
}

// Evaluate returns one result per condition in declared order. Conditions
// for other event types evaluate to false. An operator this build does not
// know yields an *models.EvaluationError.
func Evaluate(event models.GameEventData, def *models.AchievementDefinition) ([]bool, error) {
	results := make([]bool, len(def.Conditions))
	for i, cond := range def.Conditions {
		if cond.EventType != event.EventType {
			continue
		}
		ok, err := evaluateCondition(event, cond)
		if err != nil {
			return nil, &models.EvaluationError{AchievementID: def.ID, ConditionID: cond.ID, Err: err}
		}
		results[i] = ok
	}
	return results, nil
}

func evaluateCondition(event models.GameEventData, cond models.Condition) (bool, error) {
	op, known := models.NormalizeComparisonOp(cond.ComparisonOp)
	if !known {
		return false, fmt.Errorf("unknown comparison operator %q", cond.ComparisonOp)
	}

	for name, want := range cond.Filters {
		got, ok := event.Param(name)
		if !ok || !equalValues(got, want) {
			return false, nil
		}
	}

	if cond.ParameterName == "" {
		return true, nil
	}
	actual, present := event.Param(cond.ParameterName)
	return compare(op, actual, present, cond.ComparisonValue), nil
}

// CombinedResult folds results with logic. And over no results is false.
// Sequence is evaluated as And over the conditions in declared order.
func CombinedResult(results []bool, logic models.ConditionLogic) bool {
	switch logic {
	case models.LogicOr:
		for _, r := range results {
			if r {
				return true
			}
		}
		return false
	default:
		if len(results) == 0 {
			return false
		}
		for _, r := range results {
			if !r {
				return false
			}
		}
		return true
	}
}

// Satisfied decides whether the event advances def given Evaluate's results.
// Optional conditions are left out of the And/Or decision unless every
// applicable condition is optional. With a score threshold, the weighted
// score of the applicable conditions decides instead.
func Satisfied(event models.GameEventData, def *models.AchievementDefinition, results []bool) bool {
	if len(results) != len(def.Conditions) {
		return false
	}

	var required, optional []bool
	for i, cond := range def.Conditions {
		if cond.EventType != event.EventType {
			continue
		}
		if cond.IsOptional {
			optional = append(optional, results[i])
		} else {
			required = append(required, results[i])
		}
	}
	if len(required)+len(optional) == 0 {
		return false
	}

	if def.ScoreThreshold > 0 {
		return WeightedScore(event, def, results) >= def.ScoreThreshold
	}
	if len(required) == 0 {
		required = optional
	}
	return CombinedResult(required, def.ConditionLogic)
}

// WeightedScore returns the passed share of the applicable conditions'
// total weight, in [0, 1]. Optional conditions contribute.
func WeightedScore(event models.GameEventData, def *models.AchievementDefinition, results []bool) float64 {
	var total, passed float64
	for i, cond := range def.Conditions {
		if cond.EventType != event.EventType || i >= len(results) {
			continue
		}
		w := cond.EffectiveWeight()
		total += w
		if results[i] {
			passed += w
		}
	}
	if total == 0 {
		return 0
	}
	return passed / total
}

// Increment returns how far the event advances progress: an explicit
// "increment" parameter, else the batch count for batch events, else 1.
// Zero and negative values are returned as given.
func Increment(event models.GameEventData) int64 {
	if v, ok := event.Param(models.ParamIncrement); ok {
		if n, ok := models.AsInt(v); ok {
			return n
		}
	}
	if event.IsBatch {
		return int64(event.BatchCount)
	}
	return 1
}
