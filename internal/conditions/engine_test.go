package conditions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laurels/internal/models"
)

func event(eventType string, params map[string]any) models.GameEventData {
	return models.NewEvent(eventType, params)
}

func TestMatches(t *testing.T) {
	def := &models.AchievementDefinition{ID: "a", Conditions: []models.Condition{
		{ID: "c1", EventType: "EnemyDefeated"},
		{ID: "c2", EventType: "ItemCollected"},
	}}
	assert.True(t, Matches(event("ItemCollected", nil), def))
	assert.False(t, Matches(event("LevelCompleted", nil), def))

	empty := &models.AchievementDefinition{ID: "empty"}
	assert.False(t, Matches(event("EnemyDefeated", nil), empty))
}

func TestEvaluateComparisons(t *testing.T) {
	cases := []struct {
		name  string
		op    models.ComparisonOp
		value any
		param any
		want  bool
	}{
		{"equal string", "Equal", "boss", "boss", true},
		{"equal mismatch", "==", "boss", "minion", false},
		{"equal numeric types", "", 5, float64(5), true},
		{"not equal", "!=", "boss", "minion", true},
		{"greater", ">", 10, 11, true},
		{"greater equal boundary", "GreaterOrEqual", 10, 10, true},
		{"less", "Less", 3, 4, false},
		{"less or equal", "<=", 0, 0, true},
		{"string order", "Greater", "b", "c", true},
		{"contains substring", "Contains", "fire", "fireball", true},
		{"contains list", "Contains", "sword", []any{"shield", "sword"}, true},
		{"contains missing", "Contains", "axe", []any{"shield"}, false},
		{"uncomparable", ">", 3, []any{1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			def := &models.AchievementDefinition{ID: "a", Conditions: []models.Condition{{
				ID: "c", EventType: "E", ParameterName: "p", ComparisonOp: tc.op, ComparisonValue: tc.value,
			}}}
			results, err := Evaluate(event("E", map[string]any{"p": tc.param}), def)
			require.NoError(t, err)
			assert.Equal(t, []bool{tc.want}, results)
		})
	}
}

func TestEvaluateExistsAndMissingParameter(t *testing.T) {
	def := &models.AchievementDefinition{ID: "a", Conditions: []models.Condition{
		{ID: "exists", EventType: "E", ParameterName: "combo", ComparisonOp: models.OpExists},
		{ID: "greater", EventType: "E", ParameterName: "combo", ComparisonOp: models.OpGreater, ComparisonValue: 1},
	}}
	results, err := Evaluate(event("E", nil), def)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false}, results)

	results, err = Evaluate(event("E", map[string]any{"combo": 3}), def)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true}, results)
}

func TestEvaluateFilters(t *testing.T) {
	def := &models.AchievementDefinition{ID: "a", Conditions: []models.Condition{{
		ID: "c", EventType: "EnemyDefeated", Filters: map[string]any{"zone": "crypt", "tier": 2},
	}}}

	results, err := Evaluate(event("EnemyDefeated", map[string]any{"zone": "crypt", "tier": 2.0}), def)
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, results)

	results, err = Evaluate(event("EnemyDefeated", map[string]any{"zone": "forest", "tier": 2}), def)
	require.NoError(t, err)
	assert.Equal(t, []bool{false}, results)
}

func TestEvaluateOtherEventTypesAreFalse(t *testing.T) {
	def := &models.AchievementDefinition{ID: "a", Conditions: []models.Condition{
		{ID: "kill", EventType: "EnemyDefeated"},
		{ID: "loot", EventType: "ItemCollected", ComparisonOp: "Between"},
	}}
	// the unknown operator is never reached for another event type
	results, err := Evaluate(event("EnemyDefeated", nil), def)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, results)
}

func TestEvaluateUnknownOperator(t *testing.T) {
	def := &models.AchievementDefinition{ID: "broken", Conditions: []models.Condition{
		{ID: "weird", EventType: "ItemCollected", ParameterName: "rarity", ComparisonOp: "Between", ComparisonValue: 3},
	}}
	_, err := Evaluate(event("ItemCollected", map[string]any{"rarity": 3}), def)
	var ee *models.EvaluationError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "broken", ee.AchievementID)
	assert.Equal(t, "weird", ee.ConditionID)
}

func TestCombinedResult(t *testing.T) {
	assert.True(t, CombinedResult([]bool{true, true}, models.LogicAnd))
	assert.False(t, CombinedResult([]bool{true, false}, models.LogicAnd))
	assert.False(t, CombinedResult(nil, models.LogicAnd))
	assert.True(t, CombinedResult([]bool{false, true}, models.LogicOr))
	assert.False(t, CombinedResult([]bool{false, false}, models.LogicOr))
	assert.False(t, CombinedResult(nil, models.LogicOr))
	assert.Equal(t, CombinedResult([]bool{true, false}, models.LogicAnd), CombinedResult([]bool{true, false}, models.LogicSequence))
	assert.True(t, CombinedResult([]bool{true, true}, models.LogicSequence))
}

func TestSatisfiedIgnoresOptionalConditions(t *testing.T) {
	def := &models.AchievementDefinition{ID: "a", ConditionLogic: models.LogicAnd, Conditions: []models.Condition{
		{ID: "kill", EventType: "EnemyDefeated"},
		{ID: "crit", EventType: "EnemyDefeated", ParameterName: "critical", ComparisonValue: true, IsOptional: true},
	}}
	ev := event("EnemyDefeated", map[string]any{"critical": false})
	results, err := Evaluate(ev, def)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, results)
	assert.True(t, Satisfied(ev, def, results))
}

func TestSatisfiedAllOptional(t *testing.T) {
	def := &models.AchievementDefinition{ID: "a", ConditionLogic: models.LogicOr, Conditions: []models.Condition{
		{ID: "a", EventType: "E", ParameterName: "x", ComparisonValue: 1, IsOptional: true},
		{ID: "b", EventType: "E", ParameterName: "y", ComparisonValue: 1, IsOptional: true},
	}}
	ev := event("E", map[string]any{"y": 1})
	results, err := Evaluate(ev, def)
	require.NoError(t, err)
	assert.True(t, Satisfied(ev, def, results))

	ev = event("E", map[string]any{"z": 1})
	results, err = Evaluate(ev, def)
	require.NoError(t, err)
	assert.False(t, Satisfied(ev, def, results))
}

func TestSatisfiedAcrossEventTypes(t *testing.T) {
	def := &models.AchievementDefinition{ID: "a", ConditionLogic: models.LogicAnd, Conditions: []models.Condition{
		{ID: "kill", EventType: "EnemyDefeated"},
		{ID: "loot", EventType: "ItemCollected"},
	}}
	ev := event("ItemCollected", nil)
	results, err := Evaluate(ev, def)
	require.NoError(t, err)
	assert.True(t, Satisfied(ev, def, results))

	assert.False(t, Satisfied(event("Other", nil), def, []bool{false, false}))
}

func TestWeightedThreshold(t *testing.T) {
	def := &models.AchievementDefinition{ID: "a", ScoreThreshold: 0.7, Conditions: []models.Condition{
		{ID: "win", EventType: "MatchWon", Weight: 3},
		{ID: "flawless", EventType: "MatchWon", ParameterName: "deaths", ComparisonValue: 0, Weight: 1, IsOptional: true},
		{ID: "fast", EventType: "MatchWon", ParameterName: "minutes", ComparisonOp: "<", ComparisonValue: 10, Weight: 1},
	}}

	ev := event("MatchWon", map[string]any{"deaths": 0, "minutes": 25})
	results, err := Evaluate(ev, def)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, WeightedScore(ev, def, results), 1e-9)
	assert.True(t, Satisfied(ev, def, results))

	ev = event("MatchWon", map[string]any{"deaths": 2, "minutes": 25})
	results, err = Evaluate(ev, def)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, WeightedScore(ev, def, results), 1e-9)
	assert.False(t, Satisfied(ev, def, results))
}

func TestIncrementPrecedence(t *testing.T) {
	ev := event("ItemCollected", map[string]any{"increment": 3})
	ev.IsBatch = true
	ev.BatchCount = 5
	assert.Equal(t, int64(3), Increment(ev))

	ev = event("ItemCollected", nil)
	ev.IsBatch = true
	ev.BatchCount = 5
	assert.Equal(t, int64(5), Increment(ev))

	assert.Equal(t, int64(1), Increment(event("ItemCollected", nil)))

	// batch count is only honoured for batch events
	ev = event("ItemCollected", nil)
	ev.BatchCount = 5
	assert.Equal(t, int64(1), Increment(ev))
}

func TestIncrementKeepsZeroAndNegative(t *testing.T) {
	assert.Equal(t, int64(0), Increment(event("E", map[string]any{"increment": 0})))
	assert.Equal(t, int64(-4), Increment(event("E", map[string]any{"increment": -4})))

	ev := event("E", nil)
	ev.IsBatch = true
	assert.Equal(t, int64(0), Increment(ev))

	// a non-numeric increment falls through to the next tier
	assert.Equal(t, int64(1), Increment(event("E", map[string]any{"increment": "many"})))
}
