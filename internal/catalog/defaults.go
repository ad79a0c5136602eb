package catalog

import "laurels/internal/models"

// DefaultDefinitions returns the built-in achievement set used when no
// catalog source is available
func DefaultDefinitions() []models.AchievementDefinition {
	return []models.AchievementDefinition{
		{
			ID:             "first_kill",
			Name:           "First Blood",
			Description:    "Defeat your first enemy",
			Type:           models.TypeMilestone,
			Category:       models.CategoryCombat,
			Rarity:         models.RarityCommon,
			Points:         10,
			TargetValue:    1,
			ConditionLogic: models.LogicAnd,
			Conditions: []models.Condition{
				{ID: "defeat", EventType: models.EventEnemyDefeated},
			},
			Rewards: []models.RewardSpec{
				{Type: models.RewardCurrency, Amount: 50, Description: "50 gold"},
			},
		},
		{
			ID:             "monster_hunter",
			Name:           "Monster Hunter",
			Description:    "Defeat 100 enemies",
			Type:           models.TypeCounter,
			Category:       models.CategoryCombat,
			Rarity:         models.RarityRare,
			Points:         50,
			TargetValue:    100,
			ConditionLogic: models.LogicAnd,
			Conditions: []models.Condition{
				{ID: "defeat", EventType: models.EventEnemyDefeated},
			},
			Prerequisites: []string{"first_kill"},
			Rewards: []models.RewardSpec{
				{Type: models.RewardCurrency, Amount: 500},
				{Type: models.RewardTitle, ItemID: "monster_hunter", Amount: 1, Description: "Title: Monster Hunter"},
			},
		},
		{
			ID:             "collector",
			Name:           "Collector",
			Description:    "Collect 25 items",
			Type:           models.TypeCollection,
			Category:       models.CategoryCollection,
			Rarity:         models.RarityUncommon,
			Points:         20,
			TargetValue:    25,
			ConditionLogic: models.LogicAnd,
			Conditions: []models.Condition{
				{ID: "collect", EventType: models.EventItemCollected},
			},
			Rewards: []models.RewardSpec{
				{Type: models.RewardExperience, Amount: 200},
			},
		},
		{
			ID:             "explorer",
			Name:           "Explorer",
			Description:    "Discover 10 areas",
			Type:           models.TypeCounter,
			Category:       models.CategoryExploration,
			Rarity:         models.RarityUncommon,
			Points:         20,
			TargetValue:    10,
			ConditionLogic: models.LogicAnd,
			Conditions: []models.Condition{
				{ID: "discover", EventType: models.EventAreaDiscovered},
			},
			Rewards: []models.RewardSpec{
				{Type: models.RewardBadge, ItemID: "explorer_badge", Amount: 1},
			},
		},
		{
			ID:              "daily_victor",
			Name:            "Daily Victor",
			Description:     "Win 3 matches in a day",
			Type:            models.TypeCounter,
			Category:        models.CategoryChallenge,
			Rarity:          models.RarityCommon,
			Points:          5,
			TargetValue:     3,
			ConditionLogic:  models.LogicAnd,
			IsRepeatable:    true,
			ResetPeriodDays: models.ResetDaily.Days(),
			Conditions: []models.Condition{
				{ID: "win", EventType: models.EventMatchWon},
			},
			Rewards: []models.RewardSpec{
				{Type: models.RewardCurrency, Amount: 100},
			},
		},
		{
			ID:             "legendary_slayer",
			Name:           "Legendary Slayer",
			Description:    "Defeat a boss without taking damage",
			Type:           models.TypeCondition,
			Category:       models.CategoryHidden,
			Rarity:         models.RarityLegendary,
			Points:         100,
			TargetValue:    1,
			ConditionLogic: models.LogicAnd,
			IsHidden:       true,
			Conditions: []models.Condition{
				{ID: "boss", EventType: models.EventEnemyDefeated, ParameterName: "enemy_tier", ComparisonOp: models.OpEqual, ComparisonValue: "boss"},
				{ID: "flawless", EventType: models.EventEnemyDefeated, ParameterName: "damage_taken", ComparisonOp: models.OpLessOrEqual, ComparisonValue: 0},
			},
			Prerequisites: []string{"monster_hunter"},
			Rewards: []models.RewardSpec{
				{Type: models.RewardCard, ItemID: "card_dragonbane", Amount: 1, IsRare: true},
				{Type: models.RewardTitle, ItemID: "slayer", Amount: 1},
			},
		},
	}
}
