package rewards

import (
	"context"
	"encoding/json"
	"fmt"

	"laurels/internal/database"
	"laurels/internal/models"
)

// SQLiteHistory stores reward records in the reward_history table
type SQLiteHistory struct {
	db *database.DB
}

// NewSQLiteHistory creates a history sink over db
func NewSQLiteHistory(db *database.DB) *SQLiteHistory {
	return &SQLiteHistory{db: db}
}

func (h *SQLiteHistory) Append(ctx context.Context, record models.RewardRecord) error {
	rewards, err := json.Marshal(record.Rewards)
	if err != nil {
		return fmt.Errorf("failed to encode rewards: %w", err)
	}
	result, err := json.Marshal(record.Result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	var batchID interface{}
	if record.BatchID != "" {
		batchID = record.BatchID
	}

	_, err = h.db.ExecContext(ctx, `
		INSERT INTO reward_history
		(id, achievement_id, batch_id, success, granted_amount, rewards, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.AchievementID, batchID, record.Result.Success,
		record.Result.GrantedAmount, string(rewards), string(result), record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reward record: %w", err)
	}
	return nil
}

// List returns the newest limit records for an achievement, oldest first
func (h *SQLiteHistory) List(ctx context.Context, achievementID string, limit int) ([]models.RewardRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, achievement_id, COALESCE(batch_id, ''), rewards, result, created_at
		FROM (
			SELECT rowid AS seq, * FROM reward_history
			WHERE achievement_id = ?
			ORDER BY created_at DESC, seq DESC
			LIMIT ?
		)
		ORDER BY created_at ASC, seq ASC`,
		achievementID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query reward history: %w", err)
	}
	defer rows.Close()

	var records []models.RewardRecord
	for rows.Next() {
		var rec models.RewardRecord
		var rewards, result string
		if err := rows.Scan(&rec.ID, &rec.AchievementID, &rec.BatchID, &rewards, &result, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan reward record: %w", err)
		}
		if err := json.Unmarshal([]byte(rewards), &rec.Rewards); err != nil {
			return nil, fmt.Errorf("failed to decode rewards of %s: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(result), &rec.Result); err != nil {
			return nil, fmt.Errorf("failed to decode result of %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
