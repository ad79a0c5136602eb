package rewards

import (
	"context"
	"errors"

	"laurels/internal/models"
)

// ErrNoHandler is returned for reward types without a registered handler
var ErrNoHandler = errors.New("no handler registered for reward type")

// Handler performs the game-side effect of a single reward
type Handler interface {
	Grant(ctx context.Context, achievementID string, reward models.RewardSpec) (models.RewardResult, error)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, achievementID string, reward models.RewardSpec) (models.RewardResult, error)

func (f HandlerFunc) Grant(ctx context.Context, achievementID string, reward models.RewardSpec) (models.RewardResult, error) {
	return f(ctx, achievementID, reward)
}

// Validator is implemented by handlers with type-specific rules. A failed
// validation invalidates the whole bundle.
type Validator interface {
	Validate(reward models.RewardSpec) error
}

// Previewer is implemented by handlers that describe rewards for display
type Previewer interface {
	Preview(reward models.RewardSpec) Preview
}

// Preview describes a reward before it is granted
type Preview struct {
	Type        models.RewardType `json:"type"`
	ItemID      string            `json:"item_id,omitempty"`
	Amount      int64             `json:"amount"`
	Description string            `json:"description"`
	IsRare      bool              `json:"is_rare"`
	Available   bool              `json:"available"`
}

// ValidationResult is the outcome of validating a reward bundle
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ValidationListener is notified when a bundle fails validation
type ValidationListener func(achievementID string, result ValidationResult)
