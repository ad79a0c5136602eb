package rewards

import (
	"context"
	"fmt"
	"sync"

	"laurels/internal/models"
)

// Ledger is the default handler: it records what was granted per reward
// type and item, leaving the actual game effect to whoever reads it.
type Ledger struct {
	mu       sync.Mutex
	balances map[models.RewardType]int64
	items    map[models.RewardType]map[string]int64
	grants   int
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[models.RewardType]int64),
		items:    make(map[models.RewardType]map[string]int64),
	}
}

// RegisterAll registers the ledger for every known reward type
func (l *Ledger) RegisterAll(d *Dispatcher) {
	for _, t := range models.RewardTypes {
		d.RegisterHandler(t, l)
	}
}

func (l *Ledger) Grant(ctx context.Context, achievementID string, reward models.RewardSpec) (models.RewardResult, error) {
	amount := reward.Amount
	if amount == 0 && reward.Type.RequiresItem() {
		amount = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances[reward.Type] += amount
	if reward.ItemID != "" {
		if l.items[reward.Type] == nil {
			l.items[reward.Type] = make(map[string]int64)
		}
		l.items[reward.Type][reward.ItemID] += amount
	}
	l.grants++

	return models.RewardResult{
		Success:        true,
		Message:        fmt.Sprintf("granted %s", reward),
		GrantedAmount:  amount,
		GrantedRewards: []models.RewardSpec{reward},
	}, nil
}

// Validate rejects non-positive amounts for countable rewards
func (l *Ledger) Validate(reward models.RewardSpec) error {
	switch reward.Type {
	case models.RewardCurrency, models.RewardExperience:
		if reward.Amount <= 0 {
			return fmt.Errorf("%s reward needs a positive amount", reward.Type)
		}
	}
	return nil
}

func (l *Ledger) Preview(reward models.RewardSpec) Preview {
	desc := reward.Description
	if desc == "" {
		desc = reward.String()
	}
	return Preview{
		Type:        reward.Type,
		ItemID:      reward.ItemID,
		Amount:      reward.Amount,
		Description: desc,
		IsRare:      reward.IsRare,
		Available:   true,
	}
}

// Balance returns the total amount granted for a reward type
func (l *Ledger) Balance(t models.RewardType) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[t]
}

// ItemCount returns how many of an item were granted
func (l *Ledger) ItemCount(t models.RewardType, itemID string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.items[t][itemID]
}

// Grants returns the number of successful grants
func (l *Ledger) Grants() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.grants
}
