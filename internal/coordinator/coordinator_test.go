package coordinator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laurels/internal/catalog"
	"laurels/internal/models"
	"laurels/internal/notify"
	"laurels/internal/progress"
	"laurels/internal/rewards"
	"laurels/pkg/logger"
	"laurels/pkg/protocol"
)

var start = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	coord      *Coordinator
	catalog    *catalog.Catalog
	storage    *progress.MemoryStorage
	dispatcher *rewards.Dispatcher
	ledger     *rewards.Ledger
	notes      []notify.Notification
	now        time.Time
}

func newFixture(t *testing.T, defs []models.AchievementDefinition, opts Options) *fixture {
	t.Helper()
	f := &fixture{now: start, storage: progress.NewMemoryStorage()}
	f.catalog = catalog.New(logger.Nop())
	require.Equal(t, len(defs), f.catalog.LoadDefinitions(defs), "fixture definitions must all be valid")
	f.dispatcher = rewards.NewDispatcher(rewards.Options{Logger: logger.Nop()})
	f.ledger = rewards.NewLedger()
	f.ledger.RegisterAll(f.dispatcher)

	opts.Clock = func() time.Time { return f.now }
	store := progress.NewStore(f.storage, logger.Nop())
	notifier := notify.NotifierFunc(func(n notify.Notification) { f.notes = append(f.notes, n) })
	f.coord = New(f.catalog, store, f.dispatcher, notifier, logger.Nop(), opts)
	require.NoError(t, f.coord.Start(context.Background()))
	return f
}

func (f *fixture) handle(eventType string, params map[string]any) Outcome {
	return f.coord.HandleEvent(context.Background(), models.NewEvent(eventType, params))
}

func (f *fixture) progress(t *testing.T, id string) *models.AchievementProgress {
	t.Helper()
	p, ok := f.coord.Progress(id)
	require.True(t, ok, id)
	return p
}

func (f *fixture) noteTypes() []string {
	var out []string
	for _, n := range f.notes {
		out = append(out, string(n.Type)+":"+n.AchievementID())
	}
	return out
}

func counter(id string, target int64, eventType string) models.AchievementDefinition {
	return models.AchievementDefinition{
		ID:          id,
		Name:        id,
		TargetValue: target,
		Conditions:  []models.Condition{{ID: "c", EventType: eventType}},
		Rewards:     []models.RewardSpec{{Type: models.RewardCurrency, Amount: 10}},
	}
}

func TestFirstKillScenario(t *testing.T) {
	f := newFixture(t, catalog.DefaultDefinitions(), DefaultOptions())
	f.notes = nil

	out := f.handle(models.EventEnemyDefeated, nil)
	assert.Empty(t, out.Errors)
	assert.Equal(t, []string{"first_kill"}, out.Completed)

	p := f.progress(t, "first_kill")
	assert.Equal(t, int64(1), p.CurrentValue)
	assert.Equal(t, models.StatusCompleted, p.Status)
	assert.Equal(t, 1, p.CompletionCount)
	require.NotNil(t, p.CompletedAt)
	assert.True(t, p.RewardsGranted())

	require.Contains(t, out.Rewards, "first_kill")
	assert.True(t, out.Rewards["first_kill"].Success)
	assert.Equal(t, int64(50), f.ledger.Balance(models.RewardCurrency))
	assert.Len(t, f.dispatcher.History("first_kill"), 1)

	// monster_hunter is unlocked by the cascade, but only counts later events
	assert.Contains(t, out.Unlocked, "monster_hunter")
	hunter := f.progress(t, "monster_hunter")
	assert.Equal(t, models.StatusUnlocked, hunter.Status)
	assert.Zero(t, hunter.CurrentValue)

	assert.Equal(t, []string{
		"PROGRESS_UPDATED:first_kill",
		"ACHIEVEMENT_COMPLETED:first_kill",
		"REWARD_RECEIVED:first_kill",
		"ACHIEVEMENT_UNLOCKED:monster_hunter",
	}, f.noteTypes())
	assert.Equal(t, []models.RewardSpec{{Type: models.RewardCurrency, Amount: 50, Description: "50 gold"}}, f.notes[2].Payload.Rewards)

	_, err := f.storage.Read(context.Background())
	assert.NoError(t, err, "progress is saved after a completion")

	out = f.handle(models.EventEnemyDefeated, nil)
	assert.Equal(t, []string{"monster_hunter"}, out.Updated)
	assert.Equal(t, int64(1), f.progress(t, "first_kill").CurrentValue)
	assert.Equal(t, int64(1), f.progress(t, "monster_hunter").CurrentValue)
}

func TestMalformedConditionIsIsolated(t *testing.T) {
	broken := counter("broken", 1, models.EventItemCollected)
	broken.Conditions[0] = models.Condition{ID: "weird", EventType: models.EventItemCollected, ParameterName: "rarity", ComparisonOp: "Between", ComparisonValue: 3}
	good := counter("good", 2, models.EventItemCollected)
	f := newFixture(t, []models.AchievementDefinition{broken, good}, DefaultOptions())

	out := f.handle(models.EventItemCollected, map[string]any{"rarity": 3})
	require.Len(t, out.Errors, 1)
	var ee *models.EvaluationError
	require.ErrorAs(t, out.Errors[0], &ee)
	assert.Equal(t, "broken", ee.AchievementID)
	assert.Equal(t, []string{"good"}, out.Updated)

	assert.Equal(t, int64(1), f.progress(t, "good").CurrentValue)
	assert.Zero(t, f.progress(t, "broken").CurrentValue)
}

func TestIncrementPrecedence(t *testing.T) {
	f := newFixture(t, []models.AchievementDefinition{counter("hoarder", 100, models.EventItemCollected)}, DefaultOptions())

	ev := models.NewEvent(models.EventItemCollected, map[string]any{"increment": 3})
	ev.IsBatch, ev.BatchCount = true, 5
	f.coord.HandleEvent(context.Background(), ev)
	assert.Equal(t, int64(3), f.progress(t, "hoarder").CurrentValue)

	ev = models.NewEvent(models.EventItemCollected, nil)
	ev.IsBatch, ev.BatchCount = true, 5
	f.coord.HandleEvent(context.Background(), ev)
	assert.Equal(t, int64(8), f.progress(t, "hoarder").CurrentValue)

	f.handle(models.EventItemCollected, nil)
	assert.Equal(t, int64(9), f.progress(t, "hoarder").CurrentValue)
	assert.Equal(t, models.StatusInProgress, f.progress(t, "hoarder").Status)
}

func TestProgressNeverDecreases(t *testing.T) {
	f := newFixture(t, []models.AchievementDefinition{counter("hoarder", 10, models.EventItemCollected)}, DefaultOptions())
	f.handle(models.EventItemCollected, map[string]any{"increment": 4})
	f.notes = nil

	out := f.handle(models.EventItemCollected, map[string]any{"increment": -3})
	assert.Empty(t, out.Updated)
	assert.Empty(t, f.notes)
	assert.Equal(t, int64(4), f.progress(t, "hoarder").CurrentValue)
}

func TestPrerequisiteCascade(t *testing.T) {
	a := counter("a", 1, models.EventEnemyDefeated)
	b := counter("b", 1, models.EventAreaDiscovered)
	b.Prerequisites = []string{"a"}
	c := counter("c", 1, models.EventLevelCompleted)
	c.Prerequisites = []string{"b"}
	f := newFixture(t, []models.AchievementDefinition{c, b, a}, DefaultOptions())

	assert.Equal(t, models.StatusLocked, f.progress(t, "b").Status)
	locked, err := f.coord.LockedBy("c")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, locked)

	// locked achievements ignore matching events
	f.handle(models.EventAreaDiscovered, nil)
	assert.Zero(t, f.progress(t, "b").CurrentValue)

	out := f.handle(models.EventEnemyDefeated, nil)
	assert.Equal(t, []string{"b"}, out.Unlocked)
	assert.Equal(t, models.StatusUnlocked, f.progress(t, "b").Status)
	assert.Equal(t, models.StatusLocked, f.progress(t, "c").Status)

	out = f.handle(models.EventAreaDiscovered, nil)
	assert.Equal(t, []string{"b"}, out.Completed)
	assert.Equal(t, []string{"c"}, out.Unlocked)
	assert.Equal(t, models.StatusUnlocked, f.progress(t, "c").Status)
}

func TestHiddenAchievementRevealedOnProgress(t *testing.T) {
	secret := counter("secret", 2, models.EventItemCollected)
	secret.IsHidden = true
	gatedSecret := counter("gated_secret", 1, models.EventItemCollected)
	gatedSecret.IsHidden = true
	gatedSecret.Prerequisites = []string{"secret"}
	f := newFixture(t, []models.AchievementDefinition{secret, gatedSecret}, DefaultOptions())

	assert.Equal(t, models.StatusLocked, f.progress(t, "secret").Status)
	f.notes = nil

	out := f.handle(models.EventItemCollected, nil)
	assert.Equal(t, []string{"secret"}, out.Unlocked)
	p := f.progress(t, "secret")
	assert.Equal(t, models.StatusInProgress, p.Status)
	assert.Equal(t, int64(1), p.CurrentValue)
	require.NotNil(t, p.UnlockedAt)
	assert.Equal(t, []string{"ACHIEVEMENT_UNLOCKED:secret", "PROGRESS_UPDATED:secret"}, f.noteTypes())

	assert.Equal(t, models.StatusLocked, f.progress(t, "gated_secret").Status)

	// completing secret satisfies gated_secret, which stays hidden until it
	// makes progress itself
	out = f.handle(models.EventItemCollected, nil)
	assert.Equal(t, []string{"secret"}, out.Completed)
	assert.NotContains(t, out.Unlocked, "gated_secret")
	assert.Equal(t, models.StatusLocked, f.progress(t, "gated_secret").Status)

	out = f.handle(models.EventItemCollected, nil)
	assert.Equal(t, []string{"gated_secret"}, out.Unlocked)
	assert.Equal(t, models.StatusCompleted, f.progress(t, "gated_secret").Status)
}

func TestRepeatableCycles(t *testing.T) {
	daily := counter("daily", 1, models.EventMatchWon)
	daily.IsRepeatable = true
	once := counter("once", 1, models.EventMatchWon)
	f := newFixture(t, []models.AchievementDefinition{daily, once}, DefaultOptions())

	for i := 0; i < 3; i++ {
		f.handle(models.EventMatchWon, nil)
	}

	p := f.progress(t, "daily")
	assert.Equal(t, 3, p.CompletionCount)
	assert.Equal(t, models.StatusCompleted, p.Status)
	require.NotNil(t, p.LastResetAt)
	assert.Equal(t, 1, f.progress(t, "once").CompletionCount)

	assert.Len(t, f.dispatcher.History("daily"), 3)
	assert.Equal(t, int64(40), f.ledger.Balance(models.RewardCurrency))
}

func TestClaimRewardWithoutAutoGrant(t *testing.T) {
	opts := DefaultOptions()
	opts.AutoGrant = false
	f := newFixture(t, []models.AchievementDefinition{
		counter("winner", 1, models.EventMatchWon),
		counter("pending", 5, models.EventMatchWon),
	}, opts)
	ctx := context.Background()

	out := f.handle(models.EventMatchWon, nil)
	assert.Empty(t, out.Rewards)
	assert.Zero(t, f.ledger.Balance(models.RewardCurrency))

	result, err := f.coord.ClaimReward(ctx, "winner")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(10), f.ledger.Balance(models.RewardCurrency))

	p := f.progress(t, "winner")
	assert.Equal(t, models.StatusRewardClaimed, p.Status)
	assert.True(t, p.IsRewardClaimed)
	assert.Equal(t, protocol.MsgRewardReceived, f.notes[len(f.notes)-1].Type)

	_, err = f.coord.ClaimReward(ctx, "winner")
	assert.ErrorIs(t, err, models.ErrAlreadyClaimed)
	_, err = f.coord.ClaimReward(ctx, "pending")
	assert.ErrorIs(t, err, models.ErrNotCompleted)
	_, err = f.coord.ClaimReward(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, int64(10), f.ledger.Balance(models.RewardCurrency))
}

func TestClaimAfterAutoGrantDoesNotGrantTwice(t *testing.T) {
	f := newFixture(t, []models.AchievementDefinition{counter("winner", 1, models.EventMatchWon)}, DefaultOptions())
	f.handle(models.EventMatchWon, nil)
	require.Equal(t, int64(10), f.ledger.Balance(models.RewardCurrency))

	result, err := f.coord.ClaimReward(context.Background(), "winner")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(10), f.ledger.Balance(models.RewardCurrency))
	assert.Equal(t, models.StatusRewardClaimed, f.progress(t, "winner").Status)
}

func TestClaimFailsWhenNoRewardCanBeGranted(t *testing.T) {
	opts := DefaultOptions()
	opts.AutoGrant = false
	f := newFixture(t, []models.AchievementDefinition{counter("winner", 1, models.EventMatchWon)}, opts)
	f.dispatcher.UnregisterHandler(models.RewardCurrency)
	f.handle(models.EventMatchWon, nil)

	result, err := f.coord.ClaimReward(context.Background(), "winner")
	var de *models.DispatchError
	require.ErrorAs(t, err, &de)
	assert.False(t, result.Success)
	assert.Equal(t, models.StatusCompleted, f.progress(t, "winner").Status)
}

func TestReset(t *testing.T) {
	secret := counter("secret", 1, models.EventMatchWon)
	secret.IsHidden = true
	f := newFixture(t, []models.AchievementDefinition{counter("winner", 1, models.EventMatchWon), secret}, DefaultOptions())
	ctx := context.Background()

	f.handle(models.EventMatchWon, nil)
	require.Equal(t, models.StatusCompleted, f.progress(t, "winner").Status)
	require.Equal(t, models.StatusCompleted, f.progress(t, "secret").Status)

	f.now = start.Add(time.Hour)
	require.NoError(t, f.coord.Reset(ctx, "winner"))
	p := f.progress(t, "winner")
	assert.Zero(t, p.CurrentValue)
	assert.Equal(t, models.StatusUnlocked, p.Status)
	assert.Equal(t, 1, p.CompletionCount)
	require.NotNil(t, p.LastResetAt)
	assert.True(t, p.LastResetAt.Equal(f.now))
	assert.False(t, p.RewardsGranted())

	require.NoError(t, f.coord.Reset(ctx, "secret"))
	assert.Equal(t, models.StatusLocked, f.progress(t, "secret").Status)

	assert.ErrorIs(t, f.coord.Reset(ctx, "missing"), models.ErrNotFound)

	// a reset achievement can be completed again
	f.handle(models.EventMatchWon, nil)
	assert.Equal(t, 2, f.progress(t, "winner").CompletionCount)
}

func TestApplyResetCycles(t *testing.T) {
	daily := counter("daily", 3, models.EventMatchWon)
	daily.IsRepeatable = true
	daily.ResetPeriodDays = 1
	weekly := counter("weekly", 3, models.EventMatchWon)
	weekly.ResetPeriodDays = 7
	f := newFixture(t, []models.AchievementDefinition{daily, weekly}, DefaultOptions())
	ctx := context.Background()

	f.handle(models.EventMatchWon, nil)
	assert.Empty(t, f.coord.ApplyResetCycles(ctx, start.Add(23*time.Hour)))

	f.now = start.Add(25 * time.Hour)
	assert.Equal(t, []string{"daily"}, f.coord.ApplyResetCycles(ctx, f.now))
	assert.Zero(t, f.progress(t, "daily").CurrentValue)
	assert.Equal(t, int64(1), f.progress(t, "weekly").CurrentValue)

	// the next window is measured from the reset
	assert.Empty(t, f.coord.ApplyResetCycles(ctx, start.Add(40*time.Hour)))
	f.now = start.Add(8 * 24 * time.Hour)
	assert.ElementsMatch(t, []string{"daily", "weekly"}, f.coord.ApplyResetCycles(ctx, f.now))
}

func TestProgressSurvivesRestart(t *testing.T) {
	f := newFixture(t, catalog.DefaultDefinitions(), DefaultOptions())
	f.handle(models.EventEnemyDefeated, nil)
	f.handle(models.EventItemCollected, map[string]any{"increment": 7})
	require.NoError(t, f.coord.Save(context.Background()))

	store := progress.NewStore(f.storage, logger.Nop())
	restarted := New(f.catalog, store, f.dispatcher, nil, logger.Nop(), DefaultOptions())
	require.NoError(t, restarted.Start(context.Background()))

	for id, want := range f.coord.AllProgress() {
		got, ok := restarted.Progress(id)
		require.True(t, ok, id)
		assert.Equal(t, want.CurrentValue, got.CurrentValue, id)
		assert.Equal(t, want.Status, got.Status, id)
		assert.Equal(t, want.CompletionCount, got.CompletionCount, id)
	}
	p, _ := restarted.Progress("collector")
	assert.Equal(t, int64(7), p.CurrentValue)
}

func TestSaveFailureKeepsProgress(t *testing.T) {
	f := newFixture(t, []models.AchievementDefinition{counter("winner", 1, models.EventMatchWon)}, DefaultOptions())
	f.storage.FailWith(errors.New("disk full"))

	out := f.handle(models.EventMatchWon, nil)
	require.Len(t, out.Errors, 1)
	var pe *models.PersistenceError
	assert.ErrorAs(t, out.Errors[0], &pe)
	assert.Equal(t, models.StatusCompleted, f.progress(t, "winner").Status)
}

func TestBatchPerEvent(t *testing.T) {
	opts := DefaultOptions()
	opts.BatchPerEvent = true
	f := newFixture(t, []models.AchievementDefinition{
		counter("one", 1, models.EventMatchWon),
		counter("two", 1, models.EventMatchWon),
	}, opts)

	out := f.handle(models.EventMatchWon, nil)
	require.Len(t, out.Rewards, 2)
	assert.False(t, f.dispatcher.BatchOpen())
	assert.Equal(t, int64(20), f.ledger.Balance(models.RewardCurrency))

	one := f.dispatcher.History("one")
	two := f.dispatcher.History("two")
	require.Len(t, one, 1)
	require.Len(t, two, 1)
	assert.NotEmpty(t, one[0].BatchID)
	assert.Equal(t, one[0].BatchID, two[0].BatchID)
	assert.True(t, f.progress(t, "two").RewardsGranted())
}

func TestInvalidEventIsRejected(t *testing.T) {
	f := newFixture(t, []models.AchievementDefinition{counter("winner", 1, models.EventMatchWon)}, DefaultOptions())
	out := f.coord.HandleEvent(context.Background(), models.GameEventData{})
	require.Len(t, out.Errors, 1)
	assert.Equal(t, []string{out.Errors[0].Error()}, out.ErrorMessages())
	assert.Zero(t, f.progress(t, "winner").CurrentValue)
}

func TestReloadCatalog(t *testing.T) {
	f := newFixture(t, []models.AchievementDefinition{counter("winner", 5, models.EventMatchWon)}, DefaultOptions())
	f.handle(models.EventMatchWon, nil)

	path := filepath.Join(t.TempDir(), "achievements.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
achievements:
  - id: winner
    name: Winner
    target_value: 2
    conditions:
      - event_type: MatchWon
  - id: traveller
    name: Traveller
    target_value: 3
    conditions:
      - event_type: AreaDiscovered
`), 0644))

	n, err := f.coord.ReloadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int64(2), f.progress(t, "winner").TargetValue)
	assert.Equal(t, models.StatusUnlocked, f.progress(t, "traveller").Status)

	out := f.handle(models.EventMatchWon, nil)
	assert.Equal(t, []string{"winner"}, out.Completed)

	require.NoError(t, os.WriteFile(path, []byte("achievements: [broken"), 0644))
	_, err = f.coord.ReloadCatalog(path)
	var le *models.LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, path, le.Path)
	assert.Equal(t, 2, f.catalog.Count())

	_, err = f.coord.ReloadCatalog(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestReloadCatalogKeepsFinishedTargets(t *testing.T) {
	f := newFixture(t, []models.AchievementDefinition{
		counter("winner", 1, models.EventMatchWon),
		counter("hoarder", 5, models.EventItemCollected),
	}, DefaultOptions())
	f.handle(models.EventMatchWon, nil)
	f.handle(models.EventItemCollected, map[string]any{"increment": 3})

	path := filepath.Join(t.TempDir(), "achievements.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
achievements:
  - id: winner
    name: Winner
    target_value: 10
    conditions:
      - event_type: MatchWon
  - id: hoarder
    name: Hoarder
    target_value: 2
    conditions:
      - event_type: ItemCollected
`), 0644))
	_, err := f.coord.ReloadCatalog(path)
	require.NoError(t, err)

	for _, p := range f.coord.AllProgress() {
		if p.Status.IsDone() {
			assert.GreaterOrEqual(t, p.CurrentValue, p.TargetValue, p.AchievementID)
		}
	}
	winner := f.progress(t, "winner")
	assert.Equal(t, models.StatusCompleted, winner.Status)
	assert.Equal(t, int64(1), winner.TargetValue)

	hoarder := f.progress(t, "hoarder")
	assert.Equal(t, models.StatusInProgress, hoarder.Status)
	assert.Equal(t, int64(2), hoarder.TargetValue)
	out := f.handle(models.EventItemCollected, nil)
	assert.Equal(t, []string{"hoarder"}, out.Completed)

	require.NoError(t, f.coord.Reset(context.Background(), "winner"))
	winner = f.progress(t, "winner")
	assert.Equal(t, models.StatusUnlocked, winner.Status)
	assert.Equal(t, int64(10), winner.TargetValue)
}
