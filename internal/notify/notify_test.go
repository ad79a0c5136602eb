package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"laurels/internal/models"
	"laurels/pkg/logger"
	"laurels/pkg/protocol"
)

func sample(t protocol.MessageType) Notification {
	def := &models.AchievementDefinition{ID: "first_kill", Name: "First Blood", Category: models.CategoryCombat, Rarity: models.RarityCommon}
	p := &models.AchievementProgress{AchievementID: "first_kill", CurrentValue: 1, TargetValue: 1, Status: models.StatusCompleted, CompletionCount: 1}
	return New(t, def, p, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestNewNotification(t *testing.T) {
	n := sample(protocol.MsgAchievementCompleted).WithRewards([]models.RewardSpec{{Type: models.RewardCurrency, Amount: 10}})
	assert.Equal(t, "first_kill", n.AchievementID())
	assert.Equal(t, "First Blood", n.Payload.Name)
	assert.Equal(t, int64(1), n.Payload.TargetValue)
	assert.Len(t, n.Payload.Rewards, 1)

	msg := n.Message()
	assert.Equal(t, protocol.MsgAchievementCompleted, msg.Type)
	assert.Equal(t, n.Timestamp.Unix(), msg.Timestamp)

	orphan := New(protocol.MsgProgressUpdated, nil, &models.AchievementProgress{AchievementID: "gone"}, time.Time{})
	assert.Empty(t, orphan.Payload.Name)
}

func TestBusDeliversInOrder(t *testing.T) {
	bus := NewBus(logger.Nop())
	var got []string
	unsubA := bus.Subscribe(NotifierFunc(func(n Notification) { got = append(got, "a:"+string(n.Type)) }))
	bus.Subscribe(NotifierFunc(func(n Notification) { got = append(got, "b:"+string(n.Type)) }))
	assert.Equal(t, 2, bus.Subscribers())

	bus.Notify(sample(protocol.MsgProgressUpdated))
	assert.Equal(t, []string{"a:PROGRESS_UPDATED", "b:PROGRESS_UPDATED"}, got)

	unsubA()
	unsubA()
	assert.Equal(t, 1, bus.Subscribers())

	got = nil
	bus.Notify(sample(protocol.MsgRewardReceived))
	assert.Equal(t, []string{"b:REWARD_RECEIVED"}, got)
}

func TestBusIsolatesPanickingSubscriber(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	bus := NewBus(logger.NewWithZap("NOTIFY", zap.New(core)))

	delivered := 0
	bus.Subscribe(NotifierFunc(func(Notification) { panic("boom") }))
	bus.Subscribe(NotifierFunc(func(Notification) { delivered++ }))

	require.NotPanics(t, func() { bus.Notify(sample(protocol.MsgAchievementUnlocked)) })
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 1, logs.FilterMessageSnippet("panicked").Len())
}
