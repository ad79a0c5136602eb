// Package notify fans engine notifications out to subscribers.
package notify

import (
	"sync"
	"time"

	"laurels/internal/models"
	"laurels/pkg/logger"
	"laurels/pkg/protocol"
)

// Notification is one engine event addressed to the presentation layer
type Notification struct {
	Type      protocol.MessageType        `json:"type"`
	Payload   protocol.AchievementPayload `json:"payload"`
	Timestamp time.Time                   `json:"timestamp"`
}

// AchievementID returns the achievement the notification is about
func (n Notification) AchievementID() string {
	return n.Payload.AchievementID
}

// Message converts the notification to its wire form
func (n Notification) Message() *protocol.Message {
	msg := protocol.NewMessage(n.Type, n.Payload)
	if !n.Timestamp.IsZero() {
		msg.Timestamp = n.Timestamp.Unix()
	}
	return msg
}

// New builds a notification from a definition and its progress record.
// def may be nil for records whose definition is gone.
func New(t protocol.MessageType, def *models.AchievementDefinition, p *models.AchievementProgress, now time.Time) Notification {
	payload := protocol.AchievementPayload{
		AchievementID:   p.AchievementID,
		Status:          p.Status,
		CurrentValue:    p.CurrentValue,
		TargetValue:     p.TargetValue,
		CompletionCount: p.CompletionCount,
	}
	if def != nil {
		payload.Name = def.Name
		payload.Category = def.Category
		payload.Rarity = def.Rarity
	}
	return Notification{Type: t, Payload: payload, Timestamp: now}
}

// WithRewards returns a copy carrying rewards
func (n Notification) WithRewards(rewards []models.RewardSpec) Notification {
	n.Payload.Rewards = append([]models.RewardSpec(nil), rewards...)
	return n
}

// Notifier receives notifications
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Nop discards every notification
var Nop Notifier = NotifierFunc(func(Notification) {})

// Bus delivers notifications synchronously to every subscriber in
// subscription order. A panicking subscriber is logged and skipped.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID int
	logger *logger.Logger
}

type subscription struct {
	id int
	n  Notifier
}

// NewBus creates a bus without subscribers
func NewBus(log *logger.Logger) *Bus {
	return &Bus{logger: logger.OrDefault(log, "NOTIFY")}
}

// Subscribe adds n and returns a function that removes it again
func (b *Bus) Subscribe(n Notifier) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, n: n})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Subscribers returns the number of subscribers
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) Notify(n Notification) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs...)
	b.mu.RUnlock()

	b.logger.Debug("%s %s (%d/%d)", n.Type, n.AchievementID(), n.Payload.CurrentValue, n.Payload.TargetValue)
	for _, s := range subs {
		b.deliver(s, n)
	}
}

func (b *Bus) deliver(s subscription, n Notification) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Subscriber %d panicked on %s: %v", s.id, n.Type, r)
		}
	}()
	s.n.Notify(n)
}
