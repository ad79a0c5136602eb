package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Common event types emitted by the game. The engine accepts any string.
const (
	EventEnemyDefeated  = "EnemyDefeated"
	EventItemCollected  = "ItemCollected"
	EventLevelCompleted = "LevelCompleted"
	EventAreaDiscovered = "AreaDiscovered"
	EventCardPlayed     = "CardPlayed"
	EventFriendAdded    = "FriendAdded"
	EventMatchWon       = "MatchWon"
	EventCurrencyEarned = "CurrencyEarned"
)

// ParamIncrement is the event parameter that overrides the computed increment
const ParamIncrement = "increment"

// GameEventData is the only input the engine consumes from the outside world
type GameEventData struct {
	EventType  string         `json:"event_type"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Source     string         `json:"source,omitempty"`
	IsBatch    bool           `json:"is_batch,omitempty"`
	BatchCount int            `json:"batch_count,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// NewEvent builds an event stamped with the current time
func NewEvent(eventType string, params map[string]any) GameEventData {
	if params == nil {
		params = make(map[string]any)
	}
	return GameEventData{
		EventType:  eventType,
		Parameters: params,
		Timestamp:  time.Now().UTC(),
	}
}

// Param returns a parameter value and whether it was present
func (e GameEventData) Param(name string) (any, bool) {
	if e.Parameters == nil {
		return nil, false
	}
	v, ok := e.Parameters[name]
	return v, ok
}

// Validate checks the event carries a type
func (e GameEventData) Validate() error {
	if e.EventType == "" {
		return &ValidationError{Subject: "event", Reason: "event_type is required"}
	}
	if e.IsBatch && e.BatchCount < 0 {
		return &ValidationError{Subject: "event", Reason: fmt.Sprintf("batch_count cannot be negative: %d", e.BatchCount)}
	}
	return nil
}

// AsFloat converts a loosely typed value (as produced by JSON or YAML
// decoding) to float64.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// AsInt converts a loosely typed numeric value to int64, truncating floats
func AsInt(v any) (int64, bool) {
	f, ok := AsFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}
