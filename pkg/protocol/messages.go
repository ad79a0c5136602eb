package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"laurels/internal/models"
)

// MessageType defines the type of message being sent
type MessageType string

// Message types
const (
	// Connection messages
	MsgConnect   MessageType = "CONNECT"
	MsgPing      MessageType = "PING"
	MsgPong      MessageType = "PONG"
	MsgSubscribe MessageType = "SUBSCRIBE"
	MsgError     MessageType = "ERROR"

	// Notification messages
	MsgAchievementUnlocked  MessageType = "ACHIEVEMENT_UNLOCKED"
	MsgAchievementCompleted MessageType = "ACHIEVEMENT_COMPLETED"
	MsgProgressUpdated      MessageType = "PROGRESS_UPDATED"
	MsgRewardReceived       MessageType = "REWARD_RECEIVED"
)

// NotificationTypes lists the message types produced by the engine
var NotificationTypes = []MessageType{
	MsgAchievementUnlocked,
	MsgAchievementCompleted,
	MsgProgressUpdated,
	MsgRewardReceived,
}

// IsNotification reports whether t is one of NotificationTypes
func (t MessageType) IsNotification() bool {
	for _, n := range NotificationTypes {
		if n == t {
			return true
		}
	}
	return false
}

// ParseMessageType accepts the wire name or the event-style name
// (AchievementUnlocked) of a notification type
func ParseMessageType(s string) (MessageType, error) {
	for _, t := range NotificationTypes {
		if string(t) == s || eventName(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown notification type %q", s)
}

func eventName(t MessageType) string {
	switch t {
	case MsgAchievementUnlocked:
		return "AchievementUnlocked"
	case MsgAchievementCompleted:
		return "AchievementCompleted"
	case MsgProgressUpdated:
		return "ProgressUpdated"
	case MsgRewardReceived:
		return "RewardReceived"
	}
	return string(t)
}

// Message represents a communication between client and server
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp int64       `json:"timestamp"`
	ClientID  string      `json:"client_id,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
}

// NewMessage creates a new message
func NewMessage(msgType MessageType, payload interface{}) *Message {
	return &Message{
		Type:      msgType,
		Timestamp: time.Now().Unix(),
		Payload:   payload,
	}
}

// ErrorPayload contains information about an error
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ConnectPayload is sent to a client right after the upgrade
type ConnectPayload struct {
	ClientID string `json:"client_id"`
	Replayed int    `json:"replayed"`
}

// SubscribePayload replaces a client's notification filter. Empty lists
// match everything.
type SubscribePayload struct {
	Types          []MessageType `json:"types,omitempty"`
	AchievementIDs []string      `json:"achievement_ids,omitempty"`
}

// AchievementPayload is carried by every notification message
type AchievementPayload struct {
	AchievementID   string              `json:"achievement_id"`
	Name            string              `json:"name,omitempty"`
	Category        models.Category     `json:"category,omitempty"`
	Rarity          models.Rarity       `json:"rarity"`
	Status          models.Status       `json:"status"`
	CurrentValue    int64               `json:"current_value"`
	TargetValue     int64               `json:"target_value"`
	CompletionCount int                 `json:"completion_count"`
	Rewards         []models.RewardSpec `json:"rewards,omitempty"`
}

// SerializeMessage converts a message to JSON bytes
func SerializeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DeserializeMessage converts JSON bytes to a message
func DeserializeMessage(data []byte) (Message, error) {
	var msg Message
	err := json.Unmarshal(data, &msg)
	return msg, err
}

// DecodePayload converts a deserialized message payload into v
func DecodePayload(msg Message, v interface{}) error {
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("failed to re-encode payload: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", msg.Type, err)
	}
	return nil
}
