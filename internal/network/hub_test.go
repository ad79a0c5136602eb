package network

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"laurels/internal/models"
	"laurels/internal/notify"
	"laurels/pkg/logger"
	"laurels/pkg/protocol"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func notification(t protocol.MessageType, id string, value int64) notify.Notification {
	return notify.New(t, &models.AchievementDefinition{ID: id, Name: id},
		&models.AchievementProgress{AchievementID: id, CurrentValue: value, TargetValue: 10}, time.Now())
}

func startHub(t *testing.T, maxBuffer int) (*Hub, string) {
	t.Helper()
	hub := NewHub(maxBuffer, logger.Nop())
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) protocol.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := protocol.DeserializeMessage(data)
	require.NoError(t, err)
	return msg
}

func readPayload(t *testing.T, conn *websocket.Conn) (protocol.MessageType, protocol.AchievementPayload) {
	t.Helper()
	msg := read(t, conn)
	var payload protocol.AchievementPayload
	require.NoError(t, protocol.DecodePayload(msg, &payload))
	return msg.Type, payload
}

func TestFilterMatches(t *testing.T) {
	n := notification(protocol.MsgProgressUpdated, "collector", 3)
	assert.True(t, Filter{}.Matches(n))
	assert.True(t, Filter{Types: []protocol.MessageType{protocol.MsgProgressUpdated}}.Matches(n))
	assert.False(t, Filter{Types: []protocol.MessageType{protocol.MsgRewardReceived}}.Matches(n))
	assert.True(t, Filter{AchievementIDs: []string{"explorer", "collector"}}.Matches(n))
	assert.False(t, Filter{AchievementIDs: []string{"explorer"}}.Matches(n))
}

func TestHubBroadcastAndReplay(t *testing.T) {
	hub, url := startHub(t, 2)
	hub.Notify(notification(protocol.MsgProgressUpdated, "a", 1))
	hub.Notify(notification(protocol.MsgProgressUpdated, "b", 2))
	hub.Notify(notification(protocol.MsgProgressUpdated, "c", 3))

	conn := dial(t, url)
	hello := read(t, conn)
	require.Equal(t, protocol.MsgConnect, hello.Type)
	var connect protocol.ConnectPayload
	require.NoError(t, protocol.DecodePayload(hello, &connect))
	assert.Equal(t, 2, connect.Replayed)
	assert.Equal(t, connect.ClientID, hello.ClientID)

	// only the newest two survive the bounded buffer
	_, p := readPayload(t, conn)
	assert.Equal(t, "b", p.AchievementID)
	_, p = readPayload(t, conn)
	assert.Equal(t, "c", p.AchievementID)

	hub.Notify(notification(protocol.MsgAchievementCompleted, "d", 10).
		WithRewards([]models.RewardSpec{{Type: models.RewardCurrency, Amount: 5}}))
	msgType, p := readPayload(t, conn)
	assert.Equal(t, protocol.MsgAchievementCompleted, msgType)
	assert.Equal(t, int64(10), p.CurrentValue)
	require.Len(t, p.Rewards, 1)

	assert.Equal(t, 1, hub.ClientCount())
	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestHubQueryFilterAndNoReplay(t *testing.T) {
	hub, url := startHub(t, 10)
	hub.Notify(notification(protocol.MsgRewardReceived, "old", 1))

	conn := dial(t, url+"?types=RewardReceived,ACHIEVEMENT_UNLOCKED&replay=false")
	hello := read(t, conn)
	var connect protocol.ConnectPayload
	require.NoError(t, protocol.DecodePayload(hello, &connect))
	assert.Zero(t, connect.Replayed)

	hub.Notify(notification(protocol.MsgProgressUpdated, "skip", 1))
	hub.Notify(notification(protocol.MsgAchievementUnlocked, "keep", 0))

	msgType, p := readPayload(t, conn)
	assert.Equal(t, protocol.MsgAchievementUnlocked, msgType)
	assert.Equal(t, "keep", p.AchievementID)
}

func TestHubSubscribeAndPing(t *testing.T) {
	hub, url := startHub(t, 0)
	conn := dial(t, url)
	read(t, conn)

	require.NoError(t, conn.WriteJSON(protocol.NewMessage(protocol.MsgPing, nil)))
	assert.Equal(t, protocol.MsgPong, read(t, conn).Type)

	sub := protocol.SubscribePayload{AchievementIDs: []string{"explorer"}}
	require.NoError(t, conn.WriteJSON(protocol.NewMessage(protocol.MsgSubscribe, sub)))
	assert.Equal(t, protocol.MsgSubscribe, read(t, conn).Type)

	hub.Notify(notification(protocol.MsgProgressUpdated, "collector", 1))
	hub.Notify(notification(protocol.MsgProgressUpdated, "explorer", 2))
	_, p := readPayload(t, conn)
	assert.Equal(t, "explorer", p.AchievementID)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{nope")))
	assert.Equal(t, protocol.MsgError, read(t, conn).Type)

	assert.Empty(t, hub.History(Filter{}, 10), "a zero buffer keeps no history")
}

func TestHubHistory(t *testing.T) {
	hub := NewHub(5, logger.Nop())
	for i, id := range []string{"a", "b", "a", "c"} {
		hub.Notify(notification(protocol.MsgProgressUpdated, id, int64(i)))
	}
	got := hub.History(Filter{AchievementIDs: []string{"a"}}, 0)
	require.Len(t, got, 2)
	assert.Equal(t, int64(0), got[0].Payload.CurrentValue)
	assert.Equal(t, int64(2), got[1].Payload.CurrentValue)

	assert.Len(t, hub.History(Filter{}, 3), 3)
	assert.Equal(t, 4, hub.Stats()["buffer_size"])
}
