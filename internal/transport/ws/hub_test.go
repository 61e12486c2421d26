package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConn(id string) *Connection {
	return &Connection{ID: id, Send: make(chan []byte, 16)}
}

func recv(t *testing.T, conn *Connection) *Message {
	t.Helper()
	select {
	case data, ok := <-conn.Send:
		require.True(t, ok, "send channel closed")
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return &msg
	case <-time.After(time.Second):
		t.Fatalf("no message delivered to %s", conn.ID)
		return nil
	}
}

func assertSilent(t *testing.T, conn *Connection) {
	t.Helper()
	select {
	case data := <-conn.Send:
		t.Fatalf("unexpected message on %s: %s", conn.ID, data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubDirectDelivery(t *testing.T) {
	h := NewHub()
	defer h.Close()

	conn := newTestConn("c1")
	h.Register(conn)

	h.ToConn("c1", "room:created", map[string]string{"roomId": "1234"})

	msg := recv(t, conn)
	assert.Equal(t, "room:created", msg.Type)
	assert.JSONEq(t, `{"roomId":"1234"}`, string(msg.Payload))
}

func TestHubRoomBroadcast(t *testing.T) {
	h := NewHub()
	defer h.Close()

	a, b, outsider := newTestConn("a"), newTestConn("b"), newTestConn("x")
	for _, c := range []*Connection{a, b, outsider} {
		h.Register(c)
	}
	h.JoinRoom("a", "1234")
	h.JoinRoom("b", "1234")

	h.ToRoom("1234", "room:user-list", map[string]int{"n": 2})

	assert.Equal(t, "room:user-list", recv(t, a).Type)
	assert.Equal(t, "room:user-list", recv(t, b).Type)
	assertSilent(t, outsider)
}

func TestHubRoomExcept(t *testing.T) {
	h := NewHub()
	defer h.Close()

	drawer, guesser := newTestConn("d"), newTestConn("g")
	h.Register(drawer)
	h.Register(guesser)
	h.JoinRoom("d", "1234")
	h.JoinRoom("g", "1234")

	h.ToRoomExcept("1234", "d", "sketch:draw", map[string]string{"drawData": "..."})

	assert.Equal(t, "sketch:draw", recv(t, guesser).Type)
	assertSilent(t, drawer)
}

func TestHubLeaveRoomStopsBroadcasts(t *testing.T) {
	h := NewHub()
	defer h.Close()

	conn := newTestConn("c1")
	h.Register(conn)
	h.JoinRoom("c1", "1234")
	h.LeaveRoom("c1", "1234")

	h.ToRoom("1234", "room:user-list", nil)
	assertSilent(t, conn)
}

func TestHubUnregisterClosesSend(t *testing.T) {
	h := NewHub()
	defer h.Close()

	conn := newTestConn("c1")
	h.Register(conn)
	h.JoinRoom("c1", "1234")
	h.Unregister("c1")

	select {
	case _, ok := <-conn.Send:
		assert.False(t, ok, "send channel must be closed")
	case <-time.After(time.Second):
		t.Fatal("send channel never closed")
	}

	// Delivery after unregister is a no-op, not a panic.
	h.ToConn("c1", "room:user-list", nil)
	h.ToRoom("1234", "room:user-list", nil)
}

func TestHubOrderingAcrossJoinAndBroadcast(t *testing.T) {
	h := NewHub()
	defer h.Close()

	conn := newTestConn("c1")
	h.Register(conn)

	// Join and the broadcast that relies on it are issued back to back; the
	// single command stream must apply them in order.
	h.JoinRoom("c1", "1234")
	h.ToRoom("1234", "room:user-list", map[string]int{"n": 1})

	assert.Equal(t, "room:user-list", recv(t, conn).Type)
}
