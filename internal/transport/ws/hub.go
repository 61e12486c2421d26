package ws

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
)

// Message is the WebSocket envelope. Both directions use it: the type names
// the operation or event, the payload carries its body.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type opKind int

const (
	opRegister opKind = iota
	opUnregister
	opJoin
	opLeave
	opSend
)

// command is one unit of hub work. Everything flows through a single channel
// so membership changes and the broadcasts that depend on them are applied
// in the order the coordinator issued them.
type command struct {
	kind     opKind
	conn     *Connection
	connID   string
	roomCode string
	exclude  string
	data     []byte
}

// Connection is the hub's handle on one WebSocket client. Send is drained by
// the connection's write pump; full buffers drop rather than block the hub.
type Connection struct {
	ID   string
	Send chan []byte
}

// Hub owns the connID -> connection map and the room fan-out sets. It
// implements service.Broadcaster; the publish methods enqueue and return, so
// the coordinator never blocks on a slow socket.
type Hub struct {
	conns map[string]*Connection
	rooms map[string]map[string]bool

	commands chan command

	closeOnce sync.Once
	done      chan struct{}
}

func NewHub() *Hub {
	h := &Hub{
		conns:    make(map[string]*Connection),
		rooms:    make(map[string]map[string]bool),
		commands: make(chan command, 256),
		done:     make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			for _, conn := range h.conns {
				close(conn.Send)
			}
			return
		case cmd := <-h.commands:
			h.apply(cmd)
		}
	}
}

func (h *Hub) apply(cmd command) {
	switch cmd.kind {
	case opRegister:
		h.conns[cmd.conn.ID] = cmd.conn

	case opUnregister:
		conn, ok := h.conns[cmd.connID]
		if !ok {
			return
		}
		delete(h.conns, cmd.connID)
		for code, members := range h.rooms {
			delete(members, cmd.connID)
			if len(members) == 0 {
				delete(h.rooms, code)
			}
		}
		close(conn.Send)

	case opJoin:
		if h.rooms[cmd.roomCode] == nil {
			h.rooms[cmd.roomCode] = make(map[string]bool)
		}
		h.rooms[cmd.roomCode][cmd.connID] = true

	case opLeave:
		if members, ok := h.rooms[cmd.roomCode]; ok {
			delete(members, cmd.connID)
			if len(members) == 0 {
				delete(h.rooms, cmd.roomCode)
			}
		}

	case opSend:
		if cmd.connID != "" {
			h.deliver(cmd.connID, cmd.data)
			return
		}
		for connID := range h.rooms[cmd.roomCode] {
			if connID == cmd.exclude {
				continue
			}
			h.deliver(connID, cmd.data)
		}
	}
}

func (h *Hub) deliver(connID string, data []byte) {
	conn, ok := h.conns[connID]
	if !ok {
		return
	}
	select {
	case conn.Send <- data:
	default:
		// Slow consumer: drop rather than stall every other room member.
		log.Warn().Str("conn", connID).Msg("send buffer full, dropping message")
	}
}

func (h *Hub) enqueue(cmd command) {
	select {
	case h.commands <- cmd:
	case <-h.done:
	}
}

// Register adds a connection before its pumps start.
func (h *Hub) Register(conn *Connection) {
	h.enqueue(command{kind: opRegister, conn: conn})
}

// Unregister drops a connection and closes its send channel.
func (h *Hub) Unregister(connID string) {
	h.enqueue(command{kind: opUnregister, connID: connID})
}

// JoinRoom subscribes a connection to a room's broadcasts (implements
// service.Broadcaster).
func (h *Hub) JoinRoom(connID, roomCode string) {
	h.enqueue(command{kind: opJoin, connID: connID, roomCode: roomCode})
}

// LeaveRoom unsubscribes a connection from a room (implements
// service.Broadcaster).
func (h *Hub) LeaveRoom(connID, roomCode string) {
	h.enqueue(command{kind: opLeave, connID: connID, roomCode: roomCode})
}

// ToConn sends one message to one connection (implements
// service.Broadcaster).
func (h *Hub) ToConn(connID, msgType string, payload interface{}) {
	h.enqueue(command{kind: opSend, connID: connID, data: encode(msgType, payload)})
}

// ToRoom sends one message to every connection in a room (implements
// service.Broadcaster).
func (h *Hub) ToRoom(roomCode, msgType string, payload interface{}) {
	h.enqueue(command{kind: opSend, roomCode: roomCode, data: encode(msgType, payload)})
}

// ToRoomExcept sends to every room connection but one (implements
// service.Broadcaster).
func (h *Hub) ToRoomExcept(roomCode, exceptConnID, msgType string, payload interface{}) {
	h.enqueue(command{kind: opSend, roomCode: roomCode, exclude: exceptConnID, data: encode(msgType, payload)})
}

func encode(msgType string, payload interface{}) []byte {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Warn().Err(err).Str("type", msgType).Msg("payload marshal failed")
		body = []byte("{}")
	}
	data, _ := json.Marshal(&Message{Type: msgType, Payload: body})
	return data
}
