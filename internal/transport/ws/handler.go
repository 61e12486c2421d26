package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"partyroom/internal/model"
	"partyroom/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024 // sketch strokes are the largest inbound frames

	// Inbound rate: drawing bursts hard, everything else is sparse.
	inboundRate  = 30
	inboundBurst = 60
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

// Handler upgrades HTTP requests and pumps messages between the socket and
// the coordinator.
type Handler struct {
	hub         *Hub
	coordinator *service.Coordinator
}

func NewHandler(hub *Hub, coordinator *service.Coordinator) *Handler {
	return &Handler{hub: hub, coordinator: coordinator}
}

// ServeWS handles GET /v1/ws. Every socket gets a fresh connection handle;
// identity within a room comes from the messages it then sends.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := &Connection{
		ID:   "conn_" + uuid.New().String(),
		Send: make(chan []byte, 256),
	}
	h.hub.Register(conn)

	log.Debug().Str("conn", conn.ID).Msg("websocket connected")

	go h.writePump(wsConn, conn)
	go h.readPump(wsConn, conn)
}

func (h *Handler) readPump(wsConn *websocket.Conn, conn *Connection) {
	defer func() {
		h.coordinator.Disconnect(conn.ID)
		h.hub.Unregister(conn.ID)
		wsConn.Close()
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		h.coordinator.Heartbeat(conn.ID)
		return nil
	})

	limiter := rate.NewLimiter(rate.Limit(inboundRate), inboundBurst)

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("conn", conn.ID).Msg("websocket read error")
			}
			break
		}
		if !limiter.Allow() {
			continue // shed, the client is misbehaving
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			continue
		}
		h.dispatch(conn.ID, &msg)
	}
}

func (h *Handler) writePump(wsConn *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := wsConn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type createReq struct {
	Nickname string `json:"nickname"`
}

type joinReq struct {
	RoomCode string `json:"roomId"`
	Nickname string `json:"nickname"`
}

type readyReq struct {
	IsReady bool `json:"isReady"`
}

type selectGameReq struct {
	GameType model.GameType     `json:"gameType"`
	Settings model.GameSettings `json:"settings"`
}

type kickReq struct {
	UserID string `json:"userId"`
}

type infoReq struct {
	RoomCode    string `json:"roomId"`
	ResumeToken string `json:"resumeToken"`
	UserID      string `json:"userId"` // legacy clients without a token
}

// dispatch routes one inbound envelope. Room lifecycle types are decoded
// here; anything else is handed to the coordinator as a game action, which
// drops it if no engine claims it.
func (h *Handler) dispatch(connID string, msg *Message) {
	switch msg.Type {
	case "room:create":
		var req createReq
		if json.Unmarshal(msg.Payload, &req) == nil && req.Nickname != "" {
			h.coordinator.Create(connID, req.Nickname)
		}
	case "room:join":
		var req joinReq
		if json.Unmarshal(msg.Payload, &req) == nil && req.RoomCode != "" && req.Nickname != "" {
			h.coordinator.Join(connID, req.RoomCode, req.Nickname)
		}
	case "room:leave":
		h.coordinator.Leave(connID)
	case "room:ready":
		var req readyReq
		if json.Unmarshal(msg.Payload, &req) == nil {
			h.coordinator.SetReady(connID, req.IsReady)
		}
	case "room:select-game":
		var req selectGameReq
		if json.Unmarshal(msg.Payload, &req) == nil && req.GameType != "" {
			h.coordinator.SelectGame(connID, req.GameType, req.Settings)
		}
	case "room:kick":
		var req kickReq
		if json.Unmarshal(msg.Payload, &req) == nil && req.UserID != "" {
			h.coordinator.Kick(connID, req.UserID)
		}
	case "room:request-info":
		var req infoReq
		if json.Unmarshal(msg.Payload, &req) == nil && req.RoomCode != "" {
			h.coordinator.RequestInfo(connID, req.RoomCode, req.ResumeToken, req.UserID)
		}
	case "game:countdown-start":
		h.coordinator.RequestCountdown(connID)
	case "game:start":
		var req selectGameReq
		if json.Unmarshal(msg.Payload, &req) != nil {
			req = selectGameReq{}
		}
		h.coordinator.StartGame(connID, req.GameType, req.Settings)
	case "game:back-to-room":
		h.coordinator.BackToLobby(connID)
	case "game:end":
		h.coordinator.EndGame(connID)
	default:
		h.coordinator.GameAction(connID, msg.Type, msg.Payload)
	}
}
