package service

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"partyroom/internal/game"
	"partyroom/internal/model"
)

// StartGame is the authoritative lobby→playing transition. The host sends it
// after the client countdown finishes; the server never starts a game on its
// own timer. A gameType carried on the start event overrides the stored
// selection (clients send their freshest settings here); empty falls back to
// what the host picked earlier.
func (c *Coordinator) StartGame(connID string, gameType model.GameType, settings model.GameSettings) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, room := c.sessionRoom(connID)
	if s == nil || room == nil {
		return
	}
	if room.HostID != s.UserID {
		c.sendError(connID, ErrNotHost)
		return
	}
	if room.Phase == model.PhasePlaying {
		return
	}
	if gameType != "" {
		room.SelectedGame = gameType
		room.Settings = settings
		c.persist("selection update", func(ctx context.Context) error {
			return c.roomRepo.UpdateSelection(ctx, room.Code, gameType, settings)
		})
	}
	if room.SelectedGame == "" {
		return
	}
	engine, ok := c.engines[room.SelectedGame]
	if !ok {
		c.sendError(connID, ErrUnknownGame)
		return
	}

	// Ready is consumed by the start: the next lobby begins from scratch.
	c.clearReady(room)
	room.BackToLobby = map[string]bool{}
	c.broadcaster.ToRoom(room.Code, "room:ready-reset", struct{}{})

	now := c.now()
	st, events := engine.Init(room.Members, room.Settings, now)
	room.Phase = model.PhasePlaying
	room.Game = st

	c.persist("phase update", func(ctx context.Context) error {
		return c.roomRepo.UpdatePhase(ctx, room.Code, model.PhasePlaying)
	})
	c.persistGameState(room)

	c.emit(room.Code, events)
	log.Info().Str("room", room.Code).Str("game", string(room.SelectedGame)).Msg("game started")
}

// GameAction routes one in-game action to the engine of the running game.
// Actions from non-members, or when nothing is running, are dropped.
func (c *Coordinator) GameAction(connID, action string, payload json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, room := c.sessionRoom(connID)
	if s == nil || room == nil || room.Game == nil || room.Phase != model.PhasePlaying {
		return
	}
	if !room.HasMember(s.UserID) {
		return
	}
	engine, ok := c.engines[room.Game.Type]
	if !ok {
		return
	}

	res := engine.HandleAction(room.Game, room.Members, s.UserID, action, payload, c.now())
	if res.Terminal {
		room.Phase = model.PhaseResult
		c.persist("phase update", func(ctx context.Context) error {
			return c.roomRepo.UpdatePhase(ctx, room.Code, model.PhaseResult)
		})
	}
	if res.Changed {
		c.persistGameState(room)
	}
	c.emit(room.Code, res.Events)
}

// BackToLobby collects the per-member acknowledgement from the result screen.
// When every current member has acknowledged, the room returns to waiting and
// the finished game state is discarded.
func (c *Coordinator) BackToLobby(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, room := c.sessionRoom(connID)
	if s == nil || room == nil || !room.HasMember(s.UserID) {
		return
	}
	if room.Phase != model.PhasePlaying && room.Phase != model.PhaseResult {
		return
	}

	room.BackToLobby[s.UserID] = true
	for _, m := range room.Members {
		if !room.BackToLobby[m.UserID] {
			return
		}
	}

	// Everyone acked: the played game is spent, the next lobby picks fresh.
	c.resetToLobby(room)
	room.SelectedGame = ""
	room.Settings = nil
	c.persist("selection update", func(ctx context.Context) error {
		return c.roomRepo.UpdateSelection(ctx, room.Code, "", nil)
	})

	c.broadcaster.ToRoom(room.Code, "room:all-back-to-room", struct{}{})
	c.broadcaster.ToRoom(room.Code, "room:game-selected", model.GameSelectedPayload{})
	c.broadcaster.ToRoom(room.Code, "room:user-list", room.Snapshot())
	log.Info().Str("room", room.Code).Msg("room returned to lobby")
}

// EndGame aborts a running game without waiting for the result
// acknowledgements. Any member may pull the plug, not just the host.
func (c *Coordinator) EndGame(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, room := c.sessionRoom(connID)
	if s == nil || room == nil || !room.HasMember(s.UserID) {
		return
	}
	if room.Phase == model.PhaseWaiting {
		return
	}

	// Abort: back to the lobby with the selection intact so the room can
	// retry the same game. Ready toggled mid-game must not survive into the
	// next countdown check.
	c.resetToLobby(room)
	c.clearReady(room)
	c.broadcaster.ToRoom(room.Code, "game:finished", model.GameFinishedPayload{Room: room.Snapshot()})
	c.broadcaster.ToRoom(room.Code, "room:ready-reset", struct{}{})
	c.broadcaster.ToRoom(room.Code, "room:user-list", room.Snapshot())
	if room.SelectedGame != "" {
		c.broadcaster.ToRoom(room.Code, "room:game-selected", model.GameSelectedPayload{
			GameType: room.SelectedGame,
			Settings: room.Settings,
		})
	}
	log.Info().Str("room", room.Code).Str("user", s.UserID).Msg("game ended early")
}

// clearReady empties the ready-set, in memory and per durable member row.
func (c *Coordinator) clearReady(room *model.Room) {
	room.Ready = map[string]bool{}
	for _, sess := range c.registry.SessionsInRoom(room.Code) {
		sess.Ready = false
		connID := sess.ConnID
		c.persist("ready update", func(ctx context.Context) error {
			return c.userRepo.SetReady(ctx, connID, false)
		})
	}
}

// resetToLobby applies the shared playing/result -> waiting transition.
func (c *Coordinator) resetToLobby(room *model.Room) {
	room.Phase = model.PhaseWaiting
	room.Game = nil
	room.BackToLobby = map[string]bool{}

	c.persist("phase update", func(ctx context.Context) error {
		return c.roomRepo.UpdatePhase(ctx, room.Code, model.PhaseWaiting)
	})
	c.persist("game state delete", func(ctx context.Context) error {
		return c.stateRepo.Delete(ctx, room.Code)
	})
}

func (c *Coordinator) persistGameState(room *model.Room) {
	rec := &model.GameStateRecord{
		RoomCode:  room.Code,
		Type:      room.Game.Type,
		State:     *room.Game,
		StartedAt: room.Game.StartedAt(),
	}
	c.persist("game state upsert", func(ctx context.Context) error {
		return c.stateRepo.Upsert(ctx, rec)
	})
}

// emit delivers engine events: addressed ones to the target user's live
// connection (dropped if it is in its grace window), the rest to the room.
func (c *Coordinator) emit(roomCode string, events []game.Event) {
	for _, ev := range events {
		switch {
		case ev.ToUserID != "":
			if sess := c.registry.FindByUser(ev.ToUserID, roomCode); sess != nil {
				c.broadcaster.ToConn(sess.ConnID, ev.Name, ev.Payload)
			}
		case ev.ExcludeUserID != "":
			exclude := ""
			if sess := c.registry.FindByUser(ev.ExcludeUserID, roomCode); sess != nil {
				exclude = sess.ConnID
			}
			c.broadcaster.ToRoomExcept(roomCode, exclude, ev.Name, ev.Payload)
		default:
			c.broadcaster.ToRoom(roomCode, ev.Name, ev.Payload)
		}
	}
}
