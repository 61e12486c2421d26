package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"partyroom/internal/model"
)

// RequestInfo answers a client asking for the current state of a room,
// typically right after a reconnect. If a resume token (or, failing that, a
// raw rawUserID the client remembered) identifies the caller as a member, the
// new connection handle takes over the logical user and any scheduled purge
// is cancelled. Rooms missing from memory are recovered from the durable
// store before answering.
func (c *Coordinator) RequestInfo(connID, roomCode, resumeToken, rawUserID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	room := c.rooms.Get(roomCode)
	if room == nil {
		room = c.recoverRoom(roomCode)
	}
	if room == nil {
		c.sendError(connID, ErrRoomNotFound)
		return
	}

	userID := ""
	if resumeToken != "" {
		claims, err := c.tokens.ValidateResumeToken(resumeToken)
		if err != nil || claims.RoomCode != roomCode {
			log.Warn().Str("room", roomCode).Msg("resume token rejected")
		} else if room.HasMember(claims.UserID) {
			userID = claims.UserID
		}
	}
	if userID == "" && rawUserID != "" && room.HasMember(rawUserID) {
		userID = rawUserID
	}
	if userID != "" {
		c.reassociate(connID, room, userID)
	}

	c.broadcaster.ToConn(connID, "room:user-list", room.Snapshot())
	if room.SelectedGame != "" {
		c.broadcaster.ToConn(connID, "room:game-selected", model.GameSelectedPayload{
			GameType: room.SelectedGame,
			Settings: room.Settings,
		})
	}
	for _, id := range room.ReadyUserIDs() {
		c.broadcaster.ToConn(connID, "room:ready-update", model.ReadyUpdatePayload{UserID: id, IsReady: true})
	}

	if room.Game != nil && room.Phase == model.PhasePlaying {
		if engine, ok := c.engines[room.Game.Type]; ok {
			// Resync events are addressed at this connection no matter how the
			// engine tagged them; userID only controls secret redaction.
			for _, ev := range engine.Resync(room.Game, room.Members, userID, c.now()) {
				c.broadcaster.ToConn(connID, ev.Name, ev.Payload)
			}
		}
	}
}

// reassociate points the logical user at its new connection: the stale
// handle (if any) is evicted, the pending purge cancelled, and the durable
// row rewritten under the new connection key.
func (c *Coordinator) reassociate(connID string, room *model.Room, userID string) {
	if stale := c.registry.FindByUser(userID, room.Code); stale != nil && stale.ConnID != connID {
		c.broadcaster.LeaveRoom(stale.ConnID, room.Code)
		c.registry.Remove(stale.ConnID)
		c.persist("user delete", func(ctx context.Context) error {
			return c.userRepo.Delete(ctx, stale.ConnID)
		})
	}
	c.purge.Cancel(userID)

	idx := room.MemberIndex(userID)
	member := room.Members[idx]
	c.registry.Bind(&Session{
		ConnID:   connID,
		UserID:   userID,
		Nickname: member.Nickname,
		RoomCode: room.Code,
		Ready:    room.Ready[userID],
	})
	c.persist("user upsert", func(ctx context.Context) error {
		return c.userRepo.Upsert(ctx, userRecord(connID, room, member, room.Ready[userID]))
	})
	c.broadcaster.JoinRoom(connID, room.Code)

	log.Info().Str("room", room.Code).Str("user", userID).Msg("session resumed")
}

// recoverRoom rebuilds a room the process lost (restart, eviction) from the
// durable store, falling back to cached metadata when the store is down. A
// recovered room starts with the grace window running for every member: each
// one must resume within it or be purged.
func (c *Coordinator) recoverRoom(code string) *model.Room {
	ctx, cancel := context.WithTimeout(context.Background(), storeDeadline)
	defer cancel()

	rec, err := c.roomRepo.GetByCode(ctx, code)
	if err != nil {
		log.Warn().Err(err).Str("room", code).Msg("store read failed, trying cache")
		rec, err = c.roomCache.GetMeta(ctx, code)
		if err != nil || rec == nil {
			return nil
		}
	}
	if rec == nil {
		return nil
	}

	room := &model.Room{
		Code:         rec.Code,
		HostID:       rec.HostID,
		Phase:        rec.Phase,
		SelectedGame: rec.SelectedGame,
		Settings:     rec.Settings,
		Ready:        map[string]bool{},
		BackToLobby:  map[string]bool{},
	}

	users, err := c.userRepo.ListByRoom(ctx, code)
	if err != nil {
		log.Warn().Err(err).Str("room", code).Msg("member recovery failed")
	}
	seen := map[string]bool{}
	for _, u := range users {
		if seen[u.UserID] {
			continue // one membership per logical user, oldest row wins
		}
		seen[u.UserID] = true
		room.Members = append(room.Members, model.Member{UserID: u.UserID, Nickname: u.Nickname})
		if u.Ready {
			room.Ready[u.UserID] = true
		}
	}
	if len(room.Members) == 0 {
		return nil
	}
	if !room.HasMember(room.HostID) {
		room.HostID = room.Members[0].UserID
	}

	if room.Phase == model.PhasePlaying {
		if st, err := c.stateRepo.Get(ctx, code); err != nil {
			log.Warn().Err(err).Str("room", code).Msg("game state recovery failed")
			room.Phase = model.PhaseWaiting
		} else if st != nil {
			game := st.State
			room.Game = &game
		} else {
			room.Phase = model.PhaseWaiting
		}
	}

	c.rooms.Put(room)
	for _, m := range room.Members {
		c.purge.Schedule(m.UserID, code, c.grace)
	}
	log.Info().Str("room", code).Int("members", len(room.Members)).Msg("room recovered from store")
	return room
}
