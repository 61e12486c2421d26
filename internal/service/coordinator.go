package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"partyroom/internal/cache"
	"partyroom/internal/game"
	"partyroom/internal/model"
	"partyroom/internal/repository"
)

const (
	codeAttempts  = 100             // rejection-sampling bound for room codes
	storeDeadline = 3 * time.Second // per durable write; memory stays authoritative
)

// Coordinator owns all room lifecycle transitions: create/join/leave, the
// ready/host/kick protocol, the countdown-gated start handshake, engine
// dispatch and reconnect recovery. Every operation runs under one lock, so
// a room is never mutated concurrently; the durable store is written through
// best-effort and only read when memory has no entry.
type Coordinator struct {
	mu sync.Mutex

	registry *Registry
	rooms    *RoomTable

	roomRepo  repository.RoomRepo
	userRepo  repository.UserRepo
	stateRepo repository.GameStateRepo
	roomCache cache.RoomCache

	tokens  *TokenService
	engines game.Registry

	broadcaster Broadcaster
	purge       *PurgeQueue

	maxRoomSize int
	grace       time.Duration

	rng *rand.Rand
	now func() time.Time
}

func NewCoordinator(
	registry *Registry,
	rooms *RoomTable,
	roomRepo repository.RoomRepo,
	userRepo repository.UserRepo,
	stateRepo repository.GameStateRepo,
	roomCache cache.RoomCache,
	tokens *TokenService,
	engines game.Registry,
	maxRoomSize int,
	grace time.Duration,
) *Coordinator {
	c := &Coordinator{
		registry:    registry,
		rooms:       rooms,
		roomRepo:    roomRepo,
		userRepo:    userRepo,
		stateRepo:   stateRepo,
		roomCache:   roomCache,
		tokens:      tokens,
		engines:     engines,
		maxRoomSize: maxRoomSize,
		grace:       grace,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         time.Now,
	}
	c.purge = NewPurgeQueue(c.expireUser)
	return c
}

// SetBroadcaster injects the transport publish side (the ws hub in
// production, a fake in tests).
func (c *Coordinator) SetBroadcaster(b Broadcaster) {
	c.broadcaster = b
}

func (c *Coordinator) Stop() {
	c.purge.Stop()
}

// Create allocates a room with the caller as sole member and host. The host
// counts as ready from the start since they control the start button.
func (c *Coordinator) Create(connID, nickname string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	code, err := c.allocateCode()
	if err != nil {
		c.sendError(connID, err)
		return
	}

	userID := newUserID()
	member := model.Member{UserID: userID, Nickname: nickname}
	room := model.NewRoom(code, member)
	c.rooms.Put(room)
	c.registry.Bind(&Session{ConnID: connID, UserID: userID, Nickname: nickname, RoomCode: code, Ready: true})

	c.persist("room create", func(ctx context.Context) error {
		return c.roomRepo.Create(ctx, roomRecord(room))
	})
	c.persist("user upsert", func(ctx context.Context) error {
		return c.userRepo.Upsert(ctx, userRecord(connID, room, member, true))
	})
	c.cacheRoom(room)

	token := c.issueToken(code, userID)
	c.broadcaster.JoinRoom(connID, code)
	c.broadcaster.ToConn(connID, "room:created", model.RoomCreatedPayload{
		RoomCode:    code,
		User:        member,
		Room:        room.Snapshot(),
		ResumeToken: token,
	})
	c.broadcaster.ToRoom(code, "room:user-list", room.Snapshot())

	log.Info().Str("room", code).Str("user", userID).Str("nickname", nickname).Msg("room created")
}

// Join appends a new logical user to an existing room. Join never falls back
// to the durable store; only request-info recovers rooms from it.
func (c *Coordinator) Join(connID, code, nickname string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	room := c.rooms.Get(code)
	if room == nil {
		c.sendError(connID, ErrRoomNotFound)
		return
	}
	if len(room.Members) >= c.maxRoomSize {
		c.sendError(connID, ErrRoomFull)
		return
	}

	userID := newUserID()
	member := model.Member{UserID: userID, Nickname: nickname}
	room.Members = append(room.Members, member)
	c.registry.Bind(&Session{ConnID: connID, UserID: userID, Nickname: nickname, RoomCode: code})

	c.persist("user upsert", func(ctx context.Context) error {
		return c.userRepo.Upsert(ctx, userRecord(connID, room, member, false))
	})

	token := c.issueToken(code, userID)
	c.broadcaster.JoinRoom(connID, code)
	c.broadcaster.ToConn(connID, "room:joined", model.RoomJoinedPayload{
		Room:        room.Snapshot(),
		User:        member,
		ResumeToken: token,
	})
	c.broadcaster.ToRoom(code, "room:user-list", room.Snapshot())

	// Late joiners still need to see what the host already picked.
	if room.SelectedGame != "" {
		c.broadcaster.ToConn(connID, "room:game-selected", model.GameSelectedPayload{
			GameType: room.SelectedGame,
			Settings: room.Settings,
		})
	}

	log.Info().Str("room", code).Str("user", userID).Str("nickname", nickname).Msg("user joined")
}

// Leave removes the caller from its room immediately (no grace window; this
// is an explicit departure).
func (c *Coordinator) Leave(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.registry.Get(connID)
	if s == nil || s.RoomCode == "" {
		return
	}
	code := s.RoomCode
	c.registry.Remove(connID)
	c.broadcaster.LeaveRoom(connID, code)
	c.persist("user delete", func(ctx context.Context) error {
		return c.userRepo.Delete(ctx, connID)
	})

	if room := c.rooms.Get(code); room != nil {
		c.removeFromRoom(room, s.UserID)
	}
}

// SetReady toggles the caller's membership in the ready-set. Both the delta
// event and a full snapshot go out: game-phase screens may have missed the
// delta stream and resynchronize off the snapshot.
func (c *Coordinator) SetReady(connID string, isReady bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, room := c.sessionRoom(connID)
	if s == nil || room == nil || !room.HasMember(s.UserID) {
		return
	}
	s.Ready = isReady
	if isReady {
		room.Ready[s.UserID] = true
	} else {
		delete(room.Ready, s.UserID)
	}

	c.persist("ready update", func(ctx context.Context) error {
		return c.userRepo.SetReady(ctx, connID, isReady)
	})

	c.broadcaster.ToRoom(room.Code, "room:ready-update", model.ReadyUpdatePayload{UserID: s.UserID, IsReady: isReady})
	c.broadcaster.ToRoom(room.Code, "room:user-list", room.Snapshot())
}

// SelectGame stores the host's game pick. Non-host calls are dropped
// silently; re-selecting in the lobby is allowed any number of times.
func (c *Coordinator) SelectGame(connID string, gameType model.GameType, settings model.GameSettings) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, room := c.sessionRoom(connID)
	if s == nil || room == nil || room.HostID != s.UserID {
		return
	}

	room.SelectedGame = gameType
	room.Settings = settings
	c.persist("selection update", func(ctx context.Context) error {
		return c.roomRepo.UpdateSelection(ctx, room.Code, gameType, settings)
	})
	c.cacheRoom(room)

	c.broadcaster.ToRoom(room.Code, "room:game-selected", model.GameSelectedPayload{
		GameType: gameType,
		Settings: settings,
	})
}

// Kick removes a target member. Host only; the target gets its own kicked
// event before the remainder sees the new member list.
func (c *Coordinator) Kick(connID, targetUserID string) {
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
	if targetUserID == s.UserID || !room.HasMember(targetUserID) {
		return
	}

	if target := c.registry.FindByUser(targetUserID, room.Code); target != nil {
		c.broadcaster.ToConn(target.ConnID, "room:kicked", model.KickedPayload{UserID: targetUserID})
		c.broadcaster.LeaveRoom(target.ConnID, room.Code)
		c.registry.Remove(target.ConnID)
		c.persist("user delete", func(ctx context.Context) error {
			return c.userRepo.Delete(ctx, target.ConnID)
		})
	}
	c.purge.Cancel(targetUserID) // target may have been in its grace window
	c.persist("user delete", func(ctx context.Context) error {
		return c.userRepo.DeleteByUser(ctx, room.Code, targetUserID)
	})

	room.RemoveMember(targetUserID)
	c.broadcaster.ToRoom(room.Code, "room:user-list", room.Snapshot())

	log.Info().Str("room", room.Code).Str("user", targetUserID).Msg("user kicked")
}

// RequestCountdown validates the start precondition and, if met, signals
// every client to run its local 3-2-1 countdown. The server keeps no timer:
// the authoritative transition happens when the host follows up with
// StartGame. Failures go to the caller only.
func (c *Coordinator) RequestCountdown(connID string) {
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

	// Host readiness is implicit: only the other members must be ready.
	for _, m := range room.Members {
		if m.UserID != room.HostID && !room.Ready[m.UserID] {
			c.sendError(connID, ErrNotReady)
			return
		}
	}

	c.broadcaster.ToRoom(room.Code, "countdown:start", struct{}{})
	c.broadcaster.ToConn(connID, "countdown:ack", map[string]bool{"ok": true})
}

// Disconnect drops the connection-handle mapping immediately but keeps the
// logical user's membership for the grace window.
func (c *Coordinator) Disconnect(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.registry.Get(connID)
	if s == nil {
		return
	}
	c.registry.Remove(connID)

	if s.RoomCode == "" || c.rooms.Get(s.RoomCode) == nil {
		c.persist("user delete", func(ctx context.Context) error {
			return c.userRepo.Delete(ctx, connID)
		})
		return
	}

	c.purge.Schedule(s.UserID, s.RoomCode, c.grace)
	log.Info().Str("room", s.RoomCode).Str("user", s.UserID).Dur("grace", c.grace).Msg("disconnected, purge scheduled")
}

// expireUser runs when a grace window lapses with no reconnect. A reconnect
// that raced the timer shows up as a live session and aborts the purge.
func (c *Coordinator) expireUser(userID, roomCode string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	room := c.rooms.Get(roomCode)
	if room == nil || !room.HasMember(userID) {
		return
	}
	if c.registry.FindByUser(userID, roomCode) != nil {
		return // reclaimed in time
	}

	log.Info().Str("room", roomCode).Str("user", userID).Msg("grace window expired, removing user")
	c.removeFromRoom(room, userID)
}

// removeFromRoom applies the shared removal logic: the member's durable rows
// go away so a later recovery cannot resurrect them, empty rooms are
// destroyed (memory and store), a departing host is replaced by the
// earliest-joined remaining member.
func (c *Coordinator) removeFromRoom(room *model.Room, userID string) {
	room.RemoveMember(userID)
	c.persist("user delete", func(ctx context.Context) error {
		return c.userRepo.DeleteByUser(ctx, room.Code, userID)
	})

	if len(room.Members) == 0 {
		c.rooms.Delete(room.Code)
		c.persist("room delete", func(ctx context.Context) error {
			return c.roomRepo.Delete(ctx, room.Code)
		})
		c.persist("room users delete", func(ctx context.Context) error {
			return c.userRepo.DeleteByRoom(ctx, room.Code)
		})
		c.persist("game state delete", func(ctx context.Context) error {
			return c.stateRepo.Delete(ctx, room.Code)
		})
		if err := c.roomCache.Delete(context.Background(), room.Code); err != nil {
			log.Warn().Err(err).Str("room", room.Code).Msg("room cache delete failed")
		}
		log.Info().Str("room", room.Code).Msg("room destroyed")
		return
	}

	if room.HostID == userID {
		room.HostID = room.Members[0].UserID
		c.persist("host update", func(ctx context.Context) error {
			return c.roomRepo.UpdateHost(ctx, room.Code, room.HostID)
		})
		log.Info().Str("room", room.Code).Str("host", room.HostID).Msg("host reassigned")
	}

	c.broadcaster.ToRoom(room.Code, "room:left", model.UserLeftPayload{UserID: userID})
	c.broadcaster.ToRoom(room.Code, "room:user-list", room.Snapshot())
}

// Heartbeat marks the session's durable row as recently seen so the
// retention sweep never collects a room with live sockets.
func (c *Coordinator) Heartbeat(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.registry.Get(connID)
	if s == nil || s.RoomCode == "" {
		return
	}
	c.persist("touch last seen", func(ctx context.Context) error {
		return c.userRepo.TouchLastSeen(ctx, connID)
	})
}

// Lookup answers the join-screen probe: does the room exist and can it take
// another member. Memory only; rooms not yet recovered read as absent, which
// is what a joiner (as opposed to a resumer) should see.
func (c *Coordinator) Lookup(code string) (*model.RoomSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	room := c.rooms.Get(code)
	if room == nil {
		return nil, false
	}
	snap := room.Snapshot()
	return &snap, true
}

// allocateCode draws 4-digit codes until one is unused by the live table,
// the cache and the store. The dual check guards against codes orphaned in
// storage by a prior crash.
func (c *Coordinator) allocateCode() (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code := fmt.Sprintf("%04d", 1000+c.rng.Intn(9000))
		if c.rooms.Has(code) {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeDeadline)
		inCache, err := c.roomCache.Exists(ctx, code)
		if err == nil && inCache {
			cancel()
			continue
		}
		rec, err := c.roomRepo.GetByCode(ctx, code)
		cancel()
		if err != nil {
			// Store down: memory is authoritative, keep the code.
			log.Warn().Err(err).Msg("code uniqueness check degraded to memory only")
			return code, nil
		}
		if rec == nil {
			return code, nil
		}
	}
	return "", ErrCodeExhaustion
}

func (c *Coordinator) sessionRoom(connID string) (*Session, *model.Room) {
	s := c.registry.Get(connID)
	if s == nil || s.RoomCode == "" {
		return nil, nil
	}
	return s, c.rooms.Get(s.RoomCode)
}

func (c *Coordinator) sendError(connID string, err error) {
	c.broadcaster.ToConn(connID, "room:error", model.ErrorPayload{
		Code:    errorCode(err),
		Message: err.Error(),
	})
}

// persist runs one durable write with a deadline. Failures are logged, never
// propagated: the live room keeps working without durability until the store
// recovers.
func (c *Coordinator) persist(op string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), storeDeadline)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Warn().Err(err).Str("op", op).Msg("store write failed, continuing in memory")
	}
}

func (c *Coordinator) cacheRoom(room *model.Room) {
	ctx, cancel := context.WithTimeout(context.Background(), storeDeadline)
	defer cancel()
	if err := c.roomCache.SetMeta(ctx, room.Code, roomRecord(room)); err != nil {
		log.Warn().Err(err).Str("room", room.Code).Msg("room cache write failed")
	}
}

func (c *Coordinator) issueToken(roomCode, userID string) string {
	token, err := c.tokens.IssueResumeToken(roomCode, userID)
	if err != nil {
		log.Warn().Err(err).Msg("resume token issue failed")
		return ""
	}
	return token
}

func roomRecord(room *model.Room) *model.RoomRecord {
	return &model.RoomRecord{
		Code:         room.Code,
		HostID:       room.HostID,
		Phase:        room.Phase,
		SelectedGame: room.SelectedGame,
		Settings:     room.Settings,
	}
}

func userRecord(connID string, room *model.Room, member model.Member, ready bool) *model.UserRecord {
	return &model.UserRecord{
		ConnID:   connID,
		UserID:   member.UserID,
		Nickname: member.Nickname,
		RoomCode: room.Code,
		Ready:    ready,
		IsHost:   room.HostID == member.UserID,
	}
}

func newUserID() string {
	return "user_" + uuid.New().String()[:8]
}
