package service

import (
	"context"
	"sync"
	"time"

	"partyroom/internal/model"
)

// --- Broadcaster ---

type sentMessage struct {
	ConnID   string // direct delivery target, empty for room sends
	RoomCode string
	Exclude  string
	Event    string
	Payload  interface{}
}

type fakeBroadcaster struct {
	mu    sync.Mutex
	sent  []sentMessage
	rooms map[string]map[string]bool
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{rooms: map[string]map[string]bool{}}
}

func (b *fakeBroadcaster) JoinRoom(connID, roomCode string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rooms[roomCode] == nil {
		b.rooms[roomCode] = map[string]bool{}
	}
	b.rooms[roomCode][connID] = true
}

func (b *fakeBroadcaster) LeaveRoom(connID, roomCode string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.rooms[roomCode], connID)
}

func (b *fakeBroadcaster) ToConn(connID, event string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, sentMessage{ConnID: connID, Event: event, Payload: payload})
}

func (b *fakeBroadcaster) ToRoom(roomCode, event string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, sentMessage{RoomCode: roomCode, Event: event, Payload: payload})
}

func (b *fakeBroadcaster) ToRoomExcept(roomCode, exceptConnID, event string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, sentMessage{RoomCode: roomCode, Exclude: exceptConnID, Event: event, Payload: payload})
}

// byEvent returns every recorded message with the given event name.
func (b *fakeBroadcaster) byEvent(event string) []sentMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []sentMessage
	for _, m := range b.sent {
		if m.Event == event {
			out = append(out, m)
		}
	}
	return out
}

// lastTo returns the most recent direct message to a connection.
func (b *fakeBroadcaster) lastTo(connID, event string) *sentMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.sent) - 1; i >= 0; i-- {
		if b.sent[i].ConnID == connID && b.sent[i].Event == event {
			m := b.sent[i]
			return &m
		}
	}
	return nil
}

func (b *fakeBroadcaster) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = nil
}

// --- RoomRepo ---

type fakeRoomRepo struct {
	mu    sync.Mutex
	rooms map[string]*model.RoomRecord
	fail  bool
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{rooms: map[string]*model.RoomRecord{}}
}

func (r *fakeRoomRepo) Create(ctx context.Context, room *model.RoomRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return context.DeadlineExceeded
	}
	cp := *room
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.rooms[room.Code] = &cp
	return nil
}

func (r *fakeRoomRepo) GetByCode(ctx context.Context, code string) (*model.RoomRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return nil, context.DeadlineExceeded
	}
	rec, ok := r.rooms[code]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeRoomRepo) UpdatePhase(ctx context.Context, code string, phase model.RoomPhase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return context.DeadlineExceeded
	}
	if rec, ok := r.rooms[code]; ok {
		rec.Phase = phase
		rec.UpdatedAt = time.Now()
	}
	return nil
}

func (r *fakeRoomRepo) UpdateHost(ctx context.Context, code string, hostID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return context.DeadlineExceeded
	}
	if rec, ok := r.rooms[code]; ok {
		rec.HostID = hostID
		rec.UpdatedAt = time.Now()
	}
	return nil
}

func (r *fakeRoomRepo) UpdateSelection(ctx context.Context, code string, gameType model.GameType, settings model.GameSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return context.DeadlineExceeded
	}
	if rec, ok := r.rooms[code]; ok {
		rec.SelectedGame = gameType
		rec.Settings = settings
		rec.UpdatedAt = time.Now()
	}
	return nil
}

func (r *fakeRoomRepo) Delete(ctx context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, code)
	return nil
}

func (r *fakeRoomRepo) List(ctx context.Context) ([]*model.RoomRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return nil, context.DeadlineExceeded
	}
	out := make([]*model.RoomRecord, 0, len(r.rooms))
	for _, rec := range r.rooms {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

// --- UserRepo ---

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.UserRecord
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*model.UserRecord{}}
}

func (r *fakeUserRepo) Upsert(ctx context.Context, user *model.UserRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *user
	if existing, ok := r.users[user.ConnID]; ok {
		cp.ConnectedAt = existing.ConnectedAt
	} else {
		cp.ConnectedAt = time.Now()
	}
	cp.LastSeenAt = time.Now()
	r.users[user.ConnID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByConn(ctx context.Context, connID string) (*model.UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.users[connID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeUserRepo) GetByUserID(ctx context.Context, userID, roomCode string) (*model.UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *model.UserRecord
	for _, rec := range r.users {
		if rec.UserID == userID && rec.RoomCode == roomCode {
			if latest == nil || rec.LastSeenAt.After(latest.LastSeenAt) {
				latest = rec
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (r *fakeUserRepo) ListByRoom(ctx context.Context, roomCode string) ([]*model.UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.UserRecord
	for _, rec := range r.users {
		if rec.RoomCode == roomCode {
			cp := *rec
			out = append(out, &cp)
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].ConnectedAt.Before(out[i].ConnectedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (r *fakeUserRepo) Delete(ctx context.Context, connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, connID)
	return nil
}

func (r *fakeUserRepo) DeleteByUser(ctx context.Context, roomCode, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for connID, rec := range r.users {
		if rec.RoomCode == roomCode && rec.UserID == userID {
			delete(r.users, connID)
		}
	}
	return nil
}

func (r *fakeUserRepo) DeleteByRoom(ctx context.Context, roomCode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for connID, rec := range r.users {
		if rec.RoomCode == roomCode {
			delete(r.users, connID)
		}
	}
	return nil
}

func (r *fakeUserRepo) SetReady(ctx context.Context, connID string, ready bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.users[connID]; ok {
		rec.Ready = ready
	}
	return nil
}

func (r *fakeUserRepo) TouchLastSeen(ctx context.Context, connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.users[connID]; ok {
		rec.LastSeenAt = time.Now()
	}
	return nil
}

// --- GameStateRepo ---

type fakeGameStateRepo struct {
	mu     sync.Mutex
	states map[string]*model.GameStateRecord
}

func newFakeGameStateRepo() *fakeGameStateRepo {
	return &fakeGameStateRepo{states: map[string]*model.GameStateRecord{}}
}

func (r *fakeGameStateRepo) Upsert(ctx context.Context, record *model.GameStateRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *record
	cp.UpdatedAt = time.Now()
	r.states[record.RoomCode] = &cp
	return nil
}

func (r *fakeGameStateRepo) Get(ctx context.Context, roomCode string) (*model.GameStateRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.states[roomCode]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeGameStateRepo) Delete(ctx context.Context, roomCode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, roomCode)
	return nil
}

// --- RoomCache ---

type fakeRoomCache struct {
	mu      sync.Mutex
	entries map[string]*model.RoomRecord
	fail    bool
}

func newFakeRoomCache() *fakeRoomCache {
	return &fakeRoomCache{entries: map[string]*model.RoomRecord{}}
}

func (c *fakeRoomCache) SetMeta(ctx context.Context, code string, record *model.RoomRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return context.DeadlineExceeded
	}
	cp := *record
	c.entries[code] = &cp
	return nil
}

func (c *fakeRoomCache) GetMeta(ctx context.Context, code string) (*model.RoomRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return nil, context.DeadlineExceeded
	}
	rec, ok := c.entries[code]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (c *fakeRoomCache) Exists(ctx context.Context, code string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return false, context.DeadlineExceeded
	}
	_, ok := c.entries[code]
	return ok, nil
}

func (c *fakeRoomCache) Delete(ctx context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, code)
	return nil
}
