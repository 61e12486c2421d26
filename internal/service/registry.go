package service

import "partyroom/internal/model"

// Session is the live state of one connection handle: which logical user
// occupies it and where that user currently is.
type Session struct {
	ConnID   string
	UserID   string
	Nickname string
	RoomCode string
	Ready    bool
}

// Registry maps connection handles to sessions. It is created at process
// start, handed to the coordinator, and only ever touched under the
// coordinator's lock.
type Registry struct {
	conns map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Session)}
}

func (r *Registry) Get(connID string) *Session {
	return r.conns[connID]
}

func (r *Registry) Bind(s *Session) {
	r.conns[s.ConnID] = s
}

func (r *Registry) Remove(connID string) {
	delete(r.conns, connID)
}

// FindByUser returns the session currently claiming a logical user within a
// room, or nil. At most one connection handle may claim a logical user.
func (r *Registry) FindByUser(userID, roomCode string) *Session {
	for _, s := range r.conns {
		if s.UserID == userID && s.RoomCode == roomCode {
			return s
		}
	}
	return nil
}

// SessionsInRoom returns every live session bound to a room.
func (r *Registry) SessionsInRoom(roomCode string) []*Session {
	var out []*Session
	for _, s := range r.conns {
		if s.RoomCode == roomCode {
			out = append(out, s)
		}
	}
	return out
}

// RoomTable holds the live room aggregates, keyed by 4-digit code. Same
// ownership rules as Registry.
type RoomTable struct {
	rooms map[string]*model.Room
}

func NewRoomTable() *RoomTable {
	return &RoomTable{rooms: make(map[string]*model.Room)}
}

func (t *RoomTable) Get(code string) *model.Room {
	return t.rooms[code]
}

func (t *RoomTable) Put(room *model.Room) {
	t.rooms[room.Code] = room
}

func (t *RoomTable) Delete(code string) {
	delete(t.rooms, code)
}

func (t *RoomTable) Has(code string) bool {
	_, ok := t.rooms[code]
	return ok
}

func (t *RoomTable) Len() int {
	return len(t.rooms)
}
