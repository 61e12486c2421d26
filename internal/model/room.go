package model

import "time"

type RoomPhase string

const (
	PhaseWaiting RoomPhase = "waiting"
	PhasePlaying RoomPhase = "playing"
	PhaseResult  RoomPhase = "result"
)

// Member is one logical user inside a room. The order of Room.Members is
// join order; host reassignment and turn rotation both follow it.
type Member struct {
	UserID   string `json:"userId" bson:"userId"`
	Nickname string `json:"nickname" bson:"nickname"`
}

// GameSettings is the host-chosen settings blob for the selected game. The
// coordinator stores and forwards it; only the matching engine interprets it.
type GameSettings map[string]interface{}

// Room is the live room aggregate. It is owned exclusively by the session
// coordinator; engines only ever see the Game field.
type Room struct {
	Code         string
	HostID       string
	Members      []Member
	Ready        map[string]bool // ready-set, always a subset of Members
	Phase        RoomPhase
	SelectedGame GameType
	Settings     GameSettings
	Game         *GameState // nil outside playing/result

	// BackToLobby tracks which members acknowledged returning to the
	// lobby after a game. Cleared on every game start.
	BackToLobby map[string]bool
}

func NewRoom(code string, host Member) *Room {
	return &Room{
		Code:        code,
		HostID:      host.UserID,
		Members:     []Member{host},
		Ready:       map[string]bool{host.UserID: true},
		Phase:       PhaseWaiting,
		BackToLobby: map[string]bool{},
	}
}

// MemberIndex returns the join-order index of userID, or -1.
func (r *Room) MemberIndex(userID string) int {
	for i, m := range r.Members {
		if m.UserID == userID {
			return i
		}
	}
	return -1
}

func (r *Room) HasMember(userID string) bool {
	return r.MemberIndex(userID) >= 0
}

func (r *Room) Member(userID string) (Member, bool) {
	if i := r.MemberIndex(userID); i >= 0 {
		return r.Members[i], true
	}
	return Member{}, false
}

// RemoveMember drops userID from the membership list, the ready-set and the
// back-to-lobby set in one step so the subset invariants hold.
func (r *Room) RemoveMember(userID string) {
	if i := r.MemberIndex(userID); i >= 0 {
		r.Members = append(r.Members[:i], r.Members[i+1:]...)
	}
	delete(r.Ready, userID)
	delete(r.BackToLobby, userID)
}

// ReadyUserIDs returns the ready-set in join order.
func (r *Room) ReadyUserIDs() []string {
	ids := make([]string, 0, len(r.Ready))
	for _, m := range r.Members {
		if r.Ready[m.UserID] {
			ids = append(ids, m.UserID)
		}
	}
	return ids
}

// RoomRecord is the durable shape of a room.
type RoomRecord struct {
	Code         string       `json:"code" bson:"_id"`
	HostID       string       `json:"hostId" bson:"hostId"`
	Phase        RoomPhase    `json:"phase" bson:"phase"`
	SelectedGame GameType     `json:"selectedGame,omitempty" bson:"selectedGame,omitempty"`
	Settings     GameSettings `json:"settings,omitempty" bson:"settings,omitempty"`
	CreatedAt    time.Time    `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt" bson:"updatedAt"`
}

// UserRecord is the durable shape of a session user, keyed by the connection
// handle that last claimed the logical user.
type UserRecord struct {
	ConnID      string    `json:"connId" bson:"_id"`
	UserID      string    `json:"userId" bson:"userId"`
	Nickname    string    `json:"nickname" bson:"nickname"`
	RoomCode    string    `json:"roomCode" bson:"roomCode"`
	Ready       bool      `json:"ready" bson:"ready"`
	IsHost      bool      `json:"isHost" bson:"isHost"`
	ConnectedAt time.Time `json:"connectedAt" bson:"connectedAt"`
	LastSeenAt  time.Time `json:"lastSeenAt" bson:"lastSeenAt"`
}
