package model

// RoomSnapshot is the full membership view pushed on every change so screens
// that missed the delta stream can resynchronize.
type RoomSnapshot struct {
	Users      []Member  `json:"users"`
	HostID     string    `json:"hostId"`
	ReadyUsers []string  `json:"readyUsers"`
	Phase      RoomPhase `json:"currentState"`
}

func (r *Room) Snapshot() RoomSnapshot {
	return RoomSnapshot{
		Users:      append([]Member(nil), r.Members...),
		HostID:     r.HostID,
		ReadyUsers: r.ReadyUserIDs(),
		Phase:      r.Phase,
	}
}

// RoomCreatedPayload answers room:create on the creating connection.
type RoomCreatedPayload struct {
	RoomCode    string       `json:"roomId"`
	User        Member       `json:"user"`
	Room        RoomSnapshot `json:"room"`
	ResumeToken string       `json:"resumeToken"`
}

// RoomJoinedPayload answers room:join on the joining connection.
type RoomJoinedPayload struct {
	Room        RoomSnapshot `json:"room"`
	User        Member       `json:"user"`
	ResumeToken string       `json:"resumeToken"`
}

type UserLeftPayload struct {
	UserID string `json:"userId"`
}

type ReadyUpdatePayload struct {
	UserID  string `json:"userId"`
	IsReady bool   `json:"isReady"`
}

type GameSelectedPayload struct {
	GameType GameType     `json:"gameType"`
	Settings GameSettings `json:"settings,omitempty"`
}

type KickedPayload struct {
	UserID string `json:"userId"`
}

// ErrorPayload is only ever sent to the connection that caused it.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type GameStartedPayload struct {
	GameType GameType    `json:"gameType"`
	GameData interface{} `json:"gameData"`
}

// GameFinishedPayload returns everyone to the lobby; the results were already
// delivered by the engine's own results event.
type GameFinishedPayload struct {
	Room RoomSnapshot `json:"room"`
}
