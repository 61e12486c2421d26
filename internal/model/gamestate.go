package model

import "time"

type GameType string

const (
	GameStopwatch GameType = "stopwatch"
	GameLiar      GameType = "liar"
	GameTelepathy GameType = "telepathy"
	GameSketch    GameType = "sketch"
)

// GameState is a tagged union of the per-game payloads: Type names the game
// and exactly one of the variant pointers is non-nil. The coordinator stores
// and recovers it as a whole; only the matching engine mutates the variant.
type GameState struct {
	Type      GameType        `json:"type" bson:"type"`
	Stopwatch *StopwatchState `json:"stopwatch,omitempty" bson:"stopwatch,omitempty"`
	Liar      *LiarState      `json:"liar,omitempty" bson:"liar,omitempty"`
	Telepathy *TelepathyState `json:"telepathy,omitempty" bson:"telepathy,omitempty"`
	Sketch    *SketchState    `json:"sketch,omitempty" bson:"sketch,omitempty"`
}

// StopwatchResult is one member's stop attempt.
type StopwatchResult struct {
	UserID   string  `json:"userId" bson:"userId"`
	Nickname string  `json:"nickname" bson:"nickname"`
	StopAt   int64   `json:"stopAt" bson:"stopAt"` // client clock, unix ms
	Error    float64 `json:"error" bson:"error"`   // seconds off target
	Rank     int     `json:"rank" bson:"rank"`     // assigned once everyone stopped
}

// StopwatchState: every member tries to stop a running clock exactly at
// TargetTime. The clock is hidden after BlindAfter seconds.
type StopwatchState struct {
	TargetTime float64           `json:"targetTime" bson:"targetTime"` // seconds
	StartedAt  time.Time         `json:"startedAt" bson:"startedAt"`
	BlindAfter float64           `json:"blindAfter" bson:"blindAfter"` // seconds
	Results    []StopwatchResult `json:"results" bson:"results"`
}

const (
	RoleLiar    = "liar"
	RoleCitizen = "citizen"
)

// LiarState: all citizens know the secret word, the liar does not. After a
// round of explanations everyone votes on who the liar is.
type LiarState struct {
	Topic        string            `json:"topic" bson:"topic"`
	Word         string            `json:"word" bson:"word"`
	Roles        map[string]string `json:"roles" bson:"roles"`
	Explanations map[string]string `json:"explanations" bson:"explanations"`
	Votes        map[string]string `json:"votes" bson:"votes"` // voter -> suspect
	Round        int               `json:"round" bson:"round"`
}

// TelepathyState: everyone picks one of two options blind; the room wins if
// the picks are unanimous.
type TelepathyState struct {
	Question  string            `json:"question" bson:"question"`
	OptionA   string            `json:"optionA" bson:"optionA"`
	OptionB   string            `json:"optionB" bson:"optionB"`
	Choices   map[string]string `json:"choices" bson:"choices"`
	TimeLimit float64           `json:"timeLimit" bson:"timeLimit"` // seconds
	StartedAt time.Time         `json:"startedAt" bson:"startedAt"`
}

// SketchState: the drawer sketches a secret word, everyone else guesses.
// The drawer pointer rotates through the membership list in join order.
type SketchState struct {
	Word        string         `json:"word" bson:"word"`
	DrawerID    string         `json:"drawerId" bson:"drawerId"`
	DrawerIndex int            `json:"drawerIndex" bson:"drawerIndex"`
	Round       int            `json:"round" bson:"round"`
	MaxRounds   int            `json:"maxRounds" bson:"maxRounds"`
	TimeLimit   float64        `json:"timeLimit" bson:"timeLimit"` // seconds per turn
	StartedAt   time.Time      `json:"startedAt" bson:"startedAt"` // turn start
	Scores      map[string]int `json:"scores" bson:"scores"`
	Correct     []string       `json:"correct" bson:"correct"` // guessed this turn, in order
}

// StartedAt returns the active variant's start timestamp, zero for games
// that do not track one.
func (g *GameState) StartedAt() time.Time {
	switch {
	case g.Stopwatch != nil:
		return g.Stopwatch.StartedAt
	case g.Telepathy != nil:
		return g.Telepathy.StartedAt
	case g.Sketch != nil:
		return g.Sketch.StartedAt
	default:
		return time.Time{}
	}
}

// GameStateRecord is the durable shape of an active game.
type GameStateRecord struct {
	RoomCode  string    `json:"roomCode" bson:"_id"`
	Type      GameType  `json:"type" bson:"type"`
	State     GameState `json:"state" bson:"state"`
	StartedAt time.Time `json:"startedAt" bson:"startedAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}
