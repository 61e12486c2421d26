package game

import (
	"encoding/json"
	"math/rand"
	"time"

	"partyroom/internal/model"
)

// Event is one outgoing message produced by an engine. ToUserID == "" means
// broadcast to the whole room; ExcludeUserID drops one recipient from a
// broadcast (e.g. the drawer does not receive its own strokes back).
type Event struct {
	ToUserID      string
	ExcludeUserID string
	Name          string
	Payload       interface{}
}

// EventGameStarted flips every client to its game screen. Engines emit it
// themselves (broadcast or per member) so concealed fields stay per-recipient.
const EventGameStarted = "game:started"

func broadcast(name string, payload interface{}) Event {
	return Event{Name: name, Payload: payload}
}

func to(userID, name string, payload interface{}) Event {
	return Event{ToUserID: userID, Name: name, Payload: payload}
}

// Result of applying one action to a game state.
type Result struct {
	Events   []Event
	Terminal bool // the game produced its results event
	Changed  bool // state mutated, worth writing through
}

// Engine is one mini-game's turn logic. All game data lives in the
// model.GameState handed in; engines keep no state of their own between
// calls and never touch the room aggregate. The members slice is a
// read-only, join-ordered view used for completion detection and rotation.
type Engine interface {
	Type() model.GameType

	// Init computes the initial game state and the start events. Events may
	// be addressed per member where concealment requires it.
	Init(members []model.Member, settings model.GameSettings, now time.Time) (*model.GameState, []Event)

	// HandleAction applies one member action. Illegal actors and repeated
	// per-round actions are dropped silently: the result is empty, there is
	// no error to report.
	HandleAction(st *model.GameState, members []model.Member, actorID, action string, payload json.RawMessage, now time.Time) Result

	// Resync produces the events replayed to a single reconnecting member:
	// elapsed-time fields recomputed from the stored start timestamp,
	// secrets redacted unless userID is the privileged actor.
	Resync(st *model.GameState, members []model.Member, userID string, now time.Time) []Event
}

// Registry maps game types to their engines.
type Registry map[model.GameType]Engine

// NewRegistry builds all engines sharing one randomness source. Tests seed
// their own source for deterministic roles and words.
func NewRegistry(rng *rand.Rand) Registry {
	engines := []Engine{
		NewStopwatch(rng),
		NewLiar(rng),
		NewTelepathy(),
		NewSketch(rng),
	}
	reg := make(Registry, len(engines))
	for _, e := range engines {
		reg[e.Type()] = e
	}
	return reg
}

func settingString(settings model.GameSettings, key, defaultVal string) string {
	if settings != nil {
		if v, ok := settings[key].(string); ok && v != "" {
			return v
		}
	}
	return defaultVal
}

func settingFloat(settings model.GameSettings, key string, defaultVal float64) float64 {
	if settings != nil {
		switch v := settings[key].(type) {
		case float64:
			if v > 0 {
				return v
			}
		case int:
			if v > 0 {
				return float64(v)
			}
		}
	}
	return defaultVal
}

func settingInt(settings model.GameSettings, key string, defaultVal int) int {
	return int(settingFloat(settings, key, float64(defaultVal)))
}

func remainingSeconds(startedAt time.Time, limit float64, now time.Time) int {
	elapsed := now.Sub(startedAt).Seconds()
	left := limit - elapsed
	if left < 0 {
		return 0
	}
	return int(left + 0.999) // ceil, matches the countdown the clients show
}
