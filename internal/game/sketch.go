package game

import (
	"encoding/json"
	"math/rand"
	"strings"
	"time"

	"partyroom/internal/model"
)

const (
	ActionSketchDraw  = "sketch:draw"
	ActionSketchClear = "sketch:clear"
	ActionSketchGuess = "sketch:guess"
	ActionSketchSkip  = "sketch:skip"

	EventSketchStarted  = "sketch:started"
	EventSketchDraw     = "sketch:draw"
	EventSketchClear    = "sketch:clear"
	EventSketchChat     = "sketch:chat"
	EventSketchCorrect  = "sketch:correct"
	EventSketchSkipped  = "sketch:skipped"
	EventSketchNextTurn = "sketch:next-turn"
	EventSketchResults  = "sketch:results"
)

const (
	sketchFastScore   = 100 // correct guess within the time limit
	sketchLateScore   = 70  // correct guess after the limit ran out
	sketchDrawerScore = 30  // drawer bonus per correct guesser
)

// Sketch: the drawer sketches a secret word and everyone else guesses it in
// chat. The drawer pointer rotates through the membership in join order; a
// full pass is one round.
type Sketch struct {
	rng *rand.Rand
}

func NewSketch(rng *rand.Rand) *Sketch {
	return &Sketch{rng: rng}
}

func (e *Sketch) Type() model.GameType { return model.GameSketch }

// sketchTurnPayload announces a turn. Word is only filled in for the drawer.
type sketchTurnPayload struct {
	DrawerID       string         `json:"drawerId"`
	DrawerNickname string         `json:"drawerNickname"`
	Word           string         `json:"word,omitempty"`
	Round          int            `json:"round"`
	MaxRounds      int            `json:"maxRounds"`
	TimeLimit      float64        `json:"timeLimit"`
	TimeLeft       int            `json:"timeLeft"`
	Scores         map[string]int `json:"scores"`
	Correct        []string       `json:"correctUsers"`
}

type sketchDrawPayload struct {
	DrawData json.RawMessage `json:"drawData"`
}

type sketchChatPayload struct {
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
	Message  string `json:"message"`
}

type sketchCorrectPayload struct {
	UserID      string         `json:"userId"`
	Nickname    string         `json:"nickname"`
	Answer      string         `json:"answer"`
	Scores      map[string]int `json:"scores"`
	ScoreGained int            `json:"scoreGained"`
}

type sketchSkippedPayload struct {
	Answer         string `json:"answer"`
	DrawerNickname string `json:"drawerNickname"`
}

type sketchResultsPayload struct {
	Scores map[string]int `json:"scores"`
	Winner string         `json:"winner"`
}

func (e *Sketch) Init(members []model.Member, settings model.GameSettings, now time.Time) (*model.GameState, []Event) {
	maxRounds := settingInt(settings, "rounds", 2)
	if maxRounds > len(members) {
		maxRounds = len(members)
	}
	scores := make(map[string]int, len(members))
	for _, m := range members {
		scores[m.UserID] = 0
	}
	st := &model.SketchState{
		Word:        e.pickWord(),
		DrawerID:    members[0].UserID,
		DrawerIndex: 0,
		Round:       1,
		MaxRounds:   maxRounds,
		TimeLimit:   settingFloat(settings, "timeLimit", 60),
		StartedAt:   now,
		Scores:      scores,
		Correct:     []string{},
	}
	state := &model.GameState{Type: model.GameSketch, Sketch: st}

	events := e.turnEvents(st, members, EventSketchStarted, now)
	events = append(events, broadcast(EventGameStarted, model.GameStartedPayload{
		GameType: model.GameSketch,
		GameData: e.turnPayload(st, members, "", now), // redacted: no word
	}))
	return state, events
}

// turnEvents emits one per-member turn announcement so only the drawer ever
// sees the word.
func (e *Sketch) turnEvents(st *model.SketchState, members []model.Member, name string, now time.Time) []Event {
	events := make([]Event, 0, len(members))
	for _, m := range members {
		events = append(events, to(m.UserID, name, e.turnPayload(st, members, m.UserID, now)))
	}
	return events
}

func (e *Sketch) turnPayload(st *model.SketchState, members []model.Member, userID string, now time.Time) sketchTurnPayload {
	p := sketchTurnPayload{
		DrawerID:  st.DrawerID,
		Round:     st.Round,
		MaxRounds: st.MaxRounds,
		TimeLimit: st.TimeLimit,
		TimeLeft:  remainingSeconds(st.StartedAt, st.TimeLimit, now),
		Scores:    st.Scores,
		Correct:   st.Correct,
	}
	if i := memberIndex(members, st.DrawerID); i >= 0 {
		p.DrawerNickname = members[i].Nickname
	}
	if userID == st.DrawerID {
		p.Word = st.Word
	}
	return p
}

type sketchGuessAction struct {
	Guess string `json:"guess"`
}

func (e *Sketch) HandleAction(state *model.GameState, members []model.Member, actorID, action string, payload json.RawMessage, now time.Time) Result {
	st := state.Sketch
	if st == nil {
		return Result{}
	}
	actorIdx := memberIndex(members, actorID)
	if actorIdx < 0 {
		return Result{}
	}

	switch action {
	case ActionSketchDraw:
		if actorID != st.DrawerID {
			return Result{} // only the drawer draws
		}
		var req sketchDrawPayload
		if err := json.Unmarshal(payload, &req); err != nil {
			return Result{}
		}
		return Result{Events: []Event{{
			ExcludeUserID: actorID,
			Name:          EventSketchDraw,
			Payload:       sketchDrawPayload{DrawData: req.DrawData},
		}}}

	case ActionSketchClear:
		if actorID != st.DrawerID {
			return Result{}
		}
		return Result{Events: []Event{{
			ExcludeUserID: actorID,
			Name:          EventSketchClear,
			Payload:       struct{}{},
		}}}

	case ActionSketchGuess:
		return e.handleGuess(st, members, actorID, actorIdx, payload, now)

	case ActionSketchSkip:
		if actorID != st.DrawerID {
			return Result{}
		}
		res := Result{
			Changed: true,
			Events: []Event{broadcast(EventSketchSkipped, sketchSkippedPayload{
				Answer:         st.Word,
				DrawerNickname: members[actorIdx].Nickname,
			})},
		}
		return e.advanceTurn(st, members, res, now)
	}
	return Result{}
}

func (e *Sketch) handleGuess(st *model.SketchState, members []model.Member, actorID string, actorIdx int, payload json.RawMessage, now time.Time) Result {
	if actorID == st.DrawerID {
		return Result{} // the drawer may not guess
	}
	for _, id := range st.Correct {
		if id == actorID {
			return Result{} // already solved this turn
		}
	}
	var req sketchGuessAction
	if err := json.Unmarshal(payload, &req); err != nil {
		return Result{}
	}
	guess := strings.TrimSpace(req.Guess)
	if guess == "" {
		return Result{}
	}

	nickname := members[actorIdx].Nickname
	res := Result{Events: []Event{broadcast(EventSketchChat, sketchChatPayload{
		UserID:   actorID,
		Nickname: nickname,
		Message:  guess,
	})}}

	if normalizeGuess(guess) != normalizeGuess(st.Word) {
		return res
	}

	st.Correct = append(st.Correct, actorID)
	gained := sketchLateScore
	if now.Sub(st.StartedAt).Seconds() <= st.TimeLimit {
		gained = sketchFastScore
	}
	st.Scores[actorID] += gained
	st.Scores[st.DrawerID] += sketchDrawerScore

	res.Changed = true
	res.Events = append(res.Events, broadcast(EventSketchCorrect, sketchCorrectPayload{
		UserID:      actorID,
		Nickname:    nickname,
		Answer:      st.Word,
		Scores:      st.Scores,
		ScoreGained: gained,
	}))

	// Turn is over once everyone except the drawer solved it.
	if len(st.Correct) >= len(members)-1 {
		return e.advanceTurn(st, members, res, now)
	}
	return res
}

// advanceTurn rotates the drawer pointer in join order. A full pass bumps the
// round counter; past MaxRounds the game ends with the highest score winning
// (ties go to the earliest-joined member).
func (e *Sketch) advanceTurn(st *model.SketchState, members []model.Member, res Result, now time.Time) Result {
	st.DrawerIndex++
	if st.DrawerIndex >= len(members) {
		st.DrawerIndex = 0
		st.Round++
		if st.Round > st.MaxRounds {
			winner, best := "", -1
			for _, m := range members {
				if st.Scores[m.UserID] > best {
					winner, best = m.UserID, st.Scores[m.UserID]
				}
			}
			res.Terminal = true
			res.Events = append(res.Events, broadcast(EventSketchResults, sketchResultsPayload{
				Scores: st.Scores,
				Winner: winner,
			}))
			return res
		}
	}

	st.Word = e.pickWord()
	st.DrawerID = members[st.DrawerIndex].UserID
	st.Correct = []string{}
	st.StartedAt = now

	res.Events = append(res.Events, e.turnEvents(st, members, EventSketchNextTurn, now)...)
	return res
}

func (e *Sketch) Resync(state *model.GameState, members []model.Member, userID string, now time.Time) []Event {
	st := state.Sketch
	if st == nil {
		return nil
	}
	// The word rides along only when the reconnecting member is the drawer.
	return []Event{
		to(userID, EventGameStarted, model.GameStartedPayload{
			GameType: model.GameSketch,
			GameData: e.turnPayload(st, members, userID, now),
		}),
		to(userID, EventSketchNextTurn, e.turnPayload(st, members, userID, now)),
	}
}

func (e *Sketch) pickWord() string {
	return sketchWords[e.rng.Intn(len(sketchWords))]
}

// normalizeGuess compares case- and whitespace-insensitively.
func normalizeGuess(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}
