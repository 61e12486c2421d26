package game

import (
	"encoding/json"
	"time"

	"partyroom/internal/model"
)

const (
	ActionTelepathyChoose = "telepathy:choose"

	EventTelepathyStarted = "telepathy:started"
	EventTelepathyChosen  = "telepathy:chosen"
	EventTelepathyResults = "telepathy:results"
)

// Telepathy: everyone picks one of two options blind. The room wins if the
// picks are unanimous; otherwise the odd one out is called the traitor.
type Telepathy struct{}

func NewTelepathy() *Telepathy { return &Telepathy{} }

func (e *Telepathy) Type() model.GameType { return model.GameTelepathy }

type telepathyStartedPayload struct {
	Question  string  `json:"question"`
	OptionA   string  `json:"optionA"`
	OptionB   string  `json:"optionB"`
	TimeLimit float64 `json:"timeLimit"`
	TimeLeft  int     `json:"timeLeft"`
}

type telepathyChosenPayload struct {
	UserID string `json:"userId"`
	Choice string `json:"choice"`
}

type telepathyResultsPayload struct {
	Success bool              `json:"success"`
	Choices map[string]string `json:"choices"`
	Traitor string            `json:"traitor,omitempty"`
}

func (e *Telepathy) Init(members []model.Member, settings model.GameSettings, now time.Time) (*model.GameState, []Event) {
	st := &model.TelepathyState{
		Question:  settingString(settings, "question", "Your pick?"),
		OptionA:   settingString(settings, "optionA", "A"),
		OptionB:   settingString(settings, "optionB", "B"),
		Choices:   map[string]string{},
		TimeLimit: settingFloat(settings, "timeLimit", 5),
		StartedAt: now,
	}
	state := &model.GameState{Type: model.GameTelepathy, Telepathy: st}
	started := e.startedPayload(st, now)
	events := []Event{
		broadcast(EventTelepathyStarted, started),
		broadcast(EventGameStarted, model.GameStartedPayload{GameType: model.GameTelepathy, GameData: started}),
	}
	return state, events
}

func (e *Telepathy) startedPayload(st *model.TelepathyState, now time.Time) telepathyStartedPayload {
	return telepathyStartedPayload{
		Question:  st.Question,
		OptionA:   st.OptionA,
		OptionB:   st.OptionB,
		TimeLimit: st.TimeLimit,
		TimeLeft:  remainingSeconds(st.StartedAt, st.TimeLimit, now),
	}
}

type telepathyChooseAction struct {
	Choice string `json:"choice"`
}

func (e *Telepathy) HandleAction(state *model.GameState, members []model.Member, actorID, action string, payload json.RawMessage, now time.Time) Result {
	st := state.Telepathy
	if st == nil || action != ActionTelepathyChoose || memberIndex(members, actorID) < 0 {
		return Result{}
	}
	if _, done := st.Choices[actorID]; done {
		return Result{} // first choice sticks
	}
	var req telepathyChooseAction
	if err := json.Unmarshal(payload, &req); err != nil {
		return Result{}
	}
	if req.Choice != st.OptionA && req.Choice != st.OptionB {
		return Result{}
	}
	st.Choices[actorID] = req.Choice

	res := Result{
		Changed: true,
		Events:  []Event{broadcast(EventTelepathyChosen, telepathyChosenPayload{UserID: actorID, Choice: req.Choice})},
	}
	if len(st.Choices) == len(members) {
		results := telepathyResultsPayload{Success: true, Choices: st.Choices}
		first := st.Choices[members[0].UserID]
		for _, m := range members[1:] {
			if st.Choices[m.UserID] != first {
				// First divergent member in join order is the traitor.
				results.Success = false
				results.Traitor = m.UserID
				break
			}
		}
		res.Terminal = true
		res.Events = append(res.Events, broadcast(EventTelepathyResults, results))
	}
	return res
}

func (e *Telepathy) Resync(state *model.GameState, members []model.Member, userID string, now time.Time) []Event {
	st := state.Telepathy
	if st == nil {
		return nil
	}
	started := e.startedPayload(st, now)
	return []Event{
		to(userID, EventGameStarted, model.GameStartedPayload{GameType: model.GameTelepathy, GameData: started}),
		to(userID, EventTelepathyStarted, started),
	}
}
