package game

import (
	"encoding/json"
	"math/rand"
	"time"

	"partyroom/internal/model"
)

const (
	ActionLiarExplain = "liar:explain"
	ActionLiarVote    = "liar:vote"

	EventLiarExplained = "liar:explained"
	EventLiarVoted     = "liar:voted"
	EventLiarResults   = "liar:results"
)

// Liar: one member is secretly the liar and does not know the word everyone
// else got. Members explain the word in turn, then vote on who the liar is.
type Liar struct {
	rng *rand.Rand
}

func NewLiar(rng *rand.Rand) *Liar {
	return &Liar{rng: rng}
}

func (e *Liar) Type() model.GameType { return model.GameLiar }

// liarRoleCard is the per-member game:started payload. The roles map never
// goes on the wire: MyRole and MyWord are all a client learns, and the liar's
// MyWord is empty.
type liarRoleCard struct {
	Topic  string `json:"topic"`
	Round  int    `json:"round"`
	MyRole string `json:"myRole"`
	MyWord string `json:"myWord,omitempty"`
}

type liarExplainedPayload struct {
	UserID      string `json:"userId"`
	Explanation string `json:"explanation"`
}

type liarVotedPayload struct {
	UserID       string `json:"userId"`
	TargetUserID string `json:"targetUserId"`
}

type liarResultsPayload struct {
	Votes   map[string]string `json:"votes"`
	LiarID  string            `json:"liar"`
	Suspect string            `json:"suspect"`
}

func (e *Liar) Init(members []model.Member, settings model.GameSettings, now time.Time) (*model.GameState, []Event) {
	st := &model.LiarState{
		Topic:        settingString(settings, "topic", "food"),
		Word:         settingString(settings, "word", "pizza"),
		Roles:        map[string]string{},
		Explanations: map[string]string{},
		Votes:        map[string]string{},
		Round:        1,
	}
	liarIdx := e.rng.Intn(len(members))
	for i, m := range members {
		if i == liarIdx {
			st.Roles[m.UserID] = model.RoleLiar
		} else {
			st.Roles[m.UserID] = model.RoleCitizen
		}
	}

	state := &model.GameState{Type: model.GameLiar, Liar: st}
	events := make([]Event, 0, len(members))
	for _, m := range members {
		events = append(events, to(m.UserID, EventGameStarted, model.GameStartedPayload{
			GameType: model.GameLiar,
			GameData: e.roleCard(st, m.UserID),
		}))
	}
	return state, events
}

func (e *Liar) roleCard(st *model.LiarState, userID string) liarRoleCard {
	card := liarRoleCard{
		Topic:  st.Topic,
		Round:  st.Round,
		MyRole: st.Roles[userID],
	}
	if card.MyRole == model.RoleCitizen {
		card.MyWord = st.Word
	}
	return card
}

type liarExplainAction struct {
	Explanation string `json:"explanation"`
}

type liarVoteAction struct {
	TargetUserID string `json:"targetUserId"`
}

func (e *Liar) HandleAction(state *model.GameState, members []model.Member, actorID, action string, payload json.RawMessage, now time.Time) Result {
	st := state.Liar
	if st == nil || memberIndex(members, actorID) < 0 {
		return Result{}
	}

	switch action {
	case ActionLiarExplain:
		var req liarExplainAction
		if err := json.Unmarshal(payload, &req); err != nil {
			return Result{}
		}
		st.Explanations[actorID] = req.Explanation
		return Result{
			Changed: true,
			Events: []Event{broadcast(EventLiarExplained, liarExplainedPayload{
				UserID:      actorID,
				Explanation: req.Explanation,
			})},
		}

	case ActionLiarVote:
		var req liarVoteAction
		if err := json.Unmarshal(payload, &req); err != nil {
			return Result{}
		}
		if memberIndex(members, req.TargetUserID) < 0 {
			return Result{}
		}
		st.Votes[actorID] = req.TargetUserID
		res := Result{
			Changed: true,
			Events: []Event{broadcast(EventLiarVoted, liarVotedPayload{
				UserID:       actorID,
				TargetUserID: req.TargetUserID,
			})},
		}
		if len(st.Votes) == len(members) {
			res.Terminal = true
			res.Events = append(res.Events, broadcast(EventLiarResults, liarResultsPayload{
				Votes:   st.Votes,
				LiarID:  liarOf(st),
				Suspect: topSuspect(st.Votes, members),
			}))
		}
		return res
	}
	return Result{}
}

func (e *Liar) Resync(state *model.GameState, members []model.Member, userID string, now time.Time) []Event {
	st := state.Liar
	if st == nil || st.Roles[userID] == "" {
		return nil
	}
	return []Event{to(userID, EventGameStarted, model.GameStartedPayload{
		GameType: model.GameLiar,
		GameData: e.roleCard(st, userID),
	})}
}

func liarOf(st *model.LiarState) string {
	for userID, role := range st.Roles {
		if role == model.RoleLiar {
			return userID
		}
	}
	return ""
}

// topSuspect is the most-voted member; on a tie the tied member earliest in
// join order wins, so the outcome never depends on map iteration.
func topSuspect(votes map[string]string, members []model.Member) string {
	counts := map[string]int{}
	for _, target := range votes {
		counts[target]++
	}
	suspect, best := "", 0
	for _, m := range members {
		if counts[m.UserID] > best {
			suspect, best = m.UserID, counts[m.UserID]
		}
	}
	return suspect
}
