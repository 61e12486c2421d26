package game

import (
	"encoding/json"
	"math"
	"math/rand"
	"sort"
	"time"

	"partyroom/internal/model"
)

const (
	ActionStopwatchStop = "stopwatch:stop"

	EventStopwatchStarted = "stopwatch:started"
	EventStopwatchStopped = "stopwatch:stopped"
	EventStopwatchResults = "stopwatch:results"
)

// Stopwatch: every member tries to stop a shared clock exactly at the target
// time. The clock face is hidden after a random blind window so the last
// stretch is played by feel.
type Stopwatch struct {
	rng *rand.Rand
}

func NewStopwatch(rng *rand.Rand) *Stopwatch {
	return &Stopwatch{rng: rng}
}

func (e *Stopwatch) Type() model.GameType { return model.GameStopwatch }

type stopwatchStartedPayload struct {
	StartedAt  int64   `json:"startTime"` // unix ms
	TargetTime float64 `json:"targetTime"`
	BlindAfter float64 `json:"blindTime"`
}

type stopwatchStoppedPayload struct {
	UserID string `json:"userId"`
	StopAt int64  `json:"stopTime"`
}

type stopwatchResultsPayload struct {
	Results []model.StopwatchResult `json:"results"`
}

func (e *Stopwatch) Init(members []model.Member, settings model.GameSettings, now time.Time) (*model.GameState, []Event) {
	st := &model.StopwatchState{
		TargetTime: settingFloat(settings, "targetTime", 5.0),
		StartedAt:  now,
		BlindAfter: 2.0 + e.rng.Float64(), // clock hides 2-3s in
		Results:    []model.StopwatchResult{},
	}
	state := &model.GameState{Type: model.GameStopwatch, Stopwatch: st}
	started := stopwatchStartedPayload{
		StartedAt:  st.StartedAt.UnixMilli(),
		TargetTime: st.TargetTime,
		BlindAfter: st.BlindAfter,
	}
	events := []Event{
		broadcast(EventStopwatchStarted, started),
		broadcast(EventGameStarted, model.GameStartedPayload{GameType: model.GameStopwatch, GameData: started}),
	}
	return state, events
}

type stopwatchStopAction struct {
	Timestamp int64 `json:"timestamp"` // client clock, unix ms
}

func (e *Stopwatch) HandleAction(state *model.GameState, members []model.Member, actorID, action string, payload json.RawMessage, now time.Time) Result {
	st := state.Stopwatch
	if st == nil || action != ActionStopwatchStop {
		return Result{}
	}
	for _, r := range st.Results {
		if r.UserID == actorID {
			return Result{} // already stopped this round
		}
	}
	idx := memberIndex(members, actorID)
	if idx < 0 {
		return Result{}
	}
	var req stopwatchStopAction
	if err := json.Unmarshal(payload, &req); err != nil {
		return Result{}
	}

	stopSeconds := float64(req.Timestamp-st.StartedAt.UnixMilli()) / 1000
	st.Results = append(st.Results, model.StopwatchResult{
		UserID:   actorID,
		Nickname: members[idx].Nickname,
		StopAt:   req.Timestamp,
		Error:    math.Abs(stopSeconds - st.TargetTime),
	})

	res := Result{
		Changed: true,
		Events: []Event{broadcast(EventStopwatchStopped, stopwatchStoppedPayload{
			UserID: actorID,
			StopAt: req.Timestamp,
		})},
	}

	if len(st.Results) == len(members) {
		// Stable sort: equal errors rank by submission order.
		sort.SliceStable(st.Results, func(i, j int) bool {
			return st.Results[i].Error < st.Results[j].Error
		})
		for i := range st.Results {
			st.Results[i].Rank = i + 1
		}
		res.Terminal = true
		res.Events = append(res.Events, broadcast(EventStopwatchResults, stopwatchResultsPayload{Results: st.Results}))
	}
	return res
}

func (e *Stopwatch) Resync(state *model.GameState, members []model.Member, userID string, now time.Time) []Event {
	st := state.Stopwatch
	if st == nil {
		return nil
	}
	started := stopwatchStartedPayload{
		StartedAt:  st.StartedAt.UnixMilli(),
		TargetTime: st.TargetTime,
		BlindAfter: st.BlindAfter,
	}
	return []Event{
		to(userID, EventGameStarted, model.GameStartedPayload{GameType: model.GameStopwatch, GameData: started}),
		to(userID, EventStopwatchStarted, started),
	}
}

func memberIndex(members []model.Member, userID string) int {
	for i, m := range members {
		if m.UserID == userID {
			return i
		}
	}
	return -1
}
