package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"partyroom/internal/service"
)

type roomLookupResponse struct {
	RoomCode string `json:"roomId"`
	Phase    string `json:"currentState"`
	Members  int    `json:"memberCount"`
}

// GetRoom serves the pre-join probe: clients check a code before opening the
// socket so a typo fails fast with a 404 instead of a socket round trip.
func GetRoom(coordinator *service.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := mux.Vars(r)["code"]

		snap, ok := coordinator.Lookup(code)
		if !ok {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(roomLookupResponse{
			RoomCode: code,
			Phase:    string(snap.Phase),
			Members:  len(snap.Users),
		})
	}
}
