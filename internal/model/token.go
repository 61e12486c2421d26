package model

import "github.com/golang-jwt/jwt/v5"

// ResumeClaims are JWT claims for room-scoped resume tokens. A client holding
// one can reclaim its logical user after a reconnect without trusting a raw
// userId from the wire.
type ResumeClaims struct {
	RoomCode string `json:"roomCode"`
	UserID   string `json:"userId"`
	jwt.RegisteredClaims
}
