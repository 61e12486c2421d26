package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"partyroom/internal/model"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// TokenService issues and validates room-scoped resume tokens. Users are
// ephemeral, so this is not account auth: the token only proves a client
// held a given logical user id in a given room.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

// IssueResumeToken creates a token the client presents on reconnect.
func (s *TokenService) IssueResumeToken(roomCode, userID string) (string, error) {
	claims := &model.ResumeClaims{
		RoomCode: roomCode,
		UserID:   userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateResumeToken parses a resume token and returns its claims.
func (s *TokenService) ValidateResumeToken(tokenString string) (*model.ResumeClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &model.ResumeClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*model.ResumeClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
