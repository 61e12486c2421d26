package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type purgeRecorder struct {
	mu    sync.Mutex
	fired []string
}

func (r *purgeRecorder) fire(userID, roomCode string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, userID)
}

func (r *purgeRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.fired...)
}

func TestPurgeQueueFires(t *testing.T) {
	rec := &purgeRecorder{}
	q := NewPurgeQueue(rec.fire)
	defer q.Stop()

	q.Schedule("u1", "1234", 20*time.Millisecond)

	assert.Eventually(t, func() bool {
		return len(rec.all()) == 1 && rec.all()[0] == "u1"
	}, time.Second, 5*time.Millisecond)
}

func TestPurgeQueueCancel(t *testing.T) {
	rec := &purgeRecorder{}
	q := NewPurgeQueue(rec.fire)
	defer q.Stop()

	q.Schedule("u1", "1234", 20*time.Millisecond)
	q.Cancel("u1")

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, rec.all())
}

func TestPurgeQueueReschedule(t *testing.T) {
	rec := &purgeRecorder{}
	q := NewPurgeQueue(rec.fire)
	defer q.Stop()

	// Second schedule replaces the first deadline rather than doubling up.
	q.Schedule("u1", "1234", 10*time.Millisecond)
	q.Schedule("u1", "1234", 50*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, rec.all(), "replaced deadline must not fire early")

	assert.Eventually(t, func() bool {
		return len(rec.all()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestPurgeQueueOrdering(t *testing.T) {
	rec := &purgeRecorder{}
	q := NewPurgeQueue(rec.fire)
	defer q.Stop()

	q.Schedule("late", "1234", 60*time.Millisecond)
	q.Schedule("early", "1234", 15*time.Millisecond)

	assert.Eventually(t, func() bool {
		return len(rec.all()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"early", "late"}, rec.all())
}

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)

	token, err := svc.IssueResumeToken("1234", "user_abc")
	assert.NoError(t, err)

	claims, err := svc.ValidateResumeToken(token)
	assert.NoError(t, err)
	assert.Equal(t, "1234", claims.RoomCode)
	assert.Equal(t, "user_abc", claims.UserID)
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenService("secret-a", time.Hour).IssueResumeToken("1234", "user_abc")
	assert.NoError(t, err)

	_, err = NewTokenService("secret-b", time.Hour).ValidateResumeToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenRejectsExpired(t *testing.T) {
	token, err := NewTokenService("secret", -time.Minute).IssueResumeToken("1234", "user_abc")
	assert.NoError(t, err)

	_, err = NewTokenService("secret", time.Hour).ValidateResumeToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
