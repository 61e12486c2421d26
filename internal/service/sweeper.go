package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"partyroom/internal/cache"
	"partyroom/internal/repository"
)

// Sweeper is the storage hygiene job: rooms whose last store write is older
// than the retention window are deleted together with their user rows, game
// state and cache entry. Live rooms are written on every operation, so
// anything this stale is an orphan left by a crash or an abandoned lobby.
type Sweeper struct {
	roomRepo  repository.RoomRepo
	userRepo  repository.UserRepo
	stateRepo repository.GameStateRepo
	roomCache cache.RoomCache
	retention time.Duration
	cron      *cron.Cron
}

func NewSweeper(
	roomRepo repository.RoomRepo,
	userRepo repository.UserRepo,
	stateRepo repository.GameStateRepo,
	roomCache cache.RoomCache,
	retention time.Duration,
) *Sweeper {
	return &Sweeper{
		roomRepo:  roomRepo,
		userRepo:  userRepo,
		stateRepo: stateRepo,
		roomCache: roomCache,
		retention: retention,
		cron:      cron.New(),
	}
}

// Start registers the hourly sweep and launches the scheduler.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc("@hourly", s.Sweep); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep runs one retention pass. Exported so tests and operators can trigger
// it outside the schedule.
func (s *Sweeper) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-s.retention)

	rooms, err := s.roomRepo.List(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("retention sweep: room list failed")
		return
	}
	stale := 0
	for _, room := range rooms {
		if !room.UpdatedAt.Before(cutoff) {
			continue
		}
		if s.recentlySeen(ctx, room.Code, cutoff) {
			continue // idle lobby, but someone is still connected
		}
		stale++
		if err := s.userRepo.DeleteByRoom(ctx, room.Code); err != nil {
			log.Warn().Err(err).Str("room", room.Code).Msg("retention sweep: user cleanup failed")
		}
		if err := s.stateRepo.Delete(ctx, room.Code); err != nil {
			log.Warn().Err(err).Str("room", room.Code).Msg("retention sweep: game state cleanup failed")
		}
		if err := s.roomCache.Delete(ctx, room.Code); err != nil {
			log.Warn().Err(err).Str("room", room.Code).Msg("retention sweep: cache cleanup failed")
		}
		if err := s.roomRepo.Delete(ctx, room.Code); err != nil {
			log.Warn().Err(err).Str("room", room.Code).Msg("retention sweep: room cleanup failed")
		}
	}
	if stale > 0 {
		log.Info().Int("rooms", stale).Msg("retention sweep completed")
	}
}

// recentlySeen reports whether any member row in the room was touched after
// the cutoff. Heartbeats keep these fresh for connected sockets even when the
// room itself sees no writes.
func (s *Sweeper) recentlySeen(ctx context.Context, code string, cutoff time.Time) bool {
	users, err := s.userRepo.ListByRoom(ctx, code)
	if err != nil {
		return true // cannot prove the room is dead, keep it
	}
	for _, u := range users {
		if u.LastSeenAt.After(cutoff) {
			return true
		}
	}
	return false
}
