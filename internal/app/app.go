package app

import (
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"partyroom/config"
	"partyroom/internal/cache"
	"partyroom/internal/game"
	"partyroom/internal/repository"
	"partyroom/internal/service"
	"partyroom/internal/transport/ws"
)

// App wires the full dependency graph. Everything the process owns hangs off
// this container; main builds one and tears it down on shutdown.
type App struct {
	RoomRepo      repository.RoomRepo
	UserRepo      repository.UserRepo
	GameStateRepo repository.GameStateRepo
	RoomCache     cache.RoomCache
	Coordinator   *service.Coordinator
	Sweeper       *service.Sweeper
	Hub           *ws.Hub
}

func New(cfg *config.Config, db *mongo.Database, rdb *redis.Client) *App {
	roomRepo := repository.NewRoomRepo(db)
	userRepo := repository.NewUserRepo(db)
	stateRepo := repository.NewGameStateRepo(db)
	roomCache := cache.NewRoomCache(rdb, cfg.RoomRetention)

	tokens := service.NewTokenService(cfg.JWTSecret, cfg.RoomRetention)
	engines := game.NewRegistry(rand.New(rand.NewSource(time.Now().UnixNano())))

	coordinator := service.NewCoordinator(
		service.NewRegistry(),
		service.NewRoomTable(),
		roomRepo,
		userRepo,
		stateRepo,
		roomCache,
		tokens,
		engines,
		cfg.MaxRoomSize,
		cfg.ReconnectGrace,
	)

	hub := ws.NewHub()
	coordinator.SetBroadcaster(hub)

	sweeper := service.NewSweeper(roomRepo, userRepo, stateRepo, roomCache, cfg.RoomRetention)

	return &App{
		RoomRepo:      roomRepo,
		UserRepo:      userRepo,
		GameStateRepo: stateRepo,
		RoomCache:     roomCache,
		Coordinator:   coordinator,
		Sweeper:       sweeper,
		Hub:           hub,
	}
}

func (a *App) Close() {
	a.Sweeper.Stop()
	a.Coordinator.Stop()
	a.Hub.Close()
}
