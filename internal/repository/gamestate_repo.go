package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"partyroom/internal/model"
)

type GameStateRepo interface {
	Upsert(ctx context.Context, record *model.GameStateRecord) error
	Get(ctx context.Context, roomCode string) (*model.GameStateRecord, error)
	Delete(ctx context.Context, roomCode string) error
}

type gameStateRepo struct {
	collection *mongo.Collection
}

func NewGameStateRepo(db *mongo.Database) GameStateRepo {
	return &gameStateRepo{collection: db.Collection("game_states")}
}

func (r *gameStateRepo) Upsert(ctx context.Context, record *model.GameStateRecord) error {
	now := time.Now()
	if record.StartedAt.IsZero() {
		record.StartedAt = now
	}
	record.UpdatedAt = now
	_, err := r.collection.ReplaceOne(ctx,
		map[string]interface{}{"_id": record.RoomCode},
		record,
		options.Replace().SetUpsert(true))
	return err
}

func (r *gameStateRepo) Get(ctx context.Context, roomCode string) (*model.GameStateRecord, error) {
	var record model.GameStateRecord
	err := r.collection.FindOne(ctx, map[string]interface{}{"_id": roomCode}).Decode(&record)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *gameStateRepo) Delete(ctx context.Context, roomCode string) error {
	_, err := r.collection.DeleteOne(ctx, map[string]interface{}{"_id": roomCode})
	return err
}
