package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"partyroom/internal/model"
)

type RoomRepo interface {
	Create(ctx context.Context, room *model.RoomRecord) error
	GetByCode(ctx context.Context, code string) (*model.RoomRecord, error)
	UpdatePhase(ctx context.Context, code string, phase model.RoomPhase) error
	UpdateHost(ctx context.Context, code string, hostID string) error
	UpdateSelection(ctx context.Context, code string, gameType model.GameType, settings model.GameSettings) error
	Delete(ctx context.Context, code string) error
	List(ctx context.Context) ([]*model.RoomRecord, error)
}

type roomRepo struct {
	collection *mongo.Collection
}

func NewRoomRepo(db *mongo.Database) RoomRepo {
	return &roomRepo{collection: db.Collection("rooms")}
}

func (r *roomRepo) Create(ctx context.Context, room *model.RoomRecord) error {
	now := time.Now()
	room.CreatedAt = now
	room.UpdatedAt = now
	_, err := r.collection.InsertOne(ctx, room)
	return err
}

func (r *roomRepo) GetByCode(ctx context.Context, code string) (*model.RoomRecord, error) {
	var room model.RoomRecord
	err := r.collection.FindOne(ctx, map[string]interface{}{"_id": code}).Decode(&room)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil // room not found
		}
		return nil, err
	}
	return &room, nil
}

func (r *roomRepo) UpdatePhase(ctx context.Context, code string, phase model.RoomPhase) error {
	_, err := r.collection.UpdateOne(ctx,
		map[string]interface{}{"_id": code},
		map[string]interface{}{"$set": map[string]interface{}{
			"phase":     phase,
			"updatedAt": time.Now(),
		}})
	return err
}

func (r *roomRepo) UpdateHost(ctx context.Context, code string, hostID string) error {
	_, err := r.collection.UpdateOne(ctx,
		map[string]interface{}{"_id": code},
		map[string]interface{}{"$set": map[string]interface{}{
			"hostId":    hostID,
			"updatedAt": time.Now(),
		}})
	return err
}

func (r *roomRepo) UpdateSelection(ctx context.Context, code string, gameType model.GameType, settings model.GameSettings) error {
	_, err := r.collection.UpdateOne(ctx,
		map[string]interface{}{"_id": code},
		map[string]interface{}{"$set": map[string]interface{}{
			"selectedGame": gameType,
			"settings":     settings,
			"updatedAt":    time.Now(),
		}})
	return err
}

func (r *roomRepo) Delete(ctx context.Context, code string) error {
	_, err := r.collection.DeleteOne(ctx, map[string]interface{}{"_id": code})
	return err
}

func (r *roomRepo) List(ctx context.Context) ([]*model.RoomRecord, error) {
	cursor, err := r.collection.Find(ctx, map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rooms []*model.RoomRecord
	if err := cursor.All(ctx, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}
