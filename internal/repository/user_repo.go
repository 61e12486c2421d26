package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"partyroom/internal/model"
)

type UserRepo interface {
	Upsert(ctx context.Context, user *model.UserRecord) error
	GetByConn(ctx context.Context, connID string) (*model.UserRecord, error)
	GetByUserID(ctx context.Context, userID, roomCode string) (*model.UserRecord, error)
	ListByRoom(ctx context.Context, roomCode string) ([]*model.UserRecord, error)
	Delete(ctx context.Context, connID string) error
	DeleteByUser(ctx context.Context, roomCode, userID string) error
	DeleteByRoom(ctx context.Context, roomCode string) error
	SetReady(ctx context.Context, connID string, ready bool) error
	TouchLastSeen(ctx context.Context, connID string) error
}

type userRepo struct {
	collection *mongo.Collection
}

func NewUserRepo(db *mongo.Database) UserRepo {
	return &userRepo{collection: db.Collection("users")}
}

func (r *userRepo) Upsert(ctx context.Context, user *model.UserRecord) error {
	now := time.Now()
	if user.ConnectedAt.IsZero() {
		user.ConnectedAt = now
	}
	user.LastSeenAt = now
	_, err := r.collection.ReplaceOne(ctx,
		map[string]interface{}{"_id": user.ConnID},
		user,
		options.Replace().SetUpsert(true))
	return err
}

func (r *userRepo) GetByConn(ctx context.Context, connID string) (*model.UserRecord, error) {
	var user model.UserRecord
	err := r.collection.FindOne(ctx, map[string]interface{}{"_id": connID}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetByUserID resolves a logical user inside a room. If several connection
// rows claim the same logical user the most recently seen one wins.
func (r *userRepo) GetByUserID(ctx context.Context, userID, roomCode string) (*model.UserRecord, error) {
	var user model.UserRecord
	err := r.collection.FindOne(ctx,
		map[string]interface{}{"userId": userID, "roomCode": roomCode},
		options.FindOne().SetSort(map[string]interface{}{"lastSeenAt": -1})).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) ListByRoom(ctx context.Context, roomCode string) ([]*model.UserRecord, error) {
	cursor, err := r.collection.Find(ctx,
		map[string]interface{}{"roomCode": roomCode},
		options.Find().SetSort(map[string]interface{}{"connectedAt": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []*model.UserRecord
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepo) Delete(ctx context.Context, connID string) error {
	_, err := r.collection.DeleteOne(ctx, map[string]interface{}{"_id": connID})
	return err
}

// DeleteByUser removes every connection row a logical user left behind in a
// room, including stale ones from earlier reconnects.
func (r *userRepo) DeleteByUser(ctx context.Context, roomCode, userID string) error {
	_, err := r.collection.DeleteMany(ctx, map[string]interface{}{"roomCode": roomCode, "userId": userID})
	return err
}

func (r *userRepo) DeleteByRoom(ctx context.Context, roomCode string) error {
	_, err := r.collection.DeleteMany(ctx, map[string]interface{}{"roomCode": roomCode})
	return err
}

func (r *userRepo) SetReady(ctx context.Context, connID string, ready bool) error {
	_, err := r.collection.UpdateOne(ctx,
		map[string]interface{}{"_id": connID},
		map[string]interface{}{"$set": map[string]interface{}{
			"ready":      ready,
			"lastSeenAt": time.Now(),
		}})
	return err
}

func (r *userRepo) TouchLastSeen(ctx context.Context, connID string) error {
	_, err := r.collection.UpdateOne(ctx,
		map[string]interface{}{"_id": connID},
		map[string]interface{}{"$set": map[string]interface{}{"lastSeenAt": time.Now()}})
	return err
}
