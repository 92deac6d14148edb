package repository

import (
	"context"
	"time"

	"chem-admin/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TokenRepository interface {
	// Upsert is keyed by the token string: re-registering an existing token
	// updates its metadata in place.
	Upsert(ctx context.Context, token *models.DeviceToken) (primitive.ObjectID, error)
	Delete(ctx context.Context, token string) error
	GetByUserID(ctx context.Context, userID string) ([]models.DeviceToken, error)
	GetAdminTokens(ctx context.Context) ([]models.DeviceToken, error)
}

type tokenRepository struct {
	col *mongo.Collection
}

func NewTokenRepository(db *mongo.Database) TokenRepository {
	return &tokenRepository{col: db.Collection("device_tokens")}
}

func (r *tokenRepository) Upsert(ctx context.Context, token *models.DeviceToken) (primitive.ObjectID, error) {
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"platform":    token.Platform,
			"device_info": token.DeviceInfo,
			"user_id":     token.UserID,
			"updated_at":  now,
		},
		"$setOnInsert": bson.M{
			"token":      token.Token,
			"created_at": now,
		},
	}
	opts := options.Update().SetUpsert(true)
	res, err := r.col.UpdateOne(ctx, bson.M{"token": token.Token}, update, opts)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if res.UpsertedID != nil {
		return res.UpsertedID.(primitive.ObjectID), nil
	}
	var existing models.DeviceToken
	if err := r.col.FindOne(ctx, bson.M{"token": token.Token}).Decode(&existing); err != nil {
		return primitive.NilObjectID, err
	}
	return existing.ID, nil
}

func (r *tokenRepository) Delete(ctx context.Context, token string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"token": token})
	return err
}

func (r *tokenRepository) GetByUserID(ctx context.Context, userID string) ([]models.DeviceToken, error) {
	cursor, err := r.col.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	var result []models.DeviceToken
	err = cursor.All(ctx, &result)
	return result, err
}

func (r *tokenRepository) GetAdminTokens(ctx context.Context) ([]models.DeviceToken, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"user_id": ""},
		bson.M{"user_id": bson.M{"$exists": false}},
	}}
	cursor, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var result []models.DeviceToken
	err = cursor.All(ctx, &result)
	return result, err
}
