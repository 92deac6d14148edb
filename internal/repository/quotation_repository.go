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

type QuotationRepository interface {
	Create(ctx context.Context, q *models.Quotation) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Quotation, error)
	GetAll(ctx context.Context) ([]models.Quotation, error)
	// TransitionThread applies set/unset to the embedded thread only when the
	// guard filter still matches, and appends msg to the message log in the
	// same transaction. Either both writes land or neither does. It reports
	// whether the guarded write actually happened.
	TransitionThread(ctx context.Context, id primitive.ObjectID, guard bson.M, set bson.M, unset bson.M, msg *models.QuotationMessage) (bool, error)
	GetMessages(ctx context.Context, quotationID primitive.ObjectID) ([]models.QuotationMessage, error)
	MarkMessagesRead(ctx context.Context, quotationID primitive.ObjectID, reader models.AuthorRole, ids []primitive.ObjectID) (int64, error)
	CountUnread(ctx context.Context, quotationID primitive.ObjectID, reader models.AuthorRole) (int64, error)
}

type quotationRepository struct {
	quotationsCol *mongo.Collection
	messagesCol   *mongo.Collection
}

func NewQuotationRepository(db *mongo.Database) QuotationRepository {
	return &quotationRepository{
		quotationsCol: db.Collection("quotations"),
		messagesCol:   db.Collection("quotation_messages"),
	}
}

func (r *quotationRepository) Create(ctx context.Context, q *models.Quotation) error {
	q.ID = primitive.NewObjectID()
	q.Thread.Status = models.ThreadActive
	q.CreatedAt = time.Now()
	q.UpdatedAt = time.Now()
	_, err := r.quotationsCol.InsertOne(ctx, q)
	return err
}

func (r *quotationRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Quotation, error) {
	var q models.Quotation
	err := r.quotationsCol.FindOne(ctx, bson.M{"_id": id}).Decode(&q)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *quotationRepository) GetAll(ctx context.Context) ([]models.Quotation, error) {
	cursor, err := r.quotationsCol.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	var result []models.Quotation
	err = cursor.All(ctx, &result)
	return result, err
}

func (r *quotationRepository) TransitionThread(ctx context.Context, id primitive.ObjectID, guard bson.M, set bson.M, unset bson.M, msg *models.QuotationMessage) (bool, error) {
	filter := bson.M{"_id": id}
	for k, v := range guard {
		filter[k] = v
	}
	now := time.Now()
	setDoc := bson.M{"updated_at": now}
	for k, v := range set {
		setDoc[k] = v
	}
	update := bson.M{"$set": setDoc}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	session, err := r.quotationsCol.Database().Client().StartSession()
	if err != nil {
		return false, err
	}
	defer session.EndSession(ctx)

	applied, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		res, err := r.quotationsCol.UpdateOne(sc, filter, update)
		if err != nil {
			return false, err
		}
		if res.MatchedCount != 1 {
			return false, nil
		}
		if msg != nil {
			msg.ID = primitive.NewObjectID()
			msg.CreatedAt = now
			msg.UpdatedAt = now
			if _, err := r.messagesCol.InsertOne(sc, msg); err != nil {
				return false, err
			}
		}
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return applied.(bool), nil
}

func (r *quotationRepository) GetMessages(ctx context.Context, quotationID primitive.ObjectID) ([]models.QuotationMessage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.messagesCol.Find(ctx, bson.M{"quotation_id": quotationID}, opts)
	if err != nil {
		return nil, err
	}
	var result []models.QuotationMessage
	err = cursor.All(ctx, &result)
	return result, err
}

// readFlagFor maps a reader role to the flag it owns on a message.
func readFlagFor(reader models.AuthorRole) string {
	if reader == models.RoleAdmin {
		return "is_read_by_admin"
	}
	return "is_read_by_user"
}

// opposite returns the other party's role.
func opposite(role models.AuthorRole) models.AuthorRole {
	if role == models.RoleAdmin {
		return models.RoleUser
	}
	return models.RoleAdmin
}

func (r *quotationRepository) MarkMessagesRead(ctx context.Context, quotationID primitive.ObjectID, reader models.AuthorRole, ids []primitive.ObjectID) (int64, error) {
	flag := readFlagFor(reader)
	filter := bson.M{
		"quotation_id": quotationID,
		"author_role":  opposite(reader),
		flag:           false,
	}
	if len(ids) > 0 {
		filter["_id"] = bson.M{"$in": ids}
	}
	res, err := r.messagesCol.UpdateMany(ctx, filter, bson.M{
		"$set": bson.M{flag: true, "updated_at": time.Now()},
	})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *quotationRepository) CountUnread(ctx context.Context, quotationID primitive.ObjectID, reader models.AuthorRole) (int64, error) {
	return r.messagesCol.CountDocuments(ctx, bson.M{
		"quotation_id":      quotationID,
		"author_role":       opposite(reader),
		readFlagFor(reader): false,
	})
}
