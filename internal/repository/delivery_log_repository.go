package repository

import (
	"context"
	"time"

	"chem-admin/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// DeliveryLogRepository stores immutable delivery outcome records. Entries
// are write-once; nothing in the module updates them after insert.
type DeliveryLogRepository interface {
	SavePushResult(ctx context.Context, result *models.PushResult) error
	SaveEmailLog(ctx context.Context, entry *models.EmailLog) error
}

type deliveryLogRepository struct {
	pushCol  *mongo.Collection
	emailCol *mongo.Collection
}

func NewDeliveryLogRepository(db *mongo.Database) DeliveryLogRepository {
	return &deliveryLogRepository{
		pushCol:  db.Collection("push_results"),
		emailCol: db.Collection("email_logs"),
	}
}

func (r *deliveryLogRepository) SavePushResult(ctx context.Context, result *models.PushResult) error {
	result.ID = primitive.NewObjectID()
	result.CreatedAt = time.Now()
	_, err := r.pushCol.InsertOne(ctx, result)
	return err
}

func (r *deliveryLogRepository) SaveEmailLog(ctx context.Context, entry *models.EmailLog) error {
	entry.ID = primitive.NewObjectID()
	entry.CreatedAt = time.Now()
	_, err := r.emailCol.InsertOne(ctx, entry)
	return err
}
