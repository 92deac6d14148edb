package repository

import (
	"context"
	"time"

	"chem-admin/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Notification, error)
	// FindForViewer returns every notification addressed to the viewer,
	// regardless of read state or expiry; the service layer applies those.
	FindForViewer(ctx context.Context, viewer models.Viewer) ([]models.Notification, error)
	// MarkRead flips unread notifications among ids, restricted to those
	// addressed to the viewer. Out-of-scope ids are silently skipped.
	MarkRead(ctx context.Context, ids []primitive.ObjectID, viewer models.Viewer) ([]primitive.ObjectID, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteExpired(ctx context.Context, cutoff time.Time) ([]primitive.ObjectID, error)
}

type notificationRepository struct {
	col *mongo.Collection
}

func NewNotificationRepository(db *mongo.Database) NotificationRepository {
	return &notificationRepository{col: db.Collection("notifications")}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	n.ID = primitive.NewObjectID()
	n.IsRead = false
	n.CreatedAt = time.Now()
	n.UpdatedAt = n.CreatedAt
	_, err := r.col.InsertOne(ctx, n)
	return err
}

func (r *notificationRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Notification, error) {
	var n models.Notification
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&n)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// viewerScope builds the recipient-matching filter. Role-level recipient
// types are broadcast to every viewer of that role; specific_user matches
// only the stored recipient id.
func viewerScope(viewer models.Viewer) bson.M {
	roleTypes := []models.RecipientType{models.RecipientUser}
	if viewer.Role == models.RoleAdmin {
		roleTypes = []models.RecipientType{models.RecipientAdmin, models.RecipientAllAdmins}
	}
	return bson.M{"$or": bson.A{
		bson.M{"recipient_type": bson.M{"$in": roleTypes}},
		bson.M{"recipient_type": models.RecipientSpecificUser, "recipient_id": viewer.UserID},
	}}
}

func (r *notificationRepository) FindForViewer(ctx context.Context, viewer models.Viewer) ([]models.Notification, error) {
	cursor, err := r.col.Find(ctx, viewerScope(viewer))
	if err != nil {
		return nil, err
	}
	var result []models.Notification
	err = cursor.All(ctx, &result)
	return result, err
}

func (r *notificationRepository) MarkRead(ctx context.Context, ids []primitive.ObjectID, viewer models.Viewer) ([]primitive.ObjectID, error) {
	if len(ids) == 0 {
		return []primitive.ObjectID{}, nil
	}
	filter := viewerScope(viewer)
	filter["_id"] = bson.M{"$in": ids}
	filter["is_read"] = false
	cursor, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var matched []models.Notification
	if err := cursor.All(ctx, &matched); err != nil {
		return nil, err
	}
	updated := make([]primitive.ObjectID, 0, len(matched))
	for _, n := range matched {
		updated = append(updated, n.ID)
	}
	if len(updated) == 0 {
		return updated, nil
	}
	now := time.Now()
	_, err = r.col.UpdateMany(ctx, bson.M{"_id": bson.M{"$in": updated}}, bson.M{
		"$set": bson.M{
			"is_read":    true,
			"read_at":    now,
			"read_by":    viewer.UserID,
			"updated_at": now,
		},
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *notificationRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *notificationRepository) DeleteExpired(ctx context.Context, cutoff time.Time) ([]primitive.ObjectID, error) {
	filter := bson.M{"expires_at": bson.M{"$lt": cutoff}}
	cursor, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var expired []models.Notification
	if err := cursor.All(ctx, &expired); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(expired))
	for _, n := range expired {
		ids = append(ids, n.ID)
	}
	if len(ids) == 0 {
		return ids, nil
	}
	_, err = r.col.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
