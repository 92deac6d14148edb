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

type ReviewRepository interface {
	Create(ctx context.Context, review *models.Review) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Review, error)
	ExistsForProductAndUser(ctx context.Context, productID, userID string) (bool, error)
	ListByStatus(ctx context.Context, status models.ReviewStatus) ([]models.Review, error)
	SetStatus(ctx context.Context, id primitive.ObjectID, status models.ReviewStatus, moderatorID, note string) error
	AddReport(ctx context.Context, report *models.ReviewReport) error
	HasReport(ctx context.Context, reviewID primitive.ObjectID, reporterID string) (bool, error)
}

type reviewRepository struct {
	reviewsCol *mongo.Collection
	reportsCol *mongo.Collection
}

func NewReviewRepository(db *mongo.Database) ReviewRepository {
	return &reviewRepository{
		reviewsCol: db.Collection("reviews"),
		reportsCol: db.Collection("review_reports"),
	}
}

func (r *reviewRepository) Create(ctx context.Context, review *models.Review) error {
	review.ID = primitive.NewObjectID()
	review.Status = models.ReviewPending
	review.CreatedAt = time.Now()
	review.UpdatedAt = review.CreatedAt
	_, err := r.reviewsCol.InsertOne(ctx, review)
	return err
}

func (r *reviewRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Review, error) {
	var review models.Review
	err := r.reviewsCol.FindOne(ctx, bson.M{"_id": id}).Decode(&review)
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *reviewRepository) ExistsForProductAndUser(ctx context.Context, productID, userID string) (bool, error) {
	count, err := r.reviewsCol.CountDocuments(ctx, bson.M{"product_id": productID, "user_id": userID})
	return count > 0, err
}

func (r *reviewRepository) ListByStatus(ctx context.Context, status models.ReviewStatus) ([]models.Review, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.reviewsCol.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var result []models.Review
	err = cursor.All(ctx, &result)
	return result, err
}

func (r *reviewRepository) SetStatus(ctx context.Context, id primitive.ObjectID, status models.ReviewStatus, moderatorID, note string) error {
	now := time.Now()
	_, err := r.reviewsCol.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{
			"status":          status,
			"moderated_by":    moderatorID,
			"moderated_at":    now,
			"moderation_note": note,
			"updated_at":      now,
		},
	})
	return err
}

func (r *reviewRepository) AddReport(ctx context.Context, report *models.ReviewReport) error {
	report.ID = primitive.NewObjectID()
	report.CreatedAt = time.Now()
	_, err := r.reportsCol.InsertOne(ctx, report)
	return err
}

func (r *reviewRepository) HasReport(ctx context.Context, reviewID primitive.ObjectID, reporterID string) (bool, error) {
	count, err := r.reportsCol.CountDocuments(ctx, bson.M{"review_id": reviewID, "reporter_id": reporterID})
	return count > 0, err
}
