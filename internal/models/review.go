package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

type Review struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProductID       string             `bson:"product_id" json:"product_id" validate:"required"`
	UserID          string             `bson:"user_id" json:"user_id" validate:"required"`
	UserName        string             `bson:"user_name" json:"user_name"`
	UserEmail       string             `bson:"user_email,omitempty" json:"user_email,omitempty"`
	Rating          int                `bson:"rating" json:"rating" validate:"required,min=1,max=5"`
	Title           string             `bson:"title,omitempty" json:"title,omitempty"`
	Comment         string             `bson:"comment" json:"comment" validate:"required"`
	Status          ReviewStatus       `bson:"status" json:"status"`
	ModeratedBy     string             `bson:"moderated_by,omitempty" json:"moderated_by,omitempty"`
	ModeratedAt     *time.Time         `bson:"moderated_at,omitempty" json:"moderated_at,omitempty"`
	ModerationNote  string             `bson:"moderation_note,omitempty" json:"moderation_note,omitempty"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updated_at"`
}

type ReviewReport struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ReviewID   primitive.ObjectID `bson:"review_id" json:"review_id"`
	ReporterID string             `bson:"reporter_id" json:"reporter_id"`
	Reason     string             `bson:"reason,omitempty" json:"reason,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}
