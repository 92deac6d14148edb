package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationType string

const (
	TypeUserRegistration  NotificationType = "user_registration"
	TypeUserApproval      NotificationType = "user_approval"
	TypeUserRejection     NotificationType = "user_rejection"
	TypeProductUpdate     NotificationType = "product_update"
	TypeSystemAlert       NotificationType = "system_alert"
	TypeGSTVerification   NotificationType = "gst_verification"
	TypeOrderNotification NotificationType = "order_notification"
	TypeQuotationMessage  NotificationType = "quotation_message"
	TypeReviewSubmitted   NotificationType = "review_submitted"
)

// RecipientType decides which viewers a notification is shown to.
// "admin" and "user" are role-level broadcast: every viewer with that role
// sees the notification. "specific_user" is the only per-identity addressing
// and requires RecipientID to be set to the resolved user record id.
type RecipientType string

const (
	RecipientAdmin        RecipientType = "admin"
	RecipientUser         RecipientType = "user"
	RecipientAllAdmins    RecipientType = "all_admins"
	RecipientSpecificUser RecipientType = "specific_user"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type Notification struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Type              NotificationType   `bson:"type" json:"type"`
	Title             string             `bson:"title" json:"title"`
	Message           string             `bson:"message" json:"message"`
	RecipientType     RecipientType      `bson:"recipient_type" json:"recipient_type"`
	RecipientID       string             `bson:"recipient_id,omitempty" json:"recipient_id,omitempty"`
	IsRead            bool               `bson:"is_read" json:"is_read"`
	ReadAt            *time.Time         `bson:"read_at,omitempty" json:"read_at,omitempty"`
	ReadBy            string             `bson:"read_by,omitempty" json:"read_by,omitempty"`
	Priority          Priority           `bson:"priority" json:"priority"`
	RelatedEntityType string             `bson:"related_entity_type,omitempty" json:"related_entity_type,omitempty"`
	RelatedEntityID   string             `bson:"related_entity_id,omitempty" json:"related_entity_id,omitempty"`
	ExpiresAt         *time.Time         `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
	CreatedBy         string             `bson:"created_by,omitempty" json:"created_by,omitempty"`
	CreatedByType     AuthorRole         `bson:"created_by_type,omitempty" json:"created_by_type,omitempty"`
	CreatedAt         time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `bson:"updated_at" json:"updated_at"`
}

// Expired reports whether the notification is past its soft expiry at the
// given instant. Notifications without ExpiresAt never expire.
func (n *Notification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && n.ExpiresAt.Before(now)
}

// AddressedTo reports whether the notification is addressed to the viewer.
// Role-level recipient types broadcast to every viewer of that role;
// specific_user matches only the stored recipient id.
func (n *Notification) AddressedTo(v Viewer) bool {
	switch n.RecipientType {
	case RecipientAdmin, RecipientAllAdmins:
		return v.Role == RoleAdmin
	case RecipientUser:
		return v.Role == RoleUser
	case RecipientSpecificUser:
		return n.RecipientID == v.UserID
	}
	return false
}

// DeviceToken is an FCM registration keyed by the token string itself.
// Tokens with an empty UserID belong to admin dashboard devices.
type DeviceToken struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Token      string             `bson:"token" json:"token"`
	Platform   string             `bson:"platform" json:"platform"`
	DeviceInfo string             `bson:"device_info,omitempty" json:"device_info,omitempty"`
	UserID     string             `bson:"user_id,omitempty" json:"user_id,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updated_at"`
}

// PushResult is an immutable log entry for one push handoff.
type PushResult struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	NotificationID primitive.ObjectID `bson:"notification_id" json:"notification_id"`
	Success        bool               `bson:"success" json:"success"`
	Message        string             `bson:"message,omitempty" json:"message,omitempty"`
	SuccessCount   int                `bson:"success_count" json:"success_count"`
	FailureCount   int                `bson:"failure_count" json:"failure_count"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}

type EmailLog struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	To        string             `bson:"to" json:"to"`
	Subject   string             `bson:"subject" json:"subject"`
	Kind      string             `bson:"kind" json:"kind"`
	Success   bool               `bson:"success" json:"success"`
	Error     string             `bson:"error,omitempty" json:"error,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// CreateNotificationInput is the dispatch request accepted by the
// notification service.
type CreateNotificationInput struct {
	Type              NotificationType `json:"type" validate:"required"`
	Title             string           `json:"title" validate:"required"`
	Message           string           `json:"message" validate:"required"`
	RecipientType     RecipientType    `json:"recipient_type" validate:"required,oneof=admin user all_admins specific_user"`
	RecipientID       string           `json:"recipient_id,omitempty"`
	Priority          Priority         `json:"priority,omitempty"`
	RelatedEntityType string           `json:"related_entity_type,omitempty"`
	RelatedEntityID   string           `json:"related_entity_id,omitempty"`
	ExpiresAt         *time.Time       `json:"expires_at,omitempty"`
	CreatedBy         string           `json:"created_by,omitempty"`
	CreatedByType     AuthorRole       `json:"created_by_type,omitempty"`
}

// NotificationFilter is the explicit filter specification for listing.
// Limit distinguishes unset (nil, default 50) from an explicit 0, which
// returns an empty page.
type NotificationFilter struct {
	Search            string           `json:"search,omitempty"`
	Type              NotificationType `json:"type,omitempty"`
	RelatedEntityType string           `json:"related_entity_type,omitempty"`
	Priority          Priority         `json:"priority,omitempty"`
	PerformedByType   AuthorRole       `json:"performed_by_type,omitempty"`
	IsRead            *bool            `json:"is_read,omitempty"`
	Limit             *int             `json:"limit,omitempty"`
	Offset            int              `json:"offset,omitempty"`
}

// Viewer identifies who is asking for notifications.
type Viewer struct {
	Role   AuthorRole
	UserID string
}
