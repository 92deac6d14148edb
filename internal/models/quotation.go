package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ThreadStatus string

const (
	ThreadActive            ThreadStatus = "active"
	ThreadAwaitingUserClose ThreadStatus = "awaiting_user_permission"
	ThreadUserApprovedClose ThreadStatus = "user_approved_closure"
	ThreadClosed            ThreadStatus = "closed"
)

type AuthorRole string

const (
	RoleUser  AuthorRole = "user"
	RoleAdmin AuthorRole = "admin"
)

type MessageType string

const (
	MsgMessage            MessageType = "message"
	MsgSystemNotification MessageType = "system_notification"
	MsgClosureRequest     MessageType = "closure_request"
	MsgClosureGranted     MessageType = "closure_permission_granted"
	MsgClosureRejected    MessageType = "closure_permission_rejected"
	MsgThreadClosed       MessageType = "thread_closed"
)

// QuotationThread is embedded in the quotation document; its status may only
// be changed through the thread service transitions.
type QuotationThread struct {
	Status                 ThreadStatus `bson:"status" json:"status"`
	ClosureRequestedBy     *string      `bson:"closure_requested_by,omitempty" json:"closure_requested_by,omitempty"`
	ClosureRequestedAt     *time.Time   `bson:"closure_requested_at,omitempty" json:"closure_requested_at,omitempty"`
	ClosureReason          string       `bson:"closure_reason,omitempty" json:"closure_reason,omitempty"`
	UserPermissionToClose  bool         `bson:"user_permission_to_close" json:"user_permission_to_close"`
	ClosureRejectedAt      *time.Time   `bson:"closure_rejected_at,omitempty" json:"closure_rejected_at,omitempty"`
	ClosureRejectionReason string       `bson:"closure_rejection_reason,omitempty" json:"closure_rejection_reason,omitempty"`
	ClosedBy               *string      `bson:"closed_by,omitempty" json:"closed_by,omitempty"`
	ClosedAt               *time.Time   `bson:"closed_at,omitempty" json:"closed_at,omitempty"`
}

type Quotation struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      string             `bson:"user_id" json:"user_id"`
	UserName    string             `bson:"user_name" json:"user_name"`
	UserEmail   string             `bson:"user_email,omitempty" json:"user_email,omitempty"`
	ProductName string             `bson:"product_name" json:"product_name"`
	Quantity    string             `bson:"quantity,omitempty" json:"quantity,omitempty"`
	Thread      QuotationThread    `bson:"thread" json:"thread"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

func (q *Quotation) Validate() error {
	if q.UserID == "" || q.UserName == "" || q.ProductName == "" {
		return errors.New("missing required quotation fields")
	}
	return nil
}

type QuotationMessage struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	QuotationID   primitive.ObjectID `bson:"quotation_id" json:"quotation_id"`
	AuthorID      string             `bson:"author_id" json:"author_id"`
	AuthorName    string             `bson:"author_name" json:"author_name"`
	AuthorRole    AuthorRole         `bson:"author_role" json:"author_role"`
	Content       string             `bson:"content" json:"content"`
	Type          MessageType        `bson:"type" json:"type"`
	IsReadByUser  bool               `bson:"is_read_by_user" json:"is_read_by_user"`
	IsReadByAdmin bool               `bson:"is_read_by_admin" json:"is_read_by_admin"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}
