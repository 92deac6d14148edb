package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"chem-admin/internal/models"
	"chem-admin/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrQuotationNotFound   = errors.New("quotation not found")
	ErrThreadClosed        = errors.New("cannot send message to closed thread")
	ErrThreadAlreadyClosed = errors.New("thread is already closed")
	ErrClosureNotRequested = errors.New("thread closure permission not requested")
	ErrPermissionRequired  = errors.New("user permission required to close thread")
	ErrEmptyMessage        = errors.New("message content is required")
)

// Notifier is the dispatcher the thread machine hands notification requests
// to. Satisfied by NotificationService.
type Notifier interface {
	CreateNotification(ctx context.Context, in models.CreateNotificationInput) (primitive.ObjectID, error)
}

type ThreadService interface {
	CreateQuotation(ctx context.Context, q *models.Quotation) error
	GetQuotation(ctx context.Context, id primitive.ObjectID) (*models.Quotation, error)
	GetQuotations(ctx context.Context) ([]models.Quotation, error)
	CreateMessage(ctx context.Context, quotationID primitive.ObjectID, authorID, authorName string, role models.AuthorRole, content string, msgType models.MessageType) (primitive.ObjectID, error)
	GetMessages(ctx context.Context, quotationID primitive.ObjectID) ([]models.QuotationMessage, error)
	MarkMessagesAsRead(ctx context.Context, quotationID primitive.ObjectID, reader models.AuthorRole, ids []primitive.ObjectID) (int64, error)
	GetUnreadMessageCount(ctx context.Context, quotationID primitive.ObjectID, reader models.AuthorRole) (int64, error)
	RequestClosure(ctx context.Context, quotationID primitive.ObjectID, adminID, adminName, reason string) error
	GrantClosurePermission(ctx context.Context, quotationID primitive.ObjectID, userID, userName string) error
	RejectClosureRequest(ctx context.Context, quotationID primitive.ObjectID, userID, userName, reason string) error
	CloseThread(ctx context.Context, quotationID primitive.ObjectID, adminID, adminName string) error
}

type threadService struct {
	repo     repository.QuotationRepository
	notifier Notifier
}

func NewThreadService(repo repository.QuotationRepository, notifier Notifier) ThreadService {
	return &threadService{repo: repo, notifier: notifier}
}

func (s *threadService) CreateQuotation(ctx context.Context, q *models.Quotation) error {
	if err := q.Validate(); err != nil {
		return err
	}
	return s.repo.Create(ctx, q)
}

func (s *threadService) GetQuotation(ctx context.Context, id primitive.ObjectID) (*models.Quotation, error) {
	return s.getQuotation(ctx, id)
}

func (s *threadService) GetQuotations(ctx context.Context) ([]models.Quotation, error) {
	return s.repo.GetAll(ctx)
}

func (s *threadService) getQuotation(ctx context.Context, id primitive.ObjectID) (*models.Quotation, error) {
	q, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrQuotationNotFound
		}
		return nil, fmt.Errorf("failed to load quotation: %w", err)
	}
	return q, nil
}

// newMessage stamps read flags from authorship: the author has implicitly
// read their own message, the opposite flag starts false.
func newMessage(quotationID primitive.ObjectID, authorID, authorName string, role models.AuthorRole, content string, msgType models.MessageType) *models.QuotationMessage {
	return &models.QuotationMessage{
		QuotationID:   quotationID,
		AuthorID:      authorID,
		AuthorName:    authorName,
		AuthorRole:    role,
		Content:       content,
		Type:          msgType,
		IsReadByUser:  role == models.RoleUser,
		IsReadByAdmin: role == models.RoleAdmin,
	}
}

func (s *threadService) CreateMessage(ctx context.Context, quotationID primitive.ObjectID, authorID, authorName string, role models.AuthorRole, content string, msgType models.MessageType) (primitive.ObjectID, error) {
	if content == "" {
		return primitive.NilObjectID, ErrEmptyMessage
	}
	if msgType == "" {
		msgType = models.MsgMessage
	}
	q, err := s.getQuotation(ctx, quotationID)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if q.Thread.Status == models.ThreadClosed {
		return primitive.NilObjectID, ErrThreadClosed
	}

	// The closed check above only shapes the error; the guard inside the
	// write is what actually keeps messages out of a concurrently closed
	// thread.
	msg := newMessage(quotationID, authorID, authorName, role, content, msgType)
	ok, err := s.repo.TransitionThread(ctx, quotationID,
		bson.M{"thread.status": bson.M{"$ne": models.ThreadClosed}},
		nil, nil, msg)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("failed to append message: %w", err)
	}
	if !ok {
		return primitive.NilObjectID, ErrThreadClosed
	}

	if msgType == models.MsgMessage {
		s.notifyCounterpart(ctx, q, msg)
	}
	return msg.ID, nil
}

// notifyCounterpart enqueues a notification to the party opposite the
// author. Best-effort: a dispatcher failure never fails the message.
func (s *threadService) notifyCounterpart(ctx context.Context, q *models.Quotation, msg *models.QuotationMessage) {
	if s.notifier == nil {
		return
	}
	in := models.CreateNotificationInput{
		Type:              models.TypeQuotationMessage,
		Title:             fmt.Sprintf("New message on quotation for %s", q.ProductName),
		Message:           msg.Content,
		Priority:          models.PriorityMedium,
		RelatedEntityType: "quotation",
		RelatedEntityID:   q.ID.Hex(),
		CreatedBy:         msg.AuthorID,
		CreatedByType:     msg.AuthorRole,
	}
	switch msg.AuthorRole {
	case models.RoleAdmin:
		in.RecipientType = models.RecipientSpecificUser
		in.RecipientID = q.UserID
	case models.RoleUser:
		in.RecipientType = models.RecipientAllAdmins
	}
	if _, err := s.notifier.CreateNotification(ctx, in); err != nil {
		log.Printf("Failed to notify counterpart for quotation %s: %v", q.ID.Hex(), err)
	}
}

func (s *threadService) GetMessages(ctx context.Context, quotationID primitive.ObjectID) ([]models.QuotationMessage, error) {
	if _, err := s.getQuotation(ctx, quotationID); err != nil {
		return nil, err
	}
	return s.repo.GetMessages(ctx, quotationID)
}

func (s *threadService) MarkMessagesAsRead(ctx context.Context, quotationID primitive.ObjectID, reader models.AuthorRole, ids []primitive.ObjectID) (int64, error) {
	if _, err := s.getQuotation(ctx, quotationID); err != nil {
		return 0, err
	}
	return s.repo.MarkMessagesRead(ctx, quotationID, reader, ids)
}

func (s *threadService) GetUnreadMessageCount(ctx context.Context, quotationID primitive.ObjectID, reader models.AuthorRole) (int64, error) {
	if _, err := s.getQuotation(ctx, quotationID); err != nil {
		return 0, err
	}
	return s.repo.CountUnread(ctx, quotationID, reader)
}

// RequestClosure moves active (or re-requested) threads to
// awaiting_user_permission. The guard is enforced inside the update filter
// so a concurrent close cannot slip between check and write, and the system
// message lands in the same transaction as the status change. Leftovers of
// an earlier rejected request are cleared so the record describes only the
// new request.
func (s *threadService) RequestClosure(ctx context.Context, quotationID primitive.ObjectID, adminID, adminName, reason string) error {
	q, err := s.getQuotation(ctx, quotationID)
	if err != nil {
		return err
	}
	if q.Thread.Status == models.ThreadClosed {
		return ErrThreadAlreadyClosed
	}

	content := "Admin requested to close this conversation."
	if reason != "" {
		content = fmt.Sprintf("Admin requested to close this conversation. Reason: %s", reason)
	}
	ok, err := s.repo.TransitionThread(ctx, quotationID,
		bson.M{"thread.status": bson.M{"$ne": models.ThreadClosed}},
		bson.M{
			"thread.status":                   models.ThreadAwaitingUserClose,
			"thread.closure_requested_by":     adminID,
			"thread.closure_requested_at":     time.Now(),
			"thread.closure_reason":           reason,
			"thread.user_permission_to_close": false,
		},
		bson.M{
			"thread.closure_rejected_at":      "",
			"thread.closure_rejection_reason": "",
		},
		newMessage(quotationID, adminID, adminName, models.RoleAdmin, content, models.MsgClosureRequest),
	)
	if err != nil {
		return fmt.Errorf("failed to request closure: %w", err)
	}
	if !ok {
		return ErrThreadAlreadyClosed
	}
	return nil
}

func (s *threadService) GrantClosurePermission(ctx context.Context, quotationID primitive.ObjectID, userID, userName string) error {
	if _, err := s.getQuotation(ctx, quotationID); err != nil {
		return err
	}

	ok, err := s.repo.TransitionThread(ctx, quotationID,
		bson.M{"thread.status": models.ThreadAwaitingUserClose},
		bson.M{
			"thread.status":                   models.ThreadUserApprovedClose,
			"thread.user_permission_to_close": true,
		},
		nil,
		newMessage(quotationID, userID, userName, models.RoleUser,
			"User granted permission to close this conversation.", models.MsgClosureGranted),
	)
	if err != nil {
		return fmt.Errorf("failed to grant closure permission: %w", err)
	}
	if !ok {
		return ErrClosureNotRequested
	}
	return nil
}

// RejectClosureRequest returns the thread fully to active; the discarded
// request survives only in the message log.
func (s *threadService) RejectClosureRequest(ctx context.Context, quotationID primitive.ObjectID, userID, userName, reason string) error {
	if _, err := s.getQuotation(ctx, quotationID); err != nil {
		return err
	}

	content := "User declined to close this conversation."
	if reason != "" {
		content = fmt.Sprintf("User declined to close this conversation. Reason: %s", reason)
	}
	ok, err := s.repo.TransitionThread(ctx, quotationID,
		bson.M{"thread.status": models.ThreadAwaitingUserClose},
		bson.M{
			"thread.status":                   models.ThreadActive,
			"thread.user_permission_to_close": false,
			"thread.closure_rejected_at":      time.Now(),
			"thread.closure_rejection_reason": reason,
		},
		bson.M{
			"thread.closure_requested_by": "",
			"thread.closure_requested_at": "",
			"thread.closure_reason":       "",
		},
		newMessage(quotationID, userID, userName, models.RoleUser, content, models.MsgClosureRejected),
	)
	if err != nil {
		return fmt.Errorf("failed to reject closure request: %w", err)
	}
	if !ok {
		return ErrClosureNotRequested
	}
	return nil
}

func (s *threadService) CloseThread(ctx context.Context, quotationID primitive.ObjectID, adminID, adminName string) error {
	if _, err := s.getQuotation(ctx, quotationID); err != nil {
		return err
	}

	ok, err := s.repo.TransitionThread(ctx, quotationID,
		bson.M{"thread.status": models.ThreadUserApprovedClose},
		bson.M{
			"thread.status":    models.ThreadClosed,
			"thread.closed_by": adminID,
			"thread.closed_at": time.Now(),
		},
		nil,
		newMessage(quotationID, adminID, adminName, models.RoleAdmin,
			"This conversation has been closed.", models.MsgThreadClosed),
	)
	if err != nil {
		return fmt.Errorf("failed to close thread: %w", err)
	}
	if !ok {
		return ErrPermissionRequired
	}
	return nil
}
