package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"chem-admin/internal/models"
	"chem-admin/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrRecipientNotFound    = errors.New("recipient user not found")
	ErrRecipientRequired    = errors.New("recipient_id is required for specific_user notifications")
	ErrInvalidNotification  = errors.New("missing required notification fields")
	ErrTokenRequired        = errors.New("device token is required")
)

const defaultPageLimit = 50

// PushSender hands a payload to the push gateway. The dispatcher never talks
// to FCM directly; it persists whatever the sender reports.
type PushSender interface {
	Send(ctx context.Context, tokens []string, title, body string, data map[string]string) (successCount, failureCount int, err error)
}

type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}

// Broadcaster publishes a created notification to the platform event bus.
type Broadcaster interface {
	PublishNotification(ctx context.Context, n *models.Notification) error
}

type NotificationService struct {
	repo   repository.NotificationRepository
	tokens repository.TokenRepository
	logs   repository.DeliveryLogRepository
	users  repository.UserRepository
	push   PushSender
	sms    SMSSender
	bus    Broadcaster
}

func NewNotificationService(
	repo repository.NotificationRepository,
	tokens repository.TokenRepository,
	logs repository.DeliveryLogRepository,
	users repository.UserRepository,
	push PushSender,
	sms SMSSender,
	bus Broadcaster,
) *NotificationService {
	return &NotificationService{
		repo:   repo,
		tokens: tokens,
		logs:   logs,
		users:  users,
		push:   push,
		sms:    sms,
		bus:    bus,
	}
}

// CreateNotification persists one notification record and fans it out.
// Persistence is the critical step; push, SMS and event-bus delivery are
// best-effort and never fail the call.
func (s *NotificationService) CreateNotification(ctx context.Context, in models.CreateNotificationInput) (primitive.ObjectID, error) {
	if in.Type == "" || in.Title == "" || in.Message == "" {
		return primitive.NilObjectID, ErrInvalidNotification
	}
	switch in.RecipientType {
	case models.RecipientAdmin, models.RecipientUser, models.RecipientAllAdmins, models.RecipientSpecificUser:
	default:
		return primitive.NilObjectID, ErrInvalidNotification
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}

	var target *models.User
	if in.RecipientType == models.RecipientSpecificUser {
		if in.RecipientID == "" {
			return primitive.NilObjectID, ErrRecipientRequired
		}
		user, err := s.users.GetByUserID(ctx, in.RecipientID)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return primitive.NilObjectID, ErrRecipientNotFound
			}
			return primitive.NilObjectID, fmt.Errorf("failed to resolve recipient: %w", err)
		}
		target = user
		in.RecipientID = user.ID.Hex()
	}

	notification := &models.Notification{
		Type:              in.Type,
		Title:             in.Title,
		Message:           in.Message,
		RecipientType:     in.RecipientType,
		RecipientID:       in.RecipientID,
		Priority:          in.Priority,
		RelatedEntityType: in.RelatedEntityType,
		RelatedEntityID:   in.RelatedEntityID,
		ExpiresAt:         in.ExpiresAt,
		CreatedBy:         in.CreatedBy,
		CreatedByType:     in.CreatedByType,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return primitive.NilObjectID, fmt.Errorf("failed to save notification: %w", err)
	}

	s.deliver(ctx, notification, target)

	return notification.ID, nil
}

// deliver runs all best-effort channels for a freshly created notification.
func (s *NotificationService) deliver(ctx context.Context, n *models.Notification, target *models.User) {
	if s.bus != nil {
		if err := s.bus.PublishNotification(ctx, n); err != nil {
			log.Printf("Failed to publish notification event: %v", err)
		}
	}

	if s.push != nil {
		tokens, err := s.pushTargets(ctx, n, target)
		if err != nil {
			log.Printf("Failed to resolve push targets: %v", err)
		} else if len(tokens) > 0 {
			s.sendPush(ctx, n, tokens)
		}
	}

	if s.sms != nil && n.Priority == models.PriorityUrgent && target != nil && target.Phone != "" {
		if err := s.sms.Send(ctx, target.Phone, fmt.Sprintf("%s: %s", n.Title, n.Message)); err != nil {
			log.Printf("Failed to send urgent SMS: %v", err)
		}
	}
}

func (s *NotificationService) pushTargets(ctx context.Context, n *models.Notification, target *models.User) ([]string, error) {
	var devices []models.DeviceToken
	var err error
	switch n.RecipientType {
	case models.RecipientAdmin, models.RecipientAllAdmins:
		devices, err = s.tokens.GetAdminTokens(ctx)
	case models.RecipientSpecificUser:
		if target == nil {
			return nil, nil
		}
		devices, err = s.tokens.GetByUserID(ctx, target.UserID)
	default:
		// Role-level user broadcast has no token registry scope; in-app only.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	tokens := make([]string, 0, len(devices))
	for _, d := range devices {
		tokens = append(tokens, d.Token)
	}
	return tokens, nil
}

func (s *NotificationService) sendPush(ctx context.Context, n *models.Notification, tokens []string) {
	data := map[string]string{
		"type":                string(n.Type),
		"related_entity_type": n.RelatedEntityType,
		"related_entity_id":   n.RelatedEntityID,
	}
	successCount, failureCount, err := s.push.Send(ctx, tokens, n.Title, n.Message, data)
	result := &models.PushResult{
		NotificationID: n.ID,
		Success:        err == nil && failureCount == 0,
		SuccessCount:   successCount,
		FailureCount:   failureCount,
	}
	if err != nil {
		result.Message = err.Error()
		log.Printf("Push delivery failed: %v", err)
	}
	if logErr := s.logs.SavePushResult(ctx, result); logErr != nil {
		log.Printf("Failed to save push result: %v", logErr)
	}
}

// GetNotifications lists notifications for the viewer. The full addressed
// set is collected first, then expired records and filter misses are
// dropped, then the remainder is sorted newest-first and sliced. Sorting a
// partial page would break pagination, so the order here matters.
func (s *NotificationService) GetNotifications(ctx context.Context, viewer models.Viewer, filter models.NotificationFilter) ([]models.Notification, error) {
	rows, err := s.repo.FindForViewer(ctx, viewer)
	if err != nil {
		return nil, fmt.Errorf("failed to load notifications: %w", err)
	}

	now := time.Now()
	matched := make([]models.Notification, 0, len(rows))
	for _, n := range rows {
		if n.Expired(now) {
			continue
		}
		if filter.Type != "" && n.Type != filter.Type {
			continue
		}
		if filter.RelatedEntityType != "" && n.RelatedEntityType != filter.RelatedEntityType {
			continue
		}
		if filter.Priority != "" && n.Priority != filter.Priority {
			continue
		}
		if filter.PerformedByType != "" && n.CreatedByType != filter.PerformedByType {
			continue
		}
		if filter.IsRead != nil && n.IsRead != *filter.IsRead {
			continue
		}
		if filter.Search != "" && !matchesSearch(&n, filter.Search) {
			continue
		}
		matched = append(matched, n)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	limit := defaultPageLimit
	if filter.Limit != nil {
		limit = *filter.Limit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || offset >= len(matched) {
		return []models.Notification{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func matchesSearch(n *models.Notification, search string) bool {
	needle := strings.ToLower(search)
	for _, field := range []string{n.Title, n.Message, string(n.Type), n.RelatedEntityType, n.RelatedEntityID, n.CreatedBy} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func (s *NotificationService) GetUnreadCount(ctx context.Context, viewer models.Viewer) (int64, error) {
	rows, err := s.repo.FindForViewer(ctx, viewer)
	if err != nil {
		return 0, fmt.Errorf("failed to load notifications: %w", err)
	}
	now := time.Now()
	var count int64
	for _, n := range rows {
		if !n.IsRead && !n.Expired(now) {
			count++
		}
	}
	return count, nil
}

// MarkAsRead flips one notification, but only when it is addressed to the
// viewer. Anything outside the viewer's scope reads as not found.
func (s *NotificationService) MarkAsRead(ctx context.Context, id primitive.ObjectID, viewer models.Viewer) error {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotificationNotFound
		}
		return err
	}
	if !n.AddressedTo(viewer) {
		return ErrNotificationNotFound
	}
	_, err = s.repo.MarkRead(ctx, []primitive.ObjectID{id}, viewer)
	return err
}

// MarkMultipleAsRead flips the given ids; ids addressed to someone else are
// dropped by the viewer scope inside the write, not errors.
func (s *NotificationService) MarkMultipleAsRead(ctx context.Context, ids []primitive.ObjectID, viewer models.Viewer) ([]primitive.ObjectID, error) {
	return s.repo.MarkRead(ctx, ids, viewer)
}

// MarkAllAsRead flips every unread, unexpired notification visible to the
// viewer. Calling it with nothing left to mark is a no-op returning an
// empty list.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, viewer models.Viewer) ([]primitive.ObjectID, error) {
	rows, err := s.repo.FindForViewer(ctx, viewer)
	if err != nil {
		return nil, fmt.Errorf("failed to load notifications: %w", err)
	}
	now := time.Now()
	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, n := range rows {
		if !n.IsRead && !n.Expired(now) {
			ids = append(ids, n.ID)
		}
	}
	return s.repo.MarkRead(ctx, ids, viewer)
}

func (s *NotificationService) DeleteNotification(ctx context.Context, id primitive.ObjectID) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotificationNotFound
	}
	return err
}

// DeleteExpiredNotifications removes every notification whose expiry is
// past the cutoff. A run with nothing to remove returns an empty list.
func (s *NotificationService) DeleteExpiredNotifications(ctx context.Context, cutoff time.Time) ([]primitive.ObjectID, error) {
	if cutoff.IsZero() {
		cutoff = time.Now()
	}
	return s.repo.DeleteExpired(ctx, cutoff)
}

func (s *NotificationService) RegisterDeviceToken(ctx context.Context, token models.DeviceToken) (primitive.ObjectID, error) {
	if token.Token == "" {
		return primitive.NilObjectID, ErrTokenRequired
	}
	return s.tokens.Upsert(ctx, &token)
}

func (s *NotificationService) UnregisterDeviceToken(ctx context.Context, token string) error {
	if token == "" {
		return ErrTokenRequired
	}
	return s.tokens.Delete(ctx, token)
}
