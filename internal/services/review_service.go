package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"chem-admin/internal/models"
	"chem-admin/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrReviewNotFound       = errors.New("review not found")
	ErrInvalidRating        = errors.New("rating must be between 1 and 5")
	ErrDuplicateReview      = errors.New("user has already reviewed this product")
	ErrDuplicateReport      = errors.New("review already reported by this user")
	ErrReviewAlreadyHandled = errors.New("review has already been moderated")
	ErrMissingReviewFields  = errors.New("missing required review fields")
)

// Mailer sends moderation decision emails. Satisfied by the SMTP mailer.
type Mailer interface {
	SendReviewDecision(to, userName, productID string, approved bool, note string) error
}

type ReviewService struct {
	repo     repository.ReviewRepository
	logs     repository.DeliveryLogRepository
	notifier Notifier
	mailer   Mailer
}

func NewReviewService(repo repository.ReviewRepository, logs repository.DeliveryLogRepository, notifier Notifier, mailer Mailer) *ReviewService {
	return &ReviewService{repo: repo, logs: logs, notifier: notifier, mailer: mailer}
}

// SubmitReview validates before any write: an out-of-range rating or a
// duplicate review aborts with nothing persisted.
func (s *ReviewService) SubmitReview(ctx context.Context, review *models.Review) error {
	if review.ProductID == "" || review.UserID == "" || review.Comment == "" {
		return ErrMissingReviewFields
	}
	if review.Rating < 1 || review.Rating > 5 {
		return ErrInvalidRating
	}
	exists, err := s.repo.ExistsForProductAndUser(ctx, review.ProductID, review.UserID)
	if err != nil {
		return fmt.Errorf("failed to check existing review: %w", err)
	}
	if exists {
		return ErrDuplicateReview
	}
	if err := s.repo.Create(ctx, review); err != nil {
		return fmt.Errorf("failed to save review: %w", err)
	}

	if s.notifier != nil {
		_, err := s.notifier.CreateNotification(ctx, models.CreateNotificationInput{
			Type:              models.TypeReviewSubmitted,
			Title:             "New product review awaiting moderation",
			Message:           fmt.Sprintf("%s reviewed product %s", review.UserName, review.ProductID),
			RecipientType:     models.RecipientAllAdmins,
			RelatedEntityType: "review",
			RelatedEntityID:   review.ID.Hex(),
			CreatedBy:         review.UserID,
			CreatedByType:     models.RoleUser,
		})
		if err != nil {
			log.Printf("Failed to notify admins about review %s: %v", review.ID.Hex(), err)
		}
	}
	return nil
}

func (s *ReviewService) GetReview(ctx context.Context, id primitive.ObjectID) (*models.Review, error) {
	review, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrReviewNotFound
		}
		return nil, err
	}
	return review, nil
}

func (s *ReviewService) ListReviews(ctx context.Context, status models.ReviewStatus) ([]models.Review, error) {
	return s.repo.ListByStatus(ctx, status)
}

// ModerateReview approves or rejects a pending review. The status change is
// the critical write; the reviewer notification and the decision email are
// best-effort and their failures are only logged.
func (s *ReviewService) ModerateReview(ctx context.Context, id primitive.ObjectID, moderatorID string, approve bool, note string) error {
	review, err := s.GetReview(ctx, id)
	if err != nil {
		return err
	}
	if review.Status != models.ReviewPending {
		return ErrReviewAlreadyHandled
	}

	status := models.ReviewRejected
	if approve {
		status = models.ReviewApproved
	}
	if err := s.repo.SetStatus(ctx, id, status, moderatorID, note); err != nil {
		return fmt.Errorf("failed to update review status: %w", err)
	}

	if s.notifier != nil {
		title := "Your review was rejected"
		if approve {
			title = "Your review was published"
		}
		_, err := s.notifier.CreateNotification(ctx, models.CreateNotificationInput{
			Type:              models.TypeProductUpdate,
			Title:             title,
			Message:           fmt.Sprintf("Your review of product %s is now %s.", review.ProductID, status),
			RecipientType:     models.RecipientSpecificUser,
			RecipientID:       review.UserID,
			RelatedEntityType: "review",
			RelatedEntityID:   review.ID.Hex(),
			CreatedBy:         moderatorID,
			CreatedByType:     models.RoleAdmin,
		})
		if err != nil {
			log.Printf("Failed to notify reviewer %s: %v", review.UserID, err)
		}
	}

	s.sendDecisionEmail(ctx, review, approve, note)
	return nil
}

func (s *ReviewService) sendDecisionEmail(ctx context.Context, review *models.Review, approved bool, note string) {
	if s.mailer == nil || review.UserEmail == "" {
		return
	}
	subject := "Your review was rejected"
	if approved {
		subject = "Your review was published"
	}
	entry := &models.EmailLog{
		To:      review.UserEmail,
		Subject: subject,
		Kind:    "review_decision",
		Success: true,
	}
	if err := s.mailer.SendReviewDecision(review.UserEmail, review.UserName, review.ProductID, approved, note); err != nil {
		entry.Success = false
		entry.Error = err.Error()
		log.Printf("Failed to send review decision email to %s: %v", review.UserEmail, err)
	}
	if err := s.logs.SaveEmailLog(ctx, entry); err != nil {
		log.Printf("Failed to save email log: %v", err)
	}
}

// ReportReview records one report per reviewer per review.
func (s *ReviewService) ReportReview(ctx context.Context, reviewID primitive.ObjectID, reporterID, reason string) error {
	if _, err := s.GetReview(ctx, reviewID); err != nil {
		return err
	}
	reported, err := s.repo.HasReport(ctx, reviewID, reporterID)
	if err != nil {
		return fmt.Errorf("failed to check existing report: %w", err)
	}
	if reported {
		return ErrDuplicateReport
	}
	return s.repo.AddReport(ctx, &models.ReviewReport{
		ReviewID:   reviewID,
		ReporterID: reporterID,
		Reason:     reason,
	})
}
