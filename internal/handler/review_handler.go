package handler

import (
	"errors"
	"net/http"

	"chem-admin/internal/models"
	"chem-admin/internal/services"
	"chem-admin/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ReviewHandler struct {
	service *services.ReviewService
}

func NewReviewHandler(service *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{service: service}
}

func reviewErrorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrReviewNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrDuplicateReview),
		errors.Is(err, services.ErrDuplicateReport),
		errors.Is(err, services.ErrReviewAlreadyHandled):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidRating),
		errors.Is(err, services.ErrMissingReviewFields):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *ReviewHandler) SubmitReview(c *gin.Context) {
	var review models.Review
	if err := c.ShouldBindJSON(&review); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	if err := utils.ValidateStruct(review); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	review.UserID = c.GetString("userID")
	if err := h.service.SubmitReview(c, &review); err != nil {
		c.JSON(reviewErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, review)
}

func (h *ReviewHandler) ListReviews(c *gin.Context) {
	status := models.ReviewStatus(c.Query("status"))
	reviews, err := h.service.ListReviews(c, status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch reviews"})
		return
	}
	c.JSON(http.StatusOK, reviews)
}

type moderateRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note,omitempty"`
}

func (h *ReviewHandler) ModerateReview(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid review id"})
		return
	}
	var req moderateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	if err := h.service.ModerateReview(c, id, c.GetString("userID"), req.Approve, req.Note); err != nil {
		c.JSON(reviewErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "moderated"})
}

type reportRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (h *ReviewHandler) ReportReview(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid review id"})
		return
	}
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	if err := h.service.ReportReview(c, id, c.GetString("userID"), req.Reason); err != nil {
		c.JSON(reviewErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reported"})
}
