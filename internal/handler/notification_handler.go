package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"chem-admin/internal/models"
	"chem-admin/internal/services"
	"chem-admin/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationHandler struct {
	service *services.NotificationService
}

func NewNotificationHandler(service *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

func viewerFrom(c *gin.Context) models.Viewer {
	return models.Viewer{
		Role:   models.AuthorRole(c.GetString("role")),
		UserID: c.GetString("userID"),
	}
}

func notificationErrorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrNotificationNotFound),
		errors.Is(err, services.ErrRecipientNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidNotification),
		errors.Is(err, services.ErrRecipientRequired),
		errors.Is(err, services.ErrTokenRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *NotificationHandler) CreateNotification(c *gin.Context) {
	var in models.CreateNotificationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	if err := utils.ValidateStruct(in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if in.CreatedBy == "" {
		in.CreatedBy = c.GetString("userID")
	}
	if in.CreatedByType == "" {
		in.CreatedByType = models.AuthorRole(c.GetString("role"))
	}
	id, err := h.service.CreateNotification(c, in)
	if err != nil {
		c.JSON(notificationErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"notification_id": id.Hex()})
}

func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	filter := models.NotificationFilter{
		Search:            c.Query("search"),
		Type:              models.NotificationType(c.Query("type")),
		RelatedEntityType: c.Query("entity_type"),
		Priority:          models.Priority(c.Query("priority")),
		PerformedByType:   models.AuthorRole(c.Query("performed_by_type")),
	}
	if raw := c.Query("is_read"); raw != "" {
		isRead := raw == "true"
		filter.IsRead = &isRead
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		filter.Limit = &limit
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
			return
		}
		filter.Offset = offset
	}

	notifications, err := h.service.GetNotifications(c, viewerFrom(c), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch notifications"})
		return
	}
	c.JSON(http.StatusOK, notifications)
}

func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	count, err := h.service.GetUnreadCount(c, viewerFrom(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not count notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}
	if err := h.service.MarkAsRead(c, id, viewerFrom(c)); err != nil {
		c.JSON(notificationErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "marked as read"})
}

type markMultipleRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

func (h *NotificationHandler) MarkMultipleAsRead(c *gin.Context) {
	var req markMultipleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	ids := make([]primitive.ObjectID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
			return
		}
		ids = append(ids, id)
	}
	updated, err := h.service.MarkMultipleAsRead(c, ids, viewerFrom(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mark notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": hexIDs(updated)})
}

func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	updated, err := h.service.MarkAllAsRead(c, viewerFrom(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mark notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": hexIDs(updated)})
}

func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}
	if err := h.service.DeleteNotification(c, id); err != nil {
		c.JSON(notificationErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *NotificationHandler) DeleteExpired(c *gin.Context) {
	deleted, err := h.service.DeleteExpiredNotifications(c, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete expired notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": hexIDs(deleted)})
}

type registerTokenRequest struct {
	Token      string `json:"token" binding:"required"`
	Platform   string `json:"platform" binding:"required"`
	DeviceInfo string `json:"device_info,omitempty"`
	UserID     string `json:"user_id,omitempty"`
}

func (h *NotificationHandler) RegisterToken(c *gin.Context) {
	var req registerTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	id, err := h.service.RegisterDeviceToken(c, models.DeviceToken{
		Token:      req.Token,
		Platform:   req.Platform,
		DeviceInfo: req.DeviceInfo,
		UserID:     req.UserID,
	})
	if err != nil {
		c.JSON(notificationErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token_id": id.Hex()})
}

func (h *NotificationHandler) UnregisterToken(c *gin.Context) {
	token := c.Param("token")
	if err := h.service.UnregisterDeviceToken(c, token); err != nil {
		c.JSON(notificationErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unregistered"})
}

func hexIDs(ids []primitive.ObjectID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Hex())
	}
	return out
}
