package handler

import (
	"errors"
	"net/http"

	"chem-admin/internal/models"
	"chem-admin/internal/services"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type QuotationHandler struct {
	threads services.ThreadService
}

func NewQuotationHandler(threads services.ThreadService) *QuotationHandler {
	return &QuotationHandler{threads: threads}
}

func (h *QuotationHandler) CreateQuotation(c *gin.Context) {
	var q models.Quotation
	if err := c.ShouldBindJSON(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	if err := q.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.threads.CreateQuotation(c, &q); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create quotation"})
		return
	}
	c.JSON(http.StatusCreated, q)
}

func (h *QuotationHandler) GetQuotations(c *gin.Context) {
	quotations, err := h.threads.GetQuotations(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch quotations"})
		return
	}
	c.JSON(http.StatusOK, quotations)
}

func (h *QuotationHandler) GetQuotation(c *gin.Context) {
	id, ok := quotationID(c)
	if !ok {
		return
	}
	q, err := h.threads.GetQuotation(c, id)
	if err != nil {
		c.JSON(threadErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, q)
}

func threadErrorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrQuotationNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrThreadClosed),
		errors.Is(err, services.ErrThreadAlreadyClosed),
		errors.Is(err, services.ErrClosureNotRequested),
		errors.Is(err, services.ErrPermissionRequired):
		return http.StatusConflict
	case errors.Is(err, services.ErrEmptyMessage):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func quotationID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quotation id"})
		return primitive.NilObjectID, false
	}
	return id, true
}

type createMessageRequest struct {
	AuthorName  string             `json:"author_name" binding:"required"`
	Content     string             `json:"content" binding:"required"`
	MessageType models.MessageType `json:"message_type,omitempty"`
}

func (h *QuotationHandler) CreateMessage(c *gin.Context) {
	id, ok := quotationID(c)
	if !ok {
		return
	}
	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	role := models.AuthorRole(c.GetString("role"))
	msgID, err := h.threads.CreateMessage(c, id, c.GetString("userID"), req.AuthorName, role, req.Content, req.MessageType)
	if err != nil {
		c.JSON(threadErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message_id": msgID.Hex()})
}

func (h *QuotationHandler) GetMessages(c *gin.Context) {
	id, ok := quotationID(c)
	if !ok {
		return
	}
	messages, err := h.threads.GetMessages(c, id)
	if err != nil {
		c.JSON(threadErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, messages)
}

type markReadRequest struct {
	MessageIDs []string `json:"message_ids,omitempty"`
}

func (h *QuotationHandler) MarkMessagesAsRead(c *gin.Context) {
	id, ok := quotationID(c)
	if !ok {
		return
	}
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	ids := make([]primitive.ObjectID, 0, len(req.MessageIDs))
	for _, raw := range req.MessageIDs {
		msgID, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
			return
		}
		ids = append(ids, msgID)
	}
	role := models.AuthorRole(c.GetString("role"))
	count, err := h.threads.MarkMessagesAsRead(c, id, role, ids)
	if err != nil {
		c.JSON(threadErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": count})
}

func (h *QuotationHandler) GetUnreadMessageCount(c *gin.Context) {
	id, ok := quotationID(c)
	if !ok {
		return
	}
	role := models.AuthorRole(c.GetString("role"))
	count, err := h.threads.GetUnreadMessageCount(c, id, role)
	if err != nil {
		c.JSON(threadErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

type closureRequest struct {
	Name   string `json:"name" binding:"required"`
	Reason string `json:"reason,omitempty"`
}

func (h *QuotationHandler) RequestClosure(c *gin.Context) {
	id, ok := quotationID(c)
	if !ok {
		return
	}
	var req closureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	if err := h.threads.RequestClosure(c, id, c.GetString("userID"), req.Name, req.Reason); err != nil {
		c.JSON(threadErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "closure requested"})
}

func (h *QuotationHandler) GrantClosurePermission(c *gin.Context) {
	id, ok := quotationID(c)
	if !ok {
		return
	}
	var req closureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	if err := h.threads.GrantClosurePermission(c, id, c.GetString("userID"), req.Name); err != nil {
		c.JSON(threadErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "closure permission granted"})
}

func (h *QuotationHandler) RejectClosureRequest(c *gin.Context) {
	id, ok := quotationID(c)
	if !ok {
		return
	}
	var req closureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	if err := h.threads.RejectClosureRequest(c, id, c.GetString("userID"), req.Name, req.Reason); err != nil {
		c.JSON(threadErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "closure request rejected"})
}

func (h *QuotationHandler) CloseThread(c *gin.Context) {
	id, ok := quotationID(c)
	if !ok {
		return
	}
	var req closureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	if err := h.threads.CloseThread(c, id, c.GetString("userID"), req.Name); err != nil {
		c.JSON(threadErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "thread closed"})
}
