package handler

import (
	"errors"
	"net/http"

	"github.com/cambiartech/buykoins-be-sub000/internal/models"
	"github.com/cambiartech/buykoins-be-sub000/internal/services"
	"github.com/cambiartech/buykoins-be-sub000/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SupportHandler is the REST side of the support chat: listings, history,
// operator actions and the auth-code endpoints. The realtime side lives in
// internal/ws.
type SupportHandler struct {
	chat     *services.ChatService
	codes    *services.AuthCodeService
	uploader *utils.Uploader
}

func NewSupportHandler(chat *services.ChatService, codes *services.AuthCodeService, uploader *utils.Uploader) *SupportHandler {
	return &SupportHandler{chat: chat, codes: codes, uploader: uploader}
}

// ListConversations returns the caller's conversations, most recently active
// first, each with a live unread count.
func (h *SupportHandler) ListConversations(c *gin.Context) {
	identity := CallerIdentity(c)
	if identity.IsOperator() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "operators list conversations via assignment views"})
		return
	}
	summaries, err := h.chat.ListForIdentity(c, identity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list conversations"})
		return
	}
	c.JSON(http.StatusOK, summaries)
}

// GetMessages returns a conversation's full history, owner or operator only.
func (h *SupportHandler) GetMessages(c *gin.Context) {
	convID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}
	identity := CallerIdentity(c)

	conv, err := h.chat.GetConversation(c, convID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !identity.IsOperator() && conv.OwnerKey() != identity.Key() {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this conversation"})
		return
	}

	messages, err := h.chat.Messages(c, convID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

type statusRequest struct {
	Status string `json:"status" binding:"required,oneof=closed resolved"`
}

// UpdateStatus closes or resolves an open conversation. Operator-only route.
func (h *SupportHandler) UpdateStatus(c *gin.Context) {
	convID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	err = h.chat.SetStatus(c, convID, models.ConversationStatus(req.Status), CallerIdentity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

type assignRequest struct {
	OperatorID string `json:"operator_id" binding:"required"`
}

// AssignOperator sets the handling operator; allowed regardless of status.
func (h *SupportHandler) AssignOperator(c *gin.Context) {
	convID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	if err := h.chat.Assign(c, convID, req.OperatorID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "assigned"})
}

// UploadAttachment stores a file through the media collaborator and returns
// the reference a subsequent message can carry.
func (h *SupportHandler) UploadAttachment(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read file"})
		return
	}
	defer file.Close()

	ref, err := h.uploader.Store(c, file, fileHeader.Filename, fileHeader.Size, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store file"})
		return
	}
	c.JSON(http.StatusOK, ref)
}

type issueCodeRequest struct {
	AccountID      string `json:"account_id,omitempty"`
	GuestToken     string `json:"guest_token,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	DeviceInfo     string `json:"device_info,omitempty"`
}

// IssueAuthCode mints a one-time linking code. Operator-only route.
func (h *SupportHandler) IssueAuthCode(c *gin.Context) {
	var req issueCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	if req.GuestToken != "" && !utils.IsValidGuestToken(req.GuestToken) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed guest token"})
		return
	}

	issue := services.IssueRequest{
		OperatorID: CallerIdentity(c).OperatorID,
		AccountID:  req.AccountID,
		GuestToken: req.GuestToken,
		DeviceInfo: req.DeviceInfo,
	}
	if req.ConversationID != "" {
		convID, err := primitive.ObjectIDFromHex(req.ConversationID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
			return
		}
		issue.ConversationID = &convID
	}

	code, err := h.codes.Issue(c, issue)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, code)
}

type verifyCodeRequest struct {
	Code       string `json:"code" binding:"required"`
	AccountID  string `json:"account_id,omitempty"`
	GuestToken string `json:"guest_token,omitempty"`
}

// VerifyAuthCode consumes a pending code. Any failure reads the same from
// the outside: {"valid": false}.
func (h *SupportHandler) VerifyAuthCode(c *gin.Context) {
	var req verifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	code, err := h.codes.Verify(c, req.Code, req.AccountID, req.GuestToken)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":           true,
		"account_id":      code.AccountID,
		"guest_token":     code.GuestToken,
		"conversation_id": code.ConversationID,
	})
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, models.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrAuthenticationFailed):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrExhausted):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "could not issue code, try again"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
