package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/dialogforge-backend/internal/http/response"
	"github.com/yungbote/dialogforge-backend/internal/platform/dbctx"
	"github.com/yungbote/dialogforge-backend/internal/services"
)

type MessageHandler struct {
	messages services.MessageService
}

func NewMessageHandler(messages services.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

type rateMessageRequest struct {
	Up *bool `json:"up"`
}

// POST /api/messages/:id/rate
func (h *MessageHandler) RateMessage(c *gin.Context) {
	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_message_id", err)
		return
	}
	var req rateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.Up == nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("up is required"))
		return
	}
	msg, err := h.messages.RateForRequestUser(dbctx.Context{Ctx: c.Request.Context()}, messageID, *req.Up)
	if err != nil {
		respondServiceError(c, err, "rate_message_failed")
		return
	}
	response.RespondOK(c, gin.H{"message": msg})
}
