package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/dialogforge-backend/internal/http/response"
	"github.com/yungbote/dialogforge-backend/internal/platform/dbctx"
	"github.com/yungbote/dialogforge-backend/internal/services"
)

type ChatSessionHandler struct {
	chats services.ChatSessionService
}

func NewChatSessionHandler(chats services.ChatSessionService) *ChatSessionHandler {
	return &ChatSessionHandler{chats: chats}
}

// POST /api/chat/sessions
func (h *ChatSessionHandler) CreateSession(c *gin.Context) {
	var req services.CreateChatSessionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	sess, err := h.chats.Create(dbctx.Context{Ctx: c.Request.Context()}, req)
	if err != nil {
		respondServiceError(c, err, "create_chat_session_failed")
		return
	}
	response.RespondCreated(c, gin.H{"session": sess})
}

// GET /api/chat/sessions/:id
func (h *ChatSessionHandler) GetSession(c *gin.Context) {
	sess, err := h.chats.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err, "get_chat_session_failed")
		return
	}
	response.RespondOK(c, gin.H{"session": sess})
}

type sendChatMessageRequest struct {
	Text string `json:"text"`
}

// POST /api/chat/sessions/:id/messages
func (h *ChatSessionHandler) SendMessage(c *gin.Context) {
	var req sendChatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	reply, err := h.chats.SendMessage(dbctx.Context{Ctx: c.Request.Context()}, c.Param("id"), req.Text)
	if err != nil {
		respondServiceError(c, err, "send_chat_message_failed")
		return
	}
	response.RespondOK(c, reply)
}

// DELETE /api/chat/sessions/:id
func (h *ChatSessionHandler) DeleteSession(c *gin.Context) {
	if err := h.chats.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondServiceError(c, err, "delete_chat_session_failed")
		return
	}
	c.Status(http.StatusNoContent)
}
