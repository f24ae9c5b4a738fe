package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ai-character-chat/backend/internal/models"
	"ai-character-chat/backend/internal/service"
	apperrors "ai-character-chat/backend/pkg/errors"
	"ai-character-chat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ChatHandler serves the streaming chat and history endpoints.
type ChatHandler struct {
	chat *service.ChatService
}

func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Chat handles POST /characters/:id/chat. The reply is relayed to the
// client as server-sent events while it is still being generated upstream:
// one data frame per chunk, then a [DONE] marker, or a single error frame
// if the turn fails mid-stream.
func (h *ChatHandler) Chat(c *gin.Context) {
	id, ok := characterIDParam(c)
	if !ok {
		return
	}

	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(apperrors.CodeInvalidRequest, err.Error()))
		return
	}

	// StreamTurn fails here only before any side effect (unknown
	// character, storage refusing the user message), so a plain JSON
	// error response is still possible.
	events, err := h.chat.StreamTurn(c.Request.Context(), id, req.Content)
	if err != nil {
		c.Error(err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.Flush()

	log := logger.FromContext(c)
	for ev := range events {
		switch {
		case ev.Err != nil:
			writeEvent(c, gin.H{"error": ev.Err.Error()})
		case ev.Done:
			fmt.Fprint(c.Writer, "data: [DONE]\n\n")
			c.Writer.Flush()
		default:
			writeEvent(c, gin.H{"content": ev.Content})
		}
	}

	log.Debug("chat stream finished", "character_id", id)
}

// GetMessages handles GET /characters/:id/messages, returning the full
// conversation log oldest first.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	id, ok := characterIDParam(c)
	if !ok {
		return
	}

	messages, err := h.chat.History(id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// writeEvent marshals one SSE data frame and flushes it immediately so
// chunks reach the client without buffering delay.
func writeEvent(c *gin.Context, payload gin.H) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", data)
	c.Writer.Flush()
}
