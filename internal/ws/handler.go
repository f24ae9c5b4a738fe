package ws

import (
	"context"
	"net/http"

	"ai-character-chat/backend/internal/service"
	"ai-character-chat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// TurnRequest is one inbound chat request frame.
type TurnRequest struct {
	CharacterID uint   `json:"character_id"`
	Content     string `json:"content"`
}

// TurnFrame is one outbound frame: a content chunk, a completion marker, or
// an error. Mirrors the SSE wire format one event per frame.
type TurnFrame struct {
	Content string `json:"content,omitempty"`
	Done    bool   `json:"done,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Handler relays chat turns over a websocket as an alternative to the SSE
// endpoint. One connection can carry any number of sequential turns.
type Handler struct {
	chat *service.ChatService
	log  *logger.Logger
}

func NewHandler(chat *service.ChatService, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &Handler{chat: chat, log: log}
}

// ServeChat handles GET /ws/chat.
func (h *Handler) ServeChat(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.LogError(err, "websocket upgrade failed")
		return
	}
	defer conn.Close()

	// The request context is cancelled when the HTTP connection drops,
	// which stops any in-flight upstream stream.
	ctx := c.Request.Context()

	for {
		var req TurnRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.LogError(err, "websocket read failed")
			}
			return
		}

		if req.Content == "" || req.CharacterID == 0 {
			if err := conn.WriteJSON(TurnFrame{Error: "character_id and content are required"}); err != nil {
				return
			}
			continue
		}

		turnCtx, cancel := context.WithCancel(ctx)
		events, err := h.chat.StreamTurn(turnCtx, req.CharacterID, req.Content)
		if err != nil {
			cancel()
			if writeErr := conn.WriteJSON(TurnFrame{Error: err.Error()}); writeErr != nil {
				return
			}
			continue
		}

		for ev := range events {
			frame := TurnFrame{Content: ev.Content, Done: ev.Done}
			if ev.Err != nil {
				frame = TurnFrame{Error: ev.Err.Error()}
			}
			if err := conn.WriteJSON(frame); err != nil {
				h.log.LogError(err, "websocket write failed")
				// Cancel and drain so the relay persists the partial
				// turn before we tear the connection down.
				cancel()
				for range events {
				}
				return
			}
		}
		cancel()
	}
}
