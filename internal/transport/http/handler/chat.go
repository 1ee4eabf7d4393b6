package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"docrelay/internal/ai"
	"docrelay/internal/app"
	"docrelay/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
}

// ChatRequest uses pointers so an absent field can be told apart from an
// empty one.
type ChatRequest struct {
	Message             *string           `json:"message"`
	SessionID           *string           `json:"session_id"`
	ConversationHistory *[]ai.ChatMessage `json:"conversation_history"`
	DocumentContext     string            `json:"document_context"`
	APIKey              string            `json:"api_key"`
}

type ChatResponse struct {
	Success        bool    `json:"success"`
	Response       string  `json:"response"`
	SessionID      string  `json:"session_id"`
	TokensUsed     int     `json:"tokens_used"`
	ProcessingTime float64 `json:"processing_time"`
	Timestamp      string  `json:"timestamp"`
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	start := time.Now()

	in, ok := h.bindChat(c)
	if !ok {
		return
	}

	result, err := h.chatService.Send(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}

	response.OK(c, ChatResponse{
		Success:        true,
		Response:       result.Response,
		SessionID:      result.SessionID,
		TokensUsed:     result.TokensUsed,
		ProcessingTime: time.Since(start).Seconds(),
		Timestamp:      response.Timestamp(),
	})
}

// StreamMessage relays the reply as server-sent events: one data event per
// delta, then a done event carrying the full reply.
func (h *ChatHandler) StreamMessage(c *gin.Context) {
	in, ok := h.bindChat(c)
	if !ok {
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, "stream not supported")
		return
	}

	started := false
	startStream := func() {
		if started {
			return
		}
		started = true
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)
	}

	full, err := h.chatService.Stream(c.Request.Context(), in, func(chunk string) error {
		startStream()
		if _, writeErr := c.Writer.Write([]byte("data: " + sanitizeSSE(chunk) + "\n\n")); writeErr != nil {
			return writeErr
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		if !started {
			writeError(c, err)
			return
		}
		msg, ok := inferenceMessage(err)
		if !ok {
			msg = response.MsgInternalServer
		}
		if _, writeErr := c.Writer.Write([]byte(fmt.Sprintf("event: error\ndata: %s\n\n", sanitizeSSE(msg)))); writeErr == nil {
			flusher.Flush()
		}
		return
	}

	startStream()
	if _, writeErr := c.Writer.Write([]byte("event: done\ndata: " + sanitizeSSE(full) + "\n\n")); writeErr == nil {
		flusher.Flush()
	}
}

func (h *ChatHandler) bindChat(c *gin.Context) (app.ChatInput, bool) {
	var req ChatRequest
	if !bindJSON(c, &req) {
		return app.ChatInput{}, false
	}

	switch {
	case req.Message == nil:
		response.Error(c, http.StatusBadRequest, "missing required field: message")
		return app.ChatInput{}, false
	case req.SessionID == nil:
		response.Error(c, http.StatusBadRequest, "missing required field: session_id")
		return app.ChatInput{}, false
	case req.ConversationHistory == nil:
		response.Error(c, http.StatusBadRequest, "missing required field: conversation_history")
		return app.ChatInput{}, false
	}

	return app.ChatInput{
		Message:         *req.Message,
		SessionID:       *req.SessionID,
		History:         *req.ConversationHistory,
		DocumentContext: req.DocumentContext,
		APIKey:          req.APIKey,
	}, true
}

func sanitizeSSE(input string) string {
	replaced := strings.ReplaceAll(input, "\r\n", "\\n")
	replaced = strings.ReplaceAll(replaced, "\n", "\\n")
	return replaced
}
