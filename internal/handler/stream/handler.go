package stream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/mindful/backend/internal/service/conversation"
	"github.com/zhouzirui/mindful/backend/pkg/utils"
)

// Handler manages streaming replies via Server-Sent Events
type Handler struct {
	conversations *conversation.Service
}

// New creates a new stream handler
func New(conversations *conversation.Service) *Handler {
	return &Handler{conversations: conversations}
}

// RegisterRoutes 注册流式路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event     string      `json:"event"`
	Content   string      `json:"content,omitempty"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Finished  bool        `json:"finished,omitempty"`
	Error     string      `json:"error,omitempty"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	userMessage := r.URL.Query().Get("message")

	if userMessage == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	if err := h.HandleStreamRequest(r.Context(), w, sessionID, userMessage); err != nil {
		log.Printf("[stream] error handling request session=%s: %v", sessionID, err)
	}
}

// HandleStreamRequest runs one turn and streams the reply. Turn errors are reported as
// SSE error events once the stream has started.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID string, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return fmt.Errorf("streaming unsupported")
	}

	if _, err := h.conversations.Transcript(ctx, sessionID); err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return err
	}

	utils.SetupSSEHeaders(w)

	utils.SendSSEChunk(w, flusher, StreamResponse{Event: "start", SessionID: sessionID})

	turn, err := h.conversations.Stream(ctx, sessionID, userMessage, func(delta string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		utils.SendSSEChunk(w, flusher, StreamResponse{
			Event:     "delta",
			SessionID: sessionID,
			Content:   delta,
		})
		return nil
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			utils.SendSSEChunk(w, flusher, StreamResponse{Event: "error", SessionID: sessionID, Error: err.Error()})
		}
		return err
	}

	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "message",
		SessionID: sessionID,
		Content:   turn.Assistant.Content,
	})

	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "emotion",
		SessionID: sessionID,
		Data: map[string]any{
			"result":  turn.Result,
			"summary": turn.Summary,
		},
	})

	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "end",
		SessionID: sessionID,
		Finished:  true,
	})

	log.Printf("[stream] completed response for session=%s, source=%s", sessionID, turn.ReplySource)
	return nil
}
