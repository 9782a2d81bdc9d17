package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/mindful/backend/internal/model/chat"
	"github.com/zhouzirui/mindful/backend/internal/model/persona"
	chatService "github.com/zhouzirui/mindful/backend/internal/service/chat"
	"github.com/zhouzirui/mindful/backend/internal/service/conversation"
	"github.com/zhouzirui/mindful/backend/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	conversations *conversation.Service
}

// New 创建聊天处理器
func New(conversations *conversation.Service) *Handler {
	return &Handler{conversations: conversations}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Route("/session/{sessionID}", func(r chi.Router) {
		r.Get("/messages", h.handleTranscript)
		r.Post("/messages", h.handleSendMessage)
		r.Post("/mood", h.handleMood)
		r.Delete("/", h.handleReset)
	})
}

// CreateSessionResponse 创建会话的返回体
type CreateSessionResponse struct {
	Session     chat.Session    `json:"session"`
	Persona     persona.Persona `json:"persona"`
	OpeningLine string          `json:"openingLine"`
}

// handleCreateSession 创建会话，personaId 为空时使用默认角色
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PersonaID string `json:"personaId"`
	}

	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	session, p, err := h.conversations.StartSession(r.Context(), payload.PersonaID)
	if err != nil {
		if errors.Is(err, conversation.ErrPersonaLookup) {
			utils.RespondError(w, http.StatusBadRequest, "persona not found")
			return
		}
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, CreateSessionResponse{Session: session, Persona: p, OpeningLine: p.OpeningLine})
}

// handleTranscript 返回会话记录
func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	messages, err := h.conversations.Transcript(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"sessionId": sessionID,
		"messages":  messages,
	})
}

// handleSendMessage 处理一轮用户输入
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	turn, err := h.conversations.Reply(r.Context(), sessionID, payload.Content)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, turn)
}

// handleMood 处理心情打卡
func (h *Handler) handleMood(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		Mood string `json:"mood"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	turn, err := h.conversations.CheckIn(r.Context(), sessionID, payload.Mood)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, turn)
}

// handleReset 结束会话并丢弃分析数据
func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.conversations.Reset(r.Context(), sessionID); err != nil {
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func respondServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, chatService.ErrEmptyMessage), errors.Is(err, conversation.ErrUnknownMood):
		status = http.StatusBadRequest
	}
	utils.RespondError(w, status, err.Error())
}
