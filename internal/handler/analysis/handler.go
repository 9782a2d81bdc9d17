package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	emotionanalysis "github.com/zhouzirui/mindful/backend/internal/analysis/emotion"
	emotion "github.com/zhouzirui/mindful/backend/internal/model/emotion"
	"github.com/zhouzirui/mindful/backend/internal/service/aggregator"
	"github.com/zhouzirui/mindful/backend/pkg/utils"
)

// WSRecorder 统计 WebSocket 收发的消息。
type WSRecorder interface {
	ObserveWSMessage(direction, msgType string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveWSMessage(string, string) {}

// Handler 情绪分析的 HTTP 处理器
type Handler struct {
	aggregator *aggregator.Service
	classifier emotionanalysis.Classifier
	recorder   WSRecorder
	live       *LiveHandler
}

// New 创建分析处理器。recorder 可以为 nil。
func New(agg *aggregator.Service, classifier emotionanalysis.Classifier, recorder WSRecorder) *Handler {
	if classifier == nil {
		classifier = emotionanalysis.NewHeuristic()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	h := &Handler{
		aggregator: agg,
		classifier: classifier,
		recorder:   recorder,
	}
	h.live = newLiveHandler(h)
	return h
}

// RegisterRoutes 注册分析相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/analysis/{sessionID}", func(r chi.Router) {
		r.Post("/observations", h.handleRecord)
		r.Get("/observations", h.handleObservations)
		r.Get("/summary", h.handleSummary)
		r.Get("/timeline", h.handleTimeline)
		r.Delete("/", h.handleDiscard)
		r.Get("/live", h.live.handleWebSocket)
	})
}

// ObservationRequest 是一次观测的请求体，category 为空时由分类器推断。
type ObservationRequest struct {
	Source    string             `json:"source"`
	Category  string             `json:"category,omitempty"`
	Text      string             `json:"text,omitempty"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	Timestamp *time.Time         `json:"timestamp,omitempty"`
}

// RecordResponse 是记录观测后的返回体。
type RecordResponse struct {
	ObservationID string          `json:"observationId"`
	Result        emotion.Result  `json:"result"`
	Summary       emotion.Summary `json:"summary"`
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload ObservationRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.record(r.Context(), sessionID, payload, time.Time{})
	if err != nil {
		respondAggregatorError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, resp)
}

// record 校验、分类并写入一条观测。fallbackAt 非零时作为缺省时间戳。
func (h *Handler) record(ctx context.Context, sessionID string, payload ObservationRequest, fallbackAt time.Time) (RecordResponse, error) {
	source, err := emotion.ParseSource(payload.Source)
	if err != nil {
		return RecordResponse{}, fmt.Errorf("%w: %v", aggregator.ErrInvalidArgument, err)
	}

	var result emotion.Result
	if strings.TrimSpace(payload.Category) != "" {
		category, err := emotion.ParseCategory(payload.Category)
		if err != nil {
			return RecordResponse{}, fmt.Errorf("%w: %v", aggregator.ErrInvalidArgument, err)
		}
		result = emotion.Result{Category: category, Confidence: 1, Reason: "client supplied"}
	} else {
		result, err = h.classifier.Classify(ctx, emotionanalysis.Input{Source: source, Text: payload.Text, Metrics: payload.Metrics})
		if err != nil {
			return RecordResponse{}, fmt.Errorf("%w: %v", aggregator.ErrInvalidArgument, err)
		}
	}

	at := fallbackAt
	if payload.Timestamp != nil {
		at = *payload.Timestamp
	}

	var id string
	if at.IsZero() {
		id, err = h.aggregator.Record(sessionID, source, result.Category, payload.Metrics)
	} else {
		id, err = h.aggregator.RecordAt(sessionID, source, result.Category, payload.Metrics, at)
	}
	if err != nil {
		return RecordResponse{}, err
	}

	summary, _ := h.aggregator.Summarize(sessionID)
	return RecordResponse{ObservationID: id, Result: result, Summary: summary}, nil
}

func (h *Handler) handleObservations(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	observations, err := h.aggregator.Observations(sessionID)
	if err != nil {
		respondAggregatorError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"sessionId":    sessionID,
		"observations": observations,
	})
}

// handleSummary 未知会话同样返回 200 和空摘要，前端据此展示 "no data"。
func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	summary, err := h.aggregator.Summarize(sessionID)
	if err != nil && !errors.Is(err, aggregator.ErrNotFound) {
		respondAggregatorError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var bucket time.Duration
	if raw := strings.TrimSpace(r.URL.Query().Get("bucket")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			utils.RespondError(w, http.StatusBadRequest, "bucket must be a positive duration such as 15m or 1h")
			return
		}
		bucket = parsed
	}

	buckets, err := h.aggregator.Timeline(sessionID, bucket)
	if err != nil {
		respondAggregatorError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"sessionId": sessionID,
		"buckets":   buckets,
	})
}

func (h *Handler) handleDiscard(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.aggregator.Discard(sessionID); err != nil {
		respondAggregatorError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// StatusFor 将聚合器错误映射为 HTTP 状态码。
func StatusFor(err error) int {
	switch {
	case errors.Is(err, aggregator.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, aggregator.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, aggregator.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func respondAggregatorError(w http.ResponseWriter, err error) {
	utils.RespondError(w, StatusFor(err), err.Error())
}
