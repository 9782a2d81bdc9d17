package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zhouzirui/mindful/backend/internal/model/persona"
	"github.com/zhouzirui/mindful/backend/internal/observability"
	"github.com/zhouzirui/mindful/backend/internal/service/aggregator"
	chatservice "github.com/zhouzirui/mindful/backend/internal/service/chat"
	"github.com/zhouzirui/mindful/backend/internal/service/conversation"
)

func newTestRouter() http.Handler {
	metrics := observability.NewMetrics("test")
	store := persona.NewMemoryStore(persona.Seed())
	agg := aggregator.New(aggregator.WithObserver(metrics))
	conversations := conversation.NewService(chatservice.NewService(), store, agg, nil, nil)

	return NewRouter(Dependencies{
		Personas:      store,
		Conversations: conversations,
		Aggregator:    agg,
		Provider:      "heuristic",
		Metrics:       metrics,
	})
}

func TestRouterEndToEnd(t *testing.T) {
	r := newTestRouter()

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/session", bytes.NewReader([]byte(`{}`))))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created struct {
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &created)

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/session/"+created.Session.ID+"/messages", bytes.NewReader([]byte(`{"content":"I am worried and tired"}`))))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/analysis/"+created.Session.ID+"/observations", bytes.NewReader([]byte(`{"source":"face","category":"positive"}`))))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/analysis/"+created.Session.ID+"/summary", nil))
	var summary struct {
		Total int `json:"total"`
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &summary)
	if resp.Code != http.StatusOK || summary.Total != 2 {
		t.Fatalf("expected 2 observations in summary, got %d (%d)", summary.Total, resp.Code)
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "test_observations_total") {
		t.Fatalf("expected observation counter in metrics output")
	}
}

func TestRouterHealthAndCORS(t *testing.T) {
	r := newTestRouter()

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected health response %d %s", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodOptions, "/api/personas", nil))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", resp.Code)
	}
}
