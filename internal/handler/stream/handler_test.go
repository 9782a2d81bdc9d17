package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/mindful/backend/internal/model/persona"
	"github.com/zhouzirui/mindful/backend/internal/service/aggregator"
	chatservice "github.com/zhouzirui/mindful/backend/internal/service/chat"
	"github.com/zhouzirui/mindful/backend/internal/service/conversation"
)

func setup(t *testing.T) (*chi.Mux, *conversation.Service) {
	t.Helper()
	svc := conversation.NewService(chatservice.NewService(), persona.NewMemoryStore(persona.Seed()), aggregator.New(), nil, nil)
	r := chi.NewRouter()
	New(svc).RegisterRoutes(r)
	return r, svc
}

func readEvents(t *testing.T, body string) []StreamResponse {
	t.Helper()
	var events []StreamResponse
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev StreamResponse
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("decode event %q: %v", line, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestStreamEmitsTurnEvents(t *testing.T) {
	r, svc := setup(t)
	session, _, err := svc.StartSession(context.Background(), "")
	if err != nil {
		t.Fatalf("StartSession err: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/stream/"+session.ID+"?message="+url.QueryEscape("I feel hopeless"), nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if ct := resp.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected event stream, got %q", ct)
	}

	events := readEvents(t, resp.Body.String())
	var kinds []string
	for _, ev := range events {
		kinds = append(kinds, ev.Event)
	}
	want := []string{"start", "delta", "message", "emotion", "end"}
	if strings.Join(kinds, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected event order %v", kinds)
	}
	if events[1].Content != events[2].Content {
		t.Fatalf("delta and final message should match without a streaming model")
	}
}

func TestStreamRequiresMessage(t *testing.T) {
	r, _ := setup(t)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/stream/abc", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestStreamUnknownSession(t *testing.T) {
	r, _ := setup(t)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/stream/missing?message=hi", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
