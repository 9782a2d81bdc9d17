package analysis

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	emotion "github.com/zhouzirui/mindful/backend/internal/model/emotion"
	"github.com/zhouzirui/mindful/backend/internal/service/aggregator"
)

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countingRecorder) ObserveWSMessage(direction, msgType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[direction+":"+msgType]++
}

func (c *countingRecorder) get(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key]
}

type liveMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

func dialLive(t *testing.T, agg *aggregator.Service, rec WSRecorder, sessionID string) *websocket.Conn {
	t.Helper()

	r := chi.NewRouter()
	New(agg, nil, rec).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/analysis/" + sessionID + "/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readLive(t *testing.T, conn *websocket.Conn) liveMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg liveMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestLiveFeedRecordsObservations(t *testing.T) {
	agg := aggregator.New()
	rec := &countingRecorder{}
	conn := dialLive(t, agg, rec, "live-1")

	hello := readLive(t, conn)
	if hello.Type != MessageResult || hello.SessionID != "live-1" {
		t.Fatalf("unexpected greeting %+v", hello)
	}

	observation, _ := json.Marshal(ObservationRequest{Source: "voice", Category: "negative", Metrics: map[string]float64{"stress": 0.9}})
	if err := conn.WriteJSON(InboundMessage{Type: MessageObservation, Data: observation}); err != nil {
		t.Fatalf("write: %v", err)
	}

	msg := readLive(t, conn)
	if msg.Type != MessageResult {
		t.Fatalf("expected result, got %+v (%s)", msg, msg.Data)
	}
	var resp RecordResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if resp.Summary.Total != 1 || resp.Summary.Percentages.Negative != 100 {
		t.Fatalf("unexpected summary %+v", resp.Summary)
	}

	text, _ := json.Marshal(TextData{Text: "I feel happy today"})
	ts := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC).UnixMilli()
	if err := conn.WriteJSON(InboundMessage{Type: MessageText, Data: text, Timestamp: ts}); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg = readLive(t, conn)
	_ = json.Unmarshal(msg.Data, &resp)
	if resp.Result.Category != emotion.Positive || resp.Summary.Total != 2 {
		t.Fatalf("unexpected text result %+v", resp)
	}

	observations, _ := agg.Observations("live-1")
	if len(observations) != 2 || !observations[0].Timestamp.Equal(time.UnixMilli(ts)) {
		t.Fatalf("expected client timestamp to order first, got %+v", observations)
	}

	if got := rec.get("in:" + MessageObservation); got != 1 {
		t.Fatalf("expected 1 inbound observation, got %d", got)
	}
	if got := rec.get("out:" + MessageResult); got < 3 {
		t.Fatalf("expected at least 3 outbound results, got %d", got)
	}
}

func TestLiveFeedReportsErrors(t *testing.T) {
	agg := aggregator.New()
	conn := dialLive(t, agg, nil, "live-2")
	readLive(t, conn)

	bad, _ := json.Marshal(ObservationRequest{Source: "text", Category: "furious"})
	_ = conn.WriteJSON(InboundMessage{Type: MessageObservation, Data: bad})
	if msg := readLive(t, conn); msg.Type != MessageError {
		t.Fatalf("expected error for bad category, got %+v", msg)
	}

	_ = conn.WriteJSON(InboundMessage{Type: "dance"})
	if msg := readLive(t, conn); msg.Type != MessageError {
		t.Fatalf("expected error for unknown type, got %+v", msg)
	}

	_ = conn.WriteJSON(InboundMessage{Type: MessageSummary})
	msg := readLive(t, conn)
	if msg.Type != MessageResult || !strings.Contains(string(msg.Data), `"hasData":false`) {
		t.Fatalf("expected empty summary, got %+v (%s)", msg, msg.Data)
	}
}

func TestLiveFeedRejectsDiscardedSession(t *testing.T) {
	agg := aggregator.New()
	if err := agg.Open("gone"); err != nil {
		t.Fatalf("Open err: %v", err)
	}
	if err := agg.Discard("gone"); err != nil {
		t.Fatalf("Discard err: %v", err)
	}

	r := chi.NewRouter()
	New(agg, nil, nil).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/analysis/gone/live"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatalf("expected dial to fail for discarded session")
	}
	if resp == nil || resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %+v", resp)
	}
}
