package conversation_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/mindful/backend/internal/model/chat"
	"github.com/zhouzirui/mindful/backend/internal/model/emotion"
	"github.com/zhouzirui/mindful/backend/internal/model/persona"
	"github.com/zhouzirui/mindful/backend/internal/service/aggregator"
	"github.com/zhouzirui/mindful/backend/internal/service/ai"
	chatsvc "github.com/zhouzirui/mindful/backend/internal/service/chat"
	"github.com/zhouzirui/mindful/backend/internal/service/conversation"
)

type fakeResponder struct {
	reply     string
	chunks    []string
	err       error
	streaming bool

	mu        sync.Mutex
	guidances []*ai.Guidance
}

func (f *fakeResponder) GenerateResponse(_ context.Context, _ string, _ *persona.Persona, _ []chat.Message, _ string, g *ai.Guidance) (*schema.Message, error) {
	f.mu.Lock()
	f.guidances = append(f.guidances, g)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeResponder) StreamResponse(_ context.Context, _ *persona.Persona, _ []chat.Message, _ string, g *ai.Guidance) (*schema.StreamReader[*schema.Message], error) {
	f.mu.Lock()
	f.guidances = append(f.guidances, g)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	msgs := make([]*schema.Message, 0, len(f.chunks))
	for _, c := range f.chunks {
		msgs = append(msgs, schema.AssistantMessage(c, nil))
	}
	return schema.StreamReaderFromArray(msgs), nil
}

func (f *fakeResponder) StreamingEnabled() bool { return f.streaming }

type fixture struct {
	svc  *conversation.Service
	agg  *aggregator.Service
	chat *chatsvc.Service
}

func newFixture(responder conversation.Responder) fixture {
	chats := chatsvc.NewService()
	agg := aggregator.New()
	svc := conversation.NewService(chats, persona.NewMemoryStore(persona.Seed()), agg, nil, responder)
	return fixture{svc: svc, agg: agg, chat: chats}
}

func startSession(t *testing.T, f fixture) chat.Session {
	t.Helper()
	session, _, err := f.svc.StartSession(context.Background(), "")
	if err != nil {
		t.Fatalf("StartSession err: %v", err)
	}
	return session
}

func TestStartSessionOpensAnalytics(t *testing.T) {
	f := newFixture(nil)
	session, p, err := f.svc.StartSession(context.Background(), "")
	if err != nil {
		t.Fatalf("StartSession err: %v", err)
	}
	if p.ID != persona.DefaultID {
		t.Fatalf("expected default persona, got %s", p.ID)
	}

	status, err := f.agg.Status(session.ID)
	if err != nil || status != aggregator.StatusActive {
		t.Fatalf("expected active analytics session, got %s (%v)", status, err)
	}

	transcript, _ := f.svc.Transcript(context.Background(), session.ID)
	if len(transcript) != 1 || transcript[0].Content != p.OpeningLine {
		t.Fatalf("expected opening line in transcript, got %+v", transcript)
	}

	if _, _, err := f.svc.StartSession(context.Background(), "nobody"); !errors.Is(err, conversation.ErrPersonaLookup) {
		t.Fatalf("expected ErrPersonaLookup, got %v", err)
	}
}

func TestReplyWithoutResponderUsesFallback(t *testing.T) {
	f := newFixture(nil)
	session := startSession(t, f)
	ctx := context.Background()

	first, err := f.svc.Reply(ctx, session.ID, "I feel sad and lonely")
	if err != nil {
		t.Fatalf("Reply err: %v", err)
	}
	if first.Result.Category != emotion.Negative {
		t.Fatalf("expected negative sentiment, got %+v", first.Result)
	}
	if first.ReplySource != conversation.ReplyFallback {
		t.Fatalf("expected fallback reply, got %s", first.ReplySource)
	}
	if first.Assistant.Content != ai.FallbackReply(emotion.Negative, 0) {
		t.Fatalf("unexpected reply %q", first.Assistant.Content)
	}
	if first.User.Sentiment != string(emotion.Negative) {
		t.Fatalf("user message should carry sentiment, got %q", first.User.Sentiment)
	}
	if !first.Summary.HasData || first.Summary.Total != 1 || first.Summary.Percentages.Negative != 100 {
		t.Fatalf("unexpected summary %+v", first.Summary)
	}

	second, err := f.svc.Reply(ctx, session.ID, "Still sad")
	if err != nil {
		t.Fatalf("Reply err: %v", err)
	}
	if second.Assistant.Content == first.Assistant.Content {
		t.Fatalf("expected a different canned reply on the next turn")
	}
	if second.Summary.Total != 2 {
		t.Fatalf("expected 2 observations, got %d", second.Summary.Total)
	}
}

func TestReplyUsesResponder(t *testing.T) {
	responder := &fakeResponder{reply: "  That sounds wonderful.  "}
	f := newFixture(responder)
	session := startSession(t, f)

	turn, err := f.svc.Reply(context.Background(), session.ID, "I feel great and happy")
	if err != nil {
		t.Fatalf("Reply err: %v", err)
	}
	if turn.ReplySource != conversation.ReplyLLM || turn.Assistant.Content != "That sounds wonderful." {
		t.Fatalf("unexpected turn %+v", turn)
	}

	g := responder.guidances[0]
	if g.Result.Category != emotion.Positive {
		t.Fatalf("guidance should carry the sentiment, got %+v", g.Result)
	}
	if g.Summary == nil || !g.Summary.HasData {
		t.Fatalf("guidance should carry the current summary")
	}
}

func TestReplyFallsBackWhenResponderFails(t *testing.T) {
	f := newFixture(&fakeResponder{err: errors.New("model down")})
	session := startSession(t, f)

	turn, err := f.svc.Reply(context.Background(), session.ID, "ok")
	if err != nil {
		t.Fatalf("Reply err: %v", err)
	}
	if turn.ReplySource != conversation.ReplyFallback {
		t.Fatalf("expected fallback, got %s", turn.ReplySource)
	}
}

func TestReplyValidation(t *testing.T) {
	f := newFixture(nil)
	session := startSession(t, f)

	if _, err := f.svc.Reply(context.Background(), session.ID, "   "); !errors.Is(err, conversation.ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if _, err := f.svc.Reply(context.Background(), "missing", "hi"); !errors.Is(err, chatsvc.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestStreamForwardsChunks(t *testing.T) {
	f := newFixture(&fakeResponder{streaming: true, chunks: []string{"Take ", "a slow ", "breath."}})
	session := startSession(t, f)

	var deltas []string
	turn, err := f.svc.Stream(context.Background(), session.ID, "I'm anxious", func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream err: %v", err)
	}
	if len(deltas) != 3 {
		t.Fatalf("expected 3 deltas, got %v", deltas)
	}
	if turn.Assistant.Content != "Take a slow breath." || turn.ReplySource != conversation.ReplyLLM {
		t.Fatalf("unexpected turn %+v", turn)
	}
}

func TestStreamWithoutStreamingSendsOneDelta(t *testing.T) {
	f := newFixture(nil)
	session := startSession(t, f)

	var deltas []string
	turn, err := f.svc.Stream(context.Background(), session.ID, "hello", func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream err: %v", err)
	}
	if len(deltas) != 1 || deltas[0] != turn.Assistant.Content {
		t.Fatalf("expected a single delta matching the reply, got %v", deltas)
	}
}

func TestStreamStopsWhenDeliveryFails(t *testing.T) {
	f := newFixture(&fakeResponder{streaming: true, chunks: []string{"a", "b"}})
	session := startSession(t, f)

	boom := errors.New("client gone")
	_, err := f.svc.Stream(context.Background(), session.ID, "hello", func(string) error { return boom })
	if err == nil || !strings.Contains(err.Error(), "client gone") {
		t.Fatalf("expected delivery error, got %v", err)
	}
}

func TestCheckIn(t *testing.T) {
	f := newFixture(nil)
	session := startSession(t, f)

	turn, err := f.svc.CheckIn(context.Background(), session.ID, "Great")
	if err != nil {
		t.Fatalf("CheckIn err: %v", err)
	}
	if turn.User.Content != "I'm feeling great today!" || turn.Result.Category != emotion.Positive {
		t.Fatalf("unexpected check-in turn %+v", turn)
	}

	if _, err := f.svc.CheckIn(context.Background(), session.ID, "meh"); !errors.Is(err, conversation.ErrUnknownMood) {
		t.Fatalf("expected ErrUnknownMood, got %v", err)
	}
}

func TestResetDiscardsAnalytics(t *testing.T) {
	f := newFixture(nil)
	session := startSession(t, f)
	ctx := context.Background()

	if _, err := f.svc.Reply(ctx, session.ID, "I feel sad"); err != nil {
		t.Fatalf("Reply err: %v", err)
	}
	if err := f.svc.Reset(ctx, session.ID); err != nil {
		t.Fatalf("Reset err: %v", err)
	}

	status, _ := f.agg.Status(session.ID)
	if status != aggregator.StatusDiscarded {
		t.Fatalf("expected discarded analytics, got %s", status)
	}
	summary, err := f.agg.Summarize(session.ID)
	if err != nil || summary.HasData {
		t.Fatalf("expected no-data summary after reset, got %+v (%v)", summary, err)
	}
	if _, err := f.svc.Transcript(ctx, session.ID); !errors.Is(err, chatsvc.ErrSessionNotFound) {
		t.Fatalf("expected transcript to be gone, got %v", err)
	}
}

func TestReplyAfterAnalyticsDiscarded(t *testing.T) {
	f := newFixture(nil)
	session := startSession(t, f)

	if err := f.agg.Discard(session.ID); err != nil {
		t.Fatalf("Discard err: %v", err)
	}

	turn, err := f.svc.Reply(context.Background(), session.ID, "I feel good")
	if err != nil {
		t.Fatalf("Reply err: %v", err)
	}
	if turn.Summary.HasData {
		t.Fatalf("discarded analytics must stay empty, got %+v", turn.Summary)
	}
}
