package ai

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/zhouzirui/mindful/backend/internal/config"
	"github.com/zhouzirui/mindful/backend/internal/model/chat"
	"github.com/zhouzirui/mindful/backend/internal/model/emotion"
	"github.com/zhouzirui/mindful/backend/internal/model/persona"
)

type echoModel struct {
	last []*schema.Message
}

func (m *echoModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.last = input
	return schema.AssistantMessage("I'm here with you.", nil), nil
}

func (m *echoModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.last = input
	return schema.StreamReaderFromArray([]*schema.Message{
		schema.AssistantMessage("I'm here ", nil),
		schema.AssistantMessage("with you.", nil),
	}), nil
}

func (m *echoModel) BindTools([]*schema.ToolInfo) error { return nil }

func defaultPersona(t *testing.T) *persona.Persona {
	t.Helper()
	p, ok := persona.NewMemoryStore(persona.Seed()).FindByID(persona.DefaultID)
	if !ok {
		t.Fatalf("default persona missing")
	}
	return &p
}

func TestGenerateResponseBuildsPrompt(t *testing.T) {
	chatModel := &echoModel{}
	svc, err := NewServiceWithModel(context.Background(), chatModel, config.AIConfig{HistoryLimit: 2})
	if err != nil {
		t.Fatalf("NewServiceWithModel err: %v", err)
	}

	history := []chat.Message{
		{Sender: chat.SenderUser, Content: "first"},
		{Sender: chat.SenderAssistant, Content: "second"},
		{Sender: chat.SenderUser, Content: "third"},
	}
	summary := emotion.Summary{
		HasData:     true,
		Total:       3,
		Percentages: emotion.Percentages{Negative: 66.7, Positive: 33.3},
		RiskLevel:   emotion.RiskModerate,
		Sources:     emotion.SourceCounts{Text: 2, Face: 1},
	}
	guidance := &Guidance{Result: emotion.Result{Category: emotion.Negative, Confidence: 0.8}, Summary: &summary}

	resp, err := svc.GenerateResponse(context.Background(), "s1", defaultPersona(t), history, "I feel stuck", guidance)
	if err != nil {
		t.Fatalf("GenerateResponse err: %v", err)
	}
	if resp.Content != "I'm here with you." {
		t.Fatalf("unexpected reply %q", resp.Content)
	}

	// system + two history messages + query
	if len(chatModel.last) != 4 {
		t.Fatalf("expected 4 prompt messages, got %d", len(chatModel.last))
	}
	system := chatModel.last[0].Content
	if !strings.Contains(system, "MindfulAI") {
		t.Fatalf("system prompt should name the persona: %s", system)
	}
	if !strings.Contains(system, "low or stressed") || !strings.Contains(system, "mental health professional") {
		t.Fatalf("system prompt should carry the emotion signals: %s", system)
	}
	if chatModel.last[1].Content != "second" || chatModel.last[3].Content != "I feel stuck" {
		t.Fatalf("unexpected history window: %+v", chatModel.last)
	}
}

func TestStreamResponse(t *testing.T) {
	chatModel := &echoModel{}

	disabled, _ := NewServiceWithModel(context.Background(), chatModel, config.AIConfig{})
	if _, err := disabled.StreamResponse(context.Background(), defaultPersona(t), nil, "hi", nil); err == nil {
		t.Fatalf("expected error when streaming is disabled")
	}

	svc, _ := NewServiceWithModel(context.Background(), chatModel, config.AIConfig{StreamResponse: true})
	stream, err := svc.StreamResponse(context.Background(), defaultPersona(t), nil, "hi", nil)
	if err != nil {
		t.Fatalf("StreamResponse err: %v", err)
	}
	defer stream.Close()

	var builder strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Recv err: %v", err)
		}
		builder.WriteString(chunk.Content)
	}
	if builder.String() != "I'm here with you." {
		t.Fatalf("unexpected streamed reply %q", builder.String())
	}
}

func TestBuildSystemPromptUnknownPersona(t *testing.T) {
	prompt := NewPersonaPromptManager().BuildSystemPrompt(&persona.Persona{ID: "custom", Name: "Sam", Title: "listener", Tone: "gentle"})
	if !strings.Contains(prompt, "You are Sam") {
		t.Fatalf("expected basic prompt for unknown persona, got %s", prompt)
	}
}

func TestFallbackReplyRotates(t *testing.T) {
	first := FallbackReply(emotion.Negative, 0)
	second := FallbackReply(emotion.Negative, 1)
	if first == second {
		t.Fatalf("expected consecutive turns to rotate replies")
	}
	if FallbackReply(emotion.Negative, 3) != first {
		t.Fatalf("expected rotation to wrap around")
	}
	if FallbackReply(emotion.Category("unknown"), 0) != FallbackReply(emotion.Neutral, 0) {
		t.Fatalf("unknown category should use neutral replies")
	}
}
