package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/zhouzirui/mindful/backend/internal/config"
	"github.com/zhouzirui/mindful/backend/internal/model/chat"
	"github.com/zhouzirui/mindful/backend/internal/model/emotion"
	"github.com/zhouzirui/mindful/backend/internal/model/persona"
)

// Guidance carries what the analysis knows about the user into the reply prompt.
type Guidance struct {
	Result  emotion.Result
	Summary *emotion.Summary
}

// Service encapsulates AI-powered chat functionality
type Service struct {
	chatModel model.ChatModel
	prompts   *PersonaPromptManager
	cfg       config.AIConfig
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates a new AI service instance backed by the configured Ark model.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, cfg)
}

// NewServiceWithModel builds the reply chain around an existing chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.ChatModel, cfg config.AIConfig) (*Service, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	if cfg.HistoryLimit < 1 {
		cfg.HistoryLimit = 10
	}

	return &Service{
		chatModel: chatModel,
		prompts:   NewPersonaPromptManager(),
		cfg:       cfg,
		chain:     runnable,
	}, nil
}

// StreamingEnabled 指示是否开启 SSE 流式输出。
func (s *Service) StreamingEnabled() bool {
	return s.cfg.StreamResponse
}

// GenerateResponse generates a reply for one user turn.
func (s *Service) GenerateResponse(ctx context.Context, sessionID string, p *persona.Persona, messages []chat.Message, userMessage string, guidance *Guidance) (*schema.Message, error) {
	input := s.buildChainInput(p, messages, userMessage, guidance)

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to run AI chain: %w", err)
	}

	log.Printf("[ai] generated response for session=%s, persona=%s, length=%d", sessionID, personaID(p), len(response.Content))
	return response, nil
}

// StreamResponse streams AI response chunks via the configured chain.
func (s *Service) StreamResponse(ctx context.Context, p *persona.Persona, messages []chat.Message, userMessage string, guidance *Guidance) (*schema.StreamReader[*schema.Message], error) {
	if !s.StreamingEnabled() {
		return nil, fmt.Errorf("streaming disabled in configuration")
	}

	input := s.buildChainInput(p, messages, userMessage, guidance)

	stream, err := s.chain.Stream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to stream AI chain output: %w", err)
	}

	return stream, nil
}

// GetChatModel 返回底层的聊天模型，供情绪分类器复用。
func (s *Service) GetChatModel() model.ChatModel {
	return s.chatModel
}

func (s *Service) buildChainInput(p *persona.Persona, messages []chat.Message, userMessage string, guidance *Guidance) map[string]any {
	return map[string]any{
		"system":  s.buildSystemPrompt(p, guidance),
		"history": s.buildHistoryMessages(messages),
		"query":   userMessage,
	}
}

func (s *Service) buildSystemPrompt(p *persona.Persona, guidance *Guidance) string {
	base := s.prompts.BuildSystemPrompt(p)
	if guidance == nil || guidance.Result.Category == "" {
		return base
	}

	var builder strings.Builder
	builder.WriteString(base)
	builder.WriteString("\n\nEmotion signals for the latest message: ")
	builder.WriteString(describeSentiment(guidance.Result.Category))
	builder.WriteString(fmt.Sprintf(" (confidence %.2f).", guidance.Result.Confidence))

	if sum := guidance.Summary; sum != nil && sum.HasData {
		builder.WriteString(fmt.Sprintf("\nAcross this session: %.0f%% positive, %.0f%% negative, %.0f%% neutral over %d observations",
			sum.Percentages.Positive, sum.Percentages.Negative, sum.Percentages.Neutral, sum.Total))
		if sum.Sources.Face > 0 || sum.Sources.Voice > 0 {
			builder.WriteString(fmt.Sprintf(" (including %d facial and %d voice readings)", sum.Sources.Face, sum.Sources.Voice))
		}
		builder.WriteString(".")
		if sum.RiskLevel == emotion.RiskModerate || sum.RiskLevel == emotion.RiskHigh {
			builder.WriteString("\nThe user has shown sustained low mood. Gently mention that talking to a mental health professional can help.")
		}
	}

	return builder.String()
}

func (s *Service) buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > s.cfg.HistoryLimit {
		startIdx = len(messages) - s.cfg.HistoryLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch msg.Sender {
		case chat.SenderUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.SenderAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}

	return history
}

func describeSentiment(category emotion.Category) string {
	switch category {
	case emotion.Positive:
		return "the user sounds positive, keep the reply warm and ask what is going well"
	case emotion.Negative:
		return "the user sounds low or stressed, slow down and respond with extra empathy"
	case emotion.Neutral:
		return "the user sounds neutral, keep a calm and open tone"
	default:
		return string(category)
	}
}

func personaID(p *persona.Persona) string {
	if p == nil {
		return ""
	}
	return p.ID
}
