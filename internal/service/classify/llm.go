package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	analysis "github.com/zhouzirui/mindful/backend/internal/analysis/emotion"
	emotion "github.com/zhouzirui/mindful/backend/internal/model/emotion"
)

// LLM classifies text through an eino prompt + chat model chain and falls back to
// local rules for other modalities or whenever the model misbehaves.
type LLM struct {
	runnable compose.Runnable[map[string]any, *schema.Message]
	opts     Options
}

// NewLLM compiles the classification chain around chatModel.
func NewLLM(ctx context.Context, chatModel model.ChatModel, opts Options) (*LLM, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(llmSystemPrompt),
		schema.UserMessage(llmUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile sentiment classifier chain: %w", err)
	}

	return &LLM{runnable: runnable, opts: opts.withDefaults()}, nil
}

// Classify implements analysis.Classifier.
func (c *LLM) Classify(ctx context.Context, in analysis.Input) (emotion.Result, error) {
	if in.Source != emotion.SourceText || strings.TrimSpace(in.Text) == "" {
		return c.opts.Fallback.Classify(ctx, in)
	}

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	res, err := c.invoke(callCtx, in.Text)
	if err != nil {
		log.Printf("[classify] ark classifier failed, use fallback: %v", err)
		c.opts.Recorder.ObserveClassification(ProviderArk, OutcomeFallback, time.Since(start))
		return c.opts.Fallback.Classify(ctx, in)
	}

	c.opts.Recorder.ObserveClassification(ProviderArk, OutcomeOK, time.Since(start))
	return res, nil
}

func (c *LLM) invoke(ctx context.Context, text string) (emotion.Result, error) {
	msg, err := c.runnable.Invoke(ctx, map[string]any{
		"user_message": strings.TrimSpace(text),
	})
	if err != nil {
		return emotion.Result{}, err
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return emotion.Result{}, fmt.Errorf("empty classifier output")
	}
	return parseLLMOutput(msg.Content)
}

// parseLLMOutput reads the JSON object out of a model reply. A reply without JSON is
// still accepted when it names a category.
func parseLLMOutput(content string) (emotion.Result, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		category, ok := parseCategoryAnswer(trimmed)
		if !ok {
			return emotion.Result{}, fmt.Errorf("missing json object")
		}
		return emotion.Result{Category: category, Confidence: clampConfidence(0), Reason: "model answer"}, nil
	}

	var payload llmPayload
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &payload); err != nil {
		return emotion.Result{}, err
	}

	category, err := emotion.ParseCategory(payload.Category)
	if err != nil {
		return emotion.Result{}, err
	}

	return emotion.Result{
		Category:   category,
		Confidence: clampConfidence(payload.Confidence),
		Reason:     strings.TrimSpace(payload.Reason),
	}, nil
}

type llmPayload struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

const llmSystemPrompt = "You are a mental health assistant. Classify the sentiment of the user's message as positive, negative or neutral.\nReturn only one JSON object with the fields category (positive/negative/neutral), confidence (a number between 0 and 1) and reason (one short sentence). Do not output anything else."

const llmUserPrompt = "Message:\n{user_message}"
