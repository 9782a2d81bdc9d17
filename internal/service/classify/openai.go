package classify

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	analysis "github.com/zhouzirui/mindful/backend/internal/analysis/emotion"
	emotion "github.com/zhouzirui/mindful/backend/internal/model/emotion"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-3.5-turbo"
	openAIMaxRetries     = 2
	openAITemperature    = 0.3
	openAIMaxTokens      = 150
)

// OpenAIConfig carries the chat completion endpoint settings.
type OpenAIConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// OpenAI classifies text with a chat completion and maps the answer by substring.
type OpenAI struct {
	client openaigo.Client
	model  string
	opts   Options
}

// NewOpenAI builds the OpenAI backed classifier.
func NewOpenAI(cfg OpenAIConfig, opts Options) *OpenAI {
	opts = opts.withDefaults()

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	modelName := strings.TrimSpace(cfg.Model)
	if modelName == "" {
		modelName = defaultOpenAIModel
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	client := openaigo.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(openAIMaxRetries),
		option.WithRequestTimeout(opts.Timeout),
	)

	return &OpenAI{client: client, model: modelName, opts: opts}
}

// Classify implements analysis.Classifier.
func (c *OpenAI) Classify(ctx context.Context, in analysis.Input) (emotion.Result, error) {
	if in.Source != emotion.SourceText || strings.TrimSpace(in.Text) == "" {
		return c.opts.Fallback.Classify(ctx, in)
	}

	start := time.Now()
	res, err := c.complete(ctx, in.Text)
	if err != nil {
		log.Printf("[classify] openai classifier failed, use fallback: %v", err)
		c.opts.Recorder.ObserveClassification(ProviderOpenAI, OutcomeFallback, time.Since(start))
		return c.opts.Fallback.Classify(ctx, in)
	}

	c.opts.Recorder.ObserveClassification(ProviderOpenAI, OutcomeOK, time.Since(start))
	return res, nil
}

func (c *OpenAI) complete(ctx context.Context, text string) (emotion.Result, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openaigo.ChatCompletionNewParams{
		Model: openaigo.ChatModel(c.model),
		Messages: []openaigo.ChatCompletionMessageParamUnion{
			openaigo.SystemMessage(openAISystemPrompt),
			openaigo.UserMessage(strings.TrimSpace(text)),
		},
		Temperature:         param.NewOpt(openAITemperature),
		MaxCompletionTokens: param.NewOpt[int64](openAIMaxTokens),
	})
	if err != nil {
		return emotion.Result{}, err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return emotion.Result{}, fmt.Errorf("openai returned empty choices")
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	category, ok := parseCategoryAnswer(answer)
	if !ok {
		return emotion.Result{}, fmt.Errorf("unrecognized sentiment answer %q", answer)
	}

	return emotion.Result{Category: category, Confidence: 0.8, Reason: answer}, nil
}

const openAISystemPrompt = "You are a mental health assistant. Analyze the following text and classify the sentiment as 'positive', 'negative', or 'neutral'. Respond with only one word."
