package classify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"

	analysis "github.com/zhouzirui/mindful/backend/internal/analysis/emotion"
	"github.com/zhouzirui/mindful/backend/internal/config"
	emotion "github.com/zhouzirui/mindful/backend/internal/model/emotion"
)

// Provider names reported to the recorder.
const (
	ProviderHeuristic = config.ProviderHeuristic
	ProviderArk       = config.ProviderArk
	ProviderOpenAI    = config.ProviderOpenAI
)

// Outcomes reported to the recorder.
const (
	OutcomeOK       = "ok"
	OutcomeFallback = "fallback"
)

const defaultTimeout = 10 * time.Second

// Recorder receives one callback per classification.
type Recorder interface {
	ObserveClassification(provider, outcome string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveClassification(string, string, time.Duration) {}

// Options tune the remote classifiers.
type Options struct {
	Fallback analysis.Classifier
	Recorder Recorder
	Timeout  time.Duration
}

func (o Options) withDefaults() Options {
	if o.Fallback == nil {
		o.Fallback = analysis.NewHeuristic()
	}
	if o.Recorder == nil {
		o.Recorder = nopRecorder{}
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return o
}

// New picks the classifier named by cfg.Provider. Providers whose credentials are
// missing degrade to the heuristic; the returned name is the provider actually used.
func New(ctx context.Context, cfg config.ClassifierConfig, chatModel model.ChatModel, recorder Recorder) (analysis.Classifier, string, error) {
	opts := Options{Recorder: recorder, Timeout: cfg.Timeout}

	switch cfg.Provider {
	case ProviderArk:
		if chatModel == nil {
			log.Printf("[classify] ark provider requested without a chat model, using heuristic")
			return newHeuristic(opts), ProviderHeuristic, nil
		}
		llm, err := NewLLM(ctx, chatModel, opts)
		if err != nil {
			return nil, "", err
		}
		return llm, ProviderArk, nil
	case ProviderOpenAI:
		if !cfg.OpenAIEnabled() {
			log.Printf("[classify] openai provider requested without OPENAI_API_KEY, using heuristic")
			return newHeuristic(opts), ProviderHeuristic, nil
		}
		return NewOpenAI(OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
		}, opts), ProviderOpenAI, nil
	case ProviderHeuristic, "":
		return newHeuristic(opts), ProviderHeuristic, nil
	default:
		return nil, "", fmt.Errorf("unknown classifier provider %q", cfg.Provider)
	}
}

// newHeuristic wraps the local rules so their latency is recorded like the remote ones.
func newHeuristic(opts Options) analysis.Classifier {
	opts = opts.withDefaults()
	heuristic := analysis.NewHeuristic()
	return analysis.ClassifierFunc(func(ctx context.Context, in analysis.Input) (emotion.Result, error) {
		start := time.Now()
		res, err := heuristic.Classify(ctx, in)
		outcome := OutcomeOK
		if err != nil {
			outcome = "error"
		}
		opts.Recorder.ObserveClassification(ProviderHeuristic, outcome, time.Since(start))
		return res, err
	})
}

// parseCategoryAnswer maps a free-form model answer onto a category by substring.
// Negative wins when an answer names several categories.
func parseCategoryAnswer(answer string) (emotion.Category, bool) {
	lower := strings.ToLower(answer)
	switch {
	case strings.Contains(lower, string(emotion.Negative)):
		return emotion.Negative, true
	case strings.Contains(lower, string(emotion.Positive)):
		return emotion.Positive, true
	case strings.Contains(lower, string(emotion.Neutral)):
		return emotion.Neutral, true
	default:
		return "", false
	}
}

func clampConfidence(v float64) float64 {
	if v <= 0 {
		return 0.6
	}
	if v > 1 {
		return 1
	}
	return v
}
