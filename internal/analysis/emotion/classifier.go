package emotion

import (
	"context"
	"errors"
	"fmt"

	model "github.com/zhouzirui/mindful/backend/internal/model/emotion"
)

// ErrUnsupportedSource is returned when a classifier is asked about an unknown modality.
var ErrUnsupportedSource = errors.New("unsupported source")

// Input is what a classifier sees for one modality sample.
type Input struct {
	Source  model.Source
	Text    string
	Metrics map[string]float64
}

// Classifier maps a modality sample onto a sentiment category.
type Classifier interface {
	Classify(ctx context.Context, in Input) (model.Result, error)
}

// ClassifierFunc adapts a plain function to Classifier.
type ClassifierFunc func(ctx context.Context, in Input) (model.Result, error)

// Classify implements Classifier.
func (f ClassifierFunc) Classify(ctx context.Context, in Input) (model.Result, error) {
	return f(ctx, in)
}

// Heuristic classifies every modality with local rules and never touches the network.
type Heuristic struct{}

// NewHeuristic returns the default rule-based classifier.
func NewHeuristic() Heuristic {
	return Heuristic{}
}

// Classify implements Classifier.
func (Heuristic) Classify(_ context.Context, in Input) (model.Result, error) {
	switch in.Source {
	case model.SourceText:
		return AnalyzeText(in.Text), nil
	case model.SourceVoice:
		return AnalyzeVoice(in.Metrics), nil
	case model.SourceFace:
		if len(in.Metrics) == 0 && in.Text != "" {
			return AnalyzeFaceLabel(in.Text), nil
		}
		return AnalyzeFace(in.Metrics), nil
	default:
		return model.Result{}, fmt.Errorf("%w: %q", ErrUnsupportedSource, in.Source)
	}
}
