package emotion

import (
	"sort"
	"strings"

	model "github.com/zhouzirui/mindful/backend/internal/model/emotion"
)

var faceLabels = map[string]model.Category{
	"happy":     model.Positive,
	"surprised": model.Positive,
	"neutral":   model.Neutral,
	"sad":       model.Negative,
	"angry":     model.Negative,
	"fearful":   model.Negative,
	"disgusted": model.Negative,
	"anxious":   model.Negative,
	"stressed":  model.Negative,
	"worried":   model.Negative,
}

// FaceLabels returns the facial expression labels the classifier understands, sorted.
func FaceLabels() []string {
	labels := make([]string, 0, len(faceLabels))
	for label := range faceLabels {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// AnalyzeFace takes a confidence distribution over expression labels and classifies
// by its dominant label. Unknown labels are ignored.
func AnalyzeFace(confidences map[string]float64) model.Result {
	var dominantLabel string
	var dominantValue, total float64

	labels := make([]string, 0, len(confidences))
	for label := range confidences {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		value := nonNegative(confidences[label])
		if _, ok := faceLabels[strings.ToLower(label)]; !ok {
			continue
		}
		total += value
		if value > dominantValue {
			dominantLabel, dominantValue = label, value
		}
	}

	if dominantLabel == "" || total == 0 {
		return model.Result{Category: model.Neutral, Confidence: 0.3, Reason: "no recognizable expression"}
	}

	return model.Result{
		Category:   faceLabels[strings.ToLower(dominantLabel)],
		Confidence: dominantValue / total,
		Reason:     "dominant expression " + strings.ToLower(dominantLabel),
	}
}

// AnalyzeFaceLabel classifies a single dominant expression label.
func AnalyzeFaceLabel(label string) model.Result {
	normalized := strings.ToLower(strings.TrimSpace(label))
	category, ok := faceLabels[normalized]
	if !ok {
		return model.Result{Category: model.Neutral, Confidence: 0.3, Reason: "unknown expression " + normalized}
	}
	return model.Result{Category: category, Confidence: 0.6, Reason: "expression " + normalized}
}
