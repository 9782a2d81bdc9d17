package emotion

import (
	model "github.com/zhouzirui/mindful/backend/internal/model/emotion"
)

// Voice metric keys understood by AnalyzeVoice. Other keys are carried as opaque payload.
const (
	VoicePositive = "positive"
	VoiceNegative = "negative"
	VoiceNeutral  = "neutral"
	VoiceStress   = "stress"
)

// stressThreshold is the stress score (0..1) at which a sample counts as negative
// regardless of its emotional markers.
const stressThreshold = 0.7

// AnalyzeVoice picks the strongest emotional marker of a voice sample.
func AnalyzeVoice(metrics map[string]float64) model.Result {
	if stress, ok := metrics[VoiceStress]; ok && stress >= stressThreshold {
		return model.Result{Category: model.Negative, Confidence: clampUnit(stress), Reason: "high vocal stress"}
	}

	markers := map[model.Category]float64{
		model.Positive: nonNegative(metrics[VoicePositive]),
		model.Negative: nonNegative(metrics[VoiceNegative]),
		model.Neutral:  nonNegative(metrics[VoiceNeutral]),
	}

	total := markers[model.Positive] + markers[model.Negative] + markers[model.Neutral]
	if total == 0 {
		return model.Result{Category: model.Neutral, Confidence: 0.3, Reason: "no emotional markers"}
	}

	best := model.Neutral
	for _, category := range []model.Category{model.Negative, model.Positive} {
		if markers[category] > markers[best] {
			best = category
		}
	}

	return model.Result{
		Category:   best,
		Confidence: markers[best] / total,
		Reason:     "dominant voice marker",
	}
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
