// Package summary reduces a session's observations into the dashboard view.
// Everything here is a pure function of its inputs.
package summary

import (
	"sort"
	"time"

	"github.com/zhouzirui/mindful/backend/internal/model/emotion"
)

const (
	moderateRiskThreshold = 60.0
	highRiskThreshold     = 80.0
)

var recommendationsByRisk = map[emotion.RiskLevel][]string{
	emotion.RiskLow: {
		"Continue daily mindfulness practice",
		"Maintain regular sleep schedule",
		"Continue your current social activities",
	},
	emotion.RiskModerate: {
		"Try 5-minute breathing exercises before meetings",
		"Consider journaling before bed to process daily thoughts",
		"Practice mindfulness meditation for 10 minutes daily",
	},
	emotion.RiskHigh: {
		"Schedule more outdoor activities and increase physical exercise",
		"Practice mindfulness meditation for 10 minutes daily",
		"Consider talking to a mental health professional",
	},
}

// Canonical returns a copy of observations ordered by timestamp, then record sequence.
func Canonical(observations []emotion.Observation) []emotion.Observation {
	sorted := make([]emotion.Observation, len(observations))
	for i, obs := range observations {
		sorted[i] = obs.Clone()
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].Seq < sorted[j].Seq
	})
	return sorted
}

// Reduce builds the summary for sessionID. Zero observations yield emotion.Empty.
func Reduce(sessionID string, observations []emotion.Observation) emotion.Summary {
	if len(observations) == 0 {
		return emotion.Empty(sessionID)
	}

	var positive, negative, neutral int
	var sources emotion.SourceCounts
	first := observations[0].Timestamp
	last := observations[0].Timestamp

	for _, obs := range observations {
		switch obs.Category {
		case emotion.Positive:
			positive++
		case emotion.Negative:
			negative++
		case emotion.Neutral:
			neutral++
		}
		switch obs.Source {
		case emotion.SourceText:
			sources.Text++
		case emotion.SourceVoice:
			sources.Voice++
		case emotion.SourceFace:
			sources.Face++
		}
		if obs.Timestamp.Before(first) {
			first = obs.Timestamp
		}
		if obs.Timestamp.After(last) {
			last = obs.Timestamp
		}
	}

	total := len(observations)
	pct := emotion.Percentages{
		Positive: percent(positive, total),
		Negative: percent(negative, total),
		Neutral:  percent(neutral, total),
	}
	risk := Risk(pct.Negative)

	return emotion.Summary{
		SessionID:       sessionID,
		HasData:         true,
		Total:           total,
		Percentages:     pct,
		Indicators:      ComputeIndicators(pct),
		RiskLevel:       risk,
		Dominant:        dominant(positive, negative, neutral),
		Sources:         sources,
		FirstObservedAt: &first,
		LastObservedAt:  &last,
		Recommendations: append([]string(nil), recommendationsByRisk[risk]...),
	}
}

// ComputeIndicators applies the fixed linear weights and clamps every score to [0, 100].
func ComputeIndicators(p emotion.Percentages) emotion.Indicators {
	return emotion.Indicators{
		AnxietyPatterns:   clamp(25 + p.Negative*0.5),
		DepressionSignals: clamp(15 + p.Negative*0.6),
		SleepQuality:      clamp(60 + p.Positive*0.3 - p.Negative*0.2),
		SocialEngagement:  clamp(70 + p.Positive*0.3 - p.Negative*0.1),
	}
}

// Risk maps the negative percentage onto a risk level.
func Risk(negative float64) emotion.RiskLevel {
	switch {
	case negative > highRiskThreshold:
		return emotion.RiskHigh
	case negative > moderateRiskThreshold:
		return emotion.RiskModerate
	default:
		return emotion.RiskLow
	}
}

// Timeline groups observations into fixed windows of width bucket, oldest first.
func Timeline(observations []emotion.Observation, bucket time.Duration) []emotion.TimelineBucket {
	if len(observations) == 0 || bucket <= 0 {
		return nil
	}

	byStart := make(map[int64]*emotion.TimelineBucket)
	for _, obs := range observations {
		start := obs.Timestamp.UTC().Truncate(bucket)
		key := start.UnixNano()
		b, ok := byStart[key]
		if !ok {
			b = &emotion.TimelineBucket{Start: start, End: start.Add(bucket)}
			byStart[key] = b
		}
		b.Total++
		switch obs.Category {
		case emotion.Positive:
			b.Positive++
		case emotion.Negative:
			b.Negative++
		case emotion.Neutral:
			b.Neutral++
		}
	}

	buckets := make([]emotion.TimelineBucket, 0, len(byStart))
	for _, b := range byStart {
		b.MoodScore = percent(b.Positive, b.Total) - percent(b.Negative, b.Total)
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Start.Before(buckets[j].Start)
	})
	return buckets
}

func percent(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}

// dominant breaks ties toward negative, then neutral, so concern is never understated.
func dominant(positive, negative, neutral int) emotion.Category {
	best := emotion.Negative
	bestCount := negative
	if neutral > bestCount {
		best, bestCount = emotion.Neutral, neutral
	}
	if positive > bestCount {
		best = emotion.Positive
	}
	return best
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
