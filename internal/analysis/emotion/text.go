package emotion

import (
	"math"
	"strings"

	model "github.com/zhouzirui/mindful/backend/internal/model/emotion"
)

var keywordBuckets = map[model.Category][]string{
	model.Negative: {
		"sad", "depressed", "anxious", "worried", "tired", "exhausted", "hopeless", "stress",
		"lonely", "unhappy", "terrible", "awful", "bad", "overwhelmed", "scared", "afraid",
		"angry", "upset", "cry", "hurt", "miserable", "panic", "worthless", "can't sleep",
		"give up", "empty inside",
	},
	model.Positive: {
		"happy", "good", "great", "excellent", "joy", "excited", "peaceful", "calm", "relaxed",
		"wonderful", "grateful", "glad", "better", "hopeful", "proud", "amazing", "thankful",
		"well rested", "motivated",
	},
}

// negators flip the polarity of the keyword that immediately follows them.
var negators = []string{"not ", "n't ", "never ", "no ", "n't feel ", "not feeling ", "not very "}

// AnalyzeText scores text against the keyword buckets. A positive total is positive,
// a negative total is negative and zero (including no hits) is neutral.
func AnalyzeText(text string) model.Result {
	normalized := normalizeText(text)
	if normalized == "" {
		return model.Result{Category: model.Neutral, Confidence: 0.3, Reason: "empty text"}
	}

	score, hits := scoreText(normalized)
	if score > 0 && strings.Contains(text, "!") {
		score++
	}

	switch {
	case score > 0:
		return model.Result{Category: model.Positive, Confidence: confidenceFor(score), Reason: "keyword score positive"}
	case score < 0:
		return model.Result{Category: model.Negative, Confidence: confidenceFor(score), Reason: "keyword score negative"}
	case hits > 0:
		return model.Result{Category: model.Neutral, Confidence: 0.5, Reason: "mixed keywords"}
	default:
		return model.Result{Category: model.Neutral, Confidence: 0.3, Reason: "no sentiment keywords"}
	}
}

func normalizeText(text string) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	normalized = strings.ReplaceAll(normalized, "’", "'")
	return strings.Join(strings.Fields(normalized), " ")
}

func scoreText(normalized string) (score, hits int) {
	for category, keywords := range keywordBuckets {
		sign := 1
		if category == model.Negative {
			sign = -1
		}
		for _, word := range keywords {
			if !containsWord(normalized, word) {
				continue
			}
			hits++
			if negated(normalized, word) {
				score -= sign
				continue
			}
			score += sign
		}
	}
	return score, hits
}

// containsWord matches word only where it starts a word, so "happy" does not hit
// "unhappy" while "stress" still hits "stressed".
func containsWord(normalized, word string) bool {
	offset := 0
	for {
		idx := strings.Index(normalized[offset:], word)
		if idx < 0 {
			return false
		}
		start := offset + idx
		if start == 0 || !isLetter(normalized[start-1]) {
			return true
		}
		offset = start + 1
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || b == '\''
}

func negated(normalized, word string) bool {
	for _, prefix := range negators {
		if strings.Contains(normalized, prefix+word) {
			return true
		}
	}
	return false
}

func confidenceFor(score int) float64 {
	return math.Min(0.95, 0.5+0.15*math.Abs(float64(score)))
}
