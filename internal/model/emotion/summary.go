package emotion

import "time"

// RiskLevel is a coarse reading of the negative share of a session.
type RiskLevel string

const (
	RiskNone     RiskLevel = "none"
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
)

// Percentages holds the share of each category, 0..100.
type Percentages struct {
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
}

// Of returns the percentage for a single category.
func (p Percentages) Of(c Category) float64 {
	switch c {
	case Positive:
		return p.Positive
	case Negative:
		return p.Negative
	case Neutral:
		return p.Neutral
	default:
		return 0
	}
}

// Indicators are the derived scores shown as dashboard bars, each within [0, 100].
type Indicators struct {
	AnxietyPatterns   float64 `json:"anxietyPatterns"`
	DepressionSignals float64 `json:"depressionSignals"`
	SleepQuality      float64 `json:"sleepQuality"`
	SocialEngagement  float64 `json:"socialEngagement"`
}

// SourceCounts counts observations per modality.
type SourceCounts struct {
	Text  int `json:"text"`
	Voice int `json:"voice"`
	Face  int `json:"face"`
}

// Summary is derived from a session's observations on every read and never stored.
type Summary struct {
	SessionID       string       `json:"sessionId"`
	HasData         bool         `json:"hasData"`
	Total           int          `json:"total"`
	Percentages     Percentages  `json:"categoryPercentages"`
	Indicators      Indicators   `json:"indicators"`
	RiskLevel       RiskLevel    `json:"riskLevel"`
	Dominant        Category     `json:"dominant,omitempty"`
	Sources         SourceCounts `json:"sources"`
	FirstObservedAt *time.Time   `json:"firstObservedAt,omitempty"`
	LastObservedAt  *time.Time   `json:"lastObservedAt,omitempty"`
	Recommendations []string     `json:"recommendations,omitempty"`
}

// Empty returns the "no data" summary for a session.
func Empty(sessionID string) Summary {
	return Summary{SessionID: sessionID, RiskLevel: RiskNone}
}

// TimelineBucket aggregates observations that fall within one fixed time window.
type TimelineBucket struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Total     int       `json:"total"`
	Positive  int       `json:"positive"`
	Negative  int       `json:"negative"`
	Neutral   int       `json:"neutral"`
	MoodScore float64   `json:"moodScore"`
}

// Result is what a classifier returns for one input.
type Result struct {
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
	Reason     string   `json:"reason,omitempty"`
}
