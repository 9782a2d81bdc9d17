package emotion

import (
	"fmt"
	"strings"
	"time"
)

// Source identifies the modality an observation came from.
type Source string

const (
	SourceText  Source = "text"
	SourceVoice Source = "voice"
	SourceFace  Source = "face"
)

// Sources lists every modality in display order.
var Sources = []Source{SourceText, SourceVoice, SourceFace}

// Category is the sentiment class assigned to an observation.
type Category string

const (
	Positive Category = "positive"
	Negative Category = "negative"
	Neutral  Category = "neutral"
)

// Categories lists every category in display order.
var Categories = []Category{Positive, Negative, Neutral}

// Valid reports whether s is one of the known modalities.
func (s Source) Valid() bool {
	switch s {
	case SourceText, SourceVoice, SourceFace:
		return true
	default:
		return false
	}
}

// Valid reports whether c is one of the three known categories.
func (c Category) Valid() bool {
	switch c {
	case Positive, Negative, Neutral:
		return true
	default:
		return false
	}
}

// ParseSource normalizes raw input into a Source.
func ParseSource(raw string) (Source, error) {
	s := Source(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown source %q", raw)
	}
	return s, nil
}

// ParseCategory normalizes raw input into a Category.
func ParseCategory(raw string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", raw)
	}
	return c, nil
}

// Observation is one timestamped, categorized sample recorded for a session.
type Observation struct {
	ID         string             `json:"id"`
	SessionID  string             `json:"sessionId"`
	Seq        uint64             `json:"seq"`
	Timestamp  time.Time          `json:"timestamp"`
	Source     Source             `json:"source"`
	Category   Category           `json:"category"`
	RawMetrics map[string]float64 `json:"rawMetrics,omitempty"`
}

// Clone returns a deep copy so callers never share the metrics map.
func (o Observation) Clone() Observation {
	o.RawMetrics = CopyMetrics(o.RawMetrics)
	return o
}

// CopyMetrics returns an independent copy of m, or nil when m is empty.
func CopyMetrics(m map[string]float64) map[string]float64 {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
