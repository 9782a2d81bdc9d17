package emotion

import (
	"math/rand"
	"sync"

	model "github.com/zhouzirui/mindful/backend/internal/model/emotion"
)

var simulatedFaceLabels = []string{"neutral", "happy", "sad", "anxious", "stressed"}

// Simulator produces plausible voice and face payloads from a seeded random source.
// It stands in for real capture and inference when no device or model is present.
type Simulator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSimulator returns a Simulator; the same seed yields the same sequence.
func NewSimulator(seed int64) *Simulator {
	return &Simulator{rnd: rand.New(rand.NewSource(seed))}
}

// Voice returns prosody features plus emotional markers normalized to percentages.
func (s *Simulator) Voice() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	metrics := map[string]float64{
		"speechRate":      s.rnd.Float64()*5 + 2,
		"pauseFrequency":  s.rnd.Float64() * 10,
		"toneVariability": s.rnd.Float64() * 100,
		VoiceStress:       s.rnd.Float64(),
	}
	markers := normalizePercent(map[string]float64{
		VoicePositive: s.rnd.Float64() * 100,
		VoiceNegative: s.rnd.Float64() * 100,
		VoiceNeutral:  s.rnd.Float64() * 100,
	})
	for k, v := range markers {
		metrics[k] = v
	}
	return metrics
}

// Face returns a confidence distribution over expression labels, in percent.
func (s *Simulator) Face() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw := make(map[string]float64, len(simulatedFaceLabels))
	for _, label := range simulatedFaceLabels {
		raw[label] = s.rnd.Float64()
	}
	return normalizePercent(raw)
}

// Sample builds a classifier input for source; text samples carry no metrics.
func (s *Simulator) Sample(source model.Source) Input {
	switch source {
	case model.SourceVoice:
		return Input{Source: source, Metrics: s.Voice()}
	case model.SourceFace:
		return Input{Source: source, Metrics: s.Face()}
	default:
		return Input{Source: source}
	}
}

func normalizePercent(values map[string]float64) map[string]float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	out := make(map[string]float64, len(values))
	for k, v := range values {
		if total == 0 {
			out[k] = 0
			continue
		}
		out[k] = v / total * 100
	}
	return out
}
