package aggregator

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/mindful/backend/internal/analysis/summary"
	"github.com/zhouzirui/mindful/backend/internal/model/emotion"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidState    = errors.New("invalid session state")
	ErrNotFound        = errors.New("session not found")
)

// Status is the lifecycle state of an aggregation session.
type Status string

const (
	StatusActive    Status = "active"
	StatusDiscarded Status = "discarded"
)

// DefaultTimelineBucket is used when Timeline is called without a bucket width.
const DefaultTimelineBucket = time.Hour

// Observer receives lifecycle events, typically to feed metrics. Calls happen outside
// any session lock.
type Observer interface {
	ObservationRecorded(source emotion.Source, category emotion.Category)
	ObservationRejected(reason string)
	SessionOpened()
	SessionDiscarded()
}

type session struct {
	mu           sync.Mutex
	status       Status
	observations []emotion.Observation
}

// Service keeps per-session observation lists in memory and summarizes them on read.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*session

	seq      atomic.Uint64
	now      func() time.Time
	bucket   time.Duration
	observer Observer
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the timestamp source used by Record.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTimelineBucket sets the default timeline bucket width.
func WithTimelineBucket(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.bucket = d
		}
	}
}

// WithObserver attaches an Observer.
func WithObserver(o Observer) Option {
	return func(s *Service) {
		s.observer = o
	}
}

// New constructs an empty aggregator. One instance is shared by the whole process.
func New(opts ...Option) *Service {
	s := &Service{
		sessions: make(map[string]*session),
		now:      func() time.Time { return time.Now().UTC() },
		bucket:   DefaultTimelineBucket,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open makes sure an active session exists for sessionID.
func (s *Service) Open(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session id is required", ErrInvalidArgument)
	}
	sess, created := s.getOrCreate(sessionID)
	if created {
		s.notifyOpened()
		return nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.status == StatusDiscarded {
		return fmt.Errorf("%w: session %s was discarded", ErrInvalidState, sessionID)
	}
	return nil
}

// Record appends an observation stamped with the current time and returns its id.
func (s *Service) Record(sessionID string, source emotion.Source, category emotion.Category, rawMetrics map[string]float64) (string, error) {
	return s.RecordAt(sessionID, source, category, rawMetrics, time.Time{})
}

// RecordAt is Record with an explicit timestamp; a zero time means now.
func (s *Service) RecordAt(sessionID string, source emotion.Source, category emotion.Category, rawMetrics map[string]float64, at time.Time) (string, error) {
	switch {
	case sessionID == "":
		s.notifyRejected("empty_session")
		return "", fmt.Errorf("%w: session id is required", ErrInvalidArgument)
	case !source.Valid():
		s.notifyRejected("invalid_source")
		return "", fmt.Errorf("%w: unknown source %q", ErrInvalidArgument, source)
	case !category.Valid():
		s.notifyRejected("invalid_category")
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalidArgument, category)
	}

	if at.IsZero() {
		at = s.now()
	}

	sess, created := s.getOrCreate(sessionID)
	if created {
		s.notifyOpened()
	}

	obs := emotion.Observation{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Seq:        s.seq.Add(1),
		Timestamp:  at.UTC(),
		Source:     source,
		Category:   category,
		RawMetrics: emotion.CopyMetrics(rawMetrics),
	}

	sess.mu.Lock()
	if sess.status == StatusDiscarded {
		sess.mu.Unlock()
		s.notifyRejected("discarded")
		return "", fmt.Errorf("%w: session %s was discarded", ErrInvalidState, sessionID)
	}
	sess.observations = append(sess.observations, obs)
	sess.mu.Unlock()

	if s.observer != nil {
		s.observer.ObservationRecorded(source, category)
	}
	return obs.ID, nil
}

// Summarize reduces the session's observations. An unknown session yields the
// no-data summary together with ErrNotFound.
func (s *Service) Summarize(sessionID string) (emotion.Summary, error) {
	observations, err := s.snapshot(sessionID)
	if err != nil {
		return emotion.Empty(sessionID), err
	}
	return summary.Reduce(sessionID, observations), nil
}

// Discard drops every observation of the session and closes it for writes.
func (s *Service) Discard(sessionID string) error {
	sess, ok := s.lookup(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	sess.mu.Lock()
	already := sess.status == StatusDiscarded
	sess.status = StatusDiscarded
	sess.observations = nil
	sess.mu.Unlock()

	if !already && s.observer != nil {
		s.observer.SessionDiscarded()
	}
	return nil
}

// Observations returns the session's observations ordered by timestamp.
func (s *Service) Observations(sessionID string) ([]emotion.Observation, error) {
	return s.snapshot(sessionID)
}

// Timeline buckets the session's observations; bucket <= 0 uses the configured default.
func (s *Service) Timeline(sessionID string, bucket time.Duration) ([]emotion.TimelineBucket, error) {
	observations, err := s.snapshot(sessionID)
	if err != nil {
		return nil, err
	}
	if bucket <= 0 {
		bucket = s.bucket
	}
	return summary.Timeline(observations, bucket), nil
}

// Status reports the lifecycle state of a session.
func (s *Service) Status(sessionID string) (Status, error) {
	sess, ok := s.lookup(sessionID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.status, nil
}

// ActiveCount returns the number of sessions still accepting observations.
func (s *Service) ActiveCount() int {
	s.mu.RLock()
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	count := 0
	for _, sess := range sessions {
		sess.mu.Lock()
		if sess.status == StatusActive {
			count++
		}
		sess.mu.Unlock()
	}
	return count
}

func (s *Service) snapshot(sessionID string) ([]emotion.Observation, error) {
	sess, ok := s.lookup(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	sess.mu.Lock()
	copied := make([]emotion.Observation, len(sess.observations))
	copy(copied, sess.observations)
	sess.mu.Unlock()

	return summary.Canonical(copied), nil
}

func (s *Service) lookup(sessionID string) (*session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	return sess, ok
}

func (s *Service) getOrCreate(sessionID string) (*session, bool) {
	if sess, ok := s.lookup(sessionID); ok {
		return sess, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		return sess, false
	}
	sess := &session{
		status:       StatusActive,
		observations: make([]emotion.Observation, 0, 16),
	}
	s.sessions[sessionID] = sess
	return sess, true
}

func (s *Service) notifyOpened() {
	if s.observer != nil {
		s.observer.SessionOpened()
	}
}

func (s *Service) notifyRejected(reason string) {
	if s.observer != nil {
		s.observer.ObservationRejected(reason)
	}
}
