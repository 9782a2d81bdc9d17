package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/cloudwego/eino/schema"

	analysis "github.com/zhouzirui/mindful/backend/internal/analysis/emotion"
	"github.com/zhouzirui/mindful/backend/internal/model/chat"
	"github.com/zhouzirui/mindful/backend/internal/model/emotion"
	"github.com/zhouzirui/mindful/backend/internal/model/persona"
	"github.com/zhouzirui/mindful/backend/internal/service/aggregator"
	"github.com/zhouzirui/mindful/backend/internal/service/ai"
	chatsvc "github.com/zhouzirui/mindful/backend/internal/service/chat"
)

var (
	ErrUnknownMood   = errors.New("unknown mood")
	ErrEmptyMessage  = chatsvc.ErrEmptyMessage
	ErrNoSession     = chatsvc.ErrSessionNotFound
	ErrPersonaLookup = errors.New("persona not found")

	errDelivery = errors.New("delta delivery failed")
)

// Reply sources.
const (
	ReplyLLM      = "llm"
	ReplyFallback = "fallback"
)

var moodMessages = map[string]string{
	"terrible": "I'm feeling really terrible today.",
	"bad":      "I'm having a bad day.",
	"okay":     "I'm feeling okay, not great but not bad either.",
	"good":     "I'm having a good day overall.",
	"great":    "I'm feeling great today!",
}

// Moods lists the accepted check-in keys from worst to best.
var Moods = []string{"terrible", "bad", "okay", "good", "great"}

// Responder produces assistant replies. *ai.Service implements it.
type Responder interface {
	GenerateResponse(ctx context.Context, sessionID string, p *persona.Persona, messages []chat.Message, userMessage string, guidance *ai.Guidance) (*schema.Message, error)
	StreamResponse(ctx context.Context, p *persona.Persona, messages []chat.Message, userMessage string, guidance *ai.Guidance) (*schema.StreamReader[*schema.Message], error)
	StreamingEnabled() bool
}

// Turn is the outcome of one user message.
type Turn struct {
	User        chat.Message    `json:"user"`
	Assistant   chat.Message    `json:"assistant"`
	Result      emotion.Result  `json:"result"`
	Summary     emotion.Summary `json:"summary"`
	ReplySource string          `json:"replySource"`
}

// Service runs the chat loop on top of the session aggregator.
type Service struct {
	chats      *chatsvc.Service
	personas   persona.Store
	aggregator *aggregator.Service
	classifier analysis.Classifier
	responder  Responder
}

// NewService wires the conversation host. responder may be nil, in which case
// canned replies are used.
func NewService(chats *chatsvc.Service, personas persona.Store, agg *aggregator.Service, classifier analysis.Classifier, responder Responder) *Service {
	if classifier == nil {
		classifier = analysis.NewHeuristic()
	}
	return &Service{
		chats:      chats,
		personas:   personas,
		aggregator: agg,
		classifier: classifier,
		responder:  responder,
	}
}

// StartSession creates a chat session and opens its analytics session.
func (s *Service) StartSession(ctx context.Context, personaID string) (chat.Session, persona.Persona, error) {
	if strings.TrimSpace(personaID) == "" {
		personaID = persona.DefaultID
	}
	p, ok := s.personas.FindByID(personaID)
	if !ok {
		return chat.Session{}, persona.Persona{}, fmt.Errorf("%w: %s", ErrPersonaLookup, personaID)
	}

	session, err := s.chats.CreateSession(ctx, p.ID)
	if err != nil {
		return chat.Session{}, persona.Persona{}, err
	}
	if err := s.aggregator.Open(session.ID); err != nil {
		return chat.Session{}, persona.Persona{}, err
	}

	if _, err := s.chats.SaveMessage(ctx, chat.Message{SessionID: session.ID, Sender: chat.SenderAssistant, Content: p.OpeningLine}); err != nil {
		return chat.Session{}, persona.Persona{}, err
	}

	log.Printf("[conversation] session started id=%s persona=%s", session.ID, p.ID)
	return session, p, nil
}

// Reply handles one user message end to end.
func (s *Service) Reply(ctx context.Context, sessionID, text string) (Turn, error) {
	state, err := s.prepare(ctx, sessionID, text)
	if err != nil {
		return Turn{}, err
	}

	reply, source := s.generate(ctx, state)
	return s.finish(ctx, state, reply, source)
}

// Stream handles one user message and forwards reply deltas to onDelta as they arrive.
func (s *Service) Stream(ctx context.Context, sessionID, text string, onDelta func(delta string) error) (Turn, error) {
	state, err := s.prepare(ctx, sessionID, text)
	if err != nil {
		return Turn{}, err
	}

	if s.responder == nil || !s.responder.StreamingEnabled() {
		reply, source := s.generate(ctx, state)
		if err := onDelta(reply); err != nil {
			return Turn{}, err
		}
		return s.finish(ctx, state, reply, source)
	}

	reply, err := s.stream(ctx, state, onDelta)
	if err != nil {
		if errors.Is(err, errDelivery) {
			return Turn{}, err
		}
		if ctx.Err() != nil {
			return Turn{}, ctx.Err()
		}
		log.Printf("[conversation] stream failed session=%s, use fallback: %v", sessionID, err)
		fallback := ai.FallbackReply(state.result.Category, state.turn)
		if derr := onDelta(fallback); derr != nil {
			return Turn{}, derr
		}
		return s.finish(ctx, state, reply+fallback, ReplyFallback)
	}
	return s.finish(ctx, state, reply, ReplyLLM)
}

// CheckIn turns a mood selection into the matching user message.
func (s *Service) CheckIn(ctx context.Context, sessionID, mood string) (Turn, error) {
	text, ok := moodMessages[strings.ToLower(strings.TrimSpace(mood))]
	if !ok {
		return Turn{}, fmt.Errorf("%w: %q", ErrUnknownMood, mood)
	}
	return s.Reply(ctx, sessionID, text)
}

// Reset ends the chat session and discards its analytics.
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	if err := s.chats.EndSession(ctx, sessionID); err != nil {
		return err
	}
	if err := s.aggregator.Discard(sessionID); err != nil && !errors.Is(err, aggregator.ErrNotFound) {
		return err
	}
	log.Printf("[conversation] session reset id=%s", sessionID)
	return nil
}

// Transcript returns the saved messages of a session.
func (s *Service) Transcript(ctx context.Context, sessionID string) ([]chat.Message, error) {
	return s.chats.LoadTranscript(ctx, sessionID)
}

type turnState struct {
	session chat.Session
	persona *persona.Persona
	history []chat.Message
	user    chat.Message
	result  emotion.Result
	turn    int
}

func (s *Service) prepare(ctx context.Context, sessionID, text string) (*turnState, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	session, err := s.chats.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var p *persona.Persona
	if found, ok := s.personas.FindByID(session.PersonaID); ok {
		p = &found
	}

	history, err := s.chats.LoadTranscript(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result, err := s.classifier.Classify(ctx, analysis.Input{Source: emotion.SourceText, Text: text})
	if err != nil || !result.Category.Valid() {
		log.Printf("[conversation] classify failed session=%s, treat as neutral: %v", sessionID, err)
		result = emotion.Result{Category: emotion.Neutral, Confidence: 0.3, Reason: "fallback"}
	}

	turn, err := s.chats.CountUserMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	user, err := s.chats.SaveMessage(ctx, chat.Message{
		SessionID: sessionID,
		Sender:    chat.SenderUser,
		Content:   text,
		Sentiment: string(result.Category),
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.aggregator.Record(sessionID, emotion.SourceText, result.Category, nil); err != nil {
		// A discarded analytics session keeps the conversation usable.
		log.Printf("[conversation] record skipped session=%s: %v", sessionID, err)
	}

	return &turnState{session: session, persona: p, history: history, user: user, result: result, turn: turn}, nil
}

func (s *Service) guidance(sessionID string, result emotion.Result) *ai.Guidance {
	summary, _ := s.aggregator.Summarize(sessionID)
	return &ai.Guidance{Result: result, Summary: &summary}
}

func (s *Service) generate(ctx context.Context, state *turnState) (string, string) {
	if s.responder != nil {
		msg, err := s.responder.GenerateResponse(ctx, state.session.ID, state.persona, state.history, state.user.Content, s.guidance(state.session.ID, state.result))
		if err == nil && msg != nil && strings.TrimSpace(msg.Content) != "" {
			return strings.TrimSpace(msg.Content), ReplyLLM
		}
		log.Printf("[conversation] responder failed session=%s, use fallback: %v", state.session.ID, err)
	}
	return ai.FallbackReply(state.result.Category, state.turn), ReplyFallback
}

// stream returns whatever text was forwarded before an error so the caller can
// continue from it.
func (s *Service) stream(ctx context.Context, state *turnState, onDelta func(string) error) (string, error) {
	reader, err := s.responder.StreamResponse(ctx, state.persona, state.history, state.user.Content, s.guidance(state.session.ID, state.result))
	if err != nil {
		return "", err
	}
	defer reader.Close()

	var builder strings.Builder
	for {
		chunk, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return builder.String(), err
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		if err := onDelta(chunk.Content); err != nil {
			return builder.String(), fmt.Errorf("%w: %v", errDelivery, err)
		}
		builder.WriteString(chunk.Content)
	}

	if strings.TrimSpace(builder.String()) == "" {
		return "", errors.New("empty streamed reply")
	}
	return builder.String(), nil
}

func (s *Service) finish(ctx context.Context, state *turnState, reply, source string) (Turn, error) {
	assistant, err := s.chats.SaveMessage(ctx, chat.Message{
		SessionID: state.session.ID,
		Sender:    chat.SenderAssistant,
		Content:   strings.TrimSpace(reply),
	})
	if err != nil {
		return Turn{}, err
	}

	summary, _ := s.aggregator.Summarize(state.session.ID)
	return Turn{
		User:        state.user,
		Assistant:   assistant,
		Result:      state.result,
		Summary:     summary,
		ReplySource: source,
	}, nil
}
