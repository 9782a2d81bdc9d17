package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/mindful/backend/internal/model/persona"
)

// PromptTemplate defines the structure for persona prompts
type PromptTemplate struct {
	SystemPrompt     string
	PersonalityHints []string
	ContextRules     []string
}

// PersonaPromptManager manages prompt templates for different personas
type PersonaPromptManager struct {
	templates map[string]*PromptTemplate
}

// NewPersonaPromptManager creates a new prompt manager with default templates
func NewPersonaPromptManager() *PersonaPromptManager {
	manager := &PersonaPromptManager{
		templates: make(map[string]*PromptTemplate),
	}

	manager.loadDefaultTemplates()
	return manager
}

// GetPromptTemplate returns the prompt template for a given persona
func (pm *PersonaPromptManager) GetPromptTemplate(personaID string) (*PromptTemplate, error) {
	template, exists := pm.templates[personaID]
	if !exists {
		return nil, fmt.Errorf("prompt template not found for persona: %s", personaID)
	}
	return template, nil
}

// BuildSystemPrompt creates a comprehensive system prompt for the persona
func (pm *PersonaPromptManager) BuildSystemPrompt(p *persona.Persona) string {
	if p == nil {
		return baseSafetyPrompt
	}

	template, err := pm.GetPromptTemplate(p.ID)
	if err != nil {
		return pm.buildBasicSystemPrompt(p)
	}

	return fmt.Sprintf(`%s

Persona:
- Name: %s
- Role: %s
- Tone: %s

Personality hints:
- %s

Conversation rules:
- %s

%s

Opening line for reference: %s`,
		template.SystemPrompt,
		p.Name,
		p.Title,
		p.Tone,
		strings.Join(template.PersonalityHints, "\n- "),
		strings.Join(template.ContextRules, "\n- "),
		baseSafetyPrompt,
		p.OpeningLine,
	)
}

// buildBasicSystemPrompt creates a basic system prompt when no template is available
func (pm *PersonaPromptManager) buildBasicSystemPrompt(p *persona.Persona) string {
	return fmt.Sprintf(`You are %s, %s.

Persona:
- Tone: %s
- Hint: %s

Stay in character and answer in a %s way.

%s

Opening line for reference: %s`,
		p.Name,
		p.Title,
		p.Tone,
		p.PromptHint,
		p.Tone,
		baseSafetyPrompt,
		p.OpeningLine,
	)
}

const baseSafetyPrompt = `You are not a therapist and never diagnose. If you detect signs of serious mental health issues, suggest appropriate professional resources while staying encouraging and non-judgmental. Keep replies under 120 words.`

func (pm *PersonaPromptManager) loadDefaultTemplates() {
	pm.templates[persona.DefaultID] = &PromptTemplate{
		SystemPrompt: `You are MindfulAI, an empathetic mental health assistant. Your goal is to provide supportive responses based on the user's messages, facial expressions and voice patterns.`,
		PersonalityHints: []string{
			"Reflect the user's feelings in your own words before offering anything else",
			"Ask at most one gentle follow-up question per reply",
			"Celebrate positive moments and ask what helped",
		},
		ContextRules: []string{
			"Use the emotion signals below to adjust tone, never quote them back verbatim",
			"Offer small, concrete self-care ideas rather than long lists",
		},
	}

	pm.templates["mindful-coach"] = &PromptTemplate{
		SystemPrompt: `You are MindfulAI Coach, a calm guide who helps users settle their body and breath when they feel tense or overwhelmed.`,
		PersonalityHints: []string{
			"Speak in short, steady sentences",
			"Offer one breathing or grounding exercise with clear steps when stress shows up",
		},
		ContextRules: []string{
			"Check how the exercise felt before suggesting another",
			"If the user sounds fine, keep it light and skip exercises",
		},
	}

	pm.templates["mindful-journal"] = &PromptTemplate{
		SystemPrompt: `You are MindfulAI Journal, a reflective partner who helps users name their feelings and notice patterns across their day.`,
		PersonalityHints: []string{
			"Be curious about specific moments rather than general summaries",
			"Invite gratitude when the mood is positive",
		},
		ContextRules: []string{
			"Summarize what you heard in one sentence before asking a question",
			"Gently ask about sleep and routine when low mood repeats",
		},
	}
}
