package ai

import "github.com/zhouzirui/mindful/backend/internal/model/emotion"

var fallbackReplies = map[emotion.Category][]string{
	emotion.Neutral: {
		"I'm here to listen. Can you tell me more about how you're feeling?",
		"Thank you for sharing that with me. Would you like to explore this further?",
		"I appreciate your openness. What would be most helpful for you right now?",
	},
	emotion.Negative: {
		"I notice you might be feeling down. Would it help to talk more about what's going on?",
		"That sounds difficult. Remember that it's okay to take things one step at a time.",
		"I'm sorry you're experiencing this. Would you like to try a simple breathing exercise to help center yourself?",
	},
	emotion.Positive: {
		"It's great to hear you're doing well! What positive things have happened in your day so far?",
		"I'm glad you're feeling positive. What strategies have been working well for you lately?",
		"That's wonderful to hear! It's important to acknowledge and celebrate these positive moments.",
	},
}

// FallbackReply returns a canned reply for the sentiment. turn picks the variant so
// consecutive turns rotate through the options.
func FallbackReply(category emotion.Category, turn int) string {
	options, ok := fallbackReplies[category]
	if !ok {
		options = fallbackReplies[emotion.Neutral]
	}
	if turn < 0 {
		turn = -turn
	}
	return options[turn%len(options)]
}
