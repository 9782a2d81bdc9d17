package chat

import "time"

// Session captures a transient anonymous conversation.
type Session struct {
	ID        string     `json:"id"`
	PersonaID string     `json:"personaId"`
	CreatedAt time.Time  `json:"createdAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

// Ended reports whether the session was discarded.
func (s Session) Ended() bool {
	return s.EndedAt != nil
}
