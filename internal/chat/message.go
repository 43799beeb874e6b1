// Package chat provides the durable conversation store: one JSON record per
// session, an active-session pointer, and the Message turn type.
package chat

import (
	"time"
)

// Role identifies who produced a message.
type Role string

// Message roles. Error output shown during a failed exchange is a
// presentation concern and is never persisted as a transcript turn.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one immutable turn in a conversation. Token counts and stop
// reason are set once at completion time for assistant messages and stay
// zero for user messages.
type Message struct {
	Role         Role      `json:"role"`
	Content      string    `json:"content"`
	Timestamp    time.Time `json:"timestamp"`
	StopReason   string    `json:"stop_reason,omitempty"`
	InputTokens  int64     `json:"input_tokens,omitempty"`
	OutputTokens int64     `json:"output_tokens,omitempty"`
}

// SessionInfo is the listing metadata for one persisted session.
type SessionInfo struct {
	ID           string
	Title        string
	CreatedAt    time.Time
	MessageCount int
}

// sessionRecord is the on-disk shape of one session file.
type sessionRecord struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Messages  []Message `json:"messages"`
}

const (
	// titleLimit is the display truncation length for derived titles.
	titleLimit = 48

	// emptyTitle is shown for sessions without a user message yet.
	emptyTitle = "Empty chat"

	truncationMarker = "…"
)

// DeriveTitle returns the display title for a transcript: the first user
// message truncated to titleLimit runes, or a placeholder.
func DeriveTitle(messages []Message) string {
	for _, m := range messages {
		if m.Role != RoleUser {
			continue
		}
		runes := []rune(m.Content)
		if len(runes) > titleLimit {
			return string(runes[:titleLimit]) + truncationMarker
		}
		return m.Content
	}
	return emptyTitle
}
