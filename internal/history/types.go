package history

import (
	"time"

	"ragdesk/internal/backend"
)

// Role of a message author
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the transcript. Messages are never mutated
// after they are added.
type Message struct {
	ID        string           `json:"id"`
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	CreatedAt time.Time        `json:"created_at"`
	Agent     string           `json:"agent,omitempty"`
	Sources   []backend.Source `json:"sources,omitempty"`
	Routing   *backend.Routing `json:"routing,omitempty"`
	Elapsed   *time.Duration   `json:"elapsed,omitempty"`
}

// Conversation is an entry in the conversation list
type Conversation struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
