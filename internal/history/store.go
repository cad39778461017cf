package history

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store holds the transcript of the active conversation and the list of
// known conversations. It lives in memory only.
type Store struct {
	mu            sync.RWMutex
	messages      []Message
	conversations []Conversation
	currentID     string
	loading       bool
	generation    uint64
}

// NewStore creates an empty conversation store
func NewStore() *Store {
	return &Store{
		messages:      []Message{},
		conversations: []Conversation{},
	}
}

// stamp fills in the id and creation time when the caller left them empty.
func stamp(msg Message) Message {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	return msg
}

// AddMessage appends msg to the transcript.
func (s *Store) AddMessage(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, stamp(msg))
}

// AppendIfCurrent appends msgs in order, in one step, but only if no
// conversation switch or clear happened since generation gen was read.
func (s *Store) AppendIfCurrent(gen uint64, msgs ...Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		return false
	}
	for _, msg := range msgs {
		s.messages = append(s.messages, stamp(msg))
	}
	return true
}

// Messages returns a copy of the transcript.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// SetConversations replaces the conversation list.
func (s *Store) SetConversations(list []Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations = make([]Conversation, len(list))
	copy(s.conversations, list)
}

// Conversations returns a copy of the conversation list.
func (s *Store) Conversations() []Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// SetCurrentConversationID switches the current conversation. The
// transcript is left alone; loading it is the caller's job.
func (s *Store) SetCurrentConversationID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentID != id {
		s.currentID = id
		s.generation++
	}
}

// OpenConversation switches to id and replaces the transcript with msgs.
func (s *Store) OpenConversation(id string, msgs []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentID = id
	s.generation++
	s.messages = make([]Message, 0, len(msgs))
	for _, msg := range msgs {
		s.messages = append(s.messages, stamp(msg))
	}
}

// CurrentConversationID returns the current conversation, "" for a new one.
func (s *Store) CurrentConversationID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentID
}

// ClearCurrentConversation starts a new conversation.
func (s *Store) ClearCurrentConversation() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = []Message{}
	s.currentID = ""
	s.generation++
}

// SetLoading sets the global in-flight flag.
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = loading
}

// TryStartLoading sets the in-flight flag and reports true, unless it was
// already set. It also returns the generation the send started in.
func (s *Store) TryStartLoading() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loading {
		return s.generation, false
	}
	s.loading = true
	return s.generation, true
}

// Loading reports whether a send is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Generation changes every time the transcript is switched or cleared.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}
