package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"ragdesk/internal/backend"
	"ragdesk/internal/history"
)

var (
	// ErrEmptyMessage is returned without side effects for blank input.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrBusy is returned without side effects while another send is in flight.
	ErrBusy = errors.New("a message is already being sent")
	// ErrDiscarded means the backend answered after the conversation was
	// switched or cleared; nothing was appended.
	ErrDiscarded = errors.New("conversation changed before the answer arrived")
)

// SendError is a failed send. The transcript is unchanged, so Draft holds
// the text for the caller to offer again.
type SendError struct {
	Draft string
	Err   error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send failed: %v", e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// API is the part of the backend the send flow talks to
type API interface {
	Ask(ctx context.Context, req backend.AskRequest) (*backend.AskResponse, error)
	Chat(ctx context.Context, req backend.ChatRequest) (*backend.ChatResponse, error)
	GenerateSQL(ctx context.Context, req backend.SQLRequest) (*backend.SQLResponse, error)
}

// Notifier shows transient errors
type Notifier interface {
	Error(text string)
}

// Transport picks the endpoint a message goes to
type Transport int

const (
	// TransportAsk sends a standalone question to /queries/ask, or to
	// /queries/sql in sql mode when no agent is pinned.
	TransportAsk Transport = iota
	// TransportChat sends the transcript as context to /queries/chat.
	TransportChat
)

// Options travel with each send
type Options struct {
	Mode        backend.QueryMode
	DocumentIDs []string
	AgentName   string
	Transport   Transport
}

// Sender runs the send-message flow against a conversation store
type Sender struct {
	api      API
	store    *history.Store
	notifier Notifier
	logger   *zap.Logger

	// onAnswered runs after a successful append
	onAnswered func()
}

// NewSender creates a sender. notifier and logger may be nil.
func NewSender(api API, store *history.Store, notifier Notifier, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		api:      api,
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// OnAnswered registers fn to run after each answer is appended.
func (s *Sender) OnAnswered(fn func()) {
	s.onAnswered = fn
}

// Send posts text and, on success, appends the user message followed by the
// assistant message. Blank text or a send already in flight returns at once
// without touching the store.
func (s *Sender) Send(ctx context.Context, text string, opts Options) (history.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return history.Message{}, ErrEmptyMessage
	}

	gen, ok := s.store.TryStartLoading()
	if !ok {
		return history.Message{}, ErrBusy
	}
	defer s.store.SetLoading(false)

	mode := opts.Mode
	if mode == "" {
		mode = backend.ModeAuto
	}

	user := history.Message{
		Role:      history.RoleUser,
		Content:   text,
		CreatedAt: time.Now(),
	}

	var (
		assistant history.Message
		err       error
	)
	switch {
	case opts.Transport == TransportChat:
		assistant, err = s.chat(ctx, text, mode, opts)
	case mode == backend.ModeSQL && opts.AgentName == "":
		assistant, err = s.sql(ctx, text)
	default:
		assistant, err = s.ask(ctx, text, mode, opts)
	}

	if err != nil {
		s.logger.Warn("send failed", zap.String("mode", string(mode)), zap.Error(err))
		if s.notifier != nil {
			s.notifier.Error(backend.UserMessage(err, "Failed to get a response. Please try again."))
		}
		return history.Message{}, &SendError{Draft: text, Err: err}
	}

	if !s.store.AppendIfCurrent(gen, user, assistant) {
		s.logger.Info("discarding answer for a conversation that is no longer current")
		return history.Message{}, ErrDiscarded
	}

	s.logger.Debug("answer appended",
		zap.String("agent", assistant.Agent),
		zap.Int("sources", len(assistant.Sources)))
	if s.onAnswered != nil {
		s.onAnswered()
	}
	return assistant, nil
}

func (s *Sender) ask(ctx context.Context, text string, mode backend.QueryMode, opts Options) (history.Message, error) {
	resp, err := s.api.Ask(ctx, backend.AskRequest{
		Query:       text,
		DocumentIDs: opts.DocumentIDs,
		Mode:        mode,
		AgentName:   opts.AgentName,
	})
	if err != nil {
		return history.Message{}, err
	}
	return AssistantFromAsk(resp), nil
}

func (s *Sender) sql(ctx context.Context, text string) (history.Message, error) {
	resp, err := s.api.GenerateSQL(ctx, backend.SQLRequest{Query: text})
	if err != nil {
		return history.Message{}, err
	}

	content := "```sql\n" + resp.GeneratedSQL + "\n```"
	if resp.Explanation != "" {
		content += "\n\n" + resp.Explanation
	}
	return history.Message{
		Role:      history.RoleAssistant,
		Content:   content,
		CreatedAt: time.Now(),
		Agent:     backend.SQLAgent,
	}, nil
}

func (s *Sender) chat(ctx context.Context, text string, mode backend.QueryMode, opts Options) (history.Message, error) {
	prior := s.store.Messages()
	turns := make([]backend.ChatTurn, 0, len(prior))
	for _, m := range prior {
		turns = append(turns, backend.ChatTurn{Role: string(m.Role), Content: m.Content})
	}

	resp, err := s.api.Chat(ctx, backend.ChatRequest{
		Message:             text,
		ConversationHistory: turns,
		DocumentIDs:         opts.DocumentIDs,
		Mode:                mode,
	})
	if err != nil {
		return history.Message{}, err
	}

	return history.Message{
		Role:      history.RoleAssistant,
		Content:   resp.Response,
		CreatedAt: time.Now(),
		Agent:     resp.AgentUsed,
		Sources:   resp.ContextUsed,
		Routing:   resp.Routing,
		Elapsed:   elapsed(resp.ExecutionTimeMs),
	}, nil
}

// AssistantFromAsk builds the assistant message for an answer. Agent,
// sources and routing are copied as the backend sent them.
func AssistantFromAsk(resp *backend.AskResponse) history.Message {
	return history.Message{
		Role:      history.RoleAssistant,
		Content:   resp.Response,
		CreatedAt: time.Now(),
		Agent:     resp.AgentUsed,
		Sources:   resp.Sources,
		Routing:   resp.Routing,
		Elapsed:   elapsed(resp.ExecutionTimeMs),
	}
}

func elapsed(ms *float64) *time.Duration {
	if ms == nil {
		return nil
	}
	d := time.Duration(*ms * float64(time.Millisecond))
	return &d
}
