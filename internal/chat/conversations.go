package chat

import (
	"context"

	"ragdesk/internal/backend"
	"ragdesk/internal/history"
	"ragdesk/internal/textutil"
)

const titleLength = 60

// HistoryAPI is the part of the backend that serves past questions
type HistoryAPI interface {
	QueryHistory(ctx context.Context, skip, limit int) (*backend.QueryHistory, error)
	GetQuery(ctx context.Context, queryID string) (*backend.AskResponse, error)
}

// Conversations keeps the conversation list and the open transcript in
// step with the backend's query history
type Conversations struct {
	api   HistoryAPI
	store *history.Store
}

// NewConversations creates a loader over store.
func NewConversations(api HistoryAPI, store *history.Store) *Conversations {
	return &Conversations{api: api, store: store}
}

// Refresh loads one page of past questions into the conversation list.
func (c *Conversations) Refresh(ctx context.Context, skip, limit int) ([]history.Conversation, error) {
	page, err := c.api.QueryHistory(ctx, skip, limit)
	if err != nil {
		return nil, err
	}

	list := make([]history.Conversation, 0, len(page.Queries))
	for _, q := range page.Queries {
		list = append(list, history.Conversation{
			ID:    q.QueryID,
			Title: textutil.Truncate(textutil.Clean(q.Query), titleLength),
		})
	}
	c.store.SetConversations(list)
	return list, nil
}

// Open makes id the current conversation and loads its question and answer
// as the transcript. On error the store is left as it was.
func (c *Conversations) Open(ctx context.Context, id string) error {
	resp, err := c.api.GetQuery(ctx, id)
	if err != nil {
		return err
	}

	c.store.OpenConversation(id, []history.Message{
		{Role: history.RoleUser, Content: resp.Query},
		AssistantFromAsk(resp),
	})
	return nil
}

// New starts an empty conversation.
func (c *Conversations) New() {
	c.store.ClearCurrentConversation()
}
