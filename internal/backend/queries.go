package backend

import (
	"context"
)

// Ask sends a single question.
func (c *Client) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	var resp AskResponse
	if err := c.postJSON(ctx, "/queries/ask", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Chat sends a message with prior turns as context. History beyond
// MaxChatHistory is trimmed from the front.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if len(req.ConversationHistory) > MaxChatHistory {
		req.ConversationHistory = req.ConversationHistory[len(req.ConversationHistory)-MaxChatHistory:]
	}
	if req.ConversationHistory == nil {
		req.ConversationHistory = []ChatTurn{}
	}

	var resp ChatResponse
	if err := c.postJSON(ctx, "/queries/chat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueryHistory returns one page of the user's past questions.
func (c *Client) QueryHistory(ctx context.Context, skip, limit int) (*QueryHistory, error) {
	var history QueryHistory
	if err := c.getJSON(ctx, "/queries/history", pageQuery(skip, limit), &history); err != nil {
		return nil, err
	}
	return &history, nil
}

// GetQuery returns a single past question with its answer.
func (c *Client) GetQuery(ctx context.Context, queryID string) (*AskResponse, error) {
	var resp AskResponse
	if err := c.getJSON(ctx, "/queries/"+pathID(queryID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SQLRequest is the body of POST /queries/sql
type SQLRequest struct {
	Query         string `json:"query"`
	Execute       bool   `json:"execute"`
	SchemaContext string `json:"schema_context,omitempty"`
}

// SQLResponse is a statement generated from a natural-language question.
// Results rows are keyed by column name and present only when executed.
type SQLResponse struct {
	QueryID         string                   `json:"query_id"`
	NaturalLanguage string                   `json:"natural_language"`
	GeneratedSQL    string                   `json:"generated_sql"`
	Explanation     string                   `json:"explanation"`
	Executed        bool                     `json:"executed"`
	Results         []map[string]interface{} `json:"results,omitempty"`
	Error           string                   `json:"error,omitempty"`
}

// SQLAgent is the agent name the backend records for generated SQL.
const SQLAgent = "sql_generator"

// GenerateSQL turns a question into SQL.
func (c *Client) GenerateSQL(ctx context.Context, req SQLRequest) (*SQLResponse, error) {
	var resp SQLResponse
	if err := c.postJSON(ctx, "/queries/sql", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
