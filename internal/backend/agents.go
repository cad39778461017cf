package backend

import (
	"context"
)

// AgentLogFilter narrows an agent log listing
type AgentLogFilter struct {
	Skip      int
	Limit     int
	AgentName string
}

// ListAgents returns every agent the backend knows about.
func (c *Client) ListAgents(ctx context.Context) (*AgentList, error) {
	var list AgentList
	if err := c.getJSON(ctx, "/agents/", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// AgentStatus returns a single agent.
func (c *Client) AgentStatus(ctx context.Context, name string) (*Agent, error) {
	var agent Agent
	if err := c.getJSON(ctx, "/agents/"+pathID(name)+"/status", nil, &agent); err != nil {
		return nil, err
	}
	return &agent, nil
}

// ExecuteAgent runs an agent directly, bypassing routing.
func (c *Client) ExecuteAgent(ctx context.Context, name string, req AgentExecuteRequest) (*AgentExecution, error) {
	if req.InputData == nil {
		req.InputData = map[string]interface{}{}
	}

	var exec AgentExecution
	if err := c.postJSON(ctx, "/agents/"+pathID(name)+"/execute", req, &exec); err != nil {
		return nil, err
	}
	return &exec, nil
}

// AgentLogs returns one page of recorded executions.
func (c *Client) AgentLogs(ctx context.Context, filter AgentLogFilter) (*AgentLogList, error) {
	q := pageQuery(filter.Skip, filter.Limit)
	if filter.AgentName != "" {
		q.Set("agent_name", filter.AgentName)
	}

	var logs AgentLogList
	if err := c.getJSON(ctx, "/agents/logs", q, &logs); err != nil {
		return nil, err
	}
	return &logs, nil
}
