package backend

import (
	"context"
	"fmt"
	"net/url"
)

// Entity is a node in the knowledge graph
type Entity struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	EntityType    string `json:"entity_type"`
	Description   string `json:"description,omitempty"`
	MentionCount  int    `json:"mention_count"`
	DocumentCount int    `json:"document_count"`
}

// Relation is a labelled edge between two entities
type Relation struct {
	Source        string `json:"source"`
	Relation      string `json:"relation"`
	Target        string `json:"target"`
	Bidirectional bool   `json:"bidirectional"`
}

// GraphQuery is the body of POST /knowledge-graph/query
type GraphQuery struct {
	Query   string `json:"query"`
	MaxHops int    `json:"max_hops,omitempty"`
	TopK    int    `json:"top_k,omitempty"`
}

// GraphQueryResult is the traversal around the entities a query mentions
type GraphQueryResult struct {
	Query           string                   `json:"query"`
	QueryEntities   []string                 `json:"query_entities"`
	MatchedEntities []map[string]interface{} `json:"matched_entities"`
	Relations       []map[string]interface{} `json:"relations"`
	Triples         []map[string]interface{} `json:"triples"`
}

// GraphAnswer is the body of POST /knowledge-graph/ask
type GraphAnswer struct {
	Question   string                 `json:"question"`
	Answer     string                 `json:"answer"`
	Confidence float64                `json:"confidence"`
	Sources    map[string]interface{} `json:"sources"`
}

// Subgraph is the neighborhood of one entity
type Subgraph struct {
	Nodes []map[string]interface{} `json:"nodes"`
	Edges []map[string]interface{} `json:"edges"`
}

// GraphStats counts what the graph holds
type GraphStats struct {
	TotalEntities  int            `json:"total_entities"`
	EntitiesByType map[string]int `json:"entities_by_type"`
	TotalRelations int            `json:"total_relations"`
	TotalTriples   int            `json:"total_triples"`
}

// QueryGraph traverses the graph around the entities in a free-text query.
func (c *Client) QueryGraph(ctx context.Context, req GraphQuery) (*GraphQueryResult, error) {
	var out GraphQueryResult
	if err := c.postJSON(ctx, "/knowledge-graph/query", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AskGraph answers a question from the graph alone.
func (c *Client) AskGraph(ctx context.Context, question string) (*GraphAnswer, error) {
	var out GraphAnswer
	body := map[string]string{"question": question}
	if err := c.postJSON(ctx, "/knowledge-graph/ask", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchEntities finds entities by name, optionally of one type.
func (c *Client) SearchEntities(ctx context.Context, query, entityType string, limit int) ([]Entity, error) {
	if query == "" {
		return nil, fmt.Errorf("entity search needs a query")
	}
	q := url.Values{}
	q.Set("query", query)
	if entityType != "" {
		q.Set("entity_type", entityType)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}

	var out []Entity
	if err := c.getJSON(ctx, "/knowledge-graph/entities", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetEntity returns one entity.
func (c *Client) GetEntity(ctx context.Context, id string) (*Entity, error) {
	var out Entity
	if err := c.getJSON(ctx, "/knowledge-graph/entities/"+pathID(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EntitySubgraph returns nodes and edges within depth hops of an entity.
func (c *Client) EntitySubgraph(ctx context.Context, id string, depth int) (*Subgraph, error) {
	q := url.Values{}
	if depth > 0 {
		q.Set("depth", fmt.Sprint(depth))
	}
	var out Subgraph
	if err := c.getJSON(ctx, "/knowledge-graph/entities/"+pathID(id)+"/graph", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EntityRelations returns the direct relations of an entity.
func (c *Client) EntityRelations(ctx context.Context, id string) ([]Relation, error) {
	var out []Relation
	if err := c.getJSON(ctx, "/knowledge-graph/entities/"+pathID(id)+"/relations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GraphStats returns entity, relation and triple counts.
func (c *Client) GraphStats(ctx context.Context) (*GraphStats, error) {
	var out GraphStats
	if err := c.getJSON(ctx, "/knowledge-graph/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
