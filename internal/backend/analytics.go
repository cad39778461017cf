package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// DailyCount is a per-day tally
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// AgentCount is a per-agent tally
type AgentCount struct {
	Agent string `json:"agent"`
	Count int    `json:"count"`
}

// UsageSummary is the body of GET /analytics/usage
type UsageSummary struct {
	PeriodDays        int          `json:"period_days"`
	TotalQueries      int          `json:"total_queries"`
	DailyQueries      []DailyCount `json:"daily_queries"`
	AvgResponseTimeMs float64      `json:"avg_response_time_ms"`
	TotalTokens       int          `json:"total_tokens"`
	AvgTokensPerQuery float64      `json:"avg_tokens_per_query"`
	QueriesByAgent    []AgentCount `json:"queries_by_agent"`
	EstimatedCost     float64      `json:"estimated_cost"`
}

// KeywordCount is one frequent keyword
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// TimePatterns describes when queries are made
type TimePatterns struct {
	ByHour      map[string]int `json:"by_hour"`
	ByDayOfWeek map[string]int `json:"by_day_of_week"`
	PeakHour    int            `json:"peak_hour"`
	PeakDay     string         `json:"peak_day"`
}

// QueryPatterns is the body of GET /analytics/patterns
type QueryPatterns struct {
	PeriodDays            int            `json:"period_days"`
	TotalQueriesAnalyzed  int            `json:"total_queries_analyzed"`
	TopKeywords           []KeywordCount `json:"top_keywords"`
	QueryTypeDistribution map[string]int `json:"query_type_distribution"`
	TimePatterns          TimePatterns   `json:"time_patterns"`
}

// DocumentTypeCount is a per-type tally
type DocumentTypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// DocumentAnalytics is the body of GET /analytics/documents
type DocumentAnalytics struct {
	PeriodDays           int                 `json:"period_days"`
	TotalDocuments       int                 `json:"total_documents"`
	DocumentsByStatus    map[string]int      `json:"documents_by_status"`
	DocumentsByType      []DocumentTypeCount `json:"documents_by_type"`
	TotalChunks          int                 `json:"total_chunks"`
	AvgChunksPerDocument float64             `json:"avg_chunks_per_document"`
}

// DailyCost is spend for one day
type DailyCost struct {
	Date string  `json:"date"`
	Cost float64 `json:"cost"`
}

// AgentCost is spend attributed to one agent
type AgentCost struct {
	Agent  string  `json:"agent"`
	Tokens int     `json:"tokens"`
	Cost   float64 `json:"cost"`
}

// CostBreakdown splits spend by category
type CostBreakdown struct {
	LLMInference float64 `json:"llm_inference"`
	Embeddings   float64 `json:"embeddings"`
	Other        float64 `json:"other"`
}

// CostTracking is the body of GET /analytics/costs
type CostTracking struct {
	PeriodDays           int           `json:"period_days"`
	TotalTokens          int           `json:"total_tokens"`
	TotalCost            float64       `json:"total_cost"`
	DailyCosts           []DailyCost   `json:"daily_costs"`
	CostByAgent          []AgentCost   `json:"cost_by_agent"`
	ProjectedMonthlyCost float64       `json:"projected_monthly_cost"`
	CostBreakdown        CostBreakdown `json:"cost_breakdown"`
}

// Percentiles of response time in milliseconds
type Percentiles struct {
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
	P99 float64 `json:"p99"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// PerformanceMetrics is the body of GET /analytics/performance
type PerformanceMetrics struct {
	PeriodDays              int         `json:"period_days"`
	TotalQueries            int         `json:"total_queries"`
	ResponseTimePercentiles Percentiles `json:"response_time_percentiles"`
	ErrorRate               float64     `json:"error_rate"`
	CacheHitRate            float64     `json:"cache_hit_rate"`
	SatisfactionRate        float64     `json:"satisfaction_rate"`
	Availability            float64     `json:"availability"`
}

// TrendingTopic is a topic whose query volume is changing
type TrendingTopic struct {
	Topic         string  `json:"topic"`
	CurrentCount  int     `json:"current_count"`
	PreviousCount int     `json:"previous_count"`
	GrowthRate    float64 `json:"growth_rate"`
	Trend         string  `json:"trend"`
}

// Dashboard combines the headline analytics
type Dashboard struct {
	Usage         UsageSummary       `json:"usage"`
	Performance   PerformanceMetrics `json:"performance"`
	Trending      []TrendingTopic    `json:"trending"`
	DocumentStats DocumentAnalytics  `json:"document_stats"`
}

// ExportFormat is the encoding of an analytics export
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
)

// analyticsQuery sets days and top_n when positive; zero leaves the
// backend default.
func analyticsQuery(days, topN int) url.Values {
	q := url.Values{}
	if days > 0 {
		q.Set("days", fmt.Sprint(days))
	}
	if topN > 0 {
		q.Set("top_n", fmt.Sprint(topN))
	}
	return q
}

// Usage returns query volume for the current user.
func (c *Client) Usage(ctx context.Context, days int) (*UsageSummary, error) {
	var out UsageSummary
	if err := c.getJSON(ctx, "/analytics/usage", analyticsQuery(days, 0), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Patterns returns keyword and timing patterns.
func (c *Client) Patterns(ctx context.Context, days, topN int) (*QueryPatterns, error) {
	var out QueryPatterns
	if err := c.getJSON(ctx, "/analytics/patterns", analyticsQuery(days, topN), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DocumentStats returns document counts by status and type.
func (c *Client) DocumentStats(ctx context.Context, days int) (*DocumentAnalytics, error) {
	var out DocumentAnalytics
	if err := c.getJSON(ctx, "/analytics/documents", analyticsQuery(days, 0), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Costs returns token spend.
func (c *Client) Costs(ctx context.Context, days int) (*CostTracking, error) {
	var out CostTracking
	if err := c.getJSON(ctx, "/analytics/costs", analyticsQuery(days, 0), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Performance returns latency and reliability metrics.
func (c *Client) Performance(ctx context.Context, days int) (*PerformanceMetrics, error) {
	var out PerformanceMetrics
	if err := c.getJSON(ctx, "/analytics/performance", analyticsQuery(days, 0), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Trending returns topics with changing volume.
func (c *Client) Trending(ctx context.Context, days, topN int) ([]TrendingTopic, error) {
	var out []TrendingTopic
	if err := c.getJSON(ctx, "/analytics/trending", analyticsQuery(days, topN), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Dashboard returns the combined overview.
func (c *Client) Dashboard(ctx context.Context) (*Dashboard, error) {
	var out Dashboard
	if err := c.getJSON(ctx, "/analytics/dashboard", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExportAnalytics returns the raw export body in the requested format.
func (c *Client) ExportAnalytics(ctx context.Context, days int, format ExportFormat) ([]byte, error) {
	if format != ExportJSON && format != ExportCSV {
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
	q := analyticsQuery(days, 0)
	q.Set("format", string(format))
	return c.doRaw(ctx, request{method: http.MethodGet, path: "/analytics/export", query: q})
}
