package backend

import (
	"context"
	"fmt"
	"net/url"
)

// DashboardStats are the headline counters for the signed-in user
type DashboardStats struct {
	TotalDocuments  int     `json:"total_documents"`
	QueriesToday    int     `json:"queries_today"`
	ActiveAgents    int     `json:"active_agents"`
	AvgResponseTime float64 `json:"avg_response_time"`
}

// Activity is one recent upload, question or agent run
type Activity struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Timestamp   Timestamp `json:"timestamp"`
}

// Overview is the body of GET /dashboard
type Overview struct {
	Stats          DashboardStats `json:"stats"`
	RecentActivity []Activity     `json:"recent_activity"`
}

// Overview returns the stats with the five most recent activities.
func (c *Client) Overview(ctx context.Context) (*Overview, error) {
	var out Overview
	if err := c.getJSON(ctx, "/dashboard", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DashboardStats returns the headline counters.
func (c *Client) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	var out DashboardStats
	if err := c.getJSON(ctx, "/dashboard/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DashboardActivity returns up to limit recent activities, newest first.
// A zero limit leaves the backend default.
func (c *Client) DashboardActivity(ctx context.Context, limit int) ([]Activity, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	var out []Activity
	if err := c.getJSON(ctx, "/dashboard/activity", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}
