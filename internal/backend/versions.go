package backend

import (
	"context"
	"fmt"
	"net/url"
)

// Version is one entry of a document's history
type Version struct {
	ID            string                 `json:"id"`
	VersionNumber int                    `json:"version_number"`
	VersionType   string                 `json:"version_type"`
	Title         string                 `json:"title"`
	ContentHash   string                 `json:"content_hash,omitempty"`
	FileSize      *int64                 `json:"file_size,omitempty"`
	ChangeSummary string                 `json:"change_summary,omitempty"`
	ChangedBy     string                 `json:"changed_by,omitempty"`
	CreatedAt     Timestamp              `json:"created_at"`
	DiffStats     map[string]interface{} `json:"diff_stats,omitempty"`
}

// VersionHistory is the body of GET /documents/{id}/versions
type VersionHistory struct {
	DocumentID    string    `json:"document_id"`
	TotalVersions int       `json:"total_versions"`
	Versions      []Version `json:"versions"`
}

// VersionContent is the stored content of a single version
type VersionContent struct {
	DocumentID    string    `json:"document_id"`
	VersionNumber int       `json:"version_number"`
	Title         string    `json:"title"`
	Content       string    `json:"content,omitempty"`
	CreatedAt     Timestamp `json:"created_at"`
}

// VersionSummary identifies one side of a diff. Title is empty when the
// version no longer exists.
type VersionSummary struct {
	Title     string    `json:"title"`
	CreatedAt Timestamp `json:"created_at"`
}

// VersionDiff is a unified diff between two versions
type VersionDiff struct {
	FromVersion     int            `json:"from_version"`
	ToVersion       int            `json:"to_version"`
	FromVersionInfo VersionSummary `json:"from_version_info"`
	ToVersionInfo   VersionSummary `json:"to_version_info"`
	DiffContent     string         `json:"diff_content,omitempty"`
}

// ComparedVersion is one side of a comparison, content included
type ComparedVersion struct {
	Number      int       `json:"number"`
	Title       string    `json:"title"`
	Content     string    `json:"content,omitempty"`
	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   Timestamp `json:"created_at"`
	ChangedBy   string    `json:"changed_by,omitempty"`
}

// VersionComparison compares two arbitrary versions
type VersionComparison struct {
	VersionA    ComparedVersion `json:"version_a"`
	VersionB    ComparedVersion `json:"version_b"`
	Diff        string          `json:"diff,omitempty"`
	SameContent bool            `json:"same_content"`
}

// Rollback is the result of restoring an older version
type Rollback struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	NewVersionNumber int    `json:"new_version_number"`
}

// AuditEntry is one recorded action on a document
type AuditEntry struct {
	ID            string                 `json:"id"`
	Action        string                 `json:"action"`
	ActionDetails map[string]interface{} `json:"action_details,omitempty"`
	UserID        string                 `json:"user_id,omitempty"`
	VersionID     string                 `json:"version_id,omitempty"`
	IPAddress     string                 `json:"ip_address,omitempty"`
	Success       bool                   `json:"success"`
	ErrorMessage  string                 `json:"error_message,omitempty"`
	CreatedAt     Timestamp              `json:"created_at"`
}

// AuditLog is the body of GET /documents/{id}/versions/audit-log
type AuditLog struct {
	DocumentID string       `json:"document_id"`
	Entries    []AuditEntry `json:"entries"`
}

// CreatedVersion is the result of snapshotting a document by hand
type CreatedVersion struct {
	VersionID     string    `json:"version_id"`
	VersionNumber int       `json:"version_number"`
	CreatedAt     Timestamp `json:"created_at"`
}

func versionsPath(documentID string) string {
	return "/documents/" + pathID(documentID) + "/versions"
}

// Versions lists the history of a document.
func (c *Client) Versions(ctx context.Context, documentID string, skip, limit int) (*VersionHistory, error) {
	var out VersionHistory
	if err := c.getJSON(ctx, versionsPath(documentID), pageQuery(skip, limit), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetVersion returns the content of one version.
func (c *Client) GetVersion(ctx context.Context, documentID string, version int) (*VersionContent, error) {
	var out VersionContent
	path := fmt.Sprintf("%s/%d", versionsPath(documentID), version)
	if err := c.getJSON(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DiffVersions diffs from one version to another. A zero to compares
// against the latest version.
func (c *Client) DiffVersions(ctx context.Context, documentID string, from, to int) (*VersionDiff, error) {
	q := url.Values{}
	if to > 0 {
		q.Set("to_version", fmt.Sprint(to))
	}
	var out VersionDiff
	path := fmt.Sprintf("%s/%d/diff", versionsPath(documentID), from)
	if err := c.getJSON(ctx, path, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CompareVersions compares two versions.
func (c *Client) CompareVersions(ctx context.Context, documentID string, a, b int) (*VersionComparison, error) {
	var out VersionComparison
	path := fmt.Sprintf("%s/%d/compare/%d", versionsPath(documentID), a, b)
	if err := c.getJSON(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RollbackVersion restores an older version as a new version.
func (c *Client) RollbackVersion(ctx context.Context, documentID string, version int, reason string) (*Rollback, error) {
	body := map[string]string{}
	if reason != "" {
		body["reason"] = reason
	}
	var out Rollback
	path := fmt.Sprintf("%s/%d/rollback", versionsPath(documentID), version)
	if err := c.postJSON(ctx, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateVersion snapshots the current state of a document.
func (c *Client) CreateVersion(ctx context.Context, documentID, summary string) (*CreatedVersion, error) {
	body := map[string]string{}
	if summary != "" {
		body["change_summary"] = summary
	}
	var out CreatedVersion
	if err := c.postJSON(ctx, versionsPath(documentID), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AuditLog returns recorded actions on a document.
func (c *Client) AuditLog(ctx context.Context, documentID string, skip, limit int) (*AuditLog, error) {
	var out AuditLog
	if err := c.getJSON(ctx, versionsPath(documentID)+"/audit-log", pageQuery(skip, limit), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
