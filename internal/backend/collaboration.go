package backend

import (
	"context"
	"net/url"
	"strconv"
)

// Permission levels a share can grant
const (
	PermissionView    = "view"
	PermissionComment = "comment"
	PermissionEdit    = "edit"
	PermissionAdmin   = "admin"
)

// ShareRequest is the body of POST /collaboration/share
type ShareRequest struct {
	DocumentID        string `json:"document_id"`
	ShareType         string `json:"share_type,omitempty"`
	SharedWithUserID  string `json:"shared_with_user_id,omitempty"`
	SharedWithTeamID  string `json:"shared_with_team_id,omitempty"`
	Permission        string `json:"permission,omitempty"`
	Message           string `json:"message,omitempty"`
	LinkExpiresInDays *int   `json:"link_expires_in_days,omitempty"`
	LinkPassword      string `json:"link_password,omitempty"`
}

// Share grants someone access to a document
type Share struct {
	ID               string `json:"id"`
	DocumentID       string `json:"document_id"`
	DocumentName     string `json:"document_name,omitempty"`
	ShareType        string `json:"share_type"`
	Permission       string `json:"permission"`
	SharedWithUserID string `json:"shared_with_user_id,omitempty"`
	SharedBy         string `json:"shared_by,omitempty"`
	ShareLinkToken   string `json:"share_link_token,omitempty"`
	CreatedAt        string `json:"created_at"`
}

// ShareList wraps share listings
type ShareList struct {
	Shares []Share `json:"shares"`
	Total  int     `json:"total,omitempty"`
}

// CollabSession is an open presence session on a document
type CollabSession struct {
	SessionID    string `json:"session_id"`
	SessionToken string `json:"session_token"`
	DocumentID   string `json:"document_id"`
}

// StartSessionRequest is the body of POST /collaboration/sessions/start
type StartSessionRequest struct {
	DocumentID string                 `json:"document_id"`
	ClientID   string                 `json:"client_id,omitempty"`
	ClientInfo map[string]interface{} `json:"client_info,omitempty"`
}

// Heartbeat is the body of a session heartbeat
type Heartbeat struct {
	CursorPosition map[string]interface{} `json:"cursor_position,omitempty"`
	Viewport       map[string]interface{} `json:"viewport,omitempty"`
}

// Collaborator is a user currently present on a document
type Collaborator struct {
	SessionID      string                 `json:"session_id"`
	UserID         string                 `json:"user_id"`
	UserName       string                 `json:"user_name"`
	CursorPosition map[string]interface{} `json:"cursor_position,omitempty"`
	ConnectedAt    string                 `json:"connected_at"`
}

// CommentRequest is the body of POST /collaboration/documents/{id}/comments
type CommentRequest struct {
	Content    string                 `json:"content"`
	AnchorType string                 `json:"anchor_type,omitempty"`
	AnchorData map[string]interface{} `json:"anchor_data,omitempty"`
	ParentID   string                 `json:"parent_id,omitempty"`
}

// Comment is a note left on a document
type Comment struct {
	ID         string                   `json:"id"`
	Content    string                   `json:"content"`
	UserID     string                   `json:"user_id,omitempty"`
	UserName   string                   `json:"user_name"`
	AnchorType string                   `json:"anchor_type,omitempty"`
	IsResolved bool                     `json:"is_resolved"`
	CreatedAt  string                   `json:"created_at"`
	Replies    []map[string]interface{} `json:"replies,omitempty"`
}

// Notification tells a user about activity on a shared document
type Notification struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Title      string `json:"title"`
	Message    string `json:"message,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
	IsRead     bool   `json:"is_read"`
	CreatedAt  string `json:"created_at"`
}

// ShareDocument grants access to a document.
func (c *Client) ShareDocument(ctx context.Context, req ShareRequest) (*Share, error) {
	var share Share
	if err := c.postJSON(ctx, "/collaboration/share", req, &share); err != nil {
		return nil, err
	}
	return &share, nil
}

// SharedWithMe lists documents others have shared with the current user.
func (c *Client) SharedWithMe(ctx context.Context, skip, limit int) (*ShareList, error) {
	var list ShareList
	if err := c.getJSON(ctx, "/collaboration/shared-with-me", pageQuery(skip, limit), &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// DocumentShares lists every share of a document. Requires admin permission.
func (c *Client) DocumentShares(ctx context.Context, documentID string) (*ShareList, error) {
	var list ShareList
	if err := c.getJSON(ctx, "/collaboration/documents/"+pathID(documentID)+"/shares", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// RevokeShare removes a share.
func (c *Client) RevokeShare(ctx context.Context, shareID string) error {
	return c.deleteJSON(ctx, "/collaboration/shares/"+pathID(shareID))
}

// UpdateSharePermission changes the permission a share grants.
func (c *Client) UpdateSharePermission(ctx context.Context, shareID, permission string) error {
	body := map[string]string{"permission": permission}
	return c.patchJSON(ctx, "/collaboration/shares/"+pathID(shareID)+"/permission", body, nil)
}

// StartSession opens a presence session on a document.
func (c *Client) StartSession(ctx context.Context, req StartSessionRequest) (*CollabSession, error) {
	var sess CollabSession
	if err := c.postJSON(ctx, "/collaboration/sessions/start", req, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// SessionHeartbeat keeps a presence session alive.
func (c *Client) SessionHeartbeat(ctx context.Context, sessionID string, hb Heartbeat) error {
	return c.postJSON(ctx, "/collaboration/sessions/"+pathID(sessionID)+"/heartbeat", hb, nil)
}

// EndSession closes a presence session.
func (c *Client) EndSession(ctx context.Context, sessionID string) error {
	return c.postJSON(ctx, "/collaboration/sessions/"+pathID(sessionID)+"/end", nil, nil)
}

// Collaborators lists users present on a document.
func (c *Client) Collaborators(ctx context.Context, documentID string) ([]Collaborator, error) {
	var out struct {
		Collaborators []Collaborator `json:"collaborators"`
	}
	if err := c.getJSON(ctx, "/collaboration/documents/"+pathID(documentID)+"/collaborators", nil, &out); err != nil {
		return nil, err
	}
	return out.Collaborators, nil
}

// AddComment leaves a comment on a document.
func (c *Client) AddComment(ctx context.Context, documentID string, req CommentRequest) (*Comment, error) {
	var comment Comment
	if err := c.postJSON(ctx, "/collaboration/documents/"+pathID(documentID)+"/comments", req, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// Comments lists comments on a document.
func (c *Client) Comments(ctx context.Context, documentID string, includeResolved bool) ([]Comment, error) {
	q := url.Values{}
	if includeResolved {
		q.Set("include_resolved", "true")
	}
	var out struct {
		Comments []Comment `json:"comments"`
	}
	if err := c.getJSON(ctx, "/collaboration/documents/"+pathID(documentID)+"/comments", q, &out); err != nil {
		return nil, err
	}
	return out.Comments, nil
}

// ResolveComment marks a comment resolved.
func (c *Client) ResolveComment(ctx context.Context, commentID string) error {
	return c.postJSON(ctx, "/collaboration/comments/"+pathID(commentID)+"/resolve", nil, nil)
}

// Notifications lists the current user's notifications.
func (c *Client) Notifications(ctx context.Context, unreadOnly bool, skip, limit int) ([]Notification, error) {
	q := pageQuery(skip, limit)
	if unreadOnly {
		q.Set("unread_only", strconv.FormatBool(true))
	}
	var out struct {
		Notifications []Notification `json:"notifications"`
	}
	if err := c.getJSON(ctx, "/collaboration/notifications", q, &out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

// MarkNotificationRead marks one notification read.
func (c *Client) MarkNotificationRead(ctx context.Context, notificationID string) error {
	return c.postJSON(ctx, "/collaboration/notifications/"+pathID(notificationID)+"/read", nil, nil)
}

// MarkAllNotificationsRead marks every notification read and returns how
// many changed.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) (int, error) {
	var out struct {
		MarkedRead int `json:"marked_read"`
	}
	if err := c.postJSON(ctx, "/collaboration/notifications/read-all", nil, &out); err != nil {
		return 0, err
	}
	return out.MarkedRead, nil
}
