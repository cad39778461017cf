package query

import (
	"context"
	"fmt"
	"strconv"

	"ragdesk/internal/backend"
)

// CurrentUser fetches the signed-in user.
func (h *Hooks) CurrentUser(ctx context.Context) Result[*backend.User] {
	return Fetch(ctx, h.q, KeyCurrentUser, h.api.Me)
}

// UpdateProfile changes the user's profile.
func (h *Hooks) UpdateProfile(ctx context.Context, update backend.ProfileUpdate) (*backend.User, error) {
	return Mutate(ctx, h.q, Mutation[backend.ProfileUpdate, *backend.User]{
		Do:            h.api.UpdateProfile,
		Invalidates:   []string{KeyCurrentUser},
		Success:       Message[*backend.User]("Profile updated"),
		ErrorFallback: "Failed to update profile",
	}, update)
}

// ChangePassword replaces the user's password.
func (h *Hooks) ChangePassword(ctx context.Context, req backend.PasswordChange) error {
	_, err := Mutate(ctx, h.q, Mutation[backend.PasswordChange, *backend.Message]{
		Do:            h.api.ChangePassword,
		Success:       Message[*backend.Message]("Password changed"),
		ErrorFallback: "Failed to change password",
	}, req)
	return err
}

// SetupTwoFactor starts authenticator enrollment.
func (h *Hooks) SetupTwoFactor(ctx context.Context) (*backend.TwoFactorSetup, error) {
	return Mutate(ctx, h.q, Mutation[struct{}, *backend.TwoFactorSetup]{
		Do: func(ctx context.Context, _ struct{}) (*backend.TwoFactorSetup, error) {
			return h.api.SetupTwoFactor(ctx)
		},
		ErrorFallback: "Failed to set up two-factor authentication",
	}, struct{}{})
}

// EnableTwoFactor confirms enrollment.
func (h *Hooks) EnableTwoFactor(ctx context.Context, code string) error {
	_, err := Mutate(ctx, h.q, Mutation[string, *backend.Message]{
		Do:            h.api.EnableTwoFactor,
		Invalidates:   []string{KeyCurrentUser},
		Success:       Message[*backend.Message]("Two-factor authentication enabled"),
		ErrorFallback: "Invalid verification code",
	}, code)
	return err
}

// DisableTwoFactor turns 2FA off.
func (h *Hooks) DisableTwoFactor(ctx context.Context, password, code string) error {
	_, err := Mutate(ctx, h.q, Mutation[string, *backend.Message]{
		Do: func(ctx context.Context, c string) (*backend.Message, error) {
			return h.api.DisableTwoFactor(ctx, password, c)
		},
		Invalidates:   []string{KeyCurrentUser},
		Success:       Message[*backend.Message]("Two-factor authentication disabled"),
		ErrorFallback: "Failed to disable two-factor authentication",
	}, code)
	return err
}

// Overview fetches the dashboard counters and latest activity.
func (h *Hooks) Overview(ctx context.Context) Result[*backend.Overview] {
	return Fetch(ctx, h.q, Key(KeyAnalytics, "overview"), h.api.Overview)
}

// DashboardStats fetches the dashboard counters alone.
func (h *Hooks) DashboardStats(ctx context.Context) Result[*backend.DashboardStats] {
	return Fetch(ctx, h.q, Key(KeyAnalytics, "overview", "stats"), h.api.DashboardStats)
}

// DashboardActivity fetches up to limit recent activities.
func (h *Hooks) DashboardActivity(ctx context.Context, limit int) Result[[]backend.Activity] {
	return Fetch(ctx, h.q, Key(KeyAnalytics, "overview", "activity", strconv.Itoa(limit)), func(ctx context.Context) ([]backend.Activity, error) {
		return h.api.DashboardActivity(ctx, limit)
	})
}

// Dashboard fetches the combined analytics overview.
func (h *Hooks) Dashboard(ctx context.Context) Result[*backend.Dashboard] {
	return Fetch(ctx, h.q, Key(KeyAnalytics, "dashboard"), h.api.Dashboard)
}

// Usage fetches query volume.
func (h *Hooks) Usage(ctx context.Context, days int) Result[*backend.UsageSummary] {
	return Fetch(ctx, h.q, Key(KeyAnalytics, "usage", strconv.Itoa(days)), func(ctx context.Context) (*backend.UsageSummary, error) {
		return h.api.Usage(ctx, days)
	})
}

// Patterns fetches keyword and timing patterns.
func (h *Hooks) Patterns(ctx context.Context, days, topN int) Result[*backend.QueryPatterns] {
	return Fetch(ctx, h.q, Key(KeyAnalytics, "patterns", strconv.Itoa(days), strconv.Itoa(topN)), func(ctx context.Context) (*backend.QueryPatterns, error) {
		return h.api.Patterns(ctx, days, topN)
	})
}

// Costs fetches token spend.
func (h *Hooks) Costs(ctx context.Context, days int) Result[*backend.CostTracking] {
	return Fetch(ctx, h.q, Key(KeyAnalytics, "costs", strconv.Itoa(days)), func(ctx context.Context) (*backend.CostTracking, error) {
		return h.api.Costs(ctx, days)
	})
}

// Performance fetches latency metrics.
func (h *Hooks) Performance(ctx context.Context, days int) Result[*backend.PerformanceMetrics] {
	return Fetch(ctx, h.q, Key(KeyAnalytics, "performance", strconv.Itoa(days)), func(ctx context.Context) (*backend.PerformanceMetrics, error) {
		return h.api.Performance(ctx, days)
	})
}

// Trending fetches trending topics.
func (h *Hooks) Trending(ctx context.Context, days, topN int) Result[[]backend.TrendingTopic] {
	return Fetch(ctx, h.q, Key(KeyAnalytics, "trending", strconv.Itoa(days), strconv.Itoa(topN)), func(ctx context.Context) ([]backend.TrendingTopic, error) {
		return h.api.Trending(ctx, days, topN)
	})
}

// DocumentStats fetches document analytics.
func (h *Hooks) DocumentStats(ctx context.Context, days int) Result[*backend.DocumentAnalytics] {
	return Fetch(ctx, h.q, Key(KeyAnalytics, "documents", strconv.Itoa(days)), func(ctx context.Context) (*backend.DocumentAnalytics, error) {
		return h.api.DocumentStats(ctx, days)
	})
}

// SharedWithMe lists documents shared with the user.
func (h *Hooks) SharedWithMe(ctx context.Context) Result[*backend.ShareList] {
	return Fetch(ctx, h.q, Key(KeyCollaboration, "shared-with-me"), func(ctx context.Context) (*backend.ShareList, error) {
		return h.api.SharedWithMe(ctx, 0, 0)
	})
}

// DocumentShares lists shares of a document.
func (h *Hooks) DocumentShares(ctx context.Context, documentID string) Result[*backend.ShareList] {
	return Fetch(ctx, h.q, Key(KeyCollaboration, "shares", documentID), func(ctx context.Context) (*backend.ShareList, error) {
		return h.api.DocumentShares(ctx, documentID)
	})
}

// ShareDocument grants access to a document.
func (h *Hooks) ShareDocument(ctx context.Context, req backend.ShareRequest) (*backend.Share, error) {
	return Mutate(ctx, h.q, Mutation[backend.ShareRequest, *backend.Share]{
		Do:            h.api.ShareDocument,
		Invalidates:   []string{Key(KeyCollaboration, "shares", req.DocumentID)},
		Success:       Message[*backend.Share]("Document shared"),
		ErrorFallback: "Failed to share document",
	}, req)
}

// RevokeShare removes a share of documentID.
func (h *Hooks) RevokeShare(ctx context.Context, documentID, shareID string) error {
	_, err := Mutate(ctx, h.q, Mutation[string, struct{}]{
		Do: func(ctx context.Context, id string) (struct{}, error) {
			return struct{}{}, h.api.RevokeShare(ctx, id)
		},
		Invalidates:   []string{Key(KeyCollaboration, "shares", documentID)},
		Success:       Message[struct{}]("Share revoked"),
		ErrorFallback: "Failed to revoke share",
	}, shareID)
	return err
}

// UpdateSharePermission changes what a share of documentID grants.
func (h *Hooks) UpdateSharePermission(ctx context.Context, documentID, shareID, permission string) error {
	_, err := Mutate(ctx, h.q, Mutation[string, struct{}]{
		Do: func(ctx context.Context, p string) (struct{}, error) {
			return struct{}{}, h.api.UpdateSharePermission(ctx, shareID, p)
		},
		Invalidates: []string{Key(KeyCollaboration, "shares", documentID)},
		Success: func(struct{}) string {
			return fmt.Sprintf("Permission changed to %s", permission)
		},
		ErrorFallback: "Failed to update permission",
	}, permission)
	return err
}

// Comments lists comments on a document.
func (h *Hooks) Comments(ctx context.Context, documentID string, includeResolved bool) Result[[]backend.Comment] {
	key := Key(KeyCollaboration, "comments", documentID, strconv.FormatBool(includeResolved))
	return Fetch(ctx, h.q, key, func(ctx context.Context) ([]backend.Comment, error) {
		return h.api.Comments(ctx, documentID, includeResolved)
	})
}

// AddComment comments on a document.
func (h *Hooks) AddComment(ctx context.Context, documentID string, req backend.CommentRequest) (*backend.Comment, error) {
	return Mutate(ctx, h.q, Mutation[backend.CommentRequest, *backend.Comment]{
		Do: func(ctx context.Context, r backend.CommentRequest) (*backend.Comment, error) {
			return h.api.AddComment(ctx, documentID, r)
		},
		Invalidates:   []string{Key(KeyCollaboration, "comments", documentID)},
		Success:       Message[*backend.Comment]("Comment added"),
		ErrorFallback: "Failed to add comment",
	}, req)
}

// ResolveComment resolves a comment on documentID.
func (h *Hooks) ResolveComment(ctx context.Context, documentID, commentID string) error {
	_, err := Mutate(ctx, h.q, Mutation[string, struct{}]{
		Do: func(ctx context.Context, id string) (struct{}, error) {
			return struct{}{}, h.api.ResolveComment(ctx, id)
		},
		Invalidates:   []string{Key(KeyCollaboration, "comments", documentID)},
		Success:       Message[struct{}]("Comment resolved"),
		ErrorFallback: "Failed to resolve comment",
	}, commentID)
	return err
}

// Notifications lists the user's notifications.
func (h *Hooks) Notifications(ctx context.Context, unreadOnly bool) Result[[]backend.Notification] {
	return Fetch(ctx, h.q, Key(KeyNotifications, strconv.FormatBool(unreadOnly)), func(ctx context.Context) ([]backend.Notification, error) {
		return h.api.Notifications(ctx, unreadOnly, 0, 0)
	})
}

// MarkNotificationRead marks one notification read.
func (h *Hooks) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := Mutate(ctx, h.q, Mutation[string, struct{}]{
		Do: func(ctx context.Context, id string) (struct{}, error) {
			return struct{}{}, h.api.MarkNotificationRead(ctx, id)
		},
		Invalidates:   []string{KeyNotifications},
		ErrorFallback: "Failed to update notification",
	}, id)
	return err
}

// MarkAllNotificationsRead marks every notification read.
func (h *Hooks) MarkAllNotificationsRead(ctx context.Context) (int, error) {
	return Mutate(ctx, h.q, Mutation[struct{}, int]{
		Do: func(ctx context.Context, _ struct{}) (int, error) {
			return h.api.MarkAllNotificationsRead(ctx)
		},
		Invalidates: []string{KeyNotifications},
		Success: func(n int) string {
			return fmt.Sprintf("Marked %d notifications read", n)
		},
		ErrorFallback: "Failed to update notifications",
	}, struct{}{})
}

// GraphStats fetches knowledge-graph counts.
func (h *Hooks) GraphStats(ctx context.Context) Result[*backend.GraphStats] {
	return Fetch(ctx, h.q, Key(KeyKnowledge, "stats"), h.api.GraphStats)
}

// SearchEntities searches the knowledge graph.
func (h *Hooks) SearchEntities(ctx context.Context, query, entityType string, limit int) Result[[]backend.Entity] {
	key := Key(KeyKnowledge, "entities", query, entityType, strconv.Itoa(limit))
	return Fetch(ctx, h.q, key, func(ctx context.Context) ([]backend.Entity, error) {
		return h.api.SearchEntities(ctx, query, entityType, limit)
	})
}

// EntityRelations fetches the relations of an entity.
func (h *Hooks) EntityRelations(ctx context.Context, id string) Result[[]backend.Relation] {
	return Fetch(ctx, h.q, Key(KeyKnowledge, "entities", id, "relations"), func(ctx context.Context) ([]backend.Relation, error) {
		return h.api.EntityRelations(ctx, id)
	})
}
