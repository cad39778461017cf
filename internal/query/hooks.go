package query

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"ragdesk/internal/backend"
)

// Cache keys for backend resources. Keys nested under one of these are
// invalidated with it.
const (
	KeyDocuments     = "documents"
	KeyAgents        = "agents"
	KeyQueryHistory  = "queries/history"
	KeyAnalytics     = "analytics"
	KeyCollaboration = "collaboration"
	KeyNotifications = "collaboration/notifications"
	KeyKnowledge     = "knowledge-graph"
	KeyCurrentUser   = "auth/me"
)

// Hooks binds the backend resources to cached reads and notifying writes
type Hooks struct {
	api *backend.Client
	q   *Client
}

// NewHooks creates hooks over api using q for caching.
func NewHooks(api *backend.Client, q *Client) *Hooks {
	return &Hooks{api: api, q: q}
}

// Cache exposes the underlying query client.
func (h *Hooks) Cache() *Client {
	return h.q
}

func page(skip, limit int) string {
	return strconv.Itoa(skip) + ":" + strconv.Itoa(limit)
}

// Documents lists documents.
func (h *Hooks) Documents(ctx context.Context, filter backend.DocumentFilter) Result[*backend.DocumentList] {
	key := Key(KeyDocuments, "list", page(filter.Skip, filter.Limit), string(filter.Status))
	return Fetch(ctx, h.q, key, func(ctx context.Context) (*backend.DocumentList, error) {
		return h.api.ListDocuments(ctx, filter)
	})
}

// Document fetches one document.
func (h *Hooks) Document(ctx context.Context, id string) Result[*backend.Document] {
	return Fetch(ctx, h.q, Key(KeyDocuments, id), func(ctx context.Context) (*backend.Document, error) {
		return h.api.GetDocument(ctx, id)
	})
}

// DocumentChunks fetches the chunks of a document.
func (h *Hooks) DocumentChunks(ctx context.Context, id string) Result[[]backend.Chunk] {
	return Fetch(ctx, h.q, Key(KeyDocuments, id, "chunks"), func(ctx context.Context) ([]backend.Chunk, error) {
		return h.api.DocumentChunks(ctx, id)
	})
}

// UploadDocument uploads a file from disk.
func (h *Hooks) UploadDocument(ctx context.Context, path string) (*backend.Document, error) {
	return Mutate(ctx, h.q, Mutation[string, *backend.Document]{
		Do:          h.api.UploadFile,
		Invalidates: []string{KeyDocuments, KeyAnalytics},
		Success: func(doc *backend.Document) string {
			return fmt.Sprintf("Uploaded %s", doc.Filename)
		},
		ErrorFallback: "Upload failed",
	}, path)
}

// UploadMany uploads several files and invalidates the document list once.
func (h *Hooks) UploadMany(ctx context.Context, paths []string, workers int) []backend.UploadResult {
	results := h.api.UploadMany(ctx, paths, workers)

	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
			if h.q.notifier != nil {
				h.q.notifier.Error(fmt.Sprintf("%s: %s", filepath.Base(r.Path), backend.UserMessage(r.Error, "Upload failed")))
			}
		}
	}
	if failed < len(results) {
		h.q.Invalidate(KeyDocuments, KeyAnalytics)
		if h.q.notifier != nil {
			h.q.notifier.Success(fmt.Sprintf("Uploaded %d of %d files", len(results)-failed, len(results)))
		}
	}
	return results
}

// DeleteDocument removes a document.
func (h *Hooks) DeleteDocument(ctx context.Context, id string) error {
	_, err := Mutate(ctx, h.q, Mutation[string, struct{}]{
		Do: func(ctx context.Context, id string) (struct{}, error) {
			return struct{}{}, h.api.DeleteDocument(ctx, id)
		},
		Invalidates:   []string{KeyDocuments, KeyAnalytics},
		Success:       Message[struct{}]("Document deleted"),
		ErrorFallback: "Failed to delete document",
	}, id)
	return err
}

// ProcessDocument queues a document for processing.
func (h *Hooks) ProcessDocument(ctx context.Context, id string) (*backend.DocumentStatusInfo, error) {
	return Mutate(ctx, h.q, Mutation[string, *backend.DocumentStatusInfo]{
		Do:            h.api.ProcessDocument,
		Invalidates:   []string{KeyDocuments},
		Success:       Message[*backend.DocumentStatusInfo]("Processing started"),
		ErrorFallback: "Failed to start processing",
	}, id)
}

// ReprocessDocument runs the pipeline again on a document.
func (h *Hooks) ReprocessDocument(ctx context.Context, id string) (*backend.DocumentStatusInfo, error) {
	return Mutate(ctx, h.q, Mutation[string, *backend.DocumentStatusInfo]{
		Do:            h.api.ReprocessDocument,
		Invalidates:   []string{KeyDocuments},
		Success:       Message[*backend.DocumentStatusInfo]("Reprocessing started"),
		ErrorFallback: "Failed to reprocess document",
	}, id)
}

// Versions lists the history of a document.
func (h *Hooks) Versions(ctx context.Context, documentID string) Result[*backend.VersionHistory] {
	return Fetch(ctx, h.q, Key(KeyDocuments, documentID, "versions"), func(ctx context.Context) (*backend.VersionHistory, error) {
		return h.api.Versions(ctx, documentID, 0, 0)
	})
}

// AuditLog lists recorded actions on a document.
func (h *Hooks) AuditLog(ctx context.Context, documentID string) Result[*backend.AuditLog] {
	return Fetch(ctx, h.q, Key(KeyDocuments, documentID, "audit-log"), func(ctx context.Context) (*backend.AuditLog, error) {
		return h.api.AuditLog(ctx, documentID, 0, 0)
	})
}

// RollbackVersion restores an older version of a document.
func (h *Hooks) RollbackVersion(ctx context.Context, documentID string, version int, reason string) (*backend.Rollback, error) {
	return Mutate(ctx, h.q, Mutation[int, *backend.Rollback]{
		Do: func(ctx context.Context, v int) (*backend.Rollback, error) {
			return h.api.RollbackVersion(ctx, documentID, v, reason)
		},
		Invalidates: []string{Key(KeyDocuments, documentID)},
		Success: func(r *backend.Rollback) string {
			return fmt.Sprintf("Rolled back to version %d (now version %d)", version, r.NewVersionNumber)
		},
		ErrorFallback: "Rollback failed",
	}, version)
}

// CreateVersion snapshots a document.
func (h *Hooks) CreateVersion(ctx context.Context, documentID, summary string) (*backend.CreatedVersion, error) {
	return Mutate(ctx, h.q, Mutation[string, *backend.CreatedVersion]{
		Do: func(ctx context.Context, s string) (*backend.CreatedVersion, error) {
			return h.api.CreateVersion(ctx, documentID, s)
		},
		Invalidates: []string{Key(KeyDocuments, documentID, "versions")},
		Success: func(v *backend.CreatedVersion) string {
			return fmt.Sprintf("Created version %d", v.VersionNumber)
		},
		ErrorFallback: "Failed to create version",
	}, summary)
}

// Agents lists the backend agents.
func (h *Hooks) Agents(ctx context.Context) Result[*backend.AgentList] {
	return Fetch(ctx, h.q, KeyAgents, h.api.ListAgents)
}

// AgentLogs lists agent executions.
func (h *Hooks) AgentLogs(ctx context.Context, filter backend.AgentLogFilter) Result[*backend.AgentLogList] {
	key := Key(KeyAgents, "logs", page(filter.Skip, filter.Limit), filter.AgentName)
	return Fetch(ctx, h.q, key, func(ctx context.Context) (*backend.AgentLogList, error) {
		return h.api.AgentLogs(ctx, filter)
	})
}

// ExecuteAgent runs an agent directly.
func (h *Hooks) ExecuteAgent(ctx context.Context, name string, req backend.AgentExecuteRequest) (*backend.AgentExecution, error) {
	return Mutate(ctx, h.q, Mutation[backend.AgentExecuteRequest, *backend.AgentExecution]{
		Do: func(ctx context.Context, r backend.AgentExecuteRequest) (*backend.AgentExecution, error) {
			return h.api.ExecuteAgent(ctx, name, r)
		},
		Invalidates: []string{KeyAgents},
		Success: func(e *backend.AgentExecution) string {
			return fmt.Sprintf("%s finished: %s", e.AgentName, e.Status)
		},
		ErrorFallback: "Agent execution failed",
	}, req)
}

// QueryHistory lists past questions.
func (h *Hooks) QueryHistory(ctx context.Context, skip, limit int) Result[*backend.QueryHistory] {
	return Fetch(ctx, h.q, Key(KeyQueryHistory, page(skip, limit)), func(ctx context.Context) (*backend.QueryHistory, error) {
		return h.api.QueryHistory(ctx, skip, limit)
	})
}

// Query fetches one past question.
func (h *Hooks) Query(ctx context.Context, id string) Result[*backend.AskResponse] {
	return Fetch(ctx, h.q, Key("queries", id), func(ctx context.Context) (*backend.AskResponse, error) {
		return h.api.GetQuery(ctx, id)
	})
}

// GenerateSQL turns a question into SQL. The question lands in the
// history like any other.
func (h *Hooks) GenerateSQL(ctx context.Context, req backend.SQLRequest) (*backend.SQLResponse, error) {
	return Mutate(ctx, h.q, Mutation[backend.SQLRequest, *backend.SQLResponse]{
		Do:            h.api.GenerateSQL,
		Invalidates:   []string{KeyQueryHistory, KeyAnalytics},
		ErrorFallback: "Failed to generate SQL",
	}, req)
}

// QueryAnswered invalidates what a new answer changes. The send flow calls
// it after appending to the transcript.
func (h *Hooks) QueryAnswered() {
	h.q.Invalidate(KeyQueryHistory, KeyAnalytics)
}
