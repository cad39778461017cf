package backend

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Timestamp accepts the datetime layouts the backend emits, with or
// without a zone offset.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// UnmarshalJSON implements json.Unmarshaler
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

// MarshalJSON implements json.Marshaler
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// QueryMode selects which backend agent or workflow handles a question
type QueryMode string

const (
	ModeAuto           QueryMode = "auto"
	ModeRAG            QueryMode = "rag"
	ModeSummarize      QueryMode = "summarize"
	ModeAnalyze        QueryMode = "analyze"
	ModeSQL            QueryMode = "sql"
	ModeLGResearch     QueryMode = "lg_research"
	ModeLGAnalysis     QueryMode = "lg_analysis"
	ModeLGReasoning    QueryMode = "lg_reasoning"
	ModeCrewResearch   QueryMode = "crew_research"
	ModeCrewQA         QueryMode = "crew_qa"
	ModeCrewCodeReview QueryMode = "crew_code_review"
	ModeGenAIChat      QueryMode = "genai_chat"
	ModeGenAITask      QueryMode = "genai_task"
	ModeGenAIKnowledge QueryMode = "genai_knowledge"
	ModeGenAIReasoning QueryMode = "genai_reasoning"
	ModeGenAICreative  QueryMode = "genai_creative"
)

// QueryModes lists every mode in display order.
var QueryModes = []QueryMode{
	ModeAuto, ModeRAG, ModeSummarize, ModeAnalyze, ModeSQL,
	ModeLGResearch, ModeLGAnalysis, ModeLGReasoning,
	ModeCrewResearch, ModeCrewQA, ModeCrewCodeReview,
	ModeGenAIChat, ModeGenAITask, ModeGenAIKnowledge, ModeGenAIReasoning, ModeGenAICreative,
}

// ParseQueryMode validates s as a mode name. Empty input yields ModeAuto.
func ParseQueryMode(s string) (QueryMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ModeAuto, nil
	}
	for _, m := range QueryModes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown query mode %q", s)
}

// Role is a named permission set attached to a user
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Permissions []string  `json:"permissions,omitempty"`
	CreatedAt   Timestamp `json:"created_at"`
}

// User is the authenticated account as returned by /auth/me
type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	FullName         string    `json:"full_name,omitempty"`
	IsActive         bool      `json:"is_active"`
	IsSuperuser      bool      `json:"is_superuser"`
	IsEmailVerified  bool      `json:"is_email_verified"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	CreatedAt        Timestamp `json:"created_at"`
	UpdatedAt        Timestamp `json:"updated_at"`
	Roles            []Role    `json:"roles,omitempty"`
	Permissions      []string  `json:"permissions,omitempty"`
}

// DisplayName prefers the full name over the email address.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}

// Token is the login/registration/2FA response
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Requires2FA  bool   `json:"requires_2fa"`
	User         *User  `json:"user,omitempty"`
}

// Source is one retrieved chunk backing an answer
type Source struct {
	ChunkID         string  `json:"chunk_id"`
	DocumentID      string  `json:"document_id"`
	DocumentName    string  `json:"document_name"`
	Content         string  `json:"content"`
	SimilarityScore float64 `json:"similarity_score"`
}

// Routing explains which agent the backend picked for a question
type Routing struct {
	SelectedAgent string  `json:"selected_agent"`
	Confidence    float64 `json:"confidence"`
	Reason        string  `json:"reason"`
	Framework     string  `json:"framework,omitempty"`
}

// AskRequest is the body of POST /queries/ask
type AskRequest struct {
	Query       string    `json:"query"`
	DocumentIDs []string  `json:"document_ids,omitempty"`
	Mode        QueryMode `json:"mode,omitempty"`
	AgentName   string    `json:"agent_name,omitempty"`
	TopK        int       `json:"top_k,omitempty"`
	Framework   string    `json:"framework,omitempty"`
	UseHybrid   bool      `json:"use_hybrid,omitempty"`
}

// AskResponse is the answer to a single question
type AskResponse struct {
	QueryID         string   `json:"query_id"`
	Query           string   `json:"query"`
	Response        string   `json:"response"`
	Sources         []Source `json:"sources"`
	AgentUsed       string   `json:"agent_used"`
	Framework       string   `json:"framework,omitempty"`
	Routing         *Routing `json:"routing,omitempty"`
	ExecutionTimeMs *float64 `json:"execution_time_ms,omitempty"`
	ReasoningTrace  string   `json:"reasoning_trace,omitempty"`
}

// ChatTurn is one prior message sent as context to POST /queries/chat
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MaxChatHistory is the longest conversation_history the backend accepts.
const MaxChatHistory = 100

// ChatRequest is the body of POST /queries/chat
type ChatRequest struct {
	Message             string     `json:"message"`
	ConversationHistory []ChatTurn `json:"conversation_history"`
	DocumentIDs         []string   `json:"document_ids,omitempty"`
	Mode                QueryMode  `json:"mode,omitempty"`
}

// ChatResponse is the answer to a multi-turn chat message
type ChatResponse struct {
	MessageID       string   `json:"message_id"`
	Response        string   `json:"response"`
	ContextUsed     []Source `json:"context_used"`
	AgentUsed       string   `json:"agent_used"`
	Framework       string   `json:"framework,omitempty"`
	Routing         *Routing `json:"routing,omitempty"`
	ExecutionTimeMs *float64 `json:"execution_time_ms,omitempty"`
}

// QueryHistory is one page of past questions
type QueryHistory struct {
	Queries []AskResponse `json:"queries"`
	Total   int           `json:"total"`
	Skip    int           `json:"skip"`
	Limit   int           `json:"limit"`
}

// DocumentStatus is the processing state advanced by the backend pipeline
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
	StatusCancelled  DocumentStatus = "cancelled"
)

// Terminal reports whether the pipeline is done with the document.
func (s DocumentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Document describes an uploaded file
type Document struct {
	ID           string                 `json:"id"`
	UserID       string                 `json:"user_id"`
	Filename     string                 `json:"filename"`
	ContentType  string                 `json:"content_type"`
	FilePath     string                 `json:"file_path,omitempty"`
	FileSize     int64                  `json:"file_size"`
	Status       DocumentStatus         `json:"status"`
	ChunkCount   int                    `json:"chunk_count"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"doc_metadata,omitempty"`
	CreatedAt    Timestamp              `json:"created_at"`
	UpdatedAt    *Timestamp             `json:"updated_at,omitempty"`
}

// DocumentList is one page of documents
type DocumentList struct {
	Documents []Document `json:"documents"`
	Total     int        `json:"total"`
	Skip      int        `json:"skip"`
	Limit     int        `json:"limit"`
}

// DocumentStatusInfo is the body of GET /documents/{id}/status and the
// process/reprocess endpoints
type DocumentStatusInfo struct {
	DocumentID string         `json:"document_id"`
	Status     DocumentStatus `json:"status"`
	Message    string         `json:"message"`
}

// Chunk is one indexed slice of a document
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Content    string    `json:"content"`
	ChunkIndex int       `json:"chunk_index"`
	TokenCount *int      `json:"token_count,omitempty"`
	CreatedAt  Timestamp `json:"created_at"`
}

// Agent describes one backend agent
type Agent struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Status       string   `json:"status"`
	Capabilities []string `json:"capabilities"`
}

// AgentList is the body of GET /agents/
type AgentList struct {
	Agents []Agent `json:"agents"`
	Total  int     `json:"total"`
}

// AgentExecuteRequest is the body of POST /agents/{name}/execute
type AgentExecuteRequest struct {
	InputData map[string]interface{} `json:"input_data"`
	Options   map[string]interface{} `json:"options,omitempty"`
}

// AgentExecution is the result of running an agent directly
type AgentExecution struct {
	ExecutionID     string                 `json:"execution_id"`
	AgentName       string                 `json:"agent_name"`
	Status          string                 `json:"status"`
	Output          map[string]interface{} `json:"output"`
	ExecutionTimeMs float64                `json:"execution_time_ms"`
}

// AgentLog is one recorded agent execution
type AgentLog struct {
	ID              string    `json:"id"`
	AgentName       string    `json:"agent_name"`
	Action          string    `json:"action,omitempty"`
	Status          string    `json:"status"`
	ExecutionTimeMs *float64  `json:"execution_time_ms,omitempty"`
	CreatedAt       Timestamp `json:"created_at"`
	ErrorMessage    string    `json:"error_message,omitempty"`
}

// AgentLogList is one page of agent logs
type AgentLogList struct {
	Logs  []AgentLog `json:"logs"`
	Total int        `json:"total"`
	Skip  int        `json:"skip"`
	Limit int        `json:"limit"`
}

// Message is the {"message": ...} acknowledgement several endpoints return
type Message struct {
	Message string `json:"message"`
}
