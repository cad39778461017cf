package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	mu      sync.Mutex
	token   string
	logouts int
}

func (s *fakeSession) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *fakeSession) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.logouts++
	return nil
}

type fakeNavigator struct {
	view      string
	redirects []string
}

func (n *fakeNavigator) CurrentView() string { return n.view }

func (n *fakeNavigator) Redirect(view string) {
	n.redirects = append(n.redirects, view)
	n.view = view
}

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api/v1/", 0, opts...)
}

func TestBearerTokenAttached(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/api/v1/agents/", r.URL.Path)
		_, _ = w.Write([]byte(`{"agents":[{"name":"rag","status":"active"}],"total":1}`))
	}, WithSession(&fakeSession{token: "abc"}))

	list, err := c.ListAgents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", gotAuth)
	require.Len(t, list.Agents, 1)
	assert.Equal(t, "rag", list.Agents[0].Name)
}

func TestNoTokenNoHeader(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}, WithSession(&fakeSession{}))

	require.NoError(t, c.HealthCheck(context.Background()))
}

func TestUnauthorizedLogsOutAndRedirects(t *testing.T) {
	sess := &fakeSession{token: "expired"}
	nav := &fakeNavigator{view: "documents"}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Could not validate credentials"}`))
	}, WithSession(sess), WithNavigator(nav))

	_, err := c.ListDocuments(context.Background(), DocumentFilter{})
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, 1, sess.logouts)
	assert.Empty(t, sess.Token())
	assert.Equal(t, []string{ViewLogin}, nav.redirects)
}

func TestUnauthorizedOnAuthViewDoesNotRedirect(t *testing.T) {
	for _, view := range []string{ViewLogin, ViewRegister} {
		t.Run(view, func(t *testing.T) {
			sess := &fakeSession{token: "x"}
			nav := &fakeNavigator{view: view}
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"detail":"Incorrect email or password"}`))
			}, WithSession(sess), WithNavigator(nav))

			_, err := c.Login(context.Background(), "a@b.c", "wrong")
			require.Error(t, err)
			assert.Equal(t, "Incorrect email or password", UserMessage(err, "Login failed"))
			assert.Equal(t, 1, sess.logouts)
			assert.Empty(t, nav.redirects)
		})
	}
}

func TestErrorDetailExtraction(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"string detail", 400, `{"detail":"File type not allowed"}`, "File type not allowed"},
		{"validation list", 422, `{"detail":[{"loc":["body","query"],"msg":"field required"},{"loc":["body","top_k"],"msg":"must be positive"}]}`, "query: field required; top_k: must be positive"},
		{"error envelope", 502, `{"error":"upstream unavailable"}`, "upstream unavailable"},
		{"message envelope", 500, `{"message":"boom"}`, "boom"},
		{"not json", 500, `<html>oops</html>`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Me(context.Background())
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.want, apiErr.Detail)
			assert.False(t, IsUnauthorized(err))
		})
	}
}

func TestUserMessageFallback(t *testing.T) {
	assert.Equal(t, "Something went wrong", UserMessage(errors.New("dial tcp: refused"), "Something went wrong"))
	assert.Equal(t, "Something went wrong", UserMessage(&APIError{StatusCode: 500}, "Something went wrong"))
	assert.Equal(t, "nope", UserMessage(&APIError{StatusCode: 403, Detail: "nope"}, "Something went wrong"))
}

func TestAskRequestBody(t *testing.T) {
	var raw []byte
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/queries/ask", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		raw, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{
			"query_id":"q-1","query":"What is the Q3 revenue?","response":"$4.2M",
			"sources":[{"chunk_id":"c1","document_id":"doc-1","document_name":"report.pdf","content":"Q3 revenue was $4.2M","similarity_score":0.91}],
			"agent_used":"rag_agent",
			"routing":{"selected_agent":"rag_agent","confidence":0.87,"reason":"document question"},
			"execution_time_ms":812.5
		}`))
	})

	resp, err := c.Ask(context.Background(), AskRequest{
		Query:       "What is the Q3 revenue?",
		DocumentIDs: []string{"doc-1"},
		Mode:        ModeRAG,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"query":"What is the Q3 revenue?","document_ids":["doc-1"],"mode":"rag"}`, string(raw))

	assert.Equal(t, "rag_agent", resp.AgentUsed)
	require.NotNil(t, resp.Routing)
	assert.InDelta(t, 0.87, resp.Routing.Confidence, 1e-9)
	require.NotNil(t, resp.ExecutionTimeMs)
	assert.InDelta(t, 812.5, *resp.ExecutionTimeMs, 1e-9)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "report.pdf", resp.Sources[0].DocumentName)
}

func TestLoginSendsForm(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "ada@example.com", r.PostForm.Get("username"))
		assert.Equal(t, "s3cret!!", r.PostForm.Get("password"))
		_, _ = w.Write([]byte(`{"access_token":"","refresh_token":"","token_type":"bearer","requires_2fa":true,"user":{"id":"u-1","email":"ada@example.com"}}`))
	})

	tok, err := c.Login(context.Background(), "ada@example.com", "s3cret!!")
	require.NoError(t, err)
	assert.True(t, tok.Requires2FA)
	require.NotNil(t, tok.User)
	assert.Equal(t, "u-1", tok.User.ID)
}

func TestChatTrimsHistory(t *testing.T) {
	var got ChatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"message_id":"m","response":"ok","context_used":[],"agent_used":"chat"}`))
	})

	turns := make([]ChatTurn, MaxChatHistory+5)
	for i := range turns {
		turns[i] = ChatTurn{Role: "user", Content: string(rune('a' + i%26))}
	}
	_, err := c.Chat(context.Background(), ChatRequest{Message: "hi", ConversationHistory: turns})
	require.NoError(t, err)
	require.Len(t, got.ConversationHistory, MaxChatHistory)
	assert.Equal(t, turns[5], got.ConversationHistory[0])
}

func TestUploadDocumentMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/documents/upload", r.URL.Path)
		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		assert.Equal(t, "report.pdf", hdr.Filename)
		assert.Equal(t, "application/pdf", hdr.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"doc-9","filename":"report.pdf","content_type":"application/pdf","file_size":4,"status":"pending","chunk_count":0,"created_at":"2024-05-01T10:00:00"}`))
	})

	doc, err := c.UploadDocument(context.Background(), "report.pdf", "", strings.NewReader("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", doc.Filename)
	assert.Equal(t, StatusPending, doc.Status)
	assert.Equal(t, 2024, doc.CreatedAt.Year())
}

func TestUploadManyKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.txt", "b.txt", "missing.txt", "c.txt"} {
		p := filepath.Join(dir, name)
		if name != "missing.txt" {
			require.NoError(t, os.WriteFile(p, []byte(name), 0600))
		}
		paths = append(paths, p)
	}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"id":"` + hdr.Filename + `","filename":"` + hdr.Filename + `","status":"pending"}`))
	})

	results := c.UploadMany(context.Background(), paths, 2)
	require.Len(t, results, 4)
	assert.Equal(t, "a.txt", results[0].Document.Filename)
	assert.Equal(t, "b.txt", results[1].Document.Filename)
	assert.Error(t, results[2].Error)
	assert.Nil(t, results[2].Document)
	assert.Equal(t, "c.txt", results[3].Document.Filename)
}

func TestWatchDocumentStopsAtTerminal(t *testing.T) {
	statuses := []string{"pending", "processing", "processing", "completed"}
	var mu sync.Mutex
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		s := statuses[calls]
		calls++
		mu.Unlock()
		_, _ = w.Write([]byte(`{"document_id":"d","status":"` + s + `","message":""}`))
	})

	var seen []DocumentStatus
	info, err := c.WatchDocument(context.Background(), "d", 1, func(i DocumentStatusInfo) {
		seen = append(seen, i.Status)
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, info.Status)
	assert.Equal(t, []DocumentStatus{StatusPending, StatusProcessing, StatusCompleted}, seen)
	assert.Equal(t, 4, calls)
}

func TestPathAndQueryEncoding(t *testing.T) {
	tests := []struct {
		name string
		call func(c *Client) error
		path string
		qry  string
	}{
		{"agent logs", func(c *Client) error {
			_, err := c.AgentLogs(context.Background(), AgentLogFilter{Skip: 10, Limit: 5, AgentName: "rag"})
			return err
		}, "/api/v1/agents/logs", "agent_name=rag&limit=5&skip=10"},
		{"trending", func(c *Client) error {
			_, err := c.Trending(context.Background(), 7, 5)
			return err
		}, "/api/v1/analytics/trending", "days=7&top_n=5"},
		{"diff to latest", func(c *Client) error {
			_, err := c.DiffVersions(context.Background(), "doc-1", 2, 0)
			return err
		}, "/api/v1/documents/doc-1/versions/2/diff", ""},
		{"compare", func(c *Client) error {
			_, err := c.CompareVersions(context.Background(), "doc-1", 1, 3)
			return err
		}, "/api/v1/documents/doc-1/versions/1/compare/3", ""},
		{"subgraph", func(c *Client) error {
			_, err := c.EntitySubgraph(context.Background(), "e 1", 2)
			return err
		}, "/api/v1/knowledge-graph/entities/e 1/graph", "depth=2"},
		{"dashboard activity", func(c *Client) error {
			_, err := c.DashboardActivity(context.Background(), 10)
			return err
		}, "/api/v1/dashboard/activity", "limit=10"},
		{"dashboard stats", func(c *Client) error {
			_, err := c.DashboardStats(context.Background())
			return err
		}, "/api/v1/dashboard/stats", ""},
		{"unread notifications", func(c *Client) error {
			_, err := c.Notifications(context.Background(), true, 0, 0)
			return err
		}, "/api/v1/collaboration/notifications", "unread_only=true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.path, r.URL.Path)
				assert.Equal(t, tt.qry, r.URL.RawQuery)
				_, _ = w.Write([]byte(`{}`))
			})
			_ = tt.call(c)
		})
	}
}

func TestGenerateSQL(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/queries/sql", r.URL.Path)
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]interface{}{"query": "orders per month", "execute": false}, body)
		_, _ = w.Write([]byte(`{"query_id":"q-1","natural_language":"orders per month",
			"generated_sql":"SELECT 1;","explanation":"demo","executed":false,"results":null}`))
	})

	resp, err := c.GenerateSQL(context.Background(), SQLRequest{Query: "orders per month"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1;", resp.GeneratedSQL)
	assert.False(t, resp.Executed)
	assert.Nil(t, resp.Results)
}

func TestRefreshTokenSendsRefreshToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/auth/refresh", r.URL.Path)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ref-1", body["refresh_token"])
		_, _ = w.Write([]byte(`{"access_token":"a2","refresh_token":"r2","token_type":"bearer"}`))
	})

	tok, err := c.RefreshToken(context.Background(), "ref-1")
	require.NoError(t, err)
	assert.Equal(t, "a2", tok.AccessToken)
	assert.Equal(t, "r2", tok.RefreshToken)
}

func TestOverviewDecodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/dashboard", r.URL.Path)
		_, _ = w.Write([]byte(`{"stats":{"total_documents":3,"queries_today":2,"active_agents":4,"avg_response_time":1.25},
			"recent_activity":[{"id":"d1","type":"upload","description":"Uploaded \"a.pdf\"","timestamp":"2024-05-01T10:00:00"}]}`))
	})

	o, err := c.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, o.Stats.TotalDocuments)
	assert.Equal(t, 1.25, o.Stats.AvgResponseTime)
	require.Len(t, o.RecentActivity, 1)
	assert.Equal(t, 10, o.RecentActivity[0].Timestamp.Hour())
}

func TestVersionResponsesAreTyped(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/diff") {
			_, _ = w.Write([]byte(`{"from_version":1,"to_version":2,
				"from_version_info":{"title":"Plan","created_at":"2024-05-01T10:00:00"},
				"to_version_info":{"title":null,"created_at":null},
				"diff_content":"-a\n+b"}`))
			return
		}
		_, _ = w.Write([]byte(`{"version_a":{"number":1,"title":"Plan","content_hash":"abc","created_at":"2024-05-01T10:00:00","changed_by":null},
			"version_b":{"number":3,"title":"Plan v3","content_hash":"abc","created_at":"2024-05-03T10:00:00"},
			"diff":"","same_content":true}`))
	})

	diff, err := c.DiffVersions(context.Background(), "doc-1", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "Plan", diff.FromVersionInfo.Title)
	assert.Equal(t, 2024, diff.FromVersionInfo.CreatedAt.Year())
	assert.Empty(t, diff.ToVersionInfo.Title)
	assert.True(t, diff.ToVersionInfo.CreatedAt.IsZero())

	cmp, err := c.CompareVersions(context.Background(), "doc-1", 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, cmp.VersionB.Number)
	assert.Equal(t, 3, cmp.VersionB.CreatedAt.Day())
	assert.True(t, cmp.SameContent)
}

func TestExportAnalyticsRaw(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "csv", r.URL.Query().Get("format"))
		_, _ = w.Write([]byte("=== Usage Summary ===\r\n"))
	})

	data, err := c.ExportAnalytics(context.Background(), 30, ExportCSV)
	require.NoError(t, err)
	assert.Equal(t, "=== Usage Summary ===\r\n", string(data))

	_, err = c.ExportAnalytics(context.Background(), 30, "xml")
	assert.Error(t, err)
}

func TestTransportErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(url, 0)
	_, err := c.Me(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestParseQueryMode(t *testing.T) {
	m, err := ParseQueryMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeAuto, m)

	m, err = ParseQueryMode(" CREW_QA ")
	require.NoError(t, err)
	assert.Equal(t, ModeCrewQA, m)

	_, err = ParseQueryMode("telepathy")
	assert.Error(t, err)
	assert.Len(t, QueryModes, 16)
}
