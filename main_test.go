package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ragdesk/internal/backend"
	"ragdesk/internal/chat"
	"ragdesk/internal/config"
	"ragdesk/internal/terminal"
	"ragdesk/internal/ui"
)

// syncBuffer is written by the spinner goroutine and read by the test
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestApp(t *testing.T, h http.HandlerFunc, input io.Reader) (*app, *syncBuffer) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := config.NewConfig()
	cfg.APIURL = srv.URL + "/api/v1"
	cfg.StatePath = filepath.Join(t.TempDir(), "state.json")

	out := &syncBuffer{}
	a, err := newApp(cfg, zap.NewNop(), backend.ModeAuto, terminal.NewReaderFrom(input, out), out)
	require.NoError(t, err)
	return a, out
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	assert.NoError(t, json.NewEncoder(w).Encode(v))
}

var testUser = map[string]interface{}{
	"id":        "u-1",
	"email":     "a@b.com",
	"full_name": "Ada Byron",
	"is_active": true,
}

func TestLoginFetchesUserWhenTokenHasNone(t *testing.T) {
	var meCalls int32
	a, _ := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/login":
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "a@b.com", r.PostForm.Get("username"))
			assert.Equal(t, "longenough1", r.PostForm.Get("password"))
			writeJSON(t, w, map[string]interface{}{
				"access_token":  "tok-1",
				"refresh_token": "ref-1",
				"token_type":    "bearer",
			})
		case "/api/v1/auth/me":
			atomic.AddInt32(&meCalls, 1)
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			writeJSON(t, w, testUser)
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
		}
	}, strings.NewReader("longenough1\n"))

	require.NoError(t, a.cmdLogin(context.Background(), []string{"a@b.com"}))

	st := a.session.Snapshot()
	assert.True(t, st.IsAuthenticated)
	assert.Equal(t, "tok-1", st.Token)
	assert.Equal(t, "ref-1", st.RefreshToken)
	require.NotNil(t, st.User)
	assert.Equal(t, "a@b.com", st.User.Email)
	assert.Equal(t, int32(1), atomic.LoadInt32(&meCalls))
	assert.Equal(t, ui.ViewChat, a.router.CurrentView())
}

func TestLoginWithTwoFactor(t *testing.T) {
	a, _ := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/login":
			writeJSON(t, w, map[string]interface{}{
				"access_token":  "",
				"refresh_token": "",
				"requires_2fa":  true,
			})
		case "/api/v1/auth/verify-2fa":
			var body backend.TwoFactorVerify
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, backend.TwoFactorVerify{UserID: "u-1", Code: "123456"}, body)
			writeJSON(t, w, map[string]interface{}{
				"access_token":  "tok-2",
				"refresh_token": "ref-2",
				"user":          testUser,
			})
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
		}
	}, strings.NewReader("longenough1\nu-1\n123456\n"))

	require.NoError(t, a.cmdLogin(context.Background(), []string{"a@b.com"}))

	st := a.session.Snapshot()
	assert.True(t, st.IsAuthenticated)
	assert.Equal(t, "tok-2", st.Token)
	assert.Equal(t, "Ada Byron", st.User.FullName)
}

func TestLoginRejectedStaysSignedOut(t *testing.T) {
	a, out := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Incorrect email or password"}`))
	}, strings.NewReader("wrongpassword\n"))

	err := a.cmdLogin(context.Background(), []string{"a@b.com"})
	var rep reportedError
	require.True(t, errors.As(err, &rep))
	assert.False(t, a.session.IsAuthenticated())
	assert.Equal(t, ui.ViewLogin, a.router.CurrentView())
	assert.Contains(t, out.String(), "Incorrect email or password")
	assert.NotContains(t, out.String(), "session has expired")
}

func TestPasswdSignsOutAndClearsCache(t *testing.T) {
	var meCalls int32
	a, _ := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/me":
			atomic.AddInt32(&meCalls, 1)
			writeJSON(t, w, testUser)
		case "/api/v1/auth/change-password":
			writeJSON(t, w, map[string]string{"message": "Password changed"})
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
		}
	}, strings.NewReader("oldpassword1\nnewpassword1\nnewpassword1\n"))
	require.NoError(t, a.session.SetAuth(&backend.User{ID: "u-1"}, "tok-1"))

	ctx := context.Background()
	require.NoError(t, a.hooks.CurrentUser(ctx).Err)
	require.NoError(t, a.cmdPasswd(ctx, nil))

	assert.False(t, a.session.IsAuthenticated())
	require.NoError(t, a.hooks.CurrentUser(ctx).Err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&meCalls))
}

func TestRefreshSessionRenewsTokens(t *testing.T) {
	a, _ := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/auth/refresh", r.URL.Path)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ref-1", body["refresh_token"])
		writeJSON(t, w, map[string]interface{}{
			"access_token":  "tok-2",
			"refresh_token": "ref-2",
			"user":          testUser,
		})
	}, strings.NewReader(""))
	require.NoError(t, a.session.SetAuthWithRefresh(&backend.User{ID: "u-1"}, "tok-1", "ref-1"))

	require.NoError(t, a.cmdLogin(context.Background(), []string{"--refresh"}))
	st := a.session.Snapshot()
	assert.Equal(t, "tok-2", st.Token)
	assert.Equal(t, "ref-2", st.RefreshToken)
}

func TestRefreshRejectedSignsOut(t *testing.T) {
	a, _ := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Invalid or expired refresh token"}`))
	}, strings.NewReader(""))
	require.NoError(t, a.session.SetAuthWithRefresh(&backend.User{ID: "u-1"}, "tok-1", "ref-1"))
	a.router.Navigate(ui.ViewChat)

	assert.False(t, a.refreshSession(context.Background()))
	assert.False(t, a.session.IsAuthenticated())
	assert.Equal(t, ui.ViewLogin, a.router.CurrentView())
}

func TestChatReturnsOnInterruptAtPrompt(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	a, out := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/health/":
			writeJSON(t, w, map[string]string{"status": "healthy"})
		case "/api/v1/auth/me":
			writeJSON(t, w, testUser)
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
		}
	}, pr)
	require.NoError(t, a.session.SetAuth(&backend.User{ID: "u-1"}, "tok-1"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.cmdChat(ctx, nil) }()

	require.Eventually(t, func() bool { return strings.Contains(out.String(), "[auto]") },
		2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("chat did not return after interrupt")
	}
}

func TestAgentInput(t *testing.T) {
	assert.Equal(t, map[string]interface{}{"query": "summarize Q3"}, agentInput("summarize Q3"))
	assert.Equal(t, map[string]interface{}{"document_id": "doc-1"}, agentInput(`{"document_id":"doc-1"}`))
	assert.Equal(t, map[string]interface{}{"query": "[1,2]"}, agentInput("[1,2]"))
}

func TestAtoiAcceptsVersionPrefix(t *testing.T) {
	n, err := atoi("v3", "version")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = atoi("latest", "version")
	assert.EqualError(t, err, `invalid version "latest"`)
}

func TestChatStateLabel(t *testing.T) {
	s := &chatState{opts: chat.Options{Mode: backend.ModeRAG}}
	assert.Equal(t, "rag", s.label())

	s.opts.Transport = chat.TransportChat
	s.opts.AgentName = "sql_agent"
	s.opts.DocumentIDs = []string{"a", "b"}
	assert.Equal(t, "rag+chat@sql_agent 2 docs", s.label())
}

func TestReportedError(t *testing.T) {
	assert.Nil(t, reported(nil))

	base := errors.New("boom")
	err := reported(base)
	var rep reportedError
	require.True(t, errors.As(err, &rep))
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "boom", err.Error())
}

func TestSubcommandUsage(t *testing.T) {
	_, _, err := subcommand(nil, docsUsage)
	assert.EqualError(t, err, "usage: "+docsUsage)

	sub, rest, err := subcommand([]string{"show", "doc-1"}, docsUsage)
	require.NoError(t, err)
	assert.Equal(t, "show", sub)
	assert.Equal(t, []string{"doc-1"}, rest)

	assert.Error(t, need([]string{"a"}, 2, "x"))
	assert.NoError(t, need([]string{"a", "b"}, 2, "x"))
}

func TestCommandTableCoversHelp(t *testing.T) {
	a := &app{}
	for _, name := range []string{"chat", "ask", "login", "register", "logout", "whoami", "profile", "passwd",
		"2fa", "history", "sql", "dashboard", "docs", "versions", "agents", "analytics", "collab", "kg", "health"} {
		_, ok := a.commands()[name]
		assert.True(t, ok, name)
	}
}
