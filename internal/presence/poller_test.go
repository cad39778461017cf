package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragdesk/internal/backend"
)

type fakeAPI struct {
	mu         sync.Mutex
	started    backend.StartSessionRequest
	heartbeats int
	ended      []string
	startErr   error
}

func (f *fakeAPI) StartSession(ctx context.Context, req backend.StartSessionRequest) (*backend.CollabSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = req
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &backend.CollabSession{SessionID: "s-1", DocumentID: req.DocumentID}, nil
}

func (f *fakeAPI) SessionHeartbeat(ctx context.Context, sessionID string, hb backend.Heartbeat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats++
	return nil
}

func (f *fakeAPI) EndSession(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, sessionID)
	return nil
}

func (f *fakeAPI) Collaborators(ctx context.Context, documentID string) ([]backend.Collaborator, error) {
	return []backend.Collaborator{{UserName: "Ada"}}, nil
}

func (f *fakeAPI) beats() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heartbeats
}

func TestPollerHeartbeatsUntilCancelled(t *testing.T) {
	api := &fakeAPI{}
	p := NewPoller(api, 5*time.Millisecond, "cli-1", nil)

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	ticks := 0
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx, "doc-1", func(c []backend.Collaborator) {
			mu.Lock()
			ticks++
			mu.Unlock()
		})
	}()

	require.Eventually(t, func() bool { return api.beats() >= 3 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, "doc-1", api.started.DocumentID)
	assert.Equal(t, "cli-1", api.started.ClientID)
	assert.Equal(t, []string{"s-1"}, api.ended)
	mu.Lock()
	assert.GreaterOrEqual(t, ticks, 3)
	mu.Unlock()
}

func TestPollerStartFailure(t *testing.T) {
	api := &fakeAPI{startErr: errors.New("forbidden")}
	p := NewPoller(api, time.Millisecond, "cli-1", nil)

	err := p.Run(context.Background(), "doc-1", nil)
	require.Error(t, err)
	assert.Zero(t, api.beats())
	assert.Empty(t, api.ended)
}
