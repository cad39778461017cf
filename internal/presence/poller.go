package presence

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ragdesk/internal/backend"
)

// API is the part of the backend that tracks presence
type API interface {
	StartSession(ctx context.Context, req backend.StartSessionRequest) (*backend.CollabSession, error)
	SessionHeartbeat(ctx context.Context, sessionID string, hb backend.Heartbeat) error
	EndSession(ctx context.Context, sessionID string) error
	Collaborators(ctx context.Context, documentID string) ([]backend.Collaborator, error)
}

// Poller keeps a presence session open on a document by sending heartbeats
// on a fixed interval, and reports who else is present
type Poller struct {
	api      API
	interval time.Duration
	clientID string
	logger   *zap.Logger
}

// NewPoller creates a poller that heartbeats every interval.
func NewPoller(api API, interval time.Duration, clientID string, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		api:      api,
		interval: interval,
		clientID: clientID,
		logger:   logger,
	}
}

// Run opens a session on documentID and heartbeats until ctx is cancelled,
// then ends the session. onTick receives the collaborator list after every
// heartbeat. A failed heartbeat is logged and retried on the next tick.
func (p *Poller) Run(ctx context.Context, documentID string, onTick func([]backend.Collaborator)) error {
	sess, err := p.api.StartSession(ctx, backend.StartSessionRequest{
		DocumentID: documentID,
		ClientID:   p.clientID,
		ClientInfo: map[string]interface{}{"client": "ragdesk"},
	})
	if err != nil {
		return fmt.Errorf("failed to start presence session: %w", err)
	}

	log := p.logger.With(zap.String("session_id", sess.SessionID), zap.String("document_id", documentID))
	log.Info("presence session started")

	defer func() {
		// The parent context is done by now; give the goodbye its own deadline.
		endCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.api.EndSession(endCtx, sess.SessionID); err != nil {
			log.Warn("failed to end presence session", zap.Error(err))
			return
		}
		log.Info("presence session ended")
	}()

	p.tick(ctx, log, sess.SessionID, documentID, onTick)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.tick(ctx, log, sess.SessionID, documentID, onTick)
		}
	}
}

func (p *Poller) tick(ctx context.Context, log *zap.Logger, sessionID, documentID string, onTick func([]backend.Collaborator)) {
	if err := p.api.SessionHeartbeat(ctx, sessionID, backend.Heartbeat{}); err != nil {
		if ctx.Err() == nil {
			log.Warn("heartbeat failed", zap.Error(err))
		}
		return
	}

	if onTick == nil {
		return
	}
	collaborators, err := p.api.Collaborators(ctx, documentID)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("failed to list collaborators", zap.Error(err))
		}
		return
	}
	onTick(collaborators)
}
