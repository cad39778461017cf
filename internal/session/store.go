package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"ragdesk/internal/backend"
)

// StorageKey is the record name the session is persisted under.
const StorageKey = "auth-storage"

var (
	// ErrIncompleteAuth is returned by SetAuth when the user or token is missing.
	ErrIncompleteAuth = errors.New("session needs both a user and a token")
	// ErrNoRefreshToken is returned by Refresh when none was stored.
	ErrNoRefreshToken = errors.New("no refresh token stored; sign in again")
)

// State is a consistent snapshot of the session
type State struct {
	User            *backend.User `json:"user"`
	Token           string        `json:"token"`
	RefreshToken    string        `json:"refreshToken,omitempty"`
	IsAuthenticated bool          `json:"isAuthenticated"`
}

// record is the on-disk envelope
type record struct {
	State   State `json:"state"`
	Version int   `json:"version"`
}

// UserFetcher returns the current user from the backend
type UserFetcher interface {
	Me(ctx context.Context) (*backend.User, error)
}

// Refresher trades a refresh token for a new token pair
type Refresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*backend.Token, error)
}

// Store holds the authenticated session and persists it to a file
type Store struct {
	filePath string
	logger   *zap.Logger

	mu    sync.RWMutex
	state State
}

// NewStore creates a store persisting to filePath. An empty path keeps the
// session in memory only.
func NewStore(filePath string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		filePath: filePath,
		logger:   logger,
	}
}

// Load restores a persisted session. A missing file leaves the store empty
// and a corrupt file is moved aside. An expired access token is discarded
// unless a live refresh token can renew it.
func (s *Store) Load() error {
	if s.filePath == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read session file: %w", err)
	}

	var records map[string]record
	if err := json.Unmarshal(data, &records); err != nil {
		backupPath := s.filePath + ".backup"
		if rerr := os.Rename(s.filePath, backupPath); rerr != nil {
			s.logger.Warn("failed to move corrupt session file aside", zap.Error(rerr))
		}
		s.logger.Warn("session file was corrupt, starting signed out",
			zap.String("backup", backupPath), zap.Error(err))
		return nil
	}

	rec, ok := records[StorageKey]
	if !ok {
		return nil
	}

	state := normalize(rec.State)
	if state.IsAuthenticated && TokenExpired(state.Token) &&
		(state.RefreshToken == "" || TokenExpired(state.RefreshToken)) {
		s.logger.Info("persisted token has expired, discarding session")
		s.state = State{}
		return s.removeUnlocked()
	}

	s.state = state
	return nil
}

// SetAuth replaces the session with user and token and persists it. Any
// stored refresh token is dropped.
func (s *Store) SetAuth(user *backend.User, token string) error {
	return s.SetAuthWithRefresh(user, token, "")
}

// SetAuthWithRefresh is SetAuth that also keeps a refresh token.
func (s *Store) SetAuthWithRefresh(user *backend.User, token, refreshToken string) error {
	if user == nil || token == "" {
		return ErrIncompleteAuth
	}

	u := *user
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = State{User: &u, Token: token, RefreshToken: refreshToken, IsAuthenticated: true}
	s.logger.Info("signed in", zap.String("user_id", u.ID))
	return s.saveUnlocked()
}

// Logout clears the session and removes the persisted record.
func (s *Store) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasAuthenticated := s.state.IsAuthenticated
	s.state = State{}
	if wasAuthenticated {
		s.logger.Info("signed out")
	}
	return s.removeUnlocked()
}

// RefreshUser refetches the current user and replaces only the user field.
// Failures are logged and the previous user is kept. A refresh that
// completes after the session changed is dropped.
func (s *Store) RefreshUser(ctx context.Context, fetcher UserFetcher) {
	s.mu.RLock()
	token := s.state.Token
	authenticated := s.state.IsAuthenticated
	s.mu.RUnlock()

	if !authenticated {
		return
	}

	user, err := fetcher.Me(ctx)
	if err != nil {
		s.logger.Warn("failed to refresh user", zap.Error(err))
		return
	}
	if user == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.IsAuthenticated || s.state.Token != token {
		s.logger.Debug("session changed during user refresh, dropping result")
		return
	}
	u := *user
	s.state.User = &u
	if err := s.saveUnlocked(); err != nil {
		s.logger.Warn("failed to persist refreshed user", zap.Error(err))
	}
}

// NeedsRefresh reports whether the session is held only by its refresh
// token.
func (s *Store) NeedsRefresh() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated && s.state.RefreshToken != "" && TokenExpired(s.state.Token)
}

// Refresh renews the access token. The user from the response replaces the
// stored one when present. A refresh that completes after the session
// changed is dropped. The caller decides when to refresh; a rejected
// request is never retried here.
func (s *Store) Refresh(ctx context.Context, r Refresher) error {
	s.mu.RLock()
	refresh := s.state.RefreshToken
	s.mu.RUnlock()

	if refresh == "" {
		return ErrNoRefreshToken
	}

	tok, err := r.RefreshToken(ctx, refresh)
	if err != nil {
		return fmt.Errorf("failed to refresh session: %w", err)
	}
	if tok == nil || tok.AccessToken == "" {
		return errors.New("the backend did not return an access token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.IsAuthenticated || s.state.RefreshToken != refresh {
		s.logger.Debug("session changed during refresh, dropping result")
		return nil
	}

	user := s.state.User
	if tok.User != nil {
		u := *tok.User
		user = &u
	}
	next := tok.RefreshToken
	if next == "" {
		next = refresh
	}
	s.state = State{User: user, Token: tok.AccessToken, RefreshToken: next, IsAuthenticated: true}
	s.logger.Info("session refreshed", zap.String("user_id", user.ID))
	return s.saveUnlocked()
}

// Token returns the bearer token, empty when signed out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

// IsAuthenticated reports whether a user is signed in.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.state
	if out.User != nil {
		u := *out.User
		out.User = &u
	}
	return out
}

// normalize forces the authenticated flag to agree with the fields.
func normalize(st State) State {
	if st.User == nil || st.Token == "" {
		return State{}
	}
	st.IsAuthenticated = true
	return st
}

// saveUnlocked must be called with the lock held
func (s *Store) saveUnlocked() error {
	if s.filePath == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.MarshalIndent(map[string]record{
		StorageKey: {State: s.state},
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	tempPath := s.filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempPath, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// removeUnlocked must be called with the lock held
func (s *Store) removeUnlocked() error {
	if s.filePath == "" {
		return nil
	}
	if err := os.Remove(s.filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
