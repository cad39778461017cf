package session

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragdesk/internal/backend"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u-1",
		"exp": exp.Unix(),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func checkInvariant(t *testing.T, st State) {
	t.Helper()
	assert.Equal(t, st.User != nil && st.Token != "", st.IsAuthenticated)
}

type fetcherFunc func(ctx context.Context) (*backend.User, error)

func (f fetcherFunc) Me(ctx context.Context) (*backend.User, error) { return f(ctx) }

func TestSetAuthPersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewStore(path, nil)

	require.NoError(t, s.SetAuth(&backend.User{ID: "u-1", Email: "ada@example.com"}, "opaque-token"))
	checkInvariant(t, s.Snapshot())
	assert.True(t, s.IsAuthenticated())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, StorageKey)

	reloaded := NewStore(path, nil)
	require.NoError(t, reloaded.Load())
	st := reloaded.Snapshot()
	checkInvariant(t, st)
	assert.True(t, st.IsAuthenticated)
	assert.Equal(t, "opaque-token", st.Token)
	assert.Equal(t, "ada@example.com", st.User.Email)
}

func TestSetAuthRejectsIncomplete(t *testing.T) {
	s := NewStore("", nil)
	assert.ErrorIs(t, s.SetAuth(nil, "tok"), ErrIncompleteAuth)
	assert.ErrorIs(t, s.SetAuth(&backend.User{ID: "u"}, ""), ErrIncompleteAuth)
	assert.False(t, s.IsAuthenticated())
	checkInvariant(t, s.Snapshot())
}

func TestLogoutClearsEverything(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewStore(path, nil)
	require.NoError(t, s.SetAuth(&backend.User{ID: "u-1"}, "tok"))

	require.NoError(t, s.Logout())
	st := s.Snapshot()
	assert.Nil(t, st.User)
	assert.Empty(t, st.Token)
	assert.False(t, st.IsAuthenticated)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Logging out twice is harmless.
	require.NoError(t, s.Logout())
}

func TestLoadDiscardsExpiredToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewStore(path, nil)
	require.NoError(t, s.SetAuth(&backend.User{ID: "u-1"}, signedToken(t, time.Now().Add(-time.Minute))))

	reloaded := NewStore(path, nil)
	require.NoError(t, reloaded.Load())
	assert.False(t, reloaded.IsAuthenticated())
	checkInvariant(t, reloaded.Snapshot())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLoadKeepsLiveToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	tok := signedToken(t, time.Now().Add(time.Hour))
	s := NewStore(path, nil)
	require.NoError(t, s.SetAuth(&backend.User{ID: "u-1"}, tok))

	reloaded := NewStore(path, nil)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, tok, reloaded.Token())
}

func TestLoadNormalizesInconsistentRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"auth-storage":{"state":{"user":null,"token":"tok","isAuthenticated":true},"version":0}}`), 0600))

	s := NewStore(path, nil)
	require.NoError(t, s.Load())
	st := s.Snapshot()
	checkInvariant(t, st)
	assert.False(t, st.IsAuthenticated)
}

func TestLoadCorruptFileMovedAside(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	s := NewStore(path, nil)
	require.NoError(t, s.Load())
	assert.False(t, s.IsAuthenticated())
	_, err := os.Stat(path + ".backup")
	assert.NoError(t, err)
}

func TestRefreshUserReplacesOnlyUser(t *testing.T) {
	s := NewStore("", nil)
	require.NoError(t, s.SetAuth(&backend.User{ID: "u-1", FullName: "Old"}, "tok"))

	s.RefreshUser(context.Background(), fetcherFunc(func(ctx context.Context) (*backend.User, error) {
		return &backend.User{ID: "u-1", FullName: "New"}, nil
	}))

	st := s.Snapshot()
	assert.Equal(t, "New", st.User.FullName)
	assert.Equal(t, "tok", st.Token)
	checkInvariant(t, st)
}

func TestRefreshUserKeepsPriorOnError(t *testing.T) {
	s := NewStore("", nil)
	require.NoError(t, s.SetAuth(&backend.User{ID: "u-1", FullName: "Old"}, "tok"))

	s.RefreshUser(context.Background(), fetcherFunc(func(ctx context.Context) (*backend.User, error) {
		return nil, errors.New("connection refused")
	}))

	assert.Equal(t, "Old", s.Snapshot().User.FullName)
	assert.True(t, s.IsAuthenticated())
}

func TestRefreshUserDroppedAfterLogout(t *testing.T) {
	s := NewStore("", nil)
	require.NoError(t, s.SetAuth(&backend.User{ID: "u-1"}, "tok"))

	s.RefreshUser(context.Background(), fetcherFunc(func(ctx context.Context) (*backend.User, error) {
		require.NoError(t, s.Logout())
		return &backend.User{ID: "u-1"}, nil
	}))

	st := s.Snapshot()
	assert.False(t, st.IsAuthenticated)
	assert.Nil(t, st.User)
}

func TestRefreshUserSkipsWhenSignedOut(t *testing.T) {
	s := NewStore("", nil)
	called := false
	s.RefreshUser(context.Background(), fetcherFunc(func(ctx context.Context) (*backend.User, error) {
		called = true
		return &backend.User{ID: "u"}, nil
	}))
	assert.False(t, called)
	assert.False(t, s.IsAuthenticated())
}

func TestConcurrentReadersSeeConsistentSnapshots(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "state.json"), nil)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					st := s.Snapshot()
					if st.IsAuthenticated != (st.User != nil && st.Token != "") {
						t.Errorf("inconsistent snapshot: %+v", st)
						return
					}
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		_ = s.SetAuth(&backend.User{ID: "u"}, "tok")
		_ = s.Logout()
	}
	close(stop)
	wg.Wait()
}

func TestTokenExpiry(t *testing.T) {
	fixed := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	prev := now
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = prev })

	assert.True(t, TokenExpired(signedToken(t, fixed.Add(-time.Second))))
	assert.False(t, TokenExpired(signedToken(t, fixed.Add(time.Hour))))
	assert.False(t, TokenExpired("not-a-jwt"))

	exp, ok := TokenExpiry(signedToken(t, fixed.Add(time.Hour)))
	require.True(t, ok)
	assert.Equal(t, fixed.Add(time.Hour).Unix(), exp.Unix())
}

type refresherFunc func(ctx context.Context, refresh string) (*backend.Token, error)

func (f refresherFunc) RefreshToken(ctx context.Context, refresh string) (*backend.Token, error) {
	return f(ctx, refresh)
}

func TestLoadKeepsExpiredTokenWithLiveRefresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	expired := signedToken(t, time.Now().Add(-time.Minute))
	refresh := signedToken(t, time.Now().Add(24*time.Hour))
	require.NoError(t, NewStore(path, nil).SetAuthWithRefresh(&backend.User{ID: "u-1"}, expired, refresh))

	s := NewStore(path, nil)
	require.NoError(t, s.Load())
	assert.True(t, s.IsAuthenticated())
	assert.True(t, s.NeedsRefresh())
	assert.Equal(t, refresh, s.Snapshot().RefreshToken)
}

func TestLoadDiscardsWhenRefreshAlsoExpired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	expired := signedToken(t, time.Now().Add(-time.Minute))
	require.NoError(t, NewStore(path, nil).SetAuthWithRefresh(&backend.User{ID: "u-1"}, expired, expired))

	s := NewStore(path, nil)
	require.NoError(t, s.Load())
	assert.False(t, s.IsAuthenticated())
	assert.NoFileExists(t, path)
}

func TestRefreshRotatesTokens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewStore(path, nil)
	require.NoError(t, s.SetAuthWithRefresh(&backend.User{ID: "u-1", Email: "old@example.com"}, "access-1", "refresh-1"))

	var sent string
	err := s.Refresh(context.Background(), refresherFunc(func(ctx context.Context, refresh string) (*backend.Token, error) {
		sent = refresh
		return &backend.Token{
			AccessToken:  "access-2",
			RefreshToken: "refresh-2",
			User:         &backend.User{ID: "u-1", Email: "new@example.com"},
		}, nil
	}))
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", sent)

	reloaded := NewStore(path, nil)
	require.NoError(t, reloaded.Load())
	st := reloaded.Snapshot()
	checkInvariant(t, st)
	assert.Equal(t, "access-2", st.Token)
	assert.Equal(t, "refresh-2", st.RefreshToken)
	assert.Equal(t, "new@example.com", st.User.Email)
}

func TestRefreshFailureKeepsSession(t *testing.T) {
	s := NewStore("", nil)
	require.NoError(t, s.SetAuthWithRefresh(&backend.User{ID: "u-1"}, "access-1", "refresh-1"))

	err := s.Refresh(context.Background(), refresherFunc(func(ctx context.Context, refresh string) (*backend.Token, error) {
		return nil, errors.New("connection refused")
	}))
	assert.Error(t, err)
	assert.Equal(t, "access-1", s.Token())
}

func TestRefreshWithoutRefreshToken(t *testing.T) {
	s := NewStore("", nil)
	require.NoError(t, s.SetAuth(&backend.User{ID: "u-1"}, "access-1"))

	err := s.Refresh(context.Background(), refresherFunc(func(ctx context.Context, refresh string) (*backend.Token, error) {
		t.Fatal("backend must not be called")
		return nil, nil
	}))
	assert.ErrorIs(t, err, ErrNoRefreshToken)
}

func TestRefreshDroppedAfterLogout(t *testing.T) {
	s := NewStore("", nil)
	require.NoError(t, s.SetAuthWithRefresh(&backend.User{ID: "u-1"}, "access-1", "refresh-1"))

	err := s.Refresh(context.Background(), refresherFunc(func(ctx context.Context, refresh string) (*backend.Token, error) {
		require.NoError(t, s.Logout())
		return &backend.Token{AccessToken: "access-2", RefreshToken: "refresh-2"}, nil
	}))
	require.NoError(t, err)
	st := s.Snapshot()
	checkInvariant(t, st)
	assert.False(t, st.IsAuthenticated)
}
