package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ragdesk.log")

	logger, err := New(path, false)
	require.NoError(t, err)

	logger.Named("session").Info("user refreshed")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"user refreshed"`)
	assert.Contains(t, string(data), `"logger":"session"`)
}
