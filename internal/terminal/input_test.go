package terminal

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLineKeepsBufferedInput(t *testing.T) {
	var out bytes.Buffer
	r := NewReaderFrom(strings.NewReader("first\n  second  \nlast"), &out)

	line, err := r.ReadLine("> ")
	require.NoError(t, err)
	assert.Equal(t, "first", line)

	line, err = r.ReadLine("> ")
	require.NoError(t, err)
	assert.Equal(t, "second", line)

	line, err = r.ReadLine("")
	require.NoError(t, err)
	assert.Equal(t, "last", line)

	_, err = r.ReadLine("")
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "> > ", out.String())
}

func TestReadLineContextCancelledWhileBlocked(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	r := NewReaderFrom(pr, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.ReadLineContext(ctx, "> ")
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("read did not return after cancel")
	}

	// the abandoned read hands its line to the next call
	go func() { _, _ = pw.Write([]byte("late line\n")) }()
	line, err := r.ReadLine("")
	require.NoError(t, err)
	assert.Equal(t, "late line", line)
}

func TestReadPasswordWithoutTerminal(t *testing.T) {
	r := NewReaderFrom(strings.NewReader("hunter22\n"), io.Discard)
	pw, err := r.ReadPassword("Password: ")
	require.NoError(t, err)
	assert.Equal(t, "hunter22", pw)
}

func TestConfirm(t *testing.T) {
	r := NewReaderFrom(strings.NewReader("YES\nnope\n"), io.Discard)
	assert.True(t, r.Confirm("Delete?"))
	assert.False(t, r.Confirm("Delete?"))
	assert.False(t, r.Confirm("Delete?"))
}

func TestExpandPathsAndSuggestions(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"q3-report.pdf", "q4-report.pdf", "notes.txt", ".hidden.pdf"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0600))
	}

	paths := ExpandPaths([]string{filepath.Join(dir, "*-report.pdf"), "missing.pdf"})
	assert.Equal(t, []string{
		filepath.Join(dir, "q3-report.pdf"),
		filepath.Join(dir, "q4-report.pdf"),
		"missing.pdf",
	}, paths)

	assert.ElementsMatch(t, []string{"q3-report.pdf", "q4-report.pdf"}, FindMatchingFiles(dir, "report"))
	assert.Empty(t, FindMatchingFiles(dir, "hidden"))
}
