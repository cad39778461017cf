package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
)

// Reader reads user input line by line
type Reader struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
	tty bool

	// pending holds a read abandoned by a cancelled ReadLineContext; the
	// next read takes its line instead of starting another.
	pending chan lineResult
}

type lineResult struct {
	line string
	err  error
}

// NewReader reads from stdin and prompts on out.
func NewReader(out io.Writer) *Reader {
	fd := int(os.Stdin.Fd())
	return &Reader{
		in:  bufio.NewReader(os.Stdin),
		out: out,
		fd:  fd,
		tty: term.IsTerminal(fd),
	}
}

// NewReaderFrom reads from r; password input is echoed.
func NewReaderFrom(r io.Reader, out io.Writer) *Reader {
	return &Reader{
		in:  bufio.NewReader(r),
		out: out,
		fd:  -1,
	}
}

// ReadLine prints prompt and reads one trimmed line. io.EOF is returned
// only when no text preceded it.
func (r *Reader) ReadLine(prompt string) (string, error) {
	return r.ReadLineContext(context.Background(), prompt)
}

// ReadLineContext is ReadLine that gives up when ctx is done. The read
// keeps going in the background and its line goes to the next call.
func (r *Reader) ReadLineContext(ctx context.Context, prompt string) (string, error) {
	if prompt != "" {
		fmt.Fprint(r.out, prompt)
	}

	if r.pending == nil {
		ch := make(chan lineResult, 1)
		r.pending = ch
		go func() {
			line, err := r.in.ReadString('\n')
			ch <- lineResult{line: line, err: err}
		}()
	}

	select {
	case res := <-r.pending:
		r.pending = nil
		if res.err != nil && (res.err != io.EOF || res.line == "") {
			return "", res.err
		}
		return strings.TrimSpace(res.line), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// ReadPassword prints prompt and reads a line without echo when stdin is a
// terminal.
func (r *Reader) ReadPassword(prompt string) (string, error) {
	if !r.tty {
		return r.ReadLine(prompt)
	}

	fmt.Fprint(r.out, prompt)
	b, err := term.ReadPassword(r.fd)
	fmt.Fprintln(r.out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// Confirm asks a yes/no question; anything but y or yes is no.
func (r *Reader) Confirm(prompt string) bool {
	answer, err := r.ReadLine(prompt + " [y/N] ")
	if err != nil {
		return false
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes"
}

// ExpandPaths resolves upload arguments: glob patterns are expanded, and
// plain paths are passed through for the upload to report if missing.
func ExpandPaths(args []string) []string {
	var paths []string
	for _, arg := range args {
		if strings.ContainsAny(arg, "*?[") {
			matches, err := filepath.Glob(arg)
			if err == nil && len(matches) > 0 {
				paths = append(paths, matches...)
				continue
			}
		}
		paths = append(paths, arg)
	}
	return paths
}

// FindMatchingFiles suggests files under workingDir whose path contains
// partial. Hidden entries are skipped and the walk stops four levels deep.
func FindMatchingFiles(workingDir string, partial string) []string {
	matches := []string{}

	searchDir := workingDir
	pattern := strings.ToLower(partial)

	if strings.Contains(partial, "/") {
		dir, file := filepath.Split(partial)
		searchDir = filepath.Join(workingDir, dir)
		pattern = strings.ToLower(file)
	}

	_ = filepath.Walk(searchDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}

		relPath, err := filepath.Rel(workingDir, path)
		if err != nil || relPath == "." {
			return nil
		}

		if strings.HasPrefix(info.Name(), ".") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !info.IsDir() {
			isMatch := partial == "" ||
				strings.Contains(strings.ToLower(relPath), pattern) ||
				strings.Contains(strings.ToLower(info.Name()), pattern)

			if isMatch && len(matches) < 100 {
				matches = append(matches, relPath)
			}
		}

		if info.IsDir() && strings.Count(relPath, string(filepath.Separator)) >= 4 {
			return filepath.SkipDir
		}
		return nil
	})

	return matches
}
