// Package testutil provides fakes and fixtures shared by package tests.
package testutil

import (
	"context"
	stderrors "errors"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"repoparser/internal/errors"
)

// NoCommitsStderr is what git log prints in a repository without commits.
const NoCommitsStderr = "fatal: your current branch 'main' does not have any commits yet"

// Commit is one entry of a FakeHistory.
type Commit struct {
	Time  int64
	Paths []string
}

// FakeHistory is an in-memory repository handle. Log renders the commits that
// touch the queried paths in the same layout git produces, newest first.
type FakeHistory struct {
	RootDir string
	Commits []Commit

	// Raw, when set, is returned verbatim from every Log call.
	Raw string

	// LogErr is returned by Log; CloseErr by the reader's Close.
	LogErr   error
	CloseErr error

	// Unborn makes Log behave like a bare git log before the first commit:
	// no output, then exit status 128 when the reader is closed.
	Unborn bool

	// Delay holds each Log call until it elapses or the context is done.
	Delay time.Duration

	mu    sync.Mutex
	calls [][]string
}

// Root returns the fake repository root.
func (f *FakeHistory) Root() string {
	return f.RootDir
}

// Log records the call and returns the rendered history for repoPaths.
func (f *FakeHistory) Log(ctx context.Context, repoPaths []string) (io.ReadCloser, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), repoPaths...))
	f.mu.Unlock()

	if f.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.Delay):
		}
	}
	if f.LogErr != nil {
		return nil, f.LogErr
	}

	if f.Unborn {
		closeErr := errors.NewExternalToolError(nil, repoPaths, NoCommitsStderr, stderrors.New("exit status 128"), false)
		return &fakeReader{Reader: strings.NewReader(""), closeErr: closeErr}, nil
	}

	out := f.Raw
	if out == "" {
		out = RenderLog(f.Commits, repoPaths)
	}
	return &fakeReader{Reader: strings.NewReader(out), closeErr: f.CloseErr}, nil
}

// Calls returns the path lists of every Log call so far.
func (f *FakeHistory) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}

// RenderLog formats the commits touching any of paths as
// "<unix seconds>\n\n<path>\n...", blocks separated by a blank line, newest
// first, with no trailing blank line. A nil paths matches everything.
func RenderLog(commits []Commit, paths []string) string {
	var wanted map[string]bool
	if paths != nil {
		wanted = make(map[string]bool, len(paths))
		for _, p := range paths {
			wanted[p] = true
		}
	}

	sorted := append([]Commit(nil), commits...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time > sorted[j].Time })

	var blocks []string
	for _, c := range sorted {
		var touched []string
		for _, p := range c.Paths {
			if wanted == nil || wanted[p] {
				touched = append(touched, p)
			}
		}
		if len(touched) == 0 {
			continue
		}
		blocks = append(blocks, strconv.FormatInt(c.Time, 10)+"\n\n"+strings.Join(touched, "\n"))
	}
	if len(blocks) == 0 {
		return ""
	}
	return strings.Join(blocks, "\n\n") + "\n"
}

type fakeReader struct {
	io.Reader
	closeErr error
}

func (r *fakeReader) Close() error {
	return r.closeErr
}
