// Package git implements the repository handle on top of the git executable.
package git

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"repoparser/internal/errors"
	"repoparser/internal/slogutil"
)

// DefaultQueryTimeout bounds the small metadata commands (rev-parse, config,
// status). Log queries use the caller's context instead.
const DefaultQueryTimeout = 5000 * time.Millisecond

// Repo is a git work tree. It satisfies history.Repository.
type Repo struct {
	root         string
	queryTimeout time.Duration
	logger       *slog.Logger
}

// Open finds the work tree containing path. It fails with NOT_A_REPOSITORY
// when path is not inside one, and EXTERNAL_TOOL when git cannot be run.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Repo, error) {
	dir, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.NewRpError(errors.InternalError, "Failed to resolve path", err, nil)
	}
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}

	r := &Repo{
		root:         dir,
		queryTimeout: DefaultQueryTimeout,
		logger:       slogutil.OrDiscard(logger),
	}

	top, err := r.run(ctx, nil, "rev-parse", "--show-toplevel")
	if err != nil {
		if errors.IsCode(err, errors.ExternalTool) && isNotFound(err) {
			return nil, err
		}
		return nil, errors.NewRpError(
			errors.NotARepository,
			"Not inside a git work tree",
			err,
			errors.GetSuggestedFixes(errors.NotARepository),
		).WithDetails(map[string]interface{}{
			"path": path,
		})
	}
	r.root = filepath.FromSlash(top)

	r.logger.Debug("Opened git repository", "repoRoot", r.root)
	return r, nil
}

// WithLogger returns a copy of r that logs to logger.
func (r *Repo) WithLogger(logger *slog.Logger) *Repo {
	c := *r
	c.logger = slogutil.OrDiscard(logger)
	return &c
}

// Root returns the work tree's top-level directory.
func (r *Repo) Root() string {
	return r.root
}

// LogArgs builds the log query for repoPaths: every non-merge commit touching
// any of them, newest first, each printed as its committer time in Unix
// seconds, a blank line, then the changed paths.
func LogArgs(repoPaths []string) []string {
	args := []string{
		"-c", "core.quotePath=false",
		"log",
		"--no-merges",
		"--no-renames",
		"--pretty=format:%ct%n",
		"--name-only",
		"--",
	}
	for _, p := range repoPaths {
		args = append(args, ":(literal)"+p)
	}
	return args
}

// Log starts the history query for repoPaths and streams its output. Close
// waits for git to exit; a non-zero exit or an expired context is reported
// as EXTERNAL_TOOL with git's stderr attached.
//
// A repository without commits has no history to report, so Log returns an
// empty stream instead of running git log, which would exit 128.
func (r *Repo) Log(ctx context.Context, repoPaths []string) (io.ReadCloser, error) {
	head, err := r.head(ctx)
	if err != nil {
		return nil, err
	}
	if head == "" {
		r.logger.Debug("Repository has no commits", "paths", len(repoPaths))
		return io.NopCloser(strings.NewReader("")), nil
	}

	args := LogArgs(repoPaths)

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.root
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.NewExternalToolError(args, repoPaths, "", err, false)
	}

	r.logger.Debug("Executing git command",
		"args", args[:len(args)-len(repoPaths)],
		"paths", len(repoPaths),
	)

	if err := cmd.Start(); err != nil {
		return nil, errors.NewExternalToolError(args, repoPaths, "", err, false)
	}

	return &logStream{
		stdout: stdout,
		cmd:    cmd,
		ctx:    ctx,
		args:   args,
		paths:  repoPaths,
		stderr: stderr,
	}, nil
}

// logStream is the stdout of a running log query.
type logStream struct {
	stdout io.ReadCloser
	cmd    *exec.Cmd
	ctx    context.Context
	args   []string
	paths  []string
	stderr *bytes.Buffer
	eof    bool
	closed bool
}

func (s *logStream) Read(p []byte) (int, error) {
	n, err := s.stdout.Read(p)
	if err == io.EOF {
		s.eof = true
	}
	return n, err
}

func (s *logStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	if !s.eof {
		// Unblock a git process still writing to the pipe.
		_ = s.stdout.Close()
	}

	if err := s.cmd.Wait(); err != nil {
		timedOut := stderrors.Is(s.ctx.Err(), context.DeadlineExceeded)
		return errors.NewExternalToolError(s.args, s.paths, s.stderr.String(), err, timedOut)
	}
	return nil
}

// CheckIgnored returns the subset of repoPaths excluded by .gitignore rules.
func (r *Repo) CheckIgnored(ctx context.Context, repoPaths []string) (map[string]bool, error) {
	ignored := make(map[string]bool)
	if len(repoPaths) == 0 {
		return ignored, nil
	}

	stdin := strings.Join(repoPaths, "\x00") + "\x00"
	out, err := r.run(ctx, strings.NewReader(stdin), "check-ignore", "--stdin", "-z")
	if err != nil && !isExitCode(err, 1) {
		// Exit status 1 only means nothing matched.
		return nil, err
	}

	for _, p := range strings.Split(out, "\x00") {
		if p != "" {
			ignored[p] = true
		}
	}
	return ignored, nil
}

// UserIdentity returns the configured user.name and user.email. Unset values
// come back empty.
func (r *Repo) UserIdentity(ctx context.Context) (name, email string) {
	name, _ = r.run(ctx, nil, "config", "user.name")
	email, _ = r.run(ctx, nil, "config", "user.email")
	return strings.TrimSpace(name), strings.TrimSpace(email)
}

// State is a snapshot of the work tree taken alongside a scan.
type State struct {
	Head  string `json:"head,omitempty"`
	Dirty bool   `json:"dirty"`
}

// State reports HEAD (empty before the first commit) and whether the work
// tree has uncommitted or untracked changes.
func (r *Repo) State(ctx context.Context) (State, error) {
	var st State

	head, err := r.head(ctx)
	if err != nil {
		return st, err
	}
	st.Head = head

	status, err := r.run(ctx, nil, "status", "--porcelain")
	if err != nil {
		return st, err
	}
	st.Dirty = strings.TrimSpace(status) != ""
	return st, nil
}

// head returns the commit HEAD points at, or "" before the first commit.
func (r *Repo) head(ctx context.Context) (string, error) {
	out, err := r.run(ctx, nil, "rev-parse", "--verify", "-q", "HEAD")
	if err != nil {
		if isExitCode(err, 1) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// run executes a short git command with the query timeout and returns stdout.
func (r *Repo) run(ctx context.Context, stdin io.Reader, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.root
	cmd.Stdin = stdin
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	r.logger.Debug("Executing git command",
		"args", args,
		"timeout", r.queryTimeout.String(),
	)

	out, err := cmd.Output()
	if err != nil {
		timedOut := stderrors.Is(ctx.Err(), context.DeadlineExceeded)
		return string(out), errors.NewExternalToolError(args, nil, stderr.String(), err, timedOut)
	}
	return strings.TrimRight(string(out), "\n"), nil
}

func isExitCode(err error, code int) bool {
	var exitErr *exec.ExitError
	return stderrors.As(err, &exitErr) && exitErr.ExitCode() == code
}

func isNotFound(err error) bool {
	return stderrors.Is(err, exec.ErrNotFound)
}
