package testutil

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// RequireGit skips the test when git is not installed.
func RequireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

// GitRepo is a throwaway git repository under t.TempDir().
type GitRepo struct {
	t    *testing.T
	Root string
}

// NewGitRepo initialises an empty repository with a fixed identity.
func NewGitRepo(t *testing.T) *GitRepo {
	t.Helper()
	RequireGit(t)

	r := &GitRepo{t: t, Root: t.TempDir()}
	r.Git("init", "-q")
	r.Git("config", "user.name", "Test User")
	r.Git("config", "user.email", "test@example.com")
	r.Git("config", "commit.gpgsign", "false")
	return r
}

// Path returns the absolute path of a repository-relative file.
func (r *GitRepo) Path(rel string) string {
	return filepath.Join(r.Root, filepath.FromSlash(rel))
}

// WriteFile writes content to rel, creating parent directories.
func (r *GitRepo) WriteFile(rel, content string) {
	r.t.Helper()
	abs := r.Path(rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		r.t.Fatalf("mkdir %s: %v", rel, err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		r.t.Fatalf("write %s: %v", rel, err)
	}
}

// CommitAt stages files and commits them with author and committer dates set
// to epoch (Unix seconds, UTC).
func (r *GitRepo) CommitAt(epoch int64, message string, files ...string) {
	r.t.Helper()
	r.Git(append([]string{"add", "--"}, files...)...)

	date := fmt.Sprintf("@%d +0000", epoch)
	r.run([]string{"GIT_AUTHOR_DATE=" + date, "GIT_COMMITTER_DATE=" + date},
		"commit", "-q", "-m", message)
}

// Git runs a git command in the repository and returns trimmed stdout.
func (r *GitRepo) Git(args ...string) string {
	r.t.Helper()
	return r.run(nil, args...)
}

func (r *GitRepo) run(env []string, args ...string) string {
	r.t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = r.Root
	cmd.Env = append(os.Environ(), "GIT_CONFIG_NOSYSTEM=1")
	cmd.Env = append(cmd.Env, env...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		r.t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, stderr.String())
	}
	return strings.TrimSpace(string(out))
}
