// Package paths converts between scan-root-relative, repository-relative and
// filesystem paths.
package paths

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"repoparser/internal/errors"
)

// ConfigDirName is the per-repository rp directory
const ConfigDirName = ".rp"

// NormalizePath converts OS separators to forward slashes and cleans the path.
// Git always reports paths with forward slashes.
func NormalizePath(p string) string {
	if p == "" {
		return ""
	}
	return path.Clean(filepath.ToSlash(p))
}

// JoinRepoPath joins a repo root with a canonical path
func JoinRepoPath(repoRoot string, canonicalPath string) string {
	normalizedPath := strings.ReplaceAll(canonicalPath, "\\", "/")
	parts := strings.Split(normalizedPath, "/")
	return filepath.Join(append([]string{repoRoot}, parts...)...)
}

// ConfigDir returns <repoRoot>/.rp
func ConfigDir(repoRoot string) string {
	return filepath.Join(repoRoot, ConfigDirName)
}

// Normalizer maps paths relative to a scan root onto the repository root and
// back. It holds no mutable state; the same inputs always give the same outputs.
type Normalizer struct {
	scanRoot string
	repoRoot string
}

// NewNormalizer creates a Normalizer. Both roots are made absolute and have
// symlinks resolved so that paths reported by git line up with walked paths.
// An empty scanRoot means the repository root.
func NewNormalizer(scanRoot, repoRoot string) (*Normalizer, error) {
	repo, err := absResolved(repoRoot)
	if err != nil {
		return nil, err
	}

	scan := repo
	if scanRoot != "" {
		scan, err = absResolved(scanRoot)
		if err != nil {
			return nil, err
		}
	}

	return &Normalizer{scanRoot: scan, repoRoot: repo}, nil
}

// ScanRoot returns the absolute scan root.
func (n *Normalizer) ScanRoot() string { return n.scanRoot }

// RepoRoot returns the absolute repository root.
func (n *Normalizer) RepoRoot() string { return n.repoRoot }

// ToRepo expresses p relative to the repository root using forward slashes.
//
// Absolute paths are used as given. Relative paths are resolved against the
// scan root first; if that lands outside the repository they are resolved
// against the repository root instead. A path still outside the repository is
// a PathResolution error.
func (n *Normalizer) ToRepo(p string) (string, error) {
	if filepath.IsAbs(p) {
		rel, ok := n.relToRepo(filepath.Clean(p))
		if !ok {
			return "", errors.NewPathResolutionError(p, n.scanRoot, n.repoRoot)
		}
		return rel, nil
	}

	native := filepath.FromSlash(p)
	if rel, ok := n.relToRepo(filepath.Join(n.scanRoot, native)); ok {
		return rel, nil
	}
	if rel, ok := n.relToRepo(filepath.Join(n.repoRoot, native)); ok {
		return rel, nil
	}
	return "", errors.NewPathResolutionError(p, n.scanRoot, n.repoRoot)
}

// FromRepo expresses a repository-relative path relative to the scan root.
// Paths outside the scan root come back with leading "../" segments.
func (n *Normalizer) FromRepo(repoRel string) string {
	abs := JoinRepoPath(n.repoRoot, repoRel)
	rel, err := filepath.Rel(n.scanRoot, abs)
	if err != nil {
		return NormalizePath(repoRel)
	}
	return filepath.ToSlash(rel)
}

func (n *Normalizer) relToRepo(abs string) (string, bool) {
	rel, err := filepath.Rel(n.repoRoot, abs)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if escapesRoot(rel) || rel == "." {
		return "", false
	}
	return rel, true
}

func escapesRoot(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, "../")
}

func absResolved(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return resolveExisting(abs)
}

// resolveExisting resolves symlinks, using the path as-is when it does not exist yet.
func resolveExisting(p string) (string, error) {
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return "", err
	}
	return resolved, nil
}
