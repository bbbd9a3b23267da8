package scanner

import (
	"context"

	"repoparser/internal/paths"
)

// IgnoreChecker answers gitignore queries for repository-relative paths.
type IgnoreChecker interface {
	CheckIgnored(ctx context.Context, repoPaths []string) (map[string]bool, error)
}

// RepoIgnorer applies a repository's ignore rules to scan-root-relative paths.
type RepoIgnorer struct {
	checker    IgnoreChecker
	normalizer *paths.Normalizer
}

// NewRepoIgnorer creates an Ignorer backed by checker.
func NewRepoIgnorer(checker IgnoreChecker, normalizer *paths.Normalizer) *RepoIgnorer {
	return &RepoIgnorer{checker: checker, normalizer: normalizer}
}

// Ignored implements Ignorer.
func (r *RepoIgnorer) Ignored(ctx context.Context, rels []string) (map[string]bool, error) {
	repoPaths := make([]string, len(rels))
	asked := make(map[string]bool, len(rels))
	for i, rel := range rels {
		repoRel, err := r.normalizer.ToRepo(rel)
		if err != nil {
			return nil, err
		}
		repoPaths[i] = repoRel
		asked[rel] = true
	}

	ignored, err := r.checker.CheckIgnored(ctx, repoPaths)
	if err != nil {
		return nil, err
	}

	out := make(map[string]bool, len(ignored))
	for repoRel := range ignored {
		if rel := r.normalizer.FromRepo(repoRel); asked[rel] {
			out[rel] = true
		}
	}
	return out, nil
}
