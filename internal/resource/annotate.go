package resource

import (
	"repoparser/internal/errors"
	"repoparser/internal/history"
)

// Annotate sets every file's last-modified time from cache and every
// directory's to the latest of its children, children first. A directory
// without children keeps its current time. A file missing from cache is a
// CACHE_COVERAGE error, reported before anything is changed. Running it
// again with the same cache changes nothing.
func Annotate(tree *Tree, cache history.Cache) error {
	for i := range tree.nodes {
		n := &tree.nodes[i]
		if n.Kind != File {
			continue
		}
		if _, ok := cache[n.SrcPath]; !ok {
			return errors.NewCacheCoverageError(n.SrcPath)
		}
	}

	// Children always follow their parent in the arena, so walking it
	// backwards finalizes every child before its parent.
	for i := len(tree.nodes) - 1; i >= 0; i-- {
		n := &tree.nodes[i]
		switch n.Kind {
		case File:
			n.LastModified = cache[n.SrcPath]
		case Directory:
			if len(n.Children) == 0 {
				continue
			}
			latest := tree.nodes[n.Children[0]].LastModified
			for _, child := range n.Children[1:] {
				if ts := tree.nodes[child].LastModified; ts.After(latest) {
					latest = ts
				}
			}
			n.LastModified = latest
		}
	}
	return nil
}
