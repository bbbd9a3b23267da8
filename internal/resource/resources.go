package resource

import (
	"context"
	"log/slog"
	"time"

	"repoparser/internal/history"
	"repoparser/internal/processor"
	"repoparser/internal/scanner"
	"repoparser/internal/slogutil"
)

// Options configures GetResources.
type Options struct {
	Processors []processor.Processor

	// ScanRoot is the directory the scan started from; "" means the
	// repository root.
	ScanRoot string

	Resolver *history.Resolver
	Logger   *slog.Logger

	// Now supplies the walk-time placeholder timestamp.
	Now func() time.Time
}

// GetResources builds the resource tree for a scanned directory and
// annotates it with last-modified times, resolving the whole tree's history
// with one batched query per chunk of files. Processors are applied in
// order; the first matching processor shapes each file resource.
func GetResources(ctx context.Context, repo history.Repository, dir *scanner.Dir, opts Options) (*Tree, error) {
	logger := slogutil.OrDiscard(opts.Logger)
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	processors := opts.Processors
	if processors == nil {
		processors = processor.Defaults()
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = history.NewResolver(history.Options{StrictOrder: true, Logger: logger})
	}

	start := time.Now()
	tree, files, err := Build(dir, processors, now().UTC())
	if err != nil {
		return nil, err
	}
	logger.Debug("Built resource tree",
		"nodes", tree.Len(),
		"files", len(files),
		"duration", time.Since(start),
	)

	cache, err := resolver.Resolve(ctx, repo, files, opts.ScanRoot)
	if err != nil {
		return nil, err
	}

	if err := Annotate(tree, cache); err != nil {
		return nil, err
	}
	return tree, nil
}
