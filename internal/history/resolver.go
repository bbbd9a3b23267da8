package history

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"repoparser/internal/errors"
	"repoparser/internal/paths"
	"repoparser/internal/slogutil"
)

// DefaultChunkSize is the maximum number of paths passed to one log query.
const DefaultChunkSize = 200

// Repository is the version-control collaborator the resolver queries.
type Repository interface {
	// Root returns the repository's root directory.
	Root() string

	// Log streams, for the given repository-relative paths, every commit that
	// touched any of them over the entire history, newest first, as
	// timestamp / blank / changed paths / blank blocks. Closing the reader
	// waits for the query to finish and reports its failure, if any.
	Log(ctx context.Context, repoPaths []string) (io.ReadCloser, error)
}

// Cache maps scan-root-relative file paths to their last-modified time.
type Cache map[string]time.Time

// Get returns the cached timestamp for path.
func (c Cache) Get(path string) (time.Time, bool) {
	ts, ok := c[path]
	return ts, ok
}

// Options configures a Resolver.
type Options struct {
	// ChunkSize is the maximum number of paths per log query (default 200).
	ChunkSize int

	// Workers bounds how many chunk queries run at once. 1 runs them in
	// order on the calling goroutine.
	Workers int

	// Timeout applies to each chunk query; zero means no timeout.
	Timeout time.Duration

	// StrictOrder rejects log output whose commits are not newest-first.
	StrictOrder bool

	Logger *slog.Logger

	// Now supplies the fallback timestamp for files without history.
	Now func() time.Time
}

// Resolver computes last-modified times for many files with one log query
// per chunk of paths.
type Resolver struct {
	chunkSize   int
	workers     int
	timeout     time.Duration
	strictOrder bool
	logger      *slog.Logger
	now         func() time.Time
}

// NewResolver creates a Resolver, filling in defaults for unset options.
func NewResolver(opts Options) *Resolver {
	r := &Resolver{
		chunkSize:   opts.ChunkSize,
		workers:     opts.Workers,
		timeout:     opts.Timeout,
		strictOrder: opts.StrictOrder,
		logger:      slogutil.OrDiscard(opts.Logger),
		now:         opts.Now,
	}
	if r.chunkSize <= 0 {
		r.chunkSize = DefaultChunkSize
	}
	if r.workers <= 0 {
		r.workers = 1
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Resolve returns the last-modified time of every path in filePaths.
//
// Paths are relative to scanRoot (the repository root when scanRoot is
// empty). Duplicates are queried once. The timestamp of the most recent
// commit touching a path wins; paths with no history at all get the time
// at which resolution finished. Any failure discards all partial results.
func (r *Resolver) Resolve(ctx context.Context, repo Repository, filePaths []string, scanRoot string) (Cache, error) {
	if len(filePaths) == 0 {
		return Cache{}, nil
	}

	start := time.Now()

	normalizer, err := paths.NewNormalizer(scanRoot, repo.Root())
	if err != nil {
		return nil, errors.NewRpError(errors.InternalError, "Failed to resolve scan root", err, nil)
	}

	// repo-relative path -> every caller spelling of it
	originals := make(map[string][]string, len(filePaths))
	unique := make([]string, 0, len(filePaths))
	for _, p := range filePaths {
		repoRel, err := normalizer.ToRepo(p)
		if err != nil {
			return nil, err
		}
		if _, seen := originals[repoRel]; !seen {
			unique = append(unique, repoRel)
		}
		originals[repoRel] = append(originals[repoRel], p)
	}

	chunks := Chunk(unique, r.chunkSize)
	partials, err := r.runChunks(ctx, repo, chunks)
	if err != nil {
		return nil, err
	}

	// Reduce in chunk order so the outcome never depends on completion order.
	merged := make(map[string]time.Time, len(unique))
	for _, partial := range partials {
		for p, ts := range partial {
			if _, ok := merged[p]; !ok {
				merged[p] = ts
			}
		}
	}

	fallback := r.now().UTC()
	fallbacks := 0
	cache := make(Cache, len(filePaths))
	for _, repoRel := range unique {
		ts, ok := merged[repoRel]
		if !ok {
			ts = fallback
			fallbacks++
		}
		for _, orig := range originals[repoRel] {
			cache[orig] = ts
		}
	}

	r.logger.Info("Resolved last-modified times",
		"files", len(unique),
		"chunks", len(chunks),
		"fallbacks", fallbacks,
		"duration", time.Since(start),
	)

	return cache, nil
}

func (r *Resolver) runChunks(ctx context.Context, repo Repository, chunks [][]string) ([]map[string]time.Time, error) {
	partials := make([]map[string]time.Time, len(chunks))

	if r.workers == 1 || len(chunks) == 1 {
		for i, chunk := range chunks {
			partial, err := r.resolveChunk(ctx, repo, i, chunk)
			if err != nil {
				return nil, err
			}
			partials[i] = partial
		}
		return partials, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, chunk := range chunks {
		g.Go(func() error {
			partial, err := r.resolveChunk(gctx, repo, i, chunk)
			if err != nil {
				return err
			}
			// each goroutine owns its own index
			partials[i] = partial
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return partials, nil
}

// resolveChunk runs one log query and returns the first-seen (newest)
// timestamp of each chunk path that appears in the output.
func (r *Resolver) resolveChunk(ctx context.Context, repo Repository, index int, chunk []string) (map[string]time.Time, error) {
	start := time.Now()

	var cctx context.Context
	var cancel context.CancelFunc
	if r.timeout > 0 {
		cctx, cancel = context.WithTimeout(ctx, r.timeout)
	} else {
		cctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	out, err := repo.Log(cctx, chunk)
	if err != nil {
		return nil, asToolError(cctx, chunk, err)
	}

	wanted := make(map[string]struct{}, len(chunk))
	for _, p := range chunk {
		wanted[p] = struct{}{}
	}

	found := make(map[string]time.Time, len(chunk))
	parser := NewLogParser(out, r.strictOrder)
	records := 0
	complete := false

	for {
		rec, err := parser.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			cancel()
			_ = out.Close()
			return nil, err
		}
		records++

		for _, p := range rec.Paths {
			if _, ok := wanted[p]; !ok {
				continue
			}
			if _, seen := found[p]; !seen {
				found[p] = rec.Timestamp
			}
		}

		// Older commits cannot change a first-seen result.
		if len(found) == len(wanted) {
			complete = true
			break
		}
	}

	if complete {
		cancel()
		_ = out.Close()
	} else if err := out.Close(); err != nil {
		return nil, asToolError(cctx, chunk, err)
	}

	r.logger.Debug("Resolved history chunk",
		"chunk", index,
		"paths", len(chunk),
		"records", records,
		"lines", parser.Line(),
		"resolved", len(found),
		"earlyStop", complete,
		"duration", time.Since(start),
	)

	return found, nil
}

// asToolError classifies a query failure as EXTERNAL_TOOL unless it already
// carries a code.
func asToolError(ctx context.Context, chunk []string, err error) error {
	if errors.CodeOf(err) != "" {
		return err
	}
	timedOut := stderrors.Is(ctx.Err(), context.DeadlineExceeded)
	return errors.NewExternalToolError(nil, chunk, "", err, timedOut)
}

// Chunk splits items into consecutive groups of at most size elements.
func Chunk(items []string, size int) [][]string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	chunks := make([][]string, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
