package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/spf13/cobra"

	"repoparser/internal/config"
	"repoparser/internal/export"
	"repoparser/internal/history"
	"repoparser/internal/paths"
	"repoparser/internal/processor"
	"repoparser/internal/resource"
	"repoparser/internal/scanner"
)

var (
	scanFormat      string
	scanOutput      string
	scanType        string
	scanContent     bool
	scanSubdirs     []string
	scanIgnore      []string
	scanNoGitignore bool
)

// History flags shared by scan and resolve.
var (
	chunkSizeFlag int
	workersFlag   int
	timeoutFlag   time.Duration
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Build the resource tree of a directory",
	Long: `Walk a directory inside a git work tree, build its resource tree and
annotate every resource with its last-modified time.

Directories whose files declare a type in frontmatter become resources of
that type; other directories fold into their enclosing resource.

Examples:
  rp scan
  rp scan docs --format human
  rp scan --type service --output services.json
  rp scan --output tree.json.zst --content
  rp scan --subdir services --ignore '(^|/)drafts/'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanFormat, "format", "json", "Output format (json, human)")
	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", "", "Write to a file instead of stdout (.zst compresses)")
	scanCmd.Flags().StringVar(&scanType, "type", "", "Only output resources of this type")
	scanCmd.Flags().BoolVar(&scanContent, "content", false, "Include file content in the output")
	scanCmd.Flags().StringSliceVar(&scanSubdirs, "subdir", nil, "Restrict the walk to these directories (repeatable)")
	scanCmd.Flags().StringSliceVar(&scanIgnore, "ignore", nil, "Skip paths matching this regular expression (repeatable)")
	scanCmd.Flags().BoolVar(&scanNoGitignore, "no-gitignore", false, "Include files ignored by .gitignore")
	addHistoryFlags(scanCmd)

	rootCmd.AddCommand(scanCmd)
}

func addHistoryFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&chunkSizeFlag, "chunk-size", config.DefaultChunkSize, "Maximum paths per git log query")
	cmd.Flags().IntVar(&workersFlag, "workers", 1, "Concurrent git log queries")
	cmd.Flags().DurationVar(&timeoutFlag, "timeout", time.Duration(config.DefaultTimeoutMs)*time.Millisecond, "Timeout per git log query (0 disables)")
}

// newResolver builds a resolver from the configuration, with explicitly set
// flags taking precedence.
func newResolver(cmd *cobra.Command, s *session) *history.Resolver {
	h := s.cfg.History
	opts := history.Options{
		ChunkSize:   h.ChunkSize,
		Workers:     h.Workers,
		Timeout:     time.Duration(h.TimeoutMs) * time.Millisecond,
		StrictOrder: h.StrictOrder,
		Logger:      s.logger,
	}
	if cmd.Flags().Changed("chunk-size") {
		opts.ChunkSize = chunkSizeFlag
	}
	if cmd.Flags().Changed("workers") {
		opts.Workers = workersFlag
	}
	if cmd.Flags().Changed("timeout") {
		opts.Timeout = timeoutFlag
	}
	return history.NewResolver(opts)
}

// loadProcessors reads the configured processors file, relative to the
// repository root, or falls back to the defaults.
func loadProcessors(repoRoot, file string) ([]processor.Processor, error) {
	if file == "" {
		return processor.Defaults(), nil
	}
	if !filepath.IsAbs(file) {
		file = filepath.Join(repoRoot, file)
	}
	return processor.LoadFile(file)
}

func compilePatterns(exprs []string) ([]*regexp.Regexp, error) {
	patterns := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", expr, err)
		}
		patterns = append(patterns, re)
	}
	return patterns, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	start := time.Now()
	ctx := cmd.Context()

	format, err := export.ParseFormat(scanFormat)
	if err != nil {
		return err
	}

	target := "."
	if len(args) == 1 {
		target = args[0]
	}
	scanRoot, err := filepath.Abs(target)
	if err != nil {
		return err
	}

	s, err := openSession(ctx, scanRoot)
	if err != nil {
		return err
	}
	defer s.close()

	processors, err := loadProcessors(s.repo.Root(), s.cfg.Scan.ProcessorsFile)
	if err != nil {
		return err
	}
	ignore, err := compilePatterns(append(append([]string{}, s.cfg.Scan.Ignore...), scanIgnore...))
	if err != nil {
		return err
	}

	opts := scanner.Options{
		Ignore:  ignore,
		Subdirs: s.cfg.Scan.Subdirs,
		Logger:  s.logger,
	}
	if len(scanSubdirs) > 0 {
		opts.Subdirs = scanSubdirs
	}
	if s.cfg.Scan.RespectGitignore && !scanNoGitignore {
		normalizer, err := paths.NewNormalizer(scanRoot, s.repo.Root())
		if err != nil {
			return err
		}
		opts.Gitignore = scanner.NewRepoIgnorer(s.repo, normalizer)
	}

	dir, err := scanner.Scan(ctx, scanRoot, processors, opts)
	if err != nil {
		return err
	}

	tree, err := resource.GetResources(ctx, s.repo, dir, resource.Options{
		Processors: processors,
		ScanRoot:   scanRoot,
		Resolver:   newResolver(cmd, s),
		Logger:     s.logger,
	})
	if err != nil {
		return err
	}

	meta := export.Metadata{
		RunID:    s.runID,
		RepoRoot: s.repo.Root(),
		ScanRoot: scanRoot,
	}
	if state, err := s.repo.State(ctx); err != nil {
		s.logger.Warn("Failed to read repository state", "error", err.Error())
	} else {
		meta.Head = state.Head
		meta.Dirty = state.Dirty
	}

	env := export.NewEnvelope(tree, meta, time.Now(), export.ViewOptions{
		Type:        scanType,
		WithContent: scanContent,
	})

	if scanOutput != "" {
		err = export.WriteFile(scanOutput, env, format)
	} else {
		err = export.Write(os.Stdout, env, format)
	}
	if err != nil {
		return err
	}

	s.logger.Info("Scan completed",
		"resources", tree.Len(),
		"exported", len(env.Resources),
		"duration", time.Since(start),
	)
	return nil
}
