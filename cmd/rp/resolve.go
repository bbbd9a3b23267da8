package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"repoparser/internal/export"
	"repoparser/internal/history"
)

var resolveFormat string

var resolveCmd = &cobra.Command{
	Use:   "resolve <file>...",
	Short: "Print last-modified times of files",
	Long: `Resolve the last-modified time of each file from git history, using the
same batched queries as scan. Paths are relative to the current directory.
Files with no history report the time of the query.

Examples:
  rp resolve README.md docs/guide.md
  rp resolve --format json $(git ls-files '*.md')`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveFormat, "format", "human", "Output format (json, human)")
	addHistoryFlags(resolveCmd)

	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	format, err := export.ParseFormat(resolveFormat)
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	s, err := openSession(ctx, cwd)
	if err != nil {
		return err
	}
	defer s.close()

	cache, err := newResolver(cmd, s).Resolve(ctx, s.repo, args, cwd)
	if err != nil {
		return err
	}
	return writeTimes(os.Stdout, args, cache, format)
}

// writeTimes prints one line per distinct path in argument order, or a JSON
// object keyed by path.
func writeTimes(w io.Writer, files []string, cache history.Cache, format export.Format) error {
	if format == export.FormatJSON {
		out := make(map[string]string, len(cache))
		for p, ts := range cache {
			out[p] = ts.UTC().Format(time.RFC3339)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	seen := make(map[string]bool, len(files))
	for _, f := range files {
		if seen[f] {
			continue
		}
		seen[f] = true
		ts, _ := cache.Get(f)
		if _, err := fmt.Fprintf(w, "%s  %s\n", ts.UTC().Format(time.RFC3339), filepath.ToSlash(f)); err != nil {
			return err
		}
	}
	return nil
}
