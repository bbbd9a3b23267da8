package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"repoparser/internal/export"
	"repoparser/internal/idr"
)

var (
	idrNoComments bool
	idrListFormat string
)

var idrCmd = &cobra.Command{
	Use:   "idr",
	Short: "Manage Implementation Decision Records",
	Long: `Create and list Implementation Decision Records (IDRs): short markdown
documents, named after their creation time and title, that record how and
why something was built.`,
}

var idrNewCmd = &cobra.Command{
	Use:   "new <title>",
	Short: "Create a new decision record",
	Long: `Create a new IDR from the template. The author is taken from git's
user.name. Set --no-comments or RP_IDR_NO_COMMENTS=1 to leave out the
template's guidance comments.

Examples:
  rp idr new "Batch git log queries"
  rp idr new Switch to zstd dumps --no-comments`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIDRNew,
}

var idrListCmd = &cobra.Command{
	Use:   "list",
	Short: "List decision records, oldest first",
	Args:  cobra.NoArgs,
	RunE:  runIDRList,
}

func init() {
	idrNewCmd.Flags().BoolVar(&idrNoComments, "no-comments", false, "Omit the template's guidance comments")
	idrListCmd.Flags().StringVar(&idrListFormat, "format", "human", "Output format (json, human)")

	idrCmd.AddCommand(idrNewCmd)
	idrCmd.AddCommand(idrListCmd)
	rootCmd.AddCommand(idrCmd)
}

func runIDRNew(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := openSession(ctx, ".")
	if err != nil {
		return err
	}
	defer s.close()

	author, _ := s.repo.UserIdentity(ctx)
	if author == "" {
		s.logger.Warn("git user.name is not set, recording author as " + idr.UnknownAuthor)
		author = idr.UnknownAuthor
	}

	path, err := idr.NewWriter(s.repo.Root(), s.cfg.IDR.Dir).Create(idr.Input{
		Title:      strings.Join(args, " "),
		Author:     author,
		NoComments: idrNoComments || s.cfg.IDR.NoComments || idr.NoCommentsFromEnv(),
	})
	if err != nil {
		return err
	}

	fmt.Printf("Created %s\n", displayPath(path))
	return nil
}

func runIDRList(cmd *cobra.Command, args []string) error {
	format, err := export.ParseFormat(idrListFormat)
	if err != nil {
		return err
	}

	s, err := openSession(cmd.Context(), ".")
	if err != nil {
		return err
	}
	defer s.close()

	dir := s.cfg.IDR.Dir
	if dir == "" {
		dir = idr.DefaultDir
	}
	records, err := idr.List(filepath.Join(s.repo.Root(), dir))
	if err != nil {
		return err
	}
	return writeRecords(os.Stdout, records, format)
}

func writeRecords(w io.Writer, records []idr.Record, format export.Format) error {
	if format == export.FormatJSON {
		if records == nil {
			records = []idr.Record{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No decision records found.")
		return err
	}
	for _, r := range records {
		status := r.Status
		if status == "" {
			status = "-"
		}
		if _, err := fmt.Fprintf(w, "%s  %-10s  %s  (%s)\n",
			r.Created.Format("2006-01-02 15:04"), status, r.Title, displayPath(r.Path)); err != nil {
			return err
		}
	}
	return nil
}

// displayPath shortens path relative to the working directory when it lies
// beneath it.
func displayPath(path string) string {
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(cwd, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
