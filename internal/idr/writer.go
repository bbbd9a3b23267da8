// Package idr creates and lists Implementation Decision Records: short
// markdown documents named after their creation time and title.
package idr

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"repoparser/internal/errors"
)

// DefaultDir is where records live, relative to the repository root.
const DefaultDir = "idrs"

// UnknownAuthor is used when no git identity is configured.
const UnknownAuthor = "Unknown"

// Input describes a new record.
type Input struct {
	Title  string
	Author string

	// NoComments drops the template's guidance comments.
	NoComments bool
}

// Writer creates records under <repoRoot>/<dir>.
type Writer struct {
	repoRoot string
	dir      string
	now      func() time.Time
}

// NewWriter creates a Writer. An empty dir means DefaultDir.
func NewWriter(repoRoot, dir string) *Writer {
	if dir == "" {
		dir = DefaultDir
	}
	return &Writer{repoRoot: repoRoot, dir: dir, now: time.Now}
}

// Create renders a new record and returns its absolute path. It never
// overwrites an existing file.
func (w *Writer) Create(in Input) (string, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return "", fmt.Errorf("title is required")
	}

	fullDir := filepath.Join(w.repoRoot, w.dir)
	if err := os.MkdirAll(fullDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	now := w.now().UTC()
	fullPath := filepath.Join(fullDir, Filename(now, title))

	if _, err := os.Stat(fullPath); err == nil {
		return "", errors.NewRpError(errors.AlreadyExists, "File already exists: "+fullPath, nil, nil).
			WithDetails(map[string]interface{}{"path": fullPath})
	}

	content, err := Render(in, now)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	// Fails if the file appeared after the Stat above.
	f, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return "", errors.NewRpError(errors.AlreadyExists, "File already exists: "+fullPath, err, nil)
		}
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return fullPath, nil
}

// Filename returns "<YYYYMMDDHHMM>-<slug>.md" for a record created at t (UTC).
func Filename(t time.Time, title string) string {
	return fmt.Sprintf("%s-%s.md", t.UTC().Format("200601021504"), Slugify(title))
}

// Slugify lowercases title, folds accented letters to ASCII and joins the
// remaining alphanumeric runs with single dashes.
func Slugify(title string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		title,
	)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}

// Render produces the record's markdown.
func Render(in Input, created time.Time) (string, error) {
	text := recordTemplate
	if in.NoComments {
		text = StripComments(text)
	}

	tmpl, err := template.New("idr").Parse(text)
	if err != nil {
		return "", err
	}

	author := in.Author
	if author == "" {
		author = UnknownAuthor
	}

	data := struct {
		Title  string
		Author string
		Date   string
	}{
		Title:  strings.TrimSpace(in.Title),
		Author: author,
		Date:   created.UTC().Format("2006-01-02"),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// NoCommentsFromEnv reports whether RP_IDR_NO_COMMENTS is set to 1, true or yes.
func NoCommentsFromEnv() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("RP_IDR_NO_COMMENTS"))) {
	case "1", "true", "yes":
		return true
	}
	return false
}
