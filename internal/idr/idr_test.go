package idr

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"repoparser/internal/errors"
)

var created = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func newTestWriter(t *testing.T) (*Writer, string) {
	t.Helper()
	root := t.TempDir()
	w := NewWriter(root, "")
	w.now = func() time.Time { return created }
	return w, root
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Add last modified metadata", "add-last-modified-metadata"},
		{"  Use   Go's   errgroup!! ", "use-go-s-errgroup"},
		{"Café crème", "cafe-creme"},
		{"v2 -- API/Design_notes", "v2-api-design-notes"},
		{"???", ""},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFilename(t *testing.T) {
	local := created.In(time.FixedZone("X", 5*3600))
	if got := Filename(local, "Add last modified metadata"); got != "202503140926-add-last-modified-metadata.md" {
		t.Errorf("Filename = %q", got)
	}
}

func TestCreate(t *testing.T) {
	w, root := newTestWriter(t)

	path, err := w.Create(Input{Title: "Batch history lookups", Author: "Jane Doe <jane@example.com>"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if want := filepath.Join(root, "idrs", "202503140926-batch-history-lookups.md"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	for _, want := range []string{
		"# Batch history lookups",
		"**Author:** Jane Doe <jane@example.com>",
		"**Date:** 2025-03-14",
		"## Context",
		"<!--",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("content missing %q:\n%s", want, content)
		}
	}
}

func TestCreate_NoComments(t *testing.T) {
	w, _ := newTestWriter(t)

	path, err := w.Create(Input{Title: "No comments", NoComments: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	data, _ := os.ReadFile(path)
	content := string(data)

	if strings.Contains(content, "<!--") || strings.Contains(content, "-->") {
		t.Errorf("comments not stripped:\n%s", content)
	}
	if strings.Contains(content, "\n\n\n") {
		t.Errorf("blank lines not collapsed:\n%q", content)
	}
	if !strings.Contains(content, "**Author:** "+UnknownAuthor) {
		t.Errorf("missing author fallback:\n%s", content)
	}
	if !strings.Contains(content, "## Decision") {
		t.Errorf("section headings should survive:\n%s", content)
	}
}

func TestCreate_AlreadyExists(t *testing.T) {
	w, _ := newTestWriter(t)

	if _, err := w.Create(Input{Title: "Same"}); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	_, err := w.Create(Input{Title: "Same"})
	if !errors.IsCode(err, errors.AlreadyExists) {
		t.Errorf("second Create error = %v, want ALREADY_EXISTS", err)
	}
}

func TestCreate_EmptyTitle(t *testing.T) {
	w, _ := newTestWriter(t)
	if _, err := w.Create(Input{Title: "   "}); err == nil {
		t.Error("Create with a blank title should fail")
	}
}

func TestStripComments(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"single line", "a <!-- x --> b", "a  b"},
		{"multi line", "a\n<!--\nline1\nline2\n-->\nb", "a\n\nb"},
		{"several", "<!-- 1 -->a<!-- 2 -->b<!-- 3 -->", "ab"},
		{"blank lines collapse", "a\n\n\n\n\nb", "a\n\nb"},
		{"comment on own line", "# T\n\n<!-- c -->\n\n## S", "# T\n\n## S"},
		{"whitespace-only lines", "a\n   \n\t\n\nb", "a\n\nb"},
		{"trim", "\n\n  text  \n\n", "text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripComments(tt.in); got != tt.want {
				t.Errorf("StripComments(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNoCommentsFromEnv(t *testing.T) {
	for value, want := range map[string]bool{"1": true, "TRUE": true, "yes": true, "0": false, "": false, "no": false} {
		t.Setenv("RP_IDR_NO_COMMENTS", value)
		if got := NoCommentsFromEnv(); got != want {
			t.Errorf("RP_IDR_NO_COMMENTS=%q: got %v, want %v", value, got, want)
		}
	}
}

func TestList(t *testing.T) {
	w, root := newTestWriter(t)

	if _, err := w.Create(Input{Title: "Second", Author: "B"}); err != nil {
		t.Fatal(err)
	}
	w.now = func() time.Time { return created.Add(-48 * time.Hour) }
	if _, err := w.Create(Input{Title: "First", Author: "A", NoComments: true}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "idrs", "notes.md"), []byte("# not a record"), 0644); err != nil {
		t.Fatal(err)
	}

	records, err := List(filepath.Join(root, "idrs"))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Title != "First" || records[0].Author != "A" || records[0].Status != "proposed" {
		t.Errorf("records[0] = %+v", records[0])
	}
	if !records[1].Created.Equal(time.Date(2025, 3, 14, 9, 26, 0, 0, time.UTC)) {
		t.Errorf("records[1].Created = %v", records[1].Created)
	}

	none, err := List(filepath.Join(root, "missing"))
	if err != nil || len(none) != 0 {
		t.Errorf("List(missing) = %v, %v", none, err)
	}
}
