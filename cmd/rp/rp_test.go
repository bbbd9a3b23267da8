package main

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"repoparser/internal/config"
	"repoparser/internal/errors"
	"repoparser/internal/export"
	"repoparser/internal/history"
	"repoparser/internal/idr"
	"repoparser/internal/testutil"
)

func TestPrintError(t *testing.T) {
	err := errors.NewExternalToolError(
		[]string{"log", "--no-merges"},
		[]string{"a", "b", "c", "d", "e", "f", "g"},
		"fatal: bad revision\n",
		stderrors.New("exit status 128"),
		false,
	)

	var buf bytes.Buffer
	printError(&buf, err)
	out := buf.String()

	for _, want := range []string{
		"Error: [EXTERNAL_TOOL] History query failed: exit status 128\n",
		"  args: log --no-merges\n",
		"  paths: a b c d e ... (2 more)\n",
		"  stderr: fatal: bad revision\n",
		"  timedOut: false\n",
		"Suggested fixes:\n",
		"  - Verify the repository is readable: git status\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintError_Plain(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, stderrors.New("boom"))
	if buf.String() != "Error: boom\n" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestFormatDetail(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"nil", nil, ""},
		{"string", "x", "x"},
		{"multiline", "a\nb", "\n    a\n    b"},
		{"empty list", []string{}, ""},
		{"short list", []string{"a", "b"}, "a b"},
		{"number", 3, "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatDetail(tt.in); got != tt.want {
				t.Errorf("formatDetail(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestWriteTimes(t *testing.T) {
	cache := history.Cache{
		"b.md":      time.Unix(2000, 0),
		"docs/a.md": time.Unix(1000, 0),
	}
	files := []string{"b.md", "docs/a.md", "b.md"}

	var human bytes.Buffer
	if err := writeTimes(&human, files, cache, export.FormatHuman); err != nil {
		t.Fatal(err)
	}
	want := "1970-01-01T00:33:20Z  b.md\n1970-01-01T00:16:40Z  docs/a.md\n"
	if human.String() != want {
		t.Errorf("human = %q, want %q", human.String(), want)
	}

	var js bytes.Buffer
	if err := writeTimes(&js, files, cache, export.FormatJSON); err != nil {
		t.Fatal(err)
	}
	var decoded map[string]string
	if err := json.Unmarshal(js.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["docs/a.md"] != "1970-01-01T00:16:40Z" || len(decoded) != 2 {
		t.Errorf("json = %v", decoded)
	}
}

func TestWriteRecords_Empty(t *testing.T) {
	var human, js bytes.Buffer
	if err := writeRecords(&human, nil, export.FormatHuman); err != nil {
		t.Fatal(err)
	}
	if err := writeRecords(&js, nil, export.FormatJSON); err != nil {
		t.Fatal(err)
	}
	if human.String() != "No decision records found.\n" {
		t.Errorf("human = %q", human.String())
	}
	if js.String() != "[]\n" {
		t.Errorf("json = %q", js.String())
	}
}

func TestFlattenConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.History.Workers = 4

	flat, err := flattenConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	for key, want := range map[string]string{
		"history.chunkSize": "200",
		"history.workers":   "4",
		"idr.dir":           `"idrs"`,
		"scan.ignore":       "[]",
	} {
		if flat[key] != want {
			t.Errorf("%s = %q, want %q", key, flat[key], want)
		}
	}

	var buf bytes.Buffer
	if err := writeConfig(&buf, cfg, "", export.FormatHuman); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "history.workers: 4 (default: 1)\n") {
		t.Errorf("human config should flag non-defaults:\n%s", buf.String())
	}
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}

func TestScanCommand(t *testing.T) {
	g := testutil.NewGitRepo(t)
	g.WriteFile("README.md", "# Docs")
	g.WriteFile("services/api/README.md", "---\ntype: service\nowner: team-a\n---\n# API")
	g.WriteFile("notes.txt", "not processed")
	g.CommitAt(1000, "initial", "README.md", "services/api/README.md", "notes.txt")
	g.WriteFile("services/api/README.md", "---\ntype: service\nowner: team-a\n---\n# API v2")
	g.CommitAt(2000, "update api", "services/api/README.md")

	out := filepath.Join(t.TempDir(), "tree.json.zst")
	if err := execute(t, "scan", g.Root, "--output", out, "--workers", "2", "--chunk-size", "1", "-q"); err != nil {
		t.Fatalf("scan: %v", err)
	}

	rc, err := export.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()

	var env struct {
		Metadata  export.Metadata `json:"metadata"`
		Resources []struct {
			Type         string    `json:"type"`
			LastModified time.Time `json:"lastModified"`
			Children     []struct {
				Path         string         `json:"path"`
				Type         string         `json:"type"`
				Metadata     map[string]any `json:"metadata"`
				LastModified time.Time      `json:"lastModified"`
			} `json:"children"`
		} `json:"resources"`
	}
	if err := json.NewDecoder(rc).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if env.Metadata.FileCount != 2 || len(env.Metadata.Head) != 40 || env.Metadata.Dirty {
		t.Errorf("metadata = %+v", env.Metadata)
	}
	root := env.Resources[0]
	if root.Type != "repo" || !root.LastModified.Equal(time.Unix(2000, 0)) {
		t.Errorf("root = %s at %v, want repo at epoch 2000", root.Type, root.LastModified)
	}

	var service bool
	for _, child := range root.Children {
		if child.Type == "service" {
			service = true
			if child.Path != "services/api" || child.Metadata["owner"] != "team-a" {
				t.Errorf("service resource = %+v", child)
			}
		}
	}
	if !service {
		t.Error("missing service resource")
	}
}

func TestIDRCommands(t *testing.T) {
	g := testutil.NewGitRepo(t)
	t.Chdir(g.Root)
	t.Setenv("RP_IDR_NO_COMMENTS", "")

	if err := execute(t, "idr", "new", "Batch", "git", "queries", "--no-comments", "-q"); err != nil {
		t.Fatalf("idr new: %v", err)
	}

	records, err := idr.List(filepath.Join(g.Root, idr.DefaultDir))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Title != "Batch git queries" || records[0].Author != "Test User" {
		t.Fatalf("records = %+v", records)
	}
	content, err := os.ReadFile(records[0].Path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(content), "<!--") {
		t.Error("--no-comments should strip template comments")
	}
}

func TestConfigInit(t *testing.T) {
	g := testutil.NewGitRepo(t)
	t.Chdir(g.Root)

	if err := execute(t, "config", "init", "-q"); err != nil {
		t.Fatalf("config init: %v", err)
	}
	cfg, err := config.LoadConfig(g.Root)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Scan.ProcessorsFile != ".rp/processors.toml" {
		t.Errorf("ProcessorsFile = %q", cfg.Scan.ProcessorsFile)
	}
	if _, err := loadProcessors(g.Root, cfg.Scan.ProcessorsFile); err != nil {
		t.Errorf("generated processors file does not load: %v", err)
	}

	err = execute(t, "config", "init", "-q")
	if !errors.IsCode(err, errors.AlreadyExists) {
		t.Errorf("second init error = %v, want ALREADY_EXISTS", err)
	}
}
