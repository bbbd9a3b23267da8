// Package export renders annotated resource trees for people and tools.
package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"repoparser/internal/resource"
)

// Format selects the output encoding.
type Format string

const (
	FormatJSON  Format = "json"
	FormatHuman Format = "human"
)

// CompressedExt marks output paths that are written zstd-compressed.
const CompressedExt = ".zst"

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatHuman:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

// Metadata describes one scan run.
type Metadata struct {
	RunID          string `json:"runId"`
	Generated      string `json:"generated"` // RFC 3339, UTC
	RepoRoot       string `json:"repoRoot"`
	ScanRoot       string `json:"scanRoot"`
	Head           string `json:"head,omitempty"`
	Dirty          bool   `json:"dirty"`
	FileCount      int    `json:"fileCount"`
	DirectoryCount int    `json:"directoryCount"`
}

// Envelope is the document written by Write.
type Envelope struct {
	Metadata  Metadata         `json:"metadata"`
	Resources []*resource.View `json:"resources"`
}

// ViewOptions selects what NewEnvelope exports.
type ViewOptions struct {
	// Type limits the export to resources of this type, each with its
	// subtree. Empty exports the whole tree from the root.
	Type string

	WithContent bool
}

// NewEnvelope wraps tree for output. The counts in meta are filled in from
// the whole tree regardless of opts.Type.
func NewEnvelope(tree *resource.Tree, meta Metadata, generated time.Time, opts ViewOptions) *Envelope {
	files := len(tree.Files())
	meta.FileCount = files
	meta.DirectoryCount = tree.Len() - files
	meta.Generated = generated.UTC().Format(time.RFC3339)

	env := &Envelope{Metadata: meta, Resources: []*resource.View{}}
	if opts.Type == "" {
		env.Resources = append(env.Resources, tree.View(tree.Root(), opts.WithContent))
		return env
	}
	for _, id := range tree.Collect(opts.Type) {
		env.Resources = append(env.Resources, tree.View(id, opts.WithContent))
	}
	return env
}

// Write encodes env to w.
func Write(w io.Writer, env *Envelope, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(env); err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return nil
	case FormatHuman:
		return writeHuman(w, env)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// WriteFile writes env to path, zstd-compressing when path ends in ".zst".
func WriteFile(path string, env *Envelope, format Format) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if !strings.HasSuffix(path, CompressedExt) {
		return Write(f, env, format)
	}

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return err
	}
	if err := Write(zw, env, format); err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}

// Open returns a reader over a file written by WriteFile, decompressing
// ".zst" files.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, CompressedExt) {
		return f, nil
	}
	zr, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &zstdFile{Decoder: zr, f: f}, nil
}

type zstdFile struct {
	*zstd.Decoder
	f *os.File
}

func (z *zstdFile) Close() error {
	z.Decoder.Close()
	return z.f.Close()
}

func writeHuman(w io.Writer, env *Envelope) error {
	bw := bufio.NewWriter(w)
	m := env.Metadata

	fmt.Fprintf(bw, "Repository: %s\n", m.RepoRoot)
	if m.ScanRoot != "" && m.ScanRoot != m.RepoRoot {
		fmt.Fprintf(bw, "Scan root:  %s\n", m.ScanRoot)
	}
	head := m.Head
	if head == "" {
		head = "(no commits)"
	}
	if m.Dirty {
		head += " (dirty)"
	}
	fmt.Fprintf(bw, "Head:       %s\n", head)
	fmt.Fprintf(bw, "Run:        %s at %s\n", m.RunID, m.Generated)
	fmt.Fprintf(bw, "Resources:  %d directories, %d files\n", m.DirectoryCount, m.FileCount)

	for _, v := range env.Resources {
		bw.WriteString("\n")
		writeView(bw, v, 0)
	}
	return bw.Flush()
}

func writeView(w *bufio.Writer, v *resource.View, depth int) {
	fmt.Fprintf(w, "%s%s [%s] %s", strings.Repeat("  ", depth), v.Name, v.Type,
		v.LastModified.UTC().Format(time.RFC3339))

	keys := make([]string, 0, len(v.Metadata))
	for k := range v.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, " %s=%v", k, v.Metadata[k])
	}
	w.WriteString("\n")

	for _, child := range v.Children {
		writeView(w, child, depth+1)
	}
}
