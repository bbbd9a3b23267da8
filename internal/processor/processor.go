// Package processor decides which files become resources and extracts their
// semantic type and metadata.
package processor

import (
	"fmt"
	"regexp"
)

// FileType is the type given to plain file resources.
const FileType = "file"

// Result is what a processor extracts from one file.
type Result struct {
	// Type is the semantic role, e.g. "service" or "library". Anything other
	// than FileType makes the enclosing directory a resource of that type.
	Type     string
	Metadata map[string]any
}

// Processor matches files by name and extracts a Result from their content.
// Order matters: the first processor matching a file wins.
type Processor struct {
	Name        string
	Pattern     *regexp.Regexp
	ReadContent bool
	Process     func(content string) (Result, error)
}

// Match reports whether the processor applies to a file name.
func (p Processor) Match(name string) bool {
	return p.Pattern != nil && p.Pattern.MatchString(name)
}

// First returns the first processor matching name.
func First(processors []Processor, name string) (Processor, bool) {
	for _, p := range processors {
		if p.Match(name) {
			return p, true
		}
	}
	return Processor{}, false
}

// Markdown handles *.md files. YAML ("---") or TOML ("+++") frontmatter
// becomes metadata; its "type" key, popped from the metadata, sets the
// resource type.
func Markdown() Processor {
	return Processor{
		Name:        "markdown",
		Pattern:     regexp.MustCompile(`\.md$`),
		ReadContent: true,
		Process:     processMarkdown,
	}
}

// Plain includes files matching pattern as plain file resources without
// reading them.
func Plain(name string, pattern *regexp.Regexp) Processor {
	return Processor{
		Name:    name,
		Pattern: pattern,
		Process: func(string) (Result, error) {
			return Result{Type: FileType, Metadata: map[string]any{}}, nil
		},
	}
}

// Defaults returns the processors used when none are configured.
func Defaults() []Processor {
	return []Processor{Markdown()}
}

func processMarkdown(content string) (Result, error) {
	metadata, _, err := ParseFrontmatter(content)
	if err != nil {
		return Result{}, err
	}

	fileType := FileType
	if t, ok := metadata["type"]; ok {
		fileType = fmt.Sprint(t)
		delete(metadata, "type")
	}

	return Result{Type: fileType, Metadata: metadata}, nil
}
