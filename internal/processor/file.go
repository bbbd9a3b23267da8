package processor

import (
	"fmt"
	"io"
	"regexp"

	"github.com/BurntSushi/toml"
)

// Kinds accepted in a processor definition file.
const (
	KindMarkdown = "markdown"
	KindPlain    = "plain"
)

// Definition is one [[processor]] table of a processors file.
type Definition struct {
	Name        string `toml:"name"`
	Pattern     string `toml:"pattern"`
	Kind        string `toml:"kind"`
	ReadContent bool   `toml:"readContent,omitempty"`
}

// DefinitionsFile is the layout of .rp/processors.toml.
type DefinitionsFile struct {
	Processors []Definition `toml:"processor"`
}

// LoadFile reads processor definitions from a TOML file, in file order.
func LoadFile(path string) ([]Processor, error) {
	var file DefinitionsFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("failed to parse processors file: %w", err)
	}
	return Build(file.Processors)
}

// Build compiles definitions into processors.
func Build(defs []Definition) ([]Processor, error) {
	processors := make([]Processor, 0, len(defs))
	for i, def := range defs {
		pattern, err := regexp.Compile(def.Pattern)
		if err != nil {
			return nil, fmt.Errorf("processor %d (%s): invalid pattern: %w", i, def.Name, err)
		}

		switch def.Kind {
		case KindMarkdown, "":
			p := Markdown()
			p.Pattern = pattern
			if def.Name != "" {
				p.Name = def.Name
			}
			processors = append(processors, p)
		case KindPlain:
			p := Plain(def.Name, pattern)
			p.ReadContent = def.ReadContent
			processors = append(processors, p)
		default:
			return nil, fmt.Errorf("processor %d (%s): unknown kind %q", i, def.Name, def.Kind)
		}
	}
	return processors, nil
}

// DefaultDefinitions describes Defaults() as a processors file.
func DefaultDefinitions() DefinitionsFile {
	return DefinitionsFile{Processors: []Definition{
		{Name: "markdown", Pattern: `\.md$`, Kind: KindMarkdown, ReadContent: true},
	}}
}

// Encode writes definitions as TOML.
func (f DefinitionsFile) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(f)
}
