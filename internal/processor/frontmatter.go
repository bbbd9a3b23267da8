package processor

import (
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	yamlDelim = "---"
	tomlDelim = "+++"
)

// ParseFrontmatter splits a document into its frontmatter metadata and body.
// A document without frontmatter yields empty metadata and the whole content.
func ParseFrontmatter(content string) (map[string]any, string, error) {
	metadata := map[string]any{}

	text := strings.TrimPrefix(content, "\ufeff")
	var delim string
	switch {
	case hasDelimLine(text, yamlDelim):
		delim = yamlDelim
	case hasDelimLine(text, tomlDelim):
		delim = tomlDelim
	default:
		return metadata, content, nil
	}

	rest := text[len(delim):]
	rest = strings.TrimPrefix(strings.TrimPrefix(rest, "\r"), "\n")

	raw, body, ok := cutClosing(rest, delim)
	if !ok {
		// An opening rule with no closing rule is just a horizontal rule.
		return metadata, content, nil
	}

	var err error
	if delim == yamlDelim {
		err = yaml.Unmarshal([]byte(raw), &metadata)
	} else {
		err = toml.Unmarshal([]byte(raw), &metadata)
	}
	if err != nil {
		return nil, "", fmt.Errorf("invalid frontmatter: %w", err)
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	return metadata, body, nil
}

func hasDelimLine(text, delim string) bool {
	if !strings.HasPrefix(text, delim) {
		return false
	}
	after := text[len(delim):]
	return after == "" || after[0] == '\n' || strings.HasPrefix(after, "\r\n")
}

// cutClosing finds the line consisting solely of delim and returns the text
// before it and the body after it.
func cutClosing(text, delim string) (string, string, bool) {
	offset := 0
	for {
		line, next, found := strings.Cut(text[offset:], "\n")
		if strings.TrimRight(line, " \t\r") == delim {
			body := ""
			if found {
				body = next
			}
			return text[:offset], strings.TrimPrefix(body, "\n"), true
		}
		if !found {
			return "", "", false
		}
		offset += len(line) + 1
	}
}
