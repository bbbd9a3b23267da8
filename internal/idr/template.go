package idr

import (
	"regexp"
	"strings"
)

const recordTemplate = `# {{.Title}}

- **Author:** {{.Author}}
- **Date:** {{.Date}}
- **Status:** Proposed

<!--
An Implementation Decision Record captures one decision made while building
something: what was decided, why, and what it means for the code. Keep it
short. Delete these comments once the sections are filled in.
-->

## Context

<!-- What problem are you solving? What constraints apply? -->

## Decision

<!-- What did you decide to do? Be specific about the approach. -->

## Alternatives considered

<!-- What else did you look at, and why was it rejected? -->

## Consequences

<!-- What becomes easier or harder because of this decision? -->
`

var (
	htmlComment   = regexp.MustCompile(`(?s)<!--.*?-->`)
	blankishLine  = regexp.MustCompile(`(?m)^[ \t\r\f\v]+$`)
	extraNewlines = regexp.MustCompile(`\n{3,}`)
)

// StripComments removes HTML comments, then collapses the blank lines they
// leave behind and trims the result.
func StripComments(text string) string {
	text = htmlComment.ReplaceAllString(text, "")
	text = blankishLine.ReplaceAllString(text, "")
	text = extraNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
