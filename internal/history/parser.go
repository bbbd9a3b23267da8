// Package history resolves last-modified timestamps for many files from
// version-control history using a small number of batched log queries.
package history

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"repoparser/internal/errors"
)

// maxLineBytes bounds a single line of log output (one changed path).
const maxLineBytes = 1 << 20

// Record is one commit from a log query: when it was committed and which of
// the queried paths it changed (repository-relative, forward slashes).
type Record struct {
	Timestamp time.Time
	Paths     []string
}

// parserState is the position of the parser within one commit block:
//
//	<timestamp>
//	<blank>
//	<path>...
//	<blank>
type parserState int

const (
	awaitingTimestamp parserState = iota
	awaitingSeparator
	awaitingPaths
)

func (s parserState) String() string {
	switch s {
	case awaitingTimestamp:
		return "awaiting-timestamp"
	case awaitingSeparator:
		return "awaiting-separator"
	case awaitingPaths:
		return "awaiting-paths"
	default:
		return "unknown"
	}
}

// parserAction tells the driver loop what to do with the line just consumed.
type parserAction int

const (
	actSkip parserAction = iota
	actBegin
	actAddPath
	actEmit
)

// transition is the whole grammar. It is pure: the next state and action
// depend only on the current state and the line. A non-empty reason means the
// line is not allowed in this state.
func transition(state parserState, line string) (parserState, parserAction, string) {
	blank := line == ""

	switch state {
	case awaitingTimestamp:
		if blank {
			return awaitingTimestamp, actSkip, ""
		}
		if !isTimestamp(line) {
			return state, actSkip, "expected commit timestamp, found non-numeric line"
		}
		return awaitingSeparator, actBegin, ""

	case awaitingSeparator:
		if !blank {
			return state, actSkip, "expected blank line after commit timestamp"
		}
		return awaitingPaths, actSkip, ""

	case awaitingPaths:
		if blank {
			return awaitingTimestamp, actEmit, ""
		}
		return awaitingPaths, actAddPath, ""
	}

	return state, actSkip, "parser in unknown state"
}

func isTimestamp(line string) bool {
	if line == "" || len(line) > 19 {
		return false
	}
	for i := 0; i < len(line); i++ {
		if line[i] < '0' || line[i] > '9' {
			return false
		}
	}
	return true
}

// LogParser reads the output of one batched log query and yields one Record
// per commit, in input order. It reads lazily and cannot be rewound: once Next
// has returned an error (including io.EOF) it keeps returning that error.
type LogParser struct {
	scanner     *bufio.Scanner
	state       parserState
	lineNo      int
	current     *Record
	last        time.Time
	hasLast     bool
	strictOrder bool
	err         error
}

// NewLogParser creates a parser over r. With strictOrder set, a commit whose
// timestamp is newer than the one before it is reported as malformed output,
// since first-seen-wins merging relies on newest-first ordering.
func NewLogParser(r io.Reader, strictOrder bool) *LogParser {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &LogParser{
		scanner:     scanner,
		state:       awaitingTimestamp,
		strictOrder: strictOrder,
	}
}

// Next returns the next commit record, or io.EOF when the input is exhausted.
// Malformed input yields a MALFORMED_HISTORY_OUTPUT error naming the line.
func (p *LogParser) Next() (Record, error) {
	if p.err != nil {
		return Record{}, p.err
	}

	for p.scanner.Scan() {
		p.lineNo++
		line := strings.TrimSuffix(p.scanner.Text(), "\r")

		next, action, reason := transition(p.state, line)
		if reason != "" {
			return Record{}, p.fail(errors.NewMalformedHistoryError(p.lineNo, line, reason))
		}
		p.state = next

		switch action {
		case actBegin:
			if err := p.begin(line); err != nil {
				return Record{}, p.fail(err)
			}
		case actAddPath:
			p.current.Paths = append(p.current.Paths, unquotePath(line))
		case actEmit:
			return p.emit(), nil
		}
	}

	if err := p.scanner.Err(); err != nil {
		return Record{}, p.fail(errors.NewMalformedHistoryError(p.lineNo+1, "", "unreadable output: "+err.Error()))
	}

	// The final commit is not followed by a blank line.
	if p.current != nil {
		p.state = awaitingTimestamp
		return p.emit(), nil
	}

	p.err = io.EOF
	return Record{}, io.EOF
}

// Line returns the number of lines consumed so far.
func (p *LogParser) Line() int {
	return p.lineNo
}

func (p *LogParser) begin(line string) error {
	secs, err := strconv.ParseInt(line, 10, 64)
	if err != nil {
		return errors.NewMalformedHistoryError(p.lineNo, line, "commit timestamp out of range")
	}
	ts := time.Unix(secs, 0).UTC()

	if p.strictOrder && p.hasLast && ts.After(p.last) {
		return errors.NewMalformedHistoryError(p.lineNo, line,
			"commit timestamps are not newest-first (previous "+strconv.FormatInt(p.last.Unix(), 10)+")")
	}
	p.last = ts
	p.hasLast = true

	p.current = &Record{Timestamp: ts}
	return nil
}

func (p *LogParser) emit() Record {
	rec := *p.current
	p.current = nil
	return rec
}

func (p *LogParser) fail(err error) error {
	p.err = err
	return err
}

// unquotePath undoes git's C-style quoting of unusual path names.
func unquotePath(line string) string {
	if len(line) >= 2 && line[0] == '"' && line[len(line)-1] == '"' {
		if s, err := strconv.Unquote(line); err == nil {
			return s
		}
	}
	return line
}
