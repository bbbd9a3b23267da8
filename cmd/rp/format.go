package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"repoparser/internal/errors"
)

// maxListedValues caps how many entries of a list detail are printed.
const maxListedValues = 5

// printError writes err for a terminal: the message, then details and
// suggested fixes when err carries an RpError.
func printError(w io.Writer, err error) {
	var rpErr *errors.RpError
	if !stderrors.As(err, &rpErr) {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}

	fmt.Fprintf(w, "Error: %s\n", rpErr.Error())

	if details, ok := rpErr.Details.(map[string]interface{}); ok && len(details) > 0 {
		keys := make([]string, 0, len(details))
		for k := range details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if v := formatDetail(details[k]); v != "" {
				fmt.Fprintf(w, "  %s: %s\n", k, v)
			}
		}
	}

	if len(rpErr.SuggestedFixes) > 0 {
		fmt.Fprintln(w, "Suggested fixes:")
		for _, fix := range rpErr.SuggestedFixes {
			switch {
			case fix.Command != "":
				fmt.Fprintf(w, "  - %s: %s\n", fix.Description, fix.Command)
			default:
				fmt.Fprintf(w, "  - %s\n", fix.Description)
			}
		}
	}
}

func formatDetail(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		if strings.Contains(val, "\n") {
			return "\n    " + strings.ReplaceAll(val, "\n", "\n    ")
		}
		return val
	case []string:
		if len(val) == 0 {
			return ""
		}
		if len(val) > maxListedValues {
			return fmt.Sprintf("%s ... (%d more)", strings.Join(val[:maxListedValues], " "), len(val)-maxListedValues)
		}
		return strings.Join(val, " ")
	default:
		return fmt.Sprintf("%v", val)
	}
}
