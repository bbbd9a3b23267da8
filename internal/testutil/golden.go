package testutil

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var update = flag.Bool("update", false, "rewrite golden files with the current output")

// CompareGolden fails t when got differs from the contents of goldenPath.
// Under -update the file is rewritten with got instead.
func CompareGolden(t *testing.T, goldenPath string, got []byte) {
	t.Helper()

	if *update {
		if err := os.MkdirAll(filepath.Dir(goldenPath), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(goldenPath, got, 0o644); err != nil {
			t.Fatal(err)
		}
		return
	}

	want, err := os.ReadFile(goldenPath)
	if os.IsNotExist(err) {
		t.Fatalf("%s does not exist; run `go test -run %s -update` to create it\n\ngot:\n%s",
			goldenPath, t.Name(), got)
	}
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("output differs from %s (run with -update to accept):\n%s",
			goldenPath, lineDiff(string(want), string(got)))
	}
}

// lineDiff lists the lines that differ by position.
func lineDiff(want, got string) string {
	w := strings.Split(want, "\n")
	g := strings.Split(got, "\n")

	var b strings.Builder
	for i := 0; i < max(len(w), len(g)); i++ {
		var wl, gl string
		if i < len(w) {
			wl = w[i]
		}
		if i < len(g) {
			gl = g[i]
		}
		if wl != gl {
			fmt.Fprintf(&b, "%4d - %q\n     + %q\n", i+1, wl, gl)
		}
	}
	return b.String()
}
