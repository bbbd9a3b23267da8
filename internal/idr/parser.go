package idr

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Record is a parsed decision record.
type Record struct {
	Title   string    `json:"title"`
	Author  string    `json:"author,omitempty"`
	Status  string    `json:"status,omitempty"`
	Created time.Time `json:"created"`
	Path    string    `json:"path"`
}

var (
	filenamePattern = regexp.MustCompile(`^(\d{12})-[a-z0-9-]*\.md$`)
	titlePattern    = regexp.MustCompile(`^#\s+(.+)$`)
	authorPattern   = regexp.MustCompile(`(?i)^\s*-?\s*\*\*Author:\*\*\s*(.+)$`)
	statusPattern   = regexp.MustCompile(`(?i)^\s*-?\s*\*\*Status:\*\*\s*(.+)$`)
)

// List parses every record under dir, oldest first. A missing directory
// yields no records.
func List(dir string) ([]Record, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var records []Record
	for _, entry := range entries {
		if entry.IsDir() || !filenamePattern.MatchString(entry.Name()) {
			continue
		}
		rec, err := ParseFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return filepath.Base(records[i].Path) < filepath.Base(records[j].Path)
	})
	return records, nil
}

// ParseFile reads one record. The creation time comes from the filename.
func ParseFile(path string) (Record, error) {
	rec := Record{Path: path}

	if m := filenamePattern.FindStringSubmatch(filepath.Base(path)); m != nil {
		if t, err := time.Parse("200601021504", m[1]); err == nil {
			rec.Created = t
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return rec, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()

		if rec.Title == "" {
			if m := titlePattern.FindStringSubmatch(line); m != nil {
				rec.Title = strings.TrimSpace(m[1])
				continue
			}
		}
		if m := authorPattern.FindStringSubmatch(line); m != nil && rec.Author == "" {
			rec.Author = strings.TrimSpace(m[1])
			continue
		}
		if m := statusPattern.FindStringSubmatch(line); m != nil && rec.Status == "" {
			rec.Status = strings.ToLower(strings.TrimSpace(m[1]))
		}
	}

	return rec, scanner.Err()
}
