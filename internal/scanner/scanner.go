// Package scanner walks a directory tree and keeps the files some processor
// will handle.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"repoparser/internal/processor"
	"repoparser/internal/slogutil"
)

// File is a file selected for processing.
type File struct {
	Name string

	// SrcPath is relative to the scan root, with forward slashes.
	SrcPath string

	// Content is populated only when the matching processor reads content.
	Content string
}

// Dir is a scanned directory. Files and Dirs are sorted by name.
type Dir struct {
	Name string

	// Path is relative to the scan root; "" for the root itself.
	Path string

	Files []File
	Dirs  []*Dir
}

// Ignorer reports which scan-root-relative paths should be left out.
type Ignorer interface {
	Ignored(ctx context.Context, paths []string) (map[string]bool, error)
}

// Options narrows a scan.
type Options struct {
	// Ignore drops any file or directory whose scan-root-relative path matches.
	Ignore []*regexp.Regexp

	// Subdirs restricts the walk to these scan-root-relative directories.
	Subdirs []string

	// Gitignore, when set, is consulted for every directory's entries.
	Gitignore Ignorer

	Logger *slog.Logger
}

// Scan walks root and returns the tree of directories and matched files.
// The .git directory is always skipped.
func Scan(ctx context.Context, root string, processors []processor.Processor, opts Options) (*Dir, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root %s is not a directory", root)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	s := &walker{
		root:       abs,
		processors: processors,
		opts:       opts,
		subdirs:    normalizeSubdirs(opts.Subdirs),
		logger:     slogutil.OrDiscard(opts.Logger),
	}

	top := &Dir{Name: filepath.Base(abs)}
	if err := s.walk(ctx, top); err != nil {
		return nil, err
	}

	s.logger.Debug("Scan completed",
		"root", abs,
		"files", s.files,
		"dirs", s.dirs,
		"ignored", s.ignored,
	)
	return top, nil
}

type walker struct {
	root       string
	processors []processor.Processor
	opts       Options
	subdirs    []string
	logger     *slog.Logger

	files, dirs, ignored int
}

func (s *walker) walk(ctx context.Context, dir *Dir) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.dirs++

	entries, err := os.ReadDir(filepath.Join(s.root, filepath.FromSlash(dir.Path)))
	if err != nil {
		return err
	}

	type candidate struct {
		name  string
		rel   string
		isDir bool
	}
	var candidates []candidate
	for _, entry := range entries {
		name := entry.Name()
		if name == ".git" {
			continue
		}
		rel := path.Join(dir.Path, name)

		isDir, ok := s.entryKind(entry, rel)
		if !ok {
			continue
		}
		if s.matchesIgnore(rel) {
			s.ignored++
			continue
		}
		if isDir && !s.wantDir(rel) {
			continue
		}
		if !isDir && !s.wantFile(dir.Path) {
			continue
		}
		candidates = append(candidates, candidate{name: name, rel: rel, isDir: isDir})
	}

	var excluded map[string]bool
	if s.opts.Gitignore != nil && len(candidates) > 0 {
		rels := make([]string, len(candidates))
		for i, c := range candidates {
			rels[i] = c.rel
		}
		excluded, err = s.opts.Gitignore.Ignored(ctx, rels)
		if err != nil {
			return err
		}
	}

	for _, c := range candidates {
		if excluded[c.rel] {
			s.ignored++
			continue
		}

		if c.isDir {
			sub := &Dir{Name: c.name, Path: c.rel}
			if err := s.walk(ctx, sub); err != nil {
				return err
			}
			dir.Dirs = append(dir.Dirs, sub)
			continue
		}

		p, ok := processor.First(s.processors, c.name)
		if !ok {
			continue
		}
		file := File{Name: c.name, SrcPath: c.rel}
		if p.ReadContent {
			data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(c.rel)))
			if err != nil {
				return err
			}
			file.Content = string(data)
		}
		dir.Files = append(dir.Files, file)
		s.files++
	}

	return nil
}

// entryKind reports whether an entry is a directory. Symlinks to files are
// followed; symlinks to directories are skipped so the walk cannot loop.
func (s *walker) entryKind(entry os.DirEntry, rel string) (isDir bool, ok bool) {
	if entry.Type()&os.ModeSymlink == 0 {
		return entry.IsDir(), entry.IsDir() || entry.Type().IsRegular()
	}
	info, err := os.Stat(filepath.Join(s.root, filepath.FromSlash(rel)))
	if err != nil || info.IsDir() {
		s.logger.Debug("Skipping symlink", "path", rel)
		return false, false
	}
	return false, info.Mode().IsRegular()
}

func (s *walker) matchesIgnore(rel string) bool {
	for _, re := range s.opts.Ignore {
		if re.MatchString(rel) {
			return true
		}
	}
	return false
}

// wantDir reports whether a directory lies inside, or on the way to, one of
// the requested subdirectories.
func (s *walker) wantDir(rel string) bool {
	if len(s.subdirs) == 0 {
		return true
	}
	for _, sub := range s.subdirs {
		if within(rel, sub) || within(sub, rel) {
			return true
		}
	}
	return false
}

func (s *walker) wantFile(dirRel string) bool {
	if len(s.subdirs) == 0 {
		return true
	}
	for _, sub := range s.subdirs {
		if within(dirRel, sub) {
			return true
		}
	}
	return false
}

// within reports whether p is dir or below it.
func within(p, dir string) bool {
	return p == dir || strings.HasPrefix(p, dir+"/")
}

func normalizeSubdirs(subdirs []string) []string {
	out := make([]string, 0, len(subdirs))
	for _, sub := range subdirs {
		clean := path.Clean(filepath.ToSlash(sub))
		if clean == "." || clean == "" {
			// The root itself: no restriction.
			return nil
		}
		out = append(out, strings.TrimPrefix(clean, "./"))
	}
	return out
}

// AllFiles returns every file in the tree in walk order.
func (d *Dir) AllFiles() []File {
	var files []File
	var visit func(*Dir)
	visit = func(dir *Dir) {
		files = append(files, dir.Files...)
		for _, sub := range dir.Dirs {
			visit(sub)
		}
	}
	visit(d)
	return files
}
