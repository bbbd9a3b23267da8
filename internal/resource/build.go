package resource

import (
	"fmt"
	"maps"
	"path"
	"time"

	"repoparser/internal/processor"
	"repoparser/internal/scanner"
)

// Build turns a scanned directory into a resource tree rooted at a "repo"
// resource and returns, in walk order, the SrcPath of every file resource.
//
// A directory holding a file whose processor reports a non-file type becomes
// a directory resource of that type, and everything found below it is
// attached to it. Other directories add no node of their own: their contents
// are attached to the nearest enclosing resource. Every node starts with
// placeholder as its last-modified time.
func Build(dir *scanner.Dir, processors []processor.Processor, placeholder time.Time) (*Tree, []string, error) {
	b := &builder{
		tree:        NewTree(dir.Name, TypeRepo, placeholder),
		processors:  processors,
		placeholder: placeholder,
	}
	if err := b.build(dir, b.tree.Root(), ""); err != nil {
		return nil, nil, err
	}
	return b.tree, b.files, nil
}

type builder struct {
	tree        *Tree
	processors  []processor.Processor
	placeholder time.Time
	files       []string
}

func (b *builder) build(dir *scanner.Dir, parent NodeID, docBase string) error {
	results := make([]processor.Result, len(dir.Files))
	matched := make([]bool, len(dir.Files))

	// Every matching processor may contribute to the directory's own type and
	// metadata; only the first one shapes the file resource.
	var dirMeta map[string]any
	dirType := ""
	for i, file := range dir.Files {
		for _, p := range b.processors {
			if !p.Match(file.Name) {
				continue
			}
			res, err := p.Process(file.Content)
			if err != nil {
				return fmt.Errorf("processing %s with %s: %w", file.SrcPath, p.Name, err)
			}
			if !matched[i] {
				results[i] = res
				matched[i] = true
			}
			if res.Type == TypeFile {
				continue
			}
			if dirType == "" {
				dirType = res.Type
				dirMeta = maps.Clone(res.Metadata)
				if dirMeta == nil {
					dirMeta = map[string]any{}
				}
			} else {
				maps.Copy(dirMeta, res.Metadata)
			}
		}
	}

	owner := parent
	if dirType != "" {
		owner = b.tree.AddChild(parent, Node{
			Name:         dir.Name,
			Kind:         Directory,
			Type:         dirType,
			Path:         splitPath(dir.Path),
			SrcPath:      dir.Path,
			Metadata:     dirMeta,
			LastModified: b.placeholder,
		})
		docBase = ""
	}

	for i, file := range dir.Files {
		if !matched[i] {
			continue
		}
		b.tree.AddChild(owner, Node{
			Name:         file.Name,
			Kind:         File,
			Type:         TypeFile,
			Path:         splitPath(file.SrcPath),
			DocPath:      path.Join(docBase, file.Name),
			SrcPath:      file.SrcPath,
			Metadata:     maps.Clone(results[i].Metadata),
			Content:      file.Content,
			LastModified: b.placeholder,
		})
		b.files = append(b.files, file.SrcPath)
	}

	for _, sub := range dir.Dirs {
		if err := b.build(sub, owner, path.Join(docBase, sub.Name)); err != nil {
			return err
		}
	}
	return nil
}
