// Package resource models a scanned source tree as resources and annotates
// them with last-modified times from version-control history.
package resource

import (
	"fmt"
	"strings"
	"time"
)

// Kind distinguishes file resources from directory resources.
type Kind int

const (
	File Kind = iota
	Directory
)

func (k Kind) String() string {
	switch k {
	case File:
		return "file"
	case Directory:
		return "directory"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Resource types with special meaning. Any other type comes from frontmatter.
const (
	TypeRepo = "repo"
	TypeFile = "file"
)

// NodeID is a handle to a node in a Tree.
type NodeID int

// NoParent is the Parent of the root node.
const NoParent NodeID = -1

// Node is one resource.
type Node struct {
	Name string
	Kind Kind

	// Type is the semantic role: repo, service, library, file, ...
	Type string

	// Path is the resource location relative to the scan root, one segment
	// per element. Empty for the root.
	Path []string

	// DocPath is relative to the nearest enclosing typed resource.
	DocPath string

	// SrcPath is Path joined with "/"; for files it keys the last-modified cache.
	SrcPath string

	Metadata map[string]any
	Content  string

	Children []NodeID

	// Parent is a back-reference only; the parent owns this node, not the
	// other way round.
	Parent NodeID

	LastModified time.Time
}

// Tree is an arena of resources. Node 0 is the root. A node's children
// always have larger IDs than the node itself.
type Tree struct {
	nodes []Node
}

// NewTree creates a tree holding only a root directory resource.
func NewTree(name, typ string, placeholder time.Time) *Tree {
	return &Tree{nodes: []Node{{
		Name:         name,
		Kind:         Directory,
		Type:         typ,
		Metadata:     map[string]any{},
		Parent:       NoParent,
		LastModified: placeholder,
	}}}
}

// Root returns the root node's ID.
func (t *Tree) Root() NodeID { return 0 }

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns the node for id. The pointer is valid until the next AddChild.
func (t *Tree) Node(id NodeID) *Node {
	return &t.nodes[id]
}

// AddChild appends n as the last child of parent and returns its ID.
func (t *Tree) AddChild(parent NodeID, n Node) NodeID {
	if t.nodes[parent].Kind != Directory {
		panic(fmt.Sprintf("resource: cannot add child to file %q", t.nodes[parent].SrcPath))
	}
	id := NodeID(len(t.nodes))
	n.Parent = parent
	n.Children = nil
	if n.Metadata == nil {
		n.Metadata = map[string]any{}
	}
	t.nodes = append(t.nodes, n)
	t.nodes[parent].Children = append(t.nodes[parent].Children, id)
	return id
}

// Walk visits every node in pre-order, children in insertion order. A
// non-nil error from fn stops the walk and is returned.
func (t *Tree) Walk(fn func(id NodeID, depth int) error) error {
	type frame struct {
		id    NodeID
		depth int
	}
	stack := []frame{{id: t.Root()}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if err := fn(top.id, top.depth); err != nil {
			return err
		}

		children := t.nodes[top.id].Children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{id: children[i], depth: top.depth + 1})
		}
	}
	return nil
}

// Collect returns every resource of the given type in pre-order, including
// nested ones.
func (t *Tree) Collect(typ string) []NodeID {
	var ids []NodeID
	_ = t.Walk(func(id NodeID, _ int) error {
		if t.nodes[id].Type == typ {
			ids = append(ids, id)
		}
		return nil
	})
	return ids
}

// Files returns the IDs of all file resources in pre-order.
func (t *Tree) Files() []NodeID {
	var ids []NodeID
	_ = t.Walk(func(id NodeID, _ int) error {
		if t.nodes[id].Kind == File {
			ids = append(ids, id)
		}
		return nil
	})
	return ids
}

// Find returns the node whose SrcPath equals srcPath.
func (t *Tree) Find(srcPath string) (NodeID, bool) {
	for i := range t.nodes {
		if t.nodes[i].SrcPath == srcPath && (i != 0 || srcPath == "") {
			return NodeID(i), true
		}
	}
	return 0, false
}

func splitPath(p string) []string {
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
