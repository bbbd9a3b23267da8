package resource

import (
	"encoding/json"
	"strings"
	"time"
)

// View is the nested, serializable form of a resource and its descendants.
type View struct {
	Name         string         `json:"name"`
	Kind         Kind           `json:"kind"`
	Type         string         `json:"type"`
	Path         string         `json:"path"`
	DocPath      string         `json:"docPath,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Content      string         `json:"content,omitempty"`
	LastModified time.Time      `json:"lastModified"`
	Children     []*View        `json:"children,omitempty"`
}

// View returns the subtree rooted at id. Content is included only when
// withContent is set.
func (t *Tree) View(id NodeID, withContent bool) *View {
	n := &t.nodes[id]
	v := &View{
		Name:         n.Name,
		Kind:         n.Kind,
		Type:         n.Type,
		Path:         strings.Join(n.Path, "/"),
		DocPath:      n.DocPath,
		Metadata:     n.Metadata,
		LastModified: n.LastModified,
	}
	if withContent {
		v.Content = n.Content
	}
	if len(n.Children) > 0 {
		v.Children = make([]*View, len(n.Children))
		for i, child := range n.Children {
			v.Children[i] = t.View(child, withContent)
		}
	}
	return v
}

// MarshalJSON encodes the whole tree, without file content, as nested views.
func (t *Tree) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.View(t.Root(), false))
}
