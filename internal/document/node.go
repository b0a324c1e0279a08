// Package document models the article content tree stored with each
// document, the patch applied when a paper is imported, and the article
// template new documents are cloned from.
package document

import (
	"encoding/json"
	"maps"
)

// Node is one node of the editor's content tree. The root is a "doc" node
// whose children are the article parts.
type Node struct {
	Type    string           `json:"type"`
	Attrs   map[string]any   `json:"attrs,omitempty"`
	Content []*Node          `json:"content,omitempty"`
	Text    string           `json:"text,omitempty"`
	Marks   []map[string]any `json:"marks,omitempty"`
}

// ID returns attrs.id, or "" when the node has none.
func (n *Node) ID() string {
	id, _ := n.Attrs["id"].(string)
	return id
}

// Part returns the first top-level child of the given type and, when id is
// not empty, with that id.
func (n *Node) Part(typ, id string) *Node {
	for _, p := range n.Content {
		if p != nil && p.Type == typ && (id == "" || p.ID() == id) {
			return p
		}
	}
	return nil
}

// Clone returns a deep copy. Attribute values are copied recursively, so
// mutating the copy never reaches the original.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{Type: n.Type, Text: n.Text}
	if n.Attrs != nil {
		out.Attrs = cloneMap(n.Attrs)
	}
	if n.Content != nil {
		out.Content = make([]*Node, len(n.Content))
		for i, c := range n.Content {
			out.Content[i] = c.Clone()
		}
	}
	if n.Marks != nil {
		out.Marks = make([]map[string]any, len(n.Marks))
		for i, m := range n.Marks {
			out.Marks[i] = cloneMap(m)
		}
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	}
	return v
}

// Parse decodes a content tree from JSON.
func Parse(data []byte) (*Node, error) {
	var n Node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// MergeAttrs copies extra into the node's attrs, overriding existing keys.
func (n *Node) MergeAttrs(extra map[string]any) {
	if n.Attrs == nil {
		n.Attrs = make(map[string]any, len(extra))
	}
	maps.Copy(n.Attrs, cloneMap(extra))
}

func text(s string) *Node {
	return &Node{Type: "text", Text: s}
}

func tag(s string) *Node {
	return &Node{Type: "tag", Attrs: map[string]any{"tag": s}}
}
