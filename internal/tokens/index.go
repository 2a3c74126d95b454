package tokens

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// TokenIndex is the identity of a token within one file's graph.
type TokenIndex int

// nodeKey identifies a syntax node by position and kind. Two node values
// reached through different structural paths share the same key.
type nodeKey struct {
	start sitter.Point
	end   sitter.Point
	kind  string
}

func keyOf(n *sitter.Node) nodeKey {
	return nodeKey{start: n.StartPoint(), end: n.EndPoint(), kind: n.Type()}
}

// sameNode reports whether a and b denote the same (start, end, kind) triple.
func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return keyOf(a) == keyOf(b)
}

// NodeIndex assigns stable, deduplicated token indexes to syntax nodes.
// Indexes are allocated in first-seen order starting at 0.
type NodeIndex struct {
	ids  map[nodeKey]TokenIndex
	next TokenIndex
}

// NewNodeIndex returns an empty index.
func NewNodeIndex() *NodeIndex {
	return &NodeIndex{ids: make(map[nodeKey]TokenIndex)}
}

// Identity returns the index assigned to n's (start, end, kind) triple,
// allocating a new one on first sight.
func (x *NodeIndex) Identity(n *sitter.Node) (TokenIndex, error) {
	if n == nil {
		return 0, ErrMalformedNode
	}
	k := keyOf(n)
	if id, ok := x.ids[k]; ok {
		return id, nil
	}
	id := x.next
	x.ids[k] = id
	x.next++
	return id, nil
}

// Lookup returns the index for n without allocating.
func (x *NodeIndex) Lookup(n *sitter.Node) (TokenIndex, bool) {
	if n == nil {
		return 0, false
	}
	id, ok := x.ids[keyOf(n)]
	return id, ok
}

// Len returns the number of allocated indexes.
func (x *NodeIndex) Len() int {
	return len(x.ids)
}
