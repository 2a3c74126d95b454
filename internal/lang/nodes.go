package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// fieldNameOf returns the grammar field under which child hangs off parent,
// or "" if it has none. ChildByFieldName only sees the first child of a
// repeated field, so declarations like `int a, b;` need the cursor walk.
func fieldNameOf(parent, child *sitter.Node) string {
	if parent == nil || child == nil {
		return ""
	}
	cur := sitter.NewTreeCursor(parent)
	defer cur.Close()

	if !cur.GoToFirstChild() {
		return ""
	}
	for {
		if same(cur.CurrentNode(), child) {
			return cur.CurrentFieldName()
		}
		if !cur.GoToNextSibling() {
			return ""
		}
	}
}

func same(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// fieldText returns the source text of n's field child.
func fieldText(n *sitter.Node, field string, src []byte) (string, bool) {
	if n == nil {
		return "", false
	}
	child := n.ChildByFieldName(field)
	if child == nil {
		return "", false
	}
	return child.Content(src), true
}

// firstChildOfKind returns the first child of n whose kind is in kinds.
func firstChildOfKind(n *sitter.Node, kinds map[string]bool) *sitter.Node {
	if n == nil {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c != nil && kinds[c.Type()] {
			return c
		}
	}
	return nil
}

// declSite describes one parent kind that can hold a declared name. An
// empty field accepts the name in any position.
type declSite struct {
	fields []string
}

func (d declSite) accepts(parent, n *sitter.Node) bool {
	if len(d.fields) == 0 {
		return true
	}
	name := fieldNameOf(parent, n)
	for _, f := range d.fields {
		if name == f {
			return true
		}
	}
	return false
}

// site is shorthand for a declSite keyed by field names.
func site(fields ...string) declSite {
	return declSite{fields: fields}
}

// isDeclName applies a parent-kind table to n.
func isDeclName(n *sitter.Node, nameKinds map[string]bool, sites map[string]declSite) bool {
	if n == nil || !nameKinds[n.Type()] {
		return false
	}
	parent := n.Parent()
	if parent == nil {
		return false
	}
	s, ok := sites[parent.Type()]
	if !ok {
		return false
	}
	return s.accepts(parent, n)
}
