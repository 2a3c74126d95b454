package tokens

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// KindSet is a set of grammar node kinds.
type KindSet map[string]bool

// Kinds builds a KindSet from its arguments.
func Kinds(kinds ...string) KindSet {
	s := make(KindSet, len(kinds))
	for _, k := range kinds {
		s[k] = true
	}
	return s
}

// Has reports whether kind is in the set. A nil set contains nothing.
func (s KindSet) Has(kind string) bool {
	return s[kind]
}

// Union returns a new set holding the kinds of s and every other set.
func (s KindSet) Union(others ...KindSet) KindSet {
	out := make(KindSet, len(s))
	for k := range s {
		out[k] = true
	}
	for _, o := range others {
		for k := range o {
			out[k] = true
		}
	}
	return out
}

// Grammar is the node-kind taxonomy the collector consults. It is plain
// data so the traversal never needs to know which language it is walking.
type Grammar struct {
	// ScopeKinds open a new lexical scope for everything beneath them.
	ScopeKinds KindSet

	// CallWrapperKinds mark their direct token children as method/target
	// tokens (callee names, type tag names).
	CallWrapperKinds KindSet

	// AtomicKinds become single tokens even though they have children.
	AtomicKinds KindSet

	// CommentKinds never become tokens.
	CommentKinds KindSet

	// MemberAccessKinds are qualified accesses such as a.b or a->b.
	MemberAccessKinds KindSet

	// MemberFieldName is the field holding the accessed member of a
	// MemberAccessKinds node. The last child is used when the field is absent.
	MemberFieldName string

	// ArgumentListKinds follow a callee when it is actually invoked.
	ArgumentListKinds KindSet

	// CallKinds are invocation expressions.
	CallKinds KindSet
}

// Policy supplies the language-specific decisions of the token pass.
type Policy interface {
	// Name is the canonical language name, e.g. "c".
	Name() string

	// Grammar returns the node-kind taxonomy for the language.
	Grammar() Grammar

	// IsDeclaration reports whether n is the name component of a
	// declaration construct.
	IsDeclaration(n *sitter.Node) bool

	// DeclaredType returns the textual type of a declaration node, if a
	// type is syntactically visible.
	DeclaredType(n *sitter.Node, src []byte) (string, bool)
}
