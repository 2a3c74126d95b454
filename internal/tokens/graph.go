// Package tokens turns a tree-sitter syntax tree into a flat, scope-aware
// token graph: every leaf token in document order, the declarations it
// introduces, the declaration each reference resolves to, and which tokens
// are call targets.
//
// The pass is strictly intra-file and lexical. Grammar specifics come from
// a Policy; the traversal and resolution logic is shared by all languages.
package tokens

import (
	"sort"
	"strings"
)

// Span is a token's source range. Lines and columns are 0-based.
type Span struct {
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// Contains reports whether the 0-based (line, col) position lies in s.
func (s Span) Contains(line, col int) bool {
	if line < s.StartLine || line > s.EndLine {
		return false
	}
	if line == s.StartLine && col < s.StartCol {
		return false
	}
	if line == s.EndLine && col > s.EndCol {
		return false
	}
	return true
}

// Registry is the insertion-ordered declaration set: token index to
// declared name. Iteration order is the order declarations were seen,
// which is what makes equal-depth tie-breaks deterministic.
type Registry struct {
	order  []TokenIndex
	names  map[TokenIndex]string
	byName map[string][]TokenIndex
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		names:  make(map[TokenIndex]string),
		byName: make(map[string][]TokenIndex),
	}
}

// Add records idx as declaring name. Re-adding an index is a no-op.
func (r *Registry) Add(idx TokenIndex, name string) {
	if _, ok := r.names[idx]; ok {
		return
	}
	r.order = append(r.order, idx)
	r.names[idx] = name
	r.byName[name] = append(r.byName[name], idx)
}

// Name returns the declared name of idx.
func (r *Registry) Name(idx TokenIndex) (string, bool) {
	name, ok := r.names[idx]
	return name, ok
}

// Has reports whether idx is a declaration.
func (r *Registry) Has(idx TokenIndex) bool {
	_, ok := r.names[idx]
	return ok
}

// Named returns the declarations of name in insertion order.
func (r *Registry) Named(name string) []TokenIndex {
	return r.byName[name]
}

// Indexes returns all declarations in insertion order.
func (r *Registry) Indexes() []TokenIndex {
	out := make([]TokenIndex, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of declarations.
func (r *Registry) Len() int { return len(r.order) }

// TokenSet is an insertion-ordered set of token indexes.
type TokenSet struct {
	order   []TokenIndex
	members map[TokenIndex]bool
}

// NewTokenSet returns an empty set.
func NewTokenSet() *TokenSet {
	return &TokenSet{members: make(map[TokenIndex]bool)}
}

// Add inserts idx, keeping the first insertion position.
func (s *TokenSet) Add(idx TokenIndex) {
	if s.members[idx] {
		return
	}
	s.members[idx] = true
	s.order = append(s.order, idx)
}

// Has reports membership.
func (s *TokenSet) Has(idx TokenIndex) bool { return s.members[idx] }

// Len returns the set size.
func (s *TokenSet) Len() int { return len(s.order) }

// Slice returns the members in insertion order.
func (s *TokenSet) Slice() []TokenIndex {
	out := make([]TokenIndex, len(s.order))
	copy(out, s.order)
	return out
}

// SymbolTable is the per-traversal resolution state. It is created fresh
// for every file and never shared.
type SymbolTable struct {
	Scopes   *ScopeTracker
	ScopeMap map[TokenIndex]ScopePath
	DataType map[TokenIndex]string
	Bindings map[TokenIndex]TokenIndex
}

// NewSymbolTable returns an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		Scopes:   NewScopeTracker(),
		ScopeMap: make(map[TokenIndex]ScopePath),
		DataType: make(map[TokenIndex]string),
		Bindings: make(map[TokenIndex]TokenIndex),
	}
}

// Graph is the output of one token pass.
type Graph struct {
	Language string

	// Tokens lists token indexes in document order.
	Tokens []TokenIndex
	Text   map[TokenIndex]string
	Line   map[TokenIndex]int
	Kind   map[TokenIndex]string
	Span   map[TokenIndex]Span

	Declarations *Registry

	// MethodTargets holds call-like target positions; Calls is the subset
	// actually followed by an argument list.
	MethodTargets *TokenSet
	Calls         *TokenSet

	Symbols *SymbolTable
}

func newGraph(language string) *Graph {
	return &Graph{
		Language:      language,
		Text:          make(map[TokenIndex]string),
		Line:          make(map[TokenIndex]int),
		Kind:          make(map[TokenIndex]string),
		Span:          make(map[TokenIndex]Span),
		Declarations:  NewRegistry(),
		MethodTargets: NewTokenSet(),
		Calls:         NewTokenSet(),
		Symbols:       NewSymbolTable(),
	}
}

// Binding returns the declaration ref resolves to.
func (g *Graph) Binding(ref TokenIndex) (TokenIndex, bool) {
	decl, ok := g.Symbols.Bindings[ref]
	return decl, ok
}

// ScopePath returns the scope path captured when idx was visited.
func (g *Graph) ScopePath(idx TokenIndex) ScopePath {
	return g.Symbols.ScopeMap[idx]
}

// DeclaredType returns the declared type recorded for a declaration.
func (g *Graph) DeclaredType(idx TokenIndex) (string, bool) {
	t, ok := g.Symbols.DataType[idx]
	return t, ok
}

// ReferencesTo returns the references bound to decl in document order.
func (g *Graph) ReferencesTo(decl TokenIndex) []TokenIndex {
	var refs []TokenIndex
	for _, idx := range g.Tokens {
		if d, ok := g.Symbols.Bindings[idx]; ok && d == decl {
			refs = append(refs, idx)
		}
	}
	return refs
}

// Find returns the tokens whose text equals text, in document order.
func (g *Graph) Find(text string) []TokenIndex {
	var out []TokenIndex
	for _, idx := range g.Tokens {
		if g.Text[idx] == text {
			out = append(out, idx)
		}
	}
	return out
}

// TokenAt returns the token whose span covers the 0-based position.
func (g *Graph) TokenAt(line, col int) (TokenIndex, bool) {
	for _, idx := range g.Tokens {
		if g.Span[idx].Contains(line, col) {
			return idx, true
		}
	}
	return 0, false
}

// ScopeGroups groups tokens by their innermost scope id. File-level
// tokens are grouped under 0.
func (g *Graph) ScopeGroups() map[ScopeID][]TokenIndex {
	groups := make(map[ScopeID][]TokenIndex)
	for _, idx := range g.Tokens {
		id := g.Symbols.ScopeMap[idx].Innermost()
		groups[id] = append(groups[id], idx)
	}
	return groups
}

// BoundReferences returns the bound reference indexes in ascending order.
func (g *Graph) BoundReferences() []TokenIndex {
	refs := make([]TokenIndex, 0, len(g.Symbols.Bindings))
	for ref := range g.Symbols.Bindings {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i] < refs[j] })
	return refs
}

// nonReferenceKinds name types, namespaces and labels. No policy declares
// them, so they would otherwise always read as unresolved.
var nonReferenceKinds = map[string]bool{
	"type_identifier":      true,
	"namespace_identifier": true,
	"statement_identifier": true,
}

// IsReferenceKind reports whether tokens of kind are names that can bind to
// a declaration.
func IsReferenceKind(kind string) bool {
	return strings.HasSuffix(kind, "identifier") && !nonReferenceKinds[kind]
}

// Unresolved returns the reference tokens that are neither declarations
// nor bound to one, in document order.
func (g *Graph) Unresolved() []TokenIndex {
	var out []TokenIndex
	for _, idx := range g.Tokens {
		if !IsReferenceKind(g.Kind[idx]) || g.Declarations.Has(idx) {
			continue
		}
		if _, ok := g.Symbols.Bindings[idx]; !ok {
			out = append(out, idx)
		}
	}
	return out
}
