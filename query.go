package tokengraph

import (
	"fmt"

	"github.com/jward/tokengraph/internal/store"
	"github.com/jward/tokengraph/internal/tokens"
)

// QueryBuilder provides read access to indexed token graphs. Paths are the
// paths files were indexed under; lines and columns are 0-based.
type QueryBuilder struct {
	store *store.Store
}

// Location is a token's source position. The end column is inclusive.
type Location struct {
	File       string
	TokenIndex int
	Text       string
	StartLine  int
	StartCol   int
	EndLine    int
	EndCol     int
}

func locationOf(path string, tok *store.Token) Location {
	return Location{
		File:       path,
		TokenIndex: tok.TokenIndex,
		Text:       tok.Text,
		StartLine:  tok.StartLine,
		StartCol:   tok.StartCol,
		EndLine:    tok.EndLine,
		EndCol:     tok.EndCol,
	}
}

// file looks up an indexed file. A nil file with nil error means the path
// was never indexed.
func (q *QueryBuilder) file(path string) (*store.File, error) {
	f, err := q.store.FileByPath(path)
	if err != nil {
		return nil, fmt.Errorf("lookup file %s: %w", path, err)
	}
	return f, nil
}

// File returns the indexed record for path, or nil.
func (q *QueryBuilder) File(path string) (*File, error) {
	return q.file(path)
}

// Tokens returns a file's tokens in document order.
func (q *QueryBuilder) Tokens(path string) ([]*Token, error) {
	f, err := q.file(path)
	if err != nil || f == nil {
		return nil, err
	}
	return q.store.TokensByFile(f.ID)
}

// Declarations returns a file's declarations in document order.
func (q *QueryBuilder) Declarations(path string) ([]*Declaration, error) {
	f, err := q.file(path)
	if err != nil || f == nil {
		return nil, err
	}
	return q.store.DeclarationsByFile(f.ID)
}

// DefinitionAt finds the declaration the token at (line, col) resolves to.
// A declaration token resolves to itself. Returns nil when no token covers
// the position or the token is unbound.
func (q *QueryBuilder) DefinitionAt(path string, line, col int) ([]Location, error) {
	f, err := q.file(path)
	if err != nil || f == nil {
		return nil, err
	}
	tok, err := q.store.TokenAt(f.ID, line, col)
	if err != nil {
		return nil, fmt.Errorf("definition at: token lookup: %w", err)
	}
	if tok == nil {
		return nil, nil
	}

	decl, err := q.store.DeclarationAt(f.ID, tok.TokenIndex)
	if err != nil {
		return nil, fmt.Errorf("definition at: declaration lookup: %w", err)
	}
	if decl != nil {
		return []Location{locationOf(f.Path, tok)}, nil
	}

	b, err := q.store.BindingForReference(f.ID, tok.TokenIndex)
	if err != nil {
		return nil, fmt.Errorf("definition at: binding lookup: %w", err)
	}
	if b == nil {
		return nil, nil
	}
	target, err := q.store.TokenByIndex(f.ID, b.DeclarationIndex)
	if err != nil {
		return nil, fmt.Errorf("definition at: declaration token: %w", err)
	}
	if target == nil {
		return nil, nil
	}
	return []Location{locationOf(f.Path, target)}, nil
}

// ReferencesTo returns the references bound to the declaration token with
// index declIndex, in document order.
func (q *QueryBuilder) ReferencesTo(path string, declIndex int) ([]Location, error) {
	f, err := q.file(path)
	if err != nil || f == nil {
		return nil, err
	}
	binds, err := q.store.BindingsToDeclaration(f.ID, declIndex)
	if err != nil {
		return nil, fmt.Errorf("references to: %w", err)
	}
	if len(binds) == 0 {
		return nil, nil
	}
	byIndex, err := q.tokensByIndex(f.ID)
	if err != nil {
		return nil, fmt.Errorf("references to: %w", err)
	}

	var locations []Location
	for _, b := range binds {
		if tok, ok := byIndex[b.ReferenceIndex]; ok {
			locations = append(locations, locationOf(f.Path, tok))
		}
	}
	return locations, nil
}

// Calls returns the tokens that are actually invoked.
func (q *QueryBuilder) Calls(path string) ([]*Token, error) {
	return q.marked(path, store.MarkerCall)
}

// MethodTargets returns the tokens in callee or tag-name position, invoked
// or not.
func (q *QueryBuilder) MethodTargets(path string) ([]*Token, error) {
	return q.marked(path, store.MarkerTarget)
}

func (q *QueryBuilder) marked(path, kind string) ([]*Token, error) {
	f, err := q.file(path)
	if err != nil || f == nil {
		return nil, err
	}
	markers, err := q.store.CallMarkersByFile(f.ID, kind)
	if err != nil {
		return nil, fmt.Errorf("%s markers: %w", kind, err)
	}
	if len(markers) == 0 {
		return nil, nil
	}
	byIndex, err := q.tokensByIndex(f.ID)
	if err != nil {
		return nil, fmt.Errorf("%s markers: %w", kind, err)
	}
	toks := make([]*Token, 0, len(markers))
	for _, m := range markers {
		if tok, ok := byIndex[m.TokenIndex]; ok {
			toks = append(toks, tok)
		}
	}
	return toks, nil
}

// ScopeGroups groups a file's token indexes by innermost scope id, in
// document order. File-level tokens are grouped under 0.
func (q *QueryBuilder) ScopeGroups(path string) (map[int][]int, error) {
	toks, err := q.Tokens(path)
	if err != nil || toks == nil {
		return nil, err
	}
	groups := make(map[int][]int)
	for _, tok := range toks {
		scope := 0
		if n := len(tok.ScopePath); n > 0 {
			scope = tok.ScopePath[n-1]
		}
		groups[scope] = append(groups[scope], tok.TokenIndex)
	}
	return groups, nil
}

// Unresolved returns the reference tokens that are neither declarations
// nor bound to one.
func (q *QueryBuilder) Unresolved(path string) ([]*Token, error) {
	f, err := q.file(path)
	if err != nil || f == nil {
		return nil, err
	}
	toks, err := q.store.TokensByFile(f.ID)
	if err != nil {
		return nil, fmt.Errorf("unresolved: %w", err)
	}
	decls, err := q.store.DeclarationsByFile(f.ID)
	if err != nil {
		return nil, fmt.Errorf("unresolved: %w", err)
	}
	binds, err := q.store.BindingsByFile(f.ID)
	if err != nil {
		return nil, fmt.Errorf("unresolved: %w", err)
	}

	known := make(map[int]bool, len(decls)+len(binds))
	for _, d := range decls {
		known[d.TokenIndex] = true
	}
	for _, b := range binds {
		known[b.ReferenceIndex] = true
	}
	var out []*Token
	for _, tok := range toks {
		if tokens.IsReferenceKind(tok.Kind) && !known[tok.TokenIndex] {
			out = append(out, tok)
		}
	}
	return out, nil
}

// Summary counts files, tokens, declarations, bindings and markers across
// the whole index.
func (q *QueryBuilder) Summary() (*Summary, error) {
	return q.store.Summary()
}

func (q *QueryBuilder) tokensByIndex(fileID int64) (map[int]*Token, error) {
	toks, err := q.store.TokensByFile(fileID)
	if err != nil {
		return nil, err
	}
	byIndex := make(map[int]*Token, len(toks))
	for _, tok := range toks {
		byIndex[tok.TokenIndex] = tok
	}
	return byIndex, nil
}
