package tokengraph

import (
	"fmt"

	"github.com/jward/tokengraph/internal/store"
	"github.com/jward/tokengraph/internal/tokens"
)

// persistGraph writes g for fileID through ds. Rows are written in
// dependency order: tokens, declarations, bindings, call markers. ds may be
// the Store itself or a BatchedStore awaiting CommitBatch.
func persistGraph(ds store.DataStore, fileID int64, g *Graph) error {
	ids := make(map[tokens.TokenIndex]int64, len(g.Tokens))
	for ord, idx := range g.Tokens {
		span := g.Span[idx]
		tok := &store.Token{
			FileID:     fileID,
			TokenIndex: int(idx),
			Ordinal:    ord,
			Text:       g.Text[idx],
			Kind:       g.Kind[idx],
			StartLine:  span.StartLine,
			StartCol:   span.StartCol,
			EndLine:    span.EndLine,
			EndCol:     span.EndCol,
			ScopePath:  scopeInts(g.ScopePath(idx)),
		}
		id, err := ds.InsertToken(tok)
		if err != nil {
			return fmt.Errorf("insert token %d: %w", idx, err)
		}
		ids[idx] = id
	}

	tokenID := func(idx tokens.TokenIndex) (int64, error) {
		id, ok := ids[idx]
		if !ok {
			return 0, fmt.Errorf("token %d was not collected", idx)
		}
		return id, nil
	}

	for _, idx := range g.Declarations.Indexes() {
		id, err := tokenID(idx)
		if err != nil {
			return fmt.Errorf("declaration: %w", err)
		}
		name, _ := g.Declarations.Name(idx)
		typ, _ := g.DeclaredType(idx)
		if _, err := ds.InsertDeclaration(&store.Declaration{
			FileID:   fileID,
			TokenID:  id,
			Name:     name,
			TypeExpr: typ,
		}); err != nil {
			return fmt.Errorf("insert declaration %d: %w", idx, err)
		}
	}

	for _, ref := range g.BoundReferences() {
		decl, _ := g.Binding(ref)
		refID, err := tokenID(ref)
		if err != nil {
			return fmt.Errorf("binding reference: %w", err)
		}
		declID, err := tokenID(decl)
		if err != nil {
			return fmt.Errorf("binding declaration: %w", err)
		}
		if _, err := ds.InsertBinding(&store.Binding{
			FileID:             fileID,
			ReferenceTokenID:   refID,
			DeclarationTokenID: declID,
		}); err != nil {
			return fmt.Errorf("insert binding %d: %w", ref, err)
		}
	}

	markers := []struct {
		kind string
		set  *tokens.TokenSet
	}{
		{store.MarkerTarget, g.MethodTargets},
		{store.MarkerCall, g.Calls},
	}
	for _, m := range markers {
		for _, idx := range m.set.Slice() {
			id, err := tokenID(idx)
			if err != nil {
				return fmt.Errorf("%s marker: %w", m.kind, err)
			}
			if _, err := ds.InsertCallMarker(&store.CallMarker{FileID: fileID, TokenID: id, Kind: m.kind}); err != nil {
				return fmt.Errorf("insert %s marker %d: %w", m.kind, idx, err)
			}
		}
	}
	return nil
}

func scopeInts(path tokens.ScopePath) []int {
	out := make([]int, len(path))
	for i, id := range path {
		out[i] = int(id)
	}
	return out
}
