package tokengraph

import (
	"github.com/jward/tokengraph/internal/store"
	"github.com/jward/tokengraph/internal/tokens"
)

// Public type aliases for the internal types used by the Engine and
// QueryBuilder APIs.

type Store = store.Store
type File = store.File
type Token = store.Token
type Declaration = store.Declaration
type Binding = store.Binding
type CallMarker = store.CallMarker
type Summary = store.Summary

type Graph = tokens.Graph
type TokenIndex = tokens.TokenIndex
type ScopeID = tokens.ScopeID
type ScopePath = tokens.ScopePath
type Span = tokens.Span
