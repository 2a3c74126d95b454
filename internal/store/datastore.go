package store

// DataStore is the interface for graph-persistence writes. Both Store
// (direct SQLite) and BatchedStore (in-memory buffering for parallel
// indexing) implement this interface.
type DataStore interface {
	// Inserts return the assigned ID. Declarations, bindings and markers
	// reference token IDs returned by InsertToken.
	InsertToken(tok *Token) (int64, error)
	InsertDeclaration(decl *Declaration) (int64, error)
	InsertBinding(b *Binding) (int64, error)
	InsertCallMarker(m *CallMarker) (int64, error)

	// Reads used by scripts that inspect a file while it is being indexed.
	TokensByFile(fileID int64) ([]*Token, error)
	DeclarationsByFile(fileID int64) ([]*Declaration, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
