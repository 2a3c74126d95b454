package store

import "sync"

// BatchedStore buffers graph inserts in memory using fake (negative) IDs.
// It implements DataStore so a worker can persist a graph without knowing
// whether it is hitting SQLite or an in-memory buffer.
//
// Thread safety: the mutex protects fake ID allocation and slice appends.
// Read queries merge buffered rows with rows already in the underlying
// Store, which is safe for concurrent reads.
type BatchedStore struct {
	store *Store // for read passthrough
	mu    sync.Mutex

	Tokens       []Token
	Declarations []Declaration
	Bindings     []Binding
	CallMarkers  []CallMarker

	nextFakeID int64 // starts at -1, decrements
}

// Compile-time check: *BatchedStore satisfies DataStore.
var _ DataStore = (*BatchedStore)(nil)

// NewBatchedStore creates a BatchedStore backed by the given Store for read queries.
func NewBatchedStore(s *Store) *BatchedStore {
	return &BatchedStore{
		store:      s,
		nextFakeID: -1,
	}
}

func (b *BatchedStore) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

func (b *BatchedStore) InsertToken(tok *Token) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	tok.ID = fakeID
	b.Tokens = append(b.Tokens, *tok)
	return fakeID, nil
}

func (b *BatchedStore) InsertDeclaration(decl *Declaration) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	decl.ID = fakeID
	b.Declarations = append(b.Declarations, *decl)
	return fakeID, nil
}

func (b *BatchedStore) InsertBinding(bind *Binding) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	bind.ID = fakeID
	b.Bindings = append(b.Bindings, *bind)
	return fakeID, nil
}

func (b *BatchedStore) InsertCallMarker(m *CallMarker) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	m.ID = fakeID
	b.CallMarkers = append(b.CallMarkers, *m)
	return fakeID, nil
}

// TokensByFile returns tokens for a file, merging any buffered (not yet
// committed) tokens with those already in the database.
func (b *BatchedStore) TokensByFile(fileID int64) ([]*Token, error) {
	toks, err := b.store.TokensByFile(fileID)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Tokens {
		if b.Tokens[i].FileID == fileID {
			toks = append(toks, &b.Tokens[i])
		}
	}
	return toks, nil
}

// DeclarationsByFile merges buffered declarations with committed ones.
func (b *BatchedStore) DeclarationsByFile(fileID int64) ([]*Declaration, error) {
	decls, err := b.store.DeclarationsByFile(fileID)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Declarations {
		if b.Declarations[i].FileID == fileID {
			decls = append(decls, &b.Declarations[i])
		}
	}
	return decls, nil
}

// Len returns the number of buffered rows.
func (b *BatchedStore) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Tokens) + len(b.Declarations) + len(b.Bindings) + len(b.CallMarkers)
}
