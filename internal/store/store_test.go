package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

// insertTestFile is a helper that inserts a file and returns it with ID set.
func insertTestFile(t *testing.T, s *Store, path, lang string) *File {
	t.Helper()
	f := &File{Path: path, Language: lang, Hash: "abc123", LineCount: 10, LastIndexed: time.Now().Truncate(time.Second)}
	id, err := s.InsertFile(f)
	require.NoError(t, err)
	require.Positive(t, id)
	return f
}

// insertTestToken inserts a single-line token at (line, col).
func insertTestToken(t *testing.T, ds DataStore, fileID int64, index int, text string, line, col int, scope []int) *Token {
	t.Helper()
	tok := &Token{
		FileID:     fileID,
		TokenIndex: index,
		Ordinal:    index,
		Text:       text,
		Kind:       "identifier",
		StartLine:  line, StartCol: col,
		EndLine: line, EndCol: col + len(text) - 1,
		ScopePath: scope,
	}
	_, err := ds.InsertToken(tok)
	require.NoError(t, err)
	return tok
}

// seedGraph writes `int x = 1; x = x;` shaped rows: a declaration of x, two
// references bound to it, and a call marker pair on the last token.
func seedGraph(t *testing.T, ds DataStore, fileID int64) (decl, ref1, ref2 *Token) {
	t.Helper()
	decl = insertTestToken(t, ds, fileID, 0, "x", 1, 8, []int{1, 2})
	ref1 = insertTestToken(t, ds, fileID, 1, "x", 2, 4, []int{1, 2})
	ref2 = insertTestToken(t, ds, fileID, 2, "x", 2, 8, []int{1, 2})

	_, err := ds.InsertDeclaration(&Declaration{FileID: fileID, TokenID: decl.ID, Name: "x", TypeExpr: "int"})
	require.NoError(t, err)
	for _, ref := range []*Token{ref1, ref2} {
		_, err := ds.InsertBinding(&Binding{FileID: fileID, ReferenceTokenID: ref.ID, DeclarationTokenID: decl.ID})
		require.NoError(t, err)
	}
	_, err = ds.InsertCallMarker(&CallMarker{FileID: fileID, TokenID: ref2.ID, Kind: MarkerTarget})
	require.NoError(t, err)
	_, err = ds.InsertCallMarker(&CallMarker{FileID: fileID, TokenID: ref2.ID, Kind: MarkerCall})
	require.NoError(t, err)
	return decl, ref1, ref2
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	expectedTables := []string{
		"files", "tokens", "declarations", "bindings", "call_markers", "metadata",
	}

	for _, table := range expectedTables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	// Running migrate again should not error.
	require.NoError(t, s.Migrate())
}

func TestMigrate_WALMode(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	var mode string
	err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode)
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)
}

func TestMetadata_RoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	v, err := s.GetMetadata("fingerprint")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetMetadata("fingerprint", "a1"))
	require.NoError(t, s.SetMetadata("fingerprint", "b2"))
	v, err = s.GetMetadata("fingerprint")
	require.NoError(t, err)
	assert.Equal(t, "b2", v)
}

// =============================================================================
// File operations
// =============================================================================

func TestFile_InsertAndRetrieve(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	now := time.Now().Truncate(time.Second)
	f := &File{Path: "/src/list.c", Language: "c", Hash: "9f2c", LineCount: 42, LastIndexed: now}
	id, err := s.InsertFile(f)
	require.NoError(t, err)
	require.Positive(t, id)

	got, err := s.FileByPath("/src/list.c")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "/src/list.c", got.Path)
	assert.Equal(t, "c", got.Language)
	assert.Equal(t, "9f2c", got.Hash)
	assert.Equal(t, 42, got.LineCount)
}

func TestFile_ByPathNotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	got, err := s.FileByPath("/nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFile_ByLanguage(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestFile(t, s, "/b.c", "c")
	insertTestFile(t, s, "/a.c", "c")
	insertTestFile(t, s, "/Main.java", "java")

	cFiles, err := s.FilesByLanguage("c")
	require.NoError(t, err)
	require.Len(t, cFiles, 2)
	assert.Equal(t, "/a.c", cFiles[0].Path)

	all, err := s.Files()
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// =============================================================================
// Graph operations
// =============================================================================

func TestToken_InsertAndQuery(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/list.c", "c")

	insertTestToken(t, s, f.ID, 1, "total", 3, 4, []int{1, 2})
	insertTestToken(t, s, f.ID, 0, "int", 0, 0, nil)

	toks, err := s.TokensByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, toks, 2)
	assert.Equal(t, "int", toks[0].Text, "ordered by ordinal")
	assert.Equal(t, []int{}, toks[0].ScopePath)
	assert.Equal(t, []int{1, 2}, toks[1].ScopePath)

	tok, err := s.TokenByIndex(f.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.Equal(t, "total", tok.Text)

	missing, err := s.TokenByIndex(f.ID, 99)
	require.NoError(t, err)
	assert.Nil(t, missing)

	byText, err := s.TokensByText("total")
	require.NoError(t, err)
	assert.Len(t, byText, 1)
}

func TestToken_At(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/list.c", "c")
	insertTestToken(t, s, f.ID, 0, "total", 3, 4, nil)

	for _, col := range []int{4, 6, 8} {
		tok, err := s.TokenAt(f.ID, 3, col)
		require.NoError(t, err)
		require.NotNil(t, tok, "col %d", col)
		assert.Equal(t, "total", tok.Text)
	}

	for _, pos := range [][2]int{{3, 3}, {3, 9}, {2, 5}} {
		tok, err := s.TokenAt(f.ID, pos[0], pos[1])
		require.NoError(t, err)
		assert.Nil(t, tok, "position %v", pos)
	}
}

func TestGraph_DeclarationsBindingsMarkers(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/x.c", "c")
	decl, ref1, ref2 := seedGraph(t, s, f.ID)

	decls, err := s.DeclarationsByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, decls, 1)
	assert.Equal(t, "x", decls[0].Name)
	assert.Equal(t, "int", decls[0].TypeExpr)
	assert.Equal(t, decl.TokenIndex, decls[0].TokenIndex)

	at, err := s.DeclarationAt(f.ID, decl.TokenIndex)
	require.NoError(t, err)
	require.NotNil(t, at)
	none, err := s.DeclarationAt(f.ID, ref1.TokenIndex)
	require.NoError(t, err)
	assert.Nil(t, none)

	binds, err := s.BindingsByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, binds, 2)
	assert.Equal(t, ref1.TokenIndex, binds[0].ReferenceIndex)
	assert.Equal(t, decl.TokenIndex, binds[0].DeclarationIndex)

	b, err := s.BindingForReference(f.ID, ref2.TokenIndex)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, decl.ID, b.DeclarationTokenID)

	unbound, err := s.BindingForReference(f.ID, decl.TokenIndex)
	require.NoError(t, err)
	assert.Nil(t, unbound)

	refs, err := s.BindingsToDeclaration(f.ID, decl.TokenIndex)
	require.NoError(t, err)
	assert.Len(t, refs, 2)

	calls, err := s.CallMarkersByFile(f.ID, MarkerCall)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, ref2.TokenIndex, calls[0].TokenIndex)

	all, err := s.CallMarkersByFile(f.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSummary(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/x.c", "c")
	insertTestFile(t, s, "/Y.java", "java")
	seedGraph(t, s, f.ID)

	sum, err := s.Summary()
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Files)
	assert.Equal(t, 3, sum.Tokens)
	assert.Equal(t, 1, sum.Declarations)
	assert.Equal(t, 2, sum.Bindings)
	assert.Equal(t, 1, sum.MethodTargets)
	assert.Equal(t, 1, sum.Calls)
	assert.Equal(t, map[string]int{"c": 1, "java": 1}, sum.Languages)
}

func TestDeleteFileData(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/x.c", "c")
	other := insertTestFile(t, s, "/y.c", "c")
	seedGraph(t, s, f.ID)
	seedGraph(t, s, other.ID)

	require.NoError(t, s.DeleteFileData(f.ID))

	toks, _ := s.TokensByFile(f.ID)
	assert.Empty(t, toks)
	decls, _ := s.DeclarationsByFile(f.ID)
	assert.Empty(t, decls)
	binds, _ := s.BindingsByFile(f.ID)
	assert.Empty(t, binds)
	markers, _ := s.CallMarkersByFile(f.ID, "")
	assert.Empty(t, markers)

	got, err := s.FileByPath("/x.c")
	require.NoError(t, err)
	assert.NotNil(t, got, "file row survives DeleteFileData")

	otherToks, _ := s.TokensByFile(other.ID)
	assert.Len(t, otherToks, 3, "other files are untouched")
}

func TestDeleteFile(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/x.c", "c")
	seedGraph(t, s, f.ID)

	require.NoError(t, s.DeleteFile(f.ID))
	got, err := s.FileByPath("/x.c")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// =============================================================================
// Hashing
// =============================================================================

func TestContentHash(t *testing.T) {
	t.Parallel()
	a := ContentHash([]byte("int x;\n"))
	assert.Equal(t, a, ContentHash([]byte("int x;\n")))
	assert.NotEqual(t, a, ContentHash([]byte("int y;\n")))
	assert.NotEmpty(t, a)
}

func TestFingerprintHash_OrderIndependent(t *testing.T) {
	t.Parallel()
	a := FingerprintHash(map[string]string{"c": "v1", "java": "v2"})
	b := FingerprintHash(map[string]string{"java": "v2", "c": "v1"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, FingerprintHash(map[string]string{"c": "v1"}))
}
