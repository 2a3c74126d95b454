package store

import (
	"database/sql"
	"fmt"
)

// --- File operations ---

func (s *Store) InsertFile(f *File) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO files (path, language, hash, line_count, last_indexed) VALUES (?, ?, ?, ?, ?)",
		f.Path, f.Language, f.Hash, f.LineCount, f.LastIndexed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return id, nil
}

const fileCols = "id, path, language, hash, line_count, last_indexed"

func (s *Store) FileByPath(path string) (*File, error) {
	f := &File{}
	err := s.db.QueryRow(
		"SELECT "+fileCols+" FROM files WHERE path = ?", path,
	).Scan(&f.ID, &f.Path, &f.Language, &f.Hash, &f.LineCount, &f.LastIndexed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

func (s *Store) queryFiles(query string, args ...any) ([]*File, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f := &File{}
		if err := rows.Scan(&f.ID, &f.Path, &f.Language, &f.Hash, &f.LineCount, &f.LastIndexed); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// Files returns every indexed file ordered by path.
func (s *Store) Files() ([]*File, error) {
	return s.queryFiles("SELECT " + fileCols + " FROM files ORDER BY path")
}

func (s *Store) FilesByLanguage(language string) ([]*File, error) {
	return s.queryFiles("SELECT "+fileCols+" FROM files WHERE language = ? ORDER BY path", language)
}

// --- Token operations ---

func (s *Store) InsertToken(tok *Token) (int64, error) {
	return insertTokenTx(s.db, tok)
}

// TokenCols is the column list for token queries, exported for use by QueryBuilder.
const TokenCols = `id, file_id, token_index, ordinal, text, kind,
	start_line, start_col, end_line, end_col, scope_path`

// ScanTokenRow scans a single row selected with TokenCols.
func ScanTokenRow(scanner interface{ Scan(...any) error }) (*Token, error) {
	tok := &Token{}
	var scope string
	err := scanner.Scan(
		&tok.ID, &tok.FileID, &tok.TokenIndex, &tok.Ordinal, &tok.Text, &tok.Kind,
		&tok.StartLine, &tok.StartCol, &tok.EndLine, &tok.EndCol, &scope,
	)
	if err != nil {
		return nil, err
	}
	tok.ScopePath = unmarshalScopePath(scope)
	return tok, nil
}

func (s *Store) queryTokens(query string, args ...any) ([]*Token, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var toks []*Token
	for rows.Next() {
		tok, err := ScanTokenRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		toks = append(toks, tok)
	}
	return toks, rows.Err()
}

// TokensByFile returns a file's tokens in document order.
func (s *Store) TokensByFile(fileID int64) ([]*Token, error) {
	return s.queryTokens("SELECT "+TokenCols+" FROM tokens WHERE file_id = ? ORDER BY ordinal", fileID)
}

// TokensByText returns tokens across all files whose display text is text.
func (s *Store) TokensByText(text string) ([]*Token, error) {
	return s.queryTokens("SELECT "+TokenCols+" FROM tokens WHERE text = ? ORDER BY file_id, ordinal", text)
}

// TokenByIndex returns the token with the given per-file index, or nil.
func (s *Store) TokenByIndex(fileID int64, index int) (*Token, error) {
	toks, err := s.queryTokens(
		"SELECT "+TokenCols+" FROM tokens WHERE file_id = ? AND token_index = ?", fileID, index,
	)
	if err != nil || len(toks) == 0 {
		return nil, err
	}
	return toks[0], nil
}

// TokenAt returns the token covering the 0-based (line, col) position, or
// nil. The end column is inclusive.
func (s *Store) TokenAt(fileID int64, line, col int) (*Token, error) {
	toks, err := s.queryTokens(
		`SELECT `+TokenCols+` FROM tokens
		 WHERE file_id = ?
		   AND (start_line < ? OR (start_line = ? AND start_col <= ?))
		   AND (end_line > ? OR (end_line = ? AND end_col >= ?))
		 ORDER BY ordinal LIMIT 1`,
		fileID, line, line, col, line, line, col,
	)
	if err != nil || len(toks) == 0 {
		return nil, err
	}
	return toks[0], nil
}

// --- Declaration operations ---

func (s *Store) InsertDeclaration(decl *Declaration) (int64, error) {
	return insertDeclarationTx(s.db, decl)
}

func (s *Store) queryDeclarations(query string, args ...any) ([]*Declaration, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var decls []*Declaration
	for rows.Next() {
		d := &Declaration{}
		var typeExpr sql.NullString
		if err := rows.Scan(&d.ID, &d.FileID, &d.TokenID, &d.TokenIndex, &d.Name, &typeExpr); err != nil {
			return nil, fmt.Errorf("scan declaration: %w", err)
		}
		d.TypeExpr = typeExpr.String
		decls = append(decls, d)
	}
	return decls, rows.Err()
}

const declarationSelect = `SELECT d.id, d.file_id, d.token_id, t.token_index, d.name, d.type_expr
	FROM declarations d JOIN tokens t ON t.id = d.token_id`

// DeclarationsByFile returns a file's declarations in encounter order.
func (s *Store) DeclarationsByFile(fileID int64) ([]*Declaration, error) {
	return s.queryDeclarations(declarationSelect+" WHERE d.file_id = ? ORDER BY d.id", fileID)
}

// DeclarationsByName returns declarations of name across all files.
func (s *Store) DeclarationsByName(name string) ([]*Declaration, error) {
	return s.queryDeclarations(declarationSelect+" WHERE d.name = ? ORDER BY d.file_id, d.id", name)
}

// DeclarationAt returns the declaration at a per-file token index, or nil.
func (s *Store) DeclarationAt(fileID int64, index int) (*Declaration, error) {
	decls, err := s.queryDeclarations(
		declarationSelect+" WHERE d.file_id = ? AND t.token_index = ?", fileID, index,
	)
	if err != nil || len(decls) == 0 {
		return nil, err
	}
	return decls[0], nil
}

// --- Binding operations ---

func (s *Store) InsertBinding(b *Binding) (int64, error) {
	return insertBindingTx(s.db, b)
}

const bindingSelect = `SELECT b.id, b.file_id, b.reference_token_id, b.declaration_token_id,
	r.token_index, d.token_index
	FROM bindings b
	JOIN tokens r ON r.id = b.reference_token_id
	JOIN tokens d ON d.id = b.declaration_token_id`

func (s *Store) queryBindings(query string, args ...any) ([]*Binding, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Binding
	for rows.Next() {
		b := &Binding{}
		if err := rows.Scan(&b.ID, &b.FileID, &b.ReferenceTokenID, &b.DeclarationTokenID,
			&b.ReferenceIndex, &b.DeclarationIndex); err != nil {
			return nil, fmt.Errorf("scan binding: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// BindingsByFile returns a file's bindings ordered by reference index.
func (s *Store) BindingsByFile(fileID int64) ([]*Binding, error) {
	return s.queryBindings(bindingSelect+" WHERE b.file_id = ? ORDER BY r.token_index", fileID)
}

// BindingForReference returns the binding of a reference token, or nil
// when the reference is unresolved.
func (s *Store) BindingForReference(fileID int64, refIndex int) (*Binding, error) {
	out, err := s.queryBindings(bindingSelect+" WHERE b.file_id = ? AND r.token_index = ?", fileID, refIndex)
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return out[0], nil
}

// BindingsToDeclaration returns the bindings targeting a declaration token.
func (s *Store) BindingsToDeclaration(fileID int64, declIndex int) ([]*Binding, error) {
	return s.queryBindings(
		bindingSelect+" WHERE b.file_id = ? AND d.token_index = ? ORDER BY r.ordinal", fileID, declIndex,
	)
}

// --- Call marker operations ---

func (s *Store) InsertCallMarker(m *CallMarker) (int64, error) {
	return insertCallMarkerTx(s.db, m)
}

// CallMarkersByFile returns a file's markers of the given kind in document
// order. An empty kind returns both kinds.
func (s *Store) CallMarkersByFile(fileID int64, kind string) ([]*CallMarker, error) {
	query := `SELECT m.id, m.file_id, m.token_id, t.token_index, m.kind
		FROM call_markers m JOIN tokens t ON t.id = m.token_id
		WHERE m.file_id = ?`
	args := []any{fileID}
	if kind != "" {
		query += " AND m.kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY t.ordinal, m.kind"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("call markers: %w", err)
	}
	defer rows.Close()
	var out []*CallMarker
	for rows.Next() {
		m := &CallMarker{}
		if err := rows.Scan(&m.ID, &m.FileID, &m.TokenID, &m.TokenIndex, &m.Kind); err != nil {
			return nil, fmt.Errorf("scan call marker: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// --- Aggregates ---

// Summary counts rows across the database.
func (s *Store) Summary() (*Summary, error) {
	sum := &Summary{Languages: make(map[string]int)}
	for _, c := range []struct {
		dst   *int
		query string
	}{
		{&sum.Files, "SELECT COUNT(*) FROM files"},
		{&sum.Tokens, "SELECT COUNT(*) FROM tokens"},
		{&sum.Declarations, "SELECT COUNT(*) FROM declarations"},
		{&sum.Bindings, "SELECT COUNT(*) FROM bindings"},
		{&sum.MethodTargets, "SELECT COUNT(*) FROM call_markers WHERE kind = 'target'"},
		{&sum.Calls, "SELECT COUNT(*) FROM call_markers WHERE kind = 'call'"},
	} {
		if err := s.db.QueryRow(c.query).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("summary: %w", err)
		}
	}

	rows, err := s.db.Query("SELECT language, COUNT(*) FROM files GROUP BY language")
	if err != nil {
		return nil, fmt.Errorf("summary languages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var lang string
		var n int
		if err := rows.Scan(&lang, &n); err != nil {
			return nil, fmt.Errorf("scan language count: %w", err)
		}
		sum.Languages[lang] = n
	}
	return sum, rows.Err()
}
