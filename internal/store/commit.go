package store

import (
	"database/sql"
	"fmt"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// CommitBatch inserts all buffered data from a BatchedStore into SQLite
// within a single transaction. Fake (negative) token IDs are remapped to
// real IDs, and every row referencing a token is rewritten using the
// fakeToReal mapping.
//
// Insert order respects FK dependencies:
//  1. Tokens (depend on file_id only, which is already real)
//  2. Declarations (depend on token_id)
//  3. Bindings (depend on reference and declaration token ids)
//  4. CallMarkers (depend on token_id)
func (s *Store) CommitBatch(batch *BatchedStore) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	fakeToReal := make(map[int64]int64, len(batch.Tokens))
	remap := func(id int64, what string) (int64, error) {
		if id >= 0 {
			return id, nil
		}
		realID, ok := fakeToReal[id]
		if !ok {
			return 0, fmt.Errorf("%s references token id=%d not in fakeToReal map (have %d tokens)", what, id, len(batch.Tokens))
		}
		return realID, nil
	}

	// 1. Tokens
	for _, tok := range batch.Tokens {
		fakeID := tok.ID
		realID, err := insertTokenTx(tx, &tok)
		if err != nil {
			return fmt.Errorf("commit batch: token %d: %w", tok.TokenIndex, err)
		}
		fakeToReal[fakeID] = realID
	}

	// 2. Declarations
	for _, d := range batch.Declarations {
		if d.TokenID, err = remap(d.TokenID, "declaration "+d.Name); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
		if _, err := insertDeclarationTx(tx, &d); err != nil {
			return fmt.Errorf("commit batch: declaration %q: %w", d.Name, err)
		}
	}

	// 3. Bindings
	for _, b := range batch.Bindings {
		if b.ReferenceTokenID, err = remap(b.ReferenceTokenID, "binding reference"); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
		if b.DeclarationTokenID, err = remap(b.DeclarationTokenID, "binding declaration"); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
		if _, err := insertBindingTx(tx, &b); err != nil {
			return fmt.Errorf("commit batch: binding: %w", err)
		}
	}

	// 4. CallMarkers
	for _, m := range batch.CallMarkers {
		if m.TokenID, err = remap(m.TokenID, "call marker"); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
		if _, err := insertCallMarkerTx(tx, &m); err != nil {
			return fmt.Errorf("commit batch: call marker: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: commit: %w", err)
	}
	return nil
}

func lastID(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertTokenTx(ex execer, tok *Token) (int64, error) {
	id, err := lastID(ex.Exec(
		`INSERT INTO tokens (file_id, token_index, ordinal, text, kind,
			start_line, start_col, end_line, end_col, scope_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tok.FileID, tok.TokenIndex, tok.Ordinal, tok.Text, tok.Kind,
		tok.StartLine, tok.StartCol, tok.EndLine, tok.EndCol, marshalScopePath(tok.ScopePath),
	))
	if err != nil {
		return 0, fmt.Errorf("insert token: %w", err)
	}
	tok.ID = id
	return id, nil
}

func insertDeclarationTx(ex execer, d *Declaration) (int64, error) {
	id, err := lastID(ex.Exec(
		"INSERT INTO declarations (file_id, token_id, name, type_expr) VALUES (?, ?, ?, ?)",
		d.FileID, d.TokenID, d.Name, nullString(d.TypeExpr),
	))
	if err != nil {
		return 0, fmt.Errorf("insert declaration: %w", err)
	}
	d.ID = id
	return id, nil
}

func insertBindingTx(ex execer, b *Binding) (int64, error) {
	id, err := lastID(ex.Exec(
		"INSERT INTO bindings (file_id, reference_token_id, declaration_token_id) VALUES (?, ?, ?)",
		b.FileID, b.ReferenceTokenID, b.DeclarationTokenID,
	))
	if err != nil {
		return 0, fmt.Errorf("insert binding: %w", err)
	}
	b.ID = id
	return id, nil
}

func insertCallMarkerTx(ex execer, m *CallMarker) (int64, error) {
	id, err := lastID(ex.Exec(
		"INSERT INTO call_markers (file_id, token_id, kind) VALUES (?, ?, ?)",
		m.FileID, m.TokenID, m.Kind,
	))
	if err != nil {
		return 0, fmt.Errorf("insert call marker: %w", err)
	}
	m.ID = id
	return id, nil
}
