package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/risor-io/risor/object"

	"github.com/jward/tokengraph/internal/store"
)

// Store bridge functions. Each converts store rows into Risor maps with
// primitive values so scripts never hold Go struct pointers.

func makeFilesFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("files", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("files", 0, len(args))
		}
		files, err := s.Files()
		if err != nil {
			return object.Errorf("files: %v", err)
		}
		return filesToList(files)
	})
}

func makeFilesByLanguageFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("files_by_language", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("files_by_language", 1, len(args))
		}
		lang, err := toString(args[0])
		if err != nil {
			return object.Errorf("files_by_language: %v", err)
		}

		files, queryErr := s.FilesByLanguage(lang)
		if queryErr != nil {
			return object.Errorf("files_by_language: %v", queryErr)
		}
		return filesToList(files)
	})
}

// file_by_path(path) → map or nil
func makeFileByPathFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("file_by_path", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("file_by_path", 1, len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return object.Errorf("file_by_path: %v", err)
		}
		f, queryErr := s.FileByPath(path)
		if queryErr != nil {
			return object.Errorf("file_by_path: %v", queryErr)
		}
		if f == nil {
			return object.Nil
		}
		return fileToMap(f)
	})
}

func makeTokensByFileFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("tokens_by_file", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("tokens_by_file", 1, len(args))
		}
		fileID, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("tokens_by_file: %v", err)
		}

		toks, queryErr := s.TokensByFile(fileID)
		if queryErr != nil {
			return object.Errorf("tokens_by_file: %v", queryErr)
		}

		results := make([]object.Object, 0, len(toks))
		for _, t := range toks {
			results = append(results, object.NewMap(map[string]object.Object{
				"id":         object.NewInt(t.ID),
				"index":      object.NewInt(int64(t.TokenIndex)),
				"text":       object.NewString(t.Text),
				"kind":       object.NewString(t.Kind),
				"start_line": object.NewInt(int64(t.StartLine)),
				"start_col":  object.NewInt(int64(t.StartCol)),
				"end_line":   object.NewInt(int64(t.EndLine)),
				"end_col":    object.NewInt(int64(t.EndCol)),
				"scope":      intsToList(t.ScopePath),
			}))
		}
		return object.NewList(results)
	})
}

func makeDeclarationsByFileFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("declarations_by_file", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("declarations_by_file", 1, len(args))
		}
		fileID, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("declarations_by_file: %v", err)
		}

		decls, queryErr := s.DeclarationsByFile(fileID)
		if queryErr != nil {
			return object.Errorf("declarations_by_file: %v", queryErr)
		}

		results := make([]object.Object, 0, len(decls))
		for _, d := range decls {
			results = append(results, object.NewMap(map[string]object.Object{
				"id":    object.NewInt(d.ID),
				"token": object.NewInt(int64(d.TokenIndex)),
				"name":  object.NewString(d.Name),
				"type":  object.NewString(d.TypeExpr),
			}))
		}
		return object.NewList(results)
	})
}

func makeBindingsByFileFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("bindings_by_file", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("bindings_by_file", 1, len(args))
		}
		fileID, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("bindings_by_file: %v", err)
		}

		binds, queryErr := s.BindingsByFile(fileID)
		if queryErr != nil {
			return object.Errorf("bindings_by_file: %v", queryErr)
		}

		results := make([]object.Object, 0, len(binds))
		for _, b := range binds {
			results = append(results, object.NewMap(map[string]object.Object{
				"reference":   object.NewInt(int64(b.ReferenceIndex)),
				"declaration": object.NewInt(int64(b.DeclarationIndex)),
			}))
		}
		return object.NewList(results)
	})
}

// calls_by_file(file_id, [kind]) → list of token indexes. kind is "call"
// (default) or "target".
func makeCallsByFileFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("calls_by_file", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 || len(args) > 2 {
			return object.Errorf("calls_by_file: expected 1 or 2 arguments, got %d", len(args))
		}
		fileID, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("calls_by_file: %v", err)
		}
		kind := store.MarkerCall
		if len(args) == 2 {
			if kind, err = toString(args[1]); err != nil {
				return object.Errorf("calls_by_file: %v", err)
			}
			if kind != store.MarkerCall && kind != store.MarkerTarget {
				return object.Errorf("calls_by_file: kind must be %q or %q, got %q",
					store.MarkerCall, store.MarkerTarget, kind)
			}
		}

		markers, queryErr := s.CallMarkersByFile(fileID, kind)
		if queryErr != nil {
			return object.Errorf("calls_by_file: %v", queryErr)
		}

		results := make([]object.Object, 0, len(markers))
		for _, m := range markers {
			results = append(results, object.NewInt(int64(m.TokenIndex)))
		}
		return object.NewList(results)
	})
}

func makeSummaryFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("summary", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("summary", 0, len(args))
		}
		sum, err := s.Summary()
		if err != nil {
			return object.Errorf("summary: %v", err)
		}
		langs := make(map[string]object.Object, len(sum.Languages))
		for name, n := range sum.Languages {
			langs[name] = object.NewInt(int64(n))
		}
		return object.NewMap(map[string]object.Object{
			"files":          object.NewInt(int64(sum.Files)),
			"tokens":         object.NewInt(int64(sum.Tokens)),
			"declarations":   object.NewInt(int64(sum.Declarations)),
			"bindings":       object.NewInt(int64(sum.Bindings)),
			"method_targets": object.NewInt(int64(sum.MethodTargets)),
			"calls":          object.NewInt(int64(sum.Calls)),
			"languages":      object.NewMap(langs),
		})
	})
}

func makeDBQueryFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("db_query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 {
			return object.Errorf("db_query: expected at least 1 argument (sql), got %d", len(args))
		}
		sqlStr, err := toString(args[0])
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}

		// Only allow SELECT statements.
		trimmed := strings.TrimSpace(strings.ToUpper(sqlStr))
		if !strings.HasPrefix(trimmed, "SELECT") {
			return object.Errorf("db_query: only SELECT queries are allowed")
		}

		// Convert remaining args to query parameters.
		var queryArgs []any
		for _, arg := range args[1:] {
			switch v := arg.(type) {
			case *object.Int:
				queryArgs = append(queryArgs, v.Value())
			case *object.Float:
				queryArgs = append(queryArgs, v.Value())
			case *object.String:
				queryArgs = append(queryArgs, v.Value())
			case *object.Bool:
				queryArgs = append(queryArgs, v.Value())
			case *object.NilType:
				queryArgs = append(queryArgs, nil)
			default:
				queryArgs = append(queryArgs, fmt.Sprintf("%v", arg))
			}
		}

		rows, queryErr := s.DB().QueryContext(ctx, sqlStr, queryArgs...)
		if queryErr != nil {
			return object.Errorf("db_query: %v", queryErr)
		}
		defer rows.Close()

		cols, colErr := rows.Columns()
		if colErr != nil {
			return object.Errorf("db_query: columns: %v", colErr)
		}

		var results []object.Object
		for rows.Next() {
			values := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return object.Errorf("db_query: scan: %v", err)
			}
			row := make(map[string]object.Object, len(cols))
			for i, col := range cols {
				row[col] = sqlValueToObject(values[i])
			}
			results = append(results, object.NewMap(row))
		}
		if err := rows.Err(); err != nil {
			return object.Errorf("db_query: rows: %v", err)
		}
		if results == nil {
			results = []object.Object{}
		}
		return object.NewList(results)
	})
}

// sqlValueToObject converts a database value to a Risor object.
func sqlValueToObject(v any) object.Object {
	if v == nil {
		return object.Nil
	}
	switch val := v.(type) {
	case int64:
		return object.NewInt(val)
	case float64:
		return object.NewFloat(val)
	case string:
		return object.NewString(val)
	case bool:
		return object.NewBool(val)
	case []byte:
		return object.NewString(string(val))
	default:
		return object.NewString(fmt.Sprintf("%v", val))
	}
}

func fileToMap(f *store.File) object.Object {
	return object.NewMap(map[string]object.Object{
		"id":         object.NewInt(f.ID),
		"path":       object.NewString(f.Path),
		"language":   object.NewString(f.Language),
		"hash":       object.NewString(f.Hash),
		"line_count": object.NewInt(int64(f.LineCount)),
	})
}

func filesToList(files []*store.File) object.Object {
	results := make([]object.Object, 0, len(files))
	for _, f := range files {
		results = append(results, fileToMap(f))
	}
	return object.NewList(results)
}

func intsToList(vals []int) object.Object {
	items := make([]object.Object, len(vals))
	for i, v := range vals {
		items[i] = object.NewInt(int64(v))
	}
	return object.NewList(items)
}

// --- Argument helpers ---

func toInt64(obj object.Object) (int64, error) {
	if i, ok := obj.(*object.Int); ok {
		return i.Value(), nil
	}
	if f, ok := obj.(*object.Float); ok {
		return int64(f.Value()), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}
