package store

import (
	"database/sql"
	"encoding/json"
)

// marshalScopePath converts a scope path to JSON text for storage.
func marshalScopePath(path []int) string {
	if len(path) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(path)
	return string(b)
}

// UnmarshalScopePath converts JSON text back to a scope path.
// Exported for use by QueryBuilder.
func UnmarshalScopePath(s string) []int {
	return unmarshalScopePath(s)
}

// unmarshalScopePath never returns nil so file-level tokens serialize as [].
func unmarshalScopePath(s string) []int {
	path := []int{}
	if s == "" || s == "null" {
		return path
	}
	_ = json.Unmarshal([]byte(s), &path)
	return path
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
