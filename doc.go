// Package tokengraph builds scope-aware token graphs from tree-sitter
// syntax trees for C, C++, Java, and C#.
//
// # Token graph
//
// A single pre-order pass over a file's syntax tree produces:
//
//   - every leaf token in document order, with its text, kind, span and
//     the stack of lexical scopes enclosing it;
//   - the tokens that introduce a declaration, with the declared type when
//     one is syntactically visible;
//   - for each reference, the declaration it resolves to under lexical
//     scoping with shadowing;
//   - which tokens sit in callee position, and which of those are actually
//     invoked.
//
// Resolution is strictly intra-file. Use [Analyze] for a one-off graph
// without a database.
//
// # Usage
//
// Create an Engine, index a tree, and query:
//
//	e, err := tokengraph.New(".tokengraph/index.db")
//	if err != nil { ... }
//	defer e.Close()
//
//	err = e.IndexDirectory(ctx, "path/to/project")
//
//	q := e.Query()
//	locs, err := q.DefinitionAt("src/list.c", 10, 5)
//
// # Incremental indexing
//
// [Engine.IndexFiles] skips files whose content hash is unchanged. The
// database also records a fingerprint of the language policies; when it no
// longer matches, every file is rebuilt.
//
// # Scripts
//
// Reports are Risor scripts with read-only access to the index. The bundled
// ones live under scripts/report and run through [Engine.Report]. See the
// internal/runtime package for the globals exposed to scripts.
package tokengraph
