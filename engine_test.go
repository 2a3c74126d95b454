package tokengraph

import (
	"context"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jward/tokengraph/internal/observability"
	"github.com/jward/tokengraph/internal/store"
)

const listSource = `struct Node {
    int value;
    struct Node *next;
};

int sum(struct Node *head) {
    int total = 0;
    while (head) {
        total = total + head->value;
        head = head->next;
    }
    return total;
}
`

const javaSource = `class Greeter {
    String greet(String name) {
        String msg = name;
        return msg;
    }
}
`

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	e, err := New(dbPath, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func writeFile(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestNew_CreatesStoreAndRuntime(t *testing.T) {
	e := newTestEngine(t)
	require.NotNil(t, e.store)
	require.NotNil(t, e.runtime)
	require.NotNil(t, e.Store())
	require.NotNil(t, e.Query())

	assert.True(t, e.useParallel)
	assert.Equal(t, goruntime.NumCPU(), e.workers)
	assert.True(t, e.skipDirs["vendor"])
}

func TestNew_CreatesDatabaseDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "index.db")
	e, err := New(dbPath)
	require.NoError(t, err)
	defer e.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestNew_Options(t *testing.T) {
	e := newTestEngine(t,
		WithLanguages("c", "java"),
		WithParallel(false),
		WithWorkers(3),
		WithNodeBudget(1000),
		WithSkipDirs("third_party"),
		WithForce(true),
	)
	assert.True(t, e.languages["c"])
	assert.True(t, e.languages["java"])
	assert.False(t, e.languages["cpp"])
	assert.False(t, e.useParallel)
	assert.Equal(t, 3, e.workers)
	assert.Equal(t, 1000, e.nodeBudget)
	assert.True(t, e.skipDirs["third_party"])
	assert.True(t, e.force)
}

func TestIndexFiles_SkipsUnsupportedExtensions(t *testing.T) {
	e := newTestEngine(t)
	path := writeFile(t, t.TempDir(), "readme.txt", "hello")

	require.NoError(t, e.IndexFiles(context.Background(), []string{path}))
	f, err := e.Store().FileByPath(path)
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestIndexFiles_LanguageFilter(t *testing.T) {
	e := newTestEngine(t, WithLanguages("java"))
	dir := t.TempDir()
	cPath := writeFile(t, dir, "list.c", listSource)
	javaPath := writeFile(t, dir, "Greeter.java", javaSource)

	require.NoError(t, e.IndexFiles(context.Background(), []string{cPath, javaPath}))

	sum, err := e.Query().Summary()
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Files)
	assert.Equal(t, map[string]int{"java": 1}, sum.Languages)
}

func TestIndexFiles_PersistsGraph(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		name := "serial"
		if parallel {
			name = "parallel"
		}
		t.Run(name, func(t *testing.T) {
			e := newTestEngine(t, WithParallel(parallel))
			path := writeFile(t, t.TempDir(), "list.c", listSource)
			require.NoError(t, e.IndexFiles(context.Background(), []string{path}))

			g, err := Analyze(context.Background(), []byte(listSource), "c")
			require.NoError(t, err)

			f, err := e.Store().FileByPath(path)
			require.NoError(t, err)
			require.NotNil(t, f)
			assert.Equal(t, "c", f.Language)
			assert.Equal(t, store.ContentHash([]byte(listSource)), f.Hash)
			assert.Equal(t, strings.Count(listSource, "\n")+1, f.LineCount)

			toks, err := e.Store().TokensByFile(f.ID)
			require.NoError(t, err)
			require.Len(t, toks, len(g.Tokens))
			for i, tok := range toks {
				idx := g.Tokens[i]
				assert.Equal(t, int(idx), tok.TokenIndex)
				assert.Equal(t, g.Text[idx], tok.Text)
				assert.Equal(t, scopeInts(g.ScopePath(idx)), tok.ScopePath)
			}

			decls, err := e.Store().DeclarationsByFile(f.ID)
			require.NoError(t, err)
			assert.Len(t, decls, g.Declarations.Len())

			binds, err := e.Store().BindingsByFile(f.ID)
			require.NoError(t, err)
			require.Len(t, binds, len(g.Symbols.Bindings))
			for _, b := range binds {
				assert.Equal(t, g.Symbols.Bindings[TokenIndex(b.ReferenceIndex)], TokenIndex(b.DeclarationIndex))
			}

			calls, err := e.Store().CallMarkersByFile(f.ID, store.MarkerCall)
			require.NoError(t, err)
			assert.Len(t, calls, g.Calls.Len())
			targets, err := e.Store().CallMarkersByFile(f.ID, store.MarkerTarget)
			require.NoError(t, err)
			assert.Len(t, targets, g.MethodTargets.Len())
		})
	}
}

func TestIndexFiles_SerialAndParallelAgree(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeFile(t, dir, "list.c", listSource),
		writeFile(t, dir, "Greeter.java", javaSource),
		writeFile(t, dir, "empty.c", ""),
	}

	serial := newTestEngine(t, WithParallel(false))
	require.NoError(t, serial.IndexFiles(context.Background(), paths))
	parallel := newTestEngine(t, WithParallel(true), WithWorkers(2))
	require.NoError(t, parallel.IndexFiles(context.Background(), paths))

	want, err := serial.Query().Summary()
	require.NoError(t, err)
	got, err := parallel.Query().Summary()
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 3, got.Files)
}

func TestIndexFiles_ParallelDoesNotLeakGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.c", "b.c", "c.c", "d.c"} {
		paths = append(paths, writeFile(t, dir, name, listSource))
	}

	e, err := New(filepath.Join(dir, "leak.db"), WithWorkers(2))
	require.NoError(t, err)
	defer e.Close()
	require.NoError(t, e.IndexFiles(context.Background(), paths))
}

func TestIndexFiles_SkipsUnchanged(t *testing.T) {
	e := newTestEngine(t)
	path := writeFile(t, t.TempDir(), "list.c", listSource)
	ctx := context.Background()

	require.NoError(t, e.IndexFiles(ctx, []string{path}))
	first, err := e.Store().FileByPath(path)
	require.NoError(t, err)
	require.NotNil(t, first)

	before := testutil.ToFloat64(observability.FilesSkippedTotal.WithLabelValues("unchanged"))
	require.NoError(t, e.IndexFiles(ctx, []string{path}))
	second, err := e.Store().FileByPath(path)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "unchanged file keeps its record")
	assert.Equal(t, before+1, testutil.ToFloat64(observability.FilesSkippedTotal.WithLabelValues("unchanged")))
}

func TestIndexFiles_ReindexesChangedContent(t *testing.T) {
	e := newTestEngine(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "main.c", "int a;\n")
	ctx := context.Background()

	require.NoError(t, e.IndexFiles(ctx, []string{path}))
	writeFile(t, dir, "main.c", "int a;\nint b;\n")
	require.NoError(t, e.IndexFiles(ctx, []string{path}))

	decls, err := e.Query().Declarations(path)
	require.NoError(t, err)
	require.Len(t, decls, 2)
	assert.Equal(t, "a", decls[0].Name)
	assert.Equal(t, "b", decls[1].Name)

	g, err := Analyze(context.Background(), []byte("int a;\nint b;\n"), "c")
	require.NoError(t, err)
	sum, err := e.Query().Summary()
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Files)
	assert.Equal(t, len(g.Tokens), sum.Tokens, "stale tokens are removed")
}

func TestIndexFiles_ForceRebuilds(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "index.db")
	path := writeFile(t, dir, "list.c", listSource)
	ctx := context.Background()

	e, err := New(dbPath)
	require.NoError(t, err)
	require.NoError(t, e.IndexFiles(ctx, []string{path}))
	first, err := e.Store().FileByPath(path)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	e, err = New(dbPath, WithForce(true))
	require.NoError(t, err)
	defer e.Close()
	require.NoError(t, e.IndexFiles(ctx, []string{path}))
	second, err := e.Store().FileByPath(path)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestFingerprint(t *testing.T) {
	e := newTestEngine(t)
	path := writeFile(t, t.TempDir(), "list.c", listSource)
	ctx := context.Background()

	assert.True(t, e.FingerprintChanged(), "fresh database has no fingerprint")
	require.NoError(t, e.IndexFiles(ctx, []string{path}))
	assert.False(t, e.FingerprintChanged())
	assert.Equal(t, policyFingerprint(), policyFingerprint(), "fingerprint is deterministic")

	// A database built under other policies is rebuilt on the next run.
	first, err := e.Store().FileByPath(path)
	require.NoError(t, err)
	require.NoError(t, e.Store().SetMetadata(fingerprintKey, "stale"))
	assert.True(t, e.FingerprintChanged())
	require.NoError(t, e.IndexFiles(ctx, []string{path}))
	second, err := e.Store().FileByPath(path)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.False(t, e.FingerprintChanged())
}

func TestIndexFiles_FailedFileIsRetried(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		e := newTestEngine(t, WithParallel(parallel), WithNodeBudget(5))
		path := writeFile(t, t.TempDir(), "list.c", listSource)

		err := e.IndexFiles(context.Background(), []string{path})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "node budget")

		f, err := e.Store().FileByPath(path)
		require.NoError(t, err)
		assert.Nil(t, f, "failed file leaves no record (parallel=%v)", parallel)
	}
}

func TestIndexFiles_ContinuesAfterError(t *testing.T) {
	e := newTestEngine(t, WithParallel(false))
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.c")
	good := writeFile(t, dir, "good.c", "int a;\n")

	err := e.IndexFiles(context.Background(), []string{missing, good})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 error(s)")

	f, err := e.Store().FileByPath(good)
	require.NoError(t, err)
	assert.NotNil(t, f)
}

func TestIndexDirectory_WalkSkipsHiddenAndVendored(t *testing.T) {
	e := newTestEngine(t)
	dir := t.TempDir()
	writeFile(t, dir, "src/list.c", listSource)
	writeFile(t, dir, "src/Greeter.java", javaSource)
	writeFile(t, dir, "vendor/dep.c", "int dep;\n")
	writeFile(t, dir, ".cache/gen.c", "int gen;\n")
	writeFile(t, dir, "notes.md", "# notes\n")

	paths, err := e.walkListFiles(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "src", "list.c"),
		filepath.Join(dir, "src", "Greeter.java"),
	}, paths)

	require.NoError(t, e.IndexDirectory(context.Background(), dir))
	sum, err := e.Query().Summary()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, sum.Files, 2)
}

func TestIndexFiles_Cancelled(t *testing.T) {
	e := newTestEngine(t, WithParallel(false))
	path := writeFile(t, t.TempDir(), "list.c", listSource)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := e.IndexFiles(ctx, []string{path})
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, e.FingerprintChanged(), "cancelled run does not record a fingerprint")
}

func TestAnalyze(t *testing.T) {
	t.Parallel()
	g, err := Analyze(context.Background(), []byte(javaSource), "java")
	require.NoError(t, err)
	assert.Equal(t, "java", g.Language)

	msgs := g.Find("msg")
	require.Len(t, msgs, 2)
	decl, ok := g.Binding(msgs[1])
	require.True(t, ok)
	assert.Equal(t, msgs[0], decl)

	counts := countsOf(g)
	assert.Equal(t, len(g.Tokens), counts.Tokens)
	assert.Equal(t, len(g.Symbols.Bindings), counts.Bindings)
}

func TestAnalyze_UnsupportedLanguage(t *testing.T) {
	t.Parallel()
	_, err := Analyze(context.Background(), []byte("x"), "cobol")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported language")
}

func TestReport(t *testing.T) {
	e := newTestEngine(t)
	path := writeFile(t, t.TempDir(), "main.c", "void run(void) {\n    missing = helper(1);\n}\n")
	require.NoError(t, e.IndexFiles(context.Background(), []string{path}))

	rows, err := e.Report(context.Background(), "unresolved")
	require.NoError(t, err)
	var names []any
	for _, row := range rows {
		names = append(names, row["text"])
	}
	assert.Equal(t, []any{"missing", "helper"}, names)

	rows, err = e.Report(context.Background(), "calls")
	require.NoError(t, err)
	var helper []map[string]any
	for _, row := range rows {
		if row["text"] == "helper" {
			helper = append(helper, row)
		}
	}
	require.Len(t, helper, 2)
	assert.Equal(t, "call", helper[0]["kind"])
	assert.Equal(t, "target", helper[1]["kind"])
	assert.Equal(t, path, helper[0]["path"])

	_, err = e.Report(context.Background(), "nope")
	assert.Error(t, err)
}

func TestRunSource_SeesIndex(t *testing.T) {
	e := newTestEngine(t)
	path := writeFile(t, t.TempDir(), "list.c", listSource)
	require.NoError(t, e.IndexFiles(context.Background(), []string{path}))

	script := `
f := file_by_path(target)
assert(f != nil, "file indexed")
assert(len(tokens_by_file(f["id"])) > 0, "tokens persisted")
`
	require.NoError(t, e.RunSource(context.Background(), script, map[string]any{"target": path}))
}

func TestWithScriptsDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "report/count.risor", `emit({"files": len(files())})`)
	e := newTestEngine(t, WithScriptsDir(dir))

	rows, err := e.Report(context.Background(), "count")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(0), rows[0]["files"])
}
