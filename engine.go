package tokengraph

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"sort"
	"strings"
	"time"

	"github.com/jward/tokengraph/internal/lang"
	"github.com/jward/tokengraph/internal/observability"
	"github.com/jward/tokengraph/internal/runtime"
	"github.com/jward/tokengraph/internal/store"
	"github.com/jward/tokengraph/scripts"
)

// fingerprintKey is the metadata key holding the policy fingerprint the
// database was built with.
const fingerprintKey = "policy_fingerprint"

// graphFormat is bumped whenever persisted graphs change shape or meaning
// without a policy table changing.
const graphFormat = "1"

// Engine orchestrates indexing: file discovery, change detection, the token
// pass, persistence, and query access.
type Engine struct {
	store      *store.Store
	runtime    *runtime.Runtime
	scriptsDir string
	scriptsFS  fs.FS
	languages  map[string]bool // nil means all languages
	skipDirs   map[string]bool
	logger     *slog.Logger

	useParallel bool
	workers     int
	nodeBudget  int
	force       bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLanguages restricts which languages the Engine will process.
func WithLanguages(languages ...string) Option {
	return func(e *Engine) {
		e.languages = make(map[string]bool, len(languages))
		for _, l := range languages {
			e.languages[l] = true
		}
	}
}

// WithParallel controls parallel indexing. When true (default), IndexFiles
// analyzes files on a worker pool and commits each file's batch serially.
// Set to false for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// WithWorkers caps the parallel worker pool. Values below 1 mean
// runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithNodeBudget caps the syntax nodes visited per file. Files over budget
// fail to index; 0 means unlimited.
func WithNodeBudget(n int) Option {
	return func(e *Engine) {
		e.nodeBudget = n
	}
}

// WithLogger sets the logger used for indexing and script output. Engines
// log nothing by default.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithForce rebuilds every file regardless of its content hash.
func WithForce(force bool) Option {
	return func(e *Engine) {
		e.force = force
	}
}

// WithSkipDirs adds directory names the filesystem walk never descends into.
func WithSkipDirs(names ...string) Option {
	return func(e *Engine) {
		for _, n := range names {
			e.skipDirs[n] = true
		}
	}
}

// WithScriptsFS loads Risor scripts from fsys. This is the default, with
// the bundled report scripts.
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.scriptsFS = fsys
	}
}

// WithScriptsDir loads Risor scripts from a directory on disk instead of the
// bundled filesystem.
func WithScriptsDir(dir string) Option {
	return func(e *Engine) {
		e.scriptsDir = dir
		e.scriptsFS = nil
	}
}

// New creates an Engine backed by a SQLite database at dbPath.
func New(dbPath string, opts ...Option) (*Engine, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("tokengraph: create db dir: %w", err)
		}
	}
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("tokengraph: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("tokengraph: migrate: %w", err)
	}

	e := &Engine{
		store:       s,
		scriptsFS:   scripts.FS,
		useParallel: true,
		logger:      slog.New(slog.DiscardHandler),
		skipDirs: map[string]bool{
			"node_modules": true,
			"vendor":       true,
			"build":        true,
			"bin":          true,
			"obj":          true,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = goruntime.NumCPU()
	}

	rtOpts := []runtime.RuntimeOption{
		runtime.WithLogger(e.logger),
		runtime.WithNodeBudget(e.nodeBudget),
	}
	if e.scriptsFS != nil {
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(e.scriptsFS))
	}
	e.runtime = runtime.NewRuntime(s, e.scriptsDir, rtOpts...)

	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Query returns a new QueryBuilder wrapping the Store.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{store: e.store}
}

// policyFingerprint hashes every language's grammar and declaration tables
// so that a policy change invalidates graphs built under the old one.
func policyFingerprint() string {
	parts := map[string]string{"format": graphFormat}
	for _, name := range lang.Names() {
		l, _ := lang.Lookup(name)
		g := l.Policy.Grammar()
		parts["lang:"+name] = strings.Join([]string{
			"scope=" + sortedKinds(g.ScopeKinds),
			"wrap=" + sortedKinds(g.CallWrapperKinds),
			"atomic=" + sortedKinds(g.AtomicKinds),
			"comment=" + sortedKinds(g.CommentKinds),
			"member=" + sortedKinds(g.MemberAccessKinds) + "/" + g.MemberFieldName,
			"args=" + sortedKinds(g.ArgumentListKinds),
			"call=" + sortedKinds(g.CallKinds),
		}, ";")
		for table, kinds := range l.DeclTables() {
			parts["decl:"+name+":"+table] = kinds
		}
	}
	return store.FingerprintHash(parts)
}

func sortedKinds(s map[string]bool) string {
	kinds := make([]string, 0, len(s))
	for k := range s {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return strings.Join(kinds, ",")
}

// FingerprintChanged reports whether the database was built under different
// language policies, or never completed an index run. When true, the next
// IndexFiles rebuilds every file.
func (e *Engine) FingerprintChanged() bool {
	stored, err := e.store.GetMetadata(fingerprintKey)
	if err != nil || stored == "" {
		return true
	}
	return stored != policyFingerprint()
}

// storeFingerprint records the current policy fingerprint.
func (e *Engine) storeFingerprint() {
	if err := e.store.SetMetadata(fingerprintKey, policyFingerprint()); err != nil {
		e.logger.Warn("store fingerprint", "error", err)
	}
}

// workItem holds one file's analysis input and output.
type workItem struct {
	path    string
	lang    string
	fileID  int64
	content []byte
	batch   *store.BatchedStore
	counts  observability.GraphCounts
}

// IndexFiles indexes the given file paths. When WithParallel is enabled,
// uses a worker pool for concurrent analysis with batched SQLite writes.
// Otherwise falls back to the serial path.
//
// For each file:
//  1. Detect language from extension
//  2. Skip unsupported or filtered-out languages
//  3. Skip unchanged files (same content hash)
//  4. Delete the stale graph and file record, insert a fresh record
//  5. Parse, run the token pass, and persist the graph
//
// Errors on individual files are logged and skipped; processing continues.
// The returned error reports how many files failed.
func (e *Engine) IndexFiles(ctx context.Context, paths []string) error {
	rebuild := e.force || e.FingerprintChanged()
	var err error
	if e.useParallel {
		err = e.indexFilesParallel(ctx, paths, rebuild)
	} else {
		err = e.indexFilesSerial(ctx, paths, rebuild)
	}
	if ctx.Err() == nil {
		e.storeFingerprint()
	}
	return err
}

func (e *Engine) indexFilesSerial(ctx context.Context, paths []string, rebuild bool) error {
	var errs []error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.indexFile(ctx, path, rebuild); err != nil {
			observability.IndexErrorsTotal.Inc()
			e.logger.Warn("index file", "path", path, "error", err)
			errs = append(errs, fmt.Errorf("index %s: %w", path, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("indexing had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

// indexFile runs the whole pipeline for one file, writing straight to the
// Store.
func (e *Engine) indexFile(ctx context.Context, path string, rebuild bool) error {
	item, skip, err := e.prepareFile(path, rebuild)
	if err != nil || skip {
		return err
	}

	start := time.Now()
	g, err := analyze(ctx, item.content, item.lang, e.nodeBudget)
	if err != nil {
		e.discardFile(item)
		return err
	}
	if err := persistGraph(e.store, item.fileID, g); err != nil {
		e.discardFile(item)
		return fmt.Errorf("persist: %w", err)
	}
	item.counts = countsOf(g)
	observability.ObserveGraph(item.lang, item.counts, time.Since(start))
	e.logIndexed(item)
	return nil
}

// prepareFile detects the language, checks the content hash, drops any
// stale graph and inserts a fresh file record. skip=true means the file is
// unsupported, filtered out, or unchanged.
func (e *Engine) prepareFile(path string, rebuild bool) (workItem, bool, error) {
	language, ok := lang.ForFile(path)
	if !ok {
		observability.FilesSkippedTotal.WithLabelValues("unsupported").Inc()
		return workItem{}, true, nil
	}
	if e.languages != nil && !e.languages[language] {
		observability.FilesSkippedTotal.WithLabelValues("filtered").Inc()
		return workItem{}, true, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return workItem{}, false, fmt.Errorf("read file: %w", err)
	}
	hash := store.ContentHash(content)

	existing, err := e.store.FileByPath(path)
	if err != nil {
		return workItem{}, false, fmt.Errorf("lookup file: %w", err)
	}
	if existing != nil && existing.Hash == hash && !rebuild {
		observability.FilesSkippedTotal.WithLabelValues("unchanged").Inc()
		return workItem{}, true, nil
	}
	if existing != nil {
		if err := e.store.DeleteFile(existing.ID); err != nil {
			return workItem{}, false, fmt.Errorf("delete stale graph: %w", err)
		}
	}

	fileID, err := e.store.InsertFile(&store.File{
		Path:        path,
		Language:    language,
		Hash:        hash,
		LineCount:   bytes.Count(content, []byte{'\n'}) + 1,
		LastIndexed: time.Now(),
	})
	if err != nil {
		return workItem{}, false, fmt.Errorf("insert file: %w", err)
	}
	return workItem{path: path, lang: language, fileID: fileID, content: content}, false, nil
}

// discardFile removes the record of a file whose graph could not be built,
// so the next run retries it instead of trusting its hash.
func (e *Engine) discardFile(item workItem) {
	if err := e.store.DeleteFile(item.fileID); err != nil {
		e.logger.Warn("discard file", "path", item.path, "error", err)
	}
}

func (e *Engine) logIndexed(item workItem) {
	e.logger.Debug("indexed",
		"path", item.path,
		"language", item.lang,
		"tokens", item.counts.Tokens,
		"declarations", item.counts.Declarations,
		"bindings", item.counts.Bindings,
		"unresolved", item.counts.Unresolved,
		"calls", item.counts.Calls,
	)
}

// IndexDirectory walks root and indexes all files with supported extensions.
// If root is inside a git repository, uses git ls-files to respect .gitignore.
// Falls back to a filesystem walk (skipping hidden directories and the
// configured skip list) if git is unavailable. Records of files under root
// that no longer exist are removed first.
func (e *Engine) IndexDirectory(ctx context.Context, root string) error {
	// Listed and stored paths are absolute; pruning compares against them.
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", root, err)
	}
	root = abs
	paths, err := e.gitListFiles(ctx, root)
	if err != nil {
		e.logger.Debug("git ls-files unavailable, walking", "root", root, "error", err)
		paths, err = e.walkListFiles(root)
		if err != nil {
			return err
		}
	}
	if err := e.pruneMissing(root, paths); err != nil {
		return err
	}
	return e.IndexFiles(ctx, paths)
}

// pruneMissing drops the records of files under root that are no longer
// part of the listing, typically because they were deleted from disk.
func (e *Engine) pruneMissing(root string, paths []string) error {
	files, err := e.store.Files()
	if err != nil {
		return fmt.Errorf("list indexed files: %w", err)
	}
	listed := make(map[string]bool, len(paths))
	for _, p := range paths {
		listed[p] = true
	}
	prefix := filepath.Clean(root)
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	for _, f := range files {
		if !strings.HasPrefix(f.Path, prefix) || listed[f.Path] {
			continue
		}
		if err := e.store.DeleteFile(f.ID); err != nil {
			return fmt.Errorf("prune %s: %w", f.Path, err)
		}
		e.logger.Debug("pruned", "path", f.Path)
	}
	return nil
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) files under root, filtered to supported languages.
func (e *Engine) gitListFiles(ctx context.Context, root string) ([]string, error) {
	// --cached: tracked files, --others: untracked files,
	// --exclude-standard: respect .gitignore, .git/info/exclude, global excludes.
	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		absPath := filepath.Join(root, line)
		if _, ok := lang.ForFile(absPath); ok {
			paths = append(paths, absPath)
		}
	}
	return paths, nil
}

// walkListFiles discovers files by walking the filesystem, used as a fallback
// when git is not available.
func (e *Engine) walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || e.skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := lang.ForFile(path); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}

// RunScript executes a Risor script against the index. Paths are relative
// to the scripts filesystem or directory.
func (e *Engine) RunScript(ctx context.Context, path string, extras map[string]any) error {
	return e.runtime.RunScript(ctx, path, extras)
}

// RunSource executes inline Risor source against the index.
func (e *Engine) RunSource(ctx context.Context, source string, extras map[string]any) error {
	return e.runtime.RunSource(ctx, source, extras)
}

// Report runs the named report script (report/<name>.risor) and returns the
// rows it emitted.
func (e *Engine) Report(ctx context.Context, name string) ([]map[string]any, error) {
	rows := runtime.NewRowCollector()
	if err := e.runtime.RunScript(ctx, runtime.ReportScriptPath(name), map[string]any{
		"emit": rows.Builtin(),
	}); err != nil {
		return nil, fmt.Errorf("report %s: %w", name, err)
	}
	return rows.Rows(), nil
}
