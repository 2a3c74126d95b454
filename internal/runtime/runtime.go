package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/tokengraph/internal/store"
)

// Runtime embeds a Risor VM and provides tree-sitter host functions,
// token-graph analysis and read-only Store access to report scripts.
type Runtime struct {
	store      *store.Store
	scriptsDir string
	fsys       fs.FS
	trees      *treeRegistry
	logger     *slog.Logger
	nodeBudget int
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS loads scripts, and resolves their imports, from fsys
// instead of scriptsDir.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithLogger routes the scripts' log object to l.
func WithLogger(l *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = l
	}
}

// WithNodeBudget caps the syntax nodes analyze and analyze_src may visit.
func WithNodeBudget(n int) RuntimeOption {
	return func(r *Runtime) {
		r.nodeBudget = n
	}
}

// NewRuntime returns a Runtime reading from s, which may be nil for scripts
// that only parse and analyze.
func NewRuntime(s *store.Store, scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		store:      s,
		scriptsDir: scriptsDir,
		trees:      newTreeRegistry(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunScript runs the script at scriptPath. extraGlobals are added to, and
// may shadow, the built-in globals.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) error {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return err
	}
	return r.eval(ctx, src, scriptPath, extraGlobals)
}

// RunSource runs inline Risor source with the same globals as RunScript.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) error {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) error {
	globals := r.buildGlobals(extraGlobals)
	opts := make([]risor.Option, 0, len(globals)+1)
	names := make([]string, 0, len(globals))
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
		names = append(names, name)
	}
	if imp := r.importerFor(names); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	if _, err := risor.Eval(ctx, source, opts...); err != nil {
		return fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return nil
}

// importerFor resolves `import` statements from wherever scripts are loaded.
// Imported modules are compiled against globalNames so they see the same
// host functions. Nil when the Runtime has no script source.
func (r *Runtime) importerFor(globalNames []string) importer.Importer {
	exts := []string{".risor"}
	switch {
	case r.fsys != nil:
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  exts,
		})
	case r.scriptsDir != "":
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  exts,
		})
	}
	return nil
}

// LoadScript returns the source of a .risor file. With an fs.FS the path is
// taken relative to the FS root; otherwise relative paths resolve against
// scriptsDir.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		name := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, name)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", name, err)
		}
		return string(data), nil
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(r.scriptsDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", path, err)
	}
	return string(data), nil
}

// ReportScriptPath returns the path to a named report script.
func ReportScriptPath(name string) string {
	return filepath.Join("report", name+".risor")
}

// buildGlobals returns every global a script sees.
func (r *Runtime) buildGlobals(extra map[string]any) map[string]any {
	globals := map[string]any{
		"parse":       makeParseFn(r.trees),
		"parse_src":   makeParseSrcFn(r.trees),
		"node_text":   makeNodeTextFn(r.trees),
		"node_child":  makeNodeChildFn(),
		"query":       makeQueryFn(r.trees),
		"analyze":     makeAnalyzeFn(r.nodeBudget),
		"analyze_src": makeAnalyzeSrcFn(r.nodeBudget),
		"languages":   makeLanguagesFn(),
		"log":         mustProxy(&scriptLog{logger: r.logger}),
	}

	// Store bridges are read-only; scripts report on an index, they do not
	// build one. Absent when the Runtime has no Store.
	if r.store != nil {
		globals["files"] = makeFilesFn(r.store)
		globals["files_by_language"] = makeFilesByLanguageFn(r.store)
		globals["file_by_path"] = makeFileByPathFn(r.store)
		globals["tokens_by_file"] = makeTokensByFileFn(r.store)
		globals["declarations_by_file"] = makeDeclarationsByFileFn(r.store)
		globals["bindings_by_file"] = makeBindingsByFileFn(r.store)
		globals["calls_by_file"] = makeCallsByFileFn(r.store)
		globals["summary"] = makeSummaryFn(r.store)
		globals["db_query"] = makeDBQueryFn(r.store)
	}

	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: cannot proxy %T: %v", v, err))
	}
	return p
}
