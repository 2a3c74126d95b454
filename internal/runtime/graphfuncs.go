package runtime

import (
	"context"
	"os"

	"github.com/risor-io/risor/object"

	"github.com/jward/tokengraph/internal/lang"
	"github.com/jward/tokengraph/internal/tokens"
)

// makeAnalyzeFn creates "analyze", which runs the token pass over a file on
// disk without touching the Store.
//
// analyze(path, [language]) → map
func makeAnalyzeFn(nodeBudget int) *object.Builtin {
	return object.NewBuiltin("analyze", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 || len(args) > 2 {
			return object.Errorf("analyze: expected 1 or 2 arguments, got %d", len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return object.Errorf("analyze: %v", err)
		}
		langName, errObj := languageArg("analyze", path, args[1:])
		if errObj != nil {
			return errObj
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return object.Errorf("analyze: reading %s: %v", path, err)
		}
		return analyzeSource(ctx, "analyze", src, langName, nodeBudget)
	})
}

// makeAnalyzeSrcFn creates "analyze_src".
//
// analyze_src(source, language) → map
func makeAnalyzeSrcFn(nodeBudget int) *object.Builtin {
	return object.NewBuiltin("analyze_src", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("analyze_src", 2, len(args))
		}
		src, err := toString(args[0])
		if err != nil {
			return object.Errorf("analyze_src: source %v", err)
		}
		langName, err := toString(args[1])
		if err != nil {
			return object.Errorf("analyze_src: language %v", err)
		}
		return analyzeSource(ctx, "analyze_src", []byte(src), langName, nodeBudget)
	})
}

// languages() → list of supported language names
func makeLanguagesFn() *object.Builtin {
	return object.NewBuiltin("languages", func(ctx context.Context, args ...object.Object) object.Object {
		names := lang.Names()
		items := make([]object.Object, len(names))
		for i, n := range names {
			items[i] = object.NewString(n)
		}
		return object.NewList(items)
	})
}

func analyzeSource(ctx context.Context, fn string, src []byte, langName string, nodeBudget int) object.Object {
	tree, l, err := lang.Parse(ctx, src, langName)
	if err != nil {
		return object.Errorf("%s: %v", fn, err)
	}
	defer tree.Close()

	var opts []tokens.Option
	if nodeBudget > 0 {
		opts = append(opts, tokens.WithNodeBudget(nodeBudget))
	}
	g, err := tokens.Collect(tree.RootNode(), src, l.Policy, opts...)
	if err != nil {
		return object.Errorf("%s: %v", fn, err)
	}
	return graphToMap(g)
}

// graphToMap flattens a Graph into the shape scripts consume. Token maps
// carry their own binding and marker flags so scripts rarely need to join.
func graphToMap(g *tokens.Graph) object.Object {
	toks := make([]object.Object, 0, len(g.Tokens))
	for _, idx := range g.Tokens {
		span := g.Span[idx]
		m := map[string]object.Object{
			"index":       object.NewInt(int64(idx)),
			"text":        object.NewString(g.Text[idx]),
			"kind":        object.NewString(g.Kind[idx]),
			"line":        object.NewInt(int64(g.Line[idx])),
			"start_col":   object.NewInt(int64(span.StartCol)),
			"end_line":    object.NewInt(int64(span.EndLine)),
			"end_col":     object.NewInt(int64(span.EndCol)),
			"scope":       scopeToList(g.ScopePath(idx)),
			"declaration": object.NewBool(g.Declarations.Has(idx)),
			"target":      object.NewBool(g.MethodTargets.Has(idx)),
			"call":        object.NewBool(g.Calls.Has(idx)),
			"binding":     object.Nil,
		}
		if typ, ok := g.DeclaredType(idx); ok {
			m["type"] = object.NewString(typ)
		}
		if decl, ok := g.Binding(idx); ok {
			m["binding"] = object.NewInt(int64(decl))
		}
		toks = append(toks, object.NewMap(m))
	}

	bound := g.BoundReferences()
	binds := make([]object.Object, 0, len(bound))
	for _, ref := range bound {
		decl, _ := g.Binding(ref)
		binds = append(binds, object.NewMap(map[string]object.Object{
			"reference":   object.NewInt(int64(ref)),
			"declaration": object.NewInt(int64(decl)),
		}))
	}

	return object.NewMap(map[string]object.Object{
		"language":       object.NewString(g.Language),
		"tokens":         object.NewList(toks),
		"declarations":   indexesToList(g.Declarations.Indexes()),
		"method_targets": indexesToList(g.MethodTargets.Slice()),
		"calls":          indexesToList(g.Calls.Slice()),
		"unresolved":     indexesToList(g.Unresolved()),
		"bindings":       object.NewList(binds),
	})
}

func indexesToList(idxs []tokens.TokenIndex) object.Object {
	items := make([]object.Object, len(idxs))
	for i, idx := range idxs {
		items[i] = object.NewInt(int64(idx))
	}
	return object.NewList(items)
}

func scopeToList(path tokens.ScopePath) object.Object {
	items := make([]object.Object, len(path))
	for i, id := range path {
		items[i] = object.NewInt(int64(id))
	}
	return object.NewList(items)
}
