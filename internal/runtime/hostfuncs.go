package runtime

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"unsafe"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/tokengraph/internal/lang"
)

// parsedTree is what a script-visible node needs from its tree: the bytes it
// was parsed from and the grammar that parsed it.
type parsedTree struct {
	src     []byte
	grammar *sitter.Language
}

// treeRegistry maps the root node of every tree a script parsed to its
// parsedTree. go-tree-sitter nodes carry no back pointer to their tree, so
// lookups climb Parent() to the root first.
type treeRegistry struct {
	mu    sync.RWMutex
	trees map[uintptr]parsedTree
}

func newTreeRegistry() *treeRegistry {
	return &treeRegistry{trees: make(map[uintptr]parsedTree)}
}

func rootKey(node *sitter.Node) uintptr {
	for p := node.Parent(); p != nil; p = node.Parent() {
		node = p
	}
	return uintptr(unsafe.Pointer(node))
}

func (r *treeRegistry) register(tree *sitter.Tree, src []byte, grammar *sitter.Language) {
	key := uintptr(unsafe.Pointer(tree.RootNode()))
	r.mu.Lock()
	r.trees[key] = parsedTree{src: src, grammar: grammar}
	r.mu.Unlock()
}

func (r *treeRegistry) lookup(node *sitter.Node) (parsedTree, bool) {
	key := rootKey(node)
	r.mu.RLock()
	pt, ok := r.trees[key]
	r.mu.RUnlock()
	return pt, ok
}

// stringArg unwraps a Risor string argument.
func stringArg(fn, what string, arg object.Object) (string, *object.Error) {
	s, ok := arg.(*object.String)
	if !ok {
		return "", object.Errorf("%s: %s must be a string, got %s", fn, what, arg.Type())
	}
	return s.Value(), nil
}

// nodeArg unwraps a proxied *sitter.Node argument.
func nodeArg(fn string, arg object.Object) (*sitter.Node, *object.Error) {
	p, ok := arg.(*object.Proxy)
	if !ok {
		return nil, object.Errorf("%s: want a node, got %s", fn, arg.Type())
	}
	node, ok := p.Interface().(*sitter.Node)
	if !ok {
		return nil, object.Errorf("%s: want a node, got %T", fn, p.Interface())
	}
	return node, nil
}

// proxyNode wraps a node for scripts; a nil node becomes Risor nil.
func proxyNode(fn string, node *sitter.Node) object.Object {
	if node == nil {
		return object.Nil
	}
	p, err := object.NewProxy(node)
	if err != nil {
		return object.Errorf("%s: %v", fn, err)
	}
	return p
}

// languageArg returns the explicit language argument if present, otherwise
// the language registered for path's extension.
func languageArg(fn, path string, rest []object.Object) (string, *object.Error) {
	if len(rest) > 0 {
		return stringArg(fn, "language", rest[0])
	}
	name, ok := lang.ForFile(path)
	if !ok {
		return "", object.Errorf("%s: cannot detect language for %s", fn, path)
	}
	return name, nil
}

// parse(path, [language]) reads and parses a file. The language follows
// the extension when omitted.
func makeParseFn(reg *treeRegistry) *object.Builtin {
	return object.NewBuiltin("parse", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 || len(args) > 2 {
			return object.Errorf("parse: expected 1 or 2 arguments, got %d", len(args))
		}
		path, errObj := stringArg("parse", "path", args[0])
		if errObj != nil {
			return errObj
		}
		langName, errObj := languageArg("parse", path, args[1:])
		if errObj != nil {
			return errObj
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return object.Errorf("parse: %v", err)
		}
		return parseInto(ctx, reg, "parse", src, langName)
	})
}

// parse_src(source, language) parses a string.
func makeParseSrcFn(reg *treeRegistry) *object.Builtin {
	return object.NewBuiltin("parse_src", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("parse_src", 2, len(args))
		}
		src, errObj := stringArg("parse_src", "source", args[0])
		if errObj != nil {
			return errObj
		}
		langName, errObj := stringArg("parse_src", "language", args[1])
		if errObj != nil {
			return errObj
		}
		return parseInto(ctx, reg, "parse_src", []byte(src), langName)
	})
}

func parseInto(ctx context.Context, reg *treeRegistry, fn string, src []byte, langName string) object.Object {
	tree, l, err := lang.Parse(ctx, src, langName)
	if err != nil {
		return object.Errorf("%s: %v", fn, err)
	}
	reg.register(tree, src, l.Grammar)

	p, err := object.NewProxy(tree)
	if err != nil {
		return object.Errorf("%s: %v", fn, err)
	}
	return p
}

// node_text(node) returns the source text under node. Scripts cannot call
// Node.Content directly since the proxy layer has no string to []byte
// conversion.
func makeNodeTextFn(reg *treeRegistry) *object.Builtin {
	return object.NewBuiltin("node_text", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_text", 1, len(args))
		}
		node, errObj := nodeArg("node_text", args[0])
		if errObj != nil {
			return errObj
		}
		pt, ok := reg.lookup(node)
		if !ok {
			return object.Errorf("node_text: node does not belong to a parsed tree")
		}
		return object.NewString(node.Content(pt.src))
	})
}

// query(pattern, node) runs a tree-sitter query under node and returns one
// map per match, keyed by capture name.
func makeQueryFn(reg *treeRegistry) *object.Builtin {
	return object.NewBuiltin("query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("query", 2, len(args))
		}
		pattern, errObj := stringArg("query", "pattern", args[0])
		if errObj != nil {
			return errObj
		}
		node, errObj := nodeArg("query", args[1])
		if errObj != nil {
			return errObj
		}
		pt, ok := reg.lookup(node)
		if !ok {
			return object.Errorf("query: node does not belong to a parsed tree")
		}

		q, err := sitter.NewQuery([]byte(pattern), pt.grammar)
		if err != nil {
			return object.Errorf("query: invalid pattern: %v", err)
		}
		defer q.Close()

		qc := sitter.NewQueryCursor()
		defer qc.Close()
		qc.Exec(q, node)

		matches := []object.Object{}
		for {
			m, ok := qc.NextMatch()
			if !ok {
				break
			}
			m = qc.FilterPredicates(m, pt.src)

			captures := make(map[string]object.Object, len(m.Captures))
			for _, c := range m.Captures {
				name := q.CaptureNameForId(c.Index)
				v := proxyNode("query", c.Node)
				if errObj, isErr := v.(*object.Error); isErr {
					return errObj
				}
				captures[name] = v
			}
			matches = append(matches, object.NewMap(captures))
		}
		return object.NewList(matches)
	})
}

// node_child(node, field) is ChildByFieldName returning Risor nil for a
// missing child instead of a proxied nil pointer.
func makeNodeChildFn() *object.Builtin {
	return object.NewBuiltin("node_child", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("node_child", 2, len(args))
		}
		node, errObj := nodeArg("node_child", args[0])
		if errObj != nil {
			return errObj
		}
		field, errObj := stringArg("node_child", "field", args[1])
		if errObj != nil {
			return errObj
		}
		return proxyNode("node_child", node.ChildByFieldName(field))
	})
}

// scriptLog is the "log" global. Every record is tagged source=script.
type scriptLog struct {
	logger *slog.Logger
}

func (l *scriptLog) Debug(msg string) { l.logger.Debug(msg, "source", "script") }
func (l *scriptLog) Info(msg string)  { l.logger.Info(msg, "source", "script") }
func (l *scriptLog) Warn(msg string)  { l.logger.Warn(msg, "source", "script") }
func (l *scriptLog) Error(msg string) { l.logger.Error(msg, "source", "script") }
