package tokengraph

import (
	"context"
	"fmt"

	"github.com/jward/tokengraph/internal/lang"
	"github.com/jward/tokengraph/internal/observability"
	"github.com/jward/tokengraph/internal/tokens"
)

// Analyze parses src with the named language and returns its token graph.
// Nothing is written to a database.
func Analyze(ctx context.Context, src []byte, language string) (*Graph, error) {
	return analyze(ctx, src, language, 0)
}

// analyze is Analyze with an optional node budget (0 means unlimited).
func analyze(ctx context.Context, src []byte, language string, nodeBudget int) (*Graph, error) {
	tree, l, err := lang.Parse(ctx, src, language)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var opts []tokens.Option
	if nodeBudget > 0 {
		opts = append(opts, tokens.WithNodeBudget(nodeBudget))
	}
	g, err := tokens.Collect(tree.RootNode(), src, l.Policy, opts...)
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", language, err)
	}
	return g, nil
}

// countsOf tallies a graph for metrics and logging.
func countsOf(g *Graph) observability.GraphCounts {
	return observability.GraphCounts{
		Tokens:       len(g.Tokens),
		Declarations: g.Declarations.Len(),
		Bindings:     len(g.Symbols.Bindings),
		Unresolved:   len(g.Unresolved()),
		Calls:        g.Calls.Len(),
	}
}
