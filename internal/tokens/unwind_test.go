package tokens

import (
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockPolicy scopes C functions and blocks and declares nothing.
type blockPolicy struct{}

func (blockPolicy) Name() string { return "c" }

func (blockPolicy) Grammar() Grammar {
	return Grammar{
		ScopeKinds:   Kinds("function_definition", "compound_statement"),
		CommentKinds: Kinds("comment"),
	}
}

func (blockPolicy) IsDeclaration(*sitter.Node) bool { return false }

func (blockPolicy) DeclaredType(*sitter.Node, []byte) (string, bool) { return "", false }

const nestedSource = `int f(void) {
    int a = 1;
    {
        {
            a = a + 1;
        }
    }
    return a;
}
`

func TestCollector_BudgetAbortClosesScopes(t *testing.T) {
	t.Parallel()
	root := parseC(t, nestedSource).RootNode()

	complete := newCollector([]byte(nestedSource), blockPolicy{})
	require.NoError(t, complete.run(root))
	total := complete.visited

	abortedInside := false
	for budget := 1; budget < total; budget++ {
		c := newCollector([]byte(nestedSource), blockPolicy{}, WithNodeBudget(budget))
		err := c.run(root)
		require.ErrorIs(t, err, ErrNodeBudget, "budget %d", budget)

		scopes := c.graph.Symbols.Scopes
		assert.Equal(t, 0, scopes.Depth(), "budget %d", budget)
		assert.Equal(t, scopes.Pushes(), scopes.Pops(), "budget %d", budget)
		if scopes.Pushes() > 1 {
			abortedInside = true
		}
	}
	assert.True(t, abortedInside, "some budget aborts with nested scopes open")
}
