package tokens_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/tokengraph/internal/lang"
	"github.com/jward/tokengraph/internal/tokens"
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

func collectC(t *testing.T, src string, opts ...tokens.Option) *tokens.Graph {
	t.Helper()
	tree, l, err := lang.Parse(context.Background(), []byte(src), "c")
	require.NoError(t, err)
	t.Cleanup(tree.Close)

	g, err := tokens.Collect(tree.RootNode(), []byte(src), l.Policy, opts...)
	require.NoError(t, err)
	return g
}

// only returns the single token with the given text.
func only(t *testing.T, g *tokens.Graph, text string) tokens.TokenIndex {
	t.Helper()
	found := g.Find(text)
	require.Len(t, found, 1, "tokens with text %q", text)
	return found[0]
}

func TestCollect_ScopesBalance(t *testing.T) {
	t.Parallel()
	g := collectC(t, listSource)

	sc := g.Symbols.Scopes
	assert.Equal(t, 0, sc.Depth())
	assert.Equal(t, sc.Pushes(), sc.Pops())
	assert.Positive(t, sc.Pushes())
}

func TestCollect_TokensInDocumentOrder(t *testing.T) {
	t.Parallel()
	g := collectC(t, "void run(void) {\n    int a = 1;\n    a = a + 2;\n}\n")

	var texts []string
	for _, idx := range g.Tokens {
		texts = append(texts, g.Text[idx])
	}
	assert.Equal(t, []string{"void", "run", "void", "int", "a", "1", "a", "a", "2"}, texts)

	seen := make(map[tokens.TokenIndex]bool)
	for _, idx := range g.Tokens {
		assert.False(t, seen[idx], "token %d listed twice", idx)
		seen[idx] = true
	}

	a := g.Find("a")
	require.Len(t, a, 3)
	assert.Equal(t, 1, g.Line[a[0]])
	assert.Equal(t, 2, g.Line[a[1]])
	assert.Equal(t, "identifier", g.Kind[a[0]])
}

func TestCollect_IdentityStableAcrossRuns(t *testing.T) {
	t.Parallel()
	first := collectC(t, listSource)
	second := collectC(t, listSource)

	assert.Equal(t, first.Tokens, second.Tokens)
	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, first.Symbols.Bindings, second.Symbols.Bindings)
}

func TestCollect_DeclarationsAndTypes(t *testing.T) {
	t.Parallel()
	g := collectC(t, listSource)

	tests := []struct {
		name string
		typ  string
	}{
		{"value", "int"},
		{"next", "struct Node"},
		{"sum", "int"},
		{"total", "int"},
		{"head", "struct Node"},
	}
	for _, tt := range tests {
		decl := g.Find(tt.name)[0]
		assert.True(t, g.Declarations.Has(decl), "%s should be a declaration", tt.name)
		typ, ok := g.DeclaredType(decl)
		require.True(t, ok, "%s should have a type", tt.name)
		assert.Equal(t, tt.typ, typ, tt.name)
	}

	// The initializer value is not a declaration.
	for _, idx := range g.Find("0") {
		assert.False(t, g.Declarations.Has(idx))
	}
}

func TestCollect_ReferencesBindToParameter(t *testing.T) {
	t.Parallel()
	g := collectC(t, listSource)

	heads := g.Find("head")
	require.Len(t, heads, 3)
	param := heads[0]
	for _, ref := range heads[1:] {
		decl, ok := g.Binding(ref)
		require.True(t, ok)
		assert.Equal(t, param, decl)
	}
	assert.ElementsMatch(t, heads[1:], g.ReferencesTo(param))
}

func TestCollect_MemberAccessBindsToField(t *testing.T) {
	t.Parallel()
	g := collectC(t, listSource)

	field := g.Find("value")[0]
	access := g.Find("head->value")
	require.NotEmpty(t, access)
	for _, idx := range access {
		decl, ok := g.Binding(idx)
		require.True(t, ok)
		assert.Equal(t, field, decl)
	}
}

func TestCollect_Shadowing(t *testing.T) {
	t.Parallel()
	src := `void f(void) {
    int x = 1;
    {
        int x = 2;
        {
            x = 3;
        }
    }
    x = 4;
}
`
	g := collectC(t, src)

	xs := g.Find("x")
	require.Len(t, xs, 4)
	outer, inner, nested, after := xs[0], xs[1], xs[2], xs[3]

	assert.Len(t, g.ScopePath(inner), len(g.ScopePath(outer))+1)
	assert.True(t, tokens.Compatible(g.ScopePath(outer), g.ScopePath(nested)))
	assert.True(t, tokens.Compatible(g.ScopePath(inner), g.ScopePath(nested)))

	decl, ok := g.Binding(nested)
	require.True(t, ok)
	assert.Equal(t, inner, decl, "innermost declaration wins")

	decl, ok = g.Binding(after)
	require.True(t, ok)
	assert.Equal(t, outer, decl, "inner block declaration is not visible after it closes")
}

func TestCollect_SiblingScopesDoNotResolve(t *testing.T) {
	t.Parallel()
	src := `void f(void) {
    { int y = 1; }
    { y = 2; }
}
`
	g := collectC(t, src)

	ys := g.Find("y")
	require.Len(t, ys, 2)
	assert.True(t, g.Declarations.Has(ys[0]))
	_, ok := g.Binding(ys[1])
	assert.False(t, ok)
}

func TestCollect_CallDetection(t *testing.T) {
	t.Parallel()
	g := collectC(t, "void run(void) {\n    foo(1, 2);\n    bar;\n}\n")

	foo := only(t, g, "foo")
	assert.True(t, g.MethodTargets.Has(foo))
	assert.True(t, g.Calls.Has(foo))

	bar := only(t, g, "bar")
	assert.False(t, g.Calls.Has(bar))
}

func TestCollect_ChainCall(t *testing.T) {
	t.Parallel()
	g := collectC(t, "void run(void) {\n    a.b.c();\n}\n")

	chain := g.Find("a.b.c")
	require.NotEmpty(t, chain)
	c := chain[len(chain)-1]
	assert.Equal(t, "field_identifier", g.Kind[c])
	assert.True(t, g.MethodTargets.Has(c))
	assert.True(t, g.Calls.Has(c))

	for _, idx := range chain[:len(chain)-1] {
		assert.False(t, g.Calls.Has(idx), "only the invoked member is a call")
	}
}

func TestCollect_ChainWithoutCall(t *testing.T) {
	t.Parallel()
	g := collectC(t, "void run(void) {\n    x = a.b;\n}\n")

	chain := g.Find("a.b")
	require.Len(t, chain, 2)
	b := chain[1]
	assert.True(t, g.MethodTargets.Has(b))
	assert.False(t, g.Calls.Has(b))
	assert.False(t, g.MethodTargets.Has(chain[0]), "the base object is not a target")
}

func TestCollect_MidChainCall(t *testing.T) {
	t.Parallel()
	g := collectC(t, "void run(void) {\n    x = a.b().c;\n}\n")

	inner := g.Find("a.b")
	require.Len(t, inner, 2)
	b := inner[1]
	assert.True(t, g.MethodTargets.Has(b))
	assert.True(t, g.Calls.Has(b))

	c := only(t, g, "a.b().c")
	assert.True(t, g.MethodTargets.Has(c))
	assert.False(t, g.Calls.Has(c))
}

func TestCollect_UnresolvedReference(t *testing.T) {
	t.Parallel()
	g := collectC(t, "void run(void) {\n    missing = 1;\n}\n")

	missing := only(t, g, "missing")
	_, ok := g.Binding(missing)
	assert.False(t, ok)
	assert.False(t, g.Declarations.Has(missing))
	assert.Equal(t, []tokens.TokenIndex{missing}, g.Unresolved())
}

func TestCollect_UnresolvedSkipsTypeNames(t *testing.T) {
	t.Parallel()
	g := collectC(t, "typedef int Num;\nvoid run(void) {\n    Num n = missing;\n    goto done;\ndone:\n    return;\n}\n")

	nums := g.Find("Num")
	require.Len(t, nums, 2)
	for _, idx := range nums {
		assert.Equal(t, "type_identifier", g.Kind[idx])
	}
	assert.Equal(t, []tokens.TokenIndex{only(t, g, "missing")}, g.Unresolved())
}

func TestIsReferenceKind(t *testing.T) {
	t.Parallel()
	assert.True(t, tokens.IsReferenceKind("identifier"))
	assert.True(t, tokens.IsReferenceKind("field_identifier"))
	assert.False(t, tokens.IsReferenceKind("type_identifier"))
	assert.False(t, tokens.IsReferenceKind("namespace_identifier"))
	assert.False(t, tokens.IsReferenceKind("statement_identifier"))
	assert.False(t, tokens.IsReferenceKind("primitive_type"))
}

func TestCollect_CommentsAndStrings(t *testing.T) {
	t.Parallel()
	g := collectC(t, "void run(void) {\n    /* note */\n    puts(\"hi there\");\n}\n")

	assert.Empty(t, g.Find("/* note */"))
	s := only(t, g, `"hi there"`)
	assert.Equal(t, "string_literal", g.Kind[s])
}

func TestCollect_NodeBudget(t *testing.T) {
	t.Parallel()
	tree, l, err := lang.Parse(context.Background(), []byte(listSource), "c")
	require.NoError(t, err)
	defer tree.Close()

	_, err = tokens.Collect(tree.RootNode(), []byte(listSource), l.Policy, tokens.WithNodeBudget(5))
	assert.ErrorIs(t, err, tokens.ErrNodeBudget)
}

func TestCollect_InvalidText(t *testing.T) {
	t.Parallel()
	parsed := []byte("void run(void) {\n    puts(\"ab\");\n}\n")
	tree, l, err := lang.Parse(context.Background(), parsed, "c")
	require.NoError(t, err)
	defer tree.Close()

	// Same layout, but the literal's bytes are not UTF-8.
	src := []byte("void run(void) {\n    puts(\"\xff\xfe\");\n}\n")
	require.Len(t, src, len(parsed))

	_, err = tokens.Collect(tree.RootNode(), src, l.Policy)
	assert.ErrorIs(t, err, tokens.ErrInvalidText)
}

func TestCollect_NilRoot(t *testing.T) {
	t.Parallel()
	_, err := tokens.Collect(nil, nil, lang.C())
	assert.ErrorIs(t, err, tokens.ErrMalformedNode)
}

func TestGraph_ScopeGroupsAndTokenAt(t *testing.T) {
	t.Parallel()
	g := collectC(t, "int g;\nvoid run(void) {\n    g = 1;\n}\n")

	groups := g.ScopeGroups()
	require.Contains(t, groups, tokens.ScopeID(0))
	assert.Equal(t, "int", g.Text[groups[0][0]])

	idx, ok := g.TokenAt(2, 4)
	require.True(t, ok)
	assert.Equal(t, "g", g.Text[idx])
	_, ok = g.TokenAt(2, 5)
	assert.False(t, ok, "end columns are inclusive")
	decl, ok := g.Binding(idx)
	require.True(t, ok)
	assert.Equal(t, g.Find("g")[0], decl)
	assert.Equal(t, []tokens.TokenIndex{idx}, g.BoundReferences())
}

func BenchmarkCollect(b *testing.B) {
	src := []byte(listSource)
	tree, l, err := lang.Parse(context.Background(), src, "c")
	if err != nil {
		b.Fatal(err)
	}
	defer tree.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := tokens.Collect(tree.RootNode(), src, l.Policy); err != nil {
			b.Fatal(err)
		}
	}
}
