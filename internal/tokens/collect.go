package tokens

import (
	"errors"
	"fmt"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

var (
	// ErrMalformedNode is returned when the traversal asks for the
	// identity of a node that does not exist. It indicates a bug.
	ErrMalformedNode = errors.New("tokens: malformed node identity lookup")

	// ErrInvalidText is returned when a token's source span is not UTF-8.
	ErrInvalidText = errors.New("tokens: token text is not valid UTF-8")

	// ErrNodeBudget is returned when a traversal visits more nodes than
	// the configured budget.
	ErrNodeBudget = errors.New("tokens: node budget exceeded")
)

// Option configures a traversal.
type Option func(*collector)

// WithNodeBudget aborts the traversal after n nodes. Zero means unlimited.
func WithNodeBudget(n int) Option {
	return func(c *collector) {
		c.budget = n
	}
}

type collector struct {
	src     []byte
	policy  Policy
	grammar Grammar
	index   *NodeIndex
	graph   *Graph
	resolve resolver

	budget  int
	visited int
}

// workItem is one entry of the explicit traversal stack. A leave item
// closes the scope opened when its node was entered.
type workItem struct {
	node  *sitter.Node
	leave bool
}

// Collect walks the tree rooted at root once, depth first, and returns the
// token graph. src must be the text the tree was parsed from.
func Collect(root *sitter.Node, src []byte, p Policy, opts ...Option) (*Graph, error) {
	if root == nil {
		return nil, ErrMalformedNode
	}
	c := newCollector(src, p, opts...)
	if err := c.run(root); err != nil {
		return nil, err
	}
	return c.graph, nil
}

func newCollector(src []byte, p Policy, opts ...Option) *collector {
	g := newGraph(p.Name())
	c := &collector{
		src:     src,
		policy:  p,
		grammar: p.Grammar(),
		index:   NewNodeIndex(),
		graph:   g,
		resolve: resolver{decls: g.Declarations, table: g.Symbols},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// run drives the explicit stack to completion. On error every scope opened
// so far has been closed again.
func (c *collector) run(root *sitter.Node) error {
	stack := []workItem{{node: root}}
	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if item.leave {
			c.graph.Symbols.Scopes.Pop()
			continue
		}
		if err := c.visit(item.node, &stack); err != nil {
			c.unwind(stack)
			return err
		}
	}
	return nil
}

// unwind closes every scope still open on the remaining stack.
func (c *collector) unwind(stack []workItem) {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].leave {
			c.graph.Symbols.Scopes.Pop()
		}
	}
}

func (c *collector) visit(n *sitter.Node, stack *[]workItem) error {
	c.visited++
	if c.budget > 0 && c.visited > c.budget {
		return fmt.Errorf("%w (%d nodes)", ErrNodeBudget, c.budget)
	}

	if n.IsNamed() && c.grammar.ScopeKinds.Has(n.Type()) {
		c.graph.Symbols.Scopes.Push()
		*stack = append(*stack, workItem{leave: true})
	}

	if c.isToken(n) {
		return c.token(n)
	}

	for i := int(n.ChildCount()) - 1; i >= 0; i-- {
		if child := n.Child(i); child != nil {
			*stack = append(*stack, workItem{node: child})
		}
	}
	return nil
}

func (c *collector) isToken(n *sitter.Node) bool {
	if !n.IsNamed() || c.grammar.CommentKinds.Has(n.Type()) {
		return false
	}
	return n.ChildCount() == 0 || c.grammar.AtomicKinds.Has(n.Type())
}

func (c *collector) text(n *sitter.Node) (string, error) {
	s := n.Content(c.src)
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%w: line %d", ErrInvalidText, n.StartPoint().Row+1)
	}
	return s, nil
}

func (c *collector) token(n *sitter.Node) error {
	g := c.graph
	idx, err := c.index.Identity(n)
	if err != nil {
		return err
	}
	text, err := c.text(n)
	if err != nil {
		return err
	}

	start, end := n.StartPoint(), n.EndPoint()
	g.Tokens = append(g.Tokens, idx)
	g.Text[idx] = text
	g.Line[idx] = int(start.Row)
	g.Kind[idx] = n.Type()
	g.Span[idx] = spanOf(start, end)
	scope := g.Symbols.Scopes.Snapshot()
	g.Symbols.ScopeMap[idx] = scope

	parent := n.Parent()

	// Callee and tag-name positions.
	if parent != nil && c.grammar.CallWrapperKinds.Has(parent.Type()) {
		g.MethodTargets.Add(idx)
		if c.invoked(n) {
			g.Calls.Add(idx)
		}
	}

	subject := n
	if parent != nil && c.grammar.MemberAccessKinds.Has(parent.Type()) {
		if sameNode(c.memberField(parent), n) {
			g.MethodTargets.Add(idx)
		}
		subject = c.climb(n)
		if up := subject.Parent(); up != nil && c.grammar.CallKinds.Has(up.Type()) {
			g.MethodTargets.Add(idx)
			if c.invoked(subject) && sameNode(c.memberField(subject), n) {
				g.Calls.Add(idx)
			}
		}
		chain, err := c.text(subject)
		if err != nil {
			return err
		}
		g.Text[idx] = chain
	}

	if c.policy.IsDeclaration(subject) {
		g.Declarations.Add(idx, g.Text[idx])
		if typ, ok := c.policy.DeclaredType(subject, c.src); ok {
			g.Symbols.DataType[idx] = typ
		}
		return nil
	}

	if c.grammar.MemberAccessKinds.Has(subject.Type()) {
		if decl, ok := c.resolve.member(c.memberName(subject), scope); ok {
			g.Symbols.Bindings[idx] = decl
		}
		return nil
	}

	if decl, ok := c.resolve.name(g.Text[idx], scope); ok {
		g.Symbols.Bindings[idx] = decl
	}
	return nil
}

// invoked reports whether n is directly followed by an argument list.
func (c *collector) invoked(n *sitter.Node) bool {
	next := n.NextNamedSibling()
	return next != nil && c.grammar.ArgumentListKinds.Has(next.Type())
}

// climb walks up consecutive member-access ancestors of n. It stops at the
// first ancestor that is followed by an argument list, which is the
// invocation point of the chain.
func (c *collector) climb(n *sitter.Node) *sitter.Node {
	cur := n
	for {
		parent := cur.Parent()
		if parent == nil || !c.grammar.MemberAccessKinds.Has(parent.Type()) {
			return cur
		}
		cur = parent
		if c.invoked(cur) {
			return cur
		}
	}
}

// memberField returns the accessed-member child of a member access node.
func (c *collector) memberField(access *sitter.Node) *sitter.Node {
	if access == nil || !c.grammar.MemberAccessKinds.Has(access.Type()) {
		return nil
	}
	if c.grammar.MemberFieldName != "" {
		if f := access.ChildByFieldName(c.grammar.MemberFieldName); f != nil {
			return f
		}
	}
	if n := int(access.ChildCount()); n > 0 {
		return access.Child(n - 1)
	}
	return nil
}

// memberName is the source text of the final component of a member access.
func (c *collector) memberName(access *sitter.Node) string {
	f := c.memberField(access)
	if f == nil {
		return ""
	}
	return f.Content(c.src)
}

// spanOf converts tree-sitter's exclusive end point into the inclusive span
// stored on tokens. Zero-width nodes cover their start column.
func spanOf(start, end sitter.Point) Span {
	sp := Span{
		StartLine: int(start.Row),
		StartCol:  int(start.Column),
		EndLine:   int(end.Row),
		EndCol:    int(end.Column),
	}
	switch {
	case start == end:
		sp.EndCol = sp.StartCol
	case end.Column > 0:
		sp.EndCol--
	}
	return sp
}
