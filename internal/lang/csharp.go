package lang

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/tokengraph/internal/tokens"
)

// Both spellings of the foreach node appear across grammar releases.
var csharpGrammar = tokens.Grammar{
	ScopeKinds: tokens.Kinds(
		"declaration_list",
		"method_declaration",
		"constructor_declaration",
		"local_function_statement",
		"lambda_expression",
		"block",
		"if_statement",
		"for_statement",
		"for_each_statement",
		"foreach_statement",
		"while_statement",
		"do_statement",
		"switch_statement",
		"try_statement",
		"catch_clause",
		"using_statement",
	),
	CallWrapperKinds: tokens.Kinds(
		"invocation_expression",
		"object_creation_expression",
		"method_declaration",
		"class_declaration",
	),
	AtomicKinds: tokens.Kinds(
		"string_literal",
		"verbatim_string_literal",
		"character_literal",
		"interpolated_string_expression",
	),
	CommentKinds:      tokens.Kinds("comment"),
	MemberAccessKinds: tokens.Kinds("member_access_expression"),
	MemberFieldName:   "name",
	ArgumentListKinds: tokens.Kinds("argument_list"),
	CallKinds:         tokens.Kinds("invocation_expression", "object_creation_expression"),
}

var csharpNameKinds = map[string]bool{"identifier": true}

var csharpDeclSites = map[string]declSite{
	"parameter":          site("name"),
	"catch_declaration":  site("name"),
	"for_each_statement": site("left"),
	"foreach_statement":  site("left"),
	"method_declaration": site("name"),
}

// csharpTypeHolders carry a "type" field for the name declared directly
// beneath them.
var csharpTypeHolders = map[string]bool{
	"parameter":          true,
	"catch_declaration":  true,
	"for_each_statement": true,
	"foreach_statement":  true,
	"method_declaration": true,
}

type csharpPolicy struct{}

// CSharp returns the policy for C#.
func CSharp() tokens.Policy { return csharpPolicy{} }

func (csharpPolicy) Name() string            { return "csharp" }
func (csharpPolicy) Grammar() tokens.Grammar { return csharpGrammar }

// IsDeclaration also accepts the variable_declarator name, which older
// grammar releases expose as a bare first identifier with no field.
func (csharpPolicy) IsDeclaration(n *sitter.Node) bool {
	if n == nil || !csharpNameKinds[n.Type()] {
		return false
	}
	parent := n.Parent()
	if parent != nil && parent.Type() == "variable_declarator" {
		return same(declaratorName(parent), n)
	}
	return isDeclName(n, csharpNameKinds, csharpDeclSites)
}

func (csharpPolicy) DeclaredType(n *sitter.Node, src []byte) (string, bool) {
	if n == nil {
		return "", false
	}
	holder := n.Parent()
	if holder == nil {
		return "", false
	}
	switch holder.Type() {
	case "variable_declarator":
		if decl := holder.Parent(); decl != nil && decl.Type() == "variable_declaration" {
			return fieldText(decl, "type", src)
		}
		return "", false
	case "method_declaration":
		if t, ok := fieldText(holder, "returns", src); ok {
			return t, true
		}
		return fieldText(holder, "type", src)
	}
	if csharpTypeHolders[holder.Type()] {
		return fieldText(holder, "type", src)
	}
	return "", false
}

// declaratorName returns the name of a variable_declarator, falling back
// to its first identifier child.
func declaratorName(d *sitter.Node) *sitter.Node {
	if name := d.ChildByFieldName("name"); name != nil {
		return name
	}
	return firstChildOfKind(d, csharpNameKinds)
}
