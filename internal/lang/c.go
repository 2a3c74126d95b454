package lang

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/tokengraph/internal/tokens"
)

var cGrammar = tokens.Grammar{
	ScopeKinds: tokens.Kinds(
		"compound_statement",
		"if_statement",
		"while_statement",
		"for_statement",
		"do_statement",
		"switch_statement",
		"seh_try_statement",
		"seh_leave_statement",
		"function_definition",
	),
	CallWrapperKinds:  tokens.Kinds("struct_specifier", "function_definition", "call_expression"),
	AtomicKinds:       tokens.Kinds("string_literal", "char_literal"),
	CommentKinds:      tokens.Kinds("comment"),
	MemberAccessKinds: tokens.Kinds("field_expression"),
	MemberFieldName:   "field",
	ArgumentListKinds: tokens.Kinds("argument_list"),
	CallKinds:         tokens.Kinds("call_expression"),
}

var cNameKinds = map[string]bool{
	"identifier":       true,
	"field_identifier": true,
}

// cDeclSites lists the parents under which a name is being declared. Sites
// with a declarator field only accept the name in that field, which keeps
// initializer values and array sizes out.
var cDeclSites = map[string]declSite{
	"init_declarator":          site("declarator"),
	"pointer_declarator":       site("declarator"),
	"array_declarator":         site("declarator"),
	"function_declarator":      site("declarator"),
	"attributed_declarator":    site(),
	"parenthesized_declarator": site(),
	"declaration":              site("declarator"),
	"parameter_declaration":    site("declarator"),
	"field_declaration":        site("declarator"),
	"gnu_asm_expression":       site(),
	"ms_call_modifier":         site(),
}

// cDeclarators are the wrappers a declared name sits inside before its
// owning declaration.
var cDeclarators = map[string]bool{
	"init_declarator":          true,
	"pointer_declarator":       true,
	"array_declarator":         true,
	"function_declarator":      true,
	"attributed_declarator":    true,
	"parenthesized_declarator": true,
}

// cTypeHolders carry the declared type in their "type" field.
var cTypeHolders = map[string]bool{
	"declaration":           true,
	"parameter_declaration": true,
	"field_declaration":     true,
	"function_definition":   true,
}

// cTypeSpecifiers are the kinds accepted when a holder has no type field.
var cTypeSpecifiers = map[string]bool{
	"primitive_type":       true,
	"type_identifier":      true,
	"sized_type_specifier": true,
	"struct_specifier":     true,
	"union_specifier":      true,
	"enum_specifier":       true,
}

// cPolicy is the C language policy. C++ embeds it and widens the tables.
type cPolicy struct {
	name        string
	grammar     tokens.Grammar
	nameKinds   map[string]bool
	sites       map[string]declSite
	declarators map[string]bool
	holders     map[string]bool
}

// C returns the policy for C.
func C() tokens.Policy {
	return &cPolicy{
		name:        "c",
		grammar:     cGrammar,
		nameKinds:   cNameKinds,
		sites:       cDeclSites,
		declarators: cDeclarators,
		holders:     cTypeHolders,
	}
}

func (p *cPolicy) Name() string            { return p.name }
func (p *cPolicy) Grammar() tokens.Grammar { return p.grammar }

func (p *cPolicy) IsDeclaration(n *sitter.Node) bool {
	return isDeclName(n, p.nameKinds, p.sites)
}

// DeclaredType climbs from a declared name through its declarators to the
// owning declaration and reads the type from there. Pointer and array
// suffixes are not folded into the result.
func (p *cPolicy) DeclaredType(n *sitter.Node, src []byte) (string, bool) {
	if n == nil {
		return "", false
	}
	holder := n.Parent()
	for holder != nil && p.declarators[holder.Type()] {
		holder = holder.Parent()
	}
	if holder == nil {
		return "", false
	}
	if p.holders[holder.Type()] {
		if t, ok := fieldText(holder, "type", src); ok {
			return t, true
		}
	}
	if spec := firstChildOfKind(holder, cTypeSpecifiers); spec != nil {
		return spec.Content(src), true
	}
	return "", false
}
