package lang

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/tokengraph/internal/tokens"
)

var javaGrammar = tokens.Grammar{
	ScopeKinds: tokens.Kinds(
		"class_body",
		"interface_body",
		"enum_body",
		"method_declaration",
		"constructor_declaration",
		"block",
		"constructor_body",
		"lambda_expression",
		"if_statement",
		"for_statement",
		"enhanced_for_statement",
		"while_statement",
		"do_statement",
		"switch_block",
		"try_statement",
		"try_with_resources_statement",
		"catch_clause",
	),
	CallWrapperKinds: tokens.Kinds(
		"method_invocation",
		"object_creation_expression",
		"method_declaration",
		"constructor_declaration",
		"class_declaration",
	),
	AtomicKinds:       tokens.Kinds("string_literal", "character_literal", "text_block"),
	CommentKinds:      tokens.Kinds("comment", "line_comment", "block_comment"),
	MemberAccessKinds: tokens.Kinds("field_access"),
	MemberFieldName:   "field",
	ArgumentListKinds: tokens.Kinds("argument_list"),
	CallKinds:         tokens.Kinds("method_invocation", "object_creation_expression"),
}

var javaNameKinds = map[string]bool{"identifier": true}

var javaDeclSites = map[string]declSite{
	"variable_declarator":    site("name"),
	"formal_parameter":       site("name"),
	"catch_formal_parameter": site("name"),
	"enhanced_for_statement": site("name"),
	"resource":               site("name"),
	"method_declaration":     site("name"),
	"inferred_parameters":    site(),
	"lambda_expression":      site("parameters"),
}

// javaTypeHolders carry a "type" field for the declarations beneath them.
var javaTypeHolders = map[string]bool{
	"local_variable_declaration": true,
	"field_declaration":          true,
	"formal_parameter":           true,
	"enhanced_for_statement":     true,
	"resource":                   true,
	"method_declaration":         true,
}

var javaCatchTypes = map[string]bool{"catch_type": true}

type javaPolicy struct{}

// Java returns the policy for Java.
func Java() tokens.Policy { return javaPolicy{} }

func (javaPolicy) Name() string            { return "java" }
func (javaPolicy) Grammar() tokens.Grammar { return javaGrammar }

func (javaPolicy) IsDeclaration(n *sitter.Node) bool {
	return isDeclName(n, javaNameKinds, javaDeclSites)
}

func (javaPolicy) DeclaredType(n *sitter.Node, src []byte) (string, bool) {
	if n == nil {
		return "", false
	}
	holder := n.Parent()
	if holder != nil && holder.Type() == "variable_declarator" {
		holder = holder.Parent()
	}
	if holder == nil {
		return "", false
	}
	if holder.Type() == "catch_formal_parameter" {
		if t := firstChildOfKind(holder, javaCatchTypes); t != nil {
			return t.Content(src), true
		}
		return "", false
	}
	if javaTypeHolders[holder.Type()] {
		return fieldText(holder, "type", src)
	}
	return "", false
}
