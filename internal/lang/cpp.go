package lang

import (
	"github.com/jward/tokengraph/internal/tokens"
)

// CPP returns the policy for C++. It is the C policy with the C++
// statement, lambda and class forms added.
func CPP() tokens.Policy {
	g := cGrammar
	g.ScopeKinds = cGrammar.ScopeKinds.Union(tokens.Kinds(
		"for_range_loop",
		"try_statement",
		"catch_clause",
		"lambda_expression",
	))
	g.CallWrapperKinds = cGrammar.CallWrapperKinds.Union(tokens.Kinds(
		"class_specifier",
		"new_expression",
	))
	g.AtomicKinds = cGrammar.AtomicKinds.Union(tokens.Kinds("raw_string_literal"))

	sites := mergeSites(cDeclSites, map[string]declSite{
		"reference_declarator":           site(),
		"optional_parameter_declaration": site("declarator"),
		"for_range_loop":                 site("declarator"),
	})
	declarators := mergeKinds(cDeclarators, map[string]bool{"reference_declarator": true})
	holders := mergeKinds(cTypeHolders, map[string]bool{
		"optional_parameter_declaration": true,
		"for_range_loop":                 true,
	})

	return &cPolicy{
		name:        "cpp",
		grammar:     g,
		nameKinds:   cNameKinds,
		sites:       sites,
		declarators: declarators,
		holders:     holders,
	}
}

func mergeSites(base, extra map[string]declSite) map[string]declSite {
	out := make(map[string]declSite, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func mergeKinds(base, extra map[string]bool) map[string]bool {
	out := make(map[string]bool, len(base)+len(extra))
	for k := range base {
		out[k] = true
	}
	for k := range extra {
		out[k] = true
	}
	return out
}
