package main

import "github.com/jward/tokengraph"

// CLIResult is the top-level JSON envelope for all query commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIToken is a JSON-friendly token representation.
type CLIToken struct {
	Index     int    `json:"index"`
	Text      string `json:"text"`
	Kind      string `json:"kind"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
	Scope     []int  `json:"scope"`
}

// CLIDeclaration is a JSON-friendly declaration.
type CLIDeclaration struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	Type      string `json:"type,omitempty"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
}

// CLILocation is a JSON-friendly source location. End columns are
// inclusive.
type CLILocation struct {
	File      string `json:"file"`
	Index     int    `json:"index"`
	Text      string `json:"text"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// CLISummary is a JSON-friendly index summary.
type CLISummary struct {
	Files         int            `json:"files"`
	Tokens        int            `json:"tokens"`
	Declarations  int            `json:"declarations"`
	Bindings      int            `json:"bindings"`
	MethodTargets int            `json:"method_targets"`
	Calls         int            `json:"calls"`
	Languages     map[string]int `json:"languages"`
}

func tokenToCLI(tok *tokengraph.Token) CLIToken {
	scope := tok.ScopePath
	if scope == nil {
		scope = []int{}
	}
	return CLIToken{
		Index:     tok.TokenIndex,
		Text:      tok.Text,
		Kind:      tok.Kind,
		StartLine: tok.StartLine,
		StartCol:  tok.StartCol,
		EndLine:   tok.EndLine,
		EndCol:    tok.EndCol,
		Scope:     scope,
	}
}

func tokensToCLI(toks []*tokengraph.Token) []CLIToken {
	out := make([]CLIToken, 0, len(toks))
	for _, tok := range toks {
		out = append(out, tokenToCLI(tok))
	}
	return out
}

func locationToCLI(loc tokengraph.Location) CLILocation {
	return CLILocation{
		File:      loc.File,
		Index:     loc.TokenIndex,
		Text:      loc.Text,
		StartLine: loc.StartLine,
		StartCol:  loc.StartCol,
		EndLine:   loc.EndLine,
		EndCol:    loc.EndCol,
	}
}

func locationsToCLI(locs []tokengraph.Location) []CLILocation {
	out := make([]CLILocation, 0, len(locs))
	for _, loc := range locs {
		out = append(out, locationToCLI(loc))
	}
	return out
}

func summaryToCLI(s *tokengraph.Summary) CLISummary {
	return CLISummary{
		Files:         s.Files,
		Tokens:        s.Tokens,
		Declarations:  s.Declarations,
		Bindings:      s.Bindings,
		MethodTargets: s.MethodTargets,
		Calls:         s.Calls,
		Languages:     s.Languages,
	}
}
