package tokens

// Compatible reports whether a declaration made under decl is visible from
// a reference made under ref: every scope of decl must be on ref.
//
// Scope ids are only ever pushed along the single active path, so this is
// equivalent to decl being a prefix of ref.
func Compatible(decl, ref ScopePath) bool {
	for _, s := range decl {
		if !ref.Contains(s) {
			return false
		}
	}
	return true
}

// Innermost picks the candidate with the longest scope path. Among equal
// lengths the earliest candidate wins, so callers must pass candidates in
// declaration order.
func Innermost(candidates []TokenIndex, scopes map[TokenIndex]ScopePath) (TokenIndex, bool) {
	if len(candidates) == 0 {
		return 0, false
	}
	best := candidates[0]
	bestLen := len(scopes[best])
	for _, c := range candidates[1:] {
		if n := len(scopes[c]); n > bestLen {
			best, bestLen = c, n
		}
	}
	return best, true
}

// resolver looks up declarations visible from a reference.
type resolver struct {
	decls *Registry
	table *SymbolTable
}

// candidates returns the declarations of name visible from ref, in
// declaration order.
func (r resolver) candidates(name string, ref ScopePath) []TokenIndex {
	var out []TokenIndex
	for _, idx := range r.decls.Named(name) {
		if Compatible(r.table.ScopeMap[idx], ref) {
			out = append(out, idx)
		}
	}
	return out
}

// name resolves a plain identifier reference to its innermost declaration.
func (r resolver) name(name string, ref ScopePath) (TokenIndex, bool) {
	return Innermost(r.candidates(name, ref), r.table.ScopeMap)
}

// member resolves the final component of a member access to the first
// visible declaration of that name.
func (r resolver) member(name string, ref ScopePath) (TokenIndex, bool) {
	for _, idx := range r.decls.Named(name) {
		if Compatible(r.table.ScopeMap[idx], ref) {
			return idx, true
		}
	}
	return 0, false
}
