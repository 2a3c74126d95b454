package tokens

// ScopeID identifies one lexical scope instance. Ids start at 1 and are
// never reused within a traversal; 0 denotes file level.
type ScopeID int

// ScopePath is the stack of enclosing scopes, outermost first.
type ScopePath []ScopeID

// Innermost returns the last scope in the path, or 0 at file level.
func (p ScopePath) Innermost() ScopeID {
	if len(p) == 0 {
		return 0
	}
	return p[len(p)-1]
}

// Contains reports whether id is on the path.
func (p ScopePath) Contains(id ScopeID) bool {
	for _, s := range p {
		if s == id {
			return true
		}
	}
	return false
}

// ScopeTracker maintains the stack of scopes active during a traversal.
type ScopeTracker struct {
	stack  []ScopeID
	last   ScopeID
	pushes int
	pops   int
}

// NewScopeTracker returns a tracker with an empty stack.
func NewScopeTracker() *ScopeTracker {
	return &ScopeTracker{}
}

// Push allocates a fresh scope id and makes it the innermost scope.
func (s *ScopeTracker) Push() ScopeID {
	s.last++
	s.stack = append(s.stack, s.last)
	s.pushes++
	return s.last
}

// Pop removes the innermost scope. It returns false on an empty stack.
func (s *ScopeTracker) Pop() (ScopeID, bool) {
	if len(s.stack) == 0 {
		return 0, false
	}
	id := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	s.pops++
	return id, true
}

// Snapshot returns a copy of the current stack.
func (s *ScopeTracker) Snapshot() ScopePath {
	path := make(ScopePath, len(s.stack))
	copy(path, s.stack)
	return path
}

// Depth returns the number of active scopes.
func (s *ScopeTracker) Depth() int { return len(s.stack) }

// Pushes returns how many scopes have been entered.
func (s *ScopeTracker) Pushes() int { return s.pushes }

// Pops returns how many scopes have been left.
func (s *ScopeTracker) Pops() int { return s.pops }

// Allocated returns the highest scope id handed out so far.
func (s *ScopeTracker) Allocated() ScopeID { return s.last }
