package store

import "time"

// Call marker kinds.
const (
	MarkerTarget = "target"
	MarkerCall   = "call"
)

type File struct {
	ID          int64
	Path        string
	Language    string
	Hash        string
	LineCount   int
	LastIndexed time.Time
}

// Token is one leaf of a file's token graph. Lines and columns are 0-based.
type Token struct {
	ID         int64
	FileID     int64
	TokenIndex int
	Ordinal    int
	Text       string
	Kind       string
	StartLine  int
	StartCol   int
	EndLine    int
	EndCol     int
	ScopePath  []int
}

// Declaration marks a token as introducing Name. TokenIndex is filled on
// read.
type Declaration struct {
	ID         int64
	FileID     int64
	TokenID    int64
	TokenIndex int
	Name       string
	TypeExpr   string
}

// Binding links a reference token to the declaration token it resolves to.
// The index fields are filled on read.
type Binding struct {
	ID                 int64
	FileID             int64
	ReferenceTokenID   int64
	DeclarationTokenID int64
	ReferenceIndex     int
	DeclarationIndex   int
}

// CallMarker flags a token as a call target or an actual call.
type CallMarker struct {
	ID         int64
	FileID     int64
	TokenID    int64
	TokenIndex int
	Kind       string
}

// Summary aggregates counts across the whole database.
type Summary struct {
	Files         int
	Tokens        int
	Declarations  int
	Bindings      int
	MethodTargets int
	Calls         int
	Languages     map[string]int
}
