// Package lang binds tree-sitter grammars to token-pass policies.
//
// Each supported language contributes a grammar and a tokens.Policy. The
// registry is keyed by canonical language name; file extensions map onto
// those names.
package lang

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/java"

	"github.com/jward/tokengraph/internal/tokens"
)

// Language is one registered grammar and its policy.
type Language struct {
	Name    string
	Grammar *sitter.Language
	Policy  tokens.Policy
}

// extToLanguage maps file extensions to canonical language names.
var extToLanguage = map[string]string{
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".cc":   "cpp",
	".cxx":  "cpp",
	".hpp":  "cpp",
	".hh":   "cpp",
	".java": "java",
	".cs":   "csharp",
}

// Lazily initialized on first lookup via sync.Once.
var (
	registry     map[string]*Language
	registryOnce sync.Once
)

func initRegistry() {
	registryOnce.Do(func() {
		registry = map[string]*Language{
			"c":      {Name: "c", Grammar: c.GetLanguage(), Policy: C()},
			"cpp":    {Name: "cpp", Grammar: cpp.GetLanguage(), Policy: CPP()},
			"java":   {Name: "java", Grammar: java.GetLanguage(), Policy: Java()},
			"csharp": {Name: "csharp", Grammar: csharp.GetLanguage(), Policy: CSharp()},
		}
	})
}

// ForFile returns the canonical language name for a file path based on its
// extension. Returns ("", false) if the extension is not recognized.
func ForFile(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	name, ok := extToLanguage[ext]
	return name, ok
}

// Lookup returns the registered language for a canonical name.
func Lookup(name string) (*Language, bool) {
	initRegistry()
	l, ok := registry[name]
	return l, ok
}

// Names returns the supported language names, sorted.
func Names() []string {
	initRegistry()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parse parses src with the named language's grammar. The caller owns the
// returned tree and must Close it.
func Parse(ctx context.Context, src []byte, name string) (*sitter.Tree, *Language, error) {
	l, ok := Lookup(name)
	if !ok {
		return nil, nil, fmt.Errorf("unsupported language %q", name)
	}
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(l.Grammar)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return tree, l, nil
}
