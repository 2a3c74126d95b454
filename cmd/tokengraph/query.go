package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jward/tokengraph"
)

// --- Helpers ---

// resolveFilePath converts a file argument to an absolute path.
// If the path is already absolute, it's returned as-is.
// Otherwise, it's resolved relative to the current working directory.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}

// parseIntArg parses a positional argument as an integer with a clear error.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be non-negative", name, value)
	}
	return n, nil
}

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(os.Stdout, result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

// listResult wraps a slice result with its count.
func listResult[T any](command string, items []T) CLIResult {
	n := len(items)
	return CLIResult{Command: command, Results: items, TotalCount: &n}
}

// withFile opens the index, resolves the file argument and hands both to fn.
// Errors are reported in the envelope of command.
func withFile(command, file string, fn func(q *tokengraph.QueryBuilder, path string) (CLIResult, error)) error {
	e, err := openIndexedEngine()
	if err != nil {
		return outputError(command, err)
	}
	defer e.Close()

	path, err := resolveFilePath(file)
	if err != nil {
		return outputError(command, err)
	}
	q := e.Query()
	f, err := q.File(path)
	if err != nil {
		return outputError(command, err)
	}
	if f == nil {
		return outputError(command, fmt.Errorf("file not indexed: %s", path))
	}
	result, err := fn(q, path)
	if err != nil {
		return outputError(command, err)
	}
	return outputResult(result)
}

// --- File Commands ---

var tokensCmd = &cobra.Command{
	Use:   "tokens <file>",
	Short: "List a file's tokens in document order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFile("tokens", args[0], func(q *tokengraph.QueryBuilder, path string) (CLIResult, error) {
			toks, err := q.Tokens(path)
			if err != nil {
				return CLIResult{}, err
			}
			return listResult("tokens", tokensToCLI(toks)), nil
		})
	},
}

var declsCmd = &cobra.Command{
	Use:   "decls <file>",
	Short: "List a file's declarations with their declared types",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFile("decls", args[0], func(q *tokengraph.QueryBuilder, path string) (CLIResult, error) {
			toks, err := q.Tokens(path)
			if err != nil {
				return CLIResult{}, err
			}
			byIndex := make(map[int]*tokengraph.Token, len(toks))
			for _, tok := range toks {
				byIndex[tok.TokenIndex] = tok
			}
			decls, err := q.Declarations(path)
			if err != nil {
				return CLIResult{}, err
			}
			out := make([]CLIDeclaration, 0, len(decls))
			for _, d := range decls {
				cd := CLIDeclaration{Index: d.TokenIndex, Name: d.Name, Type: d.TypeExpr}
				if tok, ok := byIndex[d.TokenIndex]; ok {
					cd.StartLine, cd.StartCol = tok.StartLine, tok.StartCol
				}
				out = append(out, cd)
			}
			return listResult("decls", out), nil
		})
	},
}

var callsCmd = &cobra.Command{
	Use:   "calls <file>",
	Short: "List the tokens that are invoked (--targets for every callee position)",
	Args:  cobra.ExactArgs(1),
	RunE:  runCalls,
}

var flagTargets bool

func init() {
	callsCmd.Flags().BoolVar(&flagTargets, "targets", false, "list method targets, invoked or not")
}

func runCalls(cmd *cobra.Command, args []string) error {
	return withFile("calls", args[0], func(q *tokengraph.QueryBuilder, path string) (CLIResult, error) {
		lookup := q.Calls
		if flagTargets {
			lookup = q.MethodTargets
		}
		toks, err := lookup(path)
		if err != nil {
			return CLIResult{}, err
		}
		return listResult("calls", tokensToCLI(toks)), nil
	})
}

var unresolvedCmd = &cobra.Command{
	Use:   "unresolved <file>",
	Short: "List identifiers that bind to no declaration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFile("unresolved", args[0], func(q *tokengraph.QueryBuilder, path string) (CLIResult, error) {
			toks, err := q.Unresolved(path)
			if err != nil {
				return CLIResult{}, err
			}
			return listResult("unresolved", tokensToCLI(toks)), nil
		})
	},
}

// --- Position-Based Commands ---

var definitionCmd = &cobra.Command{
	Use:   "definition <file> <line> <col>",
	Short: "Find the declaration the token at a position binds to",
	Long:  "Find the declaration the token at a position binds to. Lines and columns are 0-based.",
	Args:  cobra.ExactArgs(3),
	RunE:  runDefinition,
}

func runDefinition(cmd *cobra.Command, args []string) error {
	line, err := parseIntArg(args[1], "line")
	if err != nil {
		return outputError("definition", err)
	}
	col, err := parseIntArg(args[2], "col")
	if err != nil {
		return outputError("definition", err)
	}
	return withFile("definition", args[0], func(q *tokengraph.QueryBuilder, path string) (CLIResult, error) {
		locs, err := q.DefinitionAt(path, line, col)
		if err != nil {
			return CLIResult{}, err
		}
		return listResult("definition", locationsToCLI(locs)), nil
	})
}

var referencesCmd = &cobra.Command{
	Use:   "references <file> <token>",
	Short: "List the references bound to a declaration token",
	Long:  "List the references bound to the declaration with the given token index (see 'decls').",
	Args:  cobra.ExactArgs(2),
	RunE:  runReferences,
}

func runReferences(cmd *cobra.Command, args []string) error {
	index, err := parseIntArg(args[1], "token")
	if err != nil {
		return outputError("references", err)
	}
	return withFile("references", args[0], func(q *tokengraph.QueryBuilder, path string) (CLIResult, error) {
		locs, err := q.ReferencesTo(path, index)
		if err != nil {
			return CLIResult{}, err
		}
		return listResult("references", locationsToCLI(locs)), nil
	})
}

// --- Index-Wide Commands ---

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Count files, tokens, declarations, bindings and calls",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openIndexedEngine()
		if err != nil {
			return outputError("summary", err)
		}
		defer e.Close()

		s, err := e.Query().Summary()
		if err != nil {
			return outputError("summary", err)
		}
		return outputResult(CLIResult{Command: "summary", Results: summaryToCLI(s)})
	},
}
