package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/tokengraph"
)

var runCmd = &cobra.Command{
	Use:   "run <script> [name=value ...]",
	Short: "Run a Risor script against the index",
	Long: "Runs a Risor script from disk with the index bridges (files, tokens_by_file, db_query, ...) " +
		"and the parse/analyze builtins in scope. Extra name=value arguments become string globals.",
	Args: cobra.MinimumNArgs(1),
	RunE: runScript,
}

func runScript(cmd *cobra.Command, args []string) error {
	script, err := resolveFilePath(args[0])
	if err != nil {
		return err
	}
	extras, err := parseScriptArgs(args[1:])
	if err != nil {
		return err
	}

	e, err := openIndexedEngine(tokengraph.WithScriptsDir(filepath.Dir(script)))
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.RunScript(context.Background(), filepath.Base(script), extras); err != nil {
		return fmt.Errorf("running %s: %w", args[0], err)
	}
	return nil
}

// parseScriptArgs turns name=value pairs into script globals.
func parseScriptArgs(args []string) (map[string]any, error) {
	extras := make(map[string]any, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid script argument %q: want name=value", arg)
		}
		extras[name] = value
	}
	return extras, nil
}

var flagReportDir string

var reportCmd = &cobra.Command{
	Use:   "report <name>",
	Short: "Run a report script and print the rows it emits",
	Long:  "Runs report/<name>.risor. Bundled reports: unresolved, calls.",
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&flagReportDir, "scripts-dir", "", "load report scripts from disk path instead of embedded")
}

func runReport(cmd *cobra.Command, args []string) error {
	var opts []tokengraph.Option
	if flagReportDir != "" {
		opts = append(opts, tokengraph.WithScriptsDir(flagReportDir))
	}
	e, err := openIndexedEngine(opts...)
	if err != nil {
		return outputError("report", err)
	}
	defer e.Close()

	rows, err := e.Report(context.Background(), args[0])
	if err != nil {
		return outputError("report", err)
	}
	return outputResult(listResult("report", rows))
}
