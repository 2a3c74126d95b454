package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/tokengraph"
	"github.com/jward/tokengraph/internal/config"
	"github.com/jward/tokengraph/internal/observability"
)

var (
	flagDB       string
	flagFormat   string
	flagConfig   string
	flagLogLevel string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

// cfg is the loaded configuration, with flag overrides applied.
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "tokengraph",
	Short:         "Scope-aware token graphs for C, C++, Java and C#",
	Long:          "tokengraph parses source files with tree-sitter, binds every identifier to the declaration it names, and stores the graphs in SQLite for queries and Risor scripts.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(flagFormat); err != nil {
			return err
		}
		return loadConfig(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: .tokengraph/index.db relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "TOML config file (default: .tokengraph/config.toml if present)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(tokensCmd)
	rootCmd.AddCommand(declsCmd)
	rootCmd.AddCommand(definitionCmd)
	rootCmd.AddCommand(referencesCmd)
	rootCmd.AddCommand(callsCmd)
	rootCmd.AddCommand(unresolvedCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reportCmd)
}

// loadConfig reads the config file named by --config, or the repo default
// when it exists, and applies persistent flag overrides.
func loadConfig(cmd *cobra.Command) error {
	path := flagConfig
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting cwd: %w", err)
		}
		candidate := filepath.Join(findRepoRoot(cwd), ".tokengraph", "config.toml")
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}

	if path == "" {
		cfg = config.Default()
	} else {
		loaded, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = flagLogLevel
	}
	if cmd.Flags().Changed("db") {
		cfg.DB.Path = flagDB
	}
	return nil
}

// newLogger builds the CLI's slog handler. Logs go to stderr so JSON output
// on stdout stays parseable.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

// openEngine creates an Engine for the database resolved from the config
// and flags. extra options are applied after the configured ones.
func openEngine(repoRoot string, mustExist bool, extra ...tokengraph.Option) (*tokengraph.Engine, string, error) {
	dbPath := resolveDBPath(repoRoot)
	if mustExist {
		if _, err := os.Stat(dbPath); errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("database not found: %s (run 'tokengraph index' first)", dbPath)
		}
	}

	logger, err := newLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, "", err
	}
	opts := []tokengraph.Option{
		tokengraph.WithLogger(logger),
		tokengraph.WithParallel(*cfg.Index.Parallel),
		tokengraph.WithWorkers(cfg.Index.Workers),
		tokengraph.WithNodeBudget(cfg.Index.NodeBudget),
		tokengraph.WithSkipDirs(cfg.Index.SkipDirs...),
	}
	if len(cfg.Index.Languages) > 0 {
		opts = append(opts, tokengraph.WithLanguages(cfg.Index.Languages...))
	}
	opts = append(opts, extra...)

	e, err := tokengraph.New(dbPath, opts...)
	if err != nil {
		return nil, "", fmt.Errorf("creating engine: %w", err)
	}
	return e, dbPath, nil
}

// openIndexedEngine opens the database for the repository around the
// working directory. It fails when nothing was indexed yet.
func openIndexedEngine(extra ...tokengraph.Option) (*tokengraph.Engine, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	e, _, err := openEngine(findRepoRoot(cwd), true, extra...)
	return e, err
}

var (
	flagForce      bool
	flagLanguages  string
	flagSerial     bool
	flagMetricsOut string
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a directory",
	Long:  "Parses every supported source file, builds its token graph, and writes the graphs to the SQLite database. Unchanged files are skipped.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "rebuild every file regardless of content hash")
	indexCmd.Flags().StringVar(&flagLanguages, "languages", "", "comma-separated language filter (e.g. c,java)")
	indexCmd.Flags().BoolVar(&flagSerial, "serial", false, "index files one at a time")
	indexCmd.Flags().StringVar(&flagMetricsOut, "metrics-out", "", "write Prometheus metrics to this textfile after indexing")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}
	repoRoot := findRepoRoot(targetDir)

	if flagLanguages != "" {
		langs := strings.Split(flagLanguages, ",")
		for i := range langs {
			langs[i] = strings.ToLower(strings.TrimSpace(langs[i]))
		}
		cfg.Index.Languages = langs
	}
	if flagSerial {
		serial := false
		cfg.Index.Parallel = &serial
	}

	engine, dbPath, err := openEngine(repoRoot, false, tokengraph.WithForce(flagForce))
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.IndexDirectory(context.Background(), targetDir); err != nil {
		return fmt.Errorf("indexing: %w", err)
	}

	metricsOut := flagMetricsOut
	if metricsOut == "" {
		metricsOut = cfg.Metrics.Textfile
	}
	if metricsOut != "" {
		if err := observability.WriteTextfile(metricsOut); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}

	fmt.Fprintf(os.Stderr, "Indexed %s in %s\n", targetDir, time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(os.Stderr, "Database: %s\n", dbPath)
	return nil
}

// resolveTargetDir returns the absolute path of the directory to index.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the configured database path, relative paths being
// taken from the repo root.
func resolveDBPath(repoRoot string) string {
	path := config.DefaultDBPath
	if cfg != nil && cfg.DB.Path != "" {
		path = cfg.DB.Path
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(repoRoot, path)
}
