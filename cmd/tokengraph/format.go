package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
)

// formatLocationsText formats CLILocation results as "file:line:col" lines.
func formatLocationsText(w io.Writer, locs []CLILocation) {
	for _, loc := range locs {
		fmt.Fprintf(w, "%s:%d:%d\t%s\n", loc.File, loc.StartLine, loc.StartCol, loc.Text)
	}
}

// formatTokensText formats CLIToken results as aligned columns.
func formatTokensText(w io.Writer, toks []CLIToken) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tTEXT\tKIND\tLINE\tCOL\tSCOPE")
	for _, t := range toks {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\n",
			t.Index, t.Text, t.Kind, t.StartLine, t.StartCol, scopeText(t.Scope))
	}
	tw.Flush()
}

// formatDeclarationsText formats CLIDeclaration results as aligned columns.
func formatDeclarationsText(w io.Writer, decls []CLIDeclaration) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tNAME\tTYPE\tLINE\tCOL")
	for _, d := range decls {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\n", d.Index, d.Name, d.Type, d.StartLine, d.StartCol)
	}
	tw.Flush()
}

// formatSummaryText formats CLISummary as readable text.
func formatSummaryText(w io.Writer, s CLISummary) {
	fmt.Fprintln(w, "Index Summary")
	fmt.Fprintln(w, "=============")
	fmt.Fprintf(w, "Files:          %d\n", s.Files)
	fmt.Fprintf(w, "Tokens:         %d\n", s.Tokens)
	fmt.Fprintf(w, "Declarations:   %d\n", s.Declarations)
	fmt.Fprintf(w, "Bindings:       %d\n", s.Bindings)
	fmt.Fprintf(w, "Method targets: %d\n", s.MethodTargets)
	fmt.Fprintf(w, "Calls:          %d\n", s.Calls)

	if len(s.Languages) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Languages:")
		names := make([]string, 0, len(s.Languages))
		for name := range s.Languages {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %s: %d files\n", name, s.Languages[name])
		}
	}
}

// formatRowsText formats report rows as a table whose columns are the
// sorted union of the row keys.
func formatRowsText(w io.Writer, rows []map[string]any) {
	if len(rows) == 0 {
		return
	}
	seen := make(map[string]bool)
	var cols []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(cols, "\t")))
	for _, row := range rows {
		cells := make([]string, len(cols))
		for i, c := range cols {
			if v, ok := row[c]; ok && v != nil {
				cells[i] = fmt.Sprint(v)
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
}

func scopeText(scope []int) string {
	parts := make([]string, len(scope))
	for i, id := range scope {
		parts[i] = fmt.Sprint(id)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLILocation:
		formatLocationsText(w, v)
	case []CLIToken:
		formatTokensText(w, v)
	case []CLIDeclaration:
		formatDeclarationsText(w, v)
	case CLISummary:
		formatSummaryText(w, v)
	case []map[string]any:
		formatRowsText(w, v)
	case nil:
		// No output for nil results.
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
