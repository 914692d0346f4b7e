package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lexcodex/xmodel/app/browse"
	"github.com/lexcodex/xmodel/framework/model"
	"github.com/lexcodex/xmodel/framework/workspace"
)

// errFoundErrors makes the process exit non-zero when a check reports
// error-severity diagnostics.
var errFoundErrors = errors.New("check found errors")

// checkReport is the JSON shape of `xmodel check --format json`.
type checkReport struct {
	Files       int                `json:"files"`
	Diagnostics []model.Diagnostic `json:"diagnostics"`
	Truncated   bool               `json:"truncated,omitempty"`
}

func newCheckCmd() *cobra.Command {
	var level string
	var maxDiagnostics int
	var format string
	cmd := &cobra.Command{
		Use:   "check [root]",
		Short: "Parse, index and check every model file of a workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("unknown format %q (want text or json)", format)
			}
			root, err := workspaceRoot(args)
			if err != nil {
				return err
			}
			session, _, cleanup, err := openSession(cmd, root, sessionOptions{level: level, maxDiagnostics: maxDiagnostics})
			if err != nil {
				return err
			}
			defer cleanup()

			files, err := session.Load(cmd.Context(), root)
			if err != nil {
				return err
			}
			diags, err := session.CheckAll(cmd.Context())
			truncated := errors.Is(err, workspace.ErrDiagnosticCap)
			if err != nil && !truncated {
				return err
			}
			report := checkReport{Files: files, Diagnostics: diags, Truncated: truncated}
			if report.Diagnostics == nil {
				report.Diagnostics = []model.Diagnostic{}
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				writeText(out, root, report, isTerminal(out))
			}
			if model.CountBySeverity(diags)[model.SeverityError] > 0 {
				return errFoundErrors
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&level, "level", "", "Detail level (declarations, references, subreferences, all)")
	cmd.Flags().IntVar(&maxDiagnostics, "max", 0, "Stop after this many diagnostics (0 keeps the configured cap)")
	cmd.Flags().StringVar(&format, "format", "text", "Output format (text, json)")
	return cmd
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// writeText prints one line per diagnostic followed by a summary.
func writeText(w io.Writer, root string, report checkReport, color bool) {
	render := func(style lipgloss.Style, s string) string {
		if !color {
			return s
		}
		return style.Render(s)
	}
	for _, d := range report.Diagnostics {
		path := model.URIToPath(d.URI)
		if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
			path = rel
		}
		fmt.Fprintf(w, "%s:%s: %s %s: %s\n",
			path, d.Range.Start, render(browse.SeverityStyle(d.Severity), d.Severity.String()), d.Code, d.Message)
	}
	counts := model.CountBySeverity(report.Diagnostics)
	summary := fmt.Sprintf("%d files checked: %d errors, %d warnings, %d information",
		report.Files, counts[model.SeverityError], counts[model.SeverityWarning], counts[model.SeverityInformation])
	if report.Truncated {
		summary += " (truncated)"
	}
	fmt.Fprintln(w, summary)
}
