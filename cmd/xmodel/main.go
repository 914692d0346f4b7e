package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lexcodex/xmodel/cmd/internal/workspacecfg"
	"github.com/lexcodex/xmodel/framework/workspace"
)

var (
	flagWorkspace string
	flagVerbose   bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "xmodel",
		Short:         "Language tooling for XML business-rule models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagWorkspace, "workspace", ".", "Workspace root (holds .xmodel.yaml)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log progress to stderr")

	root.AddCommand(newServeCmd(), newCheckCmd(), newSymbolsCmd(), newBrowseCmd(), newInitCmd())
	return root
}

// workspaceRoot returns the root named on the command line, or the
// --workspace flag.
func workspaceRoot(args []string) (string, error) {
	root := flagWorkspace
	if len(args) > 0 {
		root = args[0]
	}
	return filepath.Abs(root)
}

// sessionOptions tweak the loaded workspace settings before the session is
// built.
type sessionOptions struct {
	level          string
	maxDiagnostics int
	// logTo replaces the default log destination when no log file is set.
	logTo io.Writer
}

// openSession builds a workspace session from the configuration of root.
// The returned cleanup releases the index store and log file.
func openSession(cmd *cobra.Command, root string, opts sessionOptions) (*workspace.Session, *log.Logger, func(), error) {
	cfg, err := workspacecfg.Load(root)
	if err != nil {
		return nil, nil, nil, err
	}
	if opts.level != "" {
		cfg.DetailLevel = opts.level
	}
	if opts.maxDiagnostics != 0 {
		cfg.MaxDiagnostics = opts.maxDiagnostics
	}
	sessionCfg, err := cfg.SessionConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	fallback := opts.logTo
	if fallback == nil {
		fallback = io.Discard
		if flagVerbose {
			fallback = cmd.ErrOrStderr()
		}
	}
	logger, logCloser, err := cfg.Logger(fallback)
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := cfg.OpenStore()
	if err != nil {
		_ = logCloser.Close()
		return nil, nil, nil, err
	}
	session := workspace.NewSession(sessionCfg, store, logger)
	cleanup := func() {
		if err := session.Shutdown(); err != nil {
			logger.Printf("shutdown: %v", err)
		}
		_ = logCloser.Close()
	}
	return session, logger, cleanup, nil
}
