package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lexcodex/xmodel/server"
)

// stdio joins the process streams into the connection the language server
// reads from and writes to.
type stdio struct{}

func (stdio) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdio) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdio) Close() error {
	return errors.Join(os.Stdin.Close(), os.Stdout.Close())
}

func newServeCmd() *cobra.Command {
	var httpAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the language server on stdio",
		Long: "Run the language server over stdin/stdout. The workspace is loaded from the\n" +
			"root the editor sends in initialize. With --http the same session is also\n" +
			"exposed through the JSON API.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := workspaceRoot(nil)
			if err != nil {
				return err
			}
			// stdout carries the protocol, so logs always go to stderr.
			session, logger, cleanup, err := openSession(cmd, root, sessionOptions{logTo: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if httpAddr != "" {
				api := &server.APIServer{Session: session, Logger: logger}
				go func() {
					if err := api.ServeContext(ctx, httpAddr); err != nil && !errors.Is(err, context.Canceled) {
						logger.Printf("api: %v", err)
					}
				}()
			}
			lsp := server.NewLSPServer(session, logger)
			err = lsp.Serve(ctx, stdio{})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "Also serve the JSON API on this address (e.g. :8080)")
	return cmd
}
