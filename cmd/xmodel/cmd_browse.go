package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/lexcodex/xmodel/app/browse"
	"github.com/lexcodex/xmodel/framework/workspace"
)

func newBrowseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse [root]",
		Short: "Check a workspace and browse the diagnostics interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := workspaceRoot(args)
			if err != nil {
				return err
			}
			session, _, cleanup, err := openSession(cmd, root, sessionOptions{})
			if err != nil {
				return err
			}
			defer cleanup()
			if _, err := session.Load(cmd.Context(), root); err != nil {
				return err
			}
			diags, err := session.CheckAll(cmd.Context())
			truncated := errors.Is(err, workspace.ErrDiagnosticCap)
			if err != nil && !truncated {
				return err
			}
			return browse.Run(cmd.Context(), browse.New(root, diags, session.Text, truncated))
		},
	}
	return cmd
}
