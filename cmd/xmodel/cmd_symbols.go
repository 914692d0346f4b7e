package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lexcodex/xmodel/framework/model"
)

func newSymbolsCmd() *cobra.Command {
	var query string
	var exact bool
	cmd := &cobra.Command{
		Use:   "symbols [root]",
		Short: "List the symbols declared in a workspace",
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
			nodes := session.Index().FindSymbolsMatchingWord(query, exact)
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, n := range nodes {
				path := model.URIToPath(n.URI)
				if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
					path = rel
				}
				fmt.Fprintf(tw, "%s\t%s\t%s:%s\n", n.Name, n.Type.DisplayName(), path, n.Range.Start)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "Only symbols whose name starts with this prefix (case-insensitive)")
	cmd.Flags().BoolVar(&exact, "exact", false, "Match the query exactly and case-sensitively")
	return cmd
}
