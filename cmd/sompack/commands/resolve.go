package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *CLI) newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <specifier>",
		Short: "Resolve a specifier to its canonical module path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, _ := cmd.Flags().GetString("from")
			resolved, err := c.app.Resolve(args[0], from)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if resolved.IsExternal {
				_, err = fmt.Fprintf(out, "%s (external package %s)\n", resolved.Path, resolved.PackageName)
				return err
			}
			_, err = fmt.Fprintln(out, resolved.Path)
			return err
		},
	}

	cmd.Flags().String("from", "", "Resolve as written in this file")
	return cmd
}
