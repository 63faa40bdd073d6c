package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (c *CLI) newModuleInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "module-info <entry>",
		Short: "Load a module closure and inspect the dependency graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := c.app.LoadModule(cmd.Context(), args[0], "")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if graph, _ := cmd.Flags().GetBool("graph"); graph {
				return yaml.NewEncoder(out).Encode(c.app.DependencyGraph())
			}
			if stats, _ := cmd.Flags().GetBool("stats"); stats {
				return yaml.NewEncoder(out).Encode(c.app.Statistics())
			}
			if circular, _ := cmd.Flags().GetBool("circular"); circular {
				cycles := c.app.CircularDependencies()
				if len(cycles) == 0 {
					_, err = fmt.Fprintln(out, "no circular dependencies")
					return err
				}
				return yaml.NewEncoder(out).Encode(cycles)
			}

			_, err = fmt.Fprintf(out, "module: %s\nlevel: %d\ndependencies: %d\nerrors: %d\nwarnings: %d\n",
				rec.ID, rec.Level, len(rec.Dependencies), len(rec.Output.Errors), len(rec.Output.Warnings))
			return err
		},
	}

	cmd.Flags().Bool("graph", false, "Print the dependency graph as YAML")
	cmd.Flags().Bool("stats", false, "Print dependency graph statistics")
	cmd.Flags().Bool("circular", false, "Print circular dependencies, if any")
	return cmd
}
