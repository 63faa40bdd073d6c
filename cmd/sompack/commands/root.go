// Package commands implements the CLI commands for sompack.
package commands

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/sompack/internal/adapters/config"
	"go.trai.ch/sompack/internal/app"
	"go.trai.ch/sompack/internal/build"
	"go.trai.ch/sompack/internal/core/ports"
)

// CLI represents the command line interface for sompack.
type CLI struct {
	app     *app.App
	logger  ports.Logger
	cfg     *config.Config
	rootCmd *cobra.Command
}

// New creates a new CLI instance over the initialized components.
func New(components *app.Components) *CLI {
	rootCmd := &cobra.Command{
		Use:           "sompack",
		Short:         "A module bundler for .som sources",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	// Parsed again in main before the dependency graph executes; declared
	// here so they show up in help and are accepted by every subcommand.
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().String("circular-policy", "", "Cycle handling: error, warn or ignore")
	rootCmd.PersistentFlags().Duration("timeout", 0, "Deadline per load or bundle operation")
	rootCmd.PersistentFlags().Int("parallelism", 0, "Maximum module loads in flight")
	rootCmd.PersistentFlags().StringSlice("externals", nil, "Packages provided at runtime, left unbundled")

	c := &CLI{
		app:     components.App,
		logger:  components.Logger,
		cfg:     components.Config,
		rootCmd: rootCmd,
	}

	rootCmd.AddCommand(c.newBundleCmd())
	rootCmd.AddCommand(c.newModuleInfoCmd())
	rootCmd.AddCommand(c.newResolveCmd())
	rootCmd.AddCommand(c.newServeCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput redirects command output. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}
