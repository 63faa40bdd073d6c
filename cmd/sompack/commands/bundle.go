package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.trai.ch/sompack/internal/core/domain"
	"go.trai.ch/zerr"
)

func (c *CLI) newBundleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundle <entry>",
		Short: "Bundle a module and its dependency closure into one file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, output, err := c.bundleOptions(cmd, args[0])
			if err != nil {
				return err
			}

			artifact, err := c.app.Bundle(cmd.Context(), opts)
			if err != nil {
				return err
			}

			if output == "" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), artifact.Code)
				return err
			}
			return writeArtifact(output, artifact)
		},
	}

	cmd.Flags().StringP("output", "o", "", "Write the bundle to this file instead of stdout")
	cmd.Flags().StringP("format", "f", "", "Bundle format")
	cmd.Flags().Bool("minify", false, "Minify the bundled output")
	cmd.Flags().Bool("source-map", false, "Emit a source map next to the bundle")
	cmd.Flags().Bool("inline-sources", false, "Embed original sources in the source map")
	cmd.Flags().StringSlice("externals", nil, "Packages provided at runtime, left unbundled")
	cmd.Flags().Bool("force-format", false, "Emit the supported format even when an unsupported one was requested")
	return cmd
}

// bundleOptions merges flags over the configured bundle defaults. A flag
// left untouched falls back to the configuration value.
func (c *CLI) bundleOptions(cmd *cobra.Command, entry string) (domain.BundleOptions, string, error) {
	flags := cmd.Flags()

	opts := domain.BundleOptions{
		Entry:         entry,
		Minify:        c.cfg.Bundle.Minify,
		SourceMaps:    c.cfg.Bundle.SourceMaps,
		InlineSources: c.cfg.Bundle.InlineSources,
	}
	output := c.cfg.Bundle.Output

	opts.Format, _ = flags.GetString("format")
	if flags.Changed("output") {
		output, _ = flags.GetString("output")
	}
	if flags.Changed("minify") {
		opts.Minify, _ = flags.GetBool("minify")
	}
	if flags.Changed("source-map") {
		opts.SourceMaps, _ = flags.GetBool("source-map")
	}
	if flags.Changed("inline-sources") {
		opts.InlineSources, _ = flags.GetBool("inline-sources")
	}
	opts.ForceFormat, _ = flags.GetBool("force-format")
	opts.Externals, _ = flags.GetStringSlice("externals")
	return opts, output, nil
}

// writeArtifact writes the bundle and, when present, a sibling .map file
// referenced by a sourceMappingURL pragma.
func writeArtifact(output string, artifact domain.BundleArtifact) error {
	code := artifact.Code
	if artifact.Map != "" {
		mapPath := output + ".map"
		if err := os.WriteFile(mapPath, []byte(artifact.Map), 0o644); err != nil {
			return zerr.Wrap(err, "failed to write source map")
		}
		code += "//# sourceMappingURL=" + filepath.Base(mapPath) + "\n"
	}
	if err := os.WriteFile(output, []byte(code), 0o644); err != nil {
		return zerr.Wrap(err, "failed to write bundle")
	}
	return nil
}
