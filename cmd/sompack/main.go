// Package main is the entry point for the sompack CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/grindlemire/graft"
	"github.com/spf13/pflag"
	"go.trai.ch/sompack/cmd/sompack/commands"
	"go.trai.ch/sompack/internal/adapters/config"
	"go.trai.ch/sompack/internal/app"
	"go.trai.ch/sompack/internal/core/domain"
	_ "go.trai.ch/sompack/internal/wiring"
)

const (
	exitError    = 1
	exitCritical = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// The config node runs while the dependency graph executes, before
	// cobra parses anything, so config-affecting flags are picked out up
	// front.
	flags := parseConfigFlags(args)
	if path, _ := flags.GetString("config"); path != "" {
		config.SetPath(path)
	}
	config.SetFlags(flags)

	components, _, err := graft.ExecuteFor[*app.Components](ctx)
	if err != nil {
		// Logger is not available if initialization failed.
		_, _ = fmt.Fprintf(os.Stderr, "%+v\n", err)
		return exitCritical
	}

	cli := commands.New(components)
	cli.SetArgs(args)
	if err := cli.Execute(ctx); err != nil {
		// zerr prints a report with stack trace and metadata under %+v.
		_, _ = fmt.Fprintf(os.Stderr, "%+v\n", err)
		return exitCode(err)
	}
	return 0
}

// parseConfigFlags pre-parses the flags that feed the configuration layer,
// tolerating every other flag the real command set defines.
func parseConfigFlags(args []string) *pflag.FlagSet {
	flags := pflag.NewFlagSet("sompack", pflag.ContinueOnError)
	flags.ParseErrorsWhitelist.UnknownFlags = true
	flags.SetOutput(io.Discard)
	flags.Usage = func() {}

	flags.StringP("config", "c", "", "")
	flags.String("circular-policy", "", "")
	flags.Duration("timeout", 0, "")
	flags.Int("parallelism", 0, "")
	flags.StringSlice("externals", nil, "")
	_ = flags.Parse(args)
	return flags
}

// exitCode maps system-level failures to a distinct exit code so callers
// can tell a broken invocation from a broken environment.
func exitCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrBreakerOpen),
		errors.Is(err, domain.ErrResourceExhausted),
		errors.Is(err, domain.ErrTimeout),
		errors.Is(err, domain.ErrShutdown):
		return exitCritical
	}
	return exitError
}
