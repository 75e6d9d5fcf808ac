// SPDX-License-Identifier: MPL-2.0

// Package cmd is peru's command-line entry point.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/peru/peru/internal/app"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
)

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// newRootCommand returns the peru command. Cobra only provides the process
// plumbing; flag parsing is disabled because the usage grammar owns argv.
func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:                "peru",
		Short:              "Fetch dependencies into your project",
		DisableFlagParsing: true,
		Args:               cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app.New(app.Commands(), newContextFactory(stdout, stderr), stdout, "peru "+getVersionString())
			return a.Run(cmd.Context(), args)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root
}

// Main runs peru with the process arguments and returns its exit code.
func Main() int {
	root := newRootCommand(os.Stdout, os.Stderr)
	root.SetArgs(os.Args[1:])
	err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(getVersionString()),
		fang.WithoutManpage(),
		fang.WithoutCompletions(),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(printError),
	)
	return exitCode(err)
}

// Execute runs peru and exits the process. It is called by main.main().
func Execute() {
	os.Exit(Main())
}
