package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/recera/mxc/internal/compiler"
)

var (
	commit = "dev"
	date   = "unknown"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "mxc",
		Short: "mxc - MXML component compiler",
		Long: `mxc compiles MXML-style documents with embedded ActionScript into ES modules:
a JSON component tree literal and a JavaScript class built from the script block.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", compiler.Version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to mxc.yaml (defaults to ./mxc.yaml)")

	rootCmd.AddCommand(newBuildCommand(&configPath))
	rootCmd.AddCommand(newCheckCommand(&configPath))
	rootCmd.AddCommand(newWatchCommand(&configPath))
	rootCmd.AddCommand(newServeCommand(&configPath))
	rootCmd.AddCommand(newConfigCommand(&configPath))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
