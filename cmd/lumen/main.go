// Package main provides the Lumen command-line interface.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

const version = "v0.1.0-dev"

// NewCLI builds the root command.
func NewCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "lumen",
		Short:         "GPU expression engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if os.Getenv("LUMEN_DEBUG") != "" {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "List available compute devices",
		Args:  cobra.ExactArgs(0),
		RunE:  DevicesHandler,
	}

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Run the reduction correctness suite on every device",
		Args:  cobra.ExactArgs(0),
		RunE:  VerifyHandler,
	}
	verifyCmd.Flags().IntP("size", "n", 10007, "vector length")
	verifyCmd.Flags().Int64("seed", 42, "random seed for test data")

	rootCmd.AddCommand(devicesCmd, verifyCmd)
	return rootCmd
}

func main() {
	if err := NewCLI().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
