package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/trackwire/trackwire/internal/telemetry"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	configPath  string
	verboseFlag bool

	rootCtx    context.Context
	rootCancel context.CancelFunc
)

var rootCmd = &cobra.Command{
	Use:   "trackwire",
	Short: "Transport and normalization layer for project-management backends",
	Long: `trackwire talks to heterogeneous project-management backends (GitHub,
GitLab, Jira, Linear-style GraphQL APIs) through one consistent transport:
retries with exponential backoff, a shared error taxonomy, pagination,
status normalization, and webhook verification.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "trackwire.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose output")
}

func main() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer rootCancel()

	if err := telemetry.Init(rootCtx, "trackwire", Version); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: telemetry init failed: %v\n", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetry.Shutdown(ctx)
	}()

	if err := rootCmd.ExecuteContext(rootCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
