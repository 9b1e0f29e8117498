package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/trackwire/trackwire/internal/config"
	"github.com/trackwire/trackwire/internal/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook receiver",
	Long: `Starts the HTTP webhook receiver. Each configured backend gets an
endpoint at /hooks/{kind}; deliveries are signature-verified and normalized
into canonical events, which are printed to stdout as JSON lines.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	receiver := webhook.NewReceiver(webhook.ReceiverConfig{
		Secrets: cfg.WebhookSecrets(),
		Handler: printEvent,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- receiver.Start(cfg.Listen)
	}()
	fmt.Fprintf(os.Stderr, "listening on %s (backends: %v)\n", cfg.Listen, webhook.List())

	select {
	case err := <-errCh:
		return fmt.Errorf("webhook receiver: %w", err)
	case <-cmd.Context().Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return receiver.Shutdown(ctx)
}

func printEvent(_ context.Context, backend string, event *webhook.Event) error {
	line := struct {
		Backend string `json:"backend"`
		*webhook.Event
	}{Backend: backend, Event: event}
	return json.NewEncoder(os.Stdout).Encode(line)
}
