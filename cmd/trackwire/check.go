package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/trackwire/trackwire/internal/apierr"
	"github.com/trackwire/trackwire/internal/config"
	"github.com/trackwire/trackwire/internal/transport"
)

var checkTimeout time.Duration

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe all configured backends",
	Long: `Issues one request against each configured backend through the full
transport stack (auth, retries, error translation) and reports reachability.
Exits non-zero if any backend fails.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 30*time.Second, "Per-backend probe timeout")
	rootCmd.AddCommand(checkCmd)
}

type checkResult struct {
	name    string
	elapsed time.Duration
	err     error
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if len(cfg.Backends) == 0 {
		return fmt.Errorf("no backends configured in %s", configPath)
	}

	var mu sync.Mutex
	results := make(map[string]checkResult, len(cfg.Backends))

	g, ctx := errgroup.WithContext(cmd.Context())
	for i := range cfg.Backends {
		backend := cfg.Backends[i]
		g.Go(func() error {
			res := probeBackend(ctx, backend)
			mu.Lock()
			results[backend.Name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for i := range cfg.Backends {
		res := results[cfg.Backends[i].Name]
		if res.err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "FAIL  %-20s %v\n", res.name, res.err)
			continue
		}
		fmt.Printf("ok    %-20s %s\n", res.name, res.elapsed.Round(time.Millisecond))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d backends unreachable", failed, len(cfg.Backends))
	}
	return nil
}

func probeBackend(ctx context.Context, backend config.Backend) checkResult {
	tcfg := backend.TransportConfig()
	// A probe should fail fast, not walk the whole retry schedule.
	tcfg.Retry.MaxAttempts = 1

	exec, err := transport.NewExecutor(tcfg, &http.Client{Timeout: checkTimeout})
	if err != nil {
		return checkResult{name: backend.Name, err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	_, err = exec.Do(ctx, transport.Request{Method: http.MethodGet, Path: "/"})
	if err != nil && respondedAnyway(err) {
		// Any HTTP status at all proves the backend is up; the probe path is
		// not expected to be a real resource.
		err = nil
	}
	return checkResult{name: backend.Name, elapsed: time.Since(start), err: err}
}

func respondedAnyway(err error) bool {
	var authErr *apierr.AuthenticationError
	var nfErr *apierr.NotFoundError
	var valErr *apierr.ValidationError
	var rlErr *apierr.RateLimitError
	if errors.As(err, &authErr) || errors.As(err, &nfErr) ||
		errors.As(err, &valErr) || errors.As(err, &rlErr) {
		return true
	}
	var apiErr *apierr.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode != 0
}
