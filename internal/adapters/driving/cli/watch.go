package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sous/internal/core/ports/driving"
	"github.com/custodia-labs/sous/internal/logger"
)

var watchMetricsAddr string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-ingest recipes as the object store changes",
	Long: `Subscribes to the object store's change notifications and reconciles each
written or removed markdown object as it arrives. Runs until interrupted.

Prometheus metrics are served at /metrics on the configured metrics address
while watching. --metrics-addr overrides it.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "serve /metrics on this address (default from config)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if watchService == nil {
		return errors.New("watch not supported: object store has no change notifications")
	}

	g, ctx := errgroup.WithContext(cmd.Context())

	addr := watchMetricsAddr
	if addr == "" {
		addr = metricsAddr
	}
	if addr != "" && metricsHandler != nil {
		srv := newMetricsServer(addr, metricsHandler)
		cmd.Printf("Serving metrics on http://%s/metrics\n", addr)
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	cmd.Println("Watching for changes (Ctrl+C to stop)...")
	g.Go(func() error {
		err := watchService.Run(ctx, func(ev driving.WatchEvent) {
			printWatchEvent(cmd, ev)
		})
		if err != nil {
			return err
		}
		// Stops the metrics server when the event stream ends on its own.
		return errWatchEnded
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errWatchEnded) {
		return err
	}
	return nil
}

var errWatchEnded = errors.New("watch ended")

func printWatchEvent(cmd *cobra.Command, ev driving.WatchEvent) {
	action := "updated"
	if ev.Removed {
		action = "removed"
	}
	if ev.Err != nil {
		logger.Warn("watch: %s %s failed: %v", action, ev.ObjectName, ev.Err)
		cmd.Printf("  ! %s %s: %v\n", action, ev.ObjectName, ev.Err)
		return
	}
	cmd.Printf("  %s %s\n", action, ev.ObjectName)
}

func newMetricsServer(addr string, h http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
