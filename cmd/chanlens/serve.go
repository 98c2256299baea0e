package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"chanlens/internal/analyzer"
	"chanlens/internal/scanner"
	"chanlens/internal/scheduler"
	"chanlens/internal/snapshot"
	"chanlens/internal/symbols"
	"chanlens/internal/web"
)

const serveCacheTTL = 30 * time.Second

type serveOptions struct {
	port    int
	refresh string
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the structure, breakout, upload and snapshot endpoints. With
--refresh (a cron spec with a seconds field) the configured watchlist is
refetched and saved as snapshots on schedule.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}

	cmd.Flags().IntVar(&opts.port, "port", 0, "listen port (default from config)")
	cmd.Flags().StringVar(&opts.refresh, "refresh", "", "cron spec for snapshot refresh, e.g. \"0 */15 * * * *\" (default from config)")
	return cmd
}

func runServe(opts *serveOptions) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if opts.port > 0 {
		a.cfg.Web.Port = opts.port
	}
	if opts.refresh != "" {
		a.cfg.Scheduler.Spec = opts.refresh
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := signalContext()
	defer cancel()

	// repeated structure/breakout requests for a window share one fetch
	providers := createProviders(a.cfg, a.log, serveCacheTTL)

	if a.cfg.Scheduler.Spec != "" {
		sched, err := newRefreshScheduler(ctx, a, store)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	srv, err := web.NewServer(a.cfg, providers, store, a.log)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(a.cfg.Web.Port)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		return srv.Shutdown(shutdownCtx)
	}
}

// newRefreshScheduler wires the watchlist scan into the snapshot store.
// It uses uncached providers so every run fetches fresh bars.
func newRefreshScheduler(ctx context.Context, a *app, store *snapshot.Store) (*scheduler.Scheduler, error) {
	sc := a.cfg.Scheduler

	syms, err := symbols.Resolve(sc.Universe, sc.Symbols)
	if err != nil {
		return nil, err
	}
	source := symbols.ProviderFor(symbols.Universe(sc.Universe))
	p, err := a.providers.Get(source)
	if err != nil {
		return nil, err
	}
	mode, err := analyzer.ParseClassification(a.cfg.Analysis.Classification)
	if err != nil {
		return nil, err
	}

	scan := scanner.NewScanner(p, scanner.Config{
		Interval: a.cfg.Analysis.Interval,
		Limit:    a.cfg.Analysis.Limit,
		Mode:     mode,
		Workers:  a.cfg.Scanner.Workers,
		Timeout:  a.cfg.Scanner.Timeout,
	}, a.log)

	sched := scheduler.New(ctx, scan, store, snapshot.Source(source), syms, a.log)
	if err := sched.Register(sc.Spec); err != nil {
		return nil, fmt.Errorf("refresh spec %q: %w", sc.Spec, err)
	}
	return sched, nil
}
