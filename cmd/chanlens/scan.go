package main

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"chanlens/internal/analyzer"
	"chanlens/internal/scanner"
	"chanlens/internal/symbols"
)

type scanOptions struct {
	universe   string
	symbolList string
	source     string
	interval   string
	limit      int
	workers    int
}

func newScanCmd() *cobra.Command {
	opts := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Summarize structure across a watchlist",
		Long: `Fetch every symbol of a universe (crypto-majors, crypto-test, us-megacap)
or an explicit list and print the latest segment, zone and event per symbol.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.universe, "universe", "crypto-majors", "watchlist: crypto-majors, crypto-test, us-megacap")
	f.StringVar(&opts.symbolList, "symbols", "", "comma-separated symbols (overrides --universe)")
	f.StringVar(&opts.source, "source", "", "provider (default: binance for crypto universes, yahoo for us-megacap)")
	f.StringVar(&opts.interval, "interval", "", "kline interval (default from config)")
	f.IntVar(&opts.limit, "limit", 0, "bars per symbol (default from config)")
	f.IntVar(&opts.workers, "workers", 0, "parallel workers (default from config)")

	return cmd
}

func runScan(opts *scanOptions) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	var explicit []string
	if opts.symbolList != "" {
		explicit, err = symbols.ParseList(opts.symbolList)
		if err != nil {
			return err
		}
	}
	syms, err := symbols.Resolve(opts.universe, explicit)
	if err != nil {
		return err
	}
	if len(syms) == 0 {
		return fmt.Errorf("no symbols to scan")
	}

	source := opts.source
	if source == "" {
		source = symbols.ProviderFor(symbols.Universe(opts.universe))
	}
	p, err := a.providers.Get(source)
	if err != nil {
		return err
	}

	cfg := scanner.Config{
		Interval: a.cfg.Analysis.Interval,
		Limit:    a.cfg.Analysis.Limit,
		Workers:  a.cfg.Scanner.Workers,
		Timeout:  a.cfg.Scanner.Timeout,
	}
	if opts.interval != "" {
		cfg.Interval = opts.interval
	}
	if opts.limit > 0 {
		cfg.Limit = opts.limit
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}
	cfg.Mode, err = analyzer.ParseClassification(a.cfg.Analysis.Classification)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("Scanning %d symbols on %s (%s, %d bars)...\n\n", len(syms), p.Name(), cfg.Interval, cfg.Limit)

	s := scanner.NewScanner(p, cfg, a.log)

	bar := progressbar.NewOptions(len(syms),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Scanning"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]█[reset]",
			SaucerHead:    "[green]█[reset]",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	s.SetProgressCallback(func(scanned, total int) {
		bar.Set(scanned)
	})

	result, err := s.Scan(ctx, syms)
	if err != nil {
		return fmt.Errorf("scanning: %w", err)
	}

	bar.Finish()
	fmt.Println()

	if format == "json" {
		return outputJSON(result)
	}
	return outputScanTable(result)
}
