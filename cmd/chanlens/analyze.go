package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"chanlens/internal/analyzer"
	"chanlens/internal/ingest"
	"chanlens/internal/provider"
	"chanlens/internal/snapshot"
	"chanlens/pkg/model"
)

type analyzeOptions struct {
	source         string
	symbol         string
	interval       string
	limit          int
	file           string
	id             string
	mode           string
	classification string
	save           bool
}

func newAnalyzeCmd() *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze one bar series",
		Long: `Load bars from a provider, a csv/json file or a saved snapshot and print
the structural (fractal/stroke/segment/zone) or breakout (bos/choch) view.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.source, "source", "", "bar source: binance, yahoo, csv, json, file (by extension), snapshot (default from config)")
	f.StringVar(&opts.symbol, "symbol", "BTCUSDT", "symbol for remote sources")
	f.StringVar(&opts.interval, "interval", "", "kline interval, e.g. 1m, 15m, 1h, 4h, 1d (default from config)")
	f.IntVar(&opts.limit, "limit", 0, "number of bars, max 1500 (default from config)")
	f.StringVar(&opts.file, "file", "", "csv or json file for file sources")
	f.StringVar(&opts.id, "id", "", "snapshot id (default: latest)")
	f.StringVar(&opts.mode, "mode", "structure", "analysis: structure, breakout")
	f.StringVar(&opts.classification, "classification", "", "event labels: trend, bos-only (default from config)")
	f.BoolVar(&opts.save, "save", false, "save the loaded bars as a snapshot")

	return cmd
}

func runAnalyze(opts *analyzeOptions) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	if opts.source == "" {
		opts.source = a.cfg.Analysis.Source
	}
	if opts.interval == "" {
		opts.interval = a.cfg.Analysis.Interval
	}
	if opts.limit == 0 {
		opts.limit = a.cfg.Analysis.Limit
	}
	if opts.classification == "" {
		opts.classification = a.cfg.Analysis.Classification
	}
	mode, err := analyzer.ParseClassification(opts.classification)
	if err != nil {
		return err
	}
	if opts.mode != "structure" && opts.mode != "breakout" {
		return fmt.Errorf("unknown mode %q (want structure or breakout)", opts.mode)
	}

	ctx, cancel := signalContext()
	defer cancel()

	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	bars, snap, err := loadBars(ctx, a, store, opts)
	if err != nil {
		return err
	}
	if err := ingest.Validate(bars); err != nil {
		return err
	}

	if opts.save && snap != nil {
		saved, err := store.Save(ctx, *snap)
		if err != nil {
			return fmt.Errorf("saving snapshot: %w", err)
		}
		a.log.Info(ctx, "snapshot saved", map[string]interface{}{"id": saved.ID, "bars": len(saved.Bars)})
	}

	if opts.mode == "breakout" {
		result := analyzer.RunBreakoutAnalysisWith(bars, mode)
		if format == "json" {
			return outputJSON(result)
		}
		return outputBreakoutTable(len(bars), result)
	}

	result := analyzer.RunStructuralAnalysis(bars)
	if format == "json" {
		return outputJSON(result)
	}
	return outputStructureTable(len(bars), result)
}

// loadBars resolves the source. The returned snapshot is what --save
// would persist; it is nil when the bars already came from the store.
func loadBars(ctx context.Context, a *app, store *snapshot.Store, opts *analyzeOptions) ([]model.Bar, *snapshot.Snapshot, error) {
	switch opts.source {
	case "snapshot":
		var (
			snap snapshot.Snapshot
			err  error
		)
		if opts.id != "" {
			snap, err = store.Get(ctx, opts.id)
		} else {
			snap, err = store.Latest(ctx)
		}
		if errors.Is(err, snapshot.ErrNotFound) && opts.id == "" {
			return nil, nil, fmt.Errorf("no snapshots saved yet")
		}
		if err != nil {
			return nil, nil, err
		}
		fmt.Printf("Snapshot %s (%s)\n\n", snap.ID, snap.Label)
		return snap.Bars, nil, nil

	case "csv", "json", "file":
		if opts.file == "" {
			return nil, nil, fmt.Errorf("--file is required for source %s", opts.source)
		}
		var (
			bars []model.Bar
			err  error
		)
		source := opts.source
		if source == "file" {
			bars, err = ingest.ReadFile(opts.file)
			source = strings.TrimPrefix(strings.ToLower(filepath.Ext(opts.file)), ".")
		} else {
			bars, err = ingest.ReadFileAs(source, opts.file)
		}
		if err != nil {
			return nil, nil, err
		}
		if source == "txt" {
			source = "csv"
		}
		snap := snapshot.NewFile(snapshot.Source(source), filepath.Base(opts.file), bars)
		return bars, &snap, nil

	default:
		p, err := a.providers.Get(opts.source)
		if err != nil {
			return nil, nil, err
		}
		q := provider.Query{Symbol: opts.symbol, Interval: opts.interval, Limit: opts.limit}
		bars, err := p.GetBars(ctx, q)
		if err != nil {
			return nil, nil, fmt.Errorf("fetching bars: %w", err)
		}
		snap := snapshot.NewRemote(snapshot.Source(p.Name()), opts.symbol, opts.interval, opts.limit, bars)
		return bars, &snap, nil
	}
}
