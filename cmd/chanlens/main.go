package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"chanlens/internal/config"
	"chanlens/internal/logger"
	"chanlens/internal/provider"
	"chanlens/internal/snapshot"
)

var (
	cfgFile  string
	logLevel string
	format   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chanlens",
		Short: "Chan-theory and ICT market structure analysis",
		Long: `chanlens derives fractals, strokes, segments and pivot zones from OHLCV
bars, plus bos/choch structure events.

Examples:
  chanlens analyze --symbol BTCUSDT --interval 4h --limit 500
  chanlens analyze --source csv --file btc.csv --mode breakout
  chanlens scan --universe crypto-majors --interval 1h
  chanlens serve --port 8080 --refresh "0 */15 * * * *"`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "output format: table, json")

	rootCmd.AddCommand(newAnalyzeCmd(), newScanCmd(), newSnapshotCmd(), newServeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries the loaded configuration and shared collaborators
type app struct {
	cfg       *config.Config
	log       logger.Logger
	providers *provider.Registry
}

func newApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log := logger.NewStdLogger(logger.ParseLevel(cfg.Log.Level))
	return &app{cfg: cfg, log: log, providers: createProviders(cfg, log, 0)}, nil
}

// createProviders registers every configured bar source. A positive
// cacheTTL wraps each in a CachingProvider.
func createProviders(cfg *config.Config, log logger.Logger, cacheTTL time.Duration) *provider.Registry {
	var list []provider.Provider

	list = append(list, provider.NewBinanceProvider(provider.BinanceConfig{
		APIKey:    cfg.Binance.Key,
		SecretKey: cfg.Binance.Secret,
		Testnet:   cfg.Binance.Testnet,
		RateLimit: cfg.Binance.RateLimit,
		Logger:    log,
	}))
	if cfg.Yahoo.Enabled {
		list = append(list, provider.NewYahooProvider(cfg.Yahoo.RateLimit))
	}

	reg := provider.NewRegistry()
	for _, p := range list {
		if cacheTTL > 0 {
			p = provider.NewCachingProvider(p, cacheTTL)
		}
		reg.Register(p)
	}
	return reg
}

func (a *app) openStore() (*snapshot.Store, error) {
	path := a.cfg.Snapshot.Path
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating snapshot dir: %w", err)
		}
	}
	store, err := snapshot.Open(path, snapshot.Options{
		Capacity: a.cfg.Snapshot.Capacity,
		MaxPages: a.cfg.Snapshot.MaxPages,
		Logger:   a.log,
	})
	if err != nil {
		return nil, fmt.Errorf("opening snapshot store: %w", err)
	}
	return store, nil
}

// signalContext is cancelled on SIGINT/SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\nInterrupted. Stopping...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
