// Package scanner fetches and analyzes many symbols concurrently.
package scanner

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"chanlens/internal/analyzer"
	"chanlens/internal/ingest"
	"chanlens/internal/logger"
	"chanlens/internal/provider"
	"chanlens/pkg/model"
)

// ProgressCallback is called with progress updates
type ProgressCallback func(scanned, total int)

// FetchHook receives every successfully fetched series
type FetchHook func(ctx context.Context, q provider.Query, bars []model.Bar)

// Config controls one scan
type Config struct {
	Interval string
	Limit    int
	Mode     analyzer.Classification
	Workers  int
	Timeout  time.Duration
}

// Scanner performs parallel structure scans
type Scanner struct {
	provider     provider.Provider
	config       Config
	log          logger.Logger
	progressFunc ProgressCallback
	fetchHook    FetchHook
}

// NewScanner creates a new scanner
func NewScanner(p provider.Provider, cfg Config, log logger.Logger) *Scanner {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.Mode == "" {
		cfg.Mode = analyzer.ClassifyTrend
	}
	if log == nil {
		log = logger.Nop{}
	}
	return &Scanner{provider: p, config: cfg, log: log}
}

// SetProgressCallback sets the progress callback function
func (s *Scanner) SetProgressCallback(fn ProgressCallback) {
	s.progressFunc = fn
}

// SetFetchHook registers a hook run after each successful fetch
func (s *Scanner) SetFetchHook(fn FetchHook) {
	s.fetchHook = fn
}

type outcome struct {
	symbol  string
	summary model.Summary
	err     error
}

func (s *Scanner) analyze(ctx context.Context, symbol string) outcome {
	q, err := provider.Query{Symbol: symbol, Interval: s.config.Interval, Limit: s.config.Limit}.Normalize()
	if err != nil {
		return outcome{symbol: symbol, err: err}
	}
	bars, err := s.provider.GetBars(ctx, q)
	if err != nil {
		return outcome{symbol: symbol, err: err}
	}
	if err := ingest.Validate(bars); err != nil {
		return outcome{symbol: symbol, err: err}
	}
	if s.fetchHook != nil {
		s.fetchHook(ctx, q, bars)
	}
	return outcome{symbol: symbol, summary: analyzer.Summarize(symbol, bars, s.config.Mode)}
}

// Scan fetches and summarizes every symbol. Per-symbol failures are
// reported in Failed rather than aborting the scan.
func (s *Scanner) Scan(ctx context.Context, symbols []string) (*model.ScanResult, error) {
	startTime := time.Now()

	result := &model.ScanResult{
		TotalScanned: len(symbols),
		Failed:       map[string]string{},
		Summaries:    []model.Summary{},
	}
	if len(symbols) == 0 {
		result.ScanTime = time.Since(startTime)
		return result, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	jobChan := make(chan string, len(symbols))
	resultChan := make(chan outcome, len(symbols))

	for _, sym := range symbols {
		jobChan <- sym
	}
	close(jobChan)

	var scannedCount int64

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range jobChan {
				var out outcome
				select {
				case <-ctx.Done():
					out = outcome{symbol: sym, err: ctx.Err()}
				default:
					out = s.analyze(ctx, sym)
				}
				resultChan <- out

				count := atomic.AddInt64(&scannedCount, 1)
				if s.progressFunc != nil {
					s.progressFunc(int(count), len(symbols))
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	for out := range resultChan {
		if out.err != nil {
			result.Failed[out.symbol] = out.err.Error()
			s.log.Warn(ctx, "scan failed for symbol", map[string]interface{}{"symbol": out.symbol, "error": out.err.Error()})
			continue
		}
		result.Summaries = append(result.Summaries, out.summary)
	}

	sort.Slice(result.Summaries, func(i, j int) bool {
		return result.Summaries[i].Symbol < result.Summaries[j].Symbol
	})
	result.Analyzed = len(result.Summaries)
	result.ScanTime = time.Since(startTime)

	s.log.Info(ctx, "scan complete", map[string]interface{}{
		"total": result.TotalScanned, "analyzed": result.Analyzed, "failed": len(result.Failed),
	})
	return result, nil
}
