package scanner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chanlens/internal/analyzer"
	"chanlens/internal/provider"
	"chanlens/pkg/model"
)

type stubProvider struct {
	bars map[string][]model.Bar
	errs map[string]error
}

func (p *stubProvider) Name() string      { return "stub" }
func (p *stubProvider) IsAvailable() bool { return true }
func (p *stubProvider) RateLimit() int    { return 600 }

func (p *stubProvider) GetBars(_ context.Context, q provider.Query) ([]model.Bar, error) {
	if err, ok := p.errs[q.Symbol]; ok {
		return nil, err
	}
	return p.bars[q.Symbol], nil
}

// zigzagBars alternates lows and highs so every interior bar is a fractal
func zigzagBars(highs ...float64) []model.Bar {
	bars := make([]model.Bar, len(highs))
	for i, h := range highs {
		bars[i] = model.Bar{Timestamp: int64(i) * 60_000, Open: h - 0.5, High: h, Low: h - 1, Close: h - 0.5, Volume: 1}
	}
	return bars
}

func TestScan(t *testing.T) {
	swing := zigzagBars(10, 12, 11, 9, 10, 13, 14, 12, 11, 8, 9, 15, 16, 14, 12)
	p := &stubProvider{
		bars: map[string][]model.Bar{
			"BTCUSDT": swing,
			"ETHUSDT": {},
		},
		errs: map[string]error{
			"BADUSDT": &provider.ProviderError{Provider: "stub", Err: provider.ErrInvalidRequest},
		},
	}

	s := NewScanner(p, Config{Interval: "1h", Limit: 100, Workers: 3, Timeout: time.Minute}, nil)

	var (
		mu    sync.Mutex
		calls []int
	)
	s.SetProgressCallback(func(scanned, total int) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, scanned)
		assert.Equal(t, 3, total)
	})

	hooked := map[string]int{}
	s.SetFetchHook(func(_ context.Context, q provider.Query, bars []model.Bar) {
		mu.Lock()
		defer mu.Unlock()
		hooked[q.Symbol] = len(bars)
	})

	res, err := s.Scan(context.Background(), []string{"ETHUSDT", "BTCUSDT", "BADUSDT"})
	require.NoError(t, err)

	assert.Equal(t, 3, res.TotalScanned)
	assert.Equal(t, 2, res.Analyzed)
	require.Len(t, res.Summaries, 2)
	assert.Equal(t, "BTCUSDT", res.Summaries[0].Symbol)
	assert.Equal(t, "ETHUSDT", res.Summaries[1].Symbol)
	assert.Contains(t, res.Failed, "BADUSDT")

	want := analyzer.Summarize("BTCUSDT", swing, analyzer.ClassifyTrend)
	assert.Equal(t, want, res.Summaries[0])
	assert.Zero(t, res.Summaries[1].Bars)

	assert.Len(t, calls, 3)
	assert.Equal(t, map[string]int{"BTCUSDT": len(swing), "ETHUSDT": 0}, hooked)
}

func TestScan_RejectsInvalidBars(t *testing.T) {
	unordered := zigzagBars(10, 12, 11, 9, 10)
	unordered[1].Timestamp, unordered[3].Timestamp = unordered[3].Timestamp, unordered[1].Timestamp

	p := &stubProvider{bars: map[string][]model.Bar{"BTCUSDT": unordered}}
	s := NewScanner(p, Config{Interval: "1h", Limit: 100}, nil)

	hooked := false
	s.SetFetchHook(func(context.Context, provider.Query, []model.Bar) { hooked = true })

	res, err := s.Scan(context.Background(), []string{"BTCUSDT"})
	require.NoError(t, err)
	assert.Zero(t, res.Analyzed)
	assert.Empty(t, res.Summaries)
	assert.Contains(t, res.Failed, "BTCUSDT")
	assert.False(t, hooked)
}

func TestScan_Empty(t *testing.T) {
	s := NewScanner(&stubProvider{}, Config{Interval: "1h"}, nil)
	res, err := s.Scan(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, res.TotalScanned)
	assert.NotNil(t, res.Summaries)
	assert.Empty(t, res.Failed)
}

func TestScan_CancelledContext(t *testing.T) {
	p := &stubProvider{bars: map[string][]model.Bar{"A": zigzagBars(1, 2, 1)}}
	s := NewScanner(p, Config{Interval: "1h", Workers: 1}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := s.Scan(ctx, []string{"A", "B"})
	require.NoError(t, err)
	assert.Zero(t, res.Analyzed)
	assert.Len(t, res.Failed, 2)
}

func TestNewScanner_Defaults(t *testing.T) {
	s := NewScanner(&stubProvider{}, Config{}, nil)
	assert.Equal(t, 1, s.config.Workers)
	assert.Equal(t, 2*time.Minute, s.config.Timeout)
	assert.Equal(t, analyzer.ClassifyTrend, s.config.Mode)
}
