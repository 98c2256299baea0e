package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chanlens/pkg/model"
)

type fakeProvider struct {
	name      string
	available bool
	calls     atomic.Int32
	bars      []model.Bar
	err       error
}

func (f *fakeProvider) Name() string      { return f.name }
func (f *fakeProvider) IsAvailable() bool { return f.available }
func (f *fakeProvider) RateLimit() int    { return 60 }

func (f *fakeProvider) GetBars(_ context.Context, q Query) ([]model.Bar, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.bars, nil
}

func TestQueryNormalize(t *testing.T) {
	q, err := Query{Symbol: " btcusdt ", Interval: "1h"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", q.Symbol)
	assert.Equal(t, DefaultLimit, q.Limit)

	start := time.Unix(2000, 0)
	end := time.Unix(1000, 0)

	bad := []Query{
		{Symbol: "", Interval: "1h"},
		{Symbol: "BTCUSDT", Interval: "2m"},
		{Symbol: "BTCUSDT", Interval: "1h", Limit: MaxLimit + 1},
		{Symbol: "BTCUSDT", Interval: "1h", Limit: -1},
		{Symbol: "BTCUSDT", Interval: "1h", StartTime: &start, EndTime: &end},
	}
	for i, q := range bad {
		_, err := q.Normalize()
		assert.ErrorIs(t, err, ErrInvalidRequest, "case %d", i)
	}
}

func TestQueryKey(t *testing.T) {
	start := time.UnixMilli(1700000000000)
	a := Query{Symbol: "BTCUSDT", Interval: "1h", Limit: 500}
	b := Query{Symbol: "BTCUSDT", Interval: "1h", Limit: 500, StartTime: &start}

	assert.Equal(t, "BTCUSDT|1h|500", a.Key())
	assert.Equal(t, "BTCUSDT|1h|500|s1700000000000", b.Key())
}

func TestProviderErrorHelpers(t *testing.T) {
	err := fmt.Errorf("scan: %w", &ProviderError{Provider: "binance", Err: ErrRateLimited, Retryable: true})
	assert.True(t, IsProviderError(err))
	assert.True(t, IsRetryable(err))
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Contains(t, err.Error(), "binance: rate limited")

	assert.False(t, IsProviderError(errors.New("plain")))
	assert.False(t, IsRetryable(&ProviderError{Provider: "x", Err: ErrInvalidRequest}))
}

const klinesFixture = `[
  [1700000000000,"100.5","110.25","99.75","105","1234.5",1700003599999,"0",10,"0","0","0"],
  [1700003600000,"105","112","104","111.125","99",1700007199999,"0",10,"0","0","0"]
]`

func TestBinanceProvider_GetBars(t *testing.T) {
	var gotQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/klines", r.URL.Path)
		gotQuery.Store(r.URL.Query())
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, klinesFixture)
	}))
	defer srv.Close()

	p := NewBinanceProvider(BinanceConfig{BaseURL: srv.URL})
	start := time.UnixMilli(1700000000000)

	bars, err := p.GetBars(context.Background(), Query{Symbol: "btcusdt", Interval: "1h", Limit: 2, StartTime: &start})
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, model.Bar{Timestamp: 1700000000000, Open: 100.5, High: 110.25, Low: 99.75, Close: 105, Volume: 1234.5}, bars[0])
	assert.Equal(t, 111.125, bars[1].Close)

	q := gotQuery.Load().(url.Values)
	assert.Equal(t, "BTCUSDT", q.Get("symbol"))
	assert.Equal(t, "1h", q.Get("interval"))
	assert.Equal(t, "2", q.Get("limit"))
	assert.Equal(t, "1700000000000", q.Get("startTime"))
}

func TestBinanceProvider_EmptyIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	p := NewBinanceProvider(BinanceConfig{BaseURL: srv.URL})
	bars, err := p.GetBars(context.Background(), Query{Symbol: "BTCUSDT", Interval: "1h"})
	require.NoError(t, err)
	assert.NotNil(t, bars)
	assert.Empty(t, bars)
}

func TestBinanceProvider_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		want      error
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{"code":-1003,"msg":"Too many requests"}`, ErrRateLimited, true},
		{"bad symbol", http.StatusBadRequest, `{"code":-1121,"msg":"Invalid symbol."}`, ErrInvalidRequest, false},
		{"server", http.StatusServiceUnavailable, `{"code":-1001,"msg":"Internal error"}`, ErrUnavailable, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			p := NewBinanceProvider(BinanceConfig{BaseURL: srv.URL})
			_, err := p.GetBars(context.Background(), Query{Symbol: "BTCUSDT", Interval: "1h", Limit: 10})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsProviderError(err))
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
}

func TestBinanceProvider_RateLimitRaisesBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"code":-1003,"msg":"Too many requests"}`)
	}))
	defer srv.Close()

	p := NewBinanceProvider(BinanceConfig{BaseURL: srv.URL})
	before := p.limiter.Backoff()
	_, _ = p.GetBars(context.Background(), Query{Symbol: "BTCUSDT", Interval: "1h", Limit: 10})
	assert.Greater(t, p.limiter.Backoff(), before)
}

func TestBinanceProvider_InvalidQuerySkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	p := NewBinanceProvider(BinanceConfig{BaseURL: srv.URL})
	_, err := p.GetBars(context.Background(), Query{Symbol: "BTCUSDT", Interval: "7m"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Zero(t, hits.Load())
}

func TestBinanceProvider_BaseURLSelection(t *testing.T) {
	assert.Equal(t, binanceBaseURL, NewBinanceProvider(BinanceConfig{}).client.BaseURL)
	assert.Equal(t, binanceTestnetBaseURL, NewBinanceProvider(BinanceConfig{Testnet: true}).client.BaseURL)
	assert.Equal(t, binanceDefaultRate, NewBinanceProvider(BinanceConfig{}).RateLimit())
}

func TestKlineWeight(t *testing.T) {
	assert.Equal(t, 1, klineWeight(99))
	assert.Equal(t, 2, klineWeight(100))
	assert.Equal(t, 5, klineWeight(500))
	assert.Equal(t, 5, klineWeight(1000))
	assert.Equal(t, 10, klineWeight(1500))
}

const chartFixture = `{"chart":{"result":[{
  "timestamp":[1700000000,1700003600,1700007200],
  "indicators":{"quote":[{
    "open":[1,null,3],
    "high":[2,null,4],
    "low":[0.5,null,2.5],
    "close":[1.5,null,3.5],
    "volume":[100,null,null]
  }]}
}],"error":null}}`

func TestYahooProvider_GetBars(t *testing.T) {
	var gotInterval string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/AAPL", r.URL.Path)
		gotInterval = r.URL.Query().Get("interval")
		fmt.Fprint(w, chartFixture)
	}))
	defer srv.Close()

	p := NewYahooProvider(0)
	p.baseURL = srv.URL
	p.now = func() time.Time { return time.Unix(1700010000, 0) }

	bars, err := p.GetBars(context.Background(), Query{Symbol: "aapl", Interval: "1h", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, "60m", gotInterval)

	require.Len(t, bars, 2)
	assert.Equal(t, model.Bar{Timestamp: 1700000000000, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100}, bars[0])
	assert.Equal(t, int64(1700007200000), bars[1].Timestamp)
	assert.Zero(t, bars[1].Volume)
}

func TestYahooProvider_TrimsToLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chartFixture)
	}))
	defer srv.Close()

	p := NewYahooProvider(0)
	p.baseURL = srv.URL

	bars, err := p.GetBars(context.Background(), Query{Symbol: "AAPL", Interval: "1d", Limit: 1})
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 3.5, bars[0].Close)
}

func TestYahooProvider_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, ``, ErrRateLimited},
		{"not found", http.StatusNotFound, ``, ErrInvalidRequest},
		{"server", http.StatusBadGateway, ``, ErrUnavailable},
		{"chart error", http.StatusOK, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`, ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			p := NewYahooProvider(0)
			p.baseURL = srv.URL
			_, err := p.GetBars(context.Background(), Query{Symbol: "AAPL", Interval: "1d"})
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsProviderError(err))
		})
	}

	p := NewYahooProvider(0)
	_, err := p.GetBars(context.Background(), Query{Symbol: "AAPL", Interval: "4h"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCachingProvider(t *testing.T) {
	inner := &fakeProvider{name: "binance", available: true, bars: []model.Bar{{Timestamp: 1}}}
	p := NewCachingProvider(inner, time.Minute)
	now := time.Unix(0, 0)
	p.now = func() time.Time { return now }

	ctx := context.Background()
	q := Query{Symbol: "btcusdt", Interval: "1h"}

	_, err := p.GetBars(ctx, q)
	require.NoError(t, err)
	_, err = p.GetBars(ctx, Query{Symbol: "BTCUSDT", Interval: "1h", Limit: DefaultLimit})
	require.NoError(t, err)
	assert.Equal(t, int32(1), inner.calls.Load(), "normalized queries share an entry")

	_, err = p.GetBars(ctx, Query{Symbol: "BTCUSDT", Interval: "4h"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())

	now = now.Add(2 * time.Minute)
	_, err = p.GetBars(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, int32(3), inner.calls.Load(), "expired entry refetched")

	p.Purge()
	_, err = p.GetBars(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, int32(4), inner.calls.Load())

	assert.Equal(t, "binance", p.Name())
	assert.True(t, p.IsAvailable())
}

func TestCachingProvider_DoesNotCacheErrors(t *testing.T) {
	inner := &fakeProvider{name: "binance", available: true, err: &ProviderError{Provider: "binance", Err: ErrUnavailable}}
	p := NewCachingProvider(inner, 0)

	ctx := context.Background()
	q := Query{Symbol: "BTCUSDT", Interval: "1h"}
	_, err := p.GetBars(ctx, q)
	assert.Error(t, err)
	_, err = p.GetBars(ctx, q)
	assert.Error(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeProvider{name: "yahoo", available: true})
	r.Register(&fakeProvider{name: "binance", available: true})
	r.Register(&fakeProvider{name: "offline", available: false})

	assert.Equal(t, []string{"binance", "offline", "yahoo"}, r.List())

	p, err := r.Get("binance")
	require.NoError(t, err)
	assert.Equal(t, "binance", p.Name())

	_, err = r.Get("offline")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = r.Get("kraken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider: kraken")
}
