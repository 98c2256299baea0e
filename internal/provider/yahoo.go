package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"chanlens/internal/ratelimit"
	"chanlens/pkg/model"
)

const (
	yahooBaseURL     = "https://query1.finance.yahoo.com/v8/finance/chart"
	yahooDefaultRate = 30
)

// yahooIntervals maps kline intervals to chart API intervals.
// Intervals Yahoo cannot serve are absent.
var yahooIntervals = map[string]string{
	"1m":  "1m",
	"5m":  "5m",
	"15m": "15m",
	"30m": "30m",
	"1h":  "60m",
	"1d":  "1d",
	"1w":  "1wk",
}

// YahooProvider implements the Provider interface for Yahoo Finance (unofficial API)
type YahooProvider struct {
	client    *http.Client
	baseURL   string
	limiter   *ratelimit.Limiter
	rateLimit int
	now       func() time.Time
}

// NewYahooProvider creates a new Yahoo Finance provider
func NewYahooProvider(rateLimit int) *YahooProvider {
	if rateLimit <= 0 {
		rateLimit = yahooDefaultRate
	}
	return &YahooProvider{
		client:    &http.Client{Timeout: 30 * time.Second},
		baseURL:   yahooBaseURL,
		limiter:   ratelimit.NewLimiter("yahoo", rateLimit),
		rateLimit: rateLimit,
		now:       time.Now,
	}
}

func (p *YahooProvider) Name() string {
	return "yahoo"
}

// IsAvailable always returns true (no API key needed)
func (p *YahooProvider) IsAvailable() bool {
	return true
}

func (p *YahooProvider) RateLimit() int {
	return p.rateLimit
}

// yahooResponse represents the Yahoo Finance chart response.
// Missing points come back as null.
type yahooResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func at(vals []*float64, i int) (float64, bool) {
	if i >= len(vals) || vals[i] == nil {
		return 0, false
	}
	return *vals[i], true
}

// window resolves the period for a query. Without explicit bounds it
// reaches back twice the nominal span to cover market closures.
func (p *YahooProvider) window(q Query) (time.Time, time.Time) {
	end := p.now()
	if q.EndTime != nil {
		end = *q.EndTime
	}
	if q.StartTime != nil {
		return *q.StartTime, end
	}
	width, _ := IntervalDuration(q.Interval)
	return end.Add(-2 * time.Duration(q.Limit) * width), end
}

func (p *YahooProvider) GetBars(ctx context.Context, q Query) ([]model.Bar, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err}
	}
	yInterval, ok := yahooIntervals[q.Interval]
	if !ok {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%w: interval %s not served", ErrInvalidRequest, q.Interval)}
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err}
	}

	start, end := p.window(q)
	reqURL := fmt.Sprintf("%s/%s?period1=%d&period2=%d&interval=%s&includePrePost=false",
		p.baseURL, url.PathEscape(q.Symbol), start.Unix(), end.Unix(), yInterval)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%w: %v", ErrUnavailable, err), Retryable: true}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		p.limiter.SignalRateLimited()
		return nil, &ProviderError{Provider: p.Name(), Err: ErrRateLimited, Retryable: true}
	case resp.StatusCode == http.StatusNotFound:
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%w: unknown symbol %s", ErrInvalidRequest, q.Symbol)}
	case resp.StatusCode >= 500:
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode), Retryable: true}
	case resp.StatusCode != http.StatusOK:
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%w: status %d", ErrInvalidRequest, resp.StatusCode)}
	}

	p.limiter.ResetBackoff()

	var data yahooResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("decoding response: %w", err)}
	}

	if data.Chart.Error != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%w: %s", ErrInvalidRequest, data.Chart.Error.Description)}
	}

	if len(data.Chart.Result) == 0 || len(data.Chart.Result[0].Indicators.Quote) == 0 {
		return []model.Bar{}, nil
	}

	result := data.Chart.Result[0]
	quotes := result.Indicators.Quote[0]

	bars := make([]model.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		open, ok1 := at(quotes.Open, i)
		high, ok2 := at(quotes.High, i)
		low, ok3 := at(quotes.Low, i)
		closePrice, ok4 := at(quotes.Close, i)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			continue
		}
		volume, _ := at(quotes.Volume, i)

		bars = append(bars, model.Bar{
			Timestamp: ts * 1000,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
		})
	}

	if len(bars) > q.Limit {
		bars = bars[len(bars)-q.Limit:]
	}
	return bars, nil
}
