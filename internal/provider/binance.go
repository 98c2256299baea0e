package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"chanlens/internal/logger"
	"chanlens/internal/ratelimit"
	"chanlens/pkg/model"
)

const (
	binanceBaseURL        = "https://fapi.binance.com"
	binanceTestnetBaseURL = "https://testnet.binancefuture.com"
	binanceDefaultRate    = 1200
)

// BinanceConfig configures the USDT-M futures kline source
type BinanceConfig struct {
	APIKey    string
	SecretKey string
	Testnet   bool
	BaseURL   string // overrides the production/testnet endpoint
	RateLimit int    // request weight per minute
	Logger    logger.Logger
}

// BinanceProvider fetches perpetual futures klines
type BinanceProvider struct {
	client    *futures.Client
	limiter   *ratelimit.Limiter
	logger    logger.Logger
	rateLimit int
}

func NewBinanceProvider(cfg BinanceConfig) *BinanceProvider {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop{}
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = binanceDefaultRate
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	switch {
	case cfg.BaseURL != "":
		client.BaseURL = cfg.BaseURL
	case cfg.Testnet:
		client.BaseURL = binanceTestnetBaseURL
	default:
		client.BaseURL = binanceBaseURL
	}
	cfg.Logger.Debug(context.Background(), "binance provider configured", map[string]interface{}{"baseURL": client.BaseURL})

	return &BinanceProvider{
		client:    client,
		limiter:   ratelimit.NewLimiter("binance", cfg.RateLimit),
		logger:    cfg.Logger,
		rateLimit: cfg.RateLimit,
	}
}

func (p *BinanceProvider) Name() string {
	return "binance"
}

// IsAvailable is always true: klines are a public endpoint
func (p *BinanceProvider) IsAvailable() bool {
	return true
}

func (p *BinanceProvider) RateLimit() int {
	return p.rateLimit
}

// klineWeight is the request weight Binance charges per kline limit
func klineWeight(limit int) int {
	switch {
	case limit < 100:
		return 1
	case limit < 500:
		return 2
	case limit <= 1000:
		return 5
	default:
		return 10
	}
}

func (p *BinanceProvider) GetBars(ctx context.Context, q Query) ([]model.Bar, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err}
	}

	if err := p.limiter.WaitN(ctx, klineWeight(q.Limit)); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err}
	}

	svc := p.client.NewKlinesService().
		Symbol(q.Symbol).
		Interval(q.Interval).
		Limit(q.Limit)
	if q.StartTime != nil {
		svc = svc.StartTime(q.StartTime.UnixMilli())
	}
	if q.EndTime != nil {
		svc = svc.EndTime(q.EndTime.UnixMilli())
	}

	klines, err := svc.Do(ctx)
	if err != nil {
		return nil, p.handleError(ctx, err, q)
	}
	p.limiter.ResetBackoff()

	bars := make([]model.Bar, 0, len(klines))
	for _, k := range klines {
		bar, err := translateKline(k)
		if err != nil {
			return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("translating kline: %w", err)}
		}
		bars = append(bars, bar)
	}

	p.logger.Debug(ctx, "fetched klines", map[string]interface{}{
		"symbol": q.Symbol, "interval": q.Interval, "count": len(bars),
	})
	return bars, nil
}

// handleError maps Binance API codes onto the provider sentinels
func (p *BinanceProvider) handleError(ctx context.Context, err error, q Query) error {
	if ctx.Err() != nil {
		return &ProviderError{Provider: p.Name(), Err: ctx.Err()}
	}

	fields := map[string]interface{}{"symbol": q.Symbol, "interval": q.Interval}

	var apiErr *common.APIError
	if !errors.As(err, &apiErr) {
		p.logger.Error(ctx, err, "binance request failed", fields)
		return &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%w: %v", ErrUnavailable, err), Retryable: true}
	}

	fields["code"] = apiErr.Code
	switch {
	case apiErr.Code == -1003:
		backoff := p.limiter.SignalRateLimited()
		fields["backoff"] = backoff.String()
		p.logger.Warn(ctx, "binance rate limit hit", fields)
		return &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Message), Retryable: true}
	case apiErr.Code <= -1100 && apiErr.Code >= -1199:
		p.logger.Warn(ctx, "binance rejected request", fields)
		return &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%w: %s", ErrInvalidRequest, apiErr.Message)}
	default:
		p.logger.Error(ctx, err, "binance api error", fields)
		return &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%w: %s", ErrUnavailable, apiErr.Message), Retryable: true}
	}
}

func parseDecimal(field, raw string) (float64, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing %s %q: %w", field, raw, err)
	}
	return d.InexactFloat64(), nil
}

func translateKline(k *futures.Kline) (model.Bar, error) {
	if k == nil {
		return model.Bar{}, errors.New("nil kline")
	}

	var vals [5]float64
	for i, f := range []struct{ name, raw string }{
		{"open", k.Open}, {"high", k.High}, {"low", k.Low}, {"close", k.Close}, {"volume", k.Volume},
	} {
		v, err := parseDecimal(f.name, f.raw)
		if err != nil {
			return model.Bar{}, err
		}
		vals[i] = v
	}

	return model.Bar{
		Timestamp: k.OpenTime,
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}, nil
}
