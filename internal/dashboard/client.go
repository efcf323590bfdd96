package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/Henry6262/opus-x-sub001/internal/ranking"
)

const (
	migrationsPath  = "/api/v1/migrations"
	positionsPath   = "/api/v1/positions"
	leaderboardPath = "/api/v1/leaderboard"
)

// Options parameterise the backend REST client.
type Options struct {
	BaseURL        string
	Timeout        time.Duration
	UserAgent      string
	RetryCount     int
	RequestsPerSec float64
}

// Client is a read-only client for the backend dashboard API. Requests run
// behind a circuit breaker and a rate limiter so a misbehaving backend
// cannot be hammered by the refresh loop.
type Client struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// New constructs a dashboard client.
func New(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "opusfeed/1.0"
	}
	rps := opts.RequestsPerSec
	if rps <= 0 {
		rps = 5
	}

	httpClient := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(opts.RetryCount).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "dashboard_api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		http:    httpClient,
		breaker: breaker,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger.With().Str("component", "dashboard_client").Logger(),
	}
}

// migrationDTO mirrors the backend wire shape. Fields the backend omits
// decode to zero values and degrade to "no value" downstream.
type migrationDTO struct {
	TokenMint        string            `json:"tokenMint"`
	TokenSymbol      string            `json:"tokenSymbol"`
	DetectedAt       time.Time         `json:"detectedAt"`
	ExpiresAt        *time.Time        `json:"expiresAt"`
	LastAiDecision   string            `json:"lastAiDecision"`
	LastAiConfidence *float64          `json:"lastAiConfidence"`
	PriceSol         decimal.Decimal   `json:"priceSol"`
	PriceChangePct   float64           `json:"priceChangePct"`
	LiquiditySol     decimal.Decimal   `json:"liquiditySol"`
	WalletSignals    []walletSignalDTO `json:"walletSignals"`
}

type walletSignalDTO struct {
	Wallet     string          `json:"wallet"`
	DetectedAt time.Time       `json:"detectedAt"`
	AmountSol  decimal.Decimal `json:"amountSol"`
}

// FetchMigrations retrieves the current migration candidate list.
func (c *Client) FetchMigrations(ctx context.Context) ([]ranking.Snapshot, error) {
	var dtos []migrationDTO
	if err := c.get(ctx, migrationsPath, &dtos); err != nil {
		return nil, fmt.Errorf("fetch migrations: %w", err)
	}

	snapshots := make([]ranking.Snapshot, 0, len(dtos))
	for _, dto := range dtos {
		if dto.TokenMint == "" {
			continue
		}
		snapshots = append(snapshots, dto.toSnapshot())
	}
	return snapshots, nil
}

// FetchPositions returns the raw positions payload. The schema belongs to
// the backend; callers treat it as opaque.
func (c *Client) FetchPositions(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.get(ctx, positionsPath, &raw); err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}
	return raw, nil
}

// FetchLeaderboard returns the raw leaderboard payload.
func (c *Client) FetchLeaderboard(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.get(ctx, leaderboardPath, &raw); err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}
	return raw, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := c.breaker.Execute(func() (any, error) {
		resp, err := c.http.R().SetContext(ctx).Get(path)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("dashboard api status %d: %s", resp.StatusCode(), resp.String())
		}
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return nil, nil
	})
	return err
}

func (d migrationDTO) toSnapshot() ranking.Snapshot {
	s := ranking.Snapshot{
		TokenMint:        d.TokenMint,
		TokenSymbol:      d.TokenSymbol,
		DetectedAt:       d.DetectedAt,
		LastAiDecision:   ranking.AiDecision(d.LastAiDecision),
		LastAiConfidence: d.LastAiConfidence,
		PriceSol:         d.PriceSol,
		PriceChangePct:   d.PriceChangePct,
		LiquiditySol:     d.LiquiditySol,
	}
	if d.ExpiresAt != nil {
		s.ExpiresAt = *d.ExpiresAt
	}
	for _, sig := range d.WalletSignals {
		s.WalletSignals = append(s.WalletSignals, ranking.WalletSignal{
			Wallet:     sig.Wallet,
			DetectedAt: sig.DetectedAt,
			AmountSol:  sig.AmountSol,
		})
	}
	return s
}
