// Package service wires the stream consumer, the ranked-list refresh loop,
// the API server, and readiness alerting into one runnable unit.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Henry6262/opus-x-sub001/internal/alerting"
	"github.com/Henry6262/opus-x-sub001/internal/config"
	"github.com/Henry6262/opus-x-sub001/internal/dashboard"
	"github.com/Henry6262/opus-x-sub001/internal/feed"
	"github.com/Henry6262/opus-x-sub001/internal/metrics"
	"github.com/Henry6262/opus-x-sub001/internal/poller"
	"github.com/Henry6262/opus-x-sub001/internal/ranking"
	"github.com/Henry6262/opus-x-sub001/internal/server"
	"github.com/Henry6262/opus-x-sub001/internal/stream"
)

// Service owns the session and the three long-running loops around it.
type Service struct {
	cfg       *config.Config
	session   *feed.Session
	stream    *stream.Client
	dashboard *dashboard.Client
	evaluator *ranking.Evaluator
	poller    *poller.Poller
	server    *server.Server
	notifier  alerting.Notifier
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	mu    sync.Mutex
	ready map[string]bool
}

// New builds the full service graph from configuration. The notifier may be
// nil when alerting is disabled.
func New(cfg *config.Config, notifier alerting.Notifier, m *metrics.Metrics, logger zerolog.Logger) *Service {
	s := &Service{
		cfg:      cfg,
		notifier: notifier,
		metrics:  m,
		logger:   logger.With().Str("component", "service").Logger(),
		ready:    make(map[string]bool),
	}

	s.session = feed.NewSession(feed.SessionOptions{
		DecisionCapacity: cfg.Feed.DecisionCapacity,
		ActivityCapacity: cfg.Feed.ActivityCapacity,
		HistoryCapacity:  cfg.Feed.HistoryCapacity,
		PriceThreshold:   cfg.Flash.PriceThreshold,
		ScoreThreshold:   cfg.Flash.ScoreThreshold,
		FlashHold:        cfg.Flash.Hold,
		OnFlash:          s.handleFlash,
	}, logger)

	s.stream = stream.New(stream.Options{
		URL:              cfg.Stream.URL,
		HandshakeTimeout: cfg.Stream.HandshakeTimeout,
		ReadLimit:        cfg.Stream.ReadLimit,
		BackoffMin:       cfg.Stream.BackoffMin,
		BackoffMax:       cfg.Stream.BackoffMax,
	}, logger)

	s.dashboard = dashboard.New(dashboard.Options{
		BaseURL:        cfg.Dashboard.BaseURL,
		Timeout:        cfg.Dashboard.RequestTimeout,
		UserAgent:      cfg.Dashboard.UserAgent,
		RetryCount:     cfg.Dashboard.RetryCount,
		RequestsPerSec: cfg.Dashboard.RequestsPerSec,
	}, logger)

	s.evaluator = ranking.NewEvaluator(cfg.Ranking.Weights)

	s.poller = poller.New(poller.Options{
		Interval:     cfg.Ranking.RefreshInterval,
		StartupDelay: cfg.Ranking.StartupDelay,
		RunAtStart:   true,
	}, logger)

	s.server = server.New(server.Options{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, s.session, m, logger)

	return s
}

// Session exposes the feed session, mainly for tests.
func (s *Service) Session() *feed.Session {
	return s.session
}

// Server exposes the API server, mainly for tests.
func (s *Service) Server() *server.Server {
	return s.server
}

// Run starts the API server, the stream consumer, and the refresh loop, and
// blocks until ctx is cancelled or one of them fails.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.session.Close()

	errCh := make(chan error, 3)
	var wg sync.WaitGroup

	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fn(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("%s: %w", name, err)
			}
			cancel()
		}()
	}

	start("api server", s.server.Run)
	start("stream consumer", func(ctx context.Context) error {
		return s.stream.Run(ctx, s.handleEvent)
	})
	start("ranked refresh", func(ctx context.Context) error {
		return s.poller.Run(ctx, s.RefreshRanked)
	})

	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

func (s *Service) handleEvent(ev feed.RawEvent) {
	decision, ok := s.session.Ingest(ev)
	if !ok {
		s.metrics.EventsDropped.Inc()
		return
	}
	s.metrics.EventsConsumed.WithLabelValues(ev.Type).Inc()

	if decision.Kind == feed.KindSignal {
		s.server.Broadcast("activity", decision)
	} else {
		s.server.Broadcast("decision", decision)
	}
}

// RefreshRanked pulls the latest migration snapshots, rescores them, and
// publishes the result. Exposed as the poller tick.
func (s *Service) RefreshRanked(ctx context.Context) error {
	snapshots, err := s.dashboard.FetchMigrations(ctx)
	if err != nil {
		s.metrics.PollFailures.Inc()
		return fmt.Errorf("fetch migrations: %w", err)
	}

	ranked := s.evaluator.RankAll(snapshots, time.Now().UTC())
	s.session.UpdateRanked(ranked)

	readyCount := 0
	for _, item := range ranked {
		if item.IsReadyToTrade {
			readyCount++
		}
	}
	s.metrics.RankedTotal.Set(float64(len(ranked)))
	s.metrics.ReadyTotal.Set(float64(readyCount))

	s.server.Broadcast("ranked", ranked)
	s.notifyTransitions(ctx, ranked)
	return nil
}

// notifyTransitions alerts on candidates that just crossed into readiness.
// A candidate that drops out and re-qualifies alerts again, subject to the
// notifier's own cooldown.
func (s *Service) notifyTransitions(ctx context.Context, ranked []ranking.RankedMigration) {
	s.mu.Lock()
	var newlyReady []ranking.RankedMigration
	seen := make(map[string]bool, len(ranked))
	for _, item := range ranked {
		seen[item.TokenMint] = true
		if item.IsReadyToTrade && !s.ready[item.TokenMint] {
			newlyReady = append(newlyReady, item)
		}
		s.ready[item.TokenMint] = item.IsReadyToTrade
	}
	for mint := range s.ready {
		if !seen[mint] {
			delete(s.ready, mint)
		}
	}
	s.mu.Unlock()

	if s.notifier == nil || !s.cfg.Alerting.Enabled {
		return
	}

	threshold := s.evaluator.Weights().ReadyThreshold
	for _, item := range newlyReady {
		note := alerting.Notification{
			TokenSymbol:  item.TokenSymbol,
			TokenMint:    item.TokenMint,
			Score:        item.Score,
			Threshold:    threshold,
			AiDecision:   string(item.LastAiDecision),
			AiConfidence: item.LastAiConfidence,
			DetectedAt:   item.DetectedAt,
		}
		if err := s.notifier.Notify(ctx, note); err != nil {
			s.logger.Error().Err(err).Str("token_mint", item.TokenMint).Msg("readiness alert failed")
			continue
		}
		s.metrics.AlertsSent.Inc()
	}
}

func (s *Service) handleFlash(key string, dir feed.FlashDirection) {
	s.metrics.FlashesFired.WithLabelValues(string(dir)).Inc()
	kind, mint, _ := strings.Cut(key, ":")
	s.server.Broadcast("flash", map[string]string{
		"kind":       kind,
		"token_mint": mint,
		"direction":  string(dir),
	})
}
