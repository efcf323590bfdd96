package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Henry6262/opus-x-sub001/internal/alerting"
	"github.com/Henry6262/opus-x-sub001/internal/config"
	"github.com/Henry6262/opus-x-sub001/internal/metrics"
	"github.com/Henry6262/opus-x-sub001/internal/service"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Telegram.Enabled {
		return nil
	}
	cfg := a.Config.Alerting.Telegram
	inner := alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	return alerting.NewCooldownNotifier(inner, a.Config.Alerting.Cooldown)
}

// Run executes the long-running feed service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if a.Config.Stream.URL == "" {
		return errors.New("stream.url not configured")
	}
	if a.Config.Dashboard.BaseURL == "" {
		return errors.New("dashboard.base_url not configured")
	}

	notifier := a.newNotifier()
	if a.Config.Alerting.Enabled && notifier == nil {
		a.Logger.Warn().Msg("alerting enabled but no channel configured; alerts disabled")
	}

	svc := service.New(a.Config, notifier, metrics.New(), a.Logger)

	a.Logger.Info().Msg("starting feed service")
	err := svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("feed service stopped")
	return nil
}

// apiBase resolves the base URL of a running feed instance's API. A bare
// ":port" listen address maps to localhost.
func (a *App) apiBase(override string) string {
	if override != "" {
		return strings.TrimRight(override, "/")
	}
	addr := a.Config.Server.Addr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return fmt.Sprintf("http://%s", addr)
}

// ExportOptions hold parameters for exporting score history.
type ExportOptions struct {
	TokenMint string
	APIBase   string
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	View    string
	APIBase string
	Limit   int
}
