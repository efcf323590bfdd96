package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Henry6262/opus-x-sub001/internal/export"
	"github.com/Henry6262/opus-x-sub001/internal/feed"
)

// Export renders a token's score history as CSV and/or PNG, pulled from a
// running instance's API.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.TokenMint == "" {
		return errors.New("--mint is required")
	}
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	client := resty.New().
		SetBaseURL(a.apiBase(opts.APIBase)).
		SetTimeout(10 * time.Second)

	var points []feed.ScorePoint
	if err := fetchHistory(ctx, client, opts.TokenMint, &points); err != nil {
		return err
	}
	if len(points) == 0 {
		a.Logger.Info().Str("token_mint", opts.TokenMint).Msg("no score history for token")
		return nil
	}

	downsampled := export.Downsample(points, opts.MaxPoints)
	a.Logger.Info().
		Int("total", len(points)).
		Int("exported", len(downsampled)).
		Str("token_mint", opts.TokenMint).
		Msg("exporting score history")

	if opts.CSVPath != "" {
		if err := export.WriteCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := export.WritePNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func fetchHistory(ctx context.Context, client *resty.Client, mint string, out *[]feed.ScorePoint) error {
	resp, err := client.R().
		SetContext(ctx).
		SetQueryParam("mint", mint).
		Get("/api/v1/scores/history")
	if err != nil {
		return fmt.Errorf("fetch score history: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("api status %d: %s", resp.StatusCode(), resp.String())
	}
	return decodeEnvelope(resp.Body(), out)
}
