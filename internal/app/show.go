package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Henry6262/opus-x-sub001/internal/feed"
	"github.com/Henry6262/opus-x-sub001/internal/ranking"
)

// Show prints the current feed state of a running instance.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	client := resty.New().
		SetBaseURL(a.apiBase(opts.APIBase)).
		SetTimeout(10 * time.Second)

	switch opts.View {
	case "", "decisions":
		return a.showDecisions(ctx, client, "/api/v1/decisions", opts.Limit)
	case "activity":
		return a.showDecisions(ctx, client, "/api/v1/activity", opts.Limit)
	case "ranked":
		return a.showRanked(ctx, client)
	default:
		return fmt.Errorf("unknown view %q (want decisions, activity, or ranked)", opts.View)
	}
}

func (a *App) showDecisions(ctx context.Context, client *resty.Client, path string, limit int) error {
	var records []feed.NormalizedDecision
	if err := fetchEnvelope(ctx, client, path, limit, &records); err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "feed is empty")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tKind\tToken\tConfidence\tPnL (SOL)\tReasoning")

	for _, rec := range records {
		confidence := "-"
		if rec.Confidence != nil {
			confidence = fmt.Sprintf("%.0f%%", *rec.Confidence*100)
		}
		pnl := "-"
		if rec.PnlSol != nil {
			pnl = rec.PnlSol.StringFixed(3)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.Timestamp.UTC().Format(time.RFC3339),
			rec.Kind,
			rec.TokenSymbol,
			confidence,
			pnl,
			sanitizeInline(rec.Reasoning),
		)
	}

	return writer.Flush()
}

func (a *App) showRanked(ctx context.Context, client *resty.Client) error {
	var ranked []ranking.RankedMigration
	if err := fetchEnvelope(ctx, client, "/api/v1/ranked", 0, &ranked); err != nil {
		return err
	}
	if len(ranked) == 0 {
		fmt.Fprintln(os.Stdout, "no ranked candidates")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Token\tScore\tReady\tAI\tExpires In\tMint")

	for _, item := range ranked {
		ready := ""
		if item.IsReadyToTrade {
			ready = "READY"
		}
		expiresIn := "-"
		if !item.ExpiresAt.IsZero() {
			expiresIn = item.ExpiresIn.Truncate(time.Second).String()
		}
		fmt.Fprintf(
			writer,
			"%s\t%.0f\t%s\t%s\t%s\t%s\n",
			item.TokenSymbol,
			item.Score,
			ready,
			item.LastAiDecision,
			expiresIn,
			item.TokenMint,
		)
	}

	return writer.Flush()
}

func fetchEnvelope(ctx context.Context, client *resty.Client, path string, limit int, out any) error {
	req := client.R().SetContext(ctx)
	if limit > 0 {
		req.SetQueryParam("limit", fmt.Sprintf("%d", limit))
	}

	resp, err := req.Get(path)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("api status %d: %s", resp.StatusCode(), resp.String())
	}

	return decodeEnvelope(resp.Body(), out)
}

func decodeEnvelope(body []byte, out any) error {
	var env struct {
		Data  json.RawMessage `json:"data"`
		Error string          `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if env.Error != "" {
		return fmt.Errorf("api error: %s", env.Error)
	}
	if len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
