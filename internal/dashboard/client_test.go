package dashboard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Henry6262/opus-x-sub001/internal/ranking"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestFetchMigrationsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != migrationsPath {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{
				"tokenMint": "mintA",
				"tokenSymbol": "WIF",
				"detectedAt": "2025-06-01T12:00:00Z",
				"expiresAt": "2025-06-01T12:30:00Z",
				"lastAiDecision": "ENTER",
				"lastAiConfidence": 0.8,
				"priceChangePct": 12.5,
				"liquiditySol": "42.5",
				"walletSignals": [{"wallet": "GJRs1", "detectedAt": "2025-06-01T12:01:00Z", "amountSol": "1.2"}]
			},
			{"tokenSymbol": "orphan-without-mint"}
		]`))
	}))
	defer srv.Close()

	client := New(Options{BaseURL: srv.URL, Timeout: time.Second, RequestsPerSec: 100}, noopLogger())

	snapshots, err := client.FetchMigrations(context.Background())
	if err != nil {
		t.Fatalf("fetch should succeed: %v", err)
	}
	if len(snapshots) != 1 {
		t.Fatalf("entries without a mint should be skipped, got %d", len(snapshots))
	}

	s := snapshots[0]
	if s.TokenMint != "mintA" || s.TokenSymbol != "WIF" {
		t.Fatalf("unexpected snapshot: %+v", s)
	}
	if s.LastAiDecision != ranking.DecisionEnter {
		t.Fatalf("decision not mapped: %q", s.LastAiDecision)
	}
	if s.ExpiresAt.IsZero() {
		t.Fatal("expiresAt should be set")
	}
	if len(s.WalletSignals) != 1 || s.WalletSignals[0].Wallet != "GJRs1" {
		t.Fatalf("wallet signals not mapped: %+v", s.WalletSignals)
	}
}

func TestFetchMigrationsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := New(Options{BaseURL: srv.URL, Timeout: time.Second, RequestsPerSec: 100}, noopLogger())
	if _, err := client.FetchMigrations(context.Background()); err == nil {
		t.Fatal("HTTP 502 should return an error")
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(Options{BaseURL: srv.URL, Timeout: time.Second, RequestsPerSec: 1000}, noopLogger())

	for i := 0; i < 5; i++ {
		_, _ = client.FetchMigrations(context.Background())
	}

	start := time.Now()
	_, err := client.FetchMigrations(context.Background())
	if err == nil {
		t.Fatal("open breaker should fail fast")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("open breaker should not hit the network, took %s", elapsed)
	}
}

func TestFetchPositionsOpaquePassthrough(t *testing.T) {
	payload := `{"positions":[{"mint":"mintA","size_sol":1.25}],"updated_at":"2025-06-01T12:00:00Z"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != positionsPath {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	client := New(Options{BaseURL: srv.URL, Timeout: time.Second, RequestsPerSec: 100}, noopLogger())

	raw, err := client.FetchPositions(context.Background())
	if err != nil {
		t.Fatalf("fetch should succeed: %v", err)
	}
	if string(raw) != payload {
		t.Fatalf("payload should pass through untouched, got %s", raw)
	}
}
