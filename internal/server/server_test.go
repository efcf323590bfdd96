package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Henry6262/opus-x-sub001/internal/feed"
	"github.com/Henry6262/opus-x-sub001/internal/metrics"
	"github.com/Henry6262/opus-x-sub001/internal/ranking"
)

func newTestServer(t *testing.T) (*Server, *feed.Session, *httptest.Server) {
	t.Helper()

	session := feed.NewSession(feed.SessionOptions{}, zerolog.Nop())
	t.Cleanup(session.Close)

	srv := New(Options{}, session, metrics.New(), zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, session, ts
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func TestDecisionsEndpoint(t *testing.T) {
	_, session, ts := newTestServer(t)

	_, ok := session.Ingest(feed.RawEvent{
		ID:        "e1",
		Type:      feed.EventAiAnalysis,
		Timestamp: time.Now(),
		Data:      json.RawMessage(`{"decision":"ENTER","symbol":"WIF","confidence":0.8}`),
	})
	if !ok {
		t.Fatal("ingest failed")
	}

	var body struct {
		Data []feed.NormalizedDecision `json:"data"`
	}
	resp := getJSON(t, ts.URL+"/api/v1/decisions?limit=5", &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if len(body.Data) != 1 || body.Data[0].Kind != feed.KindBuy {
		t.Fatalf("unexpected body: %+v", body.Data)
	}
}

func TestRankedEndpointFiltersExpired(t *testing.T) {
	_, session, ts := newTestServer(t)

	session.UpdateRanked([]ranking.RankedMigration{
		{TokenMint: "live", Score: 80},
		{TokenMint: "dead", Score: 90, Expired: true},
	})

	var body struct {
		Data []ranking.RankedMigration `json:"data"`
	}
	getJSON(t, ts.URL+"/api/v1/ranked", &body)
	if len(body.Data) != 1 || body.Data[0].TokenMint != "live" {
		t.Fatalf("expired entries should be filtered: %+v", body.Data)
	}

	getJSON(t, ts.URL+"/api/v1/ranked?include_expired=true", &body)
	if len(body.Data) != 2 {
		t.Fatalf("include_expired should return all: %+v", body.Data)
	}
}

func TestScoreHistoryRequiresMint(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp := getJSON(t, ts.URL+"/api/v1/scores/history", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing mint should be a 400, got %d", resp.StatusCode)
	}
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	_, _, ts := newTestServer(t)

	var health map[string]string
	resp := getJSON(t, ts.URL+"/healthz", &health)
	if resp.StatusCode != http.StatusOK || health["status"] != "ok" {
		t.Fatalf("unexpected health response: %d %+v", resp.StatusCode, health)
	}

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected metrics status %d", resp.StatusCode)
	}
}

func TestWebSocketBroadcast(t *testing.T) {
	srv, _, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The subscriber registers asynchronously after the upgrade.
	deadline := time.Now().Add(2 * time.Second)
	var frame struct {
		Kind    string          `json:"kind"`
		Payload json.RawMessage `json:"payload"`
	}
	for {
		srv.Broadcast("decision", map[string]string{"id": "e1"})
		_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		if err := conn.ReadJSON(&frame); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no frame received")
		}
	}

	if frame.Kind != "decision" {
		t.Fatalf("unexpected frame kind %q", frame.Kind)
	}
}
