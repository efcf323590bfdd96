package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func readyNote() Notification {
	conf := 0.8
	return Notification{
		TokenSymbol:  "WIF",
		TokenMint:    "mintA",
		Score:        82,
		Threshold:    60,
		AiDecision:   "ENTER",
		AiConfidence: &conf,
		DetectedAt:   time.Now(),
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("路径应包含 sendMessage, 实际 %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())

	if err := notifier.Notify(context.Background(), readyNote()); err != nil {
		t.Fatalf("Telegram Notify 应成功: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("chat_id 不正确: %#v", received)
	}
	if !strings.Contains(received["text"], "WIF") || !strings.Contains(received["text"], "82") {
		t.Fatalf("消息应包含 token 与分数: %q", received["text"])
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())

	if err := notifier.Notify(context.Background(), readyNote()); err == nil {
		t.Fatal("ok=false 应报错")
	}
}

type countingNotifier struct {
	calls atomic.Int32
}

func (c *countingNotifier) Notify(context.Context, Notification) error {
	c.calls.Add(1)
	return nil
}

func TestCooldownSuppressesRepeats(t *testing.T) {
	inner := &countingNotifier{}
	notifier := NewCooldownNotifier(inner, time.Hour)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := base
	notifier.now = func() time.Time { return current }

	note := readyNote()
	for i := 0; i < 3; i++ {
		if err := notifier.Notify(context.Background(), note); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}
	if got := inner.calls.Load(); got != 1 {
		t.Fatalf("冷却期内应只发送一次, 实际 %d", got)
	}

	current = base.Add(2 * time.Hour)
	if err := notifier.Notify(context.Background(), note); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got := inner.calls.Load(); got != 2 {
		t.Fatalf("冷却结束后应重新发送, 实际 %d", got)
	}
}

func TestCooldownDistinctTokensIndependent(t *testing.T) {
	inner := &countingNotifier{}
	notifier := NewCooldownNotifier(inner, time.Hour)

	a := readyNote()
	b := readyNote()
	b.TokenMint = "mintB"

	_ = notifier.Notify(context.Background(), a)
	_ = notifier.Notify(context.Background(), b)

	if got := inner.calls.Load(); got != 2 {
		t.Fatalf("不同 token 应互不影响, 实际 %d", got)
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
