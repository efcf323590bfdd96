package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Notification 封装一次 ready-to-trade 告警上下文。
type Notification struct {
	TokenSymbol  string
	TokenMint    string
	Score        float64
	Threshold    float64
	AiDecision   string
	AiConfidence *float64
	DetectedAt   time.Time
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram 返回 ok=false")
		}
	}

	n.logger.Info().Str("token", note.TokenSymbol).
		Str("mint", note.TokenMint).
		Float64("score", note.Score).
		Msg("告警已发送 (Telegram)")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[opus-x Ready-to-Trade]\n")
	builder.WriteString(fmt.Sprintf("Token: %s\n", note.TokenSymbol))
	if note.TokenMint != "" {
		builder.WriteString(fmt.Sprintf("Mint: %s\n", note.TokenMint))
	}
	builder.WriteString(fmt.Sprintf("Score: %.0f (threshold %.0f)\n", note.Score, note.Threshold))
	builder.WriteString(fmt.Sprintf("AI decision: %s\n", note.AiDecision))
	if note.AiConfidence != nil {
		builder.WriteString(fmt.Sprintf("AI confidence: %.0f%%\n", *note.AiConfidence*100))
	}
	if !note.DetectedAt.IsZero() {
		builder.WriteString(fmt.Sprintf("Detected: %s UTC\n", note.DetectedAt.UTC().Format(time.RFC3339)))
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)

// CooldownNotifier suppresses repeated alerts for the same token within a
// cooldown window.
type CooldownNotifier struct {
	inner    Notifier
	cooldown time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time
	now      func() time.Time
}

// NewCooldownNotifier wraps a notifier with per-token cooldown.
func NewCooldownNotifier(inner Notifier, cooldown time.Duration) *CooldownNotifier {
	return &CooldownNotifier{
		inner:    inner,
		cooldown: cooldown,
		lastSent: make(map[string]time.Time),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Notify forwards the alert unless the token is still cooling down.
func (c *CooldownNotifier) Notify(ctx context.Context, note Notification) error {
	key := note.TokenMint
	if key == "" {
		key = note.TokenSymbol
	}

	c.mu.Lock()
	now := c.now()
	if last, ok := c.lastSent[key]; ok && c.cooldown > 0 && now.Sub(last) < c.cooldown {
		c.mu.Unlock()
		return nil
	}
	c.lastSent[key] = now
	c.mu.Unlock()

	return c.inner.Notify(ctx, note)
}

var _ Notifier = (*CooldownNotifier)(nil)
