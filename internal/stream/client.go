package stream

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Henry6262/opus-x-sub001/internal/feed"
)

// Handler receives each decoded upstream event.
type Handler func(feed.RawEvent)

// Options parameterise the upstream stream consumer.
type Options struct {
	URL              string
	HandshakeTimeout time.Duration
	ReadLimit        int64
	BackoffMin       time.Duration
	BackoffMax       time.Duration
}

// Client consumes the upstream event WebSocket and forwards decoded
// envelopes to a handler. One Client feeds exactly one session; there is no
// concurrent writer into the feed state.
type Client struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a stream client.
func New(opts Options, logger zerolog.Logger) *Client {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.BackoffMin <= 0 {
		opts.BackoffMin = time.Second
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = 30 * time.Second
	}
	return &Client{
		opts:   opts,
		logger: logger.With().Str("component", "stream_client").Logger(),
	}
}

// Run connects and consumes until ctx is cancelled, reconnecting with
// capped doubling backoff. Connection errors never terminate the loop.
func (c *Client) Run(ctx context.Context, handler Handler) error {
	if c.opts.URL == "" {
		return errors.New("stream url not configured")
	}

	backoff := c.opts.BackoffMin
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.consume(ctx, handler)
		if errors.Is(err, context.Canceled) {
			return err
		}
		if err != nil {
			c.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("stream disconnected")
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
		if backoff > c.opts.BackoffMax {
			backoff = c.opts.BackoffMax
		}
	}
}

func (c *Client) consume(ctx context.Context, handler Handler) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.opts.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.opts.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if c.opts.ReadLimit > 0 {
		conn.SetReadLimit(c.opts.ReadLimit)
	}

	c.logger.Info().Str("url", c.opts.URL).Msg("stream connected")

	// Close the connection when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		ev, ok := c.decode(payload)
		if !ok {
			continue
		}
		handler(ev)
	}
}

// decode tolerates malformed frames: they are logged and skipped, never
// propagated as errors.
func (c *Client) decode(payload []byte) (feed.RawEvent, bool) {
	var ev feed.RawEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		c.logger.Debug().Err(err).Int("bytes", len(payload)).Msg("skipping malformed frame")
		return feed.RawEvent{}, false
	}
	if ev.Type == "" {
		return feed.RawEvent{}, false
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return ev, true
}
