package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 5 * time.Second
	subscriberSlop = 16
)

// pushFrame is the wire shape of one WebSocket update.
type pushFrame struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload"`
	At      int64  `json:"at"`
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// hub fans push frames out to WebSocket subscribers. Slow consumers are
// dropped rather than allowed to stall the broadcast path.
type hub struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	logger zerolog.Logger
}

func newHub(logger zerolog.Logger) *hub {
	return &hub{
		subs:   make(map[*subscriber]struct{}),
		logger: logger.With().Str("component", "ws_hub").Logger(),
	}
}

func (h *hub) add(conn *websocket.Conn) {
	sub := &subscriber{conn: conn, send: make(chan []byte, subscriberSlop)}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	count := len(h.subs)
	h.mu.Unlock()

	h.logger.Debug().Int("subscribers", count).Msg("websocket subscriber added")

	go h.writeLoop(sub)
	go h.readLoop(sub)
}

func (h *hub) writeLoop(sub *subscriber) {
	defer h.remove(sub)
	for msg := range sub.send {
		_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := sub.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = sub.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
}

// readLoop discards inbound frames; its job is to notice the peer going
// away so the subscriber gets cleaned up.
func (h *hub) readLoop(sub *subscriber) {
	defer h.remove(sub)
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *hub) remove(sub *subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.send)
	}
	h.mu.Unlock()
	sub.conn.Close()
}

func (h *hub) broadcast(kind string, payload any) {
	frame, err := json.Marshal(pushFrame{Kind: kind, Payload: payload, At: time.Now().UnixMilli()})
	if err != nil {
		h.logger.Error().Err(err).Str("kind", kind).Msg("failed to encode push frame")
		return
	}

	h.mu.Lock()
	var stale []*subscriber
	for sub := range h.subs {
		select {
		case sub.send <- frame:
		default:
			stale = append(stale, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range stale {
		h.logger.Warn().Msg("dropping slow websocket subscriber")
		h.remove(sub)
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		h.remove(sub)
	}
}
