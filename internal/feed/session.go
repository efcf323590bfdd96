package feed

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Henry6262/opus-x-sub001/internal/ranking"
)

// SessionOptions size the per-session state. Zero values fall back to the
// dashboard defaults.
type SessionOptions struct {
	DecisionCapacity int
	ActivityCapacity int
	HistoryCapacity  int
	PriceThreshold   float64
	ScoreThreshold   float64
	FlashHold        time.Duration
	Clock            Clock

	// OnFlash, when set, is invoked for every flash the session raises.
	// The key carries the "price:" or "score:" prefix.
	OnFlash func(key string, dir FlashDirection)
}

const (
	defaultDecisionCapacity = 20
	defaultActivityCapacity = 50
	defaultHistoryCapacity  = 240

	defaultPriceThreshold = 0.001
	defaultScoreThreshold = 0.02
)

// ScorePoint is one recorded composite score observation, kept for the
// export chart.
type ScorePoint struct {
	TokenMint string    `json:"token_mint"`
	At        time.Time `json:"at"`
	Score     float64   `json:"score"`
}

// Key implements Keyed. History points are never re-delivered, so the key
// only needs to be unique per observation.
func (p ScorePoint) Key() string {
	return fmt.Sprintf("%s@%d", p.TokenMint, p.At.UnixNano())
}

// Session owns all mutable feed state for one consumer: the decision and
// activity windows, the flash trackers, the latest ranked list, and the
// score history. It is constructed explicitly and passed by reference;
// Close tears down every owned timer.
type Session struct {
	id      string
	clock   Clock
	logger  zerolog.Logger
	onFlash func(key string, dir FlashDirection)

	decisions *Buffer[NormalizedDecision]
	activity  *Buffer[NormalizedDecision]

	prices *FlashTracker
	scores *FlashTracker

	mu      sync.RWMutex
	ranked  []ranking.RankedMigration
	history map[string]*Buffer[ScorePoint]
	histCap int
	closed  bool
}

// NewSession constructs a feed session.
func NewSession(opts SessionOptions, logger zerolog.Logger) *Session {
	if opts.DecisionCapacity <= 0 {
		opts.DecisionCapacity = defaultDecisionCapacity
	}
	if opts.ActivityCapacity <= 0 {
		opts.ActivityCapacity = defaultActivityCapacity
	}
	if opts.HistoryCapacity <= 0 {
		opts.HistoryCapacity = defaultHistoryCapacity
	}
	if opts.PriceThreshold <= 0 {
		opts.PriceThreshold = defaultPriceThreshold
	}
	if opts.ScoreThreshold <= 0 {
		opts.ScoreThreshold = defaultScoreThreshold
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}

	id := uuid.NewString()
	return &Session{
		id:        id,
		clock:     opts.Clock,
		onFlash:   opts.OnFlash,
		logger:    logger.With().Str("component", "feed_session").Str("session_id", id).Logger(),
		decisions: NewBuffer[NormalizedDecision](opts.DecisionCapacity),
		activity:  NewBuffer[NormalizedDecision](opts.ActivityCapacity),
		prices: NewFlashTracker(FlashOptions{
			Threshold: opts.PriceThreshold,
			Hold:      opts.FlashHold,
			Clock:     opts.Clock,
		}),
		scores: NewFlashTracker(FlashOptions{
			Threshold: opts.ScoreThreshold,
			Hold:      opts.FlashHold,
			Clock:     opts.Clock,
		}),
		history: make(map[string]*Buffer[ScorePoint]),
		histCap: opts.HistoryCapacity,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Ingest normalizes one raw event into the session. The returned flag is
// false when the event type is unrecognized and was dropped.
func (s *Session) Ingest(ev RawEvent) (NormalizedDecision, bool) {
	decision, ok := Normalize(ev)
	if !ok {
		s.logger.Debug().Str("event_type", ev.Type).Msg("dropping unrecognized event")
		return NormalizedDecision{}, false
	}

	s.activity.Push(decision)
	if decision.Kind != KindSignal {
		s.decisions.Push(decision)
	}

	if decision.Details != nil && !decision.Details.EntryPrice.IsZero() && decision.TokenMint != "" {
		s.observe(s.prices, "price:"+decision.TokenMint, decision.Details.EntryPrice.InexactFloat64())
	}

	return decision, true
}

// UpdateRanked replaces the ranked snapshot, records score history, and
// feeds the score flash tracker.
func (s *Session) UpdateRanked(ranked []ranking.RankedMigration) {
	now := s.clock.Now()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.ranked = ranked
	for _, item := range ranked {
		hist, ok := s.history[item.TokenMint]
		if !ok {
			hist = NewBuffer[ScorePoint](s.histCap)
			s.history[item.TokenMint] = hist
		}
		hist.Push(ScorePoint{TokenMint: item.TokenMint, At: now, Score: item.Score})
	}
	s.mu.Unlock()

	for _, item := range ranked {
		s.observe(s.scores, "score:"+item.TokenMint, item.Score)
	}
}

// ObservePrice feeds an out-of-band price observation for a token.
func (s *Session) ObservePrice(tokenMint string, price float64) FlashDirection {
	return s.observe(s.prices, "price:"+tokenMint, price)
}

func (s *Session) observe(tracker *FlashTracker, key string, value float64) FlashDirection {
	dir := tracker.Observe(key, value)
	if dir != "" && s.onFlash != nil {
		s.onFlash(key, dir)
	}
	return dir
}

// Decisions returns up to limit recent decision records.
func (s *Session) Decisions(limit int) []NormalizedDecision {
	return s.decisions.Head(limit)
}

// Activity returns up to limit recent activity records.
func (s *Session) Activity(limit int) []NormalizedDecision {
	return s.activity.Head(limit)
}

// Ranked returns the latest ranked list. Expired entries are filtered out
// unless includeExpired is set.
func (s *Session) Ranked(includeExpired bool) []ranking.RankedMigration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ranking.RankedMigration, 0, len(s.ranked))
	for _, item := range s.ranked {
		if item.Expired && !includeExpired {
			continue
		}
		out = append(out, item)
	}
	return out
}

// Flashes merges the currently lit price and score flashes.
func (s *Session) Flashes() map[string]FlashState {
	out := s.prices.Snapshot()
	for key, state := range s.scores.Snapshot() {
		out[key] = state
	}
	return out
}

// History returns the recorded score points for a token, oldest first.
func (s *Session) History(tokenMint string) []ScorePoint {
	s.mu.RLock()
	hist, ok := s.history[tokenMint]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	recent := hist.Items()
	out := make([]ScorePoint, len(recent))
	for i, p := range recent {
		out[len(recent)-1-i] = p
	}
	return out
}

// Clear drops all buffered records, keeping ranked and flash state.
func (s *Session) Clear() {
	s.decisions.Clear()
	s.activity.Clear()
}

// Close cancels all flash timers. The session must not be used afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.prices.Close()
	s.scores.Close()
	s.logger.Debug().Msg("session closed")
}
