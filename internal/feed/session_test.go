package feed

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Henry6262/opus-x-sub001/internal/ranking"
)

func newTestSession(clock Clock) *Session {
	return NewSession(SessionOptions{
		DecisionCapacity: 5,
		ActivityCapacity: 10,
		Clock:            clock,
	}, zerolog.Nop())
}

func TestSessionRoutesSignalsToActivityOnly(t *testing.T) {
	session := newTestSession(newFakeClock())
	defer session.Close()

	_, ok := session.Ingest(RawEvent{
		ID:   "s1",
		Type: EventWalletSignal,
		Data: json.RawMessage(`{"wallet":"GJRs...","token":"WIF"}`),
	})
	require.True(t, ok)

	_, ok = session.Ingest(RawEvent{
		ID:   "d1",
		Type: EventAiAnalysis,
		Data: json.RawMessage(`{"decision":"ENTER","symbol":"WIF"}`),
	})
	require.True(t, ok)

	assert.Len(t, session.Activity(0), 2)

	decisions := session.Decisions(0)
	require.Len(t, decisions, 1)
	assert.Equal(t, KindBuy, decisions[0].Kind)
}

func TestSessionDropsUnknownEvents(t *testing.T) {
	session := newTestSession(newFakeClock())
	defer session.Close()

	_, ok := session.Ingest(RawEvent{ID: "x", Type: "heartbeat"})
	assert.False(t, ok)
	assert.Empty(t, session.Activity(0))
}

func TestSessionDecisionWindowBounded(t *testing.T) {
	session := newTestSession(newFakeClock())
	defer session.Close()

	for i := 0; i < 12; i++ {
		_, ok := session.Ingest(RawEvent{
			ID:   fmt.Sprintf("d%d", i),
			Type: EventAiAnalysis,
			Data: json.RawMessage(`{"decision":"PASS"}`),
		})
		require.True(t, ok)
	}

	assert.Len(t, session.Decisions(0), 5)
	assert.Len(t, session.Activity(0), 10)
}

func TestSessionRankedFiltersExpired(t *testing.T) {
	session := newTestSession(newFakeClock())
	defer session.Close()

	session.UpdateRanked([]ranking.RankedMigration{
		{TokenMint: "live", Score: 70},
		{TokenMint: "gone", Score: 80, Expired: true},
	})

	live := session.Ranked(false)
	require.Len(t, live, 1)
	assert.Equal(t, "live", live[0].TokenMint)

	assert.Len(t, session.Ranked(true), 2)
}

func TestSessionScoreFlashOnRankedRefresh(t *testing.T) {
	clock := newFakeClock()
	session := newTestSession(clock)
	defer session.Close()

	session.UpdateRanked([]ranking.RankedMigration{{TokenMint: "mintA", Score: 50}})
	session.UpdateRanked([]ranking.RankedMigration{{TokenMint: "mintA", Score: 60}})

	flashes := session.Flashes()
	require.Contains(t, flashes, "score:mintA")
	assert.Equal(t, FlashUp, flashes["score:mintA"].Direction)
}

func TestSessionFlashHookFires(t *testing.T) {
	type fired struct {
		key string
		dir FlashDirection
	}

	var got []fired
	session := NewSession(SessionOptions{
		Clock: newFakeClock(),
		OnFlash: func(key string, dir FlashDirection) {
			got = append(got, fired{key, dir})
		},
	}, zerolog.Nop())
	defer session.Close()

	session.ObservePrice("mintA", 1.0)
	session.ObservePrice("mintA", 1.5)
	session.UpdateRanked([]ranking.RankedMigration{{TokenMint: "mintA", Score: 50}})
	session.UpdateRanked([]ranking.RankedMigration{{TokenMint: "mintA", Score: 40}})

	require.Len(t, got, 2)
	assert.Equal(t, fired{"price:mintA", FlashUp}, got[0])
	assert.Equal(t, fired{"score:mintA", FlashDown}, got[1])
}

func TestSessionHistoryOldestFirst(t *testing.T) {
	clock := newFakeClock()
	session := newTestSession(clock)
	defer session.Close()

	for _, score := range []float64{40, 55, 62} {
		session.UpdateRanked([]ranking.RankedMigration{{TokenMint: "mintA", Score: score}})
		clock.Advance(time.Minute)
	}

	points := session.History("mintA")
	require.Len(t, points, 3)
	assert.Equal(t, 40.0, points[0].Score)
	assert.Equal(t, 62.0, points[2].Score)
	assert.Nil(t, session.History("unknown"))
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	session := newTestSession(newFakeClock())
	session.Close()
	session.Close()

	session.UpdateRanked([]ranking.RankedMigration{{TokenMint: "late", Score: 10}})
	assert.Empty(t, session.Ranked(true))
}
