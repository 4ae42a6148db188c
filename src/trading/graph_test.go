package trading

import (
	"errors"
	"math"
	"testing"
	"time"

	"trading-simulator/src/helpers"
	"trading-simulator/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseTs = int64(1_700_000_000_000)

func seededEngine(t *testing.T, seed int64) (*Engine, *fakeClock) {
	t.Helper()
	real := &staticHistory{}
	real.set("BTC", series(baseTs, 10, 100, "1h", "24h"))
	real.set("ETH", series(baseTs, 10, 50, "1h", "24h"))

	e, clock := newTestEngine(real, baseTs, seed)
	e.AddHistory("room")
	return e, clock
}

func queueOf(e *Engine, lobby, symbol string) []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]float64(nil), e.queues[lobby][symbol]...)
}

func TestGuideGraph_QueueLengthMatchesSubMoves(t *testing.T) {
	e, _ := seededEngine(t, 1)

	expected := 0
	for _, percent := range []float64{0, 0.4, 1, 2.6, 5} {
		n, err := e.GuideGraph("room", "BTC", models.DirectionUp, percent)
		require.NoError(t, err)

		want := int(math.Max(1, math.Round(percent)*6))
		assert.Equal(t, want, n)
		expected += want
	}

	assert.Equal(t, expected, e.QueueLength("room", "BTC"))
	assert.Equal(t, 0, e.QueueLength("room", "ETH"))
}

func TestGuideGraph_FIFO(t *testing.T) {
	e, _ := seededEngine(t, 2)

	_, err := e.GuideGraph("room", "BTC", models.DirectionUp, 2)
	require.NoError(t, err)
	first := queueOf(e, "room", "BTC")

	_, err = e.GuideGraph("room", "BTC", models.DirectionDown, 1)
	require.NoError(t, err)
	all := queueOf(e, "room", "BTC")

	require.Len(t, all, len(first)+6)
	assert.Equal(t, first, all[:len(first)])
}

func TestGuideGraph_Direction(t *testing.T) {
	e, _ := seededEngine(t, 3)
	base := 109.0 // last price of the seeded BTC primary range

	_, err := e.GuideGraph("room", "BTC", models.DirectionUp, 3)
	require.NoError(t, err)
	q := queueOf(e, "room", "BTC")
	assert.Greater(t, q[len(q)-1], base)

	_, err = e.GuideGraph("room", "ETH", models.DirectionDown, 3)
	require.NoError(t, err)
	q = queueOf(e, "room", "ETH")
	assert.Less(t, q[len(q)-1], 59.0)
}

func TestGuideGraph_NoHistory(t *testing.T) {
	e, _ := newTestEngine(&staticHistory{}, baseTs, 1)
	e.AddHistory("empty")

	_, err := e.GuideGraph("empty", "BTC", models.DirectionUp, 1)
	var dsErr *helpers.DataSourceError
	assert.True(t, errors.As(err, &dsErr))
}

func TestProlongLastChange(t *testing.T) {
	e, _ := seededEngine(t, 4)

	assert.Equal(t, 0, e.ProlongLastChange("room", "BTC", 5), "empty queue is a no-op")

	_, err := e.GuideGraph("room", "BTC", models.DirectionUp, 1)
	require.NoError(t, err)
	before := queueOf(e, "room", "BTC")
	last := before[len(before)-1]
	tolerance := math.Abs(last - before[len(before)-2])

	assert.Equal(t, 7, e.ProlongLastChange("room", "BTC", 7))
	after := queueOf(e, "room", "BTC")
	require.Len(t, after, len(before)+7)

	for _, p := range after[len(before):] {
		assert.LessOrEqual(t, math.Abs(p-last), tolerance+1e-9)
	}
}

func TestProlongLastChange_SingleQueuedUsesHistoryTail(t *testing.T) {
	e, _ := seededEngine(t, 5)

	e.mu.Lock()
	e.queues["room"]["BTC"] = []float64{111}
	e.mu.Unlock()

	e.ProlongLastChange("room", "BTC", 20)
	q := queueOf(e, "room", "BTC")
	require.Len(t, q, 21)
	for _, p := range q[1:] {
		// tolerance is 111 - 109
		assert.InDelta(t, 111, p, 2+1e-9)
	}
}

func TestChange_RisesThenRevertsTowardBaseline(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		e, _ := seededEngine(t, seed)
		baseline := 109.0

		err := e.Change(models.MChangeCommand{Lobby: "room", Symbol: "BTC", Direction: models.DirectionUp, Percent: 5, Duration: 10})
		require.NoError(t, err)

		q := queueOf(e, "room", "BTC")
		peak := q[0]
		for _, p := range q {
			peak = math.Max(peak, p)
		}
		last := q[len(q)-1]

		assert.Greater(t, peak, baseline, "seed %d", seed)
		assert.Less(t, last, peak, "seed %d", seed)
		assert.Less(t, math.Abs(last-baseline), peak-baseline, "seed %d", seed)
	}
}

func TestChange_DownDipsThenRecovers(t *testing.T) {
	e, _ := seededEngine(t, 9)
	baseline := 109.0

	require.NoError(t, e.Change(models.MChangeCommand{Lobby: "room", Symbol: "BTC", Direction: models.DirectionDown, Percent: 4, Duration: 3}))

	q := queueOf(e, "room", "BTC")
	trough := q[0]
	for _, p := range q {
		trough = math.Min(trough, p)
	}
	assert.Less(t, trough, baseline)
	assert.Greater(t, q[len(q)-1], trough)
}

func TestChange_Validation(t *testing.T) {
	e, _ := seededEngine(t, 1)

	err := e.Change(models.MChangeCommand{Lobby: "room", Symbol: "DOGE", Direction: models.DirectionUp, Percent: 1})
	var vErr *helpers.ValidationError
	assert.True(t, errors.As(err, &vErr))

	err = e.Change(models.MChangeCommand{Lobby: "room", Symbol: "BTC", Direction: "left", Percent: 1})
	assert.True(t, errors.As(err, &vErr))

	err = e.Change(models.MChangeCommand{Lobby: "room", Symbol: "BTC", Direction: models.DirectionUp, Percent: math.NaN()})
	assert.True(t, errors.As(err, &vErr))

	for _, percent := range []float64{1e6, 1e10, 1e15} {
		err = e.Change(models.MChangeCommand{Lobby: "room", Symbol: "BTC", Direction: models.DirectionUp, Percent: percent})
		assert.True(t, errors.As(err, &vErr), "percent %g", percent)
	}
	assert.Equal(t, 0, e.QueueLength("room", "BTC"))
}

func TestChange_QueueIsCapped(t *testing.T) {
	e, _ := seededEngine(t, 3)
	big := models.MChangeCommand{Lobby: "room", Symbol: "BTC", Direction: models.DirectionUp, Percent: 100, Duration: 10000}

	accepted := 0
	var err error
	for i := 0; i < 5; i++ {
		if err = e.Change(big); err != nil {
			break
		}
		accepted++
	}

	var vErr *helpers.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, 2, accepted)
	assert.LessOrEqual(t, e.QueueLength("room", "BTC"), maxQueuedPoints)

	// a small move still fits next to the pending points
	require.NoError(t, e.Change(models.MChangeCommand{Lobby: "room", Symbol: "BTC", Direction: models.DirectionDown, Percent: 1}))
}

func TestGuideGraph_RejectsOversizedMoves(t *testing.T) {
	e, _ := seededEngine(t, 1)

	var vErr *helpers.ValidationError
	for _, percent := range []float64{1e15, math.Inf(1), math.NaN()} {
		n, err := e.GuideGraph("room", "BTC", models.DirectionUp, percent)
		assert.True(t, errors.As(err, &vErr), "percent %g", percent)
		assert.Zero(t, n)
	}
	assert.Equal(t, 0, e.QueueLength("room", "BTC"))
}

func TestProlongLastChange_StopsAtCap(t *testing.T) {
	e, _ := seededEngine(t, 1)

	_, err := e.GuideGraph("room", "BTC", models.DirectionUp, 1)
	require.NoError(t, err)

	n := e.ProlongLastChange("room", "BTC", maxQueuedPoints)
	assert.Equal(t, maxQueuedPoints-6, n)
	assert.Equal(t, maxQueuedPoints, e.QueueLength("room", "BTC"))
	assert.Zero(t, e.ProlongLastChange("room", "BTC", 10))
}

func TestChange_UnknownLobbyIsInitialized(t *testing.T) {
	e, _ := seededEngine(t, 1)

	require.NoError(t, e.Change(models.MChangeCommand{Lobby: "fresh", Symbol: "ETH", Direction: models.DirectionUp, Percent: 1, Duration: 2}))
	assert.True(t, e.HasLobby("fresh"))
	assert.Positive(t, e.QueueLength("fresh", "ETH"))
}

func TestChange_WithoutRealHistory(t *testing.T) {
	e, _ := newTestEngine(&staticHistory{}, baseTs, 1)

	err := e.Change(models.MChangeCommand{Lobby: "room", Symbol: "BTC", Direction: models.DirectionUp, Percent: 1})
	var dsErr *helpers.DataSourceError
	assert.True(t, errors.As(err, &dsErr))
	assert.True(t, e.HasLobby("room"))
	assert.Equal(t, 0, e.QueueLength("room", "BTC"))
}

func TestApplyFakedHistory_ThrottledToOnePointPerInterval(t *testing.T) {
	e, clock := seededEngine(t, 6)
	_, err := e.GuideGraph("room", "BTC", models.DirectionUp, 1)
	require.NoError(t, err)
	queued := queueOf(e, "room", "BTC")

	// Last point is at baseTs, so nothing is due yet
	clock.Advance(time.Duration(testInterval-1) * time.Millisecond)
	assert.Equal(t, 0, e.ApplyFakedHistory())

	clock.Advance(time.Millisecond)
	assert.Equal(t, 1, e.ApplyFakedHistory())
	assert.Equal(t, len(queued)-1, e.QueueLength("room", "BTC"))

	// Same instant again: the new point is too recent
	assert.Equal(t, 0, e.ApplyFakedHistory())

	update, ok := e.GetHistory("room")
	require.True(t, ok)
	for label, points := range update.History["BTC"] {
		require.Len(t, points, 10, label)
		last := points[len(points)-1]
		assert.Equal(t, baseTs+testInterval, last.Timestamp, label)
		assert.Equal(t, queued[0], last.Price, label)
	}

	// ETH had nothing queued
	eth := update.History["ETH"]["1h"]
	assert.Equal(t, baseTs, eth[len(eth)-1].Timestamp)
}

func TestApplyFakedHistory_DrainsFIFOAndKeepsLengths(t *testing.T) {
	e, clock := seededEngine(t, 7)
	_, err := e.GuideGraph("room", "BTC", models.DirectionUp, 1)
	require.NoError(t, err)
	_, err = e.GuideGraph("room", "ETH", models.DirectionDown, 1)
	require.NoError(t, err)
	btc := queueOf(e, "room", "BTC")

	for i := 0; i < 3; i++ {
		clock.Advance(time.Duration(testInterval) * time.Millisecond)
		assert.Equal(t, 2, e.ApplyFakedHistory())
	}

	update, _ := e.GetHistory("room")
	for _, symbol := range []string{"BTC", "ETH"} {
		ts := update.History[symbol]
		assert.Equal(t, len(ts["1h"]), len(ts["24h"]))
		for _, points := range ts {
			for i := 1; i < len(points); i++ {
				assert.Greater(t, points[i].Timestamp, points[i-1].Timestamp)
			}
		}
	}

	points := update.History["BTC"]["1h"]
	assert.Equal(t, btc[:3], []float64{points[7].Price, points[8].Price, points[9].Price})
}

func TestApplyFakedHistory_NoQueueNoChange(t *testing.T) {
	e, clock := seededEngine(t, 8)
	before, _ := e.GetHistory("room")

	clock.Advance(time.Hour)
	assert.Equal(t, 0, e.ApplyFakedHistory())

	after, _ := e.GetHistory("room")
	assert.Equal(t, before, after)
}
