package trading

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"trading-simulator/src/logger"
	"trading-simulator/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type schedulerFixture struct {
	scheduler   *LobbyScheduler
	engine      *Engine
	provider    *fakeProvider
	sessions    *staticSessions
	broadcaster *recordingBroadcaster
}

func newSchedulerFixture(t *testing.T) *schedulerFixture {
	t.Helper()
	cfg := testConfig()
	log := logger.NewNopLogger()

	provider := newFakeProvider()
	provider.history["BTC"] = series(baseTs, 4, 100, "1h")
	provider.prices["bitcoin"] = 64000

	cache := NewRealHistoryCache(cfg, provider, nil, log)
	cache.Refresh(context.Background())

	engine := NewEngine(cfg, cache, rand.New(rand.NewSource(1)), log)
	orders := NewOrderEngine(cfg, provider, rand.New(rand.NewSource(2)), log)
	sessions := &staticSessions{}
	broadcaster := &recordingBroadcaster{}

	s := NewLobbyScheduler(cfg, engine, orders, cache, sessions, broadcaster, rand.New(rand.NewSource(3)), log)
	return &schedulerFixture{scheduler: s, engine: engine, provider: provider, sessions: sessions, broadcaster: broadcaster}
}

func countEvents(events []recordedEvent, name string) int {
	n := 0
	for _, e := range events {
		if e.event == name {
			n++
		}
	}
	return n
}

func TestDiscoverLobbies_InitializesAndBroadcasts(t *testing.T) {
	f := newSchedulerFixture(t)
	f.sessions.ids = []string{"b", "a", "a"}

	f.scheduler.DiscoverLobbies()

	assert.Equal(t, []string{"a", "b"}, f.engine.Lobbies())
	assert.Equal(t, []string{"a", "a", "b"}, f.broadcaster.lobbies(models.EventUpdateHistory))
	assert.Equal(t, 1, countEvents(f.broadcaster.snapshot(), models.EventUpdateOrders))

	for _, e := range f.broadcaster.snapshot() {
		if u, ok := e.payload.(models.MHistoryUpdate); ok {
			assert.Len(t, u.History["BTC"]["1h"], 4)
		}
	}
}

func TestDiscoverLobbies_NoSessions(t *testing.T) {
	f := newSchedulerFixture(t)
	f.scheduler.DiscoverLobbies()

	assert.Empty(t, f.broadcaster.snapshot())
	assert.Empty(t, f.engine.Lobbies())
}

type panickyBroadcaster struct {
	recordingBroadcaster
}

func (p *panickyBroadcaster) Emit(event string, payload interface{}) {
	if u, ok := payload.(models.MHistoryUpdate); ok && u.Lobby == "bad" {
		panic("socket exploded")
	}
	p.recordingBroadcaster.Emit(event, payload)
}

func TestDiscoverLobbies_IsolatesLobbyFailures(t *testing.T) {
	f := newSchedulerFixture(t)
	pb := &panickyBroadcaster{}
	f.scheduler.Broadcaster = pb
	f.sessions.ids = []string{"bad", "good"}

	require.NotPanics(t, f.scheduler.DiscoverLobbies)
	assert.Equal(t, []string{"good"}, pb.lobbies(models.EventUpdateHistory))
	assert.Equal(t, 1, countEvents(pb.snapshot(), models.EventUpdateOrders))

	require.NotPanics(t, f.scheduler.BroadcastAll)
	assert.Equal(t, []string{"good", "good"}, pb.lobbies(models.EventUpdateHistory))
}

func TestDiscoverLobbies_PrunesIdle(t *testing.T) {
	f := newSchedulerFixture(t)
	clock := &fakeClock{now: time.UnixMilli(baseTs)}
	f.engine.now = clock.Now

	f.sessions.ids = []string{"gone"}
	f.scheduler.DiscoverLobbies()

	f.sessions.ids = nil
	clock.Advance(time.Duration(f.scheduler.Config.Trading.LobbyTTLSeconds+1) * time.Second)
	f.scheduler.DiscoverLobbies()

	assert.Empty(t, f.engine.Lobbies())
}

func TestBroadcastAll(t *testing.T) {
	f := newSchedulerFixture(t)
	f.engine.AddHistory("x")
	f.engine.AddHistory("y")
	require.NoError(t, f.scheduler.Orders.UpdatePrice(context.Background()))

	f.scheduler.BroadcastAll()

	events := f.broadcaster.snapshot()
	assert.Equal(t, []string{"x", "y"}, f.broadcaster.lobbies(models.EventUpdateHistory))
	require.Equal(t, 1, countEvents(events, models.EventUpdateOrders))

	last := events[len(events)-1]
	book, ok := last.payload.(models.MOrderBook)
	require.True(t, ok)
	assert.Len(t, book["BTC"], 1)
}

func TestRefreshRealHistory_ReportsPopulated(t *testing.T) {
	f := newSchedulerFixture(t)
	f.engine.AddHistory("room")

	var reported int32 = -1
	f.scheduler.OnRefresh = func(n int) { atomic.StoreInt32(&reported, int32(n)) }

	f.provider.history["ETH"] = series(baseTs, 4, 10, "1h")
	f.scheduler.RefreshRealHistory(context.Background())

	assert.Equal(t, int32(2), atomic.LoadInt32(&reported))
	update, _ := f.engine.GetHistory("room")
	assert.Len(t, update.History["ETH"]["1h"], 4)
}

func TestScheduler_StartStop(t *testing.T) {
	f := newSchedulerFixture(t)
	f.sessions.ids = []string{"live"}

	f.scheduler.Start(context.Background())

	require.Eventually(t, func() bool {
		events := f.broadcaster.snapshot()
		return countEvents(events, models.EventUpdateHistory) >= 2 && countEvents(events, models.EventUpdateOrders) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	f.scheduler.Stop()
	stopped := len(f.broadcaster.snapshot())
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, len(f.broadcaster.snapshot()))
}

// -----------------------------------------------------------------------------

func TestRepeatingTask_RunsAndStops(t *testing.T) {
	var runs int32
	task := NewRepeatingTask("count", Every(2*time.Millisecond), true, logger.NewNopLogger(), func(context.Context) {
		atomic.AddInt32(&runs, 1)
	})

	task.Start(context.Background())
	task.Start(context.Background())
	assert.True(t, task.Running())

	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 3 }, time.Second, time.Millisecond)

	task.Stop()
	assert.False(t, task.Running())
	after := atomic.LoadInt32(&runs)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&runs))

	task.Stop()
}

func TestRepeatingTask_SurvivesPanics(t *testing.T) {
	var runs int32
	task := NewRepeatingTask("panics", Every(time.Millisecond), false, logger.NewNopLogger(), func(context.Context) {
		atomic.AddInt32(&runs, 1)
		panic("tick failed")
	})

	task.Start(context.Background())
	defer task.Stop()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 3 }, time.Second, time.Millisecond)
}

func TestRepeatingTask_IntervalPerCycle(t *testing.T) {
	var mu sync.Mutex
	var asked int

	interval := func() time.Duration {
		mu.Lock()
		defer mu.Unlock()
		asked++
		return time.Millisecond
	}

	ran := make(chan struct{}, 10)
	task := NewRepeatingTask("jittered", interval, false, logger.NewNopLogger(), func(context.Context) {
		select {
		case ran <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	task.Start(ctx)
	for i := 0; i < 3; i++ {
		<-ran
	}
	cancel()
	task.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, asked, 3)
}
