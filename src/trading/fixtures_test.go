package trading

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"sync"
	"time"

	"trading-simulator/src/logger"
	"trading-simulator/src/models"
)

const testInterval = int64(113598)

var errProviderDown = errors.New("provider down")

func testConfig() *models.MConfig {
	return &models.MConfig{
		Trading: models.MTradingConfig{
			Symbols:               []models.MSymbol{{Symbol: "BTC", CoinID: "bitcoin"}, {Symbol: "ETH", CoinID: "ethereum"}},
			PrimaryRange:          "1h",
			FakePointIntervalMs:   testInterval,
			ApplyIntervalMs:       5,
			OrderIntervalMs:       5,
			BroadcastIntervalMs:   5,
			DiscoveryMinDelayMs:   1,
			DiscoveryJitterMs:     2,
			HistoryRefreshMinutes: 10,
			MaxOrders:             100,
			LobbyTTLSeconds:       300,
		},
	}
}

// series builds n points per range ending at lastTs, spaced one minute apart.
func series(lastTs int64, n int, price float64, labels ...string) models.MTimeSeries {
	ts := make(models.MTimeSeries, len(labels))
	for _, label := range labels {
		points := make([]models.MTimeSeriesPoint, n)
		for i := range points {
			points[i] = models.MTimeSeriesPoint{
				Timestamp: lastTs - int64(n-1-i)*60000,
				Price:     price + float64(i),
			}
		}
		ts[label] = points
	}
	return ts
}

// -----------------------------------------------------------------------------

type staticHistory struct {
	mu   sync.Mutex
	data models.MHistory
}

func (s *staticHistory) Snapshot() models.MHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Clone()
}

func (s *staticHistory) set(symbol string, ts models.MTimeSeries) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = make(models.MHistory)
	}
	s.data[symbol] = ts
}

// -----------------------------------------------------------------------------

type fakeProvider struct {
	mu       sync.Mutex
	history  map[string]models.MTimeSeries // by symbol
	failing  map[string]bool
	prices   map[string]float64
	priceErr error
	calls    map[string]int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		history: make(map[string]models.MTimeSeries),
		failing: make(map[string]bool),
		prices:  make(map[string]float64),
		calls:   make(map[string]int),
	}
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) FetchHistory(ctx context.Context, symbol models.MSymbol) (models.MTimeSeries, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[symbol.Symbol]++
	if f.failing[symbol.Symbol] {
		return nil, errProviderDown
	}
	return f.history[symbol.Symbol].Clone(), nil
}

func (f *fakeProvider) FetchCurrentPrices(ctx context.Context) (map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.priceErr != nil {
		return nil, f.priceErr
	}
	out := make(map[string]float64, len(f.prices))
	for k, v := range f.prices {
		out[k] = v
	}
	return out, nil
}

func (f *fakeProvider) callCount(symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[symbol]
}

// -----------------------------------------------------------------------------

type memoryArchive struct {
	mu      sync.Mutex
	data    models.MHistory
	saves   int
	loadErr error
}

func (m *memoryArchive) Initialize() error { return nil }
func (m *memoryArchive) Close() error      { return nil }

func (m *memoryArchive) SaveRealHistory(h models.MHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(models.MHistory)
	}
	for symbol, ts := range h {
		m.data[symbol] = ts.Clone()
	}
	m.saves++
	return nil
}

func (m *memoryArchive) LoadRealHistory() (models.MHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.data.Clone(), nil
}

// -----------------------------------------------------------------------------

type recordedEvent struct {
	event   string
	payload interface{}
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingBroadcaster) Emit(event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{event, payload})
}

func (r *recordingBroadcaster) snapshot() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedEvent(nil), r.events...)
}

func (r *recordingBroadcaster) lobbies(event string) []string {
	var ids []string
	for _, e := range r.snapshot() {
		if e.event != event {
			continue
		}
		if u, ok := e.payload.(models.MHistoryUpdate); ok {
			ids = append(ids, u.Lobby)
		}
	}
	sort.Strings(ids)
	return ids
}

type staticSessions struct {
	mu  sync.Mutex
	ids []string
}

func (s *staticSessions) ActiveLobbyIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ids...)
}

// -----------------------------------------------------------------------------

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTestEngine returns an engine whose clock starts at the given epoch millis.
func newTestEngine(real historySource, nowMs int64, seed int64) (*Engine, *fakeClock) {
	clock := &fakeClock{now: time.UnixMilli(nowMs)}
	e := NewEngine(testConfig(), real, rand.New(rand.NewSource(seed)), logger.NewNopLogger())
	e.now = clock.Now
	return e, clock
}
