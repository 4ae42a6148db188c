package trading

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"trading-simulator/src/logger"
	"trading-simulator/src/models"
)

// historySource hands out deep copies of the real history.
type historySource interface {
	Snapshot() models.MHistory
}

// -----------------------------------------------------------------------------
// Engine owns every lobby's simulated history and perturbation queues.
// All state is guarded by mu; nothing in here performs I/O.
// -----------------------------------------------------------------------------

type Engine struct {
	mu sync.Mutex

	symbols      []models.MSymbol
	primaryRange string
	fakeInterval int64 // ms between two materialized synthetic points

	history  map[string]models.MHistory      // lobby -> symbol -> ranges
	queues   map[string]map[string][]float64 // lobby -> symbol -> pending prices
	lastSeen map[string]time.Time

	real   historySource
	rng    *rand.Rand
	now    func() time.Time
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewEngine(cfg *models.MConfig, real historySource, rng *rand.Rand, log *logger.Logger) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Engine{
		symbols:      cfg.Trading.Symbols,
		primaryRange: cfg.Trading.PrimaryRange,
		fakeInterval: cfg.Trading.FakePointIntervalMs,
		history:      make(map[string]models.MHistory),
		queues:       make(map[string]map[string][]float64),
		lastSeen:     make(map[string]time.Time),
		real:         real,
		rng:          rng,
		now:          time.Now,
		Logger:       log.Named("Engine"),
	}
}

// -----------------------------------------------------------------------------

// HasLobby reports whether the lobby has been initialized.
func (e *Engine) HasLobby(lobby string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.history[lobby]
	return ok
}

// -----------------------------------------------------------------------------

// Lobbies returns the initialized lobby ids, sorted.
func (e *Engine) Lobbies() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(e.history))
	for id := range e.history {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// -----------------------------------------------------------------------------

// Touch marks lobbies as referenced by a live session.
func (e *Engine) Touch(lobbies ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	for _, id := range lobbies {
		if _, ok := e.history[id]; ok {
			e.lastSeen[id] = now
		}
	}
}

// -----------------------------------------------------------------------------

// Prune drops lobbies nobody referenced for ttl. Returns the removed ids.
func (e *Engine) Prune(ttl time.Duration) []string {
	if ttl <= 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-ttl)
	var removed []string
	for id, seen := range e.lastSeen {
		if seen.Before(cutoff) {
			delete(e.history, id)
			delete(e.queues, id)
			delete(e.lastSeen, id)
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)

	if len(removed) > 0 {
		e.Logger.Info("Pruned %d idle lobbies", len(removed))
	}
	return removed
}

// -----------------------------------------------------------------------------

// QueueLength returns the number of pending synthetic prices for a lobby/symbol.
func (e *Engine) QueueLength(lobby, symbol string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queues[lobby][symbol])
}

// -----------------------------------------------------------------------------

// QueuedLobbies returns lobbies with at least one pending synthetic price.
func (e *Engine) QueuedLobbies() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queuedLobbiesLocked()
}

func (e *Engine) queuedLobbiesLocked() []string {
	var ids []string
	for id, perSymbol := range e.queues {
		for _, q := range perSymbol {
			if len(q) > 0 {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// -----------------------------------------------------------------------------

// ensureLobbyLocked creates empty structures for a lobby. Returns true if created.
func (e *Engine) ensureLobbyLocked(lobby string) bool {
	e.lastSeen[lobby] = e.now()
	if _, ok := e.history[lobby]; ok {
		return false
	}

	e.history[lobby] = make(models.MHistory, len(e.symbols))
	queues := make(map[string][]float64, len(e.symbols))
	for _, s := range e.symbols {
		queues[s.Symbol] = nil
	}
	e.queues[lobby] = queues
	return true
}
