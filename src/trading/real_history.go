package trading

import (
	"context"
	"sync"

	"trading-simulator/src/interfaces"
	"trading-simulator/src/logger"
	"trading-simulator/src/models"
)

// -----------------------------------------------------------------------------
// RealHistoryCache keeps the fetched real history per symbol. It is the only
// writer of that data; readers get deep copies.
// -----------------------------------------------------------------------------

type RealHistoryCache struct {
	mu   sync.RWMutex
	data models.MHistory

	symbols          []models.MSymbol
	primaryRange     string
	refreshPopulated bool

	provider interfaces.IMarketDataProvider
	archive  interfaces.IHistoryArchive // optional
	Logger   *logger.Logger
}

// -----------------------------------------------------------------------------

func NewRealHistoryCache(cfg *models.MConfig, provider interfaces.IMarketDataProvider, archive interfaces.IHistoryArchive, log *logger.Logger) *RealHistoryCache {
	return &RealHistoryCache{
		data:             make(models.MHistory),
		symbols:          cfg.Trading.Symbols,
		primaryRange:     cfg.Trading.PrimaryRange,
		refreshPopulated: cfg.Trading.RefreshPopulated,
		provider:         provider,
		archive:          archive,
		Logger:           log.Named("RealHistoryCache"),
	}
}

// -----------------------------------------------------------------------------

// Snapshot returns a deep copy of the cached real history.
func (c *RealHistoryCache) Snapshot() models.MHistory {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.Clone()
}

// -----------------------------------------------------------------------------

// Populated returns how many symbols have a non-empty primary range.
func (c *RealHistoryCache) Populated() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, s := range c.symbols {
		if c.isPopulatedLocked(s.Symbol) {
			n++
		}
	}
	return n
}

func (c *RealHistoryCache) isPopulatedLocked(symbol string) bool {
	return len(c.data[symbol][c.primaryRange]) > 0
}

// -----------------------------------------------------------------------------

// Warm loads the archived real history so lobbies can be seeded before the
// first fetch completes. Symbols already populated are left alone.
func (c *RealHistoryCache) Warm(ctx context.Context) error {
	if c.archive == nil {
		return nil
	}

	archived, err := c.archive.LoadRealHistory()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	loaded := 0
	for _, s := range c.symbols {
		ts := archived[s.Symbol]
		if len(ts[c.primaryRange]) == 0 || c.isPopulatedLocked(s.Symbol) {
			continue
		}
		c.data[s.Symbol] = ts
		loaded++
	}

	c.Logger.Info("Warmed %d/%d symbols from archive", loaded, len(c.symbols))
	return ctx.Err()
}

// -----------------------------------------------------------------------------

// Refresh fetches history for every unpopulated symbol (or all symbols when
// configured to refresh populated ones). A failed symbol keeps its previous
// state and is retried on the next call. Returns the number of symbols fetched.
func (c *RealHistoryCache) Refresh(ctx context.Context) int {
	c.mu.RLock()
	var targets []models.MSymbol
	for _, s := range c.symbols {
		if c.refreshPopulated || !c.isPopulatedLocked(s.Symbol) {
			targets = append(targets, s)
		}
	}
	c.mu.RUnlock()

	fetched := make(models.MHistory, len(targets))
	for _, s := range targets {
		if ctx.Err() != nil {
			break
		}

		ts, err := c.provider.FetchHistory(ctx, s)
		if err != nil {
			c.Logger.Warning("History fetch for %s failed: %v", s.Symbol, err)
			continue
		}
		if len(ts[c.primaryRange]) == 0 {
			c.Logger.Warning("History fetch for %s returned no %s points", s.Symbol, c.primaryRange)
			continue
		}
		fetched[s.Symbol] = ts
	}

	if len(fetched) == 0 {
		return 0
	}

	c.mu.Lock()
	for symbol, ts := range fetched {
		c.data[symbol] = ts.Clone()
	}
	c.mu.Unlock()

	if c.archive != nil {
		if err := c.archive.SaveRealHistory(fetched); err != nil {
			c.Logger.Error("Archiving real history failed: %v", err)
		}
	}

	c.Logger.Info("Refreshed %d/%d symbols from %s", len(fetched), len(targets), c.provider.Name())
	return len(fetched)
}
