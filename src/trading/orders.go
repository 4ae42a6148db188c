package trading

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"trading-simulator/src/interfaces"
	"trading-simulator/src/logger"
	"trading-simulator/src/models"
	"trading-simulator/src/utils"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// OrderEngine keeps a bounded tape of synthetic orders per symbol, priced from
// live quotes. One book is shared by every lobby.
// -----------------------------------------------------------------------------

type OrderEngine struct {
	mu     sync.Mutex
	prices map[string]float64 // coin id -> last known price
	books  map[string]*utils.RingBuffer[models.MOrder]

	symbols  []models.MSymbol
	provider interfaces.IMarketDataProvider
	rng      *rand.Rand
	now      func() time.Time
	Logger   *logger.Logger
}

// -----------------------------------------------------------------------------

func NewOrderEngine(cfg *models.MConfig, provider interfaces.IMarketDataProvider, rng *rand.Rand, log *logger.Logger) *OrderEngine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	books := make(map[string]*utils.RingBuffer[models.MOrder], len(cfg.Trading.Symbols))
	for _, s := range cfg.Trading.Symbols {
		books[s.Symbol] = utils.NewRingBuffer[models.MOrder](cfg.Trading.MaxOrders)
	}

	return &OrderEngine{
		prices:   make(map[string]float64),
		books:    books,
		symbols:  cfg.Trading.Symbols,
		provider: provider,
		rng:      rng,
		now:      time.Now,
		Logger:   log.Named("OrderEngine"),
	}
}

// -----------------------------------------------------------------------------

// UpdatePrice refreshes the quote cache and prepends one order per symbol with
// a known price. On fetch failure nothing changes.
func (o *OrderEngine) UpdatePrice(ctx context.Context) error {
	quotes, err := o.provider.FetchCurrentPrices(ctx)
	if err != nil {
		o.Logger.Warning("Price update failed: %v", err)
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	for coinID, price := range quotes {
		o.prices[coinID] = price
	}

	now := o.now()
	for _, s := range o.symbols {
		price, ok := o.prices[s.CoinID]
		if !ok {
			continue
		}
		o.books[s.Symbol].Append(o.placeNewOrder(price, now))
	}

	return nil
}

// -----------------------------------------------------------------------------

// Get returns the order book, newest order first for every symbol.
func (o *OrderEngine) Get() models.MOrderBook {
	o.mu.Lock()
	defer o.mu.Unlock()

	book := make(models.MOrderBook, len(o.books))
	for symbol, rb := range o.books {
		book[symbol] = rb.GetNewestFirst()
	}
	return book
}

// -----------------------------------------------------------------------------

// Price returns the last known quote of a coin id.
func (o *OrderEngine) Price(coinID string) (float64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.prices[coinID]
	return p, ok
}

// -----------------------------------------------------------------------------

func (o *OrderEngine) placeNewOrder(price float64, now time.Time) models.MOrder {
	// Mostly tiny trades with the occasional large one
	amount := o.rng.Float64() * o.rng.Float64() / 10
	if o.rng.Float64() > 0.9 {
		amount += 1
	} else if o.rng.Float64() > 0.9 {
		amount += 0.1
	}

	action := models.ActionSell
	if o.rng.Float64() > 0.5 {
		action = models.ActionBuy
	}

	return models.MOrder{
		Price:  price,
		Amount: decimal.NewFromFloat(amount).StringFixed(10),
		Time:   now.Format("15:04:05"),
		Action: action,
	}
}
