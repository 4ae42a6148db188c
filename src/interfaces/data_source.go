package interfaces

import (
	"context"

	"trading-simulator/src/models"
)

// -----------------------------------------------------------------------------
// IMarketDataProvider fetches real market data the simulation is blended with.
// -----------------------------------------------------------------------------

type IMarketDataProvider interface {

	// Name returns the unique identifier of the provider
	Name() string

	// -----------------------------------------------------------------------------

	// FetchHistory retrieves the real price history of one symbol, keyed by range label.
	FetchHistory(ctx context.Context, symbol models.MSymbol) (models.MTimeSeries, error)

	// -----------------------------------------------------------------------------

	// FetchCurrentPrices retrieves the latest price per coin identifier.
	FetchCurrentPrices(ctx context.Context) (map[string]float64, error)
}
