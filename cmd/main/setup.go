package main

import (
	"context"
	"math/rand"
	"time"

	"trading-simulator/src/broadcast"
	"trading-simulator/src/data_source/coingecko"
	"trading-simulator/src/interfaces"
	"trading-simulator/src/logger"
	"trading-simulator/src/models"
	"trading-simulator/src/network"
	"trading-simulator/src/storage"
)

// -----------------------------------------------------------------------------

// setupArchive opens the history archive. The simulator still runs without one.
func setupArchive(config *models.MConfig, appLogger *logger.Logger) interfaces.IHistoryArchive {
	archive, err := storage.NewHistoryArchive(config, appLogger)
	if err != nil {
		appLogger.Warning("Failed to create history archive: %v", err)
		return nil
	}
	if archive == nil {
		appLogger.Info("History archive disabled")
		return nil
	}

	if err := archive.Initialize(); err != nil {
		appLogger.Warning("Failed to initialize history archive, continuing without it: %v", err)
		archive.Close()
		return nil
	}
	return archive
}

// -----------------------------------------------------------------------------

// setupProvider builds the market data provider on top of the retrying network manager
func setupProvider(config *models.MConfig, appLogger *logger.Logger) interfaces.IMarketDataProvider {
	networkManager := network.NewAsyncNetworkManager(config, appLogger)
	source := coingecko.NewSource(config, networkManager, appLogger)
	appLogger.Info("Using market data provider %s (%d symbols, %d ranges)",
		source.Name(), len(config.Trading.Symbols), len(config.DataSource.Ranges))
	return source
}

// -----------------------------------------------------------------------------

// setupRedis starts the redis publisher when enabled. Returns nil otherwise.
func setupRedis(ctx context.Context, config *models.MConfig, appLogger *logger.Logger) *broadcast.RedisPublisher {
	if !config.Redis.Enabled {
		return nil
	}

	client, err := broadcast.NewRedisClient(ctx, config.Redis)
	if err != nil {
		appLogger.Warning("Redis fan-out disabled: %v", err)
		return nil
	}

	publisher := broadcast.NewRedisPublisher(client, config.Redis.ChannelPrefix, appLogger)
	go publisher.Run(ctx)
	go func() {
		<-ctx.Done()
		client.Close()
	}()

	appLogger.Info("Publishing events to redis %s with prefix '%s'", config.Redis.Address, config.Redis.ChannelPrefix)
	return publisher
}

// -----------------------------------------------------------------------------

// newRand returns an independent source; math/rand sources are not goroutine safe.
func newRand(offset int64) *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano() + offset))
}
