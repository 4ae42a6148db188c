package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trading-simulator/src/broadcast"
	"trading-simulator/src/config"
	"trading-simulator/src/grpc_control"
	"trading-simulator/src/interfaces"
	"trading-simulator/src/logger"
	"trading-simulator/src/server"
	"trading-simulator/src/trading"
)

// -----------------------------------------------------------------------------

func main() {

	// 1. Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	flag.Parse()

	// 2. Load config
	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// 3. Setup Logger
	appLogger := logger.NewLogger(conf.LogLevel, conf.Name)
	defer appLogger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Setup Components
	archive := setupArchive(conf.MConfig, appLogger)
	provider := setupProvider(conf.MConfig, appLogger)

	cache := trading.NewRealHistoryCache(conf.MConfig, provider, archive, appLogger)
	if err := cache.Warm(ctx); err != nil {
		appLogger.Warning("Could not load archived history: %v", err)
	}

	engine := trading.NewEngine(conf.MConfig, cache, newRand(1), appLogger)
	orders := trading.NewOrderEngine(conf.MConfig, provider, newRand(2), appLogger)

	srv := server.NewServer(conf.MConfig, engine, orders, appLogger)
	health := grpc_control.NewHealthServer(conf.MConfig, appLogger)
	health.SetPopulated(cache.Populated())

	// 5. Broadcast targets (a nil *RedisPublisher must not reach the fanout)
	targets := []interfaces.IBroadcaster{srv}
	if publisher := setupRedis(ctx, conf.MConfig, appLogger); publisher != nil {
		targets = append(targets, publisher)
	}
	fanout := broadcast.NewFanout(targets...)

	// 6. Start Servers
	startServers(srv, health, appLogger)
	consumer := startChangeConsumer(ctx, conf.MConfig, engine, appLogger)

	// 7. Start the simulation
	scheduler := trading.NewLobbyScheduler(conf.MConfig, engine, orders, cache, srv, fanout, newRand(3), appLogger)
	scheduler.OnRefresh = health.SetPopulated
	scheduler.Start(ctx)

	appLogger.Info("Trading simulator running on %s:%d", conf.Host, conf.Port)

	// 8. Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	cancel()
	scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		appLogger.Error("Server shutdown failed: %v", err)
	}
	health.Stop()

	if consumer != nil {
		if err := consumer.Close(); err != nil {
			appLogger.Error("Closing change consumer failed: %v", err)
		}
	}
	if archive != nil {
		if err := archive.Close(); err != nil {
			appLogger.Error("Closing history archive failed: %v", err)
		}
	}

	appLogger.Info("Shutdown complete.")
}
