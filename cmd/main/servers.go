package main

import (
	"context"

	"trading-simulator/src/command"
	"trading-simulator/src/grpc_control"
	"trading-simulator/src/logger"
	"trading-simulator/src/models"
	"trading-simulator/src/server"
	"trading-simulator/src/trading"
)

// -----------------------------------------------------------------------------

// startServers launches the HTTP/websocket server and the gRPC health service
func startServers(srv *server.Server, health *grpc_control.HealthServer, appLogger *logger.Logger) {

	// 1. HTTP API + websocket hub
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Critical("Server failed: %v", err)
		}
	}()

	// 2. gRPC health
	go func() {
		if err := health.Start(); err != nil {
			appLogger.Error("gRPC health service failed: %v", err)
		}
	}()
}

// -----------------------------------------------------------------------------

// startChangeConsumer subscribes to the kafka change topic when enabled
func startChangeConsumer(ctx context.Context, config *models.MConfig, engine *trading.Engine, appLogger *logger.Logger) *command.ChangeConsumer {
	if !config.Kafka.Enabled {
		return nil
	}

	consumer := command.NewChangeConsumer(config.Kafka, engine, appLogger)
	go consumer.Run(ctx)

	appLogger.Info("Consuming change commands from kafka topic '%s'", config.Kafka.Topic)
	return consumer
}
