package command

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"trading-simulator/src/helpers"
	"trading-simulator/src/logger"
	"trading-simulator/src/models"

	"github.com/segmentio/kafka-go"
)

// messageReader is the subset of *kafka.Reader used by the consumer.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// changer applies a directed move to a lobby.
type changer interface {
	Change(cmd models.MChangeCommand) error
}

// -----------------------------------------------------------------------------
// ChangeConsumer applies directed moves published on a kafka topic, so admin
// tooling and promotions can nudge a lobby's market without HTTP access.
// -----------------------------------------------------------------------------

type ChangeConsumer struct {
	reader messageReader
	engine changer
	Logger *logger.Logger

	// RetryDelay is the first pause after a failed read; it doubles up to MaxRetryDelay.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// -----------------------------------------------------------------------------

func NewChangeConsumer(cfg models.MKafkaConfig, engine changer, log *logger.Logger) *ChangeConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})
	return newChangeConsumer(reader, engine, log)
}

func newChangeConsumer(reader messageReader, engine changer, log *logger.Logger) *ChangeConsumer {
	return &ChangeConsumer{
		reader:        reader,
		engine:        engine,
		Logger:        log.Named("ChangeConsumer"),
		RetryDelay:    500 * time.Millisecond,
		MaxRetryDelay: 30 * time.Second,
	}
}

// -----------------------------------------------------------------------------

// Run reads messages until ctx is done or the reader is closed. Read failures
// back off exponentially; a panicking message is logged and skipped.
func (c *ChangeConsumer) Run(ctx context.Context) {
	c.Logger.Info("Starting change consumer")

	delay := c.RetryDelay
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				c.Logger.Info("Change consumer stopped")
				return
			}
			c.Logger.Error("Read message failed, retrying in %v: %v", delay, err)

			select {
			case <-ctx.Done():
				c.Logger.Info("Change consumer stopped")
				return
			case <-time.After(delay):
			}
			if delay *= 2; delay > c.MaxRetryDelay {
				delay = c.MaxRetryDelay
			}
			continue
		}
		delay = c.RetryDelay

		// Handle logs its own rejections
		helpers.SafeRun(c.Logger, "change message", func() error {
			c.Handle(msg)
			return nil
		})
	}
}

// -----------------------------------------------------------------------------

// Handle decodes one message and applies it. Bad messages are logged and skipped.
func (c *ChangeConsumer) Handle(msg kafka.Message) error {
	var cmd models.MChangeCommand
	if err := json.Unmarshal(msg.Value, &cmd); err != nil {
		c.Logger.Warning("Skipping undecodable change at offset %d: %v", msg.Offset, err)
		return err
	}

	if err := c.engine.Change(cmd); err != nil {
		c.Logger.Warning("Change %s/%s rejected: %v", cmd.Lobby, cmd.Symbol, err)
		return err
	}

	c.Logger.Info("Applied change %s %s %.2f%% on %s", cmd.Symbol, cmd.Direction, cmd.Percent, cmd.Lobby)
	return nil
}

// -----------------------------------------------------------------------------

func (c *ChangeConsumer) Close() error {
	return c.reader.Close()
}
