// Package ingest moves reading batches over MQTT: an embedded broker whose
// hook writes published batches into the telemetry store, and publishers
// that devices use in place of a direct store connection.
package ingest

import (
	"context"
	"log/slog"
	"os"

	"codeberg.org/mutker/sensorsim/internal/errors"
	"codeberg.org/mutker/sensorsim/internal/logger"
	"codeberg.org/mutker/sensorsim/internal/sensor"
	"codeberg.org/mutker/sensorsim/internal/telemetry"
	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
)

// Broker is an in-process MQTT server feeding a telemetry writer.
type Broker struct {
	cfg    Config
	server *mqtt.Server
	log    logger.Logger
}

// NewBroker prepares the server, hooks and optional TCP listener.
func NewBroker(cfg Config, sink telemetry.Writer, log logger.Logger) (*Broker, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	server := mqtt.New(&mqtt.Options{
		InlineClient: true,
		Logger:       slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	})

	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, errFactory.Wrap(ErrBrokerFailed, err)
	}
	if err := server.AddHook(NewHook(cfg.TopicPrefix, sink, log), nil); err != nil {
		return nil, errFactory.Wrap(ErrBrokerFailed, err)
	}

	if cfg.Address != "" {
		tcp := listeners.NewTCP(listeners.Config{
			ID:      "t1",
			Address: cfg.Address,
		})
		if err := server.AddListener(tcp); err != nil {
			return nil, errFactory.Wrap(ErrBrokerFailed, err)
		}
	}

	return &Broker{cfg: cfg, server: server, log: log}, nil
}

// Serve starts the listeners and returns immediately.
func (b *Broker) Serve() error {
	if err := b.server.Serve(); err != nil {
		return errors.New().Wrap(ErrBrokerFailed, err)
	}
	b.log.Info().Str("address", b.cfg.Address).Msg("MQTT broker started")
	return nil
}

func (b *Broker) Close() error {
	if err := b.server.Close(); err != nil {
		return errors.New().Wrap(ErrBrokerFailed, err)
	}
	b.log.Info().Msg("MQTT broker stopped")
	return nil
}

// Publisher returns a writer that publishes through the broker's inline client.
func (b *Broker) Publisher() *InlinePublisher {
	return &InlinePublisher{server: b.server, prefix: b.cfg.TopicPrefix}
}

// InlinePublisher implements telemetry.Writer on top of the embedded broker.
// Delivery is fire-and-forget: store failures surface in the broker log only.
type InlinePublisher struct {
	server *mqtt.Server
	prefix string
}

func (p *InlinePublisher) Insert(_ context.Context, batch []sensor.Reading) error {
	if len(batch) == 0 {
		return nil
	}

	payload, err := EncodeBatch(batch)
	if err != nil {
		return err
	}

	if err := p.server.Publish(Topic(p.prefix, batch[0].DeviceID), payload, false, 1); err != nil {
		return errors.New().Wrap(ErrPublishFailed, err)
	}
	return nil
}
