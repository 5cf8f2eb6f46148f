package ingest

import (
	"bytes"
	"context"

	"codeberg.org/mutker/sensorsim/internal/errors"
	"codeberg.org/mutker/sensorsim/internal/logger"
	"codeberg.org/mutker/sensorsim/internal/telemetry"
	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"
)

// Hook writes every batch published on a readings topic into the sink.
// Messages on other topics pass through untouched.
type Hook struct {
	mqtt.HookBase
	prefix string
	sink   telemetry.Writer
	log    logger.Logger
}

func NewHook(prefix string, sink telemetry.Writer, log logger.Logger) *Hook {
	return &Hook{prefix: prefix, sink: sink, log: log}
}

func (h *Hook) ID() string {
	return "sensorsim-ingest"
}

func (h *Hook) Provides(b byte) bool {
	return bytes.Contains([]byte{
		mqtt.OnConnect,
		mqtt.OnPublish,
	}, []byte{b})
}

func (h *Hook) OnConnect(cl *mqtt.Client, _ packets.Packet) error {
	h.log.Debug().Str("client_id", cl.ID).Msg("Client connected")
	return nil
}

// OnPublish stores the batch before the broker forwards the message. A
// malformed payload is rejected; a store failure is returned to the broker.
func (h *Hook) OnPublish(cl *mqtt.Client, pk packets.Packet) (packets.Packet, error) {
	deviceID, ok := ParseTopic(h.prefix, pk.TopicName)
	if !ok {
		return pk, nil
	}

	if err := h.ingest(deviceID, pk.Payload); err != nil {
		h.log.Error().
			Err(err).
			Str("client_id", cl.ID).
			Str("topic", pk.TopicName).
			Msg("Failed to ingest batch")
		if errors.HasCode(err, ErrInvalidPayload) || errors.HasCode(err, ErrTopicMismatch) {
			return pk, packets.ErrRejectPacket
		}
		return pk, err
	}

	return pk, nil
}

func (h *Hook) ingest(deviceID string, payload []byte) error {
	batch, err := DecodeBatch(payload)
	if err != nil {
		return err
	}
	for _, r := range batch {
		if r.DeviceID != deviceID {
			return errors.New().WithMessage(ErrTopicMismatch, r.DeviceID+" published on topic of "+deviceID)
		}
	}

	if err := h.sink.Insert(context.Background(), batch); err != nil {
		return err
	}

	h.log.Debug().
		Str("device_id", deviceID).
		Int("readings", len(batch)).
		Msg("Batch ingested")
	return nil
}
