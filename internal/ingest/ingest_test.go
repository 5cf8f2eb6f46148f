package ingest

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/sensorsim/internal/errors"
	"codeberg.org/mutker/sensorsim/internal/logger"
	"codeberg.org/mutker/sensorsim/internal/sensor"
	"codeberg.org/mutker/sensorsim/internal/telemetry"
	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSink struct {
	mu       sync.Mutex
	readings []sensor.Reading
	err      error
}

func (m *memSink) Insert(_ context.Context, batch []sensor.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.readings = append(m.readings, batch...)
	return nil
}

func (m *memSink) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.readings)
}

var ts = time.Date(2024, 7, 4, 8, 30, 0, 123456789, time.UTC)

func batchFor(deviceID string) []sensor.Reading {
	return []sensor.Reading{
		sensor.NewReading(ts, deviceID, sensor.KindTemperature, 22.5),
		sensor.NewReading(ts, deviceID, sensor.KindMotion, 1),
	}
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "sensors/device-01/readings", Topic("sensors", "device-01"))
	assert.Equal(t, "sensors/device-01/readings", Topic("/sensors/", "device-01"))

	id, ok := ParseTopic("sensors", "sensors/device-01/readings")
	assert.True(t, ok)
	assert.Equal(t, "device-01", id)

	for _, topic := range []string{
		"sensors/device-01/status",
		"other/device-01/readings",
		"sensors//readings",
		"sensors/a/b/readings",
	} {
		_, ok := ParseTopic("sensors", topic)
		assert.False(t, ok, topic)
	}
}

func TestBatchCodec(t *testing.T) {
	payload, err := EncodeBatch(batchFor("device-01"))
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"sensor_type":"temperature"`)

	got, err := DecodeBatch(payload)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, ts.Equal(got[0].Timestamp))
	assert.Equal(t, sensor.KindTemperature, got[0].Kind)
	assert.Equal(t, "°C", got[0].Unit)
	assert.Equal(t, 1.0, got[1].Value)
}

func TestDecodeBatchRejectsGarbage(t *testing.T) {
	for _, payload := range []string{`not json`, `[]`, `[{"value":1}]`} {
		_, err := DecodeBatch([]byte(payload))
		assert.True(t, errors.HasCode(err, ErrInvalidPayload), payload)
	}
}

func TestHookStoresBatch(t *testing.T) {
	sink := &memSink{}
	h := NewHook("sensors", sink, logger.Nop())
	assert.True(t, h.Provides(mqtt.OnPublish))
	assert.False(t, h.Provides(mqtt.OnSubscribe))

	payload, err := EncodeBatch(batchFor("device-07"))
	require.NoError(t, err)

	_, err = h.OnPublish(&mqtt.Client{ID: "device-07"}, packets.Packet{
		TopicName: Topic("sensors", "device-07"),
		Payload:   payload,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, sink.len())
}

func TestHookIgnoresOtherTopics(t *testing.T) {
	sink := &memSink{}
	h := NewHook("sensors", sink, logger.Nop())

	_, err := h.OnPublish(&mqtt.Client{ID: "c"}, packets.Packet{TopicName: "chat/general", Payload: []byte("hi")})
	require.NoError(t, err)
	assert.Zero(t, sink.len())
}

func TestHookRejectsBadBatches(t *testing.T) {
	sink := &memSink{}
	h := NewHook("sensors", sink, logger.Nop())

	_, err := h.OnPublish(&mqtt.Client{ID: "c"}, packets.Packet{
		TopicName: Topic("sensors", "device-01"),
		Payload:   []byte("{"),
	})
	assert.ErrorIs(t, err, packets.ErrRejectPacket)

	payload, err := EncodeBatch(batchFor("device-02"))
	require.NoError(t, err)
	_, err = h.OnPublish(&mqtt.Client{ID: "c"}, packets.Packet{
		TopicName: Topic("sensors", "device-01"),
		Payload:   payload,
	})
	assert.ErrorIs(t, err, packets.ErrRejectPacket)
	assert.Zero(t, sink.len())
}

func TestHookSurfacesStoreFailure(t *testing.T) {
	sink := &memSink{err: errors.New().New(telemetry.ErrStoreUnavailable)}
	h := NewHook("sensors", sink, logger.Nop())

	payload, err := EncodeBatch(batchFor("device-01"))
	require.NoError(t, err)
	_, err = h.OnPublish(&mqtt.Client{ID: "c"}, packets.Packet{
		TopicName: Topic("sensors", "device-01"),
		Payload:   payload,
	})
	assert.True(t, errors.HasCode(err, telemetry.ErrStoreUnavailable))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{TopicPrefix: "/"}.Validate())
	assert.Error(t, Config{TopicPrefix: "sensors/#"}.Validate())
}

func TestInlinePublisher(t *testing.T) {
	sink := &memSink{}
	b, err := NewBroker(Config{TopicPrefix: "sensors"}, sink, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Serve())
	t.Cleanup(func() { b.Close() })

	var w telemetry.Writer = b.Publisher()
	require.NoError(t, w.Insert(context.Background(), batchFor("device-01")))

	assert.Eventually(t, func() bool { return sink.len() == 2 }, time.Second, 10*time.Millisecond)
}

func freeAddress(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return fmt.Sprintf("127.0.0.1:%d", l.Addr().(*net.TCPAddr).Port)
}

func TestRemotePublisher(t *testing.T) {
	sink := &memSink{}
	addr := freeAddress(t)

	b, err := NewBroker(Config{Address: addr, TopicPrefix: "sensors"}, sink, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Serve())
	t.Cleanup(func() { b.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := Dial(ctx, addr, "device-03", "sensors", logger.Nop())
	require.NoError(t, err)

	require.NoError(t, p.Insert(ctx, batchFor("device-03")))
	require.NoError(t, p.Insert(ctx, batchFor("device-03")))
	assert.Eventually(t, func() bool { return sink.len() == 4 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, p.Close())
	assert.Error(t, p.Insert(ctx, batchFor("device-03")))
}
