package ingest

import (
	"encoding/json"
	"strings"

	"codeberg.org/mutker/sensorsim/internal/errors"
	"codeberg.org/mutker/sensorsim/internal/sensor"
)

const readingsSuffix = "readings"

// Topic returns the topic a device publishes its batches on.
func Topic(prefix, deviceID string) string {
	return strings.Trim(prefix, "/") + "/" + deviceID + "/" + readingsSuffix
}

// ParseTopic extracts the device id from a readings topic under prefix.
func ParseTopic(prefix, topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, strings.Trim(prefix, "/")+"/")
	if !ok {
		return "", false
	}
	deviceID, ok := strings.CutSuffix(rest, "/"+readingsSuffix)
	if !ok || deviceID == "" || strings.Contains(deviceID, "/") {
		return "", false
	}
	return deviceID, true
}

// EncodeBatch serialises one tick's readings as a JSON array.
func EncodeBatch(batch []sensor.Reading) ([]byte, error) {
	b, err := json.Marshal(batch)
	if err != nil {
		return nil, errors.New().Wrap(ErrInvalidPayload, err)
	}
	return b, nil
}

// DecodeBatch parses a payload produced by EncodeBatch. Units are taken from
// the kind table and timestamps are normalised to UTC.
func DecodeBatch(payload []byte) ([]sensor.Reading, error) {
	var batch []sensor.Reading
	if err := json.Unmarshal(payload, &batch); err != nil {
		return nil, errors.New().Wrap(ErrInvalidPayload, err)
	}
	if len(batch) == 0 {
		return nil, errors.New().WithMessage(ErrInvalidPayload, "empty batch")
	}
	for i, r := range batch {
		if r.DeviceID == "" || r.Timestamp.IsZero() {
			return nil, errors.New().WithData(ErrInvalidPayload, r)
		}
		batch[i] = sensor.NewReading(r.Timestamp, r.DeviceID, r.Kind, r.Value)
	}
	return batch, nil
}
