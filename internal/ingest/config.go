package ingest

import (
	"strings"

	"codeberg.org/mutker/sensorsim/internal/errors"
)

const (
	DefaultAddress     = ":1883"
	DefaultTopicPrefix = "sensors"
)

// Config for the embedded broker. An empty Address runs the broker with the
// inline client only.
type Config struct {
	Address     string
	TopicPrefix string
}

func DefaultConfig() Config {
	return Config{
		Address:     DefaultAddress,
		TopicPrefix: DefaultTopicPrefix,
	}
}

func (c Config) Validate() error {
	if strings.Trim(c.TopicPrefix, "/") == "" {
		return errors.New().WithMessage(ErrInvalidConfig, "topic prefix must not be empty")
	}
	if strings.ContainsAny(c.TopicPrefix, "+#") {
		return errors.New().WithMessage(ErrInvalidConfig, "topic prefix must not contain wildcards")
	}
	return nil
}
