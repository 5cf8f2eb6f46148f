package ingest

import "codeberg.org/mutker/sensorsim/internal/errors"

const (
	ErrInvalidConfig  = errors.ErrorCode("ingest_invalid_config")
	ErrInvalidPayload = errors.ErrorCode("ingest_invalid_payload")
	ErrTopicMismatch  = errors.ErrorCode("ingest_topic_mismatch")
	ErrBrokerFailed   = errors.ErrorCode("ingest_broker_failed")
	ErrPublishFailed  = errors.ErrorCode("ingest_publish_failed")
)
