package capture

import (
	"encoding/json"

	logger "github.com/sirupsen/logrus"
)

// EmptyPayload is stored in place of a context or trace that failed to encode.
const EmptyPayload = "[]"

// Context is the ambient state the host attaches to a capture.
type Context map[string]interface{}

// SnapshotContext encodes values for storage. It never fails: on error the
// EmptyPayload placeholder is returned and the failure is logged.
func SnapshotContext(values Context) string {
	if values == nil {
		values = Context{}
	}

	payload, err := encode("context", values)
	if err != nil {
		logger.WithField("component", LogComponent).
			WithError(err).
			Warn("Failed to encode context data, storing placeholder")
		return EmptyPayload
	}
	return payload
}

// EncodeTrace encodes a stack trace with the same fallback as SnapshotContext.
func EncodeTrace(trace interface{}) string {
	if trace == nil {
		return EmptyPayload
	}

	payload, err := encode("trace", trace)
	if err != nil {
		logger.WithField("component", LogComponent).
			WithError(err).
			Warn("Failed to encode trace data, storing placeholder")
		return EmptyPayload
	}
	return payload
}

func encode(field string, v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", &SerializationError{Field: field, Err: err}
	}
	return string(b), nil
}
