package capture

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Fields is the identifying subset of an error. Stack traces and context
// never take part in the signature.
type Fields struct {
	Code    interface{}
	Message string
	File    string
	Line    int
	Kind    string
}

// SerializationError reports that a value could not be encoded to JSON.
type SerializationError struct {
	Field string
	Err   error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize %s: %v", e.Field, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// canonicalFields fixes the key order of the hashed document.
type canonicalFields struct {
	Code    interface{} `json:"code"`
	Message string      `json:"message"`
	File    string      `json:"file"`
	Line    int         `json:"line"`
	Kind    string      `json:"type"`
}

// DeriveSignature returns the hex encoded SHA-256 of the canonical JSON form
// of f.
func DeriveSignature(f Fields) (string, error) {
	payload, err := json.Marshal(canonicalFields{
		Code:    f.Code,
		Message: f.Message,
		File:    f.File,
		Line:    f.Line,
		Kind:    f.Kind,
	})
	if err != nil {
		return "", &SerializationError{Field: "identifying fields", Err: err}
	}

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
