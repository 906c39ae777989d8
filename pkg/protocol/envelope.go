// Package protocol defines the JSON contract exchanged between vehicles and
// the mission hub over the message fabric.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Severity grades an envelope.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ErrInvalidEnvelope is returned when a payload is not a well-formed envelope.
var ErrInvalidEnvelope = errors.New("invalid envelope")

// Envelope is the canonical wrapper of every vehicle-originated message.
// It is never mutated after it has been sent.
type Envelope struct {
	VIN       string          `json:"vin"`
	Timestamp int64           `json:"timestamp"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Severity  Severity        `json:"severity"`
}

// NewEnvelope builds an envelope stamped with the current time.
func NewEnvelope(vin, typ string, data any, severity Severity) (*Envelope, error) {
	env := &Envelope{
		VIN:       vin,
		Timestamp: Now(),
		Type:      typ,
		Severity:  severity,
	}

	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s data: %w", typ, err)
		}
		env.Data = raw
	}

	if err := env.Validate(); err != nil {
		return nil, err
	}
	return env, nil
}

// Parse decodes and validates an envelope from a raw payload. A missing
// severity defaults to info.
func Parse(payload []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if env.Severity == "" {
		env.Severity = SeverityInfo
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

// Validate checks the fields every producer must set.
func (e *Envelope) Validate() error {
	if e.Type == "" {
		return fmt.Errorf("%w: type is required", ErrInvalidEnvelope)
	}
	switch e.Severity {
	case SeverityInfo, SeverityWarning, SeverityError:
	default:
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidEnvelope, e.Severity)
	}
	return nil
}

// DecodeData unmarshals the data section into v.
func (e *Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%w: %s has no data", ErrInvalidEnvelope, e.Type)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: %s data: %v", ErrInvalidEnvelope, e.Type, err)
	}
	return nil
}

// Marshal returns the JSON encoding of the envelope.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Now returns the current time in epoch milliseconds.
func Now() int64 {
	return time.Now().UnixMilli()
}
