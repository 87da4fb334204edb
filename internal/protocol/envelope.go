package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// RecordSeparator terminates every frame on the wire
const RecordSeparator byte = 0x1E

// Kind identifies the shape of an envelope
type Kind int

const (
	KindInvocation Kind = 1 // target + arguments, both directions
	KindCompletion Kind = 3 // reply to an invocation carrying an invocationId
	KindKeepalive  Kind = 6
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownKind    = errors.New("unknown envelope kind")
)

// Envelope is a single wire message
type Envelope struct {
	Kind         Kind              `json:"type"`
	InvocationID string            `json:"invocationId,omitempty"`
	Target       string            `json:"target,omitempty"`
	Arguments    []json.RawMessage `json:"arguments,omitempty"`
	Result       json.RawMessage   `json:"result,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// NewInvocation builds an invocation. An empty invocationID means no
// completion is expected.
func NewInvocation(target, invocationID string, args ...any) (*Envelope, error) {
	raw := make([]json.RawMessage, len(args))
	for i, arg := range args {
		data, err := json.Marshal(arg)
		if err != nil {
			return nil, fmt.Errorf("encode argument %d of %s: %w", i, target, err)
		}
		raw[i] = data
	}
	return &Envelope{
		Kind:         KindInvocation,
		InvocationID: invocationID,
		Target:       target,
		Arguments:    raw,
	}, nil
}

// NewCompletion builds a successful completion. A nil result is sent as a
// completion with neither result nor error.
func NewCompletion(invocationID string, result any) (*Envelope, error) {
	env := &Envelope{Kind: KindCompletion, InvocationID: invocationID}
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("encode result: %w", err)
		}
		env.Result = data
	}
	return env, nil
}

// NewCompletionError builds a failed completion
func NewCompletionError(invocationID, message string) *Envelope {
	return &Envelope{Kind: KindCompletion, InvocationID: invocationID, Error: message}
}

// Keepalive returns a keepalive envelope
func Keepalive() *Envelope {
	return &Envelope{Kind: KindKeepalive}
}

// Arg decodes positional argument i into dst
func (e *Envelope) Arg(i int, dst any) error {
	if i >= len(e.Arguments) {
		return fmt.Errorf("%s: missing argument %d", e.Target, i)
	}
	if err := json.Unmarshal(e.Arguments[i], dst); err != nil {
		return fmt.Errorf("%s: argument %d: %w", e.Target, i, err)
	}
	return nil
}

// DecodeResult decodes a completion result into dst
func (e *Envelope) DecodeResult(dst any) error {
	if len(e.Result) == 0 || dst == nil {
		return nil
	}
	return json.Unmarshal(e.Result, dst)
}

// Validate checks required fields for the envelope's kind
func (e *Envelope) Validate() error {
	switch e.Kind {
	case KindInvocation:
		if e.Target == "" {
			return fmt.Errorf("%w: invocation without target", ErrMalformedFrame)
		}
	case KindCompletion:
		if e.InvocationID == "" {
			return fmt.Errorf("%w: completion without invocationId", ErrMalformedFrame)
		}
		if len(e.Result) > 0 && e.Error != "" {
			return fmt.Errorf("%w: completion with both result and error", ErrMalformedFrame)
		}
	case KindKeepalive:
	default:
		return fmt.Errorf("%w: %d", ErrUnknownKind, e.Kind)
	}
	return nil
}

// Encode serialises the envelope and appends the record separator
func Encode(env *Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return append(data, RecordSeparator), nil
}

// Decode parses and validates a single record without its separator
func Decode(record []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(record, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

// Split breaks a message into its records. Empty records are dropped and a
// trailing record without a separator is returned as is.
func Split(message []byte) [][]byte {
	var records [][]byte
	for _, part := range bytes.Split(message, []byte{RecordSeparator}) {
		if len(bytes.TrimSpace(part)) == 0 {
			continue
		}
		records = append(records, part)
	}
	return records
}
