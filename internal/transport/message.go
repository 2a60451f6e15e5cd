package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind classifies a JSON-RPC message.
type Kind int

const (
	KindInvalid Kind = iota
	KindRequest
	KindNotification
	KindResponse
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNotification:
		return "notification"
	case KindResponse:
		return "response"
	default:
		return "invalid"
	}
}

// Envelope holds the routing fields of a JSON-RPC message.
type Envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

// HasID reports whether the message carries a non-null id.
func (e *Envelope) HasID() bool {
	return len(e.ID) > 0 && !bytes.Equal(e.ID, []byte("null"))
}

// Kind returns the message kind derived from the envelope fields.
func (e *Envelope) Kind() Kind {
	switch {
	case e.Method != "" && e.HasID():
		return KindRequest
	case e.Method != "":
		return KindNotification
	case e.HasID() && (len(e.Result) > 0 || len(e.Error) > 0):
		return KindResponse
	default:
		return KindInvalid
	}
}

// Describe returns "method" or "id" for logging.
func (e *Envelope) Describe() string {
	if e.Method != "" {
		if e.HasID() {
			return fmt.Sprintf("%s#%s", e.Method, e.ID)
		}
		return e.Method
	}
	return string(e.ID)
}

// Parse decodes the routing fields of msg.
func Parse(msg json.RawMessage) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return nil, fmt.Errorf("invalid JSON-RPC message: %w", err)
	}
	if env.Kind() == KindInvalid {
		return nil, fmt.Errorf("unrecognized JSON-RPC message shape")
	}
	return &env, nil
}

// IsBatch reports whether msg is a JSON array.
func IsBatch(msg json.RawMessage) bool {
	trimmed := bytes.TrimLeft(msg, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

// SplitBatch returns the elements of a JSON-RPC batch.
func SplitBatch(msg json.RawMessage) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(msg, &items); err != nil {
		return nil, fmt.Errorf("invalid JSON-RPC batch: %w", err)
	}
	return items, nil
}
