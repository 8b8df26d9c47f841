package protocol

import (
	"fmt"

	"github.com/bytedance/sonic"

	"vocalink/core"
)

// Marshal creates a JSON-encoded Envelope from a message type and payload.
func Marshal(msgType MessageType, payload interface{}) ([]byte, error) {
	var raw []byte
	if payload != nil {
		b, err := sonic.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("protocol: marshal payload for %q: %w", msgType, err)
		}
		raw = b
	}
	return sonic.Marshal(Envelope{
		Type: msgType,
		Data: raw,
	})
}

// Unmarshal parses a JSON-encoded Envelope. A malformed frame or a frame
// without a type yields a *core.ProtocolError.
func Unmarshal(data []byte) (*Envelope, error) {
	var env Envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return nil, core.NewProtocolError("unmarshal envelope: %v", err)
	}
	if env.Type == "" {
		return nil, core.NewProtocolError("envelope missing type field")
	}
	return &env, nil
}

// UnmarshalPayload decodes a raw JSON payload into a typed struct. An empty
// body decodes to the zero value, matching clients that omit the data field.
func UnmarshalPayload[T any](raw []byte) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := sonic.Unmarshal(raw, &v); err != nil {
		return v, core.NewProtocolError("unmarshal payload: %v", err)
	}
	return v, nil
}
