package transport

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chatmesh-io/chatmesh/internal/crypto"
)

// ErrEnvelopeIntegrity marks an envelope whose signature did not match the
// recomputed integrity code.
var ErrEnvelopeIntegrity = errors.New("envelope integrity check failed")

// envelope is what actually crosses the broker: the serialized payload plus
// an HMAC over it. The broker never sees unsigned application data.
type envelope struct {
	Payload   []byte `json:"p"`
	Signature string `json:"s"`
}

// Seal serializes item and wraps it in a signed envelope.
func Seal(signer *crypto.Signer, item any) ([]byte, error) {
	payload, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("serialize payload: %w", err)
	}
	return json.Marshal(envelope{
		Payload:   payload,
		Signature: signer.Sign(payload),
	})
}

// Open parses a sealed envelope and recomputes the integrity code over the
// payload. A signature mismatch returns ErrEnvelopeIntegrity.
func Open(signer *crypto.Signer, data []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed envelope", ErrEnvelopeIntegrity)
	}
	if err := signer.Verify(env.Payload, env.Signature); err != nil {
		return nil, ErrEnvelopeIntegrity
	}
	return env.Payload, nil
}
