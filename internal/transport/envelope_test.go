package transport

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/chatmesh-io/chatmesh/internal/crypto"
	"github.com/chatmesh-io/chatmesh/internal/models"
)

func newTestSigner(t *testing.T) *crypto.Signer {
	t.Helper()
	s, err := crypto.NewSignerFromBytes([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSealOpenRoundTrip(t *testing.T) {
	signer := newTestSigner(t)

	in := models.MessageToRoute{
		Text:      "hello",
		MessageID: "01HZXW0000000000000000000X",
		Status:    models.StatusSuccess,
	}
	sealed, err := Seal(signer, in)
	if err != nil {
		t.Fatal(err)
	}

	payload, err := Open(signer, sealed)
	if err != nil {
		t.Fatal(err)
	}

	var out models.MessageToRoute
	if err := json.Unmarshal(payload, &out); err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Fatalf("round trip changed message: got %+v, want %+v", out, in)
	}
}

func TestOpenTamperedPayloadFails(t *testing.T) {
	signer := newTestSigner(t)

	sealed, err := Seal(signer, map[string]string{"body": "original"})
	if err != nil {
		t.Fatal(err)
	}

	var env struct {
		Payload   []byte `json:"p"`
		Signature string `json:"s"`
	}
	if err := json.Unmarshal(sealed, &env); err != nil {
		t.Fatal(err)
	}
	env.Payload[0] ^= 0xFF
	tampered, _ := json.Marshal(env)

	if _, err := Open(signer, tampered); !errors.Is(err, ErrEnvelopeIntegrity) {
		t.Fatalf("expected ErrEnvelopeIntegrity, got %v", err)
	}
}

func TestOpenWrongKeyFails(t *testing.T) {
	signer := newTestSigner(t)
	other, err := crypto.NewSignerFromBytes([]byte("another-secret-key-of-32-bytes!!"))
	if err != nil {
		t.Fatal(err)
	}

	sealed, err := Seal(signer, "payload")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Open(other, sealed); !errors.Is(err, ErrEnvelopeIntegrity) {
		t.Fatalf("expected ErrEnvelopeIntegrity, got %v", err)
	}
}

func TestOpenGarbageFails(t *testing.T) {
	signer := newTestSigner(t)
	if _, err := Open(signer, []byte("not an envelope")); !errors.Is(err, ErrEnvelopeIntegrity) {
		t.Fatalf("expected ErrEnvelopeIntegrity, got %v", err)
	}
}

func TestWriteArgumentErrors(t *testing.T) {
	q := NewRedisQueue("redis://localhost:6379", newTestSigner(t), zerolog.Nop())

	// Argument validation happens before any broker connection is made.
	if err := q.Write(context.Background(), "item", WriteOptions{}); !errors.Is(err, ErrQueueNameRequired) {
		t.Fatalf("expected ErrQueueNameRequired, got %v", err)
	}
	if err := q.Write(context.Background(), nil, WriteOptions{Queue: QueueRaw}); !errors.Is(err, ErrItemRequired) {
		t.Fatalf("expected ErrItemRequired, got %v", err)
	}
}

func TestReadArgumentErrors(t *testing.T) {
	q := NewRedisQueue("redis://localhost:6379", newTestSigner(t), zerolog.Nop())

	if _, err := q.Read(context.Background(), ""); !errors.Is(err, ErrQueueNameRequired) {
		t.Fatalf("expected ErrQueueNameRequired, got %v", err)
	}
}

func TestDestinationKey(t *testing.T) {
	if got := destinationKey(WriteOptions{Queue: QueueRaw}); got != QueueRaw {
		t.Fatalf("plain queue: got %q", got)
	}
	if got := destinationKey(WriteOptions{Queue: QueueRaw, Exchange: "chat", RoutingKey: "route"}); got != "chat.route" {
		t.Fatalf("exchange binding: got %q", got)
	}
}
