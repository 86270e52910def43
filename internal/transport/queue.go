// Package transport provides the signed publish/consume primitive every
// pipeline stage communicates through. Payloads cross the broker inside a
// signed envelope; a forged or corrupted message surfaces as data
// (ReadInvalid), never as an error that could kill a consumer loop.
package transport

import (
	"context"
	"errors"
)

// Queue role constants. Producer and consumer of each role must agree on
// these names.
const (
	QueueRaw     = "chat.raw"
	QueueProcess = "chat.process"
	QueueRoute   = "chat.route"
	QueueSend    = "chat.send"
)

var (
	ErrQueueNameRequired = errors.New("queue name is required")
	ErrItemRequired      = errors.New("item is required")
)

// ReadStatus tags the outcome of a Read.
type ReadStatus int

const (
	// ReadOK means Payload holds a verified message body.
	ReadOK ReadStatus = iota
	// ReadEmpty means the queue currently has nothing available.
	ReadEmpty
	// ReadInvalid means a message was fetched but failed its integrity
	// check. Callers treat this the same as "no usable message".
	ReadInvalid
)

// ReadResult is the tagged result of one Read call.
type ReadResult struct {
	Status  ReadStatus
	Payload []byte
}

// WriteOptions addresses a publish. Queue is required; when Exchange is
// named the destination becomes Exchange-bound under RoutingKey. Mandatory
// publishes return broker errors instead of swallowing them.
type WriteOptions struct {
	Queue      string
	Exchange   string
	RoutingKey string
	Mandatory  bool
}

// Queue is the signed publish/consume contract shared by all stages.
type Queue interface {
	Write(ctx context.Context, item any, opts WriteOptions) error
	Read(ctx context.Context, queue string) (ReadResult, error)
}
