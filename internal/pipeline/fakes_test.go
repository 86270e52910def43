package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/chatmesh-io/chatmesh/internal/crypto"
	"github.com/chatmesh-io/chatmesh/internal/models"
	"github.com/chatmesh-io/chatmesh/internal/transport"
)

// memQueue is an in-process stand-in for the signed broker transport.
type memQueue struct {
	mu     sync.Mutex
	queues map[string][][]byte
}

func newMemQueue() *memQueue {
	return &memQueue{queues: make(map[string][][]byte)}
}

func (q *memQueue) Write(_ context.Context, item any, opts transport.WriteOptions) error {
	if opts.Queue == "" {
		return transport.ErrQueueNameRequired
	}
	if item == nil {
		return transport.ErrItemRequired
	}
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.queues[opts.Queue] = append(q.queues[opts.Queue], data)
	return nil
}

func (q *memQueue) Read(_ context.Context, queue string) (transport.ReadResult, error) {
	if queue == "" {
		return transport.ReadResult{}, transport.ErrQueueNameRequired
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.queues[queue]
	if len(items) == 0 {
		return transport.ReadResult{Status: transport.ReadEmpty}, nil
	}
	q.queues[queue] = items[1:]
	return transport.ReadResult{Status: transport.ReadOK, Payload: items[0]}, nil
}

func (q *memQueue) len(queue string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[queue])
}

func popOne[T any](t *testing.T, q *memQueue, queue string) T {
	t.Helper()
	res, err := q.Read(context.Background(), queue)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != transport.ReadOK {
		t.Fatalf("expected a message on %s", queue)
	}
	var item T
	if err := json.Unmarshal(res.Payload, &item); err != nil {
		t.Fatal(err)
	}
	return item
}

// fakeSessions validates any token present in its map.
type fakeSessions struct {
	users map[string]uuid.UUID
}

func (f *fakeSessions) Validate(_ context.Context, token string) bool {
	_, ok := f.users[token]
	return ok
}

func (f *fakeSessions) UserIDFor(_ context.Context, token string) (uuid.UUID, error) {
	id, ok := f.users[token]
	if !ok {
		return uuid.Nil, context.Canceled
	}
	return id, nil
}

// fakeStore is an in-memory DataStore recording persistence calls.
type fakeStore struct {
	mu       sync.Mutex
	chats    map[uuid.UUID]*models.Chat
	users    map[uuid.UUID]*models.User
	messages []*models.ChatMessage
	lastSeen map[uuid.UUID]time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		chats:    make(map[uuid.UUID]*models.Chat),
		users:    make(map[uuid.UUID]*models.User),
		lastSeen: make(map[uuid.UUID]time.Time),
	}
}

func (f *fakeStore) Close()                         {}
func (f *fakeStore) Ping(context.Context) error     { return nil }

func (f *fakeStore) GetChat(_ context.Context, id uuid.UUID) (*models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chats[id], nil
}

func (f *fakeStore) GetChatMemberIDs(_ context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.chats[id]
	if !ok {
		return nil, nil
	}
	return append([]uuid.UUID(nil), chat.MemberIDs...), nil
}

func (f *fakeStore) AppendMessage(_ context.Context, msg *models.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeStore) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id], nil
}

func (f *fakeStore) UpdateLastSeen(_ context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSeen[id] = at
	return nil
}

func (f *fakeStore) messageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func testSigner(t *testing.T) *crypto.Signer {
	t.Helper()
	s, err := crypto.NewSignerFromBytes([]byte("pipeline-test-key-of-32-bytes!!!"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}
