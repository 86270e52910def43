package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/chatmesh-io/chatmesh/internal/crypto"
	"github.com/chatmesh-io/chatmesh/internal/metrics"
)

// readBlock bounds each blocking pop so the loop can observe cancellation
// and report an empty queue.
const readBlock = 2 * time.Second

// declaredSetKey is the Redis set recording every queue this cluster has
// declared. The declaration itself carries no behavior on Redis lists; it
// keeps queue topology observable and mirrors broker declare semantics.
const declaredSetKey = "chatmesh:queues"

// RedisQueue is a signed queue transport backed by Redis lists. The client
// is lazily established and cached per instance; acquisition is guarded so
// concurrent publishers share one connection pool.
type RedisQueue struct {
	url    string
	signer *crypto.Signer
	log    zerolog.Logger

	mu       sync.Mutex
	client   *redis.Client
	declared map[string]bool
}

// NewRedisQueue creates a transport for the given Redis URL. No connection
// is made until the first Write or Read.
func NewRedisQueue(url string, signer *crypto.Signer, log zerolog.Logger) *RedisQueue {
	return &RedisQueue{
		url:      url,
		signer:   signer,
		log:      log.With().Str("component", "transport").Logger(),
		declared: make(map[string]bool),
	}
}

// Close releases the cached client, if any.
func (q *RedisQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.client == nil {
		return nil
	}
	err := q.client.Close()
	q.client = nil
	return err
}

// Ping checks broker reachability.
func (q *RedisQueue) Ping(ctx context.Context) error {
	client, err := q.getClient(ctx)
	if err != nil {
		return err
	}
	return client.Ping(ctx).Err()
}

// getClient lazily connects and caches the Redis client.
func (q *RedisQueue) getClient(ctx context.Context) (*redis.Client, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.client != nil {
		return q.client, nil
	}

	opts, err := redis.ParseURL(q.url)
	if err != nil {
		return nil, fmt.Errorf("invalid broker url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("broker connect: %w", err)
	}
	q.client = client
	return client, nil
}

// destinationKey resolves the list key a publish lands on. A named exchange
// binds the destination under its routing key; otherwise the queue name is
// used directly.
func destinationKey(opts WriteOptions) string {
	if opts.Exchange != "" {
		return opts.Exchange + "." + opts.RoutingKey
	}
	return opts.Queue
}

// declareQueue registers the destination once per transport instance.
func (q *RedisQueue) declareQueue(ctx context.Context, client *redis.Client, key string) error {
	q.mu.Lock()
	done := q.declared[key]
	q.mu.Unlock()
	if done {
		return nil
	}

	if err := client.SAdd(ctx, declaredSetKey, key).Err(); err != nil {
		return fmt.Errorf("declare queue %s: %w", key, err)
	}

	q.mu.Lock()
	q.declared[key] = true
	q.mu.Unlock()
	return nil
}

// Write seals item in a signed envelope and publishes it. Argument errors
// are always returned; broker errors are returned only for mandatory
// publishes and logged otherwise.
func (q *RedisQueue) Write(ctx context.Context, item any, opts WriteOptions) error {
	if opts.Queue == "" {
		return ErrQueueNameRequired
	}
	if item == nil {
		return ErrItemRequired
	}

	sealed, err := Seal(q.signer, item)
	if err != nil {
		return err
	}

	key := destinationKey(opts)
	err = q.publish(ctx, key, sealed)
	if err != nil {
		metrics.QueuePublishFailures.WithLabelValues(key).Inc()
		if opts.Mandatory {
			return err
		}
		q.log.Error().Err(err).Str("queue", key).Msg("publish failed, message dropped")
		return nil
	}

	metrics.QueuePublished.WithLabelValues(key).Inc()
	return nil
}

func (q *RedisQueue) publish(ctx context.Context, key string, sealed []byte) error {
	client, err := q.getClient(ctx)
	if err != nil {
		return err
	}
	if err := q.declareQueue(ctx, client, key); err != nil {
		return err
	}
	return client.RPush(ctx, key, sealed).Err()
}

// Read fetches one message from the queue. An empty queue is ReadEmpty, a
// failed integrity check is ReadInvalid; neither is an error.
func (q *RedisQueue) Read(ctx context.Context, queue string) (ReadResult, error) {
	if queue == "" {
		return ReadResult{}, ErrQueueNameRequired
	}

	client, err := q.getClient(ctx)
	if err != nil {
		return ReadResult{}, err
	}

	vals, err := client.BLPop(ctx, readBlock, queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ReadResult{Status: ReadEmpty}, nil
		}
		return ReadResult{}, fmt.Errorf("read %s: %w", queue, err)
	}
	// BLPOP returns [key, value].
	if len(vals) < 2 {
		return ReadResult{Status: ReadEmpty}, nil
	}

	payload, err := Open(q.signer, []byte(vals[1]))
	if err != nil {
		metrics.QueueIntegrityFailures.WithLabelValues(queue).Inc()
		q.log.Error().
			Str("severity", "critical").
			Str("queue", queue).
			Msg("dropping broker message with invalid integrity signature")
		return ReadResult{Status: ReadInvalid}, nil
	}

	return ReadResult{Status: ReadOK, Payload: payload}, nil
}
