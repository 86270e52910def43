// Package pipeline contains the three queue-consuming stages between the
// gateway's intake and its outbound sender: receiver, processor, router.
// Each stage runs one sequential read loop and dispatches per-message
// workers onto a bounded pool; a failure inside a worker never escapes to
// kill the loop.
package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/chatmesh-io/chatmesh/internal/transport"
)

// readRetryDelay backs off the loop after a broker read error.
const readRetryDelay = time.Second

// RunStage drives one stage's read loop until ctx is cancelled: read one
// item, decode it, dispatch a worker. At most limit workers run at once;
// when the pool is full the loop blocks, which is the backpressure that
// keeps a traffic burst from spawning unbounded goroutines. On shutdown
// the loop stops reading but in-flight workers are allowed to finish.
func RunStage[T any](ctx context.Context, log zerolog.Logger, q transport.Queue, queue string, limit int, handle func(context.Context, T)) {
	if limit <= 0 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)

	// Workers outlive loop cancellation on purpose.
	workerCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			g.Wait()
			log.Info().Str("queue", queue).Msg("stage stopped")
			return
		default:
		}

		res, err := q.Read(ctx, queue)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Error().Err(err).Str("queue", queue).Msg("queue read failed")
			select {
			case <-ctx.Done():
			case <-time.After(readRetryDelay):
			}
			continue
		}
		if res.Status != transport.ReadOK {
			continue
		}

		var item T
		if err := json.Unmarshal(res.Payload, &item); err != nil {
			log.Error().Err(err).Str("queue", queue).Msg("dropping undecodable message")
			continue
		}

		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Any("panic", r).Str("queue", queue).Msg("worker panicked")
				}
			}()
			handle(workerCtx, item)
			return nil
		})
	}
}
