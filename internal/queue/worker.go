package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/cinevault/internal/model"
	"github.com/iliyamo/cinevault/internal/retry"
)

// Inserter writes a movie keyed by an idempotency key.
type Inserter interface {
	InsertIdempotent(ctx context.Context, key string, m model.Movie) (id uint64, created bool, err error)
}

// DeadLetterer parks a job that can no longer be processed.
type DeadLetterer interface {
	DeadLetter(ctx context.Context, body []byte, cause error, attempts int) error
}

// Invalidator drops cached catalog reads after a successful insert.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// WorkerOptions configures a Worker.
type WorkerOptions struct {
	URL         string
	Concurrency int          // jobs processed at once; also the prefetch count
	Retry       retry.Policy // per-job insert retries before dead-lettering
	ConsumerTag string
}

// Worker consumes InsertQueue with manual acknowledgement. A message is
// acknowledged only after its row is committed or it has been moved to
// the dead-letter queue, so every job is processed at least once.
type Worker struct {
	opts  WorkerOptions
	store Inserter
	dlq   DeadLetterer
	cache Invalidator
	log   *zap.Logger

	dial      func(url string) (*amqp.Connection, error)
	reconnect retry.Policy
}

func NewWorker(opts WorkerOptions, store Inserter, dlq DeadLetterer, log *zap.Logger) *Worker {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Worker{
		opts:      opts,
		store:     store,
		dlq:       dlq,
		log:       log.Named("insert-worker"),
		dial:      amqp.Dial,
		reconnect: retry.Policy{Initial: time.Second, Max: 30 * time.Second, Multiplier: 2},
	}
}

// WithInvalidator purges cached listings after each new movie.
func (w *Worker) WithInvalidator(inv Invalidator) *Worker {
	w.cache = inv
	return w
}

// Run connects to the broker and consumes until ctx is done, reconnecting
// with backoff whenever the connection drops. It returns nil on shutdown.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("starting", zap.Int("concurrency", w.opts.Concurrency), zap.String("queue", InsertQueue))
	failures := 0
	for {
		conn, err := w.dial(w.opts.URL)
		if err != nil {
			wait := w.reconnect.Backoff(failures)
			failures++
			w.log.Warn("dial broker failed", zap.Error(err), zap.Duration("retry_in", wait))
			if !sleep(ctx, wait) {
				return nil
			}
			continue
		}
		failures = 0

		err = w.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			w.log.Info("stopped")
			return nil
		}
		w.log.Warn("consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (w *Worker) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(w.opts.Concurrency, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	if err := DeclareTopology(ch); err != nil {
		return err
	}
	msgs, err := ch.Consume(InsertQueue, w.opts.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < w.opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-msgs:
					if !ok {
						return
					}
					w.handle(ctx, d)
				}
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.New("deliveries channel closed")
}

// handle processes one delivery and settles it exactly once.
func (w *Worker) handle(ctx context.Context, d amqp.Delivery) {
	log := w.log.With(zap.String("message_id", d.MessageId))

	job, err := DecodeJob(d.Body)
	if err != nil {
		log.Error("rejecting malformed job", zap.Error(err))
		w.deadLetter(ctx, log, d, err, 0)
		return
	}
	log = log.With(zap.String("job_id", job.JobID), zap.String("idempotency_key", job.IdempotencyKey))

	var (
		id      uint64
		created bool
	)
	attempts, err := retry.Do(ctx, w.opts.Retry, func(ctx context.Context) error {
		var err error
		id, created, err = w.store.InsertIdempotent(ctx, job.IdempotencyKey, job.Movie())
		return err
	}, func(attempt int, err error, wait time.Duration) {
		log.Warn("insert failed, retrying", zap.Int("attempt", attempt), zap.Duration("retry_in", wait), zap.Error(err))
	})

	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			log.Error("ack failed", zap.Error(ackErr))
		}
		log.Info("movie inserted", zap.Uint64("movie_id", id), zap.Bool("created", created), zap.Int("attempts", attempts))
		if created && w.cache != nil {
			if err := w.cache.Invalidate(ctx); err != nil {
				log.Warn("cache purge failed", zap.Error(err))
			}
		}
	case ctx.Err() != nil:
		// Shutting down mid-job: hand the message back for redelivery.
		_ = d.Nack(false, true)
		log.Info("job returned to queue on shutdown")
	default:
		log.Error("insert failed permanently", zap.Int("attempts", attempts), zap.Error(err))
		w.deadLetter(ctx, log, d, err, attempts)
	}
}

func (w *Worker) deadLetter(ctx context.Context, log *zap.Logger, d amqp.Delivery, cause error, attempts int) {
	if err := w.dlq.DeadLetter(ctx, d.Body, cause, attempts); err != nil {
		log.Error("dead-letter publish failed, requeueing", zap.Error(err))
		_ = d.Nack(false, true)
		return
	}
	if err := d.Ack(false); err != nil {
		log.Error("ack after dead-letter failed", zap.Error(err))
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
