package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrUnconfirmed means a message was handed to the broker but no confirm
// arrived in time. The broker may or may not have persisted it.
var ErrUnconfirmed = errors.New("publish not confirmed")

// confirmTimeout bounds the wait for a publisher confirm. The wait is
// detached from the caller's context.
const confirmTimeout = 5 * time.Second

// DeclareTopology declares the insert queue and its dead-letter queue.
// Both are durable so jobs survive broker restarts; declaring is idempotent.
func DeclareTopology(ch *amqp.Channel) error {
	for _, name := range []string{InsertQueue, DeadLetterQueue} {
		if _, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,
		); err != nil {
			return fmt.Errorf("declare queue %s: %w", name, err)
		}
	}
	return nil
}

// Publisher keeps one connection and one confirm-mode channel open and
// reopens them lazily after the broker drops them. Enqueue returns only
// once the broker has confirmed the message.
type Publisher struct {
	url string
	log *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewPublisher(url string, log *zap.Logger) *Publisher {
	return &Publisher{url: url, log: log.Named("publisher")}
}

// Connect opens the connection eagerly so startup fails fast when the
// broker is unreachable.
func (p *Publisher) Connect() error {
	_, err := p.channel()
	return err
}

func (p *Publisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			return nil, fmt.Errorf("dial broker: %w", err)
		}
		p.conn = conn
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}
	if err := DeclareTopology(ch); err != nil {
		_ = ch.Close()
		return nil, err
	}
	p.ch = ch
	return ch, nil
}

// Enqueue publishes job to InsertQueue and returns the job id. The id is
// also returned with an ErrUnconfirmed error.
func (p *Publisher) Enqueue(ctx context.Context, job InsertMovieJob) (string, error) {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	job.EnqueuedAt = time.Now().UTC()
	body, err := json.Marshal(job)
	if err != nil {
		return "", err
	}
	if err := p.publish(ctx, InsertQueue, job.JobID, body); err != nil {
		if errors.Is(err, ErrUnconfirmed) {
			return job.JobID, err
		}
		return "", err
	}
	p.log.Info("insert job enqueued",
		zap.String("job_id", job.JobID),
		zap.String("idempotency_key", job.IdempotencyKey))
	return job.JobID, nil
}

// DeadLetter parks a failed job body on DeadLetterQueue with the cause.
func (p *Publisher) DeadLetter(ctx context.Context, body []byte, cause error, attempts int) error {
	msg, err := newDeadLetter(body, cause, attempts)
	if err != nil {
		return err
	}
	return p.publish(ctx, DeadLetterQueue, uuid.NewString(), msg)
}

func (p *Publisher) publish(ctx context.Context, queue, messageID string, body []byte) error {
	ch, err := p.channel()
	if err != nil {
		return err
	}
	dc, err := ch.PublishWithDeferredConfirmWithContext(ctx,
		"",    // default exchange
		queue, // routing key = queue name
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}
	return awaitConfirm(ctx, dc, queue, confirmTimeout)
}

type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

// awaitConfirm waits up to timeout for the broker's ack. A cancelled
// caller does not end the wait; once published, the outcome is only known
// from the confirm.
func awaitConfirm(ctx context.Context, dc confirmation, queue string, timeout time.Duration) error {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	acked, err := dc.WaitContext(wctx)
	if err != nil {
		return fmt.Errorf("await confirm from %s: %w: %w", queue, ErrUnconfirmed, err)
	}
	if !acked {
		return errors.New("broker rejected message for " + queue)
	}
	return nil
}

// Close shuts the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	if p.ch != nil && !p.ch.IsClosed() {
		errs = append(errs, p.ch.Close())
	}
	p.ch = nil
	if p.conn != nil && !p.conn.IsClosed() {
		errs = append(errs, p.conn.Close())
	}
	p.conn = nil
	return errors.Join(errs...)
}
