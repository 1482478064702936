package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/lewisgerrard/divafitness-backend/internal/logging"
	"github.com/lewisgerrard/divafitness-backend/internal/metrics"
	"github.com/lewisgerrard/divafitness-backend/internal/model"
)

const retryCountHeader = "x-retry-count"

// AMQPQueue stores jobs in a durable RabbitMQ queue and consumes them with manual acks.
type AMQPQueue struct {
	conn       *amqp.Connection
	mu         sync.Mutex
	ch         *amqp.Channel
	name       string
	MaxRetries int
	log        *zap.SugaredLogger
}

func DialAMQP(url string, log *zap.SugaredLogger) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	q, err := ch.QueueDeclare(
		RetryQueueName, // name
		true,           // durable
		false,          // delete when unused
		false,          // exclusive
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	return &AMQPQueue{
		conn:       conn,
		ch:         ch,
		name:       q.Name,
		MaxRetries: DefaultMaxRetries,
		log:        logging.OrNop(log).Named("amqp"),
	}, nil
}

func (q *AMQPQueue) Publish(_ context.Context, job model.RetryJob) error {
	return q.publish(job, 0)
}

func (q *AMQPQueue) publish(job model.RetryJob, retryCount int) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	err = q.ch.Publish(
		"",
		q.name,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    job.ID,
			Headers:      amqp.Table{retryCountHeader: int32(retryCount)},
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish job %s: %w", job.ID, err)
	}
	if retryCount == 0 {
		metrics.RetryJobsQueued.WithLabelValues("amqp").Inc()
	}
	return nil
}

// Subscribe starts consuming in the background until ctx is done.
func (q *AMQPQueue) Subscribe(ctx context.Context, handler Handler) error {
	q.mu.Lock()
	msgs, err := q.ch.Consume(
		q.name,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	q.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					q.log.Warn("Delivery channel closed")
					return
				}
				q.handleDelivery(ctx, d, handler)
			}
		}
	}()
	return nil
}

func (q *AMQPQueue) handleDelivery(ctx context.Context, d amqp.Delivery, handler Handler) {
	var job model.RetryJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		q.log.Warnw("Invalid job payload, dropping", "error", err)
		metrics.RetryJobsProcessed.WithLabelValues("amqp", "invalid").Inc()
		_ = d.Ack(false)
		return
	}

	err := handler(ctx, job)
	if err == nil {
		metrics.RetryJobsProcessed.WithLabelValues("amqp", "success").Inc()
		_ = d.Ack(false)
		return
	}

	retryCount := headerInt(d.Headers, retryCountHeader)
	if retryCount < q.MaxRetries {
		// Republish with an incremented counter; a plain Nack requeue would lose it.
		if perr := q.publish(job, retryCount+1); perr == nil {
			metrics.RetryJobsProcessed.WithLabelValues("amqp", "requeued").Inc()
			q.log.Warnw("Job failed, requeued", "jobID", job.ID, "retry", retryCount+1, "error", err)
			_ = d.Ack(false)
			return
		}
		_ = d.Nack(false, true)
		return
	}
	metrics.RetryJobsProcessed.WithLabelValues("amqp", "dropped").Inc()
	q.log.Errorw("Job permanently failed", "jobID", job.ID, "retries", retryCount, "error", err)
	_ = d.Ack(false)
}

func headerInt(h amqp.Table, key string) int {
	switch v := h[key].(type) {
	case int:
		return v
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	}
	return 0
}

func (q *AMQPQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.ch.Close(); err != nil {
		q.conn.Close()
		return err
	}
	return q.conn.Close()
}
