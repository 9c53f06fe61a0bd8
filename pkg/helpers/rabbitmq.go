package helpers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher sends a JSON-encoded job to a queue.
type Publisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// RabbitPublisher wraps an AMQP channel and queue for publishing messages.
type RabbitPublisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	Queue string
}

func dialQueue(url, queue string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	// Declare durable queue
	_, err = ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

func NewRabbitPublisher(url, queue string) (*RabbitPublisher, error) {
	conn, ch, err := dialQueue(url, queue)
	if err != nil {
		return nil, err
	}
	return &RabbitPublisher{conn: conn, ch: ch, Queue: queue}, nil
}

func (p *RabbitPublisher) Close() {
	if p == nil {
		return
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// PublishJSON publishes a JSON-encoded message to the default queue.
func (p *RabbitPublisher) PublishJSON(ctx context.Context, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx,
		"",      // default exchange
		p.Queue, // routing key = queue
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         b,
		},
	)
}

// Handler processes one delivery body. Errors marked with Permanent drop
// the message; any other error requeues it.
type Handler func(ctx context.Context, body []byte) error

// PermanentError marks a job that can never succeed, such as a malformed body.
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so consumers drop the message instead of retrying it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err, or anything it wraps, was marked Permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// requeueDelay spaces out redeliveries of failing jobs.
var requeueDelay = time.Second

// Consume reads queue until ctx is cancelled, acking each message handled
// without error.
func Consume(ctx context.Context, url, queue string, prefetch int, logger *logrus.Logger, h Handler) error {
	conn, ch, err := dialQueue(url, queue)
	if err != nil {
		return err
	}
	defer func() {
		_ = ch.Close()
		_ = conn.Close()
	}()
	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			return err
		}
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}
	logger.WithField("queue", queue).Info("worker started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("queue %s: delivery channel closed", queue)
			}
			handleDelivery(ctx, d, h, logger.WithField("queue", queue))
		}
	}
}

// handleDelivery runs h and settles d: ack on success, drop permanent
// failures, requeue everything else after requeueDelay.
func handleDelivery(ctx context.Context, d amqp.Delivery, h Handler, log *logrus.Entry) {
	err := h(ctx, d.Body)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case IsPermanent(err):
		log.WithError(err).Error("job dropped")
		_ = d.Nack(false, false)
	default:
		log.WithError(err).WithField("redelivered", d.Redelivered).Warn("job failed, requeueing")
		select {
		case <-ctx.Done():
		case <-time.After(requeueDelay):
		}
		_ = d.Nack(false, true)
	}
}

var _ Publisher = (*RabbitPublisher)(nil)
