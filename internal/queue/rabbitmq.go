package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"moodwave/pkg/logger"
	"moodwave/pkg/model"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	QueueNameAnalyses = "analysis_journal"
	ExchangeName      = "moodwave"

	publishTimeout = 5 * time.Second
)

type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewRabbitMQ connects and declares the journal exchange, queue and binding
func NewRabbitMQ(url string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger.Info("RabbitMQ connected successfully")

	return &RabbitMQ{
		conn:    conn,
		channel: ch,
	}, nil
}

func declareTopology(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		ExchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	_, err = ch.QueueDeclare(
		QueueNameAnalyses, // name
		true,              // durable
		false,             // delete when unused
		false,             // exclusive
		false,             // no-wait
		nil,               // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	err = ch.QueueBind(
		QueueNameAnalyses, // queue name
		QueueNameAnalyses, // routing key
		ExchangeName,      // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	return nil
}

// Publish publishes a persistent JSON message to the queue
func (r *RabbitMQ) Publish(ctx context.Context, queueName string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := r.channel.PublishWithContext(
		ctx,
		ExchangeName, // exchange
		queueName,    // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	logger.Debug("Message published to queue",
		zap.String("queue", queueName),
		zap.Int("size", len(body)))

	return nil
}

// Consume hands every delivery of queueName to handler until the channel
// closes or ctx is done. Failed deliveries are requeued unless handler
// returns an error wrapping ErrPoison.
func (r *RabbitMQ) Consume(ctx context.Context, queueName string, handler func([]byte) error) error {
	err := r.channel.Qos(
		1,     // prefetch count
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := r.channel.Consume(
		queueName, // queue
		"",        // consumer
		false,     // auto-ack
		false,     // exclusive
		false,     // no-local
		false,     // no-wait
		nil,       // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	logger.Info("Starting to consume messages", zap.String("queue", queueName))

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			r.handle(msg, handler)
		}
	}
}

func (r *RabbitMQ) handle(msg amqp.Delivery, handler func([]byte) error) {
	logger.Debug("Received message", zap.Int("size", len(msg.Body)))

	if err := handler(msg.Body); err != nil {
		requeue := !IsPoison(err)
		logger.Error("Failed to handle message",
			zap.Error(err),
			zap.Bool("requeue", requeue))
		msg.Nack(false, requeue)
		return
	}

	msg.Ack(false)
}

// Close RabbitMQ connection
func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// Journal publishes analyses to the journal queue
type Journal struct {
	publisher Publisher
}

type Publisher interface {
	Publish(ctx context.Context, queueName string, body []byte) error
}

func NewJournal(p Publisher) *Journal {
	return &Journal{publisher: p}
}

// Record implements the session recorder
func (j *Journal) Record(ctx context.Context, analysis *model.Analysis) error {
	body, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}

	if err := j.publisher.Publish(ctx, QueueNameAnalyses, body); err != nil {
		return err
	}

	logger.Debug("Analysis published",
		zap.String("analysis_id", analysis.ID),
		zap.String("status", string(analysis.Status)))

	return nil
}
