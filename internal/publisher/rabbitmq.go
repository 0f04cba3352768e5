package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"

	"movie_sync/internal/domain"
)

// Message types set on amqp.Publishing.Type.
const (
	TypeRecord = "movie_sync.record"
	TypeRun    = "movie_sync.run"
)

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQ publishes sync events to a durable direct exchange. Publish
// failures are logged and never reach the sync run.
type RabbitMQ struct {
	conn       *amqp.Connection
	channel    channel
	exchange   string
	routingKey string
	logger     *slog.Logger
	now        func() time.Time
}

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	fail := func(step string, err error) (*RabbitMQ, error) {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("%s: %w", step, err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		return fail("declare exchange", err)
	}

	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		return fail("declare queue", err)
	}

	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fail("bind queue", err)
	}

	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	p := newRabbitMQ(ch, cfg, logger)
	p.conn = conn
	return p, nil
}

func newRabbitMQ(ch channel, cfg Config, logger *slog.Logger) *RabbitMQ {
	return &RabbitMQ{
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger.With("component", "publisher"),
		now:        time.Now,
	}
}

// RecordEvent is published once per processed movie.
type RecordEvent struct {
	Action    domain.Outcome       `json:"action"`
	Index     int                  `json:"index"`
	Total     int                  `json:"total"`
	Movie     domain.Movie         `json:"movie"`
	Record    *domain.RecordHandle `json:"record,omitempty"`
	Error     string               `json:"error,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

// RunEvent is published when a run finishes.
type RunEvent struct {
	Status      domain.Status `json:"status"`
	Incremental bool          `json:"incremental"`
	DatabaseID  string        `json:"database_id"`
	Total       int           `json:"total"`
	Added       int           `json:"added"`
	Updated     int           `json:"updated"`
	Skipped     int           `json:"skipped"`
	Failed      int           `json:"failed"`
	DurationMS  int64         `json:"duration_ms"`
	Timestamp   time.Time     `json:"timestamp"`
}

func (r *RabbitMQ) OnRecordProcessed(ctx context.Context, index, total int, movie *domain.Movie, result domain.RecordResult) {
	event := RecordEvent{
		Action:    result.Outcome,
		Index:     index,
		Total:     total,
		Movie:     *movie,
		Record:    result.Handle,
		Timestamp: r.now().UTC(),
	}
	if result.Err != nil {
		event.Error = result.Err.Error()
	}

	if err := r.publish(ctx, TypeRecord, event); err != nil {
		r.logger.Warn("publish record event failed", "external_id", movie.ExternalID, "error", err)
		return
	}

	r.logger.Debug("published record event",
		"external_id", movie.ExternalID,
		"action", result.Outcome,
	)
}

func (r *RabbitMQ) OnRunComplete(ctx context.Context, stats *domain.SyncStats) {
	event := RunEvent{
		Status:      stats.Status,
		Incremental: stats.Incremental,
		DatabaseID:  stats.DatabaseID,
		Total:       stats.Total,
		Added:       stats.Added,
		Updated:     stats.Updated,
		Skipped:     stats.Skipped,
		Failed:      stats.Failed,
		DurationMS:  stats.Duration.Milliseconds(),
		Timestamp:   r.now().UTC(),
	}

	if err := r.publish(ctx, TypeRun, event); err != nil {
		r.logger.Warn("publish run event failed", "error", err)
	}
}

func (r *RabbitMQ) publish(ctx context.Context, msgType string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		r.routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Type:         msgType,
			Body:         body,
			Timestamp:    r.now(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
