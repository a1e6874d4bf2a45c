package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// LogSink writes every toast event to slog.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Publish(_ context.Context, ev Event) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if ev.Toast.Kind == KindError && ev.Type == EventShow {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "toast",
		"event", ev.Type,
		"id", ev.Toast.ID,
		"kind", ev.Toast.Kind,
		"message", ev.Toast.Message,
	)
	return nil
}

// AMQPSink publishes toast events as JSON to a fanout exchange, so desktop
// notification daemons can mirror the console's toasts.
type AMQPSink struct {
	exchange string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQPSink dials url and declares a durable fanout exchange.
func NewAMQPSink(url, exchange string) (*AMQPSink, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("amqp url is required")
	}
	exchange = strings.TrimSpace(exchange)
	if exchange == "" {
		exchange = "adminconsole.toasts"
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPSink{exchange: exchange, conn: conn, ch: ch}, nil
}

func (s *AMQPSink) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch == nil {
		return errors.New("amqp sink closed")
	}
	return s.ch.PublishWithContext(ctx, s.exchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   ev.Toast.ID,
		Timestamp:   ev.Toast.CreatedAt,
		Type:        string(ev.Type),
		Body:        body,
	})
}

// Close shuts the channel and connection.
func (s *AMQPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch == nil {
		return nil
	}
	_ = s.ch.Close()
	s.ch = nil
	return s.conn.Close()
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Messages returns the messages of shown toasts of kind, in order.
func (r *Recorder) Messages(kind Kind) []string {
	var out []string
	for _, ev := range r.Events() {
		if ev.Type == EventShow && ev.Toast.Kind == kind {
			out = append(out, ev.Toast.Message)
		}
	}
	return out
}

// Reset forgets recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
