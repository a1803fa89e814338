// Package emit publishes per-file aggregation results to external
// consumers. The only transport currently wired is Kafka.
package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/gazemetrics/aoirun/internal/summary"
)

// Event is the message body published once per processed file.
type Event struct {
	BatchID     string             `json:"batchId"`
	File        string             `json:"file"`
	Records     int                `json:"records"`
	Runs        int                `json:"runs"`
	Contexts    int                `json:"contexts"`
	Overall     []summary.AOITotal `json:"overall"`
	GeneratedAt time.Time          `json:"generatedAt"`
}

// Publisher delivers Events to some sink.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes Events to a single topic, keyed by file name so
// results for the same file land on the same partition.
type KafkaPublisher struct {
	w   messageWriter
	log *slog.Logger
}

// NewKafkaPublisher connects a publisher to the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string, log *slog.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	return &KafkaPublisher{w: w, log: log.With(slog.String("component", "kafka-emitter"))}
}

// Publish marshals the event and writes it to the topic.
func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{Key: []byte(ev.File), Value: body, Time: ev.GeneratedAt}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		p.log.Error("kafka write failed", "err", err, "file", ev.File)
		return fmt.Errorf("write event: %w", err)
	}
	p.log.Debug("event published", "file", ev.File, "runs", ev.Runs)

	return nil
}

// Close releases the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// Discard is a Publisher that drops every event. Used when no brokers
// are configured.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }
func (Discard) Close() error                         { return nil }
