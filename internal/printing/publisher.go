package printing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mesa-digital/api/internal/database"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// Publisher hands a print job to the printer agent.
type Publisher interface {
	Publish(ctx context.Context, job database.PrintJob) error
	Close() error
}

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes print jobs to a Kafka topic keyed by job ID.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaWriter builds the writer used for print jobs.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaPublisher(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, job database.PrintJob) error {
	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("print-job-%s", job.ID)),
		Value: job.Payload,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(job.Kind)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write print job: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher prints receipts to the log. Used when no brokers are set.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, job database.PrintJob) error {
	var receipt Receipt
	if err := json.Unmarshal(job.Payload, &receipt); err != nil {
		return fmt.Errorf("decode receipt: %w", err)
	}
	log.Info().
		Str("print_job_id", job.ID.String()).
		Str("kind", job.Kind).
		Msg("receipt\n" + receipt.Text())
	return nil
}

func (LogPublisher) Close() error { return nil }
