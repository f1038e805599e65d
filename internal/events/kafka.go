package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes events to a Kafka topic.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher constructs a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 5 * time.Second,
			// Each entry is written synchronously from a request, so the
			// default one-second batch wait would stall the redirect.
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// PublishEntryRecorded sends the event keyed by project so a project's
// entries stay ordered within one partition.
func (p *KafkaPublisher) PublishEntryRecorded(ctx context.Context, event EntryRecorded) error {
	msg, err := entryMessage(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("events: write %s: %w", event.Type, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func entryMessage(event EntryRecorded) (kafka.Message, error) {
	if event.Type == "" {
		event.Type = TypeEntryRecorded
	}
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("events: encode: %w", err)
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatInt(event.ProjectID, 10)),
		Value: data,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
		Time: event.RecordedAt,
	}, nil
}

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = Nop{}
)
