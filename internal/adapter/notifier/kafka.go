package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/V4T54L/trailwatch/internal/domain"
)

// MessageWriter is the publishing side of *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes each finding as a JSON message keyed by event name.
type KafkaNotifier struct {
	writer MessageWriter
	logger *slog.Logger
}

func NewKafkaNotifier(writer MessageWriter, logger *slog.Logger) *KafkaNotifier {
	return &KafkaNotifier{writer: writer, logger: logger.With("component", "kafka_notifier")}
}

// NewKafkaWriter creates a writer for topic on the given brokers.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
}

func (n *KafkaNotifier) Notify(ctx context.Context, findings []domain.Finding) error {
	if len(findings) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(findings))
	for _, f := range findings {
		payload, err := json.Marshal(f)
		if err != nil {
			n.logger.Error("Failed to marshal finding", "finding_id", f.ID, "error", err)
			continue
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(f.EventName),
			Value: payload,
			Time:  f.DetectedAt,
		})
	}

	if err := n.writer.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("failed to publish %d findings: %w", len(messages), err)
	}
	n.logger.Debug("Published findings", "count", len(messages))
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
