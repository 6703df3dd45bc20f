package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
)

type Consumer struct {
	reader *kafka.Reader
}

// NewConsumer reads the given lifecycle topics as part of groupID.
func NewConsumer(brokers []string, topics []string, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupTopics: topics,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
	})
	return &Consumer{reader: reader}
}

// Start hands every decoded message to handler until ctx is cancelled.
// Undecodable messages go to onError and are skipped.
func (c *Consumer) Start(ctx context.Context, handler func(EventMessage), onError func(error)) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		}

		decoded, err := DecodeEventMessage(msg.Value)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			continue
		}
		handler(decoded)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
