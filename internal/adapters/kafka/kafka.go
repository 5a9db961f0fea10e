package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/IBM/sarama"
)

const EventMessageCreated = "message.created"

// MessageCreatedEvent is published after a message is durably stored.
type MessageCreatedEvent struct {
	Type        string    `json:"type"`
	MessageID   uint      `json:"messageId"`
	ChatID      uint      `json:"chatId"`
	SenderID    uint      `json:"senderId"`
	Content     string    `json:"content"`
	Attachments int       `json:"attachments"`
	CreatedAt   time.Time `json:"createdAt"`
}

func InitKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy  // Enable compression
	config.Producer.Partitioner = sarama.NewHashPartitioner // Consistent hashing
	config.Version = sarama.V2_0_0_0
	config.ClientID = "chatkaro-service"
	config.Producer.MaxMessageBytes = 1000000 // 1MB

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return producer, nil
}

// Producer publishes chat events keyed by chat id so one chat stays on one partition.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

func NewProducer(producer sarama.SyncProducer, topic string) *Producer {
	return &Producer{producer: producer, topic: topic}
}

func (p *Producer) PublishMessageCreated(ctx context.Context, evt MessageCreatedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	evt.Type = EventMessageCreated

	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(uint64(evt.ChatID), 10)),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("type"), Value: []byte(EventMessageCreated)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", EventMessageCreated, err)
	}

	slog.Debug("Published chat event", "topic", p.topic, "partition", partition, "offset", offset, "chatID", evt.ChatID)
	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
