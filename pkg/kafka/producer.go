package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Envelope wraps every fact published to the tracking topic.
type Envelope struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	SessionID   string    `json:"session_id"`
	PublishedAt time.Time `json:"published_at"`
	Data        any       `json:"data"`
}

// DefaultPublishTimeout bounds a single send when no timeout is configured.
const DefaultPublishTimeout = 2 * time.Second

type Producer struct {
	producer       sarama.SyncProducer
	topic          string
	publishTimeout time.Duration
	logger         *zap.Logger
}

type ProducerConfig struct {
	Brokers []string
	Topic   string
	Retries int
	Timeout time.Duration

	// PublishTimeout caps how long Publish waits for the broker ack.
	PublishTimeout time.Duration

	RequiredAcks     int
	Compression      string
	IdempotentWrites bool
	MaxMessageBytes  int
}

// SaramaConfig translates cfg into a sarama producer configuration.
func SaramaConfig(cfg ProducerConfig) *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.Retry.Max = cfg.Retries
	config.Producer.Timeout = cfg.Timeout
	config.Producer.RequiredAcks = sarama.RequiredAcks(cfg.RequiredAcks)
	config.Producer.Idempotent = cfg.IdempotentWrites

	if cfg.IdempotentWrites {
		config.Producer.RequiredAcks = sarama.WaitForAll
		config.Producer.Retry.Max = 5
		config.Net.MaxOpenRequests = 1
	}

	switch cfg.Compression {
	case "snappy":
		config.Producer.Compression = sarama.CompressionSnappy
	case "zstd":
		config.Producer.Compression = sarama.CompressionZSTD
	case "lz4":
		config.Producer.Compression = sarama.CompressionLZ4
	case "gzip":
		config.Producer.Compression = sarama.CompressionGZIP
	default:
		config.Producer.Compression = sarama.CompressionNone
	}

	if cfg.MaxMessageBytes > 0 {
		config.Producer.MaxMessageBytes = cfg.MaxMessageBytes
	}
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Version = sarama.V3_3_0_0
	return config
}

func NewProducer(cfg ProducerConfig, logger *zap.Logger) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, SaramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	logger.Info("Kafka producer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
		zap.Bool("idempotent", cfg.IdempotentWrites),
		zap.String("compression", cfg.Compression),
	)

	return NewProducerFrom(producer, cfg.Topic, cfg.PublishTimeout, logger), nil
}

// NewProducerFrom wraps an existing sync producer, e.g. a sarama mock.
// A non-positive publishTimeout means DefaultPublishTimeout.
func NewProducerFrom(producer sarama.SyncProducer, topic string, publishTimeout time.Duration, logger *zap.Logger) *Producer {
	if publishTimeout <= 0 {
		publishTimeout = DefaultPublishTimeout
	}
	return &Producer{
		producer:       producer,
		topic:          topic,
		publishTimeout: publishTimeout,
		logger:         logger,
	}
}

type sendResult struct {
	partition int32
	offset    int64
	err       error
}

// Publish sends data in an Envelope. Messages of one session share a key
// and therefore a partition, which keeps them ordered.
func (p *Producer) Publish(ctx context.Context, kind, sessionID string, data any) error {
	env := Envelope{
		ID:          uuid.NewString(),
		Kind:        kind,
		SessionID:   sessionID,
		PublishedAt: time.Now().UTC(),
		Data:        data,
	}
	return p.SendMessage(ctx, sessionID, env)
}

func (p *Producer) SendMessage(ctx context.Context, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	valueBytes, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	headers := []sarama.RecordHeader{
		{
			Key:   []byte("timestamp"),
			Value: []byte(time.Now().Format(time.RFC3339Nano)),
		},
	}
	if env, ok := value.(Envelope); ok {
		headers = append(headers,
			sarama.RecordHeader{Key: []byte("message_id"), Value: []byte(env.ID)},
			sarama.RecordHeader{Key: []byte("kind"), Value: []byte(env.Kind)},
		)
	}

	msg := &sarama.ProducerMessage{
		Topic:   p.topic,
		Key:     sarama.StringEncoder(key),
		Value:   sarama.ByteEncoder(valueBytes),
		Headers: headers,
	}

	ctx, cancel := context.WithTimeout(ctx, p.publishTimeout)
	defer cancel()

	// The sync producer ignores ctx. An abandoned send still completes in
	// the background and its result is dropped.
	done := make(chan sendResult, 1)
	go func() {
		partition, offset, err := p.producer.SendMessage(msg)
		done <- sendResult{partition: partition, offset: offset, err: err}
	}()

	var res sendResult
	select {
	case res = <-done:
	case <-ctx.Done():
		p.logger.Warn("Kafka send abandoned",
			zap.Error(ctx.Err()),
			zap.String("topic", p.topic),
			zap.String("key", key),
			zap.Duration("timeout", p.publishTimeout),
		)
		return fmt.Errorf("failed to send message: %w", ctx.Err())
	}

	partition, offset, err := res.partition, res.offset, res.err
	if err != nil {
		p.logger.Error("Failed to send message to Kafka",
			zap.Error(err),
			zap.String("topic", p.topic),
			zap.String("key", key),
		)
		return fmt.Errorf("failed to send message: %w", err)
	}

	p.logger.Debug("Message sent to Kafka",
		zap.String("topic", p.topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.String("key", key),
	)

	return nil
}

func (p *Producer) Close() error {
	err := p.producer.Close()
	if err != nil {
		p.logger.Error("Failed to close Kafka producer", zap.Error(err))
		return fmt.Errorf("failed to close producer: %w", err)
	}
	p.logger.Info("Kafka producer closed")
	return nil
}

// Discard drops every message. It stands in for the producer when
// streaming is disabled.
type Discard struct{}

func (Discard) Publish(context.Context, string, string, any) error { return nil }

func (Discard) Close() error { return nil }
