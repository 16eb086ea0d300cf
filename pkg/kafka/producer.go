package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Producer handles Kafka event emission
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	requiredAcks := kafka.RequiredAcks(cfg.RequiredAcks)

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           requiredAcks,
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// ResolutionEvent is published after every processed record so downstream
// consumers (fraud analysis, reporting) see each decision
type ResolutionEvent struct {
	EventType        string               `json:"event_type"` // record.matched, record.created, record.review, record.unmatched
	SourceSystem     string               `json:"source_system"`
	SourceIdentifier string               `json:"source_identifier"`
	SourceName       string               `json:"source_name"`
	MasterID         *int64               `json:"master_id,omitempty"`
	Score            float64              `json:"score"`
	MatchMethod      string               `json:"match_method"`
	MatchDetails     []models.MatchDetail `json:"match_details,omitempty"`
	NeedsReview      bool                 `json:"needs_review"`
	SchemaVersion    string               `json:"schema_version"`
	Timestamp        time.Time            `json:"timestamp"`
}

// PublishResolutionEvent publishes a resolution event to Kafka. Messages are
// keyed by source identity so decisions for one record stay ordered.
func (p *Producer) PublishResolutionEvent(ctx context.Context, event *ResolutionEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishResolutionEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.SourceSystem + ":" + event.SourceIdentifier),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "source_system", Value: []byte(event.SourceSystem)},
			{Key: "match_method", Value: []byte(event.MatchMethod)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type":        event.EventType,
			"source_system":     event.SourceSystem,
			"source_identifier": event.SourceIdentifier,
		}).Error("Failed to publish resolution event")
		return err
	}

	return nil
}

// Health returns the producer health status
func (p *Producer) Health() bool {
	return p.writer != nil
}
