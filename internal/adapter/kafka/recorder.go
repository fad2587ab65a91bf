package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/vitisense/vinesentry/internal/config"
	"github.com/vitisense/vinesentry/internal/domain"
)

// Recorder publishes analysis history rows to a Kafka topic so downstream
// consumers (dashboards, alerting) see each cycle's results.
// It implements engine.AnalysisRecorder.
type Recorder struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewRecorder creates a Kafka producer for the configured analysis topic.
func NewRecorder(cfg *config.Config, logger *slog.Logger) *Recorder {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAnalysisTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Recorder{writer: w, logger: logger}
}

// Record serializes and publishes one analysis record, keyed by parcel so a
// parcel's history stays ordered within a partition.
func (r *Recorder) Record(ctx context.Context, rec domain.AnalysisRecord) error {
	msg, err := serializeToMessage(rec)
	if err != nil {
		return err
	}
	return r.writer.WriteMessages(ctx, msg)
}

func (r *Recorder) Close() error {
	return r.writer.Close()
}

// serializeToMessage marshals an analysis record into a Kafka message.
func serializeToMessage(rec domain.AnalysisRecord) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize analysis record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rec.Parcel),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "urgency", Value: []byte(rec.Urgency)},
			{Key: "analyzed_at", Value: []byte(rec.Date)},
		},
	}, nil
}
