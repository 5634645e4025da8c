// Package kafka publishes station snapshots to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/noaa-buoy-overlay/internal/config"
	"github.com/couchcryptid/noaa-buoy-overlay/internal/domain"
)

// Header keys set on every snapshot message.
const (
	HeaderMode     = "mode"
	HeaderLoadedAt = "loaded_at"
)

// messageWriter is the subset of kafkago.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces one message per station to the snapshot topic.
// It implements pipeline.SnapshotPublisher.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured snapshot topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaSnapshotTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishSnapshot serializes the stations of one refresh and writes them in a
// single WriteMessages call. Messages are keyed by station id so a station's
// history stays on one partition.
func (w *Writer) PublishSnapshot(ctx context.Context, mode string, loadedAt time.Time, stations []domain.StationRecord) error {
	if len(stations) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(stations))
	for i := range stations {
		msg, err := serializeToMessage(stations[i], mode, loadedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	w.logger.Debug("snapshot published", "mode", mode, "stations", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a StationRecord into a Kafka message.
func serializeToMessage(rec domain.StationRecord, mode string, loadedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize station %s: %w", rec.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(rec.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: HeaderMode, Value: []byte(mode)},
			{Key: HeaderLoadedAt, Value: []byte(loadedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
