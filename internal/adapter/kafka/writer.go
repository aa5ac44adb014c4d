package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/wanluwen/dataRetrieval/internal/config"
	"github.com/wanluwen/dataRetrieval/internal/frame"
	"github.com/wanluwen/dataRetrieval/internal/waterml"
)

// Writer publishes normalized observation rows to a Kafka topic.
// It implements pipeline.Sink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Load serializes every wide-table row of the result and publishes them in a
// single WriteMessages call. Rows are keyed by site_no so one site's readings
// stay on one partition.
func (w *Writer) Load(ctx context.Context, res *waterml.Result) error {
	if res.Table.Len() == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, res.Table.Len())
	for i := 0; i < res.Table.Len(); i++ {
		msg, err := serializeRow(res, i)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeRow marshals one wide-table row into a Kafka message.
func serializeRow(res *waterml.Result, i int) (kafkago.Message, error) {
	row := res.Table.Row(i)
	data, err := json.Marshal(jsonRow(row))
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize observation row: %w", err)
	}

	key, _ := row["site_no"].(string)
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte(res.Source)},
			{Key: "retrieved_at", Value: []byte(res.RetrievedAt.Format(time.RFC3339))},
		},
	}, nil
}

// jsonRow converts a row into a JSON-safe map: NaN readings become null
// (encoding/json rejects NaN) and timestamps serialize as RFC 3339.
func jsonRow(row frame.Row) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		switch t := v.(type) {
		case float64:
			if math.IsNaN(t) {
				out[k] = nil
			} else {
				out[k] = t
			}
		case time.Time:
			out[k] = t.Format(time.RFC3339)
		default:
			out[k] = v
		}
	}
	return out
}
