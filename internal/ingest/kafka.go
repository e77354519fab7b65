// Package ingest consumes externally recorded events and feeds them to
// the evaluation engine. The HTTP path lives in the api package; this one
// covers deployments where occurrences arrive on a topic.
package ingest

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"vigil/internal/config"
	"vigil/internal/engine"
	"vigil/internal/model"
	"vigil/internal/storage"
)

func StartKafka(ctx context.Context, cfg *config.Manager, store storage.Store, eng *engine.Engine, logger *slog.Logger) {
	current := cfg.Get().Ingest.Kafka
	if !current.Enabled {
		if logger != nil {
			logger.Info("kafka ingest disabled")
		}
		return
	}
	if logger != nil {
		logger.Info("kafka ingest enabled", "brokers", current.Brokers, "topic", current.Topic, "group_id", current.GroupID)
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  current.Brokers,
		Topic:    current.Topic,
		GroupID:  current.GroupID,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	go func() {
		defer reader.Close()
		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if logger != nil {
					logger.Warn("kafka read error", "err", err)
				}
				continue
			}
			var ev model.Event
			if err := json.Unmarshal(m.Value, &ev); err != nil {
				if logger != nil {
					logger.Warn("kafka event decode error", "err", err)
				}
				continue
			}
			if ev.OrgID == "" || ev.SubjectID == "" || ev.EventTypeID == "" {
				if logger != nil {
					logger.Warn("kafka event missing required fields", "event_id", ev.ID)
				}
				continue
			}
			stored, err := store.InsertEvent(ctx, ev)
			if err != nil {
				if logger != nil {
					logger.Warn("kafka event insert failed", "err", err)
				}
				continue
			}
			eng.Evaluate(ctx, stored)
		}
	}()
}
