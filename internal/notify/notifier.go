// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package notify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/gamebot/internal/logging"
	"github.com/tomtom215/gamebot/internal/metrics"
)

// DriftLogFile is the drift log name inside the cache directory.
const DriftLogFile = "schema_drift.log"

// DefaultTopic is used when no topic is configured.
const DefaultTopic = "gamebot.schema"

// Notification outcomes recorded in metrics.
const (
	OutcomePublished    = "published"
	OutcomeLogged       = "logged"
	OutcomeDeduplicated = "deduplicated"
	OutcomeFailed       = "failed"
)

// Option configures a Notifier.
type Option func(*Notifier)

// WithTopic sets the publish topic (the NATS subject).
func WithTopic(topic string) Option {
	return func(n *Notifier) {
		if topic != "" {
			n.topic = topic
		}
	}
}

// WithDriftLog appends every new event to path.
func WithDriftLog(path string) Option {
	return func(n *Notifier) { n.logPath = path }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) { n.now = now }
}

// Notifier dedupes, logs and publishes schema events.
type Notifier struct {
	pub     message.Publisher
	seen    SeenStore
	topic   string
	logPath string
	now     func() time.Time

	logMu sync.Mutex
}

// New returns a Notifier. A nil pub keeps events in the drift log only; a
// nil seen store remembers events in memory.
func New(pub message.Publisher, seen SeenStore, opts ...Option) *Notifier {
	if seen == nil {
		seen = NewMemorySeenStore()
	}
	n := &Notifier{
		pub:   pub,
		seen:  seen,
		topic: DefaultTopic,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// SchemaEvent surfaces ev unless an identical event was surfaced before.
// It reports whether ev was new. An event whose publish fails is not marked
// seen, so the next run tries again.
func (n *Notifier) SchemaEvent(ctx context.Context, ev Event) (bool, error) {
	key := ev.Key()
	log := logging.Ctx(ctx).With().Str("event_type", ev.Type).Str("dataset", ev.Dataset).
		Str("table", ev.Table).Str("event_key", key).Logger()

	seen, err := n.seen.Seen(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check event %s: %w", key, err)
	}
	if seen {
		metrics.RecordNotification(ev.Type, OutcomeDeduplicated)
		log.Debug().Msg("Schema event already recorded")
		return false, nil
	}

	if err := n.appendLog(ev); err != nil {
		log.Warn().Err(err).Msg("Unable to write schema drift log")
	}

	outcome := OutcomeLogged
	if n.pub != nil {
		if err := n.publish(ctx, ev, key); err != nil {
			metrics.RecordNotification(ev.Type, OutcomeFailed)
			return false, fmt.Errorf("publish event %s: %w", key, err)
		}
		outcome = OutcomePublished
	}

	if err := n.seen.Mark(ctx, key); err != nil {
		return true, fmt.Errorf("mark event %s: %w", key, err)
	}
	metrics.RecordNotification(ev.Type, outcome)
	log.Info().Str("title", ev.Title()).Msg("Schema event recorded")
	return true, nil
}

// NewSourceDataset surfaces an upstream dataset the catalog does not declare.
func (n *Notifier) NewSourceDataset(ctx context.Context, dataset, location string) (bool, error) {
	return n.SchemaEvent(ctx, NewSourceDatasetEvent(dataset, location))
}

func (n *Notifier) publish(ctx context.Context, ev Event, key string) error {
	payload, err := json.Marshal(Message{
		Event:      ev,
		Key:        key,
		Title:      ev.Title(),
		RunID:      logging.RunIDFromContext(ctx),
		OccurredAt: n.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := message.NewMessage(key, payload)
	msg.Metadata.Set("event_type", ev.Type)
	msg.Metadata.Set("dataset", ev.Dataset)
	msg.SetContext(ctx)
	return n.pub.Publish(n.topic, msg)
}

func (n *Notifier) appendLog(ev Event) error {
	if n.logPath == "" {
		return nil
	}
	n.logMu.Lock()
	defer n.logMu.Unlock()

	if err := os.MkdirAll(filepath.Dir(n.logPath), 0o750); err != nil {
		return err
	}
	f, err := os.OpenFile(n.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(ev.Body() + "\n"); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
