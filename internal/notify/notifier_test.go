// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package notify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/gamebot/internal/logging"
	"github.com/tomtom215/gamebot/internal/metrics"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newChannel(t *testing.T) (*gochannel.GoChannel, <-chan *message.Message) {
	t.Helper()
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, watermill.NopLogger{})
	t.Cleanup(func() { _ = ch.Close() })
	msgs, err := ch.Subscribe(context.Background(), "test.schema")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	return ch, msgs
}

func receive(t *testing.T, msgs <-chan *message.Message) Message {
	t.Helper()
	select {
	case msg := <-msgs:
		msg.Ack()
		var m Message
		if err := json.Unmarshal(msg.Payload, &m); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if msg.UUID != m.Key {
			t.Errorf("message UUID = %s, want event key %s", msg.UUID, m.Key)
		}
		return m
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func TestSchemaEventPublishesOnce(t *testing.T) {
	ch, msgs := newChannel(t)
	logPath := filepath.Join(t.TempDir(), "cache", DriftLogFile)
	n := New(ch, nil, WithTopic("test.schema"), WithDriftLog(logPath), WithClock(func() time.Time { return fixedNow }))

	ev := Event{Type: TypeExtraColumns, Dataset: "castaways", Table: "castaways",
		Summary: "Unexpected columns detected: [poc]", Remediation: "Review.", Labels: DefaultLabels}
	ctx := logging.ContextWithRunID(context.Background(), "run-1")
	published := testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues(TypeExtraColumns, OutcomePublished))
	deduped := testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues(TypeExtraColumns, OutcomeDeduplicated))

	fresh, err := n.SchemaEvent(ctx, ev)
	if err != nil {
		t.Fatalf("SchemaEvent() error = %v", err)
	}
	if !fresh {
		t.Error("SchemaEvent() = false for a new event")
	}

	got := receive(t, msgs)
	if got.Key != ev.Key() || got.RunID != "run-1" || !got.OccurredAt.Equal(fixedNow) {
		t.Errorf("message = %+v", got)
	}
	if got.Title != ev.Title() || got.Summary != ev.Summary {
		t.Errorf("message content = %+v", got)
	}

	fresh, err = n.SchemaEvent(ctx, ev)
	if err != nil {
		t.Fatalf("second SchemaEvent() error = %v", err)
	}
	if fresh {
		t.Error("second SchemaEvent() = true, want deduplicated")
	}
	select {
	case msg := <-msgs:
		t.Errorf("unexpected second message %s", msg.UUID)
	case <-time.After(100 * time.Millisecond):
	}

	if d := testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues(TypeExtraColumns, OutcomePublished)) - published; d != 1 {
		t.Errorf("published count delta = %v, want 1", d)
	}
	if d := testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues(TypeExtraColumns, OutcomeDeduplicated)) - deduped; d != 1 {
		t.Errorf("deduplicated count delta = %v, want 1", d)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if strings.Count(string(data), "Dataset: `castaways`") != 1 {
		t.Errorf("drift log = %q, want one entry", data)
	}
}

func TestNewSourceDataset(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), DriftLogFile)
	n := New(nil, NewMemorySeenStore(), WithDriftLog(logPath))

	fresh, err := n.NewSourceDataset(context.Background(), "survivor_auction", "data/survivor_auction.rda")
	if err != nil || !fresh {
		t.Fatalf("NewSourceDataset() = %v, %v", fresh, err)
	}
	fresh, err = n.NewSourceDataset(context.Background(), "survivor_auction", "dev/json/survivor_auction.json")
	if err != nil || fresh {
		t.Fatalf("second NewSourceDataset() = %v, %v; want deduplicated", fresh, err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.HasPrefix(string(data), "New survivoR dataset detected: `survivor_auction`") {
		t.Errorf("drift log = %q", data)
	}
}

type failingPublisher struct{ calls int }

func (p *failingPublisher) Publish(string, ...*message.Message) error {
	p.calls++
	return errors.New("broker down")
}

func (p *failingPublisher) Close() error { return nil }

func TestSchemaEventPublishFailureRetries(t *testing.T) {
	pub := &failingPublisher{}
	seen := NewMemorySeenStore()
	n := New(pub, seen)
	ev := Event{Type: TypeSchemaMismatch, Dataset: "episodes", Table: "episodes", Summary: "type mismatches: [viewers]"}

	for i := 0; i < 2; i++ {
		fresh, err := n.SchemaEvent(context.Background(), ev)
		if err == nil {
			t.Fatal("SchemaEvent() error = nil, want publish failure")
		}
		if fresh {
			t.Error("SchemaEvent() = true on failure")
		}
	}
	if pub.calls != 2 {
		t.Errorf("publish calls = %d, want 2", pub.calls)
	}
	if ok, _ := seen.Seen(context.Background(), ev.Key()); ok {
		t.Error("failed event was marked seen")
	}
}
