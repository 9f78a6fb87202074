package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs     []kafkago.Message
	writeErr error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func sampleMessage() Message {
	return Message{
		To:       "ana@example.com",
		ToName:   "Ana",
		Subject:  "🔴 Severe Weather Alert: Heavy Rain - Sunrise Dorm",
		HTMLBody: "<p>hello</p>",
		TextBody: "hello",
	}
}

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC)

	km, err := serializeToMessage(sampleMessage(), now)
	require.NoError(t, err)

	assert.Equal(t, []byte("ana@example.com"), km.Key)
	var decoded Message
	require.NoError(t, json.Unmarshal(km.Value, &decoded))
	assert.Equal(t, sampleMessage(), decoded)
	require.Len(t, km.Headers, 2)
	assert.Equal(t, "queued_at", km.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), km.Headers[1].Value)
}

func TestKafkaMailer_Send(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC))
	w := &fakeWriter{}
	m := newKafkaMailer(w, clock)

	require.NoError(t, m.Send(context.Background(), sampleMessage()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "queued_at", w.msgs[0].Headers[1].Key)
	assert.Equal(t, "2026-10-19T06:00:00Z", string(w.msgs[0].Headers[1].Value))

	require.NoError(t, m.Close())
	assert.True(t, w.closed)
}

func TestKafkaMailer_WriteError(t *testing.T) {
	w := &fakeWriter{writeErr: errors.New("leader not available")}

	err := newKafkaMailer(w, nil).Send(context.Background(), sampleMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publishing alert email for ana@example.com")
}

func TestLogMailer_Send(t *testing.T) {
	var buf bytes.Buffer
	m := NewLogMailer(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, m.Send(context.Background(), sampleMessage()))
	assert.Contains(t, buf.String(), "to=ana@example.com")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, m.Send(ctx, sampleMessage()), context.Canceled)
}
