package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func newTestProducer(w *fakeWriter) *Producer {
	return &Producer{
		writer: w,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// --- Event ---

func TestNewEvent_Fields(t *testing.T) {
	type subscribed struct {
		ChannelID    string `json:"channel_id"`
		SubscriberID string `json:"subscriber_id"`
	}

	data := subscribed{ChannelID: "u-2", SubscriberID: "u-1"}
	event, err := NewEvent("channel.subscribed", "u-2", "channel", "vidtube", data)
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "channel.subscribed", event.EventType)
	assert.Equal(t, "u-2", event.AggregateID)
	assert.Equal(t, "channel", event.AggregateType)
	assert.Equal(t, "vidtube", event.Source)
	assert.Equal(t, 1, event.Version)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 2*time.Second)
	assert.NotNil(t, event.Metadata)

	var got subscribed
	require.NoError(t, json.Unmarshal(event.Data, &got))
	assert.Equal(t, data, got)
}

func TestNewEvent_InvalidData(t *testing.T) {
	_, err := NewEvent("test.event", "agg-1", "test", "vidtube", make(chan int))
	require.Error(t, err)
}

func TestEvent_MarshalKeepsEnvelope(t *testing.T) {
	original, err := NewEvent("user.registered", "u-1", "user", "vidtube", map[string]string{"username": "alice"})
	require.NoError(t, err)
	original.WithCorrelationID("corr-abc")

	raw, err := original.Marshal()
	require.NoError(t, err)

	var restored Event
	require.NoError(t, json.Unmarshal(raw, &restored))
	assert.Equal(t, original.EventID, restored.EventID)
	assert.Equal(t, "corr-abc", restored.CorrelationID)
	assert.JSONEq(t, `{"username":"alice"}`, string(restored.Data))
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "vidtube.user.registered", Topic("user", "registered"))
	assert.Equal(t, "vidtube.channel.subscribed", Topic("channel", "subscribed"))
}

// --- Producer ---

func TestDefaultProducerConfig(t *testing.T) {
	cfg := DefaultProducerConfig([]string{"b1:9092", "b2:9092"})
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.Brokers)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.False(t, cfg.Async)
}

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(w)

	event, err := NewEvent("user.updated", "u-1", "user", "vidtube", map[string]string{"fullName": "Alice"})
	require.NoError(t, err)
	event.WithCorrelationID("corr-1")

	require.NoError(t, p.Publish(context.Background(), Topic("user", "updated"), event))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "vidtube.user.updated", msg.Topic)
	assert.Equal(t, "u-1", string(msg.Key))
	assert.Equal(t, "user.updated", header(msg, "event_type"))
	assert.Equal(t, "vidtube", header(msg, "source"))
	assert.Equal(t, "corr-1", header(msg, "correlation_id"))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.EventID, decoded.EventID)
}

func TestProducer_PublishInjectsTraceContext(t *testing.T) {
	prevProp := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prevProp) })

	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	ctx, span := tp.Tracer("test").Start(context.Background(), "register")
	defer span.End()

	w := &fakeWriter{}
	event, err := NewEvent("user.registered", "u-1", "user", "vidtube", nil)
	require.NoError(t, err)
	require.NoError(t, newTestProducer(w).Publish(ctx, "t", event))

	require.Len(t, w.msgs, 1)
	assert.Contains(t, header(w.msgs[0], "traceparent"), span.SpanContext().TraceID().String())
}

func TestProducer_PublishError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	event, err := NewEvent("user.registered", "u-1", "user", "vidtube", nil)
	require.NoError(t, err)

	err = newTestProducer(w).Publish(context.Background(), "vidtube.user.registered", event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish event to vidtube.user.registered")
}

func TestProducer_Close(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, newTestProducer(w).Close())
	assert.True(t, w.closed)
}

func TestNewProducer_DoesNotDial(t *testing.T) {
	p := NewProducer(DefaultProducerConfig([]string{"localhost:19092"}), nil)
	require.NotNil(t, p)
	assert.Equal(t, []string{"localhost:19092"}, p.brokers)
	assert.NoError(t, p.Close())
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	err := PingBrokers(t.Context(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no brokers configured")
}
