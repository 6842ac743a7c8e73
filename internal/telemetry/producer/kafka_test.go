package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/tm65023/Story/internal/telemetry/domain"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewKafkaProducer_Disabled(t *testing.T) {
	p, err := NewKafkaProducer(nil, "topic")
	if err != nil || p != nil {
		t.Errorf("NewKafkaProducer(nil brokers) = (%v, %v), want (nil, nil)", p, err)
	}
	p, err = NewKafkaProducer([]string{"localhost:9092"}, "")
	if err != nil || p != nil {
		t.Errorf("NewKafkaProducer(empty topic) = (%v, %v), want (nil, nil)", p, err)
	}
}

func TestNewKafkaProducer_Enabled(t *testing.T) {
	p, err := NewKafkaProducer([]string{"localhost:9092"}, "story-auth-events")
	if err != nil {
		t.Fatalf("NewKafkaProducer: %v", err)
	}
	if p == nil {
		t.Fatal("producer should not be nil")
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestEmit_WritesJSONKeyedByUser(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaProducer{writer: w, topic: "t"}

	err := p.Emit(context.Background(), &domain.Event{Type: domain.EventCodeIssued, UserID: "u1", Source: "auth"})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("wrote %d messages, want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "u1" {
		t.Errorf("key = %q, want u1", msg.Key)
	}
	var got domain.Event
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got.Type != domain.EventCodeIssued || got.UserID != "u1" {
		t.Errorf("payload = %+v", got)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != domain.EventCodeIssued {
		t.Errorf("headers = %+v", msg.Headers)
	}
}

func TestEmit_NoUserNoKey(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaProducer{writer: w}
	if err := p.Emit(context.Background(), &domain.Event{Type: domain.EventVerifyFailed}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if w.msgs[0].Key != nil {
		t.Errorf("key = %q, want nil", w.msgs[0].Key)
	}
}

func TestEmit_WriteError(t *testing.T) {
	p := &KafkaProducer{writer: &fakeWriter{err: errors.New("broker down")}}
	if err := p.Emit(context.Background(), &domain.Event{Type: "x"}); err == nil {
		t.Fatal("Emit should return write errors")
	}
}

func TestNilProducer(t *testing.T) {
	var p *KafkaProducer
	if err := p.Emit(context.Background(), &domain.Event{}); err != nil {
		t.Errorf("nil Emit: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}
}
