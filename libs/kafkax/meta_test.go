package kafkax

import (
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestExtractEventMeta(t *testing.T) {
	msg := kafka.Message{
		Topic: "establishment.hours.updated.v1",
		Key:   []byte("est-1"),
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte("evt-9")},
		},
	}
	meta := ExtractEventMeta(msg)
	if meta.EventID != "evt-9" {
		t.Fatalf("expected header event id, got %q", meta.EventID)
	}
	if meta.EventType != "establishment.hours.updated.v1" {
		t.Fatalf("expected topic fallback for event type, got %q", meta.EventType)
	}

	meta = ExtractEventMeta(kafka.Message{Topic: "t", Key: []byte("k")})
	if meta.EventID != "k" {
		t.Fatalf("expected key fallback, got %q", meta.EventID)
	}
}

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" kafka-1:9092, ,kafka-2:9092 ")
	if len(got) != 2 || got[0] != "kafka-1:9092" || got[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers %v", got)
	}
	if SplitBrokers("") != nil {
		t.Fatalf("expected nil for empty input")
	}
}
