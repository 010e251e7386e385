package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/agendafacil/agendafacil/libs/kafkax"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/segmentio/kafka-go"
)

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestNewEventMarshalsPayload(t *testing.T) {
	evt, err := NewEvent("appointment", "apt-1", "booking.appointment.booked.v1", map[string]any{"start_minute": 600})
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	if string(evt.Payload) != `{"start_minute":600}` {
		t.Fatalf("payload = %s", evt.Payload)
	}
	if _, err := NewEvent("x", "y", "z", func() {}); err == nil {
		t.Fatalf("expected marshal error")
	}
}

func TestInsertUsesCallerQuerier(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	evt := Event{AggregateType: "appointment", AggregateID: "apt-1", EventType: "booking.appointment.booked.v1", Payload: []byte(`{}`)}
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs("appointment", "apt-1", "booking.appointment.booked.v1", []byte(`{}`), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := NewRepository().Insert(context.Background(), mock, evt); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPublishBatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	now := time.Now().UTC()
	cols := []string{"id", "event_id", "aggregate_type", "aggregate_id", "event_type", "payload", "traceparent", "tracestate", "created_at"}
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, event_id").WithArgs(50).WillReturnRows(
		pgxmock.NewRows(cols).
			AddRow(int64(7), "evt-7", "appointment", "apt-1", "booking.appointment.booked.v1", []byte(`{"a":1}`), "", "", now).
			AddRow(int64(8), "evt-8", "appointment", "apt-1", "booking.appointment.cancelled.v1", []byte(`{"a":2}`), "", "", now),
	)
	mock.ExpectExec("UPDATE outbox_events").WithArgs([]int64{7, 8}).WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectCommit()

	w := &captureWriter{}
	p := NewPublisher(mock, NewRepository(), slog.New(slog.NewTextHandler(io.Discard, nil)), PublisherConfig{})
	n, err := p.PublishBatch(context.Background(), w)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if n != 2 || len(w.msgs) != 2 {
		t.Fatalf("published %d, wrote %d", n, len(w.msgs))
	}
	if w.msgs[1].Topic != "booking.appointment.cancelled.v1" || string(w.msgs[1].Key) != "apt-1" {
		t.Fatalf("unexpected message: %+v", w.msgs[1])
	}
	meta := kafkax.ExtractEventMeta(w.msgs[0])
	if meta.EventID != "evt-7" || meta.EventType != "booking.appointment.booked.v1" {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPublishBatchWriteFailureRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	cols := []string{"id", "event_id", "aggregate_type", "aggregate_id", "event_type", "payload", "traceparent", "tracestate", "created_at"}
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, event_id").WithArgs(10).WillReturnRows(
		pgxmock.NewRows(cols).AddRow(int64(1), "evt-1", "appointment", "apt-1", "booking.appointment.booked.v1", []byte(`{}`), "", "", time.Now()),
	)
	mock.ExpectRollback()

	w := &captureWriter{err: errors.New("broker down")}
	p := NewPublisher(mock, NewRepository(), slog.New(slog.NewTextHandler(io.Discard, nil)), PublisherConfig{BatchSize: 10})
	if _, err := p.PublishBatch(context.Background(), w); err == nil {
		t.Fatalf("expected write error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
