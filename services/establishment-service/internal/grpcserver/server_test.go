package grpcserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/agendafacil/agendafacil/libs/grpcx"
	schedulev1 "github.com/agendafacil/agendafacil/protos/gen/schedule/v1"
	"github.com/agendafacil/agendafacil/services/establishment-service/internal/hours"
	"github.com/agendafacil/agendafacil/services/establishment-service/internal/storage"
	"github.com/jackc/pgx/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type fakeStore struct {
	weekly   hours.Weekly
	services map[string]storage.Service
	err      error
}

func (f *fakeStore) GetSettings(_ context.Context, id string) (storage.Settings, error) {
	return storage.Settings{EstablishmentID: id, Timezone: storage.DefaultTimezone}, nil
}

func (f *fakeStore) GetWeekly(context.Context, string) (hours.Weekly, error) {
	return f.weekly, f.err
}

func (f *fakeStore) GetService(_ context.Context, _ string, id string) (storage.Service, error) {
	s, ok := f.services[id]
	if !ok {
		return storage.Service{}, pgx.ErrNoRows
	}
	return s, nil
}

func newClient(t *testing.T, store Store) schedulev1.ScheduleServiceClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpcx.NewServer()
	Register(gs, store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpcx.Dial("passthrough:///bufnet", grpcx.DialOptions{}, grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return schedulev1.NewScheduleServiceClient(conn)
}

func testStore() *fakeStore {
	var w hours.Weekly
	w[time.Monday] = hours.Day{Enabled: true, Open1: "09:00", Close1: "12:00", Open2: "14:00", Close2: "18:00"}
	return &fakeStore{
		weekly: w,
		services: map[string]storage.Service{
			"svc-1": {ID: "svc-1", Name: "Corte", DurationMinutes: 30, PriceCents: 3500},
		},
	}
}

func TestGetDayScheduleOpenDay(t *testing.T) {
	client := newClient(t, testStore())
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	// 2025-03-10 is a Monday.
	resp, err := client.GetDaySchedule(ctx, &schedulev1.DayScheduleRequest{EstablishmentId: "est-1", ServiceId: "svc-1", Date: "2025-03-10"})
	if err != nil {
		t.Fatalf("GetDaySchedule: %v", err)
	}
	if !resp.GetIsOpen() || len(resp.GetWindows()) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if w := resp.GetWindows()[1]; w.StartMinute != 840 || w.EndMinute != 1080 {
		t.Fatalf("second window = %+v", w)
	}
	if resp.GetDurationMinutes() != 30 || resp.GetPriceCents() != 3500 || resp.GetServiceName() != "Corte" {
		t.Fatalf("unexpected service fields: %+v", resp)
	}
	if resp.GetTimezone() != storage.DefaultTimezone {
		t.Fatalf("timezone = %q", resp.GetTimezone())
	}
}

func TestGetDayScheduleClosedDay(t *testing.T) {
	client := newClient(t, testStore())
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	resp, err := client.GetDaySchedule(ctx, &schedulev1.DayScheduleRequest{EstablishmentId: "est-1", ServiceId: "svc-1", Date: "2025-03-09"})
	if err != nil {
		t.Fatalf("GetDaySchedule: %v", err)
	}
	if resp.GetIsOpen() || len(resp.GetWindows()) != 0 {
		t.Fatalf("sunday should be closed: %+v", resp)
	}
	if resp.GetDurationMinutes() != 30 {
		t.Fatalf("service fields should still be filled: %+v", resp)
	}
}

func TestGetDayScheduleErrors(t *testing.T) {
	store := testStore()
	client := newClient(t, store)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	cases := []struct {
		name string
		req  *schedulev1.DayScheduleRequest
		want codes.Code
	}{
		{"unknown service", &schedulev1.DayScheduleRequest{EstablishmentId: "est-1", ServiceId: "nope", Date: "2025-03-10"}, codes.NotFound},
		{"bad date", &schedulev1.DayScheduleRequest{EstablishmentId: "est-1", ServiceId: "svc-1", Date: "10/03/2025"}, codes.InvalidArgument},
		{"missing establishment", &schedulev1.DayScheduleRequest{ServiceId: "svc-1", Date: "2025-03-10"}, codes.InvalidArgument},
	}
	for _, tc := range cases {
		_, err := client.GetDaySchedule(ctx, tc.req)
		if status.Code(err) != tc.want {
			t.Fatalf("%s: expected %s, got %v", tc.name, tc.want, err)
		}
	}

	store.err = errors.New("db down")
	_, err := client.GetDaySchedule(ctx, &schedulev1.DayScheduleRequest{EstablishmentId: "est-1", ServiceId: "svc-1", Date: "2025-03-10"})
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", err)
	}
}
