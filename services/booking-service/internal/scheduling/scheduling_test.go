package scheduling

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/agendafacil/agendafacil/libs/grpcx"
	schedulev1 "github.com/agendafacil/agendafacil/protos/gen/schedule/v1"
	"github.com/agendafacil/agendafacil/services/booking-service/internal/availability"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

var monday = civil.Date{Year: 2025, Month: 3, Day: 10}

type countingProvider struct {
	calls int
	sched DaySchedule
	err   error
}

func (p *countingProvider) DaySchedule(context.Context, string, string, civil.Date) (DaySchedule, error) {
	p.calls++
	return p.sched, p.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseWindows(t *testing.T) {
	got, err := ParseWindows("09:00-12:00, 14:00-18:00")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []availability.Window{{StartMinute: 540, EndMinute: 720}, {StartMinute: 840, EndMinute: 1080}}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %+v", got)
	}
	if got, err := ParseWindows(""); err != nil || len(got) != 0 {
		t.Fatalf("empty input: %+v %v", got, err)
	}
	for _, bad := range []string{"09:00", "9-12", "09:00-25:00"} {
		if _, err := ParseWindows(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestStaticProvider(t *testing.T) {
	p := &StaticProvider{
		Windows:         []availability.Window{{StartMinute: 540, EndMinute: 720}},
		DurationMinutes: 30,
		ServiceName:     "Corte",
		ClosedWeekdays:  []int{int(time.Sunday)},
	}
	open, err := p.DaySchedule(context.Background(), "est-1", "svc-1", monday)
	if err != nil || !open.IsOpen || len(open.Windows) != 1 || open.DurationMinutes != 30 {
		t.Fatalf("monday: %+v %v", open, err)
	}
	closed, err := p.DaySchedule(context.Background(), "est-1", "svc-1", monday.AddDays(6))
	if err != nil || closed.IsOpen || len(closed.Windows) != 0 {
		t.Fatalf("sunday: %+v %v", closed, err)
	}
}

func TestDayScheduleLocation(t *testing.T) {
	if loc := (DaySchedule{}).Location(); loc != time.UTC {
		t.Fatalf("expected UTC, got %v", loc)
	}
	if loc := (DaySchedule{Timezone: "Not/AZone"}).Location(); loc != time.UTC {
		t.Fatalf("expected UTC fallback, got %v", loc)
	}
	if loc := (DaySchedule{Timezone: "America/Sao_Paulo"}).Location(); loc.String() != "America/Sao_Paulo" {
		t.Fatalf("unexpected location %v", loc)
	}
}

func TestCachedProvider_ReadThroughAndInvalidate(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	inner := &countingProvider{sched: DaySchedule{IsOpen: true, Timezone: "America/Sao_Paulo", DurationMinutes: 30, Windows: []availability.Window{{StartMinute: 540, EndMinute: 720}}}}
	c := NewCachedProvider(inner, rdb, time.Minute, discardLogger(), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := c.DaySchedule(ctx, "est-1", "svc-1", monday)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if got.DurationMinutes != 30 || len(got.Windows) != 1 || got.Windows[0].EndMinute != 720 {
			t.Fatalf("unexpected schedule %+v", got)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("expected 1 inner call, got %d", inner.calls)
	}
	if !mr.Exists("schedule:est-1") || mr.TTL("schedule:est-1") <= 0 {
		t.Fatalf("expected hash with ttl")
	}

	// Another service on the same day is a separate field.
	if _, err := c.DaySchedule(ctx, "est-1", "svc-2", monday); err != nil {
		t.Fatalf("svc-2: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected 2 inner calls, got %d", inner.calls)
	}

	if err := c.Invalidate(ctx, "est-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists("schedule:est-1") {
		t.Fatalf("expected hash removed")
	}
	if _, err := c.DaySchedule(ctx, "est-1", "svc-1", monday); err != nil {
		t.Fatalf("after invalidate: %v", err)
	}
	if inner.calls != 3 {
		t.Fatalf("expected 3 inner calls, got %d", inner.calls)
	}
}

// invalidatingProvider simulates an hours update landing while a fill is in flight.
type invalidatingProvider struct {
	countingProvider
	cache *CachedProvider
	once  bool
}

func (p *invalidatingProvider) DaySchedule(ctx context.Context, est, svc string, date civil.Date) (DaySchedule, error) {
	if !p.once {
		p.once = true
		if err := p.cache.Invalidate(ctx, est); err != nil {
			return DaySchedule{}, err
		}
	}
	return p.countingProvider.DaySchedule(ctx, est, svc, date)
}

func TestCachedProvider_InvalidationDuringFillIsNotOverwritten(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	inner := &invalidatingProvider{countingProvider: countingProvider{sched: DaySchedule{IsOpen: true, DurationMinutes: 30}}}
	c := NewCachedProvider(inner, rdb, time.Minute, discardLogger(), nil)
	inner.cache = c
	ctx := context.Background()

	if _, err := c.DaySchedule(ctx, "est-1", "svc-1", monday); err != nil {
		t.Fatalf("first: %v", err)
	}
	if mr.Exists("schedule:est-1") {
		t.Fatalf("fill that raced an invalidation must not be stored")
	}
	if got, _ := mr.Get("schedule:est-1:gen"); got != "1" {
		t.Fatalf("expected generation 1, got %q", got)
	}

	// The next fill sees the new generation and is cached.
	if _, err := c.DaySchedule(ctx, "est-1", "svc-1", monday); err != nil {
		t.Fatalf("second: %v", err)
	}
	if _, err := c.DaySchedule(ctx, "est-1", "svc-1", monday); err != nil {
		t.Fatalf("third: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected 2 inner calls, got %d", inner.calls)
	}
}

func TestCachedProvider_StaleEntryRefetched(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	inner := &countingProvider{sched: DaySchedule{IsOpen: true, DurationMinutes: 30}}
	c := NewCachedProvider(inner, rdb, time.Minute, discardLogger(), nil)
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if _, err := c.DaySchedule(context.Background(), "est-1", "svc-1", monday); err != nil {
		t.Fatalf("first: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := c.DaySchedule(context.Background(), "est-1", "svc-1", monday); err != nil {
		t.Fatalf("second: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected stale entry to be refetched, calls=%d", inner.calls)
	}
}

func TestCachedProvider_RedisDownFallsBack(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	inner := &countingProvider{sched: DaySchedule{IsOpen: true, DurationMinutes: 45}}
	c := NewCachedProvider(inner, rdb, time.Minute, discardLogger(), nil)
	got, err := c.DaySchedule(context.Background(), "est-1", "svc-1", monday)
	if err != nil || got.DurationMinutes != 45 {
		t.Fatalf("expected fallback, got %+v %v", got, err)
	}
}

func TestCachedProvider_InnerErrorNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	inner := &countingProvider{err: ErrServiceNotFound}
	c := NewCachedProvider(inner, rdb, time.Minute, discardLogger(), nil)
	if _, err := c.DaySchedule(context.Background(), "est-1", "svc-x", monday); !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("expected ErrServiceNotFound, got %v", err)
	}
	if mr.Exists("schedule:est-1") {
		t.Fatalf("errors must not be cached")
	}
}

type fakeScheduleServer struct {
	schedulev1.UnimplementedScheduleServiceServer
}

func (fakeScheduleServer) GetDaySchedule(_ context.Context, req *schedulev1.DayScheduleRequest) (*schedulev1.DayScheduleResponse, error) {
	switch req.GetServiceId() {
	case "missing":
		return nil, status.Error(codes.NotFound, "service not found")
	case "broken":
		return nil, status.Error(codes.Internal, "boom")
	}
	if req.GetDate() != "2025-03-10" {
		return &schedulev1.DayScheduleResponse{EstablishmentId: req.GetEstablishmentId(), Timezone: "UTC", DurationMinutes: 30}, nil
	}
	return &schedulev1.DayScheduleResponse{
		EstablishmentId: req.GetEstablishmentId(),
		Timezone:        "America/Sao_Paulo",
		IsOpen:          true,
		Windows:         []*schedulev1.Window{{StartMinute: 540, EndMinute: 720}, {StartMinute: 840, EndMinute: 1080}},
		ServiceName:     "Corte masculino",
		DurationMinutes: 30,
		PriceCents:      4500,
	}, nil
}

func TestGRPCProvider(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	gs := grpcx.NewServer()
	schedulev1.RegisterScheduleServiceServer(gs, fakeScheduleServer{})
	go func() { _ = gs.Serve(lis) }()
	defer gs.Stop()

	conn, err := grpcx.Dial("passthrough:///bufnet", grpcx.DialOptions{}, grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	p := newGRPCProvider(conn, schedulev1.NewScheduleServiceClient(conn), time.Second)
	defer p.Close()
	ctx := context.Background()

	got, err := p.DaySchedule(ctx, "est-1", "svc-1", monday)
	if err != nil {
		t.Fatalf("day schedule: %v", err)
	}
	if !got.IsOpen || len(got.Windows) != 2 || got.Windows[1].StartMinute != 840 || got.PriceCents != 4500 || got.ServiceName != "Corte masculino" {
		t.Fatalf("unexpected schedule %+v", got)
	}

	closed, err := p.DaySchedule(ctx, "est-1", "svc-1", monday.AddDays(6))
	if err != nil || closed.IsOpen || len(closed.Windows) != 0 {
		t.Fatalf("closed day: %+v %v", closed, err)
	}

	if _, err := p.DaySchedule(ctx, "est-1", "missing", monday); !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("expected ErrServiceNotFound, got %v", err)
	}
	if _, err := p.DaySchedule(ctx, "est-1", "broken", monday); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
