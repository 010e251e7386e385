// Package grpcserver serves establishment schedules to booking-service.
package grpcserver

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/agendafacil/agendafacil/libs/db"
	schedulev1 "github.com/agendafacil/agendafacil/protos/gen/schedule/v1"
	"github.com/agendafacil/agendafacil/services/establishment-service/internal/hours"
	"github.com/agendafacil/agendafacil/services/establishment-service/internal/storage"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Store is the part of storage.Repository the schedule server reads.
type Store interface {
	GetSettings(ctx context.Context, establishmentID string) (storage.Settings, error)
	GetWeekly(ctx context.Context, establishmentID string) (hours.Weekly, error)
	GetService(ctx context.Context, establishmentID, serviceID string) (storage.Service, error)
}

type server struct {
	schedulev1.UnimplementedScheduleServiceServer
	store  Store
	logger *slog.Logger
}

func Register(grpcServer *grpc.Server, store Store, logger *slog.Logger) {
	schedulev1.RegisterScheduleServiceServer(grpcServer, &server{store: store, logger: logger})
}

func (s *server) GetDaySchedule(ctx context.Context, req *schedulev1.DayScheduleRequest) (*schedulev1.DayScheduleResponse, error) {
	estID := strings.TrimSpace(req.GetEstablishmentId())
	svcID := strings.TrimSpace(req.GetServiceId())
	if estID == "" || svcID == "" {
		return nil, status.Error(codes.InvalidArgument, "establishment_id and service_id are required")
	}
	date, err := civil.ParseDate(req.GetDate())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid date %q: want YYYY-MM-DD", req.GetDate())
	}

	svc, err := s.store.GetService(ctx, estID, svcID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, status.Error(codes.NotFound, "service not found")
		}
		s.logger.ErrorContext(ctx, "load service failed", "err", err, "establishment_id", estID)
		return nil, status.Error(codes.Internal, "failed to load service")
	}
	settings, err := s.store.GetSettings(ctx, estID)
	if err != nil {
		s.logger.ErrorContext(ctx, "load settings failed", "err", err, "establishment_id", estID)
		return nil, status.Error(codes.Internal, "failed to load settings")
	}
	weekly, err := s.store.GetWeekly(ctx, estID)
	if err != nil {
		s.logger.ErrorContext(ctx, "load hours failed", "err", err, "establishment_id", estID)
		return nil, status.Error(codes.Internal, "failed to load hours")
	}

	resp := &schedulev1.DayScheduleResponse{
		EstablishmentId: estID,
		Timezone:        settings.Timezone,
		ServiceName:     svc.Name,
		DurationMinutes: int32(svc.DurationMinutes),
		PriceCents:      svc.PriceCents,
	}
	for _, p := range weekly.WindowsFor(date.In(time.UTC).Weekday()) {
		resp.Windows = append(resp.Windows, &schedulev1.Window{StartMinute: int32(p.Open), EndMinute: int32(p.Close)})
	}
	resp.IsOpen = len(resp.Windows) > 0
	return resp, nil
}
