package scheduling

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/agendafacil/agendafacil/libs/grpcx"
	schedulev1 "github.com/agendafacil/agendafacil/protos/gen/schedule/v1"
	"github.com/agendafacil/agendafacil/services/booking-service/internal/availability"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type GRPCProvider struct {
	conn    *grpc.ClientConn
	client  schedulev1.ScheduleServiceClient
	timeout time.Duration
}

// NewGRPCProvider connects lazily to establishment-service.
func NewGRPCProvider(addr string, timeout time.Duration) (*GRPCProvider, error) {
	conn, err := grpcx.Dial(addr, grpcx.DialOptions{})
	if err != nil {
		return nil, err
	}
	return newGRPCProvider(conn, schedulev1.NewScheduleServiceClient(conn), timeout), nil
}

func newGRPCProvider(conn *grpc.ClientConn, client schedulev1.ScheduleServiceClient, timeout time.Duration) *GRPCProvider {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &GRPCProvider{conn: conn, client: client, timeout: timeout}
}

func (p *GRPCProvider) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

func (p *GRPCProvider) DaySchedule(ctx context.Context, establishmentID, serviceID string, date civil.Date) (DaySchedule, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.GetDaySchedule(ctx, &schedulev1.DayScheduleRequest{
		EstablishmentId: establishmentID,
		ServiceId:       serviceID,
		Date:            date.String(),
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return DaySchedule{}, ErrServiceNotFound
		}
		return DaySchedule{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	sched := DaySchedule{
		IsOpen:          resp.GetIsOpen(),
		Timezone:        resp.GetTimezone(),
		ServiceName:     resp.GetServiceName(),
		DurationMinutes: int(resp.GetDurationMinutes()),
		PriceCents:      resp.GetPriceCents(),
	}
	if sched.IsOpen {
		for _, w := range resp.GetWindows() {
			if w == nil {
				continue
			}
			sched.Windows = append(sched.Windows, availability.Window{StartMinute: int(w.StartMinute), EndMinute: int(w.EndMinute)})
		}
	}
	return sched, nil
}
