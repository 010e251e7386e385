package scheduling

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/civil"
	"github.com/agendafacil/agendafacil/services/booking-service/internal/availability"
)

var (
	ErrServiceNotFound = errors.New("service not found")
	ErrUnavailable     = errors.New("schedule provider unavailable")
)

// DaySchedule is the establishment configuration the engine needs for one date and service.
type DaySchedule struct {
	IsOpen          bool                  `json:"is_open"`
	Timezone        string                `json:"timezone"`
	Windows         []availability.Window `json:"windows"`
	ServiceName     string                `json:"service_name"`
	DurationMinutes int                   `json:"duration_minutes"`
	PriceCents      int64                 `json:"price_cents"`
}

// Location returns the establishment time zone, falling back to UTC for unknown names.
func (d DaySchedule) Location() *time.Location {
	if d.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type Provider interface {
	DaySchedule(ctx context.Context, establishmentID, serviceID string, date civil.Date) (DaySchedule, error)
}
