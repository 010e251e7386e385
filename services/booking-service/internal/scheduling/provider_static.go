package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/agendafacil/agendafacil/libs/clock"
	"github.com/agendafacil/agendafacil/services/booking-service/internal/availability"
)

// StaticProvider serves the same hours and service every day. It backs local development when no
// establishment-service address is configured.
type StaticProvider struct {
	Windows         []availability.Window
	DurationMinutes int
	PriceCents      int64
	ServiceName     string
	Timezone        string
	// ClosedWeekdays lists days (time.Weekday values) with no opening windows.
	ClosedWeekdays []int
}

func (p *StaticProvider) DaySchedule(_ context.Context, _ string, _ string, date civil.Date) (DaySchedule, error) {
	sched := DaySchedule{
		Timezone:        p.Timezone,
		ServiceName:     p.ServiceName,
		DurationMinutes: p.DurationMinutes,
		PriceCents:      p.PriceCents,
	}
	wd := int(date.In(time.UTC).Weekday())
	for _, closed := range p.ClosedWeekdays {
		if closed == wd {
			return sched, nil
		}
	}
	sched.IsOpen = len(p.Windows) > 0
	sched.Windows = append([]availability.Window(nil), p.Windows...)
	return sched, nil
}

// ParseWindows reads "HH:MM-HH:MM[,HH:MM-HH:MM]".
func ParseWindows(raw string) ([]availability.Window, error) {
	var out []availability.Window
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		from, to, ok := strings.Cut(part, "-")
		if !ok {
			return nil, fmt.Errorf("invalid window %q: want HH:MM-HH:MM", part)
		}
		start, err := clock.Parse(from)
		if err != nil {
			return nil, err
		}
		end, err := clock.Parse(to)
		if err != nil {
			return nil, err
		}
		out = append(out, availability.Window{StartMinute: start, EndMinute: end})
	}
	return out, nil
}
