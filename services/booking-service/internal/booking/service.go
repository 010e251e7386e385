// Package booking is the authoritative read/write path for appointments. Slot listings are
// advisory; Book re-checks availability inside a transaction that holds the professional-day lock.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"
	"github.com/agendafacil/agendafacil/libs/clock"
	"github.com/agendafacil/agendafacil/libs/outbox"
	"github.com/agendafacil/agendafacil/services/booking-service/internal/availability"
	"github.com/agendafacil/agendafacil/services/booking-service/internal/metrics"
	"github.com/agendafacil/agendafacil/services/booking-service/internal/model"
	"github.com/agendafacil/agendafacil/services/booking-service/internal/scheduling"
	"github.com/agendafacil/agendafacil/services/booking-service/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("booking-service/booking")

type Service struct {
	repo      *storage.BookingRepository
	outbox    *outbox.Repository
	schedules scheduling.Provider
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo *storage.BookingRepository, outboxRepo *outbox.Repository, schedules scheduling.Provider, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		outbox:    outboxRepo,
		schedules: schedules,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

type SlotQuery struct {
	EstablishmentID string
	ProfessionalID  string
	ServiceID       string
	Date            civil.Date
}

type DaySlots struct {
	Date            civil.Date
	ProfessionalID  string
	ServiceID       string
	ServiceName     string
	DurationMinutes int
	Timezone        string
	Closed          bool
	Slots           []availability.Slot
}

// Slots lists the day's candidate start times. Starts that already elapsed today (in the
// establishment's time zone) are omitted.
func (s *Service) Slots(ctx context.Context, q SlotQuery) (DaySlots, error) {
	ctx, span := tracer.Start(ctx, "booking.slots", trace.WithAttributes(
		attribute.String("establishment_id", q.EstablishmentID),
		attribute.String("professional_id", q.ProfessionalID),
		attribute.String("date", q.Date.String()),
	))
	defer span.End()

	out, err := s.slots(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.ObserveSlotQuery("error", 0)
		return DaySlots{}, err
	}
	if out.Closed {
		s.metrics.ObserveSlotQuery("closed", 0)
		return out, nil
	}
	available := 0
	for _, sl := range out.Slots {
		if sl.Available {
			available++
		}
	}
	span.SetAttributes(attribute.Int("slots.available", available))
	s.metrics.ObserveSlotQuery("open", available)
	return out, nil
}

func (s *Service) slots(ctx context.Context, q SlotQuery) (DaySlots, error) {
	sched, err := s.schedules.DaySchedule(ctx, q.EstablishmentID, q.ServiceID, q.Date)
	if err != nil {
		return DaySlots{}, err
	}
	out := DaySlots{
		Date:            q.Date,
		ProfessionalID:  q.ProfessionalID,
		ServiceID:       q.ServiceID,
		ServiceName:     sched.ServiceName,
		DurationMinutes: sched.DurationMinutes,
		Timezone:        sched.Timezone,
		Slots:           []availability.Slot{},
	}

	today, nowMinute := s.localNow(sched)
	if q.Date.Before(today) {
		return DaySlots{}, ErrPastDate
	}
	if !sched.IsOpen || len(sched.Windows) == 0 {
		out.Closed = true
		return out, nil
	}

	req := engineRequest(q.ProfessionalID, q.Date, sched)
	if err := availability.Validate(req); err != nil {
		return DaySlots{}, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}

	appts, err := s.repo.ListForDay(ctx, nil, q.EstablishmentID, q.ProfessionalID, q.Date)
	if err != nil {
		return DaySlots{}, fmt.Errorf("list appointments: %w", err)
	}

	slots := availability.ComputeSlots(req, model.BusyIntervals(appts))
	if q.Date == today {
		slots = availability.DropBefore(slots, nowMinute)
	}
	out.Slots = slots
	return out, nil
}

type Request struct {
	EstablishmentID string
	ProfessionalID  string
	ServiceID       string
	ClientID        string
	ClientName      string
	Date            civil.Date
	StartMinute     int
	PaymentMethod   string
	IdempotencyKey  string
}

type Result struct {
	AppointmentID string
	Replayed      bool
	Appointment   model.Appointment
}

// Book creates a pending appointment if the requested start is still available.
func (s *Service) Book(ctx context.Context, req Request) (Result, error) {
	ctx, span := tracer.Start(ctx, "booking.book", trace.WithAttributes(
		attribute.String("establishment_id", req.EstablishmentID),
		attribute.String("professional_id", req.ProfessionalID),
		attribute.String("date", req.Date.String()),
		attribute.Int("start_minute", req.StartMinute),
	))
	defer span.End()

	started := s.now()
	res, err := s.book(ctx, req)
	s.metrics.ObserveBooking(bookOutcome(res, err), s.now().Sub(started).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	span.SetAttributes(attribute.String("appointment_id", res.AppointmentID), attribute.Bool("replayed", res.Replayed))
	return res, nil
}

func (s *Service) book(ctx context.Context, req Request) (Result, error) {
	sched, err := s.schedules.DaySchedule(ctx, req.EstablishmentID, req.ServiceID, req.Date)
	if err != nil {
		return Result{}, err
	}
	today, nowMinute := s.localNow(sched)
	if req.Date.Before(today) || (req.Date == today && req.StartMinute < nowMinute) {
		return Result{}, ErrPastDate
	}
	if !sched.IsOpen || len(sched.Windows) == 0 {
		return Result{}, ErrClosed
	}
	engineReq := engineRequest(req.ProfessionalID, req.Date, sched)
	if err := availability.Validate(engineReq); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if req.IdempotencyKey != "" {
		rec, err := s.repo.LockIdempotencyKey(ctx, tx, req.EstablishmentID, req.IdempotencyKey)
		if err != nil {
			return Result{}, fmt.Errorf("lock idempotency key: %w", err)
		}
		// Also set when the lock waited on a concurrent request that committed first.
		if rec.AppointmentID != "" {
			if err := tx.Commit(ctx); err != nil {
				return Result{}, err
			}
			return Result{AppointmentID: rec.AppointmentID, Replayed: true}, nil
		}
	}

	if err := s.repo.LockProfessionalDay(ctx, tx, req.EstablishmentID, req.ProfessionalID, req.Date); err != nil {
		return Result{}, fmt.Errorf("lock professional day: %w", err)
	}
	appts, err := s.repo.ListForDay(ctx, tx, req.EstablishmentID, req.ProfessionalID, req.Date)
	if err != nil {
		return Result{}, fmt.Errorf("list appointments: %w", err)
	}

	slot, ok := availability.Evaluate(engineReq, model.BusyIntervals(appts), req.StartMinute)
	if !ok {
		return Result{}, ErrNotACandidate
	}
	if !slot.Available {
		if slot.Reason == availability.ReasonOverlap {
			return Result{}, ErrBookingConflict
		}
		return Result{}, &UnavailableError{Reason: slot.Reason}
	}

	appt := model.Appointment{
		EstablishmentID: req.EstablishmentID,
		ProfessionalID:  req.ProfessionalID,
		ServiceID:       req.ServiceID,
		ServiceName:     sched.ServiceName,
		ClientID:        req.ClientID,
		ClientName:      req.ClientName,
		Date:            req.Date,
		StartMinute:     req.StartMinute,
		DurationMinutes: sched.DurationMinutes,
		PriceCents:      sched.PriceCents,
		PaymentMethod:   req.PaymentMethod,
		Status:          model.StatusPending,
	}
	if err := s.repo.Create(ctx, tx, &appt); err != nil {
		if storage.IsConflict(err) {
			return Result{}, ErrBookingConflict
		}
		return Result{}, fmt.Errorf("insert appointment: %w", err)
	}

	evt, err := outbox.NewEvent(aggregateAppointment, appt.ID, EventAppointmentBooked, appointmentBookedPayload{
		AppointmentID:   appt.ID,
		EstablishmentID: appt.EstablishmentID,
		ProfessionalID:  appt.ProfessionalID,
		ServiceID:       appt.ServiceID,
		ServiceName:     appt.ServiceName,
		ClientID:        appt.ClientID,
		ClientName:      appt.ClientName,
		Date:            appt.Date.String(),
		StartTime:       clock.Format(appt.StartMinute),
		DurationMinutes: appt.DurationMinutes,
		PriceCents:      appt.PriceCents,
		PaymentMethod:   appt.PaymentMethod,
		Status:          appt.Status,
		BookedAt:        appt.CreatedAt,
	})
	if err != nil {
		return Result{}, err
	}
	if err := s.outbox.Insert(ctx, tx, evt); err != nil {
		return Result{}, fmt.Errorf("write outbox: %w", err)
	}

	if req.IdempotencyKey != "" {
		if err := s.repo.FinalizeIdempotency(ctx, tx, req.EstablishmentID, req.IdempotencyKey, appt.ID); err != nil {
			return Result{}, fmt.Errorf("finalize idempotency: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if storage.IsConflict(err) {
			return Result{}, ErrBookingConflict
		}
		return Result{}, err
	}

	s.logger.InfoContext(ctx, "appointment booked",
		"appointment_id", appt.ID,
		"establishment_id", appt.EstablishmentID,
		"professional_id", appt.ProfessionalID,
		"date", appt.Date.String(),
		"start", clock.Format(appt.StartMinute),
	)
	return Result{AppointmentID: appt.ID, Appointment: appt}, nil
}

type CancelRequest struct {
	EstablishmentID string
	AppointmentID   string
	Reason          string
}

type Cancellation struct {
	AppointmentID    string
	CancelledAt      time.Time
	AlreadyCancelled bool
}

// Cancel marks an appointment cancelled, freeing its slot. Cancelling twice is not an error.
func (s *Service) Cancel(ctx context.Context, req CancelRequest) (Cancellation, error) {
	ctx, span := tracer.Start(ctx, "booking.cancel", trace.WithAttributes(
		attribute.String("establishment_id", req.EstablishmentID),
		attribute.String("appointment_id", req.AppointmentID),
	))
	defer span.End()

	out, err := s.cancel(ctx, req)
	switch {
	case err == nil && out.AlreadyCancelled:
		s.metrics.ObserveCancellation("already_cancelled")
	case err == nil:
		s.metrics.ObserveCancellation("cancelled")
	case errors.Is(err, ErrNotFound):
		s.metrics.ObserveCancellation("not_found")
	case errors.Is(err, ErrNotCancellable):
		s.metrics.ObserveCancellation("rejected")
	default:
		s.metrics.ObserveCancellation("error")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

func (s *Service) cancel(ctx context.Context, req CancelRequest) (Cancellation, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return Cancellation{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := s.repo.GetForUpdate(ctx, tx, req.EstablishmentID, req.AppointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			return Cancellation{}, ErrNotFound
		}
		return Cancellation{}, fmt.Errorf("load appointment: %w", err)
	}
	if appt.Cancelled() {
		out := Cancellation{AppointmentID: appt.ID, AlreadyCancelled: true}
		if appt.CancelledAt != nil {
			out.CancelledAt = *appt.CancelledAt
		}
		return out, tx.Commit(ctx)
	}
	if appt.Status == model.StatusCompleted {
		return Cancellation{}, ErrNotCancellable
	}

	cancelledAt, err := s.repo.Cancel(ctx, tx, req.EstablishmentID, req.AppointmentID, req.Reason)
	if err != nil {
		return Cancellation{}, fmt.Errorf("cancel appointment: %w", err)
	}

	evt, err := outbox.NewEvent(aggregateAppointment, appt.ID, EventAppointmentCancelled, appointmentCancelledPayload{
		AppointmentID:   appt.ID,
		EstablishmentID: appt.EstablishmentID,
		ProfessionalID:  appt.ProfessionalID,
		ClientID:        appt.ClientID,
		Date:            appt.Date.String(),
		StartTime:       clock.Format(appt.StartMinute),
		Reason:          req.Reason,
		CancelledAt:     cancelledAt,
	})
	if err != nil {
		return Cancellation{}, err
	}
	if err := s.outbox.Insert(ctx, tx, evt); err != nil {
		return Cancellation{}, fmt.Errorf("write outbox: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Cancellation{}, err
	}

	s.logger.InfoContext(ctx, "appointment cancelled", "appointment_id", appt.ID, "establishment_id", appt.EstablishmentID)
	return Cancellation{AppointmentID: appt.ID, CancelledAt: cancelledAt}, nil
}

func (s *Service) List(ctx context.Context, establishmentID string, date *civil.Date, limit int) ([]model.Appointment, error) {
	return s.repo.ListByEstablishment(ctx, establishmentID, date, limit)
}

func (s *Service) localNow(sched scheduling.DaySchedule) (civil.Date, int) {
	now := s.now().In(sched.Location())
	return civil.DateOf(now), now.Hour()*60 + now.Minute()
}

func engineRequest(professionalID string, date civil.Date, sched scheduling.DaySchedule) availability.Request {
	return availability.Request{
		Date:            date,
		ProfessionalID:  professionalID,
		DurationMinutes: sched.DurationMinutes,
		Windows:         sched.Windows,
	}
}

func bookOutcome(res Result, err error) string {
	var unavailable *UnavailableError
	switch {
	case err == nil && res.Replayed:
		return "replayed"
	case err == nil:
		return "created"
	case errors.Is(err, ErrBookingConflict):
		return "conflict"
	case errors.As(err, &unavailable), errors.Is(err, ErrNotACandidate), errors.Is(err, ErrClosed), errors.Is(err, ErrPastDate):
		return "rejected"
	case errors.Is(err, scheduling.ErrServiceNotFound):
		return "unknown_service"
	default:
		return "error"
	}
}
