package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/agendafacil/agendafacil/libs/clock"
	"github.com/agendafacil/agendafacil/libs/httpx"
	"github.com/agendafacil/agendafacil/services/booking-service/internal/booking"
	"github.com/agendafacil/agendafacil/services/booking-service/internal/model"
	"github.com/agendafacil/agendafacil/services/booking-service/internal/scheduling"
)

// Bookings is the booking service as seen by HTTP handlers.
type Bookings interface {
	Slots(ctx context.Context, q booking.SlotQuery) (booking.DaySlots, error)
	Book(ctx context.Context, req booking.Request) (booking.Result, error)
	Cancel(ctx context.Context, req booking.CancelRequest) (booking.Cancellation, error)
	List(ctx context.Context, establishmentID string, date *civil.Date, limit int) ([]model.Appointment, error)
}

const establishmentHeader = "X-Establishment-Id"

type BookingHandler struct {
	svc    Bookings
	logger *slog.Logger
}

func NewBookingHandler(svc Bookings, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

type slotsQuery struct {
	EstablishmentID string `json:"establishment_id" validate:"required"`
	ProfessionalID  string `json:"professional_id" validate:"required"`
	ServiceID       string `json:"service_id" validate:"required"`
	Date            string `json:"date" validate:"required,date"`
}

type slotItem struct {
	Time        string `json:"time"`
	StartMinute int    `json:"start_minute"`
	Available   bool   `json:"available"`
	Reason      string `json:"reason,omitempty"`
}

type slotsResponse struct {
	Date            string     `json:"date"`
	ProfessionalID  string     `json:"professional_id"`
	ServiceID       string     `json:"service_id"`
	ServiceName     string     `json:"service_name,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	Timezone        string     `json:"timezone,omitempty"`
	Closed          bool       `json:"closed"`
	Message         string     `json:"message,omitempty"`
	Slots           []slotItem `json:"slots"`
}

type createBookingRequest struct {
	EstablishmentID string `json:"establishment_id" validate:"required"`
	ProfessionalID  string `json:"professional_id" validate:"required"`
	ServiceID       string `json:"service_id" validate:"required"`
	ClientID        string `json:"client_id" validate:"required"`
	ClientName      string `json:"client_name" validate:"required,max=120"`
	Date            string `json:"date" validate:"required,date"`
	Time            string `json:"time" validate:"required,hhmm"`
	PaymentMethod   string `json:"payment_method" validate:"required,oneof=pix credito debito dinheiro pagar_local"`
}

type createBookingResponse struct {
	AppointmentID string `json:"appointment_id"`
}

type cancelBookingRequest struct {
	EstablishmentID string `json:"establishment_id" validate:"required"`
	AppointmentID   string `json:"appointment_id" validate:"required"`
	Reason          string `json:"reason" validate:"max=500"`
}

type cancelBookingResponse struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at,omitempty"`
}

type listAppointmentItem struct {
	AppointmentID   string `json:"appointment_id"`
	ProfessionalID  string `json:"professional_id"`
	ServiceID       string `json:"service_id"`
	ServiceName     string `json:"service_name"`
	ClientID        string `json:"client_id"`
	ClientName      string `json:"client_name"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
	PaymentMethod   string `json:"payment_method"`
	Status          string `json:"status"`
	CancelledAt     string `json:"cancelled_at,omitempty"`
	CreatedAt       string `json:"created_at"`
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := slotsQuery{
		EstablishmentID: strings.TrimSpace(q.Get("establishment_id")),
		ProfessionalID:  strings.TrimSpace(q.Get("professional_id")),
		ServiceID:       strings.TrimSpace(q.Get("service_id")),
		Date:            strings.TrimSpace(q.Get("date")),
	}
	if in.EstablishmentID == "" {
		in.EstablishmentID = strings.TrimSpace(r.Header.Get(establishmentHeader))
	}
	if err := httpx.Validate(in); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_request", httpx.ValidationMessage(err))
		return
	}
	date, _ := civil.ParseDate(in.Date)

	out, err := h.svc.Slots(r.Context(), booking.SlotQuery{
		EstablishmentID: in.EstablishmentID,
		ProfessionalID:  in.ProfessionalID,
		ServiceID:       in.ServiceID,
		Date:            date,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := slotsResponse{
		Date:            out.Date.String(),
		ProfessionalID:  out.ProfessionalID,
		ServiceID:       out.ServiceID,
		ServiceName:     out.ServiceName,
		DurationMinutes: out.DurationMinutes,
		Timezone:        out.Timezone,
		Closed:          out.Closed,
		Slots:           make([]slotItem, 0, len(out.Slots)),
	}
	if out.Closed {
		resp.Message = "closed this day"
	}
	for _, s := range out.Slots {
		resp.Slots = append(resp.Slots, slotItem{
			Time:        clock.Format(s.StartMinute),
			StartMinute: s.StartMinute,
			Available:   s.Available,
			Reason:      string(s.Reason),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in createBookingRequest
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}
	in.EstablishmentID = strings.TrimSpace(in.EstablishmentID)
	in.ProfessionalID = strings.TrimSpace(in.ProfessionalID)
	in.ServiceID = strings.TrimSpace(in.ServiceID)
	in.ClientID = strings.TrimSpace(in.ClientID)
	in.ClientName = strings.TrimSpace(in.ClientName)
	if err := httpx.Validate(in); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_request", httpx.ValidationMessage(err))
		return
	}
	date, _ := civil.ParseDate(in.Date)
	start, _ := clock.Parse(in.Time)

	res, err := h.svc.Book(r.Context(), booking.Request{
		EstablishmentID: in.EstablishmentID,
		ProfessionalID:  in.ProfessionalID,
		ServiceID:       in.ServiceID,
		ClientID:        in.ClientID,
		ClientName:      in.ClientName,
		Date:            date,
		StartMinute:     start,
		PaymentMethod:   in.PaymentMethod,
		IdempotencyKey:  strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	httpx.WriteJSON(w, status, createBookingResponse{AppointmentID: res.AppointmentID})
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var in cancelBookingRequest
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}
	in.EstablishmentID = strings.TrimSpace(in.EstablishmentID)
	if in.EstablishmentID == "" {
		in.EstablishmentID = strings.TrimSpace(r.Header.Get(establishmentHeader))
	}
	in.AppointmentID = strings.TrimSpace(in.AppointmentID)
	in.Reason = strings.TrimSpace(in.Reason)
	if err := httpx.Validate(in); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_request", httpx.ValidationMessage(err))
		return
	}

	out, err := h.svc.Cancel(r.Context(), booking.CancelRequest{
		EstablishmentID: in.EstablishmentID,
		AppointmentID:   in.AppointmentID,
		Reason:          in.Reason,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := cancelBookingResponse{AppointmentID: out.AppointmentID, Status: model.StatusCancelled}
	if !out.CancelledAt.IsZero() {
		resp.CancelledAt = out.CancelledAt.UTC().Format(time.RFC3339)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	establishmentID := strings.TrimSpace(r.Header.Get(establishmentHeader))
	if establishmentID == "" {
		establishmentID = strings.TrimSpace(r.URL.Query().Get("establishment_id"))
	}
	if establishmentID == "" {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_request", "establishment_id is required")
		return
	}

	var date *civil.Date
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		d, err := civil.ParseDate(raw)
		if err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, "invalid_request", "date must be YYYY-MM-DD")
			return
		}
		date = &d
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > 200 {
			httpx.WriteError(w, r, http.StatusBadRequest, "invalid_request", "limit must be between 1 and 200")
			return
		}
		limit = v
	}

	appts, err := h.svc.List(r.Context(), establishmentID, date, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items := make([]listAppointmentItem, 0, len(appts))
	for _, a := range appts {
		item := listAppointmentItem{
			AppointmentID:   a.ID,
			ProfessionalID:  a.ProfessionalID,
			ServiceID:       a.ServiceID,
			ServiceName:     a.ServiceName,
			ClientID:        a.ClientID,
			ClientName:      a.ClientName,
			Date:            a.Date.String(),
			Time:            clock.Format(a.StartMinute),
			DurationMinutes: a.DurationMinutes,
			PriceCents:      a.PriceCents,
			PaymentMethod:   a.PaymentMethod,
			Status:          a.Status,
			CreatedAt:       a.CreatedAt.UTC().Format(time.RFC3339),
		}
		if a.CancelledAt != nil {
			item.CancelledAt = a.CancelledAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"appointments": items})
}

func (h *BookingHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var unavailable *booking.UnavailableError
	switch {
	case errors.Is(err, booking.ErrBookingConflict):
		httpx.WriteError(w, r, http.StatusConflict, "booking_conflict", booking.ErrBookingConflict.Error())
	case errors.As(err, &unavailable):
		httpx.WriteError(w, r, http.StatusUnprocessableEntity, string(unavailable.Reason), err.Error())
	case errors.Is(err, booking.ErrNotACandidate):
		httpx.WriteError(w, r, http.StatusUnprocessableEntity, "not_a_candidate", err.Error())
	case errors.Is(err, booking.ErrClosed):
		httpx.WriteError(w, r, http.StatusUnprocessableEntity, "closed", err.Error())
	case errors.Is(err, booking.ErrPastDate):
		httpx.WriteError(w, r, http.StatusUnprocessableEntity, "past_date", err.Error())
	case errors.Is(err, booking.ErrNotCancellable):
		httpx.WriteError(w, r, http.StatusConflict, "not_cancellable", err.Error())
	case errors.Is(err, booking.ErrNotFound):
		httpx.WriteError(w, r, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, scheduling.ErrServiceNotFound):
		httpx.WriteError(w, r, http.StatusNotFound, "service_not_found", err.Error())
	case errors.Is(err, scheduling.ErrUnavailable):
		h.logger.ErrorContext(r.Context(), "schedule provider failed", "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
		httpx.WriteError(w, r, http.StatusServiceUnavailable, "schedule_unavailable", "establishment schedule is temporarily unavailable")
	default:
		h.logger.ErrorContext(r.Context(), "booking request failed", "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal", "internal error")
	}
}
