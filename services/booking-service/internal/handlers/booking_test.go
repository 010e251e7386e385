package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/agendafacil/agendafacil/libs/httpx"
	"github.com/agendafacil/agendafacil/services/booking-service/internal/availability"
	"github.com/agendafacil/agendafacil/services/booking-service/internal/booking"
	"github.com/agendafacil/agendafacil/services/booking-service/internal/model"
	"github.com/agendafacil/agendafacil/services/booking-service/internal/scheduling"
)

type fakeBookings struct {
	slots     booking.DaySlots
	result    booking.Result
	cancelled booking.Cancellation
	appts     []model.Appointment
	err       error

	gotQuery  booking.SlotQuery
	gotBook   booking.Request
	gotCancel booking.CancelRequest
	gotDate   *civil.Date
	gotLimit  int
}

func (f *fakeBookings) Slots(_ context.Context, q booking.SlotQuery) (booking.DaySlots, error) {
	f.gotQuery = q
	return f.slots, f.err
}

func (f *fakeBookings) Book(_ context.Context, req booking.Request) (booking.Result, error) {
	f.gotBook = req
	return f.result, f.err
}

func (f *fakeBookings) Cancel(_ context.Context, req booking.CancelRequest) (booking.Cancellation, error) {
	f.gotCancel = req
	return f.cancelled, f.err
}

func (f *fakeBookings) List(_ context.Context, _ string, date *civil.Date, limit int) ([]model.Appointment, error) {
	f.gotDate, f.gotLimit = date, limit
	return f.appts, f.err
}

func newHandler(f *fakeBookings) *BookingHandler {
	return NewBookingHandler(f, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

const validBooking = `{"establishment_id":"est-1","professional_id":"p1","service_id":"svc-1","client_id":"c1","client_name":"Bruno","date":"2025-03-10","time":"10:30","payment_method":"pix"}`

func TestSlotsHandler(t *testing.T) {
	f := &fakeBookings{slots: booking.DaySlots{
		Date:            civil.Date{Year: 2025, Month: 3, Day: 10},
		ProfessionalID:  "p1",
		ServiceID:       "svc-1",
		DurationMinutes: 30,
		Slots: []availability.Slot{
			{StartMinute: 600, Reason: availability.ReasonOverlap},
			{StartMinute: 630, Available: true},
		},
	}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/slots?establishment_id=est-1&professional_id=p1&service_id=svc-1&date=2025-03-10", nil)
	rec := httptest.NewRecorder()
	newHandler(f).Slots(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp slotsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Slots) != 2 || resp.Slots[0].Time != "10:00" || resp.Slots[0].Reason != "overlaps-existing-appointment" || !resp.Slots[1].Available {
		t.Fatalf("unexpected slots: %+v", resp.Slots)
	}
	if strings.Contains(rec.Body.String(), `"reason":""`) {
		t.Fatalf("available slots must omit reason: %s", rec.Body.String())
	}
	if f.gotQuery.Date != (civil.Date{Year: 2025, Month: 3, Day: 10}) || f.gotQuery.ServiceID != "svc-1" {
		t.Fatalf("unexpected query %+v", f.gotQuery)
	}
}

func TestSlotsHandler_ClosedDay(t *testing.T) {
	f := &fakeBookings{slots: booking.DaySlots{Closed: true, Slots: []availability.Slot{}}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/slots?professional_id=p1&service_id=svc-1&date=2025-03-16", nil)
	req.Header.Set(establishmentHeader, "est-1")
	rec := httptest.NewRecorder()
	newHandler(f).Slots(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"closed":true`) || !strings.Contains(rec.Body.String(), `"slots":[]`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestSlotsHandler_Validation(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/slots?establishment_id=est-1&professional_id=p1&service_id=svc-1&date=10-03-2025", nil)
	rec := httptest.NewRecorder()
	newHandler(&fakeBookings{}).Slots(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateHandler(t *testing.T) {
	f := &fakeBookings{result: booking.Result{AppointmentID: "apt-1"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/book", strings.NewReader(validBooking))
	req.Header.Set("Idempotency-Key", "k-1")
	rec := httptest.NewRecorder()
	newHandler(f).Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if f.gotBook.StartMinute != 630 || f.gotBook.IdempotencyKey != "k-1" || f.gotBook.PaymentMethod != "pix" {
		t.Fatalf("unexpected request %+v", f.gotBook)
	}

	f.result.Replayed = true
	rec = httptest.NewRecorder()
	newHandler(f).Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/public/book", strings.NewReader(validBooking)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on replay, got %d", rec.Code)
	}
}

func TestCreateHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{booking.ErrBookingConflict, http.StatusConflict, "booking_conflict"},
		{&booking.UnavailableError{Reason: availability.ReasonBreak}, http.StatusUnprocessableEntity, "falls-in-break-interval"},
		{booking.ErrNotACandidate, http.StatusUnprocessableEntity, "not_a_candidate"},
		{booking.ErrClosed, http.StatusUnprocessableEntity, "closed"},
		{booking.ErrPastDate, http.StatusUnprocessableEntity, "past_date"},
		{scheduling.ErrServiceNotFound, http.StatusNotFound, "service_not_found"},
		{scheduling.ErrUnavailable, http.StatusServiceUnavailable, "schedule_unavailable"},
		{errors.New("db down"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		f := &fakeBookings{err: tc.err}
		rec := httptest.NewRecorder()
		newHandler(f).Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/public/book", strings.NewReader(validBooking)))
		if rec.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rec.Code)
		}
		var body httpx.ErrorBody
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Code != tc.code {
			t.Fatalf("%v: unexpected body %s", tc.err, rec.Body.String())
		}
		if tc.err == booking.ErrBookingConflict && body.Error != "this time was just taken, please pick another" {
			t.Fatalf("unexpected conflict message %q", body.Error)
		}
	}
}

func TestCreateHandler_BadInput(t *testing.T) {
	bodies := []string{
		`{not json`,
		`{"establishment_id":"est-1","unknown":true}`,
		strings.Replace(validBooking, `"pix"`, `"boleto"`, 1),
		strings.Replace(validBooking, `"10:30"`, `"10h30"`, 1),
		strings.Replace(validBooking, `"client_name":"Bruno"`, `"client_name":"  "`, 1),
	}
	for _, b := range bodies {
		f := &fakeBookings{}
		rec := httptest.NewRecorder()
		newHandler(f).Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/public/book", strings.NewReader(b)))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", b, rec.Code)
		}
		if f.gotBook.EstablishmentID != "" {
			t.Fatalf("service must not be called for %s", b)
		}
	}
}

func TestCancelHandler(t *testing.T) {
	at := time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)
	f := &fakeBookings{cancelled: booking.Cancellation{AppointmentID: "apt-1", CancelledAt: at}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/cancel", strings.NewReader(`{"appointment_id":"apt-1","reason":"sick"}`))
	req.Header.Set(establishmentHeader, "est-1")
	rec := httptest.NewRecorder()
	newHandler(f).Cancel(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if f.gotCancel.EstablishmentID != "est-1" || f.gotCancel.Reason != "sick" {
		t.Fatalf("unexpected request %+v", f.gotCancel)
	}
	if !strings.Contains(rec.Body.String(), `"cancelled_at":"2025-03-09T12:00:00Z"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	f.err = booking.ErrNotFound
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/appointments/cancel", strings.NewReader(`{"establishment_id":"est-1","appointment_id":"nope"}`))
	newHandler(f).Cancel(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListHandler(t *testing.T) {
	f := &fakeBookings{appts: []model.Appointment{{
		ID: "apt-1", ProfessionalID: "p1", Date: civil.Date{Year: 2025, Month: 3, Day: 10}, StartMinute: 630,
		DurationMinutes: 30, Status: model.StatusPending, CreatedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments?date=2025-03-10&limit=10", nil)
	req.Header.Set(establishmentHeader, "est-1")
	rec := httptest.NewRecorder()
	newHandler(f).List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if f.gotLimit != 10 || f.gotDate == nil || f.gotDate.Day != 10 {
		t.Fatalf("unexpected args date=%v limit=%d", f.gotDate, f.gotLimit)
	}
	if !strings.Contains(rec.Body.String(), `"time":"10:30"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	for _, target := range []string{"/api/v1/appointments", "/api/v1/appointments?establishment_id=e&limit=0", "/api/v1/appointments?establishment_id=e&date=x"} {
		rec = httptest.NewRecorder()
		newHandler(f).List(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rec.Code)
		}
	}
}
