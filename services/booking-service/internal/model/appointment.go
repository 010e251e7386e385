package model

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/agendafacil/agendafacil/services/booking-service/internal/availability"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// PaymentMethods are the values accepted for Appointment.PaymentMethod.
var PaymentMethods = []string{"pix", "credito", "debito", "dinheiro", "pagar_local"}

type Appointment struct {
	ID              string
	EstablishmentID string
	ProfessionalID  string
	ServiceID       string
	ServiceName     string
	ClientID        string
	ClientName      string
	Date            civil.Date
	StartMinute     int
	DurationMinutes int
	PriceCents      int64
	PaymentMethod   string
	Status          string
	CancelledAt     *time.Time
	CancelReason    string
	CreatedAt       time.Time
}

func (a Appointment) Cancelled() bool {
	return a.Status == StatusCancelled
}

// Busy converts a stored appointment into the engine's view of it.
func (a Appointment) Busy() availability.Appointment {
	return availability.Appointment{
		Date:            a.Date,
		StartMinute:     a.StartMinute,
		DurationMinutes: a.DurationMinutes,
		ProfessionalID:  a.ProfessionalID,
		Cancelled:       a.Cancelled(),
	}
}

func BusyIntervals(appts []Appointment) []availability.Appointment {
	out := make([]availability.Appointment, 0, len(appts))
	for _, a := range appts {
		out = append(out, a.Busy())
	}
	return out
}
