package booking

import "time"

const (
	EventAppointmentBooked    = "booking.appointment.booked.v1"
	EventAppointmentCancelled = "booking.appointment.cancelled.v1"

	aggregateAppointment = "appointment"
)

type appointmentBookedPayload struct {
	AppointmentID   string    `json:"appointment_id"`
	EstablishmentID string    `json:"establishment_id"`
	ProfessionalID  string    `json:"professional_id"`
	ServiceID       string    `json:"service_id"`
	ServiceName     string    `json:"service_name"`
	ClientID        string    `json:"client_id"`
	ClientName      string    `json:"client_name"`
	Date            string    `json:"date"`
	StartTime       string    `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	PriceCents      int64     `json:"price_cents"`
	PaymentMethod   string    `json:"payment_method"`
	Status          string    `json:"status"`
	BookedAt        time.Time `json:"booked_at"`
}

type appointmentCancelledPayload struct {
	AppointmentID   string    `json:"appointment_id"`
	EstablishmentID string    `json:"establishment_id"`
	ProfessionalID  string    `json:"professional_id"`
	ClientID        string    `json:"client_id"`
	Date            string    `json:"date"`
	StartTime       string    `json:"start_time"`
	Reason          string    `json:"reason,omitempty"`
	CancelledAt     time.Time `json:"cancelled_at"`
}
