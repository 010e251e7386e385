package storage

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/civil"
	"github.com/agendafacil/agendafacil/libs/db"
	"github.com/agendafacil/agendafacil/services/booking-service/internal/model"
	"github.com/jackc/pgx/v5"
)

type BookingRepository struct {
	pool db.DBTX
}

type IdempotencyRecord struct {
	EstablishmentID string
	IdempotencyKey  string
	// AppointmentID is set once a request holding the key has committed.
	AppointmentID string
}

func NewBookingRepository(pool db.DBTX) *BookingRepository {
	return &BookingRepository{pool: pool}
}

const appointmentColumns = `id::text, establishment_id, professional_id, service_id, service_name, client_id, client_name,
			appointment_date, start_minute, duration_minutes, price_cents, payment_method, status,
			cancelled_at, COALESCE(cancellation_reason, ''), created_at`

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// LockIdempotencyKey claims key for the rest of tx, creating it when missing. A concurrent holder
// of the same key is waited for, so the returned record already carries its appointment when it
// committed first.
func (r *BookingRepository) LockIdempotencyKey(ctx context.Context, tx pgx.Tx, establishmentID, key string) (IdempotencyRecord, error) {
	rec, err := r.selectIdempotencyForUpdate(ctx, tx, establishmentID, key)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (establishment_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (establishment_id, idempotency_key) DO NOTHING
	`, establishmentID, key)
	if err != nil {
		return IdempotencyRecord{}, err
	}

	return r.selectIdempotencyForUpdate(ctx, tx, establishmentID, key)
}

func (r *BookingRepository) FinalizeIdempotency(ctx context.Context, tx pgx.Tx, establishmentID, key, appointmentID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET appointment_id = $3,
			updated_at = now()
		WHERE establishment_id = $1 AND idempotency_key = $2
	`, establishmentID, key, appointmentID)
	return err
}

// LockProfessionalDay serialises writers of one professional's day until tx ends.
func (r *BookingRepository) LockProfessionalDay(ctx context.Context, tx pgx.Tx, establishmentID, professionalID string, date civil.Date) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`,
		professionalDayKey(establishmentID, professionalID, date))
	return err
}

func professionalDayKey(establishmentID, professionalID string, date civil.Date) string {
	return establishmentID + "|" + professionalID + "|" + date.String()
}

// ListForDay returns the non-cancelled appointments of one professional on one date, by start.
func (r *BookingRepository) ListForDay(ctx context.Context, q db.Querier, establishmentID, professionalID string, date civil.Date) ([]model.Appointment, error) {
	if q == nil {
		q = r.pool
	}
	rows, err := q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE establishment_id = $1
			AND professional_id = $2
			AND appointment_date = $3::date
			AND status <> 'cancelled'
		ORDER BY start_minute ASC
	`, establishmentID, professionalID, date.String())
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *BookingRepository) Create(ctx context.Context, tx pgx.Tx, appt *model.Appointment) error {
	return tx.QueryRow(ctx, `
		INSERT INTO appointments
			(establishment_id, professional_id, service_id, service_name, client_id, client_name,
			 appointment_date, start_minute, duration_minutes, price_cents, payment_method, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7::date, $8, $9, $10, $11, $12)
		RETURNING id::text, created_at
	`, appt.EstablishmentID, appt.ProfessionalID, appt.ServiceID, appt.ServiceName, appt.ClientID, appt.ClientName,
		appt.Date.String(), appt.StartMinute, appt.DurationMinutes, appt.PriceCents, appt.PaymentMethod, appt.Status,
	).Scan(&appt.ID, &appt.CreatedAt)
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, establishmentID, appointmentID string) (model.Appointment, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND establishment_id = $2
		FOR UPDATE
	`, appointmentID, establishmentID)
	return scanAppointment(row)
}

func (r *BookingRepository) Cancel(ctx context.Context, tx pgx.Tx, establishmentID, appointmentID, reason string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
			cancelled_at = now(),
			cancellation_reason = NULLIF($3, '')
		WHERE id = $1 AND establishment_id = $2
		RETURNING cancelled_at
	`, appointmentID, establishmentID, reason).Scan(&cancelledAt)
	return cancelledAt, err
}

// ListByEstablishment lists appointments newest first, optionally restricted to one date.
func (r *BookingRepository) ListByEstablishment(ctx context.Context, establishmentID string, date *civil.Date, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	var day *string
	if date != nil {
		s := date.String()
		day = &s
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE establishment_id = $1
			AND ($2::date IS NULL OR appointment_date = $2::date)
		ORDER BY appointment_date DESC, start_minute DESC
		LIMIT $3
	`, establishmentID, day, limit)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func IsConflict(err error) bool {
	return db.IsExclusionViolation(err)
}

func IsNotFound(err error) bool {
	return db.IsNotFound(err)
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	var day time.Time
	var cancelledAt *time.Time
	err := row.Scan(
		&appt.ID,
		&appt.EstablishmentID,
		&appt.ProfessionalID,
		&appt.ServiceID,
		&appt.ServiceName,
		&appt.ClientID,
		&appt.ClientName,
		&day,
		&appt.StartMinute,
		&appt.DurationMinutes,
		&appt.PriceCents,
		&appt.PaymentMethod,
		&appt.Status,
		&cancelledAt,
		&appt.CancelReason,
		&appt.CreatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.Date = civil.DateOf(day)
	appt.CancelledAt = cancelledAt
	return appt, nil
}

func (r *BookingRepository) selectIdempotencyForUpdate(ctx context.Context, tx pgx.Tx, establishmentID, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	err := tx.QueryRow(ctx, `
		SELECT establishment_id, idempotency_key, COALESCE(appointment_id::text, '')
		FROM booking_idempotency_keys
		WHERE establishment_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, establishmentID, key).Scan(&rec.EstablishmentID, &rec.IdempotencyKey, &rec.AppointmentID)
	return rec, err
}
