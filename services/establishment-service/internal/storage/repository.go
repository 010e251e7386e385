package storage

import (
	"context"
	"errors"
	"time"

	"github.com/agendafacil/agendafacil/libs/db"
	"github.com/agendafacil/agendafacil/services/establishment-service/internal/hours"
	"github.com/jackc/pgx/v5"
)

// DefaultTimezone applies to establishments that never saved settings.
const DefaultTimezone = "America/Sao_Paulo"

var ErrInvalidTimezone = errors.New("unknown IANA time zone")

type Repository struct {
	pool db.DBTX
}

func NewRepository(pool db.DBTX) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

type Settings struct {
	EstablishmentID string
	Timezone        string
	UpdatedAt       time.Time
}

func (r *Repository) GetOrCreateSettings(ctx context.Context, establishmentID string) (Settings, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO establishment_settings (establishment_id, timezone)
		VALUES ($1, $2)
		ON CONFLICT (establishment_id) DO NOTHING
	`, establishmentID, DefaultTimezone)
	if err != nil {
		return Settings{}, err
	}

	var s Settings
	err = r.pool.QueryRow(ctx, `
		SELECT establishment_id, timezone, updated_at
		FROM establishment_settings
		WHERE establishment_id = $1
	`, establishmentID).Scan(&s.EstablishmentID, &s.Timezone, &s.UpdatedAt)
	return s, err
}

// GetSettings reads settings without creating them. Establishments with no row get DefaultTimezone.
func (r *Repository) GetSettings(ctx context.Context, establishmentID string) (Settings, error) {
	var s Settings
	err := r.pool.QueryRow(ctx, `
		SELECT establishment_id, timezone, updated_at
		FROM establishment_settings
		WHERE establishment_id = $1
	`, establishmentID).Scan(&s.EstablishmentID, &s.Timezone, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Settings{EstablishmentID: establishmentID, Timezone: DefaultTimezone}, nil
	}
	return s, err
}

func (r *Repository) UpdateSettings(ctx context.Context, establishmentID, timezone string) error {
	if _, err := time.LoadLocation(timezone); err != nil || timezone == "" {
		return ErrInvalidTimezone
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO establishment_settings (establishment_id, timezone)
		VALUES ($1, $2)
		ON CONFLICT (establishment_id) DO UPDATE
		SET timezone = EXCLUDED.timezone,
			updated_at = now()
	`, establishmentID, timezone)
	return err
}

// GetWeekly loads the stored week. Days without a row are closed.
func (r *Repository) GetWeekly(ctx context.Context, establishmentID string) (hours.Weekly, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT weekday, enabled, open1, close1, open2, close2
		FROM business_hours
		WHERE establishment_id = $1
		ORDER BY weekday
	`, establishmentID)
	if err != nil {
		return hours.Weekly{}, err
	}
	defer rows.Close()

	var w hours.Weekly
	for rows.Next() {
		var (
			weekday                      int
			enabled                      bool
			open1, close1, open2, close2 *int
		)
		if err := rows.Scan(&weekday, &enabled, &open1, &close1, &open2, &close2); err != nil {
			return hours.Weekly{}, err
		}
		if weekday < 0 || weekday > 6 {
			continue
		}
		var periods []hours.Period
		if open1 != nil && close1 != nil {
			periods = append(periods, hours.Period{Open: *open1, Close: *close1})
			if open2 != nil && close2 != nil {
				periods = append(periods, hours.Period{Open: *open2, Close: *close2})
			}
		}
		w[weekday] = hours.DayFromPeriods(enabled, periods)
	}
	if rows.Err() != nil {
		return hours.Weekly{}, rows.Err()
	}
	return w, nil
}

// ReplaceWeekly rewrites all seven days inside tx. The week must already be valid.
func (r *Repository) ReplaceWeekly(ctx context.Context, tx pgx.Tx, establishmentID string, w hours.Weekly) error {
	if _, err := tx.Exec(ctx, `DELETE FROM business_hours WHERE establishment_id = $1`, establishmentID); err != nil {
		return err
	}
	for wd, d := range w {
		periods, err := d.Periods()
		if err != nil {
			return err
		}
		var open1, close1, open2, close2 *int
		if len(periods) > 0 {
			open1, close1 = &periods[0].Open, &periods[0].Close
		}
		if len(periods) > 1 {
			open2, close2 = &periods[1].Open, &periods[1].Close
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO business_hours (establishment_id, weekday, enabled, open1, close1, open2, close2)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, establishmentID, wd, d.Enabled, open1, close1, open2, close2)
		if err != nil {
			return err
		}
	}
	return nil
}

type Service struct {
	ID              string
	EstablishmentID string
	Name            string
	DurationMinutes int
	PriceCents      int64
	CreatedAt       time.Time
}

func (r *Repository) CreateService(ctx context.Context, establishmentID, name string, durationMinutes int, priceCents int64) (Service, error) {
	s := Service{
		EstablishmentID: establishmentID,
		Name:            name,
		DurationMinutes: durationMinutes,
		PriceCents:      priceCents,
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO establishment_services (establishment_id, name, duration_minutes, price_cents)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text, created_at
	`, establishmentID, name, durationMinutes, priceCents).Scan(&s.ID, &s.CreatedAt)
	return s, err
}

func (r *Repository) ListServices(ctx context.Context, establishmentID string, limit int) ([]Service, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, establishment_id, name, duration_minutes, price_cents, created_at
		FROM establishment_services
		WHERE establishment_id = $1
		ORDER BY name
		LIMIT $2
	`, establishmentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Service{}
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.EstablishmentID, &s.Name, &s.DurationMinutes, &s.PriceCents, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// GetService returns pgx.ErrNoRows (see db.IsNotFound) for unknown or foreign services.
func (r *Repository) GetService(ctx context.Context, establishmentID, serviceID string) (Service, error) {
	var s Service
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, establishment_id, name, duration_minutes, price_cents, created_at
		FROM establishment_services
		WHERE establishment_id = $1 AND id::text = $2
	`, establishmentID, serviceID).Scan(&s.ID, &s.EstablishmentID, &s.Name, &s.DurationMinutes, &s.PriceCents, &s.CreatedAt)
	return s, err
}
