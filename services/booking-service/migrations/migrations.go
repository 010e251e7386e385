// Package migrations embeds the booking-service schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Table is the golang-migrate history table of this service.
const Table = "booking_schema_migrations"
