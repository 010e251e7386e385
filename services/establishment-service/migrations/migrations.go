// Package migrations embeds the establishment-service schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Table is the golang-migrate history table of this service.
const Table = "establishment_schema_migrations"
