package db

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestErrorClassification(t *testing.T) {
	exclusion := fmt.Errorf("insert appointment: %w", &pgconn.PgError{Code: "23P01"})
	if !IsExclusionViolation(exclusion) {
		t.Fatalf("expected wrapped 23P01 to be an exclusion violation")
	}
	if IsUniqueViolation(exclusion) {
		t.Fatalf("23P01 is not a unique violation")
	}

	unique := &pgconn.PgError{Code: "23505"}
	if !IsUniqueViolation(unique) {
		t.Fatalf("expected 23505 to be a unique violation")
	}

	if !IsNotFound(fmt.Errorf("load: %w", pgx.ErrNoRows)) {
		t.Fatalf("expected wrapped ErrNoRows to be not found")
	}
	if IsNotFound(nil) || IsExclusionViolation(nil) {
		t.Fatalf("nil error must not classify")
	}
}
