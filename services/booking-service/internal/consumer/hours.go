package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

const EventHoursUpdated = "establishment.hours.updated.v1"

type hoursUpdatedPayload struct {
	EstablishmentID string `json:"establishment_id"`
}

// Invalidator drops cached schedules of one establishment.
type Invalidator interface {
	Invalidate(ctx context.Context, establishmentID string) error
}

// HoursUpdatedHandler invalidates cached schedules when an establishment changes its hours.
func HoursUpdatedHandler(cache Invalidator, logger *slog.Logger) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var p hoursUpdatedPayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			return fmt.Errorf("decode %s: %w", EventHoursUpdated, err)
		}
		if p.EstablishmentID == "" {
			p.EstablishmentID = string(msg.Key)
		}
		if p.EstablishmentID == "" {
			return errors.New("hours update without establishment id")
		}
		if err := cache.Invalidate(ctx, p.EstablishmentID); err != nil {
			return fmt.Errorf("invalidate schedule cache: %w", err)
		}
		logger.InfoContext(ctx, "schedule cache invalidated", "establishment_id", p.EstablishmentID)
		return nil
	}
}
