package booking

import (
	"errors"

	"github.com/agendafacil/agendafacil/services/booking-service/internal/availability"
)

var (
	// ErrBookingConflict means another booking took the time between the client's read and this write.
	ErrBookingConflict = errors.New("this time was just taken, please pick another")
	ErrNotACandidate   = errors.New("requested time is not an offered slot")
	ErrClosed          = errors.New("establishment is closed on this date")
	ErrPastDate        = errors.New("requested time is in the past")
	ErrInvalidSchedule = errors.New("establishment schedule is invalid")
	ErrNotFound        = errors.New("appointment not found")
	ErrNotCancellable  = errors.New("appointment can no longer be cancelled")
)

// UnavailableError reports a slot that can never be booked for this service, regardless of
// other appointments (it runs past a window end or starts in the break).
type UnavailableError struct {
	Reason availability.Reason
}

func (e *UnavailableError) Error() string {
	return "slot unavailable: " + string(e.Reason)
}
