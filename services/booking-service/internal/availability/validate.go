package availability

import (
	"errors"
	"fmt"

	"github.com/agendafacil/agendafacil/libs/clock"
)

var (
	ErrInvalidDuration    = errors.New("service duration must be positive")
	ErrInvalidWindow      = errors.New("operating window must satisfy 0 <= start < end <= 1440")
	ErrOverlappingWindows = errors.New("operating windows must be ordered and must not overlap")
	ErrTooManyWindows     = errors.New("a day has at most two operating windows")
)

// MaxWindows is the number of opening periods a day can have (morning and afternoon).
const MaxWindows = 2

// Validate checks the preconditions ComputeSlots relies on. Callers run it where configuration
// enters the service; the engine itself trusts its input.
func Validate(req Request) error {
	if req.DurationMinutes <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidDuration, req.DurationMinutes)
	}
	if len(req.Windows) > MaxWindows {
		return fmt.Errorf("%w: got %d", ErrTooManyWindows, len(req.Windows))
	}
	for i, w := range req.Windows {
		if w.StartMinute < 0 || w.EndMinute > clock.MinutesPerDay || w.StartMinute >= w.EndMinute {
			return fmt.Errorf("%w: window %d is %s-%s", ErrInvalidWindow, i, clock.Format(w.StartMinute), clock.Format(w.EndMinute))
		}
		if i > 0 && w.StartMinute < req.Windows[i-1].EndMinute {
			return fmt.Errorf("%w: window %d starts at %s", ErrOverlappingWindows, i, clock.Format(w.StartMinute))
		}
	}
	return nil
}
