// Package availability decides which start times of a day can be booked for one professional.
//
// Times are minutes since local midnight. The package is pure: no I/O, no clock, no logging.
package availability

import (
	"cloud.google.com/go/civil"
)

// SlotStep is the spacing between candidate start times, in minutes.
const SlotStep = 15

// Reason explains why a candidate slot cannot be booked.
type Reason string

const (
	// ReasonOverlap marks a slot that intersects an existing appointment.
	ReasonOverlap Reason = "overlaps-existing-appointment"
	// ReasonExceedsWindow marks a slot whose service would end after its own window closes.
	ReasonExceedsWindow Reason = "exceeds-operating-window"
	// ReasonBreak marks a slot starting in the gap between a day's two windows.
	ReasonBreak Reason = "falls-in-break-interval"
)

// Window is one opening period of a day, [StartMinute, EndMinute].
type Window struct {
	StartMinute int
	EndMinute   int
}

// Appointment is an already booked service occupying [StartMinute, EndMinute()).
type Appointment struct {
	Date            civil.Date
	StartMinute     int
	DurationMinutes int
	ProfessionalID  string
	Cancelled       bool
}

// EndMinute is the exclusive end of the appointment.
func (a Appointment) EndMinute() int {
	return a.StartMinute + a.DurationMinutes
}

// Request describes the day being queried. Windows are ordered and non-overlapping; an empty
// list means the establishment is closed.
type Request struct {
	Date            civil.Date
	ProfessionalID  string
	DurationMinutes int
	Windows         []Window
}

// Slot is one candidate start time and whether it can be booked.
type Slot struct {
	StartMinute int
	Available   bool
	// Reason is empty when Available is true.
	Reason Reason
}

// ComputeSlots returns one slot per candidate start, in window order then chronologically.
// Candidates run from each window's start in SlotStep increments up to and including its end.
// Appointments for other dates, other professionals or cancelled ones are ignored.
func ComputeSlots(req Request, appointments []Appointment) []Slot {
	busy := relevant(req, appointments)

	n := 0
	for _, w := range req.Windows {
		if w.EndMinute >= w.StartMinute {
			n += (w.EndMinute-w.StartMinute)/SlotStep + 1
		}
	}

	slots := make([]Slot, 0, n)
	for i, w := range req.Windows {
		for start := w.StartMinute; start <= w.EndMinute; start += SlotStep {
			slots = append(slots, decide(req, i, start, busy))
		}
	}
	return slots
}

// Evaluate returns the decision for a single start time. ok is false when startMinute is not a
// candidate of any window. If two touching windows both generate startMinute, an available
// decision is preferred.
func Evaluate(req Request, appointments []Appointment, startMinute int) (slot Slot, ok bool) {
	busy := relevant(req, appointments)
	for i, w := range req.Windows {
		if startMinute < w.StartMinute || startMinute > w.EndMinute || (startMinute-w.StartMinute)%SlotStep != 0 {
			continue
		}
		s := decide(req, i, startMinute, busy)
		if s.Available {
			return s, true
		}
		if !ok {
			slot, ok = s, true
		}
	}
	return slot, ok
}

// DropBefore returns the slots starting at or after minute, preserving order.
func DropBefore(slots []Slot, minute int) []Slot {
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		if s.StartMinute >= minute {
			out = append(out, s)
		}
	}
	return out
}

func relevant(req Request, appointments []Appointment) []Appointment {
	var busy []Appointment
	for _, a := range appointments {
		if a.Cancelled || a.ProfessionalID != req.ProfessionalID || a.Date != req.Date {
			continue
		}
		busy = append(busy, a)
	}
	return busy
}

// decide applies the checks in priority order: overlap, break, then the slot's own window end.
// The break check runs before the window check so a start inside the gap reports the break even
// though it also lies past the first window's end.
func decide(req Request, window, start int, busy []Appointment) Slot {
	end := start + req.DurationMinutes

	for _, a := range busy {
		if overlaps(start, end, a.StartMinute, a.EndMinute()) {
			return Slot{StartMinute: start, Reason: ReasonOverlap}
		}
	}
	if inBreak(req.Windows, start) {
		return Slot{StartMinute: start, Reason: ReasonBreak}
	}
	if end > req.Windows[window].EndMinute {
		return Slot{StartMinute: start, Reason: ReasonExceedsWindow}
	}
	return Slot{StartMinute: start, Available: true}
}

// overlaps reports whether [aStart,aEnd) and [bStart,bEnd) share a minute. Touching is allowed.
func overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && aEnd > bStart
}

// inBreak is only defined for a day with exactly two windows separated by a gap.
func inBreak(windows []Window, start int) bool {
	if len(windows) != 2 {
		return false
	}
	first, second := windows[0], windows[1]
	if first.EndMinute >= second.StartMinute {
		return false
	}
	return start >= first.EndMinute && start < second.StartMinute
}
