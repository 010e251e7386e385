// Package hours models an establishment's weekly opening hours: up to two periods per day
// (morning and afternoon) written as "HH:MM".
package hours

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agendafacil/agendafacil/libs/clock"
)

var (
	ErrUnknownDay     = errors.New("unknown weekday")
	ErrMissingPeriod  = errors.New("an open day needs open1 and close1")
	ErrPartialPeriod  = errors.New("open2 and close2 must be given together")
	ErrEmptyPeriod    = errors.New("period must close after it opens")
	ErrPeriodsOverlap = errors.New("second period must start after the first closes")
)

var dayNames = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// Day is one weekday in its HTTP form.
type Day struct {
	Enabled bool   `json:"enabled"`
	Open1   string `json:"open1"`
	Close1  string `json:"close1"`
	Open2   string `json:"open2"`
	Close2  string `json:"close2"`
}

// Period is an opening period in minutes after midnight, half-open.
type Period struct {
	Open  int
	Close int
}

// Weekly is indexed by time.Weekday. Days missing from the JSON form are closed.
type Weekly [7]Day

func (w Weekly) MarshalJSON() ([]byte, error) {
	out := make(map[string]Day, len(dayNames))
	for i, name := range dayNames {
		out[name] = w[i]
	}
	return json.Marshal(out)
}

func (w *Weekly) UnmarshalJSON(data []byte) error {
	var in map[string]Day
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	var out Weekly
	for name, d := range in {
		wd, ok := ParseWeekday(name)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownDay, name)
		}
		out[wd] = d
	}
	*w = out
	return nil
}

// ParseWeekday maps an English day name to its time.Weekday.
func ParseWeekday(name string) (time.Weekday, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range dayNames {
		if n == name {
			return time.Weekday(i), true
		}
	}
	return 0, false
}

// Periods parses an enabled day. A closed day has none.
func (d Day) Periods() ([]Period, error) {
	if !d.Enabled {
		return nil, nil
	}
	if strings.TrimSpace(d.Open1) == "" || strings.TrimSpace(d.Close1) == "" {
		return nil, ErrMissingPeriod
	}
	first, err := parsePeriod(d.Open1, d.Close1)
	if err != nil {
		return nil, err
	}
	open2, close2 := strings.TrimSpace(d.Open2), strings.TrimSpace(d.Close2)
	if open2 == "" && close2 == "" {
		return []Period{first}, nil
	}
	if open2 == "" || close2 == "" {
		return nil, ErrPartialPeriod
	}
	second, err := parsePeriod(open2, close2)
	if err != nil {
		return nil, err
	}
	if second.Open < first.Close {
		return nil, fmt.Errorf("%w: %s < %s", ErrPeriodsOverlap, open2, d.Close1)
	}
	return []Period{first, second}, nil
}

func parsePeriod(from, to string) (Period, error) {
	o, err := clock.Parse(from)
	if err != nil {
		return Period{}, err
	}
	c, err := clock.Parse(to)
	if err != nil {
		return Period{}, err
	}
	if o >= c {
		return Period{}, fmt.Errorf("%w: %s-%s", ErrEmptyPeriod, from, to)
	}
	return Period{Open: o, Close: c}, nil
}

// DayFromPeriods renders stored periods back into the HTTP form.
func DayFromPeriods(enabled bool, periods []Period) Day {
	d := Day{Enabled: enabled}
	if len(periods) > 0 {
		d.Open1, d.Close1 = clock.Format(periods[0].Open), clock.Format(periods[0].Close)
	}
	if len(periods) > 1 {
		d.Open2, d.Close2 = clock.Format(periods[1].Open), clock.Format(periods[1].Close)
	}
	return d
}

// Validate reports the first invalid day, prefixed with its name.
func (w Weekly) Validate() error {
	for i, d := range w {
		if _, err := d.Periods(); err != nil {
			return fmt.Errorf("%s: %w", dayNames[i], err)
		}
	}
	return nil
}

// WindowsFor returns the opening periods of a weekday, nil when closed or invalid.
func (w Weekly) WindowsFor(wd time.Weekday) []Period {
	if wd < time.Sunday || wd > time.Saturday {
		return nil
	}
	periods, err := w[wd].Periods()
	if err != nil {
		return nil
	}
	return periods
}
