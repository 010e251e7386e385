package clock

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"00:00", 0, true},
		{"09:00", 540, true},
		{"11:45", 705, true},
		{" 18:00 ", 1080, true},
		{"23:59", 1439, true},
		{"24:00", MinutesPerDay, true},
		{"24:01", 0, false},
		{"9:00", 0, false},
		{"09:60", 0, false},
		{"-1:00", 0, false},
		{"0900", 0, false},
		{"ab:cd", 0, false},
		{"+9:00", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Fatalf("Parse(%q) = %d, %v; want %d", tc.in, got, err, tc.want)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidTime) {
			t.Fatalf("Parse(%q) error = %v; want ErrInvalidTime", tc.in, err)
		}
	}
}

func TestFormat(t *testing.T) {
	for minute, want := range map[int]string{0: "00:00", 540: "09:00", 705: "11:45", 1440: "24:00"} {
		if got := Format(minute); got != want {
			t.Fatalf("Format(%d) = %q; want %q", minute, got, want)
		}
		back, err := Parse(want)
		if err != nil || back != minute {
			t.Fatalf("Parse(Format(%d)) = %d, %v", minute, back, err)
		}
	}
}
