package domain

import "fmt"

// TimeOfDay is a wall-clock time without a date, as stored in TIME columns.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// String renders HH:MM:SS.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// Microseconds returns the offset from midnight in microseconds.
func (t TimeOfDay) Microseconds() int64 {
	return (int64(t.Hour)*3600 + int64(t.Minute)*60 + int64(t.Second)) * 1_000_000
}

// TimeOfDayFromMicroseconds is the inverse of Microseconds.
func TimeOfDayFromMicroseconds(us int64) TimeOfDay {
	seconds := us / 1_000_000
	return TimeOfDay{
		Hour:   int(seconds / 3600),
		Minute: int(seconds % 3600 / 60),
		Second: int(seconds % 60),
	}
}

// MarshalText renders the value for JSON and spreadsheets.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}
