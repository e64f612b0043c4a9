package cefr

import (
	"fmt"
	"strings"
)

// Level is a CEFR proficiency level. The numeric value doubles as the scoring weight.
type Level int

const (
	A1 Level = iota + 1
	A2
	B1
	B2
	C1
	C2
)

var names = [...]string{"", "A1", "A2", "B1", "B2", "C1", "C2"}

var descriptions = [...]string{"", "Beginner", "Elementary", "Intermediate", "Upper Intermediate", "Advanced", "Mastery"}

// All returns the levels in ascending order.
func All() []Level { return []Level{A1, A2, B1, B2, C1, C2} }

func (l Level) Valid() bool { return l >= A1 && l <= C2 }

// Weight is the scoring weight, 1 for A1 through 6 for C2.
func (l Level) Weight() int {
	if !l.Valid() {
		return int(A1)
	}
	return int(l)
}

func (l Level) String() string {
	if !l.Valid() {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return names[l]
}

func (l Level) Description() string {
	if !l.Valid() {
		return ""
	}
	return descriptions[l]
}

// Parse matches a level name case-insensitively. Anything unrecognized
// degrades to A1 so a single bad tag never aborts an import.
func Parse(s string) Level {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, l := range All() {
		if names[l] == s {
			return l
		}
	}
	return A1
}

func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		l = A1
	}
	return []byte(names[l]), nil
}

func (l *Level) UnmarshalText(b []byte) error {
	*l = Parse(string(b))
	return nil
}

// FromPercentage bands a weighted score percentage into the level it demonstrates.
func FromPercentage(pct float64) Level {
	switch {
	case pct < 40:
		return A1
	case pct < 60:
		return A2
	case pct < 75:
		return B1
	case pct < 90:
		return B2
	case pct < 97:
		return C1
	default:
		return C2
	}
}
