// Package cesspool aggregates binary level probes into a single fill level.
package cesspool

import (
	"fmt"
	"math"
	"strings"
)

// Level tracks one reading per probe. A probe is unknown until observed.
type Level struct {
	probes []*bool
}

// New returns a Level with n unknown probes.
func New(n int) *Level {
	l := &Level{}
	l.Resize(n)
	return l
}

// Len returns the number of probes.
func (l *Level) Len() int {
	return len(l.probes)
}

// Resize grows the probe list to n. It never shrinks.
func (l *Level) Resize(n int) {
	for len(l.probes) < n {
		l.probes = append(l.probes, nil)
	}
}

// Set records the reading of the probe at the 0-based index.
func (l *Level) Set(index int, on bool) error {
	if index < 0 || index >= len(l.probes) {
		return fmt.Errorf("cesspool probe index %d out of range [0,%d)", index, len(l.probes))
	}
	v := on
	l.probes[index] = &v
	return nil
}

// Complete reports whether every probe has been observed.
func (l *Level) Complete() bool {
	if len(l.probes) == 0 {
		return false
	}
	for _, p := range l.probes {
		if p == nil {
			return false
		}
	}
	return true
}

// OccupiedCount returns how many probes report liquid.
func (l *Level) OccupiedCount() int {
	n := 0
	for _, p := range l.probes {
		if p != nil && *p {
			n++
		}
	}
	return n
}

// Percentage returns the rounded share of occupied probes.
func (l *Level) Percentage() int {
	if len(l.probes) == 0 {
		return 0
	}
	return int(math.Round(float64(l.OccupiedCount()) / float64(len(l.probes)) * 100))
}

// String renders the probes as e.g. "[1 1 0 ?]".
func (l *Level) String() string {
	parts := make([]string, len(l.probes))
	for i, p := range l.probes {
		switch {
		case p == nil:
			parts[i] = "?"
		case *p:
			parts[i] = "1"
		default:
			parts[i] = "0"
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}
