package models

import (
	"fmt"
	"math"
	"time"
)

// Interval is the [Begin, End) time range one pipeline invocation covers
type Interval struct {
	Begin time.Time
	End   time.Time
}

// IsZero reports whether the interval is unset
func (iv Interval) IsZero() bool {
	return iv.Begin.IsZero() && iv.End.IsZero()
}

// Duration returns End - Begin
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Begin)
}

// Pad widens the interval by d on both sides. Used for source-data fetch so
// edge windows of an output grid have enough context.
func (iv Interval) Pad(d time.Duration) Interval {
	return Interval{Begin: iv.Begin.Add(-d), End: iv.End.Add(d)}
}

// Contains reports whether t falls inside [Begin, End)
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Begin) && t.Before(iv.End)
}

// String formats the interval for log output
func (iv Interval) String() string {
	return fmt.Sprintf("[%s, %s)", iv.Begin.UTC().Format(time.RFC3339), iv.End.UTC().Format(time.RFC3339))
}

// TimeToEpoch converts a time to float seconds since the Unix epoch,
// keeping millisecond resolution.
func TimeToEpoch(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000.0
}

// EpochToTime converts float epoch seconds back to a UTC time
func EpochToTime(sec float64) time.Time {
	return time.UnixMilli(int64(math.Round(sec * 1000.0))).UTC()
}
