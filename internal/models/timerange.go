package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RangeKind tags the TimeRange union
type RangeKind string

const (
	RangeRelative RangeKind = "relative"
	RangeAbsolute RangeKind = "absolute"
)

// TimeUnit is the unit of a relative range
type TimeUnit string

const (
	UnitMinute TimeUnit = "m"
	UnitHour   TimeUnit = "h"
	UnitDay    TimeUnit = "d"
	UnitWeek   TimeUnit = "w"
)

var unitDurations = map[TimeUnit]time.Duration{
	UnitMinute: time.Minute,
	UnitHour:   time.Hour,
	UnitDay:    24 * time.Hour,
	UnitWeek:   7 * 24 * time.Hour,
}

// MaxRelativeSpan bounds "last N units" so the span fits a time.Duration
const MaxRelativeSpan = 100 * 365 * 24 * time.Hour

// TimeRange is either Relative(amount, unit) or Absolute(start, end).
// Only the fields of the active kind are set, so == is structural equality.
type TimeRange struct {
	Kind        RangeKind `json:"kind" bson:"kind"`
	Amount      int       `json:"amount,omitempty" bson:"amount,omitempty"`
	Unit        TimeUnit  `json:"unit,omitempty" bson:"unit,omitempty"`
	StartMicros int64     `json:"start_micros,omitempty" bson:"start_micros,omitempty"`
	EndMicros   int64     `json:"end_micros,omitempty" bson:"end_micros,omitempty"`
}

// Relative builds a "last <amount> <unit>" range
func Relative(amount int, unit TimeUnit) TimeRange {
	return TimeRange{Kind: RangeRelative, Amount: amount, Unit: unit}
}

// Absolute builds a fixed range in unix microseconds
func Absolute(startMicros, endMicros int64) TimeRange {
	return TimeRange{Kind: RangeAbsolute, StartMicros: startMicros, EndMicros: endMicros}
}

// Validate rejects malformed ranges
func (r TimeRange) Validate() error {
	switch r.Kind {
	case RangeRelative:
		if _, ok := unitDurations[r.Unit]; !ok {
			return NewError(KindInvalidRange, "unknown time unit %q", r.Unit)
		}
		if r.Amount <= 0 {
			return NewError(KindInvalidRange, "relative amount must be positive, got %d", r.Amount)
		}
		if int64(r.Amount) > int64(MaxRelativeSpan/unitDurations[r.Unit]) {
			return NewError(KindInvalidRange, "relative range %d%s exceeds %s", r.Amount, r.Unit, MaxRelativeSpan)
		}
		if r.StartMicros != 0 || r.EndMicros != 0 {
			return NewError(KindInvalidRange, "relative range carries absolute bounds")
		}
	case RangeAbsolute:
		if r.StartMicros >= r.EndMicros {
			return NewError(KindInvalidRange, "absolute range start %d is not before end %d", r.StartMicros, r.EndMicros)
		}
		if r.Amount != 0 || r.Unit != "" {
			return NewError(KindInvalidRange, "absolute range carries relative fields")
		}
	default:
		return NewError(KindInvalidRange, "unknown range kind %q", r.Kind)
	}
	return nil
}

// Equal reports structural equality
func (r TimeRange) Equal(other TimeRange) bool {
	return r == other
}

// Bounds returns the concrete [start, end] in unix microseconds at now
func (r TimeRange) Bounds(now time.Time) (int64, int64) {
	if r.Kind == RangeAbsolute {
		return r.StartMicros, r.EndMicros
	}
	span := time.Duration(r.Amount) * unitDurations[r.Unit]
	return now.Add(-span).UnixMicro(), now.UnixMicro()
}

// String renders "15m", "6d" or "<start>-<end>"
func (r TimeRange) String() string {
	if r.Kind == RangeAbsolute {
		return fmt.Sprintf("%d-%d", r.StartMicros, r.EndMicros)
	}
	return fmt.Sprintf("%d%s", r.Amount, r.Unit)
}

// ParseTimeRange is the inverse of String
func ParseTimeRange(s string) (TimeRange, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TimeRange{}, NewError(KindInvalidRange, "empty time range")
	}

	if i := absoluteSeparator(s); i > 0 {
		start, end := s[:i], s[i+1:]
		from, err := strconv.ParseInt(start, 10, 64)
		if err != nil {
			return TimeRange{}, NewError(KindInvalidRange, "bad range start %q", start)
		}
		to, err := strconv.ParseInt(end, 10, 64)
		if err != nil {
			return TimeRange{}, NewError(KindInvalidRange, "bad range end %q", end)
		}
		r := Absolute(from, to)
		return r, r.Validate()
	}

	unit := TimeUnit(s[len(s)-1:])
	amount, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return TimeRange{}, NewError(KindInvalidRange, "bad relative amount in %q", s)
	}
	r := Relative(amount, unit)
	return r, r.Validate()
}

// absoluteSeparator finds the dash between the two bounds of "<start>-<end>".
// Either bound may be negative, so a leading dash or one that follows
// another dash is a sign.
func absoluteSeparator(s string) int {
	for i := 1; i < len(s); i++ {
		if s[i] == '-' && s[i-1] >= '0' && s[i-1] <= '9' {
			return i
		}
	}
	return -1
}
