package generic

import (
	"fmt"
	"sync"
	"time"
)

// =============================================================================
// TIME POINT - Day-granular civil date (evaluation periods are whole days)
// =============================================================================

// TimePoint is a calendar day. Internally it is midnight UTC so that values
// compare with == and can be used as map keys.
type TimePoint struct {
	t time.Time
}

const dateLayout = "2006-01-02"

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t as observed in loc.
func DateOf(t time.Time, loc *time.Location) TimePoint {
	if loc != nil {
		t = t.In(loc)
	}
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a strict YYYY-MM-DD string.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return TimePoint{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return NewTimePoint(t.Year(), t.Month(), t.Day()), nil
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.t.Before(other.t) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.t.Equal(other.t) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.t.After(other.t) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

// Arithmetic. Month shifts go through ClampDay; time.AddDate turns
// Jan 31 + 1 month into March.
func (tp TimePoint) AddDays(n int) TimePoint { return TimePoint{t: tp.t.AddDate(0, 0, n)} }

// Properties
func (tp TimePoint) Year() int          { return tp.t.Year() }
func (tp TimePoint) Month() time.Month  { return tp.t.Month() }
func (tp TimePoint) Day() int           { return tp.t.Day() }
func (tp TimePoint) IsZero() bool       { return tp.t.IsZero() }
func (tp TimePoint) Time() time.Time    { return tp.t }
func (tp TimePoint) String() string     { return tp.t.Format(dateLayout) }

func MinTimePoint(a, b TimePoint) TimePoint {
	if a.Before(b) {
		return a
	}
	return b
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DaysBetween returns the whole days from -> to (negative when to is earlier).
func DaysBetween(from, to TimePoint) int { return int(to.t.Sub(from.t).Hours() / 24) }

// =============================================================================
// CLOCK - Pluggable "now" so TTLs and "today" are testable without sleeping
// =============================================================================

type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Today returns the current business day in loc.
func Today(clock Clock, loc *time.Location) TimePoint {
	return DateOf(clock.Now(), loc)
}

// ManualClock is a Clock that only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(now time.Time) *ManualClock {
	return &ManualClock{now: now}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set jumps the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
