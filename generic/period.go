package generic

import "time"

// =============================================================================
// PERIOD - One anniversary-anchored evaluation period
// =============================================================================

// Period is a closed interval of days [Start, End]. Both ends count.
//
// Example: join day 24 gives 12/24 - 01/24. The end day is part of the
// period; results are announced the day after (01/25).
type Period struct {
	Start TimePoint
	End   TimePoint
}

// Contains returns true if the day is within [Start, End].
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Days returns the number of days in the period, both ends included.
func (p Period) Days() int {
	return DaysBetween(p.Start, p.End) + 1
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// Range is the sub-interval of a period the completion feed can answer for.
// From <= To always holds for values built by ToAPIRange.
type Range struct {
	From TimePoint
	To   TimePoint
}

// String is also the cache key of the range.
func (r Range) String() string {
	return r.From.String() + "_" + r.To.String()
}

// Window pairs a policy period with the range that is actually queried.
type Window struct {
	Period Period
	API    Range
}

// NewWindow clips p against today.
func NewWindow(p Period, today TimePoint) Window {
	return Window{Period: p, API: ToAPIRange(p, today)}
}

// =============================================================================
// ANCHOR ARITHMETIC
// =============================================================================

// ClampDay returns targetDay in the given month, or the month's last day
// when the month is shorter (31 -> 30, 29..31 -> 28/29 in February).
func ClampDay(year int, month time.Month, targetDay int) TimePoint {
	if targetDay < 1 {
		targetDay = 1
	}
	if last := DaysInMonth(year, month); targetDay > last {
		targetDay = last
	}
	return NewTimePoint(year, month, targetDay)
}

// shiftMonth returns the first day of the month n months away from (year, month).
func shiftMonth(year int, month time.Month, n int) (int, time.Month) {
	first := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	return first.Year(), first.Month()
}

// CurrentPeriod returns the evaluation period containing today for a worker
// who joined on join. The period starts on this month's anchor if today has
// reached it, otherwise on last month's anchor, and ends on the anchor one
// month after the start.
func CurrentPeriod(join, today TimePoint) Period {
	day := join.Day()
	start := ClampDay(today.Year(), today.Month(), day)
	if today.Before(start) {
		y, m := shiftMonth(today.Year(), today.Month(), -1)
		start = ClampDay(y, m, day)
	}
	y, m := shiftMonth(start.Year(), start.Month(), 1)
	return Period{Start: start, End: ClampDay(y, m, day)}
}

// PreviousPeriod returns the period that ends the day before currentStart.
// Its start is currentStart moved back one calendar month with clamping.
func PreviousPeriod(currentStart TimePoint) Period {
	y, m := shiftMonth(currentStart.Year(), currentStart.Month(), -1)
	return Period{
		Start: ClampDay(y, m, currentStart.Day()),
		End:   currentStart.AddDays(-1),
	}
}

// ToAPIRange clips p to what the completion feed has confirmed: nothing for
// today, so To is at most yesterday. If the clip inverts the range both ends
// collapse onto To.
func ToAPIRange(p Period, today TimePoint) Range {
	r := Range{From: p.Start, To: MinTimePoint(p.End, today.AddDays(-1))}
	if r.From.After(r.To) {
		r.From = r.To
	}
	return r
}

// ClipRange re-applies the yesterday bound to an already built range.
func ClipRange(r Range, today TimePoint) Range {
	return ToAPIRange(Period{Start: r.From, End: r.To}, today)
}
