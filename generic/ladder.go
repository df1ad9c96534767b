package generic

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LADDER - Ordered count thresholds mapped to tiers
// =============================================================================

// Tier is one rung of a ladder. A count belongs to the highest tier whose
// Min does not exceed it; the top tier is unbounded.
type Tier struct {
	ID    string
	Label string
	Min   int
}

// Ladder holds tiers in ascending Min order. The zero value is unusable,
// build one with NewLadder.
type Ladder struct {
	tiers []Tier
}

var ErrInvalidLadder = errors.New("invalid ladder")

// NewLadder validates and copies tiers. The first tier must start at 0 and
// minimums must be strictly ascending.
func NewLadder(tiers []Tier) (Ladder, error) {
	if len(tiers) < 2 {
		return Ladder{}, fmt.Errorf("%w: need at least 2 tiers, got %d", ErrInvalidLadder, len(tiers))
	}
	if tiers[0].Min != 0 {
		return Ladder{}, fmt.Errorf("%w: first tier %q must start at 0", ErrInvalidLadder, tiers[0].ID)
	}
	seen := make(map[string]bool, len(tiers))
	for i, t := range tiers {
		if t.ID == "" {
			return Ladder{}, fmt.Errorf("%w: tier %d has no id", ErrInvalidLadder, i)
		}
		if seen[t.ID] {
			return Ladder{}, fmt.Errorf("%w: duplicate tier id %q", ErrInvalidLadder, t.ID)
		}
		seen[t.ID] = true
		if i > 0 && t.Min <= tiers[i-1].Min {
			return Ladder{}, fmt.Errorf("%w: tier %q min %d not above %d", ErrInvalidLadder, t.ID, t.Min, tiers[i-1].Min)
		}
	}
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return Ladder{tiers: out}, nil
}

// Tiers returns a copy of the tiers, lowest first.
func (l Ladder) Tiers() []Tier {
	out := make([]Tier, len(l.tiers))
	copy(out, l.tiers)
	return out
}

// Top returns the highest tier.
func (l Ladder) Top() Tier {
	return l.tiers[len(l.tiers)-1]
}

func (l Ladder) indexOf(count int) int {
	idx := 0
	for i, t := range l.tiers {
		if count >= t.Min {
			idx = i
		}
	}
	return idx
}

// TierOf returns the tier for count. Negative counts are treated as 0.
func (l Ladder) TierOf(count int) Tier {
	return l.tiers[l.indexOf(count)]
}

// NextTarget is the next tier up and how many more completions it needs.
type NextTarget struct {
	Tier      Tier
	Remaining int
}

// Next returns the next tier above count; ok is false at the top tier.
func (l Ladder) Next(count int) (NextTarget, bool) {
	idx := l.indexOf(count)
	if idx == len(l.tiers)-1 {
		return NextTarget{}, false
	}
	next := l.tiers[idx+1]
	return NextTarget{Tier: next, Remaining: max(0, next.Min-count)}, true
}

// Progress returns how far count is between its tier's Min and the next
// tier's Min, as a fraction in [0, 1] rounded to 4 places. The top tier
// reports 1.
func (l Ladder) Progress(count int) decimal.Decimal {
	idx := l.indexOf(count)
	if idx == len(l.tiers)-1 {
		return decimal.NewFromInt(1)
	}
	lo, hi := l.tiers[idx].Min, l.tiers[idx+1].Min
	done := decimal.NewFromInt(int64(max(0, count-lo)))
	return done.Div(decimal.NewFromInt(int64(hi - lo))).Round(4)
}
