package grade

import (
	"github.com/shopspring/decimal"

	"github.com/warp/grade-engine/deliverycenter"
	"github.com/warp/grade-engine/generic"
)

// WindowResult is one evaluated period and what it produced.
type WindowResult struct {
	Window generic.Window
	Count  int
	Tier   generic.Tier
}

// Evaluation is the full answer for one rider.
//
// CurrentTier comes from the previous (completed) period; ProjectedTier
// from the period in progress. Next and Progress refer to the period in
// progress; Next is nil at the top tier.
type Evaluation struct {
	Name             string
	MaskedPhone      string
	PlatformJoinDate string

	Identity   Identity
	JoinDate   generic.TimePoint
	JoinSource JoinSource

	Current  WindowResult
	Previous WindowResult

	CurrentTier   generic.Tier
	ProjectedTier generic.Tier
	Next          *generic.NextTarget
	Progress      decimal.Decimal
}

// plan is everything about a rider that does not need completion data.
type plan struct {
	worker     deliverycenter.Worker
	identity   Identity
	joinDate   generic.TimePoint
	joinSource JoinSource
	current    generic.Window
	previous   generic.Window
}

func newPlan(r *IdentityResolver, w deliverycenter.Worker, id Identity, today generic.TimePoint) plan {
	join, src := r.ResolveJoinDate(w, id.LoginSuffix, today)
	cur := generic.CurrentPeriod(join, today)
	prev := generic.PreviousPeriod(cur.Start)
	return plan{
		worker:     w,
		identity:   id,
		joinDate:   join,
		joinSource: src,
		current:    generic.NewWindow(cur, today),
		previous:   generic.NewWindow(prev, today),
	}
}

// evaluate looks the rider's real key up in both aggregates. A missing key
// is zero completions.
func (p plan) evaluate(ladder generic.Ladder, cur, prev deliverycenter.Completions) Evaluation {
	key := p.identity.RealKey()
	curCount := cur.Count(key)
	prevCount := prev.Count(key)

	ev := Evaluation{
		Name:             p.worker.Name,
		MaskedPhone:      MaskPhone(p.worker.Phone),
		PlatformJoinDate: p.worker.CreatedDay(),
		Identity:         p.identity,
		JoinDate:         p.joinDate,
		JoinSource:       p.joinSource,
		Current:          WindowResult{Window: p.current, Count: curCount, Tier: ladder.TierOf(curCount)},
		Previous:         WindowResult{Window: p.previous, Count: prevCount, Tier: ladder.TierOf(prevCount)},
		CurrentTier:      ladder.TierOf(prevCount),
		ProjectedTier:    ladder.TierOf(curCount),
		Progress:         ladder.Progress(curCount),
	}
	if next, ok := ladder.Next(curCount); ok {
		ev.Next = &next
	}
	return ev
}
