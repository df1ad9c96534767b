/*
evaluator.go - Rider tier evaluation

PURPOSE:
  Answers "what tier is this rider, and what produced it" for one rider
  (Lookup) or for the whole roster (Dashboard).

FLOW (per rider):
  roster -> identity (login suffix) -> effective join date
         -> current window -> previous window -> API ranges
         -> completion maps for both ranges -> counts by REAL key
         -> tiers

  The completion feed is indexed by the phone's real suffix, never by the
  login suffix an admin may have assigned.

DASHBOARD:
  All windows are planned first, then each distinct API range is fetched
  once. Riders sharing an anchor day share one cache entry.

SEE ALSO:
  - generic/period.go: window arithmetic
  - deliverycenter/cache.go: roster and completion caching
  - grade/identity.go: identity resolution
*/
package grade

import (
	"cmp"
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/warp/grade-engine/deliverycenter"
	"github.com/warp/grade-engine/generic"
)

// DefaultDashboardConcurrency bounds parallel range fetches in Dashboard.
const DefaultDashboardConcurrency = 4

// Source is the cached view of the delivery center.
type Source interface {
	Roster(ctx context.Context) ([]deliverycenter.Worker, error)
	Completions(ctx context.Context, r generic.Range) (deliverycenter.Completions, error)
	Today() generic.TimePoint
}

// Overrides hands out a resolver over one override snapshot.
type Overrides interface {
	Resolver(ctx context.Context) *IdentityResolver
}

type EvaluatorConfig struct {
	Ladder      generic.Ladder
	Concurrency int
	Logger      *slog.Logger
}

type Evaluator struct {
	source      Source
	overrides   Overrides
	ladder      generic.Ladder
	concurrency int
	logger      *slog.Logger
}

// NewEvaluator uses DefaultLadder when cfg.Ladder is the zero value.
func NewEvaluator(source Source, overrides Overrides, cfg EvaluatorConfig) *Evaluator {
	if len(cfg.Ladder.Tiers()) == 0 {
		cfg.Ladder = DefaultLadder()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultDashboardConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Evaluator{
		source:      source,
		overrides:   overrides,
		ladder:      cfg.Ladder,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
	}
}

// Ladder returns the ladder riders are graded against.
func (e *Evaluator) Ladder() generic.Ladder { return e.ladder }

// =============================================================================
// LOOKUP
// =============================================================================

// Lookup finds the one rider whose normalized name is name and whose login
// suffix is loginSuffix, and evaluates them.
//
// Errors: ErrInvalidInput for a bad suffix or empty name, ErrNotFound,
// ErrAmbiguous when several riders match, and fetch errors from the source.
func (e *Evaluator) Lookup(ctx context.Context, name, loginSuffix string) (*Evaluation, error) {
	loginSuffix = strings.TrimSpace(loginSuffix)
	if !deliverycenter.IsFourDigits(loginSuffix) {
		return nil, generic.NewInvalidInput("login4", loginSuffix, "expected 4 digits")
	}
	nameKey := deliverycenter.NormalizeName(name)
	if nameKey == "" {
		return nil, generic.NewInvalidInput("name", name, "must not be empty")
	}

	roster, err := e.source.Roster(ctx)
	if err != nil {
		return nil, err
	}
	resolver := e.overrides.Resolver(ctx)

	var (
		match    deliverycenter.Worker
		identity Identity
		matches  int
	)
	for _, w := range roster {
		if w.NameKey() != nameKey {
			continue
		}
		id := resolver.ResolveLogin(w)
		if !id.Matchable() || id.LoginSuffix != loginSuffix {
			continue
		}
		matches++
		match, identity = w, id
	}

	switch {
	case matches == 0:
		return nil, generic.ErrNotFound
	case matches > 1:
		e.logger.WarnContext(ctx, "ambiguous lookup", "name_key", nameKey, "matches", matches)
		return nil, &generic.AmbiguousMatchError{NameKey: nameKey, Suffix: loginSuffix, Matches: matches}
	}

	p := newPlan(resolver, match, identity, e.source.Today())

	var cur, prev deliverycenter.Completions
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cur, err = e.source.Completions(gctx, p.current.API)
		return err
	})
	g.Go(func() error {
		var err error
		prev, err = e.source.Completions(gctx, p.previous.API)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ev := p.evaluate(e.ladder, cur, prev)
	e.logger.DebugContext(ctx, "lookup evaluated",
		"name_key", nameKey, "login_source", identity.LoginSource, "join_source", p.joinSource,
		"current", p.current.API.String(), "count", ev.Current.Count)
	return &ev, nil
}

// =============================================================================
// DASHBOARD
// =============================================================================

// Dashboard evaluates every matchable rider. A non-empty query keeps the
// riders whose nameNorm+realSuffix contains the normalized query. Results
// are sorted by the in-progress count, highest first.
func (e *Evaluator) Dashboard(ctx context.Context, query string) ([]Evaluation, error) {
	roster, err := e.source.Roster(ctx)
	if err != nil {
		return nil, err
	}
	resolver := e.overrides.Resolver(ctx)
	today := e.source.Today()
	q := deliverycenter.NormalizeName(query)

	plans := make([]plan, 0, len(roster))
	ranges := make(map[generic.Range]deliverycenter.Completions)
	for _, w := range roster {
		id := resolver.ResolveLogin(w)
		if !id.Matchable() {
			continue
		}
		if q != "" && !strings.Contains(id.NameKey+id.RealSuffix, q) {
			continue
		}
		p := newPlan(resolver, w, id, today)
		plans = append(plans, p)
		ranges[p.current.API] = nil
		ranges[p.previous.API] = nil
	}

	if err := e.fetchRanges(ctx, ranges); err != nil {
		return nil, err
	}

	out := make([]Evaluation, 0, len(plans))
	for _, p := range plans {
		out = append(out, p.evaluate(e.ladder, ranges[p.current.API], ranges[p.previous.API]))
	}
	slices.SortFunc(out, func(a, b Evaluation) int {
		return cmp.Or(
			cmp.Compare(b.Current.Count, a.Current.Count),
			cmp.Compare(a.Identity.NameKey, b.Identity.NameKey),
			cmp.Compare(a.Identity.RealSuffix, b.Identity.RealSuffix),
		)
	})

	e.logger.DebugContext(ctx, "dashboard evaluated",
		"riders", len(out), "distinct_ranges", len(ranges), "query", q)
	return out, nil
}

// fetchRanges fills ranges with one completion map per key.
func (e *Evaluator) fetchRanges(ctx context.Context, ranges map[generic.Range]deliverycenter.Completions) error {
	keys := slices.Collect(maps.Keys(ranges))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, r := range keys {
		g.Go(func() error {
			counts, err := e.source.Completions(gctx, r)
			if err != nil {
				return err
			}
			mu.Lock()
			ranges[r] = counts
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}
