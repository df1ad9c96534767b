package deliverycenter

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/warp/grade-engine/generic"
)

const (
	DefaultRosterTTL     = 60 * time.Second
	DefaultCompletionTTL = 30 * time.Second
	DefaultPageSize      = 100
	DefaultMaxPages      = 600

	rosterKey = "roster"
)

// CacheConfig configures a Cache. Zero values take the defaults above.
type CacheConfig struct {
	RosterTTL     time.Duration
	CompletionTTL time.Duration
	PageSize      int
	MaxPages      int
	// Location is the business timezone used for "yesterday".
	Location *time.Location
	Clock    generic.Clock
	Rules    *ContractRules
	Metrics  *Metrics
	Logger   *slog.Logger
}

// Completions maps a real key (nameNorm|realSuffix) to its completed count.
type Completions map[string]int

// Count returns the count for key, 0 when absent.
func (c Completions) Count(key string) int { return c[key] }

// Cache is the only path from the engine to the delivery center. Roster and
// completion reads are memoized with a TTL; the roster is contract-filtered
// once, at fetch time. Values handed out are shared and must not be mutated.
type Cache struct {
	api         API
	roster      *generic.TTLCache[string, []Worker]
	completions *generic.TTLCache[generic.Range, Completions]
	rules       atomic.Pointer[ContractRules]
	flagged     sync.Map
	pageSize    int
	maxPages    int
	loc         *time.Location
	clock       generic.Clock
	metrics     *Metrics
	logger      *slog.Logger
}

func NewCache(api API, cfg CacheConfig) *Cache {
	if cfg.RosterTTL <= 0 {
		cfg.RosterTTL = DefaultRosterTTL
	}
	if cfg.CompletionTTL <= 0 {
		cfg.CompletionTTL = DefaultCompletionTTL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = generic.SystemClock{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(prometheus.NewRegistry())
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Cache{
		api:         api,
		roster:      generic.NewTTLCache[string, []Worker](cfg.RosterTTL, cfg.Clock),
		completions: generic.NewTTLCache[generic.Range, Completions](cfg.CompletionTTL, cfg.Clock),
		pageSize:    cfg.PageSize,
		maxPages:    cfg.MaxPages,
		loc:         cfg.Location,
		clock:       cfg.Clock,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}
	rules := DefaultContractRules()
	if cfg.Rules != nil {
		rules = *cfg.Rules
	}
	c.rules.Store(&rules)
	return c
}

// SetContractRules replaces the exclusion rules. They take effect at the
// next roster fetch; a live roster entry keeps its old filtering.
func (c *Cache) SetContractRules(rules ContractRules) {
	c.rules.Store(&rules)
	c.logger.Info("contract rules updated",
		"code_markers", rules.CodeMarkers, "known_codes", rules.KnownCodes)
}

// ContractRules returns the rules in effect.
func (c *Cache) ContractRules() ContractRules {
	return *c.rules.Load()
}

// Today is the business day according to the cache's clock.
func (c *Cache) Today() generic.TimePoint {
	return generic.Today(c.clock, c.loc)
}

// =============================================================================
// ROSTER
// =============================================================================

// Roster returns the contract-filtered roster.
func (c *Cache) Roster(ctx context.Context) ([]Worker, error) {
	workers, hit, err := c.roster.GetOrLoad(ctx, rosterKey, c.loadRoster)
	if err != nil {
		return nil, err
	}
	c.observe("roster", hit, c.roster.Len())
	return workers, nil
}

func (c *Cache) loadRoster(ctx context.Context) ([]Worker, error) {
	all, err := c.api.Riders(ctx)
	if err != nil {
		return nil, err
	}
	return c.filter().Apply(ctx, all), nil
}

func (c *Cache) filter() *ContractFilter {
	return newContractFilter(*c.rules.Load(), &c.flagged, c.metrics, c.logger)
}

// ProbeResult summarizes one uncached roster fetch.
type ProbeResult struct {
	Fetched  int
	Kept     int
	Duration time.Duration
}

// Probe fetches the roster bypassing the cache and without storing it.
// It exists to check the credentials on demand.
func (c *Cache) Probe(ctx context.Context) (ProbeResult, error) {
	start := c.clock.Now()
	all, err := c.api.Riders(ctx)
	if err != nil {
		return ProbeResult{}, err
	}
	kept := c.filter().Apply(ctx, all)
	return ProbeResult{Fetched: len(all), Kept: len(kept), Duration: c.clock.Now().Sub(start)}, nil
}

// =============================================================================
// COMPLETIONS
// =============================================================================

// Completions returns the completed counts for r. r is clipped to
// yesterday again before use, so the result is keyed by the clipped range.
func (c *Cache) Completions(ctx context.Context, r generic.Range) (Completions, error) {
	r = generic.ClipRange(r, c.Today())
	counts, hit, err := c.completions.GetOrLoad(ctx, r, func(ctx context.Context) (Completions, error) {
		return c.loadCompletions(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	if !hit {
		c.completions.Prune()
	}
	c.observe("completions", hit, c.completions.Len())
	return counts, nil
}

func (c *Cache) loadCompletions(ctx context.Context, r generic.Range) (Completions, error) {
	counts := make(Completions)
	pages := 0
	for page := 0; page < c.maxPages; page++ {
		rows, err := c.api.DeliveryStatus(ctx, r, page, c.pageSize)
		if err != nil {
			return nil, err
		}
		pages++
		c.metrics.PagesFetchedTotal.Inc()
		if len(rows) == 0 {
			c.logger.DebugContext(ctx, "completions fetched",
				"range", r.String(), "pages", pages, "workers", len(counts))
			return counts, nil
		}
		for _, row := range rows {
			suffix := LastFour(row.Phone)
			if suffix == "" {
				continue
			}
			counts[Key(NormalizeName(row.Name), suffix)] += row.Accepted.Complete
		}
	}

	c.metrics.PageCeilingHitsTotal.Inc()
	c.logger.WarnContext(ctx, "completion pagination stopped at page ceiling",
		"range", r.String(), "max_pages", c.maxPages, "workers", len(counts))
	return counts, nil
}

func (c *Cache) observe(kind string, hit bool, entries int) {
	if hit {
		c.metrics.CacheHitsTotal.WithLabelValues(kind).Inc()
	} else {
		c.metrics.CacheMissesTotal.WithLabelValues(kind).Inc()
	}
	c.metrics.CacheEntries.WithLabelValues(kind).Set(float64(entries))
}
