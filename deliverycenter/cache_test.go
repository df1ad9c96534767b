package deliverycenter_test

//go:generate mockgen -source=client.go -destination=mocks/mock_api.go -package=mocks API

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/warp/grade-engine/deliverycenter"
	"github.com/warp/grade-engine/deliverycenter/mocks"
	"github.com/warp/grade-engine/generic"
)

// 2025-01-10 in UTC, so yesterday is 2025-01-09.
var cacheNow = time.Date(2025, time.January, 10, 3, 0, 0, 0, time.UTC)

type cacheFixture struct {
	api     *mocks.MockAPI
	clock   *generic.ManualClock
	metrics *deliverycenter.Metrics
	cache   *deliverycenter.Cache
}

func newCacheFixture(t *testing.T, cfg deliverycenter.CacheConfig) *cacheFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &cacheFixture{
		api:     mocks.NewMockAPI(ctrl),
		clock:   generic.NewManualClock(cacheNow),
		metrics: deliverycenter.NewMetrics(prometheus.NewRegistry()),
	}
	cfg.Clock = f.clock
	cfg.Metrics = f.metrics
	f.cache = deliverycenter.NewCache(f.api, cfg)
	return f
}

func row(name, phone string, complete int) deliverycenter.CompletionRow {
	r := deliverycenter.CompletionRow{Name: name, Phone: phone}
	r.Accepted.Complete = complete
	return r
}

func worker(name, phone, code string) deliverycenter.Worker {
	return deliverycenter.Worker{Name: name, Phone: phone, Status: deliverycenter.AccountStatus{Code: code}}
}

func dayRange(from, to generic.TimePoint) generic.Range {
	return generic.Range{From: from, To: to}
}

var (
	dec24 = generic.NewTimePoint(2024, time.December, 24)
	jan9  = generic.NewTimePoint(2025, time.January, 9)
	jan24 = generic.NewTimePoint(2025, time.January, 24)
)

// =============================================================================
// ROSTER
// =============================================================================

func TestCache_RosterFilteredAndMemoized(t *testing.T) {
	f := newCacheFixture(t, deliverycenter.CacheConfig{})
	ctx := context.Background()

	// GIVEN: a roster with one ended contract
	f.api.EXPECT().Riders(gomock.Any()).Return([]deliverycenter.Worker{
		worker("Kim", "010-1234-5678", "UNDER_CONTRACT"),
		worker("Lee", "010-1111-2222", "CONTRACT_END"),
	}, nil).Times(1)

	// WHEN: the roster is read twice within the TTL
	first, err := f.cache.Roster(ctx)
	require.NoError(t, err)
	f.clock.Advance(deliverycenter.DefaultRosterTTL)
	second, err := f.cache.Roster(ctx)
	require.NoError(t, err)

	// THEN: one upstream call, ended contract gone
	require.Len(t, first, 1)
	assert.Equal(t, "Kim", first[0].Name)
	assert.Equal(t, first, second)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CacheHitsTotal.WithLabelValues("roster")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ExcludedWorkers))
}

func TestCache_RosterRefetchedAfterTTL(t *testing.T) {
	f := newCacheFixture(t, deliverycenter.CacheConfig{RosterTTL: time.Minute})
	ctx := context.Background()

	gomock.InOrder(
		f.api.EXPECT().Riders(gomock.Any()).Return([]deliverycenter.Worker{worker("Kim", "010-1234-5678", "")}, nil),
		f.api.EXPECT().Riders(gomock.Any()).Return([]deliverycenter.Worker{
			worker("Kim", "010-1234-5678", ""), worker("Park", "010-3333-4444", ""),
		}, nil),
	)

	first, err := f.cache.Roster(ctx)
	require.NoError(t, err)
	f.clock.Advance(time.Minute + time.Second)
	second, err := f.cache.Roster(ctx)
	require.NoError(t, err)

	assert.Len(t, first, 1)
	assert.Len(t, second, 2)
}

func TestCache_FailedRosterReturnsErrorAndRetries(t *testing.T) {
	f := newCacheFixture(t, deliverycenter.CacheConfig{})
	ctx := context.Background()
	expired := &generic.FetchError{Op: "riders", Kind: generic.ErrAuthExpired}

	gomock.InOrder(
		f.api.EXPECT().Riders(gomock.Any()).Return([]deliverycenter.Worker{worker("Kim", "010-1234-5678", "")}, nil),
		f.api.EXPECT().Riders(gomock.Any()).Return(nil, expired),
		f.api.EXPECT().Riders(gomock.Any()).Return([]deliverycenter.Worker{worker("Lee", "010-1111-2222", "")}, nil),
	)

	_, err := f.cache.Roster(ctx)
	require.NoError(t, err)

	// WHEN: the entry expires and the refresh fails
	f.clock.Advance(2 * deliverycenter.DefaultRosterTTL)
	_, err = f.cache.Roster(ctx)

	// THEN: the failure surfaces, nothing stale is served
	assert.ErrorIs(t, err, generic.ErrAuthExpired)

	// AND: the next read tries again
	workers, err := f.cache.Roster(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Lee", workers[0].Name)
}

func TestCache_SetContractRulesAppliesAtNextFetch(t *testing.T) {
	f := newCacheFixture(t, deliverycenter.CacheConfig{})
	ctx := context.Background()
	roster := []deliverycenter.Worker{
		worker("Kim", "010-1234-5678", "UNDER_CONTRACT"),
		worker("Lee", "010-1111-2222", "PAUSED"),
	}
	f.api.EXPECT().Riders(gomock.Any()).Return(roster, nil).Times(2)

	before, err := f.cache.Roster(ctx)
	require.NoError(t, err)
	assert.Len(t, before, 2)

	rules := deliverycenter.DefaultContractRules()
	rules.CodeMarkers = append(rules.CodeMarkers, "PAUSE")
	f.cache.SetContractRules(rules)
	assert.Contains(t, f.cache.ContractRules().CodeMarkers, "PAUSE")

	// live entry keeps its filtering
	cached, err := f.cache.Roster(ctx)
	require.NoError(t, err)
	assert.Len(t, cached, 2)

	f.clock.Advance(2 * deliverycenter.DefaultRosterTTL)
	after, err := f.cache.Roster(ctx)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "Kim", after[0].Name)
}

func TestCache_ProbeBypassesCache(t *testing.T) {
	f := newCacheFixture(t, deliverycenter.CacheConfig{})
	ctx := context.Background()
	f.api.EXPECT().Riders(gomock.Any()).Return([]deliverycenter.Worker{
		worker("Kim", "010-1234-5678", "UNDER_CONTRACT"),
		worker("Lee", "010-1111-2222", "TERMINATED"),
	}, nil).Times(3)

	for range 2 {
		res, err := f.cache.Probe(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Fetched)
		assert.Equal(t, 1, res.Kept)
	}

	// probing stored nothing, so the first Roster call still goes upstream
	_, err := f.cache.Roster(ctx)
	require.NoError(t, err)
}

// =============================================================================
// COMPLETIONS
// =============================================================================

func TestCache_CompletionsPaginateAndAccumulate(t *testing.T) {
	f := newCacheFixture(t, deliverycenter.CacheConfig{PageSize: 2})
	ctx := context.Background()
	r := dayRange(dec24, jan9)

	gomock.InOrder(
		f.api.EXPECT().DeliveryStatus(gomock.Any(), r, 0, 2).Return([]deliverycenter.CompletionRow{
			row("Kim", "010-1234-5678", 3),
			row("Lee", "010-1111-2222", 2),
		}, nil),
		f.api.EXPECT().DeliveryStatus(gomock.Any(), r, 1, 2).Return([]deliverycenter.CompletionRow{
			row("kim ", "010 1234 5678", 4),
			row("Nobody", "", 99),
		}, nil),
		f.api.EXPECT().DeliveryStatus(gomock.Any(), r, 2, 2).Return(nil, nil),
	)

	counts, err := f.cache.Completions(ctx, r)

	require.NoError(t, err)
	assert.Equal(t, 7, counts.Count("kim|5678"), "rows for the same key are summed")
	assert.Equal(t, 2, counts.Count("lee|2222"))
	assert.Equal(t, 0, counts.Count("nobody|"))
	assert.Len(t, counts, 2)
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.PagesFetchedTotal))
}

func TestCache_CompletionsStartAtPageZero(t *testing.T) {
	f := newCacheFixture(t, deliverycenter.CacheConfig{})
	r := dayRange(dec24, jan9)

	var pages []int
	f.api.EXPECT().DeliveryStatus(gomock.Any(), r, gomock.Any(), deliverycenter.DefaultPageSize).
		DoAndReturn(func(_ context.Context, _ generic.Range, page, _ int) ([]deliverycenter.CompletionRow, error) {
			pages = append(pages, page)
			if page == 0 {
				return []deliverycenter.CompletionRow{row("Kim", "010-1234-5678", 500)}, nil
			}
			return nil, nil
		}).
		Times(2)

	// GIVEN: the only rows live on the first page
	counts, err := f.cache.Completions(context.Background(), r)

	// THEN: they are counted
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, pages)
	assert.Equal(t, 500, counts.Count("kim|5678"))
}

func TestCache_CompletionsStopAtPageCeiling(t *testing.T) {
	f := newCacheFixture(t, deliverycenter.CacheConfig{PageSize: 1, MaxPages: 2})
	r := dayRange(dec24, jan9)

	f.api.EXPECT().DeliveryStatus(gomock.Any(), r, gomock.Any(), 1).
		Return([]deliverycenter.CompletionRow{row("Kim", "010-1234-5678", 1)}, nil).
		Times(2)

	counts, err := f.cache.Completions(context.Background(), r)

	require.NoError(t, err)
	assert.Equal(t, 2, counts.Count("kim|5678"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PageCeilingHitsTotal))
}

func TestCache_CoincidingRangesShareOneFetch(t *testing.T) {
	f := newCacheFixture(t, deliverycenter.CacheConfig{})
	ctx := context.Background()

	// a range that runs into the future is clipped to yesterday first
	f.api.EXPECT().DeliveryStatus(gomock.Any(), dayRange(dec24, jan9), 0, deliverycenter.DefaultPageSize).
		Return([]deliverycenter.CompletionRow{row("Kim", "010-1234-5678", 5)}, nil)
	f.api.EXPECT().DeliveryStatus(gomock.Any(), dayRange(dec24, jan9), 1, deliverycenter.DefaultPageSize).
		Return(nil, nil)

	a, err := f.cache.Completions(ctx, dayRange(dec24, jan24))
	require.NoError(t, err)
	b, err := f.cache.Completions(ctx, dayRange(dec24, jan9))
	require.NoError(t, err)

	assert.Equal(t, 5, a.Count("kim|5678"))
	assert.Equal(t, a, b)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CacheHitsTotal.WithLabelValues("completions")))
}

func TestCache_CompletionsFailureIsNotCached(t *testing.T) {
	f := newCacheFixture(t, deliverycenter.CacheConfig{})
	ctx := context.Background()
	r := dayRange(dec24, jan9)
	boom := &generic.FetchError{Op: "delivery-status", Kind: generic.ErrFetchFailure}

	gomock.InOrder(
		f.api.EXPECT().DeliveryStatus(gomock.Any(), r, 0, gomock.Any()).
			Return([]deliverycenter.CompletionRow{row("Kim", "010-1234-5678", 5)}, nil),
		f.api.EXPECT().DeliveryStatus(gomock.Any(), r, 1, gomock.Any()).Return(nil, boom),
		f.api.EXPECT().DeliveryStatus(gomock.Any(), r, 0, gomock.Any()).Return(nil, nil),
	)

	// WHEN: the second page fails
	_, err := f.cache.Completions(ctx, r)

	// THEN: no partial aggregate is kept
	assert.ErrorIs(t, err, generic.ErrFetchFailure)

	counts, err := f.cache.Completions(ctx, r)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestCache_TodayUsesLocation(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	// 2025-01-09 20:00 UTC is already 2025-01-10 in Seoul
	f := newCacheFixture(t, deliverycenter.CacheConfig{Location: seoul})
	f.clock.Set(time.Date(2025, time.January, 9, 20, 0, 0, 0, time.UTC))

	assert.Equal(t, "2025-01-10", f.cache.Today().String())
}
