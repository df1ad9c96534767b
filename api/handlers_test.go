/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Lookup response shape and error kind -> status mapping
- Admin gate on dashboard and override routes
- Override editing round trip
- Health and source check
*/
package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/warp/grade-engine/deliverycenter"
	"github.com/warp/grade-engine/generic"
	memstore "github.com/warp/grade-engine/generic/store"
	"github.com/warp/grade-engine/grade"
)

const (
	adminHeader  = "X-Admin-Key"
	testAdminKey = "admin-secret"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeEvaluator struct {
	lookup    func(name, login string) (*grade.Evaluation, error)
	dashboard func(q string) ([]grade.Evaluation, error)
}

func (f *fakeEvaluator) Lookup(_ context.Context, name, login string) (*grade.Evaluation, error) {
	return f.lookup(name, login)
}

func (f *fakeEvaluator) Dashboard(_ context.Context, q string) ([]grade.Evaluation, error) {
	return f.dashboard(q)
}

type fakeProbe struct {
	res deliverycenter.ProbeResult
	err error
}

func (f fakeProbe) Probe(context.Context) (deliverycenter.ProbeResult, error) { return f.res, f.err }

func sampleEvaluation() grade.Evaluation {
	ladder := grade.DefaultLadder()
	tp := generic.NewTimePoint
	cur := generic.Window{
		Period: generic.Period{Start: tp(2024, 12, 24), End: tp(2025, 1, 24)},
		API:    generic.Range{From: tp(2024, 12, 24), To: tp(2025, 1, 9)},
	}
	prev := generic.Window{
		Period: generic.Period{Start: tp(2024, 11, 24), End: tp(2024, 12, 23)},
		API:    generic.Range{From: tp(2024, 11, 24), To: tp(2024, 12, 23)},
	}
	next, _ := ladder.Next(500)
	return grade.Evaluation{
		Name:             "Kim",
		MaskedPhone:      "010-****-5678",
		PlatformJoinDate: "2024-03-24",
		Identity:         grade.Identity{NameKey: "kim", RealSuffix: "5678", LoginSuffix: "9999", LoginSource: grade.LoginFromOverride},
		JoinDate:         tp(2024, 3, 24),
		JoinSource:       grade.JoinFromPlatform,
		Current:          grade.WindowResult{Window: cur, Count: 500, Tier: ladder.TierOf(500)},
		Previous:         grade.WindowResult{Window: prev, Count: 300, Tier: ladder.TierOf(300)},
		CurrentTier:      ladder.TierOf(300),
		ProjectedTier:    ladder.TierOf(500),
		Next:             &next,
		Progress:         decimal.RequireFromString("0.0833"),
	}
}

// =============================================================================
// SUITE
// =============================================================================

type HandlerSuite struct {
	suite.Suite
	evaluator *fakeEvaluator
	overrides *grade.OverrideService
	probe     *fakeProbe
	cookie    bool
	centerID  bool
	router    http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.evaluator = &fakeEvaluator{
		lookup: func(string, string) (*grade.Evaluation, error) {
			ev := sampleEvaluation()
			return &ev, nil
		},
		dashboard: func(string) ([]grade.Evaluation, error) {
			return []grade.Evaluation{sampleEvaluation()}, nil
		},
	}
	s.overrides = grade.NewOverrideService(
		generic.NewOverrideMap("join_overrides", memstore.NewMemory(), nil),
		generic.NewOverrideMap("login_overrides", memstore.NewMemory(), nil),
	)
	s.probe = &fakeProbe{}
	s.cookie, s.centerID = true, true

	h := NewHandler(s.evaluator, s.overrides, s.probe, nil)
	h.CookieLoaded = func(context.Context) bool { return s.cookie }
	h.CenterIDLoaded = func() bool { return s.centerID }
	s.router = NewRouter(h, RouterOptions{Gate: APIKeyGate(adminHeader, testAdminKey)})
}

func (s *HandlerSuite) do(method, path string, body any, admin bool) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set(adminHeader, testAdminKey)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](s *HandlerSuite, rec *httptest.ResponseRecorder) T {
	var v T
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// LOOKUP
// =============================================================================

func (s *HandlerSuite) TestLookup_OK() {
	var gotName, gotLogin string
	s.evaluator.lookup = func(name, login string) (*grade.Evaluation, error) {
		gotName, gotLogin = name, login
		ev := sampleEvaluation()
		return &ev, nil
	}

	rec := s.do(http.MethodPost, "/api/lookup", LookupRequest{Name: "Kim", Login4: "9999"}, false)

	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("Kim", gotName)
	s.Equal("9999", gotLogin)

	dto := decodeBody[EvaluationDTO](s, rec)
	s.Equal("010-****-5678", dto.Phone)
	s.Equal("5678", dto.Real4)
	s.Equal("9999", dto.Login4)
	s.Equal("override", dto.LoginSource)
	s.Equal("kim|9999", dto.JoinKey)
	s.Equal("platform", dto.JoinSource)
	s.Equal("2024-12-24", dto.Current.PeriodStart)
	s.Equal("2025-01-24", dto.Current.PeriodEnd)
	s.Equal("2025-01-09", dto.Current.APITo)
	s.Equal(500, dto.Current.Completed)
	s.Equal("unranked", dto.CurrentTier.ID)
	s.Equal("무등급", dto.CurrentTier.Label)
	s.Equal("R5", dto.ProjectedTier.ID)
	s.Require().NotNil(dto.Next)
	s.Equal(220, dto.Next.Remaining)
	s.Equal("0.0833", dto.Progress)
}

func (s *HandlerSuite) TestLookup_ErrorMapping() {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid", generic.NewInvalidInput("login4", "12", "expected 4 digits"), http.StatusBadRequest, "invalid_input"},
		{"not found", generic.ErrNotFound, http.StatusNotFound, "not_found"},
		{"ambiguous", &generic.AmbiguousMatchError{NameKey: "kim", Suffix: "5678", Matches: 2}, http.StatusConflict, "ambiguous"},
		{"auth expired", &generic.FetchError{Op: "riders", Kind: generic.ErrAuthExpired}, http.StatusServiceUnavailable, "auth_expired"},
		{"fetch failed", &generic.FetchError{Op: "riders", Kind: generic.ErrFetchFailure, Timeout: true}, http.StatusBadGateway, "fetch_failed"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.evaluator.lookup = func(string, string) (*grade.Evaluation, error) { return nil, tt.err }

			rec := s.do(http.MethodPost, "/api/lookup", LookupRequest{Name: "Kim", Login4: "5678"}, false)

			s.Equal(tt.status, rec.Code)
			resp := decodeBody[ErrorResponse](s, rec)
			s.Equal(tt.code, resp.Code)
			s.NotEmpty(resp.Error)
		})
	}
}

func (s *HandlerSuite) TestLookup_BadBody() {
	req := httptest.NewRequest(http.MethodPost, "/api/lookup", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	s.Equal(http.StatusBadRequest, rec.Code)
}

// =============================================================================
// ADMIN
// =============================================================================

func (s *HandlerSuite) TestAdminRoutesRequireKey() {
	for _, path := range []string{"/api/dashboard", "/api/admin/overrides", "/api/admin/source-check"} {
		rec := s.do(http.MethodGet, path, nil, false)
		s.Equal(http.StatusUnauthorized, rec.Code, path)
		s.Equal("unauthorized", decodeBody[ErrorResponse](s, rec).Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req.Header.Set(adminHeader, "wrong")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlerSuite) TestDashboard() {
	var gotQ string
	s.evaluator.dashboard = func(q string) ([]grade.Evaluation, error) {
		gotQ = q
		return []grade.Evaluation{sampleEvaluation(), sampleEvaluation()}, nil
	}

	rec := s.do(http.MethodGet, "/api/dashboard?q=+kim+", nil, true)

	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("kim", gotQ)
	resp := decodeBody[DashboardResponse](s, rec)
	s.Equal(2, resp.Count)
	s.Len(resp.Riders, 2)
}

func (s *HandlerSuite) TestDashboard_SourceFailure() {
	s.evaluator.dashboard = func(string) ([]grade.Evaluation, error) {
		return nil, &generic.FetchError{Op: "riders", Kind: generic.ErrAuthExpired}
	}

	rec := s.do(http.MethodGet, "/api/dashboard", nil, true)

	s.Equal(http.StatusServiceUnavailable, rec.Code)
}

func (s *HandlerSuite) TestOverrideRoundTrip() {
	rec := s.do(http.MethodPost, "/api/admin/join-overrides",
		SetJoinOverrideRequest{Key: "Kim|9999", JoinDate: "2024-05-10"}, true)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/admin/login-overrides",
		SetLoginOverrideRequest{NameNorm: "kim", Real4: "5678", Login4: "9999"}, true)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/admin/overrides", nil, true)
	s.Require().Equal(http.StatusOK, rec.Code)
	resp := decodeBody[OverridesResponse](s, rec)
	s.Equal(map[string]string{"kim|9999": "2024-05-10"}, resp.JoinOverrides)
	s.Equal(map[string]string{"kim|5678": "9999"}, resp.LoginOverrides)

	rec = s.do(http.MethodPost, "/api/admin/join-overrides/clear", ClearJoinOverrideRequest{Key: "kim|9999"}, true)
	s.Require().Equal(http.StatusOK, rec.Code)
	rec = s.do(http.MethodPost, "/api/admin/login-overrides/clear", ClearLoginOverrideRequest{NameNorm: "kim", Real4: "5678"}, true)
	s.Require().Equal(http.StatusOK, rec.Code)

	snap := s.overrides.Snapshot(context.Background())
	s.Empty(snap.Join)
	s.Empty(snap.Login)
}

func (s *HandlerSuite) TestOverride_InvalidInput() {
	rec := s.do(http.MethodPost, "/api/admin/join-overrides",
		SetJoinOverrideRequest{Key: "kim|9999", JoinDate: "10/05/2024"}, true)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("invalid_input", decodeBody[ErrorResponse](s, rec).Code)

	rec = s.do(http.MethodPost, "/api/admin/login-overrides",
		SetLoginOverrideRequest{NameNorm: "kim", Real4: "5678", Login4: "99"}, true)
	s.Equal(http.StatusBadRequest, rec.Code)
}

// =============================================================================
// OPS
// =============================================================================

func (s *HandlerSuite) TestHealth() {
	rec := s.do(http.MethodGet, "/health", nil, false)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(HealthResponse{Status: "ok", CookieLoaded: true, CenterIDLoaded: true}, decodeBody[HealthResponse](s, rec))

	s.cookie = false
	rec = s.do(http.MethodGet, "/health", nil, false)
	s.Equal(HealthResponse{Status: "degraded", CookieLoaded: false, CenterIDLoaded: true}, decodeBody[HealthResponse](s, rec))
}

func (s *HandlerSuite) TestSourceCheck() {
	s.probe.res = deliverycenter.ProbeResult{Fetched: 10, Kept: 8, Duration: 1500 * time.Millisecond}

	rec := s.do(http.MethodGet, "/api/admin/source-check", nil, true)

	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(SourceCheckResponse{OK: true, Fetched: 10, Kept: 8, DurationMS: 1500}, decodeBody[SourceCheckResponse](s, rec))
}

func (s *HandlerSuite) TestSourceCheck_ReportsClassification() {
	s.probe.err = &generic.FetchError{Op: "riders", Kind: generic.ErrAuthExpired, StatusCode: 401}

	rec := s.do(http.MethodGet, "/api/admin/source-check", nil, true)

	s.Equal(http.StatusServiceUnavailable, rec.Code)
	resp := decodeBody[SourceCheckResponse](s, rec)
	s.False(resp.OK)
	s.Equal("auth_expired", resp.Code)
	s.Contains(resp.Error, "status 401")
}

// =============================================================================
// ROUTER OPTIONS
// =============================================================================

func TestRouter_EmptyAdminKeyAdmitsNobody(t *testing.T) {
	h := NewHandler(&fakeEvaluator{}, nil, nil, nil)
	router := NewRouter(h, RouterOptions{Gate: APIKeyGate("X-Admin-Key", "")})

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req.Header.Set("X-Admin-Key", "")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_MetricsRoute(t *testing.T) {
	h := NewHandler(&fakeEvaluator{}, nil, nil, nil)
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("grade_up 1\n"))
	})
	router := NewRouter(h, RouterOptions{Metrics: metrics})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "grade_up 1\n", rec.Body.String())
}

func TestRouter_LookupRateLimited(t *testing.T) {
	ev := &fakeEvaluator{lookup: func(string, string) (*grade.Evaluation, error) {
		e := sampleEvaluation()
		return &e, nil
	}}
	clock := generic.NewManualClock(time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))
	router := NewRouter(NewHandler(ev, nil, nil, nil), RouterOptions{Limiter: NewRateLimiter(time.Minute, 2, clock)})

	post := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/lookup", bytes.NewBufferString(`{"name":"Kim","login4":"5678"}`))
		req.Header.Set("X-Real-IP", ip)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, post("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, post("10.0.0.1").Code)

	rec := post("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// other clients are unaffected
	assert.Equal(t, http.StatusOK, post("10.0.0.2").Code)

	// the window slides
	clock.Advance(time.Minute + time.Second)
	assert.Equal(t, http.StatusOK, post("10.0.0.1").Code)
}
