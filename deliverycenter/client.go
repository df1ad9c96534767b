package deliverycenter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/warp/grade-engine/generic"
)

const (
	// DefaultTimeout bounds every upstream call.
	DefaultTimeout = 15 * time.Second

	DefaultBaseURL = "https://api-deliverycenter.baemin.com"

	ridersPath         = "/rider"
	deliveryStatusPath = "/management/rider-delivery-status"

	tracerName = "github.com/warp/grade-engine/deliverycenter"
)

// API is what the cache needs from the delivery center.
type API interface {
	// Riders returns the full roster, unfiltered.
	Riders(ctx context.Context) ([]Worker, error)

	// DeliveryStatus returns one page of completion rows for r. Pages start at 0.
	// An empty page means there are no more pages.
	DeliveryStatus(ctx context.Context, r generic.Range, page, size int) ([]CompletionRow, error)
}

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL    string
	CenterID   string
	Origin     string
	Referer    string
	UserAgent  string
	Timeout    time.Duration
	HTTPClient HTTPDoer
	Headers    HeaderProvider
	Metrics    *Metrics
	Logger     *slog.Logger
}

// Client talks to the delivery center over HTTP.
type Client struct {
	baseURL   string
	centerID  string
	origin    string
	referer   string
	userAgent string
	timeout   time.Duration
	http      HTTPDoer
	headers   HeaderProvider
	metrics   *Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(prometheus.NewRegistry())
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		centerID:  cfg.CenterID,
		origin:    cfg.Origin,
		referer:   cfg.Referer,
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
		http:      cfg.HTTPClient,
		headers:   cfg.Headers,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		tracer:    otel.Tracer(tracerName),
	}
}

// Riders fetches the roster with every filter left blank.
func (c *Client) Riders(ctx context.Context) ([]Worker, error) {
	ctx, span := c.tracer.Start(ctx, "deliverycenter.Riders")
	defer span.End()

	q := url.Values{}
	for _, k := range []string{"name", "userId", "phoneNumber", "accountStatus", "orderName", "orderBy"} {
		q.Set(k, "")
	}

	body, fetchID, err := c.getJSON(ctx, "riders", ridersPath, q)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	payload, err := decodeRosterPayload(body)
	if err != nil {
		err = c.parseFailure("riders", fetchID, err)
		recordSpanError(span, err)
		return nil, err
	}
	if payload.workers == nil {
		payload.workers = []Worker{}
	}
	span.SetAttributes(
		attribute.String("roster.shape", payload.shape.String()),
		attribute.Int("roster.size", len(payload.workers)),
	)
	c.logger.DebugContext(ctx, "roster fetched",
		"fetch_id", fetchID, "shape", payload.shape.String(), "workers", len(payload.workers))
	return payload.workers, nil
}

// DeliveryStatus fetches one page of completion rows.
func (c *Client) DeliveryStatus(ctx context.Context, r generic.Range, page, size int) ([]CompletionRow, error) {
	ctx, span := c.tracer.Start(ctx, "deliverycenter.DeliveryStatus", trace.WithAttributes(
		attribute.String("range.from", r.From.String()),
		attribute.String("range.to", r.To.String()),
		attribute.Int("page", page),
	))
	defer span.End()

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	q.Set("fromDate", r.From.String())
	q.Set("toDate", r.To.String())

	body, fetchID, err := c.getJSON(ctx, "delivery-status", deliveryStatusPath, q)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	rows, err := decodeStatusPage(body)
	if err != nil {
		err = c.parseFailure("delivery-status", fetchID, err)
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("rows", len(rows)))
	return rows, nil
}

// getJSON performs one GET and classifies failures. It returns the raw
// body of a successful response.
func (c *Client) getJSON(ctx context.Context, op, path string, q url.Values) ([]byte, string, error) {
	fetchID := uuid.NewString()
	start := time.Now()
	defer func() {
		c.metrics.RequestDurationSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fetchID, c.fail(op, &generic.FetchError{Op: op, FetchID: fetchID, Kind: generic.ErrFetchFailure, Err: err})
	}

	if c.headers == nil {
		return nil, fetchID, c.fail(op, &generic.FetchError{Op: op, FetchID: fetchID, Kind: generic.ErrAuthExpired, Err: ErrNoCredentials})
	}
	creds, err := c.headers.Headers(ctx)
	if err != nil {
		return nil, fetchID, c.fail(op, &generic.FetchError{Op: op, FetchID: fetchID, Kind: generic.ErrAuthExpired, Err: err})
	}
	for k, vs := range creds {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.centerID != "" {
		req.Header.Set("Center-Id", c.centerID)
	}
	if c.origin != "" {
		req.Header.Set("Origin", c.origin)
	}
	if c.referer != "" {
		req.Header.Set("Referer", c.referer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		timeout := errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded
		return nil, fetchID, c.fail(op, &generic.FetchError{Op: op, FetchID: fetchID, Timeout: timeout, Kind: generic.ErrFetchFailure, Err: err})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		timeout := errors.Is(err, context.DeadlineExceeded)
		return nil, fetchID, c.fail(op, &generic.FetchError{Op: op, FetchID: fetchID, StatusCode: resp.StatusCode, Timeout: timeout, Kind: generic.ErrFetchFailure, Err: err})
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fetchID, c.fail(op, &generic.FetchError{Op: op, FetchID: fetchID, StatusCode: resp.StatusCode, Kind: generic.ErrAuthExpired})
	case resp.StatusCode >= 400:
		return nil, fetchID, c.fail(op, &generic.FetchError{
			Op: op, FetchID: fetchID, StatusCode: resp.StatusCode, Kind: generic.ErrFetchFailure,
			Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, head(body, 200)),
		})
	}

	c.metrics.RequestsTotal.WithLabelValues(op, "ok").Inc()
	return body, fetchID, nil
}

func (c *Client) parseFailure(op, fetchID string, err error) error {
	return c.fail(op, &generic.FetchError{Op: op, FetchID: fetchID, StatusCode: http.StatusOK, Kind: generic.ErrFetchFailure, Err: err})
}

// fail records and logs a classified failure.
func (c *Client) fail(op string, fe *generic.FetchError) error {
	outcome := "failed"
	level := slog.LevelWarn
	if errors.Is(fe.Kind, generic.ErrAuthExpired) {
		outcome = "auth_expired"
		level = slog.LevelError
	}
	c.metrics.RequestsTotal.WithLabelValues(op, outcome).Inc()
	c.logger.Log(context.Background(), level, "delivery center call failed",
		"op", op, "fetch_id", fe.FetchID, "status", fe.StatusCode, "timeout", fe.Timeout, "err", fe)
	return fe
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func head(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
