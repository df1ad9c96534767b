package deliverycenter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/warp/grade-engine/generic"
)

// ErrNoCredentials means no usable cookie could be found. The client
// reports it as generic.ErrAuthExpired: only an operator can fix it.
var ErrNoCredentials = errors.New("no delivery center credentials available")

// HeaderProvider supplies the opaque credential headers sent with every
// call. How the cookie is obtained or refreshed is outside this package.
type HeaderProvider interface {
	Headers(ctx context.Context) (http.Header, error)
}

// StaticHeaders sends one fixed cookie.
type StaticHeaders struct {
	Cookie string
}

func (s StaticHeaders) Headers(_ context.Context) (http.Header, error) {
	c := strings.TrimSpace(s.Cookie)
	if c == "" {
		return nil, ErrNoCredentials
	}
	h := make(http.Header)
	h.Set("Cookie", c)
	return h, nil
}

// CookieJarFile reads a browser cookie export (a JSON array of
// {name, value, expires, domain}) and builds a Cookie header from the
// cookies that have not expired. If the file is missing or yields nothing
// it falls back to FallbackCookie.
type CookieJarFile struct {
	Path           string
	FallbackCookie string
	Clock          generic.Clock
}

type jarCookie struct {
	Name    string   `json:"name"`
	Value   string   `json:"value"`
	Expires *float64 `json:"expires"`
	Domain  string   `json:"domain"`
}

func (j CookieJarFile) Headers(ctx context.Context) (http.Header, error) {
	header, err := j.cookieHeader()
	if err != nil {
		return nil, err
	}
	if header == "" {
		return StaticHeaders{Cookie: j.FallbackCookie}.Headers(ctx)
	}
	h := make(http.Header)
	h.Set("Cookie", header)
	return h, nil
}

// Available reports whether Headers would succeed, for health checks.
func (j CookieJarFile) Available(ctx context.Context) bool {
	_, err := j.Headers(ctx)
	return err == nil
}

func (j CookieJarFile) cookieHeader() (string, error) {
	if j.Path == "" {
		return "", nil
	}
	raw, err := os.ReadFile(j.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read cookie file: %w", err)
	}

	var cookies []jarCookie
	if err := json.Unmarshal(raw, &cookies); err != nil {
		return "", fmt.Errorf("parse cookie file %s: %w", j.Path, err)
	}

	clock := j.Clock
	if clock == nil {
		clock = generic.SystemClock{}
	}
	now := float64(clock.Now().UnixNano()) / float64(time.Second)

	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		// expires == -1 marks a session cookie
		if c.Expires != nil && *c.Expires != -1 && *c.Expires < now {
			continue
		}
		if c.Name == "" || c.Value == "" {
			continue
		}
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; "), nil
}
