package grade

import (
	"context"
	"fmt"
	"strings"

	"github.com/warp/grade-engine/deliverycenter"
	"github.com/warp/grade-engine/generic"
)

// OverrideSnapshot is a point-in-time copy of both override maps.
type OverrideSnapshot struct {
	// Join maps nameNorm|loginSuffix to YYYY-MM-DD.
	Join map[string]string `json:"join_overrides"`
	// Login maps nameNorm|realSuffix to a 4-digit login suffix.
	Login map[string]string `json:"login_overrides"`
}

// OverrideService owns the admin edits. Each map has its own lock, so a
// join edit never waits on a login edit.
type OverrideService struct {
	join  *generic.OverrideMap
	login *generic.OverrideMap
}

func NewOverrideService(join, login *generic.OverrideMap) *OverrideService {
	return &OverrideService{join: join, login: login}
}

// Snapshot copies both maps.
func (s *OverrideService) Snapshot(ctx context.Context) OverrideSnapshot {
	return OverrideSnapshot{Join: s.join.Snapshot(ctx), Login: s.login.Snapshot(ctx)}
}

// Resolver takes one snapshot for the duration of a request.
func (s *OverrideService) Resolver(ctx context.Context) *IdentityResolver {
	return NewIdentityResolver(s.Snapshot(ctx))
}

// SetJoinOverride stores date under key (name|loginSuffix).
func (s *OverrideService) SetJoinOverride(ctx context.Context, key, date string) error {
	k, err := parseKey(key)
	if err != nil {
		return err
	}
	date = strings.TrimSpace(date)
	d, err := generic.ParseDate(date)
	if err != nil {
		return generic.NewInvalidInput("join_date", date, "expected YYYY-MM-DD")
	}
	if err := s.join.Set(ctx, k, d.String()); err != nil {
		return fmt.Errorf("set join override: %w", err)
	}
	return nil
}

func (s *OverrideService) ClearJoinOverride(ctx context.Context, key string) error {
	k, err := parseKey(key)
	if err != nil {
		return err
	}
	if err := s.join.Clear(ctx, k); err != nil {
		return fmt.Errorf("clear join override: %w", err)
	}
	return nil
}

// SetLoginOverride makes loginSuffix the credential for the rider with the
// given name and real suffix.
func (s *OverrideService) SetLoginOverride(ctx context.Context, name, realSuffix, loginSuffix string) error {
	k, err := buildKey(name, realSuffix, "real4")
	if err != nil {
		return err
	}
	loginSuffix = strings.TrimSpace(loginSuffix)
	if !deliverycenter.IsFourDigits(loginSuffix) {
		return generic.NewInvalidInput("login4", loginSuffix, "expected 4 digits")
	}
	if err := s.login.Set(ctx, k, loginSuffix); err != nil {
		return fmt.Errorf("set login override: %w", err)
	}
	return nil
}

func (s *OverrideService) ClearLoginOverride(ctx context.Context, name, realSuffix string) error {
	k, err := buildKey(name, realSuffix, "real4")
	if err != nil {
		return err
	}
	if err := s.login.Clear(ctx, k); err != nil {
		return fmt.Errorf("clear login override: %w", err)
	}
	return nil
}

// parseKey accepts "name|1234" and re-normalizes the name part, so a
// display name with spaces lands on the same key.
func parseKey(key string) (string, error) {
	name, suffix, ok := strings.Cut(strings.TrimSpace(key), "|")
	if !ok {
		return "", generic.NewInvalidInput("key", key, "expected name|1234")
	}
	return buildKey(name, suffix, "key")
}

func buildKey(name, suffix, field string) (string, error) {
	n := deliverycenter.NormalizeName(name)
	if n == "" {
		return "", generic.NewInvalidInput("name", name, "must not be empty")
	}
	suffix = strings.TrimSpace(suffix)
	if !deliverycenter.IsFourDigits(suffix) {
		return "", generic.NewInvalidInput(field, suffix, "expected 4 digits")
	}
	return deliverycenter.Key(n, suffix), nil
}
