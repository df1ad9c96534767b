package grade

import (
	"regexp"
	"strings"

	"github.com/warp/grade-engine/deliverycenter"
	"github.com/warp/grade-engine/generic"
)

// =============================================================================
// SOURCES - Where a resolved value came from, always surfaced
// =============================================================================

// LoginSource tells whether a login suffix is the phone's own or an admin's.
type LoginSource string

const (
	LoginFromPhone    LoginSource = "real"
	LoginFromOverride LoginSource = "override"
)

// JoinSource tells where an effective join date came from.
type JoinSource string

const (
	JoinFromOverride JoinSource = "override"
	JoinFromPlatform JoinSource = "platform"
	// JoinFallbackToday marks a rider with no usable join date; their
	// windows are anchored on the day of the request.
	JoinFallbackToday JoinSource = "fallback"
)

// =============================================================================
// IDENTITY
// =============================================================================

// Identity is a rider's two keys. RealSuffix indexes completion data,
// LoginSuffix is what the rider types in.
type Identity struct {
	NameKey     string
	RealSuffix  string
	LoginSuffix string
	LoginSource LoginSource
}

// Matchable is false for riders without a phone suffix: they can never
// log in or be overridden.
func (id Identity) Matchable() bool { return id.RealSuffix != "" }

func (id Identity) RealKey() string { return deliverycenter.Key(id.NameKey, id.RealSuffix) }

func (id Identity) LoginKey() string { return deliverycenter.Key(id.NameKey, id.LoginSuffix) }

// IdentityResolver resolves riders against one snapshot of both override
// maps, so every rider in a request sees the same overrides.
type IdentityResolver struct {
	logins map[string]string
	joins  map[string]string
}

// NewIdentityResolver builds a resolver over the given snapshot. Nil maps
// mean no overrides.
func NewIdentityResolver(snap OverrideSnapshot) *IdentityResolver {
	r := &IdentityResolver{logins: snap.Login, joins: snap.Join}
	if r.logins == nil {
		r.logins = map[string]string{}
	}
	if r.joins == nil {
		r.joins = map[string]string{}
	}
	return r
}

// ResolveLogin derives the rider's keys. An override only applies when it
// is exactly four digits.
func (r *IdentityResolver) ResolveLogin(w deliverycenter.Worker) Identity {
	id := Identity{NameKey: w.NameKey(), RealSuffix: w.RealSuffix(), LoginSource: LoginFromPhone}
	id.LoginSuffix = id.RealSuffix
	if !id.Matchable() {
		return id
	}
	if v, ok := r.logins[id.RealKey()]; ok {
		if v = strings.TrimSpace(v); deliverycenter.IsFourDigits(v) {
			id.LoginSuffix = v
			id.LoginSource = LoginFromOverride
		}
	}
	return id
}

// ResolveJoinDate returns the effective join date: an override under
// name|loginSuffix, else the platform's createdDate, else today. Malformed
// values fall through to the next source.
func (r *IdentityResolver) ResolveJoinDate(w deliverycenter.Worker, loginSuffix string, today generic.TimePoint) (generic.TimePoint, JoinSource) {
	if v, ok := r.joins[deliverycenter.Key(w.NameKey(), loginSuffix)]; ok {
		if d, err := generic.ParseDate(strings.TrimSpace(v)); err == nil {
			return d, JoinFromOverride
		}
	}
	if d, err := generic.ParseDate(w.CreatedDay()); err == nil {
		return d, JoinFromPlatform
	}
	return today, JoinFallbackToday
}

// =============================================================================
// DISPLAY
// =============================================================================

var phoneRe = regexp.MustCompile(`(\d{2,3})-?(\d{3,4})-?(\d{4})`)

// MaskPhone hides the middle group: 010-1234-5678 -> 010-****-5678.
// Strings that do not look like a phone number are returned unchanged.
func MaskPhone(phone string) string {
	m := phoneRe.FindStringSubmatch(phone)
	if m == nil {
		return phone
	}
	return m[1] + "-****-" + m[3]
}
