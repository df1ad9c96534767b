// Package deliverycenter is the boundary to the external delivery center
// API: it fetches the rider roster and completion counts, turns the loosely
// shaped responses into canonical types, filters ended contracts and caches
// both queries with a TTL.
package deliverycenter

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// AccountStatus is the contract status as the platform reports it, e.g.
// {"code": "UNDER_CONTRACT", "desc": "계약중"}.
type AccountStatus struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
}

// Worker is one roster record. It is read-only to the engine and lives only
// inside a cache entry.
type Worker struct {
	Name        string        `json:"name"`
	Phone       string        `json:"phoneNumber"`
	Status      AccountStatus `json:"accountStatus"`
	CreatedDate string        `json:"createdDate"`
}

// NameKey is the normalized name.
func (w Worker) NameKey() string { return NormalizeName(w.Name) }

// RealSuffix is the last four digits of the phone number, "" if none.
func (w Worker) RealSuffix() string { return LastFour(w.Phone) }

// RealKey is the key the completion aggregate is indexed by.
func (w Worker) RealKey() string { return Key(w.NameKey(), w.RealSuffix()) }

// CreatedDay returns the first 10 characters of CreatedDate, "" when the
// value is too short to hold a date.
func (w Worker) CreatedDay() string {
	s := strings.TrimSpace(w.CreatedDate)
	if len(s) < 10 {
		return ""
	}
	return s[:10]
}

// CompletionRow is one row of a delivery-status page.
type CompletionRow struct {
	Name     string `json:"name"`
	Phone    string `json:"phoneNumber"`
	Accepted struct {
		Complete int `json:"complete"`
	} `json:"deliveryAcceptanceCount"`
}

// RealKey is the key this row is accumulated under.
func (r CompletionRow) RealKey() string { return Key(NormalizeName(r.Name), LastFour(r.Phone)) }

// =============================================================================
// IDENTITY KEYS
// =============================================================================

var lastFourRe = regexp.MustCompile(`(\d{4})$`)

// NormalizeName composes the name (NFC, so decomposed Hangul matches its
// composed form), drops every whitespace rune and lowercases it.
func NormalizeName(name string) string {
	s := norm.NFC.String(name)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// LastFour returns the trailing four digits of a phone-like string.
// Spaces anywhere are ignored; anything else after the digits yields "".
func LastFour(phone string) string {
	s := strings.TrimRightFunc(strings.ReplaceAll(phone, " ", ""), unicode.IsSpace)
	m := lastFourRe.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}

// Key joins a normalized name and a suffix.
func Key(nameKey, suffix string) string {
	return nameKey + "|" + suffix
}

// IsFourDigits reports whether s is exactly four ASCII digits.
func IsFourDigits(s string) bool {
	if len(s) != 4 {
		return false
	}
	for i := 0; i < 4; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
