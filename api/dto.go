/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  evaluation types from the wire contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Response wrappers

TYPES:
  Lookup:     LookupRequest, EvaluationDTO, WindowDTO, TierDTO, NextTierDTO
  Dashboard:  DashboardResponse
  Overrides:  SetJoinOverrideRequest, ClearJoinOverrideRequest,
              SetLoginOverrideRequest, ClearLoginOverrideRequest,
              OverridesResponse
  Ops:        HealthResponse, SourceCheckResponse, ErrorResponse

VALIDATION:
  Validation is done in the grade package, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
  - grade/evaluation.go: Evaluation type
*/
package api

import (
	"github.com/warp/grade-engine/generic"
	"github.com/warp/grade-engine/grade"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// LookupRequest is the public lookup form.
type LookupRequest struct {
	Name   string `json:"name"`
	Login4 string `json:"login4"`
}

type SetJoinOverrideRequest struct {
	Key      string `json:"key"` // name|login4
	JoinDate string `json:"join_date"`
}

type ClearJoinOverrideRequest struct {
	Key string `json:"key"`
}

type SetLoginOverrideRequest struct {
	NameNorm string `json:"name_norm"`
	Real4    string `json:"real4"`
	Login4   string `json:"login4"`
}

type ClearLoginOverrideRequest struct {
	NameNorm string `json:"name_norm"`
	Real4    string `json:"real4"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// TierDTO is one ladder rung.
type TierDTO struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Min   int    `json:"min"`
}

type NextTierDTO struct {
	Tier      TierDTO `json:"tier"`
	Remaining int     `json:"remaining"`
}

// WindowDTO is one evaluated period. PeriodEnd is inclusive; APITo is the
// last day that was counted.
type WindowDTO struct {
	PeriodStart string  `json:"period_start"`
	PeriodEnd   string  `json:"period_end"`
	APIFrom     string  `json:"api_from"`
	APITo       string  `json:"api_to"`
	Completed   int     `json:"completed"`
	Tier        TierDTO `json:"tier"`
}

// EvaluationDTO is the evaluation of one rider.
type EvaluationDTO struct {
	Name             string `json:"name"`
	Phone            string `json:"phone"` // masked
	PlatformJoinDate string `json:"platform_join_date,omitempty"`

	NameNorm    string `json:"name_norm"`
	Real4       string `json:"real4"`
	Login4      string `json:"login4"`
	LoginSource string `json:"login_source"`
	JoinKey     string `json:"join_key"`

	JoinDate   string `json:"join_date"`
	JoinSource string `json:"join_source"`

	Current  WindowDTO `json:"current"`
	Previous WindowDTO `json:"previous"`

	CurrentTier   TierDTO      `json:"current_tier"`
	ProjectedTier TierDTO      `json:"projected_tier"`
	Next          *NextTierDTO `json:"next,omitempty"`
	Progress      string       `json:"progress"`
}

type DashboardResponse struct {
	Query  string          `json:"query,omitempty"`
	Count  int             `json:"count"`
	Riders []EvaluationDTO `json:"riders"`
}

type OverridesResponse struct {
	JoinOverrides  map[string]string `json:"join_overrides"`
	LoginOverrides map[string]string `json:"login_overrides"`
}

type HealthResponse struct {
	Status         string `json:"status"`
	CookieLoaded   bool   `json:"cookie_loaded"`
	CenterIDLoaded bool   `json:"center_id_loaded"`
}

type SourceCheckResponse struct {
	OK         bool   `json:"ok"`
	Fetched    int    `json:"fetched"`
	Kept       int    `json:"kept"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
	Code       string `json:"code,omitempty"`
}

// StatusResponse acknowledges a mutation.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toTierDTO(t generic.Tier) TierDTO {
	return TierDTO{ID: t.ID, Label: t.Label, Min: t.Min}
}

func toWindowDTO(w grade.WindowResult) WindowDTO {
	return WindowDTO{
		PeriodStart: w.Window.Period.Start.String(),
		PeriodEnd:   w.Window.Period.End.String(),
		APIFrom:     w.Window.API.From.String(),
		APITo:       w.Window.API.To.String(),
		Completed:   w.Count,
		Tier:        toTierDTO(w.Tier),
	}
}

func toEvaluationDTO(ev grade.Evaluation) EvaluationDTO {
	dto := EvaluationDTO{
		Name:             ev.Name,
		Phone:            ev.MaskedPhone,
		PlatformJoinDate: ev.PlatformJoinDate,
		NameNorm:         ev.Identity.NameKey,
		Real4:            ev.Identity.RealSuffix,
		Login4:           ev.Identity.LoginSuffix,
		LoginSource:      string(ev.Identity.LoginSource),
		JoinKey:          ev.Identity.LoginKey(),
		JoinDate:         ev.JoinDate.String(),
		JoinSource:       string(ev.JoinSource),
		Current:          toWindowDTO(ev.Current),
		Previous:         toWindowDTO(ev.Previous),
		CurrentTier:      toTierDTO(ev.CurrentTier),
		ProjectedTier:    toTierDTO(ev.ProjectedTier),
		Progress:         ev.Progress.StringFixed(4),
	}
	if ev.Next != nil {
		dto.Next = &NextTierDTO{Tier: toTierDTO(ev.Next.Tier), Remaining: ev.Next.Remaining}
	}
	return dto
}
