package deliverycenter

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// =============================================================================
// CONTRACT RULES - Which roster records are ended contracts
// =============================================================================

// ContractRules decides which workers are excluded from every roster read.
// A worker is excluded when its status code contains any CodeMarker
// (case-insensitive), or when its description contains every word of at
// least one DescriptionMarkers group.
type ContractRules struct {
	CodeMarkers        []string   `yaml:"code_markers"`
	DescriptionMarkers [][]string `yaml:"description_markers"`
	// KnownCodes are codes that are expected and kept. Any other code that
	// is not excluded gets flagged once.
	KnownCodes []string `yaml:"known_codes"`
}

func DefaultContractRules() ContractRules {
	return ContractRules{
		CodeMarkers:        []string{"END", "TERMIN", "EXPIRE"},
		DescriptionMarkers: [][]string{{"계약", "종료"}},
		KnownCodes:         []string{"UNDER_CONTRACT"},
	}
}

// Excludes reports whether status marks an ended contract.
func (r ContractRules) Excludes(status AccountStatus) bool {
	code := strings.ToUpper(status.Code)
	for _, m := range r.CodeMarkers {
		if m != "" && strings.Contains(code, strings.ToUpper(m)) {
			return true
		}
	}
	for _, group := range r.DescriptionMarkers {
		if len(group) > 0 && containsAll(status.Desc, group) {
			return true
		}
	}
	return false
}

func (r ContractRules) known(code string) bool {
	return slices.ContainsFunc(r.KnownCodes, func(k string) bool {
		return strings.EqualFold(k, code)
	})
}

func containsAll(s string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(s, w) {
			return false
		}
	}
	return true
}

// =============================================================================
// CONTRACT FILTER
// =============================================================================

// ContractFilter applies ContractRules to a roster and reports unknown
// status codes, once per code for the life of the filter.
type ContractFilter struct {
	rules   ContractRules
	flagged *sync.Map
	metrics *Metrics
	logger  *slog.Logger
}

func newContractFilter(rules ContractRules, flagged *sync.Map, metrics *Metrics, logger *slog.Logger) *ContractFilter {
	return &ContractFilter{rules: rules, flagged: flagged, metrics: metrics, logger: logger}
}

// Apply returns the workers that are not excluded, in roster order.
func (f *ContractFilter) Apply(ctx context.Context, workers []Worker) []Worker {
	kept := make([]Worker, 0, len(workers))
	excluded := 0
	for _, w := range workers {
		if f.rules.Excludes(w.Status) {
			excluded++
			continue
		}
		f.flagUnknown(ctx, w.Status)
		kept = append(kept, w)
	}
	f.metrics.ExcludedWorkers.Set(float64(excluded))
	return kept
}

func (f *ContractFilter) flagUnknown(ctx context.Context, status AccountStatus) {
	if status.Code == "" || f.rules.known(status.Code) {
		return
	}
	f.metrics.UnknownStatusTotal.WithLabelValues(status.Code).Inc()
	if _, seen := f.flagged.LoadOrStore(status.Code, struct{}{}); seen {
		return
	}
	f.logger.WarnContext(ctx, "unknown account status code kept in roster",
		"code", status.Code, "desc", status.Desc)
}
