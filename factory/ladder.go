/*
Package factory provides JSON to Go tier ladder conversion.

PURPOSE:
  Converts JSON tier definitions into generic.Ladder values so the
  thresholds can change without a code change. grade.DefaultLadderJSON is
  the shipped ladder; an operator may point evaluation.ladder_file at a
  replacement.

JSON SCHEMA:
  {
    "tiers": [
      {"id": "unranked", "label": "무등급", "min": 0},
      {"id": "R5", "label": "R5", "min": 480},
      {"id": "R1", "label": "R1", "min": 1440}
    ]
  }

VALIDATION:
  - at least two tiers
  - the first tier starts at 0
  - mins strictly ascending
  - ids non-empty and unique
  - a missing label defaults to the id

USAGE:
  f := factory.NewLadderFactory()
  ladder, err := f.ParseLadder(grade.DefaultLadderJSON)

SEE ALSO:
  - generic/ladder.go: Ladder type and tier lookup
  - grade/tiers.go: default ladder
*/
package factory

import (
	"fmt"
	"os"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/warp/grade-engine/generic"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// LadderJSON is the JSON representation of a tier ladder.
type LadderJSON struct {
	Tiers []TierJSON `json:"tiers"`
}

// TierJSON is one rung.
type TierJSON struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
	Min   int    `json:"min"`
}

// =============================================================================
// FACTORY
// =============================================================================

// LadderFactory creates ladders from JSON.
type LadderFactory struct{}

func NewLadderFactory() *LadderFactory {
	return &LadderFactory{}
}

// ParseLadder parses a JSON string into a Ladder.
func (f *LadderFactory) ParseLadder(jsonStr string) (generic.Ladder, error) {
	var lj LadderJSON
	if err := json.Unmarshal([]byte(jsonStr), &lj); err != nil {
		return generic.Ladder{}, fmt.Errorf("failed to parse ladder JSON: %w", err)
	}
	return f.FromJSON(lj)
}

// LoadFile reads and parses a ladder file.
func (f *LadderFactory) LoadFile(path string) (generic.Ladder, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return generic.Ladder{}, fmt.Errorf("read ladder file: %w", err)
	}
	ladder, err := f.ParseLadder(string(raw))
	if err != nil {
		return generic.Ladder{}, fmt.Errorf("%s: %w", path, err)
	}
	return ladder, nil
}

// FromJSON converts a LadderJSON into a validated Ladder.
func (f *LadderFactory) FromJSON(lj LadderJSON) (generic.Ladder, error) {
	tiers := make([]generic.Tier, 0, len(lj.Tiers))
	for _, tj := range lj.Tiers {
		id := strings.TrimSpace(tj.ID)
		label := strings.TrimSpace(tj.Label)
		if label == "" {
			label = id
		}
		tiers = append(tiers, generic.Tier{ID: id, Label: label, Min: tj.Min})
	}
	return generic.NewLadder(tiers)
}

// ToJSON converts a Ladder back to its JSON representation.
func (f *LadderFactory) ToJSON(l generic.Ladder) LadderJSON {
	tiers := l.Tiers()
	lj := LadderJSON{Tiers: make([]TierJSON, 0, len(tiers))}
	for _, t := range tiers {
		lj.Tiers = append(lj.Tiers, TierJSON{ID: t.ID, Label: t.Label, Min: t.Min})
	}
	return lj
}

// MustParseLadder panics on an invalid ladder. For compiled-in ladders only.
func MustParseLadder(jsonStr string) generic.Ladder {
	l, err := NewLadderFactory().ParseLadder(jsonStr)
	if err != nil {
		panic(err)
	}
	return l
}
