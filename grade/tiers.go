/*
tiers.go - Default rider tier ladder

PURPOSE:
  The tier thresholds riders are graded against. A rider's count of
  completed deliveries in a period maps to the highest tier whose minimum
  it reaches.

LADDER:
  unranked (무등급)     0
  R5                  480
  R4                  720
  R3                  960
  R2                 1200
  R1                 1440   (top, unbounded)

  Boundaries: 479 is unranked, 480 is R5, 1440 and above is R1.

SEE ALSO:
  - generic/ladder.go: tier lookup and next-tier projection
  - factory/ladder.go: parses this JSON or a replacement file
*/
package grade

import (
	"github.com/warp/grade-engine/factory"
	"github.com/warp/grade-engine/generic"
)

// DefaultLadderJSON is the shipped ladder.
const DefaultLadderJSON = `{
  "tiers": [
    {"id": "unranked", "label": "무등급", "min": 0},
    {"id": "R5", "label": "R5", "min": 480},
    {"id": "R4", "label": "R4", "min": 720},
    {"id": "R3", "label": "R3", "min": 960},
    {"id": "R2", "label": "R2", "min": 1200},
    {"id": "R1", "label": "R1", "min": 1440}
  ]
}`

// DefaultLadder parses DefaultLadderJSON.
func DefaultLadder() generic.Ladder {
	return factory.MustParseLadder(DefaultLadderJSON)
}
