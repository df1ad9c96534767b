package deliverycenter

import (
	"bytes"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
)

// =============================================================================
// ROSTER PAYLOAD - Array or envelope, resolved once here
// =============================================================================

type payloadShape int

const (
	shapeArray payloadShape = iota
	shapeEnvelope
)

func (s payloadShape) String() string {
	if s == shapeArray {
		return "array"
	}
	return "envelope"
}

// rosterPayload is the tagged union of the two roster shapes the platform
// answers with. Nothing past the client sees the shape.
type rosterPayload struct {
	shape   payloadShape
	workers []Worker
}

type rosterEnvelope struct {
	Items []Worker `json:"items"`
	Data  []Worker `json:"data"`
}

var errUnexpectedShape = errors.New("unexpected payload shape")

func decodeRosterPayload(body []byte) (rosterPayload, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return rosterPayload{}, fmt.Errorf("%w: empty body", errUnexpectedShape)
	}

	switch trimmed[0] {
	case '[':
		var workers []Worker
		if err := json.Unmarshal(trimmed, &workers); err != nil {
			return rosterPayload{}, fmt.Errorf("decode roster array: %w", err)
		}
		return rosterPayload{shape: shapeArray, workers: workers}, nil

	case '{':
		var env rosterEnvelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return rosterPayload{}, fmt.Errorf("decode roster envelope: %w", err)
		}
		workers := env.Items
		if len(workers) == 0 {
			workers = env.Data
		}
		return rosterPayload{shape: shapeEnvelope, workers: workers}, nil

	default:
		return rosterPayload{}, fmt.Errorf("%w: starts with %q", errUnexpectedShape, trimmed[0])
	}
}

// =============================================================================
// DELIVERY STATUS PAGE
// =============================================================================

type statusPage struct {
	Data []CompletionRow `json:"data"`
}

func decodeStatusPage(body []byte) ([]CompletionRow, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: delivery status page is not an object", errUnexpectedShape)
	}
	var page statusPage
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, fmt.Errorf("decode delivery status page: %w", err)
	}
	return page.Data, nil
}
