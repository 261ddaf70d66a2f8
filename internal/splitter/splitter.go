// Package splitter partitions purge object lists into payload-bounded
// request bodies.
package splitter

import (
	"encoding/json"
)

type envelope struct {
	Objects []any `json:"objects"`
}

// Body is one serialized sub-request envelope.
type Body struct {
	// Payload is the serialized {"objects": [...]} envelope.
	Payload []byte

	// Objects are the identifiers carried by this body, in input order.
	Objects []any
}

// Split partitions objects into bodies whose serialized size stays under
// limit, preserving input order across the concatenated result. When a
// list is too large it is split at its midpoint and each half is split
// again, so the number of parts adapts to actual serialized size rather
// than object count. A single object that alone exceeds the limit is
// still emitted as its own body; it cannot be split further and must not
// be dropped.
func Split(objects []any, limit int) ([]Body, error) {
	if objects == nil {
		objects = []any{}
	}
	payload, err := json.Marshal(envelope{Objects: objects})
	if err != nil {
		return nil, err
	}

	if len(payload) < limit || len(objects) <= 1 {
		return []Body{{Payload: payload, Objects: objects}}, nil
	}

	mid := len(objects) / 2
	left, err := Split(objects[:mid], limit)
	if err != nil {
		return nil, err
	}
	right, err := Split(objects[mid:], limit)
	if err != nil {
		return nil, err
	}
	return append(left, right...), nil
}
