package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/roach88/cadence/internal/ir"
)

// ErrUnsupportedShape is returned for JSON that matches no delta shape.
var ErrUnsupportedShape = errors.New("expected object with 'additions' or '@graph', or an array of triples")

// ParseDelta parses one delta. Empty input yields no triples.
func ParseDelta(data []byte) ([]ir.RawTriple, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	v, err := decode(data)
	if err != nil {
		return nil, err
	}
	return parseValue(v)
}

func decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("parse delta JSON: %w", err)
	}
	return v, nil
}

func parseValue(v any) ([]ir.RawTriple, error) {
	switch val := v.(type) {
	case map[string]any:
		if additions, ok := val["additions"]; ok {
			return parseTripleArray(additions)
		}
		if graph, ok := val["@graph"]; ok {
			return parseGraph(graph)
		}
	case []any:
		return parseTripleArray(val)
	}
	return nil, ErrUnsupportedShape
}

func parseTripleArray(v any) ([]ir.RawTriple, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected array of triples, got %T", v)
	}
	triples := make([]ir.RawTriple, 0, len(arr))
	for i, item := range arr {
		t, err := parseTriple(item)
		if err != nil {
			return nil, fmt.Errorf("triple %d: %w", i, err)
		}
		triples = append(triples, t)
	}
	return triples, nil
}

func parseTriple(v any) (ir.RawTriple, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return ir.RawTriple{}, fmt.Errorf("expected object, got %T", v)
	}

	s, ok := stringField(obj, "s", "subject")
	if !ok {
		return ir.RawTriple{}, errors.New("missing 's' or 'subject' field")
	}
	p, ok := stringField(obj, "p", "predicate")
	if !ok {
		return ir.RawTriple{}, errors.New("missing 'p' or 'predicate' field")
	}
	o, ok := scalarField(obj, "o", "object")
	if !ok {
		return ir.RawTriple{}, errors.New("missing 'o' or 'object' field")
	}

	t := ir.RawTriple{Subject: s, Predicate: p, Object: o}
	if g, ok := stringField(obj, "g", "graph"); ok {
		t.Graph = &g
	}
	return t, nil
}

// parseGraph expands JSON-LD nodes into one triple per scalar property.
// Properties are visited in key order; nested objects are skipped.
func parseGraph(v any) ([]ir.RawTriple, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected array in @graph, got %T", v)
	}

	var triples []ir.RawTriple
	for i, item := range arr {
		node, ok := item.(map[string]any)
		if !ok {
			continue
		}
		subject, ok := stringField(node, "@id", "subject")
		if !ok {
			return nil, fmt.Errorf("@graph[%d]: missing subject/@id", i)
		}

		keys := make([]string, 0, len(node))
		for k := range node {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		for _, k := range keys {
			if k == "@id" || k == "@type" || k == "@context" || k == "subject" {
				continue
			}
			var object string
			if node[k] == nil {
				object = "null"
			} else if o, ok := scalar(node[k]); ok {
				object = o
			} else {
				continue
			}
			triples = append(triples, ir.RawTriple{Subject: subject, Predicate: k, Object: object})
		}
	}
	return triples, nil
}

func stringField(obj map[string]any, short, long string) (string, bool) {
	for _, k := range []string{short, long} {
		if s, ok := obj[k].(string); ok {
			return s, true
		}
	}
	return "", false
}

func scalarField(obj map[string]any, short, long string) (string, bool) {
	for _, k := range []string{short, long} {
		if v, present := obj[k]; present {
			if s, ok := scalar(v); ok {
				return s, true
			}
		}
	}
	return "", false
}

func scalar(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case bool:
		if val {
			return "true", true
		}
		return "false", true
	}
	return "", false
}

// Envelope addresses a delta to a domain and cycle.
type Envelope struct {
	Domain  int
	Cycle   uint64
	Triples []ir.RawTriple
}

type envelopeJSON struct {
	Domain int             `json:"domain"`
	Cycle  uint64          `json:"cycle"`
	Delta  json.RawMessage `json:"delta"`
}

// ParseEnvelopes parses a delta file.
//
// The file is either {"deltas": [{"domain": 0, "cycle": 0, "delta": ...}]}
// where each delta uses any accepted shape, or a single bare delta, which
// is addressed to domain 0, cycle 0.
func ParseEnvelopes(data []byte) ([]Envelope, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var wrapper struct {
		Deltas []envelopeJSON `json:"deltas"`
	}
	if data[0] == '{' {
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("parse delta file: %w", err)
		}
	}
	if wrapper.Deltas == nil {
		triples, err := ParseDelta(data)
		if err != nil {
			return nil, err
		}
		return []Envelope{{Triples: triples}}, nil
	}

	out := make([]Envelope, 0, len(wrapper.Deltas))
	for i, e := range wrapper.Deltas {
		triples, err := ParseDelta(e.Delta)
		if err != nil {
			return nil, fmt.Errorf("deltas[%d]: %w", i, err)
		}
		out = append(out, Envelope{Domain: e.Domain, Cycle: e.Cycle, Triples: triples})
	}
	return out, nil
}

// LoadEnvelopes reads and parses a delta file.
func LoadEnvelopes(path string) ([]Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read delta file: %w", err)
	}
	return ParseEnvelopes(data)
}

// Chunk splits triples into runs of at most size. The scheduler admits at
// most ir.MaxRunLen triples per delta.
func Chunk(triples []ir.RawTriple, size int) [][]ir.RawTriple {
	if size < 1 {
		size = ir.MaxRunLen
	}
	var out [][]ir.RawTriple
	for len(triples) > 0 {
		n := min(size, len(triples))
		out = append(out, triples[:n:n])
		triples = triples[n:]
	}
	return out
}
