package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// normalizeIDs returns ids sorted ascending without duplicates, never nil
func normalizeIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedMapKeys(values map[int64]int64) []int64 {
	keys := make([]int64, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func decodeLoose(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return v, nil
}

// decodeIDSet accepts only a JSON array of integers
func decodeIDSet(data []byte) ([]int64, error) {
	v, err := decodeLoose(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a JSON list, got %s", ErrMalformed, jsonKind(v))
	}
	ids := make([]int64, 0, len(list))
	for i, item := range list {
		n, ok := item.(json.Number)
		if !ok {
			return nil, fmt.Errorf("%w: element %d is %s, not an integer", ErrMalformed, i, jsonKind(item))
		}
		id, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrMalformed, i, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// decodeIDMap accepts a JSON object of "<id>": <unix seconds>.
// Entries whose key or value is not an integer are dropped and reported with ErrPartial.
func decodeIDMap(data []byte) (map[int64]int64, error) {
	v, err := decodeLoose(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a JSON object, got %s", ErrMalformed, jsonKind(v))
	}
	out := make(map[int64]int64, len(obj))
	for k, raw := range obj {
		id, err := strconv.ParseInt(strings.TrimSpace(k), 10, 64)
		if err != nil {
			continue
		}
		ts, ok := coerceInt(raw)
		if !ok {
			continue
		}
		out[id] = ts
	}
	if len(out) != len(obj) {
		return out, fmt.Errorf("%w: kept %d of %d entries", ErrPartial, len(out), len(obj))
	}
	return out, nil
}

func coerceInt(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, true
		}
		f, err := t.Float64()
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return int64(f), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "a list"
	case map[string]any:
		return "an object"
	case string:
		return "a string"
	case json.Number:
		return "a number"
	case bool:
		return "a boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func encodeIDSet(ids []int64) []byte {
	data, _ := json.MarshalIndent(normalizeIDs(ids), "", "  ")
	return append(data, '\n')
}

// encodeIDMap writes keys in numeric order so repeated saves are byte-identical
func encodeIDMap(values map[int64]int64) []byte {
	if len(values) == 0 {
		return []byte("{}\n")
	}
	var buf bytes.Buffer
	buf.WriteString("{\n")
	keys := sortedMapKeys(values)
	for i, k := range keys {
		fmt.Fprintf(&buf, "  %q: %d", strconv.FormatInt(k, 10), values[k])
		if i < len(keys)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	return buf.Bytes()
}

func splitLines(text string) []string {
	if text == "" {
		return []string{}
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
