package checkpoint

import (
	"encoding/json"
	"fmt"
)

// Normalize converts a stage output value into portable types before it
// crosses the persistence boundary: numbers become float64, structs and
// typed slices become generic maps and slices. Detector backends may
// hand back library-specific numeric types; none of them survive past
// this point.
func Normalize(v any) (any, error) {
	switch n := v.(type) {
	case nil, bool, string, float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalizing value of type %T: %w", v, err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("normalizing value of type %T: %w", v, err)
	}
	return out, nil
}

// NormalizeOutputs normalizes every value in a stage output map.
func NormalizeOutputs(outputs map[string]any) (map[string]any, error) {
	normalized := make(map[string]any, len(outputs))
	for k, v := range outputs {
		nv, err := Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		normalized[k] = nv
	}
	return normalized, nil
}
