package credential

import (
	"encoding/json"
	"fmt"

	"devcred/internal/claims"
)

// Readers for untyped claim maps. Values may come straight from ToMap
// (int64, []string) or from a JSON decode (float64, []any).

func readFloat(m map[string]any, key string) (float64, error) {
	switch n := m[key].(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	default:
		return 0, fmt.Errorf("claim %s is missing or not numeric", key)
	}
}

func readInt(m map[string]any, key string) (int64, error) {
	switch n := m[key].(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("claim %s must be an integer", key)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	default:
		return 0, fmt.Errorf("claim %s is missing or not numeric", key)
	}
}

func readString(m map[string]any, key string) (string, error) {
	s, ok := m[key].(string)
	if !ok || s == "" {
		return "", fmt.Errorf("claim %s is missing or not a string", key)
	}
	return s, nil
}

func readOptionalString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func readStrings(m map[string]any, key string) ([]string, error) {
	switch v := m[key].(type) {
	case nil:
		return nil, nil
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("claim %s must be a list of strings", key)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("claim %s must be a list of strings", key)
	}
}

func readRange(m map[string]any, key string) (claims.RangeProof, error) {
	raw, ok := m[key].(map[string]any)
	if !ok {
		return claims.RangeProof{}, fmt.Errorf("claim %s is missing or not a range proof", key)
	}
	rp, err := claims.RangeProofFromMap(raw)
	if err != nil {
		return claims.RangeProof{}, fmt.Errorf("claim %s: %w", key, err)
	}
	return rp, nil
}

func readCommitment(m map[string]any, key string) (claims.Commitment, error) {
	s, ok := m[key].(string)
	if !ok {
		return "", fmt.Errorf("claim %s is missing", key)
	}
	c, err := claims.ParseCommitment(s)
	if err != nil {
		return "", fmt.Errorf("claim %s: %w", key, err)
	}
	return c, nil
}
