package dispatch

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/d2verb/scenebridge/internal/host"
)

// Params holds a command's decoded parameters.
type Params map[string]any

func (p Params) has(key string) bool {
	v, ok := p[key]
	return ok && v != nil
}

func (p Params) requireString(key string) (string, error) {
	if !p.has(key) {
		return "", &ValidationError{Param: key, Reason: "required"}
	}
	s, ok := p[key].(string)
	if !ok {
		return "", &ValidationError{Param: key, Reason: "must be a string"}
	}
	if strings.TrimSpace(s) == "" {
		return "", &ValidationError{Param: key, Reason: "must not be empty"}
	}
	return s, nil
}

func (p Params) optString(key, def string) (string, error) {
	if !p.has(key) {
		return def, nil
	}
	s, ok := p[key].(string)
	if !ok {
		return "", &ValidationError{Param: key, Reason: "must be a string"}
	}
	return s, nil
}

func (p Params) optInt(key string, def int) (int, error) {
	if !p.has(key) {
		return def, nil
	}
	f, ok := toFloat(p[key])
	if !ok {
		return 0, &ValidationError{Param: key, Reason: "must be an integer"}
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, &ValidationError{Param: key, Reason: "must be an integer"}
	}
	return int(f), nil
}

func (p Params) optIntRange(key string, def, lo, hi int) (int, error) {
	v, err := p.optInt(key, def)
	if err != nil {
		return 0, err
	}
	if v < lo || v > hi {
		return 0, &ValidationError{Param: key, Reason: fmt.Sprintf("must be between %d and %d, got %d", lo, hi, v)}
	}
	return v, nil
}

func (p Params) optFloat(key string, def float64) (float64, error) {
	if !p.has(key) {
		return def, nil
	}
	f, ok := toFloat(p[key])
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &ValidationError{Param: key, Reason: "must be a number"}
	}
	return f, nil
}

func (p Params) optBool(key string) (*bool, error) {
	if !p.has(key) {
		return nil, nil
	}
	b, ok := p[key].(bool)
	if !ok {
		return nil, &ValidationError{Param: key, Reason: "must be a boolean"}
	}
	return &b, nil
}

func (p Params) optVec3(key string) (*host.Vec3, error) {
	if !p.has(key) {
		return nil, nil
	}
	nums, ok := toFloats(p[key])
	if !ok || len(nums) != 3 {
		return nil, &ValidationError{Param: key, Reason: "must be an array of 3 numbers"}
	}
	v := host.Vec3{nums[0], nums[1], nums[2]}
	return &v, nil
}

// optColor accepts [r, g, b] or [r, g, b, a] with components in [0, 1].
func (p Params) optColor(key string) (*host.Color, error) {
	if !p.has(key) {
		return nil, nil
	}
	nums, ok := toFloats(p[key])
	if !ok || (len(nums) != 3 && len(nums) != 4) {
		return nil, &ValidationError{Param: key, Reason: "must be an array of 3 or 4 numbers"}
	}
	c := host.Color{0, 0, 0, 1}
	for i, n := range nums {
		if n < 0 || n > 1 {
			return nil, &ValidationError{Param: key, Reason: "components must be between 0 and 1"}
		}
		c[i] = n
	}
	return &c, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toFloats(v any) ([]float64, bool) {
	switch arr := v.(type) {
	case []float64:
		return arr, true
	case []any:
		out := make([]float64, len(arr))
		for i, e := range arr {
			f, ok := toFloat(e)
			if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	default:
		return nil, false
	}
}
