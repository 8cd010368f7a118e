package gateway

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// Result is a decoded operation response. Numbers decoded from JSON are
// json.Number; the accessors below also accept float64, integers and
// numeric strings.
type Result map[string]any

// Int returns the named field as an integer.
func (r Result) Int(key string) (int64, bool) {
	v, ok := r[key]
	if !ok {
		return 0, false
	}
	return toInt(v)
}

// IntOr returns the named field as an integer, or def when absent or not numeric.
func (r Result) IntOr(key string, def int64) int64 {
	if n, ok := r.Int(key); ok {
		return n
	}
	return def
}

// String returns the named field as a string. Numbers are formatted.
func (r Result) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// Map returns the named field when it holds an object.
func (r Result) Map(key string) (Result, bool) {
	switch v := r[key].(type) {
	case map[string]any:
		return Result(v), true
	case Result:
		return v, true
	}
	return nil, false
}

// Has reports whether key is present.
func (r Result) Has(key string) bool {
	_, ok := r[key]
	return ok
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil || errors.Is(err, strconv.ErrRange) {
			return floatToInt(f)
		}
	case float64:
		return floatToInt(n)
	case int:
		return int64(n), true
	case int64:
		return n, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil || errors.Is(err, strconv.ErrRange) {
			return floatToInt(f)
		}
	}
	return 0, false
}

// floatToInt truncates f, saturating at the int64 bounds so a huge code keeps
// its sign.
func floatToInt(f float64) (int64, bool) {
	switch {
	case math.IsNaN(f):
		return 0, false
	case f >= math.MaxInt64:
		return math.MaxInt64, true
	case f <= math.MinInt64:
		return math.MinInt64, true
	}
	return int64(f), true
}
