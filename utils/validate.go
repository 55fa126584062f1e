package utils

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// maxTTLSeconds keeps created_at + ttl within time.Duration range
const maxTTLSeconds = int64(math.MaxInt64 / int64(time.Second))

// IsValidContent reports whether v is a string with non-whitespace content
func IsValidContent(v interface{}) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) != ""
}

// ParsePositiveInt interprets an optional JSON value as an integer >= 1.
// nil is valid and yields nil. Integral floats such as 2.0 are accepted;
// fractions, strings and booleans are not.
func ParsePositiveInt(v interface{}) (*int, bool) {
	if v == nil {
		return nil, true
	}

	var n int64
	switch val := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(string(val), 10, 64); err == nil {
			n = i
		} else {
			f, err := strconv.ParseFloat(string(val), 64)
			if err != nil || !isIntegral(f) {
				return nil, false
			}
			n = int64(f)
		}
	case float64:
		if !isIntegral(val) {
			return nil, false
		}
		n = int64(val)
	case int:
		n = int64(val)
	case int64:
		n = val
	default:
		return nil, false
	}

	if n < 1 || int64(int(n)) != n {
		return nil, false
	}
	out := int(n)
	return &out, true
}

func isIntegral(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f) && f == math.Trunc(f) &&
		f >= math.MinInt64 && f < math.MaxInt64
}

// IsValidTTL reports whether v is absent or an integer >= 1 that fits a
// time.Duration in seconds.
func IsValidTTL(v interface{}) bool {
	n, ok := ParsePositiveInt(v)
	if !ok {
		return false
	}
	return n == nil || int64(*n) <= maxTTLSeconds
}

// IsValidMaxViews reports whether v is absent or an integer >= 1
func IsValidMaxViews(v interface{}) bool {
	_, ok := ParsePositiveInt(v)
	return ok
}
