package legacy

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Bool accepts booleans, numbers (non-zero is true) and the strings
// true/false/yes/no/1/0 in any case. Anything else yields def.
func Bool(v any, def bool) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "1":
			return true
		case "false", "no", "0":
			return false
		}
		return def
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return def
}

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// Number accepts numeric values and numeric strings. Commas are read as
// decimal separators and trailing garbage after a leading number is ignored,
// so "19,95 €" is 19.95. Unparsable, NaN and infinite values yield def.
func Number(v any, def float64) float64 {
	if s, ok := v.(string); ok {
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
		m := leadingNumber.FindString(s)
		if m == "" {
			return def
		}
		f, err := strconv.ParseFloat(m, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return def
		}
		return f
	}
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

var leadingInt = regexp.MustCompile(`^[+-]?\d+`)

// Int truncates numbers and parses the leading integer of strings.
func Int(v any, def int) int {
	if s, ok := v.(string); ok {
		m := leadingInt.FindString(strings.TrimSpace(s))
		if m == "" {
			return def
		}
		n, err := strconv.Atoi(m)
		if err != nil {
			return def
		}
		return n
	}
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return int(f)
}

// String renders strings and numbers as text. Other values are rejected.
func String(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	}
	return "", false
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}
