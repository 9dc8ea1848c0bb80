package dbus

import (
	"math"

	"github.com/godbus/dbus/v5"
)

// Variant extraction helpers. Each returns false when the value cannot be
// represented as the requested type without loss.

func unwrap(v dbus.Variant) interface{} {
	val := v.Value()
	// some players nest a variant inside a variant
	if inner, ok := val.(dbus.Variant); ok {
		return inner.Value()
	}
	return val
}

// ExtractString extracts a string from a variant. Object paths are accepted.
func ExtractString(v dbus.Variant) (string, bool) {
	switch val := unwrap(v).(type) {
	case string:
		return val, true
	case dbus.ObjectPath:
		return string(val), true
	}
	return "", false
}

// ExtractBool extracts a bool from a variant.
func ExtractBool(v dbus.Variant) (bool, bool) {
	val, ok := unwrap(v).(bool)
	return val, ok
}

// ExtractInt64 extracts an int64 from a variant, widening smaller integers and
// reinterpreting unsigned 64-bit values that fit.
func ExtractInt64(v dbus.Variant) (int64, bool) {
	switch val := unwrap(v).(type) {
	case int64:
		return val, true
	case uint64:
		if val > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	case int32:
		return int64(val), true
	case uint32:
		return int64(val), true
	case int16:
		return int64(val), true
	case uint16:
		return int64(val), true
	case byte:
		return int64(val), true
	}
	return 0, false
}

// ExtractInt32 extracts an int32 from a variant, narrowing wider integers in range.
func ExtractInt32(v dbus.Variant) (int32, bool) {
	n, ok := ExtractInt64(v)
	if !ok {
		// uint64 beyond MaxInt64 is already out of int32 range
		return 0, false
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, false
	}
	return int32(n), true
}

// ExtractFloat64 extracts a float64 from a variant. Integers are widened.
func ExtractFloat64(v dbus.Variant) (float64, bool) {
	if f, ok := unwrap(v).(float64); ok {
		return f, true
	}
	if n, ok := ExtractInt64(v); ok {
		return float64(n), true
	}
	return 0, false
}

// ExtractStringList extracts a list of strings from a variant. A lone string
// becomes a one-element list.
func ExtractStringList(v dbus.Variant) ([]string, bool) {
	switch val := unwrap(v).(type) {
	case []string:
		return val, true
	case string:
		return []string{val}, true
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case []dbus.Variant:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := ExtractString(item)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

// ExtractVariantMap extracts a map[string]dbus.Variant from a variant.
func ExtractVariantMap(v dbus.Variant) (map[string]dbus.Variant, bool) {
	val, ok := unwrap(v).(map[string]dbus.Variant)
	return val, ok
}
