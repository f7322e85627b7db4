package rules

import "time"

// Settings are the values a rule attaches to a capability.
type Settings map[string]interface{}

func get[T any](s Settings, k string) (T, bool) {
	var zero T

	val, found := s[k]
	if !found {
		return zero, false
	}

	t, ok := val.(T)
	return t, ok
}

func (s Settings) String(k string) (string, bool) {
	return get[string](s, k)
}

func (s Settings) Boolean(k string) (bool, bool) {
	return get[bool](s, k)
}

func (s Settings) Int(k string) (int, bool) {
	return get[int](s, k)
}

func (s Settings) Float(k string) (float64, bool) {
	return get[float64](s, k)
}

// Duration accepts either a Go duration string or a whole number of milliseconds.
func (s Settings) Duration(k string) (time.Duration, bool) {
	switch v := s[k].(type) {
	case time.Duration:
		return v, true
	case int:
		return time.Duration(v) * time.Millisecond, true
	case string:
		d, err := time.ParseDuration(v)
		return d, err == nil
	default:
		return 0, false
	}
}

// Map converts the settings for use as capability enumeration parameters.
func (s Settings) Map() map[string]any {
	m := make(map[string]any, len(s))

	for k, v := range s {
		m[k] = v
	}

	return m
}
