package implcaps

import (
	"errors"
	"fmt"
)

var ErrMissingParameter = errors.New("missing config parameter")

func Get[T any](m map[string]any, k string, def T) T {
	if v, ok := m[k]; ok {
		if cV, ok := v.(T); ok {
			return cV
		}
	}

	return def
}

// Require returns the value of k, failing if it is absent or of the wrong type.
func Require[T any](m map[string]any, k string) (T, error) {
	if v, ok := m[k]; ok {
		if cV, ok := v.(T); ok {
			return cV, nil
		}
	}

	var zero T
	return zero, fmt.Errorf("%w: %s", ErrMissingParameter, k)
}
