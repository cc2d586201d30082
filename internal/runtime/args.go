package runtime

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/user/tasktalk/internal/types"
)

// Args is the loosely typed argument map a tool receives. Values come from
// JSON (numbers decode as float64) or from Go callers, so the accessors
// coerce between the representations a caller is likely to send.
type Args map[string]any

// Has reports whether key is present with a non-null value.
func (a Args) Has(key string) bool {
	v, ok := a[key]
	return ok && v != nil
}

// String returns the value for key as a string. ok is false when the key is
// missing or null.
func (a Args) String(key string) (string, bool, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", false, nil
	}
	switch s := v.(type) {
	case string:
		return s, true, nil
	case json.Number:
		return s.String(), true, nil
	case float64, int, int64, bool:
		return fmt.Sprint(s), true, nil
	}
	return "", true, Invalid("%s must be a string", key)
}

// Int64 returns the value for key as an integer.
func (a Args) Int64(key string) (int64, bool, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case int:
		return int64(n), true, nil
	case int64:
		return n, true, nil
	case types.TaskID:
		return int64(n), true, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, true, Invalid("%s must be an integer", key)
		}
		return int64(n), true, nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, true, Invalid("%s must be an integer", key)
		}
		return i, true, nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, true, Invalid("%s must be an integer", key)
		}
		return i, true, nil
	}
	return 0, true, Invalid("%s must be an integer", key)
}

// Bool returns the value for key as a boolean.
func (a Args) Bool(key string) (bool, bool, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return false, false, nil
	}
	switch b := v.(type) {
	case bool:
		return b, true, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, true, Invalid("%s must be a boolean", key)
		}
		return parsed, true, nil
	}
	return false, true, Invalid("%s must be a boolean", key)
}
