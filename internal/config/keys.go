package config

import (
	"strings"
)

// secretSuffixes mark dot-separated keys whose values are masked when listed.
var secretSuffixes = []string{"api_key", "jwt_secret", "token", "storage.url"}

// IsSecretKey reports whether key holds a credential.
func IsSecretKey(key string) bool {
	for _, suffix := range secretSuffixes {
		if key == suffix || strings.HasSuffix(key, "."+suffix) {
			return true
		}
	}
	return false
}

// Flatten turns {"llm": {"model": "x"}} into {"llm.model": "x"}. Empty
// nested maps produce no keys.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			if child, ok := v.(map[string]any); ok {
				walk(prefix+k+".", child)
				continue
			}
			out[prefix+k] = v
		}
	}
	walk("", m)
	return out
}

// Unflatten is the inverse of Flatten. A scalar sitting where a nested key
// needs a map is replaced by the map.
func Unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range flat {
		setPath(out, strings.Split(k, "."), v)
	}
	return out
}

func setPath(m map[string]any, path []string, v any) {
	if len(path) == 1 {
		m[path[0]] = v
		return
	}
	child, ok := m[path[0]].(map[string]any)
	if !ok {
		child = make(map[string]any)
		m[path[0]] = child
	}
	setPath(child, path[1:], v)
}

// MaskSecrets copies flat, replacing non-empty secret strings with "***"
// followed by their last four characters.
func MaskSecrets(flat map[string]any) map[string]any {
	out := make(map[string]any, len(flat))
	for k, v := range flat {
		out[k] = v
		if s, ok := v.(string); ok && s != "" && IsSecretKey(k) {
			out[k] = mask(s)
		}
	}
	return out
}

func mask(s string) string {
	if len(s) > 4 {
		s = s[len(s)-4:]
	}
	return "***" + s
}
