package store

import (
	"strings"
)

// RedisKey identifies one Redis structure of the store.
type RedisKey struct {
	// Namespace separates independent pools sharing a Redis database (may be empty).
	Namespace string

	// Name is the structure name (e.g., "items")
	Name string
}

// String generates a deterministic key string.
// Format: jokepool[:namespace]:name
//
// Example:
//
//	jokepool:staging:items
func (k RedisKey) String() string {
	parts := []string{"jokepool"}

	if ns := strings.Trim(k.Namespace, ":"); ns != "" {
		parts = append(parts, ns)
	}
	if name := strings.Trim(k.Name, ":"); name != "" {
		parts = append(parts, name)
	}

	return strings.Join(parts, ":")
}
