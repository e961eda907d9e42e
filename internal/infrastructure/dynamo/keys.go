package dynamo

import (
	"fmt"
	"strings"

	"github.com/go-blood-connect/internal/domain"
)

const keySep = "#"

var (
	keyEscaper   = strings.NewReplacer("%", "%25", keySep, "%23")
	keyUnescaper = strings.NewReplacer("%23", keySep, "%25", "%")
)

func escapeKey(s string) string   { return keyEscaper.Replace(s) }
func unescapeKey(s string) string { return keyUnescaper.Replace(s) }

// joinKey escapes every segment and joins them with the key separator, so a
// segment containing "#" can never shift the segments that follow it.
func joinKey(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = escapeKey(s)
	}
	return strings.Join(escaped, keySep)
}

// keyPrefix is joinKey with a trailing separator, for begins_with conditions
// that must not match a longer segment ("A#1" must not match "A#10").
func keyPrefix(segments ...string) string {
	return joinKey(segments...) + keySep
}

// parseKey splits key against pattern. Literal pattern entries must match the
// segment exactly; empty entries capture the unescaped segment.
func parseKey(key string, pattern ...string) ([]string, error) {
	parts := strings.Split(key, keySep)
	if len(parts) != len(pattern) {
		return nil, fmt.Errorf("malformed key %q: %w", key, domain.ErrBadRequest)
	}
	var values []string
	for i, p := range pattern {
		if p == "" {
			values = append(values, unescapeKey(parts[i]))
			continue
		}
		if parts[i] != p {
			return nil, fmt.Errorf("malformed key %q: %w", key, domain.ErrBadRequest)
		}
	}
	return values, nil
}

// requireKeyParts fails when any identity segment is empty.
func requireKeyParts(entity string, parts ...string) error {
	for _, p := range parts {
		if p == "" {
			return fmt.Errorf("%s key is incomplete: %w", entity, domain.ErrBadRequest)
		}
	}
	return nil
}
