// internal/rules/fieldpath.go
package rules

import (
	"strings"

	"github.com/solatis/listingkeeper/internal/types"
)

/*
 * Field path resolution for product records.
 *
 * Resolves dotted paths ("supplier.price") through nested maps. Missing
 * segments, traversal into scalars or lists, and paths deeper than
 * MaxPathDepth all resolve to (nil, false). Resolution never fails: every
 * consumer treats "not found" as a valid empty value.
 *
 * Key functions:
 *   - Resolve: walks a record following a dotted path
 *   - splitPath: splits once at compile time so evaluation skips re-parsing
 *   - resolveSegments: walks pre-split segments
 *
 * Nested objects arrive as map[string]any from JSON/YAML decoding and as
 * types.Record when built in Go; both are walked.
 */

// Resolve returns the value at path and whether every segment was found.
// A field present with a nil value reports found=true.
func Resolve(record types.Record, path string) (any, bool) {
	return resolveSegments(record, splitPath(path))
}

// splitPath splits a dotted path into segments.
// An empty path has no segments and never resolves.
func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// resolveSegments walks nested maps following segments.
func resolveSegments(record types.Record, segments []string) (any, bool) {
	if len(segments) == 0 || len(segments) > types.MaxPathDepth {
		return nil, false
	}

	var current any = record
	for _, seg := range segments {
		switch m := current.(type) {
		case types.Record:
			v, ok := m[seg]
			if !ok {
				return nil, false
			}
			current = v
		case map[string]any:
			v, ok := m[seg]
			if !ok {
				return nil, false
			}
			current = v
		default:
			// Scalar, list or nil at an intermediate position
			return nil, false
		}
	}
	return current, true
}
