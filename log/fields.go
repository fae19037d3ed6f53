/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package log

import "github.com/ssgreg/logf"

// Field holds a key and a typed value of a structured log entry.
type Field = logf.Field

// Generic field constructors.
var (
	Error    = logf.Error
	String   = logf.String
	Bytes    = logf.Bytes
	Int      = logf.Int
	Int64    = logf.Int64
	Bool     = logf.Bool
	Duration = logf.Duration
)

// Key returns a field with the key of a cache entry.
func Key(key string) Field {
	return logf.String("key", key)
}

// Path returns a field with a filesystem path of a store, a blob or a manifest.
func Path(path string) Field {
	return logf.String("path", path)
}

// Tier returns a field naming the cache tier ("memory" or "disk").
func Tier(tier string) Field {
	return logf.String("tier", tier)
}
