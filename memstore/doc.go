/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

// Package memstore provides the in-memory tier of the cache: a bounded LRU store with O(1) lookup,
// promotion and eviction, count- and age-driven trimming, and Prometheus metrics.
//
// Entries live in an arena of nodes linked by integer handles instead of pointers,
// so the recency list never owns its elements and relinking never allocates.
package memstore
