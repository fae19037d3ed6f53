/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

// Package tieredcache combines an in-memory LRU tier with a persistent disk tier.
//
// Reads are served from memory when possible. A disk hit fills the memory tier.
// Writes go to both tiers: the memory write always succeeds while the disk write may fail,
// and a failed disk write does not roll back the memory one.
//
// Structured values can be stored with GetValue and SetValue, which encode them with a Codec
// (msgpack by default).
package tieredcache
