/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

// Package diskstore provides the persistent tier of the cache.
//
// The store directory contains the SQLite manifest (manifest.sqlite with its -wal and -shm files),
// the DATA directory with blob files of large payloads and the TRASH directory with
// quarantined blob directories waiting for deletion.
//
// Data operations never return errors: failures are logged and reported as a miss or as false.
package diskstore
