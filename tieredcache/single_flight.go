/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package tieredcache

import "sync"

type fillCall struct {
	wg    sync.WaitGroup
	value []byte
	ok    bool
}

// fillGroup deduplicates concurrent disk reads of the same key.
// Callers arriving while a read is in flight wait for it and share its result.
type fillGroup struct {
	mu    sync.Mutex
	calls map[string]*fillCall
}

func (g *fillGroup) Do(key string, fn func() ([]byte, bool)) (value []byte, ok bool, shared bool) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[string]*fillCall)
	}
	if c, inFlight := g.calls[key]; inFlight {
		g.mu.Unlock()
		c.wg.Wait()
		return c.value, c.ok, true
	}
	c := &fillCall{}
	c.wg.Add(1)
	g.calls[key] = c
	g.mu.Unlock()

	// Waiters are released (with a miss) even if fn panics.
	defer func() {
		g.mu.Lock()
		delete(g.calls, key)
		g.mu.Unlock()
		c.wg.Done()
	}()
	c.value, c.ok = fn()
	return c.value, c.ok, false
}

// removalEpoch orders disk-hit fills against removals. A fill captures the epoch before reading
// the disk tier and is applied only if no removal started since then.
type removalEpoch struct {
	mu    sync.Mutex
	epoch uint64
}

func (e *removalEpoch) current() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.epoch
}

// applyIfCurrent runs fn if the epoch is still the captured one.
func (e *removalEpoch) applyIfCurrent(epoch uint64, fn func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epoch != epoch {
		return false
	}
	fn()
	return true
}

// advance starts a new epoch and runs fn before any pending fill can be applied.
func (e *removalEpoch) advance(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.epoch++
	fn()
}
