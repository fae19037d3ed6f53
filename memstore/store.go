/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package memstore

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/acronis/go-cachekit/internal/autotrim"
	"github.com/acronis/go-cachekit/log"
)

// Unbounded limits. A store configured with them never trims by the corresponding criterion.
const (
	NoCountLimit = math.MaxInt
	NoAgeLimit   = time.Duration(math.MaxInt64)
)

// DefaultAutoTrimInterval is used when Opts.AutoTrimInterval is zero.
const DefaultAutoTrimInterval = 5 * time.Second

// trimRetryInterval is a pause between attempts to grab the lock during incremental trimming.
const trimRetryInterval = 10 * time.Millisecond

// Opts represents options for the memory store.
type Opts struct {
	// CountLimit is a maximum number of entries. Zero or negative value means no limit.
	CountLimit int

	// AgeLimit is a maximum time since the last access of an entry.
	// It is enforced only by trimming (see TrimToAge and AutoTrimInterval). Zero or negative value means no limit.
	AgeLimit time.Duration

	// AutoTrimInterval is an interval of the background trimming against CountLimit and AgeLimit.
	// Negative value disables background trimming, zero means DefaultAutoTrimInterval.
	AutoTrimInterval time.Duration

	// RemoveAllOnMemoryPressure makes HandleMemoryPressure clear the store.
	RemoveAllOnMemoryPressure bool

	// RemoveAllOnBackground makes HandleBackground clear the store.
	RemoveAllOnBackground bool

	// MetricsCollector is used to collect statistics about store usage. Nil disables metrics.
	MetricsCollector MetricsCollector

	// Logger is used by background trimming. Nil means disabled logging.
	Logger log.FieldLogger
}

// Store is an in-memory LRU store. All public methods are safe for concurrent use.
// Every operation is a single critical section, none of them does any I/O.
type Store[V any] struct {
	mu         sync.Mutex
	list       *lruList[V]
	countLimit int
	ageLimit   time.Duration

	removeAllOnMemoryPressure bool
	removeAllOnBackground     bool

	metricsCollector MetricsCollector
	trimmer          *autotrim.Trimmer
	now              func() time.Time
}

// New creates a new Store without limits and background trimming.
func New[V any]() *Store[V] {
	return NewWithOpts[V](Opts{AutoTrimInterval: -1})
}

// NewWithOpts creates a new Store with the provided options.
func NewWithOpts[V any](opts Opts) *Store[V] {
	if opts.CountLimit <= 0 {
		opts.CountLimit = NoCountLimit
	}
	if opts.AgeLimit <= 0 {
		opts.AgeLimit = NoAgeLimit
	}
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = disabledMetrics{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	s := &Store[V]{
		list:                      newLRUList[V](),
		countLimit:                opts.CountLimit,
		ageLimit:                  opts.AgeLimit,
		removeAllOnMemoryPressure: opts.RemoveAllOnMemoryPressure,
		removeAllOnBackground:     opts.RemoveAllOnBackground,
		metricsCollector:          opts.MetricsCollector,
		now:                       time.Now,
	}
	if opts.AutoTrimInterval >= 0 {
		interval := opts.AutoTrimInterval
		if interval == 0 {
			interval = DefaultAutoTrimInterval
		}
		s.trimmer = autotrim.Start(s, interval, func(_ context.Context, st *Store[V]) {
			st.autoTrim()
		}, opts.Logger.With(log.Tier("memory")))
	}
	return s
}

// Close stops background trimming. The store stays usable.
func (s *Store[V]) Close() {
	if s.trimmer != nil {
		s.trimmer.Stop()
	}
}

// Get returns a value by the provided key and makes the entry the most recently used one.
func (s *Store[V]) Get(key string) (value V, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, hit := s.list.lookup(key)
	if !hit {
		s.metricsCollector.IncMisses()
		return value, false
	}
	n := s.list.at(h)
	n.lastTouched = s.now()
	s.list.bringToHead(h)
	s.metricsCollector.IncHits()
	return n.value, true
}

// Set adds or replaces a value by the provided key.
// If the store exceeds its count limit, the least recently used entries are evicted before Set returns.
func (s *Store[V]) Set(key string, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if h, ok := s.list.lookup(key); ok {
		n := s.list.at(h)
		n.value = value
		n.lastTouched = now
		s.list.bringToHead(h)
		s.evictOverLimitLocked()
		return
	}

	s.insertLocked(key, value, now)
}

// Add stores the value only if the key is absent. It returns false if the key is already present.
func (s *Store[V]) Add(key string, value V) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.list.lookup(key); ok {
		return false
	}
	s.insertLocked(key, value, s.now())
	return true
}

func (s *Store[V]) insertLocked(key string, value V, now time.Time) {
	s.list.insertAtHead(key, value, now)
	s.evictOverLimitLocked()
}

// evictOverLimitLocked drops least recently used entries until the count limit holds.
func (s *Store[V]) evictOverLimitLocked() {
	evicted := 0
	for s.list.len() > s.countLimit {
		if _, ok := s.list.removeTail(); !ok {
			break
		}
		evicted++
	}
	s.metricsCollector.SetAmount(s.list.len())
	if evicted > 0 {
		s.metricsCollector.AddEvictions(evicted)
	}
}

// Remove removes a value by the provided key. It returns false if there was nothing to remove.
func (s *Store[V]) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.list.lookup(key)
	if !ok {
		return false
	}
	s.list.remove(h)
	s.metricsCollector.SetAmount(s.list.len())
	return true
}

// RemoveAll clears the store.
// Removed entries are not counted as evictions.
func (s *Store[V]) RemoveAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.list.removeAll()
	s.metricsCollector.SetAmount(0)
}

// ContainsKey reports whether the key is present. It does not affect the recency order.
func (s *Store[V]) ContainsKey(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.list.lookup(key)
	return ok
}

// Count returns the number of entries in the store.
func (s *Store[V]) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.len()
}

// Keys returns all keys ordered from the most to the least recently used one.
func (s *Store[V]) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.keys()
}

// CountLimit returns the current count limit.
func (s *Store[V]) CountLimit() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLimit
}

// SetCountLimit changes the count limit. Zero or negative value means no limit.
// Least recently used entries above the new limit are evicted immediately.
func (s *Store[V]) SetCountLimit(n int) {
	if n <= 0 {
		n = NoCountLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countLimit = n
	s.evictOverLimitLocked()
}

// AgeLimit returns the current age limit.
func (s *Store[V]) AgeLimit() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ageLimit
}

// SetAgeLimit changes the age limit. Zero or negative value means no limit.
func (s *Store[V]) SetAgeLimit(d time.Duration) {
	if d <= 0 {
		d = NoAgeLimit
	}
	s.mu.Lock()
	s.ageLimit = d
	s.mu.Unlock()
}

// TrimToCount evicts the least recently used entries until at most n entries remain.
// Zero or negative n clears the store.
// The lock is re-acquired for every evicted entry, so foreground operations are never blocked for the whole pass.
func (s *Store[V]) TrimToCount(n int) {
	if n <= 0 {
		s.RemoveAll()
		return
	}
	s.trimIncrementally(func() bool {
		return s.list.len() > n
	})
}

// TrimToAge evicts entries which were not accessed during the last d.
// Zero or negative d clears the store.
// Since the list is ordered by recency, only the tail is inspected.
func (s *Store[V]) TrimToAge(d time.Duration) {
	if d <= 0 {
		s.RemoveAll()
		return
	}
	threshold := s.now().Add(-d)
	s.trimIncrementally(func() bool {
		touched, ok := s.list.tailTouched()
		return ok && touched.Before(threshold)
	})
}

// HandleMemoryPressure should be called by the host application on a low-memory signal.
func (s *Store[V]) HandleMemoryPressure() {
	if s.removeAllOnMemoryPressure {
		s.RemoveAll()
	}
}

// HandleBackground should be called by the host application when it goes to background.
func (s *Store[V]) HandleBackground() {
	if s.removeAllOnBackground {
		s.RemoveAll()
	}
}

// trimIncrementally evicts the tail while shouldEvict holds. shouldEvict is called under the lock.
func (s *Store[V]) trimIncrementally(shouldEvict func() bool) {
	s.mu.Lock()
	needed := shouldEvict()
	s.mu.Unlock()
	if !needed {
		return
	}

	b := backoff.NewConstantBackOff(trimRetryInterval)
	evicted := 0
	for {
		if !s.mu.TryLock() {
			time.Sleep(b.NextBackOff())
			continue
		}
		done := true
		if shouldEvict() {
			if _, ok := s.list.removeTail(); ok {
				evicted++
				done = false
			}
		}
		if done {
			s.metricsCollector.SetAmount(s.list.len())
		}
		s.mu.Unlock()
		if done {
			break
		}
	}
	if evicted > 0 {
		s.metricsCollector.AddEvictions(evicted)
	}
}

func (s *Store[V]) autoTrim() {
	s.mu.Lock()
	countLimit, ageLimit := s.countLimit, s.ageLimit
	s.mu.Unlock()

	if countLimit != NoCountLimit {
		s.TrimToCount(countLimit)
	}
	if ageLimit != NoAgeLimit {
		s.TrimToAge(ageLimit)
	}
}
