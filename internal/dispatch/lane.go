/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

// Package dispatch provides a bounded background lane for asynchronous cache operations.
package dispatch

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"

	"github.com/acronis/go-cachekit/log"
)

// DefaultMaxConcurrency is used when a non-positive concurrency is passed to NewLane.
const DefaultMaxConcurrency = 8

// Lane runs submitted tasks in background goroutines, at most maxConcurrency at a time.
// Submitted tasks are never canceled: once accepted, a task runs to completion.
type Lane struct {
	sem     *semaphore.Weighted
	wg      sync.WaitGroup
	pending atomic.Int64
	logger  log.FieldLogger
}

// NewLane creates a new Lane.
func NewLane(maxConcurrency int, logger log.FieldLogger) *Lane {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	return &Lane{sem: semaphore.NewWeighted(int64(maxConcurrency)), logger: logger}
}

// Go submits the task. It never blocks the caller.
// A panic in the task is logged and does not crash the process.
func (l *Lane) Go(task func()) {
	l.pending.Inc()
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer l.pending.Dec()
		// Acquire with a background context never fails.
		_ = l.sem.Acquire(context.Background(), 1)
		defer l.sem.Release(1)
		defer func() {
			if p := recover(); p != nil {
				const logStackSize = 8192
				stack := make([]byte, logStackSize)
				stack = stack[:runtime.Stack(stack, false)]
				l.logger.Error(fmt.Sprintf("panic in background cache task: %+v", p), log.Bytes("stack", stack))
			}
		}()
		task()
	}()
}

// Pending returns the number of submitted tasks that are not finished yet.
func (l *Lane) Pending() int64 {
	return l.pending.Load()
}

// Wait blocks until all submitted tasks are finished.
func (l *Lane) Wait() {
	l.wg.Wait()
}
