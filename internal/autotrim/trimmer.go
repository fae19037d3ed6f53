/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

// Package autotrim runs periodic self-trimming of cache stores.
package autotrim

import (
	"context"
	"runtime"
	"sync"
	"time"
	"weak"

	"go.uber.org/atomic"

	"github.com/acronis/go-cachekit/log"
	"github.com/acronis/go-cachekit/service"
)

// Trimmer is a handle of a running periodic trimming task.
type Trimmer struct {
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	passes   atomic.Int64
}

// Start runs trim for target every interval in a separate goroutine.
// The next pass is scheduled only after the previous one has finished.
//
// The task holds only a weak reference to target: once target becomes unreachable,
// the task stops instead of keeping it alive. Stop cancels the task explicitly.
func Start[T any](target *T, interval time.Duration, trim func(ctx context.Context, target *T), logger log.FieldLogger) *Trimmer {
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &Trimmer{cancel: cancel, done: make(chan struct{})}

	ref := weak.Make(target)
	worker := service.WorkerFunc(func(ctx context.Context) error {
		strong := ref.Value()
		if strong == nil {
			return service.ErrPeriodicWorkerStop
		}
		trim(ctx, strong)
		t.passes.Inc()
		return nil
	})
	pw := service.NewPeriodicWorkerWithOpts(worker, interval, logger, service.PeriodicWorkerOpts{
		Name:         "autotrim",
		InitialDelay: interval,
	})

	runtime.AddCleanup(target, func(cancel context.CancelFunc) { cancel() }, cancel)

	go func() {
		defer close(t.done)
		_ = pw.Run(ctx)
	}()
	return t
}

// Stop cancels the task and waits until the current pass (if any) is finished.
func (t *Trimmer) Stop() {
	t.stopOnce.Do(func() {
		t.cancel()
		<-t.done
	})
}

// Passes returns the number of completed trimming passes.
func (t *Trimmer) Passes() int64 {
	return t.passes.Load()
}
