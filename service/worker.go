/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/acronis/go-cachekit/log"
)

// ErrPeriodicWorkerStop may be returned by the underlying worker to end the PeriodicWorker loop.
var ErrPeriodicWorkerStop = errors.New("stop periodic worker")

// Worker performs some (usually long-running) work until ctx is done.
type Worker interface {
	Run(ctx context.Context) error
}

// WorkerFunc is an adapter to allow the use of ordinary functions as Worker.
type WorkerFunc func(ctx context.Context) error

// Run implements Worker.
func (f WorkerFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// PeriodicWorker runs the underlying worker again and again with a delay between runs.
// The next run is scheduled only after the previous one returns, so runs never overlap.
type PeriodicWorker struct {
	worker     Worker
	logger     log.FieldLogger
	firstDelay time.Duration
	delay      time.Duration
	delayFunc  func(err error) time.Duration
}

// PeriodicWorkerOpts contains optional parameters for constructing PeriodicWorker.
type PeriodicWorkerOpts struct {
	// Name is added to every log entry of the worker.
	Name string

	// InitialDelay is a delay before the first run. Zero means the first run starts immediately.
	InitialDelay time.Duration

	// IntervalDelayFunc, if set, picks the delay after each run by its result.
	IntervalDelayFunc func(err error) time.Duration
}

// NewPeriodicWorker creates a new instance of PeriodicWorker with a constant delay.
func NewPeriodicWorker(worker Worker, intervalDelay time.Duration, logger log.FieldLogger) *PeriodicWorker {
	return NewPeriodicWorkerWithOpts(worker, intervalDelay, logger, PeriodicWorkerOpts{})
}

// NewPeriodicWorkerWithOpts is a more configurable version of NewPeriodicWorker.
func NewPeriodicWorkerWithOpts(
	worker Worker, intervalDelay time.Duration, logger log.FieldLogger, opts PeriodicWorkerOpts,
) *PeriodicWorker {
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	if opts.Name != "" {
		logger = logger.With(log.String("worker", opts.Name))
	}
	return &PeriodicWorker{
		worker:     worker,
		logger:     logger,
		firstDelay: opts.InitialDelay,
		delay:      intervalDelay,
		delayFunc:  opts.IntervalDelayFunc,
	}
}

// Run loops until ctx is done or the underlying worker returns ErrPeriodicWorkerStop.
// Other errors of the underlying worker are logged and do not stop the loop.
// A panic is logged with the stack trace and re-raised.
func (pw *PeriodicWorker) Run(ctx context.Context) error {
	defer func() {
		if p := recover(); p != nil {
			pw.logger.Error(fmt.Sprintf("panic in periodic worker: %+v", p), log.Bytes("stack", debug.Stack()))
			panic(p)
		}
		pw.logger.Debug("periodic worker stopped")
	}()

	pw.logger.Debug("running periodic worker",
		log.Duration("initial_delay", pw.firstDelay), log.Duration("interval_delay", pw.delay))

	timer := time.NewTimer(pw.firstDelay)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		err := pw.worker.Run(ctx)
		if errors.Is(err, ErrPeriodicWorkerStop) {
			return nil
		}
		if err != nil {
			pw.logger.Error("periodic worker run failed", log.Error(err))
		}
		timer.Reset(pw.nextDelay(err))
	}
}

func (pw *PeriodicWorker) nextDelay(err error) time.Duration {
	if pw.delayFunc != nil {
		return pw.delayFunc(err)
	}
	return pw.delay
}
