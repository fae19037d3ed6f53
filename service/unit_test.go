/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/acronis/go-cachekit/log/logtest"
)

type mockUnit struct {
	name      string
	running   *atomic.Int32
	startErr  error
	stopErr   error
	stop      chan struct{}
	stopped   atomic.Bool
	graceful  atomic.Bool
	registers atomic.Int32
	unregs    atomic.Int32
}

func newMockUnit(name string, running *atomic.Int32) *mockUnit {
	return &mockUnit{name: name, running: running, stop: make(chan struct{})}
}

func (u *mockUnit) Start(fatalErr chan<- error) {
	if u.startErr != nil {
		fatalErr <- u.startErr
		return
	}
	u.running.Inc()
	<-u.stop
	u.running.Dec()
}

func (u *mockUnit) Stop(gracefully bool) error {
	if u.stopped.CompareAndSwap(false, true) {
		u.graceful.Store(gracefully)
		close(u.stop)
	}
	return u.stopErr
}

func (u *mockUnit) MustRegisterMetrics() { u.registers.Inc() }

func (u *mockUnit) UnregisterMetrics() { u.unregs.Inc() }

func TestCompositeUnit(t *testing.T) {
	t.Run("start and stop", func(t *testing.T) {
		var running atomic.Int32
		units := make([]Unit, 10)
		for i := range units {
			units[i] = newMockUnit(fmt.Sprintf("unit-%d", i), &running)
		}
		cu := NewCompositeUnit(units...)

		startDone := make(chan struct{})
		go func() {
			defer close(startDone)
			cu.Start(make(chan error, 1))
		}()
		require.Eventually(t, func() bool { return running.Load() == 10 }, time.Second, time.Millisecond)

		require.NoError(t, cu.Stop(true))
		<-startDone
		require.Eventually(t, func() bool { return running.Load() == 0 }, time.Second, time.Millisecond)
		for _, u := range units {
			require.True(t, u.(*mockUnit).graceful.Load())
		}
	})

	t.Run("stop errors are collected", func(t *testing.T) {
		var running atomic.Int32
		ok := newMockUnit("ok", &running)
		bad1, bad2 := newMockUnit("bad1", &running), newMockUnit("bad2", &running)
		errStop := errors.New("close manifest")
		bad1.stopErr, bad2.stopErr = errStop, errStop

		err := NewCompositeUnit(ok, bad1, bad2).Stop(true)
		var cuErr *CompositeUnitError
		require.ErrorAs(t, err, &cuErr)
		require.Len(t, cuErr.UnitErrors, 2)
		require.ErrorIs(t, err, errStop)
	})

	t.Run("failed unit stops the others", func(t *testing.T) {
		var running atomic.Int32
		ok := newMockUnit("ok", &running)
		failing := newMockUnit("failing", &running)
		errStart := errors.New("listen: address in use")
		failing.startErr = errStart

		fatalErr := make(chan error, 1)
		NewCompositeUnit(ok, failing).Start(fatalErr)

		err := <-fatalErr
		require.ErrorIs(t, err, errStart)
		require.True(t, ok.stopped.Load())
		require.False(t, ok.graceful.Load())
	})

	t.Run("metrics", func(t *testing.T) {
		var running atomic.Int32
		u1, u2 := newMockUnit("u1", &running), newMockUnit("u2", &running)
		cu := NewCompositeUnit(u1, u2)
		cu.MustRegisterMetrics()
		cu.UnregisterMetrics()
		require.EqualValues(t, 1, u1.registers.Load())
		require.EqualValues(t, 1, u2.unregs.Load())
	})
}

func TestService_Run(t *testing.T) {
	t.Run("stop by signal", func(t *testing.T) {
		var running atomic.Int32
		u := newMockUnit("srv", &running)
		svc := New(logtest.NewRecorder(), u)

		runErr := make(chan error, 1)
		go func() { runErr <- svc.Run(context.Background()) }()
		require.Eventually(t, func() bool { return running.Load() == 1 }, time.Second, time.Millisecond)
		require.EqualValues(t, 1, u.registers.Load())

		svc.Signals <- os.Interrupt
		require.NoError(t, <-runErr)
		require.True(t, u.graceful.Load())
		require.EqualValues(t, 1, u.unregs.Load())
	})

	t.Run("stop by context", func(t *testing.T) {
		var running atomic.Int32
		u := newMockUnit("srv", &running)
		svc := NewWithOpts(nil, u, Opts{})

		ctx, cancel := context.WithCancel(context.Background())
		runErr := make(chan error, 1)
		go func() { runErr <- svc.Run(ctx) }()
		require.Eventually(t, func() bool { return running.Load() == 1 }, time.Second, time.Millisecond)
		cancel()
		require.NoError(t, <-runErr)
		require.True(t, u.stopped.Load())
	})

	t.Run("fatal error", func(t *testing.T) {
		var running atomic.Int32
		u := newMockUnit("srv", &running)
		u.startErr = errors.New("open cache")
		rec := logtest.NewRecorder()
		err := NewWithOpts(rec, u, Opts{}).Run(context.Background())
		require.ErrorIs(t, err, u.startErr)
		_, found := rec.FindEntry("service fatal error")
		require.True(t, found)
	})
}

func TestWorkerUnit(t *testing.T) {
	t.Run("graceful stop waits for worker", func(t *testing.T) {
		var finished atomic.Bool
		wu := NewWorkerUnit(WorkerFunc(func(ctx context.Context) error {
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
			finished.Store(true)
			return nil
		}))
		go wu.Start(make(chan error, 1))
		require.NoError(t, wu.Stop(true))
		require.True(t, finished.Load())
	})

	t.Run("graceful stop timeout", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		wu := NewWorkerUnitWithOpts(WorkerFunc(func(ctx context.Context) error {
			<-release
			return nil
		}), WorkerUnitOpts{GracefulStopTimeout: 10 * time.Millisecond})
		go wu.Start(make(chan error, 1))
		require.ErrorIs(t, wu.Stop(true), ErrWorkerUnitStopTimeoutExceeded)
	})

	t.Run("worker error is fatal", func(t *testing.T) {
		errRun := errors.New("run failed")
		wu := NewWorkerUnit(WorkerFunc(func(ctx context.Context) error { return errRun }))
		fatalErr := make(chan error, 1)
		wu.Start(fatalErr)
		require.ErrorIs(t, <-fatalErr, errRun)
	})
}

func TestHTTPUnit(t *testing.T) {
	handler := http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		_, _ = rw.Write([]byte("pong"))
	})
	u := NewHTTPUnit("127.0.0.1:0", handler, logtest.NewRecorder(), HTTPUnitOpts{})
	fatalErr := make(chan error, 1)
	go u.Start(fatalErr)

	addr := u.Addr()
	require.NotNil(t, addr)
	resp, err := http.Get("http://" + addr.String() + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, "pong", string(body))

	require.NoError(t, u.Stop(true))
	<-u.Done()
	require.Empty(t, fatalErr)
}

func TestHTTPUnit_ListenError(t *testing.T) {
	u := NewHTTPUnit("256.0.0.1:bad", http.NotFoundHandler(), nil, HTTPUnitOpts{})
	fatalErr := make(chan error, 1)
	u.Start(fatalErr)
	require.Error(t, <-fatalErr)
	require.Nil(t, u.Addr())
}
