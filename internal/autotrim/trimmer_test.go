/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package autotrim

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

type trimTarget struct {
	trims atomic.Int32
	_     [64]byte // keep it out of tiny allocation blocks, so it can be collected on its own
}

func TestTrimmer_RunsPeriodically(t *testing.T) {
	target := &trimTarget{}
	trimmer := Start(target, 10*time.Millisecond, func(_ context.Context, tt *trimTarget) {
		tt.trims.Inc()
	}, nil)

	require.Eventually(t, func() bool {
		return target.trims.Load() >= 3
	}, time.Second, 5*time.Millisecond)

	trimmer.Stop()
	trimmer.Stop() // idempotent

	stopped := target.trims.Load()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, stopped, target.trims.Load())
	require.EqualValues(t, stopped, trimmer.Passes())
}

func TestTrimmer_StopsWhenTargetIsCollected(t *testing.T) {
	var trimmer *Trimmer
	func() {
		target := &trimTarget{}
		trimmer = Start(target, 10*time.Millisecond, func(_ context.Context, tt *trimTarget) {
			tt.trims.Inc()
		}, nil)
	}()

	require.Eventually(t, func() bool {
		runtime.GC()
		select {
		case <-trimmer.done:
			return true
		default:
			return false
		}
	}, 5*time.Second, 20*time.Millisecond)
}
