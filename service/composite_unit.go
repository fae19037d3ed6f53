/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"errors"
	"strings"
	"sync"

	"go.uber.org/atomic"
)

// CompositeUnit starts and stops a group of units together.
type CompositeUnit struct {
	Units []Unit
}

var _ MetricsRegisterer = (*CompositeUnit)(nil)

// NewCompositeUnit creates a new composite unit.
func NewCompositeUnit(units ...Unit) *CompositeUnit {
	return &CompositeUnit{Units: units}
}

// Start starts all units concurrently and returns once every Start call has returned.
// If any unit fails, the rest are stopped non-gracefully and a single CompositeUnitError
// carrying the start and stop failures is written to fatalErr.
func (cu *CompositeUnit) Start(fatalErr chan<- error) {
	unitErrs := make([]chan error, len(cu.Units))
	results := make(chan bool, len(cu.Units))
	var running atomic.Int32
	running.Store(int32(len(cu.Units))) //nolint:gosec // unit count is small

	for i, u := range cu.Units {
		unitErrs[i] = make(chan error, 1)
		go func(u Unit, errCh chan error) {
			u.Start(errCh)
			if len(errCh) != 0 {
				results <- false
				return
			}
			if running.Dec() == 0 {
				results <- true
			}
		}(u, unitErrs[i])
	}

	if len(cu.Units) == 0 || <-results {
		return
	}

	stopErr := cu.Stop(false)
	var errs []error
	for _, errCh := range unitErrs {
		select {
		case err := <-errCh:
			errs = append(errs, err)
		default:
		}
	}
	var cuErr *CompositeUnitError
	if errors.As(stopErr, &cuErr) {
		errs = append(errs, cuErr.UnitErrors...)
	}
	if len(errs) != 0 {
		fatalErr <- &CompositeUnitError{UnitErrors: errs}
	}
}

// Stop stops all units concurrently and collects their errors into a CompositeUnitError.
func (cu *CompositeUnit) Stop(gracefully bool) error {
	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	for _, u := range cu.Units {
		wg.Add(1)
		go func(u Unit) {
			defer wg.Done()
			if err := u.Stop(gracefully); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(u)
	}
	wg.Wait()
	if len(errs) != 0 {
		return &CompositeUnitError{UnitErrors: errs}
	}
	return nil
}

// MustRegisterMetrics registers metrics of every unit that has them.
func (cu *CompositeUnit) MustRegisterMetrics() {
	for _, u := range cu.Units {
		if mr, ok := u.(MetricsRegisterer); ok {
			mr.MustRegisterMetrics()
		}
	}
}

// UnregisterMetrics unregisters metrics of every unit that has them.
func (cu *CompositeUnit) UnregisterMetrics() {
	for _, u := range cu.Units {
		if mr, ok := u.(MetricsRegisterer); ok {
			mr.UnregisterMetrics()
		}
	}
}

// CompositeUnitError holds errors of individual units.
type CompositeUnitError struct {
	UnitErrors []error
}

func (e *CompositeUnitError) Error() string {
	msgs := make([]string, 0, len(e.UnitErrors))
	for _, err := range e.UnitErrors {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Unwrap allows errors.Is and errors.As to inspect unit errors.
func (e *CompositeUnitError) Unwrap() []error {
	return e.UnitErrors
}
