/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"strings"
	"sync"
)

// CompositeUnit runs several units as one.
type CompositeUnit struct {
	Units []Unit
}

// NewCompositeUnit creates a new composite unit.
func NewCompositeUnit(units ...Unit) *CompositeUnit {
	return &CompositeUnit{units}
}

// Start starts all units concurrently and waits until every Start call returns.
// If at least one unit fails, all units are stopped non-gracefully and a CompositeUnitError
// with the start and stop errors is reported.
func (cu *CompositeUnit) Start(fatalErr chan<- error) {
	unitErrs := make([]chan error, len(cu.Units))
	var wg sync.WaitGroup
	wg.Add(len(cu.Units))
	failed := make(chan struct{})
	var failOnce sync.Once
	for i := range cu.Units {
		unitErrs[i] = make(chan error, 1)
		go func(i int) {
			defer wg.Done()
			cu.Units[i].Start(unitErrs[i])
			if len(unitErrs[i]) != 0 {
				failOnce.Do(func() { close(failed) })
			}
		}(i)
	}

	allReturned := make(chan struct{})
	go func() {
		wg.Wait()
		close(allReturned)
	}()

	select {
	case <-allReturned:
		select {
		case <-failed:
		default:
			return
		}
	case <-failed:
	}

	stopErr := cu.Stop(false)
	var errs []error
	for _, ch := range unitErrs {
		select {
		case err := <-ch:
			errs = append(errs, err)
		default:
		}
	}
	if stopErr != nil {
		errs = append(errs, stopErr.(*CompositeUnitError).UnitErrors...)
	}
	fatalErr <- &CompositeUnitError{errs}
}

// Stop stops all units concurrently and joins their errors.
func (cu *CompositeUnit) Stop(gracefully bool) error {
	errs := make([]error, len(cu.Units))
	var wg sync.WaitGroup
	wg.Add(len(cu.Units))
	for i := range cu.Units {
		go func(i int) {
			defer wg.Done()
			errs[i] = cu.Units[i].Stop(gracefully)
		}(i)
	}
	wg.Wait()

	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	if len(nonNil) != 0 {
		return &CompositeUnitError{nonNil}
	}
	return nil
}

// MustRegisterMetrics registers metrics of all units that have them.
func (cu *CompositeUnit) MustRegisterMetrics() {
	for _, u := range cu.Units {
		if mr, ok := u.(MetricsRegisterer); ok {
			mr.MustRegisterMetrics()
		}
	}
}

// UnregisterMetrics unregisters metrics of all units that have them.
func (cu *CompositeUnit) UnregisterMetrics() {
	for _, u := range cu.Units {
		if mr, ok := u.(MetricsRegisterer); ok {
			mr.UnregisterMetrics()
		}
	}
}

// CompositeUnitError holds errors of the composed units.
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
