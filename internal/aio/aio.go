package aio

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// Subsystem is a long running component owned by the server, for
// example a store, the sender, or the scheduler.
type Subsystem interface {
	String() string
	Start(chan<- error) error
	Stop() error
}

type AIO struct {
	subsystems []Subsystem
	errors     chan error
}

func New(size int) *AIO {
	return &AIO{
		errors: make(chan error, size),
	}
}

func (a *AIO) String() string {
	return fmt.Sprintf("AIO(subsystems=%d)", len(a.subsystems))
}

func (a *AIO) AddSubsystem(subsystem Subsystem) {
	a.subsystems = append(a.subsystems, subsystem)
}

// Start starts subsystems in the order they were added.
func (a *AIO) Start() error {
	for _, subsystem := range a.subsystems {
		slog.Info("starting subsystem", "subsystem", subsystem)
		if err := subsystem.Start(a.errors); err != nil {
			return err
		}
	}
	return nil
}

// Stop stops subsystems in reverse order.
func (a *AIO) Stop() error {
	var errs []error
	for _, subsystem := range slices.Backward(a.subsystems) {
		slog.Info("stopping subsystem", "subsystem", subsystem)
		if err := subsystem.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *AIO) Errors() <-chan error {
	return a.errors
}
