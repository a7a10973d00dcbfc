package api

import (
	"github.com/tinyrange/accel/internal/lifecycle"
	"github.com/tinyrange/accel/internal/regmap"
)

// PowerState is the device's full-device power state.
type PowerState = lifecycle.PowerState

const (
	Suspended  = lifecycle.Suspended
	Resuming   = lifecycle.Resuming
	Active     = lifecycle.Active
	Suspending = lifecycle.Suspending
)

// Protection is the access protection requested for a register mapping.
type Protection = regmap.Protection

const (
	ProtRead  = regmap.ProtRead
	ProtWrite = regmap.ProtWrite
	ProtExec  = regmap.ProtExec
)

// Common sentinel errors.
var (
	// ErrInvalidState is returned when resume or suspend is called from
	// the wrong power state. The call has no side effects.
	ErrInvalidState = lifecycle.ErrInvalidState

	// ErrUnplugged is returned by operations on a permanently removed
	// device. It matches ErrInvalidState under errors.Is.
	ErrUnplugged = lifecycle.ErrUnplugged

	// ErrBusError is returned by a mapping access once the device has
	// been removed.
	ErrBusError = regmap.ErrBusError
)

// Device is one accelerator instance: the lifecycle envelope around its
// compute engine, MMU, firmware and job scheduler.
type Device interface {
	// ID returns a unique identifier for this device instance.
	ID() string
	// Name returns the configured device name.
	Name() string

	// State returns the current power state.
	State() PowerState
	// Resume drives the device from Suspended to Active.
	Resume() error
	// Suspend drives the device from Active to Suspended.
	Suspend() error

	// ScheduleReset requests crash recovery. Fire-and-forget and
	// idempotent; use IsResetPending to observe progress.
	ScheduleReset()
	// IsResetPending reports whether a reset is queued or running.
	IsResetPending() bool

	// MapRegisters validates a user mapping of the register window at the
	// given logical offset. Resolution is lazy; the mapping's Page call
	// is the fault.
	MapRegisters(offset, length uint64, prot Protection) (Mapping, error)

	// Unplug permanently tears the device down. Idempotent; concurrent
	// callers block until the single teardown completes.
	Unplug()

	// Close releases host resources. If the device has not been
	// unplugged it is suspended first.
	Close() error
}

// Mapping is one validated user mapping of a register window.
type Mapping interface {
	// Page resolves the mapping: the live register page while the device
	// is active, the dummy page otherwise, ErrBusError once removed.
	Page() ([]byte, error)
	// Close drops the mapping.
	Close()
}

// Error represents an accel operation error with structured information.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return e.Op + " " + e.Path + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
