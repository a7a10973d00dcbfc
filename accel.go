// Package accel provides the device-lifecycle orchestration core of a
// hardware-accelerator driver: power-state transitions, crash recovery,
// interrupt dispatch and safe user-space mapping of control registers.
//
// A Device coordinates four independently failing subsystems (compute core,
// MMU, onboard firmware, job scheduler) under concurrent access from
// interrupt delivery, background recovery work and user calls, while
// guaranteeing that nothing touches hardware that has been powered down,
// reset or permanently removed.
package accel

import (
	"log/slog"

	"github.com/tinyrange/accel/internal/api"
	"github.com/tinyrange/accel/internal/config"
	"github.com/tinyrange/accel/internal/hwio"
	"github.com/tinyrange/accel/internal/irq"
	"github.com/tinyrange/accel/internal/lifecycle"
)

// -----------------------------------------------------------------------------
// Type Aliases - These re-export types from internal/api
// -----------------------------------------------------------------------------

// Device is one accelerator instance.
type Device = api.Device

// Mapping is one validated user mapping of a register window.
type Mapping = api.Mapping

// Option configures a Device.
type Option = api.Option

// Error represents an accel operation error with structured information.
type Error = api.Error

// PowerState is the device's full-device power state.
type PowerState = api.PowerState

// Power states, in cycle order.
const (
	Suspended  = api.Suspended
	Resuming   = api.Resuming
	Active     = api.Active
	Suspending = api.Suspending
)

// Protection is the access protection requested for a register mapping.
type Protection = api.Protection

// Protection bits.
const (
	ProtRead  = api.ProtRead
	ProtWrite = api.ProtWrite
	ProtExec  = api.ProtExec
)

// Config describes one accelerator instance on disk.
type Config = config.Device

// Subsystems collects the dependent blocks the device drives: compute core,
// MMU, onboard firmware and job scheduler. Nil fields get no-op
// implementations, which is the bring-up and tooling configuration.
type Subsystems = lifecycle.Subsystems

// Subsystem is the lifecycle contract of one dependent block.
type Subsystem = lifecycle.Subsystem

// Firmware is the onboard-firmware subsystem contract.
type Firmware = lifecycle.Firmware

// ClockController drives the device's clock and power domains.
type ClockController = lifecycle.ClockController

// FrequencyScaler is the frequency-scaling step interposed in power
// transitions.
type FrequencyScaler = lifecycle.FrequencyScaler

// RegisterBlock is a window of 32-bit device registers.
type RegisterBlock = hwio.Block

// InterruptHandler receives the asserted status bitmap of one line during
// deferred processing.
type InterruptHandler = irq.Handler

// Common sentinel errors.
var (
	// ErrInvalidState indicates a resume or suspend from the wrong power
	// state. The call has no side effects.
	ErrInvalidState = api.ErrInvalidState

	// ErrUnplugged indicates the device has been permanently removed.
	// It matches ErrInvalidState under errors.Is.
	ErrUnplugged = api.ErrUnplugged

	// ErrBusError is returned by a mapping access once the device has
	// been removed.
	ErrBusError = api.ErrBusError
)

// -----------------------------------------------------------------------------
// Options
// -----------------------------------------------------------------------------

// WithLogger sets the structured logger used by the device.
func WithLogger(log *slog.Logger) Option { return api.WithLogger(log) }

// WithRegisters overrides the register block with a caller-provided
// transport.
func WithRegisters(regs RegisterBlock) Option { return api.WithRegisters(regs) }

// WithSynchronousReset runs reset recovery inline instead of on the
// background queue. Diagnostic and test use only.
func WithSynchronousReset() Option { return api.WithSynchronousReset() }

// WithInterruptHandler registers the deferred-phase handler for the named
// interrupt line.
func WithInterruptHandler(line string, h InterruptHandler) Option {
	return api.WithInterruptHandler(line, h)
}

// WithClocks sets the platform clock controller.
func WithClocks(c ClockController) Option { return api.WithClocks(c) }

// WithFrequencyScaler sets the frequency-scaling hook.
func WithFrequencyScaler(s FrequencyScaler) Option { return api.WithFrequencyScaler(s) }

// -----------------------------------------------------------------------------
// Constructors
// -----------------------------------------------------------------------------

// LoadConfig reads and validates a device description from a YAML file.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// New builds a device from its description and binds the subsystem hooks.
// The device is probed and Active when New returns. The caller must call
// Close when finished to release resources.
func New(cfg *Config, subs Subsystems, opts ...Option) (Device, error) {
	return api.New(cfg, subs, opts...)
}

// Open is shorthand for LoadConfig followed by New.
func Open(path string, subs Subsystems, opts ...Option) (Device, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return api.New(cfg, subs, opts...)
}
