//go:build ignore

// This file demonstrates every public API in the accel package.
// It is excluded from the build and serves as a reference and compile-time check.

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	accel "github.com/tinyrange/accel"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// firmwareStub is a minimal firmware subsystem binding.
type firmwareStub struct{}

func (firmwareStub) PreReset(force bool) {}
func (firmwareStub) PostReset() error    { return nil }
func (firmwareStub) Suspend()            {}
func (firmwareStub) Resume() error       { return nil }
func (firmwareStub) Unplug()             {}

func run() error {
	// =========================================================================
	// LoadConfig - parse and validate a device description
	// =========================================================================
	cfg, err := accel.LoadConfig("accel.yaml")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// =========================================================================
	// New - build and probe a device
	// =========================================================================
	dev, err := accel.New(cfg,
		accel.Subsystems{Firmware: firmwareStub{}}, // nil fields become no-ops
		accel.WithLogger(slog.Default()),
		accel.WithInterruptHandler("job", func(status uint32) {
			fmt.Printf("job interrupt, status %#x\n", status)
		}),
	)
	if err != nil {
		return fmt.Errorf("new device: %w", err)
	}
	defer dev.Close()

	// Device identity and state
	_ = dev.ID()
	_ = dev.Name()
	fmt.Printf("device %s is %s\n", dev.Name(), dev.State())

	// =========================================================================
	// Power transitions
	// =========================================================================
	if err := dev.Suspend(); err != nil {
		return fmt.Errorf("suspend: %w", err)
	}
	if err := dev.Resume(); err != nil {
		// ErrInvalidState: wrong current state; ErrUnplugged: device gone.
		if errors.Is(err, accel.ErrUnplugged) {
			return fmt.Errorf("device was removed: %w", err)
		}
		return fmt.Errorf("resume: %w", err)
	}

	// =========================================================================
	// ScheduleReset - fire-and-forget crash recovery
	// =========================================================================
	dev.ScheduleReset()
	for dev.IsResetPending() {
		// Recovery runs on the device's background queue.
	}

	// =========================================================================
	// MapRegisters - user mapping of a register window
	// =========================================================================
	m, err := dev.MapRegisters(0, 0x1000, accel.ProtRead)
	if err != nil {
		return fmt.Errorf("map registers: %w", err)
	}
	defer m.Close()

	page, err := m.Page()
	if err != nil {
		if errors.Is(err, accel.ErrBusError) {
			return fmt.Errorf("device removed under mapping: %w", err)
		}
		return fmt.Errorf("page: %w", err)
	}
	fmt.Printf("doorbell page, first word %#x\n", page[0])

	// =========================================================================
	// Open - LoadConfig + New in one call
	// =========================================================================
	dev2, err := accel.Open("accel.yaml", accel.Subsystems{},
		accel.WithSynchronousReset())
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer dev2.Close()

	// =========================================================================
	// Unplug - permanent removal
	// =========================================================================
	dev2.Unplug()

	return nil
}
