// Package lifecycle orchestrates the power, reset and removal envelope of one
// accelerator device.
//
// The device coordinates four independently failing subsystems (GPU core,
// MMU, onboard firmware, job scheduler) across three execution contexts:
// interrupt delivery, a single ordered background task queue, and
// user-initiated calls. The liveness guard is the one gate every hardware
// access passes through, and unplug is the terminal sink all fatal paths
// funnel into.
package lifecycle

import (
	"log/slog"
	"sync/atomic"

	"github.com/tinyrange/accel/internal/hwio"
	"github.com/tinyrange/accel/internal/irq"
	"github.com/tinyrange/accel/internal/liveness"
	"github.com/tinyrange/accel/internal/regmap"
	"github.com/tinyrange/accel/internal/taskq"
)

// RegisterWrite names a single register programming step, such as the
// hardware soft-reset.
type RegisterWrite struct {
	Offset uint64
	Value  uint32
}

// Params configures a Device. Registers and Runner are required; everything
// else defaults to a no-op implementation.
type Params struct {
	Name      string
	Registers hwio.Block
	SoftReset RegisterWrite

	Clocks     ClockController
	Scaler     FrequencyScaler
	Subsystems Subsystems

	// Runner executes reset recovery. Production wiring passes a
	// *taskq.Queue; tests pass taskq.SyncRunner for deterministic,
	// inline execution.
	Runner taskq.Runner

	Logger *slog.Logger
}

// Device is the aggregate root: it owns the power-state machine, the reset
// orchestrator, the unplug coordinator, the liveness guard and the register
// mapping table. Dependent subsystems are back-referenced through their
// lifecycle hooks only.
type Device struct {
	name   string
	log    *slog.Logger
	regs   hwio.Block
	hreset RegisterWrite

	clocks ClockController
	scaler FrequencyScaler
	subs   Subsystems

	guard *liveness.Guard
	maps  *regmap.Table
	lines []*irq.Line

	runner taskq.Runner

	state       atomic.Int32
	initialized atomic.Bool
	unplugged   atomic.Bool

	reset  resetState
	unplug unplugState
}

func New(p Params) *Device {
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	if p.Clocks == nil {
		p.Clocks = NopClocks{}
	}
	if p.Scaler == nil {
		p.Scaler = NopScaler{}
	}

	d := &Device{
		name:   p.Name,
		log:    p.Logger.With("device", p.Name),
		regs:   p.Registers,
		hreset: p.SoftReset,
		clocks: p.Clocks,
		scaler: p.Scaler,
		subs:   p.Subsystems.withDefaults(),
		guard:  liveness.NewGuard(),
		runner: p.Runner,
	}
	d.maps = regmap.NewTable(d.guard, func() bool { return d.State() == Active })
	d.reset.init()
	d.unplug.init()
	d.state.Store(int32(Suspended))
	return d
}

func (d *Device) Name() string { return d.name }

// Guard exposes the liveness guard so owned components (interrupt lines, the
// mapping table) and callers performing direct register access share the same
// gate.
func (d *Device) Guard() *liveness.Guard { return d.guard }

// Mappings returns the register mapping table.
func (d *Device) Mappings() *regmap.Table { return d.maps }

// State returns the current power state.
func (d *Device) State() PowerState {
	return PowerState(d.state.Load())
}

func (d *Device) setState(s PowerState) {
	d.state.Store(int32(s))
}

func (d *Device) casState(from, to PowerState) bool {
	return d.state.CompareAndSwap(int32(from), int32(to))
}

// AddWindow registers a mappable register window backed by the device's
// register block.
func (d *Device) AddWindow(name string, logical, physical uint64) error {
	br, ok := d.regs.(hwio.ByteRange)
	if !ok {
		return regmap.ErrUnknownRegion
	}
	page, ok := br.Slice(physical, regmap.PageSize)
	if !ok {
		return regmap.ErrUnknownRegion
	}
	return d.maps.AddWindow(name, logical, page)
}

// AddLine attaches an interrupt line. Lines are suspended and closed during
// unplug; their individual suspend/resume is otherwise independent of the
// device power state.
func (d *Device) AddLine(l *irq.Line) {
	d.lines = append(d.lines, l)
}

// Lines returns the attached interrupt lines.
func (d *Device) Lines() []*irq.Line { return d.lines }

// InitHardware performs the one-time bring-up: a hard reset of the powered
// device. Until it has run, power transitions skip subsystem hooks. It must
// be called with the device powered (state Active after the probe Resume).
func (d *Device) InitHardware() error {
	if d.initialized.Load() {
		return nil
	}
	if d.State() != Active {
		return ErrInvalidState
	}
	tok, err := d.guard.Acquire()
	if err != nil {
		return ErrUnplugged
	}
	defer tok.Release()

	d.hardReset()
	d.initialized.Store(true)
	return nil
}

// Initialized reports whether first-time bring-up has completed.
func (d *Device) Initialized() bool { return d.initialized.Load() }

// hardReset programs the soft-reset register. Callers hold a guard token.
func (d *Device) hardReset() {
	d.regs.Write32(d.hreset.Offset, d.hreset.Value)
}

// Unplugged reports whether the device has been permanently removed.
func (d *Device) Unplugged() bool { return d.unplugged.Load() }
