package api

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/tinyrange/accel/internal/config"
	"github.com/tinyrange/accel/internal/hwio"
	"github.com/tinyrange/accel/internal/irq"
	"github.com/tinyrange/accel/internal/lifecycle"
	"github.com/tinyrange/accel/internal/taskq"
)

var envInitOnce sync.Once

// initFromEnv switches on verbose logging from the environment. Called once
// per process, before the first device is created.
func initFromEnv() {
	envInitOnce.Do(func() {
		if os.Getenv("ACCEL_VERBOSE") != "" {
			slog.SetDefault(slog.New(slog.NewTextHandler(
				os.Stderr,
				&slog.HandlerOptions{Level: slog.LevelDebug},
			)))
		}
	})
}

// device implements Device.
type device struct {
	id   string
	log  *slog.Logger
	core *lifecycle.Device

	// Owned host resources, nil when injected by the caller.
	queue     *taskq.Queue
	hwCloser  io.Closer
	irqSource hwio.InterruptSource

	mu     sync.Mutex
	closed bool
}

// New builds a device from its description, binds the subsystem hooks, and
// performs probe bring-up: power on, one-time hardware init, and arming of
// the configured interrupt lines. The device is Active when New returns.
func New(cfg *config.Device, subs lifecycle.Subsystems, opts ...Option) (Device, error) {
	initFromEnv()

	if cfg == nil {
		return nil, &Error{Op: "new", Err: fmt.Errorf("nil config")}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &Error{Op: "new", Err: err}
	}

	o := parseOptions(opts)
	log := o.log
	if log == nil {
		log = slog.Default()
	}

	regs := o.regs
	var irqSource hwio.InterruptSource
	var hwCloser io.Closer
	if regs == nil {
		if cfg.UIOPath != "" {
			var err error
			regs, irqSource, hwCloser, err = openHardware(cfg)
			if err != nil {
				return nil, &Error{Op: "new", Path: cfg.UIOPath, Err: err}
			}
		} else {
			regs = hwio.NewMemBlock(cfg.RegisterSize)
		}
	}

	runner := o.runner
	var queue *taskq.Queue
	if runner == nil {
		queue = taskq.New()
		runner = queue
	}

	core := lifecycle.New(lifecycle.Params{
		Name:      cfg.Name,
		Registers: regs,
		SoftReset: lifecycle.RegisterWrite{
			Offset: cfg.SoftReset.Offset,
			Value:  cfg.SoftReset.Value,
		},
		Clocks:     o.clocks,
		Scaler:     o.scaler,
		Subsystems: subs,
		Runner:     runner,
		Logger:     log,
	})

	d := &device{
		id:        uuid.NewString(),
		log:       log.With("device", cfg.Name),
		core:      core,
		queue:     queue,
		hwCloser:  hwCloser,
		irqSource: irqSource,
	}

	for _, w := range cfg.Windows {
		if err := core.AddWindow(w.Name, w.Logical, w.Physical); err != nil {
			d.release()
			return nil, &Error{Op: "new", Err: fmt.Errorf("window %q: %w", w.Name, err)}
		}
	}

	masks := make(map[*irq.Line]uint32)
	for _, lc := range cfg.Lines {
		triple := irq.Triple{Status: lc.Status, Clear: lc.Clear, Mask: lc.Mask}
		line := irq.NewLine(lc.Name, regs, triple, o.handlers[lc.Name], core.Guard(), log)
		core.AddLine(line)
		masks[line] = lc.InitialMask
	}

	// Probe bring-up: power on without hooks, hard-reset once, then arm
	// the lines. Subsystem hooks participate in every later transition.
	if err := core.Resume(); err != nil {
		d.abort()
		return nil, &Error{Op: "new", Err: fmt.Errorf("probe resume: %w", err)}
	}
	if err := core.InitHardware(); err != nil {
		d.abort()
		return nil, &Error{Op: "new", Err: fmt.Errorf("probe init: %w", err)}
	}
	for _, line := range core.Lines() {
		line.Resume(masks[line])
	}

	if irqSource != nil {
		go d.pumpInterrupts()
	}

	d.log.Debug("device probed", "id", d.id)
	return d, nil
}

// pumpInterrupts forwards hardware interrupt events to the fast acknowledge
// phase of each line. It exits when the interrupt source is closed.
func (d *device) pumpInterrupts() {
	for {
		if _, err := d.irqSource.WaitInterrupt(); err != nil {
			return
		}
		for _, line := range d.core.Lines() {
			line.Trigger()
		}
		if err := d.irqSource.EnableInterrupt(); err != nil {
			return
		}
	}
}

func (d *device) ID() string   { return d.id }
func (d *device) Name() string { return d.core.Name() }

func (d *device) State() PowerState { return d.core.State() }

func (d *device) Resume() error {
	if err := d.core.Resume(); err != nil {
		return &Error{Op: "resume", Err: err}
	}
	return nil
}

func (d *device) Suspend() error {
	if err := d.core.Suspend(); err != nil {
		return &Error{Op: "suspend", Err: err}
	}
	return nil
}

func (d *device) ScheduleReset() { d.core.ScheduleReset() }

func (d *device) IsResetPending() bool { return d.core.IsResetPending() }

func (d *device) MapRegisters(offset, length uint64, prot Protection) (Mapping, error) {
	m, err := d.core.Mappings().Map(offset, length, prot)
	if err != nil {
		return nil, &Error{Op: "mmap", Err: err}
	}
	return m, nil
}

func (d *device) Unplug() {
	d.core.Unplug()
}

// Close shuts the device down and releases host resources.
func (d *device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	if !d.core.Unplugged() {
		if d.core.State() == Active {
			if err := d.core.Suspend(); err != nil {
				d.log.Warn("suspend during close failed", "err", err)
			}
		}
		for _, line := range d.core.Lines() {
			line.Suspend()
			line.Close()
		}
	}

	d.release()
	return nil
}

// abort tears down a partially built device during a failed New.
func (d *device) abort() {
	for _, line := range d.core.Lines() {
		line.Suspend()
		line.Close()
	}
	d.release()
}

// release frees owned host resources. Safe to call on a partially built
// device.
func (d *device) release() {
	if d.irqSource != nil {
		d.irqSource.Close()
	}
	if d.hwCloser != nil {
		d.hwCloser.Close()
	}
	if d.queue != nil {
		d.queue.Close()
	}
}

var _ Device = (*device)(nil)
