package lifecycle

import "fmt"

// Resume drives the device from Suspended to Active.
//
// Clocks come up first (core, then auxiliary). If first-time initialization
// has completed, the resume hooks run on GPU core, MMU, firmware and
// scheduler in that order, with the liveness guard held so they cannot race
// an in-flight unplug. Only a firmware resume failure aborts the sequence; it
// unwinds the already-resumed hooks and leaves the state Suspended. On
// success stale dummy-page mappings are dropped and a pending reset, if any,
// is submitted.
func (d *Device) Resume() error {
	if d.unplugged.Load() {
		return ErrUnplugged
	}
	if !d.casState(Suspended, Resuming) {
		return ErrInvalidState
	}

	if err := d.doResume(); err != nil {
		d.setState(Suspended)
		return err
	}

	d.maps.Transition(func() { d.setState(Active) })
	d.log.Debug("device resumed")

	if d.reset.pending.Load() {
		d.queueReset()
	}
	return nil
}

func (d *Device) doResume() error {
	if err := d.clocks.EnableCore(); err != nil {
		return fmt.Errorf("lifecycle: enable core clock: %w", err)
	}
	if err := d.clocks.EnableAux(); err != nil {
		d.clocks.Disable()
		return fmt.Errorf("lifecycle: enable aux clocks: %w", err)
	}
	if err := d.scaler.Resume(); err != nil {
		d.clocks.Disable()
		return fmt.Errorf("lifecycle: resume frequency scaling: %w", err)
	}

	if !d.initialized.Load() {
		// Probe-time power-up: subsystems are not bound yet.
		return nil
	}

	tok, err := d.guard.Acquire()
	if err != nil {
		d.clocks.Disable()
		return ErrUnplugged
	}
	defer tok.Release()

	if err := d.subs.Core.Resume(); err != nil {
		d.log.Warn("core resume hook failed", "err", err)
	}
	if err := d.subs.MMU.Resume(); err != nil {
		d.log.Warn("mmu resume hook failed", "err", err)
	}
	if err := d.subs.Firmware.Resume(); err != nil {
		// Firmware is the only hook whose failure aborts the resume.
		d.subs.MMU.Suspend()
		d.subs.Core.Suspend()
		if serr := d.scaler.Suspend(); serr != nil {
			d.log.Warn("frequency scaling suspend failed during unwind", "err", serr)
		}
		d.clocks.Disable()
		return fmt.Errorf("lifecycle: resume firmware: %w", err)
	}
	if err := d.subs.Scheduler.Resume(); err != nil {
		d.log.Warn("scheduler resume hook failed", "err", err)
	}
	return nil
}

// Suspend drives the device from Active to Suspended.
//
// The state flips to Suspending and user mappings are invalidated before any
// hardware is touched, so no user thread can read stale register values mid
// transition. A queued or running reset is cancelled synchronously, then the
// suspend hooks run in reverse resume order, then the frequency-scaling step.
// If that interposed step fails the transition reverts: hooks are re-resumed,
// mappings are invalidated again and the state returns to Active.
func (d *Device) Suspend() error {
	if !d.casState(Active, Suspending) {
		if d.unplugged.Load() {
			return ErrUnplugged
		}
		return ErrInvalidState
	}

	d.maps.Transition(nil)
	d.cancelReset()

	var hw bool
	tok, err := d.guard.Acquire()
	if err == nil {
		hw = true
		defer tok.Release()
	}

	hooks := d.initialized.Load() && hw
	if hooks {
		d.subs.Scheduler.Suspend()
		d.subs.Firmware.Suspend()
		d.subs.MMU.Suspend()
		d.subs.Core.Suspend()
	}

	if err := d.scaler.Suspend(); err != nil {
		if hooks {
			if rerr := d.subs.Core.Resume(); rerr != nil {
				d.log.Warn("core re-resume failed during revert", "err", rerr)
			}
			if rerr := d.subs.MMU.Resume(); rerr != nil {
				d.log.Warn("mmu re-resume failed during revert", "err", rerr)
			}
			if rerr := d.subs.Firmware.Resume(); rerr != nil {
				d.log.Error("firmware re-resume failed during revert", "err", rerr)
			}
			if rerr := d.subs.Scheduler.Resume(); rerr != nil {
				d.log.Warn("scheduler re-resume failed during revert", "err", rerr)
			}
		}
		// Drop any dummy-page mapping created during the failed attempt.
		d.maps.Transition(func() { d.setState(Active) })
		return fmt.Errorf("lifecycle: suspend frequency scaling: %w", err)
	}

	d.clocks.Disable()
	d.setState(Suspended)
	d.log.Debug("device suspended")
	return nil
}
