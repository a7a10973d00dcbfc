package lifecycle

import (
	"sync"
	"sync/atomic"
)

// resetState tracks the single logical reset that may be pending at any time.
type resetState struct {
	pending atomic.Bool

	mu      sync.Mutex
	done    *sync.Cond
	running bool
}

func (r *resetState) init() {
	r.done = sync.NewCond(&r.mu)
}

// ScheduleReset requests crash recovery. It is fire-and-forget and
// idempotent: repeated calls while a reset is pending are no-ops. The
// recovery task only runs while the device is Active; otherwise the pending
// flag is remembered and consumed by the next successful Resume.
func (d *Device) ScheduleReset() {
	if !d.reset.pending.CompareAndSwap(false, true) {
		return
	}
	if d.State() != Active {
		d.log.Debug("reset deferred until next resume")
		return
	}
	d.queueReset()
}

// IsResetPending reports whether a reset is queued or running.
func (d *Device) IsResetPending() bool {
	return d.reset.pending.Load()
}

func (d *Device) queueReset() {
	if !d.runner.Submit(d.runReset) {
		d.reset.pending.Store(false)
	}
}

// runReset executes the recovery sequence on the background queue.
//
// Firmware re-bring-up is the only step with no safe retry path: the image
// and handshake protocol are stateful. If the firmware post-reset hook fails,
// the device is handed to the unplug coordinator and becomes permanently
// unusable. Every other step is mechanical register programming.
func (d *Device) runReset() {
	d.reset.mu.Lock()
	d.reset.running = true
	d.reset.mu.Unlock()
	defer func() {
		d.reset.mu.Lock()
		d.reset.running = false
		d.reset.done.Broadcast()
		d.reset.mu.Unlock()
	}()

	if !d.reset.pending.Load() {
		// Cancelled before it started.
		return
	}
	if d.State() != Active {
		// The transition away from Active already made the reset moot.
		d.reset.pending.Store(false)
		return
	}

	tok, err := d.guard.Acquire()
	if err != nil {
		d.reset.pending.Store(false)
		return
	}

	d.log.Info("resetting device")
	d.subs.Scheduler.PreReset()
	d.subs.Firmware.PreReset(true)
	d.subs.MMU.PreReset()
	d.hardReset()
	if err := d.subs.Core.PostReset(); err != nil {
		d.log.Warn("core post-reset hook failed", "err", err)
	}
	if err := d.subs.MMU.PostReset(); err != nil {
		d.log.Warn("mmu post-reset hook failed", "err", err)
	}
	if err := d.subs.Firmware.PostReset(); err != nil {
		tok.Release()
		d.reset.pending.Store(false)
		d.log.Error("firmware unresponsive after reset, unplugging device", "err", err)
		d.Unplug()
		return
	}
	tok.Release()

	d.reset.pending.Store(false)
	if err := d.subs.Scheduler.PostReset(); err != nil {
		d.log.Warn("scheduler post-reset hook failed", "err", err)
	}
	d.log.Info("device reset complete")
}

// cancelReset clears a queued-but-not-started reset and blocks until any
// already-running reset task completes, so a reset can never run against
// partially suspended subsystems.
func (d *Device) cancelReset() {
	d.reset.pending.Store(false)
	d.reset.mu.Lock()
	for d.reset.running {
		d.reset.done.Wait()
	}
	d.reset.mu.Unlock()
}
