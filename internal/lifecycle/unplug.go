package lifecycle

import "sync"

// unplugState serializes the one-shot permanent teardown.
type unplugState struct {
	mu      sync.Mutex
	started bool
	done    chan struct{}
}

func (u *unplugState) init() {
	u.done = make(chan struct{})
}

// Unplug tears the device down permanently. It is idempotent and safe to call
// concurrently from a fatal-reset path and an external removal path: exactly
// one caller runs the teardown, everyone else blocks until the completion
// signal fires once.
//
// Teardown marks the device removed so every future guard acquisition fails,
// waits for outstanding guard tokens to drain, suspends and closes the
// interrupt lines, runs the unplug hooks regardless of the current power
// state, and disables clocks and power.
func (d *Device) Unplug() {
	d.unplug.mu.Lock()
	if d.unplug.started {
		d.unplug.mu.Unlock()
		<-d.unplug.done
		return
	}
	d.unplug.started = true
	d.unplug.mu.Unlock()

	d.log.Info("unplugging device")
	d.unplugged.Store(true)
	d.guard.Shutdown()

	for _, l := range d.lines {
		l.Suspend()
		l.Close()
	}

	d.subs.Scheduler.Unplug()
	d.subs.Firmware.Unplug()
	d.subs.MMU.Unplug()
	d.subs.Core.Unplug()
	d.clocks.Disable()

	close(d.unplug.done)
}
