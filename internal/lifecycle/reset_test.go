package lifecycle

import (
	"errors"
	"testing"
	"time"
)

func TestResetSequence(t *testing.T) {
	f := newFixture(t, nil)

	f.dev.ScheduleReset()
	f.rec.expect(t,
		"sched.pre_reset", "fw.pre_reset_forced", "mmu.pre_reset",
		"core.post_reset", "mmu.post_reset", "fw.post_reset",
		"sched.post_reset")
	if got := f.regs.Read32(resetOffset); got != resetValue {
		t.Fatalf("soft-reset register = %#x, want %#x", got, resetValue)
	}
	if f.dev.IsResetPending() {
		t.Fatal("IsResetPending() = true after a completed reset")
	}
	if got := f.dev.State(); got != Active {
		t.Fatalf("State() = %v, want Active", got)
	}
}

func TestScheduleResetIdempotent(t *testing.T) {
	runner := &manualRunner{}
	f := newFixture(t, runner)

	f.dev.ScheduleReset()
	f.dev.ScheduleReset()
	f.dev.ScheduleReset()
	if got := runner.pending(); got != 1 {
		t.Fatalf("queued tasks = %d, want 1", got)
	}
	if !f.dev.IsResetPending() {
		t.Fatal("IsResetPending() = false with a queued reset")
	}

	runner.runAll()
	if f.dev.IsResetPending() {
		t.Fatal("IsResetPending() = true after the reset ran")
	}
	if got := f.rec.count("fw.pre_reset_forced"); got != 1 {
		t.Fatalf("reset ran %d times, want 1", got)
	}
}

func TestResetDeferredWhileSuspended(t *testing.T) {
	runner := &manualRunner{}
	f := newFixture(t, runner)

	if err := f.dev.Suspend(); err != nil {
		t.Fatalf("Suspend() = %v", err)
	}
	f.rec.clear()

	f.dev.ScheduleReset()
	if got := runner.pending(); got != 0 {
		t.Fatalf("queued tasks = %d, want 0 while suspended", got)
	}
	if !f.dev.IsResetPending() {
		t.Fatal("IsResetPending() = false, want the request remembered")
	}

	// The pending reset rides along with the next resume.
	if err := f.dev.Resume(); err != nil {
		t.Fatalf("Resume() = %v", err)
	}
	if got := runner.pending(); got != 1 {
		t.Fatalf("queued tasks = %d, want 1 after resume", got)
	}
	runner.runAll()
	if f.dev.IsResetPending() {
		t.Fatal("IsResetPending() = true after the reset ran")
	}
	if got := f.rec.count("fw.pre_reset_forced"); got != 1 {
		t.Fatalf("reset ran %d times, want 1", got)
	}
}

func TestResetFirmwareFailureUnplugs(t *testing.T) {
	f := newFixture(t, nil)

	f.fw.postResetErr = errors.New("firmware boot timeout")
	f.dev.ScheduleReset()

	if !f.dev.Unplugged() {
		t.Fatal("Unplugged() = false after unrecoverable reset")
	}
	if got := f.rec.count("fw.unplug"); got != 1 {
		t.Fatalf("unplug hooks ran %d times, want 1", got)
	}
	// The scheduler is never brought back up on the failure path.
	if got := f.rec.count("sched.post_reset"); got != 0 {
		t.Fatalf("scheduler post-reset ran %d times, want 0", got)
	}
	if err := f.dev.Resume(); !errors.Is(err, ErrUnplugged) {
		t.Fatalf("Resume() = %v, want ErrUnplugged", err)
	}
}

func TestSuspendCancelsQueuedReset(t *testing.T) {
	runner := &manualRunner{}
	f := newFixture(t, runner)

	f.dev.ScheduleReset()
	if err := f.dev.Suspend(); err != nil {
		t.Fatalf("Suspend() = %v", err)
	}
	f.rec.clear()

	// The queued task observes the cancellation and exits untouched.
	runner.runAll()
	f.rec.expect(t)
	if f.dev.IsResetPending() {
		t.Fatal("IsResetPending() = true after cancellation")
	}
}

func TestSuspendWaitsForRunningReset(t *testing.T) {
	runner := &manualRunner{}
	f := newFixture(t, runner)

	entered := make(chan struct{})
	release := make(chan struct{})
	f.sched.onPreReset = func() {
		close(entered)
		<-release
	}

	f.dev.ScheduleReset()
	go runner.runAll()
	<-entered

	suspended := make(chan struct{})
	go func() {
		f.dev.Suspend()
		close(suspended)
	}()

	select {
	case <-suspended:
		t.Fatal("Suspend() returned while a reset was running")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-suspended:
	case <-time.After(time.Second):
		t.Fatal("Suspend() did not return after the reset finished")
	}

	// The reset ran to completion before any suspend hook fired.
	events := f.rec.list()
	last := -1
	for i, ev := range events {
		if ev == "sched.post_reset" {
			last = i
		}
		if ev == "sched.suspend" && last == -1 {
			t.Fatalf("suspend hooks ran before the reset completed: %v", events)
		}
	}
	if last == -1 {
		t.Fatalf("reset did not complete: %v", events)
	}
}
