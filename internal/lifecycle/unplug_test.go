package lifecycle

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tinyrange/accel/internal/irq"
)

func TestUnplugOrder(t *testing.T) {
	f := newFixture(t, nil)

	line := irq.NewLine("job", f.regs, irq.Triple{Status: 0x80, Clear: 0x84, Mask: 0x88}, nil, f.dev.Guard(), nil)
	f.dev.AddLine(line)
	line.Resume(0x1)

	f.dev.Unplug()
	f.rec.expect(t,
		"sched.unplug", "fw.unplug", "mmu.unplug", "core.unplug",
		"clocks.disable")
	if !f.dev.Unplugged() {
		t.Fatal("Unplugged() = false")
	}
	if !f.dev.Guard().Removed() {
		t.Fatal("guard not marked removed")
	}

	// The line was suspended and closed as part of the teardown.
	f.regs.Write32(0x80, 0x1)
	if got := line.Trigger(); got != irq.AckNone {
		t.Fatalf("Trigger() after Unplug = %v, want AckNone", got)
	}
}

func TestUnplugIdempotent(t *testing.T) {
	f := newFixture(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.dev.Unplug()
		}()
	}
	wg.Wait()

	if got := f.rec.count("fw.unplug"); got != 1 {
		t.Fatalf("unplug hooks ran %d times, want 1", got)
	}
}

func TestUnplugDrainsGuardTokens(t *testing.T) {
	f := newFixture(t, nil)

	tok, err := f.dev.Guard().Acquire()
	if err != nil {
		t.Fatalf("Acquire() = %v", err)
	}

	done := make(chan struct{})
	go func() {
		f.dev.Unplug()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Unplug() returned with a guard token outstanding")
	case <-time.After(20 * time.Millisecond):
	}

	tok.Release()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Unplug() did not return after the token was released")
	}
}

func TestUnplugFromSuspended(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.dev.Suspend(); err != nil {
		t.Fatalf("Suspend() = %v", err)
	}
	f.rec.clear()

	// Removal hooks run regardless of the power state.
	f.dev.Unplug()
	f.rec.expect(t,
		"sched.unplug", "fw.unplug", "mmu.unplug", "core.unplug",
		"clocks.disable")

	if err := f.dev.Resume(); !errors.Is(err, ErrUnplugged) {
		t.Fatalf("Resume() after Unplug = %v, want ErrUnplugged", err)
	}
}

func TestScheduleResetAfterUnplug(t *testing.T) {
	runner := &manualRunner{}
	f := newFixture(t, runner)

	f.dev.Unplug()
	f.rec.clear()

	f.dev.ScheduleReset()
	runner.runAll()

	// The recovery task bails out at the liveness gate.
	if got := f.rec.count("fw.pre_reset_forced"); got != 0 {
		t.Fatalf("reset ran %d times on a removed device, want 0", got)
	}
	if f.dev.IsResetPending() {
		t.Fatal("IsResetPending() = true on a removed device")
	}
}
