package lifecycle

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/tinyrange/accel/internal/hwio"
	"github.com/tinyrange/accel/internal/taskq"
)

// recorder collects lifecycle hook invocations in order.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) record(ev string) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.events...)
}

func (r *recorder) clear() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

func (r *recorder) expect(t *testing.T, want ...string) {
	t.Helper()
	got := r.list()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

// count returns how many recorded events equal ev.
func (r *recorder) count(ev string) int {
	n := 0
	for _, e := range r.list() {
		if e == ev {
			n++
		}
	}
	return n
}

type fakeSubsystem struct {
	name string
	rec  *recorder

	resumeErr    error
	postResetErr error
	onPreReset   func()
}

func (s *fakeSubsystem) PreReset() {
	s.rec.record(s.name + ".pre_reset")
	if s.onPreReset != nil {
		s.onPreReset()
	}
}

func (s *fakeSubsystem) PostReset() error {
	s.rec.record(s.name + ".post_reset")
	return s.postResetErr
}

func (s *fakeSubsystem) Suspend() { s.rec.record(s.name + ".suspend") }

func (s *fakeSubsystem) Resume() error {
	s.rec.record(s.name + ".resume")
	return s.resumeErr
}

func (s *fakeSubsystem) Unplug() { s.rec.record(s.name + ".unplug") }

type fakeFirmware struct {
	rec *recorder

	resumeErr    error
	postResetErr error
}

func (f *fakeFirmware) PreReset(force bool) {
	if force {
		f.rec.record("fw.pre_reset_forced")
	} else {
		f.rec.record("fw.pre_reset")
	}
}

func (f *fakeFirmware) PostReset() error {
	f.rec.record("fw.post_reset")
	return f.postResetErr
}

func (f *fakeFirmware) Suspend() { f.rec.record("fw.suspend") }

func (f *fakeFirmware) Resume() error {
	f.rec.record("fw.resume")
	return f.resumeErr
}

func (f *fakeFirmware) Unplug() { f.rec.record("fw.unplug") }

type fakeClocks struct {
	rec     *recorder
	coreErr error
	auxErr  error
}

func (c *fakeClocks) EnableCore() error {
	c.rec.record("clocks.core")
	return c.coreErr
}

func (c *fakeClocks) EnableAux() error {
	c.rec.record("clocks.aux")
	return c.auxErr
}

func (c *fakeClocks) Disable() { c.rec.record("clocks.disable") }

type fakeScaler struct {
	rec        *recorder
	suspendErr error
	resumeErr  error
}

func (s *fakeScaler) Suspend() error {
	s.rec.record("scaler.suspend")
	return s.suspendErr
}

func (s *fakeScaler) Resume() error {
	s.rec.record("scaler.resume")
	return s.resumeErr
}

// manualRunner queues submitted tasks for explicit execution by the test.
type manualRunner struct {
	mu    sync.Mutex
	tasks []func()
}

func (r *manualRunner) Submit(fn func()) bool {
	if fn == nil {
		return false
	}
	r.mu.Lock()
	r.tasks = append(r.tasks, fn)
	r.mu.Unlock()
	return true
}

func (r *manualRunner) pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

func (r *manualRunner) runAll() {
	r.mu.Lock()
	tasks := r.tasks
	r.tasks = nil
	r.mu.Unlock()
	for _, fn := range tasks {
		fn()
	}
}

const (
	resetOffset = 0x40
	resetValue  = 0xdead0001
)

// fixture wires a device to recording fakes and completes first-time
// bring-up, leaving the device Active with the probe events cleared.
type fixture struct {
	rec    *recorder
	regs   *hwio.MemBlock
	core   *fakeSubsystem
	mmu    *fakeSubsystem
	fw     *fakeFirmware
	sched  *fakeSubsystem
	clocks *fakeClocks
	scaler *fakeScaler
	dev    *Device
}

func newFixture(t *testing.T, runner taskq.Runner) *fixture {
	t.Helper()
	if runner == nil {
		runner = taskq.SyncRunner{}
	}
	rec := &recorder{}
	f := &fixture{
		rec:    rec,
		regs:   hwio.NewMemBlock(0x1000),
		core:   &fakeSubsystem{name: "core", rec: rec},
		mmu:    &fakeSubsystem{name: "mmu", rec: rec},
		fw:     &fakeFirmware{rec: rec},
		sched:  &fakeSubsystem{name: "sched", rec: rec},
		clocks: &fakeClocks{rec: rec},
		scaler: &fakeScaler{rec: rec},
	}
	f.dev = New(Params{
		Name:      "test0",
		Registers: f.regs,
		SoftReset: RegisterWrite{Offset: resetOffset, Value: resetValue},
		Clocks:    f.clocks,
		Scaler:    f.scaler,
		Subsystems: Subsystems{
			Core:      f.core,
			MMU:       f.mmu,
			Firmware:  f.fw,
			Scheduler: f.sched,
		},
		Runner: runner,
		Logger: slog.New(slog.DiscardHandler),
	})

	if err := f.dev.Resume(); err != nil {
		t.Fatalf("probe Resume() = %v", err)
	}
	if err := f.dev.InitHardware(); err != nil {
		t.Fatalf("InitHardware() = %v", err)
	}
	f.regs.Write32(resetOffset, 0)
	rec.clear()
	return f
}
