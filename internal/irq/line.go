// Package irq implements registration, suspend and resume of accelerator
// interrupt lines.
//
// A Line is parameterized by the status/clear/mask register triple of one
// physical interrupt source and a handler closure, so each line of a device
// is one instantiation of the same type. Handling is split into a fast
// acknowledge phase, which only masks the line, and a deferred phase that
// clears and dispatches on a per-line worker goroutine.
package irq

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tinyrange/accel/internal/hwio"
	"github.com/tinyrange/accel/internal/liveness"
)

// Ack is the fast-phase verdict for a raised interrupt.
type Ack int

const (
	// AckNone means the line did not assert the interrupt (shared-line
	// "not mine").
	AckNone Ack = iota
	// AckDeferred means the line's sources were masked and deferred
	// processing was scheduled.
	AckDeferred
)

// Triple names the register offsets a line is driven by.
type Triple struct {
	Status uint64
	Clear  uint64
	Mask   uint64
}

// Handler receives the asserted status bitmap during the deferred phase.
// A line's handler never runs concurrently with itself; handlers of distinct
// lines run independently.
type Handler func(status uint32)

// Line is one hardware interrupt source with its own enable mask and suspend
// flag. Suspend and Resume must be externally synchronized with each other.
type Line struct {
	name    string
	regs    hwio.Block
	t       Triple
	handler Handler
	guard   *liveness.Guard
	log     *slog.Logger

	// mu serializes the deferred phase; Suspend takes it to wait out an
	// in-flight handler invocation.
	mu        sync.Mutex
	mask      atomic.Uint32
	suspended atomic.Bool

	wake    chan struct{}
	stop    chan struct{}
	stopped chan struct{}
	closed  sync.Once
}

// NewLine builds a line and starts its deferred-phase worker. The line starts
// suspended; call Resume with the initial enable mask to arm it.
func NewLine(name string, regs hwio.Block, t Triple, handler Handler, guard *liveness.Guard, log *slog.Logger) *Line {
	if log == nil {
		log = slog.Default()
	}
	if handler == nil {
		handler = func(status uint32) {
			log.Warn("unhandled interrupt", "line", name, "status", status)
		}
	}
	l := &Line{
		name:    name,
		regs:    regs,
		t:       t,
		handler: handler,
		guard:   guard,
		log:     log,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	l.suspended.Store(true)
	go l.worker()
	return l
}

func (l *Line) Name() string { return l.name }

// Trigger is the fast acknowledge phase, called from the interrupt delivery
// context. It never clears status bits or runs subsystem work; it only masks
// the line and wakes the deferred phase.
func (l *Line) Trigger() Ack {
	if l.suspended.Load() {
		return AckNone
	}
	if l.regs.Read32(l.t.Status) == 0 {
		return AckNone
	}
	l.regs.Write32(l.t.Mask, 0)
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return AckDeferred
}

func (l *Line) worker() {
	defer close(l.stopped)
	for {
		select {
		case <-l.stop:
			return
		case <-l.wake:
			l.process()
		}
	}
}

// process drains the line: clear asserted bits, dispatch, and repeat until no
// enabled source is pending, which also covers interrupts that arrived while
// the handler was running. The enable mask is restored only if the line was
// not suspended in the meantime. A guard token is held across the register
// accesses; on a removed device the line stays masked and nothing runs.
func (l *Line) process() {
	l.mu.Lock()
	defer l.mu.Unlock()

	tok, err := l.guard.Acquire()
	if err != nil {
		return
	}
	defer tok.Release()

	for {
		status := l.regs.Read32(l.t.Status) & l.mask.Load()
		if status == 0 {
			break
		}
		l.regs.Write32(l.t.Clear, status)
		l.handler(status)
	}

	if !l.suspended.Load() {
		l.regs.Write32(l.t.Mask, l.mask.Load())
	}
}

// Suspend masks the line and waits for any in-flight handler invocation to
// finish. Register writes are skipped if the device has been removed.
func (l *Line) Suspend() {
	l.suspended.Store(true)
	if tok, err := l.guard.Acquire(); err == nil {
		l.regs.Write32(l.t.Mask, 0)
		tok.Release()
	}
	// Wait out a deferred phase that is already running.
	l.mu.Lock()
	l.mask.Store(0)
	l.mu.Unlock()
}

// Resume arms the line with the given enable mask, dropping any stale pending
// bits first.
func (l *Line) Resume(mask uint32) {
	l.suspended.Store(false)
	l.mask.Store(mask)
	if tok, err := l.guard.Acquire(); err == nil {
		l.regs.Write32(l.t.Clear, ^uint32(0))
		l.regs.Write32(l.t.Mask, mask)
		tok.Release()
	}
}

// Close stops the worker. The line must be suspended first if hardware
// masking is required.
func (l *Line) Close() {
	l.closed.Do(func() { close(l.stop) })
	<-l.stopped
}
