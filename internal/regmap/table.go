// Package regmap resolves user-space mappings of accelerator control
// registers.
//
// Mapping a register window is lazy: Map only validates the request, and the
// backing page is resolved on first access. While the device is powered down
// an access resolves to a static, process-wide dummy page instead of live
// hardware; the power-state controller drops cached resolutions at both ends
// of every transition so a mapping can never go stale against the true power
// state.
package regmap

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/tinyrange/accel/internal/liveness"
)

// PageSize is the only mappable granule.
const PageSize = 0x1000

// FlushSentinel is the word stored in the dummy page. The value 0 means
// "flush always required" in the command-stream protocol, so the substitute
// page must read as 1 ("already flushed") to avoid forcing flushes while the
// hardware is powered down.
const FlushSentinel = 1

var (
	ErrUnknownRegion  = errors.New("regmap: unknown register region")
	ErrBadSize        = errors.New("regmap: mapping must cover exactly one page")
	ErrBadProtection  = errors.New("regmap: mapping must be read-only and non-executable")
	ErrBusError       = errors.New("regmap: bus error: device removed")
	ErrWindowConflict = errors.New("regmap: register window conflict")
)

// Protection is the access protection requested for a mapping.
type Protection uint8

const (
	ProtRead Protection = 1 << iota
	ProtWrite
	ProtExec
)

// dummyPage substitutes for live registers while the device is powered down.
// One page per process, shared by every mapping of every device.
var dummyPage = func() *[PageSize]byte {
	p := new([PageSize]byte)
	binary.LittleEndian.PutUint32(p[:4], FlushSentinel)
	return p
}()

type window struct {
	name string
	page []byte
}

// Table owns the register windows of one device and every live mapping of
// them. The active callback reports whether the device is currently powered;
// it is consulted under the table lock.
type Table struct {
	guard  *liveness.Guard
	active func() bool

	mu       sync.Mutex
	windows  map[uint64]*window
	mappings map[*Mapping]struct{}
}

func NewTable(guard *liveness.Guard, active func() bool) *Table {
	return &Table{
		guard:    guard,
		active:   active,
		windows:  make(map[uint64]*window),
		mappings: make(map[*Mapping]struct{}),
	}
}

// AddWindow registers the register page backing the given logical offset.
func (t *Table) AddWindow(name string, offset uint64, page []byte) error {
	if len(page) != PageSize {
		return fmt.Errorf("%w: window %q is %d bytes", ErrBadSize, name, len(page))
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.windows[offset]; ok {
		return fmt.Errorf("%w: offset 0x%x", ErrWindowConflict, offset)
	}
	t.windows[offset] = &window{name: name, page: page}
	return nil
}

// Map validates a mapping request and returns a lazy mapping. No page is
// resolved until the first Page call.
func (t *Table) Map(offset, length uint64, prot Protection) (*Mapping, error) {
	if length != PageSize {
		return nil, ErrBadSize
	}
	if prot&(ProtWrite|ProtExec) != 0 || prot&ProtRead == 0 {
		return nil, ErrBadProtection
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.windows[offset]
	if !ok {
		return nil, fmt.Errorf("%w: offset 0x%x", ErrUnknownRegion, offset)
	}

	m := &Mapping{t: t, win: w}
	t.mappings[m] = struct{}{}
	return m, nil
}

// Transition runs fn under the mapping lock and then drops every cached page
// resolution. A concurrent fault either completes before the transition (and
// its resolution is dropped) or starts after it (and observes the new state),
// so no mapping can point at a page inconsistent with the power state.
func (t *Table) Transition(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fn != nil {
		fn()
	}
	for m := range t.mappings {
		m.page = nil
	}
}

// Mapping is one validated user mapping of a register window.
type Mapping struct {
	t   *Table
	win *window

	// page is the cached fault resolution, guarded by t.mu. nil means the
	// next access faults again.
	page []byte
}

// Page resolves the mapping, as the page-fault callback does on first access:
// the real register page while the device is active, the dummy page
// otherwise. It fails with ErrBusError once the device has been removed.
func (m *Mapping) Page() ([]byte, error) {
	tok, err := m.t.guard.Acquire()
	if err != nil {
		return nil, ErrBusError
	}
	defer tok.Release()

	m.t.mu.Lock()
	defer m.t.mu.Unlock()
	if m.page == nil {
		if m.t.active() {
			m.page = m.win.page
		} else {
			m.page = dummyPage[:]
		}
	}
	return m.page, nil
}

// Close drops the mapping from the table.
func (m *Mapping) Close() {
	m.t.mu.Lock()
	defer m.t.mu.Unlock()
	delete(m.t.mappings, m)
	m.page = nil
}
