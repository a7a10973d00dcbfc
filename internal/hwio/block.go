// Package hwio provides access to the accelerator's control register file.
package hwio

import (
	"encoding/binary"
	"sync"
)

// Block is a window of 32-bit device registers. Offsets are in bytes from
// the start of the block. Reads of unknown offsets return zero and writes to
// them are dropped, matching how the hardware decodes unclaimed addresses.
type Block interface {
	Read32(offset uint64) uint32
	Write32(offset uint64, value uint32)
}

// ByteRange is implemented by blocks that can expose a raw byte view of a
// register window, suitable for handing to a user-space mapping.
type ByteRange interface {
	Slice(offset, size uint64) ([]byte, bool)
}

// InterruptSource delivers device interrupts from a hardware binding such as
// a UIO node. WaitInterrupt unblocks with an error once the source is closed.
type InterruptSource interface {
	WaitInterrupt() (uint32, error)
	EnableInterrupt() error
	Close() error
}

// MemBlock is an in-memory register block. It backs tests and development
// configurations that have no hardware attached.
type MemBlock struct {
	mu      sync.Mutex
	data    []byte
	onWrite func(offset uint64, value uint32)
}

// NewMemBlock returns a zero-filled register block of the given size in bytes.
func NewMemBlock(size uint64) *MemBlock {
	return &MemBlock{data: make([]byte, size)}
}

// SetWriteHook installs fn to observe every landed write. Tests use this to
// model registers with side effects (e.g. clearing status bits).
func (b *MemBlock) SetWriteHook(fn func(offset uint64, value uint32)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onWrite = fn
}

func (b *MemBlock) Read32(offset uint64) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if offset+4 > uint64(len(b.data)) || offset+4 < offset {
		return 0
	}
	return binary.LittleEndian.Uint32(b.data[offset:])
}

func (b *MemBlock) Write32(offset uint64, value uint32) {
	b.mu.Lock()
	if offset+4 > uint64(len(b.data)) || offset+4 < offset {
		b.mu.Unlock()
		return
	}
	binary.LittleEndian.PutUint32(b.data[offset:], value)
	fn := b.onWrite
	b.mu.Unlock()
	if fn != nil {
		fn(offset, value)
	}
}

// Slice implements ByteRange. The returned slice aliases the block's backing
// store, so writes through Write32 are visible to holders of the slice.
func (b *MemBlock) Slice(offset, size uint64) ([]byte, bool) {
	if offset+size > uint64(len(b.data)) || offset+size < offset {
		return nil, false
	}
	return b.data[offset : offset+size], true
}

var (
	_ Block     = (*MemBlock)(nil)
	_ ByteRange = (*MemBlock)(nil)
)
