//go:build linux

package hwio

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// UIODevice is a register block backed by a Linux userspace I/O device.
// The first mapping of the device node is the control register BAR; interrupt
// delivery uses the UIO convention of blocking 4-byte reads on the node.
type UIODevice struct {
	f   *os.File
	mem []byte

	mu     sync.Mutex
	closed bool
}

// OpenUIO maps barSize bytes of the register BAR exposed by the UIO node at
// path. barSize must match the size declared by the kernel driver.
func OpenUIO(path string, barSize uint64) (*UIODevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("hwio: open %s: %w", path, err)
	}

	mem, err := unix.Mmap(int(f.Fd()), 0, int(barSize),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("hwio: map %s: %w", path, err)
	}

	return &UIODevice{f: f, mem: mem}, nil
}

func (d *UIODevice) Read32(offset uint64) uint32 {
	if offset+4 > uint64(len(d.mem)) || offset+4 < offset {
		return 0
	}
	return binary.LittleEndian.Uint32(d.mem[offset:])
}

func (d *UIODevice) Write32(offset uint64, value uint32) {
	if offset+4 > uint64(len(d.mem)) || offset+4 < offset {
		return
	}
	binary.LittleEndian.PutUint32(d.mem[offset:], value)
}

// Slice implements ByteRange over the mapped BAR.
func (d *UIODevice) Slice(offset, size uint64) ([]byte, bool) {
	if offset+size > uint64(len(d.mem)) || offset+size < offset {
		return nil, false
	}
	return d.mem[offset : offset+size], true
}

// WaitInterrupt blocks until the device raises an interrupt and returns the
// kernel's event count. It returns an error once the device is closed.
func (d *UIODevice) WaitInterrupt() (uint32, error) {
	var buf [4]byte
	if _, err := d.f.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("hwio: wait interrupt: %w", err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// EnableInterrupt re-arms interrupt delivery after a handled event.
func (d *UIODevice) EnableInterrupt() error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], 1)
	if _, err := d.f.Write(buf[:]); err != nil {
		return fmt.Errorf("hwio: enable interrupt: %w", err)
	}
	return nil
}

// Close unmaps the BAR and closes the device node, unblocking any pending
// WaitInterrupt call.
func (d *UIODevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	if err := unix.Munmap(d.mem); err != nil {
		d.f.Close()
		return fmt.Errorf("hwio: unmap: %w", err)
	}
	return d.f.Close()
}

var (
	_ Block     = (*UIODevice)(nil)
	_ ByteRange = (*UIODevice)(nil)
)
