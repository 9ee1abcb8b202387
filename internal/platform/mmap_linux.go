// Package platform wraps the host mmap/mprotect primitives the emitted-code
// region (internal/dispatch) and the guest-state struct need: an
// executable/writable mapping acquired once at construction and released at
// destruction (spec §5 "Resource discipline").
package platform

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Region is one mmap'd allocation, tracked so Release can munmap the exact
// span it was given.
type Region struct {
	mem []byte
}

// MapExecutable reserves size bytes, initially RW, so code can be written
// before a later MakeExecutable call switches it to RX (W^X discipline).
func MapExecutable(size int) (*Region, error) {
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("platform: mmap %d bytes: %w", size, err)
	}
	return &Region{mem: mem}, nil
}

// Bytes exposes the mapping for writing freshly emitted code into.
func (r *Region) Bytes() []byte { return r.mem }

// MakeExecutable switches the region from RW to RX, matching the W^X
// discipline expected of an emitted-code region once a batch of blocks has
// been written.
func (r *Region) MakeExecutable() error {
	if err := unix.Mprotect(r.mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("platform: mprotect RX: %w", err)
	}
	return nil
}

// MakeWritable switches the region back to RW so the dispatcher can append
// or patch code; callers must not execute code in the region while it is
// writable.
func (r *Region) MakeWritable() error {
	if err := unix.Mprotect(r.mem, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("platform: mprotect RW: %w", err)
	}
	return nil
}

// Release unmaps the region. The caller must not use Bytes after this.
func (r *Region) Release() error {
	if err := unix.Munmap(r.mem); err != nil {
		return fmt.Errorf("platform: munmap: %w", err)
	}
	r.mem = nil
	return nil
}

// Addr returns the region's base address as a uintptr, used to compute
// relative offsets for fastmem's faulting-PC lookup (internal/fastmem).
func (r *Region) Addr() uintptr {
	if len(r.mem) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&r.mem[0]))
}
