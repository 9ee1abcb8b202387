package dispatch

import (
	"fmt"

	"github.com/dynarm/dynarm/internal/platform"
)

// codeRegionSize is the emitted-code allocation's fixed size. Sized well
// past any single-session workload this exercise's test suite produces.
// The size is fixed: Config has no option that changes it.
const codeRegionSize = 64 * 1024 * 1024

// evacuationMargin is the "safety margin" spec §4.6 checks before a miss:
// once fewer than this many bytes remain, a full invalidation runs before
// compiling the next block, rather than risk the allocation overflowing
// mid-emit.
const evacuationMargin = 64 * 1024

// Region is the emitted-code bump allocator: new blocks are always
// appended at the high-water mark, and invalidation resets that mark
// rather than reclaiming individual blocks (spec §4.6 "reset the
// emitted-code high-water pointer").
type Region struct {
	mem      *platform.Region
	highWater int
}

// NewRegion reserves the emitted-code mapping.
func NewRegion() (*Region, error) {
	mem, err := platform.MapExecutable(codeRegionSize)
	if err != nil {
		return nil, err
	}
	return &Region{mem: mem}, nil
}

// Base returns the region's absolute host address, used to compute the
// faulting-PC-relative lookups fastmem needs.
func (r *Region) Base() uintptr { return r.mem.Addr() }

// NeedsEvacuation reports whether fewer than evacuationMargin bytes remain.
func (r *Region) NeedsEvacuation() bool {
	return len(r.mem.Bytes())-r.highWater < evacuationMargin
}

// Reset restores the high-water mark to zero (spec §4.6 full invalidation).
func (r *Region) Reset() { r.highWater = 0 }

// Append copies code into the region at the current high-water mark and
// advances it, returning the absolute byte offset it was written at.
func (r *Region) Append(code []byte) (int, error) {
	buf := r.mem.Bytes()
	if r.highWater+len(code) > len(buf) {
		return 0, fmt.Errorf("dispatch: emitted-code region exhausted (%d of %d bytes used)", r.highWater, len(buf))
	}
	off := r.highWater
	copy(buf[off:], code)
	r.highWater += len(code)
	return off, nil
}

// PatchRel32 rewrites the 4-byte displacement at absolute offset so the
// jump/call whose rel32 operand ends at offset+4 lands at target (both
// absolute offsets within the region), mirroring amd64.Assembler.PatchRel32
// for code already copied into the live region.
func (r *Region) PatchRel32(offset, target int) {
	buf := r.mem.Bytes()
	rel := int32(target - (offset + 4))
	buf[offset] = byte(rel)
	buf[offset+1] = byte(rel >> 8)
	buf[offset+2] = byte(rel >> 16)
	buf[offset+3] = byte(rel >> 24)
}

// PatchImm64 rewrites the 8-byte immediate at absolute offset to v,
// servicing the "mov-rcx-immediate sites" patch kind (spec §4.5
// "Patching").
func (r *Region) PatchImm64(offset int, v uint64) {
	buf := r.mem.Bytes()
	for i := 0; i < 8; i++ {
		buf[offset+i] = byte(v >> (8 * i))
	}
}

// MakeExecutable/MakeWritable toggle the region's protection around a
// batch of appends, matching the W^X discipline platform.Region enforces.
func (r *Region) MakeExecutable() error { return r.mem.MakeExecutable() }
func (r *Region) MakeWritable() error   { return r.mem.MakeWritable() }

// Release unmaps the region.
func (r *Region) Release() error { return r.mem.Release() }

// Bytes returns the emitted bytes written so far, for debug disassembly
// (spec §6 "Disassemble").
func (r *Region) Bytes() []byte { return r.mem.Bytes()[:r.highWater] }
