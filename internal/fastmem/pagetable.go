// Package fastmem implements the inline page-table memory-access path and
// the signal-based fastmem fault registry (spec §4.7 "Fastmem & exclusive
// monitor"). pagetable.go models the five-step lookup the emitter's inline
// lowering performs in host code; it is expressed here as a Go-level
// algorithm (callable directly by an interpreter fallback or exercised by
// tests) rather than only as a description of machine-code shape, grounded
// the same way internal/translate's opcode visitors are: small functions
// with named steps, one per spec bullet.
package fastmem

import "fmt"

// PageShift is the page-index shift (spec §4.7 step 2: "shift address
// right by 12").
const PageShift = 12

// PageSize is 1<<PageShift.
const PageSize = 1 << PageShift

// AddressingMode selects how a page-table entry's base combines with the
// in-page offset (spec §4.7 step 4: "two addressing modes: local offset
// with mask, or absolute offset where the stored base is pre-biased").
type AddressingMode int

const (
	// AddrModeLocalOffset masks addr to the in-page offset and adds it to
	// the page-table entry's base.
	AddrModeLocalOffset AddressingMode = iota
	// AddrModeAbsoluteOffset adds the full guest address to a pre-biased
	// base (base already has -page_start folded in), skipping the mask.
	AddrModeAbsoluteOffset
)

// Table is the host-side page table an embedding supplies (spec §6
// "page_table: optional pointer to an array of page base pointers").
// Entries are host addresses; a zero entry means "not mapped, use the
// fallback path".
type Table struct {
	Bases []uintptr
	Mode  AddressingMode
	// MirrorOnMiss, when true, silently treats a null entry as "poll the
	// fallback, and if it yields a mapping, populate this entry" (spec §6
	// "silently_mirror_page_table"); when false a miss always falls back.
	MirrorOnMiss bool
}

// MisalignedPolicy is the spec §6 "detect_misaligned_access_via_page_table"
// bitmask, one bit set per access width this table polices for alignment.
type MisalignedPolicy struct {
	Widths              map[int]bool
	OnlyAtPageBoundary bool
}

// Lookup runs the five-step inline algorithm for one access of the given
// width (in bits) at addr (spec §4.7 "Inline page table" steps 1-5). ok is
// false whenever the access must fall back to the memory callback: guest
// address not covered by Bases, an unmapped page, or a misaligned access
// of a policed width (any such access, or with OnlyAtPageBoundary set,
// only one that straddles a page boundary).
func (t *Table) Lookup(addr uint64, widthBits int, policy MisalignedPolicy) (hostAddr uintptr, ok bool) {
	sizeBytes := uint64(widthBits) / 8

	// Step 1: alignment check for sizes >= 16 bits, limited to the widths
	// the config bitmask polices.
	if widthBits >= 16 && policy.Widths[widthBits] && addr%sizeBytes != 0 {
		straddles := (addr%PageSize)+sizeBytes > PageSize
		if straddles || !policy.OnlyAtPageBoundary {
			return 0, false
		}
	}

	// Step 2: page index, optionally range-checked against the table.
	index := addr >> PageShift
	if index >= uint64(len(t.Bases)) {
		return 0, false
	}

	// Step 3: page base lookup, fallback on a null entry.
	base := t.Bases[index]
	if base == 0 {
		return 0, false
	}

	// Step 4: combine base with the in-page offset per addressing mode.
	switch t.Mode {
	case AddrModeLocalOffset:
		return base + uintptr(addr&(PageSize-1)), true
	case AddrModeAbsoluteOffset:
		return base + uintptr(addr), true
	default:
		panic(fmt.Sprintf("fastmem: invalid addressing mode %d", t.Mode))
	}
}

// RecordMiss implements silently_mirror_page_table: once the fallback
// callback proves page P is now mapped, future lookups in P skip the
// callback. index is addr>>PageShift; hostBase is the resolved base for
// the addressing mode already configured on t.
func (t *Table) RecordMiss(index uint64, hostBase uintptr) {
	if !t.MirrorOnMiss {
		return
	}
	if index < uint64(len(t.Bases)) {
		t.Bases[index] = hostBase
	}
}
