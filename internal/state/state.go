// Package state defines the fixed byte layout of the guest-state struct
// shared by the emitter (internal/host/amd64), the dispatcher
// (internal/dispatch), and fastmem/the exclusive monitor (internal/fastmem,
// internal/monitor): one flat buffer, addressed by constant offsets, the
// same way the teacher addresses its moduleContextOpaque via fixed offsets
// from a single base pointer rather than a typed Go struct (so the emitted
// code's own offset-based addressing and a Go-side struct never have to
// agree on alignment/padding rules).
package state

import "github.com/dynarm/dynarm/internal/ir"

// RegSlotBytes is the per-RegName slot width (spec §4.3 step 2 lists GPRs,
// flags, FPR lanes, SP, PC, extended registers, and CPSR fields as the
// slot kinds; 16 bytes covers the widest of these, a 128-bit vector lane,
// uniformly).
const RegSlotBytes = 16

// numRegNames covers the full ir.RegName address space, including the
// ir.RegCheckBit pseudo-register at the top of the range.
const numRegNames = int(ir.RegCheckBit) + 1

// MemCallbackSlots is one function-pointer slot per (read/write × 5
// widths) combination (spec §4.5 "Memory": "a callback fallback").
const MemCallbackSlots = 10

// FPCallbackSlots is one function-pointer slot per floating-point
// control-bit helper the emitter calls out to Go for (round-to-integral,
// convert-to-int, convert-from-int; spec §4.5 "Floating-point"), the same
// callback-through-function-pointer-slot shape as the memory callbacks
// above.
const FPCallbackSlots = 3

// SpillSlotBytes is the width of one internal/regalloc spill slot.
const SpillSlotBytes = 8

// MaxSpillSlots bounds the spill array's size. internal/regalloc's linear
// scan over one straight-line block needs only as many slots as the block
// has simultaneously-spilled live values, which in practice never
// approaches this bound; CPU construction validates
// Allocator.SpillSlotCount() against it per block (internal/dispatch).
const MaxSpillSlots = 256

// RSBSize is the return-stack buffer's entry count, a power of two so
// PopRSBHint/PushRSB can index it with a mask instead of a modulo (spec
// §4.5 "a small return-stack buffer ... power-of-two ring").
const RSBSize = 32

// RSBEntryBytes is one (location PC, code offset) pair.
const RSBEntryBytes = 16

// FastDispatchSize is the direct-mapped fast-dispatch table's entry count
// (spec §4.6 "SUPPLEMENTED FEATURES": "a direct-mapped hash table").
const FastDispatchSize = 4096

// FastDispatchEntryBytes is one (location PC, code offset) pair, same
// shape as an RSB entry.
const FastDispatchEntryBytes = 16

// Region offsets, in layout order.
const (
	RegsOffset = 0
	RegsSize   = numRegNames * RegSlotBytes

	HaltOffset = RegsOffset + RegsSize

	MemCallbacksOffset = HaltOffset + 8
	MemCallbacksSize   = MemCallbackSlots * 8

	FPCallbacksOffset = MemCallbacksOffset + MemCallbacksSize
	FPCallbacksSize   = FPCallbackSlots * 8

	SpillOffset = FPCallbacksOffset + FPCallbacksSize
	SpillSize   = MaxSpillSlots * SpillSlotBytes

	RSBOffset    = SpillOffset + SpillSize
	RSBTopOffset = RSBOffset + RSBSize*RSBEntryBytes

	FastDispatchOffset = RSBTopOffset + 8

	// TicksRemainingOffset/TicksConsumedOffset back GetTicksRemaining/
	// AddTicks (spec §4.6 "Run loop").
	TicksRemainingOffset = FastDispatchOffset + FastDispatchSize*FastDispatchEntryBytes
	TicksConsumedOffset  = TicksRemainingOffset + 8

	// ProcessorIDOffset identifies this CPU instance to
	// internal/monitor's per-processor exclusive-monitor table.
	ProcessorIDOffset = TicksConsumedOffset + 8

	// CurrentPCOffset holds the guest PC last materialized by OpSetPC (the
	// builder's implicit "keep PC current before any register access"
	// instruction, spec §4.1 "Builder"). Memory and FP-helper callbacks
	// reach into this slot for precise-PC fault reporting rather than
	// every callback site threading the PC through as an extra argument.
	CurrentPCOffset = ProcessorIDOffset + 8

	TotalSize = CurrentPCOffset + 8
)

// RegOffset returns the byte offset of the slot for a RegName.
func RegOffset(name ir.RegName) int32 { return int32(name) * RegSlotBytes }

// SpillOffsetFor returns the byte offset of spill slot n, validated by the
// caller against MaxSpillSlots (internal/regalloc.Allocator.SpillSlotCount).
func SpillOffsetFor(n int) int32 { return int32(SpillOffset) + int32(n)*SpillSlotBytes }

// ReadCallbackOffset/WriteCallbackOffset return the byte offset of the
// function-pointer slot for one of the five access widths (index 0..4 for
// 8/16/32/64/128 bits).
func ReadCallbackOffset(widthIdx int) int32 {
	return int32(MemCallbacksOffset) + int32(widthIdx)*8
}

func WriteCallbackOffset(widthIdx int) int32 {
	return int32(MemCallbacksOffset) + int32(5+widthIdx)*8
}

// FPHelper indexes the three floating-point control-bit helper slots.
type FPHelper int

const (
	FPHelperRoundInt FPHelper = iota
	FPHelperConvertToInt
	FPHelperConvertFromInt
)

// FPCallbackOffset returns the byte offset of the function-pointer slot for
// one floating-point helper.
func FPCallbackOffset(h FPHelper) int32 {
	return int32(FPCallbacksOffset) + int32(h)*8
}
