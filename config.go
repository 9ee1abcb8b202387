// Package dynarm is the embedding-facing API of the ARM dynamic binary
// translator: CPU construction, execution, register state access, and
// cache control (spec §6 "External interfaces"). It wires together
// internal/translate, internal/optimize, internal/host/amd64,
// internal/dispatch, internal/fastmem, and internal/monitor, the same way
// the teacher's internal/engine/wazevo.engine wires
// frontend/ssa/backend together behind NewEngine.
package dynarm

import (
	"github.com/dynarm/dynarm/internal/dispatch"
	"github.com/dynarm/dynarm/internal/fastmem"
	"github.com/dynarm/dynarm/internal/monitor"
)

// Arch selects which guest instruction set a CPU decodes (spec §4.2: A32,
// Thumb is a sub-mode of A32 selected per-Location, and A64).
type Arch int

const (
	ArchA32 Arch = iota
	ArchA64
)

// OptimizationFlag is one bit of the spec §6 "optimizations" bitmask.
type OptimizationFlag uint32

const (
	OptGetSetElimination OptimizationFlag = 1 << iota
	OptDeadCodeElimination
	OptConstantMemoryReads
	OptConstantFolding
	OptMergeInterpretBlocks

	// AllSafeOptimizations is every optimization that never changes
	// observable guest behavior (spec §6: "optimizations ... always ANDed
	// with all_safe_optimizations unless unsafe_optimizations is also
	// set").
	AllSafeOptimizations = OptGetSetElimination | OptDeadCodeElimination |
		OptConstantMemoryReads | OptConstantFolding | OptMergeInterpretBlocks
)

// Config is the single configuration record a CPU is constructed from
// (spec §6 "The configuration is a single record with at least the
// following recognized options").
type Config struct {
	Arch Arch

	// A32Callbacks/A64Callbacks is the callback table for this CPU's
	// architecture; exactly one must be set, matching Arch.
	A32Callbacks *A32Callbacks
	A64Callbacks *A64Callbacks

	// ProcessorID identifies this CPU to the exclusive monitor (spec §6
	// "processor_id: identifier used for the exclusive monitor").
	ProcessorID uint32

	// GlobalMonitor is the shared exclusive monitor instance; nil selects
	// the process-wide default (spec §6 "global_monitor: shared
	// exclusive monitor instance, or absent").
	GlobalMonitor *monitor.Monitor

	// Optimizations is the optimization bitmask. Only whether it has any
	// AllSafeOptimizations bit set is consulted: that enables
	// constant-memory-read folding through IsReadOnlyMemory. The other
	// optimizer passes run on every block whatever bits are set.
	Optimizations OptimizationFlag
	// UnsafeOptimizations enables accuracy-reducing fast paths (spec §6:
	// "unchecked NaN, reduced-precision estimates, unfused FMA"). This
	// exercise's optimizer has no such passes yet (see DESIGN.md); the
	// flag is accepted and threaded through for forward compatibility but
	// currently changes nothing.
	UnsafeOptimizations bool

	// PageTable and its companion flags describe inline fastmem (spec §6
	// "page_table"). They are accepted but not read: set or nil, every
	// guest memory access goes through the callback table. See DESIGN.md's
	// Open Question on fastmem wiring.
	PageTable                              *fastmem.Table
	DetectMisalignedAccessViaPageTable      map[int]bool
	OnlyDetectMisalignmentOnPageBoundary    bool

	// FastmemPointer and RecompileOnFastmemFailure configure A32
	// single-base-window signal-based fastmem (spec §6 "fastmem_pointer").
	// Not yet wired into the emitter (DESIGN.md Open Question 6); accepted
	// for forward compatibility.
	FastmemPointer             uintptr
	RecompileOnFastmemFailure bool

	// HookHintInstructions is accepted but not read by CPU construction or
	// any translator; it has no effect (spec §6).
	HookHintInstructions bool
	// HookDataCacheOperations, when true, makes the A64 translator keep DC
	// ZVA as a DataCacheOperationRaised op instead of zeroing stores, and
	// turns off the optimizer's A32 zero-by-VA expansion.
	HookDataCacheOperations bool
	// DefineUnpredictableBehaviour enables per-instruction defined
	// behavior for unpredictable encodings instead of raising
	// UnpredictableInstruction (spec §6).
	DefineUnpredictableBehaviour bool

	// SuppressCycleAccounting is the "enable_ticks" option of spec §9
	// (DESIGN.md Open Question 2). It is accepted but not read: tick
	// reporting is the same whether it is set or not.
	SuppressCycleAccounting bool
	// AlwaysLittleEndian (A32) pins CPSR.E to 0 (spec §6).
	AlwaysLittleEndian bool

	// A64-only raw architectural register values (spec §6).
	CNTFRQEL0  uint64
	CTREL0     uint64
	DCZIDEL0   uint32
	TPIDREL0   uint64
	TPIDRROEL0 uint64

	// MaxInstructionsPerBlock bounds block length (spec §4.2 contract
	// (b)); 0 means unlimited (blocks run until a terminating
	// instruction).
	MaxInstructionsPerBlock int

	// Entry is the Go-to-emitted-code calling-convention bridge (see
	// dispatch.EntryTrampoline's doc comment and DESIGN.md's Open
	// Questions): the one piece of host-assembly glue this package does
	// not provide. Run/Step return an error until an embedder supplies
	// one.
	Entry dispatch.EntryTrampoline
}

// monitorFor resolves the configured or default exclusive monitor.
func (c *Config) monitorFor() *monitor.Monitor {
	if c.GlobalMonitor != nil {
		return c.GlobalMonitor
	}
	return monitor.Global
}
