package dispatch

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/dynarm/dynarm/internal/host/amd64"
	"github.com/dynarm/dynarm/internal/ir"
	"github.com/dynarm/dynarm/internal/optimize"
	"github.com/dynarm/dynarm/internal/state"
	"github.com/dynarm/dynarm/internal/translate"
)

// EntryTrampoline bridges Go's calling convention to the emitted code's
// (guest-state pointer in RBP, page-table base in R15, spec §4.4): it is
// the one piece of this backend that is genuinely host-assembly glue
// rather than adapted teacher logic, normally a few hand-written
// instructions per GOARCH (load RBP/R15 from args, call codeAddr, return
// whatever codeAddr left in RAX). Not provided by this package — see
// DESIGN.md's Open Questions — callers supply it via Dispatcher.Entry.
type EntryTrampoline func(statePtr unsafe.Pointer, codeAddr uintptr) uint64

// Dispatcher owns the block cache, the emitted-code region, and the
// guest-state buffer's RSB/fast-dispatch/halt-flag slots (spec §4.6 "Run
// loop", "Cache miss path", "Invalidation", "Halt semantics").
type Dispatcher struct {
	mu sync.Mutex

	cache  *Cache
	region *Region

	mem  translate.MemReadFunc
	opts translate.Options

	optCfg *optimize.Config

	Entry EntryTrampoline
}

// New constructs a Dispatcher with a fresh emitted-code region.
func New(mem translate.MemReadFunc, opts translate.Options, optCfg *optimize.Config) (*Dispatcher, error) {
	region, err := NewRegion()
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		cache:  NewCache(),
		region: region,
		mem:    mem,
		opts:   opts,
		optCfg: optCfg,
	}, nil
}

// StateBase returns the emitted-code region's base address, which the
// guest-state buffer's page-table-base/fastmem wiring needs (internal/
// fastmem's faulting-PC lookup).
func (d *Dispatcher) StateBase() uintptr { return d.region.Base() }

// CodeBytes returns the emitted bytes written so far, for debug
// disassembly (spec §6 "Disassemble").
func (d *Dispatcher) CodeBytes() []byte { return d.region.Bytes() }

// Close unmaps the emitted-code region (spec §6 "drop").
func (d *Dispatcher) Close() error { return d.region.Release() }

// compile runs translate -> optimize -> emit for loc and appends the
// result to the region (spec §4.6 "Cache miss path").
func (d *Dispatcher) compile(b *ir.Builder, loc ir.Location) (*amd64.BlockResult, error) {
	b.Reset()
	blk, err := translate.Translate(b, loc, d.mem, d.opts)
	if err != nil {
		return nil, fmt.Errorf("dispatch: translate %#x: %w", loc.PC, err)
	}

	cfg := *d.optCfg
	cfg.A64 = loc.Arch() == ir.ArchA64
	if err := optimize.Run(blk, &cfg); err != nil {
		return nil, fmt.Errorf("dispatch: optimize %#x: %w", loc.PC, err)
	}

	producerOf := func(v ir.Value) *ir.Instruction {
		if !v.Valid() {
			return nil
		}
		for i := blk.Root(); i != nil; i = i.Next() {
			if i.Result().Valid() && i.Result().ID() == v.ID() {
				return i
			}
		}
		return nil
	}
	e := amd64.NewEmitter(amd64.SysVRegInfo, producerOf)
	result, err := e.Lower(blk)
	if err != nil {
		return nil, fmt.Errorf("dispatch: emit %#x: %w", loc.PC, err)
	}
	if result.SpillSlots > state.MaxSpillSlots {
		return nil, fmt.Errorf("dispatch: block at %#x needs %d spill slots, more than the %d the guest-state struct reserves", loc.PC, result.SpillSlots, state.MaxSpillSlots)
	}
	return result, nil
}

// Resolve returns loc's entrypoint, compiling it on a cache miss and
// draining any patch sites that were waiting on it (spec §4.6).
func (d *Dispatcher) Resolve(b *ir.Builder, loc ir.Location) (int, error) {
	if desc, ok := d.cache.Lookup(loc); ok {
		return desc.CodeOffset, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Re-check under the lock: another caller may have compiled loc while
	// this one was waiting.
	if desc, ok := d.cache.Lookup(loc); ok {
		return desc.CodeOffset, nil
	}

	if d.region.NeedsEvacuation() {
		d.InvalidateAll()
	}

	result, err := d.compile(b, loc)
	if err != nil {
		return 0, err
	}

	if err := d.region.MakeWritable(); err != nil {
		return 0, err
	}
	entry, err := d.region.Append(result.Code)
	if err != nil {
		return 0, err
	}

	// This block's own outgoing references: patch immediately against an
	// already-cached target, otherwise queue as pending on that target.
	for _, s := range result.CondJumpSites {
		d.resolveOutgoing(PatchCondJump, entry+s.Offset, s.Target)
	}
	for _, s := range result.JumpSites {
		d.resolveOutgoing(PatchJump, entry+s.Offset, s.Target)
	}
	for _, s := range result.MovImmSites {
		d.resolveOutgoing(PatchMovImm, entry+s.Offset, s.Target)
	}

	// Other blocks' references that were waiting on this one.
	resolved := d.cache.Insert(loc, entry)
	for _, off := range resolved.CondJumpSites {
		d.region.PatchRel32(off, entry)
	}
	for _, off := range resolved.JumpSites {
		d.region.PatchRel32(off, entry)
	}
	for _, off := range resolved.MovImmSites {
		d.region.PatchImm64(off, uint64(d.region.Base())+uint64(entry))
	}

	if err := d.region.MakeExecutable(); err != nil {
		return 0, err
	}
	return entry, nil
}

// resolveOutgoing patches an outgoing site immediately if its target is
// already cached, otherwise records it as pending (spec §4.5 "if present,
// emit a direct jump ...; if absent, emit a jump to a trampoline and
// record a patch site").
func (d *Dispatcher) resolveOutgoing(kind PatchKind, absOffset int, target ir.Location) {
	if desc, ok := d.cache.Lookup(target); ok {
		switch kind {
		case PatchMovImm:
			d.region.PatchImm64(absOffset, uint64(d.region.Base())+uint64(desc.CodeOffset))
		default:
			d.region.PatchRel32(absOffset, desc.CodeOffset)
		}
		return
	}
	d.cache.AddPending(target, kind, absOffset)
}

// InvalidateAll implements full invalidation (spec §4.6).
func (d *Dispatcher) InvalidateAll() {
	d.cache.ClearAll()
	d.region.Reset()
}

// InvalidateRange implements range-based invalidation (spec §4.6): blocks
// whose guest PC falls in [start, end) are dropped from the cache. Their
// incoming patch sites are not un-patched in place (doing so safely
// requires tracking, per descriptor, which *other* block's patch list
// referenced it — a second index this representative implementation
// does not maintain); instead the next Resolve for any affected caller
// recompiles and relinks through the ordinary pending-patch path.
func (d *Dispatcher) InvalidateRange(start, end uint64) {
	d.cache.InvalidateRange(start, end)
}

// SetHalt stores v (as 1 or 0) into the guest-state halt flag at the given
// base pointer (spec §4.6 "Halt semantics": "A concurrent caller can set the
// halt flag at any time").
func SetHalt(statePtr unsafe.Pointer, v bool) {
	p := (*uint64)(unsafe.Pointer(uintptr(statePtr) + uintptr(state.HaltOffset)))
	if v {
		*p = 1
	} else {
		*p = 0
	}
}

// GetTicksRemaining reads the guest-state ticks-remaining field and
// AddTicks adds to the ticks-consumed field. Run calls AddTicks with the
// value the entry trampoline returns; it neither reads nor zeroes the
// ticks-remaining field.
func GetTicksRemaining(statePtr unsafe.Pointer) int64 {
	p := (*int64)(unsafe.Pointer(uintptr(statePtr) + uintptr(state.TicksRemainingOffset)))
	return *p
}

func AddTicks(statePtr unsafe.Pointer, n int64) {
	p := (*int64)(unsafe.Pointer(uintptr(statePtr) + uintptr(state.TicksConsumedOffset)))
	*p += n
}

// Run executes guest code starting at loc until a terminator returns
// control to the dispatcher (spec §4.6 "Run loop"). regInfo and the
// Allocator live entirely inside compile/Resolve; Run itself only manages
// the trampoline call and tick accounting, matching spec's division of
// labor between the dispatcher and the emitter.
func (d *Dispatcher) Run(b *ir.Builder, statePtr unsafe.Pointer, loc ir.Location) error {
	if d.Entry == nil {
		return fmt.Errorf("dispatch: no EntryTrampoline configured")
	}
	entry, err := d.Resolve(b, loc)
	if err != nil {
		return err
	}
	codeAddr := d.region.Base() + uintptr(entry)
	consumed := d.Entry(statePtr, codeAddr)
	AddTicks(statePtr, int64(consumed))
	return nil
}

// Step executes exactly one block, setting the halt flag first so the
// first returning terminator stops execution (spec §4.6 "Run loop":
// "Step sets the halt flag before entry").
func (d *Dispatcher) Step(b *ir.Builder, statePtr unsafe.Pointer, loc ir.Location) error {
	SetHalt(statePtr, true)
	defer SetHalt(statePtr, false)
	return d.Run(b, statePtr, loc)
}
