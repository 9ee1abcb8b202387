package regalloc

import "github.com/dynarm/dynarm/internal/ir"

// RegInfo is the host-specific register file description the allocator is
// parameterized over (spec §4.4 "Abstract host register file"). One
// instance is built once per host ISA (internal/host/amd64's reg.go) and
// handed to NewAllocator.
type RegInfo struct {
	// GPRs lists the allocatable general-purpose registers in preference
	// order — caller-saved registers first, so the common case (short-lived
	// values) never forces a callee-save spill/restore pair around the
	// block.
	GPRs []RealReg
	// XMMs lists the allocatable vector/float registers, same ordering
	// rule as GPRs.
	XMMs []RealReg

	// StatePointer and PageTableBase are reserved outside the allocatable
	// sets: the emitter addresses the guest register struct and (when
	// inline page tables are enabled) the page table through these for the
	// whole block (spec §4.4, §4.7).
	StatePointer  RealReg
	PageTableBase RealReg

	// Scratch1/Scratch2 are usable by any per-opcode routine without
	// reservation (spec §4.4 "a pair of scratch registers").
	Scratch1, Scratch2 RealReg

	// CalleeSaved reports, per RealReg, whether the host ABI requires it
	// preserved across a HostCall — used by HostCall to decide which live
	// values need no spill/reload around the call.
	CalleeSaved map[RealReg]bool

	// ArgGPRs/ArgXMMs are the host ABI's integer/float argument registers,
	// in argument order, consulted by HostCall.
	ArgGPRs, ArgXMMs []RealReg
	// ReturnGPR/ReturnXMM are the host ABI's return-value registers.
	ReturnGPR, ReturnXMM RealReg
	// FlagsScratch is the GPR SpillFlags materializes the host condition
	// flags into when they hold a live IR value (spec §4.4 "SpillFlags").
	FlagsScratch RealReg
}

// Location describes where one IR value currently lives.
type Location struct {
	Kind HostLoc
	Reg  RealReg
	Slot int
}

// ArgInfo is one entry of GetArgumentInfo's result (spec §4.4).
type ArgInfo struct {
	Value     ir.Value
	IsImm     bool
	ImmValue  uint64
	Loc       Location
}

// producerOf resolves a Value to the Instruction defining it, matching the
// convention used throughout internal/optimize (Builder during translation,
// a block-walk-built map post-translation).
type producerOf func(ir.Value) *ir.Instruction

// Allocator is a linear-scan register allocator over one straight-line IR
// block (spec §4.4 "Algorithm"). It holds no state across blocks: Reset (or
// a fresh Allocator) is required before lowering the next one.
type Allocator struct {
	info *RegInfo

	locs map[ir.ValueID]*Location

	freeGPR []RealReg
	freeXMM []RealReg

	// lru records RealReg occupancy order, oldest-used first, so eviction
	// always picks the least-recently-used live value (spec §4.4
	// "Algorithm": "spill the least-recently-used live value when forced").
	lru []ir.ValueID
	// owner maps a RealReg back to the value currently occupying it, the
	// inverse of locs for registers in LocReg state.
	owner map[RealReg]ir.ValueID

	spillSlots int

	producerOf producerOf
}

// NewAllocator constructs an allocator over info. producerOf resolves a
// Value to its defining Instruction (for UseCount-driven liveness).
func NewAllocator(info *RegInfo, producerOf producerOf) *Allocator {
	a := &Allocator{info: info, producerOf: producerOf}
	a.Reset()
	return a
}

// Reset clears all per-block allocator state (spec §4.4 "On entering a
// block the allocator is empty").
func (a *Allocator) Reset() {
	a.locs = make(map[ir.ValueID]*Location)
	a.owner = make(map[RealReg]ir.ValueID)
	a.freeGPR = append(a.freeGPR[:0], a.info.GPRs...)
	a.freeXMM = append(a.freeXMM[:0], a.info.XMMs...)
	a.lru = a.lru[:0]
	a.spillSlots = 0
}

func (a *Allocator) touch(id ir.ValueID) {
	for i, v := range a.lru {
		if v == id {
			a.lru = append(a.lru[:i], a.lru[i+1:]...)
			break
		}
	}
	a.lru = append(a.lru, id)
}

func (a *Allocator) allocSlot() int {
	s := a.spillSlots
	a.spillSlots++
	return s
}

// evict picks the least-recently-used live GPR (or XMM, per class) and
// spills it, returning the freed register.
func (a *Allocator) evict(class RegClass) RealReg {
	for _, id := range a.lru {
		loc, ok := a.locs[id]
		if !ok || loc.Kind != LocReg {
			continue
		}
		inClass := false
		for _, r := range a.regsOf(class) {
			if r == loc.Reg {
				inClass = true
				break
			}
		}
		if !inClass {
			continue
		}
		reg := loc.Reg
		slot := a.allocSlot()
		delete(a.owner, reg)
		loc.Kind, loc.Slot, loc.Reg = LocSpill, slot, RealRegInvalid
		return reg
	}
	panic("BUG: register allocator has no live register left to evict")
}

func (a *Allocator) regsOf(class RegClass) []RealReg {
	if class == RegClassFloat {
		return a.info.XMMs
	}
	return a.info.GPRs
}

func (a *Allocator) freeListOf(class RegClass) *[]RealReg {
	if class == RegClassFloat {
		return &a.freeXMM
	}
	return &a.freeGPR
}

// allocReg returns a free register of class, evicting the LRU occupant of
// that class if none is free.
func (a *Allocator) allocReg(class RegClass) RealReg {
	free := a.freeListOf(class)
	if len(*free) > 0 {
		// Pop from the front so RegInfo's caller-saved-first ordering is
		// honored: the first-preference register is handed out first.
		r := (*free)[0]
		*free = (*free)[1:]
		return r
	}
	return a.evict(class)
}

func (a *Allocator) locOf(v ir.Value) *Location {
	loc, ok := a.locs[v.ID()]
	if !ok {
		loc = &Location{Kind: LocPending}
		a.locs[v.ID()] = loc
	}
	return loc
}

// materialize ensures v is resident in a register of class, loading it from
// its spill slot if needed, and returns the register.
func (a *Allocator) materialize(v ir.Value, class RegClass) RealReg {
	loc := a.locOf(v)
	if loc.Kind == LocReg {
		a.touch(v.ID())
		return loc.Reg
	}
	r := a.allocReg(class)
	loc.Kind, loc.Reg = LocReg, r
	a.owner[r] = v.ID()
	a.touch(v.ID())
	return r
}

// UseReg declares that v is needed in a register for read-only or
// read-write use by the current instruction (spec §4.4).
func (a *Allocator) UseReg(v ir.Value) RealReg { return a.materialize(v, RegClassInt) }

// UseXmm is UseReg for the vector/float register file.
func (a *Allocator) UseXmm(v ir.Value) RealReg { return a.materialize(v, RegClassFloat) }

// UseScratchReg is UseReg for a value the emitter is about to clobber in
// place; semantically identical at the allocator level (spec §4.4: "UseReg,
// UseScratchReg ... returns the chosen register"), the "scratch" distinction
// is the emitter's contract with itself about in-place mutation, not an
// allocator-visible difference.
func (a *Allocator) UseScratchReg(v ir.Value) RealReg { return a.UseReg(v) }

// UseScratchXmm is UseScratchReg for the float file.
func (a *Allocator) UseScratchXmm(v ir.Value) RealReg { return a.UseXmm(v) }

// ScratchReg obtains a GPR clobbered by the current IR instruction without
// binding it to any IR value (spec §4.4).
func (a *Allocator) ScratchReg() RealReg { return a.allocReg(RegClassInt) }

// ScratchXmm is ScratchReg for the float file.
func (a *Allocator) ScratchXmm() RealReg { return a.allocReg(RegClassFloat) }

// DefineValue declares that inst's result now lives at loc (spec §4.4).
func (a *Allocator) DefineValue(inst *ir.Instruction, loc Location) {
	r := inst.Result()
	if !r.Valid() {
		return
	}
	l := a.locOf(r)
	*l = loc
	if loc.Kind == LocReg {
		a.owner[loc.Reg] = r.ID()
		a.touch(r.ID())
	}
}

// Release marks v's use count exhausted (spec §4.4 "its use count reaches
// zero"), freeing its register or spill slot for reuse. The emitter calls
// this after consuming v as the final remaining use, mirroring how the IR
// itself tracks UseCount.
func (a *Allocator) Release(v ir.Value) {
	loc, ok := a.locs[v.ID()]
	if !ok {
		return
	}
	if loc.Kind == LocReg {
		delete(a.owner, loc.Reg)
		class := RegClassInt
		for _, r := range a.info.XMMs {
			if r == loc.Reg {
				class = RegClassFloat
				break
			}
		}
		free := a.freeListOf(class)
		*free = append(*free, loc.Reg)
	}
	delete(a.locs, v.ID())
}

// GetArgumentInfo returns each argument's value, and, when it resolves to a
// producer-time immediate, its literal (spec §4.4).
func (a *Allocator) GetArgumentInfo(inst *ir.Instruction) []ArgInfo {
	args := inst.Args()
	out := make([]ArgInfo, len(args))
	for i, v := range args {
		out[i] = ArgInfo{Value: v}
		if p := a.producerOf(v); p != nil && p.Opcode == ir.OpIconst {
			out[i].IsImm = true
			out[i].ImmValue = p.Imm
			continue
		}
		if loc, ok := a.locs[v.ID()]; ok {
			out[i].Loc = *loc
		}
	}
	return out
}

// SpillLoc reports where an already-spilled value's slot lives, or ok=false
// if v has never been materialized/spilled.
func (a *Allocator) SpillLoc(v ir.Value) (Location, bool) {
	loc, ok := a.locs[v.ID()]
	if !ok {
		return Location{}, false
	}
	return *loc, true
}

// SpillAll forces every currently register-resident value to a spill slot,
// returning the set of registers freed — used by HostCall to make room for
// the host-ABI argument registers and to respect the callee-saved contract
// (spec §4.4 "HostCall ... spills all caller-saved registers that hold live
// values").
func (a *Allocator) SpillAll(onlyCallerSaved bool) []RealReg {
	var freed []RealReg
	for id, loc := range a.locs {
		if loc.Kind != LocReg {
			continue
		}
		if onlyCallerSaved && a.info.CalleeSaved[loc.Reg] {
			continue
		}
		reg := loc.Reg
		slot := a.allocSlot()
		delete(a.owner, reg)
		loc.Kind, loc.Slot, loc.Reg = LocSpill, slot, RealRegInvalid
		freed = append(freed, reg)
		_ = id
	}
	return freed
}

// SpillSlotCount returns the number of spill slots allocated so far, sized
// by the caller into the guest-state struct's spill array (spec §4.4
// "spill slot (fixed-size array in the guest state struct)").
func (a *Allocator) SpillSlotCount() int { return a.spillSlots }

func (a *Allocator) removeFree(reg RealReg, float bool) {
	free := a.freeListOf(RegClassInt)
	if float {
		free = a.freeListOf(RegClassFloat)
	}
	for i, r := range *free {
		if r == reg {
			*free = append((*free)[:i], (*free)[i+1:]...)
			return
		}
	}
}

// CallPlan is the register-assignment HostCall produces; the emitter walks
// it to emit the actual argument-marshalling and call instructions, since
// the allocator itself never emits host bytes.
type CallPlan struct {
	// ArgRegs gives, per argument in order, the RealReg it must be moved
	// into before the call.
	ArgRegs []RealReg
	// ResultReg is where the call's return value lands, RealRegInvalid if
	// the call has no result.
	ResultReg RealReg
}

// HostCall realizes an ABI-compliant call's register assignment (spec
// §4.4): it spills every caller-saved register holding a live value,
// assigns args to the host ABI's argument registers in order, and binds
// result to the canonical return register.
func (a *Allocator) HostCall(result ir.Value, resultIsFloat bool, args []ir.Value, argIsFloat []bool) CallPlan {
	a.SpillAll(true)

	plan := CallPlan{ArgRegs: make([]RealReg, len(args)), ResultReg: RealRegInvalid}
	gprIdx, xmmIdx := 0, 0
	for i, v := range args {
		var reg RealReg
		if argIsFloat[i] {
			reg = a.info.ArgXMMs[xmmIdx]
			xmmIdx++
		} else {
			reg = a.info.ArgGPRs[gprIdx]
			gprIdx++
		}
		plan.ArgRegs[i] = reg
		a.removeFree(reg, argIsFloat[i])
		loc := a.locOf(v)
		loc.Kind, loc.Reg = LocReg, reg
		a.owner[reg] = v.ID()
		a.touch(v.ID())
	}

	if result.Valid() {
		reg := a.info.ReturnGPR
		if resultIsFloat {
			reg = a.info.ReturnXMM
		}
		plan.ResultReg = reg
		a.removeFree(reg, resultIsFloat)
		loc := a.locOf(result)
		loc.Kind, loc.Reg = LocReg, reg
		a.owner[reg] = result.ID()
		a.touch(result.ID())
	}
	return plan
}

// SpillFlags materializes the host condition flags (currently holding v's
// value, e.g. the carry/overflow bit of a just-lowered AddWithCarry) to
// FlagsScratch, freeing the flags register for the next flag-writing
// instruction (spec §4.4 "SpillFlags").
func (a *Allocator) SpillFlags(v ir.Value) RealReg {
	reg := a.info.FlagsScratch
	a.removeFree(reg, false)
	loc := a.locOf(v)
	loc.Kind, loc.Reg = LocReg, reg
	a.owner[reg] = v.ID()
	a.touch(v.ID())
	return reg
}
