// Package a32 translates ARM 32-bit (A32) guest code to IR (spec §4.2).
// Grounded on the teacher's frontend.Compiler shape (reset builder, lower
// body, return) and on ssa's visitor-per-opcode pattern, adapted to ARM's
// bit-field decoding instead of wasm's byte-opcode switch.
package a32

import (
	"github.com/dynarm/dynarm/internal/ir"
	"github.com/dynarm/dynarm/internal/translate/cond"
	"github.com/dynarm/dynarm/internal/translate/decode"
	"github.com/dynarm/dynarm/internal/translate/xlatopts"
)

// visitor carries the per-call translation state; it is the V type
// parameter of decode.Table.
type visitor struct {
	b    *ir.Builder
	blk  *ir.Block
	mem  xlatopts.MemReadFunc
	opts xlatopts.Options
	pc   uint64
	m    cond.Machine

	// instrCount bounds block length (spec §4.2 contract (b)).
	instrCount int
}

// condFromField maps the standard ARM 4-bit condition field to a Cond.
func condFromField(c uint32) ir.Cond { return ir.Cond(c) }

var table = decode.New(32, []decode.Entry[*visitor]{
	{
		// MLA{S}<c> Rd, Rn, Rm, Ra : cccc0000001Sddddaaaammmm1001nnnn
		Name: "MLA",
		Bits: "cccc0000001Sddddaaaammmm1001nnnn",
		Visit: func(v *visitor, f decode.Fields) bool {
			return v.visitMLA(f)
		},
	},
	{
		// Generic unconditional branch B<c> <label>: cccc1010iiiiiiiiiiiiiiiiiiiiiiii
		Name: "B",
		Bits: "cccc1010iiiiiiiiiiiiiiiiiiiiiiii",
		Visit: func(v *visitor, f decode.Fields) bool {
			return v.visitB(f)
		},
	},
	{
		// MCR/MCR2 coprocessor register transfer (DC ZVA arrives this way
		// on A32 when modeled as a coprocessor op in the guest's MMU
		// emulation layer): cccc1110ooo0nnnnddddppppooo1mmmm
		Name: "MCR",
		Bits: "cccc1110ooo0nnnnddddppppooo1mmmm",
		Visit: func(v *visitor, f decode.Fields) bool {
			return v.visitMCR(f)
		},
	},
})

func (v *visitor) visitMLA(f decode.Fields) bool {
	c := condFromField(f['c'])
	if !v.enterCondition(c) {
		return false
	}
	rn := v.b.GetRegister(ir.A32GPR(int(f['n'])), ir.TypeU64)
	rm := v.b.GetRegister(ir.A32GPR(int(f['m'])), ir.TypeU64)
	ra := v.b.GetRegister(ir.A32GPR(int(f['a'])), ir.TypeU64)
	prod := v.b.Mul(rn, rm)
	sum := v.b.Add(prod, ra)
	v.b.SetRegister(ir.A32GPR(int(f['d'])), sum)
	if f['S'] != 0 {
		nz := v.b.GetNZFromOp(sum)
		_ = nz // flag materialization is the get/set elimination pass's concern
	}
	return v.advance(4)
}

func (v *visitor) visitB(f decode.Fields) bool {
	c := condFromField(f['c'])
	if !v.enterCondition(c) {
		return false
	}
	imm := signExtend26(f['i']) << 2
	target := v.pc + 8 + uint64(imm)
	v.b.SetTerminator(ir.LinkBlock(ir.NewA32Location(target, false, false, 0, 0, false)))
	return false
}

func signExtend26(x uint32) int64 {
	const bits = 26
	if x&(1<<(bits-1)) != 0 {
		return int64(x) - (1 << bits)
	}
	return int64(x)
}

func (v *visitor) visitMCR(f decode.Fields) bool {
	c := condFromField(f['c'])
	if !v.enterCondition(c) {
		return false
	}
	rn := v.b.GetRegister(ir.A32GPR(int(f['n'])), ir.TypeU64)
	// DC op kind is modeled by the coprocessor opc2/CRm fields; a full
	// decode table would branch here. This representative visitor always
	// treats MCR p15,0,Rt,c7,c14,2 (DCCIMVAC) style ops as a DC op.
	v.b.A32DataCacheOperationRaised(0, rn)
	return v.advance(4)
}

// enterCondition runs the block's conditional-execution state machine
// (spec §4.2 "Conditional execution") and returns false if this
// instruction forces termination before being emitted.
func (v *visitor) enterCondition(c ir.Cond) bool {
	present := c != ir.CondAL
	code := uint8(c)
	switch v.m.State() {
	case cond.None:
		if present {
			v.m.Open(code)
			cpsr := v.b.GetRegister(ir.RegA32CPSR, ir.TypeU64)
			pred := v.b.ICompare(ir.CondEQ, cpsr, v.b.Iconst(ir.TypeU64, uint64(code)))
			v.b.SetCondition(pred, ir.NewA32Location(v.pc+4, false, false, 0, 0, false), 1)
		}
		return true
	default:
		st := v.m.Next(present, code)
		if st == cond.Break {
			v.b.SetTerminator(ir.LinkBlock(ir.NewA32Location(v.pc, false, false, 0, 0, false)))
			return false
		}
		return true
	}
}

func (v *visitor) advance(size uint32) bool {
	v.b.AdvanceCycles(1)
	v.pc += uint64(size)
	v.instrCount++
	if v.opts.MaxInstructions > 0 && v.instrCount >= v.opts.MaxInstructions {
		v.b.SetTerminator(ir.LinkBlockFast(ir.NewA32Location(v.pc, false, false, 0, 0, false)))
		return false
	}
	if v.opts.SingleStep {
		v.b.SetTerminator(ir.ReturnToDispatch())
		return false
	}
	return true
}

// Translate decodes and lowers one A32 block starting at loc (spec §4.2).
func Translate(b *ir.Builder, loc ir.Location, mem xlatopts.MemReadFunc, opts xlatopts.Options) (*ir.Block, error) {
	blk := b.StartBlock(loc)
	v := &visitor{b: b, blk: blk, mem: mem, opts: opts, pc: loc.PC}

	for {
		word := mem(v.pc)
		cont, matched := table.Decode(word, v)
		if !matched {
			v.b.ExceptionRaised(ir.ExceptionUndefinedInstruction, v.b.Iconst(ir.TypeU64, v.pc))
			b.SetTerminator(ir.CheckHalt(ir.ReturnToDispatch()))
			break
		}
		if !cont {
			break
		}
	}
	return blk, nil
}
