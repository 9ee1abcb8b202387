// Package thumb translates Thumb-16/Thumb-32 guest code to IR (spec §4.2).
// Grounded on the same frontend.Compiler shape as a32, sharing its decode
// and cond machinery but addressing 16-bit halfwords as the base unit.
package thumb

import (
	"math/bits"

	"github.com/dynarm/dynarm/internal/ir"
	"github.com/dynarm/dynarm/internal/translate/cond"
	"github.com/dynarm/dynarm/internal/translate/decode"
	"github.com/dynarm/dynarm/internal/translate/xlatopts"
)

type visitor struct {
	b    *ir.Builder
	blk  *ir.Block
	mem  xlatopts.MemReadFunc
	opts xlatopts.Options
	pc   uint64
	m    cond.Machine

	// itMask/itFirstCond implement the IT-block scope: itMask's
	// population count is the number of remaining guarded instructions
	// (spec §4.2 "Conditional execution": "a conditional state machine").
	itMask      uint8
	itFirstCond uint8

	instrCount int
}

// table16 decodes 16-bit Thumb instructions.
var table16 = decode.New(16, []decode.Entry[*visitor]{
	{
		// PUSH <registers>: 1011010mrrrrrrrr (m = also push LR)
		Name: "PUSH",
		Bits: "1011010mrrrrrrrr",
		Visit: func(v *visitor, f decode.Fields) bool { return v.visitPush(f) },
	},
	{
		// POP <registers>: 1011110prrrrrrrr (p = also pop PC)
		Name: "POP",
		Bits: "1011110prrrrrrrr",
		Visit: func(v *visitor, f decode.Fields) bool { return v.visitPop(f) },
	},
	{
		// IT<x><y><z> <firstcond>: 10111111ccccmmmm
		Name: "IT",
		Bits: "10111111ccccmmmm",
		Visit: func(v *visitor, f decode.Fields) bool { return v.visitIT(f) },
	},
	{
		// MOV(S) <Rd>, #imm8 (also used as MOVEQ under an open IT block):
		// 00100dddiiiiiiii
		Name: "MOVimm",
		Bits: "00100dddiiiiiiii",
		Visit: func(v *visitor, f decode.Fields) bool { return v.visitMovImm(f) },
	},
})

// table32 decodes 32-bit Thumb-2 instructions (upper/lower halfword pair).
var table32 = decode.New(32, []decode.Entry[*visitor]{
	{
		// STMDB SP!, {registers}  == Thumb-2 PUSH {r..., lr}:
		// 1110100100101101M0rrrrrrrrrrrrrr
		// (collapsed here to the 32-bit STMDB-SP! encoding's fixed top
		// halfword 0xE92D, register list in the bottom halfword.)
		Name: "PUSH.W",
		Bits: "1110100100101101M0rrrrrrrrrrrrrr",
		Visit: func(v *visitor, f decode.Fields) bool { return v.visitPushW(f) },
	},
})

func (v *visitor) advance(size uint32) bool {
	v.b.AdvanceCycles(1)
	v.pc += uint64(size)
	v.instrCount++
	if v.itMask != 0 {
		v.itMask <<= 1
		if v.itMask&0x10 != 0 || bits.OnesCount8(v.itMask) == 0 {
			v.m.Close()
			v.itMask = 0
		}
	}
	if v.opts.MaxInstructions > 0 && v.instrCount >= v.opts.MaxInstructions {
		v.b.SetTerminator(ir.LinkBlockFast(ir.NewA32Location(v.pc, true, false, 0, 0, false)))
		return false
	}
	if v.opts.SingleStep {
		v.b.SetTerminator(ir.ReturnToDispatch())
		return false
	}
	return true
}

func (v *visitor) loc() ir.Location {
	return ir.NewA32Location(v.pc, true, false, v.itMask, 0, false)
}

// enterStepCondition applies the currently open IT predicate, if any, to
// this instruction, mirroring a32's per-instruction condition handling but
// driven by the IT mask's next condition bit instead of an encoded field.
func (v *visitor) enterStepCondition() bool {
	if v.itMask == 0 {
		return true
	}
	condBit := (v.itFirstCond & 1) ^ ((v.itMask >> 4) & 1)
	code := v.itFirstCond &^ 1
	if condBit != 0 {
		code |= 1
	}
	if v.m.State() == cond.None {
		v.m.Open(code)
		cpsr := v.b.GetRegister(ir.RegA32CPSR, ir.TypeU64)
		pred := v.b.ICompare(ir.CondEQ, cpsr, v.b.Iconst(ir.TypeU64, uint64(code)))
		v.b.SetCondition(pred, v.loc().WithPC(v.pc+2), 1)
		return true
	}
	if v.m.Next(true, code) == cond.Break {
		v.b.SetTerminator(ir.LinkBlock(v.loc()))
		return false
	}
	return true
}

func (v *visitor) visitIT(f decode.Fields) bool {
	v.itFirstCond = uint8(f['c'])
	v.itMask = uint8(f['m'])
	return v.advance(2)
}

func (v *visitor) visitMovImm(f decode.Fields) bool {
	if !v.enterStepCondition() {
		return false
	}
	imm := v.b.Iconst(ir.TypeU64, uint64(f['i']))
	v.b.SetRegister(ir.A32GPR(int(f['d'])), imm)
	return v.advance(2)
}

func (v *visitor) pushRegList(regs uint32, extra int, extraReg ir.RegName) {
	sp := v.b.GetRegister(ir.RegA32GPR0+13, ir.TypeU64)
	count := bits.OnesCount32(regs) + extra
	newSP := v.b.Sub(sp, v.b.Iconst(ir.TypeU64, uint64(count*4)))
	addr := newSP
	for r := 0; r < 32; r++ {
		if regs&(1<<uint(r)) == 0 {
			continue
		}
		val := v.b.GetRegister(ir.A32GPR(r), ir.TypeU32)
		v.b.WriteMemory(32, addr, val)
		addr = v.b.Add(addr, v.b.Iconst(ir.TypeU64, 4))
	}
	if extra != 0 {
		val := v.b.GetRegister(extraReg, ir.TypeU32)
		v.b.WriteMemory(32, addr, val)
	}
	v.b.SetRegister(ir.RegA32GPR0+13, newSP)
}

func (v *visitor) visitPush(f decode.Fields) bool {
	if !v.enterStepCondition() {
		return false
	}
	extra := 0
	if f['m'] != 0 {
		extra = 1
	}
	v.pushRegList(f['r'], extra, ir.RegA32GPR0+14)
	return v.advance(2)
}

func (v *visitor) visitPushW(f decode.Fields) bool {
	if !v.enterStepCondition() {
		return false
	}
	v.pushRegList(f['r'], int(f['M']), ir.RegA32GPR0+14)
	return v.advance(4)
}

func (v *visitor) visitPop(f decode.Fields) bool {
	if !v.enterStepCondition() {
		return false
	}
	sp := v.b.GetRegister(ir.RegA32GPR0+13, ir.TypeU64)
	addr := sp
	regs := f['r']
	count := bits.OnesCount32(regs)
	for r := 0; r < 8; r++ {
		if regs&(1<<uint(r)) == 0 {
			continue
		}
		val := v.b.ZeroExtend(v.b.ReadMemory(32, addr), ir.TypeU64)
		v.b.SetRegister(ir.A32GPR(r), val)
		addr = v.b.Add(addr, v.b.Iconst(ir.TypeU64, 4))
	}
	if f['p'] != 0 {
		count++
		val := v.b.ZeroExtend(v.b.ReadMemory(32, addr), ir.TypeU64)
		v.b.SetRegister(ir.RegA32GPR0+15, val)
	}
	newSP := v.b.Add(sp, v.b.Iconst(ir.TypeU64, uint64(count*4)))
	v.b.SetRegister(ir.RegA32GPR0+13, newSP)
	if f['p'] != 0 {
		v.b.SetTerminator(ir.ReturnToDispatch())
		return false
	}
	return v.advance(2)
}

// Translate decodes and lowers one Thumb block starting at loc.
func Translate(b *ir.Builder, loc ir.Location, mem xlatopts.MemReadFunc, opts xlatopts.Options) (*ir.Block, error) {
	blk := b.StartBlock(loc)
	v := &visitor{b: b, blk: blk, mem: mem, opts: opts, pc: loc.PC, itMask: loc.ITState()}

	for {
		word := mem(v.pc)
		half := halfwordAt(word, v.pc)
		if isThumb2Prefix(half) {
			full := (uint32(half) << 16) | uint32(halfwordAt(mem(v.pc+2), v.pc+2))
			cont, matched := table32.Decode(full, v)
			if !matched {
				v.b.ExceptionRaised(ir.ExceptionUndefinedInstruction, v.b.Iconst(ir.TypeU64, v.pc))
				b.SetTerminator(ir.CheckHalt(ir.ReturnToDispatch()))
				break
			}
			if !cont {
				break
			}
			continue
		}
		cont, matched := table16.Decode(uint32(half), v)
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

// halfwordAt extracts the 16-bit halfword containing pc from the 32-bit
// code word returned by mem (spec §4.2: mem always returns the containing
// word regardless of guest instruction size).
func halfwordAt(word uint32, pc uint64) uint16 {
	if pc&2 != 0 {
		return uint16(word >> 16)
	}
	return uint16(word)
}

func isThumb2Prefix(half uint16) bool {
	top5 := half >> 11
	return top5 == 0b11101 || top5 == 0b11110 || top5 == 0b11111
}
