// Package a64 translates ARM 64-bit (A64) guest code to IR (spec §4.2).
package a64

import (
	"github.com/dynarm/dynarm/internal/ir"
	"github.com/dynarm/dynarm/internal/translate/decode"
	"github.com/dynarm/dynarm/internal/translate/xlatopts"
)

type visitor struct {
	b    *ir.Builder
	blk  *ir.Block
	mem  xlatopts.MemReadFunc
	opts xlatopts.Options
	pc   uint64

	instrCount int
}

var table = decode.New(32, []decode.Entry[*visitor]{
	{
		// DC <op>, Xt  (system instruction, CRn=7): 1101010100001ooooo0111mmmmmttttt
		Name: "DC",
		Bits: "1101010100001ooooo0111mmmmmttttt",
		Visit: func(v *visitor, f decode.Fields) bool { return v.visitDC(f) },
	},
	{
		// LDXR Xt, [Xn]: 1101100001011111011111nnnnnttttt
		Name: "LDXR",
		Bits: "1101100001011111011111nnnnnttttt",
		Visit: func(v *visitor, f decode.Fields) bool { return v.visitLDXR(f) },
	},
	{
		// STXR Ws, Xt, [Xn]: 11001000000sssss011111nnnnnttttt
		Name: "STXR",
		Bits: "11001000000sssss011111nnnnnttttt",
		Visit: func(v *visitor, f decode.Fields) bool { return v.visitSTXR(f) },
	},
	{
		// RET {Xn}: 1101011001011111000000nnnnn00000
		Name: "RET",
		Bits: "1101011001011111000000nnnnn00000",
		Visit: func(v *visitor, f decode.Fields) bool { return v.visitRET(f) },
	},
})

// dczvaOp is the "op" field value identifying DC ZVA among the DC variants
// this representative decoder recognizes.
const dczvaOp = 0b00100

func (v *visitor) visitDC(f decode.Fields) bool {
	xt := v.b.GetRegister(ir.A64GPR(int(f['t'])), ir.TypeU64)
	if f['o'] != dczvaOp {
		v.b.A64DataCacheOperationRaised(f['o'], xt)
		return v.advance(4)
	}
	if v.opts.HookDataCacheOperations {
		v.b.A64DataCacheOperationRaised(f['o'], xt)
		return v.advance(4)
	}
	// Lowered inline per spec §4.3 step 1 / §8 scenario 3: zero the
	// DCZVABlockSize()-byte, block-aligned region starting at Xt.
	blockSize := v.opts.DCZVABlockSize()
	mask := ^(uint64(blockSize) - 1)
	base := v.b.And(xt, v.b.Iconst(ir.TypeU64, mask))
	zero := v.b.Iconst(ir.TypeU8, 0)
	for off := uint32(0); off < blockSize; off++ {
		addr := v.b.Add(base, v.b.Iconst(ir.TypeU64, uint64(off)))
		v.b.WriteMemory(8, addr, zero)
	}
	return v.advance(4)
}

func (v *visitor) visitLDXR(f decode.Fields) bool {
	addr := v.b.GetRegister(ir.A64GPR(int(f['n'])), ir.TypeU64)
	val := v.b.ExclusiveRead(64, addr)
	v.b.SetRegister(ir.A64GPR(int(f['t'])), val)
	return v.advance(4)
}

func (v *visitor) visitSTXR(f decode.Fields) bool {
	addr := v.b.GetRegister(ir.A64GPR(int(f['n'])), ir.TypeU64)
	val := v.b.GetRegister(ir.A64GPR(int(f['t'])), ir.TypeU64)
	failed := v.b.ExclusiveWrite(64, addr, val)
	status := v.b.Select(failed, v.b.Iconst(ir.TypeU64, 0), v.b.Iconst(ir.TypeU64, 1))
	v.b.SetRegister(ir.A64GPR(int(f['s'])), status)
	return v.advance(4)
}

func (v *visitor) visitRET(f decode.Fields) bool {
	v.b.SetTerminator(ir.PopRSBHint())
	return false
}

func (v *visitor) advance(size uint32) bool {
	v.b.AdvanceCycles(1)
	v.pc += uint64(size)
	v.instrCount++
	if v.opts.MaxInstructions > 0 && v.instrCount >= v.opts.MaxInstructions {
		v.b.SetTerminator(ir.LinkBlockFast(ir.NewA64Location(v.pc, 0, false)))
		return false
	}
	if v.opts.SingleStep {
		v.b.SetTerminator(ir.ReturnToDispatch())
		return false
	}
	return true
}

// Translate decodes and lowers one A64 block starting at loc (spec §4.2).
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
