package optimize

import "github.com/dynarm/dynarm/internal/ir"

// insertConst splices an Iconst immediately before mark and registers it
// in pm so later splices in the same pass can reference its result.
func insertConst(blk *ir.Block, mark *ir.Instruction, pm producerMap, t ir.Type, v uint64) ir.Value {
	result := blk.AllocValue(t)
	instr := ir.NewRawInstruction(ir.OpIconst, result, v, ir.ImmKindInt, nil, pm.lookup)
	blk.InsertBefore(mark, instr)
	pm[result.ID()] = instr
	return result
}

// insertBinary splices a two-argument pure opcode immediately before mark.
func insertBinary(blk *ir.Block, mark *ir.Instruction, pm producerMap, op ir.Opcode, t ir.Type, a, b ir.Value) ir.Value {
	result := blk.AllocValue(t)
	instr := ir.NewRawInstruction(op, result, 0, ir.ImmKindNone, []ir.Value{a, b}, pm.lookup)
	blk.InsertBefore(mark, instr)
	pm[result.ID()] = instr
	return result
}

// insertSideEffect splices a void, side-effecting instruction immediately
// before mark (e.g. a memory store).
func insertSideEffect(blk *ir.Block, mark *ir.Instruction, pm producerMap, op ir.Opcode, imm uint64, immKind ir.ImmKind, args ...ir.Value) {
	instr := ir.NewRawInstruction(op, ir.ValueInvalid, imm, immKind, args, pm.lookup)
	blk.InsertBefore(mark, instr)
}
