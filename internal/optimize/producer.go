package optimize

import "github.com/dynarm/dynarm/internal/ir"

// producerMap resolves a Value back to the Instruction that defines it,
// rebuilt once per pass invocation by walking the block (the optimizer has
// no access to the Builder's incremental map, which only lives for the
// duration of translation).
type producerMap map[ir.ValueID]*ir.Instruction

func buildProducerMap(blk *ir.Block) producerMap {
	m := make(producerMap)
	for i := blk.Root(); i != nil; i = i.Next() {
		if r := i.Result(); r.Valid() {
			m[r.ID()] = i
		}
	}
	return m
}

func (m producerMap) lookup(v ir.Value) *ir.Instruction {
	if !v.Valid() {
		return nil
	}
	return m[v.ID()]
}

// removeInstruction clears instr's argument use counts before unlinking it,
// so deleting an instruction never leaves a stale use count behind on its
// operands (spec §8 well-formedness, "exact use count"). Every pass that
// deletes an instruction must go through this rather than calling
// blk.RemoveInstruction directly.
func removeInstruction(blk *ir.Block, pm producerMap, instr *ir.Instruction) {
	instr.SetArgs(nil, pm.lookup)
	if r := instr.Result(); r.Valid() {
		delete(pm, r.ID())
	}
	blk.RemoveInstruction(instr)
}
