package optimize

import "github.com/dynarm/dynarm/internal/ir"

// passGetSetElim implements spec §4.3 step 2, "get/set elimination": within
// a block, a GetReg that follows a known SetReg (or an earlier GetReg) to
// the same slot is replaced by that slot's current value, and a SetReg that
// is never read before being overwritten is dropped as a dead store.
//
// removable tracks, per register slot, the last SetReg written to it that
// has not yet been read — that instruction becomes dead the moment the slot
// is overwritten again without an intervening read. Any side-effecting
// instruction other than a plain SetReg forces every pending SetReg to be
// materialized (spec §4.3 step 2, "side-effecting instructions force
// in-flight register writes to be materialized"): it clears removable
// without touching slots, since the values themselves are still current for
// GetReg resolution, only no longer eligible for dead-store removal.
func passGetSetElim(blk *ir.Block) {
	pm := buildProducerMap(blk)
	slots := make(map[ir.RegName]ir.Value)
	removable := make(map[ir.RegName]*ir.Instruction)

	var next *ir.Instruction
	for i := blk.Root(); i != nil; i = next {
		next = i.Next()

		switch i.Opcode {
		case ir.OpGetReg:
			name := ir.RegName(i.Imm)
			cur, ok := slots[name]
			if !ok {
				slots[name] = i.Result()
				continue
			}
			rewireUses(blk, i.Result(), cur, pm)
			removeInstruction(blk, pm, i)

		case ir.OpSetReg:
			name := ir.RegName(i.Imm)
			if prev, ok := removable[name]; ok {
				removeInstruction(blk, pm, prev)
			}
			slots[name] = i.Arg(0)
			removable[name] = i

		default:
			if i.HasSideEffect() {
				removable = make(map[ir.RegName]*ir.Instruction)
			}
		}
	}
}

// rewireUses replaces every argument slot across the block equal to old
// with replacement, decrementing old's producer use count and incrementing
// replacement's, then repoints the Block's own Cond and its Terminator's
// Cond references the same way (spec §8 well-formedness: a reference held
// directly by the Block or Terminator is just as live as an instruction
// argument and must track it exactly).
func rewireUses(blk *ir.Block, old, replacement ir.Value, pm producerMap) {
	for i := blk.Root(); i != nil; i = i.Next() {
		for n, a := range i.Args() {
			if a == old {
				i.ReplaceArg(n, replacement, pm.lookup)
			}
		}
	}
	if blk.Cond == old {
		bumpUse(pm, old, -1)
		bumpUse(pm, replacement, 1)
		blk.Cond = replacement
	}
	rewireTerminatorCond(blk.Term, old, replacement, pm)
}

func rewireTerminatorCond(t *ir.Terminator, old, replacement ir.Value, pm producerMap) {
	if t == nil {
		return
	}
	if t.Cond == old {
		bumpUse(pm, old, -1)
		bumpUse(pm, replacement, 1)
		t.Cond = replacement
	}
	rewireTerminatorCond(t.Then, old, replacement, pm)
	rewireTerminatorCond(t.Else, old, replacement, pm)
	rewireTerminatorCond(t.Inner, old, replacement, pm)
}

func bumpUse(pm producerMap, v ir.Value, delta int) {
	if p := pm.lookup(v); p != nil {
		p.AdjustUseCount(delta)
	}
}
