package optimize

import "github.com/dynarm/dynarm/internal/ir"

// passDCE implements spec §4.3 step 3/6, dead-code elimination: repeatedly
// remove instructions with zero remaining uses and no side effect, since
// removing one can drop its own arguments' use counts to zero in turn. Runs
// to a fixpoint rather than a single sweep so a chain of dead pure
// instructions collapses in one pass invocation.
func passDCE(blk *ir.Block) {
	pm := buildProducerMap(blk)
	for {
		removed := false
		var next *ir.Instruction
		for i := blk.Root(); i != nil; i = next {
			next = i.Next()
			if i.HasSideEffect() || i.UseCount() > 0 {
				continue
			}
			removeInstruction(blk, pm, i)
			removed = true
		}
		if !removed {
			return
		}
	}
}
