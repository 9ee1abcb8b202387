package optimize

import "github.com/dynarm/dynarm/internal/ir"

// a32DCOpZeroByVA identifies the "zero by virtual address" DC op kind
// among the values the a32 translator's visitMCR emits (spec §4.3 step 1).
const a32DCOpZeroByVA = 0

// cacheLineSize is the guest cache line size the zero-by-VA expansion
// zeroes, matching the common ARM L1 D-cache line size.
const cacheLineSize = 32

// passDCOps implements spec §4.3 step 1, "A32 callback-elimination": every
// A32 DataCacheOperationRaised either expands into explicit zeroing
// stores (ZeroByVA with hooks disabled) or is dropped outright (every
// other op, or ZeroByVA with hooks enabled). Either way the op leaves the
// block, so no DataCacheOperationRaised callback is made for an A32 DC op.
func passDCOps(blk *ir.Block, cfg *Config) {
	pm := buildProducerMap(blk)
	var next *ir.Instruction
	for i := blk.Root(); i != nil; i = next {
		next = i.Next()
		if i.Opcode != ir.OpA32DataCacheOperationRaised {
			continue
		}
		if !cfg.HookDataCacheOperations && i.Imm == a32DCOpZeroByVA {
			expandZeroByVA(blk, i, pm)
		}
		removeInstruction(blk, pm, i)
	}
}

func expandZeroByVA(blk *ir.Block, mark *ir.Instruction, pm producerMap) {
	base := mark.Arg(0)
	zero := insertConst(blk, mark, pm, ir.TypeU8, 0)
	for off := uint64(0); off < cacheLineSize; off++ {
		addr := base
		if off != 0 {
			delta := insertConst(blk, mark, pm, ir.TypeU64, off)
			addr = insertBinary(blk, mark, pm, ir.OpAdd, ir.TypeU64, base, delta)
		}
		insertSideEffect(blk, mark, pm, ir.OpWriteMemory8, 0, ir.ImmKindNone, addr, zero)
	}
}
