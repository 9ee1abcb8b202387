// Package optimize implements the fixed, ordered IR-to-IR pass pipeline
// (spec §4.3). Grounded on ssa/pass.go's RunPasses: an ordered list of
// pass functions run unconditionally in sequence, with a comment at each
// call site explaining why that pass must run where it does.
package optimize

import "github.com/dynarm/dynarm/internal/ir"

// Run applies all eight passes to blk in the spec-mandated order. Returns
// an error only from the final verification pass (abort-class bugs).
func Run(blk *ir.Block, cfg *Config) error {
	passDCOps(blk, cfg)         // 1. A32 callback-elimination
	passGetSetElim(blk)         // 2. get/set elimination
	passDCE(blk)                // 3. dead-code elimination
	passConstMemReads(blk, cfg) // 4. constant memory reads
	passConstFold(blk)          // 5. constant propagation/folding
	passDCE(blk)                // 6. DCE again (pass 5 exposes new dead code)
	if cfg.A64 {
		passMergeInterpretBlocks(blk) // 7. A64-specific merge-interpret-blocks
	}
	return passVerify(blk) // 8. verification
}
