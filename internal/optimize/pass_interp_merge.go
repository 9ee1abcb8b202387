package optimize

import "github.com/dynarm/dynarm/internal/ir"

// passMergeInterpretBlocks implements spec §4.3 step 7, A64-only: wherever
// both arms of an If or CheckBit terminator fall straight through to the
// interpreter at the same location, the branch itself is pointless — it
// chains two interpreter-only continuations that could just as well be one.
// Collapsing them to a single Interpret terminator lets the dispatcher skip
// the branch and its predicate entirely.
func passMergeInterpretBlocks(blk *ir.Block) {
	pm := buildProducerMap(blk)
	blk.Term = mergeInterpret(blk.Term, pm)
}

func mergeInterpret(t *ir.Terminator, pm producerMap) *ir.Terminator {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case ir.TermIf, ir.TermCheckBit:
		t.Then = mergeInterpret(t.Then, pm)
		t.Else = mergeInterpret(t.Else, pm)
		if t.Then.Kind == ir.TermInterpret && t.Else.Kind == ir.TermInterpret && t.Then.Loc == t.Else.Loc {
			if t.Kind == ir.TermIf && t.Cond.Valid() {
				bumpUse(pm, t.Cond, -1)
			}
			return ir.Interpret(t.Then.Loc)
		}
		return t
	case ir.TermCheckHalt:
		t.Inner = mergeInterpret(t.Inner, pm)
		return t
	default:
		return t
	}
}
